package middleware

import (
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"
)

// RequestLogger logs method, path, status, duration and client IP for every
// request, tagged with a generated request id that is also echoed back in
// the X-Request-ID response header.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		start := time.Now()
		requestID := uuid.NewString()
		ctx.Response.Header.Set("X-Request-ID", requestID)

		next(ctx)

		log.Info().
			Str("request_id", requestID).
			Str("method", string(ctx.Method())).
			Str("path", string(ctx.Path())).
			Int("status", ctx.Response.StatusCode()).
			Dur("duration", time.Since(start)).
			Str("client_ip", ctx.RemoteIP().String()).
			Msg("request")
	}
}
