package handlers

import (
	"time"

	"github.com/valyala/fasthttp"
)

// Health reports liveness.
func Health() fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"status":    "OK",
			"service":   "dotserver",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
		})
	}
}
