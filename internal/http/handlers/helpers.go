package handlers

import (
	"encoding/json"
	"errors"

	"github.com/valyala/fasthttp"

	"github.com/gamelogsTOP/dotserver/internal/event"
)

func jsonResponse(ctx *fasthttp.RequestCtx, code int, data map[string]any) {
	ctx.SetStatusCode(code)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(data)
	ctx.SetBody(body)
}

func errResponse(ctx *fasthttp.RequestCtx, code int, msg string) {
	jsonResponse(ctx, code, map[string]any{"success": false, "error": msg})
}

// writeDomainError maps the pipeline error taxonomy to HTTP statuses:
// validation 400 (with every defect), duplicate 409, store unavailable 503,
// anything else a generic 500 that leaks no internals.
func writeDomainError(ctx *fasthttp.RequestCtx, err error) {
	var verr *event.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonResponse(ctx, fasthttp.StatusBadRequest, map[string]any{
			"success": false,
			"error":   "invalid event data",
			"details": verr.Defects,
		})
	case errors.Is(err, event.ErrDuplicateEvent):
		jsonResponse(ctx, fasthttp.StatusConflict, map[string]any{
			"success": false,
			"error":   "duplicate event",
			"message": "this event has already been recorded",
		})
	case errors.Is(err, event.ErrStoreUnavailable):
		errResponse(ctx, fasthttp.StatusServiceUnavailable, "store unavailable, retry later")
	default:
		errResponse(ctx, fasthttp.StatusInternalServerError, "internal server error")
	}
}
