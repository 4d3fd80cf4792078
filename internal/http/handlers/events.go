package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	dbpkg "github.com/gamelogsTOP/dotserver/internal/db"
	"github.com/gamelogsTOP/dotserver/internal/event"
	"github.com/gamelogsTOP/dotserver/internal/metrics"
)

// SaveEvent handles POST /v1/events/save: validate, normalize, merge.
func SaveEvent(v *event.Validator, merger *event.Merger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var payload map[string]any
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		start := time.Now()
		eventType, _ := payload["event_type"].(string)

		if res := v.ValidateEvent(payload); !res.Valid {
			log.Warn().
				Strs("errors", res.Errors).
				Str("event_type", eventType).
				Msg("event validation failed")
			metrics.EventsTotal.WithLabelValues(eventType, "rejected").Inc()
			writeDomainError(ctx, &event.ValidationError{Defects: res.Errors})
			return
		}

		enrich(ctx, payload)

		saved, err := merger.HandleEvent(ctx, event.FromPayload(payload))
		if err != nil {
			metrics.EventsTotal.WithLabelValues(eventType, outcomeOf(err)).Inc()
			writeDomainError(ctx, err)
			return
		}

		metrics.EventsTotal.WithLabelValues(eventType, "accepted").Inc()
		metrics.EventDuration.WithLabelValues(eventType).Observe(time.Since(start).Seconds())

		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"success": true,
			"event": map[string]any{
				"id":        saved.ID,
				"type":      saved.EventType,
				"timestamp": saved.Timestamp,
			},
		})
	}
}

// BatchEvents handles POST /v1/events/batch: each event is validated and
// merged independently; one bad event never blocks the rest of the batch.
func BatchEvents(v *event.Validator, merger *event.Merger) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var req struct {
			Events []map[string]any `json:"events"`
		}
		if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}
		if len(req.Events) == 0 {
			errResponse(ctx, fasthttp.StatusBadRequest, "no events provided")
			return
		}

		accepted := 0
		var failures []map[string]any
		for i, payload := range req.Events {
			eventType, _ := payload["event_type"].(string)

			if res := v.ValidateEvent(payload); !res.Valid {
				metrics.EventsTotal.WithLabelValues(eventType, "rejected").Inc()
				failures = append(failures, map[string]any{"index": i, "errors": res.Errors})
				continue
			}
			enrich(ctx, payload)

			if _, err := merger.HandleEvent(ctx, event.FromPayload(payload)); err != nil {
				metrics.EventsTotal.WithLabelValues(eventType, outcomeOf(err)).Inc()
				failures = append(failures, map[string]any{"index": i, "errors": []string{err.Error()}})
				continue
			}
			metrics.EventsTotal.WithLabelValues(eventType, "accepted").Inc()
			accepted++
		}

		resp := map[string]any{"success": true, "count": accepted}
		if len(failures) > 0 {
			resp["failures"] = failures
		}
		jsonResponse(ctx, fasthttp.StatusOK, resp)
	}
}

// EventQuerier is the slice of the event store the read handlers use.
type EventQuerier interface {
	Query(ctx context.Context, f dbpkg.EventFilter) ([]dbpkg.Event, error)
}

// QueryEvents handles GET /v1/events/info with optional event_type,
// from_date and to_date filters. user_id is required, matching the original
// client contract.
func QueryEvents(events EventQuerier) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID := string(ctx.QueryArgs().Peek("user_id"))
		if userID == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "user_id parameter is required")
			return
		}

		filter := dbpkg.EventFilter{
			UserID:    userID,
			EventType: string(ctx.QueryArgs().Peek("event_type")),
		}
		if t, ok := parseQueryDate(string(ctx.QueryArgs().Peek("from_date"))); ok {
			filter.From = &t
		}
		if t, ok := parseQueryDate(string(ctx.QueryArgs().Peek("to_date"))); ok {
			filter.To = &t
		}

		list, err := events.Query(ctx, filter)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("event query failed")
			writeDomainError(ctx, event.WrapStoreErr(err))
			return
		}

		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"success": true,
			"count":   len(list),
			"events":  list,
		})
	}
}

// enrich stamps boundary-layer fields on the payload: client IP and the
// User-Agent folded into device_info.
func enrich(ctx *fasthttp.RequestCtx, payload map[string]any) {
	payload["ip_address"] = ctx.RemoteIP().String()

	ua := string(ctx.UserAgent())
	if ua == "" {
		return
	}
	info, ok := payload["device_info"].(map[string]any)
	if !ok {
		info = map[string]any{}
	}
	info["user_agent"] = ua
	payload["device_info"] = info
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return "accepted"
	case errors.Is(err, event.ErrDuplicateEvent):
		return "duplicate"
	default:
		return "error"
	}
}

// parseQueryDate accepts both combined date-times and bare dates, since
// query filters are ranges rather than identity keys.
func parseQueryDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, true
	}
	if t, err := time.Parse("2006-01-02", s); err == nil {
		return t, true
	}
	return time.Time{}, false
}
