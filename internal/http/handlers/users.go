package handlers

import (
	"context"
	"encoding/json"

	"github.com/rs/zerolog/log"
	"github.com/valyala/fasthttp"

	dbpkg "github.com/gamelogsTOP/dotserver/internal/db"
	"github.com/gamelogsTOP/dotserver/internal/event"
	"github.com/gamelogsTOP/dotserver/internal/session"
)

// UserReader is the slice of the profile store the read handlers use.
type UserReader interface {
	FindByUserID(ctx context.Context, userID string) (*dbpkg.User, error)
	List(ctx context.Context) ([]dbpkg.User, error)
}

// RegisterUser handles POST /v1/users/register: reconcile the profile and
// write it through to the session cache. 201 on first registration, 200 on
// update.
func RegisterUser(reconciler *session.Reconciler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		var payload map[string]any
		if err := json.Unmarshal(ctx.PostBody(), &payload); err != nil {
			errResponse(ctx, fasthttp.StatusBadRequest, "invalid JSON body")
			return
		}

		u, created, err := reconciler.RegisterUser(ctx, payload)
		if err != nil {
			writeDomainError(ctx, err)
			return
		}

		code := fasthttp.StatusOK
		message := "user updated"
		if created {
			code = fasthttp.StatusCreated
			message = "user created"
		}
		jsonResponse(ctx, code, map[string]any{
			"success": true,
			"created": created,
			"message": message,
			"user":    u,
		})
	}
}

// ListUsers handles GET /v1/users/list. Metadata is omitted from the
// listing; it can be arbitrarily large.
func ListUsers(users UserReader) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		list, err := users.List(ctx)
		if err != nil {
			log.Error().Err(err).Msg("user listing failed")
			writeDomainError(ctx, event.WrapStoreErr(err))
			return
		}
		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"success": true,
			"count":   len(list),
			"users":   list,
		})
	}
}

// recentEventLimit bounds the event sample returned with a profile.
const recentEventLimit = 10

// UserInfo handles GET /v1/users/{user_id}: the profile plus a sample of
// recent events and simple activity stats.
func UserInfo(users UserReader, events EventQuerier) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		userID, _ := ctx.UserValue("user_id").(string)
		if userID == "" {
			errResponse(ctx, fasthttp.StatusBadRequest, "user_id required")
			return
		}

		u, err := users.FindByUserID(ctx, userID)
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("user lookup failed")
			writeDomainError(ctx, event.WrapStoreErr(err))
			return
		}
		if u == nil {
			errResponse(ctx, fasthttp.StatusNotFound, "user not found")
			return
		}

		recent, err := events.Query(ctx, dbpkg.EventFilter{UserID: userID, Limit: recentEventLimit})
		if err != nil {
			log.Error().Err(err).Str("user_id", userID).Msg("recent events lookup failed")
			writeDomainError(ctx, event.WrapStoreErr(err))
			return
		}

		projected := make([]map[string]any, 0, len(recent))
		for _, ev := range recent {
			projected = append(projected, map[string]any{
				"type":  ev.EventType,
				"time":  ev.Timestamp,
				"score": ev.GameScore,
				"device": map[string]any{
					"platform": ev.DeviceInfo["platform"],
					"browser":  ev.DeviceInfo["browser"],
					"os":       ev.DeviceInfo["os"],
				},
			})
		}

		stats := map[string]any{"total_events": len(projected)}
		if len(recent) > 0 {
			stats["last_activity"] = recent[0].Timestamp
		}

		jsonResponse(ctx, fasthttp.StatusOK, map[string]any{
			"success": true,
			"data": map[string]any{
				"user": map[string]any{
					"id":          u.UserID,
					"last_active": u.LastActive,
					"device":      u.DeviceInfo,
				},
				"events": projected,
				"stats":  stats,
			},
		})
	}
}
