// Package session reconciles user-identifying events into durable player
// profiles and keeps the session cache written through.
package session

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gamelogsTOP/dotserver/internal/db"
	"github.com/gamelogsTOP/dotserver/internal/event"
	"github.com/gamelogsTOP/dotserver/internal/metrics"
)

// UserStore is the durable-profile surface the reconciler needs.
// Implemented by db.Users; tests supply fakes.
type UserStore interface {
	FindByUserID(ctx context.Context, userID string) (*db.User, error)
	Create(ctx context.Context, u *db.User) error
	Save(ctx context.Context, u *db.User) error
}

// SessionWriter mirrors the latest profile into the cache with a full TTL.
// Implemented by cache.Sessions. May be nil when caching is disabled.
type SessionWriter interface {
	Put(ctx context.Context, userID string, value any) error
}

// Reconciler applies user-identifying events to the profile store and
// writes the result through to the session cache.
type Reconciler struct {
	users     UserStore
	sessions  SessionWriter
	validator *event.Validator
	log       zerolog.Logger
	now       func() time.Time
}

func NewReconciler(users UserStore, sessions SessionWriter, validator *event.Validator, logger zerolog.Logger) *Reconciler {
	return &Reconciler{
		users:     users,
		sessions:  sessions,
		validator: validator,
		log:       logger,
		now:       time.Now,
	}
}

// RegisterUser validates the payload, then creates or merges the profile for
// its user_id. The returned flag is true when a new profile was created.
//
// The durable write is the source of truth; the cache write-through is
// best-effort and its failure is logged, never propagated.
func (r *Reconciler) RegisterUser(ctx context.Context, payload map[string]any) (*db.User, bool, error) {
	if res := r.validator.ValidateUserEvent(payload); !res.Valid {
		return nil, false, &event.ValidationError{Defects: res.Errors}
	}

	userID, _ := payload["user_id"].(string)

	u, err := r.users.FindByUserID(ctx, userID)
	if err != nil {
		return nil, false, event.WrapStoreErr(err)
	}

	created := u == nil
	if created {
		u = &db.User{UserID: userID}
	}
	r.merge(u, payload)

	if created {
		err = r.users.Create(ctx, u)
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the first-registration race; fall back to merging into
			// the row the winner inserted.
			created = false
			u, err = r.users.FindByUserID(ctx, userID)
			if err == nil && u == nil {
				err = errors.New("profile not readable after duplicate-key insert")
			}
			if err == nil {
				r.merge(u, payload)
				err = r.users.Save(ctx, u)
			}
		}
	} else {
		err = r.users.Save(ctx, u)
	}
	if err != nil {
		return nil, false, event.WrapStoreErr(err)
	}

	if created {
		r.log.Info().Str("user_id", userID).Msg("new user created")
		metrics.UsersTotal.WithLabelValues("created").Inc()
	} else {
		r.log.Info().Str("user_id", userID).Msg("user updated")
		metrics.UsersTotal.WithLabelValues("updated").Inc()
	}

	if r.sessions != nil {
		if err := r.sessions.Put(ctx, userID, u); err != nil {
			metrics.CacheErrors.Inc()
			r.log.Warn().Err(err).Str("user_id", userID).Msg("session cache write failed")
		}
	}

	return u, created, nil
}

// merge folds a user-identifying event into a profile. The event's fields
// win on metadata key collisions. LastActive is clamped monotone: an
// out-of-order timestamp still merges everything else but never regresses
// the activity instant.
func (r *Reconciler) merge(u *db.User, payload map[string]any) {
	if sid, ok := payload["session_id"].(string); ok && sid != "" {
		u.LastSessionID = sid
	}
	if d, ok := payload["device_info"].(map[string]any); ok {
		u.DeviceInfo = datatypes.JSONMap(d)
	}

	at := r.now().UTC()
	if ts, err := event.ParseTimestamp(payload["timestamp"]); err == nil {
		at = ts
	}
	if at.After(u.LastActive) {
		u.LastActive = at
	}

	meta := datatypes.JSONMap{}
	for k, v := range u.Metadata {
		meta[k] = v
	}
	if et, ok := payload["event_type"].(string); ok {
		meta["registration_event"] = et
	}
	for k, v := range payload {
		meta[k] = v
	}
	u.Metadata = meta
}
