package event

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/gamelogsTOP/dotserver/internal/db"
	"github.com/gamelogsTOP/dotserver/internal/metrics"
)

// EventStore is the durable-store surface the merger needs. Implemented by
// db.Events; tests supply fakes.
type EventStore interface {
	FindByIdentity(ctx context.Context, userID, sessionID, eventType string, ts time.Time) (*db.Event, error)
	Create(ctx context.Context, ev *db.Event) error
	AppendScore(ctx context.Context, id uint, score float64, at time.Time) (*db.Event, error)
}

// SessionToucher refreshes a cached session projection after a merge
// decision. Implemented by cache.Sessions. May be nil when caching is
// disabled.
type SessionToucher interface {
	Touch(ctx context.Context, userID, sessionID string, at time.Time) error
}

// Merger decides whether an incoming normalized event creates a new durable
// record, merges into an existing one, or is a duplicate.
//
// The lookup-then-branch sequence is not atomic against the store; the
// identity-key unique index is the backstop for the insert race, surfacing
// as ErrDuplicateEvent.
type Merger struct {
	store    EventStore
	sessions SessionToucher
	log      zerolog.Logger
	now      func() time.Time
}

func NewMerger(store EventStore, sessions SessionToucher, logger zerolog.Logger) *Merger {
	return &Merger{store: store, sessions: sessions, log: logger, now: time.Now}
}

// HandleEvent runs the merge pipeline for one normalized event.
//
// A repeated game_score identity key overwrites the score and appends to
// metadata.score_history atomically. Any other repeated identity key is an
// idempotent no-op returning the existing record.
func (m *Merger) HandleEvent(ctx context.Context, ev *db.Event) (*db.Event, error) {
	existing, err := m.store.FindByIdentity(ctx, ev.UserID, ev.SessionID, ev.EventType, ev.Timestamp)
	if err != nil {
		return nil, WrapStoreErr(err)
	}

	if existing != nil {
		if ev.EventType == TypeGameScore && ev.GameScore != nil {
			updated, err := m.store.AppendScore(ctx, existing.ID, *ev.GameScore, m.now().UTC())
			if err != nil {
				return nil, WrapStoreErr(err)
			}
			m.log.Info().
				Uint("event_id", updated.ID).
				Str("user_id", ev.UserID).
				Float64("score", *ev.GameScore).
				Msg("game score updated")
			m.touch(ctx, updated)
			return updated, nil
		}

		// Same identity key, nothing to merge: treat as idempotent replay.
		m.log.Debug().
			Uint("event_id", existing.ID).
			Str("event_type", ev.EventType).
			Str("user_id", ev.UserID).
			Msg("duplicate event ignored")
		return existing, nil
	}

	if err := m.store.Create(ctx, ev); err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			// Lost the insert race to a concurrent request with the same
			// identity key.
			return nil, fmt.Errorf("%w: %s/%s", ErrDuplicateEvent, ev.UserID, ev.EventType)
		}
		return nil, WrapStoreErr(err)
	}

	m.log.Info().
		Uint("event_id", ev.ID).
		Str("event_type", ev.EventType).
		Str("user_id", ev.UserID).
		Msg("new event saved")
	m.touch(ctx, ev)
	return ev, nil
}

// touch refreshes the session projection for the merged event. Failures are
// logged and counted, never propagated: the durable write already succeeded.
func (m *Merger) touch(ctx context.Context, ev *db.Event) {
	if m.sessions == nil {
		return
	}
	if err := m.sessions.Touch(ctx, ev.UserID, ev.SessionID, ev.Timestamp); err != nil {
		metrics.CacheErrors.Inc()
		m.log.Warn().Err(err).Str("user_id", ev.UserID).Msg("session cache refresh failed")
	}
}
