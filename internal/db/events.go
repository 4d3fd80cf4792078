package db

import (
	"context"
	"encoding/json"
	"time"

	"gorm.io/gorm"
)

// Events is the durable event store. Every method bounds its statement with
// opTimeout, so a hung connection surfaces as context.DeadlineExceeded
// instead of stalling the request.
type Events struct {
	db        *gorm.DB
	opTimeout time.Duration
}

func NewEvents(db *gorm.DB, opTimeout time.Duration) *Events {
	return &Events{db: db, opTimeout: opTimeout}
}

// FindByIdentity looks up an event by its identity key. The timestamp is an
// exact match, not a range. Returns (nil, nil) when no row exists.
func (s *Events) FindByIdentity(ctx context.Context, userID, sessionID, eventType string, ts time.Time) (*Event, error) {
	ctx, cancel := opCtx(ctx, s.opTimeout)
	defer cancel()

	var ev Event
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ? AND event_type = ? AND timestamp = ?",
			userID, sessionID, eventType, ts).
		Limit(1).Find(&ev).Error
	if err != nil {
		return nil, err
	}
	if ev.ID == 0 {
		return nil, nil
	}
	return &ev, nil
}

// Create inserts a new event row. A concurrent insert of the same identity
// key surfaces as gorm.ErrDuplicatedKey via the backstop unique index.
func (s *Events) Create(ctx context.Context, ev *Event) error {
	ctx, cancel := opCtx(ctx, s.opTimeout)
	defer cancel()
	return s.db.WithContext(ctx).Create(ev).Error
}

// AppendScore overwrites game_score and appends a history entry to
// metadata.score_history in a single statement, so concurrent score updates
// to the same row never drop each other's history entries. The reloaded row
// is returned.
func (s *Events) AppendScore(ctx context.Context, id uint, score float64, at time.Time) (*Event, error) {
	entry, err := json.Marshal(ScoreEntry{Score: score, Timestamp: at})
	if err != nil {
		return nil, err
	}

	ctx, cancel := opCtx(ctx, s.opTimeout)
	defer cancel()

	err = s.db.WithContext(ctx).Model(&Event{}).Where("id = ?", id).
		Updates(map[string]any{
			"game_score": score,
			"updated_at": at,
			"metadata": gorm.Expr(
				`jsonb_set(
					jsonb_set(
						COALESCE(metadata, '{}'::jsonb),
						'{score_history}',
						COALESCE(metadata -> 'score_history', '[]'::jsonb) || ?::jsonb
					),
					'{last_updated}',
					to_jsonb(?::text)
				)`,
				string(entry), at.Format(time.RFC3339Nano)),
		}).Error
	if err != nil {
		return nil, err
	}

	var ev Event
	if err := s.db.WithContext(ctx).First(&ev, id).Error; err != nil {
		return nil, err
	}
	return &ev, nil
}

// EventFilter narrows a Query. Zero values mean "no filter".
type EventFilter struct {
	UserID    string
	EventType string
	From      *time.Time
	To        *time.Time
	Limit     int
}

// Query returns events matching the filter, newest first.
func (s *Events) Query(ctx context.Context, f EventFilter) ([]Event, error) {
	ctx, cancel := opCtx(ctx, s.opTimeout)
	defer cancel()

	q := s.db.WithContext(ctx).Model(&Event{})
	if f.UserID != "" {
		q = q.Where("user_id = ?", f.UserID)
	}
	if f.EventType != "" {
		q = q.Where("event_type = ?", f.EventType)
	}
	if f.From != nil {
		q = q.Where("timestamp >= ?", *f.From)
	}
	if f.To != nil {
		q = q.Where("timestamp <= ?", *f.To)
	}
	if f.Limit > 0 {
		q = q.Limit(f.Limit)
	}

	var events []Event
	if err := q.Order("timestamp DESC").Find(&events).Error; err != nil {
		return nil, err
	}
	return events, nil
}
