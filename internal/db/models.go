package db

import (
	"time"

	"gorm.io/datatypes"
)

// Event represents one telemetry occurrence reported by the game client.
//
// The (user_id, session_id, event_type, timestamp) tuple is the identity key:
// two rows may never share it. The unique index below is the durable backstop
// for the merger's own duplicate detection, which is not atomic against
// concurrent inserts. The (user_id, timestamp) index backs range queries.
type Event struct {
	ID uint `gorm:"primaryKey" json:"id"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	UserID    string    `gorm:"size:128;not null;uniqueIndex:idx_events_identity,priority:1;index:idx_events_user_time,priority:1" json:"user_id"`
	SessionID string    `gorm:"size:128;not null;uniqueIndex:idx_events_identity,priority:2" json:"session_id"`
	EventType string    `gorm:"size:64;not null;uniqueIndex:idx_events_identity,priority:3" json:"event_type"`
	Timestamp time.Time `gorm:"not null;uniqueIndex:idx_events_identity,priority:4;index:idx_events_user_time,priority:2,sort:desc" json:"timestamp"`

	GameScore    *float64 `json:"game_score,omitempty"`
	GamePlayTime *float64 `json:"game_play_time,omitempty"`

	// DeviceInfo and Metadata are open mappings; the boundary layer folds
	// user_agent into DeviceInfo, and score merges append to
	// Metadata["score_history"].
	DeviceInfo datatypes.JSONMap `gorm:"type:jsonb" json:"device_info,omitempty"`
	IPAddress  string            `gorm:"size:64" json:"ip_address,omitempty"`
	Metadata   datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`
}

// ScoreEntry is one element of Metadata["score_history"].
type ScoreEntry struct {
	Score     float64   `json:"score"`
	Timestamp time.Time `json:"timestamp"`
}

// User is a player's aggregate profile, keyed by the opaque user_id the
// client generates. At most one row exists per user_id.
//
// LastActive is clamped monotone: a reconciliation carrying an older
// timestamp still merges device info and metadata but never regresses it.
type User struct {
	ID uint `gorm:"primaryKey" json:"-"`

	UserID        string            `gorm:"uniqueIndex;size:128;not null" json:"user_id"`
	DeviceInfo    datatypes.JSONMap `gorm:"type:jsonb" json:"device_info,omitempty"`
	LastSessionID string            `gorm:"size:128" json:"last_session_id,omitempty"`
	LastActive    time.Time         `json:"last_active"`
	Metadata      datatypes.JSONMap `gorm:"type:jsonb" json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"-"`
}
