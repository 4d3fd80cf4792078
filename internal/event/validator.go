package event

import (
	"fmt"
	"strings"
	"time"

	"gorm.io/datatypes"

	"github.com/gamelogsTOP/dotserver/internal/db"
)

// TypeGameScore is the one event type with merge-on-duplicate semantics.
const TypeGameScore = "game_score"

// Result is the outcome of validating one raw payload. Errors holds every
// defect found; checks never short-circuit.
type Result struct {
	Valid  bool
	Errors []string
}

// Validator checks raw event payloads against the closed event-type set.
// It never panics on missing or wrong-typed input.
type Validator struct {
	types map[string]struct{}
}

func NewValidator(eventTypes []string) *Validator {
	types := make(map[string]struct{}, len(eventTypes))
	for _, t := range eventTypes {
		types[t] = struct{}{}
	}
	return &Validator{types: types}
}

var requiredFields = []string{"user_id", "session_id", "event_type", "timestamp"}

// ValidateEvent applies the full rule set for telemetry events.
func (v *Validator) ValidateEvent(payload map[string]any) Result {
	var errs []string

	for _, field := range requiredFields {
		if !present(payload[field]) {
			errs = append(errs, "missing required field: "+field)
		}
	}

	if t := payload["event_type"]; present(t) {
		s, ok := t.(string)
		if !ok {
			errs = append(errs, fmt.Sprintf("invalid event type: %v", t))
		} else if _, allowed := v.types[s]; !allowed {
			errs = append(errs, "invalid event type: "+s)
		}
	}

	if ts := payload["timestamp"]; present(ts) {
		if _, err := ParseTimestamp(ts); err != nil {
			errs = append(errs, "invalid timestamp format, ISO date-time required")
		}
	}

	if s := payload["game_score"]; s != nil {
		if _, ok := number(s); !ok {
			errs = append(errs, "game_score must be a number")
		}
	}
	if p := payload["game_play_time"]; p != nil {
		if _, ok := number(p); !ok {
			errs = append(errs, "game_play_time must be a number")
		}
	}
	if d := payload["device_info"]; d != nil {
		if _, ok := mapping(d); !ok {
			errs = append(errs, "device_info must be an object")
		}
	}
	if c := payload["custom_params"]; c != nil {
		if _, ok := mapping(c); !ok {
			errs = append(errs, "custom_params must be an object")
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ValidateUserEvent applies the narrower rule set for user-identifying
// events: required fields, timestamp format and device_info shape only.
func (v *Validator) ValidateUserEvent(payload map[string]any) Result {
	var errs []string

	for _, field := range requiredFields {
		if !present(payload[field]) {
			errs = append(errs, "missing required field: "+field)
		}
	}

	if ts := payload["timestamp"]; present(ts) {
		if _, err := ParseTimestamp(ts); err != nil {
			errs = append(errs, "invalid timestamp format, ISO date-time required")
		}
	}

	if d := payload["device_info"]; d != nil {
		if _, ok := mapping(d); !ok {
			errs = append(errs, "device_info must be an object")
		}
	}

	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ParseTimestamp parses a combined date-time value. Date-only and
// epoch-numeric forms are rejected: the value must be a string with a
// literal 'T' separator.
func ParseTimestamp(value any) (time.Time, error) {
	s, ok := value.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("timestamp is not a string: %v", value)
	}
	if !strings.Contains(s, "T") {
		return time.Time{}, fmt.Errorf("timestamp %q lacks a date-time separator", s)
	}
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	// Zone-less client clocks still parse; treated as UTC.
	ts, err := time.Parse("2006-01-02T15:04:05", s)
	if err != nil {
		return time.Time{}, err
	}
	return ts.UTC(), nil
}

// FromPayload builds a normalized Event from a payload that already passed
// ValidateEvent.
func FromPayload(payload map[string]any) *db.Event {
	ts, _ := ParseTimestamp(payload["timestamp"])

	ev := &db.Event{
		UserID:    str(payload["user_id"]),
		SessionID: str(payload["session_id"]),
		EventType: str(payload["event_type"]),
		Timestamp: ts,
		IPAddress: str(payload["ip_address"]),
	}

	if n, ok := number(payload["game_score"]); ok {
		ev.GameScore = &n
	}
	if n, ok := number(payload["game_play_time"]); ok {
		ev.GamePlayTime = &n
	}
	if m, ok := mapping(payload["device_info"]); ok {
		ev.DeviceInfo = datatypes.JSONMap(m)
	}
	if m, ok := mapping(payload["metadata"]); ok {
		ev.Metadata = datatypes.JSONMap(m)
	}

	return ev
}

// present reports whether a required field carries a usable value. Absent
// keys, nils and empty strings all count as missing.
func present(v any) bool {
	if v == nil {
		return false
	}
	if s, ok := v.(string); ok {
		return s != ""
	}
	return true
}

func str(v any) string {
	s, _ := v.(string)
	return s
}

func number(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func mapping(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}
