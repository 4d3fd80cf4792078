package event

import (
	"strings"
	"testing"
	"time"

	"github.com/gamelogsTOP/dotserver/internal/config"
)

func newTestValidator() *Validator {
	return NewValidator(config.DefaultEventTypes)
}

func validPayload() map[string]any {
	return map[string]any{
		"user_id":    "u1",
		"session_id": "s1",
		"event_type": "game_score",
		"timestamp":  "2024-01-01T00:00:00Z",
		"game_score": float64(10),
	}
}

func TestValidateEvent_Valid(t *testing.T) {
	res := newTestValidator().ValidateEvent(validPayload())
	if !res.Valid {
		t.Fatalf("valid payload rejected: %v", res.Errors)
	}
	if len(res.Errors) != 0 {
		t.Errorf("errors = %v, want none", res.Errors)
	}
}

func TestValidateEvent_MissingRequiredFields(t *testing.T) {
	res := newTestValidator().ValidateEvent(map[string]any{})

	if res.Valid {
		t.Fatal("empty payload accepted")
	}
	if len(res.Errors) != 4 {
		t.Fatalf("errors = %v, want one per missing field", res.Errors)
	}
	for _, field := range []string{"user_id", "session_id", "event_type", "timestamp"} {
		found := false
		for _, e := range res.Errors {
			if strings.Contains(e, field) {
				found = true
			}
		}
		if !found {
			t.Errorf("no error mentions missing field %q: %v", field, res.Errors)
		}
	}
}

func TestValidateEvent_EmptyStringCountsAsMissing(t *testing.T) {
	p := validPayload()
	p["user_id"] = ""
	res := newTestValidator().ValidateEvent(p)
	if res.Valid {
		t.Fatal("empty user_id accepted")
	}
}

func TestValidateEvent_UnknownEventType(t *testing.T) {
	p := validPayload()
	p["event_type"] = "fps_boost"
	res := newTestValidator().ValidateEvent(p)

	if res.Valid {
		t.Fatal("unknown event type accepted")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "fps_boost") {
		t.Errorf("errors = %v, want one naming fps_boost", res.Errors)
	}
}

func TestValidateEvent_DateOnlyTimestampRejected(t *testing.T) {
	p := validPayload()
	p["timestamp"] = "2024-01-01"
	res := newTestValidator().ValidateEvent(p)

	if res.Valid {
		t.Fatal("date-only timestamp accepted")
	}
	if len(res.Errors) != 1 || !strings.Contains(res.Errors[0], "timestamp") {
		t.Errorf("errors = %v, want a timestamp-format error", res.Errors)
	}
}

func TestValidateEvent_NumericTimestampRejected(t *testing.T) {
	p := validPayload()
	p["timestamp"] = float64(1704067200)
	res := newTestValidator().ValidateEvent(p)
	if res.Valid {
		t.Fatal("epoch-numeric timestamp accepted")
	}
}

func TestValidateEvent_NonNumericScoreAndPlayTime(t *testing.T) {
	p := validPayload()
	p["game_score"] = "ten"
	p["game_play_time"] = []any{1, 2}
	res := newTestValidator().ValidateEvent(p)

	if res.Valid {
		t.Fatal("non-numeric fields accepted")
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors = %v, want both defects accumulated", res.Errors)
	}
}

func TestValidateEvent_ScalarDeviceInfoAndCustomParams(t *testing.T) {
	p := validPayload()
	p["device_info"] = "chrome"
	p["custom_params"] = 42
	res := newTestValidator().ValidateEvent(p)

	if res.Valid {
		t.Fatal("scalar mappings accepted")
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors = %v, want two defects", res.Errors)
	}
}

func TestValidateEvent_AccumulatesAllDefects(t *testing.T) {
	res := newTestValidator().ValidateEvent(map[string]any{
		"event_type": "nope",
		"timestamp":  "2024-01-01",
		"game_score": "ten",
	})
	if res.Valid {
		t.Fatal("defective payload accepted")
	}
	// 2 missing fields + bad type + bad timestamp + bad score.
	if len(res.Errors) != 5 {
		t.Errorf("errors = %v, want 5 accumulated defects", res.Errors)
	}
}

func TestValidateUserEvent_IgnoresScoreRules(t *testing.T) {
	p := validPayload()
	p["game_score"] = "not-a-number"
	p["custom_params"] = "scalar"
	res := newTestValidator().ValidateUserEvent(p)

	if !res.Valid {
		t.Fatalf("user-event validation applied score rules: %v", res.Errors)
	}
}

func TestValidateUserEvent_ChecksTimestampAndDeviceInfo(t *testing.T) {
	p := validPayload()
	p["timestamp"] = "2024-01-01"
	p["device_info"] = "scalar"
	res := newTestValidator().ValidateUserEvent(p)

	if res.Valid {
		t.Fatal("defective user event accepted")
	}
	if len(res.Errors) != 2 {
		t.Errorf("errors = %v, want 2 defects", res.Errors)
	}
}

func TestParseTimestamp(t *testing.T) {
	ts, err := ParseTimestamp("2024-01-01T12:30:00Z")
	if err != nil {
		t.Fatalf("ParseTimestamp: %v", err)
	}
	want := time.Date(2024, 1, 1, 12, 30, 0, 0, time.UTC)
	if !ts.Equal(want) {
		t.Errorf("ts = %v, want %v", ts, want)
	}

	if _, err := ParseTimestamp("2024-01-01 12:30:00"); err == nil {
		t.Error("timestamp without T separator accepted")
	}

	zoneless, err := ParseTimestamp("2024-01-01T12:30:00")
	if err != nil {
		t.Fatalf("zone-less timestamp rejected: %v", err)
	}
	if !zoneless.Equal(want) {
		t.Errorf("zone-less ts = %v, want %v (UTC)", zoneless, want)
	}
}

func TestFromPayload(t *testing.T) {
	p := validPayload()
	p["game_play_time"] = float64(12.5)
	p["device_info"] = map[string]any{"platform": "web"}
	p["ip_address"] = "10.0.0.1"

	ev := FromPayload(p)

	if ev.UserID != "u1" || ev.SessionID != "s1" || ev.EventType != "game_score" {
		t.Errorf("identity fields = %q/%q/%q", ev.UserID, ev.SessionID, ev.EventType)
	}
	if ev.GameScore == nil || *ev.GameScore != 10 {
		t.Errorf("GameScore = %v, want 10", ev.GameScore)
	}
	if ev.GamePlayTime == nil || *ev.GamePlayTime != 12.5 {
		t.Errorf("GamePlayTime = %v, want 12.5", ev.GamePlayTime)
	}
	if ev.DeviceInfo["platform"] != "web" {
		t.Errorf("DeviceInfo = %v", ev.DeviceInfo)
	}
	if ev.IPAddress != "10.0.0.1" {
		t.Errorf("IPAddress = %q", ev.IPAddress)
	}
	if !ev.Timestamp.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("Timestamp = %v", ev.Timestamp)
	}
}
