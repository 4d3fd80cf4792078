package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/gamelogsTOP/dotserver/internal/config"
	"github.com/gamelogsTOP/dotserver/internal/db"
	"github.com/gamelogsTOP/dotserver/internal/event"
)

type mockUserStore struct {
	findFn   func(ctx context.Context, userID string) (*db.User, error)
	createFn func(ctx context.Context, u *db.User) error
	saveFn   func(ctx context.Context, u *db.User) error
}

func (m *mockUserStore) FindByUserID(ctx context.Context, userID string) (*db.User, error) {
	if m.findFn != nil {
		return m.findFn(ctx, userID)
	}
	return nil, nil
}

func (m *mockUserStore) Create(ctx context.Context, u *db.User) error {
	if m.createFn != nil {
		return m.createFn(ctx, u)
	}
	return nil
}

func (m *mockUserStore) Save(ctx context.Context, u *db.User) error {
	if m.saveFn != nil {
		return m.saveFn(ctx, u)
	}
	return nil
}

type mockSessionWriter struct {
	puts map[string]any
	err  error
}

func (m *mockSessionWriter) Put(ctx context.Context, userID string, value any) error {
	if m.puts == nil {
		m.puts = map[string]any{}
	}
	m.puts[userID] = value
	return m.err
}

func newReconciler(users UserStore, sessions SessionWriter) *Reconciler {
	v := event.NewValidator(config.DefaultEventTypes)
	return NewReconciler(users, sessions, v, zerolog.Nop())
}

func userPayload() map[string]any {
	return map[string]any{
		"user_id":     "u1",
		"session_id":  "s1",
		"event_type":  "user_id",
		"timestamp":   "2024-01-02T00:00:00Z",
		"device_info": map[string]any{"platform": "web"},
	}
}

func TestRegisterUser_CreatesProfile(t *testing.T) {
	var createdUser *db.User
	store := &mockUserStore{
		createFn: func(ctx context.Context, u *db.User) error {
			createdUser = u
			return nil
		},
	}
	writer := &mockSessionWriter{}

	u, created, err := newReconciler(store, writer).RegisterUser(context.Background(), userPayload())
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if !created {
		t.Error("created = false, want true")
	}
	if createdUser == nil || createdUser.UserID != "u1" {
		t.Fatalf("created user = %+v", createdUser)
	}
	if u.LastSessionID != "s1" {
		t.Errorf("LastSessionID = %q, want s1", u.LastSessionID)
	}
	if u.DeviceInfo["platform"] != "web" {
		t.Errorf("DeviceInfo = %v", u.DeviceInfo)
	}
	if u.Metadata["registration_event"] != "user_id" {
		t.Errorf("metadata registration_event = %v", u.Metadata["registration_event"])
	}
	if !u.LastActive.Equal(time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("LastActive = %v", u.LastActive)
	}
	if _, ok := writer.puts["u1"]; !ok {
		t.Error("profile was not written through to the cache")
	}
}

func TestRegisterUser_MergesExistingProfile(t *testing.T) {
	existing := &db.User{
		ID:         2,
		UserID:     "u1",
		DeviceInfo: datatypes.JSONMap{"platform": "ios"},
		LastActive: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		Metadata:   datatypes.JSONMap{"plan": "free"},
	}
	saved := false
	store := &mockUserStore{
		findFn: func(ctx context.Context, userID string) (*db.User, error) {
			return existing, nil
		},
		createFn: func(ctx context.Context, u *db.User) error {
			t.Error("Create called for an existing profile")
			return nil
		},
		saveFn: func(ctx context.Context, u *db.User) error {
			saved = true
			return nil
		},
	}

	u, created, err := newReconciler(store, &mockSessionWriter{}).RegisterUser(context.Background(), userPayload())
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if created {
		t.Error("created = true, want false")
	}
	if !saved {
		t.Error("Save was not called")
	}
	if u.DeviceInfo["platform"] != "web" {
		t.Errorf("device_info not overwritten by the second call: %v", u.DeviceInfo)
	}
	if u.Metadata["plan"] != "free" {
		t.Errorf("pre-existing metadata key lost: %v", u.Metadata)
	}
	if u.Metadata["session_id"] != "s1" {
		t.Errorf("event payload not merged into metadata: %v", u.Metadata)
	}
}

func TestRegisterUser_LastActiveNeverRegresses(t *testing.T) {
	existing := &db.User{
		ID:         2,
		UserID:     "u1",
		LastActive: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC),
	}
	store := &mockUserStore{
		findFn: func(ctx context.Context, userID string) (*db.User, error) {
			return existing, nil
		},
	}

	p := userPayload() // carries an older timestamp, 2024-01-02
	u, _, err := newReconciler(store, &mockSessionWriter{}).RegisterUser(context.Background(), p)
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if !u.LastActive.Equal(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("LastActive regressed to %v", u.LastActive)
	}
	if u.LastSessionID != "s1" {
		t.Error("stale event should still merge the session id")
	}
}

func TestRegisterUser_ValidationFailureSkipsIO(t *testing.T) {
	store := &mockUserStore{
		findFn: func(ctx context.Context, userID string) (*db.User, error) {
			t.Error("store consulted for an invalid payload")
			return nil, nil
		},
	}
	writer := &mockSessionWriter{}

	_, _, err := newReconciler(store, writer).RegisterUser(context.Background(), map[string]any{
		"user_id": "u1",
	})

	var verr *event.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("err = %v, want ValidationError", err)
	}
	if len(verr.Defects) != 3 {
		t.Errorf("defects = %v, want one per missing field", verr.Defects)
	}
	if len(writer.puts) != 0 {
		t.Error("cache written for an invalid payload")
	}
}

func TestRegisterUser_CacheFailureIsSwallowed(t *testing.T) {
	store := &mockUserStore{}
	writer := &mockSessionWriter{err: errors.New("redis down")}

	_, _, err := newReconciler(store, writer).RegisterUser(context.Background(), userPayload())
	if err != nil {
		t.Fatalf("cache failure propagated: %v", err)
	}
}

func TestRegisterUser_StoreFailureIsFatal(t *testing.T) {
	store := &mockUserStore{
		createFn: func(ctx context.Context, u *db.User) error {
			return context.DeadlineExceeded
		},
	}
	writer := &mockSessionWriter{}

	_, _, err := newReconciler(store, writer).RegisterUser(context.Background(), userPayload())
	if !errors.Is(err, event.ErrStoreUnavailable) {
		t.Fatalf("err = %v, want ErrStoreUnavailable", err)
	}
	if len(writer.puts) != 0 {
		t.Error("cache written after a failed durable write")
	}
}

func TestRegisterUser_FirstRegistrationRaceFallsBackToMerge(t *testing.T) {
	winner := &db.User{ID: 9, UserID: "u1", LastActive: time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)}
	calls := 0
	store := &mockUserStore{
		findFn: func(ctx context.Context, userID string) (*db.User, error) {
			calls++
			if calls == 1 {
				return nil, nil // not yet visible
			}
			return winner, nil
		},
		createFn: func(ctx context.Context, u *db.User) error {
			return gorm.ErrDuplicatedKey
		},
	}

	u, created, err := newReconciler(store, &mockSessionWriter{}).RegisterUser(context.Background(), userPayload())
	if err != nil {
		t.Fatalf("RegisterUser: %v", err)
	}
	if created {
		t.Error("created = true after losing the insert race")
	}
	if u.ID != 9 {
		t.Errorf("merged into ID %d, want the winner's row 9", u.ID)
	}
}
