// Package cache provides the Redis-backed session cache.
//
// The cache holds a non-owning projection of the latest User-shaped payload
// per player, keyed "user_<user_id>". It is write-through only: a miss means
// "no cached projection", never an error, and nothing here read-repairs from
// the durable store.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrUnavailable wraps cache transport failures. Callers treat it as
// non-fatal: the system degrades to durable-store-only lookups.
var ErrUnavailable = errors.New("cache unavailable")

// Key returns the cache key for a player's session projection.
func Key(userID string) string {
	return "user_" + userID
}

// Client is the subset of the Redis API the cache uses. *redis.Client
// satisfies it; tests substitute a fake to observe keys and TTLs.
type Client interface {
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Get(ctx context.Context, key string) *redis.StringCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Sessions is the session-projection cache over a Redis client.
type Sessions struct {
	client Client
	ttl    time.Duration
	opTTL  time.Duration
}

// Connect dials Redis and verifies the connection with a ping.
func Connect(addr, password string, sessionTTL, dialTimeout, opTimeout time.Duration) (*Sessions, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DialTimeout:  dialTimeout,
		ReadTimeout:  opTimeout,
		WriteTimeout: opTimeout,
	})

	ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return &Sessions{client: client, ttl: sessionTTL, opTTL: opTimeout}, nil
}

// NewSessions wraps an existing client; used by tests.
func NewSessions(client Client, sessionTTL, opTimeout time.Duration) *Sessions {
	return &Sessions{client: client, ttl: sessionTTL, opTTL: opTimeout}
}

// TTL reports the configured session time-to-live.
func (s *Sessions) TTL() time.Duration {
	return s.ttl
}

// Put serializes value as JSON and stores it under the user's session key,
// resetting the TTL to the full session lifetime.
func (s *Sessions) Put(ctx context.Context, userID string, value any) error {
	payload, err := json.Marshal(value)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.opTTL)
	defer cancel()
	if err := s.client.Set(ctx, Key(userID), payload, s.ttl).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Get returns the cached projection for userID. The second return value is
// false on a miss.
func (s *Sessions) Get(ctx context.Context, userID string) (map[string]any, bool, error) {
	ctx, cancel := context.WithTimeout(ctx, s.opTTL)
	defer cancel()

	raw, err := s.client.Get(ctx, Key(userID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	var value map[string]any
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, false, err
	}
	return value, true, nil
}

// Delete removes the cached projection for userID.
func (s *Sessions) Delete(ctx context.Context, userID string) error {
	ctx, cancel := context.WithTimeout(ctx, s.opTTL)
	defer cancel()
	if err := s.client.Del(ctx, Key(userID)).Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Touch refreshes the cached projection after an event merge: when an entry
// exists, its last_session_id/last_active fields are updated and the TTL is
// reset. A miss is a no-op; the cache is never repopulated from here.
func (s *Sessions) Touch(ctx context.Context, userID, sessionID string, at time.Time) error {
	value, ok, err := s.Get(ctx, userID)
	if err != nil || !ok {
		return err
	}

	value["last_session_id"] = sessionID
	value["last_active"] = at.Format(time.RFC3339Nano)
	return s.Put(ctx, userID, value)
}
