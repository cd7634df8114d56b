// internal/domain/session/store.go
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Keys of the per-session namespace
const (
	KeyCartItems          = "cartItems"
	KeyAuthToken          = "authToken"
	KeyUserID             = "userId"
	KeyUserEmail          = "userEmail"
	KeyRedirectAfterLogin = "redirectAfterLogin"
	KeyCheckoutAfterLogin = "checkoutAfterLogin"
	KeyShippingAddress    = "shippingAddress"
	KeyCheckoutState      = "checkoutState"
)

const keyPrefix = "storefront:session:"

// Key returns the Redis key holding name for a session
func Key(sessionID, name string) string {
	return fmt.Sprintf("%s%s:%s", keyPrefix, sessionID, name)
}

// EventsChannel returns the pub/sub channel for a session's change notifications
func EventsChannel(sessionID string) string {
	return fmt.Sprintf("%s%s:events", keyPrefix, sessionID)
}

// Store is the per-session key/value namespace that replaces browser local storage
type Store struct {
	redis *redis.Client
	ttl   time.Duration
}

// NewStore creates a new session store
func NewStore(redisClient *redis.Client, ttl time.Duration) *Store {
	return &Store{
		redis: redisClient,
		ttl:   ttl,
	}
}

// Get returns the value stored under key, and whether it exists
func (s *Store) Get(ctx context.Context, sessionID, key string) (string, bool, error) {
	val, err := s.redis.Get(ctx, Key(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return val, true, nil
}

// Set stores value under key and refreshes its expiry
func (s *Store) Set(ctx context.Context, sessionID, key, value string) error {
	if err := s.redis.Set(ctx, Key(sessionID, key), value, s.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	return nil
}

// Remove deletes keys; absent keys are ignored
func (s *Store) Remove(ctx context.Context, sessionID string, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	full := make([]string, len(keys))
	for i, k := range keys {
		full[i] = Key(sessionID, k)
	}
	if err := s.redis.Del(ctx, full...).Err(); err != nil {
		return fmt.Errorf("failed to remove %v: %w", keys, err)
	}
	return nil
}

// GetJSON decodes the value under key into dest. Missing keys report false.
func (s *Store) GetJSON(ctx context.Context, sessionID, key string, dest interface{}) (bool, error) {
	val, ok, err := s.Get(ctx, sessionID, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(val), dest); err != nil {
		return false, fmt.Errorf("failed to decode %s: %w", key, err)
	}
	return true, nil
}

// SetJSON encodes value as JSON and stores it under key
func (s *Store) SetJSON(ctx context.Context, sessionID, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", key, err)
	}
	return s.Set(ctx, sessionID, key, string(data))
}

// Take returns the value under key and removes it in one step
func (s *Store) Take(ctx context.Context, sessionID, key string) (string, bool, error) {
	val, err := s.redis.GetDel(ctx, Key(sessionID, key)).Result()
	if errors.Is(err, redis.Nil) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("failed to take %s: %w", key, err)
	}
	return val, true, nil
}
