// internal/domain/cart/store.go
package cart

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/domain/session"
)

const maxTxRetries = 5

// Store owns a session's cart lines, persisted as a JSON array under the cartItems key
type Store struct {
	redis  *redis.Client
	ttl    time.Duration
	logger logrus.FieldLogger
}

// NewStore creates a new cart store
func NewStore(redisClient *redis.Client, ttl time.Duration, logger logrus.FieldLogger) *Store {
	return &Store{
		redis:  redisClient,
		ttl:    ttl,
		logger: logger,
	}
}

// Read returns the current lines of the cart. Unreadable data reads as an empty cart.
func (s *Store) Read(ctx context.Context, sessionID string) ([]Line, error) {
	raw, err := s.redis.Get(ctx, session.Key(sessionID, session.KeyCartItems)).Bytes()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("failed to read cart: %w", err)
	}
	return s.decode(sessionID, raw), nil
}

// Count returns the total quantity in the cart
func (s *Store) Count(ctx context.Context, sessionID string) (int, error) {
	lines, err := s.Read(ctx, sessionID)
	if err != nil {
		return 0, err
	}
	return Count(lines), nil
}

// AddLine increments the quantity of productID by delta, inserting the line if absent
func (s *Store) AddLine(ctx context.Context, sessionID string, productID int64, delta int) ([]Line, error) {
	if productID <= 0 {
		return nil, ErrInvalidProduct
	}
	if delta < 1 || delta > MaxLineQuantity {
		return nil, ErrInvalidQuantity
	}

	return s.mutate(ctx, sessionID, func(lines []Line) ([]Line, error) {
		for i := range lines {
			if lines[i].ProductID == productID {
				if lines[i].Quantity > MaxLineQuantity-delta {
					return nil, ErrInvalidQuantity
				}
				lines[i].Quantity += delta
				return lines, nil
			}
		}
		return append(lines, Line{ProductID: productID, Quantity: delta}), nil
	})
}

// SetQuantity sets the quantity of an existing line; values are clamped to 1..MaxLineQuantity.
// Setting the quantity of a product that is not in the cart inserts it.
func (s *Store) SetQuantity(ctx context.Context, sessionID string, productID int64, qty int) ([]Line, error) {
	if productID <= 0 {
		return nil, ErrInvalidProduct
	}
	qty = max(1, min(qty, MaxLineQuantity))

	return s.mutate(ctx, sessionID, func(lines []Line) ([]Line, error) {
		for i := range lines {
			if lines[i].ProductID == productID {
				lines[i].Quantity = qty
				return lines, nil
			}
		}
		return append(lines, Line{ProductID: productID, Quantity: qty}), nil
	})
}

// RemoveLine deletes the line for productID; removing an absent product is a no-op
func (s *Store) RemoveLine(ctx context.Context, sessionID string, productID int64) ([]Line, error) {
	return s.mutate(ctx, sessionID, func(lines []Line) ([]Line, error) {
		out := lines[:0]
		for _, l := range lines {
			if l.ProductID != productID {
				out = append(out, l)
			}
		}
		return out, nil
	})
}

// Clear empties the cart
func (s *Store) Clear(ctx context.Context, sessionID string) error {
	_, err := s.mutate(ctx, sessionID, func([]Line) ([]Line, error) { return nil, nil })
	return err
}

// mutate runs one read-modify-write of the cart under WATCH and notifies subscribers.
// An error from fn aborts the write and is returned as is.
func (s *Store) mutate(ctx context.Context, sessionID string, fn func([]Line) ([]Line, error)) ([]Line, error) {
	key := session.Key(sessionID, session.KeyCartItems)
	var result []Line
	var rejected error

	txf := func(tx *redis.Tx) error {
		raw, err := tx.Get(ctx, key).Bytes()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}

		next, err := fn(s.decode(sessionID, raw))
		if err != nil {
			rejected = err
			return err
		}
		result = normalize(next)

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			if len(result) == 0 {
				pipe.Del(ctx, key)
				return nil
			}
			data, err := json.Marshal(result)
			if err != nil {
				return err
			}
			pipe.Set(ctx, key, data, s.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxTxRetries; attempt++ {
		err := s.redis.Watch(ctx, txf, key)
		if rejected != nil {
			return nil, rejected
		}
		if err == nil {
			s.publish(ctx, sessionID, result)
			return result, nil
		}
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return nil, fmt.Errorf("failed to update cart: %w", err)
	}

	return nil, ErrConcurrentUpdate
}

func (s *Store) decode(sessionID string, raw []byte) []Line {
	if len(raw) == 0 {
		return []Line{}
	}
	var lines []Line
	if err := json.Unmarshal(raw, &lines); err != nil {
		s.logger.WithFields(logrus.Fields{
			"session_id": sessionID,
			"error":      err.Error(),
		}).Warn("cart data unreadable, treating as empty")
		return []Line{}
	}
	return normalize(lines)
}

func (s *Store) publish(ctx context.Context, sessionID string, lines []Line) {
	if lines == nil {
		lines = []Line{}
	}
	payload, err := json.Marshal(Event{
		Type:      EventCartChanged,
		SessionID: sessionID,
		Count:     Count(lines),
		Lines:     lines,
	})
	if err != nil {
		return
	}
	if err := s.redis.Publish(ctx, session.EventsChannel(sessionID), payload).Err(); err != nil {
		s.logger.WithError(err).WithField("session_id", sessionID).Warn("failed to publish cart-changed event")
	}
}
