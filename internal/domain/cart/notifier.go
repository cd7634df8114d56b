// internal/domain/cart/notifier.go
package cart

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront-gateway/internal/domain/session"
)

// Subscription delivers cart-changed events for one session until closed.
// Events carry the cart as of the mutation; callers still re-read for the latest state.
type Subscription struct {
	pubsub *redis.PubSub
	events chan Event
	done   chan struct{}
	once   sync.Once
}

// Subscribe starts listening for cart-changed events of a session
func (s *Store) Subscribe(ctx context.Context, sessionID string) (*Subscription, error) {
	pubsub := s.redis.Subscribe(ctx, session.EventsChannel(sessionID))

	// Wait for the subscription to be confirmed so no event published afterwards is missed
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to cart events: %w", err)
	}

	sub := &Subscription{
		pubsub: pubsub,
		events: make(chan Event, 16),
		done:   make(chan struct{}),
	}
	go sub.run(s.logger.WithField("session_id", sessionID))

	return sub, nil
}

// Events returns the channel of decoded events; it is closed when the subscription ends
func (sub *Subscription) Events() <-chan Event {
	return sub.events
}

// Close stops the subscription
func (sub *Subscription) Close() error {
	var err error
	sub.once.Do(func() {
		close(sub.done)
		err = sub.pubsub.Close()
	})
	return err
}

func (sub *Subscription) run(logger logrus.FieldLogger) {
	defer close(sub.events)

	for msg := range sub.pubsub.Channel() {
		var event Event
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			logger.WithError(err).Warn("dropping malformed cart event")
			continue
		}
		select {
		case sub.events <- event:
		case <-sub.done:
			return
		}
	}
}
