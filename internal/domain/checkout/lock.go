// internal/domain/checkout/lock.go
package checkout

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/your-org/storefront-gateway/internal/domain/session"
)

const keyCheckoutLock = "checkoutLock"

// releaseScript deletes the lock only if it is still held by the given owner
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// sessionLock serializes checkout submits of one session
type sessionLock struct {
	redis *redis.Client
	ttl   time.Duration
}

func newSessionLock(redisClient *redis.Client, ttl time.Duration) *sessionLock {
	return &sessionLock{redis: redisClient, ttl: ttl}
}

// acquire takes the lock for owner, reporting false when another submit holds it
func (l *sessionLock) acquire(ctx context.Context, sessionID, owner string) (bool, error) {
	ok, err := l.redis.SetNX(ctx, session.Key(sessionID, keyCheckoutLock), owner, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire checkout lock: %w", err)
	}
	return ok, nil
}

func (l *sessionLock) release(ctx context.Context, sessionID, owner string) error {
	if err := releaseScript.Run(ctx, l.redis, []string{session.Key(sessionID, keyCheckoutLock)}, owner).Err(); err != nil {
		return fmt.Errorf("failed to release checkout lock: %w", err)
	}
	return nil
}
