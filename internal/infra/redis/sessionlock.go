package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	goredis "github.com/redis/go-redis/v9"
)

const sessionLockKey = "markmate:session-lock"

var releaseScript = goredis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

// SessionLock is a distributed single-flight guard around the portal session.
// The single consumer loop already serializes sessions within one process;
// the lock extends the guarantee across worker processes sharing the portal
// identity. The TTL bounds how long a crashed holder can block the system.
type SessionLock struct {
	client *goredis.Client
	ttl    time.Duration
	holder string
}

func NewSessionLock(client *goredis.Client, ttl time.Duration) (*SessionLock, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("session lock ttl must be positive")
	}

	return &SessionLock{
		client: client,
		ttl:    ttl,
		holder: uuid.NewString(),
	}, nil
}

// Acquire blocks until the lock is held or the context is canceled.
func (l *SessionLock) Acquire(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	const pollInterval = 200 * time.Millisecond

	for {
		ok, err := l.client.SetNX(ctx, sessionLockKey, l.holder, l.ttl).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire session lock: %w", err)
		}
		if ok {
			return nil
		}

		timer := time.NewTimer(pollInterval)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// Release drops the lock if this instance still holds it. Losing the lock to
// TTL expiry is not an error.
func (l *SessionLock) Release(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := releaseScript.Run(ctx, l.client, []string{sessionLockKey}, l.holder).Err(); err != nil && err != goredis.Nil {
		return fmt.Errorf("failed to release session lock: %w", err)
	}
	return nil
}
