package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	redis "github.com/redis/go-redis/v9"
)

// releaseScript deletes the lock only while the stored token still matches,
// so a replica whose TTL lapsed cannot release its successor's lock.
const releaseScript = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`

// Locker elects a single sweep leader across replicas. Each acquisition is
// fenced with a fresh token; only the holder of the current token can
// release the lock.
type Locker struct {
	client *redis.Client
	key    string
	script *redis.Script
}

func NewLocker(client *redis.Client) *Locker {
	if client == nil {
		return nil
	}
	return &Locker{
		client: client,
		key:    sweepLockKey,
		script: redis.NewScript(releaseScript),
	}
}

// Acquire attempts to take sweep leadership for ttl. It returns the fencing
// token and whether leadership was won.
func (l *Locker) Acquire(ctx context.Context, ttl time.Duration) (string, bool, error) {
	if l == nil || l.client == nil {
		return "", false, errors.New("sweep lock requires a redis client")
	}
	if ttl <= 0 {
		return "", false, errors.New("sweep lock ttl must be positive")
	}

	token := uuid.NewString()
	won, err := l.client.SetNX(ctx, l.key, token, ttl).Result()
	if err != nil {
		return "", false, err
	}
	return token, won, nil
}

// Release gives up sweep leadership. Releasing with an empty or stale token
// is a no-op.
func (l *Locker) Release(ctx context.Context, token string) error {
	if l == nil || l.client == nil || token == "" {
		return nil
	}
	return l.script.Run(ctx, l.client, []string{l.key}, token).Err()
}
