package lease

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/technerv/election-monitor/pkg/platform/sentinel"
)

const keyPrefix = "sync:lease:"

// releaseScript deletes the key only while it still carries the caller's
// token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process pointed at the same Redis.
type Redis struct {
	client *redis.Client
}

func NewRedis(client *redis.Client) *Redis {
	return &Redis{client: client}
}

func (l *Redis) Acquire(ctx context.Context, scope string, ttl time.Duration) (Release, error) {
	key := keyPrefix + scope
	token := uuid.NewString()
	ok, err := l.client.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("acquire lease %s: %w: %w", scope, sentinel.ErrUnavailable, err)
	}
	if !ok {
		return nil, sentinel.ErrHeld
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("release lease %s: %w", scope, err)
		}
		return nil
	}, nil
}
