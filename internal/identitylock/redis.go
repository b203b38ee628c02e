package identitylock

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const releaseTimeout = 5 * time.Second

// releaseScript deletes the key only while it still holds our token, so an
// expired lock re-acquired by someone else is left alone.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out while the key still holds our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// RedisLocker holds identity locks as expiring redis keys. A held key is
// refreshed every third of the TTL, so the TTL only bounds how long a
// crashed holder blocks others. holds identity locks as expiring redis keys.
type RedisLocker struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	poll   time.Duration
}

// NewRedisLocker connects to the redis server at url.
func NewRedisLocker(url, prefix string, ttl, poll time.Duration) (*RedisLocker, error) {
	if strings.TrimSpace(url) == "" {
		return nil, errors.New("redis url is empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return NewRedisLockerWithClient(redis.NewClient(opts), prefix, ttl, poll), nil
}

// NewRedisLockerWithClient wraps an existing client.
func NewRedisLockerWithClient(client *redis.Client, prefix string, ttl, poll time.Duration) *RedisLocker {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	if poll <= 0 {
		poll = defaultPollInterval
	}
	return &RedisLocker{client: client, prefix: prefix, ttl: ttl, poll: poll}
}

// Key returns the redis key used for identity.
func (l *RedisLocker) Key(identity string) string {
	return l.prefix + lockName(identity)
}

// Acquire implements Locker.
func (l *RedisLocker) Acquire(ctx context.Context, identity string) (Release, error) {
	key := l.Key(identity)
	token := uuid.NewString()
	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, ctxErr
			}
			return nil, fmt.Errorf("acquire identity lock: %w", err)
		}
		if ok {
			stop := keepAlive(l.ttl/3, func(ctx context.Context) (bool, error) {
				return l.extend(ctx, key, token)
			})
			return once(func() error {
				stop()
				return l.release(key, token)
			}), nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
		}
	}
}

func (l *RedisLocker) extend(ctx context.Context, key, token string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, releaseTimeout)
	defer cancel()
	n, err := extendScript.Run(ctx, l.client, []string{key}, token, l.ttl.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("extend identity lock: %w", err)
	}
	return n == 1, nil
}

func (l *RedisLocker) release(key, token string) error {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()
	if err := releaseScript.Run(ctx, l.client, []string{key}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("release identity lock: %w", err)
	}
	return nil
}

// Ping checks connectivity.
func (l *RedisLocker) Ping(ctx context.Context) error {
	return l.client.Ping(ctx).Err()
}

// Close implements Locker.
func (l *RedisLocker) Close() error {
	return l.client.Close()
}
