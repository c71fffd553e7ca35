package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var ErrNotHeld = errors.New("lock no longer held")

type lockStore interface {
	SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error)
	CompareAndDelete(ctx context.Context, key, value string) (bool, error)
}

type redisStore struct {
	client *redis.Client
}

// deletes KEYS[1] only while it still holds our token
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0`)

func (s *redisStore) SetNX(ctx context.Context, key, value string, ttl time.Duration) (bool, error) {
	return s.client.SetNX(ctx, key, value, ttl).Result()
}

func (s *redisStore) CompareAndDelete(ctx context.Context, key, value string) (bool, error) {
	n, err := releaseScript.Run(ctx, s.client, []string{key}, value).Int()
	return n == 1, err
}

// RedisLock is a SET NX lease with a TTL, so a crashed holder cannot block
// commits forever.
type RedisLock struct {
	store lockStore
	key   string
	ttl   time.Duration
	retry time.Duration
}

func NewRedisLock(addr, password, key string, ttl time.Duration) *RedisLock {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password})
	return newRedisLock(&redisStore{client: client}, key, ttl)
}

func newRedisLock(store lockStore, key string, ttl time.Duration) *RedisLock {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &RedisLock{store: store, key: key, ttl: ttl, retry: retryEvery}
}

func (l *RedisLock) Acquire(ctx context.Context) (Release, error) {
	token := uuid.NewString()
	t := time.NewTicker(l.retry)
	defer t.Stop()

	for {
		ok, err := l.store.SetNX(ctx, l.key, token, l.ttl)
		if err != nil {
			return nil, fmt.Errorf("lock %s: %w", l.key, err)
		}
		if ok {
			return func(ctx context.Context) error {
				held, err := l.store.CompareAndDelete(ctx, l.key, token)
				if err != nil {
					return fmt.Errorf("unlock %s: %w", l.key, err)
				}
				if !held {
					return ErrNotHeld
				}
				return nil
			}, nil
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("lock %s: %w", l.key, ctx.Err())
		case <-t.C:
		}
	}
}
