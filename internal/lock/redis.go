package lock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

const (
	defaultRedisTTL  = 10 * time.Second
	defaultRetryWait = 25 * time.Millisecond
)

// releaseScript deletes the key only while it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a Locker shared by every process talking to the same Redis.
type Redis struct {
	client    *redis.Client
	prefix    string
	ttl       time.Duration
	retryWait time.Duration
}

type RedisOption func(*Redis)

// WithTTL bounds how long a crashed holder can keep a key locked.
func WithTTL(ttl time.Duration) RedisOption {
	return func(r *Redis) {
		if ttl > 0 {
			r.ttl = ttl
		}
	}
}

func WithRetryWait(wait time.Duration) RedisOption {
	return func(r *Redis) {
		if wait > 0 {
			r.retryWait = wait
		}
	}
}

func NewRedis(client *redis.Client, prefix string, opts ...RedisOption) (*Redis, error) {
	if client == nil {
		return nil, errors.New("redis lock requires a client")
	}
	r := &Redis{client: client, prefix: prefix, ttl: defaultRedisTTL, retryWait: defaultRetryWait}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

// Lock polls SET NX until it wins or ctx is done.
func (r *Redis) Lock(ctx context.Context, key string) (func(), error) {
	fullKey := r.prefix + key
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, fullKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire redis lock %s: %w", fullKey, err)
		}
		if ok {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("acquire redis lock %s: %w", fullKey, ctx.Err())
		case <-time.After(r.retryWait):
		}
	}

	return r.releaser(ctx, fullKey, token), nil
}

func (r *Redis) releaser(ctx context.Context, fullKey, token string) func() {
	var once sync.Once
	return func() {
		once.Do(func() {
			releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := releaseScript.Run(releaseCtx, r.client, []string{fullKey}, token).Err(); err != nil && !errors.Is(err, redis.Nil) {
				log.Ctx(ctx).Error().Err(err).Str("lock_key", fullKey).Msg("Failed to release redis lock")
			}
		})
	}
}
