package storage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/rl1809/stock-ledger/internal/port"
)

const (
	lockKeyPrefix        = "lock:item:"
	idempotencyKeyPrefix = "idempotency:"
	idempotencyKeyTTL    = 24 * time.Hour
	defaultLockTTL       = 10 * time.Second
	lockRetryInterval    = 10 * time.Millisecond
	unlockTimeout        = time.Second
)

// releaseLockScript deletes the lock only if it is still held by the caller's token.
var releaseLockScript = redis.NewScript(`
local key = KEYS[1]
local token = ARGV[1]

if redis.call('GET', key) == token then
	return redis.call('DEL', key)
end

return 0
`)

type RedisAdapter struct {
	client  *redis.Client
	lockTTL time.Duration
}

var (
	_ port.ItemLocker       = (*RedisAdapter)(nil)
	_ port.IdempotencyStore = (*RedisAdapter)(nil)
)

func NewRedisAdapter(client *redis.Client) *RedisAdapter {
	return &RedisAdapter{client: client, lockTTL: defaultLockTTL}
}

// WithLockTTL bounds how long a crashed holder can keep an item locked.
func (r *RedisAdapter) WithLockTTL(ttl time.Duration) *RedisAdapter {
	r.lockTTL = ttl
	return r
}

func (r *RedisAdapter) Lock(ctx context.Context, itemID string) (func(), error) {
	key := lockKeyPrefix + itemID
	token := uuid.NewString()

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.lockTTL).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			break
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(lockRetryInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), unlockTimeout)
			defer cancel()
			// a failed release expires with the TTL
			_ = releaseLockScript.Run(ctx, r.client, []string{key}, token).Err()
		})
	}, nil
}

func (r *RedisAdapter) Claim(ctx context.Context, key string) (bool, error) {
	ok, err := r.client.SetNX(ctx, idempotencyKeyPrefix+key, 1, idempotencyKeyTTL).Result()
	if err != nil {
		return false, err
	}

	return ok, nil
}

func (r *RedisAdapter) Release(ctx context.Context, key string) error {
	return r.client.Del(ctx, idempotencyKeyPrefix+key).Err()
}
