package joblock

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "stayzen:joblock:"

// RedisStore keeps locks in Redis for multi-instance deployments. SET NX
// with a PX expiry gives atomic acquire-with-TTL; Redis expires the key on
// its own, so liveness never needs computing here.
type RedisStore struct {
	client redis.Cmdable
}

// NewRedisStore creates a Redis-backed lock store.
func NewRedisStore(client redis.Cmdable) *RedisStore {
	return &RedisStore{client: client}
}

// releaseScript deletes the key only if it is still held by the caller,
// so a lock taken over after expiry is never deleted by the old holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

func (r *RedisStore) TryAcquire(ctx context.Context, lock *Lock) error {
	ok, err := r.client.SetNX(ctx, redisKeyPrefix+lock.Key, lock.Holder, lock.TTL).Result()
	if err != nil {
		return err
	}
	if !ok {
		return ErrLockHeld
	}
	return nil
}

func (r *RedisStore) Release(ctx context.Context, key, holder string) error {
	// Deleting a key that is gone or re-owned returns 0; that is fine.
	return releaseScript.Run(ctx, r.client, []string{redisKeyPrefix + key}, holder).Err()
}

func (r *RedisStore) ForceRelease(ctx context.Context, key string) error {
	deleted, err := r.client.Del(ctx, redisKeyPrefix+key).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return ErrLockNotFound
	}
	return nil
}

func (r *RedisStore) List(ctx context.Context) ([]*Lock, error) {
	var locks []*Lock
	var cursor uint64
	now := time.Now()

	for {
		keys, next, err := r.client.Scan(ctx, cursor, redisKeyPrefix+"*", 100).Result()
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			holder, err := r.client.Get(ctx, key).Result()
			if errors.Is(err, redis.Nil) {
				continue // expired between SCAN and GET
			}
			if err != nil {
				return nil, err
			}
			ttl, err := r.client.PTTL(ctx, key).Result()
			if err != nil {
				return nil, err
			}
			locks = append(locks, &Lock{
				Key:        key[len(redisKeyPrefix):],
				Holder:     holder,
				AcquiredAt: now, // Redis tracks only remaining TTL
				TTL:        ttl,
			})
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	return locks, nil
}
