package locks

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/lukeborglin-coder/jaice-dashboard-sub008/reconcile"
)

const (
	redisPrefix       = "respno:lock:"
	redisPollInterval = 50 * time.Millisecond
	releaseTimeout    = 2 * time.Second
)

// releaseScript deletes the lock only if it still carries our token, so an
// expired lease taken over by another writer is left alone.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Redis is a lease-based Locker shared by every process using the same
// Redis. A lease expires after ttl even if its holder dies.
type Redis struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
}

// NewRedis connects to redisURL and verifies the connection.
func NewRedis(redisURL string, ttl, wait time.Duration) (*Redis, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisWithClient(client, ttl, wait), nil
}

// NewRedisWithClient creates a locker from an existing Redis client.
func NewRedisWithClient(client *redis.Client, ttl, wait time.Duration) *Redis {
	return &Redis{
		client: client,
		prefix: redisPrefix,
		ttl:    ttl,
		wait:   wait,
	}
}

func (r *Redis) key(projectID string) string {
	return r.prefix + projectID
}

// Lock polls SET NX until the lease is taken, wait elapses (ErrProjectBusy)
// or ctx is done.
func (r *Redis) Lock(ctx context.Context, projectID string) (func(), error) {
	key := r.key(projectID)
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.client.SetNX(ctx, key, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", projectID, err)
		}
		if ok {
			break
		}
		if !time.Now().Before(deadline) {
			return nil, reconcile.ErrProjectBusy
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(redisPollInterval):
		}
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
			defer cancel()
			_ = releaseScript.Run(ctx, r.client, []string{key}, token).Err()
		})
	}, nil
}

// Close closes the Redis connection.
func (r *Redis) Close() error {
	return r.client.Close()
}

// Ping checks if Redis is reachable.
func (r *Redis) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
