// Package runlock guards against concurrent ingestion runs with a Redis
// advisory lock. The pipeline assumes a single writer; two runs merging
// the same price files would race each other.
package runlock

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const lockKey = "nseingest:run-lock"

// ErrAlreadyLocked is returned when another run holds the lock.
var ErrAlreadyLocked = fmt.Errorf("another ingestion run is already in progress")

// Lock is a single-run advisory lock backed by Redis SET NX with a TTL,
// so a crashed run cannot hold the lock forever.
type Lock struct {
	client *redis.Client
	token  string
	ttl    time.Duration
}

// New creates a lock against the given Redis instance. token identifies
// this process; only the holder can release the lock.
func New(addr, password string, db int, token string, ttl time.Duration) *Lock {
	return &Lock{
		client: redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: password,
			DB:       db,
		}),
		token: token,
		ttl:   ttl,
	}
}

// Acquire takes the lock, failing with ErrAlreadyLocked when a different
// run holds it.
func (l *Lock) Acquire(ctx context.Context) error {
	ok, err := l.client.SetNX(ctx, lockKey, l.token, l.ttl).Result()
	if err != nil {
		return fmt.Errorf("failed to acquire run lock: %w", err)
	}
	if !ok {
		return ErrAlreadyLocked
	}
	return nil
}

// releaseScript deletes the lock only while this process still holds
// it, in one atomic step, so an expired-and-reacquired lock is never
// deleted from under the new holder.
var releaseScript = redis.NewScript(`
if redis.call("get", KEYS[1]) == ARGV[1] then
	return redis.call("del", KEYS[1])
end
return 0
`)

// Release frees the lock if this process still holds it. A lock that
// expired or was taken over by another run is left alone.
func (l *Lock) Release(ctx context.Context) error {
	if err := releaseScript.Run(ctx, l.client, []string{lockKey}, l.token).Err(); err != nil {
		return fmt.Errorf("failed to release run lock: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection.
func (l *Lock) Close() error {
	return l.client.Close()
}
