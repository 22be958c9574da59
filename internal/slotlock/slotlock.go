// Package slotlock provides short-lived Redis holds on doctor slots so that two
// concurrent bookings for the same slot cannot both reach the store.
package slotlock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrSlotHeld is returned when another request currently holds the slot.
var ErrSlotHeld = errors.New("slotlock: slot is held by another request")

const defaultTTL = 30 * time.Second

// releaseScript deletes the key only when it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Release gives up a hold. It is safe to call after the hold expired.
type Release func(ctx context.Context) error

// Locker takes slot holds in Redis.
type Locker struct {
	redis  *redis.Client
	prefix string
}

// New creates a Locker using the provided client.
func New(client *redis.Client) *Locker {
	if client == nil {
		panic("slotlock: redis client required")
	}
	return &Locker{redis: client, prefix: "clinic:slot"}
}

// Key returns the Redis key used for a doctor's slot.
func (l *Locker) Key(doctorID int64, slot time.Time) string {
	return fmt.Sprintf("%s:%d:%d", l.prefix, doctorID, slot.UTC().Unix())
}

// Hold reserves the slot for ttl. A non-positive ttl uses 30 seconds.
func (l *Locker) Hold(ctx context.Context, doctorID int64, slot time.Time, ttl time.Duration) (Release, error) {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	key := l.Key(doctorID, slot)
	token := uuid.NewString()

	ok, err := l.redis.SetNX(ctx, key, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("slotlock: hold: %w", err)
	}
	if !ok {
		return nil, ErrSlotHeld
	}
	return func(ctx context.Context) error {
		if err := releaseScript.Run(ctx, l.redis, []string{key}, token).Err(); err != nil {
			return fmt.Errorf("slotlock: release: %w", err)
		}
		return nil
	}, nil
}
