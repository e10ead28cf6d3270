package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultIdempotencyTTL = 24 * time.Hour
	// pendingTTL caps how long a crashed request can hold a key.
	pendingTTL = 30 * time.Second
	// pendingMarker is stored while the reserving request is in flight.
	// Task ids are UUIDs and never collide with it.
	pendingMarker = "pending"
	// reserveAttempts covers a key that expires or is released between
	// SETNX and GET.
	reserveAttempts = 3
)

// IdempotencyStore remembers which task an Idempotency-Key created.
// Key format: idem:task:<owner_id>:<key>
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore creates an IdempotencyStore wrapping the given Redis
// client. Bound keys expire after ttl (24h when ttl <= 0).
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = defaultIdempotencyTTL
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// Reserve claims the key with SETNX. When somebody else holds it, it returns
// the bound task id, or "" while that request is still pending.
func (s *IdempotencyStore) Reserve(ctx context.Context, ownerID, key string) (string, bool, error) {
	k := idempotencyKey(ownerID, key)
	for attempt := 0; attempt < reserveAttempts; attempt++ {
		ok, err := s.client.SetNX(ctx, k, pendingMarker, pendingTTL).Result()
		if err != nil {
			return "", false, fmt.Errorf("idempotency reserve: %w", err)
		}
		if ok {
			return "", true, nil
		}

		val, err := s.client.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return "", false, fmt.Errorf("idempotency reserve: %w", err)
		}
		return boundTaskID(val), false, nil
	}
	// Still churning; report it as in flight and let the caller poll.
	return "", false, nil
}

// Remember binds the owner's key to taskID until the TTL elapses.
func (s *IdempotencyStore) Remember(ctx context.Context, ownerID, key, taskID string) error {
	if err := s.client.Set(ctx, idempotencyKey(ownerID, key), taskID, s.ttl).Err(); err != nil {
		return fmt.Errorf("idempotency remember: %w", err)
	}
	return nil
}

// Release drops the key so the next request can claim it.
func (s *IdempotencyStore) Release(ctx context.Context, ownerID, key string) error {
	if err := s.client.Del(ctx, idempotencyKey(ownerID, key)).Err(); err != nil {
		return fmt.Errorf("idempotency release: %w", err)
	}
	return nil
}

func idempotencyKey(ownerID, key string) string {
	return fmt.Sprintf("idem:task:%s:%s", ownerID, key)
}

func boundTaskID(val string) string {
	if val == pendingMarker {
		return ""
	}
	return val
}
