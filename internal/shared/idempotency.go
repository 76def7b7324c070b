package shared

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

const idempotencyPending = "pending"

// IdempotencyStore remembers processed request keys in Redis.
type IdempotencyStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewIdempotencyStore constructs the store.
func NewIdempotencyStore(client *redis.Client, ttl time.Duration) *IdempotencyStore {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &IdempotencyStore{client: client, ttl: ttl}
}

// ErrIdempotencyConflict indicates a duplicate key.
var ErrIdempotencyConflict = errors.New("idempotent request already processed")

// ErrIdempotencyInFlight indicates the first request with this key has not finished.
var ErrIdempotencyInFlight = errors.New("idempotent request still in progress")

func idempotencyKey(module, key string) string {
	return "idem:" + module + ":" + key
}

// Reserve claims key for module. When the key was already completed the stored
// result is returned together with ErrIdempotencyConflict.
func (s *IdempotencyStore) Reserve(ctx context.Context, module, key string) (string, error) {
	if s == nil || s.client == nil {
		return "", errors.New("idempotency store not initialised")
	}
	if key == "" {
		return "", errors.New("idempotency key required")
	}
	if module == "" {
		return "", errors.New("idempotency module required")
	}
	k := idempotencyKey(module, key)
	ok, err := s.client.SetNX(ctx, k, idempotencyPending, s.ttl).Result()
	if err != nil {
		return "", err
	}
	if ok {
		return "", nil
	}
	prev, err := s.client.Get(ctx, k).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrIdempotencyInFlight
		}
		return "", err
	}
	if prev == idempotencyPending {
		return "", ErrIdempotencyInFlight
	}
	return prev, ErrIdempotencyConflict
}

// Complete stores the result produced for a reserved key.
func (s *IdempotencyStore) Complete(ctx context.Context, module, key, result string) error {
	if s == nil || s.client == nil {
		return nil
	}
	return s.client.Set(ctx, idempotencyKey(module, key), result, s.ttl).Err()
}

// Delete removes a key, typically used to roll back failed processing.
func (s *IdempotencyStore) Delete(ctx context.Context, module, key string) error {
	if s == nil || s.client == nil {
		return nil
	}
	if key == "" {
		return errors.New("idempotency key required")
	}
	return s.client.Del(ctx, idempotencyKey(module, key)).Err()
}
