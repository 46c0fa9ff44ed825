package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"storefront/internal/core/cache"
)

const (
	keyPrefix     = "idem:order:"
	pendingMarker = "pending"
	donePrefix    = "done:"
)

// State is the outcome of a reservation attempt.
type State int

const (
	// StateNew means the caller owns the key and must Complete or Release it.
	StateNew State = iota
	// StatePending means another request holds the key.
	StatePending
	// StateCompleted means the key was already used; Result holds its outcome.
	StateCompleted
)

// Reservation is returned by Reserve.
type Reservation struct {
	State  State
	Result string
}

// Store keeps idempotency keys in the cache with a fixed retention.
type Store struct {
	cache cache.Cache
	ttl   time.Duration
}

// NewStore creates a Store backed by c.
func NewStore(c cache.Cache, ttl time.Duration) *Store {
	return &Store{cache: c, ttl: ttl}
}

func storeKey(scope, key string) string {
	return keyPrefix + scope + ":" + key
}

// Reserve claims key within scope, or reports who already has it.
func (s *Store) Reserve(ctx context.Context, scope, key string) (Reservation, error) {
	k := storeKey(scope, key)
	ok, err := s.cache.SetNX(ctx, k, []byte(pendingMarker), s.ttl)
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: failed to reserve key: %w", err)
	}
	if ok {
		return Reservation{State: StateNew}, nil
	}

	val, err := s.cache.Get(ctx, k)
	if errors.Is(err, cache.ErrCacheMiss) {
		// Released between SETNX and GET. The client can retry.
		return Reservation{State: StatePending}, nil
	}
	if err != nil {
		return Reservation{}, fmt.Errorf("idempotency: failed to read key: %w", err)
	}

	if result, done := strings.CutPrefix(string(val), donePrefix); done {
		return Reservation{State: StateCompleted, Result: result}, nil
	}
	return Reservation{State: StatePending}, nil
}

// Complete stores the result of the request that owns key.
func (s *Store) Complete(ctx context.Context, scope, key, result string) error {
	if err := s.cache.Set(ctx, storeKey(scope, key), []byte(donePrefix+result), s.ttl); err != nil {
		return fmt.Errorf("idempotency: failed to complete key: %w", err)
	}
	return nil
}

// Release frees key so the request can be retried.
func (s *Store) Release(ctx context.Context, scope, key string) error {
	if err := s.cache.Delete(ctx, storeKey(scope, key)); err != nil {
		return fmt.Errorf("idempotency: failed to release key: %w", err)
	}
	return nil
}
