package adapters

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"storefront/internal/core/cache"
	"storefront/internal/features/cart/domain"
)

// RedisCartStore manages the per-user cart documents written by the cart service.
type RedisCartStore struct {
	cache  cache.Cache
	prefix string
}

// NewRedisCartStore creates a cart store reading keys of the form <prefix><userID>.
func NewRedisCartStore(c cache.Cache, prefix string) *RedisCartStore {
	return &RedisCartStore{
		cache:  c,
		prefix: prefix,
	}
}

func (s *RedisCartStore) key(userID string) string {
	return s.prefix + userID
}

// Get returns the user's cart. A user without a cart gets an empty one.
func (s *RedisCartStore) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	data, err := s.cache.Get(ctx, s.key(userID))
	if errors.Is(err, cache.ErrCacheMiss) {
		return &domain.Cart{UserID: userID, Items: []domain.Item{}}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get cart for user %s: %w", userID, err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("failed to decode cart for user %s: %w", userID, err)
	}
	cart.UserID = userID
	if cart.Items == nil {
		cart.Items = []domain.Item{}
	}
	return &cart, nil
}

// Clear empties the user's cart. Clearing a missing cart is not an error.
func (s *RedisCartStore) Clear(ctx context.Context, userID string) error {
	if err := s.cache.Delete(ctx, s.key(userID)); err != nil {
		return fmt.Errorf("failed to clear cart for user %s: %w", userID, err)
	}
	return nil
}
