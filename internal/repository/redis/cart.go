package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/a-nagdy/anasityshop/internal/domain"
	"github.com/a-nagdy/anasityshop/internal/repository"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

const keyPrefix = "cart:"

// CartRepository implements repository.CartRepository using Redis. Each
// cart is one JSON value that expires after the configured TTL of
// inactivity.
type CartRepository struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCartRepository creates a new Redis-backed cart repository.
func NewCartRepository(client *redis.Client, ttl time.Duration) *CartRepository {
	return &CartRepository{
		client: client,
		ttl:    ttl,
	}
}

var _ repository.CartRepository = (*CartRepository)(nil)

// Get retrieves a cart by user ID from Redis.
func (r *CartRepository) Get(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := r.get(ctx, r.client, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, apperrors.NotFound("cart", userID)
	}
	return cart, nil
}

// SaveIfVersion writes cart under WATCH so that a concurrent writer that
// changed the stored version in between makes this save fail with a
// conflict instead of silently overwriting it.
func (r *CartRepository) SaveIfVersion(ctx context.Context, cart *domain.Cart, expected int) error {
	key := keyPrefix + cart.UserID

	err := r.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := r.get(ctx, tx, cart.UserID)
		if err != nil {
			return err
		}

		stored := 0
		if current != nil {
			stored = current.Version
		}
		if stored != expected {
			return apperrors.Conflict("cart was modified concurrently, reload and retry")
		}

		cart.Version = expected + 1
		data, err := json.Marshal(cart)
		if err != nil {
			return fmt.Errorf("marshal cart: %w", err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, r.ttl)
			return nil
		})
		return err
	}, key)

	if errors.Is(err, redis.TxFailedErr) {
		cart.Version = expected
		return apperrors.Conflict("cart was modified concurrently, reload and retry")
	}
	if err != nil {
		var appErr *apperrors.AppError
		if errors.As(err, &appErr) {
			return err
		}
		return fmt.Errorf("redis save cart: %w", err)
	}

	return nil
}

// Delete removes a cart from Redis by user ID.
func (r *CartRepository) Delete(ctx context.Context, userID string) error {
	if err := r.client.Del(ctx, keyPrefix+userID).Err(); err != nil {
		return fmt.Errorf("redis del cart: %w", err)
	}

	return nil
}

// get returns nil, nil when no cart is stored.
func (r *CartRepository) get(ctx context.Context, c redis.Cmdable, userID string) (*domain.Cart, error) {
	data, err := c.Get(ctx, keyPrefix+userID).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get cart: %w", err)
	}

	var cart domain.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, fmt.Errorf("unmarshal cart: %w", err)
	}

	return &cart, nil
}
