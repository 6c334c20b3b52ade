package redis

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/a-nagdy/anasityshop/internal/domain"
	apperrors "github.com/a-nagdy/anasityshop/pkg/errors"
)

func setupTestRedis(t *testing.T) (*CartRepository, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	repo := NewCartRepository(client, 24*time.Hour)
	return repo, mr
}

func sampleCart() *domain.Cart {
	now := time.Now().UTC().Truncate(time.Millisecond)
	cart := domain.NewCart("user-001", "USD", now, 24*time.Hour)
	cart.AddItem(domain.CartItem{
		ProductID: "prod-1",
		Name:      "Desk Lamp",
		Price:     4999,
		Quantity:  2,
		ImageURL:  "https://cdn.example.com/lamp.jpg",
	})
	cart.Recalculate()
	return cart
}

func storeCart(t *testing.T, mr *miniredis.Miniredis, cart *domain.Cart) {
	t.Helper()
	data, err := json.Marshal(cart)
	require.NoError(t, err)
	require.NoError(t, mr.Set("cart:"+cart.UserID, string(data)))
}

func TestCartRepository_Get_Success(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	cart.Version = 3
	storeCart(t, mr, cart)

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, cart.UserID, got.UserID)
	assert.Equal(t, 3, got.Version)
	assert.Equal(t, int64(9998), got.Subtotal)
	require.Len(t, got.Items, 1)
	assert.Equal(t, "Desk Lamp", got.Items[0].Name)
}

func TestCartRepository_Get_NotFound(t *testing.T) {
	repo, _ := setupTestRedis(t)

	got, err := repo.Get(context.Background(), "nonexistent-user")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_Get_InvalidJSON(t *testing.T) {
	repo, mr := setupTestRedis(t)

	require.NoError(t, mr.Set("cart:user-bad", "{{not-valid-json"))

	got, err := repo.Get(context.Background(), "user-bad")
	assert.Nil(t, got)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal cart")
}

func TestCartRepository_SaveIfVersion_NewCart(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	require.NoError(t, repo.SaveIfVersion(context.Background(), cart, 0))
	assert.Equal(t, 1, cart.Version)

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)

	ttl := mr.TTL("cart:" + cart.UserID)
	assert.True(t, ttl > 23*time.Hour && ttl <= 24*time.Hour, "unexpected TTL %v", ttl)
}

func TestCartRepository_SaveIfVersion_Update(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	cart.Version = 1
	storeCart(t, mr, cart)

	cart.Items = append(cart.Items, domain.CartItem{ProductID: "prod-2", Name: "Bulb", Price: 500, Quantity: 1})
	cart.Recalculate()

	require.NoError(t, repo.SaveIfVersion(context.Background(), cart, 1))

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
	assert.Len(t, got.Items, 2)
}

func TestCartRepository_SaveIfVersion_Mismatch(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	cart.Version = 1
	storeCart(t, mr, cart)

	err := repo.SaveIfVersion(context.Background(), cart, 99)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	got, err := repo.Get(context.Background(), cart.UserID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.Version)
}

func TestCartRepository_SaveIfVersion_MissingCartWithVersion(t *testing.T) {
	repo, _ := setupTestRedis(t)

	cart := sampleCart()
	err := repo.SaveIfVersion(context.Background(), cart, 5)
	assert.ErrorIs(t, err, apperrors.ErrConflict)

	_, err = repo.Get(context.Background(), cart.UserID)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestCartRepository_SaveIfVersion_ConcurrentWritersOneWins(t *testing.T) {
	repo, mr := setupTestRedis(t)

	base := sampleCart()
	base.Version = 1
	storeCart(t, mr, base)

	const writers = 8
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, fails int
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c := *base
			c.Items = append([]domain.CartItem(nil), base.Items...)
			err := repo.SaveIfVersion(context.Background(), &c, 1)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				ok++
			} else {
				assert.ErrorIs(t, err, apperrors.ErrConflict)
				fails++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, ok)
	assert.Equal(t, writers-1, fails)

	got, err := repo.Get(context.Background(), base.UserID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.Version)
}

func TestCartRepository_Delete(t *testing.T) {
	repo, mr := setupTestRedis(t)

	cart := sampleCart()
	storeCart(t, mr, cart)

	require.NoError(t, repo.Delete(context.Background(), cart.UserID))
	assert.False(t, mr.Exists("cart:"+cart.UserID))

	assert.NoError(t, repo.Delete(context.Background(), "nonexistent-user"))
}
