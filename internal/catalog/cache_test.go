package catalog

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T) *Cache {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCache(client, time.Minute)
}

func TestCachedProductReadSkipsRepo(t *testing.T) {
	repo := newMemRepo()
	cache := newTestCache(t)
	svc := NewService(repo, nil, cache)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{Code: "SKU-C", Name: "Cached", Stock: 7, IsActive: true})
	require.NoError(t, err)

	first, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 7, first.Stock)

	// Mutate the repo behind the cache's back: the cached copy wins
	// until the version is bumped.
	stale := repo.products[p.ID]
	stale.Stock = 99
	repo.products[p.ID] = stale

	second, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 7, second.Stock)

	require.NoError(t, cache.Bump(ctx))

	third, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.EqualValues(t, 99, third.Stock)
}

func TestUpdateProductBumpsVersion(t *testing.T) {
	repo := newMemRepo()
	cache := newTestCache(t)
	svc := NewService(repo, nil, cache)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{Code: "SKU-D", Name: "Before", IsActive: true})
	require.NoError(t, err)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Before", got.Name)

	_, err = svc.UpdateProduct(ctx, p.ID, ProductInput{Code: "SKU-D", Name: "After", IsActive: true})
	require.NoError(t, err)

	got, err = svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "After", got.Name)
}

func TestNilCacheDegradesToRepo(t *testing.T) {
	repo := newMemRepo()
	svc := NewService(repo, nil, nil)
	ctx := context.Background()

	p, err := svc.CreateProduct(ctx, ProductInput{Code: "SKU-E", Name: "Plain", IsActive: true})
	require.NoError(t, err)

	got, err := svc.GetProduct(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, "Plain", got.Name)
}
