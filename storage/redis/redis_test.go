package redis_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/errs"
	rcache "github.com/Tonic56/crypto-asset-tracker-microservice/Rates/storage/redis"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func setupCache(t *testing.T, ttl time.Duration) (*rcache.Cache, *miniredis.Miniredis) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})

	return rcache.NewWithClient(client, ttl, slog.Default()), mr
}

func TestCache(t *testing.T) {
	ctx := context.Background()

	t.Run("set_then_get", func(t *testing.T) {
		cache, _ := setupCache(t, time.Minute)

		in := models.AssetResponse{
			Data:      models.Asset{ID: "bitcoin", PriceUsd: "50000.12"},
			Timestamp: 1700000000000,
		}
		require.NoError(t, cache.Set(ctx, "rates:asset:bitcoin", in))

		var out models.AssetResponse
		require.NoError(t, cache.Get(ctx, "rates:asset:bitcoin", &out))
		require.Equal(t, in, out)
	})

	t.Run("missing_key", func(t *testing.T) {
		cache, _ := setupCache(t, time.Minute)

		var out models.AssetResponse
		err := cache.Get(ctx, "rates:asset:nope", &out)
		require.True(t, errors.Is(err, errs.ErrNotFound), "got %v", err)
	})

	t.Run("entries_expire", func(t *testing.T) {
		cache, mr := setupCache(t, 30*time.Second)

		require.NoError(t, cache.Set(ctx, "rates:assets", models.AssetsResponse{}))
		mr.FastForward(31 * time.Second)

		var out models.AssetsResponse
		require.ErrorIs(t, cache.Get(ctx, "rates:assets", &out), errs.ErrNotFound)
	})

	t.Run("corrupted_entry", func(t *testing.T) {
		cache, mr := setupCache(t, time.Minute)
		require.NoError(t, mr.Set("rates:assets", "{not json"))

		var out models.AssetsResponse
		err := cache.Get(ctx, "rates:assets", &out)
		require.Error(t, err)
		require.False(t, errors.Is(err, errs.ErrNotFound))
	})
}
