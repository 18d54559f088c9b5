package coincap

import (
	"context"
	"errors"
	"log/slog"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/errs"
)

type Cache interface {
	Get(ctx context.Context, key string, dst any) error
	Set(ctx context.Context, key string, value any) error
}

// CachedFetcher serves snapshots from cache while they are fresh. Cache failures fall
// through to the upstream and failed fetches are never stored.
type CachedFetcher struct {
	next  Fetcher
	cache Cache
	log   *slog.Logger
}

func NewCachedFetcher(next Fetcher, cache Cache, log *slog.Logger) *CachedFetcher {
	return &CachedFetcher{
		next:  next,
		cache: cache,
		log:   log,
	}
}

func (f *CachedFetcher) GetAssets(ctx context.Context) (*models.AssetsResponse, error) {
	return cached(ctx, f, "rates:assets", func() (*models.AssetsResponse, error) {
		return f.next.GetAssets(ctx)
	})
}

func (f *CachedFetcher) GetAsset(ctx context.Context, id string) (*models.AssetResponse, error) {
	if id == "" {
		return f.next.GetAsset(ctx, id)
	}
	return cached(ctx, f, "rates:asset:"+id, func() (*models.AssetResponse, error) {
		return f.next.GetAsset(ctx, id)
	})
}

func (f *CachedFetcher) GetAssetHistory(ctx context.Context, id string, interval models.Interval) (*models.AssetHistoryResponse, error) {
	iv, err := models.ParseInterval(string(interval))
	if id == "" || err != nil {
		return f.next.GetAssetHistory(ctx, id, interval)
	}
	return cached(ctx, f, "rates:history:"+id+":"+string(iv), func() (*models.AssetHistoryResponse, error) {
		return f.next.GetAssetHistory(ctx, id, iv)
	})
}

func cached[T any](ctx context.Context, f *CachedFetcher, key string, load func() (*T, error)) (*T, error) {
	var hit T
	err := f.cache.Get(ctx, key, &hit)
	switch {
	case err == nil:
		f.log.Debug("snapshot cache hit", "key", key)
		return &hit, nil
	case !errors.Is(err, errs.ErrNotFound):
		f.log.Warn("snapshot cache read failed", "key", key, "error", err)
	}

	fresh, err := load()
	if err != nil {
		return nil, err
	}

	if err := f.cache.Set(ctx, key, fresh); err != nil {
		f.log.Warn("snapshot cache write failed", "key", key, "error", err)
	}

	return fresh, nil
}
