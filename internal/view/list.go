package view

import (
	"context"
	"log/slog"
	"slices"
	"sync"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/gateway/coincap"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/overlay"
)

// ListView is the rates page: every listed asset with its streamed price.
type ListView struct {
	*session
	fetcher coincap.Fetcher

	mu       sync.Mutex
	loading  bool
	err      error
	snapshot *models.AssetsResponse
	ids      []string
}

// NewListView builds a list session. With a nil feed it renders snapshot prices only.
func NewListView(fetcher coincap.Fetcher, feed LiveFeed, log *slog.Logger) *ListView {
	return &ListView{
		session: newSession(feed, log, "list"),
		fetcher: fetcher,
		loading: true,
	}
}

// Mount loads the asset list and subscribes to the listed ids.
func (v *ListView) Mount(ctx context.Context) error {
	return v.load(ctx)
}

// Refresh reloads the list. The feed is replaced only when the id set changed.
func (v *ListView) Refresh(ctx context.Context) error {
	return v.load(ctx)
}

func (v *ListView) Unmount() {
	v.close()
}

func (v *ListView) load(ctx context.Context) error {
	resp, err := v.fetcher.GetAssets(ctx)
	if v.closed() {
		return nil
	}

	v.mu.Lock()
	v.loading = false
	if err != nil {
		v.err = err
		v.mu.Unlock()
		v.notify()
		return err
	}

	v.err = nil
	v.snapshot = resp
	ids := assetIDs(resp.Data)
	resubscribe := len(ids) > 0 && !slices.Equal(ids, v.ids)
	if resubscribe {
		v.ids = ids
	}
	v.mu.Unlock()

	if resubscribe {
		v.subscribe(ids, nil)
	}
	v.notify()

	return nil
}

func (v *ListView) Render() models.ListState {
	v.mu.Lock()
	loading, err, snapshot := v.loading, v.err, v.snapshot
	v.mu.Unlock()

	state := models.ListState{
		Loading: loading,
		Status:  string(v.feedStatus()),
		Cards:   []models.AssetCard{},
	}
	if err != nil {
		state.Error = err.Error()
		return state
	}
	if snapshot == nil {
		return state
	}

	prices := v.prices.Snapshot()
	for _, a := range snapshot.Data {
		state.Cards = append(state.Cards, card(a, overlay.DisplayPrice(a, prices)))
	}

	return state
}

func assetIDs(assets []models.Asset) []string {
	ids := make([]string, 0, len(assets))
	for _, a := range assets {
		ids = append(ids, a.ID)
	}
	return ids
}
