package view

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/gateway/coincap"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/overlay"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/errs"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/format"
	"golang.org/x/sync/errgroup"
)

const MsgUnavailable = "Asset or history data is unavailable."

// DetailView is a single asset page: its figures, a live price and the price history.
type DetailView struct {
	*session
	fetcher coincap.Fetcher

	mu      sync.Mutex
	assetID string
	loading bool
	err     error
	asset   *models.AssetResponse
	history *models.AssetHistoryResponse
}

func NewDetailView(fetcher coincap.Fetcher, feed LiveFeed, log *slog.Logger) *DetailView {
	return &DetailView{
		session: newSession(feed, log, "detail"),
		fetcher: fetcher,
		loading: true,
	}
}

// Mount subscribes to id and loads the asset together with its history.
// Mounting another id replaces the subscription.
func (v *DetailView) Mount(ctx context.Context, id string, interval models.Interval) error {
	if id == "" {
		err := fmt.Errorf("%w: asset id is required", errs.ErrInvalidArgument)
		v.mu.Lock()
		v.loading, v.err = false, err
		v.mu.Unlock()
		return err
	}

	v.mu.Lock()
	changed := v.assetID != id
	v.assetID = id
	v.loading = true
	v.mu.Unlock()

	if changed {
		v.prices.Clear()
		v.subscribe([]string{id}, func(frame models.Prices) models.Prices {
			if p, ok := frame[id]; ok && p != "" {
				return models.Prices{id: p}
			}
			return nil
		})
	}

	var (
		g          errgroup.Group
		asset      *models.AssetResponse
		history    *models.AssetHistoryResponse
		assetErr   error
		historyErr error
	)
	g.Go(func() error {
		asset, assetErr = v.fetcher.GetAsset(ctx, id)
		return assetErr
	})
	g.Go(func() error {
		history, historyErr = v.fetcher.GetAssetHistory(ctx, id, interval)
		return historyErr
	})
	_ = g.Wait()

	if v.closed() {
		return nil
	}

	err := assetErr
	if err == nil {
		err = historyErr
	}

	v.mu.Lock()
	if v.assetID != id {
		// a newer Mount owns the view now
		v.mu.Unlock()
		return err
	}
	v.loading = false
	v.err = err
	v.asset, v.history = asset, history
	v.mu.Unlock()

	v.notify()

	return err
}

func (v *DetailView) Unmount() {
	v.close()
}

func (v *DetailView) Render() models.DetailState {
	v.mu.Lock()
	id, loading, err, asset, history := v.assetID, v.loading, v.err, v.asset, v.history
	v.mu.Unlock()

	state := models.DetailState{
		Loading: loading,
		Status:  string(v.feedStatus()),
		History: []models.HistoryPoint{},
	}
	if loading {
		return state
	}
	if err != nil {
		state.Error = err.Error()
		return state
	}
	if asset == nil || history == nil {
		state.Error = MsgUnavailable
		return state
	}

	a := asset.Data
	if a.ID == "" {
		a.ID = id
	}
	price := overlay.DisplayPrice(a, v.prices.Snapshot())

	maxSupply := format.NotAvailable
	if a.MaxSupply != nil && *a.MaxSupply != "" {
		maxSupply = format.Number(*a.MaxSupply)
	}

	state.Asset = &models.AssetDetail{
		AssetCard: card(a, price),
		Supply:    format.Number(a.Supply),
		MaxSupply: maxSupply,
		MarketCap: format.USD(a.MarketCapUsd),
		Volume24h: format.USD(a.VolumeUsd24Hr),
		Vwap24h:   format.USD(a.Vwap24Hr),
	}
	state.History = slices.Clone(history.Data)
	if state.History == nil {
		state.History = []models.HistoryPoint{}
	}

	return state
}
