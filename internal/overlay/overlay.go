package overlay

import (
	"maps"
	"sync"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
)

// Overlay holds the latest streamed price per asset for a single view.
type Overlay struct {
	mu     sync.RWMutex
	prices map[string]string
}

func New() *Overlay {
	return &Overlay{prices: make(map[string]string)}
}

// Apply replaces the slots named in the frame; other slots keep their value.
func (o *Overlay) Apply(frame models.Prices) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for id, price := range frame {
		o.prices[id] = price
	}
}

func (o *Overlay) Get(id string) (string, bool) {
	o.mu.RLock()
	defer o.mu.RUnlock()

	price, ok := o.prices[id]
	return price, ok
}

// Snapshot returns a copy safe to read without the lock.
func (o *Overlay) Snapshot() map[string]string {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return maps.Clone(o.prices)
}

func (o *Overlay) Clear() {
	o.mu.Lock()
	defer o.mu.Unlock()

	clear(o.prices)
}

// DisplayPrice is the streamed price when one is known, else the snapshot price.
func DisplayPrice(asset models.Asset, prices map[string]string) string {
	if p, ok := prices[asset.ID]; ok && p != "" {
		return p
	}
	return asset.PriceUsd
}
