package view

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/gateway/pricefeed"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/overlay"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/format"
	"github.com/google/uuid"
)

// LiveFeed opens one price subscription and hands back its teardown.
type LiveFeed interface {
	Subscribe(ctx context.Context, assets []string, h pricefeed.Handlers) func()
}

// session is the part every live view shares: its own overlay, at most one feed
// subscription and a lifetime that ends with unmount.
type session struct {
	id     uuid.UUID
	feed   LiveFeed
	log    *slog.Logger
	prices *overlay.Overlay

	ctx    context.Context
	cancel context.CancelFunc

	// subMu serialises subscription swaps; handlers never take it.
	subMu    sync.Mutex
	teardown func()

	mu       sync.Mutex
	status   pricefeed.Status
	onChange func()
}

func newSession(feed LiveFeed, log *slog.Logger, kind string) *session {
	ctx, cancel := context.WithCancel(context.Background())
	id := uuid.New()

	return &session{
		id:     id,
		feed:   feed,
		log:    log.With("view", kind, "viewID", id.String()),
		prices: overlay.New(),
		ctx:    ctx,
		cancel: cancel,
	}
}

func (s *session) ID() uuid.UUID {
	return s.id
}

// OnChange registers fn to run after every overlay update or feed status change.
func (s *session) OnChange(fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.onChange = fn
}

func (s *session) feedStatus() pricefeed.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *session) notify() {
	s.mu.Lock()
	fn := s.onChange
	s.mu.Unlock()

	if fn != nil {
		fn()
	}
}

// subscribe replaces the current subscription with one for ids. pick may narrow a
// frame to the slots this view cares about.
func (s *session) subscribe(ids []string, pick func(models.Prices) models.Prices) {
	if s.feed == nil {
		return
	}

	s.subMu.Lock()
	defer s.subMu.Unlock()

	if s.teardown != nil {
		s.teardown()
		s.teardown = nil
	}
	if s.ctx.Err() != nil {
		return
	}

	s.mu.Lock()
	s.status = pricefeed.StatusConnecting
	s.mu.Unlock()

	s.log.Debug("opening price feed", "assets", len(ids))
	s.teardown = s.feed.Subscribe(s.ctx, ids, pricefeed.Handlers{
		OnMessage: func(frame models.Prices) {
			if pick != nil {
				frame = pick(frame)
			}
			if len(frame) == 0 {
				return
			}
			s.prices.Apply(frame)
			s.notify()
		},
		OnError: func(err error) {
			s.log.Warn("price feed error", "error", err)
		},
		OnStatusChange: func(st pricefeed.Status) {
			s.mu.Lock()
			s.status = st
			s.mu.Unlock()
			s.notify()
		},
	})
}

// close tears the subscription down and forgets every streamed price.
func (s *session) close() {
	s.cancel()

	s.subMu.Lock()
	if s.teardown != nil {
		s.teardown()
		s.teardown = nil
	}
	s.subMu.Unlock()

	s.prices.Clear()

	s.mu.Lock()
	if s.status != "" {
		s.status = pricefeed.StatusDisconnected
	}
	s.onChange = nil
	s.mu.Unlock()
}

func (s *session) closed() bool {
	return s.ctx.Err() != nil
}

func card(a models.Asset, price string) models.AssetCard {
	return models.AssetCard{
		ID:            a.ID,
		Rank:          a.Rank,
		Symbol:        a.Symbol,
		Name:          a.Name,
		Price:         format.USD(price),
		ChangePercent: format.Percent(a.ChangePercent24Hr),
		IsPositive:    a.ChangePercent().IsPositive(),
		Icon:          iconPath(a.Symbol),
	}
}

func iconPath(symbol string) string {
	if symbol == "" {
		return "/icons/generic.svg"
	}
	return "/icons/" + strings.ToLower(symbol) + ".svg"
}
