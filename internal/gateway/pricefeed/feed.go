package pricefeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/config"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/errs"
	"github.com/gorilla/websocket"
)

// AllAssets subscribes to every asset the feed publishes.
const AllAssets = "ALL"

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusDisconnected Status = "disconnected"
	StatusError        Status = "error"
)

// Handlers receive feed events. Only OnMessage is required.
type Handlers struct {
	OnMessage      func(models.Prices)
	OnError        func(error)
	OnStatusChange func(Status)
}

type Client struct {
	url       string
	readLimit int64
	dialer    *websocket.Dialer
	log       *slog.Logger
}

func NewClient(cfg config.FeedConfig, log *slog.Logger) *Client {
	return &Client{
		url:       cfg.URL,
		readLimit: cfg.ReadLimit,
		dialer: &websocket.Dialer{
			Proxy:            websocket.DefaultDialer.Proxy,
			HandshakeTimeout: cfg.HandshakeTimeout,
		},
		log: log,
	}
}

// Subscription is one push channel. It never reconnects; once disconnected, open a new one.
type Subscription struct {
	endpoint string
	handlers Handlers
	log      *slog.Logger

	closed atomic.Bool
	status atomic.Value

	mu     sync.Mutex
	conn   *websocket.Conn
	cancel context.CancelFunc
	done   chan struct{}
}

// Open starts dialling in the background and returns immediately in the connecting state.
// An empty asset list subscribes to AllAssets.
func (c *Client) Open(ctx context.Context, assets []string, h Handlers) *Subscription {
	endpoint := c.endpoint(assets)

	ctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		endpoint: endpoint,
		handlers: h,
		log:      c.log.With("feed", endpoint),
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	s.status.Store(StatusConnecting)

	go s.run(ctx, c.dialer, c.readLimit)

	return s
}

// Subscribe is Open for callers that only need the teardown handle.
func (c *Client) Subscribe(ctx context.Context, assets []string, h Handlers) func() {
	return c.Open(ctx, assets, h).Close
}

func (c *Client) endpoint(assets []string) string {
	ids := make([]string, 0, len(assets))
	for _, id := range assets {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		ids = []string{AllAssets}
	}

	u, err := url.Parse(c.url)
	if err != nil {
		return c.url + "?assets=" + strings.Join(ids, ",")
	}
	q := u.Query()
	q.Set("assets", strings.Join(ids, ","))
	u.RawQuery = q.Encode()

	return u.String()
}

func (s *Subscription) Status() Status {
	return s.status.Load().(Status)
}

// Done is closed once the subscription's connection goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close tears the channel down. It is idempotent and no handler runs after it returns,
// except one that was already executing when Close was called.
func (s *Subscription) Close() {
	if s.closed.Swap(true) {
		return
	}
	s.status.Store(StatusDisconnected)
	s.cancel()

	s.mu.Lock()
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		_ = conn.WriteControl(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
			deadlineSoon(),
		)
		_ = conn.Close()
	}
	s.log.Debug("price feed closed")
}

func (s *Subscription) run(ctx context.Context, dialer *websocket.Dialer, readLimit int64) {
	defer close(s.done)

	conn, _, err := dialer.DialContext(ctx, s.endpoint, nil)
	if err != nil {
		if s.closed.Load() {
			return
		}
		s.log.Warn("price feed dial failed", "error", err)
		s.fail(fmt.Errorf("%w: %s", errs.ErrFeedTransport, err.Error()))
		s.disconnect()
		return
	}

	s.mu.Lock()
	if s.closed.Load() {
		s.mu.Unlock()
		_ = conn.Close()
		return
	}
	s.conn = conn
	s.mu.Unlock()
	defer conn.Close()

	if readLimit > 0 {
		conn.SetReadLimit(readLimit)
	}

	s.log.Info("price feed connected")
	s.setStatus(StatusConnected)

	for {
		_, frame, err := conn.ReadMessage()
		if err != nil {
			if s.closed.Load() {
				return
			}
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				s.log.Warn("price feed read failed", "error", err)
				s.fail(fmt.Errorf("%w: %s", errs.ErrFeedTransport, err.Error()))
			}
			s.disconnect()
			return
		}

		s.deliver(frame)
	}
}

func (s *Subscription) deliver(frame []byte) {
	if s.closed.Load() {
		return
	}

	var prices models.Prices
	if err := json.Unmarshal(frame, &prices); err != nil || prices == nil {
		if err == nil {
			err = errors.New("frame is not an object")
		}
		s.log.Debug("dropping malformed frame", "error", err)
		s.emitError(fmt.Errorf("%w: %s", errs.ErrMalformedFrame, err.Error()))
		return
	}

	if s.closed.Load() {
		return
	}
	s.handlers.OnMessage(prices)
}

func (s *Subscription) fail(err error) {
	s.emitError(err)
	s.setStatus(StatusError)
}

func (s *Subscription) emitError(err error) {
	if s.closed.Load() || s.handlers.OnError == nil {
		return
	}
	s.handlers.OnError(err)
}

func (s *Subscription) setStatus(st Status) {
	if s.closed.Load() {
		return
	}
	s.status.Store(st)
	if s.handlers.OnStatusChange != nil {
		s.handlers.OnStatusChange(st)
	}
}

func deadlineSoon() time.Time {
	return time.Now().Add(time.Second)
}

// disconnect is the terminal transition when the remote side goes away.
func (s *Subscription) disconnect() {
	s.setStatus(StatusDisconnected)
	s.closed.Store(true)
	s.cancel()
}
