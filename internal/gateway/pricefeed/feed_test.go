package pricefeed_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/config"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/gateway/pricefeed"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/internal/models"
	"github.com/Tonic56/crypto-asset-tracker-microservice/Rates/lib/errs"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type feedServer struct {
	*httptest.Server
	conns   chan *websocket.Conn
	queries chan url.Values
}

func startFeedServer(t *testing.T) *feedServer {
	fs := &feedServer{
		conns:   make(chan *websocket.Conn, 4),
		queries: make(chan url.Values, 4),
	}
	upgrader := websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }}

	fs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		fs.queries <- r.URL.Query()
		fs.conns <- conn
	}))
	t.Cleanup(fs.Close)

	return fs
}

func (fs *feedServer) client() *pricefeed.Client {
	return pricefeed.NewClient(config.FeedConfig{
		URL:              "ws" + strings.TrimPrefix(fs.URL, "http") + "/prices",
		HandshakeTimeout: time.Second,
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (fs *feedServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()
	select {
	case conn := <-fs.conns:
		t.Cleanup(func() { _ = conn.Close() })
		return conn
	case <-time.After(2 * time.Second):
		t.Fatal("feed client never connected")
		return nil
	}
}

type recorder struct {
	mu       sync.Mutex
	messages []models.Prices
	errors   []error
	statuses []pricefeed.Status
	events   chan string
}

func newRecorder() *recorder {
	return &recorder{events: make(chan string, 64)}
}

func (r *recorder) handlers() pricefeed.Handlers {
	return pricefeed.Handlers{
		OnMessage: func(p models.Prices) {
			r.mu.Lock()
			r.messages = append(r.messages, p)
			r.mu.Unlock()
			r.events <- "message"
		},
		OnError: func(err error) {
			r.mu.Lock()
			r.errors = append(r.errors, err)
			r.mu.Unlock()
			r.events <- "error"
		},
		OnStatusChange: func(s pricefeed.Status) {
			r.mu.Lock()
			r.statuses = append(r.statuses, s)
			r.mu.Unlock()
			r.events <- "status:" + string(s)
		},
	}
}

func (r *recorder) total() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.messages) + len(r.errors) + len(r.statuses)
}

func (r *recorder) waitFor(t *testing.T, want string) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case got := <-r.events:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timeout waiting for %q", want)
		}
	}
}

func send(t *testing.T, conn *websocket.Conn, frame string) {
	t.Helper()
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(frame)))
}

func TestOpen_DeliversFrame(t *testing.T) {
	fs := startFeedServer(t)
	rec := newRecorder()

	sub := fs.client().Open(context.Background(), []string{"bitcoin"}, rec.handlers())
	defer sub.Close()

	conn := fs.accept(t)
	assert.Equal(t, "bitcoin", (<-fs.queries).Get("assets"))
	rec.waitFor(t, "status:connected")
	assert.Equal(t, pricefeed.StatusConnected, sub.Status())

	send(t, conn, `{"bitcoin":"50000.12"}`)
	send(t, conn, `{"bitcoin":"50001.00"}`)
	rec.waitFor(t, "message")
	rec.waitFor(t, "message")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.messages, 2)
	assert.Equal(t, models.Prices{"bitcoin": "50000.12"}, rec.messages[0])
	assert.Equal(t, models.Prices{"bitcoin": "50001.00"}, rec.messages[1])
	assert.Empty(t, rec.errors)
}

func TestOpen_JoinsIdentifiers(t *testing.T) {
	fs := startFeedServer(t)

	t.Run("many", func(t *testing.T) {
		sub := fs.client().Open(context.Background(), []string{"bitcoin", "ethereum"}, newRecorder().handlers())
		defer sub.Close()
		fs.accept(t)
		assert.Equal(t, "bitcoin,ethereum", (<-fs.queries).Get("assets"))
	})

	t.Run("empty_means_all", func(t *testing.T) {
		sub := fs.client().Open(context.Background(), nil, newRecorder().handlers())
		defer sub.Close()
		fs.accept(t)
		assert.Equal(t, pricefeed.AllAssets, (<-fs.queries).Get("assets"))
	})
}

func TestOpen_MalformedFrames(t *testing.T) {
	fs := startFeedServer(t)
	rec := newRecorder()

	sub := fs.client().Open(context.Background(), []string{"bitcoin"}, rec.handlers())
	defer sub.Close()

	conn := fs.accept(t)
	rec.waitFor(t, "status:connected")

	malformed := []string{`not json`, `["bitcoin"]`, `{"bitcoin":50000}`, `null`}
	for _, frame := range malformed {
		send(t, conn, frame)
		rec.waitFor(t, "error")
	}
	send(t, conn, `{"bitcoin":"50000.12"}`)
	rec.waitFor(t, "message")

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.errors, len(malformed))
	for _, err := range rec.errors {
		assert.ErrorIs(t, err, errs.ErrMalformedFrame)
	}
	require.Len(t, rec.messages, 1)
	assert.Equal(t, models.Prices{"bitcoin": "50000.12"}, rec.messages[0])
	assert.Equal(t, pricefeed.StatusConnected, sub.Status())
}

func TestClose_SuppressesLateEvents(t *testing.T) {
	fs := startFeedServer(t)
	rec := newRecorder()

	sub := fs.client().Open(context.Background(), []string{"bitcoin"}, rec.handlers())
	sub.Close()
	seen := rec.total()

	// the dial may still complete server side; anything it sends must be dropped
	select {
	case conn := <-fs.conns:
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"bitcoin":"1"}`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`garbage`))
		_ = conn.Close()
	case <-time.After(200 * time.Millisecond):
	}

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("subscription goroutine did not exit")
	}
	assert.Equal(t, seen, rec.total())
	assert.Equal(t, pricefeed.StatusDisconnected, sub.Status())
}

func TestClose_AfterConnected(t *testing.T) {
	fs := startFeedServer(t)
	rec := newRecorder()

	sub := fs.client().Open(context.Background(), []string{"bitcoin"}, rec.handlers())
	conn := fs.accept(t)
	rec.waitFor(t, "status:connected")

	sub.Close()
	sub.Close()
	seen := rec.total()

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"bitcoin":"2"}`))
	<-sub.Done()

	assert.Equal(t, seen, rec.total())
	assert.Equal(t, pricefeed.StatusDisconnected, sub.Status())

	_, _, err := conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseNormalClosure), "got %v", err)
}

func TestRemoteClose(t *testing.T) {
	t.Run("clean_close_reports_disconnected", func(t *testing.T) {
		fs := startFeedServer(t)
		rec := newRecorder()

		sub := fs.client().Open(context.Background(), []string{"bitcoin"}, rec.handlers())
		defer sub.Close()

		conn := fs.accept(t)
		rec.waitFor(t, "status:connected")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "bye"))
		rec.waitFor(t, "status:disconnected")
		<-sub.Done()

		rec.mu.Lock()
		defer rec.mu.Unlock()
		assert.Empty(t, rec.errors)
		assert.Equal(t, []pricefeed.Status{pricefeed.StatusConnected, pricefeed.StatusDisconnected}, rec.statuses)
	})

	t.Run("abrupt_drop_reports_error_then_disconnected", func(t *testing.T) {
		fs := startFeedServer(t)
		rec := newRecorder()

		sub := fs.client().Open(context.Background(), []string{"bitcoin"}, rec.handlers())
		defer sub.Close()

		conn := fs.accept(t)
		rec.waitFor(t, "status:connected")
		_ = conn.UnderlyingConn().Close()
		rec.waitFor(t, "status:disconnected")
		<-sub.Done()

		rec.mu.Lock()
		defer rec.mu.Unlock()
		require.Len(t, rec.errors, 1)
		assert.ErrorIs(t, rec.errors[0], errs.ErrFeedTransport)
		assert.Equal(t, []pricefeed.Status{
			pricefeed.StatusConnected, pricefeed.StatusError, pricefeed.StatusDisconnected,
		}, rec.statuses)
	})
}

func TestOpen_DialFailure(t *testing.T) {
	fs := startFeedServer(t)
	client := fs.client()
	fs.Close()

	rec := newRecorder()
	sub := client.Open(context.Background(), []string{"bitcoin"}, rec.handlers())
	rec.waitFor(t, "status:disconnected")
	<-sub.Done()

	rec.mu.Lock()
	defer rec.mu.Unlock()
	require.Len(t, rec.errors, 1)
	assert.ErrorIs(t, rec.errors[0], errs.ErrFeedTransport)
	assert.Equal(t, []pricefeed.Status{pricefeed.StatusError, pricefeed.StatusDisconnected}, rec.statuses)
	assert.Empty(t, rec.messages)

	sub.Close()
	assert.Equal(t, pricefeed.StatusDisconnected, sub.Status())
}

func TestSubscribe_ReturnsTeardown(t *testing.T) {
	fs := startFeedServer(t)
	rec := newRecorder()

	teardown := fs.client().Subscribe(context.Background(), []string{"ethereum"}, rec.handlers())
	conn := fs.accept(t)
	rec.waitFor(t, "status:connected")

	teardown()
	teardown()
	seen := rec.total()

	_ = conn.WriteMessage(websocket.TextMessage, []byte(`{"ethereum":"3000.00"}`))
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, seen, rec.total())
}
