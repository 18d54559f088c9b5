package websocket

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
	readLimit  = 512
)

// Client is one browser connection bound to one mounted view.
type Client struct {
	Manager *Manager
	Conn    *websocket.Conn
	ID      uuid.UUID
	Send    chan []byte

	// Render produces the state pushed to the browser.
	Render func() any
	// Unmount releases the view once the client is gone.
	Unmount func()
	// OnMessage receives text frames sent by the browser. Optional.
	OnMessage func([]byte)

	mu     sync.Mutex
	closed bool
}

func NewClient(m *Manager, conn *websocket.Conn, id uuid.UUID) *Client {
	return &Client{
		Manager: m,
		Conn:    conn,
		ID:      id,
		Send:    make(chan []byte, 256),
	}
}

type Manager struct {
	clients    map[uuid.UUID]*Client
	mu         sync.RWMutex
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	log        *slog.Logger
}

func NewManager(log *slog.Logger) *Manager {
	return &Manager{
		clients:    make(map[uuid.UUID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		log:        log,
	}
}

func (m *Manager) Run(ctx context.Context) {
	defer close(m.done)

	for {
		select {
		case <-ctx.Done():
			m.log.Info("Manager run loop stopping...")
			m.closeAll()
			return
		case client := <-m.register:
			m.registerClient(client)
		case client := <-m.unregister:
			m.unregisterClient(client)
		}
	}
}

// Register hands client to the run loop. It reports false once the manager has stopped.
func (m *Manager) Register(client *Client) bool {
	select {
	case m.register <- client:
		return true
	case <-m.done:
		return false
	}
}

func (m *Manager) Unregister(client *Client) {
	select {
	case m.unregister <- client:
	case <-m.done:
	}
}

func (m *Manager) Count() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.clients)
}

func (m *Manager) registerClient(client *Client) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.clients[client.ID] = client
	m.log.Info("new client registered", "clientID", client.ID)
}

func (m *Manager) unregisterClient(client *Client) {
	m.mu.Lock()
	_, ok := m.clients[client.ID]
	delete(m.clients, client.ID)
	m.mu.Unlock()

	if ok {
		client.release()
		m.log.Info("client unregistered", "clientID", client.ID)
	}
}

func (m *Manager) closeAll() {
	m.mu.Lock()
	clients := m.clients
	m.clients = make(map[uuid.UUID]*Client)
	m.mu.Unlock()

	for _, client := range clients {
		client.release()
	}
	if len(clients) > 0 {
		m.log.Info("closed websocket clients", "count", len(clients))
	}
}

// Push renders the client's view and queues it for the writer.
func (c *Client) Push() {
	if c.Render == nil {
		return
	}

	jsonData, err := json.Marshal(c.Render())
	if err != nil {
		c.Manager.log.Error("failed to marshal view state", "error", err, "clientID", c.ID)
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}

	select {
	case c.Send <- jsonData:
	default:
		c.Manager.log.Warn("client send channel is full, dropping message", "clientID", c.ID)
	}
}

// release unmounts the view and closes Send so the writer says goodbye.
func (c *Client) release() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	close(c.Send)
	c.mu.Unlock()

	if c.Unmount != nil {
		c.Unmount()
	}
}

func (c *Client) Writer() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.Send:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.Manager.log.Warn("failed to write message to client", "clientID", c.ID)
				return
			}
		case <-ticker.C:
			c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *Client) Reader() {
	defer func() {
		c.Manager.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(readLimit)
	c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error { c.Conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })

	for {
		_, message, err := c.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.Manager.log.Warn("unexpected close error", "clientID", c.ID, "error", err)
			}
			break
		}
		if c.OnMessage != nil {
			c.OnMessage(message)
		}
	}
}
