package httpapi

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"

	"github.com/agentdeck/agentdeck/internal/logging"
	"github.com/agentdeck/agentdeck/internal/orchestrator"
	"github.com/gorilla/websocket"
)

// wsClient is one connected GET /ws subscriber: a buffered send channel
// drained by a dedicated write pump goroutine, the way the teacher's
// ws.client does.
type wsClient struct {
	conn *websocket.Conn
	send chan []byte
}

func newWSClient(conn *websocket.Conn) *wsClient {
	c := &wsClient{conn: conn, send: make(chan []byte, 64)}
	go c.writePump()
	return c
}

func (c *wsClient) writePump() {
	defer c.conn.Close()
	for msg := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
}

func (c *wsClient) close() {
	close(c.send)
}

// sessionUpdateMessage is the only frame GET /ws ever sends: a full
// snapshot of tracked sessions, pushed whenever the registry changes.
// This is purely an additive push channel — every endpoint in the REST
// API works identically for a client that never connects here.
type sessionUpdateMessage struct {
	Type     string                     `json:"type"`
	Seq      uint64                     `json:"seq"`
	Sessions []*orchestrator.SessionInfo `json:"sessions"`
}

// Broadcaster fans out session-registry snapshots to connected WebSocket
// clients. It never gates or replaces REST responses.
type Broadcaster struct {
	mu       sync.RWMutex
	clients  map[*wsClient]bool
	maxConns int
	seq      atomic.Uint64
}

// NewBroadcaster returns a Broadcaster admitting up to maxConns concurrent
// WebSocket clients (0 means unlimited).
func NewBroadcaster(maxConns int) *Broadcaster {
	return &Broadcaster{
		clients:  make(map[*wsClient]bool),
		maxConns: maxConns,
	}
}

// errTooManyConnections is returned by addClient when maxConns is already
// reached.
var errTooManyConnections = &httpError{status: http.StatusServiceUnavailable, message: "too many WebSocket connections"}

func (b *Broadcaster) addClient(conn *websocket.Conn) (*wsClient, error) {
	b.mu.Lock()
	if b.maxConns > 0 && len(b.clients) >= b.maxConns {
		b.mu.Unlock()
		conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many connections"))
		conn.Close()
		return nil, errTooManyConnections
	}
	c := newWSClient(conn)
	b.clients[c] = true
	b.mu.Unlock()
	return c, nil
}

func (b *Broadcaster) removeClient(c *wsClient) {
	b.mu.Lock()
	if _, ok := b.clients[c]; ok {
		delete(b.clients, c)
		c.close()
	}
	b.mu.Unlock()
}

// Publish pushes a fresh session snapshot to every connected client. Called
// by handlers after session create, kill/remove, and debug-session
// creation. A session that a liveness recheck or the capture loop marks
// dead does not trigger a Publish.
func (b *Broadcaster) Publish(sessions []*orchestrator.SessionInfo) {
	msg := sessionUpdateMessage{
		Type:     "session_update",
		Seq:      b.seq.Add(1),
		Sessions: sessions,
	}
	data, err := json.Marshal(msg)
	if err != nil {
		logging.Logger.Warn().Err(err).Msg("broadcast_marshal_failed")
		return
	}

	b.mu.RLock()
	clients := make([]*wsClient, 0, len(b.clients))
	for c := range b.clients {
		clients = append(clients, c)
	}
	b.mu.RUnlock()

	for _, c := range clients {
		select {
		case c.send <- data:
		default:
			logging.Logger.Warn().Msg("ws_client_too_slow_disconnecting")
			b.removeClient(c)
		}
	}
}

func (b *Broadcaster) clientCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.clients)
}
