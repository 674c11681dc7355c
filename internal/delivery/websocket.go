package delivery

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aristath/agentcoord/internal/logging"
	"github.com/aristath/agentcoord/internal/registry"
)

const (
	// Time allowed to establish a connection to the peer.
	wsDialTimeout = 5 * time.Second

	// Time allowed to write a message to the peer.
	wsWriteWait = 10 * time.Second
)

// wsEnvelope is the wire frame pushed to a target endpoint.
type wsEnvelope struct {
	Type      string    `json:"type"`
	Channel   string    `json:"channel,omitempty"`
	Payload   Payload   `json:"payload"`
	Timestamp time.Time `json:"timestamp"`
}

// WebSocketTransport pushes payloads to target endpoints over WebSocket.
// Connections are dialed on first use and reused per endpoint; a failed
// write drops the connection so the next send redials.
type WebSocketTransport struct {
	mu    sync.Mutex
	conns map[string]*websocket.Conn
	log   logging.Logger
}

// NewWebSocketTransport creates a WebSocket-backed transport.
func NewWebSocketTransport(log logging.Logger) *WebSocketTransport {
	if log == nil {
		log = logging.NopLogger{}
	}
	return &WebSocketTransport{
		conns: make(map[string]*websocket.Conn),
		log:   log,
	}
}

func (t *WebSocketTransport) Name() string { return "websocket" }

func (t *WebSocketTransport) Send(ctx context.Context, payload Payload, target registry.Target) error {
	if target.Endpoint == "" {
		return fmt.Errorf("target %q has no websocket endpoint", target.AgentID)
	}

	conn, err := t.connFor(ctx, target.Endpoint)
	if err != nil {
		return fmt.Errorf("dialing %s: %w", target.Endpoint, err)
	}

	frame := wsEnvelope{
		Type:      "message",
		Channel:   target.Channel,
		Payload:   payload,
		Timestamp: time.Now().UTC(),
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return fmt.Errorf("marshaling frame: %w", err)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
		// Drop the broken connection; the next send redials.
		conn.Close()
		delete(t.conns, target.Endpoint)
		return fmt.Errorf("writing to %s: %w", target.Endpoint, err)
	}
	return nil
}

// connFor returns the cached connection for an endpoint, dialing if needed.
func (t *WebSocketTransport) connFor(ctx context.Context, endpoint string) (*websocket.Conn, error) {
	t.mu.Lock()
	if conn, ok := t.conns[endpoint]; ok {
		t.mu.Unlock()
		return conn, nil
	}
	t.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, wsDialTimeout)
	defer cancel()

	conn, _, err := websocket.DefaultDialer.DialContext(dialCtx, endpoint, nil)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	// Another sender may have dialed while we were; keep the first one.
	if existing, ok := t.conns[endpoint]; ok {
		conn.Close()
		return existing, nil
	}
	t.conns[endpoint] = conn
	t.log.Debug("websocket connected", "endpoint", endpoint)
	return conn, nil
}

// Close shuts down every open connection.
func (t *WebSocketTransport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for endpoint, conn := range t.conns {
		conn.Close()
		delete(t.conns, endpoint)
	}
	return nil
}
