package delivery

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/aristath/agentcoord/internal/logging"
	"github.com/aristath/agentcoord/internal/registry"
)

// wsTestServer accepts WebSocket connections and forwards received frames.
func wsTestServer(t *testing.T) (*httptest.Server, chan []byte) {
	t.Helper()
	received := make(chan []byte, 10)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			received <- data
		}
	}))
	t.Cleanup(srv.Close)
	return srv, received
}

func TestWebSocketSend(t *testing.T) {
	srv, received := wsTestServer(t)
	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")

	transport := NewWebSocketTransport(logging.NopLogger{})
	defer transport.Close()

	payload := Format(Message{
		ID:       "m1",
		Sender:   "coordinator",
		Type:     MessageDirect,
		Priority: PriorityUrgent,
		Content:  "deploy now",
	})
	target := registry.Target{AgentID: "agent-1", Kind: "websocket", Endpoint: endpoint, Channel: "ops"}

	if err := transport.Send(context.Background(), payload, target); err != nil {
		t.Fatalf("send failed: %v", err)
	}

	select {
	case data := <-received:
		var frame wsEnvelope
		if err := json.Unmarshal(data, &frame); err != nil {
			t.Fatalf("frame not JSON: %v", err)
		}
		if frame.Type != "message" || frame.Channel != "ops" {
			t.Errorf("frame = %+v", frame)
		}
		if frame.Payload.MessageID != "m1" {
			t.Errorf("payload id = %q", frame.Payload.MessageID)
		}
		if !strings.Contains(frame.Payload.Subject, "URGENT") {
			t.Errorf("subject %q lost priority decoration", frame.Payload.Subject)
		}
	case <-time.After(time.Second):
		t.Fatal("server received nothing")
	}
}

// TestWebSocketReusesConnection sends twice and expects one connection.
func TestWebSocketReusesConnection(t *testing.T) {
	srv, received := wsTestServer(t)
	endpoint := "ws" + strings.TrimPrefix(srv.URL, "http")

	transport := NewWebSocketTransport(logging.NopLogger{})
	defer transport.Close()

	payload := Format(Message{ID: "m1", Sender: "x", Type: MessageSystem, Priority: PriorityNormal})
	target := registry.Target{AgentID: "agent-1", Kind: "websocket", Endpoint: endpoint}

	for i := 0; i < 2; i++ {
		if err := transport.Send(context.Background(), payload, target); err != nil {
			t.Fatalf("send %d failed: %v", i, err)
		}
	}
	for i := 0; i < 2; i++ {
		select {
		case <-received:
		case <-time.After(time.Second):
			t.Fatalf("frame %d not received", i)
		}
	}

	transport.mu.Lock()
	open := len(transport.conns)
	transport.mu.Unlock()
	if open != 1 {
		t.Errorf("open connections = %d, want 1", open)
	}
}

func TestWebSocketMissingEndpoint(t *testing.T) {
	transport := NewWebSocketTransport(logging.NopLogger{})
	err := transport.Send(context.Background(), Payload{}, registry.Target{AgentID: "agent-1", Kind: "websocket"})
	if err == nil {
		t.Error("send without endpoint succeeded")
	}
}
