package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestNewHub(t *testing.T) {
	hub := NewHub()
	if hub == nil {
		t.Fatal("NewHub returned nil")
	}

	if hub.register == nil {
		t.Error("register channel is nil")
	}
	if hub.unregister == nil {
		t.Error("unregister channel is nil")
	}
	if hub.EverConnected() {
		t.Error("EverConnected should be false before any connection")
	}
}

func TestHubAddRemoveAgent(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	// Conn is nil for unit tests; removeAgent handles this safely.
	agent := &AgentConnection{
		ID:        "conn-1",
		Name:      DefaultAgentName,
		Send:      make(chan []byte, 256),
		CreatedAt: time.Now(),
	}

	hub.register <- agent
	time.Sleep(10 * time.Millisecond)

	retrieved := hub.GetAgentByName(DefaultAgentName)
	if retrieved == nil {
		t.Fatal("agent not found after registration")
	}
	if retrieved.ID != "conn-1" {
		t.Errorf("expected agent ID 'conn-1', got %s", retrieved.ID)
	}
	if !hub.IsConnected() {
		t.Error("IsConnected should be true")
	}
	if !hub.EverConnected() {
		t.Error("EverConnected should be true")
	}

	hub.unregister <- agent
	time.Sleep(10 * time.Millisecond)

	if hub.GetAgentByName(DefaultAgentName) != nil {
		t.Error("agent should be removed after unregistration")
	}
	if hub.IsConnected() {
		t.Error("IsConnected should be false")
	}
	if !hub.EverConnected() {
		t.Error("EverConnected should stay true after disconnect")
	}
}

func TestHubReplaceOnReconnect(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	stale := &AgentConnection{
		ID: "conn-1", Name: DefaultAgentName, Send: make(chan []byte, 256), CreatedAt: time.Now(),
	}
	fresh := &AgentConnection{
		ID: "conn-2", Name: DefaultAgentName, Send: make(chan []byte, 256), CreatedAt: time.Now(),
	}

	hub.register <- stale
	hub.register <- fresh
	time.Sleep(20 * time.Millisecond)

	retrieved := hub.GetAgentByName(DefaultAgentName)
	if retrieved == nil || retrieved.ID != "conn-2" {
		t.Fatalf("expected fresh connection to win, got %+v", retrieved)
	}

	// The stale connection's send channel is closed by the replacement.
	select {
	case _, ok := <-stale.Send:
		if ok {
			t.Error("expected stale send channel to be closed")
		}
	default:
		t.Error("stale send channel still open")
	}

	// A late unregister of the stale connection must not evict the
	// fresh one.
	hub.unregister <- stale
	time.Sleep(10 * time.Millisecond)
	if hub.GetAgentByName(DefaultAgentName) == nil {
		t.Error("fresh connection evicted by stale unregister")
	}
}

func TestSendToAgent(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	agent := &AgentConnection{
		ID: "conn-1", Name: DefaultAgentName, Send: make(chan []byte, 256), CreatedAt: time.Now(),
	}
	hub.register <- agent
	time.Sleep(10 * time.Millisecond)

	frame := &Frame{Type: "event", Signal: SignalRulesInvalidate}
	if err := hub.SendToAgent(DefaultAgentName, frame); err != nil {
		t.Errorf("SendToAgent failed: %v", err)
	}

	select {
	case msg := <-agent.Send:
		var received Frame
		if err := json.Unmarshal(msg, &received); err != nil {
			t.Errorf("failed to unmarshal frame: %v", err)
		}
		if received.Signal != SignalRulesInvalidate {
			t.Errorf("expected signal %q, got %q", SignalRulesInvalidate, received.Signal)
		}
	case <-time.After(100 * time.Millisecond):
		t.Error("no message received")
	}

	if err := hub.SendToAgent("nonexistent", frame); err == nil {
		t.Error("expected error for non-existent agent")
	}
}

func TestBroadcastDropsWhenFull(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	// Buffer of one: the second broadcast must be dropped, not block.
	agent := &AgentConnection{
		ID: "conn-1", Name: DefaultAgentName, Send: make(chan []byte, 1), CreatedAt: time.Now(),
	}
	hub.register <- agent
	time.Sleep(10 * time.Millisecond)

	done := make(chan struct{})
	go func() {
		hub.Broadcast(&Frame{Type: "event", Signal: SignalThemeSync, Payload: "dark"})
		hub.Broadcast(&Frame{Type: "event", Signal: SignalThemeSync, Payload: "light"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Broadcast blocked on a full send buffer")
	}

	if got := len(agent.Send); got != 1 {
		t.Errorf("expected exactly 1 buffered frame, got %d", got)
	}
}

func TestRouteResponse(t *testing.T) {
	hub := NewHub()

	ch := hub.RegisterPending("corr-1")
	defer hub.UnregisterPending("corr-1")

	if routed := hub.routeResponse(&Frame{Type: "res", ID: "unknown"}); routed {
		t.Error("unknown correlation id should not route")
	}

	resp := &Frame{Type: "res", ID: "corr-1", OK: true, Payload: true}
	if routed := hub.routeResponse(resp); !routed {
		t.Fatal("response did not route")
	}

	select {
	case got := <-ch:
		if !got.OK {
			t.Error("expected OK response")
		}
	default:
		t.Fatal("no response on pending channel")
	}

	// A second response for the same id resolves nothing new; the
	// buffered channel simply drops it.
	hub.routeResponse(resp)
	if got := len(ch); got != 1 {
		t.Errorf("expected 1 buffered late response, got %d", got)
	}
}

func TestWebSocketHandlerAuthStatus(t *testing.T) {
	hub := NewHub()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.HandleWebSocket(w, r, "conn-1")
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	defer ws.Close()

	time.Sleep(50 * time.Millisecond)

	agent := hub.GetAgentByName(DefaultAgentName)
	if agent == nil {
		t.Fatal("agent not registered")
	}
	if agent.LoggedIn() {
		t.Error("agent should start logged out")
	}

	status := Frame{
		Type:    "event",
		Signal:  SignalAuthStatus,
		Payload: map[string]any{"logged_in": true},
	}
	data, _ := json.Marshal(status)
	if err := ws.WriteMessage(websocket.TextMessage, data); err != nil {
		t.Fatalf("failed to send auth status: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for !agent.LoggedIn() {
		if time.Now().After(deadline) {
			t.Fatal("auth status never applied")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
