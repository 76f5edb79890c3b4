// Package bridge connects the dashboard to the enforcement agent. The
// two run in isolated contexts; the only channel is this message hub,
// and the agent's presence is never guaranteed.
package bridge

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/blockboard/blockboard/internal/lifecycle"
	"github.com/blockboard/blockboard/internal/logging"
)

// DefaultAgentName is the connection name used when the agent does not
// identify itself.
const DefaultAgentName = "enforcer"

// Frame is a message between the dashboard and the agent.
type Frame struct {
	Type    string `json:"type"`              // req, res, event
	ID      string `json:"id,omitempty"`      // Request/response correlation ID
	Signal  string `json:"signal,omitempty"`  // Signal name (see signals.go)
	Params  any    `json:"params,omitempty"`  // Request parameters
	OK      bool   `json:"ok,omitempty"`      // Response success
	Payload any    `json:"payload,omitempty"` // Response data
	Error   string `json:"error,omitempty"`   // Error message
}

// AgentConnection is one connected enforcement agent.
type AgentConnection struct {
	ID        string
	Name      string
	Conn      *websocket.Conn
	Send      chan []byte
	CreatedAt time.Time

	mu       sync.Mutex
	loggedIn bool
}

// SetLoggedIn updates the agent's reported login state.
func (a *AgentConnection) SetLoggedIn(v bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.loggedIn = v
}

// LoggedIn reports the agent's last announced login state.
func (a *AgentConnection) LoggedIn() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.loggedIn
}

// EventHandler is called for unsolicited event frames from the agent.
type EventHandler func(agentID string, frame *Frame)

// Hub manages agent connections and routes response frames back to
// waiting requests.
type Hub struct {
	agentMu sync.RWMutex
	agents  map[string]*AgentConnection

	register   chan *AgentConnection
	unregister chan *AgentConnection

	eventHandler   EventHandler
	eventHandlerMu sync.RWMutex

	pendingMu sync.RWMutex
	pending   map[string]chan *Frame

	everConnected bool

	upgrader websocket.Upgrader
}

// NewHub creates a new bridge hub.
func NewHub() *Hub {
	return &Hub{
		agents:     make(map[string]*AgentConnection),
		register:   make(chan *AgentConnection, 1),
		unregister: make(chan *AgentConnection, 1),
		pending:    make(map[string]chan *Frame),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				// Agent connects from the local machine only.
				return true
			},
		},
	}
}

// Run starts the hub's register/unregister loop.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case agent := <-h.register:
			h.addAgent(agent)
		case agent := <-h.unregister:
			h.removeAgent(agent)
		}
	}
}

func (h *Hub) addAgent(newAgent *AgentConnection) {
	h.agentMu.Lock()

	name := newAgent.Name
	if name == "" {
		name = DefaultAgentName
		newAgent.Name = name
	}

	// An agent reconnect replaces the stale connection.
	if existing, ok := h.agents[name]; ok {
		logging.Infof("[bridge] Replacing agent connection %s (name=%s)", existing.ID, name)
		close(existing.Send)
		if existing.Conn != nil {
			existing.Conn.Close()
		}
	}

	h.agents[name] = newAgent
	h.everConnected = true
	h.agentMu.Unlock()

	logging.Infof("[bridge] Agent connected: %s (name=%s)", newAgent.ID, name)
	lifecycle.Emit(lifecycle.EventAgentConnected, newAgent.ID)
}

func (h *Hub) removeAgent(agent *AgentConnection) {
	h.agentMu.Lock()

	name := agent.Name
	if name == "" {
		name = DefaultAgentName
	}

	removed := false
	if existing, ok := h.agents[name]; ok && existing.ID == agent.ID {
		// Send channel may already be closed by addAgent on replace.
		func() {
			defer func() { recover() }()
			close(agent.Send)
		}()
		if agent.Conn != nil {
			agent.Conn.Close()
		}
		delete(h.agents, name)
		removed = true
	}
	h.agentMu.Unlock()

	if removed {
		lifecycle.Emit(lifecycle.EventAgentDisconnected, agent.ID)
	}
}

// GetAgentByName returns the named agent connection, or nil.
func (h *Hub) GetAgentByName(name string) *AgentConnection {
	h.agentMu.RLock()
	defer h.agentMu.RUnlock()
	if name == "" {
		name = DefaultAgentName
	}
	return h.agents[name]
}

// IsConnected reports whether any agent is connected.
func (h *Hub) IsConnected() bool {
	h.agentMu.RLock()
	defer h.agentMu.RUnlock()
	return len(h.agents) > 0
}

// EverConnected reports whether an agent has connected at least once
// since startup. Distinguishes "not installed" from "logged out".
func (h *Hub) EverConnected() bool {
	h.agentMu.RLock()
	defer h.agentMu.RUnlock()
	return h.everConnected
}

// SendToAgent sends a frame directly to the named agent.
func (h *Hub) SendToAgent(name string, frame *Frame) error {
	agent := h.GetAgentByName(name)
	if agent == nil {
		return ErrAgentUnavailable
	}
	data, err := json.Marshal(frame)
	if err != nil {
		return err
	}
	select {
	case agent.Send <- data:
		return nil
	default:
		return ErrAgentUnavailable
	}
}

// Broadcast sends a frame to every connected agent. Fire-and-forget:
// full buffers and absent agents drop the message.
func (h *Hub) Broadcast(frame *Frame) {
	h.agentMu.RLock()
	agents := make([]*AgentConnection, 0, len(h.agents))
	for _, agent := range h.agents {
		agents = append(agents, agent)
	}
	h.agentMu.RUnlock()

	data, err := json.Marshal(frame)
	if err != nil {
		return
	}
	for _, agent := range agents {
		select {
		case agent.Send <- data:
		default:
		}
	}
}

// RegisterPending registers a response listener for a correlation id.
// Must be called before the request frame is emitted.
func (h *Hub) RegisterPending(id string) chan *Frame {
	ch := make(chan *Frame, 1)
	h.pendingMu.Lock()
	h.pending[id] = ch
	h.pendingMu.Unlock()
	return ch
}

// UnregisterPending removes the response listener.
func (h *Hub) UnregisterPending(id string) {
	h.pendingMu.Lock()
	delete(h.pending, id)
	h.pendingMu.Unlock()
}

func (h *Hub) routeResponse(frame *Frame) bool {
	h.pendingMu.RLock()
	ch, ok := h.pending[frame.ID]
	h.pendingMu.RUnlock()
	if !ok {
		return false
	}
	select {
	case ch <- frame:
	default:
	}
	return true
}

// SetEventHandler sets the handler for unsolicited agent events.
func (h *Hub) SetEventHandler(handler EventHandler) {
	h.eventHandlerMu.Lock()
	defer h.eventHandlerMu.Unlock()
	h.eventHandler = handler
}

// HandleWebSocket upgrades an agent connection and starts its pumps.
func (h *Hub) HandleWebSocket(w http.ResponseWriter, r *http.Request, agentID string) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Errorf("[bridge] Upgrade error: %v", err)
		return
	}

	name := r.URL.Query().Get("name")
	if name == "" {
		name = DefaultAgentName
	}

	agent := &AgentConnection{
		ID:        agentID,
		Name:      name,
		Conn:      conn,
		Send:      make(chan []byte, 256),
		CreatedAt: time.Now(),
	}

	h.register <- agent

	go h.readPump(agent)
	go h.writePump(agent)
}

func (h *Hub) readPump(agent *AgentConnection) {
	defer func() {
		h.unregister <- agent
	}()

	agent.Conn.SetReadLimit(1024 * 1024)
	agent.Conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	agent.Conn.SetPongHandler(func(string) error {
		agent.Conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
		return nil
	})

	for {
		_, message, err := agent.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logging.Warnf("[bridge] Unexpected close from %s: %v", agent.ID, err)
			}
			break
		}
		agent.Conn.SetReadDeadline(time.Now().Add(5 * time.Minute))

		var frame Frame
		if err := json.Unmarshal(message, &frame); err != nil {
			logging.Warnf("[bridge] Invalid frame from %s: %v", agent.ID, err)
			continue
		}
		h.handleFrame(agent, &frame)
	}
}

func (h *Hub) writePump(agent *AgentConnection) {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		agent.Conn.Close()
	}()

	for {
		select {
		case message, ok := <-agent.Send:
			agent.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				agent.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := agent.Conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			agent.Conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := agent.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// handleFrame processes an incoming frame from an agent.
func (h *Hub) handleFrame(agent *AgentConnection, frame *Frame) {
	switch frame.Type {
	case "res":
		// Response to a request we sent; unmatched responses are
		// dropped (the request already timed out).
		h.routeResponse(frame)
	case "event":
		switch frame.Signal {
		case SignalAuthStatus:
			if payload, ok := frame.Payload.(map[string]any); ok {
				loggedIn, _ := payload["logged_in"].(bool)
				agent.SetLoggedIn(loggedIn)
			}
		case SignalPauseUpdated:
			if paused, ok := frame.Payload.(bool); ok {
				lifecycle.Emit(lifecycle.EventPauseUpdated, paused)
			}
		case SignalBlockLogUpdated:
			lifecycle.Emit(lifecycle.EventBlockLogUpdated, nil)
		}
		h.eventHandlerMu.RLock()
		handler := h.eventHandler
		h.eventHandlerMu.RUnlock()
		if handler != nil {
			handler(agent.ID, frame)
		}
	}
}
