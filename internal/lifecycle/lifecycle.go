// Package lifecycle provides in-process event hooks for dashboard
// components that need to react to each other without direct coupling.
package lifecycle

import "sync"

// Event types for lifecycle hooks
type Event string

const (
	// Agent bridge events
	EventAgentConnected    Event = "agent_connected"
	EventAgentDisconnected Event = "agent_disconnected"

	// Unsolicited notifications from the agent
	EventPauseUpdated    Event = "pause_updated"
	EventBlockLogUpdated Event = "block_log_updated"

	// Configuration events
	EventRulesSaved    Event = "rules_saved"
	EventPresetLoaded  Event = "preset_loaded"
	EventPresetDeleted Event = "preset_deleted"

	// Strict mode events
	EventLockActivated   Event = "lock_activated"
	EventLockDeactivated Event = "lock_deactivated"
)

// Handler is a function that handles a lifecycle event
type Handler func(event Event, data any)

// Manager manages lifecycle event subscriptions and dispatching
type Manager struct {
	mu       sync.RWMutex
	handlers map[Event][]Handler
}

// NewManager returns an empty manager. Most callers use the package
// globals; instances exist so tests can stay isolated.
func NewManager() *Manager {
	return &Manager{handlers: make(map[Event][]Handler)}
}

var global = NewManager()

// On registers a handler for a lifecycle event
func On(event Event, handler Handler) {
	global.On(event, handler)
}

// Emit dispatches an event to all registered handlers
func Emit(event Event, data any) {
	global.Emit(event, data)
}

// EmitAsync dispatches an event without blocking the caller
func EmitAsync(event Event, data any) {
	go global.Emit(event, data)
}

// On registers a handler for a lifecycle event
func (m *Manager) On(event Event, handler Handler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.handlers[event] = append(m.handlers[event], handler)
}

// Emit dispatches an event to all registered handlers synchronously.
// Handlers can spawn goroutines if they need to do slow work.
func (m *Manager) Emit(event Event, data any) {
	m.mu.RLock()
	handlers := m.handlers[event]
	m.mu.RUnlock()

	for _, h := range handlers {
		h(event, data)
	}
}

// OnAgentConnected registers an agent connected handler
func OnAgentConnected(handler func(agentID string)) {
	On(EventAgentConnected, func(e Event, data any) {
		if id, ok := data.(string); ok {
			handler(id)
		}
	})
}

// OnAgentDisconnected registers an agent disconnected handler
func OnAgentDisconnected(handler func(agentID string)) {
	On(EventAgentDisconnected, func(e Event, data any) {
		if id, ok := data.(string); ok {
			handler(id)
		}
	})
}
