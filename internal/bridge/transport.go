package bridge

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/blockboard/blockboard/internal/clock"
	"github.com/blockboard/blockboard/internal/logging"
)

// DefaultRequestTimeout bounds every request/response exchange with the
// agent. A timeout is not an application error: it means "agent not
// present" and resolves to the call's documented default.
const DefaultRequestTimeout = 2 * time.Second

// Transport is the dashboard-side messaging API over the hub: lossy
// one-way notifications plus request/response with a timeout default.
type Transport struct {
	hub *Hub
	clk clock.Clock

	// Last auth token broadcast over the bridge. Instance-scoped so
	// separate transports (and tests) never share dedup state.
	mu            sync.Mutex
	lastAuthToken string
}

// NewTransport creates a transport over the given hub.
func NewTransport(hub *Hub, clk clock.Clock) *Transport {
	return &Transport{hub: hub, clk: clk}
}

// Notify broadcasts a fire-and-forget event frame. No acknowledgment,
// no delivery guarantee.
func (t *Transport) Notify(signal string, payload any) {
	t.hub.Broadcast(&Frame{
		Type:    "event",
		Signal:  signal,
		Payload: payload,
	})
}

// Request emits a request frame and waits for the correlated response.
// The response listener is registered before the frame is emitted, then
// raced against the timeout; exactly one of the two resolves the call.
// On timeout the documented default is returned with ok=false.
//
// If a directly addressable agent is known the frame is sent to it
// first; on absence or send failure the transport falls back to the
// broadcast channel synchronously within the same call.
func (t *Transport) Request(ctx context.Context, signal string, params any, timeout time.Duration) (*Frame, bool) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	id := uuid.New().String()
	ch := t.hub.RegisterPending(id)
	defer t.hub.UnregisterPending(id)

	frame := &Frame{
		Type:   "req",
		ID:     id,
		Signal: signal,
		Params: params,
	}

	if err := t.hub.SendToAgent(DefaultAgentName, frame); err != nil {
		t.hub.Broadcast(frame)
	}

	select {
	case resp := <-ch:
		return resp, true
	case <-t.clk.After(timeout):
		return nil, false
	case <-ctx.Done():
		return nil, false
	}
}

// InvalidateRules tells the agent its compiled rule set is stale.
func (t *Transport) InvalidateRules() {
	t.Notify(SignalRulesInvalidate, nil)
}

// SetPauseState broadcasts the new pause state.
func (t *Transport) SetPauseState(paused bool) {
	t.Notify(SignalPauseStateSet, paused)
}

// SyncAuth broadcasts the session token and identity to the agent.
// A token identical to the last one broadcast is suppressed to avoid
// redundant relay traffic.
func (t *Transport) SyncAuth(token, identity string) {
	t.mu.Lock()
	if token == t.lastAuthToken {
		t.mu.Unlock()
		return
	}
	t.lastAuthToken = token
	t.mu.Unlock()

	t.Notify(SignalAuthSync, map[string]any{
		"token":    token,
		"identity": identity,
	})
}

// SyncTheme broadcasts the dashboard theme value.
func (t *Transport) SyncTheme(theme string) {
	t.Notify(SignalThemeSync, theme)
}

// SyncActivityLogSettings broadcasts the activity log flags.
func (t *Transport) SyncActivityLogSettings(flags map[string]bool) {
	t.Notify(SignalActivityLogSettingsSync, flags)
}

// ClearBlockLog asks the agent to drop its block log.
func (t *Transport) ClearBlockLog() {
	t.Notify(SignalBlockLogClear, nil)
}

// DeleteBlockLogEntry asks the agent to drop one block log entry.
func (t *Transport) DeleteBlockLogEntry(entryID string) {
	t.Notify(SignalBlockLogDeleteEntry, entryID)
}

// PauseState asks the agent whether blocking is paused. Defaults to
// false when no agent responds; answered distinguishes a real answer
// from the timeout default.
func (t *Transport) PauseState(ctx context.Context) (paused, answered bool) {
	resp, ok := t.Request(ctx, SignalPauseStateRequest, nil, DefaultRequestTimeout)
	if !ok {
		return false, false
	}
	paused, _ = resp.Payload.(bool)
	return paused, true
}

// BlockLog fetches the agent's block log. Defaults to an empty list
// when no agent responds.
func (t *Transport) BlockLog(ctx context.Context) ([]BlockLogEntry, bool) {
	resp, ok := t.Request(ctx, SignalBlockLogRequest, nil, DefaultRequestTimeout)
	if !ok {
		return []BlockLogEntry{}, false
	}
	var entries []BlockLogEntry
	if err := decodePayload(resp.Payload, &entries); err != nil {
		logging.Warnf("[bridge] Bad block log payload: %v", err)
		return []BlockLogEntry{}, false
	}
	if entries == nil {
		entries = []BlockLogEntry{}
	}
	return entries, true
}

// StorageUsage fetches the agent's storage footprint. Defaults to zero
// usage when no agent responds.
func (t *Transport) StorageUsage(ctx context.Context) (StorageUsage, bool) {
	resp, ok := t.Request(ctx, SignalStorageUsageRequest, nil, DefaultRequestTimeout)
	if !ok {
		return StorageUsage{}, false
	}
	var usage StorageUsage
	if err := decodePayload(resp.Payload, &usage); err != nil {
		logging.Warnf("[bridge] Bad storage usage payload: %v", err)
		return StorageUsage{}, false
	}
	return usage, true
}

// decodePayload converts a generically-decoded frame payload into a
// typed value by round-tripping through JSON.
func decodePayload(payload any, v any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
