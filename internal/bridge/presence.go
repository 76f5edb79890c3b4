package bridge

import (
	"context"
	"sync"
	"time"

	"github.com/blockboard/blockboard/internal/clock"
	"github.com/blockboard/blockboard/internal/lifecycle"
)

// PresenceState describes agent availability as seen by the dashboard.
type PresenceState string

const (
	// PresenceNotInstalled: no agent has connected since startup.
	PresenceNotInstalled PresenceState = "not_installed"
	// PresenceLoggedOut: the agent is connected but not authenticated.
	PresenceLoggedOut PresenceState = "logged_out"
	// PresenceReady: the agent is connected and logged in.
	PresenceReady PresenceState = "ready"
	// PresenceDisconnected: the agent was seen earlier but is gone now.
	PresenceDisconnected PresenceState = "disconnected"
)

// PresenceProbe determines agent availability. Implementations may be
// event-driven, polling, or both; polling remains as a correctness
// fallback because the agent can appear after the dashboard starts.
type PresenceProbe interface {
	// State returns the current presence state.
	State() PresenceState
	// Start begins observation until the context is cancelled.
	Start(ctx context.Context)
	// OnChange registers an observer for presence transitions.
	// Transitions are informational; they gate nothing.
	OnChange(fn func(old, new PresenceState))
}

// probeInterval is the polling fallback cadence.
const probeInterval = time.Second

// HubProbe infers presence from the hub's connection registry, driven
// by connect/disconnect events plus a fixed-interval poll.
type HubProbe struct {
	hub *Hub
	clk clock.Clock

	mu        sync.Mutex
	state     PresenceState
	observers []func(old, new PresenceState)
}

// NewHubProbe creates a probe over the given hub.
func NewHubProbe(hub *Hub, clk clock.Clock) *HubProbe {
	return &HubProbe{hub: hub, clk: clk, state: PresenceNotInstalled}
}

// State returns the last observed presence state.
func (p *HubProbe) State() PresenceState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// OnChange registers a presence transition observer.
func (p *HubProbe) OnChange(fn func(old, new PresenceState)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.observers = append(p.observers, fn)
}

// Start observes connect/disconnect events and polls as a fallback.
func (p *HubProbe) Start(ctx context.Context) {
	lifecycle.OnAgentConnected(func(string) { p.reevaluate() })
	lifecycle.OnAgentDisconnected(func(string) { p.reevaluate() })

	go func() {
		ticker := p.clk.NewTicker(probeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				p.reevaluate()
			}
		}
	}()
}

// reevaluate recomputes presence from the hub and fires observers on a
// transition.
func (p *HubProbe) reevaluate() {
	next := p.observe()

	p.mu.Lock()
	old := p.state
	if next == old {
		p.mu.Unlock()
		return
	}
	p.state = next
	observers := make([]func(old, new PresenceState), len(p.observers))
	copy(observers, p.observers)
	p.mu.Unlock()

	for _, fn := range observers {
		fn(old, next)
	}
}

func (p *HubProbe) observe() PresenceState {
	agent := p.hub.GetAgentByName(DefaultAgentName)
	switch {
	case agent != nil && agent.LoggedIn():
		return PresenceReady
	case agent != nil:
		return PresenceLoggedOut
	case p.hub.EverConnected():
		return PresenceDisconnected
	default:
		return PresenceNotInstalled
	}
}
