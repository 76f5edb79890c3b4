package bridge

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/blockboard/blockboard/internal/clock"
)

func TestRequestTimeoutReturnsDefault(t *testing.T) {
	hub := NewHub()
	clk := clock.NewFake(time.Unix(1700000000, 0))
	tr := NewTransport(hub, clk)

	// No agent connected: the request can only time out.
	go func() {
		clk.WaitForTimers(1)
		clk.Advance(DefaultRequestTimeout)
	}()

	paused, answered := tr.PauseState(context.Background())
	if answered {
		t.Error("expected unanswered request")
	}
	if paused {
		t.Error("expected documented default false")
	}

	go func() {
		clk.WaitForTimers(1)
		clk.Advance(DefaultRequestTimeout)
	}()
	entries, answered := tr.BlockLog(context.Background())
	if answered {
		t.Error("expected unanswered request")
	}
	if entries == nil || len(entries) != 0 {
		t.Errorf("expected empty non-nil default, got %v", entries)
	}

	go func() {
		clk.WaitForTimers(1)
		clk.Advance(DefaultRequestTimeout)
	}()
	usage, answered := tr.StorageUsage(context.Background())
	if answered {
		t.Error("expected unanswered request")
	}
	if usage.UsedBytes != 0 || usage.MaxBytes != 0 {
		t.Errorf("expected zero default, got %+v", usage)
	}
}

func TestRequestResolvedByResponse(t *testing.T) {
	hub := NewHub()
	clk := clock.NewFake(time.Unix(1700000000, 0))
	tr := NewTransport(hub, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	agent := &AgentConnection{
		ID: "conn-1", Name: DefaultAgentName, Send: make(chan []byte, 256), CreatedAt: time.Now(),
	}
	hub.register <- agent
	time.Sleep(10 * time.Millisecond)

	// Play the agent: read the request off the send buffer and answer
	// it through the response router.
	go func() {
		select {
		case data := <-agent.Send:
			var req Frame
			if err := json.Unmarshal(data, &req); err != nil {
				return
			}
			hub.routeResponse(&Frame{Type: "res", ID: req.ID, OK: true, Payload: true})
		case <-time.After(time.Second):
		}
	}()

	paused, answered := tr.PauseState(context.Background())
	if !answered {
		t.Fatal("expected answered request")
	}
	if !paused {
		t.Error("expected paused=true from agent response")
	}
}

func TestRequestCancelledByContext(t *testing.T) {
	hub := NewHub()
	clk := clock.NewFake(time.Unix(1700000000, 0))
	tr := NewTransport(hub, clk)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, ok := tr.Request(ctx, SignalPauseStateRequest, nil, DefaultRequestTimeout)
	if ok {
		t.Error("cancelled context should resolve to the default")
	}
}

func TestSyncAuthDeduplicatesToken(t *testing.T) {
	hub := NewHub()
	clk := clock.NewFake(time.Unix(1700000000, 0))
	tr := NewTransport(hub, clk)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go hub.Run(ctx)
	time.Sleep(10 * time.Millisecond)

	agent := &AgentConnection{
		ID: "conn-1", Name: DefaultAgentName, Send: make(chan []byte, 256), CreatedAt: time.Now(),
	}
	hub.register <- agent
	time.Sleep(10 * time.Millisecond)

	tr.SyncAuth("token-a", "owner@localhost")
	tr.SyncAuth("token-a", "owner@localhost")
	tr.SyncAuth("token-b", "owner@localhost")

	if got := len(agent.Send); got != 2 {
		t.Errorf("expected 2 auth broadcasts (dedup suppressed the repeat), got %d", got)
	}
}

func TestNotifyWithoutAgentsDoesNotBlock(t *testing.T) {
	hub := NewHub()
	clk := clock.NewFake(time.Unix(1700000000, 0))
	tr := NewTransport(hub, clk)

	done := make(chan struct{})
	go func() {
		tr.InvalidateRules()
		tr.SetPauseState(true)
		tr.SyncTheme("dark")
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Notify blocked with no agents connected")
	}
}
