// Package autosave debounces configuration edits and persists them with
// checkpoint-based change detection. Only the state present at the end
// of a quiet burst is ever written; intermediate states are not.
package autosave

import (
	"context"
	"sync"
	"time"

	"github.com/blockboard/blockboard/internal/clock"
	"github.com/blockboard/blockboard/internal/lifecycle"
	"github.com/blockboard/blockboard/internal/logging"
	"github.com/blockboard/blockboard/internal/rules"
)

// Status is the save indicator shown to the user.
type Status string

const (
	StatusSaved  Status = "saved"
	StatusSaving Status = "saving"
	StatusError  Status = "error"
)

const (
	// defaultQuietPeriod is how long edits must pause before a save.
	defaultQuietPeriod = time.Second
	// defaultLatencyFloor keeps the "saving" indicator visible long
	// enough not to flicker on fast persists.
	defaultLatencyFloor = 800 * time.Millisecond
	// persistTimeout bounds a single store write.
	persistTimeout = 15 * time.Second
)

// Store is the subset of the database the coordinator writes.
type Store interface {
	SaveConfiguration(ctx context.Context, userID string, cfg rules.Configuration) error
	BumpCacheVersion(ctx context.Context, userID string) error
}

// Notifier carries the post-save invalidation broadcast to the agent.
type Notifier interface {
	InvalidateRules()
}

// Guard is consulted before any mutation; an active strict mode lock
// rejects edits at the entry point.
type Guard interface {
	Locked() bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithQuietPeriod overrides the debounce quiet period.
func WithQuietPeriod(d time.Duration) Option {
	return func(c *Coordinator) { c.quiet = d }
}

// WithLatencyFloor overrides the minimum visible save latency.
func WithLatencyFloor(d time.Duration) Option {
	return func(c *Coordinator) { c.floor = d }
}

// Coordinator owns the live configuration, the checkpoint (last value
// known to be durably persisted), and the debounced save cycle.
type Coordinator struct {
	store    Store
	notifier Notifier
	guard    Guard
	clk      clock.Clock
	userID   string

	quiet time.Duration
	floor time.Duration

	mu         sync.Mutex
	live       rules.Configuration
	checkpoint rules.Configuration
	status     Status
	unsaved    bool
	editSeq    uint64
	timer      *clock.Timer
}

// New creates a coordinator with live and checkpoint both set to
// initial (the value just read from the store).
func New(store Store, notifier Notifier, guard Guard, clk clock.Clock, userID string, initial rules.Configuration, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:      store,
		notifier:   notifier,
		guard:      guard,
		clk:        clk,
		userID:     userID,
		quiet:      defaultQuietPeriod,
		floor:      defaultLatencyFloor,
		live:       initial.Clone(),
		checkpoint: initial.Clone(),
		status:     StatusSaved,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Live returns the current editable configuration.
func (c *Coordinator) Live() rules.Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.live.Clone()
}

// Checkpoint returns the last persisted configuration.
func (c *Coordinator) Checkpoint() rules.Configuration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.checkpoint.Clone()
}

// Status returns the current save status.
func (c *Coordinator) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.status
}

// HasUnsavedChanges reports whether an edit is awaiting persistence.
func (c *Coordinator) HasUnsavedChanges() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.unsaved
}

// OnEdit accepts a new configuration value, marks the status saving for
// optimistic feedback, and restarts the quiet-period timer. Rejected
// with rules.ErrLocked while strict mode is active.
func (c *Coordinator) OnEdit(cfg rules.Configuration) error {
	if c.guard != nil && c.guard.Locked() {
		return rules.ErrLocked
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.live = cfg.Clone()
	c.editSeq++
	c.status = StatusSaving
	c.unsaved = true

	if c.timer == nil {
		c.timer = c.clk.AfterFunc(c.quiet, c.flush)
	} else {
		c.timer.Reset(c.quiet)
	}
	return nil
}

// ResetCheckpoint replaces both live configuration and checkpoint after
// an immediate persist (preset load/delete/unload). A stale debounce
// timer firing afterwards sees live equal to checkpoint and does not
// write.
func (c *Coordinator) ResetCheckpoint(cfg rules.Configuration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.live = cfg.Clone()
	c.checkpoint = cfg.Clone()
	c.editSeq++
	c.status = StatusSaved
	c.unsaved = false
	if c.timer != nil {
		c.timer.Stop()
	}
}

// flush runs when the quiet period elapses: diff against the
// checkpoint, persist if different, then swap the checkpoint.
func (c *Coordinator) flush() {
	c.mu.Lock()
	snapshot := c.live.Clone()
	seq := c.editSeq
	checkpoint := c.checkpoint
	c.mu.Unlock()

	// Redundant cycles never write: equal content goes straight back
	// to saved.
	if rules.ContentEqual(snapshot, checkpoint) {
		c.mu.Lock()
		if c.editSeq == seq {
			c.status = StatusSaved
			c.unsaved = false
		}
		c.mu.Unlock()
		return
	}

	start := c.clk.Now()
	ctx, cancel := context.WithTimeout(context.Background(), persistTimeout)
	defer cancel()

	if err := c.store.SaveConfiguration(ctx, c.userID, snapshot); err != nil {
		logging.Errorf("[autosave] Persist failed: %v", err)
		c.mu.Lock()
		if c.editSeq == seq {
			// No retry; the next edit re-enters the debounce cycle.
			c.status = StatusError
		}
		c.mu.Unlock()
		return
	}

	c.mu.Lock()
	c.checkpoint = snapshot
	if c.editSeq == seq {
		c.unsaved = false
	}
	c.mu.Unlock()

	// Best-effort side effects: the agent's decision cache version and
	// the invalidation broadcast. Neither failure affects save status.
	if err := c.store.BumpCacheVersion(ctx, c.userID); err != nil {
		logging.Warnf("[autosave] Cache version bump failed: %v", err)
	}
	if c.notifier != nil {
		c.notifier.InvalidateRules()
	}
	lifecycle.Emit(lifecycle.EventRulesSaved, snapshot)

	remaining := c.floor - c.clk.Now().Sub(start)
	if remaining > 0 {
		c.clk.AfterFunc(remaining, func() { c.markSaved(seq) })
	} else {
		c.markSaved(seq)
	}
}

func (c *Coordinator) markSaved(seq uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.editSeq == seq {
		c.status = StatusSaved
	}
}
