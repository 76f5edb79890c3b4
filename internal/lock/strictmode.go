// Package lock implements the strict mode lock: a temporary
// immutability state that every mutating entry point must consult.
// The lock can change out-of-band (external approval written to the
// durable store), so an active lock is reconciled by polling.
package lock

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/blockboard/blockboard/internal/clock"
	"github.com/blockboard/blockboard/internal/db"
	"github.com/blockboard/blockboard/internal/lifecycle"
	"github.com/blockboard/blockboard/internal/logging"
)

// State is the lock's externally visible state.
type State string

const (
	StateInactive         State = "inactive"
	StateActiveTimed      State = "active_timed"
	StateActiveIndefinite State = "active_indefinite"
)

const (
	// countdownInterval drives the local expiry check, independent of
	// poll timing.
	countdownInterval = time.Second
	// pollInterval drives store reconciliation while active.
	pollInterval = 30 * time.Second
	// bypassWindow limits the emergency bypass to once per rolling week.
	bypassWindow = 7 * 24 * time.Hour
)

var (
	ErrAlreadyActive   = errors.New("strict mode is already active")
	ErrNotActive       = errors.New("strict mode is not active")
	ErrContactRequired = errors.New("indefinite strict mode requires a verified accountability contact")
	ErrBypassExhausted = errors.New("emergency bypass already used within the last 7 days")
)

// Store is the durable state the lock reads and writes.
type Store interface {
	GetSettings(ctx context.Context, userID string) (db.Settings, error)
	SaveLock(ctx context.Context, userID string, activeUntil *time.Time, indefinite bool) error
	RecordBypass(ctx context.Context, userID string, at time.Time) error
	ConsumeApprovedUnlock(ctx context.Context, userID string) (bool, error)
	VerifiedContact(ctx context.Context, userID string) (string, error)
}

// StrictMode is the lock state machine for one user. Activation and
// deactivation are atomic field-group writes; there is no partially
// updated lock.
type StrictMode struct {
	store  Store
	clk    clock.Clock
	userID string

	mu          sync.Mutex
	activeUntil time.Time // zero when not timed
	indefinite  bool
	stop        chan struct{} // non-nil while the reconcile loop runs
}

// New creates a strict mode lock for the given user.
func New(store Store, clk clock.Clock, userID string) *StrictMode {
	return &StrictMode{store: store, clk: clk, userID: userID}
}

// Resume restores lock state from the durable store at startup. An
// activeUntil in the past is equivalent to inactive.
func (s *StrictMode) Resume(ctx context.Context) error {
	settings, err := s.store.GetSettings(ctx, s.userID)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if settings.LockIndefinite {
		s.indefinite = true
		s.startLoopLocked()
		return nil
	}
	if settings.LockActiveUntil != nil && settings.LockActiveUntil.After(s.clk.Now()) {
		s.activeUntil = *settings.LockActiveUntil
		s.startLoopLocked()
	}
	return nil
}

// State returns the current state, treating an expired timer as
// inactive even if the countdown has not fired yet.
func (s *StrictMode) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *StrictMode) stateLocked() State {
	if s.indefinite {
		return StateActiveIndefinite
	}
	if !s.activeUntil.IsZero() && s.activeUntil.After(s.clk.Now()) {
		return StateActiveTimed
	}
	return StateInactive
}

// Locked reports whether mutation is currently forbidden. Handlers call
// this at the entry point, not just at render time: the lock can change
// between the two.
func (s *StrictMode) Locked() bool {
	return s.State() != StateInactive
}

// Remaining returns time left on a timed lock, zero otherwise.
func (s *StrictMode) Remaining() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indefinite || s.activeUntil.IsZero() {
		return 0
	}
	d := s.activeUntil.Sub(s.clk.Now())
	if d < 0 {
		return 0
	}
	return d
}

// ActiveUntil returns the expiry of a timed lock, nil otherwise.
func (s *StrictMode) ActiveUntil() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.indefinite || s.activeUntil.IsZero() {
		return nil
	}
	t := s.activeUntil
	return &t
}

// Activate enables a timed lock for the given duration.
func (s *StrictMode) Activate(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return errors.New("strict mode duration must be positive")
	}

	s.mu.Lock()
	if s.stateLocked() != StateInactive {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	until := s.clk.Now().Add(d)
	s.mu.Unlock()

	if err := s.store.SaveLock(ctx, s.userID, &until, false); err != nil {
		return err
	}

	s.mu.Lock()
	s.activeUntil = until
	s.indefinite = false
	s.startLoopLocked()
	s.mu.Unlock()

	logging.Infof("[strictmode] Activated until %s", until.Format(time.RFC3339))
	lifecycle.Emit(lifecycle.EventLockActivated, StateActiveTimed)
	return nil
}

// ActivateIndefinite enables an indefinite lock. Requires a verified
// accountability contact; the only exits are external approval or the
// rate-limited emergency bypass.
func (s *StrictMode) ActivateIndefinite(ctx context.Context) error {
	s.mu.Lock()
	if s.stateLocked() != StateInactive {
		s.mu.Unlock()
		return ErrAlreadyActive
	}
	s.mu.Unlock()

	contact, err := s.store.VerifiedContact(ctx, s.userID)
	if err != nil {
		return err
	}
	if contact == "" {
		return ErrContactRequired
	}

	if err := s.store.SaveLock(ctx, s.userID, nil, true); err != nil {
		return err
	}

	s.mu.Lock()
	s.activeUntil = time.Time{}
	s.indefinite = true
	s.startLoopLocked()
	s.mu.Unlock()

	logging.Info("[strictmode] Activated indefinitely")
	lifecycle.Emit(lifecycle.EventLockActivated, StateActiveIndefinite)
	return nil
}

// Bypass is the emergency unlock, limited to one use per rolling
// 7-day window.
func (s *StrictMode) Bypass(ctx context.Context) error {
	if s.State() == StateInactive {
		return ErrNotActive
	}

	settings, err := s.store.GetSettings(ctx, s.userID)
	if err != nil {
		return err
	}
	now := s.clk.Now()
	if settings.LastBypassAt != nil && now.Sub(*settings.LastBypassAt) < bypassWindow {
		return ErrBypassExhausted
	}

	if err := s.deactivate(ctx, true); err != nil {
		return err
	}
	if err := s.store.RecordBypass(ctx, s.userID, now); err != nil {
		return err
	}
	logging.Warn("[strictmode] Emergency bypass used")
	return nil
}

// deactivate clears the lock. persist controls whether the cleared
// state is written back to the store (reconciliation against a store
// that already shows inactive must not write).
func (s *StrictMode) deactivate(ctx context.Context, persist bool) error {
	if persist {
		if err := s.store.SaveLock(ctx, s.userID, nil, false); err != nil {
			return err
		}
	}

	s.mu.Lock()
	s.activeUntil = time.Time{}
	s.indefinite = false
	if s.stop != nil {
		close(s.stop)
		s.stop = nil
	}
	s.mu.Unlock()

	logging.Info("[strictmode] Deactivated")
	lifecycle.Emit(lifecycle.EventLockDeactivated, StateInactive)
	return nil
}

// startLoopLocked starts the countdown/reconcile loop. Caller holds mu.
func (s *StrictMode) startLoopLocked() {
	if s.stop != nil {
		return
	}
	stop := make(chan struct{})
	s.stop = stop
	go s.run(stop)
}

// run drives the local one-second countdown and the 30-second store
// reconciliation poll. Both stop as soon as the lock goes inactive.
func (s *StrictMode) run(stop chan struct{}) {
	countdown := s.clk.NewTicker(countdownInterval)
	defer countdown.Stop()
	poll := s.clk.NewTicker(pollInterval)
	defer poll.Stop()

	for {
		select {
		case <-stop:
			return
		case <-countdown.C:
			s.mu.Lock()
			expired := !s.indefinite && !s.activeUntil.IsZero() && !s.activeUntil.After(s.clk.Now())
			s.mu.Unlock()
			if expired {
				if err := s.deactivate(context.Background(), true); err != nil {
					logging.Errorf("[strictmode] Failed to persist expiry: %v", err)
				}
				return
			}
		case <-poll.C:
			if s.reconcile() {
				return
			}
		}
	}
}

// reconcile pulls lock state from the store. The store is the
// authority: if it shows inactive (an approver cleared it out-of-band)
// the local state is corrected without a write. An approved unlock
// request also deactivates, this time persisting the cleared fields.
// Returns true when the lock went inactive.
func (s *StrictMode) reconcile() bool {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if approved, err := s.store.ConsumeApprovedUnlock(ctx, s.userID); err != nil {
		logging.Errorf("[strictmode] Unlock request check failed: %v", err)
	} else if approved {
		logging.Info("[strictmode] Externally approved unlock")
		s.deactivate(ctx, true)
		return true
	}

	settings, err := s.store.GetSettings(ctx, s.userID)
	if err != nil {
		logging.Errorf("[strictmode] Reconcile read failed: %v", err)
		return false
	}

	storeActive := settings.LockIndefinite ||
		(settings.LockActiveUntil != nil && settings.LockActiveUntil.After(s.clk.Now()))
	if !storeActive && s.Locked() {
		s.deactivate(ctx, false)
		return true
	}
	return false
}
