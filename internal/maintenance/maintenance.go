// Package maintenance runs scheduled background cleanup.
package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/blockboard/blockboard/internal/db"
	"github.com/blockboard/blockboard/internal/logging"
)

// unlockRequestTTL is how long an unanswered unlock request stays
// claimable before the sweep drops it.
const unlockRequestTTL = 24 * time.Hour

// Scheduler owns the cron runner.
type Scheduler struct {
	store *db.Store
	cron  *cron.Cron
}

// New creates the scheduler with its jobs registered.
func New(store *db.Store) (*Scheduler, error) {
	s := &Scheduler{store: store, cron: cron.New()}

	if _, err := s.cron.AddFunc("@hourly", s.sweepUnlockRequests); err != nil {
		return nil, err
	}
	return s, nil
}

// Start runs the scheduler until the context is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
}

func (s *Scheduler) sweepUnlockRequests() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cutoff := time.Now().Add(-unlockRequestTTL)
	n, err := s.store.SweepUnlockRequests(ctx, cutoff)
	if err != nil {
		logging.Errorf("[maintenance] Unlock request sweep failed: %v", err)
		return
	}
	if n > 0 {
		logging.Infof("[maintenance] Swept %d stale unlock requests", n)
	}
}
