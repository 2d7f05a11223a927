package services

import (
	"context"
	"errors"
	"log"
	"sync/atomic"
	"time"

	"gorm.io/gorm"

	"library/internal/models"
	"library/internal/repositories"
)

// DefaultSweepInterval is how often the sweeper checks for overdue loans in
// production.
const DefaultSweepInterval = 24 * time.Hour

// OverdueSweeper periodically flags stale loans as Overdue through the same
// transition table the lifecycle service uses. It never mutates inventory:
// an overdue copy is still out.
type OverdueSweeper struct {
	db       *gorm.DB
	loanRepo repositories.LoanRepository
	interval time.Duration
	running  atomic.Bool
}

// NewOverdueSweeper builds a sweeper. A non-positive interval falls back to
// the production default.
func NewOverdueSweeper(db *gorm.DB, loanRepo repositories.LoanRepository, interval time.Duration) *OverdueSweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &OverdueSweeper{
		db:       db,
		loanRepo: loanRepo,
		interval: interval,
	}
}

// Start runs the sweep loop until ctx is cancelled. Tick failures are logged
// and the loop continues; an in-flight sweep finishes before Start returns.
// Callers normally run this in its own goroutine.
func (s *OverdueSweeper) Start(ctx context.Context) {
	log.Printf("[INFO] OverdueSweeper: running, interval=%s", s.interval)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] OverdueSweeper: stopping")
			return
		case <-ticker.C:
			if _, err := s.Sweep(); err != nil {
				log.Printf("[ERROR] OverdueSweeper: sweep failed: %v", err)
			}
		}
	}
}

// Sweep performs one scan-and-transition cycle and returns how many loans were
// flagged. Only one sweep runs at a time; an overlapping call is skipped, not
// queued. Re-running with no newly qualifying loans is a no-op.
func (s *OverdueSweeper) Sweep() (int, error) {
	if !s.running.CompareAndSwap(false, true) {
		log.Printf("[WARN] OverdueSweeper: previous sweep still running, skipping tick")
		return 0, nil
	}
	defer s.running.Store(false)

	now := time.Now().UTC()
	flagged := 0

	err := s.db.Transaction(func(tx *gorm.DB) error {
		candidates, err := s.loanRepo.FindOverdueCandidates(tx, now)
		if err != nil {
			return err
		}
		if len(candidates) == 0 {
			return nil
		}

		for i := range candidates {
			loan := &candidates[i]
			prevVersion := loan.Version
			if err := ApplyTransition(loan, models.LoanStatusOverdue); err != nil {
				// Loans the table does not allow to go overdue (e.g. still
				// Pending approval) are left alone.
				var invalid *InvalidTransitionError
				if errors.As(err, &invalid) {
					continue
				}
				return err
			}
			rows, err := s.loanRepo.UpdateWithVersion(tx, loan, prevVersion)
			if err != nil {
				return err
			}
			if rows == 0 {
				// Someone changed the loan under us, likely a return racing
				// the sweep. Skip it; the next tick re-evaluates.
				log.Printf("[WARN] OverdueSweeper: loan %s changed during sweep, skipping", loan.ID)
				continue
			}
			flagged++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if flagged > 0 {
		log.Printf("[INFO] OverdueSweeper: flagged %d loans as overdue", flagged)
	}
	return flagged, nil
}
