package scheduler

import (
	"context"
	"log"
	"time"

	"blib/internal/services"
)

// Scheduler drives the reconciliation passes: the daily sweep on every tick,
// and the monthly aggregation for the month that just ended whenever a tick
// crosses a month boundary.
type Scheduler struct {
	reconciliation services.ReconciliationService
	interval       time.Duration
	now            services.Clock
}

func New(reconciliation services.ReconciliationService, interval time.Duration, now services.Clock) *Scheduler {
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Scheduler{
		reconciliation: reconciliation,
		interval:       interval,
		now:            now,
	}
}

// Run blocks until ctx is canceled, firing the sweep once per interval. The
// first sweep runs immediately so a restarted process catches up without
// waiting a full interval.
func (s *Scheduler) Run(ctx context.Context) {
	log.Printf("[INFO] Scheduler: running with interval %s", s.interval)

	lastRun := s.runOnce(s.now(), time.Time{})

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Printf("[INFO] Scheduler: stopping: %v", ctx.Err())
			return
		case <-ticker.C:
			lastRun = s.runOnce(s.now(), lastRun)
		}
	}
}

// runOnce executes one scheduling step at the given instant and returns it as
// the new last-run marker.
func (s *Scheduler) runOnce(now, lastRun time.Time) time.Time {
	if _, err := s.reconciliation.RunDaily(now); err != nil {
		log.Printf("[ERROR] Scheduler: daily sweep failed: %v", err)
	}

	if !lastRun.IsZero() && monthOf(now) != monthOf(lastRun) {
		ended := monthOf(now).AddDate(0, -1, 0)
		if err := s.reconciliation.RunMonthly(ended); err != nil {
			log.Printf("[ERROR] Scheduler: monthly aggregation for %s failed: %v", ended.Format("2006-01"), err)
		}
	}
	return now
}

func monthOf(t time.Time) time.Time {
	y, m, _ := t.UTC().Date()
	return time.Date(y, m, 1, 0, 0, 0, 0, time.UTC)
}
