package application

import (
	"context"
	"log"
	"time"

	"lunchbot/internal/deadline"
)

// Scheduler triggers the daily settlement on schedule. The engine's
// per-date idempotency makes a duplicate trigger harmless.
type Scheduler struct {
	engine  *Engine
	policy  *deadline.Policy
	dailyAt string
	logger  *log.Logger
}

// NewScheduler constructs a Scheduler. dailyAt is HH:MM in the operating
// timezone.
func NewScheduler(engine *Engine, policy *deadline.Policy, dailyAt string, logger *log.Logger) *Scheduler {
	return &Scheduler{engine: engine, policy: policy, dailyAt: dailyAt, logger: logger}
}

// Start begins the scheduler loop.
func (s *Scheduler) Start(ctx context.Context) {
	if s == nil || s.engine == nil || s.policy == nil {
		return
	}
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			local := now.In(s.policy.Location())
			if !s.shouldRun(local) {
				continue
			}
			s.runOnce(ctx, local)
		}
	}
}

func (s *Scheduler) shouldRun(now time.Time) bool {
	hour, minute, err := parseDailyAt(s.dailyAt)
	if err != nil {
		return false
	}
	return now.Hour() == hour && now.Minute() == minute
}

func (s *Scheduler) runOnce(ctx context.Context, now time.Time) {
	date := now.Format(deadline.DateLayout)
	result, err := s.engine.Settle(ctx, date)
	if err != nil {
		if s.logger != nil {
			s.logger.Printf("settlement schedule error: date=%s err=%v", date, err)
		}
		return
	}
	if s.logger != nil {
		s.logger.Printf("settlement schedule run: date=%s outcome=%s", date, result.Outcome)
	}
}

func parseDailyAt(value string) (int, int, error) {
	t, err := time.Parse("15:04", value)
	if err != nil {
		return 0, 0, err
	}
	return t.Hour(), t.Minute(), nil
}
