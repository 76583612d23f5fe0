package quota

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"
)

// UsageResetter is the one ledger operation the scheduler drives.
type UsageResetter interface {
	ResetUsage(ctx context.Context) error
}

// Scheduler zeroes every identity's usage counter at the start of each
// month. All plans reset monthly; allotments and tiers are untouched.
type Scheduler struct {
	cron   *cron.Cron
	ledger UsageResetter
	logger *logrus.Logger
}

func NewScheduler(ledger UsageResetter, logger *logrus.Logger) (*Scheduler, error) {
	s := &Scheduler{
		cron:   cron.New(),
		ledger: ledger,
		logger: logger,
	}
	if _, err := s.cron.AddFunc("@monthly", s.reset); err != nil {
		return nil, fmt.Errorf("registering monthly reset job: %w", err)
	}
	return s, nil
}

func (s *Scheduler) reset() {
	s.logger.Info("Running monthly usage reset")
	if err := s.ledger.ResetUsage(context.Background()); err != nil {
		s.logger.Errorf("Monthly usage reset failed: %v", err)
	}
}

// Start launches the cron loop in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("Usage reset scheduler started (@monthly)")
}

// Stop halts scheduling; a reset already in flight finishes.
func (s *Scheduler) Stop() {
	s.cron.Stop()
}
