package scheduler

import (
	"context"
	"time"

	"finsight-backend/internal/transaction/usecase"

	log "github.com/sirupsen/logrus"
)

// SyncScheduler triggers a background sweep over all eligible users at a
// fixed interval.
type SyncScheduler struct {
	orchestrator *usecase.Orchestrator
	interval     time.Duration
	stopChan     chan struct{}
}

// NewSyncScheduler creates a new scheduler
func NewSyncScheduler(orchestrator *usecase.Orchestrator, interval time.Duration) *SyncScheduler {
	if interval <= 0 {
		interval = 30 * time.Minute
	}
	return &SyncScheduler{
		orchestrator: orchestrator,
		interval:     interval,
		stopChan:     make(chan struct{}),
	}
}

// Start begins the scheduler loop
func (s *SyncScheduler) Start() {
	log.WithField("interval", s.interval).Info("Starting mail sync scheduler")

	go func() {
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.orchestrator.SweepAll(context.Background())
			case <-s.stopChan:
				log.Info("Mail sync scheduler stopped")
				return
			}
		}
	}()
}

// Stop gracefully stops the scheduler
func (s *SyncScheduler) Stop() {
	close(s.stopChan)
}
