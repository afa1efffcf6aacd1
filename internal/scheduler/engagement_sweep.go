package scheduler

import (
	"context"
	"time"

	"swipelink_backend/internal/engagement/service"
	"swipelink_backend/platform/logger"
)

const (
	defaultSweepInterval = 15 * time.Minute
	defaultSweepBatch    = 200
)

// EngagementSweep periodically finalizes idle sessions and re-evaluates
// quiet deals. It is the safety net behind the per-session finalize tasks:
// even if Redis loses a delayed task, no session stays open forever.
type EngagementSweep struct {
	orchestrator *service.Orchestrator
	log          *logger.Logger
	interval     time.Duration
	idleTimeout  time.Duration
	batch        int
}

func NewEngagementSweep(orchestrator *service.Orchestrator, log *logger.Logger, interval, idleTimeout time.Duration) *EngagementSweep {
	if interval <= 0 {
		interval = defaultSweepInterval
	}

	return &EngagementSweep{
		orchestrator: orchestrator,
		log:          log,
		interval:     interval,
		idleTimeout:  idleTimeout,
		batch:        defaultSweepBatch,
	}
}

func (s *EngagementSweep) Run(ctx context.Context) {
	if s == nil || s.orchestrator == nil {
		return
	}

	s.sweep(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweep(ctx)
		}
	}
}

func (s *EngagementSweep) sweep(ctx context.Context) {
	ended, err := s.orchestrator.FinalizeStaleSessions(ctx, s.idleTimeout, s.batch)
	if err != nil {
		s.log.Warn("engagement sweep: session finalization failed", "error", err)
	} else if ended > 0 {
		s.log.Info("engagement sweep: finalized idle sessions", "count", ended)
	}

	evaluated, err := s.orchestrator.SweepInactiveDeals(ctx, dealInactivityWindow, s.batch)
	if err != nil {
		s.log.Warn("engagement sweep: deal evaluation failed", "error", err)
	} else if evaluated > 0 {
		s.log.Info("engagement sweep: evaluated inactive deals", "count", evaluated)
	}
}
