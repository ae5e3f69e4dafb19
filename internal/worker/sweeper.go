// Copyright 2025 James Ross
package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/jrossdev/cogsim/internal/config"
	"github.com/jrossdev/cogsim/internal/obs"
	"github.com/jrossdev/cogsim/internal/store"
)

// Sweeper recovers records stranded in running after a crash between
// start_job and finish_job. Ticker-driven scan, same shape as the
// teacher's internal/reaper package, retargeted at SQL queue rows instead
// of Redis processing lists.
type Sweeper struct {
	cfg   *config.Config
	store *store.Store
	log   *zap.Logger
}

func NewSweeper(cfg *config.Config, st *store.Store, log *zap.Logger) *Sweeper {
	return &Sweeper{cfg: cfg, store: st, log: log}
}

func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.Worker.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sweepOnce()
		}
	}
}

func (s *Sweeper) sweepOnce() {
	cutoff := time.Now().UTC().Add(-s.cfg.Worker.StuckThreshold)
	n, err := s.store.ReclaimStuck(cutoff)
	if err != nil {
		s.log.Warn("sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		obs.SweeperReclaimed.Add(float64(n))
		s.log.Warn("reclaimed stranded running records", zap.Int("count", n))
	}
}
