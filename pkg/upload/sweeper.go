package upload

import (
	"context"
	"log/slog"
	"time"
)

// DefaultSweepInterval is how often the sweeper checks for stale sessions.
const DefaultSweepInterval = time.Minute

// Sweeper periodically expires stale upload sessions.
type Sweeper struct {
	coordinator *Coordinator
	interval    time.Duration
	logger      *slog.Logger
}

// NewSweeper creates a sweeper for the coordinator.
func NewSweeper(coordinator *Coordinator, interval time.Duration, logger *slog.Logger) *Sweeper {
	if interval == 0 {
		interval = DefaultSweepInterval
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Sweeper{coordinator: coordinator, interval: interval, logger: logger}
}

// Run sweeps on a ticker until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			expired, err := s.coordinator.Sweep(ctx)
			if err != nil {
				s.logger.Error("upload session sweep failed", "error", err)
				continue
			}
			if expired > 0 {
				s.logger.Info("expired stale upload sessions", "count", expired)
			}
		}
	}
}
