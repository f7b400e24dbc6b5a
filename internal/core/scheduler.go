package core

// scheduler.go runs background maintenance for the intake pipeline.
//
// The upload sweeper fails uploads left in PROCESSING by a crashed or killed
// process, so operators see a FAILED status they can retry instead of an
// upload that never finishes.

import (
	"context"
	"log/slog"
	"time"
)

// SweeperConfig holds configuration for the stale upload sweeper.
type SweeperConfig struct {
	StaleAfter    time.Duration // PROCESSING longer than this is stale (default: 30m)
	CheckInterval time.Duration // How often to run (default: 5m)
}

const staleUploadMessage = "processing interrupted; retry the upload"

// StartUploadSweeper runs immediately, then every CheckInterval, until ctx
// is cancelled.
func (s *Service) StartUploadSweeper(ctx context.Context, cfg SweeperConfig) {
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Minute
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 5 * time.Minute
	}
	slog.Info("upload sweeper started",
		"stale_after", cfg.StaleAfter.String(),
		"interval", cfg.CheckInterval.String(),
	)

	s.sweepStaleUploads(ctx, cfg.StaleAfter)

	ticker := time.NewTicker(cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("upload sweeper stopped")
			return
		case <-ticker.C:
			s.sweepStaleUploads(ctx, cfg.StaleAfter)
		}
	}
}

// sweepStaleUploads performs one sweep and returns the number of uploads failed.
func (s *Service) sweepStaleUploads(ctx context.Context, staleAfter time.Duration) int64 {
	start := time.Now()
	n, err := s.store.FailStaleUploads(ctx, s.now().Add(-staleAfter), staleUploadMessage)
	if err != nil {
		slog.Error("upload sweep failed", "error", err)
		return 0
	}
	if n > 0 {
		slog.Warn("stale uploads marked failed",
			"uploads", n,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return n
}
