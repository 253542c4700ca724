// Package worker runs background maintenance jobs.
package worker

import (
	"context"
	"log/slog"
	"time"

	"courtbook/internal/middleware"
)

// DefaultSweepBatch is the number of users handled per sweep.
const DefaultSweepBatch = 100

// SanctionExpirer deactivates expired sanctions for at most limit users.
type SanctionExpirer interface {
	ExpireSanctions(ctx context.Context, limit int) (int, error)
}

// SanctionSweeper periodically expires sanctions so that blocked_until is
// re-derived even when no admin lifts them.
type SanctionSweeper struct {
	expirer  SanctionExpirer
	interval time.Duration
	batch    int
}

func NewSanctionSweeper(expirer SanctionExpirer, interval time.Duration) *SanctionSweeper {
	if interval <= 0 {
		interval = time.Minute
	}
	return &SanctionSweeper{
		expirer:  expirer,
		interval: interval,
		batch:    DefaultSweepBatch,
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (w *SanctionSweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	middleware.Logger.InfoContext(ctx, "sanction sweeper started", slog.Duration("interval", w.interval))
	w.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			middleware.Logger.Info("sanction sweeper stopped")
			return
		case <-ticker.C:
			w.RunOnce(ctx)
		}
	}
}

// RunOnce performs one sweep and returns the number of sanctions expired.
func (w *SanctionSweeper) RunOnce(ctx context.Context) int {
	n, err := w.expirer.ExpireSanctions(ctx, w.batch)
	if err != nil {
		middleware.Logger.ErrorContext(ctx, "sanction sweep failed",
			slog.Int("expired", n),
			slog.String("error", err.Error()),
		)
		return n
	}
	if n > 0 {
		middleware.Logger.InfoContext(ctx, "sanction sweep completed", slog.Int("expired", n))
	}
	return n
}
