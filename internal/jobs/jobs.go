// Package jobs runs the periodic background work of the server.
package jobs

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/juanse07/nexa-sub001/config"
)

// Sweeper closes attendance sessions left open past their event's end.
type Sweeper interface {
	AutoClockOut(ctx context.Context, now time.Time) (int, error)
}

// SeatRetrier re-pushes organization seat counts that previously failed.
type SeatRetrier interface {
	RetrySeatSyncs(ctx context.Context) (int, error)
}

// Runner schedules the auto clock-out sweep and the seat sync retry loop.
type Runner struct {
	sweeper    Sweeper
	retrier    SeatRetrier
	sweepEvery time.Duration
	retryEvery time.Duration
	logger     *zap.Logger
	now        func() time.Time
}

// NewRunner creates the Runner. A non-positive interval disables that loop.
func NewRunner(cfg *config.Config, sweeper Sweeper, retrier SeatRetrier, logger *zap.Logger) *Runner {
	return &Runner{
		sweeper:    sweeper,
		retrier:    retrier,
		sweepEvery: cfg.Attendance.SweepInterval,
		retryEvery: cfg.Billing.RetryInterval,
		logger:     logger,
		now:        time.Now,
	}
}

// Run blocks until ctx is cancelled. Failed ticks are logged and retried on
// the next tick.
func (r *Runner) Run(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)

	if r.sweeper != nil && r.sweepEvery > 0 {
		g.Go(func() error {
			every(ctx, r.sweepEvery, r.sweep)
			return nil
		})
	}
	if r.retrier != nil && r.retryEvery > 0 {
		g.Go(func() error {
			every(ctx, r.retryEvery, r.retrySeats)
			return nil
		})
	}

	r.logger.Info("background jobs started",
		zap.Duration("sweep_interval", r.sweepEvery),
		zap.Duration("seat_retry_interval", r.retryEvery),
	)
	err := g.Wait()
	r.logger.Info("background jobs stopped")
	return err
}

func (r *Runner) sweep(ctx context.Context) {
	closed, err := r.sweeper.AutoClockOut(ctx, r.now())
	if err != nil {
		r.logger.Error("auto clock-out sweep failed", zap.Error(err))
		return
	}
	if closed > 0 {
		r.logger.Info("auto clock-out sweep", zap.Int("closed", closed))
	}
}

func (r *Runner) retrySeats(ctx context.Context) {
	synced, err := r.retrier.RetrySeatSyncs(ctx)
	if err != nil {
		r.logger.Error("seat sync retry failed", zap.Error(err))
		return
	}
	if synced > 0 {
		r.logger.Info("seat sync retry", zap.Int("synced", synced))
	}
}

// every calls fn on each tick until ctx is done.
func every(ctx context.Context, interval time.Duration, fn func(context.Context)) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			fn(ctx)
		}
	}
}
