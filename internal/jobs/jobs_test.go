package jobs

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/juanse07/nexa-sub001/config"
)

type countingSweeper struct {
	calls atomic.Int32
	err   error
}

func (s *countingSweeper) AutoClockOut(_ context.Context, _ time.Time) (int, error) {
	s.calls.Add(1)
	return 1, s.err
}

type countingRetrier struct {
	calls atomic.Int32
}

func (r *countingRetrier) RetrySeatSyncs(_ context.Context) (int, error) {
	r.calls.Add(1)
	return 0, nil
}

func testConfig(sweep, retry time.Duration) *config.Config {
	cfg := &config.Config{}
	cfg.Attendance.SweepInterval = sweep
	cfg.Billing.RetryInterval = retry
	return cfg
}

// waitFor polls cond until it holds or the deadline passes.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met before deadline")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRunner_RunsBothLoops(t *testing.T) {
	sweeper := &countingSweeper{}
	retrier := &countingRetrier{}
	r := NewRunner(testConfig(10*time.Millisecond, 10*time.Millisecond), sweeper, retrier, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()

	waitFor(t, func() bool { return sweeper.calls.Load() >= 2 && retrier.calls.Load() >= 2 })
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("expected nil on cancel, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunner_FailedTickKeepsRunning(t *testing.T) {
	sweeper := &countingSweeper{err: errors.New("db down")}
	r := NewRunner(testConfig(10*time.Millisecond, 0), sweeper, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.Run(ctx)

	waitFor(t, func() bool { return sweeper.calls.Load() >= 3 })
}

func TestRunner_DisabledLoops(t *testing.T) {
	sweeper := &countingSweeper{}
	retrier := &countingRetrier{}
	r := NewRunner(testConfig(0, 0), sweeper, retrier, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	if err := r.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if sweeper.calls.Load() != 0 || retrier.calls.Load() != 0 {
		t.Error("disabled loops must not tick")
	}
}
