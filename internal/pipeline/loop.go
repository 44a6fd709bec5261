package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// cycleRunner is the slice of Processor the loop needs. An interface so the
// failure handling is testable with a stub.
type cycleRunner interface {
	Run(ctx context.Context) (CycleStats, error)
}

// Runner drives repeated cycles at a soft cadence: one full pass, then sleep
// for whatever remains of the interval, never less than a second.
type Runner struct {
	proc        cycleRunner
	interval    time.Duration
	maxFailures int
	log         *slog.Logger
}

// NewRunner creates a runner around the processor.
func NewRunner(proc cycleRunner, interval time.Duration, maxFailures int, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = time.Minute
	}
	if maxFailures <= 0 {
		maxFailures = 3
	}

	return &Runner{
		proc:        proc,
		interval:    interval,
		maxFailures: maxFailures,
		log:         logger.With("component", "runner"),
	}
}

// Run loops until the context is canceled or too many consecutive cycles
// fail. Cancellation is a clean shutdown, not a failure.
func (r *Runner) Run(ctx context.Context) error {
	failures := 0

	for {
		start := time.Now()
		r.log.Info("cycle started", "at", start.Format("15:04:05"))

		_, err := r.proc.Run(ctx)
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			r.log.Info("shutting down")
			return nil
		case err != nil:
			failures++
			r.log.Error("cycle failed", "error", err, "consecutive_failures", failures)
			if failures >= r.maxFailures {
				return fmt.Errorf("%d consecutive cycle failures, giving up: %w", failures, err)
			}
		default:
			failures = 0
		}

		sleep := nextDelay(r.interval, time.Since(start))
		r.log.Info("cycle done", "elapsed", time.Since(start).Round(time.Millisecond), "next_in", sleep)

		select {
		case <-ctx.Done():
			r.log.Info("shutting down")
			return nil
		case <-time.After(sleep):
		}
	}
}

// nextDelay stretches the cadence when a pass overruns the interval, with a
// one-second floor so the loop never spins.
func nextDelay(interval, elapsed time.Duration) time.Duration {
	delay := interval - elapsed
	if delay < time.Second {
		return time.Second
	}
	return delay
}
