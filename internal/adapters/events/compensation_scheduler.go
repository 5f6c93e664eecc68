package events

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/app/logging"
	"github.com/viralforge/users-service/internal/application"
)

type CompensationRunner interface {
	RunCompensationCycle(ctx context.Context) (application.CycleReport, error)
}

type TriggerResult int

const (
	TriggerStarted TriggerResult = iota
	// TriggerCoalesced means a cycle was already in flight.
	TriggerCoalesced
	// TriggerMisfired means the trigger was delivered later than the grace period allows.
	TriggerMisfired
)

func (r TriggerResult) String() string {
	switch r {
	case TriggerStarted:
		return "started"
	case TriggerCoalesced:
		return "coalesced"
	case TriggerMisfired:
		return "misfired"
	default:
		return "unknown"
	}
}

// CompensationScheduler runs the reconciliation cycle on a fixed interval with
// at most one cycle in flight.
type CompensationScheduler struct {
	logger       *slog.Logger
	runner       CompensationRunner
	interval     time.Duration
	misfireGrace time.Duration
	nowFn        func() time.Time

	running atomic.Bool
	wg      sync.WaitGroup
}

func NewCompensationScheduler(logger *slog.Logger, runner CompensationRunner, interval, misfireGrace time.Duration) *CompensationScheduler {
	if interval <= 0 {
		interval = 15 * time.Minute
	}
	if misfireGrace < 0 {
		misfireGrace = 0
	}
	return &CompensationScheduler{
		logger:       logger,
		runner:       runner,
		interval:     interval,
		misfireGrace: misfireGrace,
		nowFn:        time.Now,
	}
}

// Run fires a cycle every interval until ctx is cancelled, then waits for the
// in-flight cycle to finish.
func (s *CompensationScheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	defer s.Wait()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case scheduledAt := <-ticker.C:
			s.Trigger(ctx, scheduledAt)
		}
	}
}

// Trigger starts a cycle in the background for a tick scheduled at scheduledAt.
func (s *CompensationScheduler) Trigger(ctx context.Context, scheduledAt time.Time) TriggerResult {
	lateness := s.nowFn().Sub(scheduledAt)
	if lateness > s.misfireGrace {
		s.logger.WarnContext(ctx, "compensation run skipped",
			"module", "events.compensation_scheduler",
			"layer", "adapter",
			"operation", "trigger_compensation",
			"outcome", TriggerMisfired.String(),
			"lateness_ms", lateness.Milliseconds(),
		)
		return TriggerMisfired
	}
	if !s.running.CompareAndSwap(false, true) {
		s.logger.InfoContext(ctx, "compensation run skipped",
			"module", "events.compensation_scheduler",
			"layer", "adapter",
			"operation", "trigger_compensation",
			"outcome", TriggerCoalesced.String(),
		)
		return TriggerCoalesced
	}

	s.wg.Add(1)
	cycleCtx := logging.WithRequestID(context.WithoutCancel(ctx), "compensation-"+uuid.NewString())
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runCycle(cycleCtx)
	}()
	return TriggerStarted
}

func (s *CompensationScheduler) runCycle(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.logger.ErrorContext(ctx, "compensation cycle panicked",
				"module", "events.compensation_scheduler",
				"layer", "adapter",
				"operation", "run_compensation_cycle",
				"outcome", "failure",
				"panic", r,
			)
		}
	}()

	started := s.nowFn()
	report, err := s.runner.RunCompensationCycle(ctx)
	if err != nil {
		s.logger.ErrorContext(ctx, "compensation cycle failed",
			"module", "events.compensation_scheduler",
			"layer", "adapter",
			"operation", "run_compensation_cycle",
			"outcome", "failure",
			"error", err,
		)
		return
	}
	s.logger.InfoContext(ctx, "compensation cycle finished",
		"module", "events.compensation_scheduler",
		"layer", "adapter",
		"operation", "run_compensation_cycle",
		"outcome", "success",
		"selected", report.Selected,
		"done", report.Done,
		"retrying", report.Retrying,
		"exhausted", report.Exhausted,
		"save_failed", report.SaveFailed,
		"duration_ms", s.nowFn().Sub(started).Milliseconds(),
	)
}

// Wait blocks until the in-flight cycle, if any, returns.
func (s *CompensationScheduler) Wait() {
	s.wg.Wait()
}
