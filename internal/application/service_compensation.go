package application

import (
	"context"
	"fmt"

	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
)

var buildExhaustedEvent = compensationExhaustedEvent

// CycleReport summarises one reconciliation cycle.
type CycleReport struct {
	Selected   int
	Done       int
	Retrying   int
	Exhausted  int
	SaveFailed int
}

// RunCompensationCycle retries identity deletion for every due task in one batch.
// Each task is saved on its own; a failed save is logged and the batch continues.
func (s *Service) RunCompensationCycle(ctx context.Context) (CycleReport, error) {
	logger := appLogger("application.compensation")
	policy := s.cfg.Compensation

	tasks, err := s.ledger.SelectDue(ctx, s.nowFn(), policy.MaxAttempts, policy.BatchSize)
	if err != nil {
		return CycleReport{}, fmt.Errorf("select due compensation tasks: %w", err)
	}
	report := CycleReport{Selected: len(tasks)}
	if len(tasks) == 0 {
		logger.InfoContext(ctx, "no compensation tasks due",
			"operation", "compensation_cycle",
			"outcome", "noop",
		)
		return report, nil
	}
	logger.InfoContext(ctx, "compensation cycle started",
		"operation", "compensation_cycle",
		"outcome", "start",
		"batch_size", len(tasks),
	)

	for _, task := range tasks {
		updated, events := s.attemptCompensation(ctx, task)
		if err := s.ledger.Save(ctx, updated, events...); err != nil {
			report.SaveFailed++
			logger.ErrorContext(ctx, "compensation task update failed",
				"operation", "save_compensation_task",
				"outcome", "failure",
				"task_id", task.ID,
				"kc_user_id", task.KCUserID,
				"error", err,
			)
			continue
		}
		switch updated.Status {
		case domain.CompensationDone:
			report.Done++
		case domain.CompensationFailed:
			report.Exhausted++
		default:
			report.Retrying++
		}
	}

	logger.InfoContext(ctx, "compensation cycle completed",
		"operation", "compensation_cycle",
		"outcome", "success",
		"selected_count", report.Selected,
		"done_count", report.Done,
		"retrying_count", report.Retrying,
		"exhausted_count", report.Exhausted,
		"save_failed_count", report.SaveFailed,
	)
	return report, nil
}

// attemptCompensation applies one delete attempt to task and returns the new state
// together with any events to commit alongside it.
func (s *Service) attemptCompensation(ctx context.Context, task domain.CompensationTask) (domain.CompensationTask, []ports.OutboxEvent) {
	logger := appLogger("application.compensation")
	policy := s.cfg.Compensation

	err := s.deleteIdentity(ctx, task.KCUserID)
	now := s.nowFn()
	task.UpdatedAt = now
	if err == nil {
		task.Status = domain.CompensationDone
		task.LastError = nil
		logger.InfoContext(ctx, "leaked identity deleted",
			"operation", "delete_identity",
			"outcome", "success",
			"task_id", task.ID,
			"kc_user_id", task.KCUserID,
		)
		return task, nil
	}

	task.Attempts++
	lastErr := formatTaskError(err)
	task.LastError = &lastErr
	task.NextRetryAt = nextRetryAt(now, task.Attempts, policy.MaxDelay, s.jitterFn(policy.MaxJitter))

	if task.Attempts < policy.MaxAttempts {
		logger.WarnContext(ctx, "leaked identity delete failed; retry scheduled",
			"operation", "delete_identity",
			"outcome", "failure",
			"task_id", task.ID,
			"kc_user_id", task.KCUserID,
			"attempts", task.Attempts,
			"next_retry_at", task.NextRetryAt,
			"error", err,
		)
		return task, nil
	}

	task.Status = domain.CompensationFailed
	logger.ErrorContext(ctx, "leaked identity delete exhausted; manual intervention required",
		"operation", "delete_identity",
		"outcome", "failure",
		"task_id", task.ID,
		"kc_user_id", task.KCUserID,
		"attempts", task.Attempts,
		"error", err,
	)
	event, evErr := buildExhaustedEvent(task, now)
	if evErr != nil {
		logger.ErrorContext(ctx, "compensation exhausted event build failed",
			"operation", "build_outbox_event",
			"outcome", "failure",
			"task_id", task.ID,
			"kc_user_id", task.KCUserID,
			"error", evErr,
		)
		return task, nil
	}
	return task, []ports.OutboxEvent{event}
}
