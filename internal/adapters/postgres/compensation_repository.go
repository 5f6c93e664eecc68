package postgres

import (
	"context"
	"time"

	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
	"gorm.io/gorm"
)

type compensationRepository struct {
	db *gorm.DB
}

func (r *compensationRepository) Enqueue(ctx context.Context, task domain.CompensationTask) error {
	row := toTaskModel(task)
	return r.db.WithContext(ctx).Create(&row).Error
}

// SelectDue relies on a single reconciler instance; rows are not locked.
func (r *compensationRepository) SelectDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]domain.CompensationTask, error) {
	if limit <= 0 {
		return nil, nil
	}
	var rows []compensationTaskModel
	err := r.db.WithContext(ctx).
		Where("status = ?", string(domain.CompensationPending)).
		Where("attempts < ?", maxAttempts).
		Where("next_retry_at <= ?", now).
		Order("next_retry_at ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.CompensationTask, 0, len(rows))
	for _, row := range rows {
		out = append(out, toDomainTask(row))
	}
	return out, nil
}

func (r *compensationRepository) Save(ctx context.Context, task domain.CompensationTask, events ...ports.OutboxEvent) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&compensationTaskModel{}).
			Where("id = ?", task.ID).
			Updates(map[string]any{
				"status":        string(task.Status),
				"attempts":      task.Attempts,
				"next_retry_at": task.NextRetryAt,
				"last_error":    task.LastError,
				"updated_at":    task.UpdatedAt,
			})
		if err := updatedOrNotFound(res); err != nil {
			return err
		}
		for _, event := range events {
			row := toOutboxModel(event)
			if err := tx.Create(&row).Error; err != nil {
				return err
			}
		}
		return nil
	})
}
