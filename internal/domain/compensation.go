package domain

import (
	"time"

	"github.com/google/uuid"
)

type CompensationTaskType string

// TaskTypeDeleteIdentity removes an orphaned identity from the identity provider.
const TaskTypeDeleteIdentity CompensationTaskType = "delete_kc_user"

type CompensationStatus string

const (
	CompensationPending CompensationStatus = "pending"
	CompensationDone    CompensationStatus = "done"
	// CompensationFailed means attempts were exhausted and an operator has to step in.
	CompensationFailed CompensationStatus = "failed"
)

// MaxLastErrorLength bounds CompensationTask.LastError.
const MaxLastErrorLength = 500

// CompensationTask records a remote identity that has no local account and could not
// be deleted synchronously. Rows are never removed; done and failed are terminal.
type CompensationTask struct {
	ID          uuid.UUID
	TaskType    CompensationTaskType
	KCUserID    uuid.UUID
	Email       string
	Status      CompensationStatus
	Attempts    int
	NextRetryAt time.Time
	LastError   *string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// NewCompensationTask builds a pending task that is due immediately.
func NewCompensationTask(kcUserID uuid.UUID, email string, lastError string, now time.Time) CompensationTask {
	task := CompensationTask{
		ID:          uuid.New(),
		TaskType:    TaskTypeDeleteIdentity,
		KCUserID:    kcUserID,
		Email:       email,
		Status:      CompensationPending,
		Attempts:    0,
		NextRetryAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if lastError != "" {
		task.LastError = &lastError
	}
	return task
}

// Terminal reports whether the task will never be selected again.
func (t CompensationTask) Terminal() bool {
	return t.Status == CompensationDone || t.Status == CompensationFailed
}
