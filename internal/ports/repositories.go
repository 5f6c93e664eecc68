package ports

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
)

// AccountsEmailConstraint is the unique constraint guarding accounts.email.
const AccountsEmailConstraint = "accounts_email_key"

// ViolationKind classifies a failed write against the account tables.
type ViolationKind int

const (
	ViolationOther ViolationKind = iota
	ViolationUnique
	ViolationNotNull
)

func (k ViolationKind) String() string {
	switch k {
	case ViolationUnique:
		return "unique_violation"
	case ViolationNotNull:
		return "not_null_violation"
	default:
		return "other"
	}
}

// PersistenceError is returned by AccountStore writes. Constraint and Column are
// filled when the database reports them.
type PersistenceError struct {
	Kind       ViolationKind
	Constraint string
	Column     string
	Err        error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s (constraint=%q column=%q): %v", e.Kind, e.Constraint, e.Column, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AccountStore owns accounts and their profile rows.
type AccountStore interface {
	// FindByEmail returns domain.ErrNotFound when no account uses the email.
	FindByEmail(ctx context.Context, email string) (domain.Account, error)
	GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error)
	// InsertAccountAndProfile writes the account, its profile and the outbox event in one
	// transaction. On failure the transaction is rolled back and a *PersistenceError is returned.
	InsertAccountAndProfile(ctx context.Context, account domain.Account, profile domain.Profile, event OutboxEvent) error
	GetProfile(ctx context.Context, accountID uuid.UUID, accountType domain.AccountType) (domain.Profile, error)
	UpdatePhotoURL(ctx context.Context, accountID uuid.UUID, accountType domain.AccountType, photoURL string, updatedAt time.Time) error
}

// CompensationLedger is the durable list of identities awaiting deletion.
type CompensationLedger interface {
	Enqueue(ctx context.Context, task domain.CompensationTask) error
	// SelectDue returns up to limit pending tasks with attempts < maxAttempts and
	// next_retry_at <= now. No ordering is guaranteed.
	SelectDue(ctx context.Context, now time.Time, maxAttempts, limit int) ([]domain.CompensationTask, error)
	// Save commits one task, plus any outbox events, in its own transaction.
	Save(ctx context.Context, task domain.CompensationTask, events ...OutboxEvent) error
}

// OutboxEvent is a domain event staged for publishing.
type OutboxEvent struct {
	EventID      uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	OccurredAt   time.Time
}

// OutboxRecord is the durable state of a staged event.
type OutboxRecord struct {
	OutboxID     uuid.UUID
	EventType    string
	PartitionKey string
	Payload      []byte
	RetryCount   int
	LastError    *string
	CreatedAt    time.Time
	PublishedAt  *time.Time
}

// OutboxRepository drives the claim/publish/retry loop for staged events.
type OutboxRepository interface {
	ClaimUnpublished(ctx context.Context, limit int, claimToken string, claimUntil time.Time) ([]OutboxRecord, error)
	MarkPublished(ctx context.Context, outboxID uuid.UUID, claimToken string, at time.Time) error
	MarkFailed(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
	MarkDeadLettered(ctx context.Context, outboxID uuid.UUID, claimToken, errMsg string, at time.Time) error
}
