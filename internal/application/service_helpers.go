package application

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
)

const (
	EventAccountRegistered             = "account.registered"
	EventIdentityCompensationExhausted = "identity.compensation_exhausted"
)

// appLogger scopes the default logger to an application module.
func appLogger(module string) *slog.Logger {
	return slog.Default().With("module", module, "layer", "application")
}

// hashEmail is the log-safe fingerprint of an email address.
func hashEmail(email string) string {
	sum := sha256.Sum256([]byte(strings.ToLower(email)))
	return hex.EncodeToString(sum[:])[:12]
}

// formatTaskError renders "<Kind>: <message>" bounded to domain.MaxLastErrorLength runes.
func formatTaskError(err error) string {
	if err == nil {
		return ""
	}
	return truncateRunes(errorKind(err)+": "+err.Error(), domain.MaxLastErrorLength)
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, domain.ErrIdentityProviderUnavailable):
		return "IdentityProviderUnavailable"
	case errors.Is(err, domain.ErrIdentityProviderRejected):
		return "IdentityProviderRejected"
	case errors.Is(err, domain.ErrIdentityNotFound):
		return "IdentityNotFound"
	default:
		return strings.TrimPrefix(fmt.Sprintf("%T", err), "*")
	}
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}

type accountRegisteredPayload struct {
	AccountID   uuid.UUID          `json:"account_id"`
	EmailHash   string             `json:"email_hash"`
	AccountType domain.AccountType `json:"account_type"`
	OccurredAt  time.Time          `json:"occurred_at"`
}

func accountRegisteredEvent(account domain.Account, at time.Time) (ports.OutboxEvent, error) {
	payload, err := json.Marshal(accountRegisteredPayload{
		AccountID:   account.AccountID,
		EmailHash:   hashEmail(account.Email),
		AccountType: account.AccountType,
		OccurredAt:  at,
	})
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	return ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    EventAccountRegistered,
		PartitionKey: account.AccountID.String(),
		Payload:      payload,
		OccurredAt:   at,
	}, nil
}

type compensationExhaustedPayload struct {
	TaskID     uuid.UUID `json:"task_id"`
	KCUserID   uuid.UUID `json:"kc_user_id"`
	EmailHash  string    `json:"email_hash"`
	Attempts   int       `json:"attempts"`
	LastError  string    `json:"last_error"`
	OccurredAt time.Time `json:"occurred_at"`
}

func compensationExhaustedEvent(task domain.CompensationTask, at time.Time) (ports.OutboxEvent, error) {
	lastErr := ""
	if task.LastError != nil {
		lastErr = *task.LastError
	}
	payload, err := json.Marshal(compensationExhaustedPayload{
		TaskID:     task.ID,
		KCUserID:   task.KCUserID,
		EmailHash:  hashEmail(task.Email),
		Attempts:   task.Attempts,
		LastError:  lastErr,
		OccurredAt: at,
	})
	if err != nil {
		return ports.OutboxEvent{}, err
	}
	return ports.OutboxEvent{
		EventID:      uuid.New(),
		EventType:    EventIdentityCompensationExhausted,
		PartitionKey: task.KCUserID.String(),
		Payload:      payload,
		OccurredAt:   at,
	}, nil
}
