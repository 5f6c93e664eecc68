package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
)

// remoteIdentity is the outcome of the identity-provider half of provisioning.
// When Leaked is set, IdentityID exists remotely without a credential and the
// compensating delete failed with DeleteErr.
type remoteIdentity struct {
	IdentityID uuid.UUID
	Leaked     bool
	DeleteErr  error
}

// Register validates the wire request and provisions the account.
func (s *Service) Register(ctx context.Context, req RegisterRequest) (RegisterResponse, error) {
	cmd, err := req.Validate()
	if err != nil {
		return RegisterResponse{}, err
	}
	account, err := s.Provision(ctx, cmd)
	if err != nil {
		return RegisterResponse{}, err
	}
	return RegisterResponse{AccountID: account.AccountID, Email: account.Email}, nil
}

// Provision creates the identity in the provider and the local account + profile.
// Either both exist on return, or the error is one of the classified domain errors and
// the remote identity has been deleted or recorded in the compensation ledger.
func (s *Service) Provision(ctx context.Context, cmd RegisterCommand) (domain.Account, error) {
	logger := appLogger("application.provisioning")
	emailHash := hashEmail(cmd.Email)

	_, err := s.accounts.FindByEmail(ctx, cmd.Email)
	switch {
	case err == nil:
		logger.InfoContext(ctx, "email already registered",
			"operation", "provision",
			"outcome", "rejected",
			"email_hash", emailHash,
		)
		return domain.Account{}, fmt.Errorf("%w", domain.ErrAlreadyExists)
	case !errors.Is(err, domain.ErrNotFound):
		return domain.Account{}, fmt.Errorf("%w: lookup account by email: %v", domain.ErrPersistenceFailure, err)
	}

	// From identity creation on, the saga runs to completion even if the caller goes away.
	ctx = context.WithoutCancel(ctx)
	remote, err := s.createRemoteIdentity(ctx, cmd)
	if err != nil {
		if remote.Leaked {
			s.enqueueCompensation(ctx, remote.IdentityID, cmd.Email, remote.DeleteErr)
		}
		return domain.Account{}, err
	}

	now := s.nowFn()
	account := domain.Account{
		AccountID:      remote.IdentityID,
		Email:          cmd.Email,
		AccountType:    cmd.Profile.AccountType(),
		OnboardingStep: 1,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	var insertErr error
	event, err := accountRegisteredEvent(account, now)
	if err != nil {
		insertErr = err
	} else {
		insertErr = s.accounts.InsertAccountAndProfile(ctx, account, cmd.Profile, event)
	}
	if insertErr != nil {
		classified := classifyPersistenceError(insertErr)
		logger.ErrorContext(ctx, "account persistence failed",
			"operation", "insert_account_and_profile",
			"outcome", "failure",
			"kc_user_id", remote.IdentityID,
			"email_hash", emailHash,
			"error", insertErr,
		)
		if delErr := s.deleteIdentity(ctx, remote.IdentityID); delErr != nil {
			logger.ErrorContext(ctx, "compensating identity delete failed",
				"operation", "delete_identity",
				"outcome", "failure",
				"kc_user_id", remote.IdentityID,
				"error", delErr,
			)
			s.enqueueCompensation(ctx, remote.IdentityID, cmd.Email, delErr)
		} else {
			logger.InfoContext(ctx, "compensating identity delete succeeded",
				"operation", "delete_identity",
				"outcome", "success",
				"kc_user_id", remote.IdentityID,
			)
		}
		return domain.Account{}, classified
	}

	logger.InfoContext(ctx, "account registered",
		"operation", "provision",
		"outcome", "success",
		"kc_user_id", account.AccountID,
		"account_type", account.AccountType,
	)
	return account, nil
}

// createRemoteIdentity runs the create and set-credential steps. A credential failure
// triggers an immediate delete; if that delete fails the result is marked Leaked.
func (s *Service) createRemoteIdentity(ctx context.Context, cmd RegisterCommand) (remoteIdentity, error) {
	logger := appLogger("application.provisioning")

	logger.InfoContext(ctx, "identity create started",
		"operation", "create_identity",
		"outcome", "start",
		"email_hash", hashEmail(cmd.Email),
	)
	id, err := s.identities.CreateIdentity(ctx, cmd.Email)
	if err != nil {
		logger.WarnContext(ctx, "identity create failed",
			"operation", "create_identity",
			"outcome", "failure",
			"email_hash", hashEmail(cmd.Email),
			"error", err,
		)
		return remoteIdentity{}, classifyProviderError("create identity", err)
	}

	result := remoteIdentity{IdentityID: id}
	if err := s.identities.SetCredential(ctx, id, cmd.Password); err != nil {
		credErr := classifyProviderError("set credential", err)
		logger.WarnContext(ctx, "identity credential assignment failed",
			"operation", "set_credential",
			"outcome", "failure",
			"kc_user_id", id,
			"error", err,
		)
		if delErr := s.deleteIdentity(ctx, id); delErr != nil {
			logger.ErrorContext(ctx, "compensating identity delete failed",
				"operation", "delete_identity",
				"outcome", "failure",
				"kc_user_id", id,
				"error", delErr,
			)
			result.Leaked = true
			result.DeleteErr = delErr
		} else {
			logger.InfoContext(ctx, "compensating identity delete succeeded",
				"operation", "delete_identity",
				"outcome", "success",
				"kc_user_id", id,
			)
		}
		return result, credErr
	}

	logger.InfoContext(ctx, "identity created",
		"operation", "create_identity",
		"outcome", "success",
		"kc_user_id", id,
	)
	return result, nil
}

// deleteIdentity removes an identity; an identity that is already gone counts as deleted.
func (s *Service) deleteIdentity(ctx context.Context, id uuid.UUID) error {
	err := s.identities.DeleteIdentity(ctx, id)
	if err == nil || errors.Is(err, domain.ErrIdentityNotFound) {
		return nil
	}
	return err
}

// enqueueCompensation records a leaked identity. A ledger failure is logged and dropped.
func (s *Service) enqueueCompensation(ctx context.Context, id uuid.UUID, email string, cause error) {
	logger := appLogger("application.provisioning")
	task := domain.NewCompensationTask(id, email, formatTaskError(cause), s.nowFn())
	if err := s.ledger.Enqueue(ctx, task); err != nil {
		// TODO: spill to a local durable queue before the database write so this path cannot lose the leak.
		logger.ErrorContext(ctx, "compensation task persist failed",
			"operation", "enqueue_compensation",
			"outcome", "failure",
			"kc_user_id", id,
			"email_hash", hashEmail(email),
			"error", err,
		)
		return
	}
	logger.WarnContext(ctx, "compensation task enqueued",
		"operation", "enqueue_compensation",
		"outcome", "success",
		"task_id", task.ID,
		"kc_user_id", id,
		"email_hash", hashEmail(email),
	)
}

// classifyProviderError keeps the provider sentinel, treating unknown failures as unavailability.
func classifyProviderError(op string, err error) error {
	if errors.Is(err, domain.ErrIdentityProviderUnavailable) || errors.Is(err, domain.ErrIdentityProviderRejected) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrIdentityProviderUnavailable, op, err)
}

// classifyPersistenceError maps a failed account insert to the caller taxonomy:
// email uniqueness, then missing field, then generic persistence failure.
func classifyPersistenceError(err error) error {
	var perr *ports.PersistenceError
	if errors.As(err, &perr) {
		switch {
		case perr.Kind == ports.ViolationUnique && perr.Constraint == ports.AccountsEmailConstraint:
			return fmt.Errorf("%w", domain.ErrAlreadyExists)
		case perr.Kind == ports.ViolationNotNull:
			return fmt.Errorf("%w: %s", domain.ErrInvalidField, perr.Column)
		}
	}
	return fmt.Errorf("%w: %v", domain.ErrPersistenceFailure, err)
}
