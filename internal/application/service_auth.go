package application

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/viralforge/users-service/internal/domain"
)

// Login exchanges email/password for identity-provider tokens. Unknown and inactive
// accounts fail the same way as a wrong password.
func (s *Service) Login(ctx context.Context, req LoginRequest) (domain.TokenSet, error) {
	logger := appLogger("application.auth")

	email, err := normalizeEmail(req.Email)
	if err != nil {
		return domain.TokenSet{}, err
	}
	if strings.TrimSpace(req.Password) == "" {
		return domain.TokenSet{}, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	emailHash := hashEmail(email)

	account, err := s.accounts.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			logger.InfoContext(ctx, "login for unknown email",
				"operation", "login",
				"outcome", "rejected",
				"email_hash", emailHash,
			)
			return domain.TokenSet{}, domain.ErrInvalidCredentials
		}
		return domain.TokenSet{}, fmt.Errorf("%w: lookup account by email: %v", domain.ErrPersistenceFailure, err)
	}
	if !account.IsActive {
		logger.InfoContext(ctx, "login blocked for inactive account",
			"operation", "login",
			"outcome", "rejected",
			"email_hash", emailHash,
		)
		return domain.TokenSet{}, domain.ErrInvalidCredentials
	}

	tokens, err := s.authenticator.PasswordGrant(ctx, email, req.Password)
	if err != nil {
		if errors.Is(err, domain.ErrInvalidCredentials) {
			logger.InfoContext(ctx, "login with invalid password",
				"operation", "login",
				"outcome", "rejected",
				"email_hash", emailHash,
			)
			return domain.TokenSet{}, domain.ErrInvalidCredentials
		}
		logger.WarnContext(ctx, "login failed on identity provider",
			"operation", "login",
			"outcome", "failure",
			"email_hash", emailHash,
			"error", err,
		)
		if errors.Is(err, domain.ErrIdentityProviderUnavailable) {
			return domain.TokenSet{}, err
		}
		return domain.TokenSet{}, fmt.Errorf("%w: password grant: %v", domain.ErrIdentityProviderUnavailable, err)
	}

	logger.InfoContext(ctx, "login succeeded",
		"operation", "login",
		"outcome", "success",
		"email_hash", emailHash,
	)
	return tokens, nil
}
