package application

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
)

// CurrentAccount returns the caller's account, read through the account cache.
// Cache failures never fail the request.
func (s *Service) CurrentAccount(ctx context.Context, principal domain.Principal) (AccountView, error) {
	account, err := s.currentAccount(ctx, principal)
	if err != nil {
		return AccountView{}, err
	}
	return toAccountView(account), nil
}

// CurrentProfile returns the caller's profile variant.
func (s *Service) CurrentProfile(ctx context.Context, principal domain.Principal) (ProfileView, error) {
	account, err := s.currentAccount(ctx, principal)
	if err != nil {
		return ProfileView{}, err
	}
	profile, err := s.accounts.GetProfile(ctx, account.AccountID, account.AccountType)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return ProfileView{}, fmt.Errorf("%w: account %s", domain.ErrProfileNotFound, account.AccountID)
		}
		return ProfileView{}, fmt.Errorf("%w: load profile: %v", domain.ErrPersistenceFailure, err)
	}
	return toProfileView(profile), nil
}

func (s *Service) currentAccount(ctx context.Context, principal domain.Principal) (domain.Account, error) {
	logger := appLogger("application.account")
	if principal.AccountID == uuid.Nil {
		return domain.Account{}, fmt.Errorf("%w: subject is not an account id", domain.ErrInvalidToken)
	}

	if s.cache != nil {
		cached, found, err := s.cache.Get(ctx, principal.AccountID)
		switch {
		case err != nil:
			logger.WarnContext(ctx, "account cache read failed",
				"operation", "cache_get",
				"outcome", "failure",
				"account_id", principal.AccountID,
				"error", err,
			)
		case found && cached.IsActive:
			return cached, nil
		}
	}

	account, err := s.accounts.GetByID(ctx, principal.AccountID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.Account{}, fmt.Errorf("%w: %s", domain.ErrAccountNotFound, principal.AccountID)
		}
		return domain.Account{}, fmt.Errorf("%w: load account: %v", domain.ErrPersistenceFailure, err)
	}
	if !account.IsActive {
		return domain.Account{}, domain.ErrAccountDisabled
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, account, s.cfg.AccountCacheTTL); err != nil {
			logger.WarnContext(ctx, "account cache write failed",
				"operation", "cache_set",
				"outcome", "failure",
				"account_id", account.AccountID,
				"error", err,
			)
		}
	}
	return account, nil
}

func (s *Service) invalidateAccount(ctx context.Context, accountID uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, accountID); err != nil {
		appLogger("application.account").WarnContext(ctx, "account cache invalidation failed",
			"operation", "cache_delete",
			"outcome", "failure",
			"account_id", accountID,
			"error", err,
		)
	}
}
