package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
	"gorm.io/gorm"
)

type accountRepository struct {
	db *gorm.DB
}

func (r *accountRepository) FindByEmail(ctx context.Context, email string) (domain.Account, error) {
	var row accountModel
	err := r.db.WithContext(ctx).Where("email = ?", email).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, err
	}
	return toDomainAccount(row), nil
}

func (r *accountRepository) GetByID(ctx context.Context, accountID uuid.UUID) (domain.Account, error) {
	var row accountModel
	err := r.db.WithContext(ctx).Where("account_id = ?", accountID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.Account{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.Account{}, err
	}
	return toDomainAccount(row), nil
}

// InsertAccountAndProfile commits account, profile and event atomically. The
// transaction is driven by hand so a failed rollback is reported next to the cause.
func (r *accountRepository) InsertAccountAndProfile(ctx context.Context, account domain.Account, profile domain.Profile, event ports.OutboxEvent) error {
	profileRow, err := profileModel(account, profile)
	if err != nil {
		return &ports.PersistenceError{Kind: ports.ViolationOther, Err: err}
	}
	accountRow := toAccountModel(account)
	outboxRow := toOutboxModel(event)

	tx := r.db.WithContext(ctx).Begin()
	if tx.Error != nil {
		return classifyWriteError(fmt.Errorf("begin: %w", tx.Error))
	}
	fail := func(step string, cause error) error {
		if rbErr := tx.Rollback().Error; rbErr != nil {
			slog.Default().ErrorContext(ctx, "account insert rollback failed",
				"module", "postgres",
				"layer", "adapter",
				"operation", "insert_account_and_profile",
				"outcome", "failure",
				"step", step,
				"account_id", account.AccountID,
				"error", rbErr,
			)
		}
		return classifyWriteError(fmt.Errorf("%s: %w", step, cause))
	}

	if err := tx.Create(&accountRow).Error; err != nil {
		return fail("insert account", err)
	}
	if err := tx.Create(profileRow).Error; err != nil {
		return fail("insert profile", err)
	}
	if err := tx.Create(&outboxRow).Error; err != nil {
		return fail("insert outbox event", err)
	}
	if err := tx.Commit().Error; err != nil {
		return classifyWriteError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

func (r *accountRepository) GetProfile(ctx context.Context, accountID uuid.UUID, accountType domain.AccountType) (domain.Profile, error) {
	db := r.db.WithContext(ctx).Where("account_id = ?", accountID)
	switch accountType {
	case domain.AccountTypePerson:
		var row userProfileModel
		if err := db.Take(&row).Error; err != nil {
			return nil, notFoundOr(err)
		}
		return userProfileToDomain(row), nil
	case domain.AccountTypeOrganization:
		var row companyProfileModel
		if err := db.Take(&row).Error; err != nil {
			return nil, notFoundOr(err)
		}
		return companyProfileToDomain(row), nil
	default:
		return nil, fmt.Errorf("%w: account type %q", domain.ErrInvalidInput, accountType)
	}
}

func (r *accountRepository) UpdatePhotoURL(ctx context.Context, accountID uuid.UUID, accountType domain.AccountType, photoURL string, updatedAt time.Time) error {
	var model any
	switch accountType {
	case domain.AccountTypePerson:
		model = &userProfileModel{}
	case domain.AccountTypeOrganization:
		model = &companyProfileModel{}
	default:
		return fmt.Errorf("%w: account type %q", domain.ErrInvalidInput, accountType)
	}
	res := r.db.WithContext(ctx).
		Model(model).
		Where("account_id = ?", accountID).
		Updates(map[string]any{
			"photo_url":  photoURL,
			"updated_at": updatedAt,
		})
	return updatedOrNotFound(res)
}

func notFoundOr(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return domain.ErrNotFound
	}
	return err
}
