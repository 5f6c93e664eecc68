package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/viralforge/users-service/internal/domain"
)

const accountKeyPrefix = "account:"

// RedisAccountCache stores account snapshots as JSON under "account:<id>".
type RedisAccountCache struct {
	client redis.Cmdable
}

func NewRedisAccountCache(client redis.Cmdable) *RedisAccountCache {
	return &RedisAccountCache{client: client}
}

type accountEntry struct {
	AccountID      uuid.UUID  `json:"account_id"`
	Email          string     `json:"email"`
	AccountType    string     `json:"account_type"`
	OnboardingStep int        `json:"onboarding_step"`
	IsActive       bool       `json:"is_active"`
	DeactivatedAt  *time.Time `json:"deactivated_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

func accountKey(id uuid.UUID) string {
	return accountKeyPrefix + id.String()
}

func (c *RedisAccountCache) Get(ctx context.Context, accountID uuid.UUID) (domain.Account, bool, error) {
	raw, err := c.client.Get(ctx, accountKey(accountID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Account{}, false, nil
	}
	if err != nil {
		return domain.Account{}, false, err
	}
	account, err := decodeAccount(raw)
	if err != nil {
		return domain.Account{}, false, fmt.Errorf("decode cached account: %w", err)
	}
	return account, true, nil
}

func (c *RedisAccountCache) Set(ctx context.Context, account domain.Account, ttl time.Duration) error {
	raw, err := encodeAccount(account)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, accountKey(account.AccountID), raw, ttl).Err()
}

func (c *RedisAccountCache) Delete(ctx context.Context, accountID uuid.UUID) error {
	return c.client.Del(ctx, accountKey(accountID)).Err()
}

func encodeAccount(a domain.Account) ([]byte, error) {
	return json.Marshal(accountEntry{
		AccountID:      a.AccountID,
		Email:          a.Email,
		AccountType:    string(a.AccountType),
		OnboardingStep: a.OnboardingStep,
		IsActive:       a.IsActive,
		DeactivatedAt:  a.DeactivatedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	})
}

func decodeAccount(raw []byte) (domain.Account, error) {
	var e accountEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return domain.Account{}, err
	}
	if e.AccountID == uuid.Nil {
		return domain.Account{}, errors.New("cached account has no id")
	}
	return domain.Account{
		AccountID:      e.AccountID,
		Email:          e.Email,
		AccountType:    domain.AccountType(e.AccountType),
		OnboardingStep: e.OnboardingStep,
		IsActive:       e.IsActive,
		DeactivatedAt:  e.DeactivatedAt,
		CreatedAt:      e.CreatedAt,
		UpdatedAt:      e.UpdatedAt,
	}, nil
}
