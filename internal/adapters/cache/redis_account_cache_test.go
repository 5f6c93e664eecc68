package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/users-service/internal/domain"
)

func sampleAccount() domain.Account {
	now := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	return domain.Account{
		AccountID:      uuid.New(),
		Email:          "ada@example.com",
		AccountType:    domain.AccountTypeOrganization,
		OnboardingStep: 2,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func TestAccountCodec(t *testing.T) {
	account := sampleAccount()
	raw, err := encodeAccount(account)
	require.NoError(t, err)

	got, err := decodeAccount(raw)
	require.NoError(t, err)
	assert.Equal(t, account, got)

	_, err = decodeAccount([]byte(`{"email":"x@example.com"}`))
	require.Error(t, err)
	_, err = decodeAccount([]byte(`not json`))
	require.Error(t, err)
}

func TestAccountKey(t *testing.T) {
	id := uuid.MustParse("8d3f6a4e-0c1b-4f7e-9a51-2b1d1d0c9e11")
	assert.Equal(t, "account:8d3f6a4e-0c1b-4f7e-9a51-2b1d1d0c9e11", accountKey(id))
}

// Runs against a real Redis when USERS_TEST_REDIS_URL is set.
func TestRedisAccountCacheRoundTrip(t *testing.T) {
	url := os.Getenv("USERS_TEST_REDIS_URL")
	if url == "" {
		t.Skip("USERS_TEST_REDIS_URL not set")
	}
	ctx := context.Background()
	client, err := Connect(ctx, url)
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close() })
	cache := NewRedisAccountCache(client)
	account := sampleAccount()

	_, found, err := cache.Get(ctx, account.AccountID)
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, cache.Set(ctx, account, time.Minute))
	got, found, err := cache.Get(ctx, account.AccountID)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, account, got)

	require.NoError(t, cache.Delete(ctx, account.AccountID))
	_, found, err = cache.Get(ctx, account.AccountID)
	require.NoError(t, err)
	assert.False(t, found)
}
