package postgres

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viralforge/users-service/internal/domain"
)

func TestProfileModelSelectsTableByVariant(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	account := domain.Account{AccountID: uuid.New(), CreatedAt: now, UpdatedAt: now}
	intent := domain.IntentSeller

	row, err := profileModel(account, domain.PersonProfile{
		FirstName:      "Ada",
		LastName:       "Lovelace",
		ProfileDetails: domain.ProfileDetails{Intent: &intent, ProfileScore: 10},
	})
	require.NoError(t, err)
	person, ok := row.(*userProfileModel)
	require.True(t, ok)
	assert.Equal(t, "user_profile", person.TableName())
	assert.Equal(t, account.AccountID, person.AccountID)
	require.NotNil(t, person.Intent)
	assert.Equal(t, "seller", *person.Intent)
	assert.Equal(t, now, person.CreatedAt)

	row, err = profileModel(account, domain.OrganizationProfile{DisplayName: "Acme"})
	require.NoError(t, err)
	org, ok := row.(*companyProfileModel)
	require.True(t, ok)
	assert.Equal(t, "company_profile", org.TableName())
	assert.Equal(t, "Acme", org.DisplayName)
	assert.Nil(t, org.Intent)
}

func TestTaskModelRoundTripKeepsNullableFields(t *testing.T) {
	task := domain.NewCompensationTask(uuid.New(), "", "", time.Now().UTC())
	row := toTaskModel(task)
	assert.Nil(t, row.Email)
	assert.Nil(t, row.LastError)
	assert.Equal(t, "delete_kc_user", row.TaskType)
	assert.Equal(t, "pending", row.Status)

	back := toDomainTask(row)
	assert.Equal(t, task, back)
}
