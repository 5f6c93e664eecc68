package postgres

import (
	"time"

	"github.com/google/uuid"
)

type accountModel struct {
	AccountID      uuid.UUID  `gorm:"column:account_id;type:uuid;primaryKey"`
	Email          string     `gorm:"column:email"`
	AccountType    string     `gorm:"column:account_type"`
	OnboardingStep int        `gorm:"column:onboarding_step"`
	IsActive       bool       `gorm:"column:is_active"`
	DeactivatedAt  *time.Time `gorm:"column:deactivated_at"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	UpdatedAt      time.Time  `gorm:"column:updated_at"`
}

func (accountModel) TableName() string { return "accounts" }

type userProfileModel struct {
	AccountID    uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	FirstName    string    `gorm:"column:first_name"`
	LastName     string    `gorm:"column:last_name"`
	Phone        *string   `gorm:"column:phone"`
	Intent       *string   `gorm:"column:intent"`
	PhotoURL     *string   `gorm:"column:photo_url"`
	Description  *string   `gorm:"column:description"`
	ProfileScore int       `gorm:"column:profile_score"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (userProfileModel) TableName() string { return "user_profile" }

type companyProfileModel struct {
	AccountID    uuid.UUID `gorm:"column:account_id;type:uuid;primaryKey"`
	DisplayName  string    `gorm:"column:display_name"`
	Phone        *string   `gorm:"column:phone"`
	Intent       *string   `gorm:"column:intent"`
	PhotoURL     *string   `gorm:"column:photo_url"`
	Description  *string   `gorm:"column:description"`
	ProfileScore int       `gorm:"column:profile_score"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	UpdatedAt    time.Time `gorm:"column:updated_at"`
}

func (companyProfileModel) TableName() string { return "company_profile" }

type compensationTaskModel struct {
	ID          uuid.UUID `gorm:"column:id;type:uuid;primaryKey"`
	TaskType    string    `gorm:"column:task_type"`
	KCUserID    uuid.UUID `gorm:"column:kc_user_id;type:uuid"`
	Email       *string   `gorm:"column:email"`
	Status      string    `gorm:"column:status"`
	Attempts    int       `gorm:"column:attempts"`
	NextRetryAt time.Time `gorm:"column:next_retry_at"`
	LastError   *string   `gorm:"column:last_error"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (compensationTaskModel) TableName() string { return "kc_compensation_tasks" }

type outboxModel struct {
	OutboxID       uuid.UUID  `gorm:"column:outbox_id;type:uuid;primaryKey"`
	EventType      string     `gorm:"column:event_type"`
	PartitionKey   string     `gorm:"column:partition_key"`
	Payload        string     `gorm:"column:payload;type:jsonb"`
	CreatedAt      time.Time  `gorm:"column:created_at"`
	PublishedAt    *time.Time `gorm:"column:published_at"`
	RetryCount     int        `gorm:"column:retry_count"`
	LastError      *string    `gorm:"column:last_error"`
	LastErrorAt    *time.Time `gorm:"column:last_error_at"`
	ClaimToken     *string    `gorm:"column:claim_token"`
	ClaimUntil     *time.Time `gorm:"column:claim_until"`
	DeadLetteredAt *time.Time `gorm:"column:dead_lettered_at"`
}

func (outboxModel) TableName() string { return "users_outbox" }
