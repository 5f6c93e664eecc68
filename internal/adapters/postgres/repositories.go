package postgres

import (
	"github.com/viralforge/users-service/internal/ports"
	"gorm.io/gorm"
)

type Repositories struct {
	Accounts     ports.AccountStore
	Compensation ports.CompensationLedger
	Outbox       ports.OutboxRepository
}

func NewRepositories(db *gorm.DB) Repositories {
	return Repositories{
		Accounts:     &accountRepository{db: db},
		Compensation: &compensationRepository{db: db},
		Outbox:       &outboxRepository{db: db},
	}
}
