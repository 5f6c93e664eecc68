package postgres

import (
	"fmt"
	"time"

	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
)

func toAccountModel(a domain.Account) accountModel {
	return accountModel{
		AccountID:      a.AccountID,
		Email:          a.Email,
		AccountType:    string(a.AccountType),
		OnboardingStep: a.OnboardingStep,
		IsActive:       a.IsActive,
		DeactivatedAt:  a.DeactivatedAt,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

func toDomainAccount(m accountModel) domain.Account {
	return domain.Account{
		AccountID:      m.AccountID,
		Email:          m.Email,
		AccountType:    domain.AccountType(m.AccountType),
		OnboardingStep: m.OnboardingStep,
		IsActive:       m.IsActive,
		DeactivatedAt:  m.DeactivatedAt,
		CreatedAt:      m.CreatedAt,
		UpdatedAt:      m.UpdatedAt,
	}
}

// profileModel returns the row to insert for the given profile variant.
func profileModel(account domain.Account, profile domain.Profile) (any, error) {
	d := profile.Details()
	switch p := profile.(type) {
	case domain.PersonProfile:
		return &userProfileModel{
			AccountID:    account.AccountID,
			FirstName:    p.FirstName,
			LastName:     p.LastName,
			Phone:        d.Phone,
			Intent:       intentString(d.Intent),
			PhotoURL:     d.PhotoURL,
			Description:  d.Description,
			ProfileScore: d.ProfileScore,
			CreatedAt:    account.CreatedAt,
			UpdatedAt:    account.UpdatedAt,
		}, nil
	case domain.OrganizationProfile:
		return &companyProfileModel{
			AccountID:    account.AccountID,
			DisplayName:  p.DisplayName,
			Phone:        d.Phone,
			Intent:       intentString(d.Intent),
			PhotoURL:     d.PhotoURL,
			Description:  d.Description,
			ProfileScore: d.ProfileScore,
			CreatedAt:    account.CreatedAt,
			UpdatedAt:    account.UpdatedAt,
		}, nil
	default:
		return nil, fmt.Errorf("unsupported profile variant %T", profile)
	}
}

func userProfileToDomain(m userProfileModel) domain.PersonProfile {
	return domain.PersonProfile{
		FirstName: m.FirstName,
		LastName:  m.LastName,
		ProfileDetails: domain.ProfileDetails{
			Phone:        m.Phone,
			Intent:       intentValue(m.Intent),
			PhotoURL:     m.PhotoURL,
			Description:  m.Description,
			ProfileScore: m.ProfileScore,
		},
	}
}

func companyProfileToDomain(m companyProfileModel) domain.OrganizationProfile {
	return domain.OrganizationProfile{
		DisplayName: m.DisplayName,
		ProfileDetails: domain.ProfileDetails{
			Phone:        m.Phone,
			Intent:       intentValue(m.Intent),
			PhotoURL:     m.PhotoURL,
			Description:  m.Description,
			ProfileScore: m.ProfileScore,
		},
	}
}

func intentString(i *domain.Intent) *string {
	if i == nil {
		return nil
	}
	s := string(*i)
	return &s
}

func intentValue(s *string) *domain.Intent {
	if s == nil || *s == "" {
		return nil
	}
	i := domain.Intent(*s)
	return &i
}

func toTaskModel(t domain.CompensationTask) compensationTaskModel {
	var email *string
	if t.Email != "" {
		e := t.Email
		email = &e
	}
	return compensationTaskModel{
		ID:          t.ID,
		TaskType:    string(t.TaskType),
		KCUserID:    t.KCUserID,
		Email:       email,
		Status:      string(t.Status),
		Attempts:    t.Attempts,
		NextRetryAt: t.NextRetryAt,
		LastError:   t.LastError,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
}

func toDomainTask(m compensationTaskModel) domain.CompensationTask {
	task := domain.CompensationTask{
		ID:          m.ID,
		TaskType:    domain.CompensationTaskType(m.TaskType),
		KCUserID:    m.KCUserID,
		Status:      domain.CompensationStatus(m.Status),
		Attempts:    m.Attempts,
		NextRetryAt: m.NextRetryAt,
		LastError:   m.LastError,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
	}
	if m.Email != nil {
		task.Email = *m.Email
	}
	return task
}

func toOutboxModel(e ports.OutboxEvent) outboxModel {
	occurred := e.OccurredAt
	if occurred.IsZero() {
		occurred = time.Now().UTC()
	}
	return outboxModel{
		OutboxID:     e.EventID,
		EventType:    e.EventType,
		PartitionKey: e.PartitionKey,
		Payload:      string(e.Payload),
		CreatedAt:    occurred,
	}
}

func toOutboxRecord(m outboxModel) ports.OutboxRecord {
	return ports.OutboxRecord{
		OutboxID:     m.OutboxID,
		EventType:    m.EventType,
		PartitionKey: m.PartitionKey,
		Payload:      []byte(m.Payload),
		RetryCount:   m.RetryCount,
		LastError:    m.LastError,
		CreatedAt:    m.CreatedAt,
		PublishedAt:  m.PublishedAt,
	}
}
