package application

import (
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
)

// RegisterRequest is the registration payload as received on the wire.
// AccountType selects which name fields are allowed.
type RegisterRequest struct {
	AccountType string  `json:"account_type"`
	Email       string  `json:"email"`
	Password    string  `json:"password"`
	FirstName   string  `json:"first_name,omitempty"`
	LastName    string  `json:"last_name,omitempty"`
	DisplayName string  `json:"display_name,omitempty"`
	Phone       *string `json:"phone,omitempty"`
	Intent      string  `json:"intent,omitempty"`
	Description *string `json:"description,omitempty"`
}

// RegisterCommand is a validated registration. Profile is already the concrete variant.
type RegisterCommand struct {
	Email    string
	Password string
	Profile  domain.Profile
}

type RegisterResponse struct {
	AccountID uuid.UUID `json:"account_id"`
	Email     string    `json:"email"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type AccountView struct {
	AccountID      uuid.UUID          `json:"account_id"`
	Email          string             `json:"email"`
	AccountType    domain.AccountType `json:"account_type"`
	OnboardingStep int                `json:"onboarding_step"`
	IsActive       bool               `json:"is_active"`
	CreatedAt      time.Time          `json:"created_at"`
}

// ProfileView is the current user's profile. Person fields and organization fields
// are mutually exclusive and selected by AccountType.
type ProfileView struct {
	AccountType domain.AccountType `json:"account_type"`
	FirstName   string             `json:"first_name,omitempty"`
	LastName    string             `json:"last_name,omitempty"`
	DisplayName string             `json:"display_name,omitempty"`
	Phone       *string            `json:"phone"`
	Intent      *domain.Intent     `json:"intent"`
	PhotoURL    *string            `json:"photo_url"`
	Description *string            `json:"description"`
}

type PhotoUpload struct {
	Filename string
	Size     int64
	Body     io.Reader
}

type PhotoUploadResult struct {
	PhotoURL string `json:"photo_url"`
}

func toAccountView(a domain.Account) AccountView {
	return AccountView{
		AccountID:      a.AccountID,
		Email:          a.Email,
		AccountType:    a.AccountType,
		OnboardingStep: a.OnboardingStep,
		IsActive:       a.IsActive,
		CreatedAt:      a.CreatedAt,
	}
}

func toProfileView(p domain.Profile) ProfileView {
	d := p.Details()
	view := ProfileView{
		AccountType: p.AccountType(),
		Phone:       d.Phone,
		Intent:      d.Intent,
		PhotoURL:    d.PhotoURL,
		Description: d.Description,
	}
	switch v := p.(type) {
	case domain.PersonProfile:
		view.FirstName = v.FirstName
		view.LastName = v.LastName
	case domain.OrganizationProfile:
		view.DisplayName = v.DisplayName
	}
	return view
}
