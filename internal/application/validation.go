package application

import (
	"fmt"
	"net/mail"
	"strings"

	"github.com/viralforge/users-service/internal/domain"
)

// Validate turns the wire request into a RegisterCommand. This is the only place
// where account_type is inspected; everything downstream carries the profile variant.
func (r RegisterRequest) Validate() (RegisterCommand, error) {
	email, err := normalizeEmail(r.Email)
	if err != nil {
		return RegisterCommand{}, err
	}
	if strings.TrimSpace(r.Password) == "" {
		return RegisterCommand{}, fmt.Errorf("%w: password is required", domain.ErrInvalidInput)
	}
	accountType, err := domain.ParseAccountType(r.AccountType)
	if err != nil {
		return RegisterCommand{}, err
	}
	intent, err := domain.ParseIntent(r.Intent)
	if err != nil {
		return RegisterCommand{}, err
	}

	details := domain.ProfileDetails{
		Phone:        trimmedOrNil(r.Phone),
		Intent:       intent,
		Description:  trimmedOrNil(r.Description),
		ProfileScore: domain.InitialProfileScore,
	}

	var profile domain.Profile
	switch accountType {
	case domain.AccountTypePerson:
		if strings.TrimSpace(r.DisplayName) != "" {
			return RegisterCommand{}, fmt.Errorf("%w: display_name is not allowed for person accounts", domain.ErrInvalidInput)
		}
		first, last := strings.TrimSpace(r.FirstName), strings.TrimSpace(r.LastName)
		if first == "" || last == "" {
			return RegisterCommand{}, fmt.Errorf("%w: first_name and last_name are required", domain.ErrInvalidInput)
		}
		profile = domain.PersonProfile{FirstName: first, LastName: last, ProfileDetails: details}
	case domain.AccountTypeOrganization:
		if strings.TrimSpace(r.FirstName) != "" || strings.TrimSpace(r.LastName) != "" {
			return RegisterCommand{}, fmt.Errorf("%w: first_name/last_name are not allowed for organization accounts", domain.ErrInvalidInput)
		}
		name := strings.TrimSpace(r.DisplayName)
		if name == "" {
			return RegisterCommand{}, fmt.Errorf("%w: display_name is required", domain.ErrInvalidInput)
		}
		profile = domain.OrganizationProfile{DisplayName: name, ProfileDetails: details}
	}

	return RegisterCommand{Email: email, Password: r.Password, Profile: profile}, nil
}

func normalizeEmail(email string) (string, error) {
	trimmed := strings.ToLower(strings.TrimSpace(email))
	if trimmed == "" {
		return "", fmt.Errorf("%w: email is required", domain.ErrInvalidInput)
	}
	addr, err := mail.ParseAddress(trimmed)
	if err != nil || addr.Address != trimmed {
		return "", fmt.Errorf("%w: invalid email", domain.ErrInvalidInput)
	}
	return trimmed, nil
}

func trimmedOrNil(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}
