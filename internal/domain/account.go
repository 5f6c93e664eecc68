package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// AccountType discriminates the profile variant attached to an account.
type AccountType string

const (
	AccountTypePerson       AccountType = "person"
	AccountTypeOrganization AccountType = "organization"
)

// ParseAccountType accepts the wire value of account_type. An empty value defaults to person.
func ParseAccountType(raw string) (AccountType, error) {
	switch AccountType(strings.ToLower(strings.TrimSpace(raw))) {
	case "", AccountTypePerson:
		return AccountTypePerson, nil
	case AccountTypeOrganization:
		return AccountTypeOrganization, nil
	default:
		return "", fmt.Errorf("%w: unknown account_type %q", ErrInvalidInput, raw)
	}
}

type Intent string

const (
	IntentBuyer    Intent = "buyer"
	IntentSeller   Intent = "seller"
	IntentRenter   Intent = "renter"
	IntentExplorer Intent = "explorer"
)

func ParseIntent(raw string) (*Intent, error) {
	trimmed := strings.ToLower(strings.TrimSpace(raw))
	if trimmed == "" {
		return nil, nil
	}
	switch v := Intent(trimmed); v {
	case IntentBuyer, IntentSeller, IntentRenter, IntentExplorer:
		return &v, nil
	default:
		return nil, fmt.Errorf("%w: unknown intent %q", ErrInvalidInput, raw)
	}
}

// InitialProfileScore is assigned to every profile created at registration.
const InitialProfileScore = 10

// Account is the local record of an identity that exists in the identity provider.
// AccountID is the identifier issued by the provider.
type Account struct {
	AccountID      uuid.UUID
	Email          string
	AccountType    AccountType
	OnboardingStep int
	IsActive       bool
	DeactivatedAt  *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProfileDetails holds the attributes shared by both profile variants.
type ProfileDetails struct {
	Phone        *string
	Intent       *Intent
	PhotoURL     *string
	Description  *string
	ProfileScore int
}

// Profile is the closed set of profile variants. Only PersonProfile and
// OrganizationProfile implement it.
type Profile interface {
	AccountType() AccountType
	Details() ProfileDetails
	sealedProfile()
}

type PersonProfile struct {
	FirstName string
	LastName  string
	ProfileDetails
}

func (PersonProfile) AccountType() AccountType  { return AccountTypePerson }
func (p PersonProfile) Details() ProfileDetails { return p.ProfileDetails }
func (PersonProfile) sealedProfile()            {}

type OrganizationProfile struct {
	DisplayName string
	ProfileDetails
}

func (OrganizationProfile) AccountType() AccountType  { return AccountTypeOrganization }
func (p OrganizationProfile) Details() ProfileDetails { return p.ProfileDetails }
func (OrganizationProfile) sealedProfile()            {}
