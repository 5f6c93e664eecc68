package ports

import (
	"context"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
)

// IdentityGateway manages identities in the external identity provider.
// Implementations wrap failures with domain.ErrIdentityProviderUnavailable for
// connection-level problems and domain.ErrIdentityProviderRejected for refusals.
// DeleteIdentity returns domain.ErrIdentityNotFound when the identity is already gone.
type IdentityGateway interface {
	CreateIdentity(ctx context.Context, email string) (uuid.UUID, error)
	SetCredential(ctx context.Context, identityID uuid.UUID, secret string) error
	DeleteIdentity(ctx context.Context, identityID uuid.UUID) error
}

// IdentityAuthenticator exchanges user credentials for tokens.
// A wrong email/password pair is reported as domain.ErrInvalidCredentials.
type IdentityAuthenticator interface {
	PasswordGrant(ctx context.Context, username, password string) (domain.TokenSet, error)
}

// TokenVerifier validates an access token and returns the caller principal.
type TokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (domain.Principal, error)
}
