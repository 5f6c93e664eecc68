package domain

import "github.com/google/uuid"

// Principal is the caller identity extracted from a verified access token.
type Principal struct {
	AccountID     uuid.UUID
	Email         string
	EmailVerified bool
	Scope         []string
}

// TokenSet is what the identity provider returns for a successful password grant.
type TokenSet struct {
	AccessToken      string `json:"access_token"`
	ExpiresIn        int64  `json:"expires_in"`
	RefreshToken     string `json:"refresh_token,omitempty"`
	RefreshExpiresIn int64  `json:"refresh_expires_in,omitempty"`
	TokenType        string `json:"token_type,omitempty"`
}
