package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
)

type TokenVerifierConfig struct {
	JWKSURL    string
	Issuer     string
	Audience   string
	HTTPClient *http.Client
}

// JWKSTokenVerifier validates RS256 access tokens against the realm JWKS.
// Keys are cached by the remote key set and refetched when a token names an unknown kid.
type JWKSTokenVerifier struct {
	cfg        TokenVerifierConfig
	httpClient *http.Client
	tokens     *oidc.IDTokenVerifier
	nowFn      func() time.Time
}

func NewJWKSTokenVerifier(cfg TokenVerifierConfig) *JWKSTokenVerifier {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 5 * time.Second}
	}
	v := &JWKSTokenVerifier{
		cfg:        cfg,
		httpClient: httpClient,
		nowFn:      time.Now,
	}
	keySet := oidc.NewRemoteKeySet(oidc.ClientContext(context.Background(), httpClient), cfg.JWKSURL)
	v.tokens = oidc.NewVerifier(cfg.Issuer, keySet, &oidc.Config{
		ClientID:             cfg.Audience,
		SkipClientIDCheck:    cfg.Audience == "",
		SkipIssuerCheck:      cfg.Issuer == "",
		SupportedSigningAlgs: []string{oidc.RS256},
		Now:                  func() time.Time { return v.nowFn() },
	})
	return v
}

// Verify returns the principal for a valid token. Token problems are ErrInvalidToken;
// failing to reach the JWKS endpoint is ErrIdentityProviderUnavailable.
func (v *JWKSTokenVerifier) Verify(ctx context.Context, raw string) (domain.Principal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return domain.Principal{}, domain.ErrMissingToken
	}

	token, err := v.tokens.Verify(ctx, raw)
	if err != nil {
		return domain.Principal{}, classifyVerifyError(err)
	}

	claims := jwt.MapClaims{}
	if err := token.Claims(&claims); err != nil {
		return domain.Principal{}, fmt.Errorf("%w: decode claims: %v", domain.ErrInvalidToken, err)
	}
	subject := stringClaim(claims, "sub")
	if subject == "" {
		return domain.Principal{}, fmt.Errorf("%w: sub is not defined", domain.ErrInvalidToken)
	}
	accountID, err := uuid.Parse(subject)
	if err != nil {
		return domain.Principal{}, fmt.Errorf("%w: sub is not an account id", domain.ErrInvalidToken)
	}

	return domain.Principal{
		AccountID:     accountID,
		Email:         strings.ToLower(stringClaim(claims, "email")),
		EmailVerified: boolClaim(claims["email_verified"]),
		Scope:         strings.Fields(stringClaim(claims, "scope")),
	}, nil
}

// classifyVerifyError separates key-set fetch failures from token problems.
// go-oidc flattens the fetch error into the message, so the prefix is matched.
func classifyVerifyError(err error) error {
	var expired *oidc.TokenExpiredError
	switch {
	case errors.As(err, &expired):
		return fmt.Errorf("%w: access token expired", domain.ErrInvalidToken)
	case strings.Contains(err.Error(), "fetching keys"):
		return fmt.Errorf("%w: jwks: %v", domain.ErrIdentityProviderUnavailable, err)
	default:
		return fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
}

// Ping fetches the JWKS; used as the readiness probe.
func (v *JWKSTokenVerifier) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, v.cfg.JWKSURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	resp, err := v.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("jwks fetch failed: status=%d", resp.StatusCode)
	}
	return nil
}

func stringClaim(claims jwt.MapClaims, key string) string {
	s, _ := claims[key].(string)
	return strings.TrimSpace(s)
}

func boolClaim(raw any) bool {
	switch v := raw.(type) {
	case bool:
		return v
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "1", "yes":
			return true
		}
	}
	return false
}
