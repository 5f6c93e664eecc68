package keycloak

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/viralforge/users-service/internal/domain"
	"golang.org/x/oauth2"
)

// AuthClient performs resource-owner password grants against the realm.
type AuthClient struct {
	oauth      *oauth2.Config
	httpClient *http.Client
}

func NewAuthClient(cfg Config) *AuthClient {
	return &AuthClient{
		oauth: &oauth2.Config{
			ClientID:     cfg.AuthClientID,
			ClientSecret: cfg.AuthClientSecret,
			Endpoint: oauth2.Endpoint{
				TokenURL:  cfg.tokenURL(),
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"openid", "email", "profile"},
		},
		httpClient: cfg.httpClient(),
	}
}

func (c *AuthClient) PasswordGrant(ctx context.Context, username, password string) (domain.TokenSet, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.oauth.PasswordCredentialsToken(ctx, username, password)
	if err != nil {
		var rErr *oauth2.RetrieveError
		if errors.As(err, &rErr) && rErr.Response != nil {
			status := rErr.Response.StatusCode
			if (status == http.StatusBadRequest || status == http.StatusUnauthorized) && rErr.ErrorCode == "invalid_grant" {
				return domain.TokenSet{}, domain.ErrInvalidCredentials
			}
			return domain.TokenSet{}, fmt.Errorf("%w: password grant: status=%d error=%s", domain.ErrIdentityProviderUnavailable, status, rErr.ErrorCode)
		}
		return domain.TokenSet{}, fmt.Errorf("%w: password grant: %v", domain.ErrIdentityProviderUnavailable, err)
	}

	return domain.TokenSet{
		AccessToken:      tok.AccessToken,
		RefreshToken:     tok.RefreshToken,
		TokenType:        tok.TokenType,
		ExpiresIn:        int64Extra(tok, "expires_in"),
		RefreshExpiresIn: int64Extra(tok, "refresh_expires_in"),
	}, nil
}

func int64Extra(tok *oauth2.Token, key string) int64 {
	switch v := tok.Extra(key).(type) {
	case float64:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	case string:
		n, _ := strconv.ParseInt(v, 10, 64)
		return n
	default:
		return 0
	}
}
