package keycloak

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// AdminClient manages realm users through the admin REST API, authenticated
// with a client-credentials service account.
type AdminClient struct {
	httpClient *http.Client
	usersURL   string
}

func NewAdminClient(cfg Config) *AdminClient {
	base := cfg.httpClient()
	cc := clientcredentials.Config{
		ClientID:     cfg.AdminClientID,
		ClientSecret: cfg.AdminClientSecret,
		TokenURL:     cfg.tokenURL(),
		AuthStyle:    oauth2.AuthStyleInParams,
	}
	tokenCtx := context.WithValue(context.Background(), oauth2.HTTPClient, base)
	client := cc.Client(tokenCtx)
	client.Timeout = base.Timeout
	return &AdminClient{httpClient: client, usersURL: cfg.usersURL()}
}

type userRepresentation struct {
	Username      string `json:"username"`
	Email         string `json:"email"`
	Enabled       bool   `json:"enabled"`
	EmailVerified bool   `json:"emailVerified"`
}

type credentialRepresentation struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

func (c *AdminClient) CreateIdentity(ctx context.Context, email string) (uuid.UUID, error) {
	resp, err := c.do(ctx, http.MethodPost, c.usersURL, userRepresentation{
		Username: email,
		Email:    email,
		Enabled:  true,
	})
	if err != nil {
		return uuid.Nil, transportError("create user", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusCreated {
		return uuid.Nil, statusError("create user", resp)
	}

	location := resp.Header.Get("Location")
	id, err := uuid.Parse(path.Base(strings.TrimRight(location, "/")))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: create user: unexpected location %q", domain.ErrIdentityProviderRejected, location)
	}
	return id, nil
}

func (c *AdminClient) SetCredential(ctx context.Context, identityID uuid.UUID, secret string) error {
	resp, err := c.do(ctx, http.MethodPut, c.usersURL+"/"+identityID.String()+"/reset-password", credentialRepresentation{
		Type:      "password",
		Value:     secret,
		Temporary: false,
	})
	if err != nil {
		return transportError("reset password", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusOK {
		return statusError("reset password", resp)
	}
	return nil
}

func (c *AdminClient) DeleteIdentity(ctx context.Context, identityID uuid.UUID) error {
	resp, err := c.do(ctx, http.MethodDelete, c.usersURL+"/"+identityID.String(), nil)
	if err != nil {
		return transportError("delete user", err)
	}
	defer drain(resp)
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return fmt.Errorf("delete user %s: %w", identityID, domain.ErrIdentityNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return statusError("delete user", resp)
	}
	return nil
}

// Ping calls an authenticated admin endpoint; used as the readiness probe.
func (c *AdminClient) Ping(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, c.usersURL+"/count", nil)
	if err != nil {
		return transportError("count users", err)
	}
	defer drain(resp)
	if resp.StatusCode != http.StatusOK {
		return statusError("count users", resp)
	}
	return nil
}

func (c *AdminClient) do(ctx context.Context, method, url string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.httpClient.Do(req)
}

// statusError maps a non-success admin response: 5xx is unavailability, anything else a refusal.
func statusError(op string, resp *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	sentinel := domain.ErrIdentityProviderRejected
	if resp.StatusCode >= 500 {
		sentinel = domain.ErrIdentityProviderUnavailable
	}
	return fmt.Errorf("%w: %s: status=%d body=%s", sentinel, op, resp.StatusCode, strings.TrimSpace(string(body)))
}

// transportError maps a failed round trip. A refused service-account token is a
// rejection; everything else (dial, timeout, 5xx token endpoint) is unavailability.
func transportError(op string, err error) error {
	var rErr *oauth2.RetrieveError
	if errors.As(err, &rErr) && rErr.Response != nil && rErr.Response.StatusCode < 500 {
		return fmt.Errorf("%w: %s: service account token: %v", domain.ErrIdentityProviderRejected, op, err)
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrIdentityProviderUnavailable, op, err)
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
	_ = resp.Body.Close()
}
