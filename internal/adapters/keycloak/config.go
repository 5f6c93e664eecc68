// Package keycloak talks to the Keycloak admin REST API and token endpoint.
package keycloak

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/viralforge/users-service/internal/app/logging"
)

type Config struct {
	BaseURL           string
	Realm             string
	AdminClientID     string
	AdminClientSecret string
	AuthClientID      string
	AuthClientSecret  string
	// TokenURL overrides the realm token endpoint, usually with the discovered one.
	TokenURL   string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// IssuerURL is the realm issuer, e.g. https://sso.example.com/realms/viralforge.
func (c Config) IssuerURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/realms/" + c.Realm
}

func (c Config) tokenURL() string {
	if strings.TrimSpace(c.TokenURL) != "" {
		return c.TokenURL
	}
	return c.IssuerURL() + "/protocol/openid-connect/token"
}

func (c Config) usersURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/admin/realms/" + c.Realm + "/users"
}

// httpClient returns the configured client with request id forwarding on its transport.
func (c Config) httpClient() *http.Client {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	base := c.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: timeout}
	}
	next := base.Transport
	if next == nil {
		next = http.DefaultTransport
	}
	return &http.Client{
		Timeout:       base.Timeout,
		Jar:           base.Jar,
		CheckRedirect: base.CheckRedirect,
		Transport:     requestIDTransport{next: next},
	}
}

// requestIDTransport forwards the caller's correlation id to Keycloak.
type requestIDTransport struct {
	next http.RoundTripper
}

func (t requestIDTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	id := logging.RequestID(req.Context())
	if id == "" || req.Header.Get(logging.RequestIDHeader) != "" {
		return t.next.RoundTrip(req)
	}
	clone := req.Clone(req.Context())
	clone.Header.Set(logging.RequestIDHeader, id)
	return t.next.RoundTrip(clone)
}

// Endpoints are the realm URLs published in the OpenID discovery document.
type Endpoints struct {
	Issuer   string
	TokenURL string
	JWKSURL  string
}

// Discover reads the realm discovery document.
func Discover(ctx context.Context, cfg Config) (Endpoints, error) {
	ctx = oidc.ClientContext(ctx, cfg.httpClient())
	provider, err := oidc.NewProvider(ctx, cfg.IssuerURL())
	if err != nil {
		return Endpoints{}, fmt.Errorf("keycloak discovery: %w", err)
	}
	var claims struct {
		Issuer  string `json:"issuer"`
		JWKSURI string `json:"jwks_uri"`
	}
	if err := provider.Claims(&claims); err != nil {
		return Endpoints{}, fmt.Errorf("keycloak discovery claims: %w", err)
	}
	if claims.JWKSURI == "" {
		return Endpoints{}, fmt.Errorf("keycloak discovery: jwks_uri missing")
	}
	return Endpoints{
		Issuer:   claims.Issuer,
		TokenURL: provider.Endpoint().TokenURL,
		JWKSURL:  claims.JWKSURI,
	}, nil
}
