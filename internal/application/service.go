package application

import (
	"math/rand"
	"time"

	"github.com/viralforge/users-service/internal/ports"
)

// CompensationPolicy bounds the reconciliation of leaked identities.
type CompensationPolicy struct {
	BatchSize   int
	MaxAttempts int
	// MaxDelay caps the exponential part of the retry delay.
	MaxDelay time.Duration
	// MaxJitter is the upper bound (inclusive, whole seconds) added on top of the delay.
	MaxJitter time.Duration
}

// PhotoPolicy bounds profile photo uploads.
type PhotoPolicy struct {
	MaxBytes          int64
	AcceptedMIMETypes []string
}

type Config struct {
	ServiceID       string
	AccountCacheTTL time.Duration
	Compensation    CompensationPolicy
	Photo           PhotoPolicy
}

// DefaultCompensationPolicy returns the production retry bounds.
func DefaultCompensationPolicy() CompensationPolicy {
	return CompensationPolicy{
		BatchSize:   25,
		MaxAttempts: 5,
		MaxDelay:    60 * time.Minute,
		MaxJitter:   30 * time.Second,
	}
}

func DefaultPhotoPolicy() PhotoPolicy {
	return PhotoPolicy{
		MaxBytes:          5 * 1024 * 1024,
		AcceptedMIMETypes: []string{"image/jpeg", "image/png", "image/webp"},
	}
}

type Service struct {
	cfg           Config
	accounts      ports.AccountStore
	ledger        ports.CompensationLedger
	identities    ports.IdentityGateway
	authenticator ports.IdentityAuthenticator
	cache         ports.AccountCache
	photos        ports.ObjectStore
	nowFn         func() time.Time
	jitterFn      func(max time.Duration) time.Duration
}

type Dependencies struct {
	Config        Config
	Accounts      ports.AccountStore
	Ledger        ports.CompensationLedger
	Identities    ports.IdentityGateway
	Authenticator ports.IdentityAuthenticator
	Cache         ports.AccountCache
	Photos        ports.ObjectStore
	// Now and Jitter are overridable for tests.
	Now    func() time.Time
	Jitter func(max time.Duration) time.Duration
}

func NewService(deps Dependencies) *Service {
	cfg := deps.Config
	if cfg.ServiceID == "" {
		cfg.ServiceID = "users-service"
	}
	if cfg.AccountCacheTTL <= 0 {
		cfg.AccountCacheTTL = 120 * time.Second
	}
	defaults := DefaultCompensationPolicy()
	if cfg.Compensation.BatchSize <= 0 {
		cfg.Compensation.BatchSize = defaults.BatchSize
	}
	if cfg.Compensation.MaxAttempts <= 0 {
		cfg.Compensation.MaxAttempts = defaults.MaxAttempts
	}
	if cfg.Compensation.MaxDelay <= 0 {
		cfg.Compensation.MaxDelay = defaults.MaxDelay
	}
	if cfg.Compensation.MaxJitter < 0 {
		cfg.Compensation.MaxJitter = 0
	}
	photoDefaults := DefaultPhotoPolicy()
	if cfg.Photo.MaxBytes <= 0 {
		cfg.Photo.MaxBytes = photoDefaults.MaxBytes
	}
	if len(cfg.Photo.AcceptedMIMETypes) == 0 {
		cfg.Photo.AcceptedMIMETypes = photoDefaults.AcceptedMIMETypes
	}

	nowFn := deps.Now
	if nowFn == nil {
		nowFn = func() time.Time { return time.Now().UTC() }
	}
	jitterFn := deps.Jitter
	if jitterFn == nil {
		jitterFn = uniformSeconds
	}

	return &Service{
		cfg:           cfg,
		accounts:      deps.Accounts,
		ledger:        deps.Ledger,
		identities:    deps.Identities,
		authenticator: deps.Authenticator,
		cache:         deps.Cache,
		photos:        deps.Photos,
		nowFn:         nowFn,
		jitterFn:      jitterFn,
	}
}

// uniformSeconds draws a whole number of seconds in [0, max].
func uniformSeconds(max time.Duration) time.Duration {
	secs := int(max / time.Second)
	if secs <= 0 {
		return 0
	}
	return time.Duration(rand.Intn(secs+1)) * time.Second
}
