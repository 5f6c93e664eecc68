package http

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/viralforge/users-service/internal/application"
	"github.com/viralforge/users-service/internal/domain"
	"github.com/viralforge/users-service/internal/ports"
)

// UsersService is the application surface the HTTP adapter drives.
type UsersService interface {
	Register(ctx context.Context, req application.RegisterRequest) (application.RegisterResponse, error)
	Login(ctx context.Context, req application.LoginRequest) (domain.TokenSet, error)
	CurrentAccount(ctx context.Context, principal domain.Principal) (application.AccountView, error)
	CurrentProfile(ctx context.Context, principal domain.Principal) (application.ProfileView, error)
	UploadPhoto(ctx context.Context, principal domain.Principal, upload application.PhotoUpload) (application.PhotoUploadResult, error)
}

type Options struct {
	// CookieSecure marks the access_token cookie Secure; off only for local development.
	CookieSecure  bool
	MaxPhotoBytes int64
	ReadyTimeout  time.Duration
}

type Handler struct {
	service  UsersService
	verifier ports.TokenVerifier
	checks   []ports.HealthCheck
	opts     Options
}

func NewHandler(service UsersService, verifier ports.TokenVerifier, checks []ports.HealthCheck, opts Options) *Handler {
	if opts.MaxPhotoBytes <= 0 {
		opts.MaxPhotoBytes = application.DefaultPhotoPolicy().MaxBytes
	}
	if opts.ReadyTimeout <= 0 {
		opts.ReadyTimeout = 2 * time.Second
	}
	return &Handler{service: service, verifier: verifier, checks: checks, opts: opts}
}

func NewRouter(handler *Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(recoverMiddleware)
	r.Use(loggingMiddleware)

	r.Get("/healthz", handler.healthz)
	r.Get("/readyz", handler.readyz)

	r.Route("/auth/v1", func(r chi.Router) {
		r.Post("/register", handler.register)
		r.Post("/login", handler.login)
	})

	r.Route("/users/v1", func(r chi.Router) {
		r.Use(handler.authMiddleware)
		r.Get("/me", handler.me)
		r.Get("/me/profile", handler.profile)
		r.Put("/me/photo", handler.uploadPhoto)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "method not allowed")
	})
	return r
}
