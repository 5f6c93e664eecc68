package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	cacheadapter "github.com/viralforge/users-service/internal/adapters/cache"
	eventadapter "github.com/viralforge/users-service/internal/adapters/events"
	grpcadapter "github.com/viralforge/users-service/internal/adapters/grpc"
	httpadapter "github.com/viralforge/users-service/internal/adapters/http"
	"github.com/viralforge/users-service/internal/adapters/keycloak"
	"github.com/viralforge/users-service/internal/adapters/postgres"
	"github.com/viralforge/users-service/internal/adapters/security"
	"github.com/viralforge/users-service/internal/adapters/storage"
	"github.com/viralforge/users-service/internal/app/logging"
	"github.com/viralforge/users-service/internal/application"
	"github.com/viralforge/users-service/internal/ports"
)

type Runtime struct {
	cfg       Config
	logger    *slog.Logger
	service   *application.Service
	checks    []ports.HealthCheck
	repos     postgres.Repositories
	verifier  *security.JWKSTokenVerifier
	publisher ports.EventPublisher
	cleanupFn func(context.Context)
}

// NewLogger builds the JSON logger and installs it as the slog default.
func NewLogger(cfg Config) *slog.Logger {
	logger := logging.New(os.Stdout, logging.ParseLevel(cfg.LogLevel), cfg.ServiceID)
	slog.SetDefault(logger)
	return logger
}

func NewRuntime(ctx context.Context, configPath string) (*Runtime, error) {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.requireServing(); err != nil {
		return nil, err
	}

	logger := NewLogger(cfg)
	logger.Info("bootstrapping users service", "http_port", cfg.HTTPPort, "grpc_port", cfg.GRPCPort)

	db, err := postgres.Connect(ctx, cfg.DatabaseURL, cfg.MaxDBConns)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}

	redisClient, err := cacheadapter.Connect(ctx, cfg.RedisURL)
	if err != nil {
		_ = postgres.Close(db)
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if err := redisClient.Ping(ctx).Err(); err != nil {
		_ = postgres.Close(db)
		_ = redisClient.Close()
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	closeAll := func() {
		_ = redisClient.Close()
		_ = postgres.Close(db)
	}

	kcCfg := keycloak.Config{
		BaseURL:           cfg.KeycloakURL,
		Realm:             cfg.KeycloakRealm,
		AdminClientID:     cfg.AdminClientID,
		AdminClientSecret: cfg.AdminClientSecret,
		AuthClientID:      cfg.AuthClientID,
		AuthClientSecret:  cfg.AuthClientSecret,
		Timeout:           cfg.KeycloakTimeout,
	}
	issuer, jwksURL := cfg.Issuer, cfg.JWKSURL
	if issuer == "" || jwksURL == "" {
		endpoints, err := keycloak.Discover(ctx, kcCfg)
		if err != nil {
			closeAll()
			return nil, err
		}
		kcCfg.TokenURL = endpoints.TokenURL
		if issuer == "" {
			issuer = endpoints.Issuer
		}
		if jwksURL == "" {
			jwksURL = endpoints.JWKSURL
		}
	}
	admin := keycloak.NewAdminClient(kcCfg)
	verifier := security.NewJWKSTokenVerifier(security.TokenVerifierConfig{
		JWKSURL:    jwksURL,
		Issuer:     issuer,
		Audience:   cfg.Audience,
		HTTPClient: &http.Client{Timeout: cfg.KeycloakTimeout},
	})

	repos := postgres.NewRepositories(db)
	checks := []ports.HealthCheck{
		{Name: "postgres", Check: func(ctx context.Context) error { return postgres.Ping(ctx, db) }},
		{Name: "redis", Check: func(ctx context.Context) error { return redisClient.Ping(ctx).Err() }},
		{Name: "keycloak", Check: admin.Ping},
		{Name: "jwks", Check: verifier.Ping},
	}

	var photos ports.ObjectStore
	if cfg.StorageAccessKey != "" {
		store, err := storage.NewS3PhotoStore(ctx, storage.Config{
			Endpoint:      cfg.StorageEndpoint,
			Region:        cfg.StorageRegion,
			Bucket:        cfg.PhotosBucket,
			AccessKey:     cfg.StorageAccessKey,
			SecretKey:     cfg.StorageSecretKey,
			PublicBaseURL: cfg.StoragePublicBaseURL,
			UsePathStyle:  cfg.StoragePathStyle,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init photo store: %w", err)
		}
		photos = store
		checks = append(checks, ports.HealthCheck{Name: "storage", Check: store.Ping})
	} else {
		logger.Warn("photo storage not configured; uploads will fail", "operation", "bootstrap", "outcome", "degraded")
	}

	publisher, closePublisher, err := newPublisher(cfg, logger)
	if err != nil {
		closeAll()
		return nil, err
	}

	svc := application.NewService(application.Dependencies{
		Config: application.Config{
			ServiceID:       cfg.ServiceID,
			AccountCacheTTL: cfg.AccountCacheTTL,
			Compensation: application.CompensationPolicy{
				BatchSize:   cfg.CompensationBatchSize,
				MaxAttempts: cfg.CompensationMaxAttempts,
				MaxDelay:    cfg.CompensationMaxDelay,
				MaxJitter:   cfg.CompensationMaxJitter,
			},
			Photo: application.PhotoPolicy{
				MaxBytes:          cfg.MaxPhotoBytes,
				AcceptedMIMETypes: cfg.AcceptedImageTypes,
			},
		},
		Accounts:      repos.Accounts,
		Ledger:        repos.Compensation,
		Identities:    admin,
		Authenticator: keycloak.NewAuthClient(kcCfg),
		Cache:         cacheadapter.NewRedisAccountCache(redisClient),
		Photos:        photos,
	})

	return &Runtime{
		cfg:       cfg,
		logger:    logger,
		service:   svc,
		checks:    checks,
		repos:     repos,
		verifier:  verifier,
		publisher: publisher,
		cleanupFn: func(context.Context) {
			closePublisher()
			closeAll()
		},
	}, nil
}

func newPublisher(cfg Config, logger *slog.Logger) (ports.EventPublisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return eventadapter.NewLoggingPublisher(logger), func() {}, nil
	}
	kafkaPublisher, err := eventadapter.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopics)
	if err != nil {
		return nil, nil, fmt.Errorf("init kafka publisher: %w", err)
	}
	return kafkaPublisher, func() { _ = kafkaPublisher.Close() }, nil
}

// RunAPI serves HTTP and gRPC until SIGINT/SIGTERM.
func (r *Runtime) RunAPI(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	handler := httpadapter.NewHandler(r.service, r.verifier, r.checks, httpadapter.Options{
		CookieSecure:  r.cfg.CookieSecure,
		MaxPhotoBytes: r.cfg.MaxPhotoBytes,
	})
	httpServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", r.cfg.HTTPPort),
		Handler:           httpadapter.NewRouter(handler),
		ReadHeaderTimeout: 5 * time.Second,
	}

	grpcServer := grpc.NewServer(grpc.UnaryInterceptor(grpcadapter.RequestIDInterceptor))
	healthSrv := health.NewServer()
	healthpb.RegisterHealthServer(grpcServer, healthSrv)
	grpcadapter.Register(grpcServer, grpcadapter.NewUsersInternalServer(r.service))
	reporter := grpcadapter.NewHealthReporter(r.logger, healthSrv, r.checks, r.cfg.HealthInterval)

	lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
	if err != nil {
		r.cleanupFn(ctx)
		return fmt.Errorf("listen gRPC: %w", err)
	}

	errCh := make(chan error, 2)
	go func() {
		r.logger.Info("http server started", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()
	go func() {
		r.logger.Info("grpc server started", "addr", lis.Addr().String())
		if err := grpcServer.Serve(lis); err != nil {
			errCh <- fmt.Errorf("grpc server: %w", err)
		}
	}()
	reporterCtx, stopReporter := context.WithCancel(ctx)
	defer stopReporter()
	go func() { _ = reporter.Run(reporterCtx) }()

	var runErr error
	select {
	case <-ctx.Done():
		r.logger.Info("shutdown signal received")
	case runErr = <-errCh:
		r.logger.Error("server failure", "error", runErr)
	}

	stopReporter()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = httpServer.Shutdown(shutdownCtx)
	grpcServer.GracefulStop()
	r.cleanupFn(shutdownCtx)
	return runErr
}

// RunWorker runs the compensation scheduler and the outbox publisher until
// SIGINT/SIGTERM, then waits for an in-flight compensation cycle.
func (r *Runtime) RunWorker(ctx context.Context) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	scheduler := eventadapter.NewCompensationScheduler(r.logger, r.service, r.cfg.CompensationInterval, r.cfg.CompensationMisfireGrace)
	outbox := eventadapter.NewOutboxWorker(r.logger, r.repos.Outbox, r.publisher, eventadapter.OutboxWorkerConfig{
		Interval:   r.cfg.OutboxPollInterval,
		BatchSize:  r.cfg.OutboxBatchSize,
		ClaimTTL:   r.cfg.OutboxClaimTTL,
		MaxRetries: r.cfg.OutboxMaxRetries,
	})

	r.logger.Info("worker started",
		"compensation_interval", r.cfg.CompensationInterval.String(),
		"outbox_poll_interval", r.cfg.OutboxPollInterval.String(),
	)
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, run := range []func(context.Context) error{scheduler.Run, outbox.Run} {
		i, run := i, run
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errs[i] = err
				stop()
			}
		}()
	}
	wg.Wait()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r.cleanupFn(shutdownCtx)
	r.logger.Info("worker stopped")
	return errors.Join(errs...)
}

// RunMigrate applies or reverts the embedded schema migrations.
func RunMigrate(ctx context.Context, configPath string, direction postgres.MigrateDirection) error {
	cfg, err := LoadConfig(configPath)
	if err != nil {
		return err
	}
	NewLogger(cfg)
	return postgres.RunMigrations(ctx, cfg.DatabaseURL, direction)
}
