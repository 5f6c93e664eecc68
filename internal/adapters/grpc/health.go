package grpc

import (
	"context"
	"log/slog"
	"time"

	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"

	"github.com/viralforge/users-service/internal/ports"
)

// HealthReporter keeps the gRPC health service in line with dependency probes.
type HealthReporter struct {
	logger   *slog.Logger
	server   *health.Server
	checks   []ports.HealthCheck
	interval time.Duration
	timeout  time.Duration
}

func NewHealthReporter(logger *slog.Logger, server *health.Server, checks []ports.HealthCheck, interval time.Duration) *HealthReporter {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &HealthReporter{
		logger:   logger,
		server:   server,
		checks:   checks,
		interval: interval,
		timeout:  2 * time.Second,
	}
}

func (r *HealthReporter) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		r.Refresh(ctx)
		select {
		case <-ctx.Done():
			r.server.Shutdown()
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Refresh probes every dependency once and publishes the aggregate status for
// both the overall service ("") and the internal users service.
func (r *HealthReporter) Refresh(ctx context.Context) healthpb.HealthCheckResponse_ServingStatus {
	probeCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	state := healthpb.HealthCheckResponse_SERVING
	for _, check := range r.checks {
		if err := check.Check(probeCtx); err != nil {
			state = healthpb.HealthCheckResponse_NOT_SERVING
			r.logger.WarnContext(ctx, "dependency check failed",
				"module", "grpc.health",
				"layer", "adapter",
				"operation", "dependency_check",
				"outcome", "failure",
				"dependency", check.Name,
				"error", err,
			)
		}
	}
	r.server.SetServingStatus("", state)
	r.server.SetServingStatus(serviceName, state)
	return state
}
