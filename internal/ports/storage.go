package ports

import (
	"context"
	"io"
)

// ObjectStore stores uploaded files and returns their public URL.
// Failures are wrapped with the domain.ErrStorage* sentinels.
type ObjectStore interface {
	Put(ctx context.Context, key, contentType string, body io.Reader, size int64) (string, error)
}

// HealthCheck is a named dependency probe used by readiness reporting.
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}
