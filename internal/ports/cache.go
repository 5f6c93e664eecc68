package ports

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/viralforge/users-service/internal/domain"
)

// AccountCache is a best-effort read-through cache for accounts.
// Get reports a miss with found=false and a nil error.
type AccountCache interface {
	Get(ctx context.Context, accountID uuid.UUID) (account domain.Account, found bool, err error)
	Set(ctx context.Context, account domain.Account, ttl time.Duration) error
	Delete(ctx context.Context, accountID uuid.UUID) error
}
