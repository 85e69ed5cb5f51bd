package port

import (
	"context"
	"time"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
)

// RateLimitStore implements fixed-window counting. Hit starts a fresh window
// with count 1 when none exists or the previous one has elapsed, otherwise it
// increments the count. The returned entry reflects the state after the hit.
type RateLimitStore interface {
	Hit(ctx context.Context, key string, window time.Duration, at time.Time) (domain.RateLimitEntry, error)
}
