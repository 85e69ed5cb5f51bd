package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/logger"
)

// RateLimitPolicy describes one fixed-window limit.
type RateLimitPolicy struct {
	Class       string
	MaxRequests int
	Window      time.Duration
}

// RateLimiter answers whether an identifier may proceed under a policy.
// Callers must respond identically whether or not the request was allowed.
type RateLimiter struct {
	store        port.RateLimitStore
	policy       RateLimitPolicy
	storeTimeout time.Duration
	logger       *zap.Logger
	now          func() time.Time
}

// NewRateLimiter constructs a RateLimiter.
func NewRateLimiter(store port.RateLimitStore, policy RateLimitPolicy, storeTimeout time.Duration, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RateLimiter{
		store:        store,
		policy:       policy,
		storeTimeout: storeTimeout,
		logger:       log,
		now:          time.Now,
	}
}

// WithClock overrides the time source.
func (r *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		r.now = now
	}
	return r
}

// Allow records the request and reports whether it is within the limit.
// Store failures allow the request.
func (r *RateLimiter) Allow(ctx context.Context, identifier string) bool {
	if r == nil || r.store == nil || r.policy.MaxRequests <= 0 {
		return true
	}

	storeCtx, cancel := boundedContext(ctx, r.storeTimeout)
	defer cancel()

	key := fmt.Sprintf("%s:%s", r.policy.Class, identifier)
	entry, err := r.store.Hit(storeCtx, key, r.policy.Window, r.now().UTC())
	if err != nil {
		r.logger.Warn("rate limit store unavailable, allowing request",
			zap.String("class", r.policy.Class),
			zap.String("identifier", logger.MaskIdentifier(identifier)),
			zap.Error(err),
		)
		return true
	}

	return entry.Count <= r.policy.MaxRequests
}
