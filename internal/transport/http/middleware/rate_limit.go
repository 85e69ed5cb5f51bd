package middleware

import (
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/logger"
)

const (
	rateLimitProblemType  = "https://rowbooster.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
	rateLimitKeyPrefix    = "http"
)

// IdentifierFunc extracts the identifier used to scope rate limits (e.g., client IP).
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule configures a fixed-window limit for a particular identifier.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter throttles HTTP requests on top of a shared fixed-window store.
type RateLimiter struct {
	store  port.RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

type ruleResult struct {
	allowed    bool
	limit      int
	remaining  int
	reset      time.Time
	retryAfter time.Duration
}

// ProblemDetails represents an RFC 9457 compatible error payload for rate limits.
type ProblemDetails struct {
	Type       string `json:"type"`
	Title      string `json:"title"`
	Status     int    `json:"status"`
	Detail     string `json:"detail"`
	Instance   string `json:"instance"`
	RetryAfter int    `json:"retry_after"`
	TraceID    string `json:"trace_id,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store port.RateLimitStore, log *zap.Logger) *RateLimiter {
	if log == nil {
		log = zap.NewNop()
	}

	return &RateLimiter{
		store:  store,
		logger: log,
		now:    time.Now,
	}
}

// WithClock allows injection of a custom clock (primarily for testing).
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier builds an IdentifierFunc using the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		if ip == "" {
			return "", false
		}
		return ip, true
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules. Store
// failures let the request through.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	filtered := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		filtered = append(filtered, rule)
	}

	return func(c *gin.Context) {
		if len(filtered) == 0 || rl == nil || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var best *ruleResult

		for _, rule := range filtered {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}

			res, err := rl.evaluateRule(c, rule, identifier, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", logger.MaskIP(identifier)),
					zap.Error(err))
				continue
			}

			if !res.allowed {
				rl.applyHeaders(c, res)
				rl.respondRateLimited(c, res)
				return
			}

			if best == nil || res.remaining < best.remaining ||
				(res.remaining == best.remaining && res.reset.Before(best.reset)) {
				snapshot := res
				best = &snapshot
			}
		}

		if best != nil {
			rl.applyHeaders(c, *best)
		}

		c.Next()
	}
}

func (rl *RateLimiter) evaluateRule(c *gin.Context, rule RateLimitRule, identifier string, now time.Time) (ruleResult, error) {
	key := fmt.Sprintf("%s:%s:%s", rateLimitKeyPrefix, rule.Name, identifier)

	entry, err := rl.store.Hit(c.Request.Context(), key, rule.Window, now)
	if err != nil {
		return ruleResult{}, err
	}

	result := ruleResult{
		allowed:   entry.Count <= rule.Limit,
		limit:     rule.Limit,
		remaining: rule.Limit - entry.Count,
		reset:     entry.WindowStart.Add(rule.Window),
	}
	if result.remaining < 0 {
		result.remaining = 0
	}

	result.retryAfter = result.reset.Sub(now)
	if result.retryAfter < 0 {
		result.retryAfter = 0
	}

	return result, nil
}

func (rl *RateLimiter) applyHeaders(c *gin.Context, res ruleResult) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(res.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(res.remaining))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(res.reset.Unix(), 10))

	if !res.allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(res.retryAfter)))
	}
}

func (rl *RateLimiter) respondRateLimited(c *gin.Context, res ruleResult) {
	seconds := retrySeconds(res.retryAfter)

	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}

func retrySeconds(d time.Duration) int {
	seconds := int(math.Ceil(d.Seconds()))
	if seconds < 0 {
		return 0
	}
	return seconds
}
