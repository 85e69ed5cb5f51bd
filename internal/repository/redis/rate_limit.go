package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
)

// fixedWindowScript resets the window when it is absent or strictly older than
// the window length, otherwise increments. Runs atomically per key.
var fixedWindowScript = redis.NewScript(`
local now = tonumber(ARGV[1])
local window = tonumber(ARGV[2])
local ttl = tonumber(ARGV[3])
local start = nil
local raw = redis.call('HGET', KEYS[1], 'start')
if raw then
  start = tonumber(raw)
end
if start == nil or now - start > window then
  redis.call('HSET', KEYS[1], 'count', 1, 'start', now)
  redis.call('PEXPIRE', KEYS[1], ttl)
  return {1, now}
end
local count = redis.call('HINCRBY', KEYS[1], 'count', 1)
return {count, start}
`)

// RateLimitConfig configures key naming for the fixed-window store.
type RateLimitConfig struct {
	KeyPrefix string
}

// RateLimitRepository keeps fixed-window counters in Redis hashes.
type RateLimitRepository struct {
	client redis.Scripter
	cfg    RateLimitConfig
}

// NewRateLimitRepository constructs a repository using the provided Redis client and config.
func NewRateLimitRepository(client redis.Scripter, cfg RateLimitConfig) *RateLimitRepository {
	return &RateLimitRepository{client: client, cfg: cfg}
}

// Hit records one request against key and returns the window state after it.
// Keys expire after twice the window so abandoned identifiers do not accumulate.
func (r *RateLimitRepository) Hit(ctx context.Context, key string, window time.Duration, at time.Time) (domain.RateLimitEntry, error) {
	if window <= 0 {
		return domain.RateLimitEntry{}, errors.New("window must be positive")
	}

	result, err := fixedWindowScript.Run(ctx, r.client, []string{r.key(key)},
		at.UnixMilli(),
		window.Milliseconds(),
		(2 * window).Milliseconds(),
	).Int64Slice()
	if err != nil {
		return domain.RateLimitEntry{}, fmt.Errorf("redis fixed window: %w", err)
	}
	if len(result) != 2 {
		return domain.RateLimitEntry{}, fmt.Errorf("redis fixed window: unexpected reply length %d", len(result))
	}

	return domain.RateLimitEntry{
		Count:       int(result[0]),
		WindowStart: time.UnixMilli(result[1]).UTC(),
	}, nil
}

func (r *RateLimitRepository) key(identifier string) string {
	if r.cfg.KeyPrefix == "" {
		return identifier
	}
	return fmt.Sprintf("%s:%s", r.cfg.KeyPrefix, identifier)
}

var _ port.RateLimitStore = (*RateLimitRepository)(nil)
