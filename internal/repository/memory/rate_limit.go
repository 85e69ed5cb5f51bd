package memory

import (
	"context"
	"errors"
	"hash/fnv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
)

const rateLimitShards = 64

type windowEntry struct {
	domain.RateLimitEntry
	window time.Duration
}

type rateLimitShard struct {
	mu      sync.Mutex
	entries map[string]windowEntry
}

// RateLimitStore keeps fixed-window counters in process. Keys hash onto a
// fixed set of shards, each guarded by its own mutex.
type RateLimitStore struct {
	shards [rateLimitShards]rateLimitShard
	logger *zap.Logger
	clock  func() time.Time
}

// NewRateLimitStore constructs an empty store.
func NewRateLimitStore(logger *zap.Logger) *RateLimitStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	store := &RateLimitStore{logger: logger, clock: time.Now}
	for i := range store.shards {
		store.shards[i].entries = make(map[string]windowEntry)
	}
	return store
}

// WithClock overrides the reaper time source.
func (s *RateLimitStore) WithClock(clock func() time.Time) *RateLimitStore {
	if clock != nil {
		s.clock = clock
	}
	return s
}

// Hit records one request against key.
func (s *RateLimitStore) Hit(_ context.Context, key string, window time.Duration, at time.Time) (domain.RateLimitEntry, error) {
	if window <= 0 {
		return domain.RateLimitEntry{}, errors.New("window must be positive")
	}

	shard := s.shard(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	entry, ok := shard.entries[key]
	if !ok || at.Sub(entry.WindowStart) > window {
		entry = windowEntry{
			RateLimitEntry: domain.RateLimitEntry{Count: 1, WindowStart: at},
			window:         window,
		}
	} else {
		entry.Count++
	}
	shard.entries[key] = entry

	return entry.RateLimitEntry, nil
}

// Sweep evicts every window that has elapsed at the given instant.
func (s *RateLimitStore) Sweep(at time.Time) int {
	evicted := 0
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		for key, entry := range shard.entries {
			if at.Sub(entry.WindowStart) > entry.window {
				delete(shard.entries, key)
				evicted++
			}
		}
		shard.mu.Unlock()
	}
	return evicted
}

// Len reports the number of tracked keys.
func (s *RateLimitStore) Len() int {
	total := 0
	for i := range s.shards {
		shard := &s.shards[i]
		shard.mu.Lock()
		total += len(shard.entries)
		shard.mu.Unlock()
	}
	return total
}

// RunReaper sweeps on every tick until ctx is cancelled.
func (s *RateLimitStore) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if evicted := s.Sweep(s.clock()); evicted > 0 {
				s.logger.Debug("rate limit windows evicted", zap.Int("count", evicted))
			}
		}
	}
}

func (s *RateLimitStore) shard(key string) *rateLimitShard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return &s.shards[h.Sum32()%rateLimitShards]
}

var _ port.RateLimitStore = (*RateLimitStore)(nil)
