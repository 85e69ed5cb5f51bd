package redis

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	red "github.com/redis/go-redis/v9"
)

func newTestRedis(t *testing.T) (*red.Client, *miniredis.Miniredis) {
	t.Helper()

	server, err := miniredis.Run()
	if err != nil {
		t.Fatalf("failed to start miniredis: %v", err)
	}

	client := red.NewClient(&red.Options{Addr: server.Addr()})

	t.Cleanup(func() {
		_ = client.Close()
		server.Close()
	})

	return client, server
}

func TestRateLimitRepository_CountsWithinWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, RateLimitConfig{KeyPrefix: "rl"})

	ctx := context.Background()
	window := 15 * time.Minute
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	for i := 1; i <= 4; i++ {
		entry, err := repo.Hit(ctx, "reset:198.51.100.7", window, start.Add(time.Duration(i)*time.Second))
		if err != nil {
			t.Fatalf("Hit returned error: %v", err)
		}
		if entry.Count != i {
			t.Fatalf("hit %d: expected count %d, got %d", i, i, entry.Count)
		}
		if !entry.WindowStart.Equal(start.Add(time.Second)) {
			t.Fatalf("hit %d: expected window start %s, got %s", i, start.Add(time.Second), entry.WindowStart)
		}
	}
}

func TestRateLimitRepository_ResetsOnlyAfterWindowElapsed(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, RateLimitConfig{KeyPrefix: "rl"})

	ctx := context.Background()
	window := time.Minute
	start := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

	if _, err := repo.Hit(ctx, "k", window, start); err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}

	entry, err := repo.Hit(ctx, "k", window, start.Add(window))
	if err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	if entry.Count != 2 {
		t.Fatalf("expected window boundary to stay in the same window, got count %d", entry.Count)
	}

	later := start.Add(window + time.Millisecond)
	entry, err = repo.Hit(ctx, "k", window, later)
	if err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}
	if entry.Count != 1 || !entry.WindowStart.Equal(later) {
		t.Fatalf("expected fresh window at %s, got %+v", later, entry)
	}
}

func TestRateLimitRepository_AppliesTTL(t *testing.T) {
	client, server := newTestRedis(t)
	repo := NewRateLimitRepository(client, RateLimitConfig{KeyPrefix: "rl"})

	window := 15 * time.Minute
	if _, err := repo.Hit(context.Background(), "login:203.0.113.9", window, time.Now()); err != nil {
		t.Fatalf("Hit returned error: %v", err)
	}

	remaining := server.TTL("rl:login:203.0.113.9")
	if remaining <= window || remaining > 2*window {
		t.Fatalf("expected ttl within (%v, %v], got %v", window, 2*window, remaining)
	}
}

func TestRateLimitRepository_RejectsNonPositiveWindow(t *testing.T) {
	client, _ := newTestRedis(t)
	repo := NewRateLimitRepository(client, RateLimitConfig{})

	if _, err := repo.Hit(context.Background(), "k", 0, time.Now()); err == nil {
		t.Fatalf("expected error for zero window")
	}
}
