package redis

import (
	"context"
	"strconv"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"go.uber.org/zap/zaptest"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
)

func TestNewClientPingAndClose(t *testing.T) {
	mr := miniredis.RunT(t)
	port, err := strconv.Atoi(mr.Port())
	if err != nil {
		t.Fatalf("parse port: %v", err)
	}

	client, err := NewClient(context.Background(), config.RedisSettings{Host: mr.Host(), Port: port}, zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}

	if err := client.Ping(context.Background()); err != nil {
		t.Fatalf("Ping returned error: %v", err)
	}

	mr.Close()
	if err := client.Ping(context.Background()); err == nil {
		t.Fatalf("expected ping to fail after server shutdown")
	}
	if err := client.Close(); err != nil {
		t.Fatalf("Close returned error: %v", err)
	}
}

func TestNewClientUnreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	port, _ := strconv.Atoi(mr.Port())
	host := mr.Host()
	mr.Close()

	if _, err := NewClient(context.Background(), config.RedisSettings{Host: host, Port: port}, nil); err == nil {
		t.Fatalf("expected error for unreachable redis")
	}
}

func TestNewOptions(t *testing.T) {
	opts := newOptions(config.RedisSettings{Host: "cache.internal", Port: 6380, DB: 2, TLSEnabled: true})
	if opts.Addr != "cache.internal:6380" {
		t.Fatalf("unexpected addr %q", opts.Addr)
	}
	if opts.DB != 2 {
		t.Fatalf("unexpected db %d", opts.DB)
	}
	if opts.TLSConfig == nil || opts.TLSConfig.ServerName != "cache.internal" {
		t.Fatalf("expected tls config for cache.internal")
	}
	if opts.ReadTimeout >= connectTimeout {
		t.Fatalf("command timeout should stay below the connect timeout")
	}

	if plain := newOptions(config.RedisSettings{Host: "localhost", Port: 6379}); plain.TLSConfig != nil {
		t.Fatalf("expected no tls config")
	}
}
