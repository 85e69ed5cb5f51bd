package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/security"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/telemetry"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository/memory"
)

const (
	strongPassword = "C0mplex!Passphrase#2025"
	otherPassword  = "N3w-Unrelated!Secret#77"
)

var errUnexpectedStore = errors.New("connection refused")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type recordingSink struct {
	mu     sync.Mutex
	events []domain.AuditEvent
}

func (s *recordingSink) Publish(_ context.Context, event domain.AuditEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *recordingSink) count(eventType domain.AuditEventType) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, e := range s.events {
		if e.Type == eventType {
			n++
		}
	}
	return n
}

func (s *recordingSink) last() domain.AuditEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.events) == 0 {
		return domain.AuditEvent{}
	}
	return s.events[len(s.events)-1]
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []domain.Notification
	err  error
}

func (n *recordingNotifier) Notify(_ context.Context, notification domain.Notification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, notification)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.sent)
}

func (n *recordingNotifier) last() domain.Notification {
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.sent) == 0 {
		return domain.Notification{}
	}
	return n.sent[len(n.sent)-1]
}

func testConfig() *config.AppConfig {
	cfg := config.Default()
	cfg.Store.Timeout = time.Second
	cfg.Security.ResetResponseFloor = 0
	return cfg
}

func testHasher(t *testing.T) *security.Argon2Hasher {
	t.Helper()
	hasher, err := security.NewArgon2Hasher(security.Argon2Config{
		Memory:      8 * 1024,
		Iterations:  1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	})
	if err != nil {
		t.Fatalf("NewArgon2Hasher returned error: %v", err)
	}
	return hasher
}

// harness wires every service over one in-memory dataset and one clock.
type harness struct {
	cfg      *config.AppConfig
	clock    *testClock
	repos    *memory.Repositories
	limits   *memory.RateLimitStore
	hasher   *security.Argon2Hasher
	audit    *recordingSink
	notifier *recordingNotifier

	tokens    *TokenService
	lockout   *LockoutGuard
	sessions  *SessionService
	auth      *AuthService
	register  *RegistrationService
	passwords *PasswordResetService
}

func newHarness(t *testing.T, mutate ...func(*config.AppConfig)) *harness {
	t.Helper()

	cfg := testConfig()
	for _, fn := range mutate {
		fn(cfg)
	}

	h := &harness{
		cfg:      cfg,
		clock:    newTestClock(),
		repos:    memory.NewRepositories(),
		hasher:   testHasher(t),
		audit:    &recordingSink{},
		notifier: &recordingNotifier{},
	}
	log := zaptest.NewLogger(t)
	metrics := telemetry.NewNopMetrics()
	policy := security.NewPasswordPolicy(security.DefaultPasswordPolicyConfig())

	h.limits = memory.NewRateLimitStore(log).WithClock(h.clock.Now)
	resetLimiter := NewRateLimiter(h.limits, RateLimitPolicy{
		Class:       RateClassPasswordReset,
		MaxRequests: cfg.Security.ResetRequestMax,
		Window:      cfg.Security.ResetRequestWindow,
	}, cfg.Store.Timeout, log).WithClock(h.clock.Now)
	resendLimiter := NewRateLimiter(h.limits, RateLimitPolicy{
		Class:       RateClassVerificationResend,
		MaxRequests: cfg.Security.ResetRequestMax,
		Window:      cfg.Security.ResetRequestWindow,
	}, cfg.Store.Timeout, log).WithClock(h.clock.Now)

	h.tokens = NewTokenService(h.repos.Tokens, cfg, metrics, log).WithClock(h.clock.Now)
	h.lockout = NewLockoutGuard(h.repos.Users, cfg).WithClock(h.clock.Now)
	h.sessions = NewSessionService(cfg, h.repos.Sessions, h.repos.Users, h.audit, metrics, log).WithClock(h.clock.Now)
	h.auth = NewAuthService(cfg, h.repos.Users, h.hasher, h.lockout, h.sessions, h.audit, metrics, log).WithClock(h.clock.Now)
	h.register = NewRegistrationService(cfg, h.repos.Users, h.repos.Credentials, h.tokens, h.hasher, policy, h.notifier, resendLimiter, h.audit, log).WithClock(h.clock.Now)
	h.passwords = NewPasswordResetService(cfg, h.repos.Users, h.repos.Credentials, h.tokens, h.hasher, policy, h.notifier, resetLimiter, h.audit, metrics, log).WithClock(h.clock.Now)

	t.Cleanup(h.sessions.Close)
	return h
}

// seedActiveUser stores an active account with the given password.
func (h *harness) seedActiveUser(t *testing.T, username, email, password string) domain.User {
	t.Helper()

	hash, err := h.hasher.Hash(password)
	if err != nil {
		t.Fatalf("Hash returned error: %v", err)
	}
	now := h.clock.Now()
	user := domain.User{
		ID:           username + "-id",
		Username:     username,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.UserRoleUser,
		IsActive:     true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := h.repos.Users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	return user
}
