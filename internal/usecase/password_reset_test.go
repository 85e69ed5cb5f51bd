package usecase

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/security"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/telemetry"
)

func requestResetToken(t *testing.T, h *harness, email string) string {
	t.Helper()
	before := h.notifier.count()
	if err := h.passwords.RequestReset(context.Background(), email, &domain.ClientInfo{IPAddress: "192.0.2.50"}); err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}
	if h.notifier.count() != before+1 {
		t.Fatalf("expected a reset email")
	}
	sent := h.notifier.last()
	if sent.Kind != domain.NotificationPasswordReset || sent.Token == "" || sent.Code != "" {
		t.Fatalf("unexpected notification: %+v", sent)
	}
	return sent.Token
}

func TestPasswordResetService_RequestResetNeverRevealsExistence(t *testing.T) {
	h := newHarness(t)
	h.seedActiveUser(t, "alice", "alice@x.com", strongPassword)
	ctx := context.Background()

	if err := h.passwords.RequestReset(ctx, "nobody@x.com", &domain.ClientInfo{IPAddress: "192.0.2.1"}); err != nil {
		t.Fatalf("RequestReset returned error for unknown email: %v", err)
	}
	if h.notifier.count() != 0 {
		t.Fatalf("expected no email for unknown account")
	}

	if err := h.passwords.RequestReset(ctx, "ALICE@x.com", &domain.ClientInfo{IPAddress: "192.0.2.2"}); err != nil {
		t.Fatalf("RequestReset returned error for known email: %v", err)
	}
	if h.notifier.count() != 1 {
		t.Fatalf("expected reset email for known account")
	}
	if h.audit.count(domain.AuditPasswordResetRequested) != 2 {
		t.Fatalf("expected both requests audited")
	}
}

func TestPasswordResetService_FourthRequestAbsorbed(t *testing.T) {
	h := newHarness(t)
	user := h.seedActiveUser(t, "alice", "alice@x.com", strongPassword)
	ctx := context.Background()
	client := &domain.ClientInfo{IPAddress: "192.0.2.7"}

	metrics, err := telemetry.NewMetrics(telemetry.MetricsOptions{Registerer: prometheus.NewRegistry(), Namespace: "test"})
	if err != nil {
		t.Fatalf("NewMetrics returned error: %v", err)
	}
	limiter := NewRateLimiter(h.limits, RateLimitPolicy{
		Class:       RateClassPasswordReset,
		MaxRequests: h.cfg.Security.ResetRequestMax,
		Window:      h.cfg.Security.ResetRequestWindow,
	}, time.Second, nil).WithClock(h.clock.Now)
	svc := NewPasswordResetService(h.cfg, h.repos.Users, h.repos.Credentials, h.tokens, h.hasher,
		security.NewPasswordPolicy(security.DefaultPasswordPolicyConfig()), h.notifier, limiter, h.audit, metrics, nil).WithClock(h.clock.Now)

	var lastSlot string
	for i := 1; i <= 3; i++ {
		if err := svc.RequestReset(ctx, "alice@x.com", client); err != nil {
			t.Fatalf("request %d: RequestReset returned error: %v", i, err)
		}
		if h.notifier.count() != i {
			t.Fatalf("request %d: expected token issued", i)
		}
		slot, err := h.repos.Tokens.Get(ctx, user.ID, domain.TokenPurposeReset)
		if err != nil {
			t.Fatalf("request %d: Get returned error: %v", i, err)
		}
		lastSlot = slot.TokenHash
	}

	if err := svc.RequestReset(ctx, "alice@x.com", client); err != nil {
		t.Fatalf("4th RequestReset returned error: %v", err)
	}
	if h.notifier.count() != 3 {
		t.Fatalf("expected 4th request absorbed without email")
	}
	slot, _ := h.repos.Tokens.Get(ctx, user.ID, domain.TokenPurposeReset)
	if slot.TokenHash != lastSlot {
		t.Fatalf("expected 4th request not to issue a token")
	}
	if got := testutil.ToFloat64(metrics.ResetRequests.WithLabelValues(resetResultAbsorbed)); got != 1 {
		t.Fatalf("expected one absorbed request, got %v", got)
	}
	if got := testutil.ToFloat64(metrics.ResetRequests.WithLabelValues(resetResultIssued)); got != 3 {
		t.Fatalf("expected three issued requests, got %v", got)
	}

	h.clock.Advance(h.cfg.Security.ResetRequestWindow + time.Second)
	if err := svc.RequestReset(ctx, "alice@x.com", client); err != nil {
		t.Fatalf("RequestReset returned error: %v", err)
	}
	if h.notifier.count() != 4 {
		t.Fatalf("expected new window to issue again")
	}
}

func TestPasswordResetService_ConcurrentRequestsShareOneWindow(t *testing.T) {
	h := newHarness(t)
	h.seedActiveUser(t, "alice", "alice@x.com", strongPassword)
	client := &domain.ClientInfo{IPAddress: "192.0.2.9"}

	var (
		wg    sync.WaitGroup
		start = make(chan struct{})
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			_ = h.passwords.RequestReset(context.Background(), "alice@x.com", client)
		}()
	}
	close(start)
	wg.Wait()

	if got := h.notifier.count(); got != h.cfg.Security.ResetRequestMax {
		t.Fatalf("expected %d reset emails, got %d", h.cfg.Security.ResetRequestMax, got)
	}
	if got := h.audit.count(domain.AuditRequestThrottled); got != 10-h.cfg.Security.ResetRequestMax {
		t.Fatalf("expected %d throttled requests, got %d", 10-h.cfg.Security.ResetRequestMax, got)
	}
}

func TestPasswordResetService_TimingParity(t *testing.T) {
	const floor = 40 * time.Millisecond
	h := newHarness(t, func(cfg *config.AppConfig) {
		cfg.Security.ResetResponseFloor = floor
	})
	h.seedActiveUser(t, "alice", "alice@x.com", strongPassword)
	ctx := context.Background()

	measure := func(email, ip string) time.Duration {
		start := time.Now()
		if err := h.passwords.RequestReset(ctx, email, &domain.ClientInfo{IPAddress: ip}); err != nil {
			t.Fatalf("RequestReset returned error: %v", err)
		}
		return time.Since(start)
	}

	known := measure("alice@x.com", "192.0.2.20")
	unknown := measure("nobody@x.com", "192.0.2.21")

	if known < floor || unknown < floor {
		t.Fatalf("expected both responses to honour the floor, got %s and %s", known, unknown)
	}
	diff := known - unknown
	if diff < 0 {
		diff = -diff
	}
	if diff >= 50*time.Millisecond {
		t.Fatalf("expected elapsed times within 50ms, got %s and %s", known, unknown)
	}
}

func TestPasswordResetService_ResetRevokesSessions(t *testing.T) {
	h := newHarness(t)
	user := h.seedActiveUser(t, "alice", "alice@x.com", strongPassword)
	ctx := context.Background()

	login, err := h.auth.Authenticate(ctx, "alice", strongPassword, nil)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}
	token := requestResetToken(t, h, "alice@x.com")

	result, err := h.passwords.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: otherPassword, Confirmation: otherPassword})
	if err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if result.UserID != user.ID || result.SessionsRevoked != 1 {
		t.Fatalf("unexpected reset result: %+v", result)
	}

	if _, err := h.sessions.Validate(ctx, login.Session.Secret, nil); !errors.Is(err, ErrSessionNotFound) {
		t.Fatalf("expected old session rejected after reset, got %v", err)
	}
	if _, err := h.auth.Authenticate(ctx, "alice", strongPassword, nil); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected old password rejected, got %v", err)
	}
	if _, err := h.auth.Authenticate(ctx, "alice", otherPassword, nil); err != nil {
		t.Fatalf("expected new password accepted, got %v", err)
	}

	_, err = h.passwords.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: otherPassword, Confirmation: otherPassword})
	if !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected reused token rejected, got %v", err)
	}
	if h.audit.count(domain.AuditPasswordResetCompleted) != 1 {
		t.Fatalf("expected one reset completed audit event")
	}
}

func TestPasswordResetService_ResetClearsLockout(t *testing.T) {
	h := newHarness(t)
	h.seedActiveUser(t, "bob", "bob@x.com", strongPassword)
	ctx := context.Background()

	for i := 0; i < h.cfg.Security.MaxLoginAttempts; i++ {
		_, _ = h.auth.Authenticate(ctx, "bob", "Wrong!Passphrase#2025", nil)
	}
	token := requestResetToken(t, h, "bob@x.com")

	if _, err := h.passwords.ResetPassword(ctx, ResetPasswordInput{Token: token, Password: otherPassword, Confirmation: otherPassword}); err != nil {
		t.Fatalf("ResetPassword returned error: %v", err)
	}
	if _, err := h.auth.Authenticate(ctx, "bob", otherPassword, nil); err != nil {
		t.Fatalf("expected reset to lift the lock, got %v", err)
	}
}

func TestPasswordResetService_ResetFailures(t *testing.T) {
	h := newHarness(t)
	h.seedActiveUser(t, "alice", "alice@x.com", strongPassword)
	ctx := context.Background()

	first := requestResetToken(t, h, "alice@x.com")
	second := requestResetToken(t, h, "alice@x.com")

	if _, err := h.passwords.ResetPassword(ctx, ResetPasswordInput{Token: second, Password: otherPassword, Confirmation: strongPassword}); !errors.Is(err, ErrPasswordMismatch) {
		t.Fatalf("expected ErrPasswordMismatch, got %v", err)
	}
	if _, err := h.passwords.ResetPassword(ctx, ResetPasswordInput{Token: first, Password: otherPassword, Confirmation: otherPassword}); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected superseded token rejected, got %v", err)
	}
	if _, err := h.passwords.ResetPassword(ctx, ResetPasswordInput{Token: "garbage", Password: otherPassword, Confirmation: otherPassword}); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected unknown token rejected, got %v", err)
	}

	var policyErr *security.PasswordValidationError
	if _, err := h.passwords.ResetPassword(ctx, ResetPasswordInput{Token: second, Password: "weak", Confirmation: "weak"}); !errors.As(err, &policyErr) {
		t.Fatalf("expected password policy error, got %v", err)
	}

	h.clock.Advance(h.cfg.Security.ResetTokenTTL + time.Second)
	if _, err := h.passwords.ResetPassword(ctx, ResetPasswordInput{Token: second, Password: otherPassword, Confirmation: otherPassword}); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}
