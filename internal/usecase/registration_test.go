package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/security"
)

func registerAlice(t *testing.T, h *harness) *RegistrationResult {
	t.Helper()
	result, err := h.register.Register(context.Background(), RegisterInput{
		Username: "alice",
		Email:    "Alice@X.com",
		Password: strongPassword,
		Client:   officeClient,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	return result
}

func TestRegistrationService_RegisterCreatesPendingUser(t *testing.T) {
	h := newHarness(t)
	result := registerAlice(t, h)

	if result.User.IsActive {
		t.Fatalf("expected new account to be inactive")
	}
	if result.User.Email != "alice@x.com" {
		t.Fatalf("expected normalised email, got %q", result.User.Email)
	}
	if result.User.PasswordHash != "" {
		t.Fatalf("expected password hash stripped from result")
	}
	if result.User.Role != domain.UserRoleUser {
		t.Fatalf("expected user role, got %q", result.User.Role)
	}

	stored, err := h.repos.Users.GetByID(context.Background(), result.User.ID)
	if err != nil {
		t.Fatalf("GetByID returned error: %v", err)
	}
	ok, err := h.hasher.Verify(strongPassword, stored.PasswordHash)
	if err != nil || !ok {
		t.Fatalf("expected stored hash to verify, got %v %v", ok, err)
	}

	if h.notifier.count() != 1 {
		t.Fatalf("expected one verification email, got %d", h.notifier.count())
	}
	sent := h.notifier.last()
	if sent.Kind != domain.NotificationEmailVerification || sent.Token != result.Verification.Token || sent.Code != result.Verification.Code {
		t.Fatalf("unexpected notification: %+v", sent)
	}
	if h.audit.count(domain.AuditUserRegistered) != 1 {
		t.Fatalf("expected registration audit event")
	}

	if _, err := h.auth.Authenticate(context.Background(), "alice", strongPassword, nil); !errors.Is(err, ErrAccountInactive) {
		t.Fatalf("expected pending account to be inactive at login, got %v", err)
	}
}

func TestRegistrationService_Duplicates(t *testing.T) {
	h := newHarness(t)
	registerAlice(t, h)
	ctx := context.Background()

	_, err := h.register.Register(ctx, RegisterInput{Username: "alice", Email: "other@x.com", Password: strongPassword})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	_, err = h.register.Register(ctx, RegisterInput{Username: "Alice", Email: "third@x.com", Password: strongPassword})
	if !errors.Is(err, ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken for a case variant, got %v", err)
	}
	_, err = h.register.Register(ctx, RegisterInput{Username: "alice2", Email: "ALICE@x.com", Password: strongPassword})
	if !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
}

func TestRegistrationService_RejectsInvalidInput(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	cases := []struct {
		name  string
		input RegisterInput
		field string
	}{
		{name: "short username", input: RegisterInput{Username: "al", Email: "al@x.com", Password: strongPassword}, field: "username"},
		{name: "username with at", input: RegisterInput{Username: "al@ice", Email: "al@x.com", Password: strongPassword}, field: "username"},
		{name: "bad email", input: RegisterInput{Username: "alice", Email: "alice.x.com", Password: strongPassword}, field: "email"},
	}

	for _, tc := range cases {
		_, err := h.register.Register(ctx, tc.input)
		var inputErr *InputError
		if !errors.As(err, &inputErr) || inputErr.Field != tc.field {
			t.Fatalf("%s: expected input error on %s, got %v", tc.name, tc.field, err)
		}
		if !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("%s: expected ErrInvalidInput match", tc.name)
		}
	}

	_, err := h.register.Register(ctx, RegisterInput{Username: "alice", Email: "alice@x.com", Password: "short"})
	var policyErr *security.PasswordValidationError
	if !errors.As(err, &policyErr) {
		t.Fatalf("expected password policy error, got %v", err)
	}

	_, err = h.register.Register(ctx, RegisterInput{Username: "alice", Email: "alice@x.com", Password: "Alice!Wonderland#2025"})
	if !errors.As(err, &policyErr) || policyErr.Code != "contains_identity" {
		t.Fatalf("expected contains_identity violation, got %v", err)
	}
	if h.notifier.count() != 0 {
		t.Fatalf("expected no notifications for rejected registrations")
	}
}

func TestRegistrationService_VerifyEmailWithToken(t *testing.T) {
	h := newHarness(t)
	result := registerAlice(t, h)
	ctx := context.Background()

	user, err := h.register.VerifyEmail(ctx, VerifyEmailInput{Token: result.Verification.Token})
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	if !user.IsActive || user.PasswordHash != "" {
		t.Fatalf("expected active sanitised user, got %+v", user)
	}

	if _, err := h.register.VerifyEmail(ctx, VerifyEmailInput{Token: result.Verification.Token}); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected consumed token rejected, got %v", err)
	}
	if _, err := h.register.VerifyEmail(ctx, VerifyEmailInput{Email: "alice@x.com", Code: result.Verification.Code}); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected consumed code rejected, got %v", err)
	}
	if h.audit.count(domain.AuditEmailVerified) != 1 {
		t.Fatalf("expected one email verified audit event")
	}
}

func TestRegistrationService_VerifyEmailWithCode(t *testing.T) {
	h := newHarness(t)
	result := registerAlice(t, h)
	ctx := context.Background()

	if _, err := h.register.VerifyEmail(ctx, VerifyEmailInput{Email: "nobody@x.com", Code: result.Verification.Code}); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected ErrTokenNotFound for unknown email, got %v", err)
	}

	user, err := h.register.VerifyEmail(ctx, VerifyEmailInput{Email: "ALICE@x.com", Code: result.Verification.Code})
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	if !user.IsActive {
		t.Fatalf("expected account activated")
	}

	if _, err := h.register.VerifyEmail(ctx, VerifyEmailInput{Code: "123456"}); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput without email, got %v", err)
	}
}

func TestRegistrationService_VerifyEmailExpired(t *testing.T) {
	h := newHarness(t)
	result := registerAlice(t, h)

	h.clock.Advance(h.cfg.Security.VerificationTokenTTL + 1)
	if _, err := h.register.VerifyEmail(context.Background(), VerifyEmailInput{Token: result.Verification.Token}); !errors.Is(err, ErrTokenExpired) {
		t.Fatalf("expected ErrTokenExpired, got %v", err)
	}
}

func TestRegistrationService_ResendVerification(t *testing.T) {
	h := newHarness(t)
	result := registerAlice(t, h)
	h.seedActiveUser(t, "dave", "dave@x.com", strongPassword)
	ctx := context.Background()

	if err := h.register.ResendVerification(ctx, "nobody@x.com", &domain.ClientInfo{IPAddress: "192.0.2.1"}); err != nil {
		t.Fatalf("ResendVerification returned error: %v", err)
	}
	if err := h.register.ResendVerification(ctx, "dave@x.com", &domain.ClientInfo{IPAddress: "192.0.2.2"}); err != nil {
		t.Fatalf("ResendVerification returned error: %v", err)
	}
	if h.notifier.count() != 1 {
		t.Fatalf("expected no emails for unknown or active accounts, got %d", h.notifier.count())
	}

	if err := h.register.ResendVerification(ctx, "alice@x.com", &domain.ClientInfo{IPAddress: "192.0.2.3"}); err != nil {
		t.Fatalf("ResendVerification returned error: %v", err)
	}
	if h.notifier.count() != 2 {
		t.Fatalf("expected resend email, got %d", h.notifier.count())
	}
	fresh := h.notifier.last()

	if _, err := h.register.VerifyEmail(ctx, VerifyEmailInput{Token: result.Verification.Token}); !errors.Is(err, ErrTokenNotFound) {
		t.Fatalf("expected original token superseded, got %v", err)
	}
	if _, err := h.register.VerifyEmail(ctx, VerifyEmailInput{Token: fresh.Token}); err != nil {
		t.Fatalf("expected resent token accepted, got %v", err)
	}
}

func TestRegistrationService_ResendIsSilentlyThrottled(t *testing.T) {
	h := newHarness(t)
	registerAlice(t, h)
	ctx := context.Background()
	client := &domain.ClientInfo{IPAddress: "192.0.2.10"}

	for i := 0; i < h.cfg.Security.ResetRequestMax+2; i++ {
		if err := h.register.ResendVerification(ctx, "alice@x.com", client); err != nil {
			t.Fatalf("request %d: ResendVerification returned error: %v", i+1, err)
		}
	}

	if got, want := h.notifier.count(), 1+h.cfg.Security.ResetRequestMax; got != want {
		t.Fatalf("expected %d emails, got %d", want, got)
	}
	if h.audit.count(domain.AuditRequestThrottled) != 2 {
		t.Fatalf("expected two throttled audit events")
	}
}
