package usecase

import (
	"context"
	"errors"
	"testing"
)

func TestScenario_RegisterVerifyLoginLogout(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	registered, err := h.register.Register(ctx, RegisterInput{
		Username: "alice",
		Email:    "alice@x.com",
		Password: strongPassword,
		Client:   officeClient,
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if _, err := h.register.VerifyEmail(ctx, VerifyEmailInput{Token: registered.Verification.Token}); err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}

	login, err := h.auth.Authenticate(ctx, "alice", strongPassword, officeClient)
	if err != nil {
		t.Fatalf("Authenticate returned error: %v", err)
	}

	sc, err := h.sessions.Validate(ctx, login.Session.Secret, officeClient)
	if err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}
	if sc.User.Username != "alice" {
		t.Fatalf("expected session to resolve to alice, got %q", sc.User.Username)
	}

	if err := h.auth.Logout(ctx, login.Session.Secret, officeClient); err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}

	_, err = h.sessions.Validate(ctx, login.Session.Secret, officeClient)
	if !errors.Is(err, ErrSessionNotFound) && !errors.Is(err, ErrSessionExpired) {
		t.Fatalf("expected session rejected after logout, got %v", err)
	}
}

func TestScenario_BobLockedOutAfterFiveFailures(t *testing.T) {
	h := newHarness(t)
	h.seedActiveUser(t, "bob", "bob@x.com", strongPassword)
	ctx := context.Background()

	for i := 1; i <= 5; i++ {
		if _, err := h.auth.Authenticate(ctx, "bob", "Wrong!Passphrase#2025", nil); err == nil {
			t.Fatalf("attempt %d: expected failure", i)
		}
	}

	_, err := h.auth.Authenticate(ctx, "bob", strongPassword, nil)
	if !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked with the correct password, got %v", err)
	}
}
