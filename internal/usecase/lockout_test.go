package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
)

type failingLockoutStore struct{}

func (failingLockoutStore) ReserveAttempt(context.Context, string, time.Time, int, time.Time) (domain.LockoutState, bool, error) {
	return domain.LockoutState{}, false, errUnexpectedStore
}

func (failingLockoutStore) RecordFailure(context.Context, string, time.Time) error {
	return errUnexpectedStore
}

func (failingLockoutStore) RecordSuccess(context.Context, string, time.Time) error {
	return errUnexpectedStore
}

// failOnce reserves an attempt and settles it as a wrong password.
func failOnce(t *testing.T, h *harness, user domain.User) error {
	t.Helper()
	attempt, err := h.lockout.Reserve(context.Background(), user)
	if err != nil {
		return err
	}
	return h.lockout.RecordFailure(context.Background(), attempt)
}

func TestLockoutGuard_LocksAtThreshold(t *testing.T) {
	h := newHarness(t)
	user := h.seedActiveUser(t, "bob", "bob@x.com", strongPassword)
	ctx := context.Background()

	for i := 1; i < h.cfg.Security.MaxLoginAttempts; i++ {
		if err := failOnce(t, h, user); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i, err)
		}
	}

	err := failOnce(t, h, user)
	var locked *AccountLockedError
	if !errors.As(err, &locked) {
		t.Fatalf("expected AccountLockedError, got %v", err)
	}
	if want := h.clock.Now().Add(h.cfg.Security.LockoutDuration); !locked.Until.Equal(want) {
		t.Fatalf("expected lock until %s, got %s", want, locked.Until)
	}
	if got := locked.RetryAfter(h.clock.Now()); got != h.cfg.Security.LockoutDuration {
		t.Fatalf("expected retry after %s, got %s", h.cfg.Security.LockoutDuration, got)
	}

	stored, _ := h.repos.Users.GetByID(ctx, user.ID)
	if err := h.lockout.CheckLocked(*stored); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked from CheckLocked, got %v", err)
	}
	if stored.LastFailedLogin == nil {
		t.Fatal("expected last failed login to be stamped")
	}
}

func TestLockoutGuard_ReserveRefusedWhileLocked(t *testing.T) {
	h := newHarness(t)
	user := h.seedActiveUser(t, "bob", "bob@x.com", strongPassword)
	ctx := context.Background()

	for i := 0; i < h.cfg.Security.MaxLoginAttempts; i++ {
		_ = failOnce(t, h, user)
	}

	// A stale snapshot that still shows the account unlocked must not get through.
	if _, err := h.lockout.Reserve(ctx, user); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected ErrAccountLocked, got %v", err)
	}
	stored, _ := h.repos.Users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != h.cfg.Security.MaxLoginAttempts {
		t.Fatalf("refused attempt changed the counter to %d", stored.FailedLoginAttempts)
	}
}

func TestLockoutGuard_LapsedLockRelocksOnNextFailure(t *testing.T) {
	h := newHarness(t)
	user := h.seedActiveUser(t, "bob", "bob@x.com", strongPassword)
	ctx := context.Background()

	for i := 0; i < h.cfg.Security.MaxLoginAttempts; i++ {
		_ = failOnce(t, h, user)
	}

	h.clock.Advance(h.cfg.Security.LockoutDuration + time.Second)
	stored, _ := h.repos.Users.GetByID(ctx, user.ID)
	if err := h.lockout.CheckLocked(*stored); err != nil {
		t.Fatalf("expected lapsed lock to allow an attempt, got %v", err)
	}

	if err := failOnce(t, h, *stored); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected immediate relock, got %v", err)
	}
}

func TestLockoutGuard_SuccessClearsCounter(t *testing.T) {
	h := newHarness(t)
	user := h.seedActiveUser(t, "bob", "bob@x.com", strongPassword)
	ctx := context.Background()

	_ = failOnce(t, h, user)
	_ = failOnce(t, h, user)
	if _, err := h.lockout.Reserve(ctx, user); err != nil {
		t.Fatalf("Reserve returned error: %v", err)
	}

	if err := h.lockout.RecordSuccess(ctx, user); err != nil {
		t.Fatalf("RecordSuccess returned error: %v", err)
	}
	stored, _ := h.repos.Users.GetByID(ctx, user.ID)
	if stored.FailedLoginAttempts != 0 || stored.LockedUntil != nil {
		t.Fatalf("expected counters cleared, got %+v", stored.Lockout())
	}
}

func TestLockoutGuard_StoreFailure(t *testing.T) {
	guard := NewLockoutGuard(failingLockoutStore{}, testConfig())
	ctx := context.Background()

	if _, err := guard.Reserve(ctx, domain.User{ID: "u1"}); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if err := guard.RecordFailure(ctx, &Attempt{UserID: "u1"}); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
	if err := guard.RecordSuccess(ctx, domain.User{ID: "u1"}); !errors.Is(err, ErrStorageUnavailable) {
		t.Fatalf("expected ErrStorageUnavailable, got %v", err)
	}
}
