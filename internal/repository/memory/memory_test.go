package memory

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

func seedUser(t *testing.T, repos *Repositories, id, username, email string) {
	t.Helper()
	if err := repos.Users.Create(context.Background(), domain.User{
		ID:       id,
		Username: username,
		Email:    email,
		Role:     domain.UserRoleUser,
	}); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
}

func TestUserRepository_CreateRejectsDuplicates(t *testing.T) {
	repos := NewRepositories()
	seedUser(t, repos, "u1", "alice", "alice@x.com")

	err := repos.Users.Create(context.Background(), domain.User{ID: "u2", Username: "alice2", Email: "ALICE@x.com"})
	var conflict *repository.ConflictError
	if !errors.As(err, &conflict) || conflict.Field != "email" {
		t.Fatalf("expected email conflict, got %v", err)
	}

	err = repos.Users.Create(context.Background(), domain.User{ID: "u3", Username: "alice", Email: "other@x.com"})
	if !errors.As(err, &conflict) || conflict.Field != "username" {
		t.Fatalf("expected username conflict, got %v", err)
	}

	err = repos.Users.Create(context.Background(), domain.User{ID: "u4", Username: "Alice", Email: "third@x.com"})
	if !errors.As(err, &conflict) || conflict.Field != "username" {
		t.Fatalf("expected case-insensitive username conflict, got %v", err)
	}

	user, err := repos.Users.GetByUsername(context.Background(), "ALICE")
	if err != nil || user.ID != "u1" {
		t.Fatalf("expected case-insensitive lookup to find u1, got %v, %v", user, err)
	}
}

func TestUserRepository_ReserveAttemptLocksAtThreshold(t *testing.T) {
	repos := NewRepositories()
	seedUser(t, repos, "u1", "bob", "bob@x.com")
	ctx := context.Background()

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	lockUntil := at.Add(15 * time.Minute)

	var state domain.LockoutState
	for i := 0; i < 5; i++ {
		var (
			reserved bool
			err      error
		)
		state, reserved, err = repos.Users.ReserveAttempt(ctx, "u1", at, 5, lockUntil)
		if err != nil {
			t.Fatalf("ReserveAttempt returned error: %v", err)
		}
		if !reserved {
			t.Fatalf("attempt %d: expected reservation", i+1)
		}
		if i < 4 && state.LockedUntil != nil {
			t.Fatalf("attempt %d: locked before threshold", i+1)
		}
	}
	if !state.LockedAt(at) || state.FailedAttempts != 5 {
		t.Fatalf("expected lock after five attempts, got %+v", state)
	}

	state, reserved, err := repos.Users.ReserveAttempt(ctx, "u1", at, 5, lockUntil)
	if err != nil || reserved {
		t.Fatalf("expected refusal while locked, got reserved=%v err=%v", reserved, err)
	}
	if state.FailedAttempts != 5 {
		t.Fatalf("refused attempt changed the counter: %+v", state)
	}

	if err := repos.Users.RecordFailure(ctx, "u1", at); err != nil {
		t.Fatalf("RecordFailure returned error: %v", err)
	}
	if err := repos.Users.RecordSuccess(ctx, "u1", at); err != nil {
		t.Fatalf("RecordSuccess returned error: %v", err)
	}
	user, _ := repos.Users.GetByID(ctx, "u1")
	if user.FailedLoginAttempts != 0 || user.LockedUntil != nil || user.LastLogin == nil || user.LastFailedLogin == nil {
		t.Fatalf("expected counters reset, got %+v", user)
	}
}

func TestUserRepository_ReserveAttemptConcurrent(t *testing.T) {
	repos := NewRepositories()
	seedUser(t, repos, "u1", "bob", "bob@x.com")

	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	var (
		wg       sync.WaitGroup
		reserved atomic.Int32
	)
	for i := 0; i < 40; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, ok, err := repos.Users.ReserveAttempt(context.Background(), "u1", at, 5, at.Add(time.Minute))
			if err == nil && ok {
				reserved.Add(1)
			}
		}()
	}
	wg.Wait()

	if got := reserved.Load(); got != 5 {
		t.Fatalf("expected exactly 5 reservations, got %d", got)
	}
}

func TestCredentialRepository_ResetConsumesSlotAndDropsSessions(t *testing.T) {
	repos := NewRepositories()
	seedUser(t, repos, "u1", "alice", "alice@x.com")
	ctx := context.Background()
	at := time.Now()

	for _, id := range []string{"s1", "s2"} {
		if err := repos.Sessions.Create(ctx, domain.Session{ID: id, UserID: "u1", ExpiresAt: at.Add(time.Hour), LastActivity: at}); err != nil {
			t.Fatalf("Create session returned error: %v", err)
		}
	}
	if err := repos.Tokens.Store(ctx, domain.SecurityToken{UserID: "u1", Purpose: domain.TokenPurposeReset, TokenHash: "h1", ExpiresAt: at.Add(time.Hour)}); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	removed, err := repos.Credentials.CompletePasswordReset(ctx, "u1", "h1", "new-hash", at)
	if err != nil {
		t.Fatalf("CompletePasswordReset returned error: %v", err)
	}
	if removed != 2 {
		t.Fatalf("expected 2 sessions removed, got %d", removed)
	}
	if _, err := repos.Sessions.GetByID(ctx, "s1"); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected session to be gone, got %v", err)
	}

	if _, err := repos.Credentials.CompletePasswordReset(ctx, "u1", "h1", "again", at); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected replay to fail with ErrNotFound, got %v", err)
	}
}

func TestSessionRepository_TouchAndPurge(t *testing.T) {
	repos := NewRepositories()
	seedUser(t, repos, "u1", "alice", "alice@x.com")
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	_ = repos.Sessions.Create(ctx, domain.Session{ID: "live", UserID: "u1", ExpiresAt: at.Add(time.Hour), LastActivity: at})
	_ = repos.Sessions.Create(ctx, domain.Session{ID: "idle", UserID: "u1", ExpiresAt: at.Add(time.Hour), LastActivity: at})

	if err := repos.Sessions.Touch(ctx, "live", at.Add(20*time.Minute)); err != nil {
		t.Fatalf("Touch returned error: %v", err)
	}
	if err := repos.Sessions.Touch(ctx, "live", at.Add(5*time.Minute)); err != nil {
		t.Fatalf("Touch returned error: %v", err)
	}
	if err := repos.Sessions.Touch(ctx, "missing", at); err != nil {
		t.Fatalf("Touch of missing session returned error: %v", err)
	}

	removed, err := repos.Sessions.DeleteExpired(ctx, at.Add(30*time.Minute), 15*time.Minute)
	if err != nil {
		t.Fatalf("DeleteExpired returned error: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected only the idle session to be purged, got %d", removed)
	}
	if _, err := repos.Sessions.GetByID(ctx, "live"); err != nil {
		t.Fatalf("expected touched session to survive, got %v", err)
	}
}

func TestTokenRepository_ChargeCodeAttemptStopsAtLimit(t *testing.T) {
	repos := NewRepositories()
	seedUser(t, repos, "u1", "alice", "alice@x.com")
	ctx := context.Background()

	slot := domain.SecurityToken{
		UserID:    "u1",
		Purpose:   domain.TokenPurposeVerification,
		TokenHash: "digest",
		CodeHash:  "code-digest",
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := repos.Tokens.Store(ctx, slot); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}

	for i := 1; i <= 3; i++ {
		token, err := repos.Tokens.ChargeCodeAttempt(ctx, "u1", domain.TokenPurposeVerification, 3)
		if err != nil {
			t.Fatalf("charge %d: %v", i, err)
		}
		if token.CodeAttempts != i {
			t.Fatalf("charge %d: expected count %d, got %d", i, i, token.CodeAttempts)
		}
	}
	if _, err := repos.Tokens.ChargeCodeAttempt(ctx, "u1", domain.TokenPurposeVerification, 3); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after limit, got %v", err)
	}

	if err := repos.Tokens.Store(ctx, slot); err != nil {
		t.Fatalf("Store returned error: %v", err)
	}
	if _, err := repos.Tokens.ChargeCodeAttempt(ctx, "u1", domain.TokenPurposeVerification, 3); err != nil {
		t.Fatalf("expected reissue to reset the count, got %v", err)
	}
	if _, err := repos.Tokens.ChargeCodeAttempt(ctx, "u1", domain.TokenPurposeReset, 3); !errors.Is(err, repository.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for an empty slot, got %v", err)
	}
}
