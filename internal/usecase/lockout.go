package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

// LockoutGuard enforces the per-user failed-attempt lock.
//
// A lapsed lock is not cleared until the next successful login, so the counter
// keeps its value: one more failure after expiry re-locks immediately.
type LockoutGuard struct {
	store        port.LockoutStore
	maxAttempts  int
	lockDuration time.Duration
	storeTimeout time.Duration
	now          func() time.Time
}

// NewLockoutGuard constructs a LockoutGuard from the security policy.
func NewLockoutGuard(store port.LockoutStore, cfg *config.AppConfig) *LockoutGuard {
	return &LockoutGuard{
		store:        store,
		maxAttempts:  cfg.Security.MaxLoginAttempts,
		lockDuration: cfg.Security.LockoutDuration,
		storeTimeout: cfg.Store.Timeout,
		now:          time.Now,
	}
}

// WithClock overrides the time source.
func (g *LockoutGuard) WithClock(now func() time.Time) *LockoutGuard {
	if now != nil {
		g.now = now
	}
	return g
}

// CheckLocked fails with *AccountLockedError while the lock is in force.
func (g *LockoutGuard) CheckLocked(user domain.User) error {
	state := user.Lockout()
	if state.LockedAt(g.now()) {
		return &AccountLockedError{Until: *state.LockedUntil}
	}
	return nil
}

// Attempt is a login attempt already charged against the user's counter.
type Attempt struct {
	UserID string
	State  domain.LockoutState
	at     time.Time
}

// Reserve charges one attempt before the password is checked, so no more than
// maxAttempts guesses can ever reach the hasher inside one lock window, however
// many requests race. It fails with *AccountLockedError while a lock is in force.
func (g *LockoutGuard) Reserve(ctx context.Context, user domain.User) (*Attempt, error) {
	now := g.now().UTC()

	storeCtx, cancel := boundedContext(ctx, g.storeTimeout)
	defer cancel()

	state, reserved, err := g.store.ReserveAttempt(storeCtx, user.ID, now, g.maxAttempts, now.Add(g.lockDuration))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, storageFailure("reserve login attempt", err)
	}
	if !reserved {
		until := now.Add(g.lockDuration)
		if state.LockedUntil != nil {
			until = *state.LockedUntil
		}
		return nil, &AccountLockedError{Until: until}
	}

	return &Attempt{UserID: user.ID, State: state, at: now}, nil
}

// RecordFailure settles a reserved attempt whose password did not match. It
// reports *AccountLockedError when the reservation reached the limit,
// ErrInvalidCredentials otherwise.
func (g *LockoutGuard) RecordFailure(ctx context.Context, attempt *Attempt) error {
	storeCtx, cancel := boundedContext(ctx, g.storeTimeout)
	defer cancel()

	if err := g.store.RecordFailure(storeCtx, attempt.UserID, attempt.at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidCredentials
		}
		return storageFailure("record login failure", err)
	}

	if attempt.State.FailedAttempts >= g.maxAttempts && attempt.State.LockedAt(attempt.at) {
		return &AccountLockedError{Until: *attempt.State.LockedUntil}
	}
	return ErrInvalidCredentials
}

// RecordSuccess clears the counter and any lock.
func (g *LockoutGuard) RecordSuccess(ctx context.Context, user domain.User) error {
	storeCtx, cancel := boundedContext(ctx, g.storeTimeout)
	defer cancel()

	if err := g.store.RecordSuccess(storeCtx, user.ID, g.now().UTC()); err != nil {
		return storageFailure("record login success", err)
	}
	return nil
}
