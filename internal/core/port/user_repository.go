package port

import (
	"context"
	"time"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
)

// UserRepository exposes persistence behavior for users.
type UserRepository interface {
	Create(ctx context.Context, user domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByUsername(ctx context.Context, username string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// LockoutStore persists the failed-attempt counters that live on the user record.
type LockoutStore interface {
	// ReserveAttempt charges one attempt against the counter before the
	// password is checked, setting lockUntil once the new count reaches
	// maxAttempts. The check and the increment are one atomic step. While a
	// lock is in force nothing changes and reserved is false.
	ReserveAttempt(ctx context.Context, userID string, at time.Time, maxAttempts int, lockUntil time.Time) (state domain.LockoutState, reserved bool, err error)
	// RecordFailure stamps the time of a failed password on a reserved attempt.
	RecordFailure(ctx context.Context, userID string, at time.Time) error
	// RecordSuccess clears the counter and any lock, including one set by the
	// successful attempt's own reservation.
	RecordSuccess(ctx context.Context, userID string, at time.Time) error
}

// CredentialStore commits credential transitions that must be atomic with
// respect to token consumption and session state.
type CredentialStore interface {
	// CompleteVerification clears the verification slot if it still holds
	// tokenHash and activates the user. repository.ErrNotFound signals a
	// superseded or already consumed token.
	CompleteVerification(ctx context.Context, userID, tokenHash string, at time.Time) error
	// CompletePasswordReset clears the reset slot if it still holds tokenHash,
	// stores the new password hash, resets lockout counters, and deletes every
	// session of the user in one unit. It returns the number of sessions removed.
	CompletePasswordReset(ctx context.Context, userID, tokenHash, passwordHash string, at time.Time) (int, error)
}
