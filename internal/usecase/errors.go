package usecase

import (
	"errors"
	"fmt"
	"time"
)

var (
	// ErrInvalidCredentials indicates the identifier or password is wrong. It never
	// distinguishes an unknown account from a wrong password.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked indicates the account is temporarily locked after repeated failures.
	ErrAccountLocked = errors.New("account temporarily locked")
	// ErrAccountInactive indicates the account exists but is not active.
	ErrAccountInactive = errors.New("account is not active")
	// ErrTokenNotFound indicates no live token matched the candidate.
	ErrTokenNotFound = errors.New("token not found")
	// ErrTokenExpired indicates the matching token is past its deadline.
	ErrTokenExpired = errors.New("token expired")
	// ErrSessionNotFound indicates the session does not exist.
	ErrSessionNotFound = errors.New("session not found")
	// ErrSessionExpired indicates the session reached its absolute deadline.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionIdle indicates the session exceeded the idle timeout.
	ErrSessionIdle = errors.New("session idle timeout")
	// ErrSessionOwnerInactive indicates the owning user was deactivated or removed.
	ErrSessionOwnerInactive = errors.New("session owner inactive")
	// ErrRateLimited indicates the request was absorbed by a silent limiter. It is
	// never surfaced to clients.
	ErrRateLimited = errors.New("rate limited")
	// ErrStorageUnavailable indicates the backing store failed or timed out.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrPasswordMismatch indicates the password confirmation differs.
	ErrPasswordMismatch = errors.New("password confirmation does not match")
	// ErrUsernameTaken indicates the username is already registered.
	ErrUsernameTaken = errors.New("username already taken")
	// ErrEmailTaken indicates the email is already registered.
	ErrEmailTaken = errors.New("email already registered")
	// ErrInvalidInput indicates malformed request data.
	ErrInvalidInput = errors.New("invalid input")
)

// AccountLockedError carries the lock deadline. It matches ErrAccountLocked.
type AccountLockedError struct {
	Until time.Time
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account temporarily locked until %s", e.Until.UTC().Format(time.RFC3339))
}

// Is allows errors.Is(err, ErrAccountLocked).
func (e *AccountLockedError) Is(target error) bool {
	return target == ErrAccountLocked
}

// RetryAfter returns the remaining lock duration relative to now, never negative.
func (e *AccountLockedError) RetryAfter(now time.Time) time.Duration {
	if d := e.Until.Sub(now); d > 0 {
		return d
	}
	return 0
}

// InputError describes which field failed validation. It matches ErrInvalidInput.
type InputError struct {
	Field  string
	Reason string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Is allows errors.Is(err, ErrInvalidInput).
func (e *InputError) Is(target error) bool {
	return target == ErrInvalidInput
}

func storageFailure(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorageUnavailable, op, err)
}
