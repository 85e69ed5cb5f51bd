package memory

import (
	"context"
	"strings"
	"time"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

// UserRepository implements port.UserRepository and port.LockoutStore in memory.
type UserRepository struct {
	st *state
}

// Create stores a new user, enforcing username and email uniqueness.
func (r *UserRepository) Create(_ context.Context, user domain.User) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	user.Email = domain.NormalizeEmail(user.Email)
	for _, rec := range r.st.users {
		if strings.EqualFold(rec.user.Username, user.Username) {
			return &repository.ConflictError{Field: "username"}
		}
		if rec.user.Email == user.Email {
			return &repository.ConflictError{Field: "email"}
		}
	}
	if _, exists := r.st.users[user.ID]; exists {
		return &repository.ConflictError{Field: "id"}
	}

	r.st.users[user.ID] = &userRecord{
		user:   user,
		tokens: make(map[domain.TokenPurpose]domain.SecurityToken),
	}
	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	rec, ok := r.st.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	user := rec.user
	return &user, nil
}

// GetByUsername retrieves a user by username, ignoring case.
func (r *UserRepository) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	return r.find(func(u domain.User) bool { return strings.EqualFold(u.Username, username) })
}

// GetByEmail retrieves a user by normalised email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	email = domain.NormalizeEmail(email)
	return r.find(func(u domain.User) bool { return u.Email == email })
}

func (r *UserRepository) find(match func(domain.User) bool) (*domain.User, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	for _, rec := range r.st.users {
		if match(rec.user) {
			user := rec.user
			return &user, nil
		}
	}
	return nil, repository.ErrNotFound
}

// SetActive toggles the active flag. Deactivation is an administrative action
// outside the HTTP surface; tests and tooling use it directly.
func (r *UserRepository) SetActive(_ context.Context, userID string, active bool) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	rec, ok := r.st.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	rec.user.IsActive = active
	return nil
}

// ReserveAttempt charges an attempt unless a lock is in force.
func (r *UserRepository) ReserveAttempt(_ context.Context, userID string, at time.Time, maxAttempts int, lockUntil time.Time) (domain.LockoutState, bool, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	rec, ok := r.st.users[userID]
	if !ok {
		return domain.LockoutState{}, false, repository.ErrNotFound
	}
	if rec.user.Lockout().LockedAt(at) {
		return rec.user.Lockout(), false, nil
	}

	rec.user.FailedLoginAttempts++
	if rec.user.FailedLoginAttempts >= maxAttempts {
		until := lockUntil
		rec.user.LockedUntil = &until
	}
	rec.user.UpdatedAt = at

	return rec.user.Lockout(), true, nil
}

// RecordFailure stamps the last failed login.
func (r *UserRepository) RecordFailure(_ context.Context, userID string, at time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	rec, ok := r.st.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	failedAt := at
	rec.user.LastFailedLogin = &failedAt
	rec.user.UpdatedAt = at
	return nil
}

// RecordSuccess clears lockout counters and stamps the last login.
func (r *UserRepository) RecordSuccess(_ context.Context, userID string, at time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	rec, ok := r.st.users[userID]
	if !ok {
		return repository.ErrNotFound
	}

	loginAt := at
	rec.user.FailedLoginAttempts = 0
	rec.user.LockedUntil = nil
	rec.user.LastLogin = &loginAt
	rec.user.UpdatedAt = at
	return nil
}

var (
	_ port.UserRepository = (*UserRepository)(nil)
	_ port.LockoutStore   = (*UserRepository)(nil)
)
