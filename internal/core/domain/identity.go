package domain

import (
	"regexp"
	"strings"
	"time"
)

// UserRole enumerates the coarse account roles carried on the user record.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User mirrors the persisted representation in the users table.
type User struct {
	ID                  string
	Username            string
	Email               string
	PasswordHash        string
	Role                UserRole
	IsActive            bool
	FailedLoginAttempts int
	LastFailedLogin     *time.Time
	LockedUntil         *time.Time
	SelectedAIModel     *string
	CreatedAt           time.Time
	UpdatedAt           time.Time
	LastLogin           *time.Time
}

// Lockout returns the lockout view over the user's counters.
func (u User) Lockout() LockoutState {
	return LockoutState{
		FailedAttempts: u.FailedLoginAttempts,
		LastFailed:     u.LastFailedLogin,
		LockedUntil:    u.LockedUntil,
	}
}

// LockoutState is the derived brute-force view over a user record.
type LockoutState struct {
	FailedAttempts int
	LastFailed     *time.Time
	LockedUntil    *time.Time
}

// LockedAt reports whether the lock is still in force at the given instant.
// A lapsed lock is treated as not locked even though LockedUntil stays set.
func (s LockoutState) LockedAt(at time.Time) bool {
	return s.LockedUntil != nil && at.Before(*s.LockedUntil)
}

// PasswordContext carries user attributes that a strong password must not resemble.
type PasswordContext struct {
	Username string
	Email    string
}

// ClientInfo captures request metadata used for session binding and auditing.
type ClientInfo struct {
	IPAddress string
	UserAgent string
}

// emailPattern is deliberately loose: something@something.tld without whitespace.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// LooksLikeEmail classifies a login identifier. Usernames never contain '@',
// so a positive match selects the email lookup branch.
func LooksLikeEmail(identifier string) bool {
	return emailPattern.MatchString(strings.TrimSpace(identifier))
}

// NormalizeEmail canonicalises an email address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
