package domain

import "time"

// TokenPurpose identifies the single-use token slot on a user.
type TokenPurpose string

const (
	TokenPurposeVerification TokenPurpose = "verification"
	TokenPurposeReset        TokenPurpose = "reset"
)

// Valid reports whether the purpose is one of the known slots.
func (p TokenPurpose) Valid() bool {
	return p == TokenPurposeVerification || p == TokenPurposeReset
}

// SecurityToken is the stored form of a single-use token. Hash fields hold
// SHA-256 hex digests; CodeHash is only populated for verification tokens.
// CodeAttempts counts code guesses charged against the slot since it was issued.
type SecurityToken struct {
	UserID       string
	Purpose      TokenPurpose
	TokenHash    string
	CodeHash     string
	CodeAttempts int
	ExpiresAt    time.Time
}

// ExpiredAt reports whether the token is past its deadline.
func (t SecurityToken) ExpiredAt(at time.Time) bool {
	return t.ExpiresAt.Before(at)
}

// RateLimitEntry is the fixed-window counter state for one key.
type RateLimitEntry struct {
	Count       int
	WindowStart time.Time
}
