package domain

import "time"

// Session represents an authenticated browser session. ID holds the SHA-256
// digest of the secret handed to the client, never the secret itself.
type Session struct {
	ID           string
	UserID       string
	ExpiresAt    time.Time
	LastActivity time.Time
	CreatedAt    time.Time
	UserAgent    *string
	IPAddress    *string
}

// ExpiredAt reports whether the absolute deadline has been reached.
func (s Session) ExpiredAt(at time.Time) bool {
	return !at.Before(s.ExpiresAt)
}

// IdleAt reports whether the session has been inactive for at least idleTimeout.
func (s Session) IdleAt(at time.Time, idleTimeout time.Duration) bool {
	if idleTimeout <= 0 {
		return false
	}
	return at.Sub(s.LastActivity) >= idleTimeout
}

// BindingDiffers compares the recorded network origin with the presented one.
// User agent drift alone is ignored; browsers update constantly.
func (s Session) BindingDiffers(client *ClientInfo) bool {
	if client == nil || s.IPAddress == nil || *s.IPAddress == "" || client.IPAddress == "" {
		return false
	}
	return *s.IPAddress != client.IPAddress
}
