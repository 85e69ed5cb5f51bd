// Package memory provides in-process implementations of the storage ports for
// single-instance deployments and tests.
package memory

import (
	"sync"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
)

// state is shared by every repository returned from NewRepositories so that
// credential transitions can update users and sessions under one lock.
type state struct {
	mu       sync.RWMutex
	users    map[string]*userRecord
	sessions map[string]domain.Session
}

type userRecord struct {
	user   domain.User
	tokens map[domain.TokenPurpose]domain.SecurityToken
}

// Repositories groups the in-memory repository implementations.
type Repositories struct {
	Users       *UserRepository
	Sessions    *SessionRepository
	Tokens      *TokenRepository
	Credentials *CredentialRepository
}

// NewRepositories returns repositories sharing one in-memory dataset.
func NewRepositories() *Repositories {
	st := &state{
		users:    make(map[string]*userRecord),
		sessions: make(map[string]domain.Session),
	}
	return &Repositories{
		Users:       &UserRepository{st: st},
		Sessions:    &SessionRepository{st: st},
		Tokens:      &TokenRepository{st: st},
		Credentials: &CredentialRepository{st: st},
	}
}
