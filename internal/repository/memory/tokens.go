package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

// TokenRepository implements port.TokenRepository in memory.
type TokenRepository struct {
	st *state
}

// Store replaces the user's slot for the purpose.
func (r *TokenRepository) Store(_ context.Context, token domain.SecurityToken) error {
	if !token.Purpose.Valid() {
		return fmt.Errorf("memory: unknown token purpose %q", token.Purpose)
	}

	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	rec, ok := r.st.users[token.UserID]
	if !ok {
		return repository.ErrNotFound
	}
	token.CodeAttempts = 0
	rec.tokens[token.Purpose] = token
	return nil
}

// ListByPurpose returns every occupied slot of the purpose.
func (r *TokenRepository) ListByPurpose(_ context.Context, purpose domain.TokenPurpose) ([]domain.SecurityToken, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	tokens := make([]domain.SecurityToken, 0)
	for _, rec := range r.st.users {
		if token, ok := rec.tokens[purpose]; ok {
			tokens = append(tokens, token)
		}
	}
	return tokens, nil
}

// Get returns the user's slot for the purpose.
func (r *TokenRepository) Get(_ context.Context, userID string, purpose domain.TokenPurpose) (*domain.SecurityToken, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()

	rec, ok := r.st.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	token, ok := rec.tokens[purpose]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &token, nil
}

// ChargeCodeAttempt counts a code guess unless the slot is out of guesses.
func (r *TokenRepository) ChargeCodeAttempt(_ context.Context, userID string, purpose domain.TokenPurpose, maxAttempts int) (*domain.SecurityToken, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	rec, ok := r.st.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	token, ok := rec.tokens[purpose]
	if !ok || token.CodeHash == "" || token.CodeAttempts >= maxAttempts {
		return nil, repository.ErrNotFound
	}
	token.CodeAttempts++
	rec.tokens[purpose] = token
	return &token, nil
}

// CredentialRepository implements port.CredentialStore in memory.
type CredentialRepository struct {
	st *state
}

// CompleteVerification activates the user if the verification slot still holds tokenHash.
func (r *CredentialRepository) CompleteVerification(_ context.Context, userID, tokenHash string, at time.Time) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	rec, err := r.st.consumeLocked(userID, domain.TokenPurposeVerification, tokenHash)
	if err != nil {
		return err
	}
	rec.user.IsActive = true
	rec.user.UpdatedAt = at
	return nil
}

// CompletePasswordReset swaps the password and drops all sessions under one lock.
func (r *CredentialRepository) CompletePasswordReset(_ context.Context, userID, tokenHash, passwordHash string, at time.Time) (int, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()

	rec, err := r.st.consumeLocked(userID, domain.TokenPurposeReset, tokenHash)
	if err != nil {
		return 0, err
	}
	rec.user.PasswordHash = passwordHash
	rec.user.FailedLoginAttempts = 0
	rec.user.LockedUntil = nil
	rec.user.UpdatedAt = at

	return r.st.deleteSessionsLocked(userID), nil
}

func (s *state) consumeLocked(userID string, purpose domain.TokenPurpose, tokenHash string) (*userRecord, error) {
	rec, ok := s.users[userID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	token, ok := rec.tokens[purpose]
	if !ok || token.TokenHash != tokenHash {
		return nil, repository.ErrNotFound
	}
	delete(rec.tokens, purpose)
	return rec, nil
}

var (
	_ port.TokenRepository = (*TokenRepository)(nil)
	_ port.CredentialStore = (*CredentialRepository)(nil)
)
