package port

import (
	"context"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
)

// TokenRepository manages the per-user single-use token slots.
type TokenRepository interface {
	// Store replaces the slot for token.UserID and token.Purpose, invalidating any
	// previous token and resetting its code attempt count.
	Store(ctx context.Context, token domain.SecurityToken) error
	// ListByPurpose returns every occupied slot of the purpose, expired ones included.
	ListByPurpose(ctx context.Context, purpose domain.TokenPurpose) ([]domain.SecurityToken, error)
	Get(ctx context.Context, userID string, purpose domain.TokenPurpose) (*domain.SecurityToken, error)
	// ChargeCodeAttempt atomically counts one code guess against the user's
	// slot and returns it. repository.ErrNotFound means the slot is empty, has
	// no code, or has already used maxAttempts guesses.
	ChargeCodeAttempt(ctx context.Context, userID string, purpose domain.TokenPurpose, maxAttempts int) (*domain.SecurityToken, error)
}
