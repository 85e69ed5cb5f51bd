package port

import (
	"context"
	"time"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
)

// SessionRepository deals with session storage. Session ids are digests.
type SessionRepository interface {
	Create(ctx context.Context, session domain.Session) error
	GetByID(ctx context.Context, sessionID string) (*domain.Session, error)
	// Touch refreshes last activity. Touching a missing session is a no-op.
	Touch(ctx context.Context, sessionID string, at time.Time) error
	Delete(ctx context.Context, sessionID string) error
	DeleteAllForUser(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string) ([]domain.Session, error)
	// DeleteExpired removes sessions past their absolute deadline or idle for at least idleTimeout.
	DeleteExpired(ctx context.Context, at time.Time, idleTimeout time.Duration) (int, error)
}
