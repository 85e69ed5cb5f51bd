package postgres

import (
	"context"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

// CredentialRepository commits token consumption together with the state it authorises.
type CredentialRepository struct {
	pool     pgPool
	sessions *SessionRepository
	builder  squirrel.StatementBuilderType
}

// NewCredentialRepository constructs a CredentialRepository.
func NewCredentialRepository(pool pgPool) *CredentialRepository {
	return &CredentialRepository{
		pool:     pool,
		sessions: NewSessionRepository(pool),
		builder:  squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// CompleteVerification activates the user and clears the verification slot,
// provided the slot still holds tokenHash.
func (r *CredentialRepository) CompleteVerification(ctx context.Context, userID, tokenHash string, at time.Time) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("is_active", true).
		Set("verification_token_hash", nil).
		Set("verification_code_hash", nil).
		Set("verification_token_expiry", nil).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": userID}).
		Where(squirrel.Eq{"verification_token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build complete verification sql: %w", err)
	}

	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("complete verification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// CompletePasswordReset swaps the password hash, consumes the reset slot,
// clears lockout counters and deletes every session of the user in one transaction.
func (r *CredentialRepository) CompletePasswordReset(ctx context.Context, userID, tokenHash, passwordHash string, at time.Time) (int, error) {
	stmt, args, err := r.builder.Update(usersTable).
		Set("password_hash", passwordHash).
		Set("reset_token_hash", nil).
		Set("reset_token_expiry", nil).
		Set("failed_login_attempts", 0).
		Set("locked_until", nil).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": userID}).
		Where(squirrel.Eq{"reset_token_hash": tokenHash}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build complete reset sql: %w", err)
	}

	var removed int
	err = withTx(ctx, r.pool, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, stmt, args...)
		if err != nil {
			return fmt.Errorf("update password: %w", err)
		}
		if tag.RowsAffected() == 0 {
			return repository.ErrNotFound
		}

		removed, err = r.sessions.WithTx(tx).DeleteAllForUser(ctx, userID)
		return err
	})
	if err != nil {
		return 0, err
	}

	return removed, nil
}

var _ port.CredentialStore = (*CredentialRepository)(nil)
