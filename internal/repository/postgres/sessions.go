package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

var sessionColumns = []string{
	"id",
	"user_id",
	"expires_at",
	"last_activity",
	"created_at",
	"user_agent",
	"ip_address",
}

// SessionRepository implements port.SessionRepository for PostgreSQL.
type SessionRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewSessionRepository constructs a SessionRepository.
func NewSessionRepository(exec pgExecutor) *SessionRepository {
	return &SessionRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *SessionRepository) WithTx(tx pgx.Tx) *SessionRepository {
	if tx == nil {
		return r
	}
	return &SessionRepository{exec: tx, builder: r.builder}
}

// Create inserts a session record.
func (r *SessionRepository) Create(ctx context.Context, session domain.Session) error {
	stmt, args, err := r.builder.Insert(sessionsTable).
		Columns(sessionColumns...).
		Values(
			session.ID,
			session.UserID,
			session.ExpiresAt,
			session.LastActivity,
			session.CreatedAt,
			session.UserAgent,
			session.IPAddress,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}

	return nil
}

// GetByID fetches a session by its digest.
func (r *SessionRepository) GetByID(ctx context.Context, sessionID string) (*domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select session sql: %w", err)
	}

	session, err := scanSession(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan session: %w", err)
	}

	return session, nil
}

// Touch moves last_activity forward. GREATEST keeps a delayed refresh from
// rewinding a newer one; a deleted session simply matches no rows.
func (r *SessionRepository) Touch(ctx context.Context, sessionID string, at time.Time) error {
	stmt, args, err := r.builder.Update(sessionsTable).
		Set("last_activity", squirrel.Expr("GREATEST(last_activity, ?::timestamptz)", at)).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build touch session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("touch session: %w", err)
	}

	return nil
}

// Delete removes a single session. Deleting a missing session is not an error.
func (r *SessionRepository) Delete(ctx context.Context, sessionID string) error {
	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(squirrel.Eq{"id": sessionID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build delete session sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}

	return nil
}

// DeleteAllForUser removes every session owned by the user.
func (r *SessionRepository) DeleteAllForUser(ctx context.Context, userID string) (int, error) {
	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(squirrel.Eq{"user_id": userID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build delete user sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("delete user sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

// ListByUser returns the user's sessions, newest first.
func (r *SessionRepository) ListByUser(ctx context.Context, userID string) ([]domain.Session, error) {
	stmt, args, err := r.builder.
		Select(sessionColumns...).
		From(sessionsTable).
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list sessions sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query sessions: %w", err)
	}
	defer rows.Close()

	sessions := make([]domain.Session, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, *session)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sessions: %w", err)
	}

	return sessions, nil
}

// DeleteExpired removes sessions past their absolute deadline or idle for at least idleTimeout.
func (r *SessionRepository) DeleteExpired(ctx context.Context, at time.Time, idleTimeout time.Duration) (int, error) {
	condition := squirrel.Or{squirrel.LtOrEq{"expires_at": at}}
	if idleTimeout > 0 {
		condition = append(condition, squirrel.LtOrEq{"last_activity": at.Add(-idleTimeout)})
	}

	stmt, args, err := r.builder.Delete(sessionsTable).
		Where(condition).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("build purge sessions sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("purge sessions: %w", err)
	}

	return int(tag.RowsAffected()), nil
}

func scanSession(row pgx.Row) (*domain.Session, error) {
	var session domain.Session
	if err := row.Scan(
		&session.ID,
		&session.UserID,
		&session.ExpiresAt,
		&session.LastActivity,
		&session.CreatedAt,
		&session.UserAgent,
		&session.IPAddress,
	); err != nil {
		return nil, err
	}
	return &session, nil
}

var _ port.SessionRepository = (*SessionRepository)(nil)
