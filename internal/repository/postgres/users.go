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

var userColumns = []string{
	"id",
	"username",
	"email",
	"password_hash",
	"role",
	"is_active",
	"failed_login_attempts",
	"last_failed_login",
	"locked_until",
	"selected_ai_model",
	"created_at",
	"updated_at",
	"last_login",
}

// UserRepository implements port.UserRepository and port.LockoutStore using PostgreSQL.
type UserRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewUserRepository wires a PostgreSQL-backed user repository.
func NewUserRepository(exec pgExecutor) *UserRepository {
	return &UserRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *UserRepository) WithTx(tx pgx.Tx) *UserRepository {
	if tx == nil {
		return r
	}
	return &UserRepository{exec: tx, builder: r.builder}
}

// Create inserts a new user row.
func (r *UserRepository) Create(ctx context.Context, user domain.User) error {
	stmt, args, err := r.builder.Insert(usersTable).
		Columns(
			"id",
			"username",
			"email",
			"password_hash",
			"role",
			"is_active",
			"failed_login_attempts",
			"selected_ai_model",
			"created_at",
			"updated_at",
		).
		Values(
			user.ID,
			user.Username,
			user.Email,
			user.PasswordHash,
			string(user.Role),
			user.IsActive,
			user.FailedLoginAttempts,
			user.SelectedAIModel,
			user.CreatedAt,
			user.UpdatedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("build insert user sql: %w", err)
	}

	if _, err := r.exec.Exec(ctx, stmt, args...); err != nil {
		if conflict := translateUniqueViolation(err); conflict != err {
			return conflict
		}
		return fmt.Errorf("insert user: %w", err)
	}

	return nil
}

// GetByID retrieves a user by identifier.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"id": id})
}

// GetByUsername retrieves a user by username, ignoring case. The lookup uses
// the unique index on lower(username).
func (r *UserRepository) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Expr("lower(username) = lower(?)", username))
}

// GetByEmail retrieves a user by normalised email address.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	return r.getOne(ctx, squirrel.Eq{"email": domain.NormalizeEmail(email)})
}

func (r *UserRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*domain.User, error) {
	stmt, args, err := r.builder.
		Select(userColumns...).
		From(usersTable).
		Where(where).
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build select user sql: %w", err)
	}

	user, err := scanUser(r.exec.QueryRow(ctx, stmt, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}

	return user, nil
}

// ReserveAttempt increments the failed-attempt counter in a single statement
// guarded by the lock window, setting locked_until once the new count reaches
// maxAttempts. Concurrent reservations serialise on the row lock and each sees
// the count left by the previous one. When no row is updated the user is
// either missing or locked; a follow-up read tells them apart.
func (r *UserRepository) ReserveAttempt(ctx context.Context, userID string, at time.Time, maxAttempts int, lockUntil time.Time) (domain.LockoutState, bool, error) {
	stmt, args, err := r.builder.Update(usersTable).
		Set("failed_login_attempts", squirrel.Expr("failed_login_attempts + 1")).
		Set("locked_until", squirrel.Expr("CASE WHEN failed_login_attempts + 1 >= ? THEN ?::timestamptz ELSE locked_until END", maxAttempts, lockUntil)).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": userID}).
		Where(squirrel.Or{
			squirrel.Eq{"locked_until": nil},
			squirrel.LtOrEq{"locked_until": at},
		}).
		Suffix("RETURNING failed_login_attempts, last_failed_login, locked_until").
		ToSql()
	if err != nil {
		return domain.LockoutState{}, false, fmt.Errorf("build reserve attempt sql: %w", err)
	}

	var state domain.LockoutState
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(&state.FailedAttempts, &state.LastFailed, &state.LockedUntil)
	if err == nil {
		return state, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.LockoutState{}, false, fmt.Errorf("reserve login attempt: %w", err)
	}

	user, err := r.GetByID(ctx, userID)
	if err != nil {
		return domain.LockoutState{}, false, err
	}
	return user.Lockout(), false, nil
}

// RecordFailure stamps the last failed login of a reserved attempt.
func (r *UserRepository) RecordFailure(ctx context.Context, userID string, at time.Time) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("last_failed_login", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record failure sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record login failure: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// RecordSuccess clears lockout counters and stamps the last login.
func (r *UserRepository) RecordSuccess(ctx context.Context, userID string, at time.Time) error {
	stmt, args, err := r.builder.Update(usersTable).
		Set("failed_login_attempts", 0).
		Set("locked_until", nil).
		Set("last_login", at).
		Set("updated_at", at).
		Where(squirrel.Eq{"id": userID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build record success sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("record login success: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

func scanUser(row pgx.Row) (*domain.User, error) {
	var (
		user domain.User
		role string
	)

	if err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.IsActive,
		&user.FailedLoginAttempts,
		&user.LastFailedLogin,
		&user.LockedUntil,
		&user.SelectedAIModel,
		&user.CreatedAt,
		&user.UpdatedAt,
		&user.LastLogin,
	); err != nil {
		return nil, err
	}

	user.Role = domain.UserRole(role)
	return &user, nil
}

var (
	_ port.UserRepository = (*UserRepository)(nil)
	_ port.LockoutStore   = (*UserRepository)(nil)
)
