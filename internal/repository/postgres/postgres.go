package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

const (
	usersTable    = "auth.users"
	sessionsTable = "auth.sessions"
)

// pgExecutor is satisfied by *pgxpool.Pool, pgx.Tx, and pgxmock pools.
type pgExecutor interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// pgPool is a pgExecutor that can also open transactions.
type pgPool interface {
	pgExecutor
	Begin(ctx context.Context) (pgx.Tx, error)
}

// withTx runs fn inside a transaction, committing on success and rolling back otherwise.
func withTx(ctx context.Context, pool pgPool, fn func(tx pgx.Tx) error) (err error) {
	tx, err := pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
			return
		}
		if cerr := tx.Commit(ctx); cerr != nil {
			err = fmt.Errorf("commit tx: %w", cerr)
		}
	}()

	return fn(tx)
}

// translateUniqueViolation converts unique constraint failures into repository.ConflictError.
func translateUniqueViolation(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != pgerrcode.UniqueViolation {
		return err
	}

	field := "unknown"
	switch pgErr.ConstraintName {
	case "users_username_key":
		field = "username"
	case "users_email_key":
		field = "email"
	}
	return &repository.ConflictError{Field: field}
}
