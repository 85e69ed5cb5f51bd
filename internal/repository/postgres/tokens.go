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

// ErrUnknownPurpose is returned for token purposes without a storage slot.
var ErrUnknownPurpose = errors.New("postgres: unknown token purpose")

// tokenSlot names the user columns backing one token purpose.
type tokenSlot struct {
	hash     string
	code     string
	attempts string
	expiry   string
}

func slotFor(purpose domain.TokenPurpose) (tokenSlot, error) {
	switch purpose {
	case domain.TokenPurposeVerification:
		return tokenSlot{
			hash:     "verification_token_hash",
			code:     "verification_code_hash",
			attempts: "verification_code_attempts",
			expiry:   "verification_token_expiry",
		}, nil
	case domain.TokenPurposeReset:
		return tokenSlot{
			hash:   "reset_token_hash",
			expiry: "reset_token_expiry",
		}, nil
	default:
		return tokenSlot{}, fmt.Errorf("%w: %q", ErrUnknownPurpose, purpose)
	}
}

func (s tokenSlot) selectColumns() []string {
	code := "''"
	if s.code != "" {
		code = "COALESCE(" + s.code + ", '')"
	}
	return []string{"id", s.hash, code, s.expiry}
}

// TokenRepository stores single-use token digests in the per-purpose user columns.
type TokenRepository struct {
	exec    pgExecutor
	builder squirrel.StatementBuilderType
}

// NewTokenRepository constructs a TokenRepository.
func NewTokenRepository(exec pgExecutor) *TokenRepository {
	return &TokenRepository{
		exec:    exec,
		builder: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// WithTx returns a repository instance operating within the supplied transaction.
func (r *TokenRepository) WithTx(tx pgx.Tx) *TokenRepository {
	if tx == nil {
		return r
	}
	return &TokenRepository{exec: tx, builder: r.builder}
}

// Store overwrites the slot, which invalidates any token issued earlier for the same purpose.
func (r *TokenRepository) Store(ctx context.Context, token domain.SecurityToken) error {
	slot, err := slotFor(token.Purpose)
	if err != nil {
		return err
	}

	update := r.builder.Update(usersTable).
		Set(slot.hash, token.TokenHash).
		Set(slot.expiry, token.ExpiresAt)
	if slot.code != "" {
		update = update.
			Set(slot.code, nullableString(token.CodeHash)).
			Set(slot.attempts, 0)
	}

	stmt, args, err := update.
		Set("updated_at", squirrel.Expr("NOW()")).
		Where(squirrel.Eq{"id": token.UserID}).
		ToSql()
	if err != nil {
		return fmt.Errorf("build store token sql: %w", err)
	}

	tag, err := r.exec.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("store %s token: %w", token.Purpose, err)
	}
	if tag.RowsAffected() == 0 {
		return repository.ErrNotFound
	}

	return nil
}

// ListByPurpose returns every occupied slot of the purpose.
func (r *TokenRepository) ListByPurpose(ctx context.Context, purpose domain.TokenPurpose) ([]domain.SecurityToken, error) {
	slot, err := slotFor(purpose)
	if err != nil {
		return nil, err
	}

	stmt, args, err := r.builder.
		Select(slot.selectColumns()...).
		From(usersTable).
		Where(squirrel.NotEq{slot.hash: nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list tokens sql: %w", err)
	}

	rows, err := r.exec.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("query %s tokens: %w", purpose, err)
	}
	defer rows.Close()

	tokens := make([]domain.SecurityToken, 0)
	for rows.Next() {
		token, err := scanToken(rows, purpose)
		if err != nil {
			return nil, fmt.Errorf("scan token: %w", err)
		}
		tokens = append(tokens, token)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate tokens: %w", err)
	}

	return tokens, nil
}

// Get returns the user's slot for the purpose, or repository.ErrNotFound when empty.
func (r *TokenRepository) Get(ctx context.Context, userID string, purpose domain.TokenPurpose) (*domain.SecurityToken, error) {
	slot, err := slotFor(purpose)
	if err != nil {
		return nil, err
	}

	stmt, args, err := r.builder.
		Select(slot.selectColumns()...).
		From(usersTable).
		Where(squirrel.Eq{"id": userID}).
		Where(squirrel.NotEq{slot.hash: nil}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get token sql: %w", err)
	}

	token, err := scanToken(r.exec.QueryRow(ctx, stmt, args...), purpose)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("scan token: %w", err)
	}

	return &token, nil
}

// ChargeCodeAttempt increments the slot's guess counter in one guarded
// statement, so concurrent guesses can never exceed maxAttempts between them.
func (r *TokenRepository) ChargeCodeAttempt(ctx context.Context, userID string, purpose domain.TokenPurpose, maxAttempts int) (*domain.SecurityToken, error) {
	slot, err := slotFor(purpose)
	if err != nil {
		return nil, err
	}
	if slot.code == "" {
		return nil, repository.ErrNotFound
	}

	stmt, args, err := r.builder.Update(usersTable).
		Set(slot.attempts, squirrel.Expr(slot.attempts+" + 1")).
		Where(squirrel.Eq{"id": userID}).
		Where(squirrel.NotEq{slot.hash: nil}).
		Where(squirrel.NotEq{slot.code: nil}).
		Where(squirrel.Lt{slot.attempts: maxAttempts}).
		Suffix(fmt.Sprintf("RETURNING id, %s, %s, %s, %s", slot.hash, slot.code, slot.expiry, slot.attempts)).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build charge code attempt sql: %w", err)
	}

	var (
		token     = domain.SecurityToken{Purpose: purpose}
		expiresAt *time.Time
	)
	err = r.exec.QueryRow(ctx, stmt, args...).Scan(&token.UserID, &token.TokenHash, &token.CodeHash, &expiresAt, &token.CodeAttempts)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("charge code attempt: %w", err)
	}
	if expiresAt != nil {
		token.ExpiresAt = *expiresAt
	}

	return &token, nil
}

func scanToken(row pgx.Row, purpose domain.TokenPurpose) (domain.SecurityToken, error) {
	var (
		token     domain.SecurityToken
		expiresAt *time.Time
	)
	if err := row.Scan(&token.UserID, &token.TokenHash, &token.CodeHash, &expiresAt); err != nil {
		return domain.SecurityToken{}, err
	}
	token.Purpose = purpose
	if expiresAt != nil {
		token.ExpiresAt = *expiresAt
	}
	return token, nil
}

func nullableString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

var _ port.TokenRepository = (*TokenRepository)(nil)
