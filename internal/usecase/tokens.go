package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/security"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/telemetry"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

const verificationCodeDigits = 6

// IssuedToken is the raw credential handed to the notifier. It is never persisted.
type IssuedToken struct {
	UserID    string
	Purpose   domain.TokenPurpose
	Token     string
	Code      string
	ExpiresAt time.Time
}

// TokenService issues and verifies single-use tokens.
type TokenService struct {
	tokens       port.TokenRepository
	ttls         map[domain.TokenPurpose]time.Duration
	codeAttempts int
	storeTimeout time.Duration
	metrics      *telemetry.Metrics
	logger       *zap.Logger
	now          func() time.Time
}

// NewTokenService constructs a TokenService.
func NewTokenService(tokens port.TokenRepository, cfg *config.AppConfig, metrics *telemetry.Metrics, logger *zap.Logger) *TokenService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TokenService{
		tokens: tokens,
		ttls: map[domain.TokenPurpose]time.Duration{
			domain.TokenPurposeVerification: cfg.Security.VerificationTokenTTL,
			domain.TokenPurposeReset:        cfg.Security.ResetTokenTTL,
		},
		codeAttempts: cfg.Security.MaxCodeAttempts,
		storeTimeout: cfg.Store.Timeout,
		metrics:      metrics,
		logger:       logger,
		now:          time.Now,
	}
}

// WithClock overrides the time source.
func (s *TokenService) WithClock(now func() time.Time) *TokenService {
	if now != nil {
		s.now = now
	}
	return s
}

// Issue generates a token for the purpose and overwrites the user's slot, which
// invalidates any earlier token of the same purpose. Verification tokens also
// carry a numeric code. The write is detached from ctx cancellation.
func (s *TokenService) Issue(ctx context.Context, userID string, purpose domain.TokenPurpose) (*IssuedToken, error) {
	ttl, ok := s.ttls[purpose]
	if !ok {
		return nil, fmt.Errorf("issue token: unknown purpose %q", purpose)
	}

	raw, err := security.GenerateSecureToken(security.SecretBytes)
	if err != nil {
		return nil, fmt.Errorf("generate token: %w", err)
	}

	issued := &IssuedToken{
		UserID:    userID,
		Purpose:   purpose,
		Token:     raw,
		ExpiresAt: s.now().UTC().Add(ttl),
	}

	record := domain.SecurityToken{
		UserID:    userID,
		Purpose:   purpose,
		TokenHash: security.HashToken(raw),
		ExpiresAt: issued.ExpiresAt,
	}

	if purpose == domain.TokenPurposeVerification {
		code, err := security.GenerateNumericCode(verificationCodeDigits)
		if err != nil {
			return nil, fmt.Errorf("generate code: %w", err)
		}
		issued.Code = code
		record.CodeHash = security.HashToken(code)
	}

	storeCtx, cancel := boundedContext(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	if err := s.tokens.Store(storeCtx, record); err != nil {
		return nil, storageFailure("store token", err)
	}

	s.metrics.ObserveTokenIssued(string(purpose))
	s.logger.Debug("token issued",
		zap.String("user_id", userID),
		zap.String("purpose", string(purpose)),
		zap.String("fingerprint", security.Fingerprint(record.TokenHash)),
	)

	return issued, nil
}

// Verify compares the candidate against every occupied slot of the purpose in
// constant time per slot, without stopping at the first match.
func (s *TokenService) Verify(ctx context.Context, candidate string, purpose domain.TokenPurpose) (*domain.SecurityToken, error) {
	if candidate == "" {
		return nil, ErrTokenNotFound
	}

	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	slots, err := s.tokens.ListByPurpose(storeCtx, purpose)
	if err != nil {
		return nil, storageFailure("list tokens", err)
	}

	digest := security.HashToken(candidate)
	var match *domain.SecurityToken
	for i := range slots {
		if security.Equal(digest, slots[i].TokenHash) && match == nil {
			match = &slots[i]
		}
	}

	return s.checkMatch(match)
}

// VerifyCode checks a numeric code against one user's slot. Every guess is
// charged against the slot before comparing; once the slot has used its
// guesses the code is refused and only the link token can complete the flow.
func (s *TokenService) VerifyCode(ctx context.Context, userID, code string, purpose domain.TokenPurpose) (*domain.SecurityToken, error) {
	if code == "" {
		return nil, ErrTokenNotFound
	}

	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	slot, err := s.tokens.ChargeCodeAttempt(storeCtx, userID, purpose, s.codeAttempts)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, storageFailure("charge code attempt", err)
	}

	if !security.Equal(security.HashToken(code), slot.CodeHash) {
		if slot.CodeAttempts >= s.codeAttempts {
			s.logger.Warn("verification code disabled after repeated misses",
				zap.String("user_id", userID),
				zap.Int("attempts", slot.CodeAttempts),
			)
		}
		return nil, ErrTokenNotFound
	}

	return s.checkMatch(slot)
}

func (s *TokenService) checkMatch(match *domain.SecurityToken) (*domain.SecurityToken, error) {
	if match == nil {
		return nil, ErrTokenNotFound
	}
	if match.ExpiredAt(s.now()) {
		return nil, ErrTokenExpired
	}
	return match, nil
}
