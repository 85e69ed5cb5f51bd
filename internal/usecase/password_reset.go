package usecase

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/logger"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/security"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/telemetry"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

// RateClassPasswordReset is the limiter class for forgot-password requests.
const RateClassPasswordReset = "password_reset"

// Reset request results used as metric labels.
const (
	resetResultIssued   = "issued"
	resetResultUnknown  = "unknown"
	resetResultAbsorbed = "absorbed"
	resetResultFailed   = "failed"
)

// ResetPasswordInput carries the fields of a reset confirmation.
type ResetPasswordInput struct {
	Token        string
	Password     string
	Confirmation string
	Client       *domain.ClientInfo
}

// ResetResult reports the account whose password changed and how many sessions were revoked.
type ResetResult struct {
	UserID          string
	SessionsRevoked int
}

// PasswordResetService runs the forgot-password and reset-password flows.
type PasswordResetService struct {
	users         port.UserRepository
	credentials   port.CredentialStore
	tokens        *TokenService
	hasher        port.PasswordHasher
	policy        port.PasswordPolicyValidator
	notifier      port.Notifier
	limiter       *RateLimiter
	audit         auditEmitter
	metrics       *telemetry.Metrics
	logger        *zap.Logger
	storeTimeout  time.Duration
	responseFloor time.Duration
	now           func() time.Time
}

// NewPasswordResetService constructs a PasswordResetService.
func NewPasswordResetService(
	cfg *config.AppConfig,
	users port.UserRepository,
	credentials port.CredentialStore,
	tokens *TokenService,
	hasher port.PasswordHasher,
	policy port.PasswordPolicyValidator,
	notifier port.Notifier,
	limiter *RateLimiter,
	audit port.AuditSink,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) *PasswordResetService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordResetService{
		users:         users,
		credentials:   credentials,
		tokens:        tokens,
		hasher:        hasher,
		policy:        policy,
		notifier:      notifier,
		limiter:       limiter,
		audit:         auditEmitter{sink: audit, logger: log},
		metrics:       metrics,
		logger:        log,
		storeTimeout:  cfg.Store.Timeout,
		responseFloor: cfg.Security.ResetResponseFloor,
		now:           time.Now,
	}
}

// WithClock overrides the time source used for policy decisions. The response
// floor always uses wall time.
func (s *PasswordResetService) WithClock(now func() time.Time) *PasswordResetService {
	if now != nil {
		s.now = now
	}
	return s
}

// RequestReset issues a reset token for the email when an account exists and
// the requester is within its limit. It always returns nil after at least the
// configured response floor, so neither the result nor the latency reveals
// whether the account exists or the request was absorbed.
func (s *PasswordResetService) RequestReset(ctx context.Context, email string, client *domain.ClientInfo) error {
	deadline := time.Now().Add(s.responseFloor)
	defer waitUntil(ctx, deadline)

	email = domain.NormalizeEmail(email)
	ip, ua := clientFields(client)
	masked := logger.MaskEmail(email)

	key := ip
	if key == "" {
		key = email
	}
	if !s.limiter.Allow(ctx, key) {
		s.metrics.ObserveResetRequest(resetResultAbsorbed)
		s.audit.emit(ctx, domain.AuditEvent{
			Type:       domain.AuditRequestThrottled,
			Identifier: masked,
			IPAddress:  ip,
			UserAgent:  ua,
			OccurredAt: s.now().UTC(),
			Details:    map[string]any{"class": RateClassPasswordReset},
		})
		return nil
	}

	user, err := s.lookupEmail(ctx, email)
	if err != nil {
		s.metrics.ObserveResetRequest(resetResultFailed)
		s.logger.Error("reset request lookup failed", zap.String("email", masked), zap.Error(err))
		return nil
	}

	if user == nil {
		s.burnIssue()
		s.metrics.ObserveResetRequest(resetResultUnknown)
		s.audit.emit(ctx, domain.AuditEvent{
			Type:       domain.AuditPasswordResetRequested,
			Identifier: masked,
			IPAddress:  ip,
			UserAgent:  ua,
			OccurredAt: s.now().UTC(),
			Details:    map[string]any{"account": "unknown"},
		})
		return nil
	}

	issued, err := s.tokens.Issue(ctx, user.ID, domain.TokenPurposeReset)
	if err != nil {
		s.metrics.ObserveResetRequest(resetResultFailed)
		s.logger.Error("reset token not issued", zap.String("user_id", user.ID), zap.Error(err))
		return nil
	}

	if s.notifier != nil {
		err := s.notifier.Notify(ctx, domain.Notification{
			Kind:      domain.NotificationPasswordReset,
			UserID:    user.ID,
			Username:  user.Username,
			Email:     user.Email,
			Token:     issued.Token,
			ExpiresAt: issued.ExpiresAt,
		})
		if err != nil {
			s.logger.Warn("reset email not dispatched", zap.String("user_id", user.ID), zap.Error(err))
		}
	}

	s.metrics.ObserveResetRequest(resetResultIssued)
	s.audit.emit(ctx, domain.AuditEvent{
		Type:       domain.AuditPasswordResetRequested,
		UserID:     user.ID,
		Identifier: masked,
		IPAddress:  ip,
		UserAgent:  ua,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// ResetPassword consumes a reset token, replaces the password and revokes every
// session of the account in one storage transaction.
func (s *PasswordResetService) ResetPassword(ctx context.Context, in ResetPasswordInput) (*ResetResult, error) {
	if in.Password != in.Confirmation {
		return nil, ErrPasswordMismatch
	}

	slot, err := s.tokens.Verify(ctx, in.Token, domain.TokenPurposeReset)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	user, err := s.users.GetByID(storeCtx, slot.UserID)
	cancel()
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, storageFailure("get reset user", err)
	}

	if err := s.policy.Validate(in.Password, domain.PasswordContext{Username: user.Username, Email: user.Email}); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}

	storeCtx, cancel = boundedContext(ctx, s.storeTimeout)
	defer cancel()

	revoked, err := s.credentials.CompletePasswordReset(storeCtx, user.ID, slot.TokenHash, hash, s.now().UTC())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrTokenNotFound
		}
		return nil, storageFailure("complete password reset", err)
	}

	ip, ua := clientFields(in.Client)
	s.audit.emit(ctx, domain.AuditEvent{
		Type:       domain.AuditPasswordResetCompleted,
		UserID:     user.ID,
		IPAddress:  ip,
		UserAgent:  ua,
		OccurredAt: s.now().UTC(),
		Details:    map[string]any{"sessions_revoked": revoked},
	})
	s.logger.Info("password reset completed",
		zap.String("user_id", user.ID),
		zap.Int("sessions_revoked", revoked),
	)

	return &ResetResult{UserID: user.ID, SessionsRevoked: revoked}, nil
}

func (s *PasswordResetService) lookupEmail(ctx context.Context, email string) (*domain.User, error) {
	if email == "" {
		return nil, nil
	}

	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByEmail(storeCtx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, storageFailure("get user by email", err)
	}
	return user, nil
}

// burnIssue mirrors the token generation of the known-account branch.
func (s *PasswordResetService) burnIssue() {
	raw, err := security.GenerateSecureToken(security.SecretBytes)
	if err != nil {
		return
	}
	_ = security.HashToken(raw)
}
