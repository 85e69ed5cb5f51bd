package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/config"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/logger"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/telemetry"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/repository"
)

// LoginResult is returned by a successful authentication. User carries no password hash.
type LoginResult struct {
	Session *IssuedSession
	User    domain.User
}

// AuthService turns an identifier and password into a session or a typed failure.
type AuthService struct {
	users        port.UserRepository
	hasher       port.PasswordHasher
	lockout      *LockoutGuard
	sessions     *SessionService
	audit        auditEmitter
	metrics      *telemetry.Metrics
	logger       *zap.Logger
	tracer       trace.Tracer
	storeTimeout time.Duration
	now          func() time.Time

	dummyOnce sync.Once
	dummyHash string
}

// NewAuthService constructs an AuthService.
func NewAuthService(
	cfg *config.AppConfig,
	users port.UserRepository,
	hasher port.PasswordHasher,
	lockout *LockoutGuard,
	sessions *SessionService,
	audit port.AuditSink,
	metrics *telemetry.Metrics,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		users:        users,
		hasher:       hasher,
		lockout:      lockout,
		sessions:     sessions,
		audit:        auditEmitter{sink: audit, logger: log},
		metrics:      metrics,
		logger:       log,
		tracer:       otel.Tracer(telemetry.TracerName),
		storeTimeout: cfg.Store.Timeout,
		now:          time.Now,
	}
}

// WithClock overrides the time source used for audit timestamps.
func (s *AuthService) WithClock(now func() time.Time) *AuthService {
	if now != nil {
		s.now = now
	}
	return s
}

// Authenticate resolves the identifier as a username, or as an email when it
// looks like one, and verifies the password. Unknown accounts and wrong
// passwords both yield ErrInvalidCredentials after the same hashing work.
func (s *AuthService) Authenticate(ctx context.Context, identifier, password string, client *domain.ClientInfo) (*LoginResult, error) {
	ctx, span := s.tracer.Start(ctx, "AuthService.Authenticate")
	defer span.End()

	identifier = strings.TrimSpace(identifier)
	if identifier == "" {
		return nil, &InputError{Field: "identifier", Reason: "is required"}
	}
	if password == "" {
		return nil, &InputError{Field: "password", Reason: "is required"}
	}

	ip, ua := clientFields(client)
	masked := logger.MaskIdentifier(identifier)
	span.SetAttributes(attribute.Bool("auth.identifier_is_email", domain.LooksLikeEmail(identifier)))

	fail := func(outcome string, err error) (*LoginResult, error) {
		s.metrics.ObserveLogin(outcome)
		span.SetAttributes(attribute.String("auth.outcome", outcome))
		if errors.Is(err, ErrStorageUnavailable) {
			span.RecordError(err)
			span.SetStatus(codes.Error, "storage unavailable")
		}
		return nil, err
	}

	user, err := s.resolve(ctx, identifier)
	if err != nil {
		s.logger.Error("login lookup failed", zap.String("identifier", masked), zap.Error(err))
		return fail(telemetry.OutcomeStorageFail, err)
	}

	if user == nil {
		s.burnHash(password)
		s.audit.emit(ctx, domain.AuditEvent{
			Type:       domain.AuditLoginFailed,
			Identifier: masked,
			IPAddress:  ip,
			UserAgent:  ua,
			OccurredAt: s.now().UTC(),
			Details:    map[string]any{"reason": "unknown_identifier"},
		})
		return fail(telemetry.OutcomeInvalid, ErrInvalidCredentials)
	}
	span.SetAttributes(attribute.String("auth.user_id", user.ID))

	if err := s.lockout.CheckLocked(*user); err != nil {
		s.audit.emit(ctx, domain.AuditEvent{
			Type:       domain.AuditLoginBlocked,
			UserID:     user.ID,
			Identifier: masked,
			IPAddress:  ip,
			UserAgent:  ua,
			OccurredAt: s.now().UTC(),
		})
		return fail(telemetry.OutcomeLocked, err)
	}

	if !user.IsActive {
		s.audit.emit(ctx, domain.AuditEvent{
			Type:       domain.AuditLoginInactive,
			UserID:     user.ID,
			Identifier: masked,
			IPAddress:  ip,
			UserAgent:  ua,
			OccurredAt: s.now().UTC(),
		})
		return fail(telemetry.OutcomeInactive, ErrAccountInactive)
	}

	attempt, err := s.lockout.Reserve(ctx, *user)
	if err != nil {
		var locked *AccountLockedError
		switch {
		case errors.As(err, &locked):
			s.audit.emit(ctx, domain.AuditEvent{
				Type:       domain.AuditLoginBlocked,
				UserID:     user.ID,
				Identifier: masked,
				IPAddress:  ip,
				UserAgent:  ua,
				OccurredAt: s.now().UTC(),
			})
			return fail(telemetry.OutcomeLocked, err)
		case errors.Is(err, ErrInvalidCredentials):
			s.burnHash(password)
			return fail(telemetry.OutcomeInvalid, err)
		default:
			s.logger.Error("failed to reserve login attempt", zap.String("user_id", user.ID), zap.Error(err))
			return fail(telemetry.OutcomeStorageFail, err)
		}
	}

	ok, err := s.hasher.Verify(password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", zap.String("user_id", user.ID), zap.Error(err))
		return fail(telemetry.OutcomeStorageFail, fmt.Errorf("verify password: %w", err))
	}

	if !ok {
		ferr := s.lockout.RecordFailure(ctx, attempt)

		var locked *AccountLockedError
		switch {
		case errors.As(ferr, &locked):
			s.logger.Warn("account locked after repeated failures",
				zap.String("user_id", user.ID),
				zap.Time("locked_until", locked.Until),
			)
			s.audit.emit(ctx, domain.AuditEvent{
				Type:       domain.AuditAccountLocked,
				UserID:     user.ID,
				Identifier: masked,
				IPAddress:  ip,
				UserAgent:  ua,
				OccurredAt: s.now().UTC(),
				Details:    map[string]any{"locked_until": locked.Until.UTC().Format(time.RFC3339)},
			})
			return fail(telemetry.OutcomeLockedOut, ferr)
		case errors.Is(ferr, ErrInvalidCredentials):
			s.audit.emit(ctx, domain.AuditEvent{
				Type:       domain.AuditLoginFailed,
				UserID:     user.ID,
				Identifier: masked,
				IPAddress:  ip,
				UserAgent:  ua,
				OccurredAt: s.now().UTC(),
				Details:    map[string]any{"reason": "password_mismatch"},
			})
			return fail(telemetry.OutcomeInvalid, ErrInvalidCredentials)
		default:
			s.logger.Error("failed to record login failure", zap.String("user_id", user.ID), zap.Error(ferr))
			return fail(telemetry.OutcomeStorageFail, ferr)
		}
	}

	if err := s.lockout.RecordSuccess(ctx, *user); err != nil {
		s.logger.Error("failed to record login success", zap.String("user_id", user.ID), zap.Error(err))
		return fail(telemetry.OutcomeStorageFail, err)
	}

	issued, err := s.sessions.Create(ctx, user.ID, client)
	if err != nil {
		s.logger.Error("failed to create session", zap.String("user_id", user.ID), zap.Error(err))
		return fail(telemetry.OutcomeStorageFail, err)
	}

	s.audit.emit(ctx, domain.AuditEvent{
		Type:       domain.AuditLoginSucceeded,
		UserID:     user.ID,
		Identifier: masked,
		IPAddress:  ip,
		UserAgent:  ua,
		OccurredAt: s.now().UTC(),
	})
	s.metrics.ObserveLogin(telemetry.OutcomeSuccess)
	span.SetAttributes(attribute.String("auth.outcome", telemetry.OutcomeSuccess))

	sanitized := *user
	sanitized.PasswordHash = ""
	sanitized.FailedLoginAttempts = 0
	sanitized.LockedUntil = nil

	return &LoginResult{Session: issued, User: sanitized}, nil
}

// Logout destroys the session. Unknown secrets are not an error.
func (s *AuthService) Logout(ctx context.Context, secret string, client *domain.ClientInfo) error {
	return s.sessions.Destroy(ctx, secret, client)
}

// resolve returns nil without error when no account matches.
func (s *AuthService) resolve(ctx context.Context, identifier string) (*domain.User, error) {
	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByUsername(storeCtx, identifier)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return nil, storageFailure("get user by username", err)
	}

	if !domain.LooksLikeEmail(identifier) {
		return nil, nil
	}

	user, err = s.users.GetByEmail(storeCtx, identifier)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		return nil, storageFailure("get user by email", err)
	}
	return user, nil
}

// burnHash performs a verification against a fixed hash so the unknown-account
// branch costs the same as a wrong password.
func (s *AuthService) burnHash(password string) {
	s.dummyOnce.Do(func() {
		hash, err := s.hasher.Hash("placeholder-password-for-timing")
		if err != nil {
			s.logger.Error("failed to prepare timing hash", zap.Error(err))
			return
		}
		s.dummyHash = hash
	})
	if s.dummyHash == "" {
		return
	}
	_, _ = s.hasher.Verify(password, s.dummyHash)
}
