package usecase

import (
	"context"
	"errors"
	"sync"
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

// Session validation results used as metric labels.
const (
	sessionResultValid         = "valid"
	sessionResultNotFound      = "not_found"
	sessionResultExpired       = "expired"
	sessionResultIdle          = "idle"
	sessionResultOwnerInactive = "owner_inactive"
	sessionResultError         = "error"
)

// IssuedSession pairs the stored session with the secret returned to the client.
type IssuedSession struct {
	Secret  string
	Session domain.Session
}

// SessionContext is the outcome of a successful validation.
type SessionContext struct {
	Session domain.Session
	User    domain.User
	// BindingMismatch reports that the client's network origin differs from the
	// one recorded at login. The session is still valid.
	BindingMismatch bool
}

type touchRequest struct {
	sessionID string
	at        time.Time
}

// SessionService manages session lifecycle: creation, validation with
// absolute and idle expiry, asynchronous activity refresh, and bulk invalidation.
type SessionService struct {
	sessions     port.SessionRepository
	users        port.UserRepository
	audit        auditEmitter
	metrics      *telemetry.Metrics
	logger       *zap.Logger
	duration     time.Duration
	idleTimeout  time.Duration
	storeTimeout time.Duration
	workers      int
	now          func() time.Time

	mu      sync.RWMutex
	closed  bool
	started bool
	touches chan touchRequest
	wg      sync.WaitGroup
}

// NewSessionService constructs a SessionService. Call Start to run the refresh workers.
func NewSessionService(cfg *config.AppConfig, sessions port.SessionRepository, users port.UserRepository, audit port.AuditSink, metrics *telemetry.Metrics, log *zap.Logger) *SessionService {
	if log == nil {
		log = zap.NewNop()
	}

	queueSize := cfg.Session.TouchQueueSize
	if queueSize <= 0 {
		queueSize = 1
	}
	workers := cfg.Session.TouchWorkers
	if workers <= 0 {
		workers = 1
	}

	return &SessionService{
		sessions:     sessions,
		users:        users,
		audit:        auditEmitter{sink: audit, logger: log},
		metrics:      metrics,
		logger:       log,
		duration:     cfg.Session.Duration,
		idleTimeout:  cfg.Session.IdleTimeout,
		storeTimeout: cfg.Store.Timeout,
		workers:      workers,
		now:          time.Now,
		touches:      make(chan touchRequest, queueSize),
	}
}

// WithClock overrides the time source.
func (s *SessionService) WithClock(now func() time.Time) *SessionService {
	if now != nil {
		s.now = now
	}
	return s
}

// Start launches the activity refresh workers. They exit when Close is called.
func (s *SessionService) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started || s.closed {
		return
	}
	s.started = true

	for i := 0; i < s.workers; i++ {
		s.wg.Add(1)
		go s.touchWorker()
	}
}

// Close stops accepting refreshes and waits for queued ones to be written.
func (s *SessionService) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.touches)
	started := s.started
	s.mu.Unlock()

	if started {
		s.wg.Wait()
	}
}

// Create allocates a session for the user. The secret is returned once and only
// its digest is stored.
func (s *SessionService) Create(ctx context.Context, userID string, client *domain.ClientInfo) (*IssuedSession, error) {
	secret, err := security.GenerateSecureToken(security.SecretBytes)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := domain.Session{
		ID:           security.HashToken(secret),
		UserID:       userID,
		ExpiresAt:    now.Add(s.duration),
		LastActivity: now,
		CreatedAt:    now,
	}
	if client != nil {
		if client.IPAddress != "" {
			ip := client.IPAddress
			session.IPAddress = &ip
		}
		if client.UserAgent != "" {
			ua := client.UserAgent
			session.UserAgent = &ua
		}
	}

	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	if err := s.sessions.Create(storeCtx, session); err != nil {
		return nil, storageFailure("create session", err)
	}

	return &IssuedSession{Secret: secret, Session: session}, nil
}

// Validate resolves the session for secret. Expired, idle and orphaned sessions
// are deleted before the corresponding error is returned. On success the
// activity refresh is queued without blocking.
func (s *SessionService) Validate(ctx context.Context, secret string, client *domain.ClientInfo) (*SessionContext, error) {
	if secret == "" {
		s.metrics.ObserveSession(sessionResultNotFound)
		return nil, ErrSessionNotFound
	}

	now := s.now().UTC()
	id := security.HashToken(secret)

	session, err := s.lookup(ctx, id)
	if err != nil {
		return nil, err
	}

	ip, ua := clientFields(client)

	switch {
	case session.ExpiredAt(now):
		s.terminate(ctx, *session, domain.AuditSessionExpired, ip, ua)
		s.metrics.ObserveSession(sessionResultExpired)
		return nil, ErrSessionExpired
	case session.IdleAt(now, s.idleTimeout):
		s.terminate(ctx, *session, domain.AuditSessionIdle, ip, ua)
		s.metrics.ObserveSession(sessionResultIdle)
		return nil, ErrSessionIdle
	}

	user, err := s.owner(ctx, session.UserID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		s.terminate(ctx, *session, domain.AuditSessionOwnerInactive, ip, ua)
		s.metrics.ObserveSession(sessionResultOwnerInactive)
		return nil, ErrSessionOwnerInactive
	}

	result := &SessionContext{Session: *session, User: *user}
	if session.BindingDiffers(client) {
		result.BindingMismatch = true
		s.logger.Warn("session binding mismatch",
			zap.String("user_id", user.ID),
			zap.String("session", security.Fingerprint(session.ID)),
			zap.String("recorded_ip", logger.MaskIP(*session.IPAddress)),
			zap.String("presented_ip", logger.MaskIP(ip)),
		)
		s.audit.emit(ctx, domain.AuditEvent{
			Type:       domain.AuditSessionBindingMismatch,
			UserID:     user.ID,
			IPAddress:  ip,
			UserAgent:  ua,
			OccurredAt: now,
			Details: map[string]any{
				"session":     security.Fingerprint(session.ID),
				"recorded_ip": logger.MaskIP(*session.IPAddress),
			},
		})
	}

	if !s.enqueueTouch(session.ID, now) && now.Sub(session.LastActivity) >= s.idleTimeout/2 {
		s.touchNow(ctx, session.ID, now)
	}
	s.metrics.ObserveSession(sessionResultValid)

	return result, nil
}

// Destroy deletes the session for secret. Unknown secrets are ignored.
func (s *SessionService) Destroy(ctx context.Context, secret string, client *domain.ClientInfo) error {
	if secret == "" {
		return nil
	}

	id := security.HashToken(secret)
	session, err := s.lookup(ctx, id)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return nil
		}
		return err
	}

	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	if err := s.sessions.Delete(storeCtx, id); err != nil {
		return storageFailure("delete session", err)
	}

	ip, ua := clientFields(client)
	s.audit.emit(ctx, domain.AuditEvent{
		Type:       domain.AuditLogout,
		UserID:     session.UserID,
		IPAddress:  ip,
		UserAgent:  ua,
		OccurredAt: s.now().UTC(),
	})
	return nil
}

// InvalidateAll destroys every session of the user and returns how many were removed.
func (s *SessionService) InvalidateAll(ctx context.Context, userID string) (int, error) {
	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	removed, err := s.sessions.DeleteAllForUser(storeCtx, userID)
	if err != nil {
		return 0, storageFailure("delete user sessions", err)
	}
	return removed, nil
}

// ListForUser returns the user's sessions, newest first.
func (s *SessionService) ListForUser(ctx context.Context, userID string) ([]domain.Session, error) {
	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	sessions, err := s.sessions.ListByUser(storeCtx, userID)
	if err != nil {
		return nil, storageFailure("list sessions", err)
	}
	return sessions, nil
}

// PurgeExpired deletes sessions past absolute or idle expiry.
func (s *SessionService) PurgeExpired(ctx context.Context) (int, error) {
	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	removed, err := s.sessions.DeleteExpired(storeCtx, s.now().UTC(), s.idleTimeout)
	if err != nil {
		return 0, storageFailure("purge sessions", err)
	}
	return removed, nil
}

// RunReaper purges expired sessions on every tick until ctx is cancelled.
func (s *SessionService) RunReaper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := s.PurgeExpired(ctx)
			if err != nil {
				s.logger.Warn("session purge failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				s.logger.Info("expired sessions purged", zap.Int("count", removed))
			}
		}
	}
}

func (s *SessionService) lookup(ctx context.Context, id string) (*domain.Session, error) {
	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	session, err := s.sessions.GetByID(storeCtx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.metrics.ObserveSession(sessionResultNotFound)
			return nil, ErrSessionNotFound
		}
		s.metrics.ObserveSession(sessionResultError)
		return nil, storageFailure("get session", err)
	}
	return session, nil
}

// owner returns nil without error when the user no longer exists.
func (s *SessionService) owner(ctx context.Context, userID string) (*domain.User, error) {
	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	user, err := s.users.GetByID(storeCtx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, nil
		}
		s.metrics.ObserveSession(sessionResultError)
		return nil, storageFailure("get session owner", err)
	}
	return user, nil
}

// terminate deletes a session that failed validation. Delete failures are
// logged; the validation outcome stands.
func (s *SessionService) terminate(ctx context.Context, session domain.Session, reason domain.AuditEventType, ip, ua string) {
	storeCtx, cancel := boundedContext(ctx, s.storeTimeout)
	defer cancel()

	if err := s.sessions.Delete(storeCtx, session.ID); err != nil {
		s.logger.Warn("failed to delete invalid session",
			zap.String("session", security.Fingerprint(session.ID)),
			zap.Error(err),
		)
	}

	s.audit.emit(ctx, domain.AuditEvent{
		Type:       reason,
		UserID:     session.UserID,
		IPAddress:  ip,
		UserAgent:  ua,
		OccurredAt: s.now().UTC(),
	})
}

// enqueueTouch reports false when the refresh was dropped because the queue is full.
func (s *SessionService) enqueueTouch(sessionID string, at time.Time) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return true
	}

	select {
	case s.touches <- touchRequest{sessionID: sessionID, at: at}:
		return true
	default:
		s.metrics.IncTouchDropped()
		return false
	}
}

// touchNow writes the refresh inline once a session has used half its idle
// window, so a saturated queue cannot idle out an active user.
func (s *SessionService) touchNow(ctx context.Context, sessionID string, at time.Time) {
	storeCtx, cancel := boundedContext(context.WithoutCancel(ctx), s.storeTimeout)
	defer cancel()

	if err := s.sessions.Touch(storeCtx, sessionID, at); err != nil {
		s.logger.Warn("inline session activity refresh failed",
			zap.String("session", security.Fingerprint(sessionID)),
			zap.Error(err),
		)
	}
}

func (s *SessionService) touchWorker() {
	defer s.wg.Done()

	for req := range s.touches {
		ctx, cancel := boundedContext(context.Background(), s.storeTimeout)
		if err := s.sessions.Touch(ctx, req.sessionID, req.at); err != nil {
			s.logger.Debug("session activity refresh failed",
				zap.String("session", security.Fingerprint(req.sessionID)),
				zap.Error(err),
			)
		}
		cancel()
	}
}
