package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
)

const defaultStoreTimeout = 3 * time.Second

// boundedContext caps a store call so a hung backend surfaces as ErrStorageUnavailable.
func boundedContext(ctx context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		timeout = defaultStoreTimeout
	}
	return context.WithTimeout(ctx, timeout)
}

// auditEmitter fills in the common event fields and hands events to the sink.
// Sink failures are logged and never change the caller's outcome.
type auditEmitter struct {
	sink   port.AuditSink
	logger *zap.Logger
}

func (a auditEmitter) emit(ctx context.Context, event domain.AuditEvent) {
	if a.sink == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := a.sink.Publish(ctx, event); err != nil {
		a.logger.Debug("audit event not published",
			zap.String("event_type", string(event.Type)),
			zap.Error(err),
		)
	}
}

func clientFields(client *domain.ClientInfo) (ip, userAgent string) {
	if client == nil {
		return "", ""
	}
	return client.IPAddress, client.UserAgent
}

// waitUntil blocks until deadline or ctx cancellation.
func waitUntil(ctx context.Context, deadline time.Time) {
	d := time.Until(deadline)
	if d <= 0 {
		return
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-ctx.Done():
	}
}
