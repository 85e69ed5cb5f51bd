package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/domain"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/core/port"
	"github.com/marketingkamdi24/Rowbooster-UI-sub009/internal/infra/logger"
)

// StubPublisher logs events instead of sending them to Kafka. Useful for development environments.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a StubPublisher.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

// Publish logs the audit event.
func (p *StubPublisher) Publish(_ context.Context, event domain.AuditEvent) error {
	fields := []zap.Field{
		zap.String("event_id", event.ID),
		zap.String("event_type", string(event.Type)),
		zap.String("user_id", event.UserID),
		zap.String("identifier", event.Identifier),
		zap.String("ip", logger.MaskIP(event.IPAddress)),
		zap.Time("occurred_at", event.OccurredAt),
	}
	if len(event.Details) > 0 {
		fields = append(fields, zap.Any("details", event.Details))
	}
	p.logger.Info("audit event", fields...)
	return nil
}

// Notify logs masked notification metadata. The credential itself is never logged.
func (p *StubPublisher) Notify(_ context.Context, n domain.Notification) error {
	p.logger.Info("notification not delivered: no mail transport configured",
		zap.String("kind", string(n.Kind)),
		zap.String("user_id", n.UserID),
		zap.String("email", logger.MaskEmail(n.Email)),
		zap.Time("expires_at", n.ExpiresAt),
	)
	return nil
}

var (
	_ port.AuditSink = (*StubPublisher)(nil)
	_ port.Notifier  = (*StubPublisher)(nil)
)
