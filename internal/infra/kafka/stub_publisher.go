package kafka

import (
	"context"

	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
)

// StubPublisher logs audit events instead of sending them to Kafka. Used when no brokers are configured.
type StubPublisher struct {
	logger *zap.Logger
}

// NewStubPublisher constructs a logging audit sink.
func NewStubPublisher(logger *zap.Logger) *StubPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StubPublisher{logger: logger}
}

// LogSecurityEvent writes the event to the log at Info.
func (p *StubPublisher) LogSecurityEvent(_ context.Context, eventType string, event domain.SecurityEvent) error {
	p.logger.Info("Stub audit event",
		zap.String("event_type", eventType),
		zap.String("event_id", event.EventID),
		zap.String("severity", event.Severity),
		zap.Int64("user_id", event.UserID),
		zap.Time("timestamp", event.OccurredAt.UTC()),
		zap.Any("payload", newPermissionChangePayload(event.Details)),
	)
	return nil
}

var _ port.AuditLogger = (*StubPublisher)(nil)
