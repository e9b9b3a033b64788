package port

import (
	"context"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
)

// AuditLogger records security relevant events in an external sink.
type AuditLogger interface {
	LogSecurityEvent(ctx context.Context, eventType string, event domain.SecurityEvent) error
}

// InvalidationPublisher broadcasts permission invalidations to other nodes.
type InvalidationPublisher interface {
	PublishInvalidation(ctx context.Context, event domain.PermissionInvalidationEvent) error
}
