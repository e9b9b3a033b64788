package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/config"
)

const (
	schemaVersion = "1.0"
	auditTopic    = "rbac.audit"
)

// AuditPublisher implements port.AuditLogger on a Kafka topic. Messages are
// keyed by role id so a role's audit trail stays ordered within a partition.
type AuditPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewAuditPublisher constructs a Kafka-backed audit sink.
func NewAuditPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *AuditPublisher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AuditPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	Severity  string           `json:"severity"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

type permissionKeyPayload struct {
	ActionID int64 `json:"action_id"`
	RouteID  int64 `json:"route_id"`
}

type permissionChangePayload struct {
	RoleID          int64                  `json:"role_id"`
	RoleName        string                 `json:"role_name"`
	PermissionIDs   []int64                `json:"permission_ids"`
	PermissionCount int                    `json:"permission_count"`
	TenantID        *string                `json:"tenant_id"`
	UserType        string                 `json:"user_type"`
	AssignerLevel   int                    `json:"assigner_level"`
	Added           []permissionKeyPayload `json:"added"`
	Removed         []permissionKeyPayload `json:"removed"`
}

func toKeyPayload(keys []domain.PermissionKey) []permissionKeyPayload {
	out := make([]permissionKeyPayload, 0, len(keys))
	for _, k := range keys {
		out = append(out, permissionKeyPayload{ActionID: k.ActionID, RouteID: k.RouteID})
	}
	return out
}

func newPermissionChangePayload(d domain.PermissionChangeDetails) permissionChangePayload {
	ids := d.PermissionIDs
	if ids == nil {
		ids = []int64{}
	}
	return permissionChangePayload{
		RoleID:          d.RoleID,
		RoleName:        d.RoleName,
		PermissionIDs:   ids,
		PermissionCount: d.PermissionCount,
		TenantID:        d.TenantID,
		UserType:        string(d.UserType),
		AssignerLevel:   d.AssignerLevel,
		Added:           toKeyPayload(d.Added),
		Removed:         toKeyPayload(d.Removed),
	}
}

// LogSecurityEvent enqueues the event on the audit topic. Delivery failures
// after enqueueing surface through the producer's error hook.
func (p *AuditPublisher) LogSecurityEvent(ctx context.Context, eventType string, event domain.SecurityEvent) error {
	ts := event.OccurredAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := event.EventID
	if id == "" {
		id = uuid.NewString()
	}

	metadata := envelopeMetadata{
		"service":     p.appCfg.Name,
		"environment": p.appCfg.Env,
	}
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		metadata["trace_id"] = sc.TraceID().String()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		Severity:  event.Severity,
		UserID:    strconv.FormatInt(event.UserID, 10),
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   newPermissionChangePayload(event.Details),
		Metadata:  metadata,
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal audit envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(auditTopic),
		Key:   sarama.StringEncoder(strconv.FormatInt(event.Details.RoleID, 10)),
		Value: sarama.ByteEncoder(bytes),
		Headers: []sarama.RecordHeader{
			{Key: []byte("event_type"), Value: []byte(eventType)},
		},
	}

	select {
	case p.producer.Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EventTypeOf reads the event type header of a produced audit message.
func EventTypeOf(msg *sarama.ProducerMessage) string {
	if msg == nil {
		return ""
	}
	for _, h := range msg.Headers {
		if string(h.Key) == "event_type" {
			return string(h.Value)
		}
	}
	return ""
}

var _ port.AuditLogger = (*AuditPublisher)(nil)
