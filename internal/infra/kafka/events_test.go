package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/IBM/sarama"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap/zaptest"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/infra/config"
)

type fakeAsyncProducer struct {
	input  chan *sarama.ProducerMessage
	errors chan *sarama.ProducerError
}

func newFakeAsyncProducer() *fakeAsyncProducer {
	return &fakeAsyncProducer{
		input:  make(chan *sarama.ProducerMessage, 1),
		errors: make(chan *sarama.ProducerError, 1),
	}
}

func (f *fakeAsyncProducer) AsyncClose() {}

func (f *fakeAsyncProducer) Close() error { return nil }

func (f *fakeAsyncProducer) Input() chan<- *sarama.ProducerMessage { return f.input }

func (f *fakeAsyncProducer) Successes() <-chan *sarama.ProducerMessage { return nil }

func (f *fakeAsyncProducer) Errors() <-chan *sarama.ProducerError { return f.errors }

func (f *fakeAsyncProducer) IsTransactional() bool { return false }

func (f *fakeAsyncProducer) BeginTxn() error { return nil }

func (f *fakeAsyncProducer) CommitTxn() error { return nil }

func (f *fakeAsyncProducer) AbortTxn() error { return nil }

func (f *fakeAsyncProducer) AddOffsetsToTxn(offsets map[string][]*sarama.PartitionOffsetMetadata, groupID string) error {
	return nil
}

func (f *fakeAsyncProducer) AddMessageToTxn(msg *sarama.ConsumerMessage, groupID string, metadata *string) error {
	return nil
}

func (f *fakeAsyncProducer) TxnStatus() sarama.ProducerTxnStatusFlag {
	return sarama.ProducerTxnStatusFlag(0)
}

func newTestPublisher(t *testing.T, asyncProducer *fakeAsyncProducer) (*AuditPublisher, *Producer) {
	t.Helper()

	producer := newProducer(asyncProducer, config.KafkaSettings{TopicPrefix: "erp"}, zaptest.NewLogger(t))
	t.Cleanup(func() { _ = producer.Close() })

	publisher := NewAuditPublisher(producer, config.AppSettings{
		Name: "rbac-engine",
		Env:  "test",
	}, zaptest.NewLogger(t))
	return publisher, producer
}

func TestLogSecurityEventPublishesEnvelope(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher, _ := newTestPublisher(t, asyncProducer)

	tenant := "t-a"
	occurredAt := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	event := domain.SecurityEvent{
		EventID:    "event-123",
		Severity:   domain.SeverityMedium,
		UserID:     3,
		OccurredAt: occurredAt,
		Details: domain.PermissionChangeDetails{
			RoleID:          7,
			RoleName:        "Supervisor",
			PermissionIDs:   []int64{11, 12},
			PermissionCount: 2,
			TenantID:        &tenant,
			UserType:        domain.UserTypeUser,
			AssignerLevel:   80,
			Added:           []domain.PermissionKey{{ActionID: 1, RouteID: 2}},
			Removed:         []domain.PermissionKey{{ActionID: 3, RouteID: 2}},
		},
	}

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	ctx := trace.ContextWithSpanContext(context.Background(), trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	}))

	if err := publisher.LogSecurityEvent(ctx, domain.AuditEventPermissionsAssigned, event); err != nil {
		t.Fatalf("LogSecurityEvent returned error: %v", err)
	}

	select {
	case msg := <-asyncProducer.input:
		if msg.Topic != "erp.rbac.audit" {
			t.Fatalf("unexpected topic: %s", msg.Topic)
		}
		key, err := msg.Key.Encode()
		if err != nil || string(key) != "7" {
			t.Fatalf("expected role id key, got %q (%v)", key, err)
		}
		if got := EventTypeOf(msg); got != domain.AuditEventPermissionsAssigned {
			t.Fatalf("unexpected event_type header: %s", got)
		}

		bytes, err := msg.Value.Encode()
		if err != nil {
			t.Fatalf("Value.Encode returned error: %v", err)
		}

		var envelope map[string]any
		if err := json.Unmarshal(bytes, &envelope); err != nil {
			t.Fatalf("failed to unmarshal envelope: %v", err)
		}

		if got := envelope["event_id"]; got != "event-123" {
			t.Fatalf("unexpected event_id: %v", got)
		}
		if got := envelope["severity"]; got != domain.SeverityMedium {
			t.Fatalf("unexpected severity: %v", got)
		}
		if got := envelope["user_id"]; got != "3" {
			t.Fatalf("unexpected user_id: %v", got)
		}
		if got := envelope["timestamp"]; got != occurredAt.Format(time.RFC3339Nano) {
			t.Fatalf("unexpected timestamp: %v", got)
		}

		payload, ok := envelope["payload"].(map[string]any)
		if !ok {
			t.Fatalf("payload not a map: %T", envelope["payload"])
		}
		if got := payload["role_name"]; got != "Supervisor" {
			t.Fatalf("unexpected role_name: %v", got)
		}
		if got := payload["tenant_id"]; got != "t-a" {
			t.Fatalf("unexpected tenant_id: %v", got)
		}
		if got := payload["assigner_level"].(float64); got != 80 {
			t.Fatalf("unexpected assigner_level: %v", got)
		}
		if ids, ok := payload["permission_ids"].([]any); !ok || len(ids) != 2 {
			t.Fatalf("unexpected permission_ids: %v", payload["permission_ids"])
		}
		if removed, ok := payload["removed"].([]any); !ok || len(removed) != 1 {
			t.Fatalf("unexpected removed: %v", payload["removed"])
		}

		metadata, ok := envelope["metadata"].(map[string]any)
		if !ok {
			t.Fatalf("envelope metadata not a map: %T", envelope["metadata"])
		}
		if metadata["service"] != "rbac-engine" || metadata["environment"] != "test" {
			t.Fatalf("unexpected metadata: %v", metadata)
		}
		if metadata["trace_id"] != traceID.String() {
			t.Fatalf("unexpected trace_id: %v", metadata["trace_id"])
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for message on async producer input channel")
	}
}

func TestLogSecurityEventClearedHasEmptyIDs(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	publisher, _ := newTestPublisher(t, asyncProducer)

	event := domain.SecurityEvent{
		Severity: domain.SeverityHigh,
		UserID:   1,
		Details:  domain.PermissionChangeDetails{RoleID: 4},
	}
	if err := publisher.LogSecurityEvent(context.Background(), domain.AuditEventPermissionsCleared, event); err != nil {
		t.Fatalf("LogSecurityEvent returned error: %v", err)
	}

	msg := <-asyncProducer.input
	bytes, _ := msg.Value.Encode()

	var envelope map[string]any
	if err := json.Unmarshal(bytes, &envelope); err != nil {
		t.Fatalf("failed to unmarshal envelope: %v", err)
	}
	if id, _ := envelope["event_id"].(string); id == "" {
		t.Fatalf("expected generated event id")
	}
	payload := envelope["payload"].(map[string]any)
	if ids, ok := payload["permission_ids"].([]any); !ok || len(ids) != 0 {
		t.Fatalf("expected empty permission_ids array, got %v", payload["permission_ids"])
	}
	if _, hasTrace := envelope["metadata"].(map[string]any)["trace_id"]; hasTrace {
		t.Fatalf("expected no trace id without a span")
	}
}

func TestLogSecurityEventRespectsCancellation(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	asyncProducer.input = make(chan *sarama.ProducerMessage)
	publisher, _ := newTestPublisher(t, asyncProducer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := publisher.LogSecurityEvent(ctx, domain.AuditEventPermissionsAssigned, domain.SecurityEvent{})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestProducerErrorHook(t *testing.T) {
	asyncProducer := newFakeAsyncProducer()
	_, producer := newTestPublisher(t, asyncProducer)

	failed := make(chan string, 1)
	producer.OnError(func(msg *sarama.ProducerMessage, err error) {
		failed <- EventTypeOf(msg)
	})

	asyncProducer.errors <- &sarama.ProducerError{
		Msg: &sarama.ProducerMessage{
			Topic:   "erp.rbac.audit",
			Headers: []sarama.RecordHeader{{Key: []byte("event_type"), Value: []byte(domain.AuditEventPermissionsCleared)}},
		},
		Err: errors.New("broker unavailable"),
	}

	select {
	case got := <-failed:
		if got != domain.AuditEventPermissionsCleared {
			t.Fatalf("unexpected event type %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for error hook")
	}
}

func TestTopicName(t *testing.T) {
	producer := &Producer{cfg: config.KafkaSettings{TopicPrefix: "erp"}}
	if got := producer.TopicName("rbac.audit"); got != "erp.rbac.audit" {
		t.Fatalf("unexpected topic %s", got)
	}
	if got := producer.TopicName("erp.rbac.audit"); got != "erp.rbac.audit" {
		t.Fatalf("expected prefix not to repeat, got %s", got)
	}
	producer.cfg.TopicPrefix = ""
	if got := producer.TopicName("rbac.audit"); got != "rbac.audit" {
		t.Fatalf("unexpected topic %s", got)
	}
}
