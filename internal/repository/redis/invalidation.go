package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/domain"
	"github.com/sujisudharsanan/bisman-ERP-Building-sub001/internal/core/port"
)

// DefaultInvalidationChannel carries permission invalidation events between nodes.
const DefaultInvalidationChannel = "rbac:permissions:invalidate"

func channelOrDefault(channel string) string {
	channel = strings.TrimSpace(channel)
	if channel == "" {
		return DefaultInvalidationChannel
	}
	return channel
}

// InvalidationPublisher publishes invalidation events over Redis pub/sub. Having
// no subscriber is not an error.
type InvalidationPublisher struct {
	client  *red.Client
	channel string
}

// NewInvalidationPublisher constructs a publisher for channel.
func NewInvalidationPublisher(client *red.Client, channel string) *InvalidationPublisher {
	return &InvalidationPublisher{client: client, channel: channelOrDefault(channel)}
}

// PublishInvalidation encodes the event as JSON and publishes it.
func (p *InvalidationPublisher) PublishInvalidation(ctx context.Context, event domain.PermissionInvalidationEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal invalidation event: %w", err)
	}
	if err := p.client.Publish(ctx, p.channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish invalidation: %w", err)
	}
	return nil
}

// InvalidationHandler reacts to an invalidation published by any node.
type InvalidationHandler func(ctx context.Context, event domain.PermissionInvalidationEvent)

var errSubscriptionClosed = errors.New("invalidation subscription closed")

// InvalidationSubscriber listens for invalidation events.
type InvalidationSubscriber struct {
	client  *red.Client
	channel string
	logger  *zap.Logger
	retry   func() backoff.BackOff
}

// NewInvalidationSubscriber constructs a subscriber for channel.
func NewInvalidationSubscriber(client *red.Client, channel string, logger *zap.Logger) *InvalidationSubscriber {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InvalidationSubscriber{
		client:  client,
		channel: channelOrDefault(channel),
		logger:  logger,
		retry:   defaultResubscribePolicy,
	}
}

func defaultResubscribePolicy() backoff.BackOff {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 500 * time.Millisecond
	expo.MaxInterval = 30 * time.Second
	expo.MaxElapsedTime = 0
	return expo
}

// WithRetryPolicy overrides the backoff used between subscription attempts.
func (s *InvalidationSubscriber) WithRetryPolicy(policy func() backoff.BackOff) *InvalidationSubscriber {
	if policy != nil {
		s.retry = policy
	}
	return s
}

// Listen runs the subscriber until ctx is cancelled, subscribing again after
// every failure.
func (s *InvalidationSubscriber) Listen(ctx context.Context, handle InvalidationHandler) error {
	attempt := func() error {
		if err := s.Run(ctx, handle); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
		return errSubscriptionClosed
	}
	notify := func(err error, wait time.Duration) {
		s.logger.Warn("invalidation subscriber down, retrying",
			zap.String("channel", s.channel),
			zap.Duration("wait", wait),
			zap.Error(err),
		)
	}

	err := backoff.RetryNotify(attempt, backoff.WithContext(s.retry(), ctx), notify)
	if ctx.Err() != nil {
		return nil
	}
	return err
}

// Run blocks, dispatching events to handle until ctx is cancelled.
func (s *InvalidationSubscriber) Run(ctx context.Context, handle InvalidationHandler) error {
	sub := s.client.Subscribe(ctx, s.channel)
	defer sub.Close()

	if _, err := sub.Receive(ctx); err != nil {
		return fmt.Errorf("subscribe %s: %w", s.channel, err)
	}
	s.logger.Info("listening for permission invalidations", zap.String("channel", s.channel))

	messages := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			var event domain.PermissionInvalidationEvent
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				s.logger.Warn("discarding malformed invalidation", zap.Error(err))
				continue
			}
			handle(ctx, event)
		}
	}
}

var _ port.InvalidationPublisher = (*InvalidationPublisher)(nil)
