package usecase

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

const (
	defaultEffectAttempts = 3
	defaultEffectTimeout  = 5 * time.Second
	defaultEffectInterval = 100 * time.Millisecond
)

// effectRunner executes post-commit side effects. They outlive caller
// cancellation, are retried with backoff and never fail the mutation.
type effectRunner struct {
	attempts int
	timeout  time.Duration
	interval time.Duration
	logger   *zap.Logger
}

func newEffectRunner(logger *zap.Logger) effectRunner {
	return effectRunner{
		attempts: defaultEffectAttempts,
		timeout:  defaultEffectTimeout,
		interval: defaultEffectInterval,
		logger:   logger,
	}
}

func (r effectRunner) run(ctx context.Context, name string, fn func(context.Context) error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), r.timeout)
	defer cancel()

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = r.interval
	expo.MaxElapsedTime = r.timeout

	attempts := r.attempts
	if attempts < 1 {
		attempts = 1
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(expo, uint64(attempts-1)), ctx)

	tries := 0
	err := backoff.Retry(func() error {
		tries++
		return fn(ctx)
	}, policy)
	if err != nil {
		r.logger.Error("side effect failed",
			zap.String("effect", name),
			zap.Int("attempts", tries),
			zap.Error(err),
		)
	}
	return err
}
