package llm

import (
	"context"
	"time"

	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/logger"
	"github.com/gt-quantum/fyi-gtm-sub001/infrastructure/retry"
)

// DefaultTransientStatus is the upstream status treated as transient.
const DefaultTransientStatus = 422

// RetryPolicy configures Retrying.
type RetryPolicy struct {
	Status      int
	MaxAttempts int
	Delay       time.Duration
}

// Retrying retries a Model on the policy's transient status only, with
// linear backoff.
type Retrying struct {
	next   Model
	policy RetryPolicy
	log    logger.Logger
	name   string
}

// NewRetrying wraps next.
func NewRetrying(next Model, name string, policy RetryPolicy, log logger.Logger) *Retrying {
	if policy.Status == 0 {
		policy.Status = DefaultTransientStatus
	}
	if policy.MaxAttempts <= 0 {
		policy.MaxAttempts = 3
	}
	if policy.Delay <= 0 {
		policy.Delay = 2 * time.Second
	}
	return &Retrying{next: next, policy: policy, log: log, name: name}
}

// Complete delegates to the wrapped model.
func (r *Retrying) Complete(ctx context.Context, req Request) (Response, error) {
	var resp Response
	err := retry.Retry(ctx, retry.Config{
		MaxAttempts: r.policy.MaxAttempts,
		Delay:       r.policy.Delay,
		Backoff:     retry.Linear,
		IsRetryable: retry.OnStatus(r.policy.Status),
		OnRetry: func(attempt int, wait time.Duration, err error) {
			r.log.Warn("Model call failed with transient status, retrying",
				logger.String("model", r.name),
				logger.Int("attempt", attempt),
				logger.Duration("wait", wait),
				logger.Error(err),
			)
		},
	}, func() error {
		var err error
		resp, err = r.next.Complete(ctx, req)
		return err
	})
	return resp, err
}
