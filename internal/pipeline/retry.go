package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

// RetryPolicy bounds the store-call retry loop.
type RetryPolicy struct {
	MaxAttempts  int
	InitialDelay time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, InitialDelay: 2 * time.Second}
}

// retryableSubstrings identify connection-class failures. Anything else
// propagates immediately.
var retryableSubstrings = []string{
	"connection refused",
	"connection reset",
	"connection timed out",
	"failed to connect",
	"i/o timeout",
	"broken pipe",
	"no such host",
}

// IsRetryable reports whether an error looks like a transient connection
// failure worth another attempt.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, s := range retryableSubstrings {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

// withRetry runs op up to policy.MaxAttempts times with exponential backoff,
// calling reconnect between attempts. Non-retryable errors abort immediately.
func withRetry(ctx context.Context, log *zap.Logger, policy RetryPolicy, reconnect func(context.Context) error, op func(context.Context) error) error {
	attempts := 0

	wrapped := func() error {
		attempts++
		err := op(ctx)
		if err == nil {
			return nil
		}
		if !IsRetryable(err) {
			return backoff.Permanent(err)
		}

		log.Warn("Retryable store error",
			zap.Int("attempt", attempts),
			zap.Error(err))

		if reconnect != nil {
			if rcErr := reconnect(ctx); rcErr != nil {
				log.Warn("Reconnect failed", zap.Error(rcErr))
			}
		}
		return err
	}

	policy64 := uint64(policy.MaxAttempts)
	if policy64 > 0 {
		policy64-- // MaxRetries counts retries, not attempts
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = policy.InitialDelay

	return backoff.Retry(wrapped, backoff.WithContext(backoff.WithMaxRetries(bo, policy64), ctx))
}
