// Copyright 2025 The Terroir Authors
// SPDX-License-Identifier: Apache-2.0

package geocode

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// RetryPolicy is a fixed-backoff retry: MaxAttempts total tries with the same
// Backoff before every retry.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     time.Duration
}

// NoRetry is a single attempt.
var NoRetry = RetryPolicy{MaxAttempts: 1}

// retry runs fn until it succeeds, fails with a non-transient error, or the
// attempts run out. It returns the number of calls made and the last error.
func retry[T any](
	ctx context.Context,
	policy RetryPolicy,
	sleep func(context.Context, time.Duration) error,
	logger *zap.Logger,
	fn func(ctx context.Context) (T, error),
) (T, int, error) {
	maxAttempts := max(policy.MaxAttempts, 1)

	var (
		zero    T
		lastErr error
	)

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		val, err := fn(ctx)
		if err == nil {
			return val, attempt, nil
		}

		lastErr = err

		if ctx.Err() != nil || !IsTransient(err) || attempt == maxAttempts {
			return zero, attempt, lastErr
		}

		logger.Warn("transient failure, retrying",
			zap.Int("attempt", attempt),
			zap.Int("max_attempts", maxAttempts),
			zap.Duration("backoff", policy.Backoff),
			zap.Error(err),
		)

		if err := sleep(ctx, policy.Backoff); err != nil {
			return zero, attempt, err
		}
	}

	return zero, maxAttempts, lastErr
}
