package engine

import (
	"context"
	"errors"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/dgallion1/docslot/internal/generate"
)

const MaxRetries = 3

// IsRetryable checks if an error is worth retrying.
func IsRetryable(err error) bool {
	var retryErr *generate.RetryableError
	return errors.As(err, &retryErr)
}

// Backoff returns a duration for attempt n (0-indexed) with jitter.
func Backoff(attempt int) time.Duration {
	base := time.Duration(1<<uint(attempt)) * time.Second
	if base > 30*time.Second {
		base = 30 * time.Second
	}
	jitter := time.Duration(rand.Int64N(int64(base) / 2))
	return base + jitter
}

// retry calls fn until it succeeds, fails permanently, or the attempts run
// out.
func (e *Engine) retry(ctx context.Context, log *slog.Logger, op string, fn func() error) error {
	var lastErr error
	for attempt := range e.opts.MaxRetries {
		lastErr = fn()
		if lastErr == nil || !IsRetryable(lastErr) {
			return lastErr
		}
		log.Warn("retryable collaborator error", "op", op, "attempt", attempt, "error", lastErr)
		if attempt == e.opts.MaxRetries-1 {
			break
		}
		select {
		case <-time.After(e.opts.Backoff(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}
