package analyzer

import (
	"context"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
)

// maxAttempts is the inference retry budget per page
const maxAttempts = 3

// isRetryable checks whether a provider error is worth retrying:
// rate limits, quota exhaustion, and transient upstream failures
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, marker := range []string{"429", "RESOURCE_EXHAUSTED", "quota", "rate limit", "overloaded", "500", "502", "503", "timeout", "deadline"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// callWithRetry runs fn with exponential backoff (1s, 2s, 4s).
// Non-retryable errors fail immediately.
func callWithRetry(ctx context.Context, logger arbor.ILogger, provider string, fn func() (string, error)) (string, error) {
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			wait := time.Duration(1<<uint(attempt-1)) * time.Second
			logger.Warn().
				Str("provider", provider).
				Int("attempt", attempt).
				Err(lastErr).
				Msg("Inference attempt failed, retrying")
			select {
			case <-time.After(wait):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		text, err := fn()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !isRetryable(err) {
			return "", err
		}
	}
	return "", lastErr
}
