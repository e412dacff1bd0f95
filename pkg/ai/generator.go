package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// ErrUnavailable signals that the provider could not be reached after all
// retry attempts. The chat pipeline maps it to a user-visible "temporarily
// unavailable" reply and does not charge quota.
var ErrUnavailable = errors.New("ai provider unavailable")

// Params are the per-call generation parameters.
type Params struct {
	Model            string
	Temperature      float64
	MaxOutputTokens  int
	Timeout          time.Duration
	RetrievalStoreID string
}

// Generator sends (system text, user text, params) to an LLM provider and
// returns the raw text of the first candidate. Empty output is not an
// error; the caller substitutes a "no answer" message.
type Generator interface {
	Generate(ctx context.Context, systemText, userText string, params Params) (string, error)
}

const (
	maxAttempts    = 3
	retryBackoff   = 300 * time.Millisecond
	defaultTimeout = 30 * time.Second
)

// apiError carries the provider HTTP status so retry logic can tell
// transient failures from permanent ones.
type apiError struct {
	status  int
	message string
}

func (e *apiError) Error() string {
	if e.message != "" {
		return fmt.Sprintf("api error (status %d): %s", e.status, e.message)
	}
	return fmt.Sprintf("api error (status %d)", e.status)
}

func retryable(err error) bool {
	var ae *apiError
	if errors.As(err, &ae) {
		return ae.status >= 500 || ae.status == 429
	}
	// Network-level failures are worth retrying.
	return true
}

// withRetry runs call with a per-attempt timeout and a fixed backoff between
// attempts. The final failure is wrapped in ErrUnavailable.
func withRetry(ctx context.Context, timeout time.Duration, call func(context.Context) (string, error)) (string, error) {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		callCtx, cancel := context.WithTimeout(ctx, timeout)
		text, err := call(callCtx)
		cancel()
		if err == nil {
			return text, nil
		}
		lastErr = err
		if !retryable(err) {
			break
		}
		if attempt < maxAttempts {
			select {
			case <-ctx.Done():
				return "", fmt.Errorf("%w: %v", ErrUnavailable, ctx.Err())
			case <-time.After(retryBackoff):
			}
		}
	}
	return "", fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
