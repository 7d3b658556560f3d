package retry

import (
	"context"
	"fmt"
	"math/rand"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var statusPattern = regexp.MustCompile(`status (\d{3})`)

// Config holds retry configuration
type Config struct {
	MaxRetries int
	BaseDelay  time.Duration
}

// DefaultConfig returns a default retry configuration
func DefaultConfig() Config {
	return Config{
		MaxRetries: 3,
		BaseDelay:  1 * time.Second,
	}
}

// WithBackoff executes a function with exponential backoff retry logic.
// Non-retryable errors are returned immediately.
func WithBackoff(ctx context.Context, config Config, operation func(context.Context) error) error {
	for attempt := 0; attempt <= config.MaxRetries; attempt++ {
		err := operation(ctx)
		if err == nil {
			return nil
		}

		if !IsRetryable(err) {
			return fmt.Errorf("non-retryable error: %w", err)
		}

		if attempt == config.MaxRetries {
			return fmt.Errorf("operation failed after %d attempts: %w", config.MaxRetries+1, err)
		}

		// Exponential backoff with jitter.
		baseDelay := config.BaseDelay * time.Duration(1<<attempt)
		jitter := time.Duration(rand.Int63n(int64(config.BaseDelay)))
		delay := baseDelay + jitter

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}

	return nil
}

// IsRetryable determines if an error is worth retrying.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	errStr := strings.ToLower(err.Error())

	// Network-level errors are generally retryable.
	if strings.Contains(errStr, "timeout") ||
		strings.Contains(errStr, "connection refused") ||
		strings.Contains(errStr, "connection reset") ||
		strings.Contains(errStr, "temporary failure") ||
		strings.Contains(errStr, "network") {
		return true
	}

	// HTTP status codes embedded in error messages: only 5xx server errors
	// and 429 rate limiting should be retried.
	if m := statusPattern.FindStringSubmatch(errStr); m != nil {
		code, _ := strconv.Atoi(m[1])
		return HTTPStatusRetryable(code)
	}

	// Unknown errors: retry, the bounded attempt count caps the cost.
	return true
}

// HTTPStatusRetryable checks if an HTTP status code is retryable
func HTTPStatusRetryable(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}
