package llm

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/capitalize-ai/corpus-generator/pkg/logger"
	"github.com/capitalize-ai/corpus-generator/pkg/metrics"
)

const defaultMaxAttempts = 5

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Backoff returns the wait before retrying after the given zero-based
// attempt: 2s, 4s, 8s, ...
func Backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt+1)) * time.Second
}

// RetryClient wraps a Client and retries rate-limited calls with
// exponential backoff. Any other error is returned at once.
type RetryClient struct {
	next        Client
	maxAttempts int
	sleep       Sleeper
	log         *logger.Logger
}

// RetryOption configures a RetryClient.
type RetryOption func(*RetryClient)

// WithMaxAttempts sets the total number of attempts, including the first.
func WithMaxAttempts(n int) RetryOption {
	return func(c *RetryClient) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

// WithSleeper replaces the backoff wait.
func WithSleeper(s Sleeper) RetryOption {
	return func(c *RetryClient) { c.sleep = s }
}

// NewRetryClient wraps next.
func NewRetryClient(next Client, log *logger.Logger, opts ...RetryOption) *RetryClient {
	c := &RetryClient{
		next:        next,
		maxAttempts: defaultMaxAttempts,
		sleep:       sleepContext,
		log:         log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Name returns the wrapped provider name.
func (c *RetryClient) Name() string { return c.next.Name() }

// Models returns the wrapped provider models.
func (c *RetryClient) Models() []string { return c.next.Models() }

// Complete calls the wrapped client, retrying on rate limits.
func (c *RetryClient) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	var lastErr error
	for attempt := 0; attempt < c.maxAttempts; attempt++ {
		resp, err := c.next.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}
		if !IsRateLimited(err) {
			return nil, fmt.Errorf("%w: %s: %w", ErrProvider, c.next.Name(), err)
		}
		lastErr = err
		if attempt == c.maxAttempts-1 {
			break
		}

		wait := Backoff(attempt)
		c.log.Warn("rate limited, backing off",
			zap.String("provider", c.next.Name()),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", c.maxAttempts),
			zap.Duration("wait", wait),
		)
		metrics.GenerationRetries.WithLabelValues(c.next.Name()).Inc()
		if err := c.sleep(ctx, wait); err != nil {
			return nil, fmt.Errorf("failed to wait for retry: %w", err)
		}
	}

	c.log.Error("rate limit retries exhausted",
		zap.String("provider", c.next.Name()),
		zap.Int("max_attempts", c.maxAttempts),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%w after %d attempts: %w", ErrRateLimited, c.maxAttempts, lastErr)
}
