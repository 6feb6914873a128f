package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/capitalize-ai/corpus-generator/pkg/logger"
)

// stubClient returns queued errors, then a fixed response.
type stubClient struct {
	errs    []error
	content string
	calls   int
}

func (s *stubClient) Complete(_ context.Context, _ *CompletionRequest) (*CompletionResponse, error) {
	s.calls++
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return nil, err
	}
	return &CompletionResponse{Content: s.content, TokensIn: 10, TokensOut: 20}, nil
}

func (s *stubClient) Name() string     { return "stub" }
func (s *stubClient) Models() []string { return []string{"stub-1"} }

type recordingSleeper struct {
	waits []time.Duration
}

func (r *recordingSleeper) sleep(_ context.Context, d time.Duration) error {
	r.waits = append(r.waits, d)
	return nil
}

func rateLimitErr() error {
	return &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests, Message: "slow down"}
}

func TestRetryClient_RetriesRateLimitsWithGrowingBackoff(t *testing.T) {
	// arrange
	stub := &stubClient{errs: []error{rateLimitErr(), rateLimitErr(), rateLimitErr()}, content: "ok"}
	sleeper := &recordingSleeper{}
	client := NewRetryClient(stub, logger.Nop(), WithSleeper(sleeper.sleep))

	// act
	resp, err := client.Complete(context.Background(), &CompletionRequest{})

	// assert
	require.NoError(t, err)
	assert.Equal(t, "ok", resp.Content)
	assert.Equal(t, 4, stub.calls)
	require.Len(t, sleeper.waits, 3)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second, 8 * time.Second}, sleeper.waits)
	for i := 1; i < len(sleeper.waits); i++ {
		assert.Greater(t, sleeper.waits[i], sleeper.waits[i-1])
	}
}

func TestRetryClient_ExhaustionWrapsRateLimited(t *testing.T) {
	// arrange
	var errs []error
	for i := 0; i < 10; i++ {
		errs = append(errs, errors.New("Error code: 429 - quota exceeded"))
	}
	stub := &stubClient{errs: errs}
	sleeper := &recordingSleeper{}
	client := NewRetryClient(stub, logger.Nop(), WithSleeper(sleeper.sleep), WithMaxAttempts(3))

	// act
	_, err := client.Complete(context.Background(), &CompletionRequest{})

	// assert
	assert.ErrorIs(t, err, ErrRateLimited)
	assert.Equal(t, 3, stub.calls)
	assert.Len(t, sleeper.waits, 2)
}

func TestRetryClient_OtherErrorsAreNotRetried(t *testing.T) {
	// arrange
	boom := errors.New("connection reset")
	stub := &stubClient{errs: []error{boom}}
	sleeper := &recordingSleeper{}
	client := NewRetryClient(stub, logger.Nop(), WithSleeper(sleeper.sleep))

	// act
	_, err := client.Complete(context.Background(), &CompletionRequest{})

	// assert
	assert.ErrorIs(t, err, ErrProvider)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 1, stub.calls)
	assert.Empty(t, sleeper.waits)
}

func TestRetryClient_CancelledWait(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	stub := &stubClient{errs: []error{rateLimitErr()}}
	client := NewRetryClient(stub, logger.Nop())

	_, err := client.Complete(ctx, &CompletionRequest{})

	assert.ErrorIs(t, err, context.Canceled)
}

func TestIsRateLimited(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{nil, false},
		{rateLimitErr(), true},
		{&openai.RequestError{HTTPStatusCode: 429, Err: errors.New("x")}, true},
		{fmt.Errorf("wrapped: %w", rateLimitErr()), true},
		{errors.New("rate_limit_exceeded"), true},
		{errors.New("Rate limit reached"), true},
		{errors.New("insufficient_quota"), true},
		{&openai.APIError{HTTPStatusCode: 500, Message: "server"}, false},
		{errors.New("bad request"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsRateLimited(tt.err), "%v", tt.err)
	}
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, 2*time.Second, Backoff(0))
	assert.Equal(t, 16*time.Second, Backoff(3))
}
