package llm

import (
	"errors"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"
)

var (
	// ErrRateLimited is returned once every retry of a rate-limited call
	// has been used up.
	ErrRateLimited = errors.New("rate limited")
	// ErrProvider wraps non-retryable provider failures.
	ErrProvider = errors.New("provider error")
	// ErrMalformedResponse means the payload did not match the requested
	// content shape. The step is skipped, not retried.
	ErrMalformedResponse = errors.New("malformed response")
)

// statusCoder is implemented by SDK errors that expose the HTTP status.
type statusCoder interface {
	StatusCode() int
}

var rateLimitSignatures = []string{"429", "rate_limit", "rate limit", "quota"}

// IsRateLimited reports whether err carries a rate-limit signature.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return true
	}
	var sc statusCoder
	if errors.As(err, &sc) && sc.StatusCode() == http.StatusTooManyRequests {
		return true
	}

	msg := strings.ToLower(err.Error())
	for _, sig := range rateLimitSignatures {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}
