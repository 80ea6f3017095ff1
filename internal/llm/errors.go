package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Error kinds, used as metric labels and to decide retries.
const (
	KindRateLimited     = "rate_limited"
	KindInvalidResponse = "invalid_response"
	KindUnavailable     = "unavailable"
	KindMaxTokens       = "max_tokens"
	KindRejected        = "rejected"
	KindCanceled        = "canceled"
	KindTimeout         = "timeout"
	KindOther           = "error"
)

// ErrRateLimit is a 429 from the provider. RetryAfter is zero when the
// provider sent no hint.
type ErrRateLimit struct {
	RetryAfter time.Duration
	Err        error
}

func (e *ErrRateLimit) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("rate limited, retry after %s: %v", e.RetryAfter, e.Err)
	}
	return fmt.Sprintf("rate limited: %v", e.Err)
}

func (e *ErrRateLimit) Unwrap() error { return e.Err }

// ErrInvalidResponse means the model answered with content that is not
// JSON or does not match the requested schema. Content is the raw answer.
type ErrInvalidResponse struct {
	Content json.RawMessage
	Err     error
}

func (e *ErrInvalidResponse) Error() string {
	return fmt.Sprintf("invalid model output: %v", e.Err)
}

func (e *ErrInvalidResponse) Unwrap() error { return e.Err }

// ErrProviderUnavailable covers transport failures, 5xx responses and a
// provider that cannot serve the request at all.
type ErrProviderUnavailable struct {
	Err error
}

func (e *ErrProviderUnavailable) Error() string {
	if e.Err == nil {
		return "LLM provider unavailable"
	}
	return fmt.Sprintf("LLM provider unavailable: %v", e.Err)
}

func (e *ErrProviderUnavailable) Unwrap() error { return e.Err }

// ErrMaxTokensExceeded means the output was cut off at Request.MaxTokens.
type ErrMaxTokensExceeded struct {
	Content json.RawMessage
}

func (e *ErrMaxTokensExceeded) Error() string {
	return fmt.Sprintf("model output truncated at max tokens (%d bytes received)", len(e.Content))
}

// ErrRejected is a 4xx other than 429: bad key, unknown model, malformed
// request. Repeating the call will not help.
type ErrRejected struct {
	Status int
	Err    error
}

func (e *ErrRejected) Error() string {
	return fmt.Sprintf("request rejected by provider (status %d): %v", e.Status, e.Err)
}

func (e *ErrRejected) Unwrap() error { return e.Err }

// Kind classifies err. A nil error is "ok".
func Kind(err error) string {
	var (
		rl      *ErrRateLimit
		invalid *ErrInvalidResponse
		unavail *ErrProviderUnavailable
		maxTok  *ErrMaxTokensExceeded
		reject  *ErrRejected
	)
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, context.Canceled):
		return KindCanceled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	case errors.As(err, &maxTok):
		return KindMaxTokens
	case errors.As(err, &rl):
		return KindRateLimited
	case errors.As(err, &reject):
		return KindRejected
	case errors.As(err, &invalid):
		return KindInvalidResponse
	case errors.As(err, &unavail):
		return KindUnavailable
	default:
		return KindOther
	}
}

// retryable reports whether a call that failed with the given kind may
// succeed if repeated. Unclassified errors are assumed transient.
func retryable(kind string) bool {
	switch kind {
	case KindCanceled, KindTimeout, KindMaxTokens, KindRejected:
		return false
	default:
		return true
	}
}
