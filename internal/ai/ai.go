// Package ai defines the text-generation provider boundary used by the
// worksheet generators.
package ai

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// TextProvider produces raw model text for a completion request. The
// context carries cancellation and the per-attempt deadline; providers
// must honor it at the network-call boundary.
type TextProvider interface {
	Complete(ctx context.Context, req CompletionRequest) (*CompletionResult, error)
}

// CompletionRequest is a single generation call.
type CompletionRequest struct {
	System      string  // system/style framing
	Prompt      string  // user prompt with structural requirements
	Temperature float64 // sampling temperature; generators raise it on retries
	MaxTokens   int
}

// CompletionResult is the raw model output plus usage accounting.
type CompletionResult struct {
	Text  string
	Usage UsageInfo
}

// UsageInfo tracks provider usage for monitoring.
type UsageInfo struct {
	Model        string
	InputTokens  int
	OutputTokens int
	Duration     time.Duration
}

// ProviderConfig contains common configuration for providers.
type ProviderConfig struct {
	MaxRetries     int           // transient-error retries inside one attempt
	RetryBaseDelay time.Duration // base delay for exponential backoff
	RequestTimeout time.Duration // hard cap per HTTP call
}

// Error codes for provider operations. These are transport-level
// conditions; structural failures (bad JSON, wrong counts) are the
// generator's concern.
var (
	// ERateLimit indicates the API rate limit has been exceeded
	ERateLimit = errors.New("ai provider rate limit exceeded")

	// ETimeout indicates the request timed out
	ETimeout = errors.New("ai request timed out")

	// EUnavailable indicates the AI service is temporarily unavailable
	EUnavailable = errors.New("ai service temporarily unavailable")

	// EUnauthorized indicates invalid API credentials
	EUnauthorized = errors.New("ai provider authentication failed")

	// EEmptyResponse indicates the provider returned no text content
	EEmptyResponse = errors.New("ai provider returned empty response")
)

// IsRetryable returns true if the error is transient and the call can be
// repeated within the same generation attempt.
func IsRetryable(err error) bool {
	return errors.Is(err, ERateLimit) ||
		errors.Is(err, ETimeout) ||
		errors.Is(err, EUnavailable)
}

// WrapError wraps an error with context about the AI operation.
func WrapError(operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("ai %s: %w", operation, err)
}
