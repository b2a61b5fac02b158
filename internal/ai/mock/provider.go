// Package mock provides a scriptable ai.TextProvider for testing and
// development.
package mock

import (
	"context"
	"sync"
	"time"

	"github.com/worksheetlab/server/internal/ai"
)

// Provider is a mock text provider. Responses are returned in order; the
// last one repeats once the script is exhausted. Delay, when set, makes
// the call block so tests can exercise timeouts and cancellation.
type Provider struct {
	mu sync.Mutex

	// Configurable behavior for testing
	Responses []string
	Err       error
	Delay     time.Duration

	// Call tracking
	Calls    int
	Requests []ai.CompletionRequest
}

// New creates a mock provider returning the given responses in order.
func New(responses ...string) *Provider {
	return &Provider{Responses: responses}
}

// Complete returns the next scripted response.
func (p *Provider) Complete(ctx context.Context, req ai.CompletionRequest) (*ai.CompletionResult, error) {
	p.mu.Lock()
	p.Calls++
	call := p.Calls
	p.Requests = append(p.Requests, req)
	p.mu.Unlock()

	if p.Delay > 0 {
		select {
		case <-time.After(p.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.Err != nil {
		return nil, p.Err
	}

	if len(p.Responses) == 0 {
		return nil, ai.EEmptyResponse
	}
	idx := call - 1
	if idx >= len(p.Responses) {
		idx = len(p.Responses) - 1
	}

	return &ai.CompletionResult{
		Text: p.Responses[idx],
		Usage: ai.UsageInfo{
			Model:        "mock-text-v1",
			InputTokens:  420,
			OutputTokens: 980,
			Duration:     5 * time.Millisecond,
		},
	}, nil
}

// LastRequest returns the most recent request, or a zero value if none.
func (p *Provider) LastRequest() ai.CompletionRequest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.Requests) == 0 {
		return ai.CompletionRequest{}
	}
	return p.Requests[len(p.Requests)-1]
}
