// Package provider contains the thin per-backend adapters that turn a
// composed prompt into reply text. Adapters map one request to one outbound
// call and extract the text field from the backend's response shape; they
// raise on transport or non-success-status failure and never swallow errors.
// Swallowing happens one layer up, in the engine's fallback chain.
package provider

import (
	"context"
	"errors"
	"strings"
)

// ErrRateLimit is returned by an adapter when the upstream API reports a
// rate-limiting condition (HTTP 429). The engine treats it like any other
// provider failure, but callers that want to surface throttling distinctly
// can detect it with errors.Is.
var ErrRateLimit = errors.New("provider: upstream rate limit exceeded")

// ErrNoModels is returned by the local provider when model discovery yields
// no usable generative model.
var ErrNoModels = errors.New("provider: no generative models available")

// CompletionRequest is the input to a single completion call, carrying the
// fully composed prompt plus the resolved generation parameters.
type CompletionRequest struct {
	// System is the instruction block (persona framing); may be empty.
	System string

	// Prompt is the composed user-turn prompt.
	Prompt string

	// Model overrides the adapter's default model when non-empty.
	Model string

	// Temperature is the sampling temperature.
	Temperature float64

	// MaxTokens bounds the reply length. Zero means the adapter default.
	MaxTokens int
}

// Completion is a successful provider reply.
type Completion struct {
	// Text is the extracted reply text.
	Text string

	// Usage holds token counts reported by the backend; zero-valued when
	// the backend does not report usage.
	Usage TokenUsage
}

// TokenUsage carries the token counts reported by an upstream API for one
// completion call.
type TokenUsage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int

	// Model is the model name as reported by the backend (may be empty).
	Model string

	// LatencyMS is the observed round-trip time in milliseconds.
	LatencyMS int64
}

// Provider is one interchangeable language-model backend.
//
// Implementations must be safe for concurrent use from multiple goroutines.
type Provider interface {
	// Name identifies the adapter ("openai", "zhipu", "moonshot", "ollama",
	// "demo") for configuration lookup and logging.
	Name() string

	// Available reports whether the adapter holds real credentials (or, for
	// local backends, needs none). The fallback chain skips unavailable
	// providers without calling them.
	Available() bool

	// Complete performs one completion call.
	Complete(ctx context.Context, req CompletionRequest) (*Completion, error)
}

// DemoKey is the sentinel credential value that switches the deployment
// into explicit offline/demo mode: interest evaluation becomes deterministic
// and no provider performs network I/O.
const DemoKey = "demo-key"

// IsPlaceholder reports whether an API key is a placeholder rather than a
// real credential: empty, the demo sentinel, or an obvious template value
// left in a config file.
func IsPlaceholder(key string) bool {
	k := strings.TrimSpace(strings.ToLower(key))
	switch {
	case k == "":
		return true
	case k == DemoKey:
		return true
	case strings.HasPrefix(k, "your-"), strings.HasPrefix(k, "your_"):
		return true
	case strings.Contains(k, "api-key-here"), strings.Contains(k, "api_key_here"):
		return true
	}
	return false
}
