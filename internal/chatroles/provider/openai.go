package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

const (
	defaultOpenAIBase  = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o-mini"
	defaultTimeout     = 30 * time.Second
)

// Config configures an OpenAI-compatible chat-completions adapter.
type Config struct {
	// APIKey is the bearer token used to authenticate against the API.
	APIKey string

	// BaseURL overrides the API endpoint. Useful for Azure OpenAI or any
	// other OpenAI-compatible endpoint.
	BaseURL string

	// Model is the default chat model when a request does not name one.
	Model string

	// Timeout is the HTTP request timeout. Defaults to 30 s.
	Timeout time.Duration
}

// chatCompletionsProvider implements Provider against the OpenAI
// chat-completions wire format. Zhipu and Moonshot expose the same shape at
// different endpoints, so their adapters reuse this client with their own
// name, base URL, and model defaults.
type chatCompletionsProvider struct {
	name   string
	cfg    Config
	client *http.Client
}

// NewOpenAI returns the adapter for the OpenAI chat API.
// The returned provider is safe for concurrent use.
func NewOpenAI(cfg Config) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAIBase
	}
	if cfg.Model == "" {
		cfg.Model = defaultOpenAIModel
	}
	return newChatCompletions("openai", cfg)
}

func newChatCompletions(name string, cfg Config) *chatCompletionsProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = defaultTimeout
	}
	return &chatCompletionsProvider{
		name:   name,
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

// --- minimal chat-completions wire types ---

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatResponse struct {
	Model   string       `json:"model"`
	Choices []chatChoice `json:"choices"`
	Usage   *chatUsage   `json:"usage,omitempty"`
	Error   *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

type chatChoice struct {
	Message      chatMessage `json:"message"`
	FinishReason string      `json:"finish_reason"`
}

type chatUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

func (p *chatCompletionsProvider) Name() string { return p.name }

func (p *chatCompletionsProvider) Available() bool { return !IsPlaceholder(p.cfg.APIKey) }

// Complete sends one chat-completions call and extracts the reply text.
func (p *chatCompletionsProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := chatRequest{
		Model:       model,
		Messages:    messages,
		Temperature: req.Temperature,
		MaxTokens:   req.MaxTokens,
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("%s: marshal request: %w", p.name, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/chat/completions",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("%s: create http request: %w", p.name, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%s: http request: %w", p.name, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%s: read response body: %w", p.name, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("%s: HTTP 429: %w", p.name, ErrRateLimit)
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("%s: decode API response (HTTP %d): %w", p.name, resp.StatusCode, err)
	}

	if parsed.Error != nil {
		return nil, fmt.Errorf("%s: API error (%s): %s", p.name, parsed.Error.Type, parsed.Error.Message)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%s: HTTP %d: %.200s", p.name, resp.StatusCode, respBody)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("%s: no choices returned (HTTP %d)", p.name, resp.StatusCode)
	}

	completion := &Completion{
		Text: parsed.Choices[0].Message.Content,
		Usage: TokenUsage{
			Model:     parsed.Model,
			LatencyMS: time.Since(start).Milliseconds(),
		},
	}
	if parsed.Usage != nil {
		completion.Usage.PromptTokens = parsed.Usage.PromptTokens
		completion.Usage.CompletionTokens = parsed.Usage.CompletionTokens
		completion.Usage.TotalTokens = parsed.Usage.TotalTokens
	}
	return completion, nil
}

// Compile-time interface satisfaction check.
var _ Provider = (*chatCompletionsProvider)(nil)
