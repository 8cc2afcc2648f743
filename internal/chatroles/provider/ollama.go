package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"
)

const defaultOllamaBase = "http://localhost:11434"

// excludedModelMarkers flags model names that are embedding- or
// code-specialized and therefore unsuitable for conversational replies.
// Matched case-insensitively as substrings of the discovered model name.
var excludedModelMarkers = []string{"embed", "bge", "minilm", "code", "coder", "starcoder"}

// OllamaConfig configures the local generative provider.
type OllamaConfig struct {
	// BaseURL is the Ollama server address. Defaults to http://localhost:11434.
	BaseURL string

	// Model pins a specific model. When empty, a model is selected uniformly
	// at random from the server's model list on each call, excluding
	// embedding- and code-specialized names.
	Model string

	// Timeout is the HTTP request timeout. Local generation can be slow on
	// modest hardware, so the default is 120 s.
	Timeout time.Duration
}

// ollamaProvider implements Provider against a local Ollama server. It needs
// no credentials; availability is decided by the fallback chain (a transport
// error simply moves the chain along).
type ollamaProvider struct {
	cfg    OllamaConfig
	client *http.Client

	mu  sync.Mutex
	rng *rand.Rand
}

// NewOllama returns the local generative provider.
// The returned provider is safe for concurrent use.
func NewOllama(cfg OllamaConfig) Provider {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOllamaBase
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 120 * time.Second
	}
	return &ollamaProvider{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// --- minimal Ollama wire types ---

type ollamaChatRequest struct {
	Model    string             `json:"model"`
	Messages []chatMessage      `json:"messages"`
	Stream   bool               `json:"stream"`
	Options  *ollamaChatOptions `json:"options,omitempty"`
}

type ollamaChatOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type ollamaChatResponse struct {
	Model   string      `json:"model"`
	Message chatMessage `json:"message"`
	Done    bool        `json:"done"`
	Error   string      `json:"error,omitempty"`

	PromptEvalCount int `json:"prompt_eval_count,omitempty"`
	EvalCount       int `json:"eval_count,omitempty"`
}

type ollamaTagsResponse struct {
	Models []struct {
		Name string `json:"name"`
	} `json:"models"`
}

func (p *ollamaProvider) Name() string { return "ollama" }

// Available is always true: the local provider needs no credentials.
func (p *ollamaProvider) Available() bool { return true }

// Complete sends one chat call to the local server, discovering and picking
// a model first when none is configured.
func (p *ollamaProvider) Complete(ctx context.Context, req CompletionRequest) (*Completion, error) {
	model := req.Model
	if model == "" {
		model = p.cfg.Model
	}
	if model == "" {
		picked, err := p.pickModel(ctx)
		if err != nil {
			return nil, err
		}
		model = picked
	}

	messages := make([]chatMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, chatMessage{Role: "system", Content: req.System})
	}
	messages = append(messages, chatMessage{Role: "user", Content: req.Prompt})

	body := ollamaChatRequest{
		Model:    model,
		Messages: messages,
		Stream:   false,
	}
	if req.Temperature != 0 || req.MaxTokens != 0 {
		body.Options = &ollamaChatOptions{
			Temperature: req.Temperature,
			NumPredict:  req.MaxTokens,
		}
	}

	data, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("ollama: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost,
		p.cfg.BaseURL+"/api/chat",
		bytes.NewReader(data),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: create http request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("ollama: http request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("ollama: read response body: %w", err)
	}

	var parsed ollamaChatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, fmt.Errorf("ollama: decode response (HTTP %d): %w", resp.StatusCode, err)
	}
	if parsed.Error != "" {
		return nil, fmt.Errorf("ollama: API error: %s", parsed.Error)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("ollama: HTTP %d: %.200s", resp.StatusCode, respBody)
	}

	return &Completion{
		Text: parsed.Message.Content,
		Usage: TokenUsage{
			PromptTokens:     parsed.PromptEvalCount,
			CompletionTokens: parsed.EvalCount,
			TotalTokens:      parsed.PromptEvalCount + parsed.EvalCount,
			Model:            parsed.Model,
			LatencyMS:        time.Since(start).Milliseconds(),
		},
	}, nil
}

// pickModel lists the server's models and selects one uniformly at random,
// skipping embedding- and code-specialized names.
func (p *ollamaProvider) pickModel(ctx context.Context) (string, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.cfg.BaseURL+"/api/tags", nil)
	if err != nil {
		return "", fmt.Errorf("ollama: create tags request: %w", err)
	}

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("ollama: list models: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("ollama: list models: HTTP %d", resp.StatusCode)
	}

	var tags ollamaTagsResponse
	if err := json.NewDecoder(resp.Body).Decode(&tags); err != nil {
		return "", fmt.Errorf("ollama: decode model list: %w", err)
	}

	candidates := make([]string, 0, len(tags.Models))
	for _, m := range tags.Models {
		if isGenerativeModel(m.Name) {
			candidates = append(candidates, m.Name)
		}
	}
	if len(candidates) == 0 {
		return "", ErrNoModels
	}

	p.mu.Lock()
	picked := candidates[p.rng.Intn(len(candidates))]
	p.mu.Unlock()
	return picked, nil
}

// isGenerativeModel filters out models unsuitable for chat replies.
func isGenerativeModel(name string) bool {
	lower := strings.ToLower(name)
	for _, marker := range excludedModelMarkers {
		if strings.Contains(lower, marker) {
			return false
		}
	}
	return true
}

// Compile-time interface satisfaction check.
var _ Provider = (*ollamaProvider)(nil)
