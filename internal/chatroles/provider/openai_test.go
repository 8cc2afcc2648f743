package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestChatCompletionsComplete(t *testing.T) {
	var gotReq chatRequest
	var gotAuth string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(chatResponse{
			Model: "gpt-4o-mini",
			Choices: []chatChoice{
				{Message: chatMessage{Role: "assistant", Content: "你好，我对这个话题很感兴趣。"}},
			},
			Usage: &chatUsage{PromptTokens: 10, CompletionTokens: 20, TotalTokens: 30},
		})
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "sk-live-test", BaseURL: server.URL})
	if !p.Available() {
		t.Fatal("provider with a real key should be available")
	}

	got, err := p.Complete(context.Background(), CompletionRequest{
		System:      "你是AI专家",
		Prompt:      "谈谈人工智能",
		Temperature: 0.7,
		MaxTokens:   100,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if gotAuth != "Bearer sk-live-test" {
		t.Errorf("Authorization: got %q", gotAuth)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Errorf("model should default to gpt-4o-mini, got %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Errorf("unexpected messages: %+v", gotReq.Messages)
	}
	if got.Text != "你好，我对这个话题很感兴趣。" {
		t.Errorf("Text: got %q", got.Text)
	}
	if got.Usage.TotalTokens != 30 {
		t.Errorf("Usage.TotalTokens: got %d", got.Usage.TotalTokens)
	}
}

func TestChatCompletionsOmitsEmptySystem(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		json.NewEncoder(w).Encode(chatResponse{
			Choices: []chatChoice{{Message: chatMessage{Content: "好"}}},
		})
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "sk-live-test", BaseURL: server.URL})
	if _, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if len(gotReq.Messages) != 1 || gotReq.Messages[0].Role != "user" {
		t.Errorf("empty system prompt should be omitted, got %+v", gotReq.Messages)
	}
}

func TestChatCompletionsRateLimit(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "sk-live-test", BaseURL: server.URL})
	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, ErrRateLimit) {
		t.Fatalf("expected ErrRateLimit, got %v", err)
	}
}

func TestChatCompletionsAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided","type":"invalid_request_error"}}`))
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "sk-live-test", BaseURL: server.URL})
	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if err == nil {
		t.Fatal("expected an error")
	}
	if !strings.Contains(err.Error(), "Incorrect API key") {
		t.Errorf("error should carry the API message, got %v", err)
	}
}

func TestChatCompletionsNoChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	}))
	defer server.Close()

	p := NewOpenAI(Config{APIKey: "sk-live-test", BaseURL: server.URL})
	if _, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected an error for an empty choices array")
	}
}

func TestChatCompletionsUnavailableWithPlaceholder(t *testing.T) {
	for _, key := range []string{"", DemoKey, "your-api-key-here"} {
		p := NewOpenAI(Config{APIKey: key})
		if p.Available() {
			t.Errorf("key %q should not make the provider available", key)
		}
	}
}

func TestDerivedAdapterNames(t *testing.T) {
	if got := NewZhipu(Config{APIKey: "k-1234"}).Name(); got != "zhipu" {
		t.Errorf("zhipu name: got %q", got)
	}
	if got := NewMoonshot(Config{APIKey: "k-1234"}).Name(); got != "moonshot" {
		t.Errorf("moonshot name: got %q", got)
	}
}
