package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestOllamaComplete(t *testing.T) {
	var gotReq ollamaChatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(ollamaChatResponse{
			Model:           "llama3:8b",
			Message:         chatMessage{Role: "assistant", Content: "本地模型的回复"},
			Done:            true,
			PromptEvalCount: 12,
			EvalCount:       34,
		})
	}))
	defer server.Close()

	p := NewOllama(OllamaConfig{BaseURL: server.URL, Model: "llama3:8b"})
	got, err := p.Complete(context.Background(), CompletionRequest{
		Prompt:      "谈谈人工智能",
		Temperature: 0.7,
		MaxTokens:   200,
	})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}

	if gotReq.Stream {
		t.Error("stream must be disabled")
	}
	if gotReq.Model != "llama3:8b" {
		t.Errorf("model: got %q", gotReq.Model)
	}
	if gotReq.Options == nil || gotReq.Options.NumPredict != 200 {
		t.Errorf("options should carry the token bound, got %+v", gotReq.Options)
	}
	if got.Text != "本地模型的回复" {
		t.Errorf("Text: got %q", got.Text)
	}
	if got.Usage.TotalTokens != 46 {
		t.Errorf("Usage.TotalTokens: got %d", got.Usage.TotalTokens)
	}
}

func TestOllamaPicksGenerativeModel(t *testing.T) {
	var pickedModel string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/tags":
			w.Write([]byte(`{"models":[
				{"name":"nomic-embed-text:latest"},
				{"name":"codellama:7b"},
				{"name":"llama3:8b"}
			]}`))
		case "/api/chat":
			var req ollamaChatRequest
			json.NewDecoder(r.Body).Decode(&req)
			pickedModel = req.Model
			json.NewEncoder(w).Encode(ollamaChatResponse{
				Message: chatMessage{Content: "好"},
				Done:    true,
			})
		default:
			t.Errorf("unexpected path %q", r.URL.Path)
		}
	}))
	defer server.Close()

	p := NewOllama(OllamaConfig{BaseURL: server.URL})
	if _, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"}); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	// The embedding and code models must be filtered out, leaving only one.
	if pickedModel != "llama3:8b" {
		t.Errorf("picked model: got %q, want llama3:8b", pickedModel)
	}
}

func TestOllamaNoGenerativeModels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"models":[{"name":"nomic-embed-text:latest"},{"name":"starcoder:3b"}]}`))
	}))
	defer server.Close()

	p := NewOllama(OllamaConfig{BaseURL: server.URL})
	_, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"})
	if !errors.Is(err, ErrNoModels) {
		t.Fatalf("expected ErrNoModels, got %v", err)
	}
}

func TestOllamaAPIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"error":"model not found"}`))
	}))
	defer server.Close()

	p := NewOllama(OllamaConfig{BaseURL: server.URL, Model: "missing"})
	if _, err := p.Complete(context.Background(), CompletionRequest{Prompt: "hi"}); err == nil {
		t.Fatal("expected an error")
	}
}

func TestOllamaAlwaysAvailable(t *testing.T) {
	if !NewOllama(OllamaConfig{}).Available() {
		t.Error("the local provider needs no credentials and must be available")
	}
}
