package provider

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNewOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAI(); !errors.Is(err, ErrNoAPIKey) {
		t.Errorf("err = %v, want ErrNoAPIKey", err)
	}
}

func TestOpenAIReply(t *testing.T) {
	var body struct {
		Model    string `json:"model"`
		Messages []struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"messages"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&body)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"id": "chatcmpl-1",
			"object": "chat.completion",
			"created": 1,
			"model": "gpt-3.5-turbo",
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Hi there!"}}]
		}`))
	}))
	defer srv.Close()

	p, err := NewOpenAI(WithAPIKey("sk-test"), WithBaseURL(srv.URL), WithLogger(testLogger))
	if err != nil {
		t.Fatal(err)
	}

	reply, err := p.Reply(context.Background(), &Request{Text: "hello", SystemPrompt: "be brief"})
	if err != nil {
		t.Fatalf("Reply: %v", err)
	}
	if reply.Text != "Hi there!" || reply.Source != SourceOpenAI {
		t.Errorf("reply = %+v", reply)
	}
	if body.Model != "gpt-3.5-turbo" {
		t.Errorf("model = %q", body.Model)
	}
	if len(body.Messages) != 2 || body.Messages[0].Role != "system" || body.Messages[0].Content != "be brief" ||
		body.Messages[1].Role != "user" || body.Messages[1].Content != "hello" {
		t.Errorf("messages = %+v", body.Messages)
	}
}

func TestOpenAIRateLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error":{"message":"quota exceeded","type":"insufficient_quota"}}`))
	}))
	defer srv.Close()

	p, _ := NewOpenAI(WithAPIKey("sk-test"), WithBaseURL(srv.URL), WithLogger(testLogger))
	_, err := p.Reply(context.Background(), &Request{Text: "hello"})

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("err = %v, want *APIError", err)
	}
	if !apiErr.IsRateLimited() {
		t.Errorf("status = %d, want 429", apiErr.StatusCode)
	}
}
