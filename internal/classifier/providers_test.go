package classifier

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/anthropics/anthropic-sdk-go/option"
	openaioption "github.com/openai/openai-go/option"
)

func TestAnthropicProvider_Generate(t *testing.T) {
	t.Parallel()

	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/v1/messages") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		body, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(body, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id":"msg_1",
			"type":"message",
			"role":"assistant",
			"model":"claude-haiku-4-5",
			"content":[{"type":"text","text":"[{\"index\":0,\"importance_score\":7}]"}],
			"stop_reason":"end_turn",
			"usage":{"input_tokens":10,"output_tokens":5}
		}`)
	}))
	defer srv.Close()

	provider, err := NewAnthropicProvider("test-key", "", option.WithBaseURL(srv.URL+"/"))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	reply, err := provider.Generate(context.Background(), GenerateRequest{System: "sys", Prompt: "rate this"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != `[{"index":0,"importance_score":7}]` {
		t.Fatalf("unexpected reply %q", reply)
	}
	if gotBody["model"] != DefaultAnthropicModel {
		t.Fatalf("expected default model in request, got %v", gotBody["model"])
	}
}

func TestOpenAIProvider_Generate(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("unexpected path %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{
			"id":"chatcmpl-1",
			"object":"chat.completion",
			"created":1760000000,
			"model":"gpt-4o-mini",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":" [] "}}]
		}`)
	}))
	defer srv.Close()

	provider, err := NewOpenAIProvider("test-key", "", openaioption.WithBaseURL(srv.URL+"/v1/"))
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	reply, err := provider.Generate(context.Background(), GenerateRequest{Prompt: "rate this", MaxTokens: 100})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if reply != "[]" {
		t.Fatalf("unexpected reply %q", reply)
	}
}

func TestProviders_RequireAPIKey(t *testing.T) {
	t.Parallel()

	if _, err := NewAnthropicProvider(" ", ""); err == nil {
		t.Fatalf("expected anthropic error without key")
	}
	if _, err := NewOpenAIProvider("", ""); err == nil {
		t.Fatalf("expected openai error without key")
	}
	if _, err := NewGeminiProvider(context.Background(), "", "", ""); err == nil {
		t.Fatalf("expected gemini error without key")
	}
}
