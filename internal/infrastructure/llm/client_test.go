package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/PanHywel/TidyMark-sub000/internal/config"
	"github.com/PanHywel/TidyMark-sub000/internal/ports"
)

func testAIConfig(url string) config.AIConfig {
	return config.AIConfig{
		Enabled:  true,
		Provider: "openai",
		APIKey:   "test-key",
		APIURL:   url,
		Model:    "gpt-4o-mini",
	}
}

func TestNewClientValidation(t *testing.T) {
	t.Parallel()

	cfg := testAIConfig("https://example.invalid")
	cfg.APIKey = ""
	if _, err := NewClient(cfg); !errors.Is(err, ErrNoAPIKey) {
		t.Fatalf("expected ErrNoAPIKey, got %v", err)
	}

	for _, model := range []string{"deepseek-reasoner", "DeepThink-v2", "gemini-deep-think"} {
		cfg := testAIConfig("https://example.invalid")
		cfg.Model = model
		if _, err := NewClient(cfg); !errors.Is(err, ErrModelNotSupported) {
			t.Fatalf("model %s: expected ErrModelNotSupported, got %v", model, err)
		}
	}

	cfg = testAIConfig("")
	cfg.Provider = "unknown"
	if _, err := NewClient(cfg); !errors.Is(err, ErrNoEndpoint) {
		t.Fatalf("expected ErrNoEndpoint, got %v", err)
	}
}

func TestNewClientResolvesProviderEndpoint(t *testing.T) {
	t.Parallel()

	cfg := testAIConfig("")
	cfg.Provider = "DeepSeek"
	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if client.endpoint != providerEndpoints["deepseek"] {
		t.Fatalf("provider lookup must be case-insensitive, got %s", client.endpoint)
	}
}

func TestCompleteSendsPromptAndAuth(t *testing.T) {
	t.Parallel()

	var gotAuth string
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]any{"content": `{"reassigned_items":[]}`}},
			},
		})
	}))
	defer server.Close()

	client, err := NewClient(testAIConfig(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	content, err := client.Complete(context.Background(), "system prompt", "user prompt")
	if err != nil {
		t.Fatalf("complete: %v", err)
	}
	if content != `{"reassigned_items":[]}` {
		t.Fatalf("unexpected content %q", content)
	}

	if gotAuth != "Bearer test-key" {
		t.Fatalf("missing bearer auth, got %q", gotAuth)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" || gotReq.Messages[1].Role != "user" {
		t.Fatalf("unexpected messages %+v", gotReq.Messages)
	}
	if gotReq.Model != "gpt-4o-mini" {
		t.Fatalf("unexpected model %q", gotReq.Model)
	}
}

func TestCompleteRateLimited(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "slow down", http.StatusTooManyRequests)
	}))
	defer server.Close()

	client, err := NewClient(testAIConfig(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.Complete(context.Background(), "", "user prompt")
	if !errors.Is(err, ports.ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited, got %v", err)
	}
}

func TestCompleteServerError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client, err := NewClient(testAIConfig(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.Complete(context.Background(), "", "user prompt"); err == nil {
		t.Fatal("expected an error on 500")
	}
}

func TestCompleteEmbeddedError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"error": map[string]any{"message": "quota exceeded"},
		})
	}))
	defer server.Close()

	client, err := NewClient(testAIConfig(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.Complete(context.Background(), "", "user prompt"); err == nil {
		t.Fatal("expected the embedded error to surface")
	}
}

func TestCompleteNoChoices(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	client, err := NewClient(testAIConfig(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	if _, err := client.Complete(context.Background(), "", "user prompt"); err == nil {
		t.Fatal("expected an error when no choices come back")
	}
}
