package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/PanHywel/TidyMark-sub000/internal/config"
	"github.com/PanHywel/TidyMark-sub000/internal/ports"
)

// Default endpoints per provider; APIURL in config overrides them.
var providerEndpoints = map[string]string{
	"openai":   "https://api.openai.com/v1/chat/completions",
	"deepseek": "https://api.deepseek.com/v1/chat/completions",
}

const (
	defaultMaxTokens = 4096
	requestTimeout   = 15 * time.Second
)

var (
	// ErrNoAPIKey means refinement was requested without a credential.
	ErrNoAPIKey = errors.New("chat api key is not configured")
	// ErrModelNotSupported rejects reasoning-model families whose output
	// cannot honor the strict-JSON contract.
	ErrModelNotSupported = errors.New("reasoning models are not supported")
	// ErrNoEndpoint means neither the provider nor an explicit URL resolves
	// to an endpoint.
	ErrNoEndpoint = errors.New("chat endpoint is not configured")
)

// Client implements ports.ChatClient against OpenAI-compatible APIs.
type Client struct {
	endpoint   string
	model      string
	apiKey     string
	maxTokens  int
	httpClient *http.Client
}

var _ ports.ChatClient = (*Client)(nil)

// NewClient builds a client from configuration. Configuration problems are
// reported here, before any request is sent.
func NewClient(cfg config.AIConfig) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}
	if disallowedModel(cfg.Model) {
		return nil, fmt.Errorf("%w: %s", ErrModelNotSupported, cfg.Model)
	}

	endpoint := cfg.APIURL
	if endpoint == "" {
		endpoint = providerEndpoints[strings.ToLower(cfg.Provider)]
	}
	if endpoint == "" {
		return nil, fmt.Errorf("%w: provider %q", ErrNoEndpoint, cfg.Provider)
	}

	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultMaxTokens
	}

	return &Client{
		endpoint:  endpoint,
		model:     cfg.Model,
		apiKey:    cfg.APIKey,
		maxTokens: maxTokens,
		httpClient: &http.Client{
			Timeout: requestTimeout,
		},
	}, nil
}

// disallowedModel filters model families that interleave reasoning traces
// with the answer text.
func disallowedModel(model string) bool {
	m := strings.ToLower(model)
	return strings.Contains(m, "reasoner") || strings.Contains(m, "deep-think") || strings.Contains(m, "deepthink")
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	MaxTokens   int           `json:"max_tokens"`
	Temperature float64       `json:"temperature"`
	Messages    []chatMessage `json:"messages"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete posts one prompt pair and returns the raw content of the first
// choice. Rate-limit refusals are wrapped in ports.ErrRateLimited so callers
// can tell them apart in logs.
func (c *Client) Complete(ctx context.Context, systemPrompt, userPrompt string) (string, error) {
	messages := make([]chatMessage, 0, 2)
	if systemPrompt != "" {
		messages = append(messages, chatMessage{Role: "system", Content: systemPrompt})
	}
	messages = append(messages, chatMessage{Role: "user", Content: userPrompt})

	body, err := json.Marshal(chatRequest{
		Model:       c.model,
		MaxTokens:   c.maxTokens,
		Temperature: 0.1,
		Messages:    messages,
	})
	if err != nil {
		return "", fmt.Errorf("marshal chat payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("send chat request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", fmt.Errorf("read chat response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: %s", ports.ErrRateLimited, strings.TrimSpace(string(payload)))
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", fmt.Errorf("chat endpoint %s: %s", resp.Status, strings.TrimSpace(string(payload)))
	}

	var parsed chatResponse
	if err := json.Unmarshal(payload, &parsed); err != nil {
		return "", fmt.Errorf("decode chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", fmt.Errorf("chat endpoint error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("chat endpoint returned no choices")
	}

	return parsed.Choices[0].Message.Content, nil
}
