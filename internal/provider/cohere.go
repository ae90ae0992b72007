package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

const providerCohere = "cohere"

// Cohere answers through the Cohere v1 chat endpoint.
type Cohere struct {
	config *Config
	http   *http.Client
	logger *slog.Logger
}

type cohereMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

type cohereRequest struct {
	Model       string          `json:"model"`
	Message     string          `json:"message"`
	ChatHistory []cohereMessage `json:"chat_history,omitempty"`
}

type cohereResponse struct {
	Text    string `json:"text"`
	Message string `json:"message"`
}

// NewCohere creates a Cohere provider.
func NewCohere(opts ...Option) (*Cohere, error) {
	cfg := defaultConfig()
	cfg.BaseURL = "https://api.cohere.ai/v1"
	cfg.Model = "command-r-plus"
	cfg.apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerCohere, ErrNoAPIKey)
	}

	return &Cohere{
		config: cfg,
		http:   cfg.httpClient(),
		logger: cfg.Logger.With("component", "provider.cohere"),
	}, nil
}

// Name implements Provider.
func (c *Cohere) Name() string { return providerCohere }

// Reply implements Provider.
func (c *Cohere) Reply(ctx context.Context, req *Request) (*Reply, error) {
	start := time.Now()

	body, err := json.Marshal(cohereRequest{
		Model:   c.config.Model,
		Message: req.Text,
		ChatHistory: []cohereMessage{
			{Role: "SYSTEM", Message: c.config.prompt(req)},
		},
	})
	if err != nil {
		return nil, WrapError(providerCohere, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.config.BaseURL+"/chat", bytes.NewReader(body))
	if err != nil {
		return nil, WrapError(providerCohere, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.config.APIKey)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return nil, WrapError(providerCohere, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.parseError(resp)
	}

	var result cohereResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, WrapError(providerCohere, fmt.Errorf("decode response: %w", err))
	}
	if result.Text == "" {
		return nil, WrapError(providerCohere, ErrEmptyReply)
	}

	c.logger.Debug("reply received", "chars", len(result.Text))
	return &Reply{
		Text:      result.Text,
		Source:    SourceCohere,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

func (c *Cohere) parseError(resp *http.Response) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	var body cohereResponse
	msg := string(data)
	if json.Unmarshal(data, &body) == nil && body.Message != "" {
		msg = body.Message
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Provider:   providerCohere,
	}
}

var _ Provider = (*Cohere)(nil)
