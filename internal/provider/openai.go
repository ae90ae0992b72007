package provider

import (
	"context"
	"errors"
	"log/slog"
	"time"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

const providerOpenAI = "openai"

// OpenAI answers through the Chat Completions API.
type OpenAI struct {
	client openai.Client
	config *Config
	logger *slog.Logger
}

// NewOpenAI creates an OpenAI provider.
func NewOpenAI(opts ...Option) (*OpenAI, error) {
	cfg := defaultConfig()
	cfg.BaseURL = "https://api.openai.com/v1"
	cfg.Model = "gpt-3.5-turbo"
	cfg.apply(opts...)

	if cfg.APIKey == "" {
		return nil, WrapError(providerOpenAI, ErrNoAPIKey)
	}

	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithHTTPClient(cfg.httpClient()),
		option.WithMaxRetries(0),
	)

	return &OpenAI{
		client: client,
		config: cfg,
		logger: cfg.Logger.With("component", "provider.openai"),
	}, nil
}

// Name implements Provider.
func (o *OpenAI) Name() string { return providerOpenAI }

// Reply implements Provider.
func (o *OpenAI) Reply(ctx context.Context, req *Request) (*Reply, error) {
	start := time.Now()

	resp, err := o.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(o.config.prompt(req)),
			openai.UserMessage(req.Text),
		},
		Model: openai.ChatModel(o.config.Model),
	})
	if err != nil {
		var apiErr *openai.Error
		if errors.As(err, &apiErr) {
			return nil, &APIError{
				StatusCode: apiErr.StatusCode,
				Message:    apiErr.Message,
				Provider:   providerOpenAI,
			}
		}
		return nil, WrapError(providerOpenAI, err)
	}

	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return nil, WrapError(providerOpenAI, ErrEmptyReply)
	}

	text := resp.Choices[0].Message.Content
	o.logger.Debug("reply received", "model", resp.Model, "chars", len(text))

	return &Reply{
		Text:      text,
		Source:    SourceOpenAI,
		LatencyMs: time.Since(start).Milliseconds(),
	}, nil
}

var _ Provider = (*OpenAI)(nil)
