package provider

import (
	"log/slog"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// Config holds provider configuration.
type Config struct {
	BaseURL      string
	APIKey       string
	Model        string
	SystemPrompt string

	Timeout    time.Duration
	HTTPClient *http.Client
	Dialer     WebsocketDialer

	Logger *slog.Logger
}

// Option configures a provider.
type Option func(*Config)

// WithBaseURL overrides the provider's API endpoint.
func WithBaseURL(url string) Option {
	return func(c *Config) { c.BaseURL = url }
}

// WithAPIKey sets the API key.
func WithAPIKey(key string) Option {
	return func(c *Config) { c.APIKey = key }
}

// WithModel sets the model.
func WithModel(model string) Option {
	return func(c *Config) { c.Model = model }
}

// WithSystemPrompt replaces DefaultSystemPrompt.
func WithSystemPrompt(prompt string) Option {
	return func(c *Config) { c.SystemPrompt = prompt }
}

// WithTimeout sets the HTTP request timeout, or the turn timeout of a live
// session.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithHTTPClient replaces the instrumented default client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) { c.HTTPClient = client }
}

// WithDialer sets the WebSocket dialer for session-based providers.
func WithDialer(d WebsocketDialer) Option {
	return func(c *Config) { c.Dialer = d }
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

func defaultConfig() *Config {
	return &Config{
		SystemPrompt: DefaultSystemPrompt,
		Timeout:      30 * time.Second,
		Logger:       slog.Default(),
	}
}

func (c *Config) apply(opts ...Option) {
	for _, opt := range opts {
		opt(c)
	}
}

func (c *Config) httpClient() *http.Client {
	if c.HTTPClient != nil {
		return c.HTTPClient
	}
	return &http.Client{
		Timeout:   c.Timeout,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
}

func (c *Config) prompt(req *Request) string {
	if req.SystemPrompt != "" {
		return req.SystemPrompt
	}
	return c.SystemPrompt
}
