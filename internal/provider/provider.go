// Package provider relays a single user message to a remote language model.
//
// Providers share one contract: text in, {text, source} out. A Chain tries
// them in order and returns the first reply, so the relay server never
// nests fallback handlers.
//
// Example:
//
//	openai, _ := provider.NewOpenAI(provider.WithAPIKey(os.Getenv("OPENAI_API_KEY")))
//	cohere, _ := provider.NewCohere(provider.WithAPIKey(os.Getenv("COHERE_API_KEY")))
//	chain, _ := provider.NewChain(openai, cohere)
//
//	reply, err := chain.Reply(ctx, &provider.Request{Text: "Tell me about the RV400"})
package provider

import "context"

// Display names sent to clients as the reply source.
const (
	SourceGemini = "Gemini"
	SourceOpenAI = "OpenAI"
	SourceCohere = "Cohere"
	SourceNone   = "None"
)

// DefaultSystemPrompt frames every request.
const DefaultSystemPrompt = "You are Revolt Motors' AI Assistant. Be polite and concise. " +
	"Only talk about Revolt Motors, its EV products, general EV info, and polite small talk. " +
	"Never mention APIs, quotas, or errors. If you don't know, say: " +
	"'I'm not sure about that, but I can help you with Revolt Motors or EV questions.'"

// Provider answers one user message.
type Provider interface {
	// Name identifies the provider in logs and traces.
	Name() string

	// Reply returns the model's answer to req. An empty answer is an error.
	Reply(ctx context.Context, req *Request) (*Reply, error)
}

// Request is a single user message.
type Request struct {
	Text string

	// SystemPrompt overrides the provider's configured prompt.
	SystemPrompt string
}

// Reply is a provider's answer.
type Reply struct {
	Text string

	// Source is the display name of the provider that answered.
	Source string

	// LatencyMs is the time the provider took to answer.
	LatencyMs int64
}
