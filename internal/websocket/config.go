package websocket

import "time"

// Configuration constants
const (
	// Environment variable names for provider keys
	GeminiKeyEnvVar = "GEMINI_API_KEY"
	OpenAIKeyEnvVar = "OPENAI_API_KEY"
	CohereKeyEnvVar = "COHERE_API_KEY"
	PortEnvVar      = "PORT"

	DefaultPort = "3000"

	// RelayTimeout bounds one pass through the provider chain.
	RelayTimeout = 30 * time.Second

	// GeminiConnectTimeout bounds the per-connection upstream dial.
	GeminiConnectTimeout = 10 * time.Second

	// InboxSize is how many user messages may wait behind an in-flight relay.
	InboxSize = 16

	// AllProvidersFailedText is sent when no provider answers.
	AllProvidersFailedText = "All providers failed (Gemini, OpenAI, Cohere)."
)

// Session statuses
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
	StatusError     = "error"
)
