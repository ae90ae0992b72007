package provider

import "go.opentelemetry.io/otel"

const scopeName = "github.com/raihanakbr/voice-chat-relay/internal/provider"

var tracer = otel.Tracer(scopeName)
