package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	cli "github.com/spf13/pflag"
	log "log/slog"

	"github.com/raihanakbr/voice-chat-relay/internal/provider"
	"github.com/raihanakbr/voice-chat-relay/internal/websocket"
)

var logLevelMap = map[string]log.Level{
	"debug": log.LevelDebug,
	"info":  log.LevelInfo,
	"warn":  log.LevelWarn,
	"error": log.LevelError,
}

func main() {
	envFile := cli.StringP("env", "e", ".env", "Env file path")
	port := cli.StringP("port", "p", "", "Listen port (default $PORT or "+websocket.DefaultPort+")")
	staticDir := cli.StringP("static", "s", "", "Directory served on / for non-WebSocket requests")
	logLevel := cli.StringP("log", "l", "info", "Log level")
	cli.Parse()

	log.SetDefault(log.New(tint.NewHandler(os.Stdout, &tint.Options{
		Level:      logLevelMap[*logLevel],
		TimeFormat: time.TimeOnly,
	})))

	// Load environment variables from .env if present
	if err := godotenv.Load(*envFile); err != nil {
		log.Info("No .env file found; using system environment variables", "path", *envFile)
	}

	if *port == "" {
		*port = os.Getenv(websocket.PortEnvVar)
	}
	if *port == "" {
		*port = websocket.DefaultPort
	}

	relay := buildFallbacks()
	newLive := liveFactory()
	if relay == nil && newLive == nil {
		log.Error("No provider keys set",
			"vars", []string{websocket.GeminiKeyEnvVar, websocket.OpenAIKeyEnvVar, websocket.CohereKeyEnvVar})
		os.Exit(1)
	}

	server := websocket.NewServer(relay, newLive, log.Default())
	server.StaticDir = *staticDir

	httpServer := &http.Server{
		Addr:    ":" + *port,
		Handler: server.Routes(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		httpServer.Shutdown(shutdownCtx)
	}()

	log.Info("Server running", "url", "http://localhost:"+*port)
	log.Info("WebSocket endpoint", "url", "ws://localhost:"+*port+"/ws?connection_id=<id>")

	if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Error("Server failed to start", "err", err)
		os.Exit(1)
	}
}

// buildFallbacks returns the OpenAI then Cohere chain, skipping providers
// without keys. Nil when neither is configured.
func buildFallbacks() *provider.Chain {
	var providers []provider.Provider

	if key := os.Getenv(websocket.OpenAIKeyEnvVar); key != "" {
		p, err := provider.NewOpenAI(provider.WithAPIKey(key))
		if err != nil {
			log.Warn("OpenAI disabled", "err", err)
		} else {
			providers = append(providers, p)
		}
	} else {
		log.Warn("Missing key, OpenAI fallback disabled", "var", websocket.OpenAIKeyEnvVar)
	}

	if key := os.Getenv(websocket.CohereKeyEnvVar); key != "" {
		p, err := provider.NewCohere(provider.WithAPIKey(key))
		if err != nil {
			log.Warn("Cohere disabled", "err", err)
		} else {
			providers = append(providers, p)
		}
	} else {
		log.Warn("Missing key, Cohere fallback disabled", "var", websocket.CohereKeyEnvVar)
	}

	chain, err := provider.NewChain(providers...)
	if err != nil {
		return nil
	}
	return chain
}

// liveFactory returns a constructor for per-connection Gemini Live sessions,
// or nil when no key is set.
func liveFactory() func() (websocket.LiveSession, error) {
	key := os.Getenv(websocket.GeminiKeyEnvVar)
	if key == "" {
		log.Error("Missing key, Gemini Live disabled", "var", websocket.GeminiKeyEnvVar)
		return nil
	}
	return func() (websocket.LiveSession, error) {
		live, err := provider.NewGeminiLive(provider.WithAPIKey(key))
		if err != nil {
			return nil, err
		}
		return live, nil
	}
}
