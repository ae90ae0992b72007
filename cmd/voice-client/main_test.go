package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/raihanakbr/voice-chat-relay/internal/host"
	"github.com/raihanakbr/voice-chat-relay/internal/voice"
)

type nopSender struct{}

func (nopSender) Send(string) bool { return true }

// runConsole feeds input to readConsole against a live loop and returns
// what the console printed.
func runConsole(t *testing.T, input string) string {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	loop := voice.NewLoop()
	done := make(chan struct{})
	go func() {
		defer close(done)
		loop.Run(ctx)
	}()

	var out bytes.Buffer
	ui := host.NewConsoleUI(&out)
	rec := host.NewLineRecognizer(loop, logger)
	cfg := voice.DefaultConfig()
	cfg.Logger = logger
	coord, err := voice.NewCoordinator(voice.Host{
		Recognizer:  rec,
		Synthesizer: host.NewEspeak("espeak-ng-missing", loop, logger),
		Sender:      nopSender{},
		UI:          ui,
		Clock:       loop.Clock(),
	}, cfg)
	if err != nil {
		t.Fatal(err)
	}

	readConsole(ctx, strings.NewReader(input), loop, rec, coord, ui, func() bool { return false })
	cancel()
	<-done
	return out.String()
}

func TestHelpListsEveryCommand(t *testing.T) {
	out := runConsole(t, "/help\n")
	for _, want := range []string{"/mic", "/voices", "/voice N", "/status", "/help", "/quit", "~text", "!speech", "!deny", "!error code", "!end"} {
		if !strings.Contains(out, want) {
			t.Errorf("help output lacks %q:\n%s", want, out)
		}
	}
}

func TestStatusReportsSession(t *testing.T) {
	out := runConsole(t, "/status\n")
	if !strings.Contains(out, "relay: off, listening: off, recognizer: off, speaking: off") {
		t.Errorf("idle status = %q", out)
	}

	// The second /status runs after the recognizer's start event.
	out = runConsole(t, "/mic\n/status\n/status\n")
	if !strings.Contains(out, "relay: off, listening: on, recognizer: on, speaking: off") {
		t.Errorf("listening status = %q", out)
	}

	out = runConsole(t, "/mic\n/mic\n/status\n")
	if !strings.Contains(out, "relay: off, listening: off, recognizer: off, speaking: off (stopped by you)") {
		t.Errorf("stopped status = %q", out)
	}
}

func TestStatusLine(t *testing.T) {
	tests := []struct {
		name        string
		sess        voice.Session
		recognizing bool
		connected   bool
		want        string
	}{
		{"idle", voice.Session{}, false, false, "relay: off, listening: off, recognizer: off, speaking: off"},
		{"listening", voice.Session{Listening: true}, true, true, "relay: on, listening: on, recognizer: on, speaking: off"},
		{"speaking", voice.Session{Speaking: true}, false, true, "relay: on, listening: off, recognizer: off, speaking: on"},
		{"manual stop", voice.Session{ManualStop: true}, false, false, "relay: off, listening: off, recognizer: off, speaking: off (stopped by you)"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusLine(tt.sess, tt.recognizing, tt.connected); got != tt.want {
				t.Errorf("statusLine = %q, want %q", got, tt.want)
			}
		})
	}
}
