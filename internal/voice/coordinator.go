// Package voice implements the client side of a half-duplex voice chat:
// continuous speech capture, delayed and interruptible playback of replies,
// and the mic toggle that arbitrates between them.
//
// Everything in this package runs on a single Loop goroutine. Host services
// (recognition, synthesis), timers and inbound frames post their callbacks
// onto the loop, so no state is locked. Late callbacks are filtered by
// session generation (capture) and armed request identity (playback).
package voice

import (
	"errors"
	"log/slog"
	"time"

	"github.com/raihanakbr/voice-chat-relay/internal/transport"
)

// ErrUnsupported is returned when the host lacks recognition or synthesis.
var ErrUnsupported = errors.New("voice: speech recognition or synthesis not supported")

// Config tunes the voice loop. Zero values take the package defaults.
type Config struct {
	Lang          string
	PreferredLang string
	RestartDelay  time.Duration
	MinGap        time.Duration
	Logger        *slog.Logger
}

// DefaultConfig returns the standard timings and en-IN locale.
func DefaultConfig() Config {
	return Config{
		Lang:          DefaultLang,
		PreferredLang: DefaultLang,
		RestartDelay:  DefaultRestartDelay,
		MinGap:        DefaultMinGap,
		Logger:        slog.Default(),
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Lang == "" {
		c.Lang = d.Lang
	}
	if c.PreferredLang == "" {
		c.PreferredLang = c.Lang
	}
	if c.RestartDelay <= 0 {
		c.RestartDelay = d.RestartDelay
	}
	if c.MinGap <= 0 {
		c.MinGap = d.MinGap
	}
	if c.Logger == nil {
		c.Logger = d.Logger
	}
	return c
}

// Host bundles the collaborators the coordinator drives.
type Host struct {
	Recognizer  Recognizer
	Synthesizer Synthesizer
	Sender      Sender
	UI          UI
	Clock       Clock
}

// Coordinator owns the session and mediates between capture and playback.
type Coordinator struct {
	sess     *Session
	capture  *Capture
	playback *Playback
	voices   *VoiceCatalog
	sender   Sender
	ui       UI
	logger   *slog.Logger
}

// NewCoordinator wires capture and playback around one session.
func NewCoordinator(h Host, cfg Config) (*Coordinator, error) {
	if h.Recognizer == nil || h.Synthesizer == nil {
		return nil, ErrUnsupported
	}
	if h.Sender == nil || h.UI == nil || h.Clock == nil {
		return nil, errors.New("voice: sender, UI and clock are required")
	}
	cfg = cfg.withDefaults()

	sess := &Session{}
	voices := NewVoiceCatalog(h.Synthesizer, cfg.PreferredLang)
	voices.Refresh()

	playback := NewPlayback(h.Synthesizer, voices, h.Clock, sess, cfg)
	capture := NewCapture(h.Recognizer, h.Clock, sess, playback, cfg)

	c := &Coordinator{
		sess:     sess,
		capture:  capture,
		playback: playback,
		voices:   voices,
		sender:   h.Sender,
		ui:       h.UI,
		logger:   cfg.Logger.With("component", "voice.coordinator"),
	}

	capture.OnUtterance(c.handleUtterance)
	capture.OnListening(h.UI.SetListening)
	playback.OnFinished(capture.Resume)
	return c, nil
}

// Start begins listening with a clean duplicate-suppression memory.
func (c *Coordinator) Start() error {
	if c.capture.Active() {
		return nil
	}
	c.sess.ForgetTranscript()
	return c.capture.Start()
}

// Stop halts capture and playback; neither restarts on its own.
func (c *Coordinator) Stop() {
	c.capture.Stop()
	c.playback.Cancel(true)
}

// Toggle is the mic button: a full stop when anything is active, otherwise
// a fresh start.
func (c *Coordinator) Toggle() error {
	if c.capture.Active() || c.playback.Armed() {
		c.logger.Info("manual stop: mic and playback")
		c.Stop()
		return nil
	}
	c.logger.Info("manual start: listening")
	return c.Start()
}

// HandleFrame displays and speaks a reply from the relay.
func (c *Coordinator) HandleFrame(f transport.Frame) {
	if f.Text == "" {
		return
	}
	c.ui.AppendMessage(f.Text, RoleAssistant, f.Source)
	c.playback.Speak(f.Text)
}

// VoicesChanged re-enumerates voices after the host reports a change.
func (c *Coordinator) VoicesChanged() {
	c.voices.Refresh()
}

// Voices returns the voice catalog for listing and selection.
func (c *Coordinator) Voices() *VoiceCatalog { return c.voices }

// Session returns a copy of the session state.
func (c *Coordinator) Session() Session { return *c.sess }

// Capture exposes the capture machine.
func (c *Coordinator) Capture() *Capture { return c.capture }

// Playback exposes the playback controller.
func (c *Coordinator) Playback() *Playback { return c.playback }

func (c *Coordinator) handleUtterance(u Utterance) {
	if !c.sender.Send(u.Text) {
		c.logger.Warn("channel not open, utterance dropped", "text", u.Text)
	}
	c.ui.AppendMessage(u.Text, RoleUser, "")
}
