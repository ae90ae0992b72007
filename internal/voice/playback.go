package voice

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultMinGap is the minimum silence between the user's last final
// transcript and the start of playback.
const DefaultMinGap = 1000 * time.Millisecond

// PlaybackState is the state of the playback controller.
type PlaybackState int

const (
	PlaybackIdle PlaybackState = iota
	// PlaybackPending means a request is armed and waiting out the gap or
	// the synthesizer's start callback.
	PlaybackPending
	PlaybackSpeaking
)

func (s PlaybackState) String() string {
	switch s {
	case PlaybackIdle:
		return "idle"
	case PlaybackPending:
		return "pending"
	case PlaybackSpeaking:
		return "speaking"
	default:
		return fmt.Sprintf("PlaybackState(%d)", int(s))
	}
}

// PlaybackRequest is one piece of assistant text to speak.
type PlaybackRequest struct {
	ID          string
	Text        string
	Voice       VoiceProfile
	ScheduledAt time.Time
}

// Playback speaks assistant replies, at most one at a time.
type Playback struct {
	synth  Synthesizer
	voices *VoiceCatalog
	clock  Clock
	sess   *Session
	minGap time.Duration
	logger *slog.Logger

	state PlaybackState
	// armed is the only request whose callbacks are honoured.
	armed *PlaybackRequest
	timer Timer

	onFinished func()
}

// NewPlayback creates an idle playback controller.
func NewPlayback(synth Synthesizer, voices *VoiceCatalog, clock Clock, sess *Session, cfg Config) *Playback {
	cfg = cfg.withDefaults()
	return &Playback{
		synth:      synth,
		voices:     voices,
		clock:      clock,
		sess:       sess,
		minGap:     cfg.MinGap,
		logger:     cfg.Logger.With("component", "voice.playback"),
		onFinished: func() {},
	}
}

// OnFinished registers a hook for requests that end or fail on their own,
// including replies dropped for lack of a voice. Cancelled requests do not
// trigger it.
func (p *Playback) OnFinished(fn func()) {
	if fn != nil {
		p.onFinished = fn
	}
}

// State returns the current state.
func (p *Playback) State() PlaybackState { return p.state }

// Speaking reports whether the synthesizer has started the armed request.
func (p *Playback) Speaking() bool { return p.state == PlaybackSpeaking }

// Armed reports whether a request is pending or speaking.
func (p *Playback) Armed() bool { return p.armed != nil }

// Speak replaces any armed request with text. Synthesis starts no sooner
// than the minimum gap after the user's last final transcript. It returns
// nil when no voice is available and the text was dropped.
func (p *Playback) Speak(text string) *PlaybackRequest {
	p.Cancel(true)

	voice, ok := p.voices.Resolve()
	if !ok {
		p.logger.Warn("no synthesis voice available, dropping reply")
		p.onFinished()
		return nil
	}

	now := p.clock.Now()
	delay := p.gapDelay(now)
	req := &PlaybackRequest{
		ID:          uuid.NewString(),
		Text:        text,
		Voice:       voice,
		ScheduledAt: now.Add(delay),
	}

	p.armed = req
	p.state = PlaybackPending
	p.timer = p.clock.AfterFunc(delay, func() { p.fire(req) })
	p.logger.Debug("playback scheduled", "id", req.ID, "delay", delay, "voice", voice.Name)
	return req
}

// Cancel halts pending or in-progress speech. With force the synthesizer is
// told to stop as well. Safe to call when nothing is armed.
func (p *Playback) Cancel(force bool) {
	if p.timer != nil {
		p.timer.Stop()
		p.timer = nil
	}
	if force {
		p.synth.Cancel()
	}
	p.armed = nil
	p.state = PlaybackIdle
	p.sess.Speaking = false
}

func (p *Playback) gapDelay(now time.Time) time.Duration {
	if p.sess.LastFinalAt.IsZero() {
		return 0
	}
	delay := p.minGap - now.Sub(p.sess.LastFinalAt)
	if delay < 0 {
		return 0
	}
	return delay
}

func (p *Playback) fire(req *PlaybackRequest) {
	if p.armed != req {
		return
	}
	p.timer = nil

	p.synth.Speak(*req, SynthesisEvents{
		OnStart: func() {
			if p.armed != req {
				return
			}
			p.state = PlaybackSpeaking
			p.sess.Speaking = true
			p.logger.Debug("speaking", "id", req.ID)
		},
		OnEnd: func() { p.finish(req, "") },
		OnError: func(code string) {
			p.finish(req, code)
		},
	})
}

func (p *Playback) finish(req *PlaybackRequest, code string) {
	if p.armed != req {
		return
	}
	if code != "" {
		p.logger.Warn("synthesis error", "id", req.ID, "error", code)
	} else {
		p.logger.Debug("finished speaking", "id", req.ID)
	}
	p.armed = nil
	p.state = PlaybackIdle
	p.sess.Speaking = false
	p.onFinished()
}
