package voice

import (
	"errors"
	"io"
	"log/slog"
	"sort"
	"time"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Logger = testLogger
	return cfg
}

// fakeClock is a manual clock. Timers fire synchronously inside Advance.
type fakeClock struct {
	now    time.Time
	timers []*fakeTimer
}

type fakeTimer struct {
	at      time.Time
	fn      func()
	stopped bool
	fired   bool
}

func (t *fakeTimer) Stop() bool {
	active := !t.stopped && !t.fired
	t.stopped = true
	return active
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) AfterFunc(d time.Duration, fn func()) Timer {
	t := &fakeTimer{at: c.now.Add(d), fn: fn}
	c.timers = append(c.timers, t)
	return t
}

// Advance moves time forward, firing due timers in order, including timers
// scheduled by earlier ones.
func (c *fakeClock) Advance(d time.Duration) {
	end := c.now.Add(d)
	for {
		next := c.nextDue(end)
		if next == nil {
			break
		}
		if next.at.After(c.now) {
			c.now = next.at
		}
		next.fired = true
		next.fn()
	}
	c.now = end
}

func (c *fakeClock) nextDue(end time.Time) *fakeTimer {
	var pending []*fakeTimer
	for _, t := range c.timers {
		if !t.stopped && !t.fired && !t.at.After(end) {
			pending = append(pending, t)
		}
	}
	if len(pending) == 0 {
		return nil
	}
	sort.SliceStable(pending, func(i, j int) bool { return pending[i].at.Before(pending[j].at) })
	return pending[0]
}

// pendingTimers counts timers that have neither fired nor been stopped.
func (c *fakeClock) pendingTimers() int {
	n := 0
	for _, t := range c.timers {
		if !t.stopped && !t.fired {
			n++
		}
	}
	return n
}

// fakeRecognizer records calls and lets tests emit host events.
type fakeRecognizer struct {
	starts   int
	stops    int
	aborts   int
	cfg      RecognitionConfig
	events   RecognitionEvents
	history  []RecognitionEvents
	failNext error
}

func (r *fakeRecognizer) Start(cfg RecognitionConfig, events RecognitionEvents) error {
	if r.failNext != nil {
		err := r.failNext
		r.failNext = nil
		return err
	}
	r.starts++
	r.cfg = cfg
	r.events = events
	r.history = append(r.history, events)
	return nil
}

func (r *fakeRecognizer) Stop()  { r.stops++ }
func (r *fakeRecognizer) Abort() { r.aborts++ }

func (r *fakeRecognizer) start()              { r.events.OnStart() }
func (r *fakeRecognizer) speechStart()        { r.events.OnSpeechStart() }
func (r *fakeRecognizer) interim(text string) { r.events.OnResult(RecognitionResult{Transcript: text}) }
func (r *fakeRecognizer) final(text string) {
	r.events.OnResult(RecognitionResult{Transcript: text, IsFinal: true})
}
func (r *fakeRecognizer) fail(code string)               { r.events.OnError(code) }
func (r *fakeRecognizer) end()                           { r.events.OnEnd() }
func (r *fakeRecognizer) session(i int) RecognitionEvents { return r.history[i] }

var errRecognizerBusy = errors.New("recognizer busy")

// fakeSynth records requests and lets tests drive synthesis callbacks.
type fakeSynth struct {
	voices   []VoiceProfile
	spoken   []PlaybackRequest
	events   []SynthesisEvents
	cancels  int
	startsAt []time.Time
	clock    *fakeClock
}

func (s *fakeSynth) Voices() []VoiceProfile { return s.voices }

func (s *fakeSynth) Speak(req PlaybackRequest, events SynthesisEvents) {
	s.spoken = append(s.spoken, req)
	s.events = append(s.events, events)
	if s.clock != nil {
		s.startsAt = append(s.startsAt, s.clock.Now())
	}
}

func (s *fakeSynth) Cancel() { s.cancels++ }

func (s *fakeSynth) last() SynthesisEvents { return s.events[len(s.events)-1] }

// fakeSender records sent text; open controls whether Send succeeds.
type fakeSender struct {
	open bool
	sent []string
}

func (s *fakeSender) Send(text string) bool {
	if !s.open {
		return false
	}
	s.sent = append(s.sent, text)
	return true
}

type uiMessage struct {
	text   string
	role   Role
	source string
}

type fakeUI struct {
	messages  []uiMessage
	listening []bool
}

func (u *fakeUI) AppendMessage(text string, role Role, source string) {
	u.messages = append(u.messages, uiMessage{text: text, role: role, source: source})
}

func (u *fakeUI) SetListening(listening bool) {
	u.listening = append(u.listening, listening)
}

var testVoices = []VoiceProfile{
	{Name: "Samantha", Lang: "en-US", Ref: "samantha"},
	{Name: "Rishi", Lang: "en-IN", Ref: "rishi"},
	{Name: "Daniel", Lang: "en-GB", Ref: "daniel"},
}
