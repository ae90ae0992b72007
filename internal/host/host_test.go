package host

import (
	"bytes"
	"errors"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/raihanakbr/voice-chat-relay/internal/voice"
)

var testLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

// queuePoster collects posted callbacks until drain runs them.
type queuePoster struct {
	mu  sync.Mutex
	fns []func()
}

func (p *queuePoster) Post(fn func()) bool {
	p.mu.Lock()
	p.fns = append(p.fns, fn)
	p.mu.Unlock()
	return true
}

func (p *queuePoster) drain() {
	for {
		p.mu.Lock()
		fns := p.fns
		p.fns = nil
		p.mu.Unlock()
		if len(fns) == 0 {
			return
		}
		for _, fn := range fns {
			fn()
		}
	}
}

type recorded struct {
	log []string
}

func (r *recorded) events() voice.RecognitionEvents {
	return voice.RecognitionEvents{
		OnStart:       func() { r.log = append(r.log, "start") },
		OnSpeechStart: func() { r.log = append(r.log, "speech") },
		OnResult: func(res voice.RecognitionResult) {
			kind := "interim"
			if res.IsFinal {
				kind = "final"
			}
			r.log = append(r.log, kind+":"+res.Transcript)
		},
		OnError: func(code string) { r.log = append(r.log, "error:"+code) },
		OnEnd:   func() { r.log = append(r.log, "end") },
	}
}

func TestLineRecognizerEvents(t *testing.T) {
	loop := &queuePoster{}
	rec := NewLineRecognizer(loop, testLogger)
	got := &recorded{}

	if rec.Feed("ignored while off") {
		t.Error("line consumed with no session")
	}
	if err := rec.Start(voice.RecognitionConfig{Lang: "en-IN"}, got.events()); err != nil {
		t.Fatal(err)
	}
	if err := rec.Start(voice.RecognitionConfig{}, got.events()); !errors.Is(err, ErrBusy) {
		t.Errorf("second Start err = %v, want ErrBusy", err)
	}

	for _, line := range []string{"!speech", "~what is", "", "what is the price\r\n", "!error network"} {
		rec.Feed(line)
	}
	loop.drain()

	want := []string{"start", "speech", "interim:what is", "final:what is the price", "error:network", "end"}
	if strings.Join(got.log, "|") != strings.Join(want, "|") {
		t.Errorf("events = %v, want %v", got.log, want)
	}
	if rec.Listening() {
		t.Error("session should end after an error")
	}
}

func TestLineRecognizerDenyAndStop(t *testing.T) {
	loop := &queuePoster{}
	rec := NewLineRecognizer(loop, testLogger)

	denied := &recorded{}
	rec.Start(voice.RecognitionConfig{}, denied.events())
	rec.Feed("!deny")
	loop.drain()
	if strings.Join(denied.log, "|") != "start|error:not-allowed|end" {
		t.Errorf("deny events = %v", denied.log)
	}

	stopped := &recorded{}
	rec.Start(voice.RecognitionConfig{}, stopped.events())
	rec.Stop()
	rec.Abort()
	loop.drain()
	if strings.Join(stopped.log, "|") != "start|end" {
		t.Errorf("stop events = %v, want a single end", stopped.log)
	}
}

func TestParseVoices(t *testing.T) {
	out := `Pty Language       Age/Gender VoiceName          File                 Other Languages
 5  af              --/M      Afrikaans          gmw/af
 2  en-gb           --/M      English_(Great_Britain) gmw/en               (en 2)
 5  en-in           --/M      English_(India)    gmw/en-IN
`
	voices, err := ParseVoices(strings.NewReader(out))
	if err != nil {
		t.Fatal(err)
	}
	want := []voice.VoiceProfile{
		{Name: "Afrikaans", Lang: "af", Ref: "af"},
		{Name: "English (Great Britain)", Lang: "en-gb", Ref: "en-gb"},
		{Name: "English (India)", Lang: "en-in", Ref: "en-in"},
	}
	if len(voices) != len(want) {
		t.Fatalf("voices = %+v", voices)
	}
	for i := range want {
		if voices[i] != want[i] {
			t.Errorf("voice %d = %+v, want %+v", i, voices[i], want[i])
		}
	}
}

// synthRecorder captures synthesis callbacks and signals each one.
type synthRecorder struct {
	mu  sync.Mutex
	log []string
	ch  chan struct{}
}

func newSynthRecorder() *synthRecorder { return &synthRecorder{ch: make(chan struct{}, 8)} }

func (r *synthRecorder) add(s string) {
	r.mu.Lock()
	r.log = append(r.log, s)
	r.mu.Unlock()
	r.ch <- struct{}{}
}

func (r *synthRecorder) events() voice.SynthesisEvents {
	return voice.SynthesisEvents{
		OnStart: func() { r.add("start") },
		OnEnd:   func() { r.add("end") },
		OnError: func(code string) { r.add("error:" + code) },
	}
}

// runPoster executes callbacks right away.
type runPoster struct{}

func (runPoster) Post(fn func()) bool { fn(); return true }

func waitEvents(t *testing.T, r *synthRecorder, n int) []string {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-r.ch:
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d of %d events: %v", i, n, r.log)
		}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.log...)
}

func requireBinary(t *testing.T, name string) string {
	t.Helper()
	path, err := exec.LookPath(name)
	if err != nil {
		t.Skipf("%s not available", name)
	}
	return path
}

func TestEspeakSpeakLifecycle(t *testing.T) {
	sh := requireBinary(t, "sh")

	tests := []struct {
		name   string
		script string
		want   string
	}{
		{"ok", "exit 0", "start|end"},
		{"failure", "exit 3", "start|error:synthesis-failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := NewEspeak("", runPoster{}, testLogger)
			e.newCmd = func(voiceRef, text string) *exec.Cmd { return exec.Command(sh, "-c", tt.script) }

			r := newSynthRecorder()
			e.Speak(voice.PlaybackRequest{Text: "hello"}, r.events())
			if got := strings.Join(waitEvents(t, r, 2), "|"); got != tt.want {
				t.Errorf("events = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestEspeakCancelInterrupts(t *testing.T) {
	sh := requireBinary(t, "sh")

	e := NewEspeak("", runPoster{}, testLogger)
	e.newCmd = func(voiceRef, text string) *exec.Cmd { return exec.Command(sh, "-c", "exec sleep 10") }

	r := newSynthRecorder()
	e.Speak(voice.PlaybackRequest{Text: "a long answer"}, r.events())
	waitEvents(t, r, 1)

	e.Cancel()
	if got := strings.Join(waitEvents(t, r, 1), "|"); got != "start|error:interrupted" {
		t.Errorf("events = %s", got)
	}
	e.Cancel()
}

func TestEspeakPassesVoiceAndText(t *testing.T) {
	e := NewEspeak("/usr/bin/espeak-ng", runPoster{}, testLogger)
	cmd := e.newCmd("en-in", "-hello")
	want := []string{"/usr/bin/espeak-ng", "-v", "en-in", "--", "-hello"}
	if strings.Join(cmd.Args, " ") != strings.Join(want, " ") {
		t.Errorf("args = %q, want %q", cmd.Args, want)
	}
}

func TestConsoleUI(t *testing.T) {
	var buf bytes.Buffer
	ui := NewConsoleUI(&buf)

	ui.SetListening(true)
	ui.SetListening(true)
	ui.AppendMessage("hello", voice.RoleUser, "")
	ui.AppendMessage("Hi there!", voice.RoleAssistant, "Gemini")
	ui.SetListening(false)
	ui.ListVoices([]voice.VoiceProfile{{Name: "Rishi", Lang: "en-IN"}, {Name: "Daniel", Lang: "en-GB"}}, 0)

	want := "* mic on, listening\n" +
		"you: hello\n" +
		"ai [Gemini]: Hi there!\n" +
		"* mic off\n" +
		"*  0  Rishi (en-IN)\n" +
		"   1  Daniel (en-GB)\n"
	if buf.String() != want {
		t.Errorf("output:\n%s\nwant:\n%s", buf.String(), want)
	}
}
