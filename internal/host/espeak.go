package host

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"

	"github.com/raihanakbr/voice-chat-relay/internal/voice"
)

// Synthesis error codes passed to SynthesisEvents.OnError.
const (
	ErrorInterrupted     = "interrupted"
	ErrorSynthesisFailed = "synthesis-failed"
)

// Espeak speaks through the espeak-ng binary, one process per utterance.
type Espeak struct {
	path   string
	loop   Poster
	logger *slog.Logger

	// newCmd builds the process for one utterance.
	newCmd func(voiceRef, text string) *exec.Cmd

	mu        sync.Mutex
	voices    []voice.VoiceProfile
	current   *exec.Cmd
	cancelled map[*exec.Cmd]bool
}

// NewEspeak creates a synthesizer. path defaults to "espeak-ng".
func NewEspeak(path string, loop Poster, logger *slog.Logger) *Espeak {
	if strings.TrimSpace(path) == "" {
		path = "espeak-ng"
	}
	if logger == nil {
		logger = slog.Default()
	}
	e := &Espeak{
		path:      path,
		loop:      loop,
		logger:    logger.With("component", "host.espeak"),
		cancelled: make(map[*exec.Cmd]bool),
	}
	e.newCmd = func(voiceRef, text string) *exec.Cmd {
		args := []string{}
		if voiceRef != "" {
			args = append(args, "-v", voiceRef)
		}
		args = append(args, "--", text)
		return exec.Command(e.path, args...)
	}
	return e
}

// Available reports whether the binary can be found.
func (e *Espeak) Available() bool {
	_, err := exec.LookPath(e.path)
	return err == nil
}

// LoadVoices enumerates installed voices. Call it off the loop, then tell
// the coordinator the voices changed.
func (e *Espeak) LoadVoices(ctx context.Context) error {
	out, err := exec.CommandContext(ctx, e.path, "--voices").Output()
	if err != nil {
		return fmt.Errorf("list voices: %w", err)
	}
	voices, err := ParseVoices(strings.NewReader(string(out)))
	if err != nil {
		return err
	}

	e.mu.Lock()
	e.voices = voices
	e.mu.Unlock()
	e.logger.Debug("voices loaded", "count", len(voices))
	return nil
}

// Voices implements voice.VoiceSource. Empty until LoadVoices succeeds.
func (e *Espeak) Voices() []voice.VoiceProfile {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]voice.VoiceProfile(nil), e.voices...)
}

// Speak implements voice.Synthesizer. Anything still speaking is cut off.
func (e *Espeak) Speak(req voice.PlaybackRequest, events voice.SynthesisEvents) {
	e.Cancel()

	cmd := e.newCmd(req.Voice.Ref, req.Text)
	if err := cmd.Start(); err != nil {
		e.logger.Warn("espeak failed to start", "err", err)
		e.loop.Post(func() { events.OnError(ErrorSynthesisFailed) })
		return
	}

	e.mu.Lock()
	e.current = cmd
	e.mu.Unlock()
	e.loop.Post(events.OnStart)

	go func() {
		err := cmd.Wait()

		e.mu.Lock()
		cancelled := e.cancelled[cmd]
		delete(e.cancelled, cmd)
		if e.current == cmd {
			e.current = nil
		}
		e.mu.Unlock()

		switch {
		case cancelled:
			e.loop.Post(func() { events.OnError(ErrorInterrupted) })
		case err != nil:
			e.logger.Warn("espeak exited with error", "err", err)
			e.loop.Post(func() { events.OnError(ErrorSynthesisFailed) })
		default:
			e.loop.Post(events.OnEnd)
		}
	}()
}

// Cancel implements voice.Synthesizer.
func (e *Espeak) Cancel() {
	e.mu.Lock()
	cmd := e.current
	e.current = nil
	if cmd != nil {
		e.cancelled[cmd] = true
	}
	e.mu.Unlock()

	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil && !errors.Is(err, os.ErrProcessDone) {
			e.logger.Debug("kill espeak", "err", err)
		}
	}
}

// ParseVoices reads the table printed by "espeak-ng --voices":
//
//	Pty Language       Age/Gender VoiceName          File          Other Languages
//	 5  en-gb           --/M      English_(Great_Britain) gmw/en   (en 2)
func ParseVoices(r io.Reader) ([]voice.VoiceProfile, error) {
	var voices []voice.VoiceProfile

	sc := bufio.NewScanner(r)
	header := true
	for sc.Scan() {
		line := sc.Text()
		if header {
			header = false
			if strings.HasPrefix(strings.TrimSpace(line), "Pty") {
				continue
			}
		}
		fields := strings.Fields(line)
		if len(fields) < 4 {
			continue
		}
		lang := fields[1]
		voices = append(voices, voice.VoiceProfile{
			Name: strings.ReplaceAll(fields[3], "_", " "),
			Lang: lang,
			Ref:  lang,
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read voices: %w", err)
	}
	return voices, nil
}

var _ voice.Synthesizer = (*Espeak)(nil)
