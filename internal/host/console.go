package host

import (
	"fmt"
	"io"
	"sync"

	"github.com/raihanakbr/voice-chat-relay/internal/voice"
)

// ConsoleUI writes the conversation and mic state to a terminal.
type ConsoleUI struct {
	mu        sync.Mutex
	out       io.Writer
	listening bool
}

// NewConsoleUI creates a UI writing to out.
func NewConsoleUI(out io.Writer) *ConsoleUI {
	return &ConsoleUI{out: out}
}

// AppendMessage implements voice.UI.
func (u *ConsoleUI) AppendMessage(text string, role voice.Role, source string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	switch {
	case role == voice.RoleUser:
		fmt.Fprintf(u.out, "you: %s\n", text)
	case source != "":
		fmt.Fprintf(u.out, "ai [%s]: %s\n", source, text)
	default:
		fmt.Fprintf(u.out, "ai: %s\n", text)
	}
}

// SetListening implements voice.UI. Only changes are printed.
func (u *ConsoleUI) SetListening(listening bool) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if listening == u.listening {
		return
	}
	u.listening = listening
	if listening {
		fmt.Fprintln(u.out, "* mic on, listening")
	} else {
		fmt.Fprintln(u.out, "* mic off")
	}
}

// Alert prints a one-off notice.
func (u *ConsoleUI) Alert(msg string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fmt.Fprintf(u.out, "! %s\n", msg)
}

// ListVoices prints the catalog with the selected voice marked.
func (u *ConsoleUI) ListVoices(voices []voice.VoiceProfile, selected int) {
	u.mu.Lock()
	defer u.mu.Unlock()

	if len(voices) == 0 {
		fmt.Fprintln(u.out, "no voices available")
		return
	}
	for i, v := range voices {
		mark := " "
		if i == selected {
			mark = "*"
		}
		fmt.Fprintf(u.out, "%s %2d  %s (%s)\n", mark, i, v.Name, v.Lang)
	}
}

var _ voice.UI = (*ConsoleUI)(nil)
