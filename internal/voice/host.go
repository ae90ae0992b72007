package voice

// Host collaborators. Implementations must deliver every callback on the
// loop goroutine (see Loop.Post); the voice types never lock.

// ErrorNotAllowed is the recognition error code for a denied microphone
// permission. It is terminal until the user starts capture again.
const ErrorNotAllowed = "not-allowed"

// RecognitionConfig is handed to the recognizer on every start.
type RecognitionConfig struct {
	Continuous     bool
	InterimResults bool
	Lang           string
}

// RecognitionResult is the latest result of a recognition session.
type RecognitionResult struct {
	Transcript string
	IsFinal    bool
}

// RecognitionEvents are the callbacks a recognizer invokes for one session.
type RecognitionEvents struct {
	OnStart       func()
	OnSpeechStart func()
	OnResult      func(RecognitionResult)
	OnError       func(code string)
	OnEnd         func()
}

// Recognizer is a continuous speech recognition service.
type Recognizer interface {
	// Start begins a session. Events for that session go to events.
	Start(cfg RecognitionConfig, events RecognitionEvents) error
	// Stop asks the session to finish gracefully.
	Stop()
	// Abort terminates the session immediately.
	Abort()
}

// SynthesisEvents are the callbacks for one spoken request.
type SynthesisEvents struct {
	OnStart func()
	OnEnd   func()
	OnError func(code string)
}

// Synthesizer is a speech synthesis service.
type Synthesizer interface {
	VoiceSource
	Speak(req PlaybackRequest, events SynthesisEvents)
	// Cancel halts current and queued speech. Safe to call when idle.
	Cancel()
}

// VoiceSource enumerates synthesis voices. The list may be empty until the
// host has loaded it.
type VoiceSource interface {
	Voices() []VoiceProfile
}

// Role tells the UI who authored a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "ai"
)

// UI is the message list and mic indicator.
type UI interface {
	AppendMessage(text string, role Role, source string)
	SetListening(listening bool)
}

// Sender carries accepted utterances upstream. Send returns false when the
// text was not sent.
type Sender interface {
	Send(text string) bool
}
