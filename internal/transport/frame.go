package transport

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrMalformedFrame is returned for downstream payloads that are not a JSON
// object carrying a string "text" field.
var ErrMalformedFrame = errors.New("transport: malformed frame")

// Frame is a downstream payload sent by the relay server.
type Frame struct {
	Text   string `json:"text"`
	Source string `json:"source,omitempty"`
}

// DecodeFrame parses a downstream payload.
func DecodeFrame(data []byte) (Frame, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return Frame{}, fmt.Errorf("%w: %v", ErrMalformedFrame, err)
	}

	var f Frame
	text, ok := raw["text"]
	if !ok {
		return Frame{}, fmt.Errorf("%w: missing text", ErrMalformedFrame)
	}
	if err := json.Unmarshal(text, &f.Text); err != nil {
		return Frame{}, fmt.Errorf("%w: text: %v", ErrMalformedFrame, err)
	}
	if source, ok := raw["source"]; ok && string(source) != "null" {
		if err := json.Unmarshal(source, &f.Source); err != nil {
			return Frame{}, fmt.Errorf("%w: source: %v", ErrMalformedFrame, err)
		}
	}
	return f, nil
}

// EncodeFrame renders a frame for the wire.
func EncodeFrame(f Frame) ([]byte, error) {
	return json.Marshal(f)
}
