package transport

import (
	"errors"
	"testing"
)

func TestDecodeFrame(t *testing.T) {
	tests := []struct {
		name    string
		in      string
		want    Frame
		wantErr bool
	}{
		{name: "text and source", in: `{"text":"Hi there!","source":"Gemini"}`, want: Frame{Text: "Hi there!", Source: "Gemini"}},
		{name: "text only", in: `{"text":"ok"}`, want: Frame{Text: "ok"}},
		{name: "null source", in: `{"text":"ok","source":null}`, want: Frame{Text: "ok"}},
		{name: "not json", in: `hello`, wantErr: true},
		{name: "array", in: `["text"]`, wantErr: true},
		{name: "missing text", in: `{"source":"OpenAI"}`, wantErr: true},
		{name: "numeric text", in: `{"text":42}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DecodeFrame([]byte(tt.in))
			if tt.wantErr {
				if !errors.Is(err, ErrMalformedFrame) {
					t.Fatalf("expected ErrMalformedFrame, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestEncodeFrameOmitsEmptySource(t *testing.T) {
	data, err := EncodeFrame(Frame{Text: "hi"})
	if err != nil {
		t.Fatal(err)
	}
	if string(data) != `{"text":"hi"}` {
		t.Errorf("got %s", data)
	}
}
