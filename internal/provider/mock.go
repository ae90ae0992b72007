package provider

import (
	"context"
	"sync"
)

// Mock implements Provider for testing.
type Mock struct {
	// NameValue is returned by Name. Defaults to "mock".
	NameValue string

	// ReplyFunc is called when Reply is invoked.
	ReplyFunc func(ctx context.Context, req *Request) (*Reply, error)

	mu    sync.Mutex
	calls []string
}

// NewMock creates a mock that answers every request with text.
func NewMock(name, text string) *Mock {
	return &Mock{
		NameValue: name,
		ReplyFunc: func(ctx context.Context, req *Request) (*Reply, error) {
			return &Reply{Text: text, Source: name}, nil
		},
	}
}

// WithError creates a mock that always fails with err.
func WithError(name string, err error) *Mock {
	return &Mock{
		NameValue: name,
		ReplyFunc: func(ctx context.Context, req *Request) (*Reply, error) {
			return nil, WrapError(name, err)
		},
	}
}

// Name implements Provider.
func (m *Mock) Name() string {
	if m.NameValue == "" {
		return "mock"
	}
	return m.NameValue
}

// Reply calls ReplyFunc and records the request text.
func (m *Mock) Reply(ctx context.Context, req *Request) (*Reply, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req.Text)
	m.mu.Unlock()

	if m.ReplyFunc != nil {
		return m.ReplyFunc(ctx, req)
	}
	return nil, WrapError(m.Name(), ErrNotConnected)
}

// Calls returns the request texts seen so far.
func (m *Mock) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

var _ Provider = (*Mock)(nil)
