package textextract

import (
	"context"
	"sync/atomic"
)

// MockMethod returns fixed output and counts its calls.
type MockMethod struct {
	MockName string
	MockText string
	MockErr  error
	// Block makes Extract wait for context cancellation.
	Block bool

	calls atomic.Int32
}

// NewMockMethod creates a MockMethod with the given output.
func NewMockMethod(name, text string, err error) *MockMethod {
	return &MockMethod{MockName: name, MockText: text, MockErr: err}
}

func (m *MockMethod) Name() string { return m.MockName }

func (m *MockMethod) Extract(ctx context.Context, _ []byte) (string, error) {
	m.calls.Add(1)
	if m.Block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if m.MockErr != nil {
		return "", m.MockErr
	}
	return m.MockText, nil
}

// Calls reports how many times Extract ran.
func (m *MockMethod) Calls() int {
	return int(m.calls.Load())
}
