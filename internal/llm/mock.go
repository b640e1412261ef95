package llm

import (
	"context"
	"io"
	"strings"
)

// MockStreamClient permite tests sin llamar a un proveedor real. Body se
// devuelve tal cual como stream; Calls cuenta las aperturas.
type MockStreamClient struct {
	Body  string
	Err   error
	Calls int

	LastMessages []Message
}

func (m *MockStreamClient) Stream(_ context.Context, messages []Message) (io.ReadCloser, error) {
	m.Calls++
	m.LastMessages = messages
	if m.Err != nil {
		return nil, m.Err
	}
	return io.NopCloser(strings.NewReader(m.Body)), nil
}
