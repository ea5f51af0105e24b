package llm

import (
	"context"
	"sync"
)

// Mock replays canned replies in order, then repeats the last one. It is
// used for offline runs and tests.
type Mock struct {
	mu        sync.Mutex
	Replies   []string
	Err       error
	Requests  []Request
	callCount int
}

func NewMock(replies ...string) *Mock {
	return &Mock{Replies: replies}
}

func (m *Mock) Name() string { return "mock" }

func (m *Mock) Complete(ctx context.Context, req Request) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Requests = append(m.Requests, req)
	m.callCount++
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Err != nil {
		return "", m.Err
	}
	if len(m.Replies) == 0 {
		return "", nil
	}
	i := m.callCount - 1
	if i >= len(m.Replies) {
		i = len(m.Replies) - 1
	}
	return m.Replies[i], nil
}

// Calls reports how many times Complete ran.
func (m *Mock) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}
