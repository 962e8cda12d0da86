package gateway

import (
	"context"
	"sync"
)

// MockAdapter is an in-memory Adapter for tests. Outcomes can be scripted
// per message id; unscripted deletes succeed.
type MockAdapter struct {
	mu        sync.Mutex
	connected bool
	closed    bool
	deleted   []string
	calls     map[string]int
	outcomes  map[string][]Outcome
}

// NewMockAdapter creates an empty MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		calls:    make(map[string]int),
		outcomes: make(map[string][]Outcome),
	}
}

// Script sets the sequence of outcomes returned for a message id. Once the
// sequence is exhausted, further calls return OutcomeDeleted.
func (m *MockAdapter) Script(messageID string, outcomes ...Outcome) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes[messageID] = outcomes
}

func (m *MockAdapter) Connect(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockAdapter) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MockAdapter) DeleteMessage(ctx context.Context, channelID, messageID string) (Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := m.calls[messageID]
	m.calls[messageID] = n + 1

	seq := m.outcomes[messageID]
	out := OutcomeDeleted
	if n < len(seq) {
		out = seq[n]
	}
	if out == OutcomeDeleted {
		m.deleted = append(m.deleted, messageID)
	}
	return out, nil
}

// Deleted returns message ids whose delete calls returned OutcomeDeleted,
// in call order.
func (m *MockAdapter) Deleted() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.deleted...)
}

// Calls returns how many delete calls were issued for a message id.
func (m *MockAdapter) Calls(messageID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[messageID]
}
