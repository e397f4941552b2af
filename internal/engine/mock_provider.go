package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/Veraticus/the-mail-must-flow/internal/model"
	"github.com/Veraticus/the-mail-must-flow/internal/service"
)

// MockProvider is a test implementation of the MailProvider interface. It
// serves a fixed set of unread messages and records every send and mark-read
// call so tests can assert on exact provider traffic.
type MockProvider struct {
	Unread      []model.RawMessage
	FetchErr    error
	SendErr     error
	MarkReadErr error

	sends     []service.Reply
	markReads []string
	mu        sync.Mutex
}

// NewMockProvider creates a mock provider with no unread messages.
func NewMockProvider() *MockProvider {
	return &MockProvider{}
}

// FetchUnread returns the configured unread messages, capped at max.
func (m *MockProvider) FetchUnread(_ context.Context, _ string, max int) ([]model.RawMessage, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FetchErr != nil {
		return nil, m.FetchErr
	}
	if len(m.Unread) > max {
		return m.Unread[:max], nil
	}
	return m.Unread, nil
}

// SendReply records the reply and returns a deterministic receipt ID.
func (m *MockProvider) SendReply(_ context.Context, _ string, reply service.Reply) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.SendErr != nil {
		return "", m.SendErr
	}
	m.sends = append(m.sends, reply)
	return fmt.Sprintf("receipt-%d", len(m.sends)), nil
}

// MarkRead records the message ID that was marked read.
func (m *MockProvider) MarkRead(_ context.Context, _ string, providerMessageID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.MarkReadErr != nil {
		return m.MarkReadErr
	}
	m.markReads = append(m.markReads, providerMessageID)
	return nil
}

// Sends returns a copy of every reply sent so far.
func (m *MockProvider) Sends() []service.Reply {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]service.Reply, len(m.sends))
	copy(out, m.sends)
	return out
}

// MarkReads returns a copy of every message ID marked read so far.
func (m *MockProvider) MarkReads() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.markReads))
	copy(out, m.markReads)
	return out
}
