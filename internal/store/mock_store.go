// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu            sync.RWMutex
	conversations map[string]*Conversation // keyed by conversation ID
	messages      map[string][]*Message    // keyed by conversation ID, insertion order
	nextSeq       int64
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		conversations: make(map[string]*Conversation),
		messages:      make(map[string][]*Message),
	}
}

// UpsertConversation stores or updates a conversation with last-write-wins
// product context (nil context preserves the stored one).
func (m *MockStore) UpsertConversation(ctx context.Context, conv *Conversation) (*Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	existing, ok := m.conversations[conv.ID]
	if !ok {
		// Copy to avoid external modification
		c := *conv
		m.conversations[c.ID] = &c
		out := c
		return &out, nil
	}

	if conv.ProductContext != nil {
		existing.ProductContext = conv.ProductContext
	}
	existing.LastActivity = conv.LastActivity
	out := *existing
	return &out, nil
}

// GetConversation retrieves a conversation by ID.
func (m *MockStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	conv, ok := m.conversations[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *conv
	return &out, nil
}

// ListConversationsByParticipant returns the account's conversations, most
// recently active first.
func (m *MockStore) ListConversationsByParticipant(ctx context.Context, account string) ([]*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var convs []*Conversation
	for _, conv := range m.conversations {
		if conv.HasParticipant(account) {
			c := *conv
			convs = append(convs, &c)
		}
	}

	sort.Slice(convs, func(i, j int) bool {
		return convs[i].LastActivity.After(convs[j].LastActivity)
	})
	return convs, nil
}

// TouchConversation advances last_activity, never backwards.
func (m *MockStore) TouchConversation(ctx context.Context, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	conv, ok := m.conversations[id]
	if !ok {
		return ErrNotFound
	}
	if at.After(conv.LastActivity) {
		conv.LastActivity = at
	}
	return nil
}

// SaveMessage appends a message and assigns its Seq.
func (m *MockStore) SaveMessage(ctx context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextSeq++
	msg.Seq = m.nextSeq

	mc := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &mc)
	return nil
}

// ListMessages returns messages sorted by (CreatedAt, Seq).
func (m *MockStore) ListMessages(ctx context.Context, conversationID string) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored := m.messages[conversationID]
	msgs := make([]*Message, 0, len(stored))
	for _, msg := range stored {
		mc := *msg
		msgs = append(msgs, &mc)
	}

	sort.Slice(msgs, func(i, j int) bool {
		if !msgs[i].CreatedAt.Equal(msgs[j].CreatedAt) {
			return msgs[i].CreatedAt.Before(msgs[j].CreatedAt)
		}
		return msgs[i].Seq < msgs[j].Seq
	})
	return msgs, nil
}

// MarkMessagesRead flips read on messages not sent by reader.
func (m *MockStore) MarkMessagesRead(ctx context.Context, conversationID, reader string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var n int64
	for _, msg := range m.messages[conversationID] {
		if msg.Sender != reader && !msg.Read {
			msg.Read = true
			n++
		}
	}
	return n, nil
}

// CountUnread counts unread messages not sent by viewer.
func (m *MockStore) CountUnread(ctx context.Context, conversationID, viewer string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for _, msg := range m.messages[conversationID] {
		if msg.Sender != viewer && !msg.Read {
			count++
		}
	}
	return count, nil
}

// CountUnreadTotal aggregates unread counts across the viewer's conversations.
func (m *MockStore) CountUnreadTotal(ctx context.Context, viewer string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	count := 0
	for id, conv := range m.conversations {
		if !conv.HasParticipant(viewer) {
			continue
		}
		for _, msg := range m.messages[id] {
			if msg.Sender != viewer && !msg.Read {
				count++
			}
		}
	}
	return count, nil
}

// Close is a no-op for the mock store.
func (m *MockStore) Close() error {
	return nil
}
