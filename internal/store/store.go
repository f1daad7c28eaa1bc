// ABOUTME: Store interface and data types for batchtalk persistence
// ABOUTME: Defines Conversation, Message structs and the Store interface for database operations

package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrInvalidParticipant is returned when a conversation is requested with an
// empty account or with the same account on both sides
var ErrInvalidParticipant = errors.New("invalid participant")

// ErrNotAParticipant is returned when a message sender is not one of the
// conversation's two participants
var ErrNotAParticipant = errors.New("sender is not a participant")

// ErrBodyTooLong is returned when a message body exceeds MaxBodyLen
var ErrBodyTooLong = errors.New("message body too long")

// MaxBodyLen is the maximum message body length in characters.
// Bodies over this limit are rejected, never truncated.
const MaxBodyLen = 1000

// Conversation is the canonical record for a negotiation between two
// supply-chain participants. The ID is a pure function of the unordered
// participant pair, so the same two accounts always resolve to the same row.
type Conversation struct {
	ID              string
	ParticipantLow  string
	ParticipantHigh string
	ProductContext  json.RawMessage // opaque batch reference, stored and echoed back uninterpreted
	LastActivity    time.Time
}

// Participants returns both accounts of the conversation.
func (c *Conversation) Participants() [2]string {
	return [2]string{c.ParticipantLow, c.ParticipantHigh}
}

// HasParticipant reports whether account is one of the two participants.
// Accounts are stored normalized, so a plain comparison suffices.
func (c *Conversation) HasParticipant(account string) bool {
	return account == c.ParticipantLow || account == c.ParticipantHigh
}

// Other returns the participant that is not account. Returns "" if account
// is not a participant.
func (c *Conversation) Other(account string) string {
	switch account {
	case c.ParticipantLow:
		return c.ParticipantHigh
	case c.ParticipantHigh:
		return c.ParticipantLow
	}
	return ""
}

// Message is a single entry in a conversation's append-only log.
// Messages are never edited or deleted; the only mutation is the read flag,
// which moves false -> true and never back.
type Message struct {
	ID             string
	ConversationID string
	Sender         string
	Body           string
	CreatedAt      time.Time
	Read           bool

	// Seq is the storage-assigned insertion order, used to break CreatedAt
	// ties so the (CreatedAt, Seq) pair is a stable total order even for
	// same-instant appends from both participants. Not part of the wire shape.
	Seq int64
}

// Store defines the interface for conversation and message persistence
type Store interface {
	// Conversations
	UpsertConversation(ctx context.Context, conv *Conversation) (*Conversation, error)
	GetConversation(ctx context.Context, id string) (*Conversation, error)
	ListConversationsByParticipant(ctx context.Context, account string) ([]*Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error

	// Messages
	SaveMessage(ctx context.Context, msg *Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*Message, error)
	MarkMessagesRead(ctx context.Context, conversationID, reader string) (int64, error)
	CountUnread(ctx context.Context, conversationID, viewer string) (int, error)
	CountUnreadTotal(ctx context.Context, viewer string) (int, error)

	// Close releases any resources held by the store
	Close() error
}
