// ABOUTME: Service is the central layer for conversations and message flow
// ABOUTME: All messages pass through here - the store log is the source of truth, not a side effect

package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Shameer2006/batchtalk/internal/live"
	"github.com/Shameer2006/batchtalk/internal/store"
)

// ChatStore defines what the service needs from storage
type ChatStore interface {
	UpsertConversation(ctx context.Context, conv *store.Conversation) (*store.Conversation, error)
	GetConversation(ctx context.Context, id string) (*store.Conversation, error)
	ListConversationsByParticipant(ctx context.Context, account string) ([]*store.Conversation, error)
	TouchConversation(ctx context.Context, id string, at time.Time) error

	SaveMessage(ctx context.Context, msg *store.Message) error
	ListMessages(ctx context.Context, conversationID string) ([]*store.Message, error)
	MarkMessagesRead(ctx context.Context, conversationID, reader string) (int64, error)
	CountUnread(ctx context.Context, conversationID, viewer string) (int, error)
	CountUnreadTotal(ctx context.Context, viewer string) (int, error)
}

// Service coordinates the conversation directory, the message log, read
// tracking and live fan-out. Appends are serialized per conversation so the
// (CreatedAt, Seq) order is well defined even when both participants send
// within the same instant; everything else runs concurrently.
type Service struct {
	store  ChatStore
	bus    live.Publisher
	logger *slog.Logger

	// Per-conversation append locks. Appends to different conversations
	// never contend.
	locksMu sync.Mutex
	locks   map[string]*sync.Mutex
}

// New creates a chat service. Pass nil bus to disable live fan-out and nil
// logger for default.
func New(chatStore ChatStore, bus live.Publisher, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:  chatStore,
		bus:    bus,
		logger: logger.With("component", "chat"),
		locks:  make(map[string]*sync.Mutex),
	}
}

// ConversationSummary is a conversation annotated with the viewer's unread
// count, as shown in a conversation list.
type ConversationSummary struct {
	Conversation *store.Conversation
	Unread       int
	LastMessage  *store.Message // nil when the conversation has no messages yet
}

// GetOrCreate resolves the canonical conversation for a pair of accounts,
// creating it on first contact. Repeat calls upsert: the latest non-nil
// productContext overwrites the stored one (last writer wins) and
// lastActivity advances. Concurrent calls for the same pair converge on one
// logical conversation because the ID is deterministic and the upsert is a
// single atomic statement.
func (s *Service) GetOrCreate(ctx context.Context, accountA, accountB string, productContext json.RawMessage) (*store.Conversation, error) {
	low, high, err := NormalizePair(accountA, accountB)
	if err != nil {
		return nil, err
	}

	conv := &store.Conversation{
		ID:              low + pairSeparator + high,
		ParticipantLow:  low,
		ParticipantHigh: high,
		ProductContext:  productContext,
		LastActivity:    time.Now().UTC(),
	}

	stored, err := s.store.UpsertConversation(ctx, conv)
	if err != nil {
		return nil, fmt.Errorf("upserting conversation: %w", err)
	}

	s.logger.Debug("conversation resolved",
		"conversation_id", stored.ID,
		"has_context", stored.ProductContext != nil)
	return stored, nil
}

// Append validates and records a message, bumps the conversation's
// lastActivity, and publishes the accepted message to live subscribers.
// The message is durable before anyone is notified.
func (s *Service) Append(ctx context.Context, conversationID, sender, body string) (*store.Message, error) {
	if utf8.RuneCountInString(body) > store.MaxBodyLen {
		return nil, fmt.Errorf("%w: %d characters (max %d)",
			store.ErrBodyTooLong, utf8.RuneCountInString(body), store.MaxBodyLen)
	}

	conv, err := s.store.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}

	sender = NormalizeAccount(sender)
	if !conv.HasParticipant(sender) {
		return nil, fmt.Errorf("%w: %s in %s", store.ErrNotAParticipant, sender, conversationID)
	}

	// Serialize appends for this conversation only: CreatedAt is assigned,
	// the row inserted, and subscribers notified under the same lock, so
	// both storage order and fan-out order match timestamp order. Publish
	// is a non-blocking channel send, so the lock is never held on a slow
	// subscriber.
	unlock := s.lockConversation(conversationID)
	msg := &store.Message{
		ID:             uuid.New().String(),
		ConversationID: conversationID,
		Sender:         sender,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	err = s.store.SaveMessage(ctx, msg)
	if err == nil && s.bus != nil {
		s.bus.Publish(conversationID, msg)
	}
	unlock()
	if err != nil {
		return nil, fmt.Errorf("recording message: %w", err)
	}

	// Activity bump failure is not worth failing the send over; the message
	// is already durable.
	if err := s.store.TouchConversation(ctx, conversationID, msg.CreatedAt); err != nil {
		s.logger.Warn("failed to bump conversation activity",
			"error", err,
			"conversation_id", conversationID)
	}

	s.logger.Debug("message appended",
		"conversation_id", conversationID,
		"message_id", msg.ID,
		"sender", sender)

	return msg, nil
}

// Conversation returns the conversation record by id.
func (s *Service) Conversation(ctx context.Context, conversationID string) (*store.Conversation, error) {
	return s.store.GetConversation(ctx, conversationID)
}

// Messages returns the conversation's full ordered log. The result is finite
// and replayable; reconnecting subscribers call this to recover anything the
// bus dropped while they were away.
func (s *Service) Messages(ctx context.Context, conversationID string) ([]*store.Message, error) {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return nil, err
	}
	return s.store.ListMessages(ctx, conversationID)
}

// MarkAsRead flips the read flag on every message in the conversation not
// sent by reader. Idempotent: re-marking changes nothing, so callers may
// safely retry after a transient failure.
func (s *Service) MarkAsRead(ctx context.Context, conversationID, reader string) error {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return err
	}

	n, err := s.store.MarkMessagesRead(ctx, conversationID, NormalizeAccount(reader))
	if err != nil {
		return fmt.Errorf("marking read: %w", err)
	}
	if n > 0 {
		s.logger.Debug("conversation read",
			"conversation_id", conversationID,
			"reader", reader,
			"newly_read", n)
	}
	return nil
}

// UnreadCount returns the number of messages in the conversation the viewer
// has not read (excluding their own).
func (s *Service) UnreadCount(ctx context.Context, conversationID, viewer string) (int, error) {
	if _, err := s.store.GetConversation(ctx, conversationID); err != nil {
		return 0, err
	}
	return s.store.CountUnread(ctx, conversationID, NormalizeAccount(viewer))
}

// TotalUnread aggregates unread counts across every conversation the viewer
// participates in.
func (s *Service) TotalUnread(ctx context.Context, viewer string) (int, error) {
	return s.store.CountUnreadTotal(ctx, NormalizeAccount(viewer))
}

// Conversations returns the account's conversations, most recently active
// first, each annotated with its unread count and last message.
func (s *Service) Conversations(ctx context.Context, account string) ([]*ConversationSummary, error) {
	account = NormalizeAccount(account)

	convs, err := s.store.ListConversationsByParticipant(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("listing conversations: %w", err)
	}

	summaries := make([]*ConversationSummary, 0, len(convs))
	for _, conv := range convs {
		unread, err := s.store.CountUnread(ctx, conv.ID, account)
		if err != nil {
			return nil, fmt.Errorf("counting unread for %s: %w", conv.ID, err)
		}

		msgs, err := s.store.ListMessages(ctx, conv.ID)
		if err != nil {
			return nil, fmt.Errorf("listing messages for %s: %w", conv.ID, err)
		}
		var last *store.Message
		if len(msgs) > 0 {
			last = msgs[len(msgs)-1]
		}

		summaries = append(summaries, &ConversationSummary{
			Conversation: conv,
			Unread:       unread,
			LastMessage:  last,
		})
	}
	return summaries, nil
}

// lockConversation acquires the append lock for a conversation and returns
// the matching unlock. Locks are created on first use and kept for the life
// of the service; the per-pair cardinality is bounded by the participant set.
func (s *Service) lockConversation(conversationID string) func() {
	s.locksMu.Lock()
	mu, ok := s.locks[conversationID]
	if !ok {
		mu = &sync.Mutex{}
		s.locks[conversationID] = mu
	}
	s.locksMu.Unlock()

	mu.Lock()
	return mu.Unlock
}
