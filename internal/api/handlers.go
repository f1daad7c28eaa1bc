// ABOUTME: HTTP handlers for conversations, messages, read state, and typing.
// ABOUTME: Each handler acts as the authenticated account from the bearer token.

package api

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"

	"github.com/Shameer2006/batchtalk/internal/auth"
	"github.com/Shameer2006/batchtalk/internal/store"
)

type openConversationRequest struct {
	Peer           string          `json:"peer"`
	ProductContext json.RawMessage `json:"productContext,omitempty"`
}

type sendMessageRequest struct {
	Body string `json:"body"`
}

// handleOpenConversation resolves (or creates) the conversation between the
// caller and the requested peer.
func (s *Server) handleOpenConversation(c *fiber.Ctx) error {
	var req openConversationRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	conv, err := s.chat.GetOrCreate(c.Context(), auth.AccountFromCtx(c), req.Peer, req.ProductContext)
	if err != nil {
		return err
	}
	return c.JSON(toWireConversation(conv))
}

// handleListConversations returns the caller's conversations, most recent
// activity first, annotated with unread counts and resolved peer labels.
func (s *Server) handleListConversations(c *fiber.Ctx) error {
	account := auth.AccountFromCtx(c)

	summaries, err := s.chat.Conversations(c.Context(), account)
	if err != nil {
		return err
	}

	out := make([]ConversationSummary, 0, len(summaries))
	for _, summary := range summaries {
		out = append(out, toWireSummary(summary, account, s.resolver))
	}
	return c.JSON(out)
}

// handleListMessages returns the full ordered log of a conversation.
func (s *Server) handleListMessages(c *fiber.Ctx) error {
	conv, err := s.requireParticipant(c)
	if err != nil {
		return err
	}

	msgs, err := s.chat.Messages(c.Context(), conv.ID)
	if err != nil {
		return err
	}

	out := make([]Message, 0, len(msgs))
	for _, msg := range msgs {
		out = append(out, toWireMessage(msg))
	}
	return c.JSON(out)
}

// handleSendMessage appends a message as the caller. When the client supplies
// an Idempotency-Key header, retries of the same send return the originally
// accepted message id instead of appending again.
func (s *Server) handleSendMessage(c *fiber.Ctx) error {
	var req sendMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}

	idemKey := c.Get("Idempotency-Key")
	if idemKey != "" {
		if id, ok := s.idem.Lookup(idemKey); ok {
			return c.JSON(fiber.Map{"id": id, "status": "duplicate"})
		}
	}

	msg, err := s.chat.Append(c.Context(), c.Params("id"), auth.AccountFromCtx(c), req.Body)
	if err != nil {
		return err
	}

	if idemKey != "" {
		s.idem.MarkValue(idemKey, msg.ID)
	}
	return c.Status(fiber.StatusCreated).JSON(toWireMessage(msg))
}

// handleMarkRead marks every message not sent by the caller as read.
func (s *Server) handleMarkRead(c *fiber.Ctx) error {
	conv, err := s.requireParticipant(c)
	if err != nil {
		return err
	}

	if err := s.chat.MarkAsRead(c.Context(), conv.ID, auth.AccountFromCtx(c)); err != nil {
		return err
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// handleUnread returns the caller's unread count for one conversation.
func (s *Server) handleUnread(c *fiber.Ctx) error {
	conv, err := s.requireParticipant(c)
	if err != nil {
		return err
	}

	count, err := s.chat.UnreadCount(c.Context(), conv.ID, auth.AccountFromCtx(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": count})
}

// handleTotalUnread returns the caller's unread count across all conversations.
func (s *Server) handleTotalUnread(c *fiber.Ctx) error {
	count, err := s.chat.TotalUnread(c.Context(), auth.AccountFromCtx(c))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"count": count})
}

// handleSignalTyping records a typing signal from the caller.
func (s *Server) handleSignalTyping(c *fiber.Ctx) error {
	conv, err := s.requireParticipant(c)
	if err != nil {
		return err
	}

	s.presence.Signal(conv.ID, auth.AccountFromCtx(c))
	return c.SendStatus(fiber.StatusNoContent)
}

// handlePeerTyping reports whether the other participant is currently typing.
func (s *Server) handlePeerTyping(c *fiber.Ctx) error {
	conv, err := s.requireParticipant(c)
	if err != nil {
		return err
	}

	peer := conv.Other(auth.AccountFromCtx(c))
	return c.JSON(fiber.Map{"typing": s.presence.IsTyping(conv.ID, peer)})
}

// requireParticipant loads the :id conversation and checks the caller is one
// of its two participants.
func (s *Server) requireParticipant(c *fiber.Ctx) (*store.Conversation, error) {
	conv, err := s.chat.Conversation(c.Context(), c.Params("id"))
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(auth.AccountFromCtx(c)) {
		return nil, store.ErrNotAParticipant
	}
	return conv, nil
}
