// ABOUTME: JSON wire shapes for the batchtalk API.
// ABOUTME: Converts store records into the shapes clients consume.

package api

import (
	"encoding/json"
	"time"

	"github.com/Shameer2006/batchtalk/internal/chat"
	"github.com/Shameer2006/batchtalk/internal/identity"
	"github.com/Shameer2006/batchtalk/internal/store"
)

// Conversation is the wire shape of a conversation record.
type Conversation struct {
	ID              string          `json:"id"`
	ParticipantLow  string          `json:"participantLow"`
	ParticipantHigh string          `json:"participantHigh"`
	ProductContext  json.RawMessage `json:"productContext,omitempty"`
	LastActivity    time.Time       `json:"lastActivity"`
}

// Message is the wire shape of a message record.
type Message struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	Sender         string    `json:"sender"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"createdAt"`
	Read           bool      `json:"read"`
}

// Peer labels the other participant of a conversation for display.
type Peer struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Role    string `json:"role,omitempty"`
}

// ConversationSummary is a conversation as it appears in the viewer's list:
// annotated with the unread count, the last message, and the resolved peer.
type ConversationSummary struct {
	Conversation
	Unread      int      `json:"unread"`
	LastMessage *Message `json:"lastMessage,omitempty"`
	Peer        Peer     `json:"peer"`
}

func toWireConversation(c *store.Conversation) Conversation {
	return Conversation{
		ID:              c.ID,
		ParticipantLow:  c.ParticipantLow,
		ParticipantHigh: c.ParticipantHigh,
		ProductContext:  c.ProductContext,
		LastActivity:    c.LastActivity,
	}
}

func toWireMessage(m *store.Message) Message {
	return Message{
		ID:             m.ID,
		ConversationID: m.ConversationID,
		Sender:         m.Sender,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
		Read:           m.Read,
	}
}

func toWireSummary(s *chat.ConversationSummary, viewer string, resolver identity.Resolver) ConversationSummary {
	out := ConversationSummary{
		Conversation: toWireConversation(s.Conversation),
		Unread:       s.Unread,
	}
	if s.LastMessage != nil {
		msg := toWireMessage(s.LastMessage)
		out.LastMessage = &msg
	}

	peer := s.Conversation.Other(viewer)
	out.Peer = Peer{
		Address: peer,
		Name:    identity.DisplayName(resolver, peer),
	}
	if resolver != nil {
		if profile, err := resolver.Resolve(peer); err == nil {
			out.Peer.Role = profile.Role
		}
	}
	return out
}
