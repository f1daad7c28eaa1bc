// ABOUTME: Optimistic send tracking for client UIs.
// ABOUTME: Stages messages locally, confirms or rolls back, and advances delivery state.

package client

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// SendState is the lifecycle position of an optimistically sent message.
// States only move forward; a failed send is removed entirely and its body
// handed back as the draft.
type SendState int

const (
	// StateComposing: draft text staged but not yet submitted.
	StateComposing SendState = iota
	// StateSending: shown in the UI, request in flight.
	StateSending
	// StateSent: the server accepted the append.
	StateSent
	// StateDelivered: the peer's client received the message.
	StateDelivered
	// StateRead: the peer marked the conversation read.
	StateRead
)

func (s SendState) String() string {
	switch s {
	case StateComposing:
		return "composing"
	case StateSending:
		return "sending"
	case StateSent:
		return "sent"
	case StateDelivered:
		return "delivered"
	case StateRead:
		return "read"
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// PendingMessage is one entry in the outbox.
type PendingMessage struct {
	// LocalID identifies the entry before the server assigns a message id.
	LocalID string
	// MessageID is the server-assigned id, set on confirm.
	MessageID string
	Body      string
	State     SendState
}

// Outbox reconciles optimistic sends with server acknowledgements. The UI
// renders staged entries immediately; each entry then either advances
// through sent/delivered/read or is rolled back into the draft on failure.
type Outbox struct {
	mu      sync.Mutex
	entries map[string]*PendingMessage // by LocalID
	order   []string
}

// NewOutbox creates an empty outbox.
func NewOutbox() *Outbox {
	return &Outbox{entries: make(map[string]*PendingMessage)}
}

// Compose stages a draft that has not been submitted yet.
func (o *Outbox) Compose(body string) string {
	return o.stage(body, StateComposing)
}

// Stage records a message about to be sent and returns its local id.
func (o *Outbox) Stage(body string) string {
	return o.stage(body, StateSending)
}

// Submit moves a composed draft into flight. No-op once past composing.
func (o *Outbox) Submit(localID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if entry, ok := o.entries[localID]; ok && entry.State == StateComposing {
		entry.State = StateSending
	}
}

func (o *Outbox) stage(body string, state SendState) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	localID := uuid.New().String()
	o.entries[localID] = &PendingMessage{
		LocalID: localID,
		Body:    body,
		State:   state,
	}
	o.order = append(o.order, localID)
	return localID
}

// Confirm advances a staged entry to sent with its server-assigned id.
// Unknown local ids are ignored (the entry may have been rolled back).
func (o *Outbox) Confirm(localID, messageID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.entries[localID]
	if !ok {
		return
	}
	entry.MessageID = messageID
	if entry.State < StateSent {
		entry.State = StateSent
	}
}

// Fail removes a staged entry and returns its body so the UI can restore
// the draft. Returns "" if the entry is unknown or already confirmed.
func (o *Outbox) Fail(localID string) string {
	o.mu.Lock()
	defer o.mu.Unlock()

	entry, ok := o.entries[localID]
	if !ok || entry.State > StateSending {
		return ""
	}

	delete(o.entries, localID)
	for i, id := range o.order {
		if id == localID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
	return entry.Body
}

// MarkDelivered advances the entry with the given server message id to
// delivered. States never move backwards.
func (o *Outbox) MarkDelivered(messageID string) {
	o.advance(messageID, StateDelivered)
}

// MarkRead advances the entry with the given server message id to read.
// Driven by the recipient-side mark-as-read becoming visible on the wire,
// not by anything the sender does locally.
func (o *Outbox) MarkRead(messageID string) {
	o.advance(messageID, StateRead)
}

// Snapshot returns the outbox entries in staging order. The returned values
// are copies.
func (o *Outbox) Snapshot() []PendingMessage {
	o.mu.Lock()
	defer o.mu.Unlock()

	out := make([]PendingMessage, 0, len(o.order))
	for _, id := range o.order {
		if entry, ok := o.entries[id]; ok {
			out = append(out, *entry)
		}
	}
	return out
}

// Drop removes a confirmed entry, typically once the authoritative copy has
// arrived via the live stream or a resync.
func (o *Outbox) Drop(localID string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	delete(o.entries, localID)
	for i, id := range o.order {
		if id == localID {
			o.order = append(o.order[:i], o.order[i+1:]...)
			break
		}
	}
}

func (o *Outbox) advance(messageID string, to SendState) {
	o.mu.Lock()
	defer o.mu.Unlock()

	for _, entry := range o.entries {
		if entry.MessageID == messageID && entry.State < to {
			entry.State = to
		}
	}
}
