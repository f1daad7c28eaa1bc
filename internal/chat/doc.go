// Package chat provides the conversation and messaging core.
//
// # Overview
//
// The Service sits between the HTTP/WebSocket handlers and storage,
// combining four concerns:
//
//   - Conversation directory: GetOrCreate resolves a participant pair
//     (plus an optional opaque product context) to one canonical
//     conversation. The ID is a pure function of the unordered pair, so
//     GetOrCreate(a, b) and GetOrCreate(b, a) converge on the same record.
//   - Message log: Append validates the sender and body, assigns the
//     timestamp at acceptance, and persists before publishing. Messages
//     lists the full log in (CreatedAt, Seq) order.
//   - Read tracking: MarkAsRead is idempotent and monotonic; UnreadCount
//     and TotalUnread are derived from the log, never stored separately.
//   - Live fan-out: accepted messages go to the live.Publisher so open
//     sessions see them without polling.
//
// # Ordering
//
// Appends are serialized per conversation with a keyed mutex: the timestamp
// is assigned and the row inserted under the same lock, so two participants
// sending within the same instant still get a deterministic total order.
// Reads run concurrently with appends and see either the pre-append or the
// post-append log, never a partial message.
//
// # Errors
//
// The service returns the store package's sentinel errors
// (ErrInvalidParticipant, ErrNotAParticipant, ErrBodyTooLong, ErrNotFound);
// anything else is a transient storage failure the caller may retry.
package chat
