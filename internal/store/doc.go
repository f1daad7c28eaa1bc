// Package store provides persistent storage for batchtalk using SQLite.
//
// # Data Models
//
//   - Conversation: canonical record for a participant pair, keyed by the
//     deterministic pair ID, carrying an opaque product context blob
//   - Message: append-only log entry with a monotonic read flag
//
// # Ordering
//
// Messages are totally ordered by (created_at, rowid). Timestamps are stored
// as integer unix microseconds so the ordering is exact; the rowid breaks
// same-instant ties in insertion order.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// # Error Handling
//
// Sentinel errors shared by the whole system:
//
//   - ErrNotFound: requested entity does not exist
//   - ErrInvalidParticipant: empty account or self-conversation
//   - ErrNotAParticipant: message sender outside the conversation pair
//   - ErrBodyTooLong: message body over MaxBodyLen characters
//
// All methods accept context.Context for cancellation support.
//
// # Testing
//
// Use NewMockStore() for unit tests, or NewSQLiteStore(":memory:") for
// integration tests with real SQLite.
package store
