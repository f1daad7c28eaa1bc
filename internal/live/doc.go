// Package live pushes newly appended messages to open sessions.
//
// The Broadcaster is an in-memory fan-out keyed by conversation: each
// subscriber gets a buffered channel receiving messages in append order for
// that conversation. Delivery is at-least-once with no history replay;
// slow subscribers lose messages and recover through a full list resync,
// and consumers deduplicate by message ID.
//
// The Relay extends the broadcaster across server instances over NATS,
// one subject per conversation. It implements the same Publisher interface,
// so the chat service is indifferent to whether clustering is on.
package live
