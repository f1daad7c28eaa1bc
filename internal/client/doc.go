// ABOUTME: Package documentation for the batchtalk client SDK.
// ABOUTME: Describes the HTTP client, optimistic outbox, and live session.

// Package client is the SDK used by batchtalk frontends.
//
// Client wraps the HTTP API. Outbox tracks optimistic sends: a message is
// staged and rendered immediately, then confirmed with its server id or
// rolled back into the draft on permanent failure. Session follows a
// conversation live over websocket, resyncing from the full log after every
// reconnect and deduplicating by message id.
package client
