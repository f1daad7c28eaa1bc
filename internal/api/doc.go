// ABOUTME: Package documentation for the HTTP/websocket API layer.
// ABOUTME: Summarizes routes, auth, and the error-to-status mapping.

// Package api exposes the chat service over HTTP and websocket using fiber.
//
// All /api and /ws routes require a bearer JWT; the token's subject is the
// acting account. Permanent domain failures map to client statuses (404 for
// unknown conversations, 400 for invalid participants or oversized bodies,
// 403 for non-participants); everything else is reported as 503 since a
// retry may succeed.
//
// The websocket stream at /ws/conversations/:id is a best-effort push
// channel. Clients dedupe by message id and recover missed messages by
// re-listing over HTTP after reconnecting.
package api
