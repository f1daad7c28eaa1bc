// Package dedupe provides key deduplication using a time-based cache.
// It backs the send endpoint's idempotency keys (duplicate sends return the
// originally accepted message) and client-side dedupe of at-least-once
// message deliveries.
package dedupe
