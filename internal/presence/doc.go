// Package presence tracks ephemeral typing signals with a TTL window.
// Signals are never persisted; a participant "is typing" for the TTL after
// their last keystroke and the indicator self-clears on expiry.
package presence
