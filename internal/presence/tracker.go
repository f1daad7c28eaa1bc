// ABOUTME: Thread-safe TTL tracker for ephemeral typing signals.
// ABOUTME: Signals self-expire; nothing is persisted and expiry is checked on read.

package presence

import (
	"sync"
	"time"
)

// DefaultTTL is how long a typing signal stays live after the last keystroke.
const DefaultTTL = 3000 * time.Millisecond

// signalKey identifies one participant typing in one conversation.
type signalKey struct {
	conversationID string
	account        string
}

// Tracker records short-lived typing signals keyed by (conversation, account).
// Concurrent writers for the same key race harmlessly: last write wins, with
// staleness bounded by the TTL. Expired entries are dropped lazily on read,
// so no background sweep is required.
type Tracker struct {
	mu      sync.RWMutex
	signals map[signalKey]time.Time // key -> expiresAt
	ttl     time.Duration
}

// New creates a tracker with the given TTL. A non-positive TTL falls back to
// DefaultTTL.
func New(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		signals: make(map[signalKey]time.Time),
		ttl:     ttl,
	}
}

// Signal records that account is typing in the conversation, resetting the
// expiry window to now + TTL. Each keystroke overwrites the previous signal.
func (t *Tracker) Signal(conversationID, account string) {
	t.SignalAt(conversationID, account, time.Now())
}

// SignalAt records a typing signal as of the given instant.
func (t *Tracker) SignalAt(conversationID, account string, at time.Time) {
	key := signalKey{conversationID, account}

	t.mu.Lock()
	t.signals[key] = at.Add(t.ttl)
	t.mu.Unlock()
}

// IsTyping reports whether account has a live signal in the conversation as
// of now.
func (t *Tracker) IsTyping(conversationID, account string) bool {
	return t.IsTypingAt(conversationID, account, time.Now())
}

// IsTypingAt reports whether a signal is live as of the given instant:
// true iff expiresAt > asOf. A signal is dead at exactly signal time + TTL.
// Entries found expired are removed.
func (t *Tracker) IsTypingAt(conversationID, account string, asOf time.Time) bool {
	key := signalKey{conversationID, account}

	t.mu.RLock()
	expiresAt, ok := t.signals[key]
	t.mu.RUnlock()

	if !ok {
		return false
	}
	if expiresAt.After(asOf) {
		return true
	}

	// Expired: drop the entry. Re-check under the write lock since a fresh
	// signal may have landed in between.
	t.mu.Lock()
	if current, ok := t.signals[key]; ok && !current.After(asOf) {
		delete(t.signals, key)
	}
	t.mu.Unlock()
	return false
}

// Len returns the number of tracked signals, expired or not.
func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.signals)
}
