// ABOUTME: Participant pair normalization and deterministic conversation identity
// ABOUTME: Same two accounts always yield the same conversation ID regardless of call order

package chat

import (
	"fmt"
	"strings"

	"github.com/Shameer2006/batchtalk/internal/store"
)

// pairSeparator joins the normalized pair into the conversation ID.
const pairSeparator = "_"

// NormalizeAccount lowercases and trims an account identifier. Accounts are
// wallet-style addresses compared case-insensitively; the core never
// validates them beyond non-empty.
func NormalizeAccount(account string) string {
	return strings.ToLower(strings.TrimSpace(account))
}

// NormalizePair validates and orders two accounts into (low, high) under
// lexicographic order, so the pair is the same whichever way it is given.
// Returns ErrInvalidParticipant for an empty account or a self-conversation.
func NormalizePair(accountA, accountB string) (low, high string, err error) {
	a := NormalizeAccount(accountA)
	b := NormalizeAccount(accountB)

	if a == "" || b == "" {
		return "", "", fmt.Errorf("%w: empty account", store.ErrInvalidParticipant)
	}
	if a == b {
		return "", "", fmt.Errorf("%w: conversation with self", store.ErrInvalidParticipant)
	}

	if a < b {
		return a, b, nil
	}
	return b, a, nil
}

// ConversationID computes the canonical conversation ID for a pair of
// accounts. Pure function of the unordered pair: no randomness, no counter.
func ConversationID(accountA, accountB string) (string, error) {
	low, high, err := NormalizePair(accountA, accountB)
	if err != nil {
		return "", err
	}
	return low + pairSeparator + high, nil
}
