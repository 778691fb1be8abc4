// Package chat implements the conversation core: thread identity, the
// bilingual append-only message log, per-user inbox caches, language
// preferences, and the orchestrator that ties them to the translation and
// reply gateways.
package chat

import (
	"errors"
	"strings"
)

// threadKeySep joins the two participant ids inside a thread key. User ids
// must not contain it.
const threadKeySep = "_"

var (
	// ErrBadThreadKey is returned for keys that do not name two participants.
	ErrBadThreadKey = errors.New("chat: malformed thread key")

	// ErrNotParticipant is returned when a user id is not part of a thread.
	ErrNotParticipant = errors.New("chat: user is not a thread participant")
)

// DeriveKey builds the canonical key for the thread between two users. The
// lexicographically smaller id goes first, so both participants derive the
// same key regardless of argument order.
func DeriveKey(a, b string) string {
	if a > b {
		a, b = b, a
	}
	return a + threadKeySep + b
}

// SplitKey recovers the two participant ids from a thread key.
func SplitKey(key string) (a, b string, err error) {
	a, b, ok := strings.Cut(key, threadKeySep)
	if !ok || a == "" || b == "" {
		return "", "", ErrBadThreadKey
	}
	return a, b, nil
}

// Counterpart returns the other participant of a thread.
func Counterpart(key, self string) (string, error) {
	a, b, err := SplitKey(key)
	if err != nil {
		return "", err
	}
	switch self {
	case a:
		return b, nil
	case b:
		return a, nil
	default:
		return "", ErrNotParticipant
	}
}
