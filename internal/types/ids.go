package types

import (
	"strings"

	"github.com/google/uuid"
)

type SessionKey string
type SessionID string
type MessageID string

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func NewMessageID() MessageID {
	return MessageID(uuid.New().String())
}

func NewSessionKey(parts ...string) SessionKey {
	return SessionKey(strings.Join(parts, ":"))
}

// Source returns the first segment of the key, e.g. "web" for "web:abc".
func (k SessionKey) Source() string {
	source, _, _ := strings.Cut(string(k), ":")
	return source
}
