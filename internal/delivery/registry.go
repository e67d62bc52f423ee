// Package delivery routes session output to the presentation that owns the
// session, chosen by session key prefix.
package delivery

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/user/estatebot/internal/session"
	"github.com/user/estatebot/internal/types"
)

// Handler delivers a message to a session identified by sessionKey.
type Handler func(sessionKey types.SessionKey, msg session.Message) error

// Registry routes messages to the appropriate delivery handler based on
// session key prefix (e.g. "telegram:", "cli:").
type Registry struct {
	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewRegistry creates an empty delivery registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[string]Handler),
	}
}

// Register adds a handler for session keys starting with prefix.
func (r *Registry) Register(prefix string, handler Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[prefix] = handler
}

// Deliver finds the handler matching the session key prefix and calls it.
// Returns an error if no handler is registered for the prefix.
func (r *Registry) Deliver(sessionKey types.SessionKey, msg session.Message) error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix, handler := range r.handlers {
		if strings.HasPrefix(string(sessionKey), prefix) {
			return handler(sessionKey, msg)
		}
	}
	return fmt.Errorf("no delivery handler for session key: %s", sessionKey)
}

// Handles reports whether a handler is registered for sessionKey.
func (r *Registry) Handles(sessionKey types.SessionKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for prefix := range r.handlers {
		if strings.HasPrefix(string(sessionKey), prefix) {
			return true
		}
	}
	return false
}

// Observer returns a session observer that delivers every appended message
// to sessionKey's handler. The user's own messages are not echoed back.
func (r *Registry) Observer(sessionKey types.SessionKey) session.Observer {
	return func(e session.Event) {
		if e.Type != session.EventAppended || e.Message.Kind() == session.KindUser {
			return
		}
		if err := r.Deliver(sessionKey, e.Message); err != nil {
			slog.Warn("delivery failed", "session_key", string(sessionKey), "message_id", string(e.Message.MessageID()), "error", err)
		}
	}
}
