package session

import (
	"sync"

	"github.com/Gobusters/ectologger"

	"github.com/Ramsey-B/fern/pkg/models"
)

// Manager owns the live sessions, one per conversation. Session methods
// themselves are plain synchronous code; the manager provides the per-session
// serialization so stream events, re-fetch results, and HTTP edits for the
// same conversation apply one at a time.
type Manager struct {
	mu       sync.Mutex
	sessions map[string]*entry

	logger        ectologger.Logger
	positionLimit int
	contentLimit  int
}

type entry struct {
	mu      sync.Mutex
	session *Session
}

// NewManager creates an empty session manager.
func NewManager(logger ectologger.Logger, positionLimit, contentLimit int) *Manager {
	return &Manager{
		sessions:      make(map[string]*entry),
		logger:        logger,
		positionLimit: positionLimit,
		contentLimit:  contentLimit,
	}
}

// With runs fn against the conversation's session, creating an empty one on
// first use. Calls for the same conversation are serialized; different
// conversations proceed concurrently.
func (m *Manager) With(conversationID string, fn func(*Session) error) error {
	e := m.entryFor(conversationID)
	e.mu.Lock()
	defer e.mu.Unlock()
	return fn(e.session)
}

// Peek reports whether a session exists without creating one.
func (m *Manager) Peek(conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.sessions[conversationID]
	return ok
}

// End discards the conversation's session.
func (m *Manager) End(conversationID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.sessions, conversationID)
}

func (m *Manager) entryFor(conversationID string) *entry {
	m.mu.Lock()
	defer m.mu.Unlock()

	e, ok := m.sessions[conversationID]
	if !ok {
		e = &entry{session: New(conversationID, models.Strategy{}, m.logger, m.positionLimit, m.contentLimit)}
		m.sessions[conversationID] = e
	}
	return e
}
