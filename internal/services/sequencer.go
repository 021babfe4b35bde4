package services

import (
	"sync"

	"github.com/google/uuid"

	"vigia/internal/logging"
)

// Sequencer maps external session ids to stable correlation ids. The
// mapping lives for the process only; a restart simply mints fresh
// correlation ids, which affects causal grouping but not stored data.
type Sequencer struct {
	mu  sync.Mutex
	ids map[string]string
}

// NewSequencer creates a Sequencer
func NewSequencer() *Sequencer {
	return &Sequencer{ids: make(map[string]string)}
}

// CorrelationIDFor returns the session's correlation id, minting one on
// first sight. The same session always gets the same id until reset.
func (s *Sequencer) CorrelationIDFor(sessionID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.ids[sessionID]; ok {
		return id
	}

	id := uuid.New().String()
	s.ids[sessionID] = id
	logging.Logger.Debug("Assigned correlation id", "session", sessionID, "correlation_id", id)
	return id
}

// Reset drops the cached mapping for a session, e.g. on session end
func (s *Sequencer) Reset(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.ids, sessionID)
}
