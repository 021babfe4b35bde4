package guardstate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"vigia/internal/ports"
)

// sessionState is the persisted per-session enforcement state
type sessionState struct {
	AutoFixCount int       `json:"auto_fix_count"`
	Blocked      bool      `json:"blocked"`
	LastUpdated  time.Time `json:"last_updated"`
}

// fileState is the on-disk document
type fileState struct {
	Sessions  map[string]sessionState `json:"sessions"`
	UpdatedAt time.Time               `json:"updated_at"`
}

// Store keeps guardian session state in a flock-protected JSON file so
// auto-fix caps and block flags survive across hook processes.
type Store struct {
	path string
}

// Verify interface compliance at compile time
var _ ports.GuardStateStore = (*Store)(nil)

// NewStore creates a Store backed by the given file path
func NewStore(path string) *Store {
	return &Store{path: path}
}

// AutoFixCount returns the session's applied auto-fix count
func (s *Store) AutoFixCount(sessionID string) (int, error) {
	state, err := s.load()
	if err != nil {
		return 0, err
	}
	return state.Sessions[sessionID].AutoFixCount, nil
}

// IncrementAutoFixes bumps and returns the session's auto-fix count
func (s *Store) IncrementAutoFixes(sessionID string) (int, error) {
	var count int
	err := s.update(func(state *fileState) {
		entry := state.Sessions[sessionID]
		entry.AutoFixCount++
		entry.LastUpdated = time.Now().UTC()
		state.Sessions[sessionID] = entry
		count = entry.AutoFixCount
	})
	if err != nil {
		return 0, err
	}
	return count, nil
}

// IsBlocked reports whether the session is blocked pending approval
func (s *Store) IsBlocked(sessionID string) (bool, error) {
	state, err := s.load()
	if err != nil {
		return false, err
	}
	return state.Sessions[sessionID].Blocked, nil
}

// SetBlocked sets or clears the session's block flag
func (s *Store) SetBlocked(sessionID string, blocked bool) error {
	return s.update(func(state *fileState) {
		entry := state.Sessions[sessionID]
		entry.Blocked = blocked
		entry.LastUpdated = time.Now().UTC()
		state.Sessions[sessionID] = entry
	})
}

// BlockedSessions lists blocked session ids, sorted
func (s *Store) BlockedSessions() ([]string, error) {
	state, err := s.load()
	if err != nil {
		return nil, err
	}

	var blocked []string
	for id, entry := range state.Sessions {
		if entry.Blocked {
			blocked = append(blocked, id)
		}
	}
	sort.Strings(blocked)
	return blocked, nil
}

// load reads the state file. A missing file yields empty state.
func (s *Store) load() (*fileState, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return &fileState{Sessions: make(map[string]sessionState)}, nil
		}
		return nil, fmt.Errorf("failed to read guard state: %w", err)
	}

	var state fileState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("failed to unmarshal guard state: %w", err)
	}
	if state.Sessions == nil {
		state.Sessions = make(map[string]sessionState)
	}

	return &state, nil
}

// update applies fn to the state under an exclusive lock and writes it back
func (s *Store) update(fn func(state *fileState)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}

	file, err := os.OpenFile(s.path, os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return fmt.Errorf("failed to open guard state: %w", err)
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN)

	// Re-read under the lock so concurrent updates are not lost
	state := fileState{Sessions: make(map[string]sessionState)}
	data, err := os.ReadFile(s.path)
	if err == nil && len(data) > 0 {
		if err := json.Unmarshal(data, &state); err != nil {
			return fmt.Errorf("failed to unmarshal guard state: %w", err)
		}
		if state.Sessions == nil {
			state.Sessions = make(map[string]sessionState)
		}
	}

	fn(&state)
	state.UpdatedAt = time.Now().UTC()

	out, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal guard state: %w", err)
	}

	if err := file.Truncate(0); err != nil {
		return fmt.Errorf("failed to truncate file: %w", err)
	}
	if _, err := file.Seek(0, 0); err != nil {
		return fmt.Errorf("failed to seek to beginning: %w", err)
	}
	if _, err := file.Write(out); err != nil {
		return fmt.Errorf("failed to write guard state: %w", err)
	}

	return nil
}
