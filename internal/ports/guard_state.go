package ports

// GuardStateStore persists per-session enforcement state across hook
// invocations (each hook event runs in its own process).
type GuardStateStore interface {
	AutoFixCount(sessionID string) (int, error)
	IncrementAutoFixes(sessionID string) (int, error)
	IsBlocked(sessionID string) (bool, error)
	SetBlocked(sessionID string, blocked bool) error
	BlockedSessions() ([]string, error)
}
