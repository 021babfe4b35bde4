package ports

// Tokenizer replaces sensitive values in the named fields of a trace
// payload. Implementations may call out to an external vault; callers must
// treat any error as "use the original mapping unchanged" (fail-open).
type Tokenizer interface {
	Tokenize(payload map[string]any, sessionID string, fields []string) (map[string]any, error)
}
