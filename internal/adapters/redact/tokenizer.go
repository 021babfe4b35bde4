package redact

import (
	"os"
	"regexp"
	"strings"

	"vigia/internal/ports"
)

// Redacted replaces every masked value
const Redacted = "[REDACTED]"

// sensitiveKeyPattern matches payload keys that carry credentials
var sensitiveKeyPattern = regexp.MustCompile(`(?i)(api[_-]?key|secret|token|password|authorization|credential)`)

// Tokenizer masks sensitive values in trace payloads. It is the built-in
// stand-in for an external tokenization vault: same port, same fail-open
// contract, but purely local.
type Tokenizer struct {
	anonymizePaths bool
	homeDir        string
}

// Verify interface compliance at compile time
var _ ports.Tokenizer = (*Tokenizer)(nil)

// NewTokenizer creates a Tokenizer. With anonymizePaths set, absolute paths
// under the user's home directory are rewritten relative to ~.
func NewTokenizer(anonymizePaths bool) *Tokenizer {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		homeDir = ""
	}
	return &Tokenizer{
		anonymizePaths: anonymizePaths,
		homeDir:        homeDir,
	}
}

// Tokenize implements ports.Tokenizer. Only the named top-level fields are
// touched; nested mappings under those fields are walked recursively.
func (t *Tokenizer) Tokenize(payload map[string]any, sessionID string, fields []string) (map[string]any, error) {
	if payload == nil {
		return nil, nil
	}

	out := make(map[string]any, len(payload))
	for k, v := range payload {
		out[k] = v
	}

	for _, field := range fields {
		if v, ok := out[field]; ok {
			out[field] = t.scrub(field, v)
		}
	}

	return out, nil
}

// scrub masks a value when its key looks sensitive, and recurses into maps
func (t *Tokenizer) scrub(key string, v any) any {
	if sensitiveKeyPattern.MatchString(key) {
		return Redacted
	}

	switch value := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(value))
		for k, nested := range value {
			out[k] = t.scrub(k, nested)
		}
		return out
	case []any:
		out := make([]any, len(value))
		for i, item := range value {
			out[i] = t.scrub(key, item)
		}
		return out
	case string:
		return t.anonymize(value)
	default:
		return v
	}
}

// anonymize rewrites home-rooted paths relative to ~
func (t *Tokenizer) anonymize(s string) string {
	if !t.anonymizePaths || t.homeDir == "" {
		return s
	}
	if strings.HasPrefix(s, t.homeDir) {
		return "~" + s[len(t.homeDir):]
	}
	return s
}
