package ports

import "vigia/internal/domain"

// Normalizer converts a raw hook payload into a canonical span. It must be
// total: defaults instead of errors, whatever the payload looks like.
type Normalizer interface {
	Normalize(raw map[string]any) domain.Span
}
