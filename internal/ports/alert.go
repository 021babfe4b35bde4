package ports

import "vigia/internal/domain"

// AlertSink publishes the alert artifact consumed by an external approval
// workflow. Each write replaces the previous artifact.
type AlertSink interface {
	Write(alert domain.Alert) error
}

// AuditLog records every enforcement decision, append-only
type AuditLog interface {
	Record(record domain.AuditRecord) error
}
