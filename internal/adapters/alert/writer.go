package alert

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	"vigia/internal/domain"
	"vigia/internal/ports"
)

// Writer publishes alert artifacts and audit records for the external
// approval workflow. The alert file is overwritten per enforcement action;
// the audit log only ever grows.
type Writer struct {
	alertPath string
	auditPath string
}

// Verify interface compliance at compile time
var (
	_ ports.AlertSink = (*Writer)(nil)
	_ ports.AuditLog  = (*Writer)(nil)
)

// NewWriter creates a Writer
func NewWriter(alertPath, auditPath string) *Writer {
	return &Writer{alertPath: alertPath, auditPath: auditPath}
}

// Write implements AlertSink.Write, replacing any previous artifact
func (w *Writer) Write(alert domain.Alert) error {
	if err := os.MkdirAll(filepath.Dir(w.alertPath), 0755); err != nil {
		return fmt.Errorf("failed to create alert directory: %w", err)
	}

	data, err := json.MarshalIndent(alert, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal alert: %w", err)
	}

	if err := os.WriteFile(w.alertPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write alert: %w", err)
	}

	return nil
}

// Record implements AuditLog.Record, appending one JSON line
func (w *Writer) Record(record domain.AuditRecord) error {
	if err := os.MkdirAll(filepath.Dir(w.auditPath), 0755); err != nil {
		return fmt.Errorf("failed to create audit directory: %w", err)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("failed to marshal audit record: %w", err)
	}

	file, err := os.OpenFile(w.auditPath, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open audit log: %w", err)
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN)

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append audit record: %w", err)
	}

	return nil
}
