package storage

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mattn/go-sqlite3"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"vigia/internal/domain"
	"vigia/internal/logging"
	"vigia/internal/ports"
)

// SQLiteRepository implements ports.TraceRepository using GORM
type SQLiteRepository struct {
	db *gorm.DB
}

// Verify interface compliance at compile time
var _ ports.TraceRepository = (*SQLiteRepository)(nil)

// gormLogger bridges GORM logging to the vigia logger
type gormLogger struct {
	level logger.LogLevel
}

func (l *gormLogger) LogMode(level logger.LogLevel) logger.Interface {
	return &gormLogger{level: level}
}

func (l *gormLogger) Info(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Info {
		logging.Logger.Info(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Warn(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Warn {
		logging.Logger.Warn(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Error(ctx context.Context, msg string, data ...any) {
	if l.level >= logger.Error {
		logging.Logger.Error(fmt.Sprintf(msg, data...))
	}
}

func (l *gormLogger) Trace(ctx context.Context, begin time.Time, fc func() (sql string, rowsAffected int64), err error) {
	if l.level < logger.Info {
		return
	}

	elapsed := time.Since(begin)
	sql, rows := fc()

	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		logging.Logger.Error("gorm query error",
			"error", err,
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else if elapsed > 200*time.Millisecond {
		logging.Logger.Warn("slow query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	} else {
		logging.Logger.Debug("gorm query",
			"duration", elapsed,
			"sql", sql,
			"rows", rows,
		)
	}
}

func newGormLogger() logger.Interface {
	if os.Getenv("VIGIA_DEBUG") == "1" {
		return (&gormLogger{}).LogMode(logger.Info)
	}
	return (&gormLogger{}).LogMode(logger.Silent)
}

// migrationStep is one idempotent schema change. Steps check the
// introspected schema before acting, so re-running any of them is safe
// even when another process migrated first.
type migrationStep struct {
	version int
	name    string
	apply   func(db *gorm.DB) error
}

func addColumnStep(column string) func(db *gorm.DB) error {
	return func(db *gorm.DB) error {
		migrator := db.Migrator()
		if migrator.HasColumn(&TraceModel{}, column) {
			return nil
		}
		return migrator.AddColumn(&TraceModel{}, column)
	}
}

// migrationSteps are applied in order on every open. Versions 2-4 cover
// columns that did not exist in early trace databases.
var migrationSteps = []migrationStep{
	{
		version: 1,
		name:    "create traces table",
		apply: func(db *gorm.DB) error {
			return db.AutoMigrate(&TraceModel{})
		},
	},
	{version: 2, name: "add duration_ms", apply: addColumnStep("duration_ms")},
	{version: 3, name: "add error", apply: addColumnStep("error")},
	{version: 4, name: "add working_dir", apply: addColumnStep("working_dir")},
}

// NewSQLiteRepository creates a new SQLiteRepository
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	// Expand home directory if present
	if len(dbPath) > 0 && dbPath[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dbPath = filepath.Join(homeDir, dbPath[1:])
	}

	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	// Open database with WAL mode
	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		PrepareStmt: false,
		NowFunc:     func() time.Time { return time.Now().UTC() },
		Logger:      newGormLogger(),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable WAL mode for concurrent hook processes
	db.Exec("PRAGMA journal_mode=WAL")
	db.Exec("PRAGMA busy_timeout=5000")
	db.Exec("PRAGMA synchronous=NORMAL")
	db.Exec("PRAGMA foreign_keys=ON")

	if err := runMigrations(db); err != nil {
		return nil, err
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(0)

	return &SQLiteRepository{db: db}, nil
}

// runMigrations applies every pending migration step in order, recording
// each applied version. Idempotent: safe to run on every open and under
// concurrent opens from other hook processes.
func runMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(&SchemaMigrationModel{}); err != nil {
		return fmt.Errorf("failed to create schema_migrations table: %w", err)
	}

	var applied []SchemaMigrationModel
	if err := db.Find(&applied).Error; err != nil {
		return fmt.Errorf("failed to read schema versions: %w", err)
	}

	appliedVersions := make(map[int]bool, len(applied))
	for _, m := range applied {
		appliedVersions[m.Version] = true
	}

	for _, step := range migrationSteps {
		if appliedVersions[step.version] {
			continue
		}

		if err := step.apply(db); err != nil {
			return fmt.Errorf("migration %d (%s) failed: %w", step.version, step.name, err)
		}

		// A concurrent process may have recorded the version first
		marker := SchemaMigrationModel{Version: step.version, AppliedAt: time.Now().UTC()}
		if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&marker).Error; err != nil {
			return fmt.Errorf("failed to record migration %d: %w", step.version, err)
		}

		logging.Logger.Debug("Applied schema migration", "version", step.version, "name", step.name)
	}

	return nil
}

// Close closes the database connection
func (r *SQLiteRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Put implements TraceWriter.Put. Resubmitting the same span id replaces
// the row, which makes retried writes idempotent.
func (r *SQLiteRepository) Put(ctx context.Context, span domain.Span) error {
	model := spanToModel(span)
	return withRetry(func() error {
		return r.db.WithContext(ctx).
			Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "span_id"}},
				UpdateAll: true,
			}).
			Create(&model).Error
	}, 3)
}

// Recent implements TraceReader.Recent, most-recent-first
func (r *SQLiteRepository) Recent(ctx context.Context, sessionID string, limit int) ([]domain.Span, error) {
	var models []TraceModel

	err := withRetry(func() error {
		query := r.db.WithContext(ctx).Order("created_at DESC, id DESC").Limit(limit)
		if sessionID != "" {
			query = query.Where("session_id = ?", sessionID)
		}
		return query.Find(&models).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	spans := make([]domain.Span, len(models))
	for i, m := range models {
		spans[i] = modelToSpan(m)
	}
	return spans, nil
}

// ToolSequence implements TraceReader.ToolSequence, most-recent-first
func (r *SQLiteRepository) ToolSequence(ctx context.Context, sessionID string, limit int) ([]string, error) {
	var names []string

	err := withRetry(func() error {
		query := r.db.WithContext(ctx).Model(&TraceModel{}).
			Order("created_at DESC, id DESC").
			Limit(limit)
		if sessionID != "" {
			query = query.Where("session_id = ?", sessionID)
		}
		return query.Pluck("tool_name", &names).Error
	}, 3)
	if err != nil {
		return nil, err
	}

	return names, nil
}

// Stats implements TraceReader.Stats
func (r *SQLiteRepository) Stats(ctx context.Context) (ports.StoreStats, error) {
	stats := ports.StoreStats{SessionSpans: make(map[string]int64)}

	err := withRetry(func() error {
		if err := r.db.WithContext(ctx).Model(&TraceModel{}).Count(&stats.TotalSpans).Error; err != nil {
			return err
		}

		type sessionCount struct {
			SessionID string
			Count     int64
		}
		var counts []sessionCount
		if err := r.db.WithContext(ctx).Model(&TraceModel{}).
			Select("session_id, COUNT(*) as count").
			Group("session_id").
			Find(&counts).Error; err != nil {
			return err
		}

		for _, c := range counts {
			stats.SessionSpans[c.SessionID] = c.Count
		}
		return nil
	}, 3)
	if err != nil {
		return ports.StoreStats{}, err
	}

	return stats, nil
}

// ClearSession implements TraceAdmin.ClearSession, returning the number of
// rows deleted
func (r *SQLiteRepository) ClearSession(ctx context.Context, sessionID string) (int64, error) {
	var deleted int64
	err := withRetry(func() error {
		result := r.db.WithContext(ctx).Where("session_id = ?", sessionID).Delete(&TraceModel{})
		if result.Error != nil {
			return result.Error
		}
		deleted = result.RowsAffected
		return nil
	}, 3)
	if err != nil {
		return 0, err
	}
	return deleted, nil
}

// withRetry retries operations on SQLITE_BUSY with exponential backoff
func withRetry(fn func() error, maxRetries int) error {
	for i := 0; i < maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}

		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && (sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked) {
			time.Sleep(time.Millisecond * time.Duration(50*(i+1)))
			continue
		}

		return err
	}
	return fmt.Errorf("operation failed after %d retries", maxRetries)
}
