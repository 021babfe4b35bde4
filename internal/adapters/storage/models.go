package storage

import "time"

// TraceModel is the GORM model for the traces table
type TraceModel struct {
	ID         uint       `gorm:"primaryKey;autoIncrement"`
	Attributes string     `gorm:"default:'{}'"`
	CreatedAt  time.Time  `gorm:"index:idx_traces_created"`
	DurationMS *float64   `gorm:"default:null"`
	EndTime    *time.Time `gorm:"default:null"`
	Error      string     `gorm:"default:''"`
	HookType   string     `gorm:"default:''"`
	Kind       string     `gorm:"not null;default:'TOOL'"`
	ParentID   string     `gorm:"default:''"`
	SessionID  string     `gorm:"not null;index:idx_traces_session"`
	SpanID     string     `gorm:"not null;uniqueIndex:idx_traces_span"`
	Status     string     `gorm:"not null;default:'OK'"`
	Timestamp  time.Time  `gorm:"index:idx_traces_timestamp"`
	ToolInput  string     `gorm:"default:'{}'"`
	ToolName   string     `gorm:"not null;index:idx_traces_tool"`
	ToolOutput string     `gorm:"default:'{}'"`
	TraceID    string     `gorm:"index:idx_traces_trace"`
	WorkingDir string     `gorm:"default:''"`
}

// TableName specifies the table name for GORM
func (TraceModel) TableName() string { return "traces" }

// SchemaMigrationModel marks applied schema versions
type SchemaMigrationModel struct {
	Version   int `gorm:"primaryKey"`
	AppliedAt time.Time
}

// TableName specifies the table name for GORM
func (SchemaMigrationModel) TableName() string { return "schema_migrations" }
