package config

import (
	"encoding/json"
	"fmt"
	"os"
)

// StringArray is a string slice that also accepts a single JSON string,
// so users can write "break_loop" instead of ["break_loop"].
type StringArray []string

// UnmarshalJSON implements tolerant decoding for StringArray
func (a *StringArray) UnmarshalJSON(data []byte) error {
	var single string
	if err := json.Unmarshal(data, &single); err == nil {
		*a = StringArray{single}
		return nil
	}

	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("value must be a string or an array of strings")
	}
	*a = StringArray(many)
	return nil
}

// GuardianSettings configures the enforcement layer.
// Pointer fields distinguish "not set" from zero values.
type GuardianSettings struct {
	AutoFixTypes      StringArray `json:"auto_fix_types,omitempty"`
	BlockThreshold    *int        `json:"block_threshold,omitempty"`
	BlockedFixes      StringArray `json:"blocked_fixes,omitempty"`
	MaxAutoFixes      *int        `json:"max_auto_fixes,omitempty"`
	Mode              string      `json:"mode,omitempty"`
	PatternWindow     *int        `json:"pattern_window,omitempty"`
	SeverityThreshold *int        `json:"severity_threshold,omitempty"`
}

// Settings represents user configuration loaded from settings.json
type Settings struct {
	DBPath      string           `json:"db_path,omitempty"`
	DataDir     string           `json:"data_dir,omitempty"`
	Debug       *bool            `json:"debug,omitempty"`
	Guardian    GuardianSettings `json:"guardian,omitempty"`
	MaxLogFiles *int             `json:"max_log_files,omitempty"`
	TracesDir   string           `json:"traces_dir,omitempty"`
}

// LoadSettings reads settings from the default settings file.
// A missing file yields empty settings; a malformed file is an error.
func LoadSettings() (*Settings, error) {
	return LoadSettingsFromPath(GetSettingsFilePath())
}

// LoadSettingsFromPath reads settings from a specific path
func LoadSettingsFromPath(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Settings{}, nil
		}
		return nil, fmt.Errorf("failed to read settings file: %w", err)
	}

	var settings Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		return nil, fmt.Errorf("failed to parse settings file %s: %w", path, err)
	}

	return &settings, nil
}

// Guardian defaults applied when settings leave fields unset.
const (
	DefaultGuardianMode      = "manual"
	DefaultSeverityThreshold = 40
	DefaultBlockThreshold    = 60
	DefaultMaxAutoFixes      = 10
	DefaultPatternWindow     = 10
)

// DefaultAutoFixTypes returns the fixes approved for auto mode out of the box
func DefaultAutoFixTypes() []string {
	return []string{"break_loop", "add_delay", "switch_strategy"}
}

// DefaultBlockedFixes returns the fixes that always escalate, whatever the
// allowlist says
func DefaultBlockedFixes() []string {
	return []string{"delete_file", "git_push", "external_api"}
}

// GuardianConfig is the fully-resolved guardian configuration
type GuardianConfig struct {
	AutoFixTypes      []string
	BlockThreshold    int
	BlockedFixes      []string
	MaxAutoFixes      int
	Mode              string
	PatternWindow     int
	SeverityThreshold int
}

// Resolve fills in defaults for every unset guardian field
func (g GuardianSettings) Resolve() GuardianConfig {
	cfg := GuardianConfig{
		AutoFixTypes:      DefaultAutoFixTypes(),
		BlockThreshold:    DefaultBlockThreshold,
		BlockedFixes:      DefaultBlockedFixes(),
		MaxAutoFixes:      DefaultMaxAutoFixes,
		Mode:              DefaultGuardianMode,
		PatternWindow:     DefaultPatternWindow,
		SeverityThreshold: DefaultSeverityThreshold,
	}

	if g.Mode != "" {
		cfg.Mode = g.Mode
	}
	if g.SeverityThreshold != nil {
		cfg.SeverityThreshold = *g.SeverityThreshold
	}
	if g.BlockThreshold != nil {
		cfg.BlockThreshold = *g.BlockThreshold
	}
	if g.MaxAutoFixes != nil {
		cfg.MaxAutoFixes = *g.MaxAutoFixes
	}
	if g.PatternWindow != nil {
		cfg.PatternWindow = *g.PatternWindow
	}
	if len(g.AutoFixTypes) > 0 {
		cfg.AutoFixTypes = g.AutoFixTypes
	}
	if len(g.BlockedFixes) > 0 {
		cfg.BlockedFixes = g.BlockedFixes
	}

	return cfg
}
