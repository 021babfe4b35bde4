package config

import (
	"os"
	"path/filepath"
	"strings"
)

// GetDataDir returns the directory holding the database, trace archive,
// and guardian state files
func GetDataDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return ".vigia"
	}
	return filepath.Join(homeDir, ".vigia")
}

// GetSettingsFilePath returns the path to the user's settings file
func GetSettingsFilePath() string {
	return filepath.Join(GetDataDir(), "settings.json")
}

// ExpandPath expands a leading ~ to the user's home directory
func ExpandPath(path string) string {
	if path == "~" || strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		if path == "~" {
			return homeDir
		}
		return filepath.Join(homeDir, path[2:])
	}
	return path
}
