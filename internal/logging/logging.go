package logging

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"

	"github.com/google/uuid"
)

// Logger is the public logger instance accessible from all packages
var Logger *slog.Logger

func init() {
	// Safe default so packages can log before Initialize runs
	Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
}

// Initialize sets up the logger from the debug flag, an optional fixed log
// file, and the retention limit. Returns the active log file path so the
// caller can hand it to subprocesses via the environment.
func Initialize(debug bool, debugFile string, maxLogFiles int) (string, error) {
	inherited := os.Getenv("VIGIA_DEBUG") == "1"
	debug, debugFile, maxLogFiles = applyEnvOverrides(debug, debugFile, maxLogFiles)

	if !debug && debugFile == "" {
		Logger = slog.New(slog.NewJSONHandler(io.Discard, nil))
		return "", nil
	}

	logFilePath, pruneErr := resolveLogFile(debugFile, maxLogFiles)
	if logFilePath == "" {
		return "", pruneErr
	}

	logFile, err := os.OpenFile(logFilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return "", fmt.Errorf("failed to create log file: %w", err)
	}

	Logger = slog.New(slog.NewJSONHandler(logFile, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	// Retention failures are reported through the fresh logger rather than
	// blocking startup
	if pruneErr != nil {
		Logger.Warn("Log pruning failed", "error", pruneErr)
	}

	// Subprocesses inherit VIGIA_DEBUG; only the process the user started
	// announces the log location, so hook children stay quiet
	if !inherited {
		Logger.Info("Debug logging initialized", "log_file", logFilePath)
		fmt.Fprintf(os.Stderr, "Debug mode enabled. Logs: %s\n", logFilePath)
	}

	return logFilePath, nil
}

// applyEnvOverrides folds inherited VIGIA_* settings into the explicit ones.
// Explicit values win; the defaults only yield to the environment.
func applyEnvOverrides(debug bool, debugFile string, maxLogFiles int) (bool, string, int) {
	if os.Getenv("VIGIA_DEBUG") == "1" {
		debug = true
	}
	if envFile := os.Getenv("VIGIA_DEBUG_FILE"); envFile != "" && debugFile == "" {
		debugFile = envFile
	}
	if envMax := os.Getenv("VIGIA_MAX_LOG_FILES"); envMax != "" && maxLogFiles == 1000 {
		if parsed, err := strconv.Atoi(envMax); err == nil {
			maxLogFiles = parsed
		}
	}
	return debug, debugFile, maxLogFiles
}

// resolveLogFile decides where this process logs. A fixed debugFile is used
// as-is with no retention; otherwise a UUID-named file is created in the
// OS log directory and old files are pruned. The prune error, if any, is
// returned alongside a usable path.
func resolveLogFile(debugFile string, maxLogFiles int) (string, error) {
	if debugFile != "" {
		if err := os.MkdirAll(filepath.Dir(debugFile), 0755); err != nil {
			return "", fmt.Errorf("failed to create log directory: %w", err)
		}
		return debugFile, nil
	}

	logDir, err := osLogDir()
	if err != nil {
		return "", fmt.Errorf("failed to get log directory: %w", err)
	}
	if err := os.MkdirAll(logDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create log directory: %w", err)
	}

	var pruneErr error
	if maxLogFiles > 0 {
		pruneErr = pruneOldLogs(logDir, maxLogFiles)
	}

	return filepath.Join(logDir, uuid.New().String()+".log"), pruneErr
}

// pruneOldLogs deletes the oldest .log files until the directory has room
// for one more under the limit
func pruneOldLogs(logDir string, maxLogFiles int) error {
	entries, err := os.ReadDir(logDir)
	if err != nil {
		return fmt.Errorf("failed to read log directory: %w", err)
	}

	type logFile struct {
		path  string
		mtime int64
	}
	var files []logFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".log" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, logFile{
			path:  filepath.Join(logDir, entry.Name()),
			mtime: info.ModTime().UnixNano(),
		})
	}

	// +1 makes room for the file about to be created
	excess := len(files) - maxLogFiles + 1
	if excess <= 0 {
		return nil
	}

	sort.Slice(files, func(i, j int) bool { return files[i].mtime < files[j].mtime })

	var errs []error
	for i := 0; i < excess && i < len(files); i++ {
		if err := os.Remove(files[i].path); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// osLogDir returns the OS-specific log directory
func osLogDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}

	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir, "Library", "Logs", "vigia"), nil
	case "linux":
		stateHome := os.Getenv("XDG_STATE_HOME")
		if stateHome == "" {
			stateHome = filepath.Join(homeDir, ".local", "state")
		}
		return filepath.Join(stateHome, "vigia"), nil
	case "windows":
		localAppData := os.Getenv("LOCALAPPDATA")
		if localAppData == "" {
			localAppData = filepath.Join(homeDir, "AppData", "Local")
		}
		return filepath.Join(localAppData, "vigia", "logs"), nil
	default:
		return filepath.Join(homeDir, ".vigia", "logs"), nil
	}
}
