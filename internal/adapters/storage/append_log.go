package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sys/unix"

	"vigia/internal/domain"
	"vigia/internal/logging"
	"vigia/internal/ports"
)

const (
	logFilePrefix = "traces-"
	logFileSuffix = ".jsonl"

	// Scanner buffer sizes for reading log lines (payloads can be large)
	scannerInitialBuffer = 1024 * 1024
	scannerMaxBuffer     = 10 * 1024 * 1024
)

// AppendLog is the date-partitioned JSONL archive of every span. Files are
// opened per call in append mode so concurrent hook processes never share a
// handle; an exclusive flock guards each line write.
type AppendLog struct {
	dir string
	now func() time.Time
}

// Verify interface compliance at compile time
var (
	_ ports.AppendLog       = (*AppendLog)(nil)
	_ ports.AppendLogReader = (*AppendLog)(nil)
)

// NewAppendLog creates an AppendLog rooted at dir
func NewAppendLog(dir string) (*AppendLog, error) {
	if len(dir) > 0 && dir[0] == '~' {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		dir = filepath.Join(homeDir, dir[1:])
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create traces directory: %w", err)
	}

	return &AppendLog{
		dir: dir,
		now: func() time.Time { return time.Now().UTC() },
	}, nil
}

// logRecord is one JSONL line: the full span plus the originating payload
type logRecord struct {
	domain.Span
	Raw map[string]any `json:"raw,omitempty"`
}

// Append writes one complete JSON line for the span to today's partition
func (l *AppendLog) Append(span domain.Span, raw map[string]any) error {
	data, err := json.Marshal(logRecord{Span: span, Raw: raw})
	if err != nil {
		return fmt.Errorf("failed to encode span: %w", err)
	}

	path := l.pathForDate(l.now())
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open log file: %w", err)
	}
	defer file.Close()

	if err := unix.Flock(int(file.Fd()), unix.LOCK_EX); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer unix.Flock(int(file.Fd()), unix.LOCK_UN)

	if _, err := file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to append span: %w", err)
	}

	return nil
}

// ReadDays scans the most recent n day files, newest file first. Day files
// are read concurrently; a file that fails to read or a line that fails to
// decode is skipped, not fatal.
func (l *AppendLog) ReadDays(n int) ([]domain.Span, error) {
	files, err := l.dayFiles()
	if err != nil {
		return nil, err
	}
	if n > 0 && len(files) > n {
		files = files[:n]
	}

	results := make([][]domain.Span, len(files))
	var g errgroup.Group
	for i, path := range files {
		i, path := i, path
		g.Go(func() error {
			daySpans, err := l.readFile(path)
			if err != nil {
				logging.Logger.Warn("Failed to read trace log file", "file", path, "error", err)
				// Non-fatal - continue with other days
				return nil
			}
			results[i] = daySpans
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var spans []domain.Span
	for _, daySpans := range results {
		spans = append(spans, daySpans...)
	}
	return spans, nil
}

// dayFiles lists partition files, newest date first
func (l *AppendLog) dayFiles() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read traces directory: %w", err)
	}

	var files []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, logFilePrefix) || !strings.HasSuffix(name, logFileSuffix) {
			continue
		}
		files = append(files, filepath.Join(l.dir, name))
	}

	// File names embed the date, so lexical order is date order
	sort.Sort(sort.Reverse(sort.StringSlice(files)))
	return files, nil
}

func (l *AppendLog) readFile(path string) ([]domain.Span, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	var spans []domain.Span
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, scannerInitialBuffer), scannerMaxBuffer)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var record logRecord
		if err := json.Unmarshal(line, &record); err != nil {
			logging.Logger.Debug("Skipping undecodable trace line", "file", path, "error", err)
			continue
		}
		spans = append(spans, record.Span)
	}
	if err := scanner.Err(); err != nil {
		return spans, fmt.Errorf("failed to scan %s: %w", path, err)
	}

	return spans, nil
}

func (l *AppendLog) pathForDate(t time.Time) string {
	name := fmt.Sprintf("%s%s%s", logFilePrefix, t.Format("2006-01-02"), logFileSuffix)
	return filepath.Join(l.dir, name)
}
