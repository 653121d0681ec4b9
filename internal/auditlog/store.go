// Package auditlog is the append-only access audit log: a write path with
// size-based rotation and probabilistic retention sweeps, plus query,
// aggregation, and CSV export over the stored entries.
package auditlog

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"time"
)

// FileInfo describes one stored log file.
type FileInfo struct {
	Name    string
	Size    int64
	ModTime time.Time
}

// LogStore is the storage primitive set the logger is built on. The default
// implementation is a directory of files; SQLiteStore provides the same
// contract over a database so the policy and aggregation logic never touch
// the filesystem directly.
type LogStore interface {
	// Append adds one line to the named file, creating it if needed. The
	// line must be written atomically with its trailing newline so
	// concurrent appends never interleave partial lines.
	Append(ctx context.Context, name string, line []byte) error
	// List returns all stored log files.
	List(ctx context.Context) ([]FileInfo, error)
	// Read opens the named file for sequential reading.
	Read(ctx context.Context, name string) (io.ReadCloser, error)
	// Rename moves a file aside, used for rotation.
	Rename(ctx context.Context, oldName, newName string) error
	// Remove deletes a file, used by the retention sweep.
	Remove(ctx context.Context, name string) error
	// Stat returns metadata for one file. Missing files report
	// fs.ErrNotExist.
	Stat(ctx context.Context, name string) (FileInfo, error)
}

const (
	filePrefix = "access-"
	fileSuffix = ".json"
	dayFormat  = "2006-01-02"
)

// fileNamePattern matches both daily files (access-2025-01-31.json) and
// rotated variants (access-2025-01-31-1738339200000.json).
var fileNamePattern = regexp.MustCompile(`^access-(\d{4}-\d{2}-\d{2})(-\d+)?\.json$`)

// fileNameForDay returns the active file name for the given UTC day.
func fileNameForDay(t time.Time) string {
	return filePrefix + t.UTC().Format(dayFormat) + fileSuffix
}

// rotatedName returns the name an oversized file is renamed to. The suffix
// is the rotation instant in Unix milliseconds, which keeps rotated files
// sortable and collision-free under normal operation.
func rotatedName(activeName string, at time.Time) string {
	base := activeName[:len(activeName)-len(fileSuffix)]
	return fmt.Sprintf("%s-%d%s", base, at.UnixMilli(), fileSuffix)
}

// dayOfFile extracts the calendar day from a log file name. ok is false for
// files that are not part of the audit log.
func dayOfFile(name string) (string, bool) {
	m := fileNamePattern.FindStringSubmatch(name)
	if m == nil {
		return "", false
	}
	return m[1], true
}
