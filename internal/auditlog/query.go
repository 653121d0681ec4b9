package auditlog

import (
	"bufio"
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/keygate/keygate/internal/model"
)

// DefaultQueryLimit caps query results when the caller passes no limit.
const DefaultQueryLimit = 100

// Filter narrows a query over the audit log. Zero-valued fields match
// everything.
type Filter struct {
	Start    time.Time
	End      time.Time
	ToolID   string
	UserName string
}

func (f Filter) matches(e model.AccessLogEntry) bool {
	if f.ToolID != "" && e.ToolID != f.ToolID {
		return false
	}
	if f.UserName != "" && e.UserName != f.UserName {
		return false
	}
	if !f.Start.IsZero() || !f.End.IsZero() {
		t := e.Time()
		if t.IsZero() {
			return false
		}
		if !f.Start.IsZero() && t.Before(f.Start) {
			return false
		}
		if !f.End.IsZero() && t.After(f.End) {
			return false
		}
	}
	return true
}

// Reader queries stored audit entries. It shares the LogStore with the
// write path but holds no mutable state of its own.
type Reader struct {
	store  LogStore
	logger *slog.Logger
	now    func() time.Time
}

// NewReader creates a Reader over the given store.
func NewReader(store LogStore, logger *slog.Logger) *Reader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reader{store: store, logger: logger, now: time.Now}
}

// Query returns up to limit entries matching the filter, newest first.
// Files are visited most-recent-day first; unparseable lines are skipped
// with a warning and a single unreadable file never aborts the whole read.
func (r *Reader) Query(ctx context.Context, f Filter, limit int) ([]model.AccessLogEntry, error) {
	if limit <= 0 {
		limit = DefaultQueryLimit
	}
	if r.store == nil {
		return nil, nil
	}

	files, err := r.listNewestFirst(ctx)
	if err != nil {
		return nil, err
	}

	var out []model.AccessLogEntry
	for _, name := range files {
		entries := r.readFile(ctx, name)
		// Lines within a file are chronological; walk them backwards so
		// the combined result stays newest-first.
		for i := len(entries) - 1; i >= 0 && len(out) < limit; i-- {
			if f.matches(entries[i]) {
				out = append(out, entries[i])
			}
		}
		if len(out) >= limit {
			break
		}
	}
	return out, nil
}

// listNewestFirst returns audit file names ordered newest day first; within
// a day the active file sorts before rotated ones, which are older content.
func (r *Reader) listNewestFirst(ctx context.Context) ([]string, error) {
	files, err := r.store.List(ctx)
	if err != nil {
		return nil, err
	}
	type dated struct {
		name string
		day  string
		mod  time.Time
	}
	var logs []dated
	for _, f := range files {
		day, ok := dayOfFile(f.Name)
		if !ok {
			continue
		}
		logs = append(logs, dated{name: f.Name, day: day, mod: f.ModTime})
	}
	sort.Slice(logs, func(i, j int) bool {
		if logs[i].day != logs[j].day {
			return logs[i].day > logs[j].day
		}
		return logs[i].mod.After(logs[j].mod)
	})
	names := make([]string, len(logs))
	for i, l := range logs {
		names[i] = l.name
	}
	return names, nil
}

// readFile parses one log file line by line. Corrupt or partially written
// lines are counted and skipped, never fatal.
func (r *Reader) readFile(ctx context.Context, name string) []model.AccessLogEntry {
	rc, err := r.store.Read(ctx, name)
	if err != nil {
		r.logger.Warn("audit file unreadable, skipping", "file", name, "error", err)
		return nil
	}
	defer rc.Close()

	var (
		entries []model.AccessLogEntry
		skipped int
	)
	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var e model.AccessLogEntry
		if err := json.Unmarshal(line, &e); err != nil {
			skipped++
			continue
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		r.logger.Warn("audit file read aborted", "file", name, "error", err)
	}
	if skipped > 0 {
		r.logger.Warn("corrupt audit lines skipped", "file", name, "count", skipped)
	}
	return entries
}
