package auditlog

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"log/slog"
	"math/rand/v2"
	"time"

	"github.com/google/uuid"

	"github.com/keygate/keygate/internal/model"
)

// Config controls the logger's write path.
type Config struct {
	Enabled          bool    // master switch; Record is a no-op when false
	ConsoleLog       bool    // mirror entries to the process logger
	FileLog          bool    // persist entries to the store
	MaxFileSize      int64   // rotation threshold in bytes
	RetentionDays    int     // files older than this are swept; 0 disables
	SweepProbability float64 // chance per Record of triggering a sweep
}

// DefaultConfig mirrors the defaults the service ships with: 10 MB rotation
// threshold, 90-day retention, a sweep on roughly 1% of writes.
func DefaultConfig() Config {
	return Config{
		Enabled:          true,
		ConsoleLog:       false,
		FileLog:          true,
		MaxFileSize:      10 * 1024 * 1024,
		RetentionDays:    90,
		SweepProbability: 0.01,
	}
}

// Logger appends audit entries to a LogStore. Every failure on the write
// path is swallowed and reported through slog: recording an audit entry
// must never fail the request that triggered it.
type Logger struct {
	store  LogStore
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
	chance func() float64
}

// New creates a Logger. store may be nil when file persistence is disabled.
func New(store LogStore, cfg Config, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{
		store:  store,
		cfg:    cfg,
		logger: logger,
		now:    time.Now,
		chance: rand.Float64,
	}
}

// Record persists one audit entry. Fire and forget: it never returns an
// error and never panics past its own boundary.
func (l *Logger) Record(ctx context.Context, entry model.AccessLogEntry) {
	if !l.cfg.Enabled {
		return
	}

	now := l.now()
	if entry.ID == "" {
		entry.ID = uuid.Must(uuid.NewV7()).String()
	}
	if entry.Timestamp == "" {
		entry.Timestamp = now.UTC().Format(time.RFC3339)
	}

	if l.cfg.ConsoleLog {
		l.logger.Info("audit",
			"action", entry.Action,
			"user", entry.UserName,
			"tool", entry.ToolID,
			"ip", entry.IP,
		)
	}

	if !l.cfg.FileLog || l.store == nil {
		return
	}

	line, err := json.Marshal(entry)
	if err != nil {
		l.logger.Error("audit entry not serializable, dropping", "error", err)
		return
	}

	name := fileNameForDay(now)
	l.rotateIfOversized(ctx, name, now)

	if err := l.store.Append(ctx, name, line); err != nil {
		l.logger.Error("audit append failed, entry dropped", "file", name, "error", err)
		return
	}

	l.MaybeRunRetentionSweep(ctx)
}

// rotateIfOversized renames the active file once it exceeds the size
// threshold, before the write that would grow it further. Rotation races
// between concurrent writers resolve as "someone else already rotated".
func (l *Logger) rotateIfOversized(ctx context.Context, name string, now time.Time) {
	if l.cfg.MaxFileSize <= 0 {
		return
	}
	info, err := l.store.Stat(ctx, name)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			l.logger.Warn("audit rotation stat failed", "file", name, "error", err)
		}
		return
	}
	if info.Size < l.cfg.MaxFileSize {
		return
	}
	rotated := rotatedName(name, now)
	if err := l.store.Rename(ctx, name, rotated); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return // concurrent writer won the rename
		}
		l.logger.Warn("audit rotation failed, continuing on oversized file", "file", name, "error", err)
		return
	}
	l.logger.Info("audit log rotated", "from", name, "to", rotated, "bytes", info.Size)
}

// MaybeRunRetentionSweep runs the retention sweep with the configured
// probability. Callers that prefer scheduled cleanup can call
// RunRetentionSweep directly instead.
func (l *Logger) MaybeRunRetentionSweep(ctx context.Context) {
	if l.cfg.SweepProbability <= 0 || l.chance() >= l.cfg.SweepProbability {
		return
	}
	l.RunRetentionSweep(ctx)
}

// RunRetentionSweep deletes log files whose modification time is older than
// the retention window.
func (l *Logger) RunRetentionSweep(ctx context.Context) {
	if l.cfg.RetentionDays <= 0 || l.store == nil {
		return
	}
	cutoff := l.now().Add(-time.Duration(l.cfg.RetentionDays) * 24 * time.Hour)

	files, err := l.store.List(ctx)
	if err != nil {
		l.logger.Warn("retention sweep list failed", "error", err)
		return
	}
	for _, f := range files {
		if _, ok := dayOfFile(f.Name); !ok {
			continue
		}
		if !f.ModTime.Before(cutoff) {
			continue
		}
		if err := l.store.Remove(ctx, f.Name); err != nil {
			l.logger.Warn("retention sweep delete failed", "file", f.Name, "error", err)
			continue
		}
		l.logger.Info("expired audit log deleted", "file", f.Name, "age_days", int(l.now().Sub(f.ModTime).Hours()/24))
	}
}

// Store exposes the underlying store for the query path.
func (l *Logger) Store() LogStore {
	return l.store
}
