package auditlog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements LogStore on a SQLite database. Each pseudo-file is
// a name partition in a single lines table; Rename relabels the partition
// and Remove drops it. It is a drop-in replacement for FileStore when the
// audit log should live in a real datastore instead of a directory.
type SQLiteStore struct {
	db *sqlx.DB
}

// NewSQLiteStore opens (or creates) the audit database. Pass an empty
// dataDir for an in-memory store, used by tests.
func NewSQLiteStore(dataDir string) (*SQLiteStore, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "auditlog.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open audit database: %w", err)
	}
	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate audit database: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS log_lines (
			seq        INTEGER PRIMARY KEY AUTOINCREMENT,
			name       TEXT NOT NULL,
			line       TEXT NOT NULL,
			written_at INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_log_lines_name ON log_lines(name);
	`)
	return err
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) Append(ctx context.Context, name string, line []byte) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO log_lines (name, line, written_at) VALUES (?, ?, ?)`,
		name, string(line), time.Now().UnixMilli())
	return err
}

func (s *SQLiteStore) List(ctx context.Context) ([]FileInfo, error) {
	rows, err := s.db.QueryxContext(ctx, `
		SELECT name, SUM(LENGTH(line) + 1) AS size, MAX(written_at) AS mod_time
		FROM log_lines GROUP BY name ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileInfo
	for rows.Next() {
		var (
			info  FileInfo
			modMs int64
		)
		if err := rows.Scan(&info.Name, &info.Size, &modMs); err != nil {
			return nil, err
		}
		info.ModTime = time.UnixMilli(modMs)
		out = append(out, info)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	var lines []string
	err := s.db.SelectContext(ctx, &lines,
		`SELECT line FROM log_lines WHERE name = ? ORDER BY seq`, name)
	if err != nil {
		return nil, err
	}
	if len(lines) == 0 {
		return nil, fs.ErrNotExist
	}
	return io.NopCloser(strings.NewReader(strings.Join(lines, "\n") + "\n")), nil
}

func (s *SQLiteStore) Rename(ctx context.Context, oldName, newName string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE log_lines SET name = ? WHERE name = ?`, newName, oldName)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fs.ErrNotExist
	}
	return nil
}

func (s *SQLiteStore) Remove(ctx context.Context, name string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM log_lines WHERE name = ?`, name)
	return err
}

func (s *SQLiteStore) Stat(ctx context.Context, name string) (FileInfo, error) {
	var (
		info  FileInfo
		modMs int64
	)
	err := s.db.QueryRowxContext(ctx, `
		SELECT name, SUM(LENGTH(line) + 1), MAX(written_at)
		FROM log_lines WHERE name = ? GROUP BY name`, name).
		Scan(&info.Name, &info.Size, &modMs)
	if errors.Is(err, sql.ErrNoRows) {
		return FileInfo{}, fs.ErrNotExist
	}
	if err != nil {
		return FileInfo{}, err
	}
	info.ModTime = time.UnixMilli(modMs)
	return info, nil
}
