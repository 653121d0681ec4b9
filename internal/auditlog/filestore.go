package auditlog

import (
	"context"
	"io"
	"os"
	"path/filepath"
)

// FileStore is the default LogStore: a flat directory of newline-delimited
// JSON files. It relies on O_APPEND single-write semantics for atomic line
// appends; no in-process locking is used.
type FileStore struct {
	dir string
}

// NewFileStore returns a store rooted at dir. The directory is created
// lazily on the first append.
func NewFileStore(dir string) *FileStore {
	return &FileStore{dir: dir}
}

// Dir returns the directory the store writes into.
func (s *FileStore) Dir() string {
	return s.dir
}

func (s *FileStore) Append(ctx context.Context, name string, line []byte) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(filepath.Join(s.dir, name), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	// One Write call per entry: the kernel serializes O_APPEND writes, so
	// concurrent records never interleave within a line.
	buf := make([]byte, 0, len(line)+1)
	buf = append(buf, line...)
	buf = append(buf, '\n')
	if _, err := f.Write(buf); err != nil {
		return err
	}
	return nil
}

func (s *FileStore) List(ctx context.Context) ([]FileInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var out []FileInfo
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		out = append(out, FileInfo{Name: e.Name(), Size: info.Size(), ModTime: info.ModTime()})
	}
	return out, nil
}

func (s *FileStore) Read(ctx context.Context, name string) (io.ReadCloser, error) {
	return os.Open(filepath.Join(s.dir, name))
}

func (s *FileStore) Rename(ctx context.Context, oldName, newName string) error {
	return os.Rename(filepath.Join(s.dir, oldName), filepath.Join(s.dir, newName))
}

func (s *FileStore) Remove(ctx context.Context, name string) error {
	return os.Remove(filepath.Join(s.dir, name))
}

func (s *FileStore) Stat(ctx context.Context, name string) (FileInfo, error) {
	info, err := os.Stat(filepath.Join(s.dir, name))
	if err != nil {
		return FileInfo{}, err
	}
	return FileInfo{Name: name, Size: info.Size(), ModTime: info.ModTime()}, nil
}
