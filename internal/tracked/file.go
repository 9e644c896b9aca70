// internal/tracked/file.go
package tracked

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// File is the tracked file the version tree snapshots. Writes are full
// overwrites, never appends.
type File interface {
	Path() string
	ReadAll() ([]byte, error)
	WriteAll(data []byte) error
}

// LocalFile is a File on the local filesystem. Writes go through a uniquely
// named temp file in the same directory followed by a rename, so a crashed
// rollback never leaves a half-written tracked file.
type LocalFile struct {
	path string
}

func NewLocalFile(path string) *LocalFile {
	return &LocalFile{path: path}
}

func (f *LocalFile) Path() string {
	return f.path
}

func (f *LocalFile) ReadAll() ([]byte, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		return nil, fmt.Errorf("reading tracked file %s: %w", f.path, err)
	}
	return data, nil
}

func (f *LocalFile) WriteAll(data []byte) error {
	dir := filepath.Dir(f.path)
	tmp := filepath.Join(dir, fmt.Sprintf(".%s.tmp-%s", filepath.Base(f.path), uuid.New().String()))

	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("replacing tracked file %s: %w", f.path, err)
	}
	return nil
}
