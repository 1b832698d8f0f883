package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/spf13/afero"
)

// FS stores files on an afero filesystem.
type FS struct {
	fs afero.Fs
}

// NewFS wraps fsys.
func NewFS(fsys afero.Fs) *FS {
	return &FS{fs: fsys}
}

// NewOS stores files on disk beneath root.
func NewOS(root string) *FS {
	return NewFS(afero.NewBasePathFs(afero.NewOsFs(), root))
}

// NewMemory stores files in memory. Useful for tests and dry runs.
func NewMemory() *FS {
	return NewFS(afero.NewMemMapFs())
}

func (f *FS) Exists(_ context.Context, path string) (bool, error) {
	return afero.Exists(f.fs, path)
}

func (f *FS) Read(_ context.Context, path string) ([]byte, error) {
	data, err := afero.ReadFile(f.fs, path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotExist, path)
	}
	return data, err
}

func (f *FS) Write(_ context.Context, path string, data []byte) error {
	if err := f.fs.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create dir for %s: %w", path, err)
	}
	if err := afero.WriteFile(f.fs, path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func (f *FS) Close() error { return nil }
