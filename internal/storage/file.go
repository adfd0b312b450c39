package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
)

// File keeps one JSON document per user in a directory.
type File struct {
	dir string
}

var _ Store = (*File)(nil)

// NewFile creates dir when needed.
func NewFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("storage: create %q: %w", dir, err)
	}
	return &File{dir: dir}, nil
}

// path maps an id to a file name that cannot escape the directory.
func (f *File) path(id string) string {
	return filepath.Join(f.dir, url.PathEscape(id)+".json")
}

// Get implements [Store].
func (f *File) Get(_ context.Context, id string) (map[string]any, error) {
	data, err := os.ReadFile(f.path(id))
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("storage: read %q: %w", id, err)
	}
	return decode(data)
}

// Set implements [Store]. The file is replaced atomically.
func (f *File) Set(_ context.Context, id string, obj map[string]any) error {
	data, err := encode(obj)
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("storage: write %q: %w", id, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("storage: write %q: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("storage: write %q: %w", id, err)
	}
	if err := os.Rename(tmp.Name(), f.path(id)); err != nil {
		return fmt.Errorf("storage: write %q: %w", id, err)
	}
	return nil
}
