package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// LocalStorage is a storage implementation that stores objects on the local
// filesystem.
type LocalStorage struct {
	root string
}

var _ Storage = (*LocalStorage)(nil)

// NewLocalStorage creates a new LocalStorage rooted at the given directory.
func NewLocalStorage(root string) *LocalStorage {
	return &LocalStorage{root: root}
}

// Open implements Storage.
func (l *LocalStorage) Open(_ context.Context, name string) (Object, error) {
	return os.Open(l.fixPath(name))
}

// Stat implements Storage.
func (l *LocalStorage) Stat(_ context.Context, name string) (fs.FileInfo, error) {
	return os.Stat(l.fixPath(name))
}

// Put implements Storage.
func (l *LocalStorage) Put(_ context.Context, name string, r io.Reader) (int64, error) {
	name = l.fixPath(name)
	if err := os.MkdirAll(filepath.Dir(name), os.ModePerm); err != nil {
		return 0, err
	}

	f, err := os.Create(name)
	if err != nil {
		return 0, err
	}

	defer f.Close() // nolint: errcheck
	return io.Copy(f, r)
}

// Delete implements Storage.
func (l *LocalStorage) Delete(_ context.Context, name string) error {
	return os.Remove(l.fixPath(name))
}

// Exists implements Storage.
func (l *LocalStorage) Exists(_ context.Context, name string) (bool, error) {
	_, err := os.Stat(l.fixPath(name))
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

// Rename implements Storage.
func (l *LocalStorage) Rename(_ context.Context, oldName, newName string) error {
	oldName = l.fixPath(oldName)
	newName = l.fixPath(newName)
	if err := os.MkdirAll(filepath.Dir(newName), os.ModePerm); err != nil {
		return err
	}

	return os.Rename(oldName, newName)
}

// fixPath replaces all slashes with the OS-specific separator.
func (l LocalStorage) fixPath(path string) string {
	path = strings.ReplaceAll(path, "/", string(os.PathSeparator))
	if !filepath.IsAbs(path) {
		return filepath.Join(l.root, path)
	}

	return path
}
