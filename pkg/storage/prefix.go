package storage

import (
	"context"
	"io"
	"io/fs"
	"path"
)

// prefixStorage namespaces every object name under a fixed prefix. It lets
// one bucket hold repository snapshots and per-repository LFS objects side
// by side.
type prefixStorage struct {
	Storage
	prefix string
}

// WithPrefix returns a view of s with all names prefixed.
func WithPrefix(s Storage, prefix string) Storage {
	if prefix == "" {
		return s
	}

	return &prefixStorage{Storage: s, prefix: prefix}
}

func (p *prefixStorage) name(name string) string {
	return path.Join(p.prefix, name)
}

// Open implements Storage.
func (p *prefixStorage) Open(ctx context.Context, name string) (Object, error) {
	return p.Storage.Open(ctx, p.name(name))
}

// Stat implements Storage.
func (p *prefixStorage) Stat(ctx context.Context, name string) (fs.FileInfo, error) {
	return p.Storage.Stat(ctx, p.name(name))
}

// Put implements Storage.
func (p *prefixStorage) Put(ctx context.Context, name string, r io.Reader) (int64, error) {
	return p.Storage.Put(ctx, p.name(name), r)
}

// Delete implements Storage.
func (p *prefixStorage) Delete(ctx context.Context, name string) error {
	return p.Storage.Delete(ctx, p.name(name))
}

// Exists implements Storage.
func (p *prefixStorage) Exists(ctx context.Context, name string) (bool, error) {
	return p.Storage.Exists(ctx, p.name(name))
}

// Rename implements Storage.
func (p *prefixStorage) Rename(ctx context.Context, oldName, newName string) error {
	return p.Storage.Rename(ctx, p.name(oldName), p.name(newName))
}
