// Package storage provides blob storage backends.
package storage

import (
	"context"
	"io"
	"io/fs"
)

// Object is a stored object open for reading.
type Object interface {
	io.ReadSeekCloser

	// Name returns the object name.
	Name() string

	// Stat returns the object file info.
	Stat() (fs.FileInfo, error)
}

// Storage is an interface for storing and retrieving objects.
//
// Implementations report missing objects with errors matching fs.ErrNotExist.
type Storage interface {
	Open(ctx context.Context, name string) (Object, error)
	Stat(ctx context.Context, name string) (fs.FileInfo, error)
	Put(ctx context.Context, name string, r io.Reader) (int64, error)
	Delete(ctx context.Context, name string) error
	Exists(ctx context.Context, name string) (bool, error)

	// Rename atomically replaces newName with oldName's content. It is the
	// publish primitive for atomic snapshot swaps.
	Rename(ctx context.Context, oldName, newName string) error
}
