package storage

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"strings"
	"testing"

	"github.com/matryer/is"
)

func TestLocalStoragePutOpen(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	s := NewLocalStorage(t.TempDir())

	n, err := s.Put(ctx, "objects/ab/cd/abcd", strings.NewReader("hello"))
	is.NoErr(err)
	is.Equal(n, int64(5))

	obj, err := s.Open(ctx, "objects/ab/cd/abcd")
	is.NoErr(err)
	defer obj.Close() // nolint: errcheck

	b, err := io.ReadAll(obj)
	is.NoErr(err)
	is.Equal(string(b), "hello")

	stat, err := s.Stat(ctx, "objects/ab/cd/abcd")
	is.NoErr(err)
	is.Equal(stat.Size(), int64(5))
}

func TestLocalStorageMissing(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	s := NewLocalStorage(t.TempDir())

	_, err := s.Open(ctx, "nope")
	is.True(errors.Is(err, fs.ErrNotExist))

	ok, err := s.Exists(ctx, "nope")
	is.NoErr(err)
	is.True(!ok)
}

func TestLocalStorageRename(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	s := NewLocalStorage(t.TempDir())

	_, err := s.Put(ctx, "tmp/snapshot", strings.NewReader("data"))
	is.NoErr(err)

	is.NoErr(s.Rename(ctx, "tmp/snapshot", "repos/final"))

	ok, err := s.Exists(ctx, "repos/final")
	is.NoErr(err)
	is.True(ok)

	ok, err = s.Exists(ctx, "tmp/snapshot")
	is.NoErr(err)
	is.True(!ok)
}
