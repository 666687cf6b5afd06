package git

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/format/pktline"
)

// WritePktline encodes and writes a pkt-line message to the given writer,
// followed by a flush-pkt.
func WritePktline(w io.Writer, v ...interface{}) error {
	msg := fmt.Sprintln(v...)
	pkt := pktline.NewEncoder(w)
	if err := pkt.EncodeString(msg); err != nil {
		return fmt.Errorf("git: error writing pkt-line message: %w", err)
	}
	if err := pkt.Flush(); err != nil {
		return fmt.Errorf("git: error flushing pkt-line message: %w", err)
	}

	return nil
}

// InitBare initializes a bare repository at the given path. It is a no-op if
// the repository already exists.
func InitBare(path string) error {
	_, err := gogit.PlainInit(path, true)
	if err != nil && err != gogit.ErrRepositoryAlreadyExists {
		return fmt.Errorf("git: init bare %q: %w", path, err)
	}

	return nil
}

// IsRepo reports whether the given path holds a git repository.
func IsRepo(path string) bool {
	_, err := gogit.PlainOpen(path)
	return err == nil
}

// EnsureWithin ensures the given repo path is within the root directory.
func EnsureWithin(root string, repo string) error {
	repoDir := filepath.Join(root, repo)
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return err
	}
	absRepo, err := filepath.Abs(repoDir)
	if err != nil {
		return err
	}

	if !strings.HasPrefix(absRepo, absRoot) {
		return fmt.Errorf("git: repo path %q is outside of %q", absRepo, absRoot)
	}

	return nil
}
