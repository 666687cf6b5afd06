package resolver

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

// LocalResolver serves repositories straight from a directory on the local
// filesystem. Resolve is a pure path computation and its handles hold
// nothing; durability is whatever the filesystem provides.
type LocalResolver struct {
	root string
}

var _ Resolver = (*LocalResolver)(nil)

// NewLocalResolver creates a resolver rooted at the given repositories
// directory.
func NewLocalResolver(root string) *LocalResolver {
	return &LocalResolver{root: root}
}

// Resolve implements Resolver.
func (l *LocalResolver) Resolve(_ context.Context, repo proto.RepositoryLocation, forWrite bool) (*Handle, error) {
	path := filepath.Join(l.root, repo.Name)
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			if forWrite {
				// First push creates the repository directory.
				return NewHandle(path, nil), nil
			}
			return nil, proto.ErrRepoNotFound
		}
		return nil, err
	}

	return NewHandle(path, nil), nil
}
