// Package resolver maps repositories to local working paths, fetching and
// publishing remote snapshots for repositories stored in an object store.
package resolver

import (
	"context"

	"github.com/swadhinbiswas/opencodehub/pkg/proto"
)

// Resolver resolves a repository to a path on the local filesystem that git
// can operate on.
//
// Every successful resolve returns a Handle that must be released exactly
// once when the operation finishes. A write resolve's handle owns the
// repository lock: Release with didWrite set publishes whatever the writer
// changed before the lock is dropped, without it nothing is published. A
// read resolve's handle holds nothing, so releasing it can never disturb a
// concurrent writer.
type Resolver interface {
	Resolve(ctx context.Context, repo proto.RepositoryLocation, forWrite bool) (*Handle, error)
}

// Handle is a resolved repository working directory.
type Handle struct {
	dir     string
	release func(ctx context.Context, didWrite bool) error
}

// NewHandle builds a handle for the given working directory. release may be
// nil when the resolve holds nothing to let go of.
func NewHandle(dir string, release func(ctx context.Context, didWrite bool) error) *Handle {
	return &Handle{dir: dir, release: release}
}

// Dir returns the local working directory git can operate on.
func (h *Handle) Dir() string {
	return h.dir
}

// Release lets go of whatever the resolve holds. Only the first call does
// anything; releasing a handle twice is safe and returns nil.
func (h *Handle) Release(ctx context.Context, didWrite bool) error {
	if h == nil || h.release == nil {
		return nil
	}

	release := h.release
	h.release = nil
	return release(ctx, didWrite)
}
