package resolver

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matryer/is"
	"github.com/swadhinbiswas/opencodehub/pkg/lock"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/storage"
)

func TestLocalResolver(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	root := t.TempDir()
	r := NewLocalResolver(root)

	repo := proto.RepositoryLocation{Name: "octo/hello.git", Tier: proto.TierLocal}

	// Reads of a missing repository fail.
	_, err := r.Resolve(ctx, repo, false)
	is.True(errors.Is(err, proto.ErrRepoNotFound))

	// Writes may create the repository.
	h, err := r.Resolve(ctx, repo, true)
	is.NoErr(err)
	is.Equal(h.Dir(), filepath.Join(root, "octo/hello.git"))
	is.NoErr(os.MkdirAll(h.Dir(), os.ModePerm))
	is.NoErr(h.Release(ctx, true))

	// Subsequent reads resolve to the same path.
	h2, err := r.Resolve(ctx, repo, false)
	is.NoErr(err)
	is.Equal(h2.Dir(), h.Dir())
	is.NoErr(h2.Release(ctx, false))
}

func newTieredResolver(t *testing.T) (*TieredResolver, *storage.LocalStorage, lock.Manager) {
	t.Helper()
	st := storage.NewLocalStorage(t.TempDir())
	locks := lock.NewMemoryManager()
	r := NewTieredResolver(st, locks, t.TempDir(), time.Minute, time.Minute, nil)
	return r, st, locks
}

func TestTieredResolverMissingSnapshot(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	r, _, _ := newTieredResolver(t)

	repo := proto.RepositoryLocation{Name: "missing", Tier: proto.TierRemote}
	_, err := r.Resolve(ctx, repo, false)
	is.True(errors.Is(err, proto.ErrRepoNotFound))
}

func TestTieredResolverWriteRoundtrip(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	r, st, _ := newTieredResolver(t)

	repo := proto.RepositoryLocation{Name: "octo/hello", Tier: proto.TierRemote}

	// First write starts from an empty bare repository.
	w, err := r.Resolve(ctx, repo, true)
	is.NoErr(err)
	is.NoErr(os.MkdirAll(filepath.Join(w.Dir(), "refs", "heads"), os.ModePerm))
	is.NoErr(os.WriteFile(filepath.Join(w.Dir(), "refs", "heads", "main"), []byte("a1d0c6e83f027327d8461063f4ac58a6a0c6e83f\n"), 0o644))
	is.NoErr(w.Release(ctx, true))

	// The snapshot is published under the canonical key.
	ok, err := st.Exists(ctx, "repos/octo/hello.tar")
	is.NoErr(err)
	is.True(ok)

	// A cold resolver restores the snapshot from storage.
	r2 := NewTieredResolver(st, lock.NewMemoryManager(), t.TempDir(), time.Minute, time.Minute, nil)
	h, err := r2.Resolve(ctx, repo, false)
	is.NoErr(err)
	b, err := os.ReadFile(filepath.Join(h.Dir(), "refs", "heads", "main"))
	is.NoErr(err)
	is.Equal(string(b), "a1d0c6e83f027327d8461063f4ac58a6a0c6e83f\n")
	is.NoErr(h.Release(ctx, false))
}

func TestTieredResolverReadDoesNotPublish(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	r, st, _ := newTieredResolver(t)

	repo := proto.RepositoryLocation{Name: "quiet", Tier: proto.TierRemote}

	w, err := r.Resolve(ctx, repo, true)
	is.NoErr(err)
	is.NoErr(w.Release(ctx, true))

	info, err := st.Stat(ctx, "repos/quiet.tar")
	is.NoErr(err)
	published := info.ModTime()

	// A write resolve released without didWrite leaves the snapshot alone.
	w2, err := r.Resolve(ctx, repo, true)
	is.NoErr(err)
	is.NoErr(os.WriteFile(filepath.Join(w2.Dir(), "scratch"), []byte("discard"), 0o644))
	is.NoErr(w2.Release(ctx, false))

	info, err = st.Stat(ctx, "repos/quiet.tar")
	is.NoErr(err)
	is.Equal(info.ModTime(), published)
}

func TestTieredResolverWriteHoldsLock(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	r, _, locks := newTieredResolver(t)

	repo := proto.RepositoryLocation{Name: "busy", Tier: proto.TierRemote}

	w, err := r.Resolve(ctx, repo, true)
	is.NoErr(err)

	// A second writer is locked out while the first holds the repo.
	_, err = locks.Acquire(ctx, "busy", time.Minute)
	is.True(errors.Is(err, proto.ErrLockContention))

	is.NoErr(w.Release(ctx, true))

	// The lock is free again after release.
	token, err := locks.Acquire(ctx, "busy", time.Minute)
	is.NoErr(err)
	is.NoErr(locks.Release(ctx, "busy", token))
}

func TestTieredResolverReadReleaseLeavesWriterAlone(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	r, st, locks := newTieredResolver(t)

	repo := proto.RepositoryLocation{Name: "octo/hot", Tier: proto.TierRemote}

	// Seed a published snapshot.
	w, err := r.Resolve(ctx, repo, true)
	is.NoErr(err)
	is.NoErr(os.MkdirAll(filepath.Join(w.Dir(), "refs", "heads"), os.ModePerm))
	is.NoErr(os.WriteFile(filepath.Join(w.Dir(), "refs", "heads", "main"), []byte("a1d0c6e83f027327d8461063f4ac58a6a0c6e83f\n"), 0o644))
	is.NoErr(w.Release(ctx, true))

	// A push is in flight.
	w, err = r.Resolve(ctx, repo, true)
	is.NoErr(err)
	is.NoErr(os.WriteFile(filepath.Join(w.Dir(), "refs", "heads", "main"), []byte("b2d0c6e83f027327d8461063f4ac58a6a0c6e83f\n"), 0o644))

	// A concurrent fetch resolves and releases mid-push.
	rd, err := r.Resolve(ctx, repo, false)
	is.NoErr(err)
	is.NoErr(rd.Release(ctx, false))

	// The writer still holds the lock.
	_, err = locks.Acquire(ctx, "octo/hot", time.Minute)
	is.True(errors.Is(err, proto.ErrLockContention))

	// The writer's release still publishes its changes.
	is.NoErr(w.Release(ctx, true))

	r2 := NewTieredResolver(st, lock.NewMemoryManager(), t.TempDir(), time.Minute, time.Minute, nil)
	h, err := r2.Resolve(ctx, repo, false)
	is.NoErr(err)
	b, err := os.ReadFile(filepath.Join(h.Dir(), "refs", "heads", "main"))
	is.NoErr(err)
	is.Equal(string(b), "b2d0c6e83f027327d8461063f4ac58a6a0c6e83f\n")
	is.NoErr(h.Release(ctx, false))
}

func TestTieredResolverHandleReleaseIdempotent(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	r, _, locks := newTieredResolver(t)

	repo := proto.RepositoryLocation{Name: "once", Tier: proto.TierRemote}

	w, err := r.Resolve(ctx, repo, true)
	is.NoErr(err)
	is.NoErr(w.Release(ctx, true))
	is.NoErr(w.Release(ctx, true))

	token, err := locks.Acquire(ctx, "once", time.Minute)
	is.NoErr(err)
	is.NoErr(locks.Release(ctx, "once", token))
}

func TestTieredResolverFailedPublishReleasesLock(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	r, _, locks := newTieredResolver(t)

	repo := proto.RepositoryLocation{Name: "flaky", Tier: proto.TierRemote}

	w, err := r.Resolve(ctx, repo, true)
	is.NoErr(err)

	// Sabotage the tar walk so publishing fails.
	is.NoErr(os.RemoveAll(w.Dir()))

	err = w.Release(ctx, true)
	is.True(errors.Is(err, proto.ErrSyncFailed))

	// The lock must be released even though publishing failed.
	token, err := locks.Acquire(ctx, "flaky", time.Minute)
	is.NoErr(err)
	is.NoErr(locks.Release(ctx, "flaky", token))
}

func TestTieredResolverEvictColder(t *testing.T) {
	is := is.New(t)
	ctx := context.TODO()
	st := storage.NewLocalStorage(t.TempDir())
	cacheRoot := t.TempDir()
	// Zero warm TTL so every entry counts as cold immediately.
	r := NewTieredResolver(st, lock.NewMemoryManager(), cacheRoot, time.Nanosecond, time.Minute, nil)

	repo := proto.RepositoryLocation{Name: "cold/repo", Tier: proto.TierRemote}
	w, err := r.Resolve(ctx, repo, true)
	is.NoErr(err)
	is.NoErr(w.Release(ctx, true))

	time.Sleep(5 * time.Millisecond)

	n, err := r.EvictColder(ctx)
	is.NoErr(err)
	is.Equal(n, 1)

	_, err = os.Stat(w.Dir())
	is.True(os.IsNotExist(err))

	// The snapshot itself is untouched and the repo resolves again.
	h, err := r.Resolve(ctx, repo, false)
	is.NoErr(err)
	_, err = os.Stat(filepath.Join(h.Dir(), "HEAD"))
	is.NoErr(err)
}
