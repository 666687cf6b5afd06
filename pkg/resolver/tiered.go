package resolver

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/lock"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/storage"
)

// errNoSnapshot is returned by refreshCache when the object store holds no
// snapshot for the repository.
var errNoSnapshot = errors.New("resolver: no snapshot")

// warmCacheSize bounds the number of repositories tracked as recently used.
const warmCacheSize = 1024

// writerState keeps the lock of an in-flight write renewed until the
// write's handle is released.
type writerState struct {
	cancel context.CancelFunc
	done   chan struct{}
}

// TieredResolver serves repositories whose canonical copy is a tar snapshot
// in an object store. Reads are served from the last fully published
// snapshot, cached locally. Writes hold the repository lock for their whole
// duration and publish a new snapshot when their handle is released. The
// lock token lives inside the write's handle, so no other caller can release
// it by accident.
type TieredResolver struct {
	storage   storage.Storage
	locks     lock.Manager
	cacheRoot string
	lockTTL   time.Duration
	logger    *log.Logger

	warm *expirable.LRU[string, time.Time]
}

var _ Resolver = (*TieredResolver)(nil)

// NewTieredResolver creates a resolver that caches snapshots from the given
// storage under cacheRoot. cacheTTL controls how long an unused cache entry
// counts as warm; lockTTL must match the lock manager's TTL so renewals keep
// long writes alive.
func NewTieredResolver(st storage.Storage, locks lock.Manager, cacheRoot string, cacheTTL, lockTTL time.Duration, logger *log.Logger) *TieredResolver {
	if logger == nil {
		logger = log.Default()
	}

	return &TieredResolver{
		storage:   st,
		locks:     locks,
		cacheRoot: cacheRoot,
		lockTTL:   lockTTL,
		logger:    logger.WithPrefix("resolver"),
		warm:      expirable.NewLRU[string, time.Time](warmCacheSize, nil, cacheTTL),
	}
}

// Resolve implements Resolver.
func (t *TieredResolver) Resolve(ctx context.Context, repo proto.RepositoryLocation, forWrite bool) (*Handle, error) {
	cachePath := t.cachePath(repo)
	key := t.remoteKey(repo)

	if !forWrite {
		if err := t.refreshCache(ctx, repo, key, cachePath); err != nil {
			if errors.Is(err, errNoSnapshot) {
				return nil, proto.ErrRepoNotFound
			}
			return nil, err
		}

		t.warm.Add(repo.Name, time.Now())
		return NewHandle(cachePath, nil), nil
	}

	token, err := t.locks.Acquire(ctx, repo.Name, t.lockTTL)
	if err != nil {
		return nil, err
	}

	if err := t.refreshCache(ctx, repo, key, cachePath); err != nil {
		if !errors.Is(err, errNoSnapshot) {
			if rerr := t.locks.Release(ctx, repo.Name, token); rerr != nil {
				t.logger.Error("release lock after failed refresh", "repo", repo.Name, "err", rerr)
			}
			return nil, err
		}

		// First write to this repository. Start from an empty bare repo;
		// the snapshot is published on release.
		if err := git.InitBare(cachePath); err != nil {
			if rerr := t.locks.Release(ctx, repo.Name, token); rerr != nil {
				t.logger.Error("release lock after failed init", "repo", repo.Name, "err", rerr)
			}
			return nil, err
		}
	}

	ws := t.keepRenewed(repo.Name, token)
	t.warm.Add(repo.Name, time.Now())

	return NewHandle(cachePath, func(ctx context.Context, didWrite bool) error {
		return t.releaseWriter(ctx, repo, token, ws, didWrite)
	}), nil
}

// releaseWriter publishes the new snapshot when didWrite is set and releases
// the repository lock in every case, even when publishing fails.
func (t *TieredResolver) releaseWriter(ctx context.Context, repo proto.RepositoryLocation, token string, ws *writerState, didWrite bool) error {
	ws.cancel()
	<-ws.done

	var syncErr error
	if didWrite {
		syncErr = t.publish(ctx, repo)
	}

	if err := t.locks.Release(ctx, repo.Name, token); err != nil {
		t.logger.Error("release lock", "repo", repo.Name, "err", err)
		if syncErr == nil {
			syncErr = err
		}
	}

	return syncErr
}

// publish tars the cached working copy, uploads it under a temporary key and
// renames it over the canonical key. Readers only ever observe the previous
// snapshot or the new one, never a partial upload.
func (t *TieredResolver) publish(ctx context.Context, repo proto.RepositoryLocation) error {
	cachePath := t.cachePath(repo)
	key := t.remoteKey(repo)
	tmpKey := path.Join("tmp", uuid.New().String()+".tar")

	pr, pw := io.Pipe()
	go func() {
		pw.CloseWithError(writeTar(pw, cachePath)) // nolint: errcheck
	}()

	if _, err := t.storage.Put(ctx, tmpKey, pr); err != nil {
		pr.CloseWithError(err) // nolint: errcheck
		return fmt.Errorf("%w: upload snapshot: %v", proto.ErrSyncFailed, err)
	}

	if err := t.storage.Rename(ctx, tmpKey, key); err != nil {
		if derr := t.storage.Delete(ctx, tmpKey); derr != nil {
			t.logger.Error("delete orphaned snapshot", "key", tmpKey, "err", derr)
		}
		return fmt.Errorf("%w: publish snapshot: %v", proto.ErrSyncFailed, err)
	}

	// Stamp the cache as matching what was just published so the next
	// resolve skips the download.
	if info, err := t.storage.Stat(ctx, key); err == nil {
		if err := t.writeMarker(cachePath, info); err != nil {
			t.logger.Warn("write sync marker", "repo", repo.Name, "err", err)
		}
	}

	t.logger.Debug("published snapshot", "repo", repo.Name, "key", key)
	return nil
}

// refreshCache makes the local cache match the published snapshot. A cache
// already stamped with the snapshot's identity is left alone.
func (t *TieredResolver) refreshCache(ctx context.Context, repo proto.RepositoryLocation, key, cachePath string) error {
	info, err := t.storage.Stat(ctx, key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return errNoSnapshot
		}
		return fmt.Errorf("%w: stat snapshot %q: %v", proto.ErrStorageUnavailable, key, err)
	}

	if t.cacheFresh(cachePath, info) {
		return nil
	}

	obj, err := t.storage.Open(ctx, key)
	if err != nil {
		return fmt.Errorf("%w: fetch snapshot %q: %v", proto.ErrStorageUnavailable, key, err)
	}
	defer obj.Close() // nolint: errcheck

	tmpDir := cachePath + ".tmp-" + uuid.New().String()
	if err := os.MkdirAll(tmpDir, os.ModePerm); err != nil {
		return err
	}

	if err := extractTar(obj, tmpDir); err != nil {
		os.RemoveAll(tmpDir) // nolint: errcheck
		return fmt.Errorf("resolver: extract snapshot %q: %w", key, err)
	}

	if err := os.RemoveAll(cachePath); err != nil {
		os.RemoveAll(tmpDir) // nolint: errcheck
		return err
	}

	if err := os.Rename(tmpDir, cachePath); err != nil {
		os.RemoveAll(tmpDir) // nolint: errcheck
		return err
	}

	if err := t.writeMarker(cachePath, info); err != nil {
		t.logger.Warn("write sync marker", "repo", repo.Name, "err", err)
	}

	t.logger.Debug("refreshed cache", "repo", repo.Name, "key", key, "size", info.Size())
	return nil
}

// EvictColder removes cached repositories that have not been used recently.
// Repositories with an active or contended writer lock are skipped. It
// returns the number of evicted entries.
func (t *TieredResolver) EvictColder(ctx context.Context) (int, error) {
	names, err := t.cachedRepos()
	if err != nil {
		return 0, err
	}

	var evicted int
	for _, name := range names {
		if _, warm := t.warm.Get(name); warm {
			continue
		}

		// Taking the lock guarantees no writer is mid-flight; a contended
		// repository is in use and stays cached.
		token, err := t.locks.Acquire(ctx, name, t.lockTTL)
		if err != nil {
			if errors.Is(err, proto.ErrLockContention) {
				continue
			}
			return evicted, err
		}

		cachePath := filepath.Join(t.cacheRoot, name)
		if err := os.RemoveAll(cachePath); err != nil {
			t.logger.Error("evict cache", "repo", name, "err", err)
		} else {
			os.Remove(t.markerPath(cachePath)) // nolint: errcheck
			evicted++
		}

		if err := t.locks.Release(ctx, name, token); err != nil {
			t.logger.Error("release lock after evict", "repo", name, "err", err)
		}
	}

	return evicted, nil
}

// cachedRepos lists repository names with a cached working copy. Repository
// names may contain slashes, so entries are found by their sync markers
// rather than by top-level directories.
func (t *TieredResolver) cachedRepos() ([]string, error) {
	var names []string
	err := filepath.WalkDir(t.cacheRoot, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sync") {
			return nil
		}

		rel, err := filepath.Rel(t.cacheRoot, strings.TrimSuffix(path, ".sync"))
		if err != nil {
			return err
		}

		names = append(names, filepath.ToSlash(rel))
		return nil
	})
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, err
	}

	return names, nil
}

// keepRenewed keeps the lock renewed for as long as the write runs. The
// returned state is owned by the write's handle.
func (t *TieredResolver) keepRenewed(name, token string) *writerState {
	ctx, cancel := context.WithCancel(context.Background())
	ws := &writerState{cancel: cancel, done: make(chan struct{})}

	interval := t.lockTTL / 2
	if interval <= 0 {
		interval = time.Minute
	}

	go func() {
		defer close(ws.done)
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if err := t.locks.Renew(ctx, name, token, t.lockTTL); err != nil {
					t.logger.Error("renew lock", "repo", name, "err", err)
					return
				}
			}
		}
	}()

	return ws
}

func (t *TieredResolver) cachePath(repo proto.RepositoryLocation) string {
	if repo.CachePath != "" {
		return repo.CachePath
	}

	return filepath.Join(t.cacheRoot, repo.Name)
}

func (t *TieredResolver) remoteKey(repo proto.RepositoryLocation) string {
	if repo.RemoteKey != "" {
		return repo.RemoteKey
	}

	return path.Join("repos", repo.Name+".tar")
}

func (t *TieredResolver) markerPath(cachePath string) string {
	return cachePath + ".sync"
}

// cacheFresh reports whether the cache was extracted from the given snapshot.
func (t *TieredResolver) cacheFresh(cachePath string, info fs.FileInfo) bool {
	if _, err := os.Stat(cachePath); err != nil {
		return false
	}

	b, err := os.ReadFile(t.markerPath(cachePath))
	if err != nil {
		return false
	}

	return string(b) == snapshotStamp(info)
}

func (t *TieredResolver) writeMarker(cachePath string, info fs.FileInfo) error {
	return os.WriteFile(t.markerPath(cachePath), []byte(snapshotStamp(info)), 0o644) // nolint: gosec
}

// snapshotStamp identifies a published snapshot by size and modification
// time.
func snapshotStamp(info fs.FileInfo) string {
	return fmt.Sprintf("%d:%s", info.Size(), info.ModTime().UTC().Format(time.RFC3339Nano))
}
