package store

import (
	"context"
	"time"

	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/db/models"
)

// LockStore is the interface for the repository lock store.
//
// All mutations are token-guarded compare-and-swap statements so that lock
// correctness holds across multiple server processes sharing one database.
type LockStore interface {
	// CreateLock inserts a lock row. It fails with db.ErrDuplicateKey when a
	// row for the key already exists.
	CreateLock(ctx context.Context, h db.Handler, key, token string, expiresAt time.Time) error

	// GetLock returns the lock row for the key.
	GetLock(ctx context.Context, h db.Handler, key string) (models.RepoLock, error)

	// RenewLock extends the lock expiry iff the token matches. It reports
	// whether a row was updated.
	RenewLock(ctx context.Context, h db.Handler, key, token string, expiresAt time.Time) (bool, error)

	// DeleteLock removes the lock iff the token matches. It reports whether
	// a row was deleted.
	DeleteLock(ctx context.Context, h db.Handler, key, token string) (bool, error)

	// DeleteExpiredLock removes the lock for the key if it has expired.
	DeleteExpiredLock(ctx context.Context, h db.Handler, key string, now time.Time) error

	// DeleteExpiredLocks removes all expired locks and returns the number
	// removed.
	DeleteExpiredLocks(ctx context.Context, h db.Handler, now time.Time) (int64, error)
}
