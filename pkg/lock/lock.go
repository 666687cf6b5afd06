// Package lock provides per-repository write locks.
//
// A lock guarantees a single active writer per repository. Locks carry a TTL
// so a crashed or stuck holder cannot block a repository forever; release
// and renew are token-guarded so a late release cannot race a new holder
// after expiry.
package lock

import (
	"context"
	"time"
)

// Manager is a repository lock manager.
type Manager interface {
	// Acquire takes the lock for the key and returns a holder token. It
	// fails with proto.ErrLockContention when a live lock is already held.
	Acquire(ctx context.Context, key string, ttl time.Duration) (string, error)

	// Renew extends the TTL for a held lock. It fails with
	// proto.ErrLockMismatch when the token is stale.
	Renew(ctx context.Context, key, token string, ttl time.Duration) error

	// Release releases the lock. Releasing an unheld key is a no-op;
	// releasing with a stale token fails with proto.ErrLockMismatch.
	Release(ctx context.Context, key, token string) error
}
