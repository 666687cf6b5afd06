package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/store"
)

// DatabaseManager is a lock manager backed by the database. Its atomic
// insert/update/delete statements make it safe across multiple server
// processes sharing one database.
type DatabaseManager struct {
	db    *db.DB
	store store.LockStore
}

var _ Manager = (*DatabaseManager)(nil)

// NewDatabaseManager returns a new database-backed lock manager.
func NewDatabaseManager(dbx *db.DB, s store.LockStore) *DatabaseManager {
	return &DatabaseManager{db: dbx, store: s}
}

// Acquire implements Manager.
func (m *DatabaseManager) Acquire(ctx context.Context, key string, ttl time.Duration) (string, error) {
	token := uuid.New().String()
	now := time.Now()

	err := m.db.TransactionContext(ctx, func(tx *db.Tx) error {
		// Reclaim the key if a previous holder's TTL expired.
		if err := m.store.DeleteExpiredLock(ctx, tx, key, now); err != nil {
			return err
		}

		return m.store.CreateLock(ctx, tx, key, token, now.Add(ttl))
	})
	if err != nil {
		if errors.Is(err, db.ErrDuplicateKey) {
			return "", proto.ErrLockContention
		}
		return "", fmt.Errorf("acquire lock %q: %w", key, err)
	}

	return token, nil
}

// Renew implements Manager.
func (m *DatabaseManager) Renew(ctx context.Context, key, token string, ttl time.Duration) error {
	ok, err := m.store.RenewLock(ctx, m.db, key, token, time.Now().Add(ttl))
	if err != nil {
		return fmt.Errorf("renew lock %q: %w", key, err)
	}

	if !ok {
		return proto.ErrLockMismatch
	}

	return nil
}

// Release implements Manager.
func (m *DatabaseManager) Release(ctx context.Context, key, token string) error {
	ok, err := m.store.DeleteLock(ctx, m.db, key, token)
	if err != nil {
		return fmt.Errorf("release lock %q: %w", key, err)
	}

	if ok {
		return nil
	}

	// Distinguish "already released" from "held by someone else".
	if _, err := m.store.GetLock(ctx, m.db, key); err != nil {
		if errors.Is(err, db.ErrRecordNotFound) {
			return nil
		}
		return fmt.Errorf("release lock %q: %w", key, err)
	}

	return proto.ErrLockMismatch
}
