package database

import (
	"context"
	"time"

	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/db/models"
	"github.com/swadhinbiswas/opencodehub/pkg/store"
)

type lockStore struct{}

var _ store.LockStore = (*lockStore)(nil)

// CreateLock implements store.LockStore.
func (*lockStore) CreateLock(ctx context.Context, h db.Handler, key, token string, expiresAt time.Time) error {
	query := h.Rebind(`INSERT INTO repo_locks (repo_key, token, expires_at)
		VALUES (?, ?, ?);`)
	_, err := h.ExecContext(ctx, query, key, token, expiresAt.UTC())
	return db.WrapError(err)
}

// GetLock implements store.LockStore.
func (*lockStore) GetLock(ctx context.Context, h db.Handler, key string) (models.RepoLock, error) {
	var lock models.RepoLock
	query := h.Rebind(`SELECT * FROM repo_locks WHERE repo_key = ?;`)
	err := h.GetContext(ctx, &lock, query, key)
	return lock, db.WrapError(err)
}

// RenewLock implements store.LockStore.
func (*lockStore) RenewLock(ctx context.Context, h db.Handler, key, token string, expiresAt time.Time) (bool, error) {
	query := h.Rebind(`UPDATE repo_locks SET expires_at = ?
		WHERE repo_key = ? AND token = ?;`)
	r, err := h.ExecContext(ctx, query, expiresAt.UTC(), key, token)
	if err != nil {
		return false, db.WrapError(err)
	}

	n, err := r.RowsAffected()
	return n > 0, db.WrapError(err)
}

// DeleteLock implements store.LockStore.
func (*lockStore) DeleteLock(ctx context.Context, h db.Handler, key, token string) (bool, error) {
	query := h.Rebind(`DELETE FROM repo_locks WHERE repo_key = ? AND token = ?;`)
	r, err := h.ExecContext(ctx, query, key, token)
	if err != nil {
		return false, db.WrapError(err)
	}

	n, err := r.RowsAffected()
	return n > 0, db.WrapError(err)
}

// DeleteExpiredLock implements store.LockStore.
func (*lockStore) DeleteExpiredLock(ctx context.Context, h db.Handler, key string, now time.Time) error {
	query := h.Rebind(`DELETE FROM repo_locks WHERE repo_key = ? AND expires_at <= ?;`)
	_, err := h.ExecContext(ctx, query, key, now.UTC())
	return db.WrapError(err)
}

// DeleteExpiredLocks implements store.LockStore.
func (*lockStore) DeleteExpiredLocks(ctx context.Context, h db.Handler, now time.Time) (int64, error) {
	query := h.Rebind(`DELETE FROM repo_locks WHERE expires_at <= ?;`)
	r, err := h.ExecContext(ctx, query, now.UTC())
	if err != nil {
		return 0, db.WrapError(err)
	}

	n, err := r.RowsAffected()
	return n, db.WrapError(err)
}
