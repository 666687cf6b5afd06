package database

import (
	"context"

	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/db/models"
	"github.com/swadhinbiswas/opencodehub/pkg/store"
)

type lfsStore struct{}

var _ store.LFSStore = (*lfsStore)(nil)

// CreateLFSObject implements store.LFSStore.
func (*lfsStore) CreateLFSObject(ctx context.Context, h db.Handler, repoID int64, oid string, size int64) error {
	query := h.Rebind(`INSERT INTO lfs_objects (oid, size, repo_id)
		VALUES (?, ?, ?);`)
	_, err := h.ExecContext(ctx, query, oid, size, repoID)
	return db.WrapError(err)
}

// GetLFSObjectByOid implements store.LFSStore.
func (*lfsStore) GetLFSObjectByOid(ctx context.Context, h db.Handler, repoID int64, oid string) (models.LFSObject, error) {
	var obj models.LFSObject
	query := h.Rebind(`SELECT * FROM lfs_objects WHERE repo_id = ? AND oid = ?;`)
	err := h.GetContext(ctx, &obj, query, repoID, oid)
	return obj, db.WrapError(err)
}

// GetLFSObjects implements store.LFSStore.
func (*lfsStore) GetLFSObjects(ctx context.Context, h db.Handler, repoID int64) ([]models.LFSObject, error) {
	var objs []models.LFSObject
	query := h.Rebind(`SELECT * FROM lfs_objects WHERE repo_id = ?;`)
	err := h.SelectContext(ctx, &objs, query, repoID)
	return objs, db.WrapError(err)
}

// DeleteLFSObjectByOid implements store.LFSStore.
func (*lfsStore) DeleteLFSObjectByOid(ctx context.Context, h db.Handler, repoID int64, oid string) error {
	query := h.Rebind(`DELETE FROM lfs_objects WHERE repo_id = ? AND oid = ?;`)
	_, err := h.ExecContext(ctx, query, repoID, oid)
	return db.WrapError(err)
}
