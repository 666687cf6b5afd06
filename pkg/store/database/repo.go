package database

import (
	"context"
	"database/sql"

	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/db/models"
	"github.com/swadhinbiswas/opencodehub/pkg/store"
)

type repoStore struct{}

var _ store.RepoStore = (*repoStore)(nil)

// GetRepoByName implements store.RepoStore.
func (*repoStore) GetRepoByName(ctx context.Context, h db.Handler, name string) (models.Repo, error) {
	var repo models.Repo
	query := h.Rebind(`SELECT * FROM repos WHERE name = ?;`)
	err := h.GetContext(ctx, &repo, query, name)
	return repo, db.WrapError(err)
}

// CreateRepo implements store.RepoStore.
func (*repoStore) CreateRepo(ctx context.Context, h db.Handler, name string, private bool, tier string, remoteKey string) (models.Repo, error) {
	query := h.Rebind(`INSERT INTO repos (name, private, tier, remote_key, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP);`)

	var key sql.NullString
	if remoteKey != "" {
		key = sql.NullString{String: remoteKey, Valid: true}
	}

	if _, err := h.ExecContext(ctx, query, name, private, tier, key); err != nil {
		return models.Repo{}, db.WrapError(err)
	}

	var repo models.Repo
	query = h.Rebind(`SELECT * FROM repos WHERE name = ?;`)
	err := h.GetContext(ctx, &repo, query, name)
	return repo, db.WrapError(err)
}

// DeleteRepoByName implements store.RepoStore.
func (*repoStore) DeleteRepoByName(ctx context.Context, h db.Handler, name string) error {
	query := h.Rebind(`DELETE FROM repos WHERE name = ?;`)
	_, err := h.ExecContext(ctx, query, name)
	return db.WrapError(err)
}

// TouchRepo implements store.RepoStore.
func (*repoStore) TouchRepo(ctx context.Context, h db.Handler, id int64) error {
	query := h.Rebind(`UPDATE repos SET updated_at = CURRENT_TIMESTAMP WHERE id = ?;`)
	_, err := h.ExecContext(ctx, query, id)
	return db.WrapError(err)
}
