package store

import (
	"context"

	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/db/models"
)

// RepoStore is the interface for the repository store.
type RepoStore interface {
	GetRepoByName(ctx context.Context, h db.Handler, name string) (models.Repo, error)
	CreateRepo(ctx context.Context, h db.Handler, name string, private bool, tier string, remoteKey string) (models.Repo, error)
	DeleteRepoByName(ctx context.Context, h db.Handler, name string) error
	TouchRepo(ctx context.Context, h db.Handler, id int64) error
}
