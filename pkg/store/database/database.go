// Package database provides the sqlx implementation of the store
// interfaces.
package database

import (
	"github.com/swadhinbiswas/opencodehub/pkg/store"
)

type datastore struct {
	*repoStore
	*lockStore
	*lfsStore
}

// New returns a new database-backed store.
func New() store.Store {
	return &datastore{
		repoStore: &repoStore{},
		lockStore: &lockStore{},
		lfsStore:  &lfsStore{},
	}
}
