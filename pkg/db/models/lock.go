package models

import "time"

// RepoLock is a repository write lock record.
//
// At most one live (non-expired) lock exists per repo key; the unique
// constraint on repo_key enforces this across server processes.
type RepoLock struct {
	ID        int64     `db:"id"`
	RepoKey   string    `db:"repo_key"`
	Token     string    `db:"token"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
