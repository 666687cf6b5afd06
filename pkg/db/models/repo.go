// Package models defines the database row models.
package models

import (
	"database/sql"
	"time"
)

// Repo is a repository record.
type Repo struct {
	ID        int64          `db:"id"`
	Name      string         `db:"name"`
	Private   bool           `db:"private"`
	Tier      string         `db:"tier"`
	RemoteKey sql.NullString `db:"remote_key"`
	CreatedAt time.Time      `db:"created_at"`
	UpdatedAt time.Time      `db:"updated_at"`
}
