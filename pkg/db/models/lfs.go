package models

import "time"

// LFSObject is a Git LFS object record. Objects are immutable once created.
type LFSObject struct {
	ID        int64     `db:"id"`
	Oid       string    `db:"oid"`
	Size      int64     `db:"size"`
	RepoID    int64     `db:"repo_id"`
	CreatedAt time.Time `db:"created_at"`
}
