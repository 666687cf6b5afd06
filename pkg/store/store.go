// Package store defines the persistence interfaces.
package store

// Store is the root persistence interface.
type Store interface {
	RepoStore
	LockStore
	LFSStore
}
