// Package proto defines the domain types shared across the server.
package proto

import (
	"encoding"
	"errors"
	"time"
)

// Tier is a repository storage tier.
type Tier int

const (
	// TierLocal stores the repository directly on the local filesystem.
	TierLocal Tier = iota

	// TierRemote stores the repository in a remote object store, fronted by
	// a local cache that is synchronized explicitly.
	TierRemote
)

// String returns the string representation of the tier.
func (t Tier) String() string {
	switch t {
	case TierLocal:
		return "local"
	case TierRemote:
		return "remote"
	default:
		return "unknown"
	}
}

// ErrInvalidTier is returned when an invalid storage tier is provided.
var ErrInvalidTier = errors.New("invalid storage tier")

// ParseTier parses a tier string.
func ParseTier(s string) (Tier, error) {
	switch s {
	case "local":
		return TierLocal, nil
	case "remote":
		return TierRemote, nil
	default:
		return Tier(-1), ErrInvalidTier
	}
}

var (
	_ encoding.TextMarshaler   = Tier(0)
	_ encoding.TextUnmarshaler = (*Tier)(nil)
)

// UnmarshalText implements encoding.TextUnmarshaler.
func (t *Tier) UnmarshalText(text []byte) error {
	tier, err := ParseTier(string(text))
	if err != nil {
		return err
	}

	*t = tier
	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (t Tier) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// RepositoryLocation describes where a repository lives.
//
// A remote-tier location always carries a non-empty RemoteKey. CachePath is
// populated only while a local cache copy is warm.
type RepositoryLocation struct {
	// ID is the logical repository ID.
	ID int64

	// Name is the sanitized repository name.
	Name string

	// Tier is the storage tier the repository lives in.
	Tier Tier

	// RemoteKey is the object-store key prefix for remote-tier repositories.
	RemoteKey string

	// CachePath is the local cache directory, when warm.
	CachePath string
}

// Repository is a git repository.
type Repository struct {
	ID        int64
	Name      string
	Private   bool
	Location  RepositoryLocation
	CreatedAt time.Time
	UpdatedAt time.Time
}
