// Package lfs implements the Git LFS batch and basic transfer protocol
// types shared by the web server and the storage layer.
package lfs

import (
	"fmt"
	"path"
	"regexp"
)

// Pointer is a Git LFS pointer to a large object.
type Pointer struct {
	Oid  string `json:"oid"`
	Size int64  `json:"size"`
}

var oidPattern = regexp.MustCompile(`^[a-f\d]{64}$`)

// IsValid reports whether the pointer has a well-formed sha256 oid and a
// non-negative size. Every oid that reaches storage must pass this check;
// the oid becomes part of an object key.
func (p Pointer) IsValid() bool {
	if len(p.Oid) != 64 || !oidPattern.MatchString(p.Oid) {
		return false
	}

	return p.Size >= 0
}

// RelativePath returns the sharded storage path of the pointer,
// oid[0:2]/oid[2:4]/oid.
func (p Pointer) RelativePath() string {
	if len(p.Oid) < 5 {
		return p.Oid
	}

	return path.Join(p.Oid[0:2], p.Oid[2:4], p.Oid)
}

// StringContent returns the pointer file content for the pointer.
func (p Pointer) StringContent() string {
	return fmt.Sprintf("version %s\noid sha256:%s\nsize %d\n", specURL, p.Oid, p.Size)
}

const specURL = "https://git-lfs.github.com/spec/v1"
