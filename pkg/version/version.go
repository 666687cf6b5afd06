// Package version provides the build version information.
package version

// These are set at build time using ldflags.
var (
	// Version is the build version.
	Version = ""

	// CommitSHA is the build commit SHA.
	CommitSHA = ""

	// CommitDate is the build commit date.
	CommitDate = ""
)
