package proto

// AccessLevel is the level of access allowed to a repository.
type AccessLevel int

const (
	// NoAccess does not allow access to the repository.
	NoAccess AccessLevel = iota

	// ReadOnlyAccess allows fetching from the repository.
	ReadOnlyAccess

	// ReadWriteAccess allows pushing to the repository.
	ReadWriteAccess

	// AdminAccess allows administrative actions on the repository.
	AdminAccess
)

// String implements fmt.Stringer.
func (a AccessLevel) String() string {
	switch a {
	case NoAccess:
		return "no-access"
	case ReadOnlyAccess:
		return "read-only"
	case ReadWriteAccess:
		return "read-write"
	case AdminAccess:
		return "admin-access"
	default:
		return "unknown"
	}
}

// User is an authenticated principal.
type User struct {
	Username string
	Admin    bool
}
