package proto

import "errors"

var (
	// ErrRepoNotFound is returned when a repository does not exist.
	ErrRepoNotFound = errors.New("repository not found")

	// ErrObjectNotFound is returned when a stored object does not exist.
	ErrObjectNotFound = errors.New("object not found")

	// ErrUnauthorized is returned when the user is not authorized to perform
	// an operation.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrUnsupportedService is returned for git services other than
	// upload-pack and receive-pack.
	ErrUnsupportedService = errors.New("unsupported service")

	// ErrLockContention is returned when a repository write lock is already
	// held by another writer. The caller may retry after the holder releases
	// the lock or its TTL expires.
	ErrLockContention = errors.New("repository is locked by another writer")

	// ErrLockMismatch is returned when a lock operation presents a stale
	// token. This protects against a late release racing a new holder after
	// TTL expiry.
	ErrLockMismatch = errors.New("lock token mismatch")

	// ErrStorageUnavailable is returned when the remote storage tier cannot
	// be reached or a fetch from it fails.
	ErrStorageUnavailable = errors.New("remote storage unavailable")

	// ErrSyncFailed is returned when uploading a modified working tree back
	// to the remote tier fails. The repository lock is still released; a
	// later write resolve retries the sync.
	ErrSyncFailed = errors.New("storage sync-back failed")
)
