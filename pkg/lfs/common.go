package lfs

import "time"

// MediaType is the Git LFS media type for requests and responses.
const MediaType = "application/vnd.git-lfs+json"

// Transfer adapter names.
const (
	// TransferBasic is the basic transfer adapter.
	TransferBasic = "basic"
)

// HashAlgorithmSHA256 is the only supported hash algorithm.
const HashAlgorithmSHA256 = "sha256"

// Batch operations.
const (
	// OperationDownload is a batch download operation.
	OperationDownload = "download"
	// OperationUpload is a batch upload operation.
	OperationUpload = "upload"
)

// BatchRequest is a Git LFS batch API request.
type BatchRequest struct {
	Operation string    `json:"operation"`
	Transfers []string  `json:"transfers,omitempty"`
	Ref       *Ref      `json:"ref,omitempty"`
	Objects   []Pointer `json:"objects"`
	HashAlgo  string    `json:"hash_algo,omitempty"`
}

// Ref is a fully-qualified server ref a batch request operates against.
type Ref struct {
	Name string `json:"name"`
}

// BatchResponse is a Git LFS batch API response.
type BatchResponse struct {
	Transfer string           `json:"transfer,omitempty"`
	Objects  []*ObjectResponse `json:"objects"`
	HashAlgo string           `json:"hash_algo,omitempty"`
}

// ObjectResponse is the per-object portion of a batch response. An object
// either carries actions or an error, never both.
type ObjectResponse struct {
	Pointer
	Authenticated bool             `json:"authenticated,omitempty"`
	Actions       map[string]*Link `json:"actions,omitempty"`
	Error         *ObjectError     `json:"error,omitempty"`
}

// Link holds a transfer action href with optional headers and expiry.
type Link struct {
	Href      string            `json:"href"`
	Header    map[string]string `json:"header,omitempty"`
	ExpiresAt *time.Time        `json:"expires_at,omitempty"`
}

// Action names within an object response.
const (
	// ActionDownload is the download action.
	ActionDownload = "download"
	// ActionUpload is the upload action.
	ActionUpload = "upload"
	// ActionVerify is the verify action.
	ActionVerify = "verify"
)

// ObjectError is a per-object error in a batch response.
type ObjectError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Error implements error.
func (e *ObjectError) Error() string {
	return e.Message
}

// ErrorResponse is a protocol-level Git LFS error response.
type ErrorResponse struct {
	Message          string `json:"message"`
	DocumentationURL string `json:"documentation_url,omitempty"`
	RequestID        string `json:"request_id,omitempty"`
}
