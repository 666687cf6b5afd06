package web

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/swadhinbiswas/opencodehub/pkg/access"
	"github.com/swadhinbiswas/opencodehub/pkg/backend"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/lfs"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/storage"
)

// transferTokenTTL is how long an LFS transfer token issued by the batch
// endpoint stays valid. Long enough for large object transfers on slow links.
const transferTokenTTL = time.Hour

// lfsStorage returns the object storage for a repository's LFS objects.
// Remote-tier repositories share the object store bucket under a per-repo
// prefix; everything else lands on the local disk.
func lfsStorage(r *http.Request, repo *proto.Repository) storage.Storage {
	ctx := r.Context()
	cfg := config.FromContext(ctx)
	id := strconv.FormatInt(repo.ID, 10)
	if repo.Location.Tier == proto.TierRemote {
		if shared := storage.FromContext(ctx); shared != nil {
			return storage.WithPrefix(shared, path.Join("lfs", id))
		}
	}

	return storage.NewLocalStorage(path.Join(cfg.LFSPath(), id))
}

// transferAuth returns the Authorization header value transfer links should
// carry. The client's own header is reused when present, otherwise a
// repository-scoped token is issued so transfers don't replay credentials.
func transferAuth(r *http.Request, repo *proto.Repository) (string, *time.Time) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		return auth, nil
	}

	ctx := r.Context()
	cfg := config.FromContext(ctx)
	if cfg.Auth.JWTSecret == "" {
		return "", nil
	}

	user := proto.UserFromContext(ctx)
	tm := access.NewTokenManager(cfg.Auth.JWTSecret, cfg.Name)
	token, err := tm.Issue(user, repo.Name, transferTokenTTL)
	if err != nil {
		log.FromContext(ctx).Error("failed to issue transfer token", "repo", repo.Name, "err", err)
		return "", nil
	}

	expires := time.Now().Add(transferTokenTTL)
	return "Bearer " + token, &expires
}

func lfsTransferLink(href, auth string, expires *time.Time) *lfs.Link {
	link := &lfs.Link{Href: href}
	if auth != "" {
		link.Header = map[string]string{
			"Authorization": auth,
		}
	}
	link.ExpiresAt = expires
	return link
}

// serviceLfsBatch handles a Git LFS batch API request.
func serviceLfsBatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	cfg := config.FromContext(ctx)
	be := backend.FromContext(ctx)
	repo := proto.RepositoryFromContext(ctx)

	if !isLfs(r) {
		renderNotAcceptable(w, r)
		return
	}

	var batchRequest lfs.BatchRequest
	defer r.Body.Close() // nolint: errcheck
	if err := json.NewDecoder(r.Body).Decode(&batchRequest); err != nil {
		logger.Error("failed to decode batch request", "err", err)
		renderJSON(w, http.StatusBadRequest, lfs.ErrorResponse{
			Message: "invalid batch request",
		})
		return
	}

	if batchRequest.Operation != lfs.OperationDownload && batchRequest.Operation != lfs.OperationUpload {
		renderJSON(w, http.StatusBadRequest, lfs.ErrorResponse{
			Message: "unsupported operation " + strconv.Quote(batchRequest.Operation),
		})
		return
	}

	// Only the basic transfer adapter is supported. An empty transfers list
	// defaults to basic.
	if len(batchRequest.Transfers) > 0 {
		var hasBasic bool
		for _, t := range batchRequest.Transfers {
			if t == lfs.TransferBasic {
				hasBasic = true
				break
			}
		}
		if !hasBasic {
			renderJSON(w, http.StatusUnprocessableEntity, lfs.ErrorResponse{
				Message: "unsupported transfer adapters",
			})
			return
		}
	}

	if batchRequest.HashAlgo != "" && batchRequest.HashAlgo != lfs.HashAlgorithmSHA256 {
		renderJSON(w, http.StatusConflict, lfs.ErrorResponse{
			Message: "unsupported hash algorithm",
		})
		return
	}

	accessLevel := access.FromContext(ctx)
	if batchRequest.Operation == lfs.OperationUpload && accessLevel < proto.ReadWriteAccess {
		renderJSON(w, http.StatusForbidden, lfs.ErrorResponse{
			Message: "write access required",
		})
		return
	}

	strg := lfsStorage(r, repo)
	baseHref := fmt.Sprintf("%s/%s/info/lfs/objects/basic", cfg.HTTP.PublicURL, repo.Name)
	auth, expires := transferAuth(r, repo)

	objects := make([]*lfs.ObjectResponse, 0, len(batchRequest.Objects))
	switch batchRequest.Operation {
	case lfs.OperationDownload:
		for _, ptr := range batchRequest.Objects {
			objects = append(objects, batchDownloadObject(r, be, strg, repo, ptr, baseHref, auth, expires))
		}
	case lfs.OperationUpload:
		for _, ptr := range batchRequest.Objects {
			objects = append(objects, batchUploadObject(r, be, strg, repo, ptr, baseHref, auth, expires))
		}
	}

	renderJSON(w, http.StatusOK, lfs.BatchResponse{
		Transfer: lfs.TransferBasic,
		Objects:  objects,
		HashAlgo: lfs.HashAlgorithmSHA256,
	})
}

func batchDownloadObject(r *http.Request, be *backend.Backend, strg storage.Storage, repo *proto.Repository, ptr lfs.Pointer, baseHref, auth string, expires *time.Time) *lfs.ObjectResponse {
	ctx := r.Context()
	obj := &lfs.ObjectResponse{Pointer: ptr}
	if !ptr.IsValid() {
		obj.Error = &lfs.ObjectError{
			Code:    http.StatusUnprocessableEntity,
			Message: "invalid object id",
		}
		return obj
	}

	meta, err := be.LFSObjectMeta(ctx, *repo, ptr.Oid)
	if err != nil {
		if !errors.Is(err, proto.ErrObjectNotFound) {
			log.FromContext(ctx).Error("failed to look up object", "oid", ptr.Oid, "err", err)
		}
		obj.Error = &lfs.ObjectError{
			Code:    http.StatusNotFound,
			Message: "object not found",
		}
		return obj
	}

	if meta.Size != ptr.Size {
		obj.Error = &lfs.ObjectError{
			Code:    http.StatusUnprocessableEntity,
			Message: "size does not match recorded object",
		}
		return obj
	}

	if exists, err := strg.Exists(ctx, ptr.RelativePath()); err != nil || !exists {
		obj.Error = &lfs.ObjectError{
			Code:    http.StatusNotFound,
			Message: "object not found",
		}
		return obj
	}

	obj.Authenticated = auth != ""
	obj.Actions = map[string]*lfs.Link{
		lfs.ActionDownload: lfsTransferLink(baseHref+"/"+ptr.Oid, auth, expires),
	}
	return obj
}

func batchUploadObject(r *http.Request, be *backend.Backend, strg storage.Storage, repo *proto.Repository, ptr lfs.Pointer, baseHref, auth string, expires *time.Time) *lfs.ObjectResponse {
	ctx := r.Context()
	obj := &lfs.ObjectResponse{Pointer: ptr}
	if !ptr.IsValid() {
		obj.Error = &lfs.ObjectError{
			Code:    http.StatusUnprocessableEntity,
			Message: "invalid object id",
		}
		return obj
	}

	// Already stored objects need no transfer. The client treats an object
	// without actions as complete.
	if meta, err := be.LFSObjectMeta(ctx, *repo, ptr.Oid); err == nil && meta.Size == ptr.Size {
		if exists, err := strg.Exists(ctx, ptr.RelativePath()); err == nil && exists {
			obj.Authenticated = auth != ""
			return obj
		}
	}

	obj.Authenticated = auth != ""
	obj.Actions = map[string]*lfs.Link{
		lfs.ActionUpload: lfsTransferLink(baseHref+"/"+ptr.Oid, auth, expires),
		lfs.ActionVerify: lfsTransferLink(baseHref+"/verify", auth, expires),
	}
	return obj
}

// serviceLfsBasic handles Git LFS basic transfer API requests.
func serviceLfsBasic(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		serviceLfsBasicDownload(w, r)
	case http.MethodPut:
		serviceLfsBasicUpload(w, r)
	}
}

// serviceLfsBasicDownload serves an LFS object from storage.
func serviceLfsBasicDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	be := backend.FromContext(ctx)
	repo := proto.RepositoryFromContext(ctx)
	oid := mux.Vars(r)["oid"]

	meta, err := be.LFSObjectMeta(ctx, *repo, oid)
	if err != nil {
		renderJSON(w, http.StatusNotFound, lfs.ErrorResponse{
			Message: "object not found",
		})
		return
	}

	ptr := lfs.Pointer{Oid: meta.Oid, Size: meta.Size}
	strg := lfsStorage(r, repo)
	obj, err := strg.Open(ctx, ptr.RelativePath())
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			logger.Error("failed to open object", "oid", oid, "err", err)
		}
		renderJSON(w, http.StatusNotFound, lfs.ErrorResponse{
			Message: "object not found",
		})
		return
	}

	defer obj.Close() // nolint: errcheck
	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Length", strconv.FormatInt(meta.Size, 10))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, obj); err != nil {
		logger.Error("failed to write object", "oid", oid, "err", err)
	}
}

// serviceLfsBasicUpload uploads an LFS object to storage. The object is
// hashed as it streams in; content that doesn't match the oid is discarded.
func serviceLfsBasicUpload(w http.ResponseWriter, r *http.Request) {
	if !isBinary(r) {
		renderNotAcceptable(w, r)
		return
	}

	ctx := r.Context()
	logger := log.FromContext(ctx)
	be := backend.FromContext(ctx)
	repo := proto.RepositoryFromContext(ctx)
	oid := mux.Vars(r)["oid"]

	ptr := lfs.Pointer{Oid: oid}
	strg := lfsStorage(r, repo)

	defer r.Body.Close() // nolint: errcheck
	hasher := sha256.New()
	size, err := strg.Put(ctx, ptr.RelativePath(), io.TeeReader(r.Body, hasher))
	if err != nil {
		logger.Error("failed to store object", "oid", oid, "err", err)
		renderJSON(w, http.StatusInternalServerError, lfs.ErrorResponse{
			Message: "failed to store object",
		})
		return
	}

	if sum := hex.EncodeToString(hasher.Sum(nil)); sum != oid {
		logger.Warn("uploaded object hash mismatch", "oid", oid, "sum", sum)
		if err := strg.Delete(ctx, ptr.RelativePath()); err != nil {
			logger.Error("failed to delete mismatched object", "oid", oid, "err", err)
		}
		renderJSON(w, http.StatusUnprocessableEntity, lfs.ErrorResponse{
			Message: "content does not match oid",
		})
		return
	}

	ptr.Size = size
	if err := be.StoreLFSObjectMeta(ctx, *repo, ptr); err != nil {
		logger.Error("failed to store object meta", "oid", oid, "err", err)
		renderJSON(w, http.StatusInternalServerError, lfs.ErrorResponse{
			Message: "failed to store object",
		})
		return
	}

	renderStatus(http.StatusOK)(w, r)
}

// serviceLfsBasicVerify verifies an uploaded LFS object.
func serviceLfsBasicVerify(w http.ResponseWriter, r *http.Request) {
	if !isLfs(r) {
		renderNotAcceptable(w, r)
		return
	}

	ctx := r.Context()
	be := backend.FromContext(ctx)
	repo := proto.RepositoryFromContext(ctx)

	var ptr lfs.Pointer
	defer r.Body.Close() // nolint: errcheck
	if err := json.NewDecoder(r.Body).Decode(&ptr); err != nil {
		renderJSON(w, http.StatusUnprocessableEntity, lfs.ErrorResponse{
			Message: "invalid pointer",
		})
		return
	}

	meta, err := be.LFSObjectMeta(ctx, *repo, ptr.Oid)
	if err != nil {
		renderJSON(w, http.StatusNotFound, lfs.ErrorResponse{
			Message: "object not found",
		})
		return
	}

	if meta.Size != ptr.Size {
		renderJSON(w, http.StatusUnprocessableEntity, lfs.ErrorResponse{
			Message: fmt.Sprintf("expected size %d, got %d", meta.Size, ptr.Size),
		})
		return
	}

	strg := lfsStorage(r, repo)
	if exists, err := strg.Exists(ctx, ptr.RelativePath()); err != nil || !exists {
		renderJSON(w, http.StatusNotFound, lfs.ErrorResponse{
			Message: "object not found",
		})
		return
	}

	renderStatus(http.StatusOK)(w, r)
}

func isLfs(r *http.Request) bool {
	for _, hdr := range []string{"Accept", "Content-Type"} {
		for _, value := range r.Header.Values(hdr) {
			if strings.HasPrefix(value, lfs.MediaType) {
				return true
			}
		}
	}
	return false
}

func isBinary(r *http.Request) bool {
	contentType := r.Header.Get("Content-Type")
	return contentType == "" || contentType == "application/octet-stream"
}

func renderNotAcceptable(w http.ResponseWriter, r *http.Request) {
	renderStatus(http.StatusNotAcceptable)(w, r)
}
