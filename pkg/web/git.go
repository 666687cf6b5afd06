package web

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/swadhinbiswas/opencodehub/pkg/access"
	"github.com/swadhinbiswas/opencodehub/pkg/backend"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/git"
	"github.com/swadhinbiswas/opencodehub/pkg/hooks"
	"github.com/swadhinbiswas/opencodehub/pkg/lfs"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/utils"
)

// GitRoute is a route for git services.
type GitRoute struct {
	method  []string
	handler http.HandlerFunc
	path    string
}

var _ http.Handler = GitRoute{}

// ServeHTTP implements http.Handler.
func (g GitRoute) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var hasMethod bool
	for _, m := range g.method {
		if m == r.Method {
			hasMethod = true
			break
		}
	}

	if !hasMethod {
		renderMethodNotAllowed(w, r)
		return
	}

	g.handler(w, r)
}

var (
	//nolint:revive
	gitHttpReceiveCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opencodehub",
		Subsystem: "http",
		Name:      "git_receive_pack_total",
		Help:      "The total number of git push requests",
	}, []string{"repo"})

	//nolint:revive
	gitHttpUploadCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opencodehub",
		Subsystem: "http",
		Name:      "git_upload_pack_total",
		Help:      "The total number of git fetch/pull requests",
	}, []string{"repo"})

	lockContentionCounter = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "opencodehub",
		Subsystem: "http",
		Name:      "git_lock_contention_total",
		Help:      "The total number of pushes rejected because the repository lock was held",
	}, []string{"repo"})
)

func withParams(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		vars := mux.Vars(r)
		repo := vars["repo"]

		// Construct "file" param from path
		vars["file"] = strings.TrimPrefix(r.URL.Path, "/"+repo+"/")

		// Set service type
		switch {
		case strings.HasSuffix(r.URL.Path, git.UploadPackService.String()):
			vars["service"] = git.UploadPackService.String()
		case strings.HasSuffix(r.URL.Path, git.ReceivePackService.String()):
			vars["service"] = git.ReceivePackService.String()
		}

		vars["repo"] = utils.SanitizeRepo(repo)
		r = mux.SetURLVars(r, vars)
		h.ServeHTTP(w, r)
	})
}

// GitController is a router for git services.
func GitController(_ context.Context, r *mux.Router) {
	basePrefix := "/{repo:.*}"
	for _, route := range gitRoutes {
		// NOTE: withParams must always be the outermost wrapper, otherwise
		// the request vars will not be set.
		r.Handle(basePrefix+route.path, withParams(withAccess(route)))
	}
}

var gitRoutes = []GitRoute{
	// Git services
	// These routes don't handle authentication/authorization.
	// This is handled through wrapping the handlers for each route.
	// See below (withAccess).
	{
		method:  []string{http.MethodPost},
		handler: serviceRpc,
		path:    "/{service:(?:git-upload-pack|git-receive-pack)$}",
	},
	{
		method:  []string{http.MethodGet},
		handler: getInfoRefs,
		path:    "/info/refs",
	},
	// Git LFS
	{
		method:  []string{http.MethodPost},
		handler: serviceLfsBatch,
		path:    "/info/lfs/objects/batch",
	},
	{
		// Git LFS basic object handler
		method:  []string{http.MethodGet, http.MethodPut},
		handler: serviceLfsBasic,
		path:    "/info/lfs/objects/basic/{oid:[0-9a-f]{64}$}",
	},
	{
		method:  []string{http.MethodPost},
		handler: serviceLfsBasicVerify,
		path:    "/info/lfs/objects/basic/verify",
	},
	// The dumb protocol serves raw objects and packfiles, bypassing the
	// resolver and the lock protocol. It is permanently disabled. This route
	// must stay last: the repo pattern is greedy enough to swallow the LFS
	// object paths above.
	{
		method:  []string{http.MethodGet},
		handler: renderForbidden,
		path:    "/{_:(?:HEAD|objects/.*)$}",
	},
}

func askCredentials(w http.ResponseWriter, r *http.Request) {
	realm := "Git"
	if cfg := config.FromContext(r.Context()); cfg != nil && cfg.Auth.Realm != "" {
		realm = cfg.Auth.Realm
	}
	w.Header().Set("WWW-Authenticate", fmt.Sprintf(`Basic realm=%q charset="UTF-8", Token, Bearer`, realm))
	w.Header().Set("LFS-Authenticate", fmt.Sprintf(`Basic realm=%q charset="UTF-8", Token, Bearer`, realm))
}

// withAccess handles auth.
func withAccess(next http.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		cfg := config.FromContext(ctx)
		logger := log.FromContext(ctx)
		be := backend.FromContext(ctx)

		// Store repository in context
		// We're not checking for errors here because we want to allow
		// repo creation on the fly.
		repoName := mux.Vars(r)["repo"]
		var repo *proto.Repository
		if found, err := be.Repository(ctx, repoName); err == nil {
			repo = &found
		}
		ctx = proto.WithRepositoryContext(ctx, repo)
		r = r.WithContext(ctx)

		user, err := authenticate(r)
		badCreds := errors.Is(err, ErrInvalidPassword) || errors.Is(err, ErrInvalidToken) || errors.Is(err, ErrInvalidHeader)
		if err != nil && !errors.Is(err, ErrMissingHeader) && !badCreds {
			logger.Error("failed to authenticate", "err", err)
		}

		// Store user in context
		ctx = proto.WithUserContext(ctx, user)
		r = r.WithContext(ctx)

		if user != nil {
			logger.Debug("authenticated", "username", user.Username)
		}

		service := git.Service(mux.Vars(r)["service"])
		if service == "" {
			// Get service from request params
			service = getServiceType(r)
		}

		accessLevel := be.Gate().AccessLevel(ctx, user, repoName)
		ctx = access.WithContext(ctx, accessLevel)
		r = r.WithContext(ctx)

		file := mux.Vars(r)["file"]

		// Only git-upload-pack, git-receive-pack, and git-lfs may proceed;
		// everything else is rejected before reaching a handler.
		switch {
		case service == git.ReceivePackService:
			if badCreds {
				renderForbidden(w, r)
				return
			}
			if accessLevel < proto.ReadWriteAccess {
				askCredentials(w, r)
				renderUnauthorized(w, r)
				return
			}

			// Create the repo if it doesn't exist.
			if repo == nil {
				private := be.Gate().AccessLevel(ctx, nil, repoName) == proto.NoAccess
				created, err := be.CreateRepository(ctx, repoName, private)
				if err != nil {
					logger.Error("failed to create repository", "repo", repoName, "err", err)
					renderInternalServerError(w, r)
					return
				}

				repo = &created
				ctx = proto.WithRepositoryContext(ctx, repo)
				r = r.WithContext(ctx)
			}

			fallthrough
		case service == git.UploadPackService:
			if repo == nil {
				// If the repo doesn't exist, return 404
				renderNotFound(w, r)
				return
			} else if badCreds {
				// return 403 when bad credentials are provided
				renderForbidden(w, r)
				return
			} else if accessLevel < proto.ReadOnlyAccess {
				askCredentials(w, r)
				renderUnauthorized(w, r)
				return
			}

		case strings.HasPrefix(file, "info/lfs"):
			if !cfg.LFS.Enabled {
				logger.Debug("LFS is not enabled, skipping")
				renderNotFound(w, r)
				return
			}

			if strings.HasPrefix(file, "info/lfs/objects/basic") && r.Method == http.MethodPut {
				// Basic upload
				if accessLevel < proto.ReadWriteAccess {
					renderJSON(w, http.StatusForbidden, lfs.ErrorResponse{
						Message: "write access required",
					})
					return
				}
			}

			if accessLevel < proto.ReadOnlyAccess {
				if repo == nil {
					renderJSON(w, http.StatusNotFound, lfs.ErrorResponse{
						Message: "repository not found",
					})
				} else if badCreds {
					renderJSON(w, http.StatusForbidden, lfs.ErrorResponse{
						Message: "bad credentials",
					})
				} else {
					askCredentials(w, r)
					renderJSON(w, http.StatusUnauthorized, lfs.ErrorResponse{
						Message: "credentials needed",
					})
				}
				return
			}
		}

		switch {
		case badCreds:
			// return 403 when bad credentials are provided
			renderForbidden(w, r)
			return
		case repo == nil, accessLevel < proto.ReadOnlyAccess:
			// Don't hint that the repo exists if the user doesn't have access
			renderNotFound(w, r)
			return
		}

		next.ServeHTTP(w, r)
	}
}

//nolint:revive
func serviceRpc(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	be := backend.FromContext(ctx)
	service, repoName := git.Service(mux.Vars(r)["service"]), mux.Vars(r)["repo"]
	repo := proto.RepositoryFromContext(ctx)

	if !isSmart(r, service) {
		renderForbidden(w, r)
		return
	}

	forWrite := service == git.ReceivePackService
	if forWrite {
		gitHttpReceiveCounter.WithLabelValues(repoName).Inc()
	} else {
		gitHttpUploadCounter.WithLabelValues(repoName).Inc()
	}

	res := be.Resolver()
	handle, err := res.Resolve(ctx, repo.Location, forWrite)
	if err != nil {
		renderResolveError(w, r, repoName, err)
		return
	}
	dir := handle.Dir()

	// Handle gzip encoding
	var reader io.ReadCloser = r.Body
	defer reader.Close() // nolint: errcheck
	if r.Header.Get("Content-Encoding") == "gzip" {
		reader, err = gzip.NewReader(reader)
		if err != nil {
			logger.Errorf("failed to create gzip reader: %v", err)
			if rerr := handle.Release(ctx, false); rerr != nil {
				logger.Error("failed to release repository", "repo", repoName, "err", rerr)
			}
			renderInternalServerError(w, r)
			return
		}
		defer reader.Close() // nolint: errcheck
	}

	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-result", service))
	w.Header().Set("Connection", "Keep-Alive")
	w.Header().Set("Transfer-Encoding", "chunked")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)

	// Record the ref command list of a push as it streams through, so the
	// post-receive dispatch knows which refs changed.
	var capture git.CommandCapture
	var stdin io.Reader = reader
	if forWrite {
		stdin = io.TeeReader(reader, &capture)
	}

	cmd := git.ServiceCommand{
		Stdin:  stdin,
		Stdout: &flushResponseWriter{w},
		Dir:    dir,
		Args:   []string{"--stateless-rpc"},
		Env: []string{
			"OPENCODEHUB_REPO_NAME=" + repoName,
			"OPENCODEHUB_REPO_PATH=" + dir,
		},
	}

	user := proto.UserFromContext(ctx)
	if user != nil {
		cmd.Env = append(cmd.Env, "OPENCODEHUB_USERNAME="+user.Username)
	}

	handlerErr := service.Handler(ctx, cmd)
	if handlerErr != nil {
		logger.Errorf("failed to handle service: %v", handlerErr)
	}

	if !forWrite {
		if err := handle.Release(ctx, false); err != nil {
			logger.Error("failed to release repository", "repo", repoName, "err", err)
		}
		return
	}

	// A push either fully publishes or leaves the previous snapshot in
	// place; a failed service never syncs back.
	didWrite := handlerErr == nil
	if err := handle.Release(ctx, didWrite); err != nil {
		// The pack response already streamed, so the status cannot change.
		// The canonical snapshot still holds the pre-push state.
		logger.Error("failed to publish repository", "repo", repoName, "err", err)
		return
	}

	if didWrite {
		postReceive(ctx, *repo, user, dir, &capture)
	}
}

// postReceive runs the post push work: bump the repo timestamp and hand the
// ref updates to the dispatcher.
func postReceive(ctx context.Context, repo proto.Repository, user *proto.User, dir string, capture *git.CommandCapture) {
	logger := log.FromContext(ctx)
	be := backend.FromContext(ctx)

	updates, err := capture.Updates()
	if err != nil {
		logger.Error("failed to parse ref updates", "repo", repo.Name, "err", err)
		return
	}

	if len(updates) == 0 {
		return
	}

	if err := be.TouchRepository(ctx, repo); err != nil {
		logger.Error("failed to touch repository", "repo", repo.Name, "err", err)
	}

	if d := hooks.FromContext(ctx); d != nil {
		d.Dispatch(hooks.PostReceiveEvent{
			Repo:     repo,
			User:     user,
			RepoPath: dir,
			Updates:  updates,
		})
	}
}

func renderResolveError(w http.ResponseWriter, r *http.Request, repoName string, err error) {
	logger := log.FromContext(r.Context())
	switch {
	case errors.Is(err, proto.ErrLockContention):
		lockContentionCounter.WithLabelValues(repoName).Inc()
		w.Header().Set("Retry-After", "5")
		renderStatus(http.StatusServiceUnavailable)(w, r)
	case errors.Is(err, proto.ErrRepoNotFound):
		renderNotFound(w, r)
	default:
		logger.Error("failed to resolve repository", "repo", repoName, "err", err)
		renderInternalServerError(w, r)
	}
}

// Handle buffered output
// Useful when using proxies
type flushResponseWriter struct {
	http.ResponseWriter
}

func (f *flushResponseWriter) ReadFrom(r io.Reader) (int64, error) {
	flusher := http.NewResponseController(f.ResponseWriter) // nolint: bodyclose

	var n int64
	p := make([]byte, 1024)
	for {
		nRead, rerr := r.Read(p)
		if nRead > 0 {
			nWrite, err := f.ResponseWriter.Write(p[:nRead])
			if err != nil {
				return n, err
			}
			if nRead != nWrite {
				return n, io.ErrShortWrite
			}
			n += int64(nWrite)
			// ResponseWriter must support http.Flusher to handle buffered output.
			if err := flusher.Flush(); err != nil {
				return n, fmt.Errorf("%w: error while flush", err)
			}
		}
		if rerr == io.EOF {
			return n, nil
		}
		if rerr != nil {
			return n, rerr
		}
	}
}

func getInfoRefs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	be := backend.FromContext(ctx)
	repoName := mux.Vars(r)["repo"]
	repo := proto.RepositoryFromContext(ctx)

	service := getServiceType(r)
	if service == "" {
		// The dumb protocol starts with a plain info/refs request. It is
		// not supported.
		renderForbidden(w, r)
		return
	}

	if _, ok := git.ParseService(service.String()); !ok {
		renderForbidden(w, r)
		return
	}

	// A push advertisement takes the repository lock so the advertised refs
	// match what the push will be applied against.
	forWrite := service == git.ReceivePackService
	if forWrite {
		gitHttpReceiveCounter.WithLabelValues(repoName).Inc()
	} else {
		gitHttpUploadCounter.WithLabelValues(repoName).Inc()
	}

	res := be.Resolver()
	handle, err := res.Resolve(ctx, repo.Location, forWrite)
	if err != nil {
		renderResolveError(w, r, repoName, err)
		return
	}
	defer func() {
		// The advertisement never mutates the repository.
		if err := handle.Release(ctx, false); err != nil {
			logger.Error("failed to release repository", "repo", repoName, "err", err)
		}
	}()

	// Smart HTTP
	var refs bytes.Buffer
	cmd := git.ServiceCommand{
		Stdout: &refs,
		Dir:    handle.Dir(),
		Args:   []string{"--stateless-rpc", "--advertise-refs"},
	}

	if err := service.Handler(ctx, cmd); err != nil {
		renderNotFound(w, r)
		return
	}

	hdrNocache(w)
	w.Header().Set("Content-Type", fmt.Sprintf("application/x-%s-advertisement", service))
	w.WriteHeader(http.StatusOK)

	// The advertisement always opens with the service pkt-line header and a
	// flush-pkt, independent of any Git-Protocol header the client sent.
	git.WritePktline(w, "# service="+service.String()) // nolint: errcheck
	w.Write(refs.Bytes())                              // nolint: errcheck
}

func getServiceType(r *http.Request) git.Service {
	service := r.FormValue("service")
	if !strings.HasPrefix(service, "git-") {
		return ""
	}

	return git.Service(service)
}

func isSmart(r *http.Request, service git.Service) bool {
	contentType := r.Header.Get("Content-Type")
	return strings.HasPrefix(contentType, fmt.Sprintf("application/x-%s-request", service))
}

// HTTP error response handling functions

func renderBadRequest(w http.ResponseWriter, r *http.Request) {
	renderStatus(http.StatusBadRequest)(w, r)
}

func renderMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	if r.Proto == "HTTP/1.1" {
		renderStatus(http.StatusMethodNotAllowed)(w, r)
	} else {
		renderBadRequest(w, r)
	}
}

func renderNotFound(w http.ResponseWriter, r *http.Request) {
	renderStatus(http.StatusNotFound)(w, r)
}

func renderUnauthorized(w http.ResponseWriter, r *http.Request) {
	renderStatus(http.StatusUnauthorized)(w, r)
}

func renderForbidden(w http.ResponseWriter, r *http.Request) {
	renderStatus(http.StatusForbidden)(w, r)
}

func renderInternalServerError(w http.ResponseWriter, r *http.Request) {
	renderStatus(http.StatusInternalServerError)(w, r)
}

// Header writing functions

func hdrNocache(w http.ResponseWriter) {
	w.Header().Set("Expires", "Fri, 01 Jan 1980 00:00:00 GMT")
	w.Header().Set("Pragma", "no-cache")
	w.Header().Set("Cache-Control", "no-cache, max-age=0, must-revalidate")
}
