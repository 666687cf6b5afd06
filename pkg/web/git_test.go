package web

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/matryer/is"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/swadhinbiswas/opencodehub/pkg/access"
	"github.com/swadhinbiswas/opencodehub/pkg/backend"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/db"
	"github.com/swadhinbiswas/opencodehub/pkg/db/migrate"
	"github.com/swadhinbiswas/opencodehub/pkg/proto"
	"github.com/swadhinbiswas/opencodehub/pkg/resolver"
	"github.com/swadhinbiswas/opencodehub/pkg/store"
	"github.com/swadhinbiswas/opencodehub/pkg/store/database"
)

type testServer struct {
	*httptest.Server
	backend *backend.Backend
	ctx     context.Context
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	return newTestServerWith(t, mutate, func(cfg *config.Config) resolver.Resolver {
		return resolver.NewLocalResolver(cfg.ReposPath())
	})
}

func newTestServerWith(t *testing.T, mutate func(*config.Config), newResolver func(*config.Config) resolver.Resolver) *testServer {
	t.Helper()
	is := is.New(t)

	cfg := config.DefaultConfig(t.TempDir())
	cfg.DB.DataSource = filepath.Join(cfg.DataPath, "test.db") +
		"?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	if mutate != nil {
		mutate(cfg)
	}

	logger := log.New(io.Discard)
	ctx := log.WithContext(context.TODO(), logger)
	ctx = config.WithContext(ctx, cfg)

	dbx, err := db.Open(ctx, cfg.DB.Driver, cfg.DB.DataSource)
	is.NoErr(err)
	t.Cleanup(func() { dbx.Close() }) // nolint: errcheck
	is.NoErr(migrate.Migrate(ctx, dbx))
	ctx = db.WithContext(ctx, dbx)

	datastore := database.New()
	ctx = store.WithContext(ctx, datastore)

	gate, err := access.NewStaticGate(cfg.Auth)
	is.NoErr(err)

	be := backend.New(cfg, dbx, datastore, newResolver(cfg), gate, logger)
	ctx = backend.WithContext(ctx, be)

	srv := httptest.NewServer(NewRouter(ctx))
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, backend: be, ctx: ctx}
}

func requireGit(t *testing.T) {
	t.Helper()
	if _, err := exec.LookPath("git"); err != nil {
		t.Skip("git binary not found")
	}
}

func TestInfoRefsAdvertisement(t *testing.T) {
	requireGit(t)
	is := is.New(t)
	ts := newTestServer(t, nil)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, err := http.Get(ts.URL + "/hello.git/info/refs?service=git-upload-pack")
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck

	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(resp.Header.Get("Content-Type"), "application/x-git-upload-pack-advertisement")

	body, err := io.ReadAll(resp.Body)
	is.NoErr(err)
	is.True(strings.HasPrefix(string(body), "001e# service=git-upload-pack\n0000"))
}

func TestInfoRefsDumbForbidden(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, nil)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, err := http.Get(ts.URL + "/hello.git/info/refs")
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusForbidden)
}

func TestLooseObjectsForbidden(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, nil)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	for _, path := range []string{
		"/hello.git/objects/info/packs",
		"/hello.git/objects/ab/cdef0123456789",
		"/hello.git/HEAD",
	} {
		resp, err := http.Get(ts.URL + path)
		is.NoErr(err)
		resp.Body.Close() // nolint: errcheck
		is.Equal(resp.StatusCode, http.StatusForbidden)
	}
}

func TestInfoRefsUnknownRepo(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, nil)

	resp, err := http.Get(ts.URL + "/nope.git/info/refs?service=git-upload-pack")
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestInfoRefsUnsupportedService(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, nil)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, err := http.Get(ts.URL + "/hello.git/info/refs?service=git-upload-archive")
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusForbidden)
}

func TestPrivateRepoAsksCredentials(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.Users = []string{"octo:hunter2"}
		cfg.Auth.Private = []string{"secret/*"}
	})

	_, err := ts.backend.CreateRepository(ts.ctx, "secret/plans", true)
	is.NoErr(err)

	resp, err := http.Get(ts.URL + "/secret/plans.git/info/refs?service=git-upload-pack")
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck

	is.Equal(resp.StatusCode, http.StatusUnauthorized)
	is.True(strings.Contains(resp.Header.Get("WWW-Authenticate"), "Basic"))
}

func TestBadCredentialsForbidden(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.Users = []string{"octo:hunter2"}
	})

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/hello.git/info/refs?service=git-upload-pack", nil)
	is.NoErr(err)
	req.SetBasicAuth("octo", "wrong")

	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusForbidden)
}

func TestReceivePackRequiresWriteAccess(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, nil) // anon access defaults to read-only

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, err := http.Get(ts.URL + "/hello.git/info/refs?service=git-receive-pack")
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusUnauthorized)
}

func TestServiceRpcRequiresSmartContentType(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, nil)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, err := http.Post(ts.URL+"/hello.git/git-upload-pack", "text/plain", strings.NewReader(""))
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusForbidden)
}

// contendedResolver serves reads normally and, once contend is set, rejects
// every write resolve as if another writer held the repository lock.
type contendedResolver struct {
	reads   resolver.Resolver
	contend bool
}

func (c *contendedResolver) Resolve(ctx context.Context, repo proto.RepositoryLocation, forWrite bool) (*resolver.Handle, error) {
	if forWrite && c.contend {
		return nil, proto.ErrLockContention
	}
	return c.reads.Resolve(ctx, repo, forWrite)
}

func TestReceivePackAdvertisementLockContention(t *testing.T) {
	requireGit(t)
	is := is.New(t)

	var res *contendedResolver
	ts := newTestServerWith(t, func(cfg *config.Config) {
		cfg.Auth.AnonAccess = "read-write"
	}, func(cfg *config.Config) resolver.Resolver {
		res = &contendedResolver{reads: resolver.NewLocalResolver(cfg.ReposPath())}
		return res
	})

	_, err := ts.backend.CreateRepository(ts.ctx, "hot", false)
	is.NoErr(err)
	res.contend = true

	receivesBefore := testutil.ToFloat64(gitHttpReceiveCounter.WithLabelValues("hot"))

	// A push advertisement write-resolves, so a held lock turns it away.
	resp, err := http.Get(ts.URL + "/hot.git/info/refs?service=git-receive-pack")
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusServiceUnavailable)
	is.Equal(resp.Header.Get("Retry-After"), "5")
	is.Equal(testutil.ToFloat64(gitHttpReceiveCounter.WithLabelValues("hot")), receivesBefore+1)

	// Fetches read-resolve and stay unaffected by the writer.
	resp2, err := http.Get(ts.URL + "/hot.git/info/refs?service=git-upload-pack")
	is.NoErr(err)
	defer resp2.Body.Close() // nolint: errcheck
	is.Equal(resp2.StatusCode, http.StatusOK)
}

// finalChunkReader returns its payload together with io.EOF, the way
// bytes.Reader style readers end a stream.
type finalChunkReader struct {
	data []byte
	done bool
}

func (r *finalChunkReader) Read(p []byte) (int, error) {
	if r.done {
		return 0, io.EOF
	}
	r.done = true
	return copy(p, r.data), io.EOF
}

type brokenReader struct{}

func (brokenReader) Read([]byte) (int, error) {
	return 0, errors.New("read: connection reset")
}

func TestFlushResponseWriterReadFrom(t *testing.T) {
	is := is.New(t)

	// Bytes delivered alongside io.EOF are still written out.
	rec := httptest.NewRecorder()
	f := &flushResponseWriter{rec}
	n, err := f.ReadFrom(&finalChunkReader{data: []byte("0000")})
	is.NoErr(err)
	is.Equal(n, int64(4))
	is.Equal(rec.Body.String(), "0000")

	// A persistent read error ends the copy instead of spinning.
	rec = httptest.NewRecorder()
	f = &flushResponseWriter{rec}
	_, err = f.ReadFrom(brokenReader{})
	is.True(err != nil)
}

func TestMethodNotAllowed(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, nil)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, err := http.Get(ts.URL + "/hello.git/git-upload-pack")
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusMethodNotAllowed)
}
