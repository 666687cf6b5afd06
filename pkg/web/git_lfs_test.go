package web

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"testing"

	"github.com/matryer/is"
	"github.com/swadhinbiswas/opencodehub/pkg/config"
	"github.com/swadhinbiswas/opencodehub/pkg/lfs"
)

func lfsTestServer(t *testing.T) *testServer {
	t.Helper()
	return newTestServer(t, func(cfg *config.Config) {
		cfg.Auth.AnonAccess = "read-write"
	})
}

func postBatch(t *testing.T, url string, req lfs.BatchRequest) (*http.Response, lfs.BatchResponse) {
	t.Helper()
	is := is.New(t)

	body, err := json.Marshal(req)
	is.NoErr(err)

	hr, err := http.NewRequest(http.MethodPost, url+"/info/lfs/objects/batch", bytes.NewReader(body))
	is.NoErr(err)
	hr.Header.Set("Accept", lfs.MediaType)
	hr.Header.Set("Content-Type", lfs.MediaType)

	resp, err := http.DefaultClient.Do(hr)
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck

	var br lfs.BatchResponse
	if resp.StatusCode == http.StatusOK {
		is.NoErr(json.NewDecoder(resp.Body).Decode(&br))
	}

	return resp, br
}

func TestLfsUploadRoundtrip(t *testing.T) {
	is := is.New(t)
	ts := lfsTestServer(t)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	content := []byte("big binary blob")
	sum := sha256.Sum256(content)
	ptr := lfs.Pointer{
		Oid:  hex.EncodeToString(sum[:]),
		Size: int64(len(content)),
	}

	repoURL := ts.URL + "/hello.git"

	// Batch upload hands back upload and verify actions.
	resp, br := postBatch(t, repoURL, lfs.BatchRequest{
		Operation: lfs.OperationUpload,
		Objects:   []lfs.Pointer{ptr},
	})
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(br.Transfer, lfs.TransferBasic)
	is.Equal(len(br.Objects), 1)
	is.True(br.Objects[0].Error == nil)
	is.True(br.Objects[0].Actions[lfs.ActionUpload] != nil)
	is.True(br.Objects[0].Actions[lfs.ActionVerify] != nil)

	// Basic upload
	req, err := http.NewRequest(http.MethodPut, repoURL+"/info/lfs/objects/basic/"+ptr.Oid, bytes.NewReader(content))
	is.NoErr(err)
	req.Header.Set("Content-Type", "application/octet-stream")
	uploadResp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	uploadResp.Body.Close() // nolint: errcheck
	is.Equal(uploadResp.StatusCode, http.StatusOK)

	// Verify
	verifyBody, err := json.Marshal(ptr)
	is.NoErr(err)
	req, err = http.NewRequest(http.MethodPost, repoURL+"/info/lfs/objects/basic/verify", bytes.NewReader(verifyBody))
	is.NoErr(err)
	req.Header.Set("Accept", lfs.MediaType)
	req.Header.Set("Content-Type", lfs.MediaType)
	verifyResp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	verifyResp.Body.Close() // nolint: errcheck
	is.Equal(verifyResp.StatusCode, http.StatusOK)

	// Batch download hands back a download action.
	resp, br = postBatch(t, repoURL, lfs.BatchRequest{
		Operation: lfs.OperationDownload,
		Objects:   []lfs.Pointer{ptr},
	})
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(len(br.Objects), 1)
	is.True(br.Objects[0].Error == nil)
	is.True(br.Objects[0].Actions[lfs.ActionDownload] != nil)

	// Basic download returns the stored content.
	dlResp, err := http.Get(repoURL + "/info/lfs/objects/basic/" + ptr.Oid)
	is.NoErr(err)
	defer dlResp.Body.Close() // nolint: errcheck
	is.Equal(dlResp.StatusCode, http.StatusOK)

	got, err := io.ReadAll(dlResp.Body)
	is.NoErr(err)
	is.Equal(got, content)
}

func TestLfsUploadHashMismatch(t *testing.T) {
	is := is.New(t)
	ts := lfsTestServer(t)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	sum := sha256.Sum256([]byte("expected content"))
	oid := hex.EncodeToString(sum[:])
	repoURL := ts.URL + "/hello.git"

	req, err := http.NewRequest(http.MethodPut, repoURL+"/info/lfs/objects/basic/"+oid, strings.NewReader("tampered content"))
	is.NoErr(err)
	req.Header.Set("Content-Type", "application/octet-stream")
	resp, err := http.DefaultClient.Do(req)
	is.NoErr(err)
	resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusUnprocessableEntity)

	// The rejected object is not retrievable.
	verifyBody, err := json.Marshal(lfs.Pointer{Oid: oid, Size: 16})
	is.NoErr(err)
	req, err = http.NewRequest(http.MethodPost, repoURL+"/info/lfs/objects/basic/verify", bytes.NewReader(verifyBody))
	is.NoErr(err)
	req.Header.Set("Accept", lfs.MediaType)
	req.Header.Set("Content-Type", lfs.MediaType)
	resp, err = http.DefaultClient.Do(req)
	is.NoErr(err)
	resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusNotFound)
}

func TestLfsBatchDownloadMissing(t *testing.T) {
	is := is.New(t)
	ts := lfsTestServer(t)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	ptr := lfs.Pointer{
		Oid:  strings.Repeat("a", 64),
		Size: 123,
	}
	resp, br := postBatch(t, ts.URL+"/hello.git", lfs.BatchRequest{
		Operation: lfs.OperationDownload,
		Objects:   []lfs.Pointer{ptr},
	})
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(len(br.Objects), 1)
	is.True(br.Objects[0].Error != nil)
	is.Equal(br.Objects[0].Error.Code, http.StatusNotFound)
}

func TestLfsBatchInvalidOid(t *testing.T) {
	is := is.New(t)
	ts := lfsTestServer(t)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, br := postBatch(t, ts.URL+"/hello.git", lfs.BatchRequest{
		Operation: lfs.OperationUpload,
		Objects:   []lfs.Pointer{{Oid: "../../../etc/passwd", Size: 1}},
	})
	is.Equal(resp.StatusCode, http.StatusOK)
	is.Equal(len(br.Objects), 1)
	is.True(br.Objects[0].Error != nil)
	is.Equal(br.Objects[0].Error.Code, http.StatusUnprocessableEntity)
}

func TestLfsBatchUploadRequiresWriteAccess(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, nil) // anon access defaults to read-only

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	sum := sha256.Sum256([]byte("content"))
	resp, _ := postBatch(t, ts.URL+"/hello.git", lfs.BatchRequest{
		Operation: lfs.OperationUpload,
		Objects:   []lfs.Pointer{{Oid: hex.EncodeToString(sum[:]), Size: 7}},
	})
	is.Equal(resp.StatusCode, http.StatusForbidden)
}

func TestLfsBatchUnsupportedOperation(t *testing.T) {
	is := is.New(t)
	ts := lfsTestServer(t)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, _ := postBatch(t, ts.URL+"/hello.git", lfs.BatchRequest{
		Operation: "replicate",
	})
	is.Equal(resp.StatusCode, http.StatusBadRequest)
}

func TestLfsBatchNotAcceptable(t *testing.T) {
	is := is.New(t)
	ts := lfsTestServer(t)

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, err := http.Post(ts.URL+"/hello.git/info/lfs/objects/batch", "application/json",
		strings.NewReader(fmt.Sprintf(`{"operation":%q}`, lfs.OperationDownload)))
	is.NoErr(err)
	defer resp.Body.Close() // nolint: errcheck
	is.Equal(resp.StatusCode, http.StatusNotAcceptable)
}

func TestLfsDisabled(t *testing.T) {
	is := is.New(t)
	ts := newTestServer(t, func(cfg *config.Config) {
		cfg.LFS.Enabled = false
	})

	_, err := ts.backend.CreateRepository(ts.ctx, "hello", false)
	is.NoErr(err)

	resp, _ := postBatch(t, ts.URL+"/hello.git", lfs.BatchRequest{
		Operation: lfs.OperationDownload,
	})
	is.Equal(resp.StatusCode, http.StatusNotFound)
}
