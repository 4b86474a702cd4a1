package webdav_test

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/kebairia/mealie-backup/internal/config"
	"github.com/kebairia/mealie-backup/internal/logger"
	"github.com/kebairia/mealie-backup/internal/transport"
	"github.com/kebairia/mealie-backup/internal/webdav"
)

func testConfig(baseURL string) config.NextcloudConfig {
	return config.NextcloudConfig{
		BaseURL:    baseURL,
		WebDAVPath: "/remote.php/dav/files/",
		Dir:        "/Mealie/",
		User:       "alice",
		Password:   "hunter2",
		Timeout:    time.Second,
	}
}

func newClient(cfg config.NextcloudConfig) (*webdav.Client, *observer.ObservedLogs) {
	core, logs := observer.New(zap.DebugLevel)
	return webdav.NewClient(cfg, webdav.WithLogger(logger.New(core))), logs
}

func writeArtifact(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestUpload_Created(t *testing.T) {
	var got []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/remote.php/dav/files/alice/Mealie/c.zip", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "alice", user)
		assert.Equal(t, "hunter2", pass)
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		got, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c, _ := newClient(testConfig(srv.URL))
	path := writeArtifact(t, "c.zip", "zip-bytes")

	remote, err := c.Upload(context.Background(), "c.zip", path)
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/remote.php/dav/files/alice/Mealie/c.zip", remote)
	assert.Equal(t, "zip-bytes", string(got))
}

func TestUpload_SuccessCodes(t *testing.T) {
	for _, code := range []int{http.StatusOK, http.StatusCreated, http.StatusNoContent} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))
		c, _ := newClient(testConfig(srv.URL))
		_, err := c.Upload(context.Background(), "c.zip", writeArtifact(t, "c.zip", "x"))
		assert.NoError(t, err, "status %d", code)
		srv.Close()
	}
}

func TestUpload_MissingFileMakesNoRequest(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
	}))
	defer srv.Close()

	c, logs := newClient(testConfig(srv.URL))
	_, err := c.Upload(context.Background(), "c.zip", filepath.Join(t.TempDir(), "missing.zip"))

	require.Error(t, err)
	assert.Equal(t, transport.KindMissingFile, transport.KindOf(err))
	assert.Zero(t, hits.Load())
	assert.Equal(t, 1, logs.FilterMessage("local file does not exist").Len())
}

func TestUpload_UnexpectedStatusTruncatesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInsufficientStorage)
		_, _ = w.Write([]byte(strings.Repeat("x", 1000)))
	}))
	defer srv.Close()

	c, logs := newClient(testConfig(srv.URL))
	_, err := c.Upload(context.Background(), "c.zip", writeArtifact(t, "c.zip", "x"))

	require.Error(t, err)
	assert.Equal(t, transport.KindHTTPStatus, transport.KindOf(err))
	var terr *transport.Error
	require.ErrorAs(t, err, &terr)
	assert.Equal(t, http.StatusInsufficientStorage, terr.Status)
	assert.Len(t, terr.Body, transport.MaxBodyExcerpt)

	entries := logs.FilterMessage("upload response").All()
	require.Len(t, entries, 1)
	assert.Len(t, entries[0].ContextMap()["response"], transport.MaxBodyExcerpt)
}

func TestUpload_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	cfg := testConfig(srv.URL)
	cfg.Timeout = 50 * time.Millisecond
	c, logs := newClient(cfg)

	_, err := c.Upload(context.Background(), "c.zip", writeArtifact(t, "c.zip", "x"))
	require.Error(t, err)
	assert.Equal(t, transport.KindTimeout, transport.KindOf(err))
	assert.Equal(t, 1, logs.FilterMessage("upload timeout").FilterLevelExact(zapcore.ErrorLevel).Len())
}

func TestUpload_ConnectionRefused(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, logs := newClient(testConfig(base))
	_, err := c.Upload(context.Background(), "c.zip", writeArtifact(t, "c.zip", "x"))

	require.Error(t, err)
	assert.Equal(t, transport.KindNetwork, transport.KindOf(err))
	assert.Equal(t, 1, logs.FilterMessage("connection error uploading").Len())
}
