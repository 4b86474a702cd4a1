package operations

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kebairia/mealie-backup/internal/config"
	"github.com/kebairia/mealie-backup/internal/logger"
	"github.com/kebairia/mealie-backup/internal/types"
)

type requestLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *requestLog) add(r *http.Request) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, r.Method+" "+r.URL.Path)
}

func (l *requestLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

func e2eConfig(t *testing.T, mealieURL, cloudURL string) config.Config {
	return config.Config{
		Mealie: config.MealieConfig{
			BaseURL:         mealieURL,
			HealthPath:      "/api/app/about",
			BackupPath:      "/api/admin/backups",
			DownloadPath:    "/api/utils/download?token=",
			Token:           "secret",
			HealthTimeout:   200 * time.Millisecond,
			APITimeout:      time.Second,
			DownloadTimeout: time.Second,
		},
		Nextcloud: config.NextcloudConfig{
			BaseURL:    cloudURL,
			WebDAVPath: "/remote.php/dav/files",
			Dir:        "Mealie",
			User:       "alice",
			Password:   "pw",
			Timeout:    time.Second,
		},
		Backup: config.BackupConfig{ScratchDir: t.TempDir()},
	}
}

func TestRotate_EndToEnd(t *testing.T) {
	var (
		mealieLog requestLog
		mu        sync.Mutex
		created   bool
	)
	mealieSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mealieLog.add(r)
		switch r.Method + " " + r.URL.Path {
		case "GET /api/app/about":
			w.WriteHeader(http.StatusOK)
		case "GET /api/admin/backups":
			mu.Lock()
			done := created
			mu.Unlock()
			if done {
				_, _ = io.WriteString(w, `{"imports":[{"name":"c.zip"}]}`)
			} else {
				_, _ = io.WriteString(w, `{"imports":[{"name":"a.zip"},{"name":"b.zip"}]}`)
			}
		case "DELETE /api/admin/backups/a.zip", "DELETE /api/admin/backups/b.zip":
			w.WriteHeader(http.StatusOK)
		case "POST /api/admin/backups":
			mu.Lock()
			created = true
			mu.Unlock()
			w.WriteHeader(http.StatusCreated)
		case "GET /api/admin/backups/c.zip":
			_, _ = io.WriteString(w, `{"fileToken":"tok123"}`)
		case "GET /api/utils/download":
			assert.Equal(t, "tok123", r.URL.Query().Get("token"))
			w.Header().Set("Content-Disposition", `attachment; filename="c.zip"`)
			_, _ = io.WriteString(w, "zip-bytes")
		default:
			http.NotFound(w, r)
		}
	}))
	defer mealieSrv.Close()

	var (
		uploaded   []byte
		uploadPath string
	)
	cloudSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		mu.Lock()
		uploadPath, uploaded = r.URL.Path, body
		mu.Unlock()
		w.WriteHeader(http.StatusCreated)
	}))
	defer cloudSrv.Close()

	cfg := e2eConfig(t, mealieSrv.URL, cloudSrv.URL)
	om := NewOperationManager(cfg, logger.Nop())

	record, err := om.Rotate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, types.ExitSuccess, ExitCodeFor(err))

	assert.Equal(t, []string{
		"GET /api/app/about",
		"GET /api/admin/backups",
		"DELETE /api/admin/backups/a.zip",
		"DELETE /api/admin/backups/b.zip",
		"POST /api/admin/backups",
		"GET /api/admin/backups",
		"GET /api/admin/backups/c.zip",
		"GET /api/utils/download",
	}, mealieLog.all())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, "/remote.php/dav/files/alice/Mealie/c.zip", uploadPath)
	assert.Equal(t, "zip-bytes", string(uploaded))
	assert.Equal(t, "c.zip", record.Backup)
	assert.Equal(t, 2, record.Deleted)
	assert.Equal(t, StatusSuccess, record.Status)
	assert.NoFileExists(t, filepath.Join(cfg.Backup.ScratchDir, "c.zip"))
}

func TestRotate_EndToEndHealthTimeout(t *testing.T) {
	var mealieLog requestLog
	mealieSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mealieLog.add(r)
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer mealieSrv.Close()

	var uploads atomic.Int32
	cloudSrv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		uploads.Add(1)
	}))
	defer cloudSrv.Close()

	cfg := e2eConfig(t, mealieSrv.URL, cloudSrv.URL)
	_, err := NewOperationManager(cfg, logger.Nop()).Rotate(context.Background())

	require.Error(t, err)
	assert.NotEqual(t, types.ExitSuccess, ExitCodeFor(err))
	assert.Equal(t, types.ExitNetworkError, ExitCodeFor(err))
	assert.Equal(t, []string{"GET /api/app/about"}, mealieLog.all())
	assert.Zero(t, uploads.Load())

	entries, err := os.ReadDir(cfg.Backup.ScratchDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}
