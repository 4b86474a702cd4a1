package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeSecret(t *testing.T, dir, name, value string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, name), []byte(value), 0o600); err != nil {
		t.Fatalf("failed to write secret %s: %v", name, err)
	}
}

func TestLoadConfig_ReadsSecretsAndEnv(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "MEALIE_AUTH_TOKEN", "  abc123\n")
	writeSecret(t, dir, "MEALIE_BASE_URL_TS", "https://mealie.example.ts.net/\n")
	writeSecret(t, dir, "NC_BASE_URL_TS", "https://cloud.example.ts.net")
	writeSecret(t, dir, "NC_PASS", "hunter2\n\n")
	writeSecret(t, dir, "UNRELATED", "ignored")

	t.Setenv("SECRETS_DIR", dir)
	t.Setenv("NC_USER", "alice")
	t.Setenv("MEALIE_BACKUP_PATH", "/api/admin/backups/")
	t.Setenv("UPLOAD_TIMEOUT", "90s")

	var cfg Config
	require.NoError(t, cfg.Load(NewViper()))
	require.NoError(t, cfg.Validate())

	assert.Equal(t, "abc123", cfg.Mealie.Token)
	assert.Equal(t, "hunter2", cfg.Nextcloud.Password)
	assert.Equal(t, "https://mealie.example.ts.net/api/admin/backups", cfg.Mealie.BackupURL())
	assert.Equal(t, "https://mealie.example.ts.net/api/app/about", cfg.Mealie.HealthURL())
	assert.Equal(t, "https://mealie.example.ts.net/api/utils/download?token=", cfg.Mealie.DownloadURL())
	assert.Equal(t, "https://cloud.example.ts.net/remote.php/dav/files/alice", cfg.Nextcloud.WebDAVURL())
	assert.Equal(t, 90*time.Second, cfg.Nextcloud.Timeout)
	assert.Equal(t, 5*time.Second, cfg.Mealie.HealthTimeout)
	assert.Equal(t, 10*time.Second, cfg.Mealie.APITimeout)
	assert.Equal(t, 120*time.Second, cfg.Mealie.DownloadTimeout)
}

func TestLoadConfig_DefaultsWithoutSecretsDir(t *testing.T) {
	t.Setenv("SECRETS_DIR", filepath.Join(t.TempDir(), "missing"))

	var cfg Config
	require.NoError(t, cfg.Load(NewViper()))

	assert.Equal(t, "http://localhost:9000", cfg.Mealie.BaseURL)
	assert.Equal(t, "Mealie", cfg.Nextcloud.Dir)
	assert.Equal(t, "/app/script.log", cfg.Log.File)

	err := cfg.Validate()
	assert.True(t, errors.Is(err, ErrMissingToken))
	assert.True(t, errors.Is(err, ErrValidateConfig))
}

func TestLoadConfig_FlagOverridesEnv(t *testing.T) {
	t.Setenv("SECRETS_DIR", t.TempDir())
	t.Setenv("SCRATCH_DIR", "/from/env")

	v := NewViper()
	v.Set(KeyScratchDir, "/from/flag")

	var cfg Config
	require.NoError(t, cfg.Load(v))
	assert.Equal(t, "/from/flag", cfg.Backup.ScratchDir)
}

func TestLoadSecrets_SkipsDirectories(t *testing.T) {
	dir := t.TempDir()
	writeSecret(t, dir, "MEALIE_AUTH_TOKEN", "tok")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "nested"), 0o700))

	secrets, err := LoadSecrets(dir)
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"MEALIE_AUTH_TOKEN": "tok"}, secrets)
}

func TestLoadSecrets_NotADirectory(t *testing.T) {
	file := filepath.Join(t.TempDir(), "file")
	writeSecret(t, filepath.Dir(file), "file", "x")

	_, err := LoadSecrets(file)
	assert.Error(t, err)
}
