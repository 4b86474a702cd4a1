package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"go.uber.org/zap/zapcore"
)

// ErrLoadConfig indicates a failure to read the environment or the secrets directory.
var ErrLoadConfig = errors.New("config load failed")

// ErrValidateConfig indicates that the loaded configuration is invalid.
var ErrValidateConfig = errors.New("configuration validation failed")

// ErrMissingToken is returned by Validate when no Mealie API token was found.
var ErrMissingToken = fmt.Errorf("%w: authorization token is missing, check the MEALIE_AUTH_TOKEN secret", ErrValidateConfig)

// Keys understood by the loader. Each one is also read from the environment
// variable of the same name in upper case.
const (
	KeySecretsDir      = "secrets_dir"
	KeyMealieBaseURL   = "mealie_base_url"
	KeyHealthPath      = "mealie_health_path"
	KeyBackupPath      = "mealie_backup_path"
	KeyDownloadPath    = "mealie_download_path"
	KeyNextcloudURL    = "nc_base_url"
	KeyNextcloudUser   = "nc_user"
	KeyWebDAVPath      = "webdav_path"
	KeyWebDAVDir       = "webdav_dir"
	KeyScratchDir      = "scratch_dir"
	KeyLogFile         = "log_file"
	KeyLogLevel        = "log_level"
	KeyRecordFile      = "run_record_file"
	KeyHealthTimeout   = "health_timeout"
	KeyAPITimeout      = "api_timeout"
	KeyDownloadTimeout = "download_timeout"
	KeyUploadTimeout   = "upload_timeout"
	KeyClockSkew       = "clock_skew"
	KeyCompress        = "upload_compress"
	KeyKeepArtifact    = "keep_artifact"
	KeyProgress        = "progress"
)

var defaults = map[string]any{
	KeySecretsDir:      "/run/secrets",
	KeyMealieBaseURL:   "http://localhost:9000",
	KeyHealthPath:      "/api/app/about",
	KeyBackupPath:      "/api/admin/backups",
	KeyDownloadPath:    "/api/utils/download?token=",
	KeyNextcloudURL:    "http://localhost:8080",
	KeyNextcloudUser:   "admin",
	KeyWebDAVPath:      "/remote.php/dav/files",
	KeyWebDAVDir:       "Mealie",
	KeyScratchDir:      os.TempDir(),
	KeyLogFile:         "/app/script.log",
	KeyLogLevel:        "info",
	KeyRecordFile:      "",
	KeyHealthTimeout:   5 * time.Second,
	KeyAPITimeout:      10 * time.Second,
	KeyDownloadTimeout: 120 * time.Second,
	KeyUploadTimeout:   60 * time.Second,
	KeyClockSkew:       10 * time.Minute,
	KeyCompress:        false,
	KeyKeepArtifact:    false,
	KeyProgress:        false,
}

// Config is the immutable settings bundle built once at startup and handed to
// every client.
type Config struct {
	SecretsDir string
	Mealie     MealieConfig
	Nextcloud  NextcloudConfig
	Backup     BackupConfig
	Log        LogConfig
}

// MealieConfig holds the recipe server endpoints and credentials.
type MealieConfig struct {
	BaseURL         string
	HealthPath      string
	BackupPath      string
	DownloadPath    string
	Token           string
	HealthTimeout   time.Duration
	APITimeout      time.Duration
	DownloadTimeout time.Duration
	ClockSkew       time.Duration
}

// NextcloudConfig holds the WebDAV upload target and its basic auth credentials.
type NextcloudConfig struct {
	BaseURL    string
	WebDAVPath string
	Dir        string
	User       string
	Password   string
	Timeout    time.Duration
}

// BackupConfig controls how the artifact is staged locally.
type BackupConfig struct {
	ScratchDir   string
	RecordFile   string
	Compress     bool
	KeepArtifact bool
	Progress     bool
}

// LogConfig selects the log file and minimum level.
type LogConfig struct {
	File  string
	Level string
}

// NewViper returns a viper instance with every default registered and
// environment lookup enabled. Callers may bind flags on it before Load.
func NewViper() *viper.Viper {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()
	return v
}

// Load resolves settings from v and secrets from the secrets directory.
func (c *Config) Load(v *viper.Viper) error {
	c.SecretsDir = v.GetString(KeySecretsDir)

	raw, err := LoadSecrets(c.SecretsDir)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLoadConfig, err)
	}
	secrets, err := DecodeSecrets(raw)
	if err != nil {
		return fmt.Errorf("%w: decode secrets: %v", ErrLoadConfig, err)
	}

	c.Mealie = MealieConfig{
		BaseURL:         firstNonEmpty(secrets.MealieBaseURL, v.GetString(KeyMealieBaseURL)),
		HealthPath:      v.GetString(KeyHealthPath),
		BackupPath:      v.GetString(KeyBackupPath),
		DownloadPath:    v.GetString(KeyDownloadPath),
		Token:           secrets.MealieToken,
		HealthTimeout:   v.GetDuration(KeyHealthTimeout),
		APITimeout:      v.GetDuration(KeyAPITimeout),
		DownloadTimeout: v.GetDuration(KeyDownloadTimeout),
		ClockSkew:       v.GetDuration(KeyClockSkew),
	}
	c.Nextcloud = NextcloudConfig{
		BaseURL:    firstNonEmpty(secrets.NextcloudBaseURL, v.GetString(KeyNextcloudURL)),
		WebDAVPath: v.GetString(KeyWebDAVPath),
		Dir:        v.GetString(KeyWebDAVDir),
		User:       v.GetString(KeyNextcloudUser),
		Password:   secrets.NextcloudPassword,
		Timeout:    v.GetDuration(KeyUploadTimeout),
	}
	c.Backup = BackupConfig{
		ScratchDir:   v.GetString(KeyScratchDir),
		RecordFile:   v.GetString(KeyRecordFile),
		Compress:     v.GetBool(KeyCompress),
		KeepArtifact: v.GetBool(KeyKeepArtifact),
		Progress:     v.GetBool(KeyProgress),
	}
	c.Log = LogConfig{
		File:  v.GetString(KeyLogFile),
		Level: v.GetString(KeyLogLevel),
	}
	return nil
}

// Validate checks the single hard precondition of a run: a Mealie token.
func (c *Config) Validate() error {
	if c.Mealie.Token == "" {
		return ErrMissingToken
	}
	if c.Mealie.BaseURL == "" {
		return fmt.Errorf("%w: mealie base url is empty", ErrValidateConfig)
	}
	return nil
}

func (m MealieConfig) HealthURL() string { return BuildURL(m.BaseURL, m.HealthPath) }
func (m MealieConfig) BackupURL() string { return BuildURL(m.BaseURL, m.BackupPath) }

// DownloadURL is the prefix the download token gets appended to. It is not
// joined with a slash so that query templates such as "?token=" keep working.
func (m MealieConfig) DownloadURL() string { return BuildURL(m.BaseURL, m.DownloadPath) }

// WebDAVURL is the user's WebDAV root, e.g. https://cloud/remote.php/dav/files/alice.
func (n NextcloudConfig) WebDAVURL() string {
	return BuildURL(n.BaseURL, n.WebDAVPath, n.User)
}

// MarshalLogObject writes the configuration without any secret values.
func (c *Config) MarshalLogObject(enc zapcore.ObjectEncoder) error {
	enc.AddString("secrets_dir", c.SecretsDir)
	enc.AddString("mealie_url", c.Mealie.BaseURL)
	enc.AddBool("mealie_token_set", c.Mealie.Token != "")
	enc.AddString("webdav_url", c.Nextcloud.WebDAVURL())
	enc.AddString("webdav_dir", c.Nextcloud.Dir)
	enc.AddBool("webdav_password_set", c.Nextcloud.Password != "")
	enc.AddString("scratch_dir", c.Backup.ScratchDir)
	enc.AddBool("compress", c.Backup.Compress)
	if c.Backup.RecordFile != "" {
		enc.AddString("record_file", c.Backup.RecordFile)
	}
	return nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return ""
}
