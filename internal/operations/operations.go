package operations

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/kebairia/mealie-backup/internal/config"
	"github.com/kebairia/mealie-backup/internal/logger"
	"github.com/kebairia/mealie-backup/internal/mealie"
	"github.com/kebairia/mealie-backup/internal/webdav"
)

// BackupServer is the part of the Mealie client a rotation needs.
type BackupServer interface {
	HealthCheck(ctx context.Context) error
	DeleteAllBackups(ctx context.Context) mealie.DeleteSummary
	CreateBackup(ctx context.Context) (string, error)
	BackupToken(ctx context.Context, name string) (string, error)
	Download(ctx context.Context, token, dir string) (*mealie.Artifact, error)
}

// Uploader stores one local file remotely and returns where it went.
type Uploader interface {
	Upload(ctx context.Context, name, localPath string) (string, error)
}

// Option configures an OperationManager.
type Option func(*OperationManager)

// WithBackupServer replaces the Mealie client built from the config.
func WithBackupServer(s BackupServer) Option {
	return func(om *OperationManager) {
		om.server = s
	}
}

// WithUploader replaces the WebDAV client built from the config.
func WithUploader(u Uploader) Option {
	return func(om *OperationManager) {
		om.storage = u
	}
}

// WithClock overrides time.Now for the run record timestamps.
func WithClock(now func() time.Time) Option {
	return func(om *OperationManager) {
		om.now = now
	}
}

// OperationManager runs one backup rotation.
type OperationManager struct {
	cfg     config.Config
	server  BackupServer
	storage Uploader
	log     logger.Logger
	runID   string
	now     func() time.Time
}

// NewOperationManager wires the Mealie and WebDAV clients from cfg. The
// configuration is not validated here so that a missing token is reported as
// the first stage of the run.
func NewOperationManager(cfg config.Config, log logger.Logger, opts ...Option) *OperationManager {
	runID := uuid.NewString()
	log = log.With("run_id", runID)

	om := &OperationManager{
		cfg:   cfg,
		log:   log,
		runID: runID,
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(om)
	}

	if om.server == nil {
		om.server = mealie.NewClient(cfg.Mealie,
			mealie.WithLogger(log),
			mealie.WithProgress(cfg.Backup.Progress),
		)
	}
	if om.storage == nil {
		om.storage = webdav.NewClient(cfg.Nextcloud,
			webdav.WithLogger(log),
			webdav.WithProgress(cfg.Backup.Progress),
		)
	}
	return om
}

// RunID identifies this rotation in logs and in the run record.
func (om *OperationManager) RunID() string {
	return om.runID
}
