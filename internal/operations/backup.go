package operations

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/kebairia/mealie-backup/internal/config"
	"github.com/kebairia/mealie-backup/internal/logger"
	"github.com/kebairia/mealie-backup/internal/transport"
)

// Stage names one step of a rotation.
type Stage string

const (
	StageConfig   Stage = "config"
	StageHealth   Stage = "health-check"
	StageDelete   Stage = "delete-existing"
	StageCreate   Stage = "create"
	StageToken    Stage = "token"
	StageDownload Stage = "download"
	StageCompress Stage = "compress"
	StageUpload   Stage = "upload"
)

// StageError reports which stage aborted a rotation.
type StageError struct {
	Stage Stage
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

func abort(stage Stage, err error) error {
	return &StageError{Stage: stage, Err: err}
}

// Rotate replaces the server's backups with a fresh one and uploads it.
// Stages run in order and each at most once; the first failure ends the run
// without retries or compensation. Deleting prior backups never fails the run.
func (om *OperationManager) Rotate(ctx context.Context) (record Metadata, err error) {
	log := om.log
	start := om.now()
	record = Metadata{
		RunID:     om.runID,
		StartedAt: start,
		Status:    StatusFailed,
	}
	defer func() {
		record.CompletedAt = om.now()
		record.Duration = record.CompletedAt.Sub(start)
		if err == nil {
			record.Status = StatusSuccess
			return
		}
		var se *StageError
		if errors.As(err, &se) {
			record.FailedStage = se.Stage
		}
		record.Error = err.Error()
		record.FailureKind = transport.KindOf(err).String()
	}()

	if err := om.cfg.Validate(); err != nil {
		log.Error("configuration invalid, aborting", "error", err.Error())
		return record, abort(StageConfig, err)
	}
	log.Info("backup rotation started", "config", &om.cfg)

	if err := om.server.HealthCheck(ctx); err != nil {
		log.Error("health check failed, aborting backup operations")
		return record, abort(StageHealth, err)
	}

	deleted := om.server.DeleteAllBackups(ctx)
	record.Deleted = deleted.Deleted
	record.DeleteFailures = deleted.Failed

	name, err := om.server.CreateBackup(ctx)
	if err != nil {
		log.Error("backup creation failed, aborting")
		return record, abort(StageCreate, err)
	}
	record.Backup = name

	token, err := om.server.BackupToken(ctx, name)
	if err != nil {
		log.Error("no download token, aborting", "backup", name)
		return record, abort(StageToken, err)
	}

	artifact, err := om.server.Download(ctx, token, om.cfg.Backup.ScratchDir)
	if err != nil {
		log.Error("backup download failed, aborting", "backup", name)
		return record, abort(StageDownload, err)
	}
	defer om.cleanup(artifact.Path)
	record.FileName = artifact.Name
	record.SizeBytes = artifact.Size
	record.Checksum = artifact.Checksum

	uploadName, uploadPath := artifact.Name, artifact.Path
	if om.cfg.Backup.Compress {
		compressed, err := CompressZstd(artifact.Path)
		if err != nil {
			log.Error("compression failed, aborting", "path", artifact.Path, "error", err.Error())
			return record, abort(StageCompress, err)
		}
		defer om.cleanup(compressed)
		uploadName, uploadPath = filepath.Base(compressed), compressed
		record.FileName = uploadName
		record.Compressed = true
	}

	remote, err := om.storage.Upload(ctx, uploadName, uploadPath)
	if err != nil {
		return record, abort(StageUpload, err)
	}
	record.RemoteURL = remote

	log.Info("backup rotation completed",
		"backup", name,
		"remote", remote,
		"duration", om.now().Sub(start).String(),
	)
	return record, nil
}

// cleanup removes a staged file unless the operator asked to keep it.
func (om *OperationManager) cleanup(path string) {
	if om.cfg.Backup.KeepArtifact {
		om.log.Info("keeping local artifact", "path", path)
		return
	}
	if err := RemoveFile(path); err != nil {
		om.log.Warn("could not remove local artifact", "path", path, "error", err.Error())
		return
	}
	om.log.Debug("removed local artifact", "path", path)
}

// BackupAll runs one rotation with the given configuration, writes the run
// record when one is configured, and returns the rotation's error.
func BackupAll(ctx context.Context, cfg config.Config, log logger.Logger, opts ...Option) error {
	om := NewOperationManager(cfg, log, opts...)

	record, err := om.Rotate(ctx)
	if cfg.Backup.RecordFile != "" {
		if werr := record.Write(cfg.Backup.RecordFile); werr != nil {
			om.log.Warn("could not write run record", "path", cfg.Backup.RecordFile, "error", werr.Error())
		}
	}

	code := ExitCodeFor(err)
	om.log.Info("backup rotation finished",
		"status", string(record.Status),
		"stage", string(record.FailedStage),
		"exit_code", code.Int(),
	)
	return err
}
