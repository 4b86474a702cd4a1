package cmd

import (
	"github.com/spf13/cobra"

	"github.com/kebairia/mealie-backup/internal/config"
	"github.com/kebairia/mealie-backup/internal/operations"
)

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Replace the server's backups with a fresh one and upload it",
	RunE:  runBackup,
}

func runBackup(cmd *cobra.Command, args []string) error {
	return operations.BackupAll(cmd.Context(), cfg, log)
}

// addBackupFlags registers the rotation flags as persistent flags so that
// both the root command and "backup" accept them.
func addBackupFlags(cmd *cobra.Command) {
	flags := cmd.PersistentFlags()
	flags.Bool("keep-artifact", false, "keep the downloaded backup after upload (env KEEP_ARTIFACT)")
	flags.Bool("compress", false, "zstd-compress the backup before upload (env UPLOAD_COMPRESS)")
	flags.Bool("progress", false, "show transfer progress bars (env PROGRESS)")
	flags.String("record", "", "write a JSON run record to this path (env RUN_RECORD_FILE)")

	bindFlag(cmd, config.KeyKeepArtifact, "keep-artifact")
	bindFlag(cmd, config.KeyCompress, "compress")
	bindFlag(cmd, config.KeyProgress, "progress")
	bindFlag(cmd, config.KeyRecordFile, "record")
}
