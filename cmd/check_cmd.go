package cmd

import (
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/spf13/cobra"

	"github.com/kebairia/mealie-backup/internal/mealie"
	"github.com/kebairia/mealie-backup/internal/operations"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate the configuration and probe the Mealie server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			log.Error("configuration invalid", "error", err.Error())
			return err
		}

		client := mealie.NewClient(cfg.Mealie, mealie.WithLogger(log))
		if err := client.HealthCheck(cmd.Context()); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s is reachable\n", cfg.Mealie.BaseURL)

		if cfg.Backup.RecordFile != "" {
			printLastRun(out, cfg.Backup.RecordFile)
		}
		return nil
	},
}

// printLastRun summarises the run record left by the previous rotation.
func printLastRun(out io.Writer, path string) {
	var record operations.Metadata
	if err := record.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			fmt.Fprintln(out, "no previous run recorded")
			return
		}
		log.Warn("could not read run record", "path", path, "error", err.Error())
		return
	}

	fmt.Fprintf(out, "last run %s: %s, finished %s", record.RunID, record.Status, record.CompletedAt.Format("2006-01-02 15:04:05"))
	if record.FailedStage != "" {
		fmt.Fprintf(out, " at stage %s", record.FailedStage)
	}
	fmt.Fprintln(out)
}
