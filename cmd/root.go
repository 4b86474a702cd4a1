package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kebairia/mealie-backup/internal/config"
	"github.com/kebairia/mealie-backup/internal/logger"
	"github.com/kebairia/mealie-backup/internal/operations"
	"github.com/kebairia/mealie-backup/internal/transport"
	"github.com/kebairia/mealie-backup/internal/types"
)

var (
	// v resolves settings from flags, environment and defaults.
	v = config.NewViper()
	// cfg and log are set up by loadRuntime before any subcommand runs.
	cfg config.Config
	log logger.Logger = logger.Nop()
	// logReady is true once errors reach the log instead of only stderr.
	logReady bool

	// rootCmd is the base command for mealie-backup.
	rootCmd = &cobra.Command{
		Use:   "mealie-backup",
		Short: "Rotate a Mealie backup to Nextcloud",
		Long: `mealie-backup replaces the backups stored on a Mealie server with a
fresh one, downloads it and uploads it to a Nextcloud WebDAV directory.

Secrets are read from one file per secret in the secrets directory; every
other setting comes from flags or environment variables.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: loadRuntime,
		RunE:              runBackup,
	}
)

// Execute runs the root command and returns the process exit code.
func Execute() int {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	defer logger.Cleanup()

	err := rootCmd.ExecuteContext(ctx)
	if err == nil {
		return types.ExitSuccess.Int()
	}
	if !logReady {
		fmt.Fprintf(os.Stderr, "ERROR: %v\n", err)
	}
	return exitCodeFor(err).Int()
}

func exitCodeFor(err error) types.ExitCode {
	if errors.Is(err, config.ErrLoadConfig) || errors.Is(err, config.ErrValidateConfig) {
		return types.ExitConfigError
	}
	code := operations.ExitCodeFor(err)
	if code == types.ExitGenericError && transport.KindOf(err) != transport.KindUnknown {
		// Errors from "list" and "check" carry no rotation stage.
		return types.ExitNetworkError
	}
	return code
}

// loadRuntime builds the configuration and the logger. A log file that cannot
// be opened degrades to stdout only.
func loadRuntime(cmd *cobra.Command, args []string) error {
	if err := cfg.Load(v); err != nil {
		return err
	}

	l, err := logger.Init(logger.Options{File: cfg.Log.File, Level: cfg.Log.Level})
	if err != nil {
		l, err = logger.Init(logger.Options{Level: cfg.Log.Level})
		if err != nil {
			return fmt.Errorf("%w: %v", config.ErrLoadConfig, err)
		}
		l.Warn("log file unavailable, logging to stdout only", "path", cfg.Log.File)
	}
	log = l
	logReady = true
	return nil
}

func bindFlag(cmd *cobra.Command, key, name string) {
	if err := v.BindPFlag(key, cmd.PersistentFlags().Lookup(name)); err != nil {
		panic(fmt.Sprintf("bind flag %s: %v", name, err))
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.String("secrets-dir", "", "directory holding one file per secret (env SECRETS_DIR)")
	flags.String("log-file", "", "log file, truncated on every run (env LOG_FILE)")
	flags.String("log-level", "", "debug, info, warn or error (env LOG_LEVEL)")
	flags.String("scratch-dir", "", "where the downloaded backup is staged (env SCRATCH_DIR)")

	bindFlag(rootCmd, config.KeySecretsDir, "secrets-dir")
	bindFlag(rootCmd, config.KeyLogFile, "log-file")
	bindFlag(rootCmd, config.KeyLogLevel, "log-level")
	bindFlag(rootCmd, config.KeyScratchDir, "scratch-dir")

	addBackupFlags(rootCmd)

	rootCmd.AddCommand(backupCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(checkCmd)
}
