package cmd

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kebairia/mealie-backup/internal/mealie"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the backups currently stored on the Mealie server",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate(); err != nil {
			log.Error("configuration invalid", "error", err.Error())
			return err
		}

		client := mealie.NewClient(cfg.Mealie, mealie.WithLogger(log))
		backups, err := client.ListBackups(cmd.Context())
		if err != nil {
			return err
		}

		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDATE\tSIZE")
		for _, b := range backups {
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.Name, b.Date, b.Size)
		}
		return w.Flush()
	},
}
