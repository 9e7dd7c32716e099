package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

// NewMigrateCommand creates the migrate command.
func NewMigrateCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the plots schema",
		Long: `Create the plots table, its indexes and the triggers that keep stored
geometry unique, non-overlapping and valid. Safe to run repeatedly.

Examples:
  plotctl migrate --sqlite ./plots.db
  DB_DSN=postgres://localhost/plots plotctl migrate`,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			store, err := rootOpts.openStore(ctx)
			if err != nil {
				return err
			}
			defer store.Close()

			if err := store.Migrate(ctx); err != nil {
				return WrapExitError(ExitCommandError, "migration failed", err)
			}
			if rootOpts.Format == "json" {
				fmt.Fprintln(cmd.OutOrStdout(), `{"status":"ok"}`)
				return nil
			}
			fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			return nil
		},
	}
}
