package cli

import (
	"context"
	"fmt"

	"github.com/GoSim-25-26J-441/plot-registry/config"
	"github.com/GoSim-25-26J-441/plot-registry/internal/bootstrap"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/repository"
	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	ConfigFile string
	Driver     string
	SQLitePath string
	Format     string // "json" | "text"
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the plotctl root command.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "plotctl",
		Short: "Administer the plot registry store",
		Long:  "plotctl migrates, bulk loads and inspects the plot registry's store directly.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file (default $CONFIG_FILE)")
	cmd.PersistentFlags().StringVar(&opts.Driver, "driver", "", "store driver override (postgres|sqlite)")
	cmd.PersistentFlags().StringVar(&opts.SQLitePath, "sqlite", "", "SQLite database path; implies --driver sqlite")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewMigrateCommand(opts))
	cmd.AddCommand(NewImportCommand(opts))
	cmd.AddCommand(NewListCommand(opts))

	return cmd
}

// openStore loads configuration, applies flag overrides and opens the store.
func (o *RootOptions) openStore(ctx context.Context) (repository.Store, error) {
	cfg, err := config.LoadFile(o.ConfigFile, o.applyOverrides)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to load config", err)
	}

	store, err := bootstrap.OpenStore(ctx, cfg)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open store", err)
	}
	return store, nil
}

// applyOverrides lets --driver and --sqlite replace the configured store
// before the configuration is validated.
func (o *RootOptions) applyOverrides(cfg *config.Config) {
	if o.Driver != "" {
		cfg.Store.Driver = o.Driver
	}
	if o.SQLitePath != "" {
		cfg.Store.Driver = config.DriverSQLite
		cfg.Store.SQLitePath = o.SQLitePath
	}
}

func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}
