package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	plotshttp "github.com/GoSim-25-26J-441/plot-registry/internal/plots/http"
	"github.com/spf13/cobra"
)

// ListOptions holds flags for the list command.
type ListOptions struct {
	*RootOptions
	BBox string
}

// NewListCommand creates the list command.
func NewListCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ListOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List stored plots",
		Long: `List plots newest first. With --bbox only plots intersecting the box
are shown. JSON output is a GeoJSON FeatureCollection.

Examples:
  plotctl list --sqlite ./plots.db
  plotctl list --bbox -7.64,33.58,-7.62,33.59 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runList(opts, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.BBox, "bbox", "", "minLng,minLat,maxLng,maxLat")

	return cmd
}

func runList(opts *ListOptions, cmd *cobra.Command) error {
	ctx := context.Background()

	var filter domain.ListFilter
	if opts.BBox != "" {
		b, err := geometry.ParseBBox(opts.BBox)
		if err != nil {
			return WrapExitError(ExitCommandError, "invalid --bbox", err)
		}
		filter.BBox = &b
	}

	store, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	plots, err := store.List(ctx, filter)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to list plots", err)
	}

	out := cmd.OutOrStdout()
	if opts.Format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(plotshttp.NewFeatureCollection(plots))
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tAREA_M2\tUPDATED")
	for _, p := range plots {
		fmt.Fprintf(tw, "%d\t%s\t%.1f\t%s\n", p.ID, p.Name, p.Area, p.UpdatedAt.UTC().Format("2006-01-02T15:04:05Z"))
	}
	return tw.Flush()
}
