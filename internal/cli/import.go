package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/repository"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/spf13/cobra"
)

// ImportOptions holds flags for the import command.
type ImportOptions struct {
	*RootOptions
	Atomic bool
}

// ImportResult reports what happened to one input feature.
type ImportResult struct {
	Index      int    `json:"index"`
	Name       string `json:"name"`
	ID         int64  `json:"id,omitempty"`
	Status     string `json:"status"` // "imported" or "rejected"
	Reason     string `json:"reason,omitempty"`
	Constraint string `json:"constraint,omitempty"`
}

// ImportSummary is the import command's output.
type ImportSummary struct {
	Imported int            `json:"imported"`
	Rejected int            `json:"rejected"`
	Results  []ImportResult `json:"results"`
}

// NewImportCommand creates the import command.
func NewImportCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ImportOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "import <file.geojson>",
		Short: "Bulk load plots from a GeoJSON FeatureCollection",
		Long: `Insert every Polygon feature of a FeatureCollection straight into the
store. The application-level overlap check is not run; the store's own
constraints decide, and each rejected feature is reported with the
constraint that refused it. Use "-" to read from stdin.

Examples:
  plotctl import --sqlite ./plots.db parcels.geojson
  plotctl import --atomic --format json parcels.geojson`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(opts, cmd, args[0])
		},
	}

	cmd.Flags().BoolVar(&opts.Atomic, "atomic", false, "load all features in one transaction and stop at the first rejection")

	return cmd
}

func runImport(opts *ImportOptions, cmd *cobra.Command, path string) error {
	ctx := context.Background()

	fc, err := readFeatureCollection(cmd.InOrStdin(), path)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read input", err)
	}

	store, err := opts.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	var summary ImportSummary
	if opts.Atomic {
		err = store.WithinTx(ctx, func(tx repository.Tx) error {
			summary, err = importFeatures(ctx, tx, fc, true)
			if err == nil && summary.Rejected > 0 {
				err = errRejected
			}
			return err
		})
		if errors.Is(err, errRejected) {
			// nothing was committed
			for i := range summary.Results {
				if summary.Results[i].Status == statusImported {
					summary.Results[i].Status = statusRolledBack
					summary.Results[i].ID = 0
				}
			}
			summary.Imported = 0
			err = nil
		}
	} else {
		summary, err = importFeatures(ctx, store, fc, false)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "import aborted", err)
	}

	if err := writeImportSummary(cmd.OutOrStdout(), opts.Format, summary); err != nil {
		return err
	}
	if summary.Rejected > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d features rejected", summary.Rejected, len(summary.Results)))
	}
	return nil
}

const (
	statusImported   = "imported"
	statusRejected   = "rejected"
	statusRolledBack = "rolled_back"
)

var errRejected = errors.New("feature rejected")

// importFeatures inserts each feature in order. Store constraint failures
// and invalid input are recorded per feature; any other error aborts.
func importFeatures(ctx context.Context, w repository.Writer, fc *geojson.FeatureCollection, stopOnReject bool) (ImportSummary, error) {
	summary := ImportSummary{Results: make([]ImportResult, 0, len(fc.Features))}
	now := time.Now().UTC()

	for i, f := range fc.Features {
		res := ImportResult{Index: i, Name: strings.TrimSpace(f.Properties.MustString("name", ""))}

		poly, ok := f.Geometry.(orb.Polygon)
		var verr error
		if ok {
			verr = geometry.Validate(poly)
		}
		switch {
		case !ok:
			res.Status, res.Reason = statusRejected, "geometry is not a Polygon"
		case verr != nil:
			res.Status, res.Reason = statusRejected, verr.Error()
		default:
			p := &domain.Plot{Name: res.Name, Geometry: poly, CreatedAt: now, UpdatedAt: now}
			err := w.Insert(ctx, p)
			var cerr *domain.ConstraintError
			switch {
			case err == nil:
				res.Status, res.ID = statusImported, p.ID
			case errors.As(err, &cerr):
				res.Status, res.Reason, res.Constraint = statusRejected, string(cerr.Kind), cerr.Constraint
			default:
				return summary, fmt.Errorf("feature %d: %w", i, err)
			}
		}

		summary.Results = append(summary.Results, res)
		if res.Status == statusImported {
			summary.Imported++
		} else {
			summary.Rejected++
			if stopOnReject {
				break
			}
		}
	}
	return summary, nil
}

func readFeatureCollection(stdin io.Reader, path string) (*geojson.FeatureCollection, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	return geojson.UnmarshalFeatureCollection(data)
}

func writeImportSummary(w io.Writer, format string, summary ImportSummary) error {
	if format == "json" {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(summary)
	}
	for _, r := range summary.Results {
		switch r.Status {
		case statusImported:
			fmt.Fprintf(w, "#%d %-24s imported id=%d\n", r.Index, r.Name, r.ID)
		case statusRejected:
			fmt.Fprintf(w, "#%d %-24s rejected %s %s\n", r.Index, r.Name, r.Reason, r.Constraint)
		default:
			fmt.Fprintf(w, "#%d %-24s %s\n", r.Index, r.Name, r.Status)
		}
	}
	fmt.Fprintf(w, "imported=%d rejected=%d\n", summary.Imported, summary.Rejected)
	return nil
}
