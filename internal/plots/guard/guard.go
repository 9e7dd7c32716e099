// Package guard decides whether a candidate polygon may be stored alongside
// the plots that already exist.
package guard

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/GoSim-25-26J-441/plot-registry/internal/metrics"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/paulmach/orb"
)

// NoExclusion checks the candidate against every stored plot.
const NoExclusion int64 = 0

// ReasonOverlap is the rejection reason for intersecting geometry.
const ReasonOverlap = "overlap"

// Candidates returns stored plots whose geometry may intersect g.
type Candidates interface {
	Intersecting(ctx context.Context, g orb.Polygon, excludeID int64) ([]domain.Plot, error)
}

// Decision is the outcome of a Check.
type Decision struct {
	Allowed   bool
	Reason    string
	Conflicts []int64
}

// Err returns nil for an allowed decision and a geometry ValidationError otherwise.
func (d Decision) Err() error {
	if d.Allowed {
		return nil
	}
	return &domain.ValidationError{
		Field:     "geometry",
		Reason:    d.Reason,
		Conflicts: d.Conflicts,
		Err:       fmt.Errorf("%w: intersects plots %v", domain.ErrOverlap, d.Conflicts),
	}
}

// Guard enforces the no-intersection rule before a write reaches the store.
type Guard struct{}

func New() *Guard { return &Guard{} }

// Check rejects candidate if it shares any point with a stored plot other
// than excludeID. The candidate must be valid; an invalid one is an error and
// is never compared.
func (g *Guard) Check(ctx context.Context, src Candidates, candidate orb.Polygon, excludeID int64) (Decision, error) {
	if err := geometry.Validate(candidate); err != nil {
		metrics.GuardChecksTotal.WithLabelValues(metrics.GuardCheckFailed).Inc()
		return Decision{}, fmt.Errorf("guard precondition: %w", err)
	}

	start := time.Now()
	defer func() { metrics.GuardDurationSeconds.Observe(time.Since(start).Seconds()) }()

	hits, err := src.Intersecting(ctx, candidate, excludeID)
	if err != nil {
		metrics.GuardChecksTotal.WithLabelValues(metrics.GuardCheckFailed).Inc()
		return Decision{}, fmt.Errorf("load intersecting plots: %w", err)
	}

	var conflicts []int64
	for _, p := range hits {
		if excludeID != NoExclusion && p.ID == excludeID {
			continue
		}
		// the store query may be index-approximate
		if geometry.Intersects(candidate, p.Geometry) {
			conflicts = append(conflicts, p.ID)
		}
	}

	if len(conflicts) == 0 {
		metrics.GuardChecksTotal.WithLabelValues(metrics.GuardAllowed).Inc()
		return Decision{Allowed: true}, nil
	}
	sort.Slice(conflicts, func(i, j int) bool { return conflicts[i] < conflicts[j] })
	metrics.GuardChecksTotal.WithLabelValues(metrics.GuardOverlap).Inc()
	return Decision{Reason: ReasonOverlap, Conflicts: conflicts}, nil
}
