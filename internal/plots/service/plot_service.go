package service

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/GoSim-25-26J-441/plot-registry/internal/metrics"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/guard"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/repository"
	"github.com/paulmach/orb"
)

const (
	opCreate = "create"
	opUpdate = "update"
	opDelete = "delete"
)

// PlotService handles business logic for plots
type PlotService struct {
	store repository.Store
	guard *guard.Guard
	now   func() time.Time
}

// NewPlotService creates a new PlotService
func NewPlotService(store repository.Store, g *guard.Guard) *PlotService {
	if g == nil {
		g = guard.New()
	}
	return &PlotService{store: store, guard: g, now: time.Now}
}

// Create validates the request, checks it against stored plots and inserts
// it in one transaction. Any rejection, including one raised by the store
// after a concurrent write, is returned as *domain.ValidationError.
func (s *PlotService) Create(ctx context.Context, req *domain.CreatePlotRequest) (*domain.Plot, error) {
	logger := NewLogger(ctx)
	if req == nil {
		req = &domain.CreatePlotRequest{}
	}

	if err := geometry.Validate(req.Geometry); err != nil {
		return nil, s.finish(logger, opCreate, domain.NewValidationError("geometry", domain.ErrInvalidGeometry, err))
	}
	name, err := normalizeName(req.Name)
	if err != nil {
		return nil, s.finish(logger, opCreate, err)
	}
	area, err := geometry.Area(req.Geometry)
	if err != nil {
		return nil, s.finish(logger, opCreate, domain.NewValidationError("geometry", domain.ErrInvalidGeometry, err))
	}

	var created *domain.Plot
	err = s.store.WithinTx(ctx, func(tx repository.Tx) error {
		if err := s.checkOverlap(ctx, tx, req.Geometry, guard.NoExclusion); err != nil {
			return err
		}
		now := s.now().UTC()
		p := &domain.Plot{
			Name:      name,
			Geometry:  req.Geometry,
			Area:      area,
			CreatedAt: now,
			UpdatedAt: now,
		}
		if err := tx.Insert(ctx, p); err != nil {
			return err
		}
		created = p
		return nil
	})
	if err != nil {
		return nil, s.finish(logger, opCreate, err)
	}

	metrics.PlotWritesTotal.WithLabelValues(opCreate, metrics.OutcomeOK).Inc()
	logger.LogInfof(opCreate, "plot_id=%d area=%.2f", created.ID, created.Area)
	return created, nil
}

// Get retrieves a plot by its ID
func (s *PlotService) Get(ctx context.Context, id int64) (*domain.Plot, error) {
	return s.store.GetByID(ctx, id)
}

// List returns plots newest first, optionally limited to a bounding box.
func (s *PlotService) List(ctx context.Context, filter domain.ListFilter) ([]domain.Plot, error) {
	return s.store.List(ctx, filter)
}

// Update applies a partial update. A supplied geometry that differs from the
// stored one is validated, checked against every other plot and re-measured;
// an absent or unchanged geometry skips all three.
func (s *PlotService) Update(ctx context.Context, id int64, req *domain.UpdatePlotRequest) (*domain.Plot, error) {
	logger := NewLogger(ctx)
	if req == nil {
		req = &domain.UpdatePlotRequest{}
	}

	var updated *domain.Plot
	err := s.store.WithinTx(ctx, func(tx repository.Tx) error {
		p, err := tx.GetByID(ctx, id)
		if err != nil {
			return err
		}

		if req.Geometry != nil && !geometry.Equal(req.Geometry, p.Geometry) {
			if err := geometry.Validate(req.Geometry); err != nil {
				return domain.NewValidationError("geometry", domain.ErrInvalidGeometry, err)
			}
			if err := s.checkOverlap(ctx, tx, req.Geometry, id); err != nil {
				return err
			}
			area, err := geometry.Area(req.Geometry)
			if err != nil {
				return domain.NewValidationError("geometry", domain.ErrInvalidGeometry, err)
			}
			p.Geometry = req.Geometry
			p.Area = area
		}

		if req.Name != nil {
			name, err := normalizeName(*req.Name)
			if err != nil {
				return err
			}
			p.Name = name
		}

		p.UpdatedAt = s.now().UTC()
		if err := tx.Update(ctx, p); err != nil {
			return err
		}
		updated = p
		return nil
	})
	if err != nil {
		return nil, s.finish(logger, opUpdate, err)
	}

	metrics.PlotWritesTotal.WithLabelValues(opUpdate, metrics.OutcomeOK).Inc()
	return updated, nil
}

// Delete removes a plot and frees its footprint.
func (s *PlotService) Delete(ctx context.Context, id int64) error {
	logger := NewLogger(ctx)
	return s.finish(logger, opDelete, s.store.Delete(ctx, id))
}

func (s *PlotService) checkOverlap(ctx context.Context, tx repository.Tx, g orb.Polygon, excludeID int64) error {
	d, err := s.guard.Check(ctx, tx, g, excludeID)
	if err != nil {
		return err
	}
	return d.Err()
}

// finish records the outcome of a write and converts store constraint
// failures into the validation error clients see.
func (s *PlotService) finish(logger *Logger, op string, err error) error {
	if err == nil {
		metrics.PlotWritesTotal.WithLabelValues(op, metrics.OutcomeOK).Inc()
		return nil
	}

	var cerr *domain.ConstraintError
	if errors.As(err, &cerr) {
		metrics.PlotWritesTotal.WithLabelValues(op, metrics.OutcomeConflict).Inc()
		logger.LogWarnf(op, "store constraint %s rejected write: %v", cerr.Constraint, cerr.Err)
		return cerr.AsValidation()
	}

	var verr *domain.ValidationError
	if errors.As(err, &verr) {
		metrics.PlotWritesTotal.WithLabelValues(op, metrics.OutcomeRejected).Inc()
		logger.LogInfof(op, "rejected field=%s reason=%s conflicts=%v", verr.Field, verr.Reason, verr.Conflicts)
		return err
	}

	if errors.Is(err, domain.ErrPlotNotFound) {
		metrics.PlotWritesTotal.WithLabelValues(op, metrics.OutcomeNotFound).Inc()
		return err
	}

	metrics.PlotWritesTotal.WithLabelValues(op, metrics.OutcomeError).Inc()
	logger.LogError(op, err)
	return err
}

func normalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", domain.NewValidationError("name", domain.ErrMissingName, nil)
	}
	if utf8.RuneCountInString(name) > domain.MaxNameLength {
		return "", domain.NewValidationError("name", domain.ErrNameTooLong, nil)
	}
	return name, nil
}
