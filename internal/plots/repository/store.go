// Package repository persists plots and enforces the spatial constraints at
// the storage boundary. Both backends reject duplicate and intersecting
// geometries with their own triggers and indexes, so every write path,
// including ones that never pass through the service, is held to the same
// rules.
package repository

import (
	"context"

	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/paulmach/orb"
)

// NoExclusion disables the excludeID argument of Intersecting.
const NoExclusion int64 = 0

const (
	// constraint names shared by both backends
	overlapConstraint       = "plots_no_overlap"
	geometryKeyConstraint   = "plots_geometry_key"
	geometryValidConstraint = "plots_geometry_valid"
	nameCheckConstraint     = "plots_name_check"
)

// Reader is the read side of a store or transaction.
type Reader interface {
	GetByID(ctx context.Context, id int64) (*domain.Plot, error)
	// List returns plots newest first, restricted to those intersecting
	// filter.BBox when it is set.
	List(ctx context.Context, filter domain.ListFilter) ([]domain.Plot, error)
	// Intersecting returns every plot whose geometry intersects g, boundary
	// contact included, skipping excludeID.
	Intersecting(ctx context.Context, g orb.Polygon, excludeID int64) ([]domain.Plot, error)
}

// Writer is the write side of a store or transaction. Constraint violations
// are reported as *domain.ConstraintError.
type Writer interface {
	// Insert assigns p.ID. Zero timestamps are filled by the store, and a
	// zero Area is computed by the store from the geometry.
	Insert(ctx context.Context, p *domain.Plot) error
	Update(ctx context.Context, p *domain.Plot) error
	Delete(ctx context.Context, id int64) error
}

// Tx groups reads and writes that commit together.
type Tx interface {
	Reader
	Writer
}

// Store is a durable plot table.
type Store interface {
	Tx
	// WithinTx runs fn in a single transaction that is serialized against
	// other plot writers. fn's error aborts the transaction and is returned
	// unchanged.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}
