package repository

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/paulmach/orb"
)

const (
	pgUniqueViolation    = "23505"
	pgExclusionViolation = "23P01"
	pgCheckViolation     = "23514"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps plots in a PostGIS table.
type PostgresStore struct {
	pgPlots
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pgPlots: pgPlots{q: pool}, pool: pool}
}

func (s *PostgresStore) Migrate(ctx context.Context) error {
	for i, stmt := range postgresSchema {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("migrate statement %d: %w", i, err)
		}
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error { return s.pool.Ping(ctx) }

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, plotWriterLockKey); err != nil {
		return fmt.Errorf("acquire plot writer lock: %w", err)
	}
	if err := fn(pgPlots{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return mapPgError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

type pgPlots struct {
	q pgQuerier
}

const pgPlotColumns = `id, name, ST_AsBinary(geometry), area, created_at, updated_at`

func (r pgPlots) GetByID(ctx context.Context, id int64) (*domain.Plot, error) {
	q := `SELECT ` + pgPlotColumns + ` FROM plots WHERE id = $1`
	p, err := scanPlot(r.q.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.ErrPlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plot %d: %w", id, err)
	}
	return p, nil
}

func (r pgPlots) List(ctx context.Context, filter domain.ListFilter) ([]domain.Plot, error) {
	if filter.BBox == nil {
		q := `SELECT ` + pgPlotColumns + ` FROM plots ORDER BY created_at DESC, id DESC`
		return r.query(ctx, q)
	}
	b := *filter.BBox
	q := `
SELECT ` + pgPlotColumns + `
FROM plots
WHERE geometry && ST_MakeEnvelope($1, $2, $3, $4, 4326)
  AND ST_Intersects(geometry, ST_MakeEnvelope($1, $2, $3, $4, 4326))
ORDER BY created_at DESC, id DESC`
	return r.query(ctx, q, b.Min.Lon(), b.Min.Lat(), b.Max.Lon(), b.Max.Lat())
}

func (r pgPlots) Intersecting(ctx context.Context, g orb.Polygon, excludeID int64) ([]domain.Plot, error) {
	data, err := geometry.MarshalGeoJSON(g)
	if err != nil {
		return nil, err
	}
	q := `
SELECT ` + pgPlotColumns + `
FROM plots
WHERE id <> $2
  AND geometry && ST_SetSRID(ST_GeomFromGeoJSON($1::text), 4326)
  AND ST_Intersects(geometry, ST_SetSRID(ST_GeomFromGeoJSON($1::text), 4326))
ORDER BY created_at DESC, id DESC`
	return r.query(ctx, q, string(data), excludeID)
}

func (r pgPlots) Insert(ctx context.Context, p *domain.Plot) error {
	data, err := geometry.MarshalGeoJSON(p.Geometry)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO plots (name, geometry, area, created_at, updated_at)
VALUES ($1, ST_SetSRID(ST_GeomFromGeoJSON($2::text), 4326), $3, COALESCE($4, now()), COALESCE($5, now()))
RETURNING id, area, created_at, updated_at`
	err = r.q.QueryRow(ctx, q, p.Name, string(data), nullArea(p.Area), nullTime(p.CreatedAt), nullTime(p.UpdatedAt)).
		Scan(&p.ID, &p.Area, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return mapPgError(fmt.Errorf("insert plot: %w", err))
	}
	return nil
}

func (r pgPlots) Update(ctx context.Context, p *domain.Plot) error {
	data, err := geometry.MarshalGeoJSON(p.Geometry)
	if err != nil {
		return err
	}
	const q = `
UPDATE plots
SET name = $2,
    geometry = ST_SetSRID(ST_GeomFromGeoJSON($3::text), 4326),
    area = $4,
    updated_at = COALESCE($5, now())
WHERE id = $1
RETURNING area, updated_at`
	err = r.q.QueryRow(ctx, q, p.ID, p.Name, string(data), nullArea(p.Area), nullTime(p.UpdatedAt)).
		Scan(&p.Area, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrPlotNotFound
	}
	if err != nil {
		return mapPgError(fmt.Errorf("update plot %d: %w", p.ID, err))
	}
	return nil
}

func (r pgPlots) Delete(ctx context.Context, id int64) error {
	ct, err := r.q.Exec(ctx, `DELETE FROM plots WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete plot %d: %w", id, err)
	}
	if ct.RowsAffected() == 0 {
		return domain.ErrPlotNotFound
	}
	return nil
}

func (r pgPlots) query(ctx context.Context, q string, args ...any) ([]domain.Plot, error) {
	rows, err := r.q.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query plots: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Plot, 0, 16)
	for rows.Next() {
		p, err := scanPlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPlot(row pgx.Row) (*domain.Plot, error) {
	var (
		p   domain.Plot
		raw []byte
	)
	if err := row.Scan(&p.ID, &p.Name, &raw, &p.Area, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	g, err := geometry.UnmarshalPolygonWKB(raw)
	if err != nil {
		return nil, fmt.Errorf("decode stored geometry of plot %d: %w", p.ID, err)
	}
	p.Geometry = g
	return &p, nil
}

// mapPgError turns PostGIS constraint and trigger failures into
// *domain.ConstraintError and leaves everything else untouched.
func mapPgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if pgErr.ConstraintName == geometryKeyConstraint {
			return &domain.ConstraintError{Constraint: pgErr.ConstraintName, Kind: domain.KindDuplicate, Err: err}
		}
	case pgExclusionViolation:
		return &domain.ConstraintError{Constraint: overlapConstraint, Kind: domain.KindOverlap, Err: err}
	case pgCheckViolation:
		if pgErr.ConstraintName == nameCheckConstraint {
			return &domain.ConstraintError{Constraint: pgErr.ConstraintName, Kind: domain.KindBlankName, Err: err}
		}
		return &domain.ConstraintError{Constraint: geometryValidConstraint, Kind: domain.KindInvalid, Err: err}
	}
	return err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

// nullArea lets the store derive the area when the caller did not, or
// supplied one that is not a finite positive number.
func nullArea(a float64) *float64 {
	if !(a > 0) || math.IsInf(a, 0) {
		return nil
	}
	return &a
}
