package repository

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/mattn/go-sqlite3"
	"github.com/paulmach/orb"
)

//go:embed sqlite_schema.sql
var sqliteSchema string

const sqliteSchemaVersion = 1

type sqlQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLiteStore keeps plots in an embedded SQLite database. Spatial predicates
// run in Go through functions registered on each connection.
type SQLiteStore struct {
	sqlitePlots
	db *sql.DB
}

// OpenSQLite opens or creates the database at path. Transactions start with
// BEGIN IMMEDIATE and the pool holds a single connection, so writers are
// serialized.
func OpenSQLite(path string) (*SQLiteStore, error) {
	ensureSQLiteDriver()

	dsn := path + "?_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open(sqliteDriverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect sqlite: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return NewSQLiteStore(db), nil
}

// NewSQLiteStore wraps an already configured handle. The handle must come
// from the plots driver for the schema triggers to work.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{sqlitePlots: sqlitePlots{q: db}, db: db}
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, fmt.Sprintf("PRAGMA user_version = %d", sqliteSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error { return s.db.PingContext(ctx) }

func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) WithinTx(ctx context.Context, fn func(tx Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	if err := fn(sqlitePlots{q: tx}); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return mapSQLiteError(fmt.Errorf("commit: %w", err))
	}
	return nil
}

type sqlitePlots struct {
	q sqlQuerier
}

const sqlitePlotColumns = `id, name, geometry, area, created_at, updated_at`

func (r sqlitePlots) GetByID(ctx context.Context, id int64) (*domain.Plot, error) {
	row := r.q.QueryRowContext(ctx, `SELECT `+sqlitePlotColumns+` FROM plots WHERE id = ?`, id)
	p, err := scanSQLitePlot(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrPlotNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get plot %d: %w", id, err)
	}
	return p, nil
}

func (r sqlitePlots) List(ctx context.Context, filter domain.ListFilter) ([]domain.Plot, error) {
	if filter.BBox == nil {
		return r.query(ctx, `SELECT `+sqlitePlotColumns+` FROM plots ORDER BY created_at DESC, id DESC`)
	}
	return r.Intersecting(ctx, geometry.FromBound(*filter.BBox), NoExclusion)
}

func (r sqlitePlots) Intersecting(ctx context.Context, g orb.Polygon, excludeID int64) ([]domain.Plot, error) {
	data, err := geometry.MarshalGeoJSON(g)
	if err != nil {
		return nil, err
	}
	q := `
SELECT ` + sqlitePlotColumns + `
FROM plots
WHERE id <> ? AND st_intersects(geometry, ?) = 1
ORDER BY created_at DESC, id DESC`
	return r.query(ctx, q, excludeID, string(data))
}

func (r sqlitePlots) Insert(ctx context.Context, p *domain.Plot) error {
	data, err := geometry.MarshalGeoJSON(p.Geometry)
	if err != nil {
		return err
	}
	const q = `
INSERT INTO plots (name, geometry, area, created_at, updated_at)
VALUES (?, ?, ?, COALESCE(?, CURRENT_TIMESTAMP), COALESCE(?, CURRENT_TIMESTAMP))`
	res, err := r.q.ExecContext(ctx, q, p.Name, string(data), nullArea(p.Area), utcTime(p.CreatedAt), utcTime(p.UpdatedAt))
	if err != nil {
		return mapSQLiteError(fmt.Errorf("insert plot: %w", err))
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("insert plot: %w", err)
	}
	// triggers may have filled area, so read the row back
	stored, err := r.GetByID(ctx, id)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (r sqlitePlots) Update(ctx context.Context, p *domain.Plot) error {
	data, err := geometry.MarshalGeoJSON(p.Geometry)
	if err != nil {
		return err
	}
	const q = `
UPDATE plots
SET name = ?, geometry = ?, area = ?, updated_at = COALESCE(?, CURRENT_TIMESTAMP)
WHERE id = ?`
	res, err := r.q.ExecContext(ctx, q, p.Name, string(data), nullArea(p.Area), utcTime(p.UpdatedAt), p.ID)
	if err != nil {
		return mapSQLiteError(fmt.Errorf("update plot %d: %w", p.ID, err))
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update plot %d: %w", p.ID, err)
	}
	if n == 0 {
		return domain.ErrPlotNotFound
	}
	stored, err := r.GetByID(ctx, p.ID)
	if err != nil {
		return err
	}
	*p = *stored
	return nil
}

func (r sqlitePlots) Delete(ctx context.Context, id int64) error {
	res, err := r.q.ExecContext(ctx, `DELETE FROM plots WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete plot %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete plot %d: %w", id, err)
	}
	if n == 0 {
		return domain.ErrPlotNotFound
	}
	return nil
}

func (r sqlitePlots) query(ctx context.Context, q string, args ...any) ([]domain.Plot, error) {
	rows, err := r.q.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query plots: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Plot, 0, 16)
	for rows.Next() {
		p, err := scanSQLitePlot(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLitePlot(row rowScanner) (*domain.Plot, error) {
	var (
		p    domain.Plot
		raw  string
		area sql.NullFloat64
	)
	if err := row.Scan(&p.ID, &p.Name, &raw, &area, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	g, err := geometry.UnmarshalPolygon([]byte(raw))
	if err != nil {
		return nil, fmt.Errorf("decode stored geometry of plot %d: %w", p.ID, err)
	}
	p.Geometry = g
	p.Area = area.Float64
	return &p, nil
}

// mapSQLiteError turns trigger aborts and constraint failures into
// *domain.ConstraintError and leaves everything else untouched.
func mapSQLiteError(err error) error {
	var se sqlite3.Error
	if !errors.As(err, &se) || se.Code != sqlite3.ErrConstraint {
		return err
	}
	msg := se.Error()
	switch {
	case strings.Contains(msg, overlapConstraint):
		return &domain.ConstraintError{Constraint: overlapConstraint, Kind: domain.KindOverlap, Err: err}
	case strings.Contains(msg, geometryValidConstraint):
		return &domain.ConstraintError{Constraint: geometryValidConstraint, Kind: domain.KindInvalid, Err: err}
	case se.ExtendedCode == sqlite3.ErrConstraintUnique:
		// the only unique key besides the primary key
		return &domain.ConstraintError{Constraint: geometryKeyConstraint, Kind: domain.KindDuplicate, Err: err}
	case se.ExtendedCode == sqlite3.ErrConstraintCheck && strings.Contains(msg, nameCheckConstraint):
		return &domain.ConstraintError{Constraint: nameCheckConstraint, Kind: domain.KindBlankName, Err: err}
	}
	return err
}

func utcTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC()
}
