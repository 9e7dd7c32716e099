package service

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/guard"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/repository"
	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *repository.SQLiteStore {
	t.Helper()
	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "plots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))
	return store
}

func newTestService(t *testing.T) (*PlotService, *repository.SQLiteStore) {
	store := newTestStore(t)
	return NewPlotService(store, guard.New()), store
}

func areaOf(t *testing.T, p orb.Polygon) float64 {
	t.Helper()
	a, err := geometry.Area(p)
	require.NoError(t, err)
	return a
}

func rect(minLng, minLat, maxLng, maxLat float64) orb.Polygon {
	return orb.Polygon{{
		{minLng, minLat}, {maxLng, minLat}, {maxLng, maxLat}, {minLng, maxLat}, {minLng, minLat},
	}}
}

// squares from the acceptance scenario
var (
	squareA = rect(-7.640, 33.580, -7.639, 33.581)
	squareB = rect(-7.620, 33.560, -7.619, 33.561)
)

func requireValidation(t *testing.T, err error, field string, sentinel error) *domain.ValidationError {
	t.Helper()
	require.Error(t, err)
	var verr *domain.ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, field, verr.Field)
	assert.ErrorIs(t, err, sentinel)
	return verr
}

func count(t *testing.T, store repository.Store) int {
	t.Helper()
	all, err := store.List(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	return len(all)
}

func TestCreate_AreaIsPositiveAndMatchesProjection(t *testing.T) {
	svc, _ := newTestService(t)

	p, err := svc.Create(context.Background(), &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)

	rad := math.Pi / 180
	want := geometry.AuthalicRadius * geometry.AuthalicRadius * 0.001 * rad *
		math.Abs(math.Sin(33.581*rad)-math.Sin(33.580*rad))
	assert.Greater(t, p.Area, 0.0)
	assert.InEpsilon(t, want, p.Area, 1e-3)
	assert.Equal(t, p.CreatedAt, p.UpdatedAt)
}

func TestCreate_IdenticalGeometryRejectedOnce(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	first, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &domain.CreatePlotRequest{Name: "A again", Geometry: rect(-7.640, 33.580, -7.639, 33.581)})
	verr := requireValidation(t, err, "geometry", domain.ErrOverlap)
	assert.Equal(t, []int64{first.ID}, verr.Conflicts)
	assert.Equal(t, 1, count(t, store))
}

func TestCreate_TouchingRejected(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)

	edge := rect(-7.639, 33.580, -7.638, 33.581)
	corner := rect(-7.639, 33.581, -7.638, 33.582)
	for name, g := range map[string]orb.Polygon{"edge": edge, "corner": corner} {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: name, Geometry: g})
			requireValidation(t, err, "geometry", domain.ErrOverlap)
		})
	}
	assert.Equal(t, 1, count(t, store))
}

func TestCreate_DisjointAccepted(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &domain.CreatePlotRequest{Name: "B", Geometry: squareB})
	require.NoError(t, err)
	assert.Equal(t, 2, count(t, store))
}

func TestCreate_Validation(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	t.Run("invalid geometry is checked before the name", func(t *testing.T) {
		bowTie := orb.Polygon{{{0, 0}, {1, 1}, {1, 0}, {0, 1}, {0, 0}}}
		_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "", Geometry: bowTie})
		requireValidation(t, err, "geometry", domain.ErrInvalidGeometry)
	})

	t.Run("unmeasurable extent", func(t *testing.T) {
		band := orb.Polygon{{{-180, -10}, {180, -10}, {180, 0}, {180, 10}, {-180, 10}, {-180, -10}}}
		_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "band", Geometry: band})
		requireValidation(t, err, "geometry", domain.ErrInvalidGeometry)
	})

	t.Run("missing geometry", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A"})
		requireValidation(t, err, "geometry", domain.ErrInvalidGeometry)
	})

	t.Run("blank name", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "  ", Geometry: squareA})
		requireValidation(t, err, "name", domain.ErrMissingName)
	})

	t.Run("name too long", func(t *testing.T) {
		_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: strings.Repeat("x", domain.MaxNameLength+1), Geometry: squareA})
		requireValidation(t, err, "name", domain.ErrNameTooLong)
	})

	t.Run("name is trimmed", func(t *testing.T) {
		p, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "  Lot 9 ", Geometry: squareB})
		require.NoError(t, err)
		assert.Equal(t, "Lot 9", p.Name)
	})

	assert.Equal(t, 1, count(t, store))
}

func TestUpdate_SelfExemption(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	created, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)

	t.Run("name only", func(t *testing.T) {
		name := "A renamed"
		p, err := svc.Update(ctx, created.ID, &domain.UpdatePlotRequest{Name: &name})
		require.NoError(t, err)
		assert.Equal(t, "A renamed", p.Name)
		assert.Equal(t, created.Area, p.Area)
	})

	t.Run("unchanged geometry", func(t *testing.T) {
		name := "A again"
		p, err := svc.Update(ctx, created.ID, &domain.UpdatePlotRequest{Name: &name, Geometry: rect(-7.640, 33.580, -7.639, 33.581)})
		require.NoError(t, err)
		assert.Equal(t, "A again", p.Name)
	})

	t.Run("grown geometry only touches itself", func(t *testing.T) {
		grown := rect(-7.6405, 33.5795, -7.6385, 33.5815)
		p, err := svc.Update(ctx, created.ID, &domain.UpdatePlotRequest{Geometry: grown})
		require.NoError(t, err)
		assert.InEpsilon(t, areaOf(t, grown), p.Area, 1e-9)
		assert.Greater(t, p.Area, created.Area)
	})
}

func TestUpdate_Rejections(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)
	b, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "B", Geometry: squareB})
	require.NoError(t, err)

	t.Run("onto another plot", func(t *testing.T) {
		_, err := svc.Update(ctx, a.ID, &domain.UpdatePlotRequest{Geometry: rect(-7.620, 33.560, -7.619, 33.561)})
		verr := requireValidation(t, err, "geometry", domain.ErrOverlap)
		assert.Equal(t, []int64{b.ID}, verr.Conflicts)

		stored, err := store.GetByID(ctx, a.ID)
		require.NoError(t, err)
		assert.True(t, geometry.Equal(squareA, stored.Geometry))
	})

	t.Run("invalid geometry", func(t *testing.T) {
		open := orb.Polygon{{{0, 0}, {1, 0}, {1, 1}, {0, 1}}}
		_, err := svc.Update(ctx, a.ID, &domain.UpdatePlotRequest{Geometry: open})
		requireValidation(t, err, "geometry", domain.ErrInvalidGeometry)
	})

	t.Run("blank name", func(t *testing.T) {
		blank := ""
		_, err := svc.Update(ctx, a.ID, &domain.UpdatePlotRequest{Name: &blank})
		requireValidation(t, err, "name", domain.ErrMissingName)
	})

	t.Run("missing plot", func(t *testing.T) {
		name := "x"
		_, err := svc.Update(ctx, 9999, &domain.UpdatePlotRequest{Name: &name})
		assert.ErrorIs(t, err, domain.ErrPlotNotFound)
	})
}

func TestUpdate_RefreshesUpdatedAt(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	t0 := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return t0 }
	created, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)

	svc.now = func() time.Time { return t0.Add(time.Hour) }
	name := "A2"
	updated, err := svc.Update(ctx, created.ID, &domain.UpdatePlotRequest{Name: &name})
	require.NoError(t, err)

	assert.True(t, t0.Equal(updated.CreatedAt))
	assert.True(t, t0.Add(time.Hour).Equal(updated.UpdatedAt))
}

func TestListAndDelete(t *testing.T) {
	svc, _ := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)
	b, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "B", Geometry: squareB})
	require.NoError(t, err)

	all, err := svc.List(ctx, domain.ListFilter{})
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, b.ID, all[0].ID)

	box := orb.Bound{Min: orb.Point{-7.6395, 33.5805}, Max: orb.Point{-7.630, 33.590}}
	inBox, err := svc.List(ctx, domain.ListFilter{BBox: &box})
	require.NoError(t, err)
	require.Len(t, inBox, 1)
	assert.Equal(t, a.ID, inBox[0].ID)

	require.NoError(t, svc.Delete(ctx, a.ID))
	_, err = svc.Get(ctx, a.ID)
	assert.ErrorIs(t, err, domain.ErrPlotNotFound)
	assert.ErrorIs(t, svc.Delete(ctx, a.ID), domain.ErrPlotNotFound)
}

// blindStore hides every stored plot from the guard, as if another writer
// committed between the guard's read and this transaction's insert.
type blindStore struct {
	repository.Store
}

type blindTx struct {
	repository.Tx
}

func (blindTx) Intersecting(context.Context, orb.Polygon, int64) ([]domain.Plot, error) {
	return nil, nil
}

func (s blindStore) WithinTx(ctx context.Context, fn func(tx repository.Tx) error) error {
	return s.Store.WithinTx(ctx, func(tx repository.Tx) error { return fn(blindTx{tx}) })
}

func TestStoreBackstopWhenGuardMissesARace(t *testing.T) {
	store := newTestStore(t)
	svc := NewPlotService(blindStore{store}, guard.New())
	ctx := context.Background()

	_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)

	_, err = svc.Create(ctx, &domain.CreatePlotRequest{Name: "late", Geometry: rect(-7.6395, 33.5805, -7.6385, 33.5815)})
	requireValidation(t, err, "geometry", domain.ErrOverlap)
	assert.ErrorIs(t, err, domain.ErrStoreConflict)

	b, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "B", Geometry: squareB})
	require.NoError(t, err)
	_, err = svc.Update(ctx, b.ID, &domain.UpdatePlotRequest{Geometry: rect(-7.640, 33.580, -7.639, 33.581)})
	requireValidation(t, err, "geometry", domain.ErrOverlap)

	assert.Equal(t, 2, count(t, store))
}

func TestConcurrentCreatesOfSameFootprint(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	const writers = 8
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
		other    []error
	)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "race", Geometry: rect(-7.640, 33.580, -7.639, 33.581)})
			mu.Lock()
			defer mu.Unlock()
			var verr *domain.ValidationError
			switch {
			case err == nil:
				accepted++
			case errors.As(err, &verr):
				rejected++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, accepted)
	assert.Equal(t, writers-1, rejected)
	assert.Equal(t, 1, count(t, store))
}

func TestScenario(t *testing.T) {
	svc, store := newTestService(t)
	ctx := context.Background()

	a, err := svc.Create(ctx, &domain.CreatePlotRequest{Name: "A", Geometry: squareA})
	require.NoError(t, err)
	_, err = svc.Create(ctx, &domain.CreatePlotRequest{Name: "B", Geometry: squareB})
	require.NoError(t, err)
	assert.Equal(t, 2, count(t, store))

	_, err = svc.Create(ctx, &domain.CreatePlotRequest{Name: "C", Geometry: rect(-7.640, 33.580, -7.639, 33.581)})
	requireValidation(t, err, "geometry", domain.ErrOverlap)

	_, err = svc.Update(ctx, a.ID, &domain.UpdatePlotRequest{Geometry: rect(-7.620, 33.560, -7.619, 33.561)})
	requireValidation(t, err, "geometry", domain.ErrOverlap)

	name := "A renamed"
	p, err := svc.Update(ctx, a.ID, &domain.UpdatePlotRequest{Name: &name, Geometry: rect(-7.640, 33.580, -7.639, 33.581)})
	require.NoError(t, err)
	assert.Equal(t, "A renamed", p.Name)
	assert.Equal(t, 2, count(t, store))
}
