package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/guard"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/repository"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/service"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupRouter(t *testing.T) (*gin.Engine, *repository.SQLiteStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	store, err := repository.OpenSQLite(filepath.Join(t.TempDir(), "plots.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	require.NoError(t, store.Migrate(context.Background()))

	r := gin.New()
	New(service.NewPlotService(store, guard.New())).Register(r.Group("/api"))
	return r, store
}

func square(minLng, minLat, maxLng, maxLat float64) string {
	return fmt.Sprintf(`{"type":"Polygon","coordinates":[[[%g,%g],[%g,%g],[%g,%g],[%g,%g],[%g,%g]]]}`,
		minLng, minLat, maxLng, minLat, maxLng, maxLat, minLng, maxLat, minLng, minLat)
}

func feature(name, geom string) string {
	return fmt.Sprintf(`{"type":"Feature","geometry":%s,"properties":{"name":%q}}`, geom, name)
}

var (
	geomA = square(-7.640, 33.580, -7.639, 33.581)
	geomB = square(-7.620, 33.560, -7.619, 33.561)
)

func do(r *gin.Engine, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

type decodedFeature struct {
	ID         int64           `json:"id"`
	Type       string          `json:"type"`
	Geometry   json.RawMessage `json:"geometry"`
	Properties struct {
		Name string  `json:"name"`
		Area float64 `json:"area"`
	} `json:"properties"`
}

type errorBody struct {
	Error     string  `json:"error"`
	Field     string  `json:"field"`
	Conflicts []int64 `json:"conflicts"`
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

func TestCreatePlot(t *testing.T) {
	r, _ := setupRouter(t)

	w := do(r, http.MethodPost, "/api/plots/", feature("A", geomA))
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	f := decode[decodedFeature](t, w)
	assert.NotZero(t, f.ID)
	assert.Equal(t, "Feature", f.Type)
	assert.Equal(t, "A", f.Properties.Name)
	assert.Greater(t, f.Properties.Area, 0.0)

	g, err := geometry.UnmarshalPolygon(f.Geometry)
	require.NoError(t, err)
	want, err := geometry.UnmarshalPolygon([]byte(geomA))
	require.NoError(t, err)
	assert.True(t, geometry.Equal(want, g))
}

func TestCreatePlot_IgnoresClientArea(t *testing.T) {
	r, _ := setupRouter(t)

	body := fmt.Sprintf(`{"type":"Feature","geometry":%s,"properties":{"name":"A","area":1}}`, geomA)
	w := do(r, http.MethodPost, "/api/plots/", body)
	require.Equal(t, http.StatusCreated, w.Code)
	created := decode[decodedFeature](t, w)
	assert.NotEqual(t, 1.0, created.Properties.Area)

	patch := `{"properties":{"area":5}}`
	w = do(r, http.MethodPatch, fmt.Sprintf("/api/plots/%d/", created.ID), patch)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.Properties.Area, decode[decodedFeature](t, w).Properties.Area)
}

func TestUpdatePlot_IgnoresClientArea(t *testing.T) {
	r, _ := setupRouter(t)
	created := decode[decodedFeature](t, do(r, http.MethodPost, "/api/plots/", feature("A", geomA)))
	path := fmt.Sprintf("/api/plots/%d/", created.ID)

	stored := func() float64 {
		t.Helper()
		w := do(r, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, w.Code)
		return decode[decodedFeature](t, w).Properties.Area
	}

	w := do(r, http.MethodPatch, path, `{"type":"Feature","properties":{"name":"A2","area":5}}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "A2", decode[decodedFeature](t, w).Properties.Name)
	assert.Equal(t, created.Properties.Area, stored())

	polyB, err := geometry.UnmarshalPolygon([]byte(geomB))
	require.NoError(t, err)
	wantB, err := geometry.Area(polyB)
	require.NoError(t, err)

	body := fmt.Sprintf(`{"type":"Feature","geometry":%s,"properties":{"area":5}}`, geomB)
	w = do(r, http.MethodPatch, path, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InEpsilon(t, wantB, stored(), 1e-9)

	body = fmt.Sprintf(`{"type":"Feature","geometry":%s,"properties":{"name":"A3","area":5}}`, geomA)
	w = do(r, http.MethodPut, path, body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.InEpsilon(t, created.Properties.Area, stored(), 1e-9)
}

func TestCreatePlot_BadRequests(t *testing.T) {
	r, _ := setupRouter(t)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/plots/", feature("A", geomA)).Code)

	cases := []struct {
		name   string
		body   string
		field  string
		reason string
	}{
		{"malformed json", `{"type":`, "", "invalid request body"},
		{"not a feature", `{"type":"FeatureCollection","geometry":` + geomB + `,"properties":{"name":"x"}}`, "type", "expected a GeoJSON Feature"},
		{"point geometry", feature("P", `{"type":"Point","coordinates":[1,2]}`), "geometry", "invalid geometry"},
		{"missing geometry", `{"type":"Feature","properties":{"name":"x"}}`, "geometry", "invalid geometry"},
		{"open ring", feature("O", `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,1]]]}`), "geometry", "invalid geometry"},
		{"self intersecting", feature("S", `{"type":"Polygon","coordinates":[[[0,0],[1,1],[1,0],[0,1],[0,0]]]}`), "geometry", "invalid geometry"},
		{"blank name", feature(" ", geomB), "name", "missing name"},
		{"missing name", `{"type":"Feature","geometry":` + geomB + `}`, "name", "missing name"},
		{"long name", feature(string(bytes.Repeat([]byte("n"), 256)), geomB), "name", "name too long"},
		{"touching", feature("T", square(-7.639, 33.580, -7.638, 33.581)), "geometry", "overlap"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := do(r, http.MethodPost, "/api/plots/", tc.body)
			require.Equal(t, http.StatusBadRequest, w.Code, w.Body.String())
			e := decode[errorBody](t, w)
			assert.Equal(t, tc.reason, e.Error)
			assert.Equal(t, tc.field, e.Field)
		})
	}
}

func TestGetAndDeletePlot(t *testing.T) {
	r, _ := setupRouter(t)

	created := decode[decodedFeature](t, do(r, http.MethodPost, "/api/plots/", feature("A", geomA)))
	path := fmt.Sprintf("/api/plots/%d/", created.ID)

	w := do(r, http.MethodGet, path, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, created.ID, decode[decodedFeature](t, w).ID)

	assert.Equal(t, http.StatusNoContent, do(r, http.MethodDelete, path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodGet, path, "").Code)
	assert.Equal(t, http.StatusNotFound, do(r, http.MethodDelete, path, "").Code)

	w = do(r, http.MethodGet, "/api/plots/abc/", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "plot not found", decode[errorBody](t, w).Error)
}

func TestListPlots(t *testing.T) {
	r, _ := setupRouter(t)

	a := decode[decodedFeature](t, do(r, http.MethodPost, "/api/plots/", feature("A", geomA)))
	b := decode[decodedFeature](t, do(r, http.MethodPost, "/api/plots/", feature("B", geomB)))

	type collection struct {
		Type     string           `json:"type"`
		Features []decodedFeature `json:"features"`
	}

	w := do(r, http.MethodGet, "/api/plots/", "")
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[collection](t, w)
	assert.Equal(t, "FeatureCollection", all.Type)
	require.Len(t, all.Features, 2)
	assert.Equal(t, []int64{b.ID, a.ID}, []int64{all.Features[0].ID, all.Features[1].ID})

	w = do(r, http.MethodGet, "/api/plots/?in_bbox=-7.6395,33.5805,-7.63,33.59", "")
	require.Equal(t, http.StatusOK, w.Code)
	inBox := decode[collection](t, w)
	require.Len(t, inBox.Features, 1)
	assert.Equal(t, a.ID, inBox.Features[0].ID)

	w = do(r, http.MethodGet, "/api/plots/?in_bbox=-7.63,33.59", "")
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "in_bbox", decode[errorBody](t, w).Field)

	for _, q := range []string{
		"in_bbox=-7.639,33.5805,-7.63,33.59", // shares part of A's east edge
		"in_bbox=-7.639,33.581,-7.63,33.59",  // shares A's north-east corner only
	} {
		w = do(r, http.MethodGet, "/api/plots/?"+q, "")
		require.Equal(t, http.StatusOK, w.Code, q)
		touching := decode[collection](t, w)
		require.Len(t, touching.Features, 1, q)
		assert.Equal(t, a.ID, touching.Features[0].ID, q)
	}

	for _, q := range []string{"in_bbox=-7.64,33.58,-7.64,33.59", "in_bbox=-7.64,33.58,-7.63,33.58"} {
		w = do(r, http.MethodGet, "/api/plots/?"+q, "")
		assert.Equal(t, http.StatusBadRequest, w.Code, q)
		assert.Equal(t, "in_bbox", decode[errorBody](t, w).Field, q)
	}

	empty := decode[collection](t, do(r, http.MethodGet, "/api/plots/?in_bbox=10,10,11,11", ""))
	assert.NotNil(t, empty.Features)
	assert.Empty(t, empty.Features)
}

func TestReplacePlot(t *testing.T) {
	r, _ := setupRouter(t)
	created := decode[decodedFeature](t, do(r, http.MethodPost, "/api/plots/", feature("A", geomA)))
	path := fmt.Sprintf("/api/plots/%d/", created.ID)

	w := do(r, http.MethodPut, path, `{"type":"Feature","properties":{"name":"no geometry"}}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(r, http.MethodPut, path, feature("A2", geomB))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "A2", decode[decodedFeature](t, w).Properties.Name)
}

func TestScenario(t *testing.T) {
	r, store := setupRouter(t)

	wA := do(r, http.MethodPost, "/api/plots/", feature("A", geomA))
	require.Equal(t, http.StatusCreated, wA.Code)
	a := decode[decodedFeature](t, wA)
	require.Equal(t, http.StatusCreated, do(r, http.MethodPost, "/api/plots/", feature("B", geomB)).Code)

	all, err := store.List(context.Background(), domain.ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	w := do(r, http.MethodPost, "/api/plots/", feature("C", geomA))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, []int64{a.ID}, decode[errorBody](t, w).Conflicts)

	path := fmt.Sprintf("/api/plots/%d/", a.ID)
	w = do(r, http.MethodPatch, path, fmt.Sprintf(`{"geometry":%s}`, geomB))
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "overlap", decode[errorBody](t, w).Error)

	w = do(r, http.MethodPatch, path, feature("A renamed", geomA))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "A renamed", decode[decodedFeature](t, w).Properties.Name)
}
