package geometry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/encoding/wkb"
	"github.com/paulmach/orb/geojson"
)

// MarshalGeoJSON encodes p as a GeoJSON Polygon geometry object. Identical
// coordinates always produce identical bytes, which the SQLite store relies
// on for its uniqueness index.
func MarshalGeoJSON(p orb.Polygon) ([]byte, error) {
	return geojson.NewGeometry(p).MarshalJSON()
}

// UnmarshalPolygon decodes a GeoJSON geometry object that must be a Polygon.
func UnmarshalPolygon(data []byte) (orb.Polygon, error) {
	g, err := geojson.UnmarshalGeometry(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	return AsPolygon(g)
}

// UnmarshalPolygonWKB decodes well-known binary that must hold a Polygon.
// WKB carries full doubles, so the result is bit-identical to what was stored.
func UnmarshalPolygonWKB(data []byte) (orb.Polygon, error) {
	g, err := wkb.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	p, ok := g.(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("%w: expected Polygon, got %s", ErrInvalid, g.GeoJSONType())
	}
	return p, nil
}

// AsPolygon extracts the polygon from a decoded GeoJSON geometry.
func AsPolygon(g *geojson.Geometry) (orb.Polygon, error) {
	if g == nil || g.Coordinates == nil {
		return nil, fmt.Errorf("%w: geometry is required", ErrInvalid)
	}
	p, ok := g.Geometry().(orb.Polygon)
	if !ok {
		return nil, fmt.Errorf("%w: expected Polygon, got %s", ErrInvalid, g.Geometry().GeoJSONType())
	}
	return p, nil
}

// ParseBBox parses "minLng,minLat,maxLng,maxLat". Min must be strictly
// below max on both axes.
func ParseBBox(s string) (orb.Bound, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return orb.Bound{}, fmt.Errorf("bbox must have 4 comma separated numbers, got %d", len(parts))
	}
	var v [4]float64
	for i, part := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(part), 64)
		if err != nil {
			return orb.Bound{}, fmt.Errorf("bbox value %q: %w", part, err)
		}
		v[i] = f
	}
	b := orb.Bound{Min: orb.Point{v[0], v[1]}, Max: orb.Point{v[2], v[3]}}
	if b.Min[0] >= b.Max[0] || b.Min[1] >= b.Max[1] {
		return orb.Bound{}, fmt.Errorf("bbox must have positive width and height")
	}
	if err := checkPosition(b.Min); err != nil {
		return orb.Bound{}, err
	}
	if err := checkPosition(b.Max); err != nil {
		return orb.Bound{}, err
	}
	return b, nil
}
