// Package geometry adapts the GEOS and orb libraries to the polygon contracts
// the plot registry relies on: validity, the intersects predicate and
// projected area.
package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"github.com/twpayne/go-geos"
)

// ErrInvalid is wrapped by every validation failure returned from Validate.
var ErrInvalid = errors.New("invalid geometry")

// minRingPositions is the smallest closed ring: a triangle plus the closing position.
const minRingPositions = 4

// MaxExtentDegrees bounds a polygon's longitude and latitude span. Parcels
// are far smaller; the bound keeps every vertex well inside the area
// projection's valid hemisphere.
const MaxExtentDegrees = 90.0

// Validate checks that p is a single well-formed polygon in lon/lat degrees.
// Structural checks run before the polygon is handed to GEOS, since GEOS
// refuses to build rings that are open or too short.
func Validate(p orb.Polygon) error {
	if len(p) == 0 {
		return fmt.Errorf("%w: polygon has no rings", ErrInvalid)
	}
	for i, ring := range p {
		if len(ring) < minRingPositions {
			return fmt.Errorf("%w: ring %d has %d positions, need at least %d", ErrInvalid, i, len(ring), minRingPositions)
		}
		if ring[0] != ring[len(ring)-1] {
			return fmt.Errorf("%w: ring %d is not closed", ErrInvalid, i)
		}
		for _, pt := range ring {
			if err := checkPosition(pt); err != nil {
				return fmt.Errorf("%w: ring %d: %v", ErrInvalid, i, err)
			}
		}
	}

	b := p.Bound()
	if b.Max[0]-b.Min[0] > MaxExtentDegrees || b.Max[1]-b.Min[1] > MaxExtentDegrees {
		return fmt.Errorf("%w: polygon spans more than %g degrees", ErrInvalid, MaxExtentDegrees)
	}

	g := toGeos(p)
	defer g.Destroy()
	if !g.IsValid() {
		return fmt.Errorf("%w: %s", ErrInvalid, g.IsValidReason())
	}
	return nil
}

func checkPosition(pt orb.Point) error {
	lng, lat := pt.Lon(), pt.Lat()
	if math.IsNaN(lng) || math.IsNaN(lat) || math.IsInf(lng, 0) || math.IsInf(lat, 0) {
		return fmt.Errorf("non-finite coordinate %v", pt)
	}
	if lng < -180 || lng > 180 || lat < -90 || lat > 90 {
		return fmt.Errorf("coordinate %v outside lon/lat range", pt)
	}
	return nil
}

// Intersects reports whether a and b share at least one point. Shared edges
// and single shared vertices count. Both polygons must have passed Validate.
func Intersects(a, b orb.Polygon) bool {
	if !a.Bound().Intersects(b.Bound()) {
		return false
	}
	ga, gb := toGeos(a), toGeos(b)
	defer ga.Destroy()
	defer gb.Destroy()
	return ga.Intersects(gb)
}

// Equal reports exact coordinate equality, ring by ring.
func Equal(a, b orb.Polygon) bool {
	return a.Equal(b)
}

// FromBound returns the closed rectangle covering b.
func FromBound(b orb.Bound) orb.Polygon {
	return orb.Polygon{b.ToRing()}
}

func toGeos(p orb.Polygon) *geos.Geom {
	return geos.NewPolygon(coordinates(p))
}

func coordinates(p orb.Polygon) [][][]float64 {
	rings := make([][][]float64, len(p))
	for i, ring := range p {
		coords := make([][]float64, len(ring))
		for j, pt := range ring {
			coords[j] = []float64{pt[0], pt[1]}
		}
		rings[i] = coords
	}
	return rings
}
