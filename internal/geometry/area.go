package geometry

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"
)

// AuthalicRadius is the radius, in metres, of the sphere with the same
// surface area as the WGS84 ellipsoid.
const AuthalicRadius = 6371007.1809

// maxSegmentDegrees is the longest edge, in degrees, projected as a straight
// line. Longer edges are split first so the projected ring follows them.
const maxSegmentDegrees = 1.0

// ErrArea is returned when a polygon cannot be measured.
var ErrArea = errors.New("area is not measurable")

// Area returns the area of p in square metres. Vertices are projected with a
// Lambert azimuthal equal-area projection centred on the polygon's bounding
// box, and GEOS measures the projected polygon. The projection is only used
// for the measurement; stored geometry stays in lon/lat.
func Area(p orb.Polygon) (float64, error) {
	projected, err := ProjectEqualArea(p)
	if err != nil {
		return 0, err
	}
	g := toGeos(projected)
	defer g.Destroy()

	a := math.Abs(g.Area())
	if math.IsNaN(a) || math.IsInf(a, 0) {
		return 0, fmt.Errorf("%w: got %v", ErrArea, a)
	}
	return a, nil
}

// ProjectEqualArea maps p into a metric Lambert azimuthal equal-area frame
// centred on its bounding box centre, densifying edges longer than one degree.
func ProjectEqualArea(p orb.Polygon) (orb.Polygon, error) {
	center := p.Bound().Center()
	proj := newLAEA(center.Lon(), center.Lat())

	out := make(orb.Polygon, len(p))
	for i, ring := range densify(p) {
		r := make(orb.Ring, len(ring))
		for j, pt := range ring {
			xy, ok := proj.forward(pt)
			if !ok {
				return nil, fmt.Errorf("%w: %v is antipodal to the projection centre", ErrArea, pt)
			}
			r[j] = xy
		}
		out[i] = r
	}
	return out, nil
}

func densify(p orb.Polygon) orb.Polygon {
	out := make(orb.Polygon, len(p))
	for i, ring := range p {
		if len(ring) == 0 {
			continue
		}
		r := orb.Ring{ring[0]}
		for j := 1; j < len(ring); j++ {
			a, b := ring[j-1], ring[j]
			span := math.Max(math.Abs(b[0]-a[0]), math.Abs(b[1]-a[1]))
			n := int(math.Ceil(span / maxSegmentDegrees))
			for k := 1; k < n; k++ {
				f := float64(k) / float64(n)
				r = append(r, orb.Point{a[0] + f*(b[0]-a[0]), a[1] + f*(b[1]-a[1])})
			}
			r = append(r, b)
		}
		out[i] = r
	}
	return out
}

type laea struct {
	lon0, sinLat0, cosLat0 float64
}

func newLAEA(lon0, lat0 float64) laea {
	phi0 := lat0 * math.Pi / 180
	return laea{
		lon0:    lon0 * math.Pi / 180,
		sinLat0: math.Sin(phi0),
		cosLat0: math.Cos(phi0),
	}
}

// forward projects pt; ok is false at the antipode of the centre.
func (l laea) forward(pt orb.Point) (orb.Point, bool) {
	lambda := pt.Lon()*math.Pi/180 - l.lon0
	phi := pt.Lat() * math.Pi / 180
	sinPhi, cosPhi := math.Sin(phi), math.Cos(phi)
	cosLambda := math.Cos(lambda)

	denom := 1 + l.sinLat0*sinPhi + l.cosLat0*cosPhi*cosLambda
	if denom <= 1e-12 {
		return orb.Point{}, false
	}
	k := math.Sqrt(2 / denom)
	x := AuthalicRadius * k * cosPhi * math.Sin(lambda)
	y := AuthalicRadius * k * (l.cosLat0*sinPhi - l.sinLat0*cosPhi*cosLambda)
	return orb.Point{x, y}, true
}
