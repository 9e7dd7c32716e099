package domain

import (
	"time"

	"github.com/paulmach/orb"
)

// MaxNameLength bounds Plot.Name.
const MaxNameLength = 255

// Plot is a land parcel. Geometry is a single polygon in WGS84 lon/lat and
// Area is its projected area in square metres.
type Plot struct {
	ID        int64       `json:"id"`
	Name      string      `json:"name"`
	Geometry  orb.Polygon `json:"-"`
	Area      float64     `json:"area"`
	CreatedAt time.Time   `json:"created_at"`
	UpdatedAt time.Time   `json:"updated_at"`
}

// CreatePlotRequest carries the client-settable fields of a new plot.
type CreatePlotRequest struct {
	Name     string
	Geometry orb.Polygon
}

// UpdatePlotRequest represents a partial update. Nil fields are left as they are.
type UpdatePlotRequest struct {
	Name     *string
	Geometry orb.Polygon
}

// ListFilter narrows a plot listing. A nil BBox lists everything.
type ListFilter struct {
	BBox *orb.Bound
}
