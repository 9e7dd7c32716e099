package http

import (
	"time"

	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/go-playground/validator/v10"
	"github.com/paulmach/orb/geojson"
)

const featureType = "Feature"

var validate = validator.New()

// featureRequest is the GeoJSON Feature accepted on create and update.
// Server-derived properties such as area are not decoded at all.
type featureRequest struct {
	Type       string            `json:"type" validate:"omitempty,eq=Feature"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties featureProperties `json:"properties"`
}

type featureProperties struct {
	Name *string `json:"name" validate:"omitempty,max=255"`
}

// FeatureProperties are the plot fields carried outside the geometry.
type FeatureProperties struct {
	Name      string    `json:"name"`
	Area      float64   `json:"area"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Feature is the GeoJSON encoding of one plot.
type Feature struct {
	ID         int64             `json:"id"`
	Type       string            `json:"type"`
	Geometry   *geojson.Geometry `json:"geometry"`
	Properties FeatureProperties `json:"properties"`
}

type FeatureCollection struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

func toFeature(p *domain.Plot) Feature {
	return Feature{
		ID:       p.ID,
		Type:     featureType,
		Geometry: geojson.NewGeometry(p.Geometry),
		Properties: FeatureProperties{
			Name:      p.Name,
			Area:      p.Area,
			CreatedAt: p.CreatedAt.UTC(),
			UpdatedAt: p.UpdatedAt.UTC(),
		},
	}
}

// NewFeatureCollection encodes plots as a GeoJSON FeatureCollection, keeping their order.
func NewFeatureCollection(plots []domain.Plot) FeatureCollection {
	out := FeatureCollection{Type: "FeatureCollection", Features: make([]Feature, 0, len(plots))}
	for i := range plots {
		out.Features = append(out.Features, toFeature(&plots[i]))
	}
	return out
}
