package http

import (
	"net/http"
	"strconv"

	"github.com/GoSim-25-26J-441/plot-registry/internal/geometry"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/service"
	"github.com/gin-gonic/gin"
)

// Handler handles HTTP requests for plots
type Handler struct {
	plots *service.PlotService
}

// New creates a new Handler
func New(plots *service.PlotService) *Handler {
	return &Handler{plots: plots}
}

// ListPlots returns a FeatureCollection, optionally filtered by ?in_bbox=
func (h *Handler) ListPlots(c *gin.Context) {
	var filter domain.ListFilter
	if raw, ok := c.GetQuery("in_bbox"); ok {
		bbox, err := geometry.ParseBBox(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "field": "in_bbox"})
			return
		}
		filter.BBox = &bbox
	}

	plots, err := h.plots.List(c.Request.Context(), filter)
	if err != nil {
		writeError(c, "list_plots", err)
		return
	}
	c.JSON(http.StatusOK, NewFeatureCollection(plots))
}

// CreatePlot creates a plot from a GeoJSON Feature
func (h *Handler) CreatePlot(c *gin.Context) {
	req, ok := bindFeature(c)
	if !ok {
		return
	}

	poly, err := geometry.AsPolygon(req.Geometry)
	if err != nil {
		writeError(c, "create_plot", domain.NewValidationError("geometry", domain.ErrInvalidGeometry, err))
		return
	}
	var name string
	if req.Properties.Name != nil {
		name = *req.Properties.Name
	}

	p, err := h.plots.Create(c.Request.Context(), &domain.CreatePlotRequest{Name: name, Geometry: poly})
	if err != nil {
		writeError(c, "create_plot", err)
		return
	}
	c.JSON(http.StatusCreated, toFeature(p))
}

// GetPlot retrieves a plot by ID
func (h *Handler) GetPlot(c *gin.Context) {
	id, ok := plotID(c)
	if !ok {
		return
	}

	p, err := h.plots.Get(c.Request.Context(), id)
	if err != nil {
		writeError(c, "get_plot", err)
		return
	}
	c.JSON(http.StatusOK, toFeature(p))
}

// UpdatePlot applies a partial update. Omitted geometry and name are kept.
func (h *Handler) UpdatePlot(c *gin.Context) {
	h.update(c, false)
}

// ReplacePlot is the full-update form of UpdatePlot: geometry and name are required.
func (h *Handler) ReplacePlot(c *gin.Context) {
	h.update(c, true)
}

func (h *Handler) update(c *gin.Context, full bool) {
	id, ok := plotID(c)
	if !ok {
		return
	}
	req, ok := bindFeature(c)
	if !ok {
		return
	}

	upd := &domain.UpdatePlotRequest{Name: req.Properties.Name}
	if req.Geometry != nil {
		poly, err := geometry.AsPolygon(req.Geometry)
		if err != nil {
			writeError(c, "update_plot", domain.NewValidationError("geometry", domain.ErrInvalidGeometry, err))
			return
		}
		upd.Geometry = poly
	}
	if full {
		if upd.Geometry == nil {
			writeError(c, "update_plot", domain.NewValidationError("geometry", domain.ErrInvalidGeometry, nil))
			return
		}
		if upd.Name == nil {
			writeError(c, "update_plot", domain.NewValidationError("name", domain.ErrMissingName, nil))
			return
		}
	}

	p, err := h.plots.Update(c.Request.Context(), id, upd)
	if err != nil {
		writeError(c, "update_plot", err)
		return
	}
	c.JSON(http.StatusOK, toFeature(p))
}

// DeletePlot deletes a plot
func (h *Handler) DeletePlot(c *gin.Context) {
	id, ok := plotID(c)
	if !ok {
		return
	}
	if err := h.plots.Delete(c.Request.Context(), id); err != nil {
		writeError(c, "delete_plot", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func bindFeature(c *gin.Context) (*featureRequest, bool) {
	var req featureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return nil, false
	}
	if err := validateFeature(&req); err != nil {
		writeError(c, "bind_feature", err)
		return nil, false
	}
	return &req, true
}

// plotID parses the :id path parameter. Ids that cannot exist are reported
// as missing plots.
func plotID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusNotFound, gin.H{"error": "plot not found"})
		return 0, false
	}
	return id, true
}

