package http

import "github.com/gin-gonic/gin"

// Register registers the plot routes. Paths keep their trailing slash.
func (h *Handler) Register(rg *gin.RouterGroup) {
	rg.GET("/plots/", h.ListPlots)
	rg.POST("/plots/", h.CreatePlot)
	rg.GET("/plots/:id/", h.GetPlot)
	rg.PATCH("/plots/:id/", h.UpdatePlot)
	rg.PUT("/plots/:id/", h.ReplacePlot)
	rg.DELETE("/plots/:id/", h.DeletePlot)
}
