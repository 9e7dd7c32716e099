package http

import (
	"errors"
	"net/http"

	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/domain"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/service"
	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
)

// writeError maps service errors onto the API's error bodies. Anything that
// is neither a validation error nor a missing plot is logged and hidden.
func writeError(c *gin.Context, operation string, err error) {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		body := gin.H{"error": verr.Reason, "field": verr.Field}
		if len(verr.Conflicts) > 0 {
			body["conflicts"] = verr.Conflicts
		}
		c.JSON(http.StatusBadRequest, body)
	case errors.Is(err, domain.ErrPlotNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "plot not found"})
	default:
		service.NewLogger(c.Request.Context()).LogError(operation, err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}

// validateFeature runs the struct tags on a decoded request body.
func validateFeature(req *featureRequest) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) || len(fieldErrs) == 0 {
		return err
	}
	switch fieldErrs[0].StructField() {
	case "Name":
		return domain.NewValidationError("name", domain.ErrNameTooLong, nil)
	default:
		return &domain.ValidationError{Field: "type", Reason: "expected a GeoJSON Feature", Err: err}
	}
}
