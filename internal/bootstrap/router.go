package bootstrap

import (
	"time"

	httpapi "github.com/GoSim-25-26J-441/plot-registry/internal/api/http"
	"github.com/GoSim-25-26J-441/plot-registry/internal/api/http/middleware"
	"github.com/GoSim-25-26J-441/plot-registry/internal/metrics"
	plotshttp "github.com/GoSim-25-26J-441/plot-registry/internal/plots/http"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/guard"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/repository"
	"github.com/GoSim-25-26J-441/plot-registry/internal/plots/service"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	ServiceName    string
	Version        string
	Store          repository.Store
	AllowedOrigins []string
	RateLimitQPS   float64
	RateLimitBurst int
}

func BuildRouter(dep RouterDeps) *gin.Engine {
	r := gin.Default()

	r.Use(cors.New(corsConfig(dep.AllowedOrigins)))
	r.Use(middleware.RequestIDMiddleware())
	r.Use(middleware.Metrics())

	healthHandler := httpapi.NewHealthHandler(dep.ServiceName, dep.Version, dep.Store)
	healthHandler.RegisterRoutes(r)
	r.GET("/metrics", gin.WrapH(metrics.Handler()))

	api := r.Group("/api")
	api.Use(middleware.RateLimit(dep.RateLimitQPS, dep.RateLimitBurst))

	plotService := service.NewPlotService(dep.Store, guard.New())
	plotshttp.New(plotService).Register(api)

	return r
}

// corsConfig allows the listed browser origins; an empty list or "*" allows any.
func corsConfig(origins []string) cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
		ExposeHeaders:    []string{middleware.RequestIDHeader},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, o := range origins {
		if o == "*" {
			cfg.AllowAllOrigins = true
			return cfg
		}
	}
	if len(origins) == 0 {
		cfg.AllowAllOrigins = true
		return cfg
	}
	cfg.AllowOrigins = origins
	return cfg
}
