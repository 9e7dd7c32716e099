package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Write outcomes for PlotWritesTotal.
const (
	OutcomeOK        = "ok"
	OutcomeRejected  = "rejected"
	OutcomeConflict  = "store_conflict"
	OutcomeNotFound  = "not_found"
	OutcomeError     = "error"
	GuardAllowed     = "allowed"
	GuardOverlap     = "overlap"
	GuardCheckFailed = "error"
)

var (
	PlotWritesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plot_writes_total",
		Help: "Plot create, update and delete attempts by outcome",
	}, []string{"op", "outcome"})
	GuardChecksTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plot_guard_checks_total",
		Help: "Spatial consistency checks by result",
	}, []string{"result"})
	GuardDurationSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "plot_guard_duration_seconds",
		Help:    "Spatial consistency check duration",
		Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
	})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "plot_http_requests_total",
		Help: "Plot API requests by route and status",
	}, []string{"route", "status"})
	RateLimitedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "plot_http_rate_limited_total",
		Help: "Requests rejected by the rate limiter",
	})
)

func init() {
	prometheus.MustRegister(PlotWritesTotal)
	prometheus.MustRegister(GuardChecksTotal)
	prometheus.MustRegister(GuardDurationSeconds)
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(RateLimitedTotal)
}

func Handler() http.Handler { return promhttp.Handler() }
