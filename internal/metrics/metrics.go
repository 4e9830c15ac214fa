package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PointsIngestedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "splitter_points_ingested_total",
		Help: "Total number of nodes read from input files",
	}, []string{"pass"})
	PointsSkippedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "splitter_points_skipped_total",
		Help: "Nodes outside the configured bounds during density collection",
	})
	PointsRoutedTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "splitter_points_routed_total",
		Help: "Node to tile assignments during the routing pass",
	}, []string{"pass"})
	PointsUnroutedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "splitter_points_unrouted_total",
		Help: "Nodes that fell into no tile of any pass",
	})
	TilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "splitter_tiles_total",
		Help: "Tiles produced by the area splitter",
	})
	OversizedTilesTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "splitter_oversized_tiles_total",
		Help: "Single-cell tiles exceeding max-nodes",
	})
	PlanCacheTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "splitter_plan_cache_total",
		Help: "Area list cache lookups by result",
	}, []string{"result"})
	PhaseDurationMs = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "splitter_phase_duration_ms",
		Help:    "Duration of a splitter phase in milliseconds",
		Buckets: []float64{10, 100, 1000, 10000, 60000, 300000, 1800000, 7200000},
	}, []string{"phase"})
)

func init() {
	prometheus.MustRegister(PointsIngestedTotal)
	prometheus.MustRegister(PointsSkippedTotal)
	prometheus.MustRegister(PointsRoutedTotal)
	prometheus.MustRegister(PointsUnroutedTotal)
	prometheus.MustRegister(TilesTotal)
	prometheus.MustRegister(OversizedTilesTotal)
	prometheus.MustRegister(PlanCacheTotal)
	prometheus.MustRegister(PhaseDurationMs)
}

// Handler：/metrics 抓取端点
func Handler() http.Handler { return promhttp.Handler() }
