package metrics

import "github.com/prometheus/client_golang/prometheus"

// Search path labels for SearchesTotal.
const (
	SearchPathSemantic = "semantic"
	SearchPathKeyword  = "keyword"
	SearchPathRecent   = "recent"
	SearchPathFallback = "fallback"
	SearchPathStore    = "store"
)

// Search and index Prometheus metrics.
var (
	SearchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docorganizer",
			Name:      "searches_total",
			Help:      "Total searches by resolved path (fallback counts a degraded semantic attempt)",
		},
		[]string{"path"},
	)

	SearchDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docorganizer",
			Name:      "search_duration_seconds",
			Help:      "Search duration in seconds by resolved path",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"path"},
	)

	DocumentsIndexedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docorganizer",
			Name:      "documents_indexed_total",
			Help:      "Indexed documents by outcome (full, keyword_only, failed)",
		},
		[]string{"outcome"},
	)

	KeywordIndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docorganizer",
			Name:      "keyword_index_entries",
			Help:      "Number of entries in the keyword index",
		},
	)

	VectorIndexSize = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docorganizer",
			Name:      "vector_index_rows",
			Help:      "Number of live rows in the vector index",
		},
	)
)

var searchMetricsRegistered bool

// RegisterSearchMetrics registers search metrics. Must be called once from main.
func RegisterSearchMetrics() {
	if searchMetricsRegistered {
		return
	}
	prometheus.MustRegister(SearchesTotal)
	prometheus.MustRegister(SearchDuration)
	prometheus.MustRegister(DocumentsIndexedTotal)
	prometheus.MustRegister(KeywordIndexSize)
	prometheus.MustRegister(VectorIndexSize)
	searchMetricsRegistered = true
}
