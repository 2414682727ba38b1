package eventchain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	inserts        prometheus.Counter
	restarts       prometheus.Counter
	removed        prometheus.Counter
	queries        prometheus.Counter
	queryResumes   prometheus.Counter
	archiveDropped prometheus.Counter
	queryResults   prometheus.Histogram
	checkpoints    prometheus.Gauge
}

const metricsNamespace = "eventchain"

// newMetrics registers the Store's collectors with reg. A nil reg gets a
// private registry, so stores that don't export metrics never collide
func newMetrics(reg prometheus.Registerer) *metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &metrics{
		inserts: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "inserts_total",
			Help:      "Events inserted into the chain",
		}),
		restarts: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "insert_restarts_total",
			Help:      "Inserts restarted after landing on a removed node",
		}),
		removed: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "removed_total",
			Help:      "Events removed from the chain",
		}),
		queries: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "queries_total",
			Help:      "Range queries executed",
		}),
		queryResumes: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "query_resumes_total",
			Help:      "Query walks resumed after landing on a removed node",
		}),
		archiveDropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "archive_dropped_total",
			Help:      "Removed-event batches dropped by the archive worker",
		}),
		queryResults: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "query_results",
			Help:      "Events returned per query",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		}),
		checkpoints: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Name:      "checkpoints",
			Help:      "Checkpoints currently registered in the index",
		}),
	}
}
