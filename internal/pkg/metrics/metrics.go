package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "compliance"

// Metrics holds the engine's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	RecomputeTotal    *prometheus.CounterVec
	RecomputeDuration prometheus.Histogram
	DroppedRows       *prometheus.CounterVec
	SnapshotTimestamp prometheus.Gauge
	QueriesTotal      *prometheus.CounterVec
	QueryDuration     prometheus.Histogram
	SuppressedGroups  prometheus.Counter

	gatherer prometheus.Gatherer
}

// New registers all collectors on reg. Pass prometheus.NewRegistry() in tests
// to avoid clashing with the default registry.
func New(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: reg,
		RecomputeTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recompute_total",
			Help:      "Recompute cycles by outcome",
		}, []string{"status"}),
		RecomputeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "recompute_duration_seconds",
			Help:      "Wall time of a recompute cycle",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}),
		DroppedRows: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ingest_dropped_rows_total",
			Help:      "Input rows dropped during recompute",
		}, []string{"entity", "reason"}),
		SnapshotTimestamp: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "snapshot_published_timestamp_seconds",
			Help:      "Unix time of the snapshot currently served",
		}),
		QueriesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "Aggregate queries by terminal state",
		}, []string{"outcome"}),
		QueryDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Aggregate query latency",
			Buckets:   prometheus.DefBuckets,
		}),
		SuppressedGroups: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "suppressed_groups_total",
			Help:      "Groups replaced by the suppressed marker in responses",
		}),
	}
}

func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveRecompute(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.RecomputeTotal.WithLabelValues(status).Inc()
	m.RecomputeDuration.Observe(d.Seconds())
}

func (m *Metrics) AddDropped(entity, reason string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.DroppedRows.WithLabelValues(entity, reason).Add(float64(n))
}

func (m *Metrics) SetSnapshotTime(t time.Time) {
	if m == nil {
		return
	}
	m.SnapshotTimestamp.Set(float64(t.Unix()))
}

func (m *Metrics) ObserveQuery(outcome string, d time.Duration, suppressed int) {
	if m == nil {
		return
	}
	m.QueriesTotal.WithLabelValues(outcome).Inc()
	m.QueryDuration.Observe(d.Seconds())
	m.SuppressedGroups.Add(float64(suppressed))
}
