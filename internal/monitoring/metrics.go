package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "intervals"

// Metrics holds the Prometheus instruments for research and reconcile
// calls. A nil *Metrics is valid and records nothing.
type Metrics struct {
	researchTotal    *prometheus.CounterVec
	researchDuration prometheus.Histogram
	confidence       prometheus.Histogram
	candidates       prometheus.Histogram
	providerFailures *prometheus.CounterVec
	cacheLookups     *prometheus.CounterVec
	reconcileWrites  *prometheus.CounterVec
	reconcileErrors  prometheus.Counter
	windowTotal      prometheus.Gauge
	windowFailRate   prometheus.Gauge
	windowConfidence prometheus.Gauge
}

// NewMetrics creates the instruments and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		researchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_requests_total",
			Help:      "Research calls by rule family and outcome.",
		}, []string{"family", "outcome"}),
		researchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "research_duration_seconds",
			Help:      "Wall time of research calls.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		confidence: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "research_confidence",
			Help:      "Aggregate confidence of research results.",
			Buckets:   prometheus.LinearBuckets(1, 1, 10),
		}),
		candidates: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "research_candidates",
			Help:      "Number of merged candidates per research result.",
			Buckets:   prometheus.LinearBuckets(0, 4, 8),
		}),
		providerFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_failures_total",
			Help:      "Rule providers that failed or timed out during dispatch.",
		}, []string{"provider"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "research_cache_lookups_total",
			Help:      "Research cache lookups by result (hit, miss, error).",
		}, []string{"result"}),
		reconcileWrites: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_writes_total",
			Help:      "Interval rows written by the reconciler, by kind.",
		}, []string{"kind"}),
		reconcileErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reconcile_failures_total",
			Help:      "Reconcile batches that were rolled back.",
		}),
		windowTotal: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_research_total",
			Help:      "Research logs in the monitoring lookback window.",
		}),
		windowFailRate: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_failure_rate",
			Help:      "Share of failed research calls in the monitoring lookback window.",
		}),
		windowConfidence: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "window_avg_confidence",
			Help:      "Average confidence of successful research in the monitoring lookback window.",
		}),
	}
	reg.MustRegister(
		m.researchTotal,
		m.researchDuration,
		m.confidence,
		m.candidates,
		m.providerFailures,
		m.cacheLookups,
		m.reconcileWrites,
		m.reconcileErrors,
		m.windowTotal,
		m.windowFailRate,
		m.windowConfidence,
	)
	return m
}

// ObserveResearch records one finished research call.
func (m *Metrics) ObserveResearch(family string, err error, elapsed time.Duration, confidence, candidates int) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	if family == "" {
		family = "unknown"
	}
	m.researchTotal.WithLabelValues(family, outcome).Inc()
	m.researchDuration.Observe(elapsed.Seconds())
	if err == nil {
		m.confidence.Observe(float64(confidence))
		m.candidates.Observe(float64(candidates))
	}
}

// ProviderFailed counts a provider that contributed nothing because it failed.
func (m *Metrics) ProviderFailed(provider string) {
	if m == nil {
		return
	}
	m.providerFailures.WithLabelValues(provider).Inc()
}

// CacheLookup counts a cache lookup. result is "hit", "miss" or "error".
func (m *Metrics) CacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveReconcile records a reconcile batch.
func (m *Metrics) ObserveReconcile(inserted, updated int, err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.reconcileErrors.Inc()
		return
	}
	m.reconcileWrites.WithLabelValues("insert").Add(float64(inserted))
	m.reconcileWrites.WithLabelValues("update").Add(float64(updated))
}

// SetWindow publishes a monitoring snapshot.
func (m *Metrics) SetWindow(snap *MetricsSnapshot) {
	if m == nil || snap == nil {
		return
	}
	m.windowTotal.Set(float64(snap.ResearchTotal))
	m.windowFailRate.Set(snap.ResearchFailRate)
	m.windowConfidence.Set(snap.AvgConfidence)
}
