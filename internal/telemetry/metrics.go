// Package telemetry holds the prometheus collectors shared by the core
// packages. A nil *Metrics is valid and records nothing, so libraries can be
// used without a registry.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "chronicle"

type Metrics struct {
	// Labels: variant (full, quick), outcome (ok, error, timeout)
	AssemblySeconds *prometheus.HistogramVec

	// Sub-queries that fell back to a default. Labels: subtask
	DegradedTotal *prometheus.CounterVec

	// Labels: ledger (facts, relationships, voice)
	AppendsTotal *prometheus.CounterVec

	CacheHits      prometheus.Counter
	CacheMisses    prometheus.Counter
	CacheEvictions prometheus.Counter
	CacheBytes     prometheus.Gauge
	CacheEntries   prometheus.Gauge

	ReplayedDeltas prometheus.Histogram
	TraversalNodes prometheus.Histogram
}

// NewMetrics registers every collector on reg. Passing a fresh
// prometheus.NewRegistry() keeps tests isolated from the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AssemblySeconds: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "assembly_seconds",
			Help:      "Wall-clock time to assemble a context packet",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"variant", "outcome"}),
		DegradedTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orchestrator",
			Name:      "degraded_total",
			Help:      "Optional sub-contexts replaced by their default",
		}, []string{"subtask"}),
		AppendsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "appends_total",
			Help:      "Records appended per ledger",
		}, []string{"ledger"}),
		CacheHits: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconstruct_cache",
			Name:      "hits_total",
			Help:      "Reconstruction cache hits",
		}),
		CacheMisses: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconstruct_cache",
			Name:      "misses_total",
			Help:      "Reconstruction cache misses",
		}),
		CacheEvictions: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "reconstruct_cache",
			Name:      "evictions_total",
			Help:      "Entries evicted for size or age",
		}),
		CacheBytes: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconstruct_cache",
			Name:      "bytes",
			Help:      "Serialized size of cached states",
		}),
		CacheEntries: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "reconstruct_cache",
			Name:      "entries",
			Help:      "Cached reconstructions",
		}),
		ReplayedDeltas: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "reconstruct",
			Name:      "replayed_deltas",
			Help:      "Deltas applied per reconstruction",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
		TraversalNodes: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "causal",
			Name:      "traversal_nodes",
			Help:      "Nodes visited per traversal",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 8),
		}),
	}
}

func (m *Metrics) ObserveAssembly(variant, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.AssemblySeconds.WithLabelValues(variant, outcome).Observe(d.Seconds())
}

func (m *Metrics) Degraded(subtask string) {
	if m == nil {
		return
	}
	m.DegradedTotal.WithLabelValues(subtask).Inc()
}

func (m *Metrics) Appended(ledger string) {
	if m == nil {
		return
	}
	m.AppendsTotal.WithLabelValues(ledger).Inc()
}

func (m *Metrics) CacheHit() {
	if m == nil {
		return
	}
	m.CacheHits.Inc()
}

func (m *Metrics) CacheMiss() {
	if m == nil {
		return
	}
	m.CacheMisses.Inc()
}

func (m *Metrics) CacheEvicted(n int) {
	if m == nil || n == 0 {
		return
	}
	m.CacheEvictions.Add(float64(n))
}

func (m *Metrics) CacheSize(bytes int64, entries int) {
	if m == nil {
		return
	}
	m.CacheBytes.Set(float64(bytes))
	m.CacheEntries.Set(float64(entries))
}

func (m *Metrics) ObserveReplay(deltas int) {
	if m == nil {
		return
	}
	m.ReplayedDeltas.Observe(float64(deltas))
}

func (m *Metrics) ObserveTraversal(nodes int) {
	if m == nil {
		return
	}
	m.TraversalNodes.Observe(float64(nodes))
}
