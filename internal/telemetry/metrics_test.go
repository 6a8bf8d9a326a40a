package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAssembly("full", "ok", time.Millisecond)
		m.Degraded("voice")
		m.Appended("facts")
		m.CacheHit()
		m.CacheMiss()
		m.CacheEvicted(2)
		m.CacheSize(10, 1)
		m.ObserveReplay(3)
		m.ObserveTraversal(4)
	})
}

func TestMetricsRecord(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.Degraded("voice")
	m.Degraded("voice")
	m.Degraded("pacing")
	m.CacheHit()
	m.CacheEvicted(3)
	m.CacheEvicted(0)
	m.CacheSize(128, 2)
	m.ObserveAssembly("full", "ok", 20*time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DegradedTotal.WithLabelValues("voice")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DegradedTotal.WithLabelValues("pacing")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheHits))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.CacheEvictions))
	assert.Equal(t, 128.0, testutil.ToFloat64(m.CacheBytes))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.CacheEntries))
	assert.Equal(t, 1, testutil.CollectAndCount(m.AssemblySeconds))
}
