package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestRecordingOnCustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.DocIndexed()
	m.DocIndexed()
	m.DocsDeleted(3)
	m.Commit("ok", 10*time.Millisecond)
	m.Snapshot(2, 40)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.DocsIndexedTotal))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.DocsDeletedTotal))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.IndexCommitsTotal.WithLabelValues("ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.SegmentCount))
	assert.Equal(t, 40.0, testutil.ToFloat64(m.LiveDocs))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.DocIndexed()
		m.DocsDeleted(1)
		m.Flush("ok")
		m.Commit("error", time.Second)
		m.Merge()
		m.Snapshot(1, 1)
		m.Search("hit", "miss", 3, time.Millisecond)
		m.CacheHit()
		m.CacheMiss()
		m.IngestEvent("add", "ok")
	})
}
