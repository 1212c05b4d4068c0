package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	assert.NoError(t, m.Track("detect").End(nil))
	boom := errors.New("boom")
	assert.Same(t, boom, m.Track("detect").End(boom))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("detect", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("detect", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("detect")))
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.ObserveIngest(IngestDropped)
	assert.NoError(t, m.Track("x").End(nil))
}

func TestObserveIngest(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())
	m.ObserveIngest(IngestQueued)
	m.ObserveIngest(IngestQueued)
	m.ObserveIngest(IngestDropped)
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ingest.WithLabelValues(IngestQueued)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ingest.WithLabelValues(IngestDropped)))
}
