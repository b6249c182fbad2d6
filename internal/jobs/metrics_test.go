package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	require.NoError(t, m.Track("planning:execute").End(nil))
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("planning:execute").End(boom), boom)
	m.Duplicate("planning:execute")

	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("planning:execute", "success")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("planning:execute", "failure")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("planning:execute")))
	require.Equal(t, 1.0, testutil.ToFloat64(m.duplicates.WithLabelValues("planning:execute")))
}

func TestNilMetricsTrackerPassesErrorThrough(t *testing.T) {
	var m *Metrics
	boom := errors.New("boom")
	require.ErrorIs(t, m.Track("x").End(boom), boom)
	m.Duplicate("x")
}
