package telemetry_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/signalnine/metabench/internal/telemetry"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveUnit(t *testing.T) {
	m := telemetry.NewMetrics()
	m.ObserveUnit("mag", "ok", time.Second)
	m.ObserveUnit("mag", "ok", time.Second)
	m.ObserveUnit("mag", "failed", time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.UnitsTotal.WithLabelValues("mag", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.UnitsTotal.WithLabelValues("mag", "failed")))
}

func TestObserveNilMetrics(t *testing.T) {
	var m *telemetry.Metrics
	assert.NotPanics(t, func() {
		m.ObserveUnit("mag", "ok", time.Second)
		m.ObserveMetrics("mag", 1, 1)
	})
}

func TestWriteTextfile(t *testing.T) {
	m := telemetry.NewMetrics()
	m.ObserveMetrics("mag", 10, 2)
	path := filepath.Join(t.TempDir(), "metabench.prom")
	require.NoError(t, m.WriteTextfile(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(data), "metabench_metrics_total"))
}

func TestSetupTracing(t *testing.T) {
	shutdown, err := telemetry.SetupTracing("none")
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))

	_, err = telemetry.SetupTracing("zipkin")
	assert.Error(t, err)
}

func TestEndSpanRecordsError(t *testing.T) {
	_, span := telemetry.StartSpan(context.Background(), "test", telemetry.Unit("mag", "S1")...)
	assert.NotPanics(t, func() { telemetry.EndSpan(span, errors.New("boom")) })
}
