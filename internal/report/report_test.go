package report_test

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/signalnine/metabench/internal/compare"
	"github.com/signalnine/metabench/internal/report"
	"github.com/signalnine/metabench/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRun(t *testing.T) string {
	t.Helper()
	runDir := filepath.Join(t.TempDir(), "runs", "test-run")
	sets := []*result.MetricSet{
		{Pipeline: "mag", Sample: "S1", Metrics: []result.Metric{
			result.Measured("n50", result.ScopeSample, "", 12000, "bp"),
			result.Measured("hq_bins", result.ScopeSample, "", 3, "bins"),
			result.Measured("mean_completeness", result.ScopeSample, "", 81.25, "%"),
			result.Measured("binned_fraction", result.ScopeSample, "", 0.42, "fraction"),
			result.Unavailable("ari_truth", result.ScopeSample, "", "ari", "no ground truth"),
		}},
		{Pipeline: "metawrap", Sample: "S1", Metrics: []result.Metric{
			result.Measured("n50", result.ScopeSample, "", 9000, "bp"),
			result.Measured("hq_bins", result.ScopeSample, "", 4, "bins"),
		}},
	}
	for _, s := range sets {
		require.NoError(t, result.WriteMetrics(result.UnitDir(runDir, s.Pipeline, s.Sample), s))
	}
	return runDir
}

func TestGenerateTable(t *testing.T) {
	runDir := sampleRun(t)
	var buf bytes.Buffer
	require.NoError(t, report.Generate(runDir, "table", &buf))
	out := buf.String()
	assert.Contains(t, out, "metawrap")
	assert.Contains(t, out, "12000")
	assert.Contains(t, out, "81.2%")
	assert.Contains(t, out, "42%")
	assert.Contains(t, out, "n/a")
	assert.NotContains(t, out, "Rankings")
}

func TestGenerateWithComparison(t *testing.T) {
	runDir := sampleRun(t)
	run, err := report.Load(runDir)
	require.NoError(t, err)

	var entries []compare.Entry
	for _, s := range run.Metrics {
		entries = append(entries, compare.Entry{Pipeline: s.Pipeline, Sample: s.Sample, Metrics: s})
	}
	cmp, err := compare.New(compare.Options{}).Compare(entries)
	require.NoError(t, err)
	require.NoError(t, result.WriteJSON(filepath.Join(runDir, result.ComparisonFile), cmp))
	require.NoError(t, result.WriteFailures(runDir, []result.UnitFailure{
		{Pipeline: "metawrap", Sample: "S2", Stage: "locate", Error: "assembly missing"},
	}))

	var buf bytes.Buffer
	require.NoError(t, report.Generate(runDir, "table", &buf))
	assert.Contains(t, buf.String(), "Rankings")
	assert.Contains(t, buf.String(), "Pipeline means")
	assert.Contains(t, buf.String(), "failed: metawrap/S2 at locate")

	buf.Reset()
	require.NoError(t, report.Generate(runDir, "markdown", &buf))
	assert.Contains(t, buf.String(), "| Sample | Pipeline |")
	assert.Contains(t, buf.String(), "## Rankings")
	assert.Contains(t, buf.String(), "## Pipeline means")
	assert.Contains(t, buf.String(), "## Failures")

	buf.Reset()
	require.NoError(t, report.Generate(runDir, "json", &buf))
	var decoded report.Run
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	require.NotNil(t, decoded.Comparison)
	d, ok := decoded.Comparison.Delta("n50", "S1", "metawrap", "mag")
	require.True(t, ok)
	assert.Equal(t, -3000.0, d)
	assert.Len(t, decoded.Failures, 1)
}

func TestUnknownFormat(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, report.Generate(sampleRun(t), "pdf", &buf))
}
