package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/metabench/internal/adapter"
	"github.com/signalnine/metabench/internal/compare"
	"github.com/signalnine/metabench/internal/config"
	"github.com/signalnine/metabench/internal/logging"
	"github.com/signalnine/metabench/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gold = "@Version:0.9.1\n@@SEQUENCEID\tBINID\nc1\tgA\nc2\tgB\n"

func samplePipelines() []config.Pipeline {
	return []config.Pipeline{
		{Name: "mag", Adapter: "nf-core/mag", Samples: []config.Sample{{ID: "S1"}, {ID: "S2"}}},
		{Name: "metawrap", Adapter: "metawrap", Samples: []config.Sample{{ID: "S1"}}},
		{Name: "generic", Adapter: "generic", Samples: []config.Sample{{ID: "S3"}}},
	}
}

func TestFilterPipelines(t *testing.T) {
	tests := []struct {
		name          string
		pipeline      string
		sample        string
		wantUnits     int
		wantPipelines int
	}{
		{"empty filters returns all", "", "", 4, 3},
		{"by pipeline", "mag", "", 2, 1},
		{"by sample", "", "S1", 2, 2},
		{"pipeline and sample", "mag", "S2", 1, 1},
		{"sample missing from pipeline", "metawrap", "S2", 0, 0},
		{"no match", "nope", "", 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := filterPipelines(samplePipelines(), tt.pipeline, tt.sample)
			assert.Len(t, got, tt.wantPipelines)
			units := 0
			for _, p := range got {
				units += len(p.Samples)
			}
			assert.Equal(t, tt.wantUnits, units)
		})
	}
}

func TestFilterPipelinesDoesNotMutateInput(t *testing.T) {
	in := samplePipelines()
	filterPipelines(in, "", "S2")
	assert.Len(t, in[0].Samples, 2)
}

func TestBuildUnits(t *testing.T) {
	dir := t.TempDir()
	goldPath := filepath.Join(dir, "gold.tsv")
	require.NoError(t, os.WriteFile(goldPath, []byte(gold), 0o644))

	tr := &config.Truth{Binning: goldPath}
	pipelines := []config.Pipeline{
		{Name: "mag", Adapter: "nf-core/mag", Params: map[string]string{"assembler": "SPAdes"},
			Samples: []config.Sample{{ID: "S1", Path: "/data/mag", Truth: tr}, {ID: "S2", Path: "/data/mag"}}},
		{Name: "metawrap", Adapter: "metawrap",
			Samples: []config.Sample{{ID: "S1", Path: "/data/mw", Truth: &config.Truth{Binning: goldPath}}}},
	}
	units, err := buildUnits(pipelines)
	require.NoError(t, err)
	require.Len(t, units, 3)

	assert.Equal(t, "SPAdes", units[0].Params["assembler"])
	assert.Equal(t, "/data/mag", units[0].Root)
	require.NotNil(t, units[0].Truth)
	assert.Nil(t, units[1].Truth)
	assert.Same(t, units[0].Truth, units[2].Truth, "identical truth files load once")

	genome, ok := units[0].Truth.GenomeOf("c2")
	assert.True(t, ok)
	assert.Equal(t, "gB", genome)
}

func TestBuildUnitsBadTruth(t *testing.T) {
	pipelines := []config.Pipeline{{Name: "mag", Adapter: "generic",
		Samples: []config.Sample{{ID: "S1", Path: "x", Truth: &config.Truth{Binning: filepath.Join(t.TempDir(), "missing")}}}}}
	_, err := buildUnits(pipelines)
	assert.ErrorContains(t, err, "mag/S1")
}

func metricSet(pipeline, sample string, n50 float64) *result.MetricSet {
	return &result.MetricSet{Pipeline: pipeline, Sample: sample, Metrics: []result.Metric{
		result.Measured("n50", result.ScopeSample, "", n50, "bp"),
	}}
}

func pipelineResult(pipeline, sample string, bins map[string][]string) *result.PipelineResult {
	b := result.Binning{Method: "MetaBAT2"}
	for id, members := range bins {
		b.Bins = append(b.Bins, result.Bin{ID: id, Members: members})
	}
	return &result.PipelineResult{Pipeline: pipeline, Sample: sample, Binnings: []result.Binning{b}}
}

func TestStoredEntries(t *testing.T) {
	sets := []*result.MetricSet{metricSet("a", "S1", 1000), metricSet("b", "S1", 2000)}
	results := []*result.PipelineResult{
		pipelineResult("a", "S1", map[string][]string{"bin.1": {"c1", "c2"}}),
	}
	entries := storedEntries(sets, results, "")
	require.Len(t, entries, 2)
	assert.Equal(t, map[string]string{"c1": "bin.1", "c2": "bin.1"}, entries[0].Partition)
	assert.Nil(t, entries[1].Partition)
	assert.Same(t, sets[1], entries[1].Metrics)

	entries = storedEntries(sets, results, "CONCOCT")
	assert.Nil(t, entries[0].Partition)
}

func TestWriteComparison(t *testing.T) {
	runDir := t.TempDir()
	cfg := config.Default()
	entries := []compare.Entry{
		entryFor(pipelineResult("a", "S1", map[string][]string{"x": {"c1", "c2"}}), metricSet("a", "S1", 1000), ""),
		entryFor(pipelineResult("b", "S1", map[string][]string{"y": {"c1", "c2"}}), metricSet("b", "S1", 2000), ""),
	}
	failures := []result.UnitFailure{{Pipeline: "c", Sample: "S1", Stage: "adapter", Error: "boom"}}

	require.NoError(t, writeComparison(runDir, "run-1", &cfg, entries, failures, logging.Discard()))

	var rep compare.Report
	require.NoError(t, result.ReadJSON(filepath.Join(runDir, result.ComparisonFile), &rep))
	assert.Equal(t, "run-1", rep.RunID)
	assert.Equal(t, []string{"a", "b"}, rep.Pipelines)
	assert.Len(t, rep.Failures, 1)
	d, ok := rep.Delta("n50", "S1", "a", "b")
	require.True(t, ok)
	assert.Equal(t, -1000.0, d)
	ag, ok := rep.Agreement("S1", "a", "b")
	require.True(t, ok)
	assert.Equal(t, 1.0, ag.Score)
}

func TestWriteComparisonSkipsSinglePipeline(t *testing.T) {
	runDir := t.TempDir()
	cfg := config.Default()
	entries := []compare.Entry{entryFor(nil, metricSet("a", "S1", 1000), "")}

	require.NoError(t, writeComparison(runDir, "", &cfg, entries, nil, logging.Discard()))
	_, err := os.Stat(filepath.Join(runDir, result.ComparisonFile))
	assert.True(t, os.IsNotExist(err))
}

func TestCheckConfig(t *testing.T) {
	dir := t.TempDir()
	goldPath := filepath.Join(dir, "gold.tsv")
	require.NoError(t, os.WriteFile(goldPath, []byte(gold), 0o644))
	badGold := filepath.Join(dir, "bad.tsv")
	require.NoError(t, os.WriteFile(badGold, []byte("@@SEQUENCEID\n"), 0o644))

	cfg := config.Default()
	cfg.Pipelines = []config.Pipeline{
		{Name: "mag", Adapter: "nf-core/mag", Samples: []config.Sample{
			{ID: "S1", Path: dir, Truth: &config.Truth{Binning: goldPath}},
		}},
		{Name: "odd", Adapter: "snakemake", Samples: []config.Sample{
			{ID: "S1", Path: filepath.Join(dir, "missing")},
			{ID: "S2", Path: dir, Truth: &config.Truth{Binning: badGold}},
		}},
	}
	problems := checkConfig(&cfg, adapter.NewRegistry())
	require.Len(t, problems, 3)
	assert.Contains(t, problems[0], `unknown adapter "snakemake"`)
	assert.Contains(t, problems[1], "odd/S1")
	assert.Contains(t, problems[2], "odd/S2: ground truth")

	cfg.Pipelines = cfg.Pipelines[:1]
	assert.Empty(t, checkConfig(&cfg, adapter.NewRegistry()))
}
