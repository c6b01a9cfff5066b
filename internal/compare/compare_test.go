package compare_test

import (
	"errors"
	"testing"

	"github.com/signalnine/metabench/internal/compare"
	"github.com/signalnine/metabench/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func entry(pipeline, sample string, kv ...any) compare.Entry {
	set := &result.MetricSet{Pipeline: pipeline, Sample: sample}
	for i := 0; i+1 < len(kv); i += 2 {
		set.Metrics = append(set.Metrics, result.Measured(kv[i].(string), result.ScopeSample, "", kv[i+1].(float64), ""))
	}
	return compare.Entry{Pipeline: pipeline, Sample: sample, Metrics: set}
}

func TestDeltasOnlyOverSharedSamples(t *testing.T) {
	entries := []compare.Entry{
		entry("A", "S1", "n50", 1000.0),
		entry("A", "S2", "n50", 2000.0),
		entry("A", "S3", "n50", 3000.0),
		entry("B", "S1", "n50", 1500.0),
		entry("B", "S2", "n50", 1000.0),
	}
	r, err := compare.New(compare.Options{}).Compare(entries)
	require.NoError(t, err)

	var samples []string
	for _, d := range r.Deltas {
		samples = append(samples, d.Sample)
	}
	assert.Equal(t, []string{"S1", "S2"}, samples)

	d, ok := r.Delta("n50", "S1", "A", "B")
	require.True(t, ok)
	assert.Equal(t, -500.0, d)
	_, ok = r.Delta("n50", "S3", "A", "B")
	assert.False(t, ok)

	require.Len(t, r.Gaps, 1)
	assert.Equal(t, compare.CoverageGap{Pipeline: "B", Sample: "S3", PresentIn: []string{"A"}}, r.Gaps[0])
	assert.Equal(t, []string{"S3"}, r.GapsFor("B"))
	assert.Empty(t, r.GapsFor("A"))
}

func TestDeltaAntisymmetry(t *testing.T) {
	entries := []compare.Entry{
		entry("B", "S1", "n50", 1500.0, "contamination", 3.5),
		entry("A", "S1", "n50", 1000.0, "contamination", 7.25),
		entry("C", "S1", "n50", 1000.0, "contamination", 0.0),
	}
	r, err := compare.New(compare.Options{}).Compare(entries)
	require.NoError(t, err)
	for _, m := range []string{"n50", "contamination"} {
		for _, pair := range [][2]string{{"A", "B"}, {"A", "C"}, {"B", "C"}} {
			ab, ok1 := r.Delta(m, "S1", pair[0], pair[1])
			ba, ok2 := r.Delta(m, "S1", pair[1], pair[0])
			require.True(t, ok1 && ok2)
			assert.Equal(t, ab, -ba, "%s %v", m, pair)
		}
	}
}

func TestUnavailableMetricsSkipped(t *testing.T) {
	a := entry("A", "S1", "n50", 10.0)
	a.Metrics.Metrics = append(a.Metrics.Metrics, result.Unavailable("ari_truth", result.ScopeSample, "", "", "no ground truth"))
	b := entry("B", "S1", "n50", 20.0, "ari_truth", 0.9)
	r, err := compare.New(compare.Options{}).Compare([]compare.Entry{a, b})
	require.NoError(t, err)
	_, ok := r.Delta("ari_truth", "S1", "A", "B")
	assert.False(t, ok)
	_, ok = r.Ranking("ari_truth")
	assert.False(t, ok)
}

func TestComparisonErrors(t *testing.T) {
	_, err := compare.New(compare.Options{}).Compare([]compare.Entry{
		entry("A", "S1", "n50", 1.0),
		entry("B", "S2", "n50", 1.0),
	})
	var ce *compare.ComparisonError
	require.True(t, errors.As(err, &ce))
	assert.ErrorIs(t, err, compare.ErrNoOverlap)

	_, err = compare.New(compare.Options{}).Compare([]compare.Entry{
		entry("A", "S1", "n50", 1.0),
		entry("A", "S2", "n50", 1.0),
	})
	assert.ErrorIs(t, err, compare.ErrTooFewPipelines)

	_, err = compare.New(compare.Options{}).Compare(nil)
	assert.ErrorIs(t, err, compare.ErrTooFewPipelines)

	_, err = compare.New(compare.Options{}).Compare([]compare.Entry{
		entry("A", "S1", "n50", 1.0),
		entry("A", "S1", "n50", 2.0),
		entry("B", "S1", "n50", 1.0),
	})
	assert.ErrorIs(t, err, compare.ErrDuplicateEntry)
}

func TestPipelineFilter(t *testing.T) {
	entries := []compare.Entry{
		entry("A", "S1", "n50", 1.0),
		entry("B", "S1", "n50", 2.0),
		entry("C", "S2", "n50", 3.0),
	}
	r, err := compare.New(compare.Options{Pipelines: []string{"A", "B"}}).Compare(entries)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B"}, r.Pipelines)
	assert.Equal(t, []string{"S1"}, r.Samples)
	assert.Empty(t, r.Gaps)

	_, err = compare.New(compare.Options{Pipelines: []string{"A", "C"}}).Compare(entries)
	assert.ErrorIs(t, err, compare.ErrNoOverlap)
}

func TestRankingTiesSplit(t *testing.T) {
	entries := []compare.Entry{
		entry("A", "S1", "n50", 100.0, "contamination", 1.0),
		entry("B", "S1", "n50", 100.0, "contamination", 2.0),
		entry("C", "S1", "n50", 50.0, "contamination", 3.0),
		entry("A", "S2", "n50", 10.0, "contamination", 5.0),
		entry("B", "S2", "n50", 30.0, "contamination", 5.0),
		entry("C", "S2", "n50", 20.0, "contamination", 5.0),
	}
	r, err := compare.New(compare.Options{}).Compare(entries)
	require.NoError(t, err)

	n50, ok := r.Ranking("n50")
	require.True(t, ok)
	got := map[string]compare.RankEntry{}
	for _, e := range n50.Entries {
		got[e.Pipeline] = e
	}
	// S1: A,B tie for first (rank 1.5 each, half a win each), C third
	// S2: B, C, A
	assert.Equal(t, compare.RankEntry{Pipeline: "A", MeanRank: 2.25, Wins: 0.5, Samples: 2}, got["A"])
	assert.Equal(t, compare.RankEntry{Pipeline: "B", MeanRank: 1.25, Wins: 1.5, Samples: 2}, got["B"])
	assert.Equal(t, compare.RankEntry{Pipeline: "C", MeanRank: 2.5, Wins: 0, Samples: 2}, got["C"])
	assert.Equal(t, "B", n50.Entries[0].Pipeline)

	var wins float64
	for _, e := range n50.Entries {
		wins += e.Wins
	}
	assert.Equal(t, 2.0, wins)

	cont, ok := r.Ranking("contamination")
	require.True(t, ok)
	assert.True(t, cont.LowerIsBetter)
	assert.Equal(t, "A", cont.Entries[0].Pipeline)
	for _, e := range cont.Entries {
		if e.Pipeline == "A" {
			// S1 first, S2 three-way tie at rank 2
			assert.Equal(t, 1.5, e.MeanRank)
			assert.InDelta(t, 1+1.0/3, e.Wins, 1e-9)
		}
	}
}

func TestSummaries(t *testing.T) {
	r, err := compare.New(compare.Options{Metrics: []string{"n50"}}).Compare([]compare.Entry{
		entry("A", "S1", "n50", 10.0, "l50", 1.0),
		entry("A", "S2", "n50", 30.0),
		entry("B", "S1", "n50", 5.0),
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"n50"}, r.Metrics)
	assert.Equal(t, []compare.Summary{
		{Pipeline: "A", Metric: "n50", Mean: 20, Samples: 2},
		{Pipeline: "B", Metric: "n50", Mean: 5, Samples: 1},
	}, r.Summaries)

	sets := r.PipelineMetrics()
	require.Len(t, sets, 2)
	assert.Equal(t, "A", sets[0].Pipeline)
	m, ok := sets[0].Lookup("n50", "A")
	require.True(t, ok)
	assert.Equal(t, result.ScopePipeline, m.Scope)
	assert.Equal(t, 20.0, m.Value)
}

func TestInputOrderIndependent(t *testing.T) {
	entries := []compare.Entry{
		entry("A", "S1", "n50", 1.0),
		entry("B", "S2", "n50", 2.0),
		entry("B", "S1", "n50", 3.0),
		entry("A", "S2", "n50", 4.0),
	}
	reversed := make([]compare.Entry, len(entries))
	for i, e := range entries {
		reversed[len(entries)-1-i] = e
	}
	r1, err := compare.New(compare.Options{}).Compare(entries)
	require.NoError(t, err)
	r2, err := compare.New(compare.Options{}).Compare(reversed)
	require.NoError(t, err)
	assert.Equal(t, r1, r2)
}

func TestAgreementRelabeled(t *testing.T) {
	a := entry("A", "S1", "n50", 1.0)
	a.Partition = map[string]string{"c1": "bin1", "c2": "bin1", "c3": "bin2", "c4": "bin3"}
	b := entry("B", "S1", "n50", 1.0)
	b.Partition = map[string]string{"c1": "x", "c2": "x", "c3": "y", "c4": "z"}
	r, err := compare.New(compare.Options{Method: "metabat2"}).Compare([]compare.Entry{a, b})
	require.NoError(t, err)
	ag, ok := r.Agreement("S1", "B", "A")
	require.True(t, ok)
	assert.Equal(t, 1.0, ag.Score)
	assert.Equal(t, 4, ag.Contigs)
	assert.Equal(t, "metabat2", ag.Method)
}
