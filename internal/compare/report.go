package compare

import "github.com/signalnine/metabench/internal/result"

// Report is the outcome of one comparison. Deltas are stored once per
// unordered pair with A < B; use Delta for either order.
type Report struct {
	RunID      string               `json:"run_id,omitempty"`
	Pipelines  []string             `json:"pipelines"`
	Samples    []string             `json:"samples"`
	Metrics    []string             `json:"metrics"`
	Method     string               `json:"method,omitempty"`
	Deltas     []Delta              `json:"deltas"`
	Gaps       []CoverageGap        `json:"gaps,omitempty"`
	Rankings   []Ranking            `json:"rankings"`
	Agreements []Agreement          `json:"agreements,omitempty"`
	Summaries  []Summary            `json:"summaries,omitempty"`
	Failures   []result.UnitFailure `json:"failures,omitempty"`
}

// Delta is ValueA - ValueB for one metric on one sample.
type Delta struct {
	Metric string  `json:"metric"`
	Sample string  `json:"sample"`
	A      string  `json:"a"`
	B      string  `json:"b"`
	ValueA float64 `json:"value_a"`
	ValueB float64 `json:"value_b"`
	Delta  float64 `json:"delta"`
}

// CoverageGap marks a sample that Pipeline lacks but others have.
type CoverageGap struct {
	Pipeline  string   `json:"pipeline"`
	Sample    string   `json:"sample"`
	PresentIn []string `json:"present_in"`
}

type Ranking struct {
	Metric        string      `json:"metric"`
	LowerIsBetter bool        `json:"lower_is_better,omitempty"`
	Entries       []RankEntry `json:"entries"`
}

type RankEntry struct {
	Pipeline string  `json:"pipeline"`
	MeanRank float64 `json:"mean_rank"`
	Wins     float64 `json:"wins"`
	Samples  int     `json:"samples"`
}

// Agreement is the adjusted Rand index between two pipelines' binnings of
// one sample, over the Contigs both binned.
type Agreement struct {
	Sample  string  `json:"sample"`
	A       string  `json:"a"`
	B       string  `json:"b"`
	Method  string  `json:"method,omitempty"`
	Score   float64 `json:"score"`
	Contigs int     `json:"contigs"`
}

// Summary is the mean of a metric over the samples a pipeline reported it for.
type Summary struct {
	Pipeline string  `json:"pipeline"`
	Metric   string  `json:"metric"`
	Mean     float64 `json:"mean"`
	Unit     string  `json:"unit,omitempty"`
	Samples  int     `json:"samples"`
}

// PipelineMetrics returns the summaries as pipeline-scoped metrics, one set
// per pipeline in report order. Each metric's subject is its pipeline.
func (r *Report) PipelineMetrics() []*result.MetricSet {
	byPipeline := map[string]*result.MetricSet{}
	var out []*result.MetricSet
	for _, s := range r.Summaries {
		set, ok := byPipeline[s.Pipeline]
		if !ok {
			set = &result.MetricSet{Pipeline: s.Pipeline, RunID: r.RunID}
			byPipeline[s.Pipeline] = set
			out = append(out, set)
		}
		set.Metrics = append(set.Metrics, result.Measured(s.Metric, result.ScopePipeline, s.Pipeline, s.Mean, s.Unit))
	}
	return out
}

// Delta returns value(a) - value(b) for metric on sample, in either pipeline
// order.
func (r *Report) Delta(metric, sample, a, b string) (float64, bool) {
	for _, d := range r.Deltas {
		if d.Metric != metric || d.Sample != sample {
			continue
		}
		switch {
		case d.A == a && d.B == b:
			return d.Delta, true
		case d.A == b && d.B == a:
			return -d.Delta, true
		}
	}
	return 0, false
}

// Agreement returns the partition agreement of a and b on sample.
func (r *Report) Agreement(sample, a, b string) (Agreement, bool) {
	for _, ag := range r.Agreements {
		if ag.Sample == sample && ((ag.A == a && ag.B == b) || (ag.A == b && ag.B == a)) {
			return ag, true
		}
	}
	return Agreement{}, false
}

func (r *Report) Ranking(metric string) (Ranking, bool) {
	for _, rk := range r.Rankings {
		if rk.Metric == metric {
			return rk, true
		}
	}
	return Ranking{}, false
}

// GapsFor lists the samples pipeline is missing.
func (r *Report) GapsFor(pipeline string) []string {
	var out []string
	for _, g := range r.Gaps {
		if g.Pipeline == pipeline {
			out = append(out, g.Sample)
		}
	}
	return out
}
