// Package compare aggregates evaluator output across pipelines and samples
// into pairwise deltas, per-metric rankings and binning agreement scores.
package compare

import (
	"errors"
	"fmt"
	"sort"

	"github.com/signalnine/metabench/internal/result"
)

var (
	ErrNoOverlap       = errors.New("no sample is shared by two or more pipelines")
	ErrTooFewPipelines = errors.New("at least two pipelines are required")
	ErrDuplicateEntry  = errors.New("duplicate (pipeline, sample) entry")
)

// ComparisonError reports a comparison request that cannot be answered.
type ComparisonError struct {
	Pipelines []string
	Err       error
}

func (e *ComparisonError) Error() string {
	return fmt.Sprintf("compare %v: %v", e.Pipelines, e.Err)
}

func (e *ComparisonError) Unwrap() error { return e.Err }

type Options struct {
	// Pipelines restricts the comparison; empty compares every pipeline
	// present in the entries.
	Pipelines []string
	// Metrics restricts deltas and rankings; empty uses every sample-level
	// metric seen.
	Metrics []string
	// Method names the binning whose partitions were supplied. Informational.
	Method string
}

// Entry is one evaluated (pipeline, sample) unit.
type Entry struct {
	Pipeline  string
	Sample    string
	Metrics   *result.MetricSet
	Partition map[string]string
}

type Comparator struct {
	opts Options
}

func New(opts Options) *Comparator {
	return &Comparator{opts: opts}
}

// Compare combines entries into a Report. Entries are ordered by (sample,
// pipeline) first, so the result does not depend on input order.
func (c *Comparator) Compare(entries []Entry) (*Report, error) {
	keep := map[string]bool{}
	for _, p := range c.opts.Pipelines {
		keep[p] = true
	}
	var in []Entry
	seen := map[[2]string]bool{}
	for _, e := range entries {
		if len(keep) > 0 && !keep[e.Pipeline] {
			continue
		}
		key := [2]string{e.Pipeline, e.Sample}
		if seen[key] {
			return nil, &ComparisonError{Pipelines: c.opts.Pipelines, Err: fmt.Errorf("%w: %s/%s", ErrDuplicateEntry, e.Pipeline, e.Sample)}
		}
		seen[key] = true
		in = append(in, e)
	}
	sort.SliceStable(in, func(i, j int) bool {
		if in[i].Sample != in[j].Sample {
			return in[i].Sample < in[j].Sample
		}
		return in[i].Pipeline < in[j].Pipeline
	})

	pipelines := distinct(in, func(e Entry) string { return e.Pipeline })
	if len(keep) > 0 {
		pipelines = sortedKeys(keep)
	}
	if len(pipelines) < 2 {
		return nil, &ComparisonError{Pipelines: pipelines, Err: ErrTooFewPipelines}
	}
	samples := distinct(in, func(e Entry) string { return e.Sample })

	bySample := map[string][]Entry{}
	for _, e := range in {
		bySample[e.Sample] = append(bySample[e.Sample], e)
	}
	shared := 0
	for _, s := range samples {
		if len(bySample[s]) >= 2 {
			shared++
		}
	}
	if shared == 0 {
		return nil, &ComparisonError{Pipelines: pipelines, Err: ErrNoOverlap}
	}

	metrics := c.opts.Metrics
	if len(metrics) == 0 {
		metrics = metricNames(in)
	}

	r := &Report{
		Pipelines: pipelines,
		Samples:   samples,
		Metrics:   metrics,
		Method:    c.opts.Method,
	}
	r.Gaps = gaps(pipelines, samples, bySample)
	for _, s := range samples {
		group := bySample[s]
		for i := 0; i < len(group); i++ {
			for j := i + 1; j < len(group); j++ {
				r.Deltas = append(r.Deltas, deltas(metrics, group[i], group[j])...)
				if a, ok := agreement(group[i], group[j], c.opts.Method); ok {
					r.Agreements = append(r.Agreements, a)
				}
			}
		}
	}
	for _, m := range metrics {
		if rk, ok := rank(m, samples, bySample); ok {
			r.Rankings = append(r.Rankings, rk)
		}
	}
	r.Summaries = summarize(metrics, pipelines, in)
	return r, nil
}

func distinct(in []Entry, key func(Entry) string) []string {
	set := map[string]bool{}
	for _, e := range in {
		set[key(e)] = true
	}
	return sortedKeys(set)
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

func metricNames(in []Entry) []string {
	set := map[string]bool{}
	for _, e := range in {
		if e.Metrics == nil {
			continue
		}
		for _, n := range e.Metrics.Names() {
			set[n] = true
		}
	}
	return sortedKeys(set)
}

// sampleValue returns an available sample-level metric.
func sampleValue(e Entry, name string) (float64, bool) {
	if e.Metrics == nil {
		return 0, false
	}
	m, ok := e.Metrics.Lookup(name, "")
	if !ok || !m.Available || m.Scope != result.ScopeSample {
		return 0, false
	}
	return m.Value, true
}

func gaps(pipelines, samples []string, bySample map[string][]Entry) []CoverageGap {
	var out []CoverageGap
	for _, s := range samples {
		present := map[string]bool{}
		var names []string
		for _, e := range bySample[s] {
			present[e.Pipeline] = true
			names = append(names, e.Pipeline)
		}
		for _, p := range pipelines {
			if !present[p] {
				out = append(out, CoverageGap{Pipeline: p, Sample: s, PresentIn: names})
			}
		}
	}
	return out
}

// deltas for a < b (both entries of the same sample, already sorted).
func deltas(metrics []string, a, b Entry) []Delta {
	var out []Delta
	for _, m := range metrics {
		va, okA := sampleValue(a, m)
		vb, okB := sampleValue(b, m)
		if !okA || !okB {
			continue
		}
		out = append(out, Delta{Metric: m, Sample: a.Sample, A: a.Pipeline, B: b.Pipeline, ValueA: va, ValueB: vb, Delta: va - vb})
	}
	return out
}

func agreement(a, b Entry, method string) (Agreement, bool) {
	if a.Partition == nil || b.Partition == nil {
		return Agreement{}, false
	}
	score, n := AdjustedRandIndex(a.Partition, b.Partition)
	if n == 0 {
		return Agreement{}, false
	}
	return Agreement{Sample: a.Sample, A: a.Pipeline, B: b.Pipeline, Method: method, Score: score, Contigs: n}, true
}

// rank orders pipelines per sample by metric, best first. Tied pipelines
// share the mean of the ranks they span, and tied winners split the win.
// Only samples where at least two pipelines report the metric count.
func rank(metric string, samples []string, bySample map[string][]Entry) (Ranking, bool) {
	dir := result.DirectionOf(metric)
	type acc struct {
		rankSum float64
		wins    float64
		n       int
	}
	stats := map[string]*acc{}
	for _, s := range samples {
		type pv struct {
			p string
			v float64
		}
		var vals []pv
		for _, e := range bySample[s] {
			if v, ok := sampleValue(e, metric); ok {
				vals = append(vals, pv{e.Pipeline, v})
			}
		}
		if len(vals) < 2 {
			continue
		}
		sort.SliceStable(vals, func(i, j int) bool {
			if dir == result.LowerIsBetter {
				return vals[i].v < vals[j].v
			}
			return vals[i].v > vals[j].v
		})
		for i := 0; i < len(vals); {
			j := i
			for j < len(vals) && vals[j].v == vals[i].v {
				j++
			}
			// positions i..j-1 hold ranks i+1..j
			shared := float64(i+1+j) / 2
			for k := i; k < j; k++ {
				a := stats[vals[k].p]
				if a == nil {
					a = &acc{}
					stats[vals[k].p] = a
				}
				a.rankSum += shared
				a.n++
				if i == 0 {
					a.wins += 1 / float64(j-i)
				}
			}
			i = j
		}
	}
	if len(stats) == 0 {
		return Ranking{}, false
	}
	rk := Ranking{Metric: metric, LowerIsBetter: dir == result.LowerIsBetter}
	for p, a := range stats {
		rk.Entries = append(rk.Entries, RankEntry{Pipeline: p, MeanRank: a.rankSum / float64(a.n), Wins: a.wins, Samples: a.n})
	}
	sort.Slice(rk.Entries, func(i, j int) bool {
		x, y := rk.Entries[i], rk.Entries[j]
		if x.MeanRank != y.MeanRank {
			return x.MeanRank < y.MeanRank
		}
		if x.Wins != y.Wins {
			return x.Wins > y.Wins
		}
		return x.Pipeline < y.Pipeline
	})
	return rk, true
}

func summarize(metrics, pipelines []string, in []Entry) []Summary {
	var out []Summary
	for _, p := range pipelines {
		for _, m := range metrics {
			var (
				sum  float64
				n    int
				unit string
			)
			for _, e := range in {
				if e.Pipeline != p {
					continue
				}
				if v, ok := sampleValue(e, m); ok {
					sum += v
					n++
					if unit == "" {
						met, _ := e.Metrics.Lookup(m, "")
						unit = met.Unit
					}
				}
			}
			if n > 0 {
				out = append(out, Summary{Pipeline: p, Metric: m, Mean: sum / float64(n), Unit: unit, Samples: n})
			}
		}
	}
	return out
}
