package result

import "sort"

type Scope string

const (
	ScopeSample   Scope = "sample"
	ScopeBin      Scope = "bin"
	ScopePipeline Scope = "pipeline"
)

// Metric is one computed measure. A metric whose prerequisites are missing
// is still reported, with Available=false and a Reason.
type Metric struct {
	Name      string  `json:"name"`
	Scope     Scope   `json:"scope"`
	Subject   string  `json:"subject,omitempty"`
	Value     float64 `json:"value"`
	Unit      string  `json:"unit,omitempty"`
	Available bool    `json:"available"`
	Reason    string  `json:"reason,omitempty"`
}

func Measured(name string, scope Scope, subject string, value float64, unit string) Metric {
	return Metric{Name: name, Scope: scope, Subject: subject, Value: value, Unit: unit, Available: true}
}

func Unavailable(name string, scope Scope, subject, unit, reason string) Metric {
	return Metric{Name: name, Scope: scope, Subject: subject, Unit: unit, Reason: reason}
}

// MetricSet is the evaluator output for one (pipeline, sample) pair.
type MetricSet struct {
	Pipeline string   `json:"pipeline"`
	Sample   string   `json:"sample"`
	RunID    string   `json:"run_id,omitempty"`
	Metrics  []Metric `json:"metrics"`
}

// Lookup finds a metric by name and subject (empty subject for sample scope).
func (s *MetricSet) Lookup(name, subject string) (Metric, bool) {
	for _, m := range s.Metrics {
		if m.Name == name && m.Subject == subject {
			return m, true
		}
	}
	return Metric{}, false
}

// Names returns the distinct sample-scoped metric names, sorted.
func (s *MetricSet) Names() []string {
	seen := map[string]bool{}
	var out []string
	for _, m := range s.Metrics {
		if m.Scope != ScopeSample || seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		out = append(out, m.Name)
	}
	sort.Strings(out)
	return out
}

// Direction says whether larger values of a metric are preferable.
type Direction int

const (
	HigherIsBetter Direction = iota
	LowerIsBetter
)

var lowerIsBetter = map[string]bool{
	"contamination":         true,
	"mean_contamination":    true,
	"l50":                   true,
	"contig_count":          true,
	"contig_count_all":      true,
	"unclassified_fraction": true,
}

func DirectionOf(name string) Direction {
	if lowerIsBetter[name] {
		return LowerIsBetter
	}
	return HigherIsBetter
}

// SortMetricSets orders sets by sample, then pipeline.
func SortMetricSets(sets []*MetricSet) {
	sort.SliceStable(sets, func(i, j int) bool {
		if sets[i].Sample != sets[j].Sample {
			return sets[i].Sample < sets[j].Sample
		}
		return sets[i].Pipeline < sets[j].Pipeline
	})
}
