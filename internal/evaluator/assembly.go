package evaluator

import (
	"github.com/signalnine/metabench/internal/result"
)

// assemblyMetrics: length statistics over all contigs, plus the count of
// contigs at or above the length threshold.
func (e *Evaluator) assemblyMetrics(r *result.PipelineResult) []result.Metric {
	all := result.ComputeAssemblyStats(r.Contigs, 0)
	long := 0
	var covered, weighted float64
	for _, c := range r.Contigs {
		if c.Length >= e.opts.LengthThreshold {
			long++
		}
		if c.Coverage > 0 {
			covered += float64(c.Length)
			weighted += c.Coverage * float64(c.Length)
		}
	}

	out := []result.Metric{
		result.Measured("total_length", result.ScopeSample, "", float64(all.TotalLength), "bp"),
		result.Measured("n50", result.ScopeSample, "", float64(all.N50), "bp"),
		result.Measured("l50", result.ScopeSample, "", float64(all.L50), "contigs"),
		result.Measured("contig_count", result.ScopeSample, "", float64(long), "contigs"),
		result.Measured("contig_count_all", result.ScopeSample, "", float64(all.ContigCount), "contigs"),
	}
	if covered > 0 {
		out = append(out, result.Measured("mean_coverage", result.ScopeSample, "", weighted/covered, "x"))
	} else {
		out = append(out, result.Unavailable("mean_coverage", result.ScopeSample, "", "x", "no contig coverage reported"))
	}
	return out
}
