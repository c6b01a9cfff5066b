package evaluator

import (
	"fmt"

	"github.com/signalnine/metabench/internal/compare"
	"github.com/signalnine/metabench/internal/result"
)

// MIMAG draft genome tiers (rRNA/tRNA criteria not assessed).
const (
	mimagHighCompleteness    = 90
	mimagHighContamination   = 5
	mimagMediumCompleteness  = 50
	mimagMediumContamination = 10
)

var binSampleMetrics = []struct{ name, unit string }{
	{"bin_count", "bins"},
	{"hq_bins", "bins"},
	{"mimag_high", "bins"},
	{"mimag_medium", "bins"},
	{"binned_fraction", "fraction"},
	{"mean_completeness", "%"},
	{"mean_contamination", "%"},
	{"genome_recall", "fraction"},
	{"ari_truth", "ari"},
	{"purity", "fraction"},
}

func (e *Evaluator) binningMetrics(s *Sample) []result.Metric {
	b, ok := s.Result.Binning(e.opts.BinningMethod)
	if !ok {
		reason := fmt.Sprintf("no binning %q", e.opts.BinningMethod)
		out := make([]result.Metric, 0, len(binSampleMetrics))
		for _, m := range binSampleMetrics {
			out = append(out, result.Unavailable(m.name, result.ScopeSample, "", m.unit, reason))
		}
		return out
	}

	var (
		perBin               []result.Metric
		estimated            int
		hq, high, medium     int
		sumComp, sumCont     float64
		binnedBP, assemblyBP int64
	)
	for _, c := range s.Result.Contigs {
		assemblyBP += int64(c.Length)
	}
	for _, bin := range b.SortedBins() {
		var size int64
		for _, id := range bin.Members {
			size += int64(s.contigs[id].Length)
		}
		binnedBP += size

		q, ok := e.estimator.Estimate(bin, s)
		if ok {
			q.Completeness = clampPercent(q.Completeness)
			q.Contamination = clampPercent(q.Contamination)
			estimated++
			sumComp += q.Completeness
			sumCont += q.Contamination
			if q.Completeness >= e.opts.CompletenessThreshold && q.Contamination < e.opts.ContaminationThreshold {
				hq++
			}
			switch {
			case q.Completeness >= mimagHighCompleteness && q.Contamination < mimagHighContamination:
				high++
			case q.Completeness >= mimagMediumCompleteness && q.Contamination < mimagMediumContamination:
				medium++
			}
			perBin = append(perBin,
				result.Measured("completeness", result.ScopeBin, bin.ID, q.Completeness, "%"),
				result.Measured("contamination", result.ScopeBin, bin.ID, q.Contamination, "%"),
				result.Measured("quality_score", result.ScopeBin, bin.ID, q.Completeness-5*q.Contamination, "score"),
			)
		} else {
			const reason = "no quality estimate"
			perBin = append(perBin,
				result.Unavailable("completeness", result.ScopeBin, bin.ID, "%", reason),
				result.Unavailable("contamination", result.ScopeBin, bin.ID, "%", reason),
				result.Unavailable("quality_score", result.ScopeBin, bin.ID, "score", reason),
			)
		}
		perBin = append(perBin, result.Measured("bin_size", result.ScopeBin, bin.ID, float64(size), "bp"))
	}

	out := []result.Metric{result.Measured("bin_count", result.ScopeSample, "", float64(len(b.Bins)), "bins")}
	if estimated > 0 {
		out = append(out,
			result.Measured("hq_bins", result.ScopeSample, "", float64(hq), "bins"),
			result.Measured("mimag_high", result.ScopeSample, "", float64(high), "bins"),
			result.Measured("mimag_medium", result.ScopeSample, "", float64(medium), "bins"),
		)
	} else {
		const reason = "no bin has a quality estimate"
		out = append(out,
			result.Unavailable("hq_bins", result.ScopeSample, "", "bins", reason),
			result.Unavailable("mimag_high", result.ScopeSample, "", "bins", reason),
			result.Unavailable("mimag_medium", result.ScopeSample, "", "bins", reason),
		)
	}
	out = append(out, result.Measured("binned_fraction", result.ScopeSample, "", fraction(binnedBP, assemblyBP), "fraction"))
	if estimated > 0 {
		out = append(out,
			result.Measured("mean_completeness", result.ScopeSample, "", sumComp/float64(estimated), "%"),
			result.Measured("mean_contamination", result.ScopeSample, "", sumCont/float64(estimated), "%"),
		)
	} else {
		const reason = "no bin has a quality estimate"
		out = append(out,
			result.Unavailable("mean_completeness", result.ScopeSample, "", "%", reason),
			result.Unavailable("mean_contamination", result.ScopeSample, "", "%", reason),
		)
	}
	out = append(out, e.truthBinMetrics(s, b)...)
	return append(out, perBin...)
}

// truthBinMetrics scores the binning against the known genome of origin of
// each contig.
func (e *Evaluator) truthBinMetrics(s *Sample, b *result.Binning) []result.Metric {
	if s.Truth == nil {
		const reason = "no ground truth"
		return []result.Metric{
			result.Unavailable("genome_recall", result.ScopeSample, "", "fraction", reason),
			result.Unavailable("ari_truth", result.ScopeSample, "", "ari", reason),
			result.Unavailable("purity", result.ScopeSample, "", "fraction", reason),
		}
	}

	recovered := map[string]bool{}
	var dominantBP, knownBP int64
	for _, bin := range b.SortedBins() {
		g, own, other, ok := dominantGenome(bin, s)
		if !ok {
			continue
		}
		dominantBP += own
		knownBP += own + other
		q, ok := fromTruth{}.Estimate(bin, s)
		if ok && clampPercent(q.Completeness) >= e.opts.CompletenessThreshold &&
			clampPercent(q.Contamination) < e.opts.ContaminationThreshold {
			recovered[g] = true
		}
	}

	var out []result.Metric
	if n := len(s.Truth.Genomes); n > 0 {
		out = append(out, result.Measured("genome_recall", result.ScopeSample, "", float64(len(recovered))/float64(n), "fraction"))
	} else {
		out = append(out, result.Unavailable("genome_recall", result.ScopeSample, "", "fraction", "ground truth lists no genomes"))
	}

	ari, shared := compare.AdjustedRandIndex(b.Partition(), s.Truth.Origin)
	if shared > 0 {
		out = append(out, result.Measured("ari_truth", result.ScopeSample, "", ari, "ari"))
	} else {
		out = append(out, result.Unavailable("ari_truth", result.ScopeSample, "", "ari", "no binned contig has a known origin"))
	}
	if knownBP > 0 {
		out = append(out, result.Measured("purity", result.ScopeSample, "", fraction(dominantBP, knownBP), "fraction"))
	} else {
		out = append(out, result.Unavailable("purity", result.ScopeSample, "", "fraction", "no binned contig has a known origin"))
	}
	return out
}
