package evaluator

import (
	"fmt"

	"github.com/signalnine/metabench/internal/result"
)

// taxonomyMetrics emits unclassified_fraction and one tax_agreement_<rank>
// per evaluated rank. Agreement is bp-weighted over contigs whose true
// lineage is known at that rank; a contig without a prediction disagrees.
func (e *Evaluator) taxonomyMetrics(s *Sample) []result.Metric {
	tax := s.Result.Taxonomy
	out := make([]result.Metric, 0, len(e.opts.Ranks)+1)
	if tax == nil {
		const reason = "no taxonomy stage"
		out = append(out, result.Unavailable("unclassified_fraction", result.ScopeSample, "", "fraction", reason))
		for _, rank := range e.opts.Ranks {
			out = append(out, result.Unavailable(agreementName(rank), result.ScopeSample, "", "fraction", reason))
		}
		return out
	}

	owner := map[string]string{}
	if b, ok := s.Result.Binning(e.opts.BinningMethod); ok {
		owner = b.Partition()
	}

	var total, unclassified int64
	for _, c := range s.Result.Contigs {
		total += int64(c.Length)
		if _, ok := tax.Lookup(c.ID, owner[c.ID]); !ok {
			unclassified += int64(c.Length)
		}
	}
	out = append(out, result.Measured("unclassified_fraction", result.ScopeSample, "", fraction(unclassified, total), "fraction"))

	for _, rank := range e.opts.Ranks {
		name := agreementName(rank)
		if s.Truth == nil || !s.Truth.HasTaxonomy() {
			out = append(out, result.Unavailable(name, result.ScopeSample, "", "fraction", "no ground truth taxonomy"))
			continue
		}
		var known, agree int64
		for _, c := range s.Result.Contigs {
			want, ok := s.Truth.Lineage(c.ID)
			if !ok || want[rank] == "" {
				continue
			}
			known += int64(c.Length)
			if got, ok := tax.Lookup(c.ID, owner[c.ID]); ok && got[rank] == want[rank] {
				agree += int64(c.Length)
			}
		}
		if known == 0 {
			out = append(out, result.Unavailable(name, result.ScopeSample, "", "fraction",
				fmt.Sprintf("no contig has a true %s label", rank)))
			continue
		}
		out = append(out, result.Measured(name, result.ScopeSample, "", fraction(agree, known), "fraction"))
	}
	return out
}

func agreementName(rank result.Rank) string {
	return "tax_agreement_" + string(rank)
}
