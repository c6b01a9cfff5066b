package result

import (
	"errors"
	"fmt"
	"sort"
)

var (
	ErrDuplicateContig     = errors.New("duplicate contig id")
	ErrUnknownContig       = errors.New("bin references unknown contig")
	ErrDuplicateMembership = errors.New("contig assigned to more than one bin")
	ErrDuplicateBin        = errors.New("duplicate bin id")
)

// PipelineResult is the canonical output of one pipeline run on one sample.
// Adapters build it once; everything downstream treats it as read-only.
type PipelineResult struct {
	Pipeline string        `json:"pipeline"`
	Sample   string        `json:"sample"`
	Adapter  string        `json:"adapter"`
	Contigs  []Contig      `json:"contigs"`
	Binnings []Binning     `json:"binnings"`
	Taxonomy *Taxonomy     `json:"taxonomy,omitempty"`
	Assembly AssemblyStats `json:"assembly"`
}

type Contig struct {
	ID       string   `json:"id"`
	Length   int      `json:"length"`
	Coverage float64  `json:"coverage,omitempty"`
	Markers  []string `json:"markers,omitempty"`
}

// Binning is the output of a single binning method. Contigs not placed in
// any bin are listed in Unbinned.
type Binning struct {
	Method   string   `json:"method"`
	Bins     []Bin    `json:"bins"`
	Unbinned []string `json:"unbinned,omitempty"`
}

type Bin struct {
	ID      string   `json:"id"`
	Members []string `json:"members"`
	Quality *Quality `json:"quality,omitempty"`
}

// Quality is a completeness/contamination estimate in percent.
type Quality struct {
	Completeness  float64 `json:"completeness"`
	Contamination float64 `json:"contamination"`
	Source        string  `json:"source,omitempty"`
}

// Taxonomy holds per-contig and per-bin lineage assignments. Either map may
// be empty when the classifier only works at one level.
type Taxonomy struct {
	Contigs map[string]Lineage `json:"contigs,omitempty"`
	Bins    map[string]Lineage `json:"bins,omitempty"`
}

type AssemblyStats struct {
	TotalLength int64 `json:"total_length"`
	N50         int   `json:"n50"`
	L50         int   `json:"l50"`
	ContigCount int   `json:"contig_count"`
}

// ComputeAssemblyStats derives length statistics over contigs with length >=
// minLength. N50 is the length of the contig at which the cumulative length,
// summed from the longest contig down, first reaches half the total; L50 is
// the number of contigs needed to get there.
func ComputeAssemblyStats(contigs []Contig, minLength int) AssemblyStats {
	lengths := make([]int, 0, len(contigs))
	var total int64
	for _, c := range contigs {
		if c.Length < minLength {
			continue
		}
		lengths = append(lengths, c.Length)
		total += int64(c.Length)
	}
	stats := AssemblyStats{TotalLength: total, ContigCount: len(lengths)}
	if total == 0 {
		return stats
	}
	sort.Sort(sort.Reverse(sort.IntSlice(lengths)))
	var cum int64
	for i, l := range lengths {
		cum += int64(l)
		if cum*2 >= total {
			stats.N50 = l
			stats.L50 = i + 1
			break
		}
	}
	return stats
}

// Validate checks the structural invariants of the schema: unique contig
// ids, bins referencing known contigs, and each binning partitioning its
// contigs.
func (r *PipelineResult) Validate() error {
	known := make(map[string]struct{}, len(r.Contigs))
	for _, c := range r.Contigs {
		if _, dup := known[c.ID]; dup {
			return fmt.Errorf("%w: %s", ErrDuplicateContig, c.ID)
		}
		known[c.ID] = struct{}{}
	}
	for _, b := range r.Binnings {
		binIDs := make(map[string]struct{}, len(b.Bins))
		owner := make(map[string]string)
		for _, bin := range b.Bins {
			if _, dup := binIDs[bin.ID]; dup {
				return fmt.Errorf("%w: %s in %s", ErrDuplicateBin, bin.ID, b.Method)
			}
			binIDs[bin.ID] = struct{}{}
			for _, m := range bin.Members {
				if _, ok := known[m]; !ok {
					return fmt.Errorf("%w: bin %s references %s", ErrUnknownContig, bin.ID, m)
				}
				if prev, taken := owner[m]; taken {
					return fmt.Errorf("%w: %s in %s and %s (%s)", ErrDuplicateMembership, m, prev, bin.ID, b.Method)
				}
				owner[m] = bin.ID
			}
		}
		for _, u := range b.Unbinned {
			if _, ok := known[u]; !ok {
				return fmt.Errorf("%w: unbinned list of %s references %s", ErrUnknownContig, b.Method, u)
			}
			if prev, taken := owner[u]; taken {
				return fmt.Errorf("%w: %s listed unbinned but in %s (%s)", ErrDuplicateMembership, u, prev, b.Method)
			}
		}
	}
	return nil
}

// Binning returns the binning produced by method. An empty method selects
// the first binning.
func (r *PipelineResult) Binning(method string) (*Binning, bool) {
	if len(r.Binnings) == 0 {
		return nil, false
	}
	if method == "" {
		return &r.Binnings[0], true
	}
	for i := range r.Binnings {
		if r.Binnings[i].Method == method {
			return &r.Binnings[i], true
		}
	}
	return nil, false
}

// Partition maps each binned contig to its bin id for the given method.
func (r *PipelineResult) Partition(method string) (map[string]string, bool) {
	b, ok := r.Binning(method)
	if !ok {
		return nil, false
	}
	return b.Partition(), true
}

func (b *Binning) Partition() map[string]string {
	p := make(map[string]string)
	for _, bin := range b.Bins {
		for _, m := range bin.Members {
			p[m] = bin.ID
		}
	}
	return p
}

// SortedBins returns a copy of the bins ordered by id.
func (b *Binning) SortedBins() []Bin {
	bins := make([]Bin, len(b.Bins))
	copy(bins, b.Bins)
	sort.Slice(bins, func(i, j int) bool { return bins[i].ID < bins[j].ID })
	return bins
}

// ContigLengths indexes contig lengths by id.
func (r *PipelineResult) ContigLengths() map[string]int {
	m := make(map[string]int, len(r.Contigs))
	for _, c := range r.Contigs {
		m[c.ID] = c.Length
	}
	return m
}

// Methods lists the binning methods in the order the adapter produced them.
func (r *PipelineResult) Methods() []string {
	out := make([]string, len(r.Binnings))
	for i, b := range r.Binnings {
		out[i] = b.Method
	}
	return out
}
