package evaluator

import (
	"sort"

	"github.com/signalnine/metabench/internal/result"
	"github.com/signalnine/metabench/internal/truth"
)

// Estimator names accepted in Options.
const (
	EstimatorReported = "reported"
	EstimatorMarkers  = "markers"
	EstimatorTruth    = "truth"
	EstimatorAuto     = "auto"
)

var estimatorNames = []string{EstimatorAuto, EstimatorMarkers, EstimatorReported, EstimatorTruth}

// EstimatorNames lists the accepted estimator names, sorted.
func EstimatorNames() []string {
	return append([]string(nil), estimatorNames...)
}

// Sample is what an estimator may consult about the sample a bin came from.
type Sample struct {
	Result *result.PipelineResult
	Truth  *truth.GroundTruth

	contigs   map[string]result.Contig
	markerSet int
}

func newSample(r *result.PipelineResult, gt *truth.GroundTruth, markerSetSize int) *Sample {
	s := &Sample{Result: r, Truth: gt, contigs: make(map[string]result.Contig, len(r.Contigs))}
	distinct := map[string]bool{}
	for _, c := range r.Contigs {
		s.contigs[c.ID] = c
		for _, m := range c.Markers {
			distinct[m] = true
		}
	}
	s.markerSet = markerSetSize
	if s.markerSet <= 0 {
		s.markerSet = len(distinct)
	}
	return s
}

// Contig returns the assembly record of id.
func (s *Sample) Contig(id string) (result.Contig, bool) {
	c, ok := s.contigs[id]
	return c, ok
}

// MarkerSetSize is the number of markers a complete genome carries.
func (s *Sample) MarkerSetSize() int { return s.markerSet }

// QualityEstimator produces a completeness/contamination estimate for one
// bin, or false when it has nothing to go on.
type QualityEstimator interface {
	Name() string
	Estimate(bin result.Bin, s *Sample) (result.Quality, bool)
}

// NewEstimator returns the estimator registered under name.
func NewEstimator(name string) (QualityEstimator, bool) {
	switch name {
	case EstimatorReported:
		return reported{}, true
	case EstimatorMarkers:
		return markers{}, true
	case EstimatorTruth:
		return fromTruth{}, true
	case EstimatorAuto, "":
		return auto{}, true
	}
	return nil, false
}

// reported passes through the estimate the pipeline's own QC step produced.
type reported struct{}

func (reported) Name() string { return EstimatorReported }

func (reported) Estimate(bin result.Bin, _ *Sample) (result.Quality, bool) {
	if bin.Quality == nil {
		return result.Quality{}, false
	}
	return *bin.Quality, true
}

// markers applies the single-copy marker convention: completeness is the
// share of the marker set found at least once, contamination counts every
// extra copy against the set size.
type markers struct{}

func (markers) Name() string { return EstimatorMarkers }

func (markers) Estimate(bin result.Bin, s *Sample) (result.Quality, bool) {
	if s.markerSet == 0 {
		return result.Quality{}, false
	}
	counts := map[string]int{}
	for _, id := range bin.Members {
		c, ok := s.contigs[id]
		if !ok {
			continue
		}
		for _, m := range c.Markers {
			counts[m]++
		}
	}
	extra := 0
	for _, n := range counts {
		extra += n - 1
	}
	size := float64(s.markerSet)
	return result.Quality{
		Completeness:  float64(len(counts)) / size * 100,
		Contamination: float64(extra) / size * 100,
		Source:        EstimatorMarkers,
	}, true
}

// fromTruth scores a bin against its dominant source genome.
type fromTruth struct{}

func (fromTruth) Name() string { return EstimatorTruth }

func (fromTruth) Estimate(bin result.Bin, s *Sample) (result.Quality, bool) {
	if s.Truth == nil {
		return result.Quality{}, false
	}
	g, own, other, ok := dominantGenome(bin, s)
	if !ok || own == 0 {
		return result.Quality{}, false
	}
	genomeLen := genomeLength(g, s)
	if genomeLen == 0 {
		return result.Quality{}, false
	}
	return result.Quality{
		Completeness:  float64(own) / float64(genomeLen) * 100,
		Contamination: float64(other) / float64(own) * 100,
		Source:        EstimatorTruth,
	}, true
}

// auto prefers ground truth, then marker hits, then the reported estimate,
// falling through when a source has nothing to say about the bin.
type auto struct{}

func (auto) Name() string { return EstimatorAuto }

func (auto) Estimate(bin result.Bin, s *Sample) (result.Quality, bool) {
	if q, ok := (fromTruth{}).Estimate(bin, s); ok {
		return q, true
	}
	if hasMarkerHits(bin, s) {
		if q, ok := (markers{}).Estimate(bin, s); ok {
			return q, true
		}
	}
	return reported{}.Estimate(bin, s)
}

// hasMarkerHits reports whether any member contig of bin carries a marker.
func hasMarkerHits(bin result.Bin, s *Sample) bool {
	for _, id := range bin.Members {
		if len(s.contigs[id].Markers) > 0 {
			return true
		}
	}
	return false
}

// dominantGenome returns the genome contributing most bp to bin (ties to the
// smaller genome id), its bp, and the bp of all other known genomes.
func dominantGenome(bin result.Bin, s *Sample) (genome string, own, other int64, ok bool) {
	bp := map[string]int64{}
	for _, id := range bin.Members {
		g, known := s.Truth.GenomeOf(id)
		if !known {
			continue
		}
		bp[g] += int64(s.contigs[id].Length)
	}
	if len(bp) == 0 {
		return "", 0, 0, false
	}
	ids := make([]string, 0, len(bp))
	for g := range bp {
		ids = append(ids, g)
	}
	sort.Strings(ids)
	var total int64
	for _, g := range ids {
		total += bp[g]
		if genome == "" || bp[g] > bp[genome] {
			genome = g
		}
	}
	return genome, bp[genome], total - bp[genome], true
}

// genomeLength is the reference length of g when known, else the summed
// gold-standard sequence lengths of g, else the bp of the assembly
// attributed to g.
func genomeLength(g string, s *Sample) int64 {
	if gen, ok := s.Truth.Genomes[g]; ok && gen.Length > 0 {
		return gen.Length
	}
	var n int64
	for contig, length := range s.Truth.ContigLength {
		if origin, ok := s.Truth.GenomeOf(contig); ok && origin == g {
			n += int64(length)
		}
	}
	if n > 0 {
		return n
	}
	for _, c := range s.Result.Contigs {
		if origin, ok := s.Truth.GenomeOf(c.ID); ok && origin == g {
			n += int64(c.Length)
		}
	}
	return n
}
