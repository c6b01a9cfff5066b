package fasta

import (
	"strconv"
	"strings"
)

// HeaderCoverage extracts the k-mer coverage assemblers embed in contig
// headers: MEGAHIT ("k141_1 flag=1 multi=5.0000 len=300") and SPAdes
// ("NODE_1_length_300_cov_5.2"). It reports false when neither is present.
func HeaderCoverage(header string) (float64, bool) {
	for _, field := range strings.Fields(header) {
		if v, ok := strings.CutPrefix(field, "multi="); ok {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				return f, true
			}
		}
	}
	id := header
	if i := strings.IndexAny(id, " \t"); i >= 0 {
		id = id[:i]
	}
	if i := strings.Index(id, "_cov_"); i >= 0 {
		v := id[i+len("_cov_"):]
		if j := strings.IndexByte(v, '_'); j >= 0 {
			v = v[:j]
		}
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f, true
		}
	}
	return 0, false
}
