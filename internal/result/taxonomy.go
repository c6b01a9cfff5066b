package result

import "strings"

type Rank string

const (
	RankDomain  Rank = "domain"
	RankPhylum  Rank = "phylum"
	RankClass   Rank = "class"
	RankOrder   Rank = "order"
	RankFamily  Rank = "family"
	RankGenus   Rank = "genus"
	RankSpecies Rank = "species"
)

// Ranks lists the evaluated ranks from broadest to narrowest.
var Ranks = []Rank{RankDomain, RankPhylum, RankClass, RankOrder, RankFamily, RankGenus, RankSpecies}

var rankAliases = map[string]Rank{
	"d":            RankDomain,
	"k":            RankDomain,
	"domain":       RankDomain,
	"superkingdom": RankDomain,
	"kingdom":      RankDomain,
	"p":            RankPhylum,
	"phylum":       RankPhylum,
	"c":            RankClass,
	"class":        RankClass,
	"o":            RankOrder,
	"order":        RankOrder,
	"f":            RankFamily,
	"family":       RankFamily,
	"g":            RankGenus,
	"genus":        RankGenus,
	"s":            RankSpecies,
	"species":      RankSpecies,
}

// ParseRank accepts full rank names, "superkingdom" and single-letter GTDB
// prefixes.
func ParseRank(s string) (Rank, bool) {
	r, ok := rankAliases[strings.ToLower(strings.TrimSpace(s))]
	return r, ok
}

// Lineage maps rank to label. Ranks without an assignment are absent.
type Lineage map[Rank]string

// ParseLineage reads a semicolon separated lineage in GTDB style
// ("d__Bacteria;p__Bacillota;...;s__"). Empty labels are skipped, and
// "Unclassified" strings yield nil.
func ParseLineage(s string) Lineage {
	s = strings.TrimSpace(s)
	if s == "" || strings.HasPrefix(strings.ToLower(s), "unclassified") {
		return nil
	}
	lin := Lineage{}
	for _, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		prefix, label, ok := strings.Cut(part, "__")
		if !ok {
			continue
		}
		rank, ok := ParseRank(prefix)
		if !ok || label == "" {
			continue
		}
		lin[rank] = label
	}
	if len(lin) == 0 {
		return nil
	}
	return lin
}

// Deepest returns the narrowest assigned rank.
func (l Lineage) Deepest() (Rank, bool) {
	for i := len(Ranks) - 1; i >= 0; i-- {
		if _, ok := l[Ranks[i]]; ok {
			return Ranks[i], true
		}
	}
	return "", false
}

// Lookup returns the lineage assigned to a contig, falling back to the
// lineage of the bin containing it.
func (t *Taxonomy) Lookup(contigID, binID string) (Lineage, bool) {
	if t == nil {
		return nil, false
	}
	if lin, ok := t.Contigs[contigID]; ok && len(lin) > 0 {
		return lin, true
	}
	if binID != "" {
		if lin, ok := t.Bins[binID]; ok && len(lin) > 0 {
			return lin, true
		}
	}
	return nil, false
}
