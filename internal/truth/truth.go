// Package truth models known genome membership of contigs for synthetic and
// mock communities.
package truth

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/signalnine/metabench/internal/result"
	"gopkg.in/yaml.v3"
)

var ErrMalformed = errors.New("malformed gold standard")

type Genome struct {
	ID      string         `json:"id"`
	TaxID   string         `json:"taxid,omitempty"`
	Lineage result.Lineage `json:"lineage,omitempty"`
	// Length is the reference genome size in bp when known.
	Length int64 `json:"length,omitempty"`
}

// GroundTruth maps the contigs of one assembly to their genome of origin.
type GroundTruth struct {
	Sample       string             `json:"sample,omitempty"`
	Genomes      map[string]*Genome `json:"genomes"`
	Origin       map[string]string  `json:"origin"`
	ContigLength map[string]int     `json:"contig_length,omitempty"`
}

func New() *GroundTruth {
	return &GroundTruth{
		Genomes:      map[string]*Genome{},
		Origin:       map[string]string{},
		ContigLength: map[string]int{},
	}
}

// GenomeOf returns the genome a contig came from.
func (g *GroundTruth) GenomeOf(contig string) (string, bool) {
	id, ok := g.Origin[contig]
	return id, ok
}

// Lineage returns the known lineage of the genome a contig came from.
func (g *GroundTruth) Lineage(contig string) (result.Lineage, bool) {
	id, ok := g.Origin[contig]
	if !ok {
		return nil, false
	}
	gen, ok := g.Genomes[id]
	if !ok || len(gen.Lineage) == 0 {
		return nil, false
	}
	return gen.Lineage, true
}

// HasTaxonomy reports whether any genome carries a lineage.
func (g *GroundTruth) HasTaxonomy() bool {
	for _, gen := range g.Genomes {
		if len(gen.Lineage) > 0 {
			return true
		}
	}
	return false
}

// GenomeIDs returns genome ids sorted.
func (g *GroundTruth) GenomeIDs() []string {
	ids := make([]string, 0, len(g.Genomes))
	for id := range g.Genomes {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Load reads a CAMI binning gold standard and, when genomesPath is set, a
// YAML genome description file.
func Load(binningPath, genomesPath string) (*GroundTruth, error) {
	f, err := os.Open(binningPath)
	if err != nil {
		return nil, fmt.Errorf("opening gold standard: %w", err)
	}
	defer f.Close()
	gt, err := ParseBinning(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", binningPath, err)
	}
	if genomesPath == "" {
		return gt, nil
	}
	g, err := os.Open(genomesPath)
	if err != nil {
		return nil, fmt.Errorf("opening genomes file: %w", err)
	}
	defer g.Close()
	if err := ParseGenomes(g, gt); err != nil {
		return nil, fmt.Errorf("%s: %w", genomesPath, err)
	}
	return gt, nil
}

// ParseBinning reads the CAMI binning format:
//
//	@Version:0.9.1
//	@SampleID:S1
//	@@SEQUENCEID	BINID	TAXID	_LENGTH
//	contig_1	genome_a	562	12000
//
// SEQUENCEID and BINID columns are required; TAXID and _LENGTH are optional.
func ParseBinning(r io.Reader) (*GroundTruth, error) {
	gt := New()
	sc := bufio.NewScanner(r)
	cols := map[string]int{}
	lineNo := 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(line) == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, "@@") {
			for i, name := range strings.Split(strings.TrimPrefix(line, "@@"), "\t") {
				cols[strings.ToUpper(strings.TrimSpace(name))] = i
			}
			continue
		}
		if strings.HasPrefix(line, "@") {
			key, val, _ := strings.Cut(strings.TrimPrefix(line, "@"), ":")
			if strings.EqualFold(key, "SampleID") {
				gt.Sample = strings.TrimSpace(val)
			}
			continue
		}
		seqCol, okSeq := cols["SEQUENCEID"]
		binCol, okBin := cols["BINID"]
		if !okSeq || !okBin {
			return nil, fmt.Errorf("%w: line %d: data before @@SEQUENCEID/BINID header", ErrMalformed, lineNo)
		}
		fields := strings.Split(line, "\t")
		if len(fields) <= seqCol || len(fields) <= binCol {
			return nil, fmt.Errorf("%w: line %d: expected %d columns", ErrMalformed, lineNo, len(cols))
		}
		contig, genome := fields[seqCol], fields[binCol]
		gt.Origin[contig] = genome
		gen, ok := gt.Genomes[genome]
		if !ok {
			gen = &Genome{ID: genome}
			gt.Genomes[genome] = gen
		}
		if i, ok := cols["TAXID"]; ok && i < len(fields) && gen.TaxID == "" {
			gen.TaxID = fields[i]
		}
		if i, ok := cols["_LENGTH"]; ok && i < len(fields) {
			n, err := strconv.Atoi(fields[i])
			if err != nil {
				return nil, fmt.Errorf("%w: line %d: bad length %q", ErrMalformed, lineNo, fields[i])
			}
			gt.ContigLength[contig] = n
		}
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	if len(gt.Origin) == 0 {
		return nil, fmt.Errorf("%w: no sequence assignments", ErrMalformed)
	}
	return gt, nil
}

type genomesFile struct {
	Genomes map[string]struct {
		Lineage string `yaml:"lineage"`
		Length  int64  `yaml:"length"`
	} `yaml:"genomes"`
}

// ParseGenomes merges genome lineages and sizes from YAML:
//
//	genomes:
//	  genome_a:
//	    lineage: d__Bacteria;p__Pseudomonadota;...;s__Escherichia coli
//	    length: 4641652
func ParseGenomes(r io.Reader, gt *GroundTruth) error {
	var doc genomesFile
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		return fmt.Errorf("parsing genomes: %w", err)
	}
	for id, entry := range doc.Genomes {
		gen, ok := gt.Genomes[id]
		if !ok {
			gen = &Genome{ID: id}
			gt.Genomes[id] = gen
		}
		gen.Lineage = result.ParseLineage(entry.Lineage)
		gen.Length = entry.Length
	}
	return nil
}
