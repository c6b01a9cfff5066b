package adapter

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signalnine/metabench/internal/result"
)

const MetaWRAPName = "metawrap"

// MetaWRAP reads a per-sample metaWRAP output directory:
//
//	ASSEMBLY/final_assembly.fasta
//	INITIAL_BINNING/<binner>_bins/*.fa
//	BIN_REFINEMENT/<binner>_bins.stats
//	BIN_REFINEMENT/metawrap_<c>_<x>_bins/*.fa (+ .stats)
//	BIN_CLASSIFICATION/bin_taxonomy.tab
//
// A root containing a directory named after the sample is descended into.
type MetaWRAP struct {
	opts Options
}

func NewMetaWRAP(opts Options) *MetaWRAP {
	return &MetaWRAP{opts: opts}
}

func (a *MetaWRAP) Name() string { return MetaWRAPName }

func (a *MetaWRAP) Locate(ctx context.Context, root, sample string) (*Layout, error) {
	if fi, err := os.Stat(filepath.Join(root, sample)); err == nil && fi.IsDir() {
		root = filepath.Join(root, sample)
	}
	l := &Layout{Root: root, Sample: sample}
	l.Assembly = firstExisting(
		filepath.Join(root, "ASSEMBLY", "final_assembly.fasta"),
		filepath.Join(root, "ASSEMBLY", "final_assembly.fasta.gz"),
	)
	if l.Assembly == "" {
		return nil, missing("ASSEMBLY/final_assembly.fasta", root)
	}

	refine := filepath.Join(root, "BIN_REFINEMENT")
	initial, _ := os.ReadDir(filepath.Join(root, "INITIAL_BINNING"))
	for _, e := range initial {
		if !e.IsDir() || !strings.HasSuffix(e.Name(), "_bins") {
			continue
		}
		files, err := fastaFiles(filepath.Join(root, "INITIAL_BINNING", e.Name()))
		if err != nil || len(files) == 0 {
			continue
		}
		l.Binnings = append(l.Binnings, BinningLayout{
			Method:  strings.TrimSuffix(e.Name(), "_bins"),
			Bins:    files,
			Quality: existing(filepath.Join(refine, e.Name()+".stats")),
		})
	}
	refined, _ := os.ReadDir(refine)
	for _, e := range refined {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), "metawrap_") || !strings.HasSuffix(e.Name(), "_bins") {
			continue
		}
		files, err := fastaFiles(filepath.Join(refine, e.Name()))
		if err != nil || len(files) == 0 {
			continue
		}
		l.Binnings = append(l.Binnings, BinningLayout{
			Method:  strings.TrimSuffix(e.Name(), "_bins"),
			Bins:    files,
			Quality: existing(filepath.Join(refine, e.Name()+".stats")),
		})
	}
	if len(l.Binnings) == 0 {
		return nil, missing("bins", root)
	}
	// refined bins first: they are what metaWRAP reports as its result
	sort.SliceStable(l.Binnings, func(i, j int) bool {
		ri := strings.HasPrefix(l.Binnings[i].Method, "metawrap_")
		rj := strings.HasPrefix(l.Binnings[j].Method, "metawrap_")
		if ri != rj {
			return ri
		}
		return l.Binnings[i].Method < l.Binnings[j].Method
	})
	l.Taxonomy = existing(filepath.Join(root, "BIN_CLASSIFICATION", "bin_taxonomy.tab"))
	return l, nil
}

func (a *MetaWRAP) ParseAssembly(ctx context.Context, l *Layout) ([]result.Contig, error) {
	return readContigs(ctx, l.Assembly)
}

func (a *MetaWRAP) ParseBins(ctx context.Context, l *Layout, contigs []result.Contig) ([]result.Binning, error) {
	return buildBinnings(ctx, a.opts, l, contigs)
}

// ParseTaxonomy reads bin_taxonomy.tab, which has no header: bin name then a
// prefix-free lineage.
func (a *MetaWRAP) ParseTaxonomy(ctx context.Context, l *Layout, contigs []result.Contig) (*result.Taxonomy, error) {
	if len(l.Taxonomy) == 0 {
		return nil, nil
	}
	data, err := os.ReadFile(l.Taxonomy[0])
	if err != nil {
		return nil, err
	}
	bins := map[string]result.Lineage{}
	for _, line := range strings.Split(string(data), "\n") {
		id, lineage, ok := strings.Cut(strings.TrimSpace(line), "\t")
		if !ok {
			continue
		}
		if lin := positionalLineage(lineage); lin != nil {
			bins[BinName(id)] = lin
		}
	}
	return &result.Taxonomy{Bins: bins}, nil
}
