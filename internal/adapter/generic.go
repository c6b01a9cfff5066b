package adapter

import (
	"context"
	"os"
	"path/filepath"

	"github.com/signalnine/metabench/internal/result"
)

const GenericName = "generic"

// Generic reads a minimal, tool-agnostic layout, for pipelines without a
// dedicated adapter or for hand-assembled benchmark fixtures:
//
//	assembly.fa[sta|.gz]
//	bins/*.fa               single binning named "bins"
//	bins/<method>/*.fa      one binning per subdirectory
//	bins/<method>/quality.tsv or quality.tsv   bin, completeness, contamination
//	depth.tsv               contig, depth
//	markers.tsv             contig, marker
//	taxonomy.tsv            id (contig or bin), lineage
//
// A root containing a directory named after the sample is descended into.
type Generic struct {
	opts Options
}

func NewGeneric(opts Options) *Generic {
	return &Generic{opts: opts}
}

func (a *Generic) Name() string { return GenericName }

func (a *Generic) Locate(ctx context.Context, root, sample string) (*Layout, error) {
	if fi, err := os.Stat(filepath.Join(root, sample)); err == nil && fi.IsDir() {
		root = filepath.Join(root, sample)
	}
	l := &Layout{Root: root, Sample: sample}
	l.Assembly = firstExisting(
		filepath.Join(root, "assembly.fa"),
		filepath.Join(root, "assembly.fasta"),
		filepath.Join(root, "assembly.fna"),
		filepath.Join(root, "assembly.fa.gz"),
		filepath.Join(root, "assembly.fasta.gz"),
	)
	if l.Assembly == "" {
		return nil, missing("assembly.fa", root)
	}

	binDir := filepath.Join(root, "bins")
	rootQuality := existing(filepath.Join(root, "quality.tsv"))
	if files, err := fastaFiles(binDir); err == nil && len(files) > 0 {
		l.Binnings = append(l.Binnings, BinningLayout{
			Method:  "bins",
			Bins:    files,
			Quality: append(existing(filepath.Join(binDir, "quality.tsv")), rootQuality...),
		})
	}
	entries, _ := os.ReadDir(binDir)
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		dir := filepath.Join(binDir, e.Name())
		files, err := fastaFiles(dir)
		if err != nil || len(files) == 0 {
			continue
		}
		l.Binnings = append(l.Binnings, BinningLayout{
			Method:  e.Name(),
			Bins:    files,
			Quality: append(existing(filepath.Join(dir, "quality.tsv")), rootQuality...),
		})
	}
	if len(l.Binnings) == 0 {
		return nil, missing("bins", root)
	}
	l.Depths = firstExisting(filepath.Join(root, "depth.tsv"))
	l.Markers = firstExisting(filepath.Join(root, "markers.tsv"))
	l.Taxonomy = existing(filepath.Join(root, "taxonomy.tsv"))
	return l, nil
}

func (a *Generic) ParseAssembly(ctx context.Context, l *Layout) ([]result.Contig, error) {
	contigs, err := readContigs(ctx, l.Assembly)
	if err != nil {
		return nil, err
	}
	if l.Depths != "" {
		if err := applyDepths(contigs, l.Depths); err != nil {
			a.opts.logger().Warn("depth table unreadable", "path", l.Depths, "err", err)
		}
	}
	if l.Markers != "" {
		if err := applyMarkers(contigs, l.Markers); err != nil {
			a.opts.logger().Warn("marker table unreadable", "path", l.Markers, "err", err)
		}
	}
	return contigs, nil
}

func (a *Generic) ParseBins(ctx context.Context, l *Layout, contigs []result.Contig) ([]result.Binning, error) {
	return buildBinnings(ctx, a.opts, l, contigs)
}

// ParseTaxonomy assigns each row to the contig of that id, or otherwise to
// the bin of that id.
func (a *Generic) ParseTaxonomy(ctx context.Context, l *Layout, contigs []result.Contig) (*result.Taxonomy, error) {
	if len(l.Taxonomy) == 0 {
		return nil, nil
	}
	t, err := readTable(l.Taxonomy[0])
	if err != nil {
		return nil, err
	}
	idCol := t.col("id", "contig", "bin", "sequence")
	linCol := t.col("lineage", "classification", "taxonomy")
	if idCol < 0 || linCol < 0 {
		return nil, missing("id/lineage columns", l.Taxonomy[0])
	}
	known := make(map[string]bool, len(contigs))
	for _, c := range contigs {
		known[c.ID] = true
	}
	tax := &result.Taxonomy{Contigs: map[string]result.Lineage{}, Bins: map[string]result.Lineage{}}
	for _, row := range t.rows {
		id := cell(row, idCol)
		lin := positionalLineage(cell(row, linCol))
		if id == "" || lin == nil {
			continue
		}
		if known[id] {
			tax.Contigs[id] = lin
		} else {
			tax.Bins[BinName(id)] = lin
		}
	}
	return tax, nil
}
