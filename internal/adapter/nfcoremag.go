package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/signalnine/metabench/internal/result"
)

const NFCoreMagName = "nf-core/mag"

// assemblers in default preference order.
var magAssemblers = []string{"MEGAHIT", "SPAdes", "SPAdesHybrid"}

// NFCoreMag reads the --outdir of an nf-core/mag run:
//
//	Assembly/<Assembler>/<Assembler>-<sample>.contigs.fa.gz
//	Assembly/SPAdes/SPAdes-<sample>_scaffolds.fasta.gz
//	GenomeBinning/<Binner>/bins/<Assembler>-<Binner>-<sample>.<n>.fa.gz
//	GenomeBinning/depths/contigs/<Assembler>-<sample>-depth.txt.gz
//	GenomeBinning/QC/checkm2_summary.tsv | checkm_summary.tsv
//	Taxonomy/GTDB-Tk/gtdbtk_summary.tsv
//
// The "assembler" param pins one assembler; otherwise the first found in
// MEGAHIT, SPAdes, SPAdesHybrid order is used.
type NFCoreMag struct {
	opts Options
}

func NewNFCoreMag(opts Options) *NFCoreMag {
	return &NFCoreMag{opts: opts}
}

func (a *NFCoreMag) Name() string { return NFCoreMagName }

func (a *NFCoreMag) Locate(ctx context.Context, root, sample string) (*Layout, error) {
	if _, err := os.Stat(root); err != nil {
		return nil, missing("output directory", root)
	}
	assemblers := magAssemblers
	if pinned := a.opts.Params["assembler"]; pinned != "" {
		assemblers = []string{pinned}
	}

	l := &Layout{Root: root, Sample: sample}
	var assembler string
	for _, asm := range assemblers {
		dir := filepath.Join(root, "Assembly", asm)
		path := firstExisting(
			filepath.Join(dir, fmt.Sprintf("%s-%s.contigs.fa.gz", asm, sample)),
			filepath.Join(dir, fmt.Sprintf("%s-%s.contigs.fa", asm, sample)),
			filepath.Join(dir, fmt.Sprintf("%s-%s_scaffolds.fasta.gz", asm, sample)),
			filepath.Join(dir, fmt.Sprintf("%s-%s_scaffolds.fasta", asm, sample)),
		)
		if path != "" {
			l.Assembly, assembler = path, asm
			break
		}
	}
	if l.Assembly == "" {
		return nil, missing(fmt.Sprintf("assembly for sample %s", sample), filepath.Join(root, "Assembly"))
	}

	binRoot := filepath.Join(root, "GenomeBinning")
	qc := existing(firstExisting(
		filepath.Join(binRoot, "QC", "checkm2_summary.tsv"),
		filepath.Join(binRoot, "QC", "checkm_summary.tsv"),
	))
	binners, _ := os.ReadDir(binRoot)
	for _, e := range binners {
		if !e.IsDir() {
			continue
		}
		files, err := fastaFiles(filepath.Join(binRoot, e.Name(), "bins"))
		if err != nil {
			continue
		}
		var mine []string
		for _, f := range files {
			if magBinBelongs(filepath.Base(f), assembler, sample) {
				mine = append(mine, f)
			}
		}
		if len(mine) == 0 {
			continue
		}
		l.Binnings = append(l.Binnings, BinningLayout{Method: e.Name(), Bins: mine, Quality: qc})
	}
	if len(l.Binnings) == 0 {
		return nil, missing(fmt.Sprintf("bins for %s-%s", assembler, sample), binRoot)
	}
	sort.Slice(l.Binnings, func(i, j int) bool { return l.Binnings[i].Method < l.Binnings[j].Method })

	l.Depths = firstExisting(
		filepath.Join(binRoot, "depths", "contigs", fmt.Sprintf("%s-%s-depth.txt.gz", assembler, sample)),
		filepath.Join(binRoot, "depths", "contigs", fmt.Sprintf("%s-%s-depth.txt", assembler, sample)),
	)
	l.Taxonomy = existing(filepath.Join(root, "Taxonomy", "GTDB-Tk", "gtdbtk_summary.tsv"))
	return l, nil
}

// magBinBelongs matches "<assembler>-<binner>-<sample>.<n>.fa[.gz]" exactly
// on the sample name. Binner names carry no hyphen, so everything after the
// binner token up to the bin number is the sample.
func magBinBelongs(name, assembler, sample string) bool {
	rest, ok := strings.CutPrefix(BinName(name), assembler+"-")
	if !ok {
		return false
	}
	_, rest, ok = strings.Cut(rest, "-")
	if !ok {
		return false
	}
	dot := strings.LastIndex(rest, ".")
	if dot < 0 {
		return false
	}
	return rest[:dot] == sample
}

func (a *NFCoreMag) ParseAssembly(ctx context.Context, l *Layout) ([]result.Contig, error) {
	contigs, err := readContigs(ctx, l.Assembly)
	if err != nil {
		return nil, err
	}
	if l.Depths != "" {
		if err := applyDepths(contigs, l.Depths); err != nil {
			a.opts.logger().Warn("depth table unreadable, using header coverage", "path", l.Depths, "err", err)
		}
	}
	return contigs, nil
}

func (a *NFCoreMag) ParseBins(ctx context.Context, l *Layout, contigs []result.Contig) ([]result.Binning, error) {
	return buildBinnings(ctx, a.opts, l, contigs)
}

func (a *NFCoreMag) ParseTaxonomy(ctx context.Context, l *Layout, contigs []result.Contig) (*result.Taxonomy, error) {
	if len(l.Taxonomy) == 0 {
		return nil, nil
	}
	bins, err := readBinTaxonomy(l.Taxonomy[0])
	if err != nil {
		return nil, err
	}
	return &result.Taxonomy{Bins: bins}, nil
}

// existing filters paths down to those that exist.
func existing(paths ...string) []string {
	var out []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			out = append(out, p)
		}
	}
	return out
}
