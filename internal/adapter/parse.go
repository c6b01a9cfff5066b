package adapter

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/signalnine/metabench/internal/fasta"
	"github.com/signalnine/metabench/internal/result"
)

var fastaExts = []string{".contigs.fa", ".fa", ".fasta", ".fna", ".fas"}

// isFasta reports whether name looks like a (possibly gzipped) FASTA file.
func isFasta(name string) bool {
	name = strings.TrimSuffix(name, ".gz")
	for _, ext := range fastaExts {
		if strings.HasSuffix(name, ext) {
			return true
		}
	}
	return false
}

// BinName strips directories and FASTA/gzip extensions from a bin file name,
// giving the bin id.
func BinName(path string) string {
	name := strings.TrimSuffix(filepath.Base(path), ".gz")
	for _, ext := range fastaExts {
		if strings.HasSuffix(name, ext) {
			return strings.TrimSuffix(name, ext)
		}
	}
	return name
}

// fastaFiles lists FASTA files directly inside dir, sorted.
func fastaFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if e.IsDir() || !isFasta(e.Name()) {
			continue
		}
		out = append(out, filepath.Join(dir, e.Name()))
	}
	sort.Strings(out)
	return out, nil
}

// firstExisting returns the first path that exists.
func firstExisting(paths ...string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

func missing(what, where string) error {
	return fmt.Errorf("%w: %s not found under %s", ErrMissingOutput, what, where)
}

// readContigs reads the assembly, taking coverage from assembler headers
// when present.
func readContigs(ctx context.Context, path string) ([]result.Contig, error) {
	var contigs []result.Contig
	err := fasta.ScanFile(ctx, path, func(r fasta.Record) error {
		c := result.Contig{ID: r.ID, Length: r.Length}
		if cov, ok := fasta.HeaderCoverage(r.Header); ok {
			c.Coverage = cov
		}
		contigs = append(contigs, c)
		return nil
	})
	if err != nil {
		return nil, classify(path, err)
	}
	return contigs, nil
}

// classify maps file errors onto the adapter error taxonomy.
func classify(path string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("%w: %s", ErrMissingOutput, path)
	default:
		return fmt.Errorf("%w: %s: %v", ErrCorruptOutput, path, err)
	}
}

// applyDepths overwrites contig coverage from a depth table. Both the
// jgi_summarize_bam_contig_depths layout (contigName, totalAvgDepth) and a
// plain two-column contig/depth table are accepted.
func applyDepths(contigs []result.Contig, path string) error {
	t, err := readTable(path)
	if err != nil {
		return err
	}
	idCol := t.col("contigName", "contig", "contig_id")
	depthCol := t.col("totalAvgDepth", "depth", "coverage")
	if idCol < 0 || depthCol < 0 {
		return fmt.Errorf("%w: %s lacks contig/depth columns", ErrCorruptOutput, path)
	}
	depth := make(map[string]float64, len(t.rows))
	for _, row := range t.rows {
		v, err := strconv.ParseFloat(cell(row, depthCol), 64)
		if err != nil {
			continue
		}
		depth[cell(row, idCol)] = v
	}
	for i := range contigs {
		if v, ok := depth[contigs[i].ID]; ok {
			contigs[i].Coverage = v
		}
	}
	return nil
}

// applyMarkers attaches single-copy marker hits (contig, marker) to contigs.
func applyMarkers(contigs []result.Contig, path string) error {
	t, err := readTable(path)
	if err != nil {
		return err
	}
	idCol := t.col("contig", "contig_id", "sequence")
	markerCol := t.col("marker", "marker_id", "gene")
	if idCol < 0 || markerCol < 0 {
		return fmt.Errorf("%w: %s lacks contig/marker columns", ErrCorruptOutput, path)
	}
	hits := map[string][]string{}
	for _, row := range t.rows {
		id, m := cell(row, idCol), cell(row, markerCol)
		if id == "" || m == "" {
			continue
		}
		hits[id] = append(hits[id], m)
	}
	for i := range contigs {
		if h, ok := hits[contigs[i].ID]; ok {
			contigs[i].Markers = h
		}
	}
	return nil
}

// ReadQuality merges bin quality reports (CheckM, CheckM2, metaWRAP .stats
// or a plain bin/completeness/contamination table) keyed by bin name.
func ReadQuality(paths []string) (map[string]result.Quality, error) {
	out := map[string]result.Quality{}
	for _, p := range paths {
		t, err := readTable(p)
		if err != nil {
			return nil, err
		}
		idCol := t.col("Name", "Bin Id", "bin", "bin_id", "user_genome", "genome")
		compCol := t.col("Completeness", "completeness")
		contCol := t.col("Contamination", "contamination")
		if idCol < 0 || compCol < 0 || contCol < 0 {
			return nil, fmt.Errorf("%w: %s is not a bin quality report", ErrCorruptOutput, p)
		}
		source := qualitySource(p, t)
		for _, row := range t.rows {
			comp, err1 := strconv.ParseFloat(cell(row, compCol), 64)
			cont, err2 := strconv.ParseFloat(cell(row, contCol), 64)
			if err1 != nil || err2 != nil {
				continue
			}
			out[BinName(cell(row, idCol))] = result.Quality{Completeness: comp, Contamination: cont, Source: source}
		}
	}
	return out, nil
}

func qualitySource(path string, t *table) string {
	name := strings.ToLower(filepath.Base(path))
	switch {
	case strings.Contains(name, "checkm2") || t.col("Completeness_Model_Used") >= 0:
		return "checkm2"
	case strings.Contains(name, "checkm") || t.col("Marker lineage") >= 0:
		return "checkm"
	case strings.HasSuffix(name, ".stats"):
		return "metawrap"
	default:
		return "report"
	}
}

// readBins reads member contig ids of each bin file.
func readBins(ctx context.Context, files []string) ([]result.Bin, error) {
	bins := make([]result.Bin, 0, len(files))
	for _, f := range files {
		ids, err := fasta.IDs(ctx, f)
		if err != nil {
			return nil, classify(f, err)
		}
		bins = append(bins, result.Bin{ID: BinName(f), Members: ids})
	}
	return bins, nil
}

// unbinned lists assembly contigs not in any bin, in assembly order.
func unbinned(contigs []result.Contig, bins []result.Bin) []string {
	in := map[string]bool{}
	for _, b := range bins {
		for _, m := range b.Members {
			in[m] = true
		}
	}
	var out []string
	for _, c := range contigs {
		if !in[c.ID] {
			out = append(out, c.ID)
		}
	}
	return out
}

// buildBinning reads one binning method: bin memberships, quality from the
// located reports, and, failing that, from the inspector.
func buildBinning(ctx context.Context, opts Options, bl BinningLayout, contigs []result.Contig) (result.Binning, error) {
	bins, err := readBins(ctx, bl.Bins)
	if err != nil {
		return result.Binning{}, err
	}
	var quality map[string]result.Quality
	if len(bl.Quality) > 0 {
		quality, err = ReadQuality(bl.Quality)
		if err != nil {
			opts.logger().Warn("bin quality report unreadable", "method", bl.Method, "err", err)
			quality = nil
		}
	}
	if len(quality) == 0 && opts.Inspector != nil && len(bl.Bins) > 0 {
		quality, err = opts.Inspector.Inspect(ctx, bl.Bins)
		if err != nil {
			if ctx.Err() != nil {
				return result.Binning{}, err
			}
			opts.logger().Warn("bin inspection failed", "method", bl.Method, "err", err)
			quality = nil
		}
	}
	for i := range bins {
		if q, ok := quality[bins[i].ID]; ok {
			bins[i].Quality = &q
		}
	}
	return result.Binning{Method: bl.Method, Bins: bins, Unbinned: unbinned(contigs, bins)}, nil
}

// buildBinnings builds every located binning. Locate has already ensured at
// least one exists.
func buildBinnings(ctx context.Context, opts Options, l *Layout, contigs []result.Contig) ([]result.Binning, error) {
	out := make([]result.Binning, 0, len(l.Binnings))
	for _, bl := range l.Binnings {
		b, err := buildBinning(ctx, opts, bl, contigs)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", bl.Method, err)
		}
		out = append(out, b)
	}
	return out, nil
}

// readBinTaxonomy reads a GTDB-Tk style summary (user_genome, classification).
func readBinTaxonomy(path string) (map[string]result.Lineage, error) {
	t, err := readTable(path)
	if err != nil {
		return nil, err
	}
	idCol := t.col("user_genome", "bin", "Name")
	linCol := t.col("classification", "lineage", "taxonomy")
	if idCol < 0 || linCol < 0 {
		return nil, fmt.Errorf("%w: %s lacks user_genome/classification columns", ErrCorruptOutput, path)
	}
	out := map[string]result.Lineage{}
	for _, row := range t.rows {
		if lin := result.ParseLineage(cell(row, linCol)); lin != nil {
			out[BinName(cell(row, idCol))] = lin
		}
	}
	return out, nil
}

// positionalLineage reads a lineage without rank prefixes
// ("Bacteria;Firmicutes;Bacilli"), assigning ranks from domain downwards.
func positionalLineage(s string) result.Lineage {
	if strings.Contains(s, "__") {
		return result.ParseLineage(s)
	}
	lin := result.Lineage{}
	for i, part := range strings.Split(s, ";") {
		part = strings.TrimSpace(part)
		if i >= len(result.Ranks) || part == "" || strings.EqualFold(part, "NA") {
			continue
		}
		lin[result.Ranks[i]] = part
	}
	if len(lin) == 0 {
		return nil
	}
	return lin
}
