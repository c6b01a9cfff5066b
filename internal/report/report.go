// Package report renders stored evaluation runs as a table, markdown or JSON.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"path/filepath"
	"strings"
	"text/tabwriter"

	"github.com/signalnine/metabench/internal/compare"
	"github.com/signalnine/metabench/internal/result"
)

// Columns are the sample-level metrics shown in metric tables.
var Columns = []string{
	"total_length", "n50", "l50", "contig_count",
	"bin_count", "hq_bins", "mean_completeness", "mean_contamination",
	"binned_fraction", "ari_truth", "unclassified_fraction",
}

var headers = map[string]string{
	"total_length":          "TOTAL BP",
	"n50":                   "N50",
	"l50":                   "L50",
	"contig_count":          "CONTIGS",
	"bin_count":             "BINS",
	"hq_bins":               "HQ BINS",
	"mean_completeness":     "MEAN COMPL",
	"mean_contamination":    "MEAN CONTAM",
	"binned_fraction":       "BINNED",
	"ari_truth":             "ARI (TRUTH)",
	"unclassified_fraction": "UNCLASSIFIED",
}

// Run is everything stored for one run directory.
type Run struct {
	Info       *result.RunInfo      `json:"run,omitempty"`
	Metrics    []*result.MetricSet  `json:"metrics"`
	Comparison *compare.Report      `json:"comparison,omitempty"`
	Failures   []result.UnitFailure `json:"failures,omitempty"`
}

// Load reads a run directory. The comparison is optional.
func Load(runDir string) (*Run, error) {
	sets, err := result.CollectMetrics(runDir)
	if err != nil {
		return nil, err
	}
	run := &Run{Metrics: sets}
	if info, err := result.ReadRunInfo(runDir); err == nil {
		run.Info = info
	}
	var cmp compare.Report
	err = result.ReadJSON(filepath.Join(runDir, result.ComparisonFile), &cmp)
	switch {
	case err == nil:
		run.Comparison = &cmp
	case !errors.Is(err, fs.ErrNotExist):
		return nil, err
	}
	if run.Failures, err = result.ReadFailures(runDir); err != nil {
		return nil, err
	}
	return run, nil
}

// Generate reads a run directory and renders it.
func Generate(runDir, format string, w io.Writer) error {
	run, err := Load(runDir)
	if err != nil {
		return err
	}
	return Write(run, format, w)
}

func Write(run *Run, format string, w io.Writer) error {
	switch format {
	case "markdown":
		return writeMarkdown(run, w)
	case "json":
		return writeJSON(run, w)
	case "table", "":
		return writeTable(run, w)
	default:
		return fmt.Errorf("unknown report format %q", format)
	}
}

// formatValue renders a metric cell; unavailable metrics show as n/a.
func formatValue(set *result.MetricSet, name, subject string) string {
	m, ok := set.Lookup(name, subject)
	if !ok || !m.Available {
		return "n/a"
	}
	return formatNumber(m.Value, m.Unit)
}

func formatNumber(v float64, unit string) string {
	switch unit {
	case "%":
		return fmt.Sprintf("%.1f%%", v)
	case "fraction":
		return fmt.Sprintf("%.0f%%", v*100)
	case "ari", "x":
		return fmt.Sprintf("%.3f", v)
	}
	if v == float64(int64(v)) {
		return fmt.Sprintf("%d", int64(v))
	}
	return fmt.Sprintf("%.3f", v)
}

func writeTable(run *Run, w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	cols := []string{"SAMPLE", "PIPELINE"}
	for _, c := range Columns {
		cols = append(cols, headers[c])
	}
	fmt.Fprintln(tw, strings.Join(cols, "\t"))
	fmt.Fprintln(tw, strings.Repeat("-", 100))
	for _, s := range run.Metrics {
		row := []string{s.Sample, s.Pipeline}
		for _, c := range Columns {
			row = append(row, formatValue(s, c, ""))
		}
		fmt.Fprintln(tw, strings.Join(row, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if c := run.Comparison; c != nil && len(c.Summaries) > 0 {
		fmt.Fprintln(w, "\nPipeline means")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, strings.Join(append([]string{"PIPELINE"}, cols[2:]...), "\t"))
		for _, set := range c.PipelineMetrics() {
			row := []string{set.Pipeline}
			for _, name := range Columns {
				row = append(row, formatValue(set, name, set.Pipeline))
			}
			fmt.Fprintln(tw, strings.Join(row, "\t"))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if c := run.Comparison; c != nil && len(c.Rankings) > 0 {
		fmt.Fprintln(w, "\nRankings")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "METRIC\tPIPELINE\tMEAN RANK\tWINS\tSAMPLES")
		for _, rk := range c.Rankings {
			for _, e := range rk.Entries {
				fmt.Fprintf(tw, "%s\t%s\t%.2f\t%.2f\t%d\n", rk.Metric, e.Pipeline, e.MeanRank, e.Wins, e.Samples)
			}
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if c := run.Comparison; c != nil && len(c.Agreements) > 0 {
		fmt.Fprintln(w, "\nBinning agreement (ARI)")
		tw = tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "SAMPLE\tA\tB\tARI\tCONTIGS")
		for _, a := range c.Agreements {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%.3f\t%d\n", a.Sample, a.A, a.B, a.Score, a.Contigs)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	if c := run.Comparison; c != nil {
		for _, g := range c.Gaps {
			fmt.Fprintf(w, "gap: %s has no result for %s (present in %s)\n", g.Pipeline, g.Sample, strings.Join(g.PresentIn, ", "))
		}
	}
	for _, f := range run.Failures {
		fmt.Fprintf(w, "failed: %s/%s at %s: %s\n", f.Pipeline, f.Sample, f.Stage, f.Error)
	}
	return nil
}

func writeMarkdown(run *Run, w io.Writer) error {
	cols := []string{"Sample", "Pipeline"}
	for _, c := range Columns {
		cols = append(cols, headers[c])
	}
	fmt.Fprintf(w, "| %s |\n", strings.Join(cols, " | "))
	fmt.Fprintf(w, "|%s\n", strings.Repeat("---|", len(cols)))
	for _, s := range run.Metrics {
		row := []string{s.Sample, s.Pipeline}
		for _, c := range Columns {
			row = append(row, formatValue(s, c, ""))
		}
		fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | "))
	}

	c := run.Comparison
	if c != nil && len(c.Summaries) > 0 {
		fmt.Fprintln(w, "\n## Pipeline means")
		fmt.Fprintf(w, "\n| %s |\n", strings.Join(append([]string{"Pipeline"}, cols[2:]...), " | "))
		fmt.Fprintf(w, "|%s\n", strings.Repeat("---|", len(cols)-1))
		for _, set := range c.PipelineMetrics() {
			row := []string{set.Pipeline}
			for _, name := range Columns {
				row = append(row, formatValue(set, name, set.Pipeline))
			}
			fmt.Fprintf(w, "| %s |\n", strings.Join(row, " | "))
		}
	}
	if c != nil && len(c.Rankings) > 0 {
		fmt.Fprintln(w, "\n## Rankings")
		fmt.Fprintln(w, "\n| Metric | Pipeline | Mean Rank | Wins | Samples |")
		fmt.Fprintln(w, "|---|---|---|---|---|")
		for _, rk := range c.Rankings {
			for _, e := range rk.Entries {
				fmt.Fprintf(w, "| %s | %s | %.2f | %.2f | %d |\n", rk.Metric, e.Pipeline, e.MeanRank, e.Wins, e.Samples)
			}
		}
	}
	if c != nil && len(c.Agreements) > 0 {
		fmt.Fprintln(w, "\n## Binning agreement")
		fmt.Fprintln(w, "\n| Sample | A | B | ARI | Contigs |")
		fmt.Fprintln(w, "|---|---|---|---|---|")
		for _, a := range c.Agreements {
			fmt.Fprintf(w, "| %s | %s | %s | %.3f | %d |\n", a.Sample, a.A, a.B, a.Score, a.Contigs)
		}
	}
	if c != nil && len(c.Gaps) > 0 {
		fmt.Fprintln(w, "\n## Coverage gaps")
		fmt.Fprintln(w)
		for _, g := range c.Gaps {
			fmt.Fprintf(w, "- %s has no result for %s\n", g.Pipeline, g.Sample)
		}
	}
	if len(run.Failures) > 0 {
		fmt.Fprintln(w, "\n## Failures")
		fmt.Fprintln(w)
		for _, f := range run.Failures {
			fmt.Fprintf(w, "- %s/%s (%s): %s\n", f.Pipeline, f.Sample, f.Stage, f.Error)
		}
	}
	return nil
}

func writeJSON(run *Run, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(run)
}
