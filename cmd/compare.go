package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/signalnine/metabench/internal/compare"
	"github.com/signalnine/metabench/internal/config"
	"github.com/signalnine/metabench/internal/logging"
	"github.com/signalnine/metabench/internal/report"
	"github.com/signalnine/metabench/internal/result"
	"github.com/spf13/cobra"
)

var (
	flagComparePipelines []string
	flagCompareMetrics   []string
	flagCompareMethod    string
)

func newCompareCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compare [run-dir]",
		Short: "Re-compare the stored results of a run",
		Long:  "Rebuild comparison.json for a run directory from its stored result.json and metrics.json files, without re-parsing pipeline outputs.",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runCompare,
	}
	cmd.Flags().StringSliceVar(&flagComparePipelines, "pipelines", nil, "pipelines to compare (default from config, else all)")
	cmd.Flags().StringSliceVar(&flagCompareMetrics, "metrics", nil, "metrics to compare (default from config, else all)")
	cmd.Flags().StringVar(&flagCompareMethod, "method", "", "binning method for partition agreement")
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}

func runCompare(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if len(flagComparePipelines) > 0 {
		cfg.Comparison.Pipelines = flagComparePipelines
	}
	if len(flagCompareMetrics) > 0 {
		cfg.Comparison.Metrics = flagCompareMetrics
	}
	if flagCompareMethod != "" {
		cfg.Comparison.BinningMethod = flagCompareMethod
	}
	runDir, err := resolveRunDir(cfg, args)
	if err != nil {
		return err
	}

	sets, err := result.CollectMetrics(runDir)
	if err != nil {
		return fmt.Errorf("reading metrics: %w", err)
	}
	if len(sets) == 0 {
		return fmt.Errorf("no %s files found in %s", result.MetricsFile, runDir)
	}
	results, err := result.CollectResults(runDir)
	if err != nil {
		return fmt.Errorf("reading results: %w", err)
	}
	failures, err := result.ReadFailures(runDir)
	if err != nil {
		return err
	}
	runID := ""
	if info, err := result.ReadRunInfo(runDir); err == nil {
		runID = info.ID
	}

	entries := storedEntries(sets, results, cfg.ComparisonMethod())
	logger := logging.New(os.Stderr, cfg.Runtime.LogLevel)
	if err := writeComparison(runDir, runID, cfg, entries, failures, logger); err != nil {
		return err
	}
	return report.Generate(runDir, flagFormat, os.Stdout)
}

// storedEntries pairs each stored metric set with the result of the same
// (pipeline, sample), when one was stored.
func storedEntries(sets []*result.MetricSet, results []*result.PipelineResult, method string) []compare.Entry {
	byUnit := make(map[[2]string]*result.PipelineResult, len(results))
	for _, r := range results {
		byUnit[[2]string{r.Pipeline, r.Sample}] = r
	}
	entries := make([]compare.Entry, 0, len(sets))
	for _, s := range sets {
		entries = append(entries, entryFor(byUnit[[2]string{s.Pipeline, s.Sample}], s, method))
	}
	return entries
}

// resolveRunDir returns the run dir named in args, or the latest run.
func resolveRunDir(cfg *config.Config, args []string) (string, error) {
	runDir := filepath.Join(cfg.Results.Dir, "latest")
	if len(args) > 0 {
		runDir = args[0]
	}
	resolved, err := filepath.EvalSymlinks(runDir)
	if err != nil {
		return "", fmt.Errorf("resolving run dir: %w", err)
	}
	return resolved, nil
}
