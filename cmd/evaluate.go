package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/signalnine/metabench/internal/adapter"
	"github.com/signalnine/metabench/internal/cache"
	"github.com/signalnine/metabench/internal/compare"
	"github.com/signalnine/metabench/internal/config"
	"github.com/signalnine/metabench/internal/evaluator"
	"github.com/signalnine/metabench/internal/inspect"
	"github.com/signalnine/metabench/internal/logging"
	"github.com/signalnine/metabench/internal/report"
	"github.com/signalnine/metabench/internal/result"
	"github.com/signalnine/metabench/internal/runner"
	"github.com/signalnine/metabench/internal/telemetry"
	"github.com/signalnine/metabench/internal/truth"
	"github.com/spf13/cobra"
)

var (
	flagPipeline string
	flagSample   string
	flagParallel int
	flagNoCache  bool
)

func newEvaluateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "evaluate",
		Short: "Evaluate every configured pipeline output and compare the pipelines",
		RunE:  runEvaluate,
	}
	cmd.Flags().StringVar(&flagPipeline, "pipeline", "", "filter to a single pipeline")
	cmd.Flags().StringVar(&flagSample, "sample", "", "filter to a single sample")
	cmd.Flags().IntVar(&flagParallel, "parallel", 0, "max concurrent units (default from config)")
	cmd.Flags().BoolVar(&flagNoCache, "no-cache", false, "ignore the parse cache")
	cmd.Flags().StringVar(&flagFormat, "format", "table", "output format (table, markdown, json)")
	return cmd
}

func runEvaluate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if flagParallel > 0 {
		cfg.Runtime.Parallel = flagParallel
	}
	logger := logging.New(os.Stderr, cfg.Runtime.LogLevel)

	shutdown, err := telemetry.SetupTracing(cfg.Telemetry.Trace)
	if err != nil {
		return err
	}
	defer shutdown(context.Background())

	ev, err := evaluator.New(cfg.EvaluatorOptions())
	if err != nil {
		return err
	}

	pipelines := filterPipelines(cfg.Pipelines, flagPipeline, flagSample)
	if len(pipelines) == 0 {
		return fmt.Errorf("no pipeline matches --pipeline=%q --sample=%q", flagPipeline, flagSample)
	}
	units, err := buildUnits(pipelines)
	if err != nil {
		return err
	}

	runDir, info, err := result.CreateRunDir(cfg.Results.Dir)
	if err != nil {
		return err
	}
	fmt.Printf("Run directory: %s\n", runDir)

	r := &runner.Runner{
		Registry:  adapter.NewRegistry(),
		Evaluator: ev,
		Metrics:   telemetry.NewMetrics(),
		Logger:    logger,
	}
	if cfg.Cache.Enabled && !flagNoCache {
		c, err := cache.Open(cache.Config{Dir: cfg.Cache.Dir, TTL: cfg.Cache.TTL, Logger: logger})
		if err != nil {
			return err
		}
		defer c.Close()
		r.Cache = c
	}
	if cfg.Inspect.Enabled {
		r.Inspector = newInspector(cfg, logger)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	fmt.Printf("Evaluating %d units (parallel %d)...\n", len(units), cfg.Runtime.Parallel)
	br := r.EvaluateAll(ctx, runner.Batch{
		Units:       units,
		Parallel:    cfg.Runtime.Parallel,
		UnitTimeout: cfg.Runtime.UnitTimeout,
		RunDir:      runDir,
		RunID:       info.ID,
	})
	for _, res := range br.Results {
		note := ""
		if res.Cached {
			note = " (cached)"
		}
		fmt.Printf("  %s × %s: %d metrics in %s%s\n", res.Unit.Pipeline, res.Unit.Sample,
			len(res.Metrics.Metrics), res.Duration.Round(time.Millisecond), note)
	}
	for _, f := range br.Failures {
		fmt.Printf("  ERROR %s × %s [%s]: %s\n", f.Pipeline, f.Sample, f.Stage, f.Error)
	}
	if err := result.WriteFailures(runDir, br.Failures); err != nil {
		return err
	}

	entries := make([]compare.Entry, 0, len(br.Results))
	for _, res := range br.Results {
		entries = append(entries, entryFor(res.Result, res.Metrics, cfg.ComparisonMethod()))
	}
	if err := writeComparison(runDir, info.ID, cfg, entries, br.Failures, logger); err != nil {
		return err
	}

	if cfg.Telemetry.MetricsFile != "" {
		if err := r.Metrics.WriteTextfile(cfg.Telemetry.MetricsFile); err != nil {
			logger.Warn("writing metrics textfile", "error", err)
		}
	}

	fmt.Println("\n--- Results ---")
	return report.Generate(runDir, flagFormat, os.Stdout)
}

func newInspector(cfg *config.Config, logger *slog.Logger) *inspect.CheckM2 {
	return inspect.New(inspect.Config{
		Image:       cfg.Inspect.Image,
		Database:    cfg.Inspect.Database,
		Threads:     cfg.Inspect.Threads,
		Timeout:     cfg.Inspect.Timeout,
		CPULimit:    cfg.Inspect.CPULimit,
		MemoryLimit: cfg.Inspect.MemoryLimit,
		Logger:      logger,
	})
}

// filterPipelines narrows the configured pipelines to name and their samples
// to sample. Pipelines left without samples are dropped.
func filterPipelines(pipelines []config.Pipeline, name, sample string) []config.Pipeline {
	var out []config.Pipeline
	for _, p := range pipelines {
		if name != "" && p.Name != name {
			continue
		}
		if sample != "" {
			var samples []config.Sample
			for _, s := range p.Samples {
				if s.ID == sample {
					samples = append(samples, s)
				}
			}
			if len(samples) == 0 {
				continue
			}
			p.Samples = samples
		}
		out = append(out, p)
	}
	return out
}

// buildUnits expands pipelines into one unit per sample, loading each gold
// standard once.
func buildUnits(pipelines []config.Pipeline) ([]runner.Unit, error) {
	loaded := map[config.Truth]*truth.GroundTruth{}
	var units []runner.Unit
	for _, p := range pipelines {
		for _, s := range p.Samples {
			u := runner.Unit{
				Pipeline: p.Name,
				Sample:   s.ID,
				Root:     s.Path,
				Adapter:  p.Adapter,
				Params:   p.Params,
			}
			if s.Truth != nil {
				gt, ok := loaded[*s.Truth]
				if !ok {
					var err error
					gt, err = truth.Load(s.Truth.Binning, s.Truth.Genomes)
					if err != nil {
						return nil, fmt.Errorf("ground truth for %s/%s: %w", p.Name, s.ID, err)
					}
					loaded[*s.Truth] = gt
				}
				u.Truth = gt
			}
			units = append(units, u)
		}
	}
	return units, nil
}

func entryFor(r *result.PipelineResult, set *result.MetricSet, method string) compare.Entry {
	e := compare.Entry{Pipeline: set.Pipeline, Sample: set.Sample, Metrics: set}
	if r != nil {
		e.Partition, _ = r.Partition(method)
	}
	return e
}

// writeComparison compares entries and stores comparison.json. Too few
// pipelines or no shared sample only skips the comparison.
func writeComparison(runDir, runID string, cfg *config.Config, entries []compare.Entry, failures []result.UnitFailure, logger *slog.Logger) error {
	rep, err := compare.New(compare.Options{
		Pipelines: cfg.Comparison.Pipelines,
		Metrics:   cfg.Comparison.Metrics,
		Method:    cfg.ComparisonMethod(),
	}).Compare(entries)
	switch {
	case errors.Is(err, compare.ErrTooFewPipelines), errors.Is(err, compare.ErrNoOverlap):
		logger.Warn("skipping comparison", "error", err)
		return nil
	case err != nil:
		return err
	}
	rep.RunID = runID
	rep.Failures = failures
	return result.WriteJSON(filepath.Join(runDir, result.ComparisonFile), rep)
}
