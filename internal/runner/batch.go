// Package runner evaluates batches of (pipeline, sample) units on a bounded
// worker pool. A failing or slow unit is recorded and never aborts the rest.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/signalnine/metabench/internal/adapter"
	"github.com/signalnine/metabench/internal/cache"
	"github.com/signalnine/metabench/internal/evaluator"
	"github.com/signalnine/metabench/internal/logging"
	"github.com/signalnine/metabench/internal/result"
	"github.com/signalnine/metabench/internal/telemetry"
	"github.com/signalnine/metabench/internal/truth"
)

// Failure stages beyond the adapter's own.
const (
	StageAdapter  = "adapter"
	StageEvaluate = "evaluate"
	StageTimeout  = "timeout"
	StageCancel   = "cancelled"
	StageStore    = "store"
)

// Unit is one pipeline output tree for one sample.
type Unit struct {
	Pipeline string
	Sample   string
	Root     string
	Adapter  string
	Params   map[string]string
	Truth    *truth.GroundTruth
}

type Batch struct {
	Units       []Unit
	Parallel    int
	UnitTimeout time.Duration
	// RunDir, when set, receives result.json and metrics.json per unit.
	RunDir string
	RunID  string
}

type UnitResult struct {
	Unit     Unit
	Result   *result.PipelineResult
	Metrics  *result.MetricSet
	Cached   bool
	Duration time.Duration
}

type BatchResult struct {
	Results  []UnitResult
	Failures []result.UnitFailure
}

// MetricSets returns the metric sets of the successful units.
func (b *BatchResult) MetricSets() []*result.MetricSet {
	out := make([]*result.MetricSet, 0, len(b.Results))
	for _, r := range b.Results {
		out = append(out, r.Metrics)
	}
	return out
}

// Runner holds what every unit shares. Cache, Inspector, Metrics and Logger
// are optional.
type Runner struct {
	Registry  *adapter.Registry
	Evaluator *evaluator.Evaluator
	Cache     *cache.Cache
	Inspector adapter.Inspector
	Metrics   *telemetry.Metrics
	Logger    *slog.Logger
}

func (r *Runner) logger() *slog.Logger {
	if r.Logger == nil {
		return logging.Discard()
	}
	return r.Logger
}

// EvaluateAll runs every unit and returns results and failures ordered by
// (sample, pipeline).
func (r *Runner) EvaluateAll(ctx context.Context, b Batch) *BatchResult {
	ctx, span := telemetry.StartSpan(ctx, "runner.EvaluateAll")
	defer span.End()

	var (
		mu  sync.Mutex
		out BatchResult
	)
	jobs := make([]Job, 0, len(b.Units))
	for _, u := range b.Units {
		jobs = append(jobs, func(ctx context.Context) error {
			res, fail := r.evaluateUnit(ctx, u, b)
			mu.Lock()
			defer mu.Unlock()
			if fail != nil {
				out.Failures = append(out.Failures, *fail)
				return errors.New(fail.Error)
			}
			out.Results = append(out.Results, *res)
			return nil
		})
	}
	errs := RunPool(ctx, b.Parallel, jobs)
	// units skipped because ctx ended before they started
	if skipped := len(b.Units) - len(out.Results) - len(out.Failures); skipped > 0 {
		done := map[[2]string]bool{}
		for _, res := range out.Results {
			done[[2]string{res.Unit.Pipeline, res.Unit.Sample}] = true
		}
		for _, f := range out.Failures {
			done[[2]string{f.Pipeline, f.Sample}] = true
		}
		for _, u := range b.Units {
			if !done[[2]string{u.Pipeline, u.Sample}] {
				out.Failures = append(out.Failures, result.UnitFailure{
					Pipeline: u.Pipeline, Sample: u.Sample, Stage: StageCancel, Error: ctx.Err().Error(),
				})
			}
		}
	}
	r.logger().Debug("batch finished", "units", len(b.Units), "failed", len(errs))

	sort.SliceStable(out.Results, func(i, j int) bool {
		a, c := out.Results[i].Unit, out.Results[j].Unit
		if a.Sample != c.Sample {
			return a.Sample < c.Sample
		}
		return a.Pipeline < c.Pipeline
	})
	result.SortFailures(out.Failures)
	return &out
}

func (r *Runner) evaluateUnit(parent context.Context, u Unit, b Batch) (*UnitResult, *result.UnitFailure) {
	start := time.Now()
	log := r.logger().With("pipeline", u.Pipeline, "sample", u.Sample)

	ctx := parent
	if b.UnitTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(parent, b.UnitTimeout)
		defer cancel()
	}

	fail := func(stage string, err error) (*UnitResult, *result.UnitFailure) {
		switch {
		case parent.Err() != nil:
			stage = StageCancel
		case errors.Is(ctx.Err(), context.DeadlineExceeded):
			stage = StageTimeout
			err = fmt.Errorf("exceeded unit timeout %s: %w", b.UnitTimeout, err)
		}
		log.Warn("unit failed", "stage", stage, "err", err)
		r.Metrics.ObserveUnit(u.Pipeline, "failed", time.Since(start))
		return nil, &result.UnitFailure{Pipeline: u.Pipeline, Sample: u.Sample, Stage: stage, Error: err.Error()}
	}

	a, err := r.Registry.Lookup(u.Adapter, adapter.Options{Params: u.Params, Inspector: r.Inspector, Logger: log})
	if err != nil {
		return fail(StageAdapter, err)
	}

	key, err := r.cacheKey(ctx, u, a.Name())
	if err != nil {
		if ctx.Err() != nil {
			return fail(StageAdapter, err)
		}
		log.Warn("cache key unavailable", "err", err)
	}
	res, cached := r.cached(key, log)
	if res == nil {
		res, err = adapter.Run(ctx, a, adapter.Unit{Pipeline: u.Pipeline, Sample: u.Sample, Root: u.Root}, log)
		if err != nil {
			stage := StageAdapter
			var ae *adapter.AdapterError
			if errors.As(err, &ae) {
				stage = string(ae.Stage)
			}
			return fail(stage, err)
		}
		r.store(key, res, log)
	}

	set, err := r.Evaluator.Evaluate(ctx, res, u.Truth)
	if err != nil {
		return fail(StageEvaluate, err)
	}
	set.RunID = b.RunID

	if b.RunDir != "" {
		dir := result.UnitDir(b.RunDir, u.Pipeline, u.Sample)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fail(StageStore, fmt.Errorf("creating unit dir: %w", err))
		}
		if err := result.WriteResult(dir, res); err != nil {
			return fail(StageStore, err)
		}
		if err := result.WriteMetrics(dir, set); err != nil {
			return fail(StageStore, err)
		}
	}

	available := 0
	for _, m := range set.Metrics {
		if m.Available {
			available++
		}
	}
	d := time.Since(start)
	r.Metrics.ObserveUnit(u.Pipeline, "ok", d)
	r.Metrics.ObserveMetrics(u.Pipeline, available, len(set.Metrics)-available)
	log.Info("unit evaluated", "cached", cached, "metrics", len(set.Metrics), "duration", d)
	return &UnitResult{Unit: u, Result: res, Metrics: set, Cached: cached, Duration: d}, nil
}

// cached returns a previously parsed result under key, or nil.
func (r *Runner) cached(key string, log *slog.Logger) (*result.PipelineResult, bool) {
	if r.Cache == nil || key == "" {
		return nil, false
	}
	res, ok, err := r.Cache.Get(key)
	if err != nil {
		log.Warn("cache read failed", "err", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}
	return res, true
}

func (r *Runner) store(key string, res *result.PipelineResult, log *slog.Logger) {
	if r.Cache == nil || key == "" {
		return
	}
	if err := r.Cache.Put(key, res); err != nil {
		log.Warn("cache write failed", "err", err)
	}
}

// cacheKey covers the output tree fingerprint, the adapter params and
// whether bins without a quality report get inspected. It is empty when no
// cache is configured.
func (r *Runner) cacheKey(ctx context.Context, u Unit, adapterName string) (string, error) {
	if r.Cache == nil {
		return "", nil
	}
	fp, err := cache.Fingerprint(ctx, u.Root)
	if err != nil {
		return "", err
	}
	keys := make([]string, 0, len(u.Params))
	for k := range u.Params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		fp += ";" + k + "=" + u.Params[k]
	}
	if r.Inspector != nil {
		fp += ";inspect"
	}
	return cache.Key(u.Pipeline, u.Sample, adapterName, fp), nil
}
