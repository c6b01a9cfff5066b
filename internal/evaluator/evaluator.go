// Package evaluator computes pipeline-agnostic quality metrics for one
// canonical PipelineResult, optionally against ground truth.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/signalnine/metabench/internal/result"
	"github.com/signalnine/metabench/internal/telemetry"
	"github.com/signalnine/metabench/internal/truth"
	"go.opentelemetry.io/otel/attribute"
)

var ErrUnknownEstimator = errors.New("unknown quality estimator")

// MetricComputationError reports structurally invalid canonical input.
type MetricComputationError struct {
	Pipeline string
	Sample   string
	Err      error
}

func (e *MetricComputationError) Error() string {
	return fmt.Sprintf("evaluate %s/%s: %v", e.Pipeline, e.Sample, e.Err)
}

func (e *MetricComputationError) Unwrap() error { return e.Err }

type Options struct {
	// LengthThreshold is the minimum contig length counted by contig_count.
	LengthThreshold        int
	CompletenessThreshold  float64
	ContaminationThreshold float64
	Ranks                  []result.Rank
	Estimator              string
	// BinningMethod selects the binning to evaluate; empty means the first.
	BinningMethod string
	// MarkerSetSize is the marker count of a complete genome. Zero uses the
	// number of distinct markers seen in the assembly.
	MarkerSetSize int
}

func DefaultOptions() Options {
	return Options{
		LengthThreshold:        1000,
		CompletenessThreshold:  50,
		ContaminationThreshold: 10,
		Ranks:                  append([]result.Rank(nil), result.Ranks...),
		Estimator:              EstimatorAuto,
	}
}

// Evaluator is stateless after construction and safe for concurrent use.
type Evaluator struct {
	opts      Options
	estimator QualityEstimator
}

func New(opts Options) (*Evaluator, error) {
	est, ok := NewEstimator(opts.Estimator)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownEstimator, opts.Estimator)
	}
	if len(opts.Ranks) == 0 {
		opts.Ranks = append([]result.Rank(nil), result.Ranks...)
	}
	return &Evaluator{opts: opts, estimator: est}, nil
}

// WithEstimator replaces the quality estimator.
func (e *Evaluator) WithEstimator(q QualityEstimator) *Evaluator {
	c := *e
	c.estimator = q
	return &c
}

func (e *Evaluator) Options() Options { return e.opts }

// Evaluate computes the full metric vocabulary for r. gt may be nil. Metrics
// whose inputs are absent are returned unavailable; only structurally
// invalid input is an error.
func (e *Evaluator) Evaluate(ctx context.Context, r *result.PipelineResult, gt *truth.GroundTruth) (set *result.MetricSet, err error) {
	if r == nil {
		return nil, &MetricComputationError{Err: errors.New("nil pipeline result")}
	}
	attrs := append(telemetry.Unit(r.Pipeline, r.Sample), attribute.String("metabench.estimator", e.estimator.Name()))
	ctx, span := telemetry.StartSpan(ctx, "evaluator.Evaluate", attrs...)
	defer func() { telemetry.EndSpan(span, err) }()

	if err := r.Validate(); err != nil {
		return nil, &MetricComputationError{Pipeline: r.Pipeline, Sample: r.Sample, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s := newSample(r, gt, e.opts.MarkerSetSize)
	var metrics []result.Metric
	metrics = append(metrics, e.assemblyMetrics(r)...)
	metrics = append(metrics, e.binningMetrics(s)...)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	metrics = append(metrics, e.taxonomyMetrics(s)...)
	return &result.MetricSet{Pipeline: r.Pipeline, Sample: r.Sample, Metrics: metrics}, nil
}

func clampPercent(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

func fraction(part, whole int64) float64 {
	if whole == 0 {
		return 0
	}
	return float64(part) / float64(whole)
}
