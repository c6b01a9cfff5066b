// Package adapter turns pipeline-specific output trees into canonical
// PipelineResults. Each supported pipeline family is one Adapter variant
// registered by name; nothing outside this package knows any pipeline's
// file layout.
package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/signalnine/metabench/internal/logging"
	"github.com/signalnine/metabench/internal/result"
	"github.com/signalnine/metabench/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var (
	ErrMissingOutput  = errors.New("required output missing")
	ErrCorruptOutput  = errors.New("output unparseable")
	ErrUnknownAdapter = errors.New("unknown adapter")
)

type Stage string

const (
	StageLocate   Stage = "locate"
	StageAssembly Stage = "assembly"
	StageBins     Stage = "bins"
	StageTaxonomy Stage = "taxonomy"
)

// AdapterError reports a required output of one (pipeline, sample) unit
// that could not be located or parsed.
type AdapterError struct {
	Pipeline string
	Sample   string
	Stage    Stage
	Err      error
}

func (e *AdapterError) Error() string {
	return fmt.Sprintf("adapter %s/%s: %s: %v", e.Pipeline, e.Sample, e.Stage, e.Err)
}

func (e *AdapterError) Unwrap() error { return e.Err }

// Unit identifies one pipeline run on one sample.
type Unit struct {
	Pipeline string
	Sample   string
	Root     string
}

// Adapter is implemented once per pipeline family.
type Adapter interface {
	Name() string
	// Locate finds the output files of sample under root.
	Locate(ctx context.Context, root, sample string) (*Layout, error)
	ParseAssembly(ctx context.Context, l *Layout) ([]result.Contig, error)
	ParseBins(ctx context.Context, l *Layout, contigs []result.Contig) ([]result.Binning, error)
	// ParseTaxonomy returns nil, nil when no taxonomy stage ran.
	ParseTaxonomy(ctx context.Context, l *Layout, contigs []result.Contig) (*result.Taxonomy, error)
}

// Inspector estimates bin quality for binnings that shipped without a
// quality report. Results are keyed by bin id.
type Inspector interface {
	Inspect(ctx context.Context, binFiles []string) (map[string]result.Quality, error)
}

// Options configure an adapter instance.
type Options struct {
	Params    map[string]string
	Inspector Inspector
	Logger    *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// Layout lists the files an adapter located for one sample.
type Layout struct {
	Root     string
	Sample   string
	Assembly string
	Depths   string
	Markers  string
	Binnings []BinningLayout
	Taxonomy []string
}

type BinningLayout struct {
	Method  string
	Bins    []string
	Quality []string
}

// Run drives the adapter through all four stages and assembles an
// immutable PipelineResult. Missing or corrupt assembly and binning outputs
// fail the unit; a failing taxonomy stage only drops taxonomy.
func Run(ctx context.Context, a Adapter, u Unit, log *slog.Logger) (res *result.PipelineResult, err error) {
	if log == nil {
		log = logging.Discard()
	}
	attrs := append(telemetry.Unit(u.Pipeline, u.Sample), attribute.String("metabench.adapter", a.Name()))
	ctx, span := telemetry.StartSpan(ctx, "adapter.Run", attrs...)
	defer func() { telemetry.EndSpan(span, err) }()

	fail := func(stage Stage, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil && !errors.Is(err, ctxErr) {
			err = fmt.Errorf("%w: %w", ctxErr, err)
		}
		return &AdapterError{Pipeline: u.Pipeline, Sample: u.Sample, Stage: stage, Err: err}
	}

	layout, err := a.Locate(ctx, u.Root, u.Sample)
	if err != nil {
		return nil, fail(StageLocate, err)
	}
	contigs, err := a.ParseAssembly(ctx, layout)
	if err != nil {
		return nil, fail(StageAssembly, err)
	}
	if len(contigs) == 0 {
		return nil, fail(StageAssembly, fmt.Errorf("%w: assembly %s has no contigs", ErrCorruptOutput, layout.Assembly))
	}
	binnings, err := a.ParseBins(ctx, layout, contigs)
	if err != nil {
		return nil, fail(StageBins, err)
	}
	if len(binnings) == 0 {
		return nil, fail(StageBins, fmt.Errorf("%w: no binning results", ErrMissingOutput))
	}
	tax, err := a.ParseTaxonomy(ctx, layout, contigs)
	if err != nil {
		if ctx.Err() != nil {
			return nil, fail(StageTaxonomy, err)
		}
		log.Warn("taxonomy unreadable, continuing without it",
			"pipeline", u.Pipeline, "sample", u.Sample, "err", err)
		tax = nil
	}

	res = &result.PipelineResult{
		Pipeline: u.Pipeline,
		Sample:   u.Sample,
		Adapter:  a.Name(),
		Contigs:  contigs,
		Binnings: binnings,
		Taxonomy: tax,
		Assembly: result.ComputeAssemblyStats(contigs, 0),
	}
	log.Debug("parsed unit", "pipeline", u.Pipeline, "sample", u.Sample,
		"contigs", len(contigs), "binnings", len(binnings), "taxonomy", tax != nil)
	return res, nil
}
