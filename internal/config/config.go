// Package config loads metabench.yaml.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/signalnine/metabench/internal/evaluator"
	"github.com/signalnine/metabench/internal/result"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Pipelines  []Pipeline `yaml:"pipelines" validate:"required,min=1,dive"`
	Evaluation Evaluation `yaml:"evaluation"`
	Comparison Comparison `yaml:"comparison"`
	Runtime    Runtime    `yaml:"runtime"`
	Results    Results    `yaml:"results"`
	Cache      Cache      `yaml:"cache"`
	Inspect    Inspect    `yaml:"inspect"`
	Telemetry  Telemetry  `yaml:"telemetry"`
}

type Pipeline struct {
	Name    string `yaml:"name" validate:"required"`
	Adapter string `yaml:"adapter" validate:"required"`
	// Params are passed to the adapter, e.g. assembler: SPAdes for nf-core/mag.
	Params  map[string]string `yaml:"params"`
	Samples []Sample          `yaml:"samples" validate:"required,min=1,dive"`
}

// Sample points at the output root of one pipeline run.
type Sample struct {
	ID    string `yaml:"id" validate:"required"`
	Path  string `yaml:"path" validate:"required"`
	Truth *Truth `yaml:"truth"`
}

// Truth locates the gold standard for the contigs of one assembly.
type Truth struct {
	Binning string `yaml:"binning" validate:"required"`
	Genomes string `yaml:"genomes"`
}

type Evaluation struct {
	LengthThreshold        int      `yaml:"length_threshold" validate:"gte=0"`
	CompletenessThreshold  float64  `yaml:"completeness_threshold" validate:"gte=0,lte=100"`
	ContaminationThreshold float64  `yaml:"contamination_threshold" validate:"gte=0,lte=100"`
	Ranks                  []string `yaml:"ranks" validate:"dive,rank"`
	Estimator              string   `yaml:"estimator" validate:"oneof=auto markers reported truth"`
	BinningMethod          string   `yaml:"binning_method"`
	MarkerSetSize          int      `yaml:"marker_set_size" validate:"gte=0"`
}

type Comparison struct {
	Pipelines     []string `yaml:"pipelines"`
	Metrics       []string `yaml:"metrics"`
	BinningMethod string   `yaml:"binning_method"`
}

type Runtime struct {
	Parallel    int           `yaml:"parallel" validate:"gte=1"`
	UnitTimeout time.Duration `yaml:"unit_timeout" validate:"gte=0"`
	LogLevel    string        `yaml:"log_level" validate:"oneof=debug info warn error"`
}

type Results struct {
	Dir string `yaml:"dir" validate:"required"`
}

type Cache struct {
	Enabled bool          `yaml:"enabled"`
	Dir     string        `yaml:"dir" validate:"required_if=Enabled true"`
	TTL     time.Duration `yaml:"ttl" validate:"gte=0"`
}

// Inspect configures containerized CheckM2 runs for binnings that shipped
// without a quality report.
type Inspect struct {
	Enabled  bool          `yaml:"enabled"`
	Image    string        `yaml:"image" validate:"required_if=Enabled true"`
	Database string        `yaml:"database"`
	Threads  int           `yaml:"threads" validate:"gte=1"`
	Timeout  time.Duration `yaml:"timeout" validate:"gte=0"`
	CPULimit float64       `yaml:"cpu_limit" validate:"gte=0"`
	// MemoryLimit in bytes; zero is unlimited.
	MemoryLimit int64 `yaml:"memory_limit" validate:"gte=0"`
}

type Telemetry struct {
	Trace       string `yaml:"trace" validate:"oneof=none stdout"`
	MetricsFile string `yaml:"metrics_file"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("rank", func(fl validator.FieldLevel) bool {
		_, ok := result.ParseRank(fl.Field().String())
		return ok
	})
	return v
}

// Default returns the settings used for every key a config file omits.
func Default() Config {
	ev := evaluator.DefaultOptions()
	ranks := make([]string, len(ev.Ranks))
	for i, r := range ev.Ranks {
		ranks[i] = string(r)
	}
	return Config{
		Evaluation: Evaluation{
			LengthThreshold:        ev.LengthThreshold,
			CompletenessThreshold:  ev.CompletenessThreshold,
			ContaminationThreshold: ev.ContaminationThreshold,
			Ranks:                  ranks,
			Estimator:              ev.Estimator,
		},
		Runtime:   Runtime{Parallel: 1, UnitTimeout: 30 * time.Minute, LogLevel: "info"},
		Results:   Results{Dir: "results"},
		Cache:     Cache{Dir: ".metabench-cache"},
		Inspect:   Inspect{Image: "quay.io/biocontainers/checkm2:1.0.2--pyh7cba7a3_0", Threads: 4, Timeout: 2 * time.Hour},
		Telemetry: Telemetry{Trace: "none"},
	}
}

// Load reads the config at path. Relative sample and truth paths are taken
// relative to the config file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults and validates the result.
func Parse(data []byte, baseDir string) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing: %w", err)
	}
	if err := check(&cfg); err != nil {
		return nil, err
	}
	for i := range cfg.Pipelines {
		for j := range cfg.Pipelines[i].Samples {
			s := &cfg.Pipelines[i].Samples[j]
			s.Path = resolve(baseDir, s.Path)
			if s.Truth != nil {
				s.Truth.Binning = resolve(baseDir, s.Truth.Binning)
				s.Truth.Genomes = resolve(baseDir, s.Truth.Genomes)
			}
		}
	}
	return &cfg, nil
}

func resolve(base, p string) string {
	if p == "" || filepath.IsAbs(p) || base == "" {
		return p
	}
	return filepath.Join(base, p)
}

func check(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return errors.New(strings.Join(msgs, "; "))
		}
		return err
	}
	names := map[string]bool{}
	for _, p := range cfg.Pipelines {
		if names[p.Name] {
			return fmt.Errorf("pipeline %q defined twice", p.Name)
		}
		names[p.Name] = true
		ids := map[string]bool{}
		for _, s := range p.Samples {
			if ids[s.ID] {
				return fmt.Errorf("pipeline %q: sample %q listed twice", p.Name, s.ID)
			}
			ids[s.ID] = true
		}
	}
	for _, p := range cfg.Comparison.Pipelines {
		if !names[p] {
			return fmt.Errorf("comparison: unknown pipeline %q", p)
		}
	}
	return nil
}

// EvaluatorOptions converts the evaluation section.
func (c *Config) EvaluatorOptions() evaluator.Options {
	opts := evaluator.Options{
		LengthThreshold:        c.Evaluation.LengthThreshold,
		CompletenessThreshold:  c.Evaluation.CompletenessThreshold,
		ContaminationThreshold: c.Evaluation.ContaminationThreshold,
		Estimator:              c.Evaluation.Estimator,
		BinningMethod:          c.Evaluation.BinningMethod,
		MarkerSetSize:          c.Evaluation.MarkerSetSize,
	}
	seen := map[result.Rank]bool{}
	for _, name := range c.Evaluation.Ranks {
		// aliases such as superkingdom and domain name one rank
		if r, ok := result.ParseRank(name); ok && !seen[r] {
			seen[r] = true
			opts.Ranks = append(opts.Ranks, r)
		}
	}
	return opts
}

// ComparisonMethod is the binning method compared across pipelines.
func (c *Config) ComparisonMethod() string {
	if c.Comparison.BinningMethod != "" {
		return c.Comparison.BinningMethod
	}
	return c.Evaluation.BinningMethod
}
