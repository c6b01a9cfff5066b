package result

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	ResultFile     = "result.json"
	MetricsFile    = "metrics.json"
	ComparisonFile = "comparison.json"
	RunInfoFile    = "run.json"
	FailuresFile   = "failures.json"
)

type RunInfo struct {
	ID      string    `json:"id"`
	Created time.Time `json:"created"`
}

// CreateRunDir makes a fresh run directory under baseDir/runs, named by
// timestamp and run id, points baseDir/latest at it and stamps it with the
// run id.
func CreateRunDir(baseDir string) (string, *RunInfo, error) {
	runsDir := filepath.Join(baseDir, "runs")
	now := time.Now().UTC()
	info := &RunInfo{ID: uuid.NewString(), Created: now}
	runDir := filepath.Join(runsDir, now.Format("2006-01-02T15-04-05")+"-"+info.ID[:8])
	runDir, err := filepath.Abs(runDir)
	if err != nil {
		return "", nil, fmt.Errorf("resolving run dir: %w", err)
	}
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating runs dir: %w", err)
	}
	if err := os.Mkdir(runDir, 0o755); err != nil {
		return "", nil, fmt.Errorf("creating run dir: %w", err)
	}
	latest := filepath.Join(baseDir, "latest")
	os.Remove(latest)
	if err := os.Symlink(runDir, latest); err != nil {
		return "", nil, fmt.Errorf("creating latest symlink: %w", err)
	}
	if err := WriteJSON(filepath.Join(runDir, RunInfoFile), info); err != nil {
		return "", nil, err
	}
	return runDir, info, nil
}

func ReadRunInfo(runDir string) (*RunInfo, error) {
	var info RunInfo
	if err := ReadJSON(filepath.Join(runDir, RunInfoFile), &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// UnitDir is where the outputs of one (pipeline, sample) pair live.
func UnitDir(runDir, pipeline, sample string) string {
	return filepath.Join(runDir, "units", SafeName(pipeline), SafeName(sample))
}

// SafeName flattens a pipeline or sample name into one path element.
// Distinct names always map to distinct elements.
func SafeName(name string) string {
	switch name {
	case "":
		return "%"
	case ".", "..":
		return strings.Repeat("%2E", len(name))
	}
	return url.PathEscape(name)
}

func WriteResult(unitDir string, r *PipelineResult) error {
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		return fmt.Errorf("creating unit dir: %w", err)
	}
	return WriteJSON(filepath.Join(unitDir, ResultFile), r)
}

func ReadResult(path string) (*PipelineResult, error) {
	var r PipelineResult
	if err := ReadJSON(path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

func WriteMetrics(unitDir string, s *MetricSet) error {
	if err := os.MkdirAll(unitDir, 0o755); err != nil {
		return fmt.Errorf("creating unit dir: %w", err)
	}
	return WriteJSON(filepath.Join(unitDir, MetricsFile), s)
}

func ReadMetrics(path string) (*MetricSet, error) {
	var s MetricSet
	if err := ReadJSON(path, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// CollectMetrics loads every metrics.json under runDir, ordered by sample
// then pipeline. Unreadable files are skipped.
func CollectMetrics(runDir string) ([]*MetricSet, error) {
	var sets []*MetricSet
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() == MetricsFile {
			s, err := ReadMetrics(path)
			if err != nil {
				return nil
			}
			sets = append(sets, s)
		}
		return nil
	})
	SortMetricSets(sets)
	return sets, err
}

// CollectResults loads every result.json under runDir.
func CollectResults(runDir string) ([]*PipelineResult, error) {
	var out []*PipelineResult
	err := filepath.Walk(runDir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Name() == ResultFile {
			r, err := ReadResult(path)
			if err != nil {
				return nil
			}
			out = append(out, r)
		}
		return nil
	})
	return out, err
}

func WriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling %s: %w", filepath.Base(path), err)
	}
	return os.WriteFile(path, data, 0o644)
}

func ReadJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", filepath.Base(path), err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parsing %s: %w", filepath.Base(path), err)
	}
	return nil
}
