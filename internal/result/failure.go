package result

import (
	"errors"
	"io/fs"
	"path/filepath"
	"sort"
)

// UnitFailure records a (pipeline, sample) unit that produced no metrics.
type UnitFailure struct {
	Pipeline string `json:"pipeline"`
	Sample   string `json:"sample"`
	Stage    string `json:"stage"`
	Error    string `json:"error"`
}

// SortFailures orders failures by sample, then pipeline.
func SortFailures(f []UnitFailure) {
	sort.SliceStable(f, func(i, j int) bool {
		if f[i].Sample != f[j].Sample {
			return f[i].Sample < f[j].Sample
		}
		return f[i].Pipeline < f[j].Pipeline
	})
}

func WriteFailures(runDir string, f []UnitFailure) error {
	return WriteJSON(filepath.Join(runDir, FailuresFile), f)
}

// ReadFailures returns the failures recorded for a run; a run without a
// failures file had none.
func ReadFailures(runDir string) ([]UnitFailure, error) {
	var f []UnitFailure
	err := ReadJSON(filepath.Join(runDir, FailuresFile), &f)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return f, err
}
