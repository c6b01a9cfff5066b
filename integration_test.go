//go:build integration

package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/metabench/cmd"
	"github.com/signalnine/metabench/internal/compare"
	"github.com/signalnine/metabench/internal/result"
)

func writeFixture(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

// createFixtureRun lays out one generic pipeline output tree for sample S1.
func createFixtureRun(t *testing.T, dir string, bins map[string]string) {
	t.Helper()
	writeFixture(t, filepath.Join(dir, "S1", "assembly.fa"),
		">c1\n"+strings.Repeat("A", 1200)+"\n>c2\n"+strings.Repeat("C", 800)+"\n>c3\n"+strings.Repeat("G", 1500)+"\n")
	quality := "Bin Id\tCompleteness\tContamination\n"
	for name, content := range bins {
		writeFixture(t, filepath.Join(dir, "S1", "bins", name+".fa"), content)
		quality += name + "\t95\t2\n"
	}
	writeFixture(t, filepath.Join(dir, "S1", "bins", "quality.tsv"), quality)
}

func TestEvaluateCompareReport(t *testing.T) {
	dir := t.TempDir()
	createFixtureRun(t, filepath.Join(dir, "alpha"), map[string]string{
		"a1": ">c1\nA\n>c3\nG\n",
	})
	createFixtureRun(t, filepath.Join(dir, "beta"), map[string]string{
		"b1": ">c1\nA\n",
		"b2": ">c3\nG\n",
	})
	writeFixture(t, filepath.Join(dir, "gold.tsv"), "@@SEQUENCEID\tBINID\nc1\tgA\nc2\tgB\nc3\tgA\n")
	cfgPath := filepath.Join(dir, "metabench.yaml")
	writeFixture(t, cfgPath, `
pipelines:
  - name: alpha
    adapter: generic
    samples:
      - id: S1
        path: alpha
        truth: {binning: gold.tsv}
  - name: beta
    adapter: generic
    samples:
      - id: S1
        path: beta
        truth: {binning: gold.tsv}
results:
  dir: `+filepath.Join(dir, "results")+`
runtime:
  log_level: error
`)

	root := cmd.NewRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "validate"})
	if err := root.Execute(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	root = cmd.NewRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "evaluate", "--format", "json"})
	if err := root.Execute(); err != nil {
		t.Fatalf("evaluate: %v", err)
	}

	runDir, err := filepath.EvalSymlinks(filepath.Join(dir, "results", "latest"))
	if err != nil {
		t.Fatalf("latest symlink: %v", err)
	}
	for _, p := range []string{"alpha", "beta"} {
		if _, err := os.Stat(filepath.Join(result.UnitDir(runDir, p, "S1"), result.MetricsFile)); err != nil {
			t.Errorf("%s metrics not stored: %v", p, err)
		}
	}

	var rep compare.Report
	if err := result.ReadJSON(filepath.Join(runDir, result.ComparisonFile), &rep); err != nil {
		t.Fatalf("reading comparison: %v", err)
	}
	if len(rep.Pipelines) != 2 {
		t.Errorf("pipelines: got %v, want [alpha beta]", rep.Pipelines)
	}
	if _, ok := rep.Agreement("S1", "alpha", "beta"); !ok {
		t.Error("missing partition agreement for S1")
	}

	root = cmd.NewRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "compare", "--metrics", "n50,bin_count"})
	if err := root.Execute(); err != nil {
		t.Fatalf("compare: %v", err)
	}
	if err := result.ReadJSON(filepath.Join(runDir, result.ComparisonFile), &rep); err != nil {
		t.Fatal(err)
	}
	if len(rep.Metrics) != 2 {
		t.Errorf("metrics: got %v, want [n50 bin_count]", rep.Metrics)
	}

	root = cmd.NewRootCmd()
	root.SetArgs([]string{"--config", cfgPath, "report", "--format", "markdown"})
	if err := root.Execute(); err != nil {
		t.Fatalf("report: %v", err)
	}
}
