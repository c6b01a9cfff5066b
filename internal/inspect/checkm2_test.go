package inspect_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/signalnine/metabench/internal/docker"
	"github.com/signalnine/metabench/internal/inspect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtension(t *testing.T) {
	assert.Equal(t, "fa", inspect.Extension("/x/bin.1.fa"))
	assert.Equal(t, "fa.gz", inspect.Extension("/x/MEGAHIT-MetaBAT2-S1.3.fa.gz"))
	assert.Equal(t, "fasta", inspect.Extension("b.fasta"))
}

func TestCommand(t *testing.T) {
	c := inspect.New(inspect.Config{Threads: 8, Database: "/refs/checkm2/uniref100.KO.1.dmnd"})
	assert.Equal(t, []string{
		"checkm2", "predict",
		"--input", "/bins",
		"--output-directory", "/workspace/checkm2",
		"--extension", "fa",
		"--threads", "8",
		"--force",
		"--database_path", "/db/uniref100.KO.1.dmnd",
	}, c.Command("fa"))

	assert.Contains(t, inspect.New(inspect.Config{}).Command("fa"), "1")
}

func binDir(t *testing.T) []string {
	t.Helper()
	dir := t.TempDir()
	var files []string
	for _, n := range []string{"bin.1.fa", "bin.2.fa"} {
		p := filepath.Join(dir, n)
		require.NoError(t, os.WriteFile(p, []byte(">c\nACGT\n"), 0o644))
		files = append(files, p)
	}
	return files
}

func TestInspect(t *testing.T) {
	files := binDir(t)
	var got *docker.RunOpts
	fake := func(ctx context.Context, opts *docker.RunOpts) (*docker.RunResult, error) {
		got = opts
		out := filepath.Join(opts.WorkDir, "checkm2")
		require.NoError(t, os.MkdirAll(out, 0o755))
		report := "Name\tCompleteness\tContamination\tCompleteness_Model_Used\n" +
			"bin.1\t97.5\t0.8\tGradient Boost\n" +
			"bin.2\t55.1\t4.0\tNeural Network\n" +
			"bin.9\t10\t1\tNeural Network\n"
		require.NoError(t, os.WriteFile(filepath.Join(out, "quality_report.tsv"), []byte(report), 0o644))
		return &docker.RunResult{ExitCode: 0}, nil
	}
	c := inspect.New(inspect.Config{Image: "checkm2:test", Threads: 2}).WithRunner(fake)

	q, err := c.Inspect(context.Background(), files[:2])
	require.NoError(t, err)
	require.Len(t, q, 2)
	assert.Equal(t, 97.5, q["bin.1"].Completeness)
	assert.Equal(t, "checkm2", q["bin.2"].Source)

	require.NotNil(t, got)
	assert.Equal(t, "checkm2:test", got.Image)
	require.Len(t, got.ExtraMounts, 1)
	assert.Equal(t, "/bins", got.ExtraMounts[0].Target)
	assert.True(t, got.ExtraMounts[0].ReadOnly)

	_, err = os.Stat(got.WorkDir)
	assert.True(t, os.IsNotExist(err), "work dir should be removed")
}

func TestInspectFailures(t *testing.T) {
	files := binDir(t)
	c := inspect.New(inspect.Config{})

	crash := c.WithRunner(func(context.Context, *docker.RunOpts) (*docker.RunResult, error) {
		return &docker.RunResult{ExitCode: 1}, nil
	})
	_, err := crash.Inspect(context.Background(), files)
	assert.ErrorIs(t, err, inspect.ErrInspectFailed)

	timeout := c.WithRunner(func(context.Context, *docker.RunOpts) (*docker.RunResult, error) {
		return &docker.RunResult{ExitCode: 124, TimedOut: true}, nil
	})
	_, err = timeout.Inspect(context.Background(), files)
	assert.ErrorIs(t, err, inspect.ErrInspectFailed)

	noDocker := c.WithRunner(func(context.Context, *docker.RunOpts) (*docker.RunResult, error) {
		return nil, errors.New("cannot connect to the Docker daemon")
	})
	_, err = noDocker.Inspect(context.Background(), files)
	assert.ErrorIs(t, err, inspect.ErrInspectFailed)

	noReport := c.WithRunner(func(context.Context, *docker.RunOpts) (*docker.RunResult, error) {
		return &docker.RunResult{}, nil
	})
	_, err = noReport.Inspect(context.Background(), files)
	assert.ErrorIs(t, err, inspect.ErrInspectFailed)

	mixed := append(files, filepath.Join(t.TempDir(), "other.fa"))
	_, err = c.Inspect(context.Background(), mixed)
	assert.ErrorIs(t, err, inspect.ErrInspectFailed)

	q, err := c.Inspect(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, q)
}
