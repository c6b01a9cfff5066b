// Package inspect estimates bin quality by running CheckM2 in a container,
// for pipeline runs that did not ship a quality report.
package inspect

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/signalnine/metabench/internal/adapter"
	"github.com/signalnine/metabench/internal/docker"
	"github.com/signalnine/metabench/internal/logging"
	"github.com/signalnine/metabench/internal/result"
	"github.com/signalnine/metabench/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

var ErrInspectFailed = errors.New("checkm2 failed")

const (
	binsMount = "/bins"
	dbMount   = "/db"
	outDir    = "checkm2"
)

type Config struct {
	Image string
	// Database is the host path of the CheckM2 DIAMOND database.
	Database    string
	Threads     int
	Timeout     time.Duration
	CPULimit    float64
	MemoryLimit int64
	Logger      *slog.Logger
}

// CheckM2 implements adapter.Inspector.
type CheckM2 struct {
	cfg Config
	run func(context.Context, *docker.RunOpts) (*docker.RunResult, error)
}

var _ adapter.Inspector = (*CheckM2)(nil)

func New(cfg Config) *CheckM2 {
	if cfg.Threads < 1 {
		cfg.Threads = 1
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.Discard()
	}
	return &CheckM2{cfg: cfg, run: docker.RunContainer}
}

// WithRunner swaps the container runner.
func (c *CheckM2) WithRunner(run func(context.Context, *docker.RunOpts) (*docker.RunResult, error)) *CheckM2 {
	cp := *c
	cp.run = run
	return &cp
}

// Extension returns the file extension CheckM2 should match for a bin file,
// e.g. "fa" or "fa.gz".
func Extension(binFile string) string {
	base := filepath.Base(binFile)
	return strings.TrimPrefix(strings.TrimPrefix(base, adapter.BinName(base)), ".")
}

// Command builds the checkm2 invocation.
func (c *CheckM2) Command(ext string) []string {
	cmd := []string{
		"checkm2", "predict",
		"--input", binsMount,
		"--output-directory", "/workspace/" + outDir,
		"--extension", ext,
		"--threads", strconv.Itoa(c.cfg.Threads),
		"--force",
	}
	if c.cfg.Database != "" {
		cmd = append(cmd, "--database_path", dbMount+"/"+filepath.Base(c.cfg.Database))
	}
	return cmd
}

// Inspect runs CheckM2 over the directory holding binFiles. All files must
// share one directory and extension; results are limited to those bins.
func (c *CheckM2) Inspect(ctx context.Context, binFiles []string) (q map[string]result.Quality, err error) {
	ctx, span := telemetry.StartSpan(ctx, "inspect.CheckM2", attribute.Int("metabench.bins", len(binFiles)))
	defer func() { telemetry.EndSpan(span, err) }()

	if len(binFiles) == 0 {
		return map[string]result.Quality{}, nil
	}
	dir, ext := filepath.Dir(binFiles[0]), Extension(binFiles[0])
	wanted := map[string]bool{}
	for _, f := range binFiles {
		if filepath.Dir(f) != dir || Extension(f) != ext {
			return nil, fmt.Errorf("%w: bins must share one directory and extension", ErrInspectFailed)
		}
		wanted[adapter.BinName(f)] = true
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolving bin dir: %w", err)
	}

	work, err := os.MkdirTemp("", "metabench-checkm2-")
	if err != nil {
		return nil, fmt.Errorf("creating work dir: %w", err)
	}
	defer os.RemoveAll(work)

	mounts := []docker.Mount{{Source: absDir, Target: binsMount, ReadOnly: true}}
	if c.cfg.Database != "" {
		db, err := filepath.Abs(c.cfg.Database)
		if err != nil {
			return nil, fmt.Errorf("resolving database: %w", err)
		}
		mounts = append(mounts, docker.Mount{Source: filepath.Dir(db), Target: dbMount, ReadOnly: true})
	}

	var logs bytes.Buffer
	c.cfg.Logger.Info("running checkm2", "bins", len(binFiles), "dir", absDir, "image", c.cfg.Image)
	res, err := c.run(ctx, &docker.RunOpts{
		Image:       c.cfg.Image,
		Command:     c.Command(ext),
		WorkDir:     work,
		Timeout:     c.cfg.Timeout,
		ExtraMounts: mounts,
		CPULimit:    c.cfg.CPULimit,
		MemoryLimit: c.cfg.MemoryLimit,
		UserID:      fmt.Sprintf("%d:%d", os.Getuid(), os.Getgid()),
		Logs:        &logs,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInspectFailed, err)
	}
	if res.TimedOut {
		return nil, fmt.Errorf("%w: timed out after %s", ErrInspectFailed, c.cfg.Timeout)
	}
	if res.ExitCode != 0 {
		c.cfg.Logger.Debug("checkm2 output", "logs", logs.String())
		return nil, fmt.Errorf("%w: exit code %d", ErrInspectFailed, res.ExitCode)
	}

	all, err := adapter.ReadQuality([]string{filepath.Join(work, outDir, "quality_report.tsv")})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInspectFailed, err)
	}
	q = make(map[string]result.Quality, len(wanted))
	for id, v := range all {
		if wanted[id] {
			v.Source = "checkm2"
			q[id] = v
		}
	}
	return q, nil
}
