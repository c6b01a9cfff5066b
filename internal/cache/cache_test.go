package cache_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/signalnine/metabench/internal/cache"
	"github.com/signalnine/metabench/internal/result"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPutGet(t *testing.T) {
	c, err := cache.Open(cache.Config{InMemory: true})
	require.NoError(t, err)
	defer c.Close()

	key := cache.Key("mag", "S1", "nf-core/mag", "abc")
	_, ok, err := c.Get(key)
	require.NoError(t, err)
	assert.False(t, ok)

	in := &result.PipelineResult{
		Pipeline: "mag",
		Sample:   "S1",
		Contigs:  []result.Contig{{ID: "c1", Length: 10}},
		Binnings: []result.Binning{{Method: "m", Bins: []result.Bin{{ID: "b", Members: []string{"c1"}}}}},
		Assembly: result.AssemblyStats{TotalLength: 10, N50: 10, L50: 1, ContigCount: 1},
	}
	require.NoError(t, c.Put(key, in))
	out, ok, err := c.Get(key)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, in, out)
}

func TestPersistentDir(t *testing.T) {
	dir := t.TempDir()
	c, err := cache.Open(cache.Config{Dir: dir, TTL: time.Hour})
	require.NoError(t, err)
	require.NoError(t, c.Put("k", &result.PipelineResult{Pipeline: "p"}))
	require.NoError(t, c.Close())

	c, err = cache.Open(cache.Config{Dir: dir})
	require.NoError(t, err)
	defer c.Close()
	got, ok, err := c.Get("k")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "p", got.Pipeline)
}

func TestNilCache(t *testing.T) {
	var c *cache.Cache
	_, ok, err := c.Get("k")
	assert.NoError(t, err)
	assert.False(t, ok)
	assert.NoError(t, c.Put("k", &result.PipelineResult{}))
	assert.NoError(t, c.Close())
}

func TestOpenRequiresDir(t *testing.T) {
	_, err := cache.Open(cache.Config{})
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "bins"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "assembly.fa"), []byte(">c1\nACGT\n"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(root, "bins", "b.fa"), []byte(">c1\nACGT\n"), 0o644))

	a, err := cache.Fingerprint(context.Background(), root)
	require.NoError(t, err)
	b, err := cache.Fingerprint(context.Background(), root)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	require.NoError(t, os.WriteFile(filepath.Join(root, "bins", "b2.fa"), []byte(">c2\nA\n"), 0o644))
	c, err := cache.Fingerprint(context.Background(), root)
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	_, err = cache.Fingerprint(context.Background(), filepath.Join(root, "missing"))
	assert.Error(t, err)
}

func TestFingerprintCancelled(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "assembly.fa"), []byte(">c1\nACGT\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := cache.Fingerprint(ctx, root)
	assert.ErrorIs(t, err, context.Canceled)
}
