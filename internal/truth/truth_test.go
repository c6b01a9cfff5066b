package truth_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalnine/metabench/internal/result"
	"github.com/signalnine/metabench/internal/truth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gold = `@Version:0.9.1
@SampleID:S1

@@SEQUENCEID	BINID	TAXID	_LENGTH
c1	gA	562	1000
c2	gA	562	500
c3	gB	1280	2000
`

func TestParseBinning(t *testing.T) {
	gt, err := truth.ParseBinning(strings.NewReader(gold))
	require.NoError(t, err)
	assert.Equal(t, "S1", gt.Sample)
	assert.Equal(t, []string{"gA", "gB"}, gt.GenomeIDs())
	g, ok := gt.GenomeOf("c2")
	require.True(t, ok)
	assert.Equal(t, "gA", g)
	assert.Equal(t, 2000, gt.ContigLength["c3"])
	assert.Equal(t, "1280", gt.Genomes["gB"].TaxID)
}

func TestParseBinningMalformed(t *testing.T) {
	_, err := truth.ParseBinning(strings.NewReader("c1\tgA\n"))
	assert.ErrorIs(t, err, truth.ErrMalformed)

	_, err = truth.ParseBinning(strings.NewReader("@@SEQUENCEID\tBINID\n"))
	assert.ErrorIs(t, err, truth.ErrMalformed)

	_, err = truth.ParseBinning(strings.NewReader("@@SEQUENCEID\tBINID\t_LENGTH\nc1\tgA\tlong\n"))
	assert.ErrorIs(t, err, truth.ErrMalformed)
}

func TestLoadWithGenomes(t *testing.T) {
	dir := t.TempDir()
	bp := filepath.Join(dir, "gold.tsv")
	gp := filepath.Join(dir, "genomes.yaml")
	require.NoError(t, os.WriteFile(bp, []byte(gold), 0o644))
	require.NoError(t, os.WriteFile(gp, []byte(`genomes:
  gA:
    lineage: d__Bacteria;p__Pseudomonadota;g__Escherichia;s__Escherichia coli
    length: 4641652
  gB:
    lineage: d__Bacteria;p__Bacillota
`), 0o644))

	gt, err := truth.Load(bp, gp)
	require.NoError(t, err)
	assert.True(t, gt.HasTaxonomy())
	lin, ok := gt.Lineage("c1")
	require.True(t, ok)
	assert.Equal(t, "Escherichia coli", lin[result.RankSpecies])
	assert.Equal(t, int64(4641652), gt.Genomes["gA"].Length)
}
