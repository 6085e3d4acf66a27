package handlers

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phdash/internal/config"
	"phdash/internal/store"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	config.Reset()
	t.Cleanup(config.Reset)

	root := NewRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestGenerateThenVerify(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "snapshot")

	out, err := execute(t, "generate", "--data-dir", dir, "--samples", "40", "--seed", "7")
	require.NoError(t, err)
	assert.Contains(t, out, "Files written")

	pc, err := store.New(dir).LoadPointCloud()
	require.NoError(t, err)
	assert.Equal(t, 40, pc.NSamples)

	out, err = execute(t, "verify", "--data-dir", dir)
	require.NoError(t, err)
	assert.NotContains(t, out, "FAIL")
}

func TestVerify_FailsOnMissingSnapshot(t *testing.T) {
	out, err := execute(t, "verify", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Contains(t, out, "FAIL")
}

func TestRootCmd_LoadsConfigOncePerRun(t *testing.T) {
	loads := 0
	loadConfig = func(path string) (*config.Config, error) {
		loads++
		return config.Load(path)
	}
	t.Cleanup(func() { loadConfig = config.Load })

	for i := 0; i < 3; i++ {
		NewRootCmd()
	}
	_, err := execute(t, "verify", "--data-dir", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, 1, loads)
}

func TestPipelineConfig(t *testing.T) {
	gen := config.Generate{
		Samples:          120,
		Centers:          [][]float64{{0, 0}, {4, 4}},
		ClusterStd:       0.5,
		Seed:             9,
		NoiseFraction:    0.2,
		NoiseSeed:        3,
		NoiseMaxAttempts: 50,
		MaxThresholds:    6,
		DensityK:         5,
		TSNEIterations:   400,
		Compress:         true,
	}

	pc := PipelineConfig(gen)
	assert.Equal(t, 120, pc.Blobs.NSamples)
	assert.Equal(t, gen.Centers, pc.Blobs.Centers)
	assert.Equal(t, uint64(9), pc.Blobs.Seed)
	assert.Equal(t, uint64(9), pc.TSNE.Seed)
	assert.Equal(t, uint64(3), pc.Noise.Seed)
	assert.Equal(t, 50, pc.Noise.MaxAttempts)
	assert.Equal(t, 6, pc.MaxThresholds)
	assert.Equal(t, 5, pc.DensityK)
	assert.Equal(t, 400, pc.TSNE.Iterations)
	assert.True(t, pc.Compress)
	assert.False(t, pc.Previews)
}
