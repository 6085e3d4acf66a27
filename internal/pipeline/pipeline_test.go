package pipeline

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"phdash/internal/core"
	"phdash/internal/store"
)

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.Blobs.NSamples = 60
	cfg.TSNE.Iterations = 300
	return cfg
}

func build(t *testing.T, dir string, cfg *Config) *Pipeline {
	t.Helper()
	p, err := NewBuilder().WithDataDir(dir).WithConfig(cfg).Build()
	require.NoError(t, err)
	return p
}

func TestRun_WritesSnapshot(t *testing.T) {
	dir := t.TempDir()
	res, err := build(t, dir, testConfig()).Run(context.Background())
	require.NoError(t, err)

	for _, name := range []string{
		store.PHDataFile,
		store.PointCloudFile,
		store.BaseConfigFile,
		store.ManifestFile,
		"dist_euclid_dist.npy",
		"dist_maha_dist.npy",
		"dist_density_euclid.npy",
		"dist_density_maha.npy",
		"pca.npy",
		"tsne.npy",
		"mds.npy",
		"lda.npy",
	} {
		assert.FileExists(t, filepath.Join(dir, name))
	}

	assert.Equal(t, []string{"euclid_dist", "maha_dist", "density_euclid", "density_maha"}, core.Metrics(res.PHData))
	for pair := res.PHData.Oldest(); pair != nil; pair = pair.Next() {
		keys := core.StageKeys(pair.Value)
		require.NotEmpty(t, keys)
		assert.Equal(t, core.OriginalLabelsKey, keys[0])
		assert.Greater(t, len(keys), 1, "metric %s has no stages", pair.Key)
		for stage := pair.Value.Oldest(); stage != nil; stage = stage.Next() {
			assert.Len(t, stage.Value, 60, "%s / %s", pair.Key, stage.Key)
		}
	}

	require.Len(t, res.Stats.Thresholds, 4)
	for _, th := range res.Stats.Thresholds {
		assert.Positive(t, th.Count)
		assert.LessOrEqual(t, th.Count, 10)
		assert.False(t, math.IsNaN(th.Silhouette), th.Name)
		assert.NotEmpty(t, th.Quality, th.Name)
		assert.GreaterOrEqual(t, th.Negative, 0, th.Name)
		assert.Less(t, th.Negative, 60, th.Name)
	}
	assert.Greater(t, res.Stats.Thresholds[0].Silhouette, 0.3)
	assert.Len(t, res.Projections, 4)
	assert.Empty(t, res.Stats.Skipped)
	assert.Len(t, res.ExplainedVariance, 2)
	assert.Len(t, res.Stats.Stages, totalSteps)

	st := store.New(dir)
	loaded, err := st.LoadPHData()
	require.NoError(t, err)
	assert.Equal(t, core.Metrics(res.PHData), core.Metrics(loaded))

	m, err := st.LoadManifest()
	require.NoError(t, err)
	assert.Equal(t, res.Manifest.RunID, m.RunID)
	assert.Equal(t, 60, m.NSamples)
	assert.Contains(t, m.Files, store.ManifestFile)
}

func TestRun_OriginalLabelsAreNoisyTruth(t *testing.T) {
	res, err := build(t, t.TempDir(), testConfig()).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, res.Stats.Swaps)
	assert.Positive(t, res.Stats.Outliers)
	assert.LessOrEqual(t, res.Stats.Outliers, 6)
	for pair := res.PHData.Oldest(); pair != nil; pair = pair.Next() {
		original, ok := pair.Value.Get(core.OriginalLabelsKey)
		require.True(t, ok)
		assert.Equal(t, res.PointCloud.TrueLabels, original)
	}
}

func TestRun_Deterministic(t *testing.T) {
	dirA, dirB := t.TempDir(), t.TempDir()
	_, err := build(t, dirA, testConfig()).Run(context.Background())
	require.NoError(t, err)
	_, err = build(t, dirB, testConfig()).Run(context.Background())
	require.NoError(t, err)

	for _, name := range []string{store.PHDataFile, store.PointCloudFile, "tsne.npy", "dist_density_maha.npy"} {
		a, err := os.ReadFile(filepath.Join(dirA, name))
		require.NoError(t, err)
		b, err := os.ReadFile(filepath.Join(dirB, name))
		require.NoError(t, err)
		assert.Equal(t, a, b, name)
	}
}

func TestRun_SingleClusterSkipsLDA(t *testing.T) {
	dir := t.TempDir()
	stale := filepath.Join(dir, "lda.npy")
	require.NoError(t, os.WriteFile(stale, []byte("stale"), 0644))

	cfg := testConfig()
	cfg.Blobs.Centers = [][]float64{{0, 0, 0}}
	res, err := build(t, dir, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []core.ProjectionKind{core.ProjectionLDA}, res.Stats.Skipped)
	assert.NoFileExists(t, stale)
	assert.Len(t, res.Projections, 3)
	assert.Equal(t, []string{"lda"}, res.Manifest.Skipped)
	for _, th := range res.Stats.Thresholds {
		assert.True(t, math.IsNaN(th.Silhouette))
		assert.Empty(t, th.Quality)
	}
}

func TestRun_Compressed(t *testing.T) {
	dir := t.TempDir()
	cfg := testConfig()
	cfg.Compress = true
	_, err := build(t, dir, cfg).Run(context.Background())
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "pca.npy.zst"))
	assert.FileExists(t, filepath.Join(dir, "dist_euclid_dist.npy.zst"))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	dir := t.TempDir()
	_, err := build(t, dir, testConfig()).Run(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.NoFileExists(t, filepath.Join(dir, store.PHDataFile))
}

type failingStore struct {
	*store.Store
	phSaved bool
}

func (f *failingStore) SaveDistanceMatrix(core.MetricKey, mat.Matrix, bool) error {
	return errors.New("disk full")
}

func (f *failingStore) SavePHData(ph *core.PHData) error {
	f.phSaved = true
	return f.Store.SavePHData(ph)
}

func TestRun_AbortsOnWriteError(t *testing.T) {
	st := &failingStore{Store: store.New(t.TempDir())}
	p, err := NewBuilder().WithStore(st).WithConfig(testConfig()).Build()
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk full")
	assert.False(t, st.phSaved)
}

type recordingPreviews struct {
	kinds []core.ProjectionKind
}

func (r *recordingPreviews) WriteProjectionPreviews(dir string, projections []Projection, labels []int) ([]string, error) {
	var files []string
	for _, p := range projections {
		r.kinds = append(r.kinds, p.Kind)
		files = append(files, "preview_"+string(p.Kind)+".png")
	}
	return files, nil
}

func TestRun_Previews(t *testing.T) {
	previews := &recordingPreviews{}
	p, err := NewBuilder().WithDataDir(t.TempDir()).WithConfig(testConfig()).WithPreviews(previews).Build()
	require.NoError(t, err)

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, core.ProjectionKinds(), previews.kinds)
	assert.Contains(t, res.Manifest.Files, "preview_tsne.png")
}

func TestRun_DefaultDataset(t *testing.T) {
	if testing.Short() {
		t.Skip("full-size dataset")
	}
	cfg := DefaultConfig()
	cfg.TSNE.Iterations = 250
	res, err := build(t, t.TempDir(), cfg).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 250, res.PointCloud.NSamples)
	assert.Equal(t, 5, res.PointCloud.NClusters)
	assert.Equal(t, []int{50, 50, 50, 50, 50}, res.Stats.ClusterSizes)
	assert.Equal(t, 12, res.Stats.Swaps)
	for pair := res.PHData.Oldest(); pair != nil; pair = pair.Next() {
		for stage := pair.Value.Oldest(); stage != nil; stage = stage.Next() {
			assert.Len(t, stage.Value, 250)
		}
	}
}
