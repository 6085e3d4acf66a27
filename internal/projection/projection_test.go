package projection

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/floats"

	"phdash/internal/synth"
)

func blobCloud(t *testing.T, n int) ([][]float64, []int) {
	t.Helper()
	cfg := synth.DefaultBlobConfig()
	cfg.NSamples = n
	pc, err := synth.GenerateBlobs(cfg)
	require.NoError(t, err)
	return pc.Points, pc.TrueLabels
}

func TestPCA_RecoversDominantAxis(t *testing.T) {
	// Points spread along x with tiny y/z noise: PC1 is the x axis.
	pts := [][]float64{
		{-4, 0.1, 0}, {-2, -0.1, 0.05}, {0, 0.05, -0.05}, {2, -0.05, 0}, {4, 0, 0.1},
	}
	res, err := PCA(pts)
	require.NoError(t, err)

	r, c := res.Projection.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)
	for i, p := range pts {
		assert.InDelta(t, math.Abs(p[0]), math.Abs(res.Projection.At(i, 0)), 0.05)
	}
	assert.Greater(t, res.ExplainedVarianceRatio[0], 0.99)
	assert.LessOrEqual(t, floats.Sum(res.ExplainedVarianceRatio), 1.0+1e-9)
}

func TestPCA_Deterministic(t *testing.T) {
	pts, _ := blobCloud(t, 100)
	a, err := PCA(pts)
	require.NoError(t, err)
	b, err := PCA(pts)
	require.NoError(t, err)
	assert.Equal(t, Rows(a.Projection), Rows(b.Projection))
}

func TestPCA_Errors(t *testing.T) {
	_, err := PCA(nil)
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = PCA([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrTooFewPoints)

	_, err = PCA([][]float64{{1}, {2}})
	assert.Error(t, err)

	_, err = PCA([][]float64{{1, 2}, {3}})
	assert.Error(t, err)
}

func TestMDS_PreservesPlanarDistances(t *testing.T) {
	pts := [][]float64{{0, 0, 0}, {3, 0, 0}, {0, 4, 0}, {3, 4, 0}, {1, 1, 0}}
	proj, err := MDS(pts)
	require.NoError(t, err)

	for i := range pts {
		for j := range pts {
			want := floats.Distance(pts[i], pts[j], 2)
			got := math.Hypot(proj.At(i, 0)-proj.At(j, 0), proj.At(i, 1)-proj.At(j, 1))
			assert.InDelta(t, want, got, 1e-6)
		}
	}
}

func TestMDS_TooFewPoints(t *testing.T) {
	_, err := MDS([][]float64{{1, 2}})
	assert.ErrorIs(t, err, ErrTooFewPoints)
}

func TestLDA_SeparatesClasses(t *testing.T) {
	pts, labels := blobCloud(t, 100)
	proj, err := LDA(pts, labels)
	require.NoError(t, err)

	r, c := proj.Dims()
	assert.Equal(t, 100, r)
	assert.Equal(t, 2, c)

	// Class centroids in the projection are far apart relative to spread.
	centroids := make(map[int][2]float64)
	counts := make(map[int]int)
	for i, l := range labels {
		cen := centroids[l]
		cen[0] += proj.At(i, 0)
		cen[1] += proj.At(i, 1)
		centroids[l] = cen
		counts[l]++
	}
	for l, cen := range centroids {
		centroids[l] = [2]float64{cen[0] / float64(counts[l]), cen[1] / float64(counts[l])}
	}
	for a, ca := range centroids {
		for b, cb := range centroids {
			if a < b {
				assert.Greater(t, math.Hypot(ca[0]-cb[0], ca[1]-cb[1]), 1e-3)
			}
		}
	}
}

func TestLDA_TwoClassesGivesOneComponent(t *testing.T) {
	pts := [][]float64{{0, 0}, {0.1, 0.2}, {-0.1, 0.1}, {5, 5}, {5.1, 4.9}, {4.9, 5.2}}
	labels := []int{0, 0, 0, 1, 1, 1}

	assert.Equal(t, 1, LDAComponents(labels))
	proj, err := LDA(pts, labels)
	require.NoError(t, err)

	_, c := proj.Dims()
	assert.Equal(t, 1, c)
	// The two classes land on opposite sides of zero.
	assert.Less(t, proj.At(0, 0)*proj.At(3, 0), 0.0)
}

func TestLDA_SingleClassSkipped(t *testing.T) {
	pts := [][]float64{{0, 0}, {1, 1}, {2, 0}}
	_, err := LDA(pts, []int{3, 3, 3})
	assert.ErrorIs(t, err, ErrTooFewClasses)
	assert.Equal(t, 0, LDAComponents([]int{3, 3, 3}))
}

func TestLDA_LabelMismatch(t *testing.T) {
	_, err := LDA([][]float64{{0, 0}, {1, 1}}, []int{0})
	assert.Error(t, err)
}

func TestPerplexityFor(t *testing.T) {
	assert.Equal(t, 30.0, PerplexityFor(250))
	assert.Equal(t, 10.0, PerplexityFor(31))
	assert.Equal(t, 5.0, PerplexityFor(8))
}

func TestTSNE_SeparatesGroupsDeterministically(t *testing.T) {
	var pts [][]float64
	var labels []int
	for i := 0; i < 15; i++ {
		f := float64(i) * 0.01
		pts = append(pts, []float64{f, -f, f})
		labels = append(labels, 0)
		pts = append(pts, []float64{20 + f, 20 - f, 20})
		labels = append(labels, 1)
	}
	cfg := DefaultTSNEConfig()
	cfg.Iterations = 300
	cfg.ExaggerationIters = 100

	a, err := TSNE(context.Background(), pts, cfg)
	require.NoError(t, err)
	b, err := TSNE(context.Background(), pts, cfg)
	require.NoError(t, err)
	assert.Equal(t, Rows(a), Rows(b))

	// Mean within-group distance is smaller than mean between-group distance.
	var within, between float64
	var nw, nb int
	for i := range pts {
		for j := i + 1; j < len(pts); j++ {
			d := math.Hypot(a.At(i, 0)-a.At(j, 0), a.At(i, 1)-a.At(j, 1))
			require.False(t, math.IsNaN(d))
			if labels[i] == labels[j] {
				within += d
				nw++
			} else {
				between += d
				nb++
			}
		}
	}
	assert.Less(t, within/float64(nw), between/float64(nb))
}

func TestTSNE_Errors(t *testing.T) {
	_, err := TSNE(context.Background(), [][]float64{{0}, {1}}, DefaultTSNEConfig())
	assert.ErrorIs(t, err, ErrTooFewPoints)

	cfg := DefaultTSNEConfig()
	cfg.Perplexity = 10
	_, err = TSNE(context.Background(), [][]float64{{0, 0}, {1, 1}, {2, 3}}, cfg)
	assert.Error(t, err)
}

func TestTSNE_Cancelled(t *testing.T) {
	pts, _ := blobCloud(t, 20)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := TSNE(ctx, pts, DefaultTSNEConfig())
	assert.ErrorIs(t, err, context.Canceled)
}
