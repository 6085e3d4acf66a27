package homology

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phdash/internal/metrics"
)

func TestSilhouette_SeparatedGroups(t *testing.T) {
	dist := metrics.Euclidean(line(0, 1, 10, 11))
	res, err := Silhouette(dist, []int{0, 0, 1, 1})
	require.NoError(t, err)

	// a = 1 everywhere; b = 10.5 for the outer points and 9.5 for the inner ones
	outer, inner := 9.5/10.5, 8.5/9.5
	assert.InDelta(t, outer, res.Points[0], 1e-12)
	assert.InDelta(t, inner, res.Points[1], 1e-12)
	assert.InDelta(t, inner, res.Points[2], 1e-12)
	assert.InDelta(t, (outer+inner)/2, res.Overall, 1e-12)
	assert.Equal(t, "strong structure", res.Quality)
	assert.Zero(t, res.Negative())
}

func TestSilhouette_SwappedLabelsScoreNegative(t *testing.T) {
	dist := metrics.Euclidean(line(0, 1, 10, 11))
	res, err := Silhouette(dist, []int{0, 1, 0, 1})
	require.NoError(t, err)
	assert.Negative(t, res.Overall)
	assert.Equal(t, 4, res.Negative())
	assert.Equal(t, "mislabelled", res.Quality)
}

func TestSilhouette_SingletonScoresZero(t *testing.T) {
	dist := metrics.Euclidean(line(0, 1, 10))
	res, err := Silhouette(dist, []int{0, 0, 1})
	require.NoError(t, err)
	assert.Zero(t, res.Points[2])
}

func TestSilhouette_Errors(t *testing.T) {
	dist := metrics.Euclidean(line(0, 1, 2))
	_, err := Silhouette(dist, []int{0, 0, 0})
	assert.ErrorIs(t, err, ErrSingleCluster)

	_, err = Silhouette(dist, []int{0, 1})
	assert.Error(t, err)
}
