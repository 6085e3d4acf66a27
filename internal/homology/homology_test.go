package homology

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"phdash/internal/metrics"
	"phdash/internal/synth"
)

// line places points on the real line so MST weights are the gaps.
func line(xs ...float64) [][]float64 {
	pts := make([][]float64, len(xs))
	for i, x := range xs {
		pts[i] = []float64{x}
	}
	return pts
}

func distinct(labels []int) map[int]bool {
	seen := make(map[int]bool)
	for _, l := range labels {
		seen[l] = true
	}
	return seen
}

func TestPersistence_Line(t *testing.T) {
	d := metrics.Euclidean(line(0, 1, 3, 10))
	pairs := Persistence(d)

	require.Len(t, pairs, 4)
	assert.Equal(t, 1.0, pairs[0].Death)
	assert.Equal(t, 2.0, pairs[1].Death)
	assert.Equal(t, 7.0, pairs[2].Death)
	assert.True(t, math.IsInf(pairs[3].Death, 1))
	for _, p := range pairs {
		assert.Equal(t, 0.0, p.Birth)
	}
}

func TestComputeClusterEvolution_PersistenceMatchesThresholds(t *testing.T) {
	d := metrics.Euclidean(line(0, 1, 3, 10, 10.5))

	res, err := NewAnalyzer(d, 5).ComputeClusterEvolution([]int{0, 0, 0, 1, 1})
	require.NoError(t, err)

	assert.Equal(t, Persistence(d), res.Persistence)
	require.Len(t, res.Persistence, 5)
	require.NotEmpty(t, res.Thresholds)
	assert.Equal(t, res.Persistence[3].Death, res.Thresholds[len(res.Thresholds)-1])
	assert.Greater(t, res.Thresholds[0], res.Persistence[0].Death)
}

func TestSpanningTree_EdgeCount(t *testing.T) {
	d := metrics.Euclidean(line(0, 1, 3, 10, 11))
	mst := SpanningTree(d)

	assert.Equal(t, 5, mst.Nodes().Len())
	assert.Equal(t, 4, mst.Edges().Len())
}

func TestComputeClusterEvolution_TwoGroups(t *testing.T) {
	pts := line(0, 0.5, 1, 20, 20.5, 21)
	trueLabels := []int{0, 0, 0, 1, 1, 1}

	res, err := NewAnalyzer(metrics.Euclidean(pts), 4).ComputeClusterEvolution(trueLabels)
	require.NoError(t, err)

	require.Equal(t, []string{ReportKey}, keys(res))
	stages, err := res.Stages()
	require.NoError(t, err)

	require.Len(t, res.Thresholds, 4)
	assert.InDelta(t, 19.0, res.Thresholds[3], 1e-12)
	assert.Equal(t, len(res.Thresholds), stages.Len())

	// The first threshold (0.5 + 18.5/4) joins each group but not the two.
	first := stages.Oldest()
	assert.Equal(t, StageKey(1, res.Thresholds[0]), first.Key)
	assert.Equal(t, trueLabels, first.Value)

	// The last threshold is the largest death: everything is one component.
	last := stages.Newest()
	assert.Equal(t, []int{0, 0, 0, 0, 0, 0}, last.Value)
}

func TestComputeClusterEvolution_LabelLengths(t *testing.T) {
	cfg := synth.DefaultBlobConfig()
	cfg.NSamples = 80
	pc, err := synth.GenerateBlobs(cfg)
	require.NoError(t, err)

	for _, mc := range metrics.Configs(metrics.DefaultDensityNeighbors) {
		d, err := mc.Func(pc.Points)
		require.NoError(t, err)

		res, err := NewAnalyzer(d, DefaultMaxThresholds).ComputeClusterEvolution(pc.TrueLabels)
		require.NoError(t, err)
		stages, err := res.Stages()
		require.NoError(t, err)

		assert.LessOrEqual(t, stages.Len(), DefaultMaxThresholds)
		assert.Greater(t, stages.Len(), 0)
		for pair := stages.Oldest(); pair != nil; pair = pair.Next() {
			assert.Len(t, pair.Value, len(pc.Points), "%s %s", mc.Key, pair.Key)
		}
		assert.Len(t, distinct(stages.Newest().Value), 1)
	}
}

func TestComputeClusterEvolution_LabelMismatch(t *testing.T) {
	_, err := NewAnalyzer(metrics.Euclidean(line(0, 1)), 3).ComputeClusterEvolution([]int{0})
	assert.Error(t, err)
}

func TestComputeClusterEvolution_SinglePoint(t *testing.T) {
	res, err := NewAnalyzer(metrics.Euclidean(line(5)), 3).ComputeClusterEvolution([]int{0})
	require.NoError(t, err)

	assert.Empty(t, res.Thresholds)
	stages, err := res.Stages()
	require.NoError(t, err)
	assert.Equal(t, 0, stages.Len())
}

func TestComputeClusterEvolution_EqualDeaths(t *testing.T) {
	res, err := NewAnalyzer(metrics.Euclidean(line(0, 1, 2)), 5).ComputeClusterEvolution([]int{0, 0, 1})
	require.NoError(t, err)
	assert.Equal(t, []float64{1}, res.Thresholds)
}

func TestNewAnalyzer_DefaultThresholds(t *testing.T) {
	a := NewAnalyzer(metrics.Euclidean(line(0, 1)), 0)
	assert.Equal(t, DefaultMaxThresholds, a.MaxThresholds)
}

func TestAlignLabels(t *testing.T) {
	trueLabels := []int{2, 2, 2, 0, 0, 2, 1}
	components := [][]int{{6}, {3, 4, 5}, {0, 1, 2}}

	got := AlignLabels(components, trueLabels)

	// {0,1,2} and {3,4,5} are equal size; the one with the lower index goes
	// first and takes label 2. {3,4,5} takes majority 0. {6} takes 1.
	assert.Equal(t, []int{2, 2, 2, 0, 0, 0, 1}, got)
}

func TestAlignLabels_ClaimedLabelGetsFreshID(t *testing.T) {
	trueLabels := []int{0, 0, 0, 0, 1}
	components := [][]int{{0, 1, 2}, {3}, {4}}

	got := AlignLabels(components, trueLabels)

	assert.Equal(t, []int{0, 0, 0, 2, 1}, got)
}

func keys(res *Result) []string {
	var out []string
	for pair := res.Labels.Oldest(); pair != nil; pair = pair.Next() {
		out = append(out, pair.Key)
	}
	return out
}
