package homology

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrSingleCluster is returned when silhouette is undefined because every
// point carries the same label.
var ErrSingleCluster = errors.New("silhouette needs at least two clusters")

// SilhouetteAnalysis summarises how well a labelling separates under a
// distance matrix.
type SilhouetteAnalysis struct {
	Overall float64   // Mean over all points
	Points  []float64 // One score per point
	Quality string    // Interpretation of Overall
}

// Negative counts the points that sit closer to another cluster than to
// their own.
func (s *SilhouetteAnalysis) Negative() int {
	count := 0
	for _, v := range s.Points {
		if v < 0 {
			count++
		}
	}
	return count
}

// Silhouette scores labels against dist. Scores lie in [-1, 1]; a point
// alone in its cluster scores 0.
func Silhouette(dist mat.Symmetric, labels []int) (*SilhouetteAnalysis, error) {
	n := dist.SymmetricDim()
	if len(labels) != n {
		return nil, fmt.Errorf("%d labels for a %dx%d distance matrix", len(labels), n, n)
	}

	sizes := make(map[int]int)
	for _, l := range labels {
		sizes[l]++
	}
	if len(sizes) < 2 {
		return nil, ErrSingleCluster
	}
	clusters := make([]int, 0, len(sizes))
	for l := range sizes {
		clusters = append(clusters, l)
	}
	sort.Ints(clusters)

	res := &SilhouetteAnalysis{Points: make([]float64, n)}
	sums := make(map[int]float64, len(clusters))
	for i := 0; i < n; i++ {
		clear(sums)
		for j := 0; j < n; j++ {
			if i != j {
				sums[labels[j]] += dist.At(i, j)
			}
		}

		own := labels[i]
		if sizes[own] == 1 {
			continue
		}
		a := sums[own] / float64(sizes[own]-1)
		b := math.Inf(1)
		for _, l := range clusters {
			if l == own {
				continue
			}
			b = math.Min(b, sums[l]/float64(sizes[l]))
		}
		if m := math.Max(a, b); m > 0 {
			res.Points[i] = (b - a) / m
		}
	}

	for _, s := range res.Points {
		res.Overall += s
	}
	res.Overall /= float64(n)
	res.Quality = interpretSilhouette(res.Overall)
	return res, nil
}

// interpretSilhouette provides a human-readable interpretation
func interpretSilhouette(score float64) string {
	switch {
	case score >= 0.71:
		return "strong structure"
	case score >= 0.51:
		return "reasonable structure"
	case score >= 0.26:
		return "weak structure"
	case score >= 0:
		return "no substantial structure"
	default:
		return "mislabelled"
	}
}
