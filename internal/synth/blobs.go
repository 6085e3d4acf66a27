// Package synth builds the synthetic labelled point cloud the dashboard is
// generated from.
package synth

import (
	"errors"
	"fmt"
	"math/rand/v2"

	"gonum.org/v1/gonum/stat/distuv"

	"phdash/internal/core"
)

// DefaultCenters are the five well separated 3D cluster centers.
var DefaultCenters = [][]float64{
	{-8, -8, -8},
	{8, -8, 8},
	{-8, 8, 8},
	{8, 8, -8},
	{0, 0, 0},
}

// BlobConfig controls isotropic Gaussian blob generation.
type BlobConfig struct {
	NSamples   int         // Total number of points
	Centers    [][]float64 // One row per cluster center
	ClusterStd float64     // Standard deviation of every coordinate
	Seed       uint64      // Seed for the sampling source
	Shuffle    bool        // Shuffle points after generation
}

// DefaultBlobConfig returns the dataset used by the dashboard.
func DefaultBlobConfig() BlobConfig {
	return BlobConfig{
		NSamples:   250,
		Centers:    DefaultCenters,
		ClusterStd: 1.2,
		Seed:       42,
		Shuffle:    true,
	}
}

// NewSource returns the deterministic random source used for a seed.
func NewSource(seed uint64) rand.Source {
	return rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)
}

// GenerateBlobs samples cfg.NSamples points around cfg.Centers. Points are
// split across centers as evenly as possible, the first NSamples%len(Centers)
// centers receiving one extra point.
func GenerateBlobs(cfg BlobConfig) (*core.PointCloud, error) {
	if cfg.NSamples <= 0 {
		return nil, errors.New("n_samples must be positive")
	}
	if len(cfg.Centers) == 0 {
		return nil, errors.New("at least one center is required")
	}
	if cfg.ClusterStd <= 0 {
		return nil, fmt.Errorf("cluster std must be positive, got %g", cfg.ClusterStd)
	}
	nFeatures := len(cfg.Centers[0])
	for i, c := range cfg.Centers {
		if len(c) != nFeatures {
			return nil, fmt.Errorf("center %d has %d features, expected %d", i, len(c), nFeatures)
		}
	}

	src := NewSource(cfg.Seed)
	noise := distuv.Normal{Mu: 0, Sigma: cfg.ClusterStd, Src: src}

	k := len(cfg.Centers)
	perCenter := make([]int, k)
	for i := range perCenter {
		perCenter[i] = cfg.NSamples / k
	}
	for i := 0; i < cfg.NSamples%k; i++ {
		perCenter[i]++
	}

	points := make([][]float64, 0, cfg.NSamples)
	labels := make([]int, 0, cfg.NSamples)
	for c, count := range perCenter {
		for i := 0; i < count; i++ {
			p := make([]float64, nFeatures)
			for j := range p {
				p[j] = cfg.Centers[c][j] + noise.Rand()
			}
			points = append(points, p)
			labels = append(labels, c)
		}
	}

	if cfg.Shuffle {
		rand.New(src).Shuffle(len(points), func(i, j int) {
			points[i], points[j] = points[j], points[i]
			labels[i], labels[j] = labels[j], labels[i]
		})
	}

	return &core.PointCloud{
		Points:     points,
		TrueLabels: labels,
		NSamples:   cfg.NSamples,
		NFeatures:  nFeatures,
		NClusters:  k,
	}, nil
}

// BinCount returns the number of points per label, indexed by label.
func BinCount(labels []int) []int {
	maxLabel := -1
	for _, l := range labels {
		if l > maxLabel {
			maxLabel = l
		}
	}
	counts := make([]int, maxLabel+1)
	for _, l := range labels {
		if l >= 0 {
			counts[l]++
		}
	}
	return counts
}
