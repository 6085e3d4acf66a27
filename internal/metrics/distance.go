// Package metrics computes the pairwise distance matrices the cluster
// evolution is run on.
package metrics

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"phdash/internal/core"
)

// ErrSingularCovariance is returned when the Mahalanobis metric cannot invert
// the sample covariance of the point cloud.
var ErrSingularCovariance = errors.New("covariance matrix is singular")

// DefaultDensityNeighbors is the k used for local density estimation.
const DefaultDensityNeighbors = 10

// Func computes a full pairwise distance matrix over points.
type Func func(points [][]float64) (*mat.SymDense, error)

// Config names one distance-matrix computation.
type Config struct {
	Key  core.MetricKey
	Name string
	Func Func
}

// Configs returns the four distance configurations in generation order.
// densityK is the neighbourhood size for the density-normalized variants.
func Configs(densityK int) []Config {
	return []Config{
		{Key: core.MetricEuclidean, Name: core.MetricEuclidean.DisplayName(), Func: func(pts [][]float64) (*mat.SymDense, error) {
			return Euclidean(pts), nil
		}},
		{Key: core.MetricMahalanobis, Name: core.MetricMahalanobis.DisplayName(), Func: Mahalanobis},
		{Key: core.MetricDensityEuclidean, Name: core.MetricDensityEuclidean.DisplayName(), Func: func(pts [][]float64) (*mat.SymDense, error) {
			return DensityNormalized(Euclidean(pts), densityK), nil
		}},
		{Key: core.MetricDensityMahalanobis, Name: core.MetricDensityMahalanobis.DisplayName(), Func: func(pts [][]float64) (*mat.SymDense, error) {
			base, err := Mahalanobis(pts)
			if err != nil {
				return nil, err
			}
			return DensityNormalized(base, densityK), nil
		}},
	}
}

// Euclidean returns the plain Euclidean distance matrix.
func Euclidean(points [][]float64) *mat.SymDense {
	n := len(points)
	if n == 0 {
		return &mat.SymDense{}
	}
	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, floats.Distance(points[i], points[j], 2))
		}
	}
	return d
}

// Mahalanobis returns distances under the inverse sample covariance of the
// whole point cloud.
func Mahalanobis(points [][]float64) (*mat.SymDense, error) {
	n := len(points)
	if n < 2 {
		return nil, fmt.Errorf("mahalanobis needs at least 2 points, got %d", n)
	}
	dim := len(points[0])
	x := mat.NewDense(n, dim, nil)
	for i, p := range points {
		x.SetRow(i, p)
	}

	var cov mat.SymDense
	stat.CovarianceMatrix(&cov, x, nil)

	var chol mat.Cholesky
	if ok := chol.Factorize(&cov); !ok {
		return nil, ErrSingularCovariance
	}
	var inv mat.SymDense
	if err := chol.InverseTo(&inv); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSingularCovariance, err)
	}

	d := mat.NewSymDense(n, nil)
	diff := mat.NewVecDense(dim, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			for k := 0; k < dim; k++ {
				diff.SetVec(k, points[i][k]-points[j][k])
			}
			sq := mat.Inner(diff, &inv, diff)
			d.SetSym(i, j, math.Sqrt(math.Max(sq, 0)))
		}
	}
	return d, nil
}

// LocalScales returns, for every point, the mean distance to its k nearest
// neighbours under base. k is clamped to [1, n-1].
func LocalScales(base mat.Symmetric, k int) []float64 {
	n := base.SymmetricDim()
	scales := make([]float64, n)
	if n < 2 {
		return scales
	}
	k = min(max(k, 1), n-1)

	row := make([]float64, 0, n-1)
	for i := 0; i < n; i++ {
		row = row[:0]
		for j := 0; j < n; j++ {
			if j != i {
				row = append(row, base.At(i, j))
			}
		}
		sort.Float64s(row)
		scales[i] = floats.Sum(row[:k]) / float64(k)
	}
	return scales
}

// DensityNormalized rescales base by local point density:
// d'(i,j) = d(i,j) / sqrt(r_i * r_j), where r is the k-NN mean distance.
// Points with a zero scale (duplicates) borrow the smallest positive scale.
func DensityNormalized(base *mat.SymDense, k int) *mat.SymDense {
	n := base.SymmetricDim()
	scales := LocalScales(base, k)

	minPositive := math.Inf(1)
	for _, s := range scales {
		if s > 0 && s < minPositive {
			minPositive = s
		}
	}
	if math.IsInf(minPositive, 1) {
		minPositive = 1
	}
	for i, s := range scales {
		if s <= 0 {
			scales[i] = minPositive
		}
	}

	d := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			d.SetSym(i, j, base.At(i, j)/math.Sqrt(scales[i]*scales[j]))
		}
	}
	return d
}

// Check reports the first violation of the distance-matrix invariants:
// square, symmetric, zero diagonal, non-negative.
func Check(m mat.Matrix, tol float64) error {
	r, c := m.Dims()
	if r != c {
		return fmt.Errorf("matrix is %dx%d, not square", r, c)
	}
	for i := 0; i < r; i++ {
		if v := m.At(i, i); math.Abs(v) > tol {
			return fmt.Errorf("diagonal entry (%d,%d) is %g", i, i, v)
		}
		for j := i + 1; j < c; j++ {
			a, b := m.At(i, j), m.At(j, i)
			if math.Abs(a-b) > tol {
				return fmt.Errorf("entries (%d,%d)=%g and (%d,%d)=%g differ", i, j, a, j, i, b)
			}
			if a < 0 {
				return fmt.Errorf("entry (%d,%d) is negative: %g", i, j, a)
			}
		}
	}
	return nil
}
