// Package projection computes the 2D embeddings shown next to the cluster
// evolution: PCA, t-SNE, classical MDS and LDA.
package projection

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Components is the target dimensionality of every projection.
const Components = 2

var (
	// ErrTooFewClasses is returned by LDA when fewer than two classes exist.
	ErrTooFewClasses = errors.New("insufficient classes for a discriminant projection")
	// ErrTooFewPoints is returned when a projection needs more points.
	ErrTooFewPoints = errors.New("not enough points to project")
)

// toDense copies row-major points into a matrix.
func toDense(points [][]float64) (*mat.Dense, error) {
	if len(points) == 0 {
		return nil, ErrTooFewPoints
	}
	dim := len(points[0])
	if dim == 0 {
		return nil, errors.New("points have no features")
	}
	x := mat.NewDense(len(points), dim, nil)
	for i, p := range points {
		if len(p) != dim {
			return nil, fmt.Errorf("point %d has %d features, expected %d", i, len(p), dim)
		}
		x.SetRow(i, p)
	}
	return x, nil
}

// center returns x with column means subtracted, and the means.
func center(x *mat.Dense) (*mat.Dense, []float64) {
	r, c := x.Dims()
	means := make([]float64, c)
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += x.At(i, j)
		}
		means[j] = sum / float64(r)
	}
	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 { return v - means[j] }, x)
	return out, means
}

// flipSigns makes the largest-magnitude entry of every column positive so
// that eigenvector sign ambiguity does not leak into the output.
func flipSigns(m *mat.Dense) {
	r, c := m.Dims()
	for j := 0; j < c; j++ {
		var big float64
		for i := 0; i < r; i++ {
			if v := m.At(i, j); math.Abs(v) > math.Abs(big) {
				big = v
			}
		}
		if big < 0 {
			for i := 0; i < r; i++ {
				m.Set(i, j, -m.At(i, j))
			}
		}
	}
}

// Rows converts a matrix into row-major slices.
func Rows(m mat.Matrix) [][]float64 {
	r, c := m.Dims()
	out := make([][]float64, r)
	for i := range out {
		row := make([]float64, c)
		for j := range row {
			row[j] = m.At(i, j)
		}
		out[i] = row
	}
	return out
}
