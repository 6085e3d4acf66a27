package projection

import (
	"errors"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/mds"

	"phdash/internal/metrics"
)

// MDS embeds points in two dimensions with classical (Torgerson) scaling of
// their Euclidean distance matrix.
func MDS(points [][]float64) (*mat.Dense, error) {
	if len(points) < 2 {
		return nil, ErrTooFewPoints
	}
	dist := metrics.Euclidean(points)

	var coords mat.Dense
	k, _ := mds.TorgersonScaling(&coords, nil, dist)
	if k == 0 || coords.IsEmpty() {
		return nil, errors.New("classical scaling found no positive eigenvalues")
	}

	n := len(points)
	out := mat.NewDense(n, Components, nil)
	for j := 0; j < Components && j < k; j++ {
		for i := 0; i < n; i++ {
			out.Set(i, j, coords.At(i, j))
		}
	}
	flipSigns(out)
	return out, nil
}
