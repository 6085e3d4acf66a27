package projection

import (
	"errors"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"
)

// PCAResult is a principal component projection.
type PCAResult struct {
	Projection             *mat.Dense // N x Components
	ExplainedVarianceRatio []float64  // One entry per kept component
}

// PCA projects points onto their first two principal components.
func PCA(points [][]float64) (*PCAResult, error) {
	x, err := toDense(points)
	if err != nil {
		return nil, err
	}
	n, dim := x.Dims()
	if n < 2 {
		return nil, ErrTooFewPoints
	}
	if dim < Components {
		return nil, errors.New("pca needs at least 2 features")
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(x, nil); !ok {
		return nil, errors.New("principal component analysis failed")
	}
	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	centered, _ := center(x)
	proj := mat.NewDense(n, Components, nil)
	proj.Mul(centered, vecs.Slice(0, dim, 0, Components))
	flipSigns(proj)

	total := floats.Sum(vars)
	ratio := make([]float64, Components)
	if total > 0 {
		for i := range ratio {
			ratio[i] = vars[i] / total
		}
	}
	return &PCAResult{Projection: proj, ExplainedVarianceRatio: ratio}, nil
}
