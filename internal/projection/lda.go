package projection

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// LDAComponents returns how many discriminant axes exist for a label set:
// min(Components, classes-1).
func LDAComponents(labels []int) int {
	return min(Components, len(classes(labels))-1)
}

// LDA projects points onto the Fisher discriminant axes of labels. It
// returns ErrTooFewClasses when fewer than two classes are present; with
// exactly two classes the projection has a single column.
func LDA(points [][]float64, labels []int) (*mat.Dense, error) {
	x, err := toDense(points)
	if err != nil {
		return nil, err
	}
	n, dim := x.Dims()
	if len(labels) != n {
		return nil, fmt.Errorf("%d labels for %d points", len(labels), n)
	}
	nComp := min(LDAComponents(labels), dim)
	if nComp < 1 {
		return nil, ErrTooFewClasses
	}

	centered, _ := center(x)
	within, between := scatter(x, labels)

	whiten, err := inverseSqrt(within)
	if err != nil {
		return nil, err
	}

	var m mat.Dense
	m.Product(whiten, between, whiten)
	sym := symmetrize(&m)

	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, errors.New("discriminant eigendecomposition failed")
	}
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	// Eigenvalues are ascending; the discriminant axes are the last columns.
	axes := mat.NewDense(dim, nComp, nil)
	for c := 0; c < nComp; c++ {
		src := dim - 1 - c
		for r := 0; r < dim; r++ {
			axes.Set(r, c, vecs.At(r, src))
		}
	}
	var w mat.Dense
	w.Mul(whiten, axes)

	out := mat.NewDense(n, nComp, nil)
	out.Mul(centered, &w)
	flipSigns(out)
	return out, nil
}

func classes(labels []int) []int {
	seen := make(map[int]bool)
	var out []int
	for _, l := range labels {
		if !seen[l] {
			seen[l] = true
			out = append(out, l)
		}
	}
	sort.Ints(out)
	return out
}

// scatter returns the within-class and between-class scatter matrices.
func scatter(x *mat.Dense, labels []int) (*mat.SymDense, *mat.SymDense) {
	n, dim := x.Dims()

	mean := make([]float64, dim)
	classMean := make(map[int][]float64)
	classCount := make(map[int]int)
	for i := 0; i < n; i++ {
		cm, ok := classMean[labels[i]]
		if !ok {
			cm = make([]float64, dim)
			classMean[labels[i]] = cm
		}
		classCount[labels[i]]++
		for j := 0; j < dim; j++ {
			cm[j] += x.At(i, j)
			mean[j] += x.At(i, j)
		}
	}
	for j := range mean {
		mean[j] /= float64(n)
	}
	for l, cm := range classMean {
		for j := range cm {
			cm[j] /= float64(classCount[l])
		}
	}

	within := mat.NewSymDense(dim, nil)
	diff := mat.NewVecDense(dim, nil)
	for i := 0; i < n; i++ {
		cm := classMean[labels[i]]
		for j := 0; j < dim; j++ {
			diff.SetVec(j, x.At(i, j)-cm[j])
		}
		within.SymRankOne(within, 1, diff)
	}

	between := mat.NewSymDense(dim, nil)
	for _, l := range classes(labels) {
		cm := classMean[l]
		for j := 0; j < dim; j++ {
			diff.SetVec(j, cm[j]-mean[j])
		}
		between.SymRankOne(between, float64(classCount[l]), diff)
	}
	return within, between
}

// inverseSqrt returns S^(-1/2) for a symmetric positive semi-definite S.
// Eigenvalues below a relative floor are clamped so a rank-deficient
// within-class scatter still yields finite axes.
func inverseSqrt(s *mat.SymDense) (*mat.Dense, error) {
	var es mat.EigenSym
	if ok := es.Factorize(s, true); !ok {
		return nil, errors.New("scatter eigendecomposition failed")
	}
	vals := es.Values(nil)
	var vecs mat.Dense
	es.VectorsTo(&vecs)

	largest := vals[len(vals)-1]
	if largest <= 0 {
		return nil, errors.New("within-class scatter is zero")
	}
	floor := largest * 1e-12
	dim := len(vals)
	diag := mat.NewDiagDense(dim, nil)
	for i, v := range vals {
		diag.SetDiag(i, 1/math.Sqrt(math.Max(v, floor)))
	}

	var out mat.Dense
	out.Product(&vecs, diag, vecs.T())
	return &out, nil
}

func symmetrize(m *mat.Dense) *mat.SymDense {
	r, _ := m.Dims()
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, (m.At(i, j)+m.At(j, i))/2)
		}
	}
	return sym
}
