package pipeline

import (
	"context"

	"gonum.org/v1/gonum/mat"

	"phdash/internal/core"
	"phdash/internal/homology"
	"phdash/internal/projection"
	"phdash/internal/store"
)

// SnapshotWriter persists the artifacts of a generation run
type SnapshotWriter interface {
	Dir() string
	Ensure() error
	SavePHData(ph *core.PHData) error
	SavePointCloud(pc *core.PointCloud) error
	SaveBaseConfig(cfg map[string]any) error
	SaveDistanceMatrix(metric core.MetricKey, m mat.Matrix, compress bool) error
	SaveProjection(kind core.ProjectionKind, m mat.Matrix, compress bool) error
	SaveManifest(m *store.Manifest) error
	Remove(name string) error
}

// EvolutionAnalyzer computes cluster evolution over a distance matrix
type EvolutionAnalyzer interface {
	// ComputeClusterEvolution returns stage labels aligned to trueLabels
	ComputeClusterEvolution(dist mat.Symmetric, trueLabels []int) (*homology.Result, error)
}

// Projector computes one 2D view of the point cloud
type Projector interface {
	Kind() core.ProjectionKind
	Project(ctx context.Context, points [][]float64, labels []int) (*mat.Dense, error)
}

// PreviewWriter renders projection scatter plots next to the snapshot
type PreviewWriter interface {
	// WriteProjectionPreviews returns the names of the files it wrote
	WriteProjectionPreviews(dir string, projections []Projection, labels []int) ([]string, error)
}

// Projection is one computed 2D view
type Projection struct {
	Kind   core.ProjectionKind
	Matrix *mat.Dense
}

// homologyAnalyzer adapts homology.Analyzer to EvolutionAnalyzer
type homologyAnalyzer struct {
	maxThresholds int
}

func (h homologyAnalyzer) ComputeClusterEvolution(dist mat.Symmetric, trueLabels []int) (*homology.Result, error) {
	return homology.NewAnalyzer(dist, h.maxThresholds).ComputeClusterEvolution(trueLabels)
}

type pcaProjector struct {
	onVariance func(ratio []float64)
}

func (pcaProjector) Kind() core.ProjectionKind { return core.ProjectionPCA }

func (p pcaProjector) Project(_ context.Context, points [][]float64, _ []int) (*mat.Dense, error) {
	res, err := projection.PCA(points)
	if err != nil {
		return nil, err
	}
	if p.onVariance != nil {
		p.onVariance(res.ExplainedVarianceRatio)
	}
	return res.Projection, nil
}

type tsneProjector struct {
	cfg projection.TSNEConfig
}

func (tsneProjector) Kind() core.ProjectionKind { return core.ProjectionTSNE }

func (p tsneProjector) Project(ctx context.Context, points [][]float64, _ []int) (*mat.Dense, error) {
	return projection.TSNE(ctx, points, p.cfg)
}

type mdsProjector struct{}

func (mdsProjector) Kind() core.ProjectionKind { return core.ProjectionMDS }

func (mdsProjector) Project(_ context.Context, points [][]float64, _ []int) (*mat.Dense, error) {
	return projection.MDS(points)
}

type ldaProjector struct{}

func (ldaProjector) Kind() core.ProjectionKind { return core.ProjectionLDA }

func (ldaProjector) Project(_ context.Context, points [][]float64, labels []int) (*mat.Dense, error) {
	return projection.LDA(points, labels)
}
