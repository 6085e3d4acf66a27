package core

import (
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// OriginalLabelsKey is the Evolution entry holding the (noisy) ground-truth labels.
const OriginalLabelsKey = "Original Labels"

// PointCloud is the raw synthetic dataset, serialized as point_cloud_data.json.
type PointCloud struct {
	Points     [][]float64 `json:"points"`      // Row-major coordinates, one row per point
	TrueLabels []int       `json:"true_labels"` // Cluster label per point after noise injection
	NSamples   int         `json:"n_samples"`   // Number of points
	NFeatures  int         `json:"n_features"`  // Dimensionality of every point
	NClusters  int         `json:"n_clusters"`  // Number of generating centers
}

// Validate checks that the point cloud is internally consistent.
func (pc *PointCloud) Validate() error {
	if pc.NSamples != len(pc.Points) {
		return fmt.Errorf("n_samples is %d but %d points are present", pc.NSamples, len(pc.Points))
	}
	if len(pc.TrueLabels) != len(pc.Points) {
		return fmt.Errorf("%d labels for %d points", len(pc.TrueLabels), len(pc.Points))
	}
	for i, p := range pc.Points {
		if len(p) != pc.NFeatures {
			return fmt.Errorf("point %d has %d features, expected %d", i, len(p), pc.NFeatures)
		}
	}
	return nil
}

// MetricKey names one distance-matrix configuration.
type MetricKey string

const (
	MetricEuclidean          MetricKey = "euclid_dist"
	MetricMahalanobis        MetricKey = "maha_dist"
	MetricDensityEuclidean   MetricKey = "density_euclid"
	MetricDensityMahalanobis MetricKey = "density_maha"
)

// MetricKeys lists the metric configurations in generation order.
func MetricKeys() []MetricKey {
	return []MetricKey{MetricEuclidean, MetricMahalanobis, MetricDensityEuclidean, MetricDensityMahalanobis}
}

// DisplayName returns the human-readable metric name.
func (m MetricKey) DisplayName() string {
	switch m {
	case MetricEuclidean:
		return "Euclidean"
	case MetricMahalanobis:
		return "Mahalanobis"
	case MetricDensityEuclidean:
		return "Density Euclidean"
	case MetricDensityMahalanobis:
		return "Density Mahalanobis"
	default:
		return string(m)
	}
}

// ProjectionKind names a 2D dimensionality reduction.
type ProjectionKind string

const (
	ProjectionPCA  ProjectionKind = "pca"
	ProjectionTSNE ProjectionKind = "tsne"
	ProjectionMDS  ProjectionKind = "mds"
	ProjectionLDA  ProjectionKind = "lda"
)

// ProjectionKinds lists the projections in generation order.
func ProjectionKinds() []ProjectionKind {
	return []ProjectionKind{ProjectionPCA, ProjectionTSNE, ProjectionMDS, ProjectionLDA}
}

// Evolution maps a stage key to one label per point. The first entry is always
// OriginalLabelsKey, followed by threshold stages in increasing threshold order.
// JSON encoding preserves entry order.
type Evolution = orderedmap.OrderedMap[string, []int]

// PHData maps a metric key to its Evolution, in generation order.
type PHData = orderedmap.OrderedMap[string, *Evolution]

// NewEvolution starts an Evolution seeded with the original labels.
func NewEvolution(original []int) *Evolution {
	ev := orderedmap.New[string, []int]()
	ev.Set(OriginalLabelsKey, original)
	return ev
}

// NewPHData returns an empty PHData.
func NewPHData() *PHData {
	return orderedmap.New[string, *Evolution]()
}

// StageKeys returns the keys of an Evolution in order.
func StageKeys(ev *Evolution) []string {
	keys := make([]string, 0, ev.Len())
	for pair := ev.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}

// Metrics returns the metric keys present in PHData in order.
func Metrics(ph *PHData) []string {
	keys := make([]string, 0, ph.Len())
	for pair := ph.Oldest(); pair != nil; pair = pair.Next() {
		keys = append(keys, pair.Key)
	}
	return keys
}
