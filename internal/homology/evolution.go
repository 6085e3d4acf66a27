package homology

import (
	"errors"
	"fmt"
	"sort"

	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
	"gonum.org/v1/gonum/mat"

	"phdash/internal/core"
)

// ReportKey is the key the analyzer files its labels under. It is the same
// for every input matrix; callers take the first key of Result.Labels.
const ReportKey = "Euclidean"

// DefaultMaxThresholds is the number of filtration stages reported.
const DefaultMaxThresholds = 10

// Analyzer derives cluster labels at a series of filtration thresholds.
type Analyzer struct {
	Dist          mat.Symmetric
	MaxThresholds int
}

// NewAnalyzer returns an analyzer over dist. A non-positive maxThresholds
// falls back to DefaultMaxThresholds.
func NewAnalyzer(dist mat.Symmetric, maxThresholds int) *Analyzer {
	if maxThresholds <= 0 {
		maxThresholds = DefaultMaxThresholds
	}
	return &Analyzer{Dist: dist, MaxThresholds: maxThresholds}
}

// Result holds the output of ComputeClusterEvolution.
type Result struct {
	// Thresholds are the filtration values, ascending.
	Thresholds []float64
	// Labels maps analyzer key -> stage key -> one label per point.
	Labels *orderedmap.OrderedMap[string, *core.Evolution]
	// Persistence holds the H0 pairs sorted by death.
	Persistence []Pair
}

// Stages returns the stage labels filed under the first analyzer key.
func (r *Result) Stages() (*core.Evolution, error) {
	first := r.Labels.Oldest()
	if first == nil {
		return nil, errors.New("cluster evolution produced no labels")
	}
	return first.Value, nil
}

// StageKey formats the key of the k-th (1-based) threshold stage.
func StageKey(k int, threshold float64) string {
	return fmt.Sprintf("Threshold %d: %.4f", k, threshold)
}

// ComputeClusterEvolution cuts the single-linkage hierarchy of the distance
// matrix at up to MaxThresholds evenly spaced filtration values between the
// smallest and largest H0 death. Component labels are aligned to trueLabels.
func (a *Analyzer) ComputeClusterEvolution(trueLabels []int) (*Result, error) {
	n := a.Dist.SymmetricDim()
	if len(trueLabels) != n {
		return nil, fmt.Errorf("%d labels for a %dx%d distance matrix", len(trueLabels), n, n)
	}

	edges := treeEdges(SpanningTree(a.Dist))

	res := &Result{
		Labels:      orderedmap.New[string, *core.Evolution](),
		Persistence: persistencePairs(n, edges),
	}
	stages := orderedmap.New[string, []int]()
	res.Labels.Set(ReportKey, stages)

	res.Thresholds = thresholds(edges, a.MaxThresholds)
	for k, eps := range res.Thresholds {
		components := componentsAt(n, edges, eps)
		stages.Set(StageKey(k+1, eps), AlignLabels(components, trueLabels))
	}
	return res, nil
}

// thresholds spaces count filtration values over (min death, max death].
func thresholds(edges []treeEdge, count int) []float64 {
	if len(edges) == 0 {
		return nil
	}
	lo, hi := edges[0].weight, edges[len(edges)-1].weight
	if lo == hi {
		return []float64{hi}
	}
	span := floats.Span(make([]float64, count+1), lo, hi)
	return span[1:]
}

// componentsAt returns the connected components of the spanning tree
// restricted to edges no longer than eps. Each component is a sorted list of
// point indices.
func componentsAt(n int, edges []treeEdge, eps float64) [][]int {
	g := simple.NewUndirectedGraph()
	for i := 0; i < n; i++ {
		g.AddNode(simple.Node(i))
	}
	for _, e := range edges {
		if e.weight > eps {
			break
		}
		g.SetEdge(g.NewEdge(simple.Node(e.from), simple.Node(e.to)))
	}
	return componentIndices(topo.ConnectedComponents(g))
}

func componentIndices(cc [][]graph.Node) [][]int {
	out := make([][]int, len(cc))
	for i, nodes := range cc {
		idx := make([]int, len(nodes))
		for j, node := range nodes {
			idx[j] = int(node.ID())
		}
		sort.Ints(idx)
		out[i] = idx
	}
	return out
}

// AlignLabels assigns one label per point from a component partition.
// Components are visited largest first (ties by lowest point index); each
// takes its majority true label unless a previous component claimed it, in
// which case it gets the next integer above every true label.
func AlignLabels(components [][]int, trueLabels []int) []int {
	sorted := make([][]int, len(components))
	copy(sorted, components)
	sort.SliceStable(sorted, func(i, j int) bool {
		if len(sorted[i]) != len(sorted[j]) {
			return len(sorted[i]) > len(sorted[j])
		}
		return sorted[i][0] < sorted[j][0]
	})

	next := 0
	for _, l := range trueLabels {
		if l >= next {
			next = l + 1
		}
	}

	labels := make([]int, len(trueLabels))
	claimed := make(map[int]bool)
	for _, comp := range sorted {
		label, ok := majority(comp, trueLabels)
		if !ok || claimed[label] {
			label = next
			next++
		}
		claimed[label] = true
		for _, idx := range comp {
			labels[idx] = label
		}
	}
	return labels
}

// majority returns the most frequent true label within comp, preferring the
// smaller label on ties.
func majority(comp []int, trueLabels []int) (int, bool) {
	if len(comp) == 0 {
		return 0, false
	}
	counts := make(map[int]int)
	for _, idx := range comp {
		counts[trueLabels[idx]]++
	}
	best, bestCount := 0, -1
	for label, c := range counts {
		if c > bestCount || (c == bestCount && label < best) {
			best, bestCount = label, c
		}
	}
	return best, true
}
