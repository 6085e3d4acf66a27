// Package homology computes 0-dimensional persistent homology of a distance
// matrix and the cluster evolution it induces across filtration thresholds.
package homology

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/graph/path"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/mat"
)

// Pair is one H0 feature: a connected component born at Birth that merges
// into an older one at Death. The component that never dies has Death +Inf.
type Pair struct {
	Birth float64
	Death float64
}

// Persistence returns the H0 persistence pairs of the Vietoris-Rips
// filtration over dist, sorted by death. Every point is born at 0; deaths are
// the edge weights of a minimum spanning tree.
func Persistence(dist mat.Symmetric) []Pair {
	return persistencePairs(dist.SymmetricDim(), treeEdges(SpanningTree(dist)))
}

// persistencePairs turns the sorted spanning tree edges of an n-point cloud
// into H0 pairs.
func persistencePairs(n int, edges []treeEdge) []Pair {
	pairs := make([]Pair, 0, len(edges)+1)
	for _, e := range edges {
		pairs = append(pairs, Pair{Birth: 0, Death: e.weight})
	}
	if n > 0 {
		pairs = append(pairs, Pair{Birth: 0, Death: math.Inf(1)})
	}
	return pairs
}

// SpanningTree builds the complete weighted graph over dist and returns its
// minimum spanning tree. Node IDs are point indices.
func SpanningTree(dist mat.Symmetric) *simple.WeightedUndirectedGraph {
	n := dist.SymmetricDim()
	complete := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	for i := 0; i < n; i++ {
		complete.AddNode(simple.Node(i))
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			complete.SetWeightedEdge(complete.NewWeightedEdge(simple.Node(i), simple.Node(j), dist.At(i, j)))
		}
	}

	mst := simple.NewWeightedUndirectedGraph(0, math.Inf(1))
	path.Kruskal(mst, complete)
	return mst
}

// treeEdge is an MST edge reduced to point indices.
type treeEdge struct {
	from, to int
	weight   float64
}

func treeEdges(g *simple.WeightedUndirectedGraph) []treeEdge {
	var out []treeEdge
	edges := g.WeightedEdges()
	for edges.Next() {
		e := edges.WeightedEdge()
		out = append(out, treeEdge{from: int(e.From().ID()), to: int(e.To().ID()), weight: e.Weight()})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].weight != out[j].weight {
			return out[i].weight < out[j].weight
		}
		if out[i].from != out[j].from {
			return out[i].from < out[j].from
		}
		return out[i].to < out[j].to
	})
	return out
}
