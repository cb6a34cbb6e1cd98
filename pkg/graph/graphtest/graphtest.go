// Package graphtest provides small graphs for tests across packages.
package graphtest

import (
	"math"
	"math/rand/v2"
	"strconv"

	"github.com/azybler/pathmatrix/pkg/graph"
)

// FiveVertex returns the undirected 5-vertex graph used as the reference
// scenario (weights are -log10 of interaction scores):
//
//	0-1: 0.6989700   0-3: 0.7781513   0-4: 0.7781513
//	1-3: 0.7781513   1-4: 0.7781513   2-3: 0.6989700
//	2-4: 0.6989700   3-4: 0.8450980
func FiveVertex() *graph.Graph {
	const (
		w69 = 0.6989700
		w77 = 0.7781513
		w84 = 0.8450980
	)
	return &graph.Graph{Vertices: []graph.Vertex{
		{ID: "1", Neighbors: []uint32{1, 3, 4}, Weights: []float64{w69, w77, w77}},
		{ID: "2", Neighbors: []uint32{0, 3, 4}, Weights: []float64{w69, w77, w77}},
		{ID: "3", Neighbors: []uint32{3, 4}, Weights: []float64{w69, w69}},
		{ID: "4", Neighbors: []uint32{0, 1, 2, 4}, Weights: []float64{w77, w77, w69, w84}},
		{ID: "5", Neighbors: []uint32{0, 1, 2, 3}, Weights: []float64{w77, w77, w69, w84}},
	}}
}

// Line returns the undirected path graph 0-1-...-(n-1) with unit weights.
func Line(n int) *graph.Graph {
	edges := make([][3]float64, 0, n-1)
	for i := 0; i+1 < n; i++ {
		edges = append(edges, [3]float64{float64(i), float64(i + 1), 1})
	}
	return FromEdges(n, edges)
}

// FromEdges builds an undirected graph over n vertices from {u, v, w}
// triples. Neighbor lists keep insertion order.
func FromEdges(n int, edges [][3]float64) *graph.Graph {
	g := &graph.Graph{Vertices: make([]graph.Vertex, n)}
	for i := range g.Vertices {
		g.Vertices[i].ID = strconv.Itoa(i)
	}
	for _, e := range edges {
		u, v, w := uint32(e[0]), uint32(e[1]), e[2]
		g.Vertices[u].Neighbors = append(g.Vertices[u].Neighbors, v)
		g.Vertices[u].Weights = append(g.Vertices[u].Weights, w)
		g.Vertices[v].Neighbors = append(g.Vertices[v].Neighbors, u)
		g.Vertices[v].Weights = append(g.Vertices[v].Weights, w)
	}
	return g
}

// Random returns a connected undirected graph over n vertices: a random
// spanning tree plus extra edges with the given probability. Weights are
// integers in [1, maxWeight] so that path sums are exact in float64.
func Random(seed uint64, n int, extra float64, maxWeight int) *graph.Graph {
	return random(seed, n, extra, func(rng *rand.Rand) float64 {
		return float64(1 + rng.IntN(maxWeight))
	})
}

// RandomLog is Random with -log10(p) weights for p drawn from (0.05, 1],
// the way interaction scores are weighted. Path sums are inexact, so
// results depend on the order in which weights are added.
func RandomLog(seed uint64, n int, extra float64) *graph.Graph {
	return random(seed, n, extra, func(rng *rand.Rand) float64 {
		return -math.Log10(1 - 0.95*rng.Float64())
	})
}

func random(seed uint64, n int, extra float64, weight func(*rand.Rand) float64) *graph.Graph {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	seen := make(map[[2]int]bool)
	var edges [][3]float64
	add := func(u, v int) {
		if u == v {
			return
		}
		if u > v {
			u, v = v, u
		}
		if seen[[2]int{u, v}] {
			return
		}
		seen[[2]int{u, v}] = true
		edges = append(edges, [3]float64{float64(u), float64(v), weight(rng)})
	}
	for v := 1; v < n; v++ {
		add(rng.IntN(v), v)
	}
	for u := 0; u < n; u++ {
		for v := u + 1; v < n; v++ {
			if rng.Float64() < extra {
				add(u, v)
			}
		}
	}
	return FromEdges(n, edges)
}
