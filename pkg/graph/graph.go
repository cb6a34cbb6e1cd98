package graph

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidGraph is returned by Validate for malformed adjacency data.
var ErrInvalidGraph = errors.New("invalid graph")

// Vertex is one entry of the adjacency list. Neighbors[k] is reached with
// weight Weights[k].
type Vertex struct {
	ID        string    // external label, not used by the search
	Neighbors []uint32  // dense indices in [0, NumVertices)
	Weights   []float64 // additive, finite, non-negative
}

// Degree returns the number of outgoing edges.
func (v *Vertex) Degree() int {
	return len(v.Neighbors)
}

// Coord is a geographic position attached to a vertex.
type Coord struct {
	Lat float64
	Lon float64
}

// Graph is an immutable adjacency-list graph indexed 0..N-1.
type Graph struct {
	Vertices []Vertex

	// Coords is either nil or has one entry per vertex. Only graphs built
	// from geographic sources carry coordinates.
	Coords []Coord
}

// NumVertices returns N.
func (g *Graph) NumVertices() uint32 {
	return uint32(len(g.Vertices))
}

// NumEdges returns the number of directed adjacency entries.
func (g *Graph) NumEdges() int {
	n := 0
	for i := range g.Vertices {
		n += len(g.Vertices[i].Neighbors)
	}
	return n
}

// HasCoords reports whether every vertex has a coordinate.
func (g *Graph) HasCoords() bool {
	return g.Coords != nil && len(g.Coords) == len(g.Vertices)
}

// EdgeWeight returns the weight of the edge u→v, if present.
func (g *Graph) EdgeWeight(u, v uint32) (float64, bool) {
	vx := &g.Vertices[u]
	for k, n := range vx.Neighbors {
		if n == v {
			return vx.Weights[k], true
		}
	}
	return 0, false
}

// Validate checks the adjacency invariants: every neighbor index is in
// range and every weight is a finite non-negative number.
func (g *Graph) Validate() error {
	n := uint32(len(g.Vertices))
	for i := range g.Vertices {
		v := &g.Vertices[i]
		if len(v.Neighbors) != len(v.Weights) {
			return fmt.Errorf("%w: vertex %d has %d neighbors but %d weights",
				ErrInvalidGraph, i, len(v.Neighbors), len(v.Weights))
		}
		for k, nb := range v.Neighbors {
			if nb >= n {
				return fmt.Errorf("%w: vertex %d neighbor %d out of range [0, %d)", ErrInvalidGraph, i, nb, n)
			}
			if nb == uint32(i) {
				return fmt.Errorf("%w: vertex %d has a self-loop", ErrInvalidGraph, i)
			}
			w := v.Weights[k]
			if math.IsNaN(w) || math.IsInf(w, 0) || w < 0 {
				return fmt.Errorf("%w: edge %d→%d has weight %v", ErrInvalidGraph, i, nb, w)
			}
		}
	}
	if g.Coords != nil && len(g.Coords) != len(g.Vertices) {
		return fmt.Errorf("%w: %d coordinates for %d vertices", ErrInvalidGraph, len(g.Coords), len(g.Vertices))
	}
	return nil
}

// Symmetric reports whether every edge u→v has a reverse edge v→u of the
// same weight, i.e. whether the graph is undirected.
func (g *Graph) Symmetric() bool {
	for u := range g.Vertices {
		vx := &g.Vertices[u]
		for k, v := range vx.Neighbors {
			w, ok := g.EdgeWeight(v, uint32(u))
			if !ok || w != vx.Weights[k] {
				return false
			}
		}
	}
	return true
}

// PathWeight sums the edge weights along vs from first to last vertex. It
// reports false if some consecutive pair is not an edge.
func (g *Graph) PathWeight(vs []uint32) (float64, bool) {
	w := 0.0
	for k := 1; k < len(vs); k++ {
		ew, ok := g.EdgeWeight(vs[k-1], vs[k])
		if !ok {
			return 0, false
		}
		w += ew
	}
	return w, true
}

// Append returns p followed by ext, which must start at p.End(). The shared
// vertex appears once. The weight is p.Weight plus each edge of ext added
// in path order, so it has the same bits as a path grown edge by edge with
// Extend. It reports false if an edge of ext is missing.
func (g *Graph) Append(p, ext Path) (Path, bool) {
	vs := make([]uint32, len(p.Vertices), len(p.Vertices)+len(ext.Vertices)-1)
	copy(vs, p.Vertices)
	w := p.Weight
	for _, v := range ext.Vertices[1:] {
		ew, ok := g.EdgeWeight(vs[len(vs)-1], v)
		if !ok {
			return Path{}, false
		}
		w += ew
		vs = append(vs, v)
	}
	return Path{Vertices: vs, Weight: w}, true
}
