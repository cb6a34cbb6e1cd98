package graph

import "slices"

// Path is a duplicate-free vertex sequence with the summed weight of the
// traversed edges. Paths are values; methods never mutate the receiver's
// backing array.
type Path struct {
	Vertices []uint32
	Weight   float64
}

// NewPath returns a path over the given vertices.
func NewPath(vertices []uint32, weight float64) Path {
	return Path{Vertices: vertices, Weight: weight}
}

// Len returns the number of vertices, endpoints included.
func (p Path) Len() int { return len(p.Vertices) }

// Hops returns the number of edges.
func (p Path) Hops() int { return len(p.Vertices) - 1 }

// Start returns the first vertex.
func (p Path) Start() uint32 { return p.Vertices[0] }

// End returns the last vertex.
func (p Path) End() uint32 { return p.Vertices[len(p.Vertices)-1] }

// Contains reports whether v is on the path.
func (p Path) Contains(v uint32) bool {
	for _, u := range p.Vertices {
		if u == v {
			return true
		}
	}
	return false
}

// Reverse returns the same path traversed from End to Start.
func (p Path) Reverse() Path {
	rev := make([]uint32, len(p.Vertices))
	for i, v := range p.Vertices {
		rev[len(rev)-1-i] = v
	}
	return Path{Vertices: rev, Weight: p.Weight}
}

// Extend returns p followed by the edge End()→v of weight w.
func (p Path) Extend(v uint32, w float64) Path {
	vs := make([]uint32, len(p.Vertices)+1)
	copy(vs, p.Vertices)
	vs[len(p.Vertices)] = v
	return Path{Vertices: vs, Weight: p.Weight + w}
}

// Disjoint reports whether ext shares no vertex with p other than its
// first one, i.e. whether joining them stays duplicate-free.
func (p Path) Disjoint(ext Path) bool {
	for _, v := range ext.Vertices[1:] {
		if p.Contains(v) {
			return false
		}
	}
	return true
}

// Equal reports whether both paths have the same weight and sequence.
func (p Path) Equal(q Path) bool {
	return p.Weight == q.Weight && slices.Equal(p.Vertices, q.Vertices)
}

// Compare orders paths by weight, then by number of vertices, then by
// vertex sequence. It returns -1 if p is preferred over q, +1 if q is
// preferred, 0 if they are identical.
func (p Path) Compare(q Path) int {
	if c := CompareCost(p.Weight, p.Len(), q.Weight, q.Len()); c != 0 {
		return c
	}
	return slices.Compare(p.Vertices, q.Vertices)
}

// CompareCost orders (weight, length) pairs the way Compare does, without
// looking at the vertex sequence.
func CompareCost(w1 float64, len1 int, w2 float64, len2 int) int {
	switch {
	case w1 < w2:
		return -1
	case w1 > w2:
		return 1
	case len1 < len2:
		return -1
	case len1 > len2:
		return 1
	}
	return 0
}
