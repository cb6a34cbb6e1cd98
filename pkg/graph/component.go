package graph

// UnionFind implements a disjoint-set data structure with path compression
// and union by rank.
type UnionFind struct {
	parent []uint32
	rank   []byte // max rank ~30 for realistic graphs
	size   []uint32
}

// NewUnionFind creates a UnionFind for n elements.
func NewUnionFind(n uint32) *UnionFind {
	parent := make([]uint32, n)
	size := make([]uint32, n)
	for i := range n {
		parent[i] = i
		size[i] = 1
	}
	return &UnionFind{
		parent: parent,
		rank:   make([]byte, n),
		size:   size,
	}
}

// Find returns the representative of the set containing x, with path halving.
func (uf *UnionFind) Find(x uint32) uint32 {
	for uf.parent[x] != x {
		uf.parent[x] = uf.parent[uf.parent[x]] // path halving
		x = uf.parent[x]
	}
	return x
}

// Union merges the sets containing x and y. Returns false if already same set.
func (uf *UnionFind) Union(x, y uint32) bool {
	rx := uf.Find(x)
	ry := uf.Find(y)
	if rx == ry {
		return false
	}
	// Union by rank.
	if uf.rank[rx] < uf.rank[ry] {
		rx, ry = ry, rx
	}
	uf.parent[ry] = rx
	uf.size[rx] += uf.size[ry]
	if uf.rank[rx] == uf.rank[ry] {
		uf.rank[rx]++
	}
	return true
}

// Size returns the size of the set containing x.
func (uf *UnionFind) Size(x uint32) uint32 {
	return uf.size[uf.Find(x)]
}

// Connected reports whether every vertex is in one weakly connected
// component. The matrix search needs this to cover all pairs.
func Connected(g *Graph) bool {
	n := g.NumVertices()
	if n == 0 {
		return true
	}
	return componentsOf(g).Size(0) == n
}

func componentsOf(g *Graph) *UnionFind {
	uf := NewUnionFind(g.NumVertices())
	for u := range g.Vertices {
		for _, v := range g.Vertices[u].Neighbors {
			uf.Union(uint32(u), v)
		}
	}
	return uf
}

// LargestComponent returns the vertex indices, ascending, belonging to the
// largest weakly connected component.
func LargestComponent(g *Graph) []uint32 {
	n := g.NumVertices()
	if n == 0 {
		return nil
	}

	uf := componentsOf(g)

	// Ties go to the component holding the lowest index.
	bestRoot := uf.Find(0)
	bestSize := uf.size[bestRoot]
	for i := uint32(1); i < n; i++ {
		root := uf.Find(i)
		if uf.size[root] > bestSize {
			bestRoot = root
			bestSize = uf.size[root]
		}
	}

	nodes := make([]uint32, 0, bestSize)
	for i := uint32(0); i < n; i++ {
		if uf.Find(i) == bestRoot {
			nodes = append(nodes, i)
		}
	}
	return nodes
}

// FilterToComponent creates a new graph containing only the specified
// vertices, renumbered in the given order.
func FilterToComponent(g *Graph, nodes []uint32) *Graph {
	if len(nodes) == 0 {
		return &Graph{}
	}

	oldToNew := make(map[uint32]uint32, len(nodes))
	for newIdx, oldIdx := range nodes {
		oldToNew[oldIdx] = uint32(newIdx)
	}

	out := &Graph{Vertices: make([]Vertex, len(nodes))}
	if g.HasCoords() {
		out.Coords = make([]Coord, len(nodes))
	}

	for newIdx, oldIdx := range nodes {
		src := &g.Vertices[oldIdx]
		dst := Vertex{ID: src.ID}
		for k, oldV := range src.Neighbors {
			if newV, ok := oldToNew[oldV]; ok {
				dst.Neighbors = append(dst.Neighbors, newV)
				dst.Weights = append(dst.Weights, src.Weights[k])
			}
		}
		out.Vertices[newIdx] = dst
		if out.Coords != nil {
			out.Coords[newIdx] = g.Coords[oldIdx]
		}
	}

	return out
}
