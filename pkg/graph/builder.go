package graph

import (
	"errors"
	"fmt"
	"sort"
)

// ErrEmptySource is returned by Build when the source has no edges.
var ErrEmptySource = errors.New("source has no edges")

// RawEdge is an edge between two externally labelled vertices.
type RawEdge struct {
	From   string
	To     string
	Weight float64
}

// Source is the output of an ingestion collaborator.
type Source struct {
	Edges []RawEdge

	// Coords is optional; when set it must hold every referenced label.
	Coords map[string]Coord

	// Directed keeps edges one-way. Undirected sources get symmetric adjacency.
	Directed bool
}

// BuildOptions controls vertex numbering and filtering.
type BuildOptions struct {
	// OrderByDegree numbers vertices by descending degree (ties by label).
	// High-degree vertices then finish first, which raises the shortcut hit
	// rate of the matrix search.
	OrderByDegree bool

	// LargestComponent drops every vertex outside the largest weakly
	// connected component. A full matrix requires a connected graph.
	LargestComponent bool
}

// Build creates a Graph from raw labelled edges. Duplicate edges keep the
// lowest weight; self-loops are dropped. Neighbor lists are sorted by index.
func Build(src *Source, opts BuildOptions) (*Graph, error) {
	if len(src.Edges) == 0 {
		return nil, ErrEmptySource
	}

	// Step 1: Collect unique labels and each label's adjacency, keeping the
	// cheapest parallel edge.
	adj := make(map[string]map[string]float64)
	addEdge := func(from, to string, w float64) {
		m, ok := adj[from]
		if !ok {
			m = make(map[string]float64, 1)
			adj[from] = m
		}
		if cur, ok := m[to]; !ok || w < cur {
			m[to] = w
		}
	}
	for _, e := range src.Edges {
		if e.From == e.To {
			continue
		}
		if _, ok := adj[e.To]; !ok {
			adj[e.To] = map[string]float64{}
		}
		addEdge(e.From, e.To, e.Weight)
		if !src.Directed {
			addEdge(e.To, e.From, e.Weight)
		}
	}

	// Step 2: Assign dense indices.
	labels := make([]string, 0, len(adj))
	for id := range adj {
		labels = append(labels, id)
	}
	if opts.OrderByDegree {
		sort.Slice(labels, func(i, j int) bool {
			di, dj := len(adj[labels[i]]), len(adj[labels[j]])
			if di != dj {
				return di > dj
			}
			return labels[i] < labels[j]
		})
	} else {
		sort.Strings(labels)
	}
	index := make(map[string]uint32, len(labels))
	for i, id := range labels {
		index[id] = uint32(i)
	}

	// Step 3: Build vertices with sorted neighbor lists.
	g := &Graph{Vertices: make([]Vertex, len(labels))}
	for i, id := range labels {
		m := adj[id]
		nbs := make([]uint32, 0, len(m))
		for to := range m {
			nbs = append(nbs, index[to])
		}
		sort.Slice(nbs, func(a, b int) bool { return nbs[a] < nbs[b] })
		ws := make([]float64, len(nbs))
		for k, nb := range nbs {
			ws[k] = m[labels[nb]]
		}
		g.Vertices[i] = Vertex{ID: id, Neighbors: nbs, Weights: ws}
	}

	// Step 4: Attach coordinates.
	if src.Coords != nil {
		g.Coords = make([]Coord, len(labels))
		for i, id := range labels {
			c, ok := src.Coords[id]
			if !ok {
				return nil, fmt.Errorf("missing coordinate for vertex %q", id)
			}
			g.Coords[i] = c
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}

	// A component never loses edges to the filter, so degree order survives.
	if opts.LargestComponent {
		g = FilterToComponent(g, LargestComponent(g))
	}

	return g, nil
}
