package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// logLine is the path 0-1-2-3-4 with real-valued weights whose sum depends
// on the order of addition.
func logLine() *Graph {
	ws := []float64{0.1, 0.2, 0.3, 0.7781513}
	g := &Graph{Vertices: make([]Vertex, len(ws)+1)}
	for i, w := range ws {
		u, v := uint32(i), uint32(i+1)
		g.Vertices[u].Neighbors = append(g.Vertices[u].Neighbors, v)
		g.Vertices[u].Weights = append(g.Vertices[u].Weights, w)
		g.Vertices[v].Neighbors = append(g.Vertices[v].Neighbors, u)
		g.Vertices[v].Weights = append(g.Vertices[v].Weights, w)
	}
	return g
}

func TestPathWeight(t *testing.T) {
	g := logLine()

	a, b, c := 0.1, 0.2, 0.3
	w, ok := g.PathWeight([]uint32{0, 1, 2, 3})
	require.True(t, ok)
	assert.Equal(t, (a+b)+c, w)

	_, ok = g.PathWeight([]uint32{0, 2})
	assert.False(t, ok)

	w, ok = g.PathWeight([]uint32{3})
	require.True(t, ok)
	assert.Equal(t, 0.0, w)
}

func TestAppendMatchesExtend(t *testing.T) {
	g := logLine()

	// Grouping the tail first gives a+(b+c), which differs in the last bit
	// from summing along the path.
	a, b, c := 0.1, 0.2, 0.3
	require.NotEqual(t, (a+b)+c, a+(b+c))

	head := NewPath([]uint32{0, 1}, a)
	tail := NewPath([]uint32{1, 2, 3, 4}, b+c+0.7781513)

	got, ok := g.Append(head, tail)
	require.True(t, ok)

	want := head.Extend(2, 0.2).Extend(3, 0.3).Extend(4, 0.7781513)
	assert.Equal(t, want.Vertices, got.Vertices)
	assert.Equal(t, want.Weight, got.Weight)
	assert.Equal(t, []uint32{0, 1}, head.Vertices, "receiver untouched")
}

func TestAppendMissingEdge(t *testing.T) {
	g := logLine()

	_, ok := g.Append(NewPath([]uint32{0, 1}, 0.1), NewPath([]uint32{1, 3}, 1))
	assert.False(t, ok)
}
