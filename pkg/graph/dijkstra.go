package graph

import "math"

// minHeap is a concrete-typed min-heap keyed by distance.
// Avoids interface boxing overhead of container/heap.
type minHeap struct {
	items []heapItem
}

type heapItem struct {
	node uint32
	dist float64
}

func (h *minHeap) Len() int { return len(h.items) }

func (h *minHeap) Push(node uint32, dist float64) {
	h.items = append(h.items, heapItem{node, dist})
	h.siftUp(len(h.items) - 1)
}

func (h *minHeap) Pop() heapItem {
	n := len(h.items)
	item := h.items[0]
	h.items[0] = h.items[n-1]
	h.items = h.items[:n-1]
	if len(h.items) > 0 {
		h.siftDown(0)
	}
	return item
}

func (h *minHeap) siftUp(i int) {
	item := h.items[i]
	for i > 0 {
		parent := (i - 1) / 2
		if item.dist >= h.items[parent].dist {
			break
		}
		h.items[i] = h.items[parent]
		i = parent
	}
	h.items[i] = item
}

func (h *minHeap) siftDown(i int) {
	n := len(h.items)
	item := h.items[i]
	for {
		child := 2*i + 1
		if child >= n {
			break
		}
		if right := child + 1; right < n && h.items[right].dist < h.items[child].dist {
			child = right
		}
		if item.dist <= h.items[child].dist {
			break
		}
		h.items[i] = h.items[child]
		i = child
	}
	h.items[i] = item
}

// Dijkstra returns the unbounded shortest distance from source to every
// vertex (+Inf when unreachable) and the predecessor of each vertex on one
// shortest path tree (-1 for the source and unreachable vertices).
func Dijkstra(g *Graph, source uint32) (dist []float64, pred []int32) {
	n := g.NumVertices()
	dist = make([]float64, n)
	pred = make([]int32, n)
	for i := range dist {
		dist[i] = math.Inf(1)
		pred[i] = -1
	}
	dist[source] = 0

	h := &minHeap{items: make([]heapItem, 0, 64)}
	h.Push(source, 0)

	for h.Len() > 0 {
		cur := h.Pop()
		if cur.dist > dist[cur.node] {
			continue // stale entry
		}
		v := &g.Vertices[cur.node]
		for k, nb := range v.Neighbors {
			nd := cur.dist + v.Weights[k]
			if nd < dist[nb] {
				dist[nb] = nd
				pred[nb] = int32(cur.node)
				h.Push(nb, nd)
			}
		}
	}
	return dist, pred
}

// ShortestPath returns one unbounded shortest path from s to t.
func ShortestPath(g *Graph, s, t uint32) (Path, bool) {
	if s == t {
		return Path{}, false
	}
	dist, pred := Dijkstra(g, s)
	if math.IsInf(dist[t], 1) {
		return Path{}, false
	}
	var rev []uint32
	for v := int32(t); v != -1; v = pred[v] {
		rev = append(rev, uint32(v))
	}
	return Path{Vertices: rev, Weight: dist[t]}.Reverse(), true
}

// BoundedDistances returns, for every vertex, the lowest weight of a path
// from source with at most maxVertices vertices (+Inf when none exists).
// It runs maxVertices-1 Bellman-Ford rounds; with non-negative weights the
// best walk of bounded length is always a simple path.
func BoundedDistances(g *Graph, source uint32, maxVertices int) []float64 {
	n := g.NumVertices()
	dist := make([]float64, n)
	for i := range dist {
		dist[i] = math.Inf(1)
	}
	dist[source] = 0

	next := make([]float64, n)
	for round := 1; round < maxVertices; round++ {
		copy(next, dist)
		changed := false
		for u := range g.Vertices {
			du := dist[u]
			if math.IsInf(du, 1) {
				continue
			}
			v := &g.Vertices[u]
			for k, nb := range v.Neighbors {
				if nd := du + v.Weights[k]; nd < next[nb] {
					next[nb] = nd
					changed = true
				}
			}
		}
		dist, next = next, dist
		if !changed {
			break
		}
	}
	return dist
}
