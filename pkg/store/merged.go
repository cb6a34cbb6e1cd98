package store

import (
	"fmt"
	"sync"

	"github.com/azybler/pathmatrix/pkg/graph"
)

// DefaultLockShards is the number of slot locks used when none is given.
const DefaultLockShards = 256

// Merged is the shared interim store: one fixed slot per unordered pair,
// addressed by PairIndex, each holding the best path seen so far in
// (min, max) orientation. Writers of the same slot are serialised by a
// sharded lock; readers take the shard's read lock.
type Merged struct {
	n     uint32
	codec SlotCodec
	file  *mappedFile
	locks []sync.RWMutex
}

// NewMerged creates the merged store file at path for n vertices.
func NewMerged(path string, n uint32, hopBound, shards int) (*Merged, error) {
	if shards < 1 {
		shards = DefaultLockShards
	}
	codec := NewSlotCodec(hopBound)
	file, err := createMapped(path, int64(PairCount(n))*int64(codec.Size()))
	if err != nil {
		return nil, err
	}
	return &Merged{
		n:     n,
		codec: codec,
		file:  file,
		locks: make([]sync.RWMutex, shards),
	}, nil
}

// NumVertices is the number of vertices the store was sized for.
func (m *Merged) NumVertices() uint32 { return m.n }

// HopBound is the maximum number of vertices per stored path.
func (m *Merged) HopBound() int { return m.codec.HopBound() }

// Path returns the backing file.
func (m *Merged) Path() string { return m.file.path }

func (m *Merged) slot(k uint64) []byte {
	size := uint64(m.codec.Size())
	return m.file.data[k*size : (k+1)*size]
}

func (m *Merged) lock(k uint64) *sync.RWMutex {
	return &m.locks[k%uint64(len(m.locks))]
}

// Get returns the stored path between i and j oriented i -> j.
func (m *Merged) Get(i, j uint32) (graph.Path, bool) {
	if i == j {
		return graph.Path{}, false
	}
	k := PairIndex(i, j)
	mu := m.lock(k)
	mu.RLock()
	p, ok := m.codec.Decode(m.slot(k))
	mu.RUnlock()
	if ok && i > j {
		p = p.Reverse()
	}
	return p, ok
}

// Peek returns weight and vertex count of the path between i and j.
func (m *Merged) Peek(i, j uint32) (float64, int, bool) {
	if i == j {
		return 0, 0, false
	}
	k := PairIndex(i, j)
	mu := m.lock(k)
	mu.RLock()
	defer mu.RUnlock()
	return m.codec.Peek(m.slot(k))
}

// Offer stores p if it beats the path currently held for its pair and
// reports whether it did.
func (m *Merged) Offer(p graph.Path) (bool, error) {
	if p.Len() < 2 || p.Start() == p.End() || p.Start() >= m.n || p.End() >= m.n {
		return false, fmt.Errorf("cannot offer path %v", p.Vertices)
	}
	if p.Start() > p.End() {
		p = p.Reverse()
	}
	k := PairIndex(p.Start(), p.End())
	slot := m.slot(k)
	mu := m.lock(k)
	mu.Lock()
	defer mu.Unlock()

	if w, n, ok := m.codec.Peek(slot); ok {
		switch graph.CompareCost(p.Weight, p.Len(), w, n) {
		case 1:
			return false, nil
		case 0:
			cur, _ := m.codec.Decode(slot)
			if p.Compare(cur) >= 0 {
				return false, nil
			}
		}
	}
	if err := m.codec.Encode(slot, p); err != nil {
		return false, err
	}
	return true, nil
}

// Close unmaps the store. The file stays on disk.
func (m *Merged) Close() error { return m.file.close() }

// Remove closes the store and deletes its file.
func (m *Merged) Remove() error { return m.file.remove() }
