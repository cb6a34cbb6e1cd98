package store

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync"

	"github.com/edsrzf/mmap-go"

	"github.com/azybler/pathmatrix/pkg/graph"
)

// Reader serves paths from a final artifact. Only the offset table is held
// in memory; each lookup maps just the pages covering one record. A Reader
// is safe for concurrent use.
type Reader struct {
	f        *os.File
	n        uint32
	offsets  []int64
	pageSize int64

	mu     sync.RWMutex
	closed bool
}

// Open loads the offset table of the artifact at path and validates it.
func Open(path string) (*Reader, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	r, err := newReader(f)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return r, nil
}

func newReader(f *os.File) (*Reader, error) {
	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat: %w", err)
	}
	br := bufio.NewReaderSize(f, 1<<20)

	var count int32
	if err := binary.Read(br, binary.BigEndian, &count); err != nil {
		return nil, fmt.Errorf("read pair count: %w", err)
	}
	n, ok := verticesForPairs(int64(count))
	if !ok {
		return nil, fmt.Errorf("%w: pair count %d", ErrCorrupt, count)
	}
	pairs := PairCount(n)
	if artifactHeaderSize(pairs) > info.Size() {
		return nil, fmt.Errorf("%w: offset table for %d pairs exceeds file size %d", ErrCorrupt, pairs, info.Size())
	}

	offsets := make([]int64, pairs+1)
	var word [8]byte
	for k := range offsets {
		if _, err := io.ReadFull(br, word[:]); err != nil {
			return nil, fmt.Errorf("read offsets: %w", err)
		}
		offsets[k] = int64(binary.BigEndian.Uint64(word[:]))
	}
	if offsets[0] != artifactHeaderSize(pairs) {
		return nil, fmt.Errorf("%w: first record at %d, want %d", ErrCorrupt, offsets[0], artifactHeaderSize(pairs))
	}
	for k := 1; k < len(offsets); k++ {
		size := offsets[k] - offsets[k-1]
		if size != 0 && size < recordHeaderSize+8 {
			lo, hi := PairFromIndex(uint64(k - 1))
			return nil, fmt.Errorf("%w: record for pair %d-%d spans %d bytes", ErrCorrupt, lo, hi, size)
		}
	}
	if offsets[pairs] != info.Size() {
		return nil, fmt.Errorf("%w: records end at %d, file is %d bytes", ErrCorrupt, offsets[pairs], info.Size())
	}

	return &Reader{
		f:        f,
		n:        n,
		offsets:  offsets,
		pageSize: int64(os.Getpagesize()),
	}, nil
}

// verticesForPairs solves n(n-1)/2 == pairs for n >= 2.
func verticesForPairs(pairs int64) (uint32, bool) {
	if pairs < 1 {
		return 0, false
	}
	n := uint64((1 + math.Sqrt(float64(1+8*pairs))) / 2)
	for _, c := range []uint64{n - 1, n, n + 1} {
		if c >= 2 && c*(c-1)/2 == uint64(pairs) {
			return uint32(c), true
		}
	}
	return 0, false
}

// NumVertices is the number of vertices the artifact covers.
func (r *Reader) NumVertices() uint32 { return r.n }

// PairCount is the number of pair records.
func (r *Reader) PairCount() uint64 { return uint64(len(r.offsets) - 1) }

// GetPath returns the stored path from i to j, oriented i -> j. ok is false
// when i == j or the pair was unreachable.
func (r *Reader) GetPath(i, j uint32) (graph.Path, bool, error) {
	if i >= r.n || j >= r.n {
		return graph.Path{}, false, fmt.Errorf("%w: (%d, %d) with %d vertices", ErrVertexOutOfRange, i, j, r.n)
	}
	if i == j {
		return graph.Path{}, false, nil
	}

	k := PairIndex(i, j)
	start, end := r.offsets[k], r.offsets[k+1]
	if start == end {
		return graph.Path{}, false, nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.closed {
		return graph.Path{}, false, os.ErrClosed
	}

	base := start &^ (r.pageSize - 1)
	region, err := mmap.MapRegion(r.f, int(end-base), mmap.RDONLY, 0, base)
	if err != nil {
		return graph.Path{}, false, fmt.Errorf("mmap record %d: %w", k, err)
	}
	p, err := decodeRecord(region[start-base : end-base])
	if rerr := Release(region); rerr != nil && err == nil {
		err = rerr
	}
	if err != nil {
		return graph.Path{}, false, err
	}

	lo, hi := min(i, j), max(i, j)
	if p.Start() != lo || p.End() != hi {
		return graph.Path{}, false, fmt.Errorf("%w: record %d runs %d -> %d, want %d -> %d", ErrCorrupt, k, p.Start(), p.End(), lo, hi)
	}
	return orient(p, i), true, nil
}

// Close releases the artifact. Calls after the first return nil.
func (r *Reader) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return nil
	}
	r.closed = true
	if err := r.f.Close(); err != nil && !errors.Is(err, os.ErrClosed) {
		return fmt.Errorf("close: %w", err)
	}
	return nil
}
