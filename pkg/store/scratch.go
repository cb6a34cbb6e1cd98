package store

import (
	"encoding/binary"
	"fmt"
	"path/filepath"
	"strconv"

	"github.com/azybler/pathmatrix/pkg/graph"
)

// Layout selects how a scratch row keeps its paths.
type Layout string

const (
	// LayoutIndexed keeps weight and vertex count per destination in memory
	// and only the intermediate vertices on disk.
	LayoutIndexed Layout = "indexed"
	// LayoutSlot keeps whole paths on disk in the shared slot format.
	LayoutSlot Layout = "slot"
)

// Valid reports whether l names a known layout.
func (l Layout) Valid() bool {
	return l == LayoutIndexed || l == LayoutSlot
}

// Row is the best-known path from one origin to every destination, backed
// by a memory-mapped scratch file. A row has a single writer; Close and
// Remove must not race with other calls.
type Row interface {
	Origin() uint32
	// Has reports whether a path to dest is stored.
	Has(dest uint32) bool
	// Peek returns the stored path's weight and vertex count.
	Peek(dest uint32) (w float64, n int, ok bool)
	// Get decodes the stored path to dest.
	Get(dest uint32) (graph.Path, bool, error)
	// Set stores p under p.End(), replacing any previous path.
	Set(p graph.Path) error
	Close() error
	// Remove closes the row and deletes its file.
	Remove() error
}

// RowFile is the scratch file name for origin inside dir.
func RowFile(dir string, origin uint32) string {
	return filepath.Join(dir, "row-"+strconv.FormatUint(uint64(origin), 10)+".bin")
}

// NewRow creates an empty scratch row for origin over n vertices.
func NewRow(layout Layout, dir string, origin, n uint32, hopBound int) (Row, error) {
	switch layout {
	case LayoutIndexed:
		return NewIndexedRow(dir, origin, n, hopBound)
	case LayoutSlot:
		return NewSlotRow(dir, origin, n, hopBound)
	default:
		return nil, fmt.Errorf("unknown scratch layout %q", layout)
	}
}

func checkPath(origin, n uint32, hopBound int, p graph.Path) error {
	if p.Len() < 2 || p.Start() != origin || p.End() >= n || p.End() == origin {
		return fmt.Errorf("path %v does not belong to row %d", p.Vertices, origin)
	}
	if p.Len() > hopBound {
		return fmt.Errorf("%w: %d vertices, bound %d", ErrPathTooLong, p.Len(), hopBound)
	}
	return nil
}

// IndexedRow stores per-destination weight and length in memory and the
// d-2 intermediate vertices of each path in a fixed-stride file.
type IndexedRow struct {
	origin   uint32
	n        uint32
	hopBound int
	stride   int
	weights  []float64
	lengths  []int32
	file     *mappedFile
}

// NewIndexedRow creates the row file (sparse) and maps it.
func NewIndexedRow(dir string, origin, n uint32, hopBound int) (*IndexedRow, error) {
	stride := 4 * (hopBound - 2)
	file, err := createMapped(RowFile(dir, origin), int64(n)*int64(stride))
	if err != nil {
		return nil, err
	}
	return &IndexedRow{
		origin:   origin,
		n:        n,
		hopBound: hopBound,
		stride:   stride,
		weights:  make([]float64, n),
		lengths:  make([]int32, n),
		file:     file,
	}, nil
}

// Origin returns the vertex every stored path starts from.
func (r *IndexedRow) Origin() uint32 { return r.origin }

// Has reports whether a path to dest is stored. It reads only the
// in-memory length index.
func (r *IndexedRow) Has(dest uint32) bool { return r.lengths[dest] != 0 }

// Peek returns the weight and vertex count of the path to dest without
// touching the mapped file.
func (r *IndexedRow) Peek(dest uint32) (float64, int, bool) {
	n := int(r.lengths[dest])
	return r.weights[dest], n, n != 0
}

// Get rebuilds the path to dest from the endpoints and the interior
// vertices kept on disk.
func (r *IndexedRow) Get(dest uint32) (graph.Path, bool, error) {
	n := int(r.lengths[dest])
	if n == 0 {
		return graph.Path{}, false, nil
	}
	vs := make([]uint32, n)
	vs[0], vs[n-1] = r.origin, dest
	slot := r.file.data[int(dest)*r.stride:]
	for i := 1; i < n-1; i++ {
		vs[i] = binary.LittleEndian.Uint32(slot[4*(i-1):])
	}
	return graph.NewPath(vs, r.weights[dest]), true, nil
}

// Set writes the interior vertices of p to its destination slot and
// records the weight and length in memory.
func (r *IndexedRow) Set(p graph.Path) error {
	if err := checkPath(r.origin, r.n, r.hopBound, p); err != nil {
		return err
	}
	dest := p.End()
	slot := r.file.data[int(dest)*r.stride:]
	for i, v := range p.Vertices[1 : p.Len()-1] {
		binary.LittleEndian.PutUint32(slot[4*i:], v)
	}
	r.weights[dest] = p.Weight
	r.lengths[dest] = int32(p.Len())
	return nil
}

// Close unmaps the row file.
func (r *IndexedRow) Close() error { return r.file.close() }

// Remove closes the row and deletes its file.
func (r *IndexedRow) Remove() error { return r.file.remove() }

// SlotRow keeps whole paths on disk, one SlotCodec slot per destination.
type SlotRow struct {
	origin uint32
	n      uint32
	codec  SlotCodec
	file   *mappedFile
}

// NewSlotRow creates the row file (sparse) and maps it.
func NewSlotRow(dir string, origin, n uint32, hopBound int) (*SlotRow, error) {
	codec := NewSlotCodec(hopBound)
	file, err := createMapped(RowFile(dir, origin), int64(n)*int64(codec.Size()))
	if err != nil {
		return nil, err
	}
	return &SlotRow{origin: origin, n: n, codec: codec, file: file}, nil
}

func (r *SlotRow) slot(dest uint32) []byte {
	size := r.codec.Size()
	off := int(dest) * size
	return r.file.data[off : off+size]
}

// Origin returns the vertex every stored path starts from.
func (r *SlotRow) Origin() uint32 { return r.origin }

// Has reports whether the slot for dest holds a path.
func (r *SlotRow) Has(dest uint32) bool {
	_, _, ok := r.codec.Peek(r.slot(dest))
	return ok
}

// Peek reads the weight and vertex count from the slot header.
func (r *SlotRow) Peek(dest uint32) (float64, int, bool) {
	return r.codec.Peek(r.slot(dest))
}

// Get decodes the slot for dest. A slot whose endpoints do not match the
// row is reported as ErrCorrupt.
func (r *SlotRow) Get(dest uint32) (graph.Path, bool, error) {
	p, ok := r.codec.Decode(r.slot(dest))
	if ok && (p.Start() != r.origin || p.End() != dest) {
		return graph.Path{}, false, fmt.Errorf("%w: row %d slot %d holds %v", ErrCorrupt, r.origin, dest, p.Vertices)
	}
	return p, ok, nil
}

// Set encodes p into the slot of its destination.
func (r *SlotRow) Set(p graph.Path) error {
	if err := checkPath(r.origin, r.n, r.codec.HopBound(), p); err != nil {
		return err
	}
	return r.codec.Encode(r.slot(p.End()), p)
}

// Close unmaps the row file.
func (r *SlotRow) Close() error { return r.file.close() }

// Remove closes the row and deletes its file.
func (r *SlotRow) Remove() error { return r.file.remove() }
