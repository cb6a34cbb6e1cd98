package store

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/azybler/pathmatrix/pkg/graph"
)

// SlotCodec encodes a path into a fixed-size slot:
//
//	[float64 LE weight][d x uint32 LE vertex+1]
//
// Vertex words are stored off by one so that a zero word terminates the
// sequence and a zero first word marks an empty slot. A freshly truncated
// file therefore decodes as all-empty while a weight of 0 stays legal.
type SlotCodec struct {
	hopBound int
}

// NewSlotCodec returns a codec for paths of at most hopBound vertices.
func NewSlotCodec(hopBound int) SlotCodec {
	return SlotCodec{hopBound: hopBound}
}

// Size is the byte size of one slot.
func (c SlotCodec) Size() int { return SlotSize(c.hopBound) }

// HopBound is the maximum number of vertices a slot can hold.
func (c SlotCodec) HopBound() int { return c.hopBound }

// Encode writes p into dst, which must be Size() bytes long.
func (c SlotCodec) Encode(dst []byte, p graph.Path) error {
	if p.Len() > c.hopBound {
		return fmt.Errorf("%w: %d vertices, bound %d", ErrPathTooLong, p.Len(), c.hopBound)
	}
	binary.LittleEndian.PutUint64(dst, math.Float64bits(p.Weight))
	words := dst[8:]
	for i, v := range p.Vertices {
		binary.LittleEndian.PutUint32(words[4*i:], v+1)
	}
	if p.Len() < c.hopBound {
		binary.LittleEndian.PutUint32(words[4*p.Len():], 0)
	}
	return nil
}

// Decode reads the path stored in src. ok is false for an empty slot.
func (c SlotCodec) Decode(src []byte) (p graph.Path, ok bool) {
	n := c.length(src)
	if n == 0 {
		return graph.Path{}, false
	}
	vs := make([]uint32, n)
	for i := range vs {
		vs[i] = binary.LittleEndian.Uint32(src[8+4*i:]) - 1
	}
	return graph.NewPath(vs, math.Float64frombits(binary.LittleEndian.Uint64(src))), true
}

// Peek returns weight and vertex count without allocating.
func (c SlotCodec) Peek(src []byte) (w float64, n int, ok bool) {
	n = c.length(src)
	if n == 0 {
		return 0, 0, false
	}
	return math.Float64frombits(binary.LittleEndian.Uint64(src)), n, true
}

func (c SlotCodec) length(src []byte) int {
	n := 0
	for n < c.hopBound && binary.LittleEndian.Uint32(src[8+4*n:]) != 0 {
		n++
	}
	return n
}

// Final artifact records are big-endian:
//
//	[float64 weight][int32 vertex count][count x int32 vertex]
const recordHeaderSize = 8 + 4

// recordSize is the encoded size of p.
func recordSize(p graph.Path) int {
	return recordHeaderSize + 4*p.Len()
}

// appendRecord appends the encoding of p to dst.
func appendRecord(dst []byte, p graph.Path) []byte {
	dst = binary.BigEndian.AppendUint64(dst, math.Float64bits(p.Weight))
	dst = binary.BigEndian.AppendUint32(dst, uint32(p.Len()))
	for _, v := range p.Vertices {
		dst = binary.BigEndian.AppendUint32(dst, v)
	}
	return dst
}

// decodeRecord parses one record occupying all of src.
func decodeRecord(src []byte) (graph.Path, error) {
	if len(src) < recordHeaderSize {
		return graph.Path{}, fmt.Errorf("%w: record of %d bytes", ErrCorrupt, len(src))
	}
	w := math.Float64frombits(binary.BigEndian.Uint64(src))
	n := int(int32(binary.BigEndian.Uint32(src[8:])))
	if n < 2 || len(src) != recordHeaderSize+4*n {
		return graph.Path{}, fmt.Errorf("%w: record claims %d vertices in %d bytes", ErrCorrupt, n, len(src))
	}
	vs := make([]uint32, n)
	for i := range vs {
		vs[i] = binary.BigEndian.Uint32(src[recordHeaderSize+4*i:])
	}
	return graph.NewPath(vs, w), nil
}
