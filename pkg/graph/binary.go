package graph

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"io"
	"os"
	"unsafe"
)

const (
	magicBytes  = "PMXGRAPH"
	version     = uint32(1)
	maxVertices = 10_000_000
	maxEdges    = 200_000_000
	maxLabels   = 1 << 31
)

// fileHeader is the binary header of a graph snapshot.
type fileHeader struct {
	Magic       [8]byte
	Version     uint32
	NumVertices uint32
	NumEdges    uint32
	HasCoords   uint32
	LabelBytes  uint32
}

// WriteBinary serializes a Graph to a snapshot file (CSR adjacency, labels,
// optional coordinates, CRC32 trailer). The file appears atomically.
func WriteBinary(path string, g *Graph) error {
	tmpPath := path + ".tmp"
	f, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		f.Close()
		os.Remove(tmpPath) // clean up on error
	}()

	bw := bufio.NewWriterSize(f, 1<<20)
	crcWriter := crc32Writer{w: bw, hash: crc32.NewIEEE()}
	w := &crcWriter

	n := g.NumVertices()
	firstOut := make([]uint32, n+1)
	head := make([]uint32, 0, g.NumEdges())
	weight := make([]float64, 0, g.NumEdges())
	labelOff := make([]uint32, n+1)
	var labels []byte
	for i := range g.Vertices {
		v := &g.Vertices[i]
		head = append(head, v.Neighbors...)
		weight = append(weight, v.Weights...)
		firstOut[i+1] = uint32(len(head))
		labels = append(labels, v.ID...)
		labelOff[i+1] = uint32(len(labels))
	}

	hdr := fileHeader{
		Version:     version,
		NumVertices: n,
		NumEdges:    uint32(len(head)),
		LabelBytes:  uint32(len(labels)),
	}
	if g.HasCoords() {
		hdr.HasCoords = 1
	}
	copy(hdr.Magic[:], magicBytes)
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	if err := writeUint32Slice(w, firstOut); err != nil {
		return fmt.Errorf("write FirstOut: %w", err)
	}
	if err := writeUint32Slice(w, head); err != nil {
		return fmt.Errorf("write Head: %w", err)
	}
	if err := writeFloat64Slice(w, weight); err != nil {
		return fmt.Errorf("write Weight: %w", err)
	}
	if err := writeUint32Slice(w, labelOff); err != nil {
		return fmt.Errorf("write LabelOffsets: %w", err)
	}
	if _, err := w.Write(labels); err != nil {
		return fmt.Errorf("write Labels: %w", err)
	}

	if hdr.HasCoords == 1 {
		lat := make([]float64, n)
		lon := make([]float64, n)
		for i, c := range g.Coords {
			lat[i], lon[i] = c.Lat, c.Lon
		}
		if err := writeFloat64Slice(w, lat); err != nil {
			return fmt.Errorf("write Lat: %w", err)
		}
		if err := writeFloat64Slice(w, lon); err != nil {
			return fmt.Errorf("write Lon: %w", err)
		}
	}

	// CRC32 trailer is not part of the checksum.
	checksum := crcWriter.hash.Sum32()
	if err := binary.Write(bw, binary.LittleEndian, checksum); err != nil {
		return fmt.Errorf("write CRC32: %w", err)
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// ReadBinary deserializes a Graph from a snapshot file.
func ReadBinary(path string) (*Graph, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	br := bufio.NewReaderSize(f, 1<<20)
	crcReader := crc32Reader{r: br, hash: crc32.NewIEEE()}
	r := &crcReader

	var hdr fileHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	if string(hdr.Magic[:]) != magicBytes {
		return nil, fmt.Errorf("invalid magic bytes: %q", hdr.Magic)
	}
	if hdr.Version != version {
		return nil, fmt.Errorf("unsupported version: %d", hdr.Version)
	}
	if hdr.NumVertices > maxVertices {
		return nil, fmt.Errorf("NumVertices %d exceeds limit %d", hdr.NumVertices, maxVertices)
	}
	if hdr.NumEdges > maxEdges {
		return nil, fmt.Errorf("NumEdges %d exceeds limit %d", hdr.NumEdges, maxEdges)
	}
	if hdr.LabelBytes > maxLabels {
		return nil, fmt.Errorf("LabelBytes %d exceeds limit %d", hdr.LabelBytes, maxLabels)
	}

	n := int(hdr.NumVertices)
	firstOut, err := readUint32Slice(r, n+1)
	if err != nil {
		return nil, fmt.Errorf("read FirstOut: %w", err)
	}
	head, err := readUint32Slice(r, int(hdr.NumEdges))
	if err != nil {
		return nil, fmt.Errorf("read Head: %w", err)
	}
	weight, err := readFloat64Slice(r, int(hdr.NumEdges))
	if err != nil {
		return nil, fmt.Errorf("read Weight: %w", err)
	}
	labelOff, err := readUint32Slice(r, n+1)
	if err != nil {
		return nil, fmt.Errorf("read LabelOffsets: %w", err)
	}
	labels := make([]byte, hdr.LabelBytes)
	if _, err := io.ReadFull(r, labels); err != nil {
		return nil, fmt.Errorf("read Labels: %w", err)
	}

	var lat, lon []float64
	if hdr.HasCoords == 1 {
		if lat, err = readFloat64Slice(r, n); err != nil {
			return nil, fmt.Errorf("read Lat: %w", err)
		}
		if lon, err = readFloat64Slice(r, n); err != nil {
			return nil, fmt.Errorf("read Lon: %w", err)
		}
	}

	expectedCRC := crcReader.hash.Sum32()
	var storedCRC uint32
	if err := binary.Read(br, binary.LittleEndian, &storedCRC); err != nil {
		return nil, fmt.Errorf("read CRC32: %w", err)
	}
	if storedCRC != expectedCRC {
		return nil, fmt.Errorf("CRC32 mismatch: stored=%08x computed=%08x", storedCRC, expectedCRC)
	}

	if err := validateCSR(firstOut, head, hdr.NumVertices); err != nil {
		return nil, fmt.Errorf("adjacency invalid: %w", err)
	}
	if err := validateCSR(labelOff, labels, hdr.NumVertices); err != nil {
		return nil, fmt.Errorf("labels invalid: %w", err)
	}

	g := &Graph{Vertices: make([]Vertex, n)}
	for i := 0; i < n; i++ {
		s, e := firstOut[i], firstOut[i+1]
		g.Vertices[i] = Vertex{
			ID:        string(labels[labelOff[i]:labelOff[i+1]]),
			Neighbors: head[s:e:e],
			Weights:   weight[s:e:e],
		}
	}
	if hdr.HasCoords == 1 {
		g.Coords = make([]Coord, n)
		for i := range g.Coords {
			g.Coords[i] = Coord{Lat: lat[i], Lon: lon[i]}
		}
	}

	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

// validateCSR checks CSR invariants.
func validateCSR[T uint32 | byte](firstOut []uint32, head []T, numNodes uint32) error {
	if uint32(len(firstOut)) != numNodes+1 {
		return fmt.Errorf("FirstOut length %d != NumVertices+1 %d", len(firstOut), numNodes+1)
	}
	if firstOut[0] != 0 {
		return fmt.Errorf("FirstOut[0] = %d, want 0", firstOut[0])
	}
	if uint32(len(head)) != firstOut[numNodes] {
		return fmt.Errorf("Head length %d != FirstOut[NumVertices] %d", len(head), firstOut[numNodes])
	}
	for i := uint32(1); i <= numNodes; i++ {
		if firstOut[i] < firstOut[i-1] {
			return fmt.Errorf("FirstOut not monotonic at %d: %d < %d", i, firstOut[i], firstOut[i-1])
		}
	}
	return nil
}

// Zero-copy I/O helpers using unsafe.Slice.

func writeUint32Slice(w io.Writer, s []uint32) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*4)
	_, err := w.Write(b)
	return err
}

func writeFloat64Slice(w io.Writer, s []float64) error {
	if len(s) == 0 {
		return nil
	}
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*8)
	_, err := w.Write(b)
	return err
}

func readUint32Slice(r io.Reader, n int) ([]uint32, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]uint32, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*4)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

func readFloat64Slice(r io.Reader, n int) ([]float64, error) {
	if n == 0 {
		return nil, nil
	}
	s := make([]float64, n)
	b := unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), n*8)
	if _, err := io.ReadFull(r, b); err != nil {
		return nil, err
	}
	return s, nil
}

// CRC32 wrapping writers/readers.

type crc32Hash interface {
	Write([]byte) (int, error)
	Sum32() uint32
}

type crc32Writer struct {
	w    io.Writer
	hash crc32Hash
}

func (cw *crc32Writer) Write(p []byte) (int, error) {
	cw.hash.Write(p)
	return cw.w.Write(p)
}

type crc32Reader struct {
	r    io.Reader
	hash crc32Hash
}

func (cr *crc32Reader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		cr.hash.Write(p[:n])
	}
	return n, err
}
