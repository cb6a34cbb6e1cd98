// Package ingest reads weighted edge lists into graph sources.
//
// An edge list is a text file with one edge per line:
//
//	from to weight
//
// separated by any whitespace. Blank lines and lines starting with '#' are
// ignored, and a first line whose weight column is not a number is taken
// as a header. Files may be gzip or zstd compressed; the format is detected
// from the leading magic bytes.
package ingest

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"

	"github.com/azybler/pathmatrix/pkg/graph"
)

// ErrSyntax is returned for malformed edge lines.
var ErrSyntax = errors.New("edge list syntax error")

var (
	gzipMagic = []byte{0x1f, 0x8b}
	zstdMagic = []byte{0x28, 0xb5, 0x2f, 0xfd}
)

// OpenEdgeList reads the edge list at path.
func OpenEdgeList(path string, directed bool) (*graph.Source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open edge list: %w", err)
	}
	defer f.Close()

	src, err := ReadEdgeList(f, directed)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, nil
}

// ReadEdgeList parses an edge list, decompressing it if needed.
func ReadEdgeList(r io.Reader, directed bool) (*graph.Source, error) {
	br := bufio.NewReaderSize(r, 1<<16)
	in, closeFn, err := decompress(br)
	if err != nil {
		return nil, err
	}
	defer closeFn()

	src := &graph.Source{Directed: directed}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	lineNo, data := 0, 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		data++
		fields := strings.Fields(line)
		if len(fields) < 3 {
			return nil, fmt.Errorf("%w: line %d: want \"from to weight\", got %d fields", ErrSyntax, lineNo, len(fields))
		}
		w, err := strconv.ParseFloat(fields[2], 64)
		if err != nil {
			if data == 1 {
				continue // header
			}
			return nil, fmt.Errorf("%w: line %d: weight %q: %v", ErrSyntax, lineNo, fields[2], err)
		}
		src.Edges = append(src.Edges, graph.RawEdge{From: fields[0], To: fields[1], Weight: w})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read edge list: %w", err)
	}
	return src, nil
}

// decompress wraps br in a decoder matching its magic bytes.
func decompress(br *bufio.Reader) (io.Reader, func() error, error) {
	head, _ := br.Peek(len(zstdMagic))
	switch {
	case bytes.HasPrefix(head, gzipMagic):
		zr, err := gzip.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("gzip: %w", err)
		}
		return zr, zr.Close, nil
	case bytes.HasPrefix(head, zstdMagic):
		zr, err := zstd.NewReader(br)
		if err != nil {
			return nil, nil, fmt.Errorf("zstd: %w", err)
		}
		return zr, func() error { zr.Close(); return nil }, nil
	default:
		return br, func() error { return nil }, nil
	}
}
