package store

import (
	"bufio"
	"encoding/binary"
	"fmt"
	"math"
	"os"

	"github.com/azybler/pathmatrix/pkg/graph"
)

// ArtifactOptions controls compaction of a merged store.
type ArtifactOptions struct {
	// HopBound rejects stored paths with more vertices. Zero disables the
	// check beyond what the slot size already enforces.
	HopBound int
	// AllowUnreachable writes an empty record for a pair with no path
	// instead of failing with a *MissingPathError.
	AllowUnreachable bool
}

// artifactHeaderSize is the size of the pair count plus offset table.
func artifactHeaderSize(pairs uint64) int64 {
	return 4 + 8*int64(pairs+1)
}

// WriteArtifact compacts m into the final artifact at path:
//
//	[int32 pairCount][(pairCount+1) x int64 offset][records]
//
// all big-endian, records in ascending PairIndex order, each stored in
// (min, max) orientation. The file is written to path+".tmp", synced and
// renamed, so path either holds a complete artifact or is untouched.
func WriteArtifact(m *Merged, path string, opts ArtifactOptions) error {
	pairs := PairCount(m.NumVertices())
	if pairs > math.MaxInt32 {
		return fmt.Errorf("%d pairs do not fit the artifact's int32 count", pairs)
	}

	// First pass: validate every slot and lay out the offsets.
	offsets := make([]int64, pairs+1)
	offsets[0] = artifactHeaderSize(pairs)
	err := forEachPair(m.NumVertices(), func(k uint64, lo, hi uint32) error {
		size := int64(0)
		if _, n, ok := m.Peek(lo, hi); ok {
			if opts.HopBound > 0 && n > opts.HopBound {
				return fmt.Errorf("%w: pair (%d, %d) has %d vertices, bound %d", ErrPathTooLong, lo, hi, n, opts.HopBound)
			}
			size = int64(recordHeaderSize + 4*n)
		} else if !opts.AllowUnreachable {
			return &MissingPathError{I: lo, J: hi}
		}
		offsets[k+1] = offsets[k] + size
		return nil
	})
	if err != nil {
		return err
	}

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
	buf := binary.BigEndian.AppendUint32(nil, uint32(pairs))
	for _, off := range offsets {
		buf = binary.BigEndian.AppendUint64(buf, uint64(off))
		if len(buf) >= 1<<16 {
			if _, err := bw.Write(buf); err != nil {
				return fmt.Errorf("write offsets: %w", err)
			}
			buf = buf[:0]
		}
	}
	if _, err := bw.Write(buf); err != nil {
		return fmt.Errorf("write offsets: %w", err)
	}

	// Second pass: the records.
	err = forEachPair(m.NumVertices(), func(k uint64, lo, hi uint32) error {
		if offsets[k] == offsets[k+1] {
			return nil
		}
		p, ok := m.Get(lo, hi)
		if !ok || int64(recordSize(p)) != offsets[k+1]-offsets[k] {
			return fmt.Errorf("pair (%d, %d) changed during compaction", lo, hi)
		}
		buf = appendRecord(buf[:0], p)
		if _, err := bw.Write(buf); err != nil {
			return fmt.Errorf("write record %d: %w", k, err)
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	if err := f.Sync(); err != nil {
		return fmt.Errorf("sync: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// orient returns p running from i, reversing it when stored the other way.
func orient(p graph.Path, i uint32) graph.Path {
	if p.Start() != i {
		return p.Reverse()
	}
	return p
}
