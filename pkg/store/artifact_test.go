package store

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/pathmatrix/pkg/graph"
)

// fillLine offers the path i, i+1, ..., j with unit weights for every pair
// of an n-vertex line whose length fits hopBound.
func fillLine(t *testing.T, m *Merged, n uint32, hopBound int) {
	t.Helper()
	for i := uint32(0); i < n; i++ {
		for j := i + 1; j < n; j++ {
			if int(j-i+1) > hopBound {
				continue
			}
			vs := make([]uint32, 0, j-i+1)
			for v := i; v <= j; v++ {
				vs = append(vs, v)
			}
			_, err := m.Offer(graph.NewPath(vs, float64(j-i)))
			require.NoError(t, err)
		}
	}
}

func TestArtifactRoundTrip(t *testing.T) {
	const n = 6
	m := newTestMerged(t, n, n)
	fillLine(t, m, n, n)

	out := filepath.Join(t.TempDir(), "matrix.bin")
	require.NoError(t, WriteArtifact(m, out, ArtifactOptions{HopBound: n}))

	_, err := os.Stat(out + ".tmp")
	assert.True(t, os.IsNotExist(err), "temp file left behind")

	r, err := Open(out)
	require.NoError(t, err)
	defer r.Close()

	assert.Equal(t, uint32(n), r.NumVertices())
	assert.Equal(t, uint64(15), r.PairCount())

	for i := uint32(0); i < n; i++ {
		for j := uint32(0); j < n; j++ {
			p, ok, err := r.GetPath(i, j)
			require.NoError(t, err)
			if i == j {
				assert.False(t, ok)
				continue
			}
			require.True(t, ok, "(%d, %d)", i, j)
			want, _ := m.Get(i, j)
			assert.Equal(t, want, p)
			assert.Equal(t, i, p.Start())
			assert.Equal(t, j, p.End())
		}
	}
}

func TestArtifactLayout(t *testing.T) {
	m := newTestMerged(t, 3, 3)
	fillLine(t, m, 3, 3)

	out := filepath.Join(t.TempDir(), "matrix.bin")
	require.NoError(t, WriteArtifact(m, out, ArtifactOptions{}))

	data, err := os.ReadFile(out)
	require.NoError(t, err)

	assert.Equal(t, uint32(3), binary.BigEndian.Uint32(data))
	header := int64(4 + 8*4)
	records := []int64{20, 24, 20} // (0,1) (0,2) (1,2): 12 + 4 per vertex
	off := header
	for k := 0; k <= 3; k++ {
		assert.Equal(t, off, int64(binary.BigEndian.Uint64(data[4+8*k:])), "offset %d", k)
		if k < 3 {
			off += records[k]
		}
	}
	assert.Equal(t, off, int64(len(data)))

	// Pair (0, 2) is the second record: weight 2 over 0, 1, 2.
	rec, err := decodeRecord(data[header+20 : header+44])
	require.NoError(t, err)
	assert.Equal(t, graph.NewPath([]uint32{0, 1, 2}, 2), rec)
}

func TestArtifactMissingPath(t *testing.T) {
	m := newTestMerged(t, 4, 2)
	fillLine(t, m, 4, 2)

	out := filepath.Join(t.TempDir(), "matrix.bin")
	err := WriteArtifact(m, out, ArtifactOptions{})

	var missing *MissingPathError
	require.ErrorAs(t, err, &missing)
	assert.ErrorIs(t, err, ErrMissingPath)
	assert.Equal(t, uint32(0), missing.I)
	assert.Equal(t, uint32(2), missing.J)

	_, err = os.Stat(out)
	assert.True(t, os.IsNotExist(err), "no artifact on failure")
}

func TestArtifactAllowUnreachable(t *testing.T) {
	m := newTestMerged(t, 4, 2)
	fillLine(t, m, 4, 2)

	out := filepath.Join(t.TempDir(), "matrix.bin")
	require.NoError(t, WriteArtifact(m, out, ArtifactOptions{AllowUnreachable: true}))

	r, err := Open(out)
	require.NoError(t, err)
	defer r.Close()

	_, ok, err := r.GetPath(3, 1)
	require.NoError(t, err)
	assert.False(t, ok, "three hops apart with hop bound 2")

	p, ok, err := r.GetPath(3, 2)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, []uint32{3, 2}, p.Vertices)
}

func TestArtifactPathTooLong(t *testing.T) {
	m := newTestMerged(t, 4, 4)
	fillLine(t, m, 4, 4)

	err := WriteArtifact(m, filepath.Join(t.TempDir(), "matrix.bin"), ArtifactOptions{HopBound: 3})
	assert.ErrorIs(t, err, ErrPathTooLong)
}

func TestReaderErrors(t *testing.T) {
	m := newTestMerged(t, 3, 3)
	fillLine(t, m, 3, 3)
	out := filepath.Join(t.TempDir(), "matrix.bin")
	require.NoError(t, WriteArtifact(m, out, ArtifactOptions{}))

	r, err := Open(out)
	require.NoError(t, err)

	_, _, err = r.GetPath(0, 3)
	assert.ErrorIs(t, err, ErrVertexOutOfRange)

	require.NoError(t, r.Close())
	require.NoError(t, r.Close())
	_, _, err = r.GetPath(0, 1)
	assert.ErrorIs(t, err, os.ErrClosed)
}

func TestOpenCorrupt(t *testing.T) {
	m := newTestMerged(t, 3, 3)
	fillLine(t, m, 3, 3)
	dir := t.TempDir()
	out := filepath.Join(dir, "matrix.bin")
	require.NoError(t, WriteArtifact(m, out, ArtifactOptions{}))
	data, err := os.ReadFile(out)
	require.NoError(t, err)

	t.Run("truncated", func(t *testing.T) {
		p := filepath.Join(dir, "short.bin")
		require.NoError(t, os.WriteFile(p, data[:len(data)-1], 0o644))
		_, err := Open(p)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("bad pair count", func(t *testing.T) {
		bad := append([]byte(nil), data...)
		binary.BigEndian.PutUint32(bad, 4)
		p := filepath.Join(dir, "count.bin")
		require.NoError(t, os.WriteFile(p, bad, 0o644))
		_, err := Open(p)
		assert.ErrorIs(t, err, ErrCorrupt)
	})

	t.Run("short record", func(t *testing.T) {
		// Shrink the second record, pair 0-2, to 10 bytes.
		bad := append([]byte(nil), data...)
		second := binary.BigEndian.Uint64(bad[4+8:])
		binary.BigEndian.PutUint64(bad[4+16:], second+10)
		p := filepath.Join(dir, "record.bin")
		require.NoError(t, os.WriteFile(p, bad, 0o644))
		_, err := Open(p)
		assert.ErrorIs(t, err, ErrCorrupt)
		assert.ErrorContains(t, err, "pair 0-2 spans 10 bytes")
	})

	t.Run("missing file", func(t *testing.T) {
		_, err := Open(filepath.Join(dir, "absent.bin"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestReaderConcurrent(t *testing.T) {
	const n = 40
	m := newTestMerged(t, n, n)
	fillLine(t, m, n, n)
	out := filepath.Join(t.TempDir(), "matrix.bin")
	require.NoError(t, WriteArtifact(m, out, ArtifactOptions{}))

	r, err := Open(out)
	require.NoError(t, err)
	defer r.Close()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := uint32(0); i < n; i++ {
				j := (i + uint32(w) + 1) % n
				if i == j {
					continue
				}
				p, ok, err := r.GetPath(i, j)
				if assert.NoError(t, err) && assert.True(t, ok) {
					assert.Equal(t, float64(max(i, j)-min(i, j)), p.Weight)
				}
			}
		}()
	}
	wg.Wait()
}
