package store

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/azybler/pathmatrix/pkg/graph"
)

func TestSlotCodecRoundTrip(t *testing.T) {
	c := NewSlotCodec(4)

	tests := []struct {
		name string
		path graph.Path
	}{
		{"single hop", graph.NewPath([]uint32{0, 9}, 0.5)},
		{"full slot", graph.NewPath([]uint32{3, 0, 7, 1}, 12.25)},
		{"zero weight", graph.NewPath([]uint32{0, 1, 2}, 0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			buf := make([]byte, c.Size())
			require.NoError(t, c.Encode(buf, tt.path))

			got, ok := c.Decode(buf)
			require.True(t, ok)
			assert.Equal(t, tt.path, got)

			w, n, ok := c.Peek(buf)
			require.True(t, ok)
			assert.Equal(t, tt.path.Weight, w)
			assert.Equal(t, tt.path.Len(), n)
		})
	}
}

func TestSlotCodecOverwriteShorter(t *testing.T) {
	c := NewSlotCodec(5)
	buf := make([]byte, c.Size())

	require.NoError(t, c.Encode(buf, graph.NewPath([]uint32{0, 1, 2, 3, 4}, 4)))
	require.NoError(t, c.Encode(buf, graph.NewPath([]uint32{0, 4}, 9)))

	got, ok := c.Decode(buf)
	require.True(t, ok)
	assert.Equal(t, []uint32{0, 4}, got.Vertices)
}

func TestSlotCodecEmpty(t *testing.T) {
	c := NewSlotCodec(3)
	_, ok := c.Decode(make([]byte, c.Size()))
	assert.False(t, ok)
}

func TestSlotCodecTooLong(t *testing.T) {
	c := NewSlotCodec(2)
	err := c.Encode(make([]byte, c.Size()), graph.NewPath([]uint32{0, 1, 2}, 1))
	assert.ErrorIs(t, err, ErrPathTooLong)
}

func TestRecordRoundTrip(t *testing.T) {
	p := graph.NewPath([]uint32{0, 3, 2}, 1.4771213)

	buf := appendRecord(nil, p)
	require.Len(t, buf, recordSize(p))
	// Big-endian vertex count after the weight.
	assert.Equal(t, []byte{0, 0, 0, 3}, buf[8:12])

	got, err := decodeRecord(buf)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestDecodeRecordCorrupt(t *testing.T) {
	buf := appendRecord(nil, graph.NewPath([]uint32{0, 3, 2}, 1))

	_, err := decodeRecord(buf[:len(buf)-4])
	assert.ErrorIs(t, err, ErrCorrupt)

	_, err = decodeRecord(buf[:6])
	assert.ErrorIs(t, err, ErrCorrupt)
}
