package kdtree

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math/rand"
	"testing"

	pkgerrors "kdstore/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/twmb/murmur3"
)

func roundTrip(t *testing.T, tree *Tree) *Tree {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, tree.Save(&buf))
	loaded, err := Load(&buf)
	require.NoError(t, err)
	return loaded
}

// reseal recomputes the checksum so structural checks are reached.
func reseal(data []byte) []byte {
	body := data[:len(data)-checksumSize]
	return binary.LittleEndian.AppendUint32(append([]byte{}, body...), murmur3.Sum32(body))
}

func TestCodec_RoundTripEmpty(t *testing.T) {
	tree, err := New(3)
	require.NoError(t, err)

	loaded := roundTrip(t, tree)
	assert.Equal(t, 3, loaded.Dimension())
	assert.Equal(t, 0, loaded.Count())
	assert.Equal(t, tree.MemoryFootprint(), loaded.MemoryFootprint())
}

func TestCodec_RoundTripQueries(t *testing.T) {
	rng := rand.New(rand.NewSource(99))
	for _, dim := range []int{1, 3, 7} {
		for _, grid := range []bool{false, true} {
			points := randomPoints(rng, 400, dim, grid)
			tree := newTestTree(t, points...)
			loaded := roundTrip(t, tree)

			assert.Equal(t, tree.Dimension(), loaded.Dimension())
			assert.Equal(t, tree.Count(), loaded.Count())
			assert.Equal(t, tree.Len(), loaded.Len())
			assert.Equal(t, tree.MemoryFootprint(), loaded.MemoryFootprint())

			for q := 0; q < 20; q++ {
				target := randomPoints(rng, 1, dim, grid)[0].Embedding

				want, _, err := tree.NearestNeighbor(target)
				require.NoError(t, err)
				got, _, err := loaded.NearestNeighbor(target)
				require.NoError(t, err)
				assert.Equal(t, want, got)

				wantTop, err := tree.NearestNeighborsTopN(target, 10)
				require.NoError(t, err)
				gotTop, err := loaded.NearestNeighborsTopN(target, 10)
				require.NoError(t, err)
				assert.Equal(t, wantTop, gotTop)
			}
		}
	}
}

func TestCodec_RoundTripKeepsInsertionSequence(t *testing.T) {
	tree := newTestTree(t,
		Point{Embedding: []float64{1, 0}, Data: "first"},
		Point{Embedding: []float64{-1, 0}, Data: "second"},
	)
	loaded := roundTrip(t, tree)

	require.NoError(t, loaded.Insert(Point{Embedding: []float64{0, 1}, Data: "third"}))
	top, err := loaded.NearestNeighborsTopN([]float64{0, 0}, 3)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "first", top[0].Data)
	assert.Equal(t, "second", top[1].Data)
	assert.Equal(t, "third", top[2].Data)
}

func TestCodec_RoundTripPayloads(t *testing.T) {
	tree := newTestTree(t,
		Point{Embedding: []float64{0}, Data: ""},
		Point{Embedding: []float64{1}, Data: "héllo wörld"},
		Point{Embedding: []float64{2}, Data: string([]byte{0, 1, 2, 255})},
	)
	loaded := roundTrip(t, tree)

	top, err := loaded.NearestNeighborsTopN([]float64{0}, 3)
	require.NoError(t, err)
	assert.Equal(t, "", top[0].Data)
	assert.Equal(t, "héllo wörld", top[1].Data)
	assert.Equal(t, string([]byte{0, 1, 2, 255}), top[2].Data)
}

func TestCodec_Corruption(t *testing.T) {
	tree := newTestTree(t,
		Point{Embedding: []float64{1, 2}, Data: "a"},
		Point{Embedding: []float64{3, 4}, Data: "b"},
		Point{Embedding: []float64{0, 9}, Data: "c"},
	)
	valid := tree.encode()

	tests := []struct {
		name   string
		mutate func([]byte) []byte
	}{
		{"empty", func(b []byte) []byte { return nil }},
		{"truncated", func(b []byte) []byte { return b[:len(b)/2] }},
		{"flipped byte", func(b []byte) []byte { b[headerSize+3] ^= 0xff; return b }},
		{"bad magic", func(b []byte) []byte { b[0] = 'X'; return reseal(b) }},
		{"bad version", func(b []byte) []byte { b[4] = 9; return reseal(b) }},
		{"zero dimension", func(b []byte) []byte {
			binary.LittleEndian.PutUint32(b[6:], 0)
			return reseal(b)
		}},
		{"count mismatch", func(b []byte) []byte {
			binary.LittleEndian.PutUint64(b[10:], 7)
			return reseal(b)
		}},
		{"bad axis", func(b []byte) []byte {
			// root node axis must be 0
			binary.LittleEndian.PutUint32(b[headerSize+1:], 1)
			return reseal(b)
		}},
		{"unknown tag", func(b []byte) []byte { b[headerSize] = 7; return reseal(b) }},
		{"trailing bytes", func(b []byte) []byte {
			body := append(append([]byte{}, b[:len(b)-checksumSize]...), 0, 0)
			return binary.LittleEndian.AppendUint32(body, murmur3.Sum32(body))
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.mutate(append([]byte{}, valid...))
			loaded, err := Load(bytes.NewReader(data))
			assert.ErrorIs(t, err, pkgerrors.ErrCorruptIndex)
			assert.NotErrorIs(t, err, pkgerrors.ErrStorage)
			assert.Nil(t, loaded)
		})
	}
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("disk on fire") }

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("disk full") }

func TestCodec_IOErrors(t *testing.T) {
	_, err := Load(failingReader{})
	assert.ErrorIs(t, err, pkgerrors.ErrStorage)
	assert.NotErrorIs(t, err, pkgerrors.ErrCorruptIndex)

	tree := newTestTree(t, Point{Embedding: []float64{1}, Data: "a"})
	err = tree.Save(failingWriter{})
	assert.ErrorIs(t, err, pkgerrors.ErrStorage)
}
