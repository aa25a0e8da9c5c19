package ir

import (
	"bytes"
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConstantSetAppendPadsToAlignment(t *testing.T) {
	var cs ConstantSet
	a := cs.Append("a", []byte{1, 2, 3}, 3, 1)
	b := cs.Append("b", []byte{4, 5, 6, 7}, 4, 4)
	c := cs.Append("c", nil, 8, 8)

	assert.Equal(t, uint32(0), a.Offset)
	assert.Equal(t, uint32(4), b.Offset)
	assert.Equal(t, uint32(8), c.Offset)
	assert.Equal(t, uint32(16), cs.DataSize())
	assert.Equal(t, []byte{1, 2, 3, 0, 4, 5, 6, 7}, cs.Data()[:8])

	found, ok := cs.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, b, found)
	_, ok = cs.Lookup("missing")
	assert.False(t, ok)
}

func TestConstantSetAlignsEachOffset(t *testing.T) {
	var cs ConstantSet
	a := cs.Append("a", []byte{1, 2, 3}, 3, 4)
	b := cs.Append("b", nil, 8, 8)

	assert.Equal(t, uint32(0), a.Offset)
	assert.Equal(t, uint32(8), b.Offset, "an 8 aligned constant cannot start at 4")
	assert.Equal(t, uint32(16), cs.DataSize())
	assert.Equal(t, []byte{1, 2, 3, 0, 0, 0, 0, 0}, cs.Data()[:8])
}

func TestConstantSetRoundTrip(t *testing.T) {
	var cs ConstantSet
	cs.Append("table", []byte{9, 8, 7, 6}, 4, 4)
	cs.Append("pi", []byte{0xdb, 0x0f, 0x49, 0x40}, 4, 4)
	cs.Append("bytes", []byte{1}, 3, 2)

	var buf bytes.Buffer
	written, err := cs.SerializeToBin(&buf)
	require.NoError(t, err)
	assert.Equal(t, buf.Len(), written)

	var back ConstantSet
	read, err := back.DeserializeFromBin(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	assert.Equal(t, written, read)
	assert.Equal(t, cs.Data(), back.Data())
	assert.Equal(t, cs.constants, back.constants)
}

func TestConstantSetWireLayout(t *testing.T) {
	var cs ConstantSet
	cs.Append("a", []byte{1, 2, 3, 4}, 4, 4)

	var buf bytes.Buffer
	n, err := cs.SerializeToBin(&buf)
	require.NoError(t, err)
	// magic, data length, data, count, one descriptor of 8+8+1+12, magic, total
	require.Equal(t, 4+8+4+8+29+4+8, n)

	blob := buf.Bytes()
	le := binary.LittleEndian
	assert.Equal(t, uint32('C')<<24|uint32('N')<<16|uint32('S')<<8|uint32('T'), le.Uint32(blob[0:]))
	assert.Equal(t, uint64(4), le.Uint64(blob[4:]))
	assert.Equal(t, uint64(1), le.Uint64(blob[16:]))
	assert.Equal(t, uint64(21), le.Uint64(blob[24:]), "descriptor byte count")
	assert.Equal(t, uint64(1), le.Uint64(blob[32:]), "name length")
	assert.Equal(t, byte('a'), blob[40])
	assert.Equal(t, uint64(n-8), le.Uint64(blob[n-8:]), "total excludes its own field")
}

func TestConstantSetEmptyRoundTrip(t *testing.T) {
	var cs ConstantSet
	var buf bytes.Buffer
	n, err := cs.SerializeToBin(&buf)
	require.NoError(t, err)
	assert.Equal(t, 32, n)

	var back ConstantSet
	read, err := back.DeserializeFromBin(&buf)
	require.NoError(t, err)
	assert.Equal(t, 32, read)
	assert.Equal(t, 0, back.Len())
}

func TestConstantSetRejectsCorruptBlobs(t *testing.T) {
	var cs ConstantSet
	cs.Append("x", []byte{1, 2}, 2, 2)
	var buf bytes.Buffer
	_, err := cs.SerializeToBin(&buf)
	require.NoError(t, err)
	good := buf.Bytes()

	corrupt := map[string]func([]byte) []byte{
		"bad begin magic": func(b []byte) []byte { b[0] ^= 0xff; return b },
		"bad end magic":   func(b []byte) []byte { b[len(b)-12] ^= 0xff; return b },
		"bad total":       func(b []byte) []byte { b[len(b)-8]++; return b },
		"bad descriptor":  func(b []byte) []byte { b[4+8+2+8]++; return b },
		"truncated":       func(b []byte) []byte { return b[:len(b)-3] },
	}
	for name, mutate := range corrupt {
		t.Run(name, func(t *testing.T) {
			blob := mutate(append([]byte(nil), good...))
			back := ConstantSet{}
			back.Append("keep", []byte{42}, 1, 1)
			n, err := back.DeserializeFromBin(bytes.NewReader(blob))
			assert.Error(t, err)
			assert.ErrorIs(t, err, ErrCorruptConstantBlob)
			assert.Equal(t, 0, n)
			assert.Equal(t, 1, back.Len(), "a rejected blob leaves the set untouched")
		})
	}
}
