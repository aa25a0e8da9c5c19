package ir

import (
	"encoding/binary"
	"fmt"
	"io"

	"gbe/internal/errors"
)

// Constant describes one named entry of a ConstantSet
type Constant struct {
	Name   string
	Size   uint32
	Align  uint32
	Offset uint32
}

// ConstantSet packs named constants into one contiguous buffer. Every
// append pads the buffer to the requested alignment first.
type ConstantSet struct {
	data      []byte
	constants []Constant
}

var (
	constantMagicBegin = uint32('C')<<24 | uint32('N')<<16 | uint32('S')<<8 | uint32('T')
	constantMagicEnd   = uint32('T')<<24 | uint32('S')<<16 | uint32('N')<<8 | uint32('C')
)

// ErrCorruptConstantBlob is returned when a serialized set fails its framing checks
var ErrCorruptConstantBlob = fmt.Errorf("%s: corrupt constant blob", errors.ErrorCorruptBlob)

// Append adds a constant. data may be shorter than size, the rest is zero.
func (cs *ConstantSet) Append(name string, data []byte, size, align uint32) Constant {
	errors.Assert(align != 0 && align&(align-1) == 0, errors.ErrorMalformedInstruction,
		"constant %s has alignment %d, want a power of two", name, align)
	errors.Assert(uint32(len(data)) <= size, errors.ErrorMalformedInstruction,
		"constant %s carries %d bytes for a size of %d", name, len(data), size)
	offset := (uint32(len(cs.data)) + align - 1) &^ (align - 1)
	grown := make([]byte, offset+size)
	copy(grown, cs.data)
	copy(grown[offset:], data)
	cs.data = grown
	c := Constant{Name: name, Size: size, Align: align, Offset: offset}
	cs.constants = append(cs.constants, c)
	return c
}

// Len returns the number of constants
func (cs *ConstantSet) Len() int { return len(cs.constants) }

// Constant returns the i-th descriptor
func (cs *ConstantSet) Constant(i int) Constant { return cs.constants[i] }

// Lookup finds a constant by name
func (cs *ConstantSet) Lookup(name string) (Constant, bool) {
	for _, c := range cs.constants {
		if c.Name == name {
			return c, true
		}
	}
	return Constant{}, false
}

// Data returns the packed buffer
func (cs *ConstantSet) Data() []byte { return cs.data }

// DataSize returns the size of the packed buffer
func (cs *ConstantSet) DataSize() uint32 { return uint32(len(cs.data)) }

// blobWriter accumulates the byte count of everything written
type blobWriter struct {
	w   io.Writer
	n   int
	err error
}

func (bw *blobWriter) write(v any) {
	if bw.err != nil {
		return
	}
	bw.err = binary.Write(bw.w, binary.LittleEndian, v)
	if bw.err == nil {
		bw.n += binary.Size(v)
	}
}

// SerializeToBin writes the set and returns the number of bytes written.
// Sizes are 64 bit, descriptor fields 32 bit, all little endian.
func (cs *ConstantSet) SerializeToBin(w io.Writer) (int, error) {
	bw := &blobWriter{w: w}
	bw.write(constantMagicBegin)
	bw.write(uint64(len(cs.data)))
	bw.write(cs.data)
	bw.write(uint64(len(cs.constants)))
	for _, c := range cs.constants {
		bw.write(uint64(8 + len(c.Name) + 12))
		bw.write(uint64(len(c.Name)))
		bw.write([]byte(c.Name))
		bw.write(c.Size)
		bw.write(c.Align)
		bw.write(c.Offset)
	}
	bw.write(constantMagicEnd)
	bw.write(uint64(bw.n))
	if bw.err != nil {
		return 0, bw.err
	}
	return bw.n, nil
}

type blobReader struct {
	r   io.Reader
	n   int
	err error
}

func (br *blobReader) read(v any) {
	if br.err != nil {
		return
	}
	br.err = binary.Read(br.r, binary.LittleEndian, v)
	if br.err == nil {
		br.n += binary.Size(v)
	}
}

func (br *blobReader) bytes(n uint64) []byte {
	if br.err != nil {
		return nil
	}
	if n > 1<<31 {
		br.err = ErrCorruptConstantBlob
		return nil
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(br.r, buf); err != nil {
		br.err = err
		return nil
	}
	br.n += int(n)
	return buf
}

// DeserializeFromBin replaces the set with the content of r and returns the
// number of bytes consumed. Any framing mismatch leaves the set untouched and
// returns zero.
func (cs *ConstantSet) DeserializeFromBin(r io.Reader) (int, error) {
	br := &blobReader{r: r}
	var magic uint32
	var dataLen, count uint64
	br.read(&magic)
	if br.err == nil && magic != constantMagicBegin {
		return 0, ErrCorruptConstantBlob
	}
	br.read(&dataLen)
	data := br.bytes(dataLen)
	br.read(&count)
	if br.err == nil && count > 1<<24 {
		return 0, ErrCorruptConstantBlob
	}
	var constants []Constant
	for i := uint64(0); i < count && br.err == nil; i++ {
		var recorded, nameLen uint64
		start := br.n
		br.read(&recorded)
		br.read(&nameLen)
		name := br.bytes(nameLen)
		c := Constant{Name: string(name)}
		br.read(&c.Size)
		br.read(&c.Align)
		br.read(&c.Offset)
		if br.err == nil && uint64(br.n-start-8) != recorded {
			return 0, ErrCorruptConstantBlob
		}
		constants = append(constants, c)
	}
	br.read(&magic)
	if br.err == nil && magic != constantMagicEnd {
		return 0, ErrCorruptConstantBlob
	}
	var total uint64
	consumed := br.n
	br.read(&total)
	if br.err != nil {
		return 0, fmt.Errorf("%w: %w", ErrCorruptConstantBlob, br.err)
	}
	if total+8 != uint64(br.n) || total != uint64(consumed) {
		return 0, ErrCorruptConstantBlob
	}
	cs.data = data
	cs.constants = constants
	return br.n, nil
}
