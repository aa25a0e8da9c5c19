package gen

import (
	"fmt"
	"math"
)

// Register describes one operand of a native instruction. SubNr is in
// bytes, the strides and width are already encoded.
type Register struct {
	File        uint32
	Type        uint32
	Nr          uint32
	SubNr       uint32
	VStride     uint32
	Width       uint32
	HStride     uint32
	AddressMode uint32
	Negation    bool
	Absolute    bool
	Value       uint32
}

// TypeSize returns the size in bytes of one element of type t
func TypeSize(t uint32) uint32 {
	switch t {
	case TypeUD, TypeD, TypeF:
		return 4
	case TypeUW, TypeW:
		return 2
	case TypeUB, TypeB:
		return 1
	case TypeDF:
		return 8
	}
	return 0
}

// NewRegister builds a direct register region
func NewRegister(file, nr, subnr, typ, vstride, width, hstride uint32) Register {
	return Register{File: file, Type: typ, Nr: nr, SubNr: subnr,
		VStride: vstride, Width: width, HStride: hstride, AddressMode: AddressDirect}
}

// Vec16 is a 16 lane region starting at GRF nr
func Vec16(nr, subnr, typ uint32) Register {
	return NewRegister(FileGRF, nr, subnr, typ, VerticalStride8, Width8, HorizontalStride1)
}

// Vec8 is an 8 lane region starting at GRF nr
func Vec8(nr, subnr, typ uint32) Register {
	return NewRegister(FileGRF, nr, subnr, typ, VerticalStride8, Width8, HorizontalStride1)
}

// Vec1 is a scalar GRF operand
func Vec1(nr, subnr, typ uint32) Register {
	return NewRegister(FileGRF, nr, subnr, typ, VerticalStride0, Width1, HorizontalStride0)
}

// UD8 is an 8 lane dword vector
func UD8(nr, subnr uint32) Register { return Vec8(nr, subnr, TypeUD) }

// UD16 is a 16 lane dword vector
func UD16(nr, subnr uint32) Register { return Vec16(nr, subnr, TypeUD) }

// F16 is a 16 lane float vector
func F16(nr, subnr uint32) Register { return Vec16(nr, subnr, TypeF) }

// UB16 is a 16 lane byte vector stored one byte apart
func UB16(nr, subnr uint32) Register {
	return NewRegister(FileGRF, nr, subnr, TypeUB, VerticalStride16, Width8, HorizontalStride1)
}

// UB16Unpacked is a 16 lane byte vector stored in words
func UB16Unpacked(nr, subnr uint32) Register {
	return NewRegister(FileGRF, nr, subnr, TypeUB, VerticalStride16, Width8, HorizontalStride2)
}

// UW16 is a 16 lane word vector
func UW16(nr, subnr uint32) Register { return Vec16(nr, subnr, TypeUW) }

// Null is the null architecture register
func Null() Register {
	return NewRegister(FileARF, ARFNull, 0, TypeUD, VerticalStride8, Width8, HorizontalStride1)
}

// Acc is the accumulator
func Acc() Register {
	return NewRegister(FileARF, ARFAcc, 0, TypeF, VerticalStride8, Width8, HorizontalStride1)
}

// IP is the instruction pointer
func IP() Register {
	return NewRegister(FileARF, ARFIP, 0, TypeD, VerticalStride4, Width1, HorizontalStride0)
}

// Flag is flag register nr, sub register subnr
func Flag(nr, subnr uint32) Register {
	return NewRegister(FileARF, ARFFlag|nr, subnr, TypeUW, VerticalStride0, Width1, HorizontalStride0)
}

func immediate(typ, value uint32) Register {
	return Register{File: FileIMM, Type: typ, VStride: VerticalStride0, Width: Width1,
		HStride: HorizontalStride0, Value: value}
}

// ImmD is a signed dword immediate
func ImmD(v int32) Register { return immediate(TypeD, uint32(v)) }

// ImmUD is an unsigned dword immediate
func ImmUD(v uint32) Register { return immediate(TypeUD, v) }

// ImmW is a signed word immediate, replicated in both halves
func ImmW(v int16) Register {
	return immediate(TypeW, uint32(uint16(v))|uint32(uint16(v))<<16)
}

// ImmUW is an unsigned word immediate, replicated in both halves
func ImmUW(v uint16) Register { return immediate(TypeUW, uint32(v)|uint32(v)<<16) }

// ImmF is a float immediate
func ImmF(v float32) Register { return immediate(TypeF, math.Float32bits(v)) }

// ImmVF packs four restricted 8 bit floats
func ImmVF(v uint32) Register { return immediate(TypeVF, v) }

// ImmV packs eight signed 4 bit integers
func ImmV(v uint32) Register { return immediate(TypeV, v) }

// Retype changes the element type of r
func Retype(r Register, typ uint32) Register {
	r.Type = typ
	return r
}

// Negate flips the negation modifier of r
func Negate(r Register) Register {
	if r.File == FileIMM {
		switch r.Type {
		case TypeF:
			r.Value = math.Float32bits(-math.Float32frombits(r.Value))
		case TypeD, TypeUD:
			r.Value = uint32(-int32(r.Value))
		}
		return r
	}
	r.Negation = !r.Negation
	return r
}

// Abs sets the absolute value modifier of r
func Abs(r Register) Register {
	r.Absolute = true
	r.Negation = false
	return r
}

// Offset moves r by nr registers plus subnr bytes
func Offset(r Register, nr, subnr uint32) Register {
	r.Nr += nr
	r.SubNr += subnr
	return r
}

// Stride decodes a horizontal stride into elements
func Stride(hstride uint32) uint32 {
	if hstride == HorizontalStride0 {
		return 0
	}
	return 1 << (hstride - 1)
}

// Qn returns the quarter q of a 16 lane operand: the second quarter starts
// 8 elements further. Scalars and architecture registers are unchanged.
func Qn(r Register, q uint32) Register {
	if r.HStride == HorizontalStride0 || r.File == FileIMM || r.File == FileARF {
		return r
	}
	offset := r.SubNr + 8*q*Stride(r.HStride)*TypeSize(r.Type)
	r.Nr += offset / 32
	r.SubNr = offset % 32
	return r
}

// IsNull reports the null register
func (r Register) IsNull() bool { return r.File == FileARF && r.Nr == ARFNull }

// IsAcc reports the accumulator
func (r Register) IsAcc() bool { return r.File == FileARF && r.Nr == ARFAcc }

// IsScalar reports single element operands
func (r Register) IsScalar() bool { return r.HStride == HorizontalStride0 }

// IsByteVector reports byte typed vector operands
func (r Register) IsByteVector() bool {
	return r.HStride != HorizontalStride0 && (r.Type == TypeUB || r.Type == TypeB)
}

func (r Register) String() string {
	files := [...]string{"a", "g", "m", "imm"}
	if r.File == FileIMM {
		return fmt.Sprintf("imm(0x%x):%d", r.Value, r.Type)
	}
	return fmt.Sprintf("%s%d.%d<%d,%d,%d>:%d", files[r.File], r.Nr, r.SubNr, r.VStride, r.Width, r.HStride, r.Type)
}
