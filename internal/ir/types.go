package ir

import (
	"fmt"
	"math"
	"strconv"
)

// Type is the value type carried by an instruction
type Type uint8

const (
	TypeBool Type = iota
	TypeS8
	TypeU8
	TypeS16
	TypeU16
	TypeS32
	TypeU32
	TypeS64
	TypeU64
	TypeHalf
	TypeFloat
	TypeDouble
)

var typeInfo = [...]struct {
	name   string
	family Family
	size   uint32
}{
	TypeBool:   {"bool", FamilyBool, 2},
	TypeS8:     {"int8", FamilyByte, 1},
	TypeU8:     {"uint8", FamilyByte, 1},
	TypeS16:    {"int16", FamilyWord, 2},
	TypeU16:    {"uint16", FamilyWord, 2},
	TypeS32:    {"int32", FamilyDWord, 4},
	TypeU32:    {"uint32", FamilyDWord, 4},
	TypeS64:    {"int64", FamilyQWord, 8},
	TypeU64:    {"uint64", FamilyQWord, 8},
	TypeHalf:   {"half", FamilyWord, 2},
	TypeFloat:  {"float", FamilyDWord, 4},
	TypeDouble: {"double", FamilyQWord, 8},
}

func (t Type) String() string {
	if int(t) < len(typeInfo) {
		return typeInfo[t].name
	}
	return fmt.Sprintf("type(%d)", uint8(t))
}

// Family returns the register family able to hold a value of type t
func (t Type) Family() Family { return typeInfo[t].family }

// Size is the size in bytes of one element
func (t Type) Size() uint32 { return typeInfo[t].size }

// IsFloat reports floating point types
func (t Type) IsFloat() bool { return t == TypeHalf || t == TypeFloat || t == TypeDouble }

// IsSigned reports signed integer types
func (t Type) IsSigned() bool {
	return t == TypeS8 || t == TypeS16 || t == TypeS32 || t == TypeS64
}

// TypeByName resolves a type from its printed name
func TypeByName(name string) (Type, bool) {
	for i, info := range typeInfo {
		if info.name == name {
			return Type(i), true
		}
	}
	return 0, false
}

// Immediate is a typed constant stored in the function immediate table.
// Bits holds the raw little-endian payload.
type Immediate struct {
	Type Type
	Bits uint64
}

// ImmediateIndex indexes the immediate table of a function
type ImmediateIndex uint32

// NewIntImmediate builds an integer immediate
func NewIntImmediate(t Type, v int64) Immediate {
	return Immediate{Type: t, Bits: uint64(v)}
}

// NewFloatImmediate builds a float or double immediate
func NewFloatImmediate(t Type, v float64) Immediate {
	if t == TypeDouble {
		return Immediate{Type: t, Bits: math.Float64bits(v)}
	}
	return Immediate{Type: TypeFloat, Bits: uint64(math.Float32bits(float32(v)))}
}

func (imm Immediate) String() string {
	switch imm.Type {
	case TypeFloat:
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(imm.Bits))), 'g', -1, 32)
	case TypeDouble:
		return strconv.FormatFloat(math.Float64frombits(imm.Bits), 'g', -1, 64)
	case TypeBool:
		if imm.Bits != 0 {
			return "1"
		}
		return "0"
	case TypeU8, TypeU16, TypeU32, TypeU64, TypeHalf:
		return strconv.FormatUint(imm.Bits&imm.mask(), 10)
	default:
		shift := 64 - 8*imm.Type.Size()
		return strconv.FormatInt(int64(imm.Bits<<shift)>>shift, 10)
	}
}

func (imm Immediate) mask() uint64 {
	if imm.Type.Size() >= 8 {
		return math.MaxUint64
	}
	return 1<<(8*imm.Type.Size()) - 1
}

// LabelIndex names a block. Indices are dense after label sorting.
type LabelIndex uint32

func (l LabelIndex) String() string { return fmt.Sprintf("$%d", uint32(l)) }

// MaxLabels bounds the label table of a function
const MaxLabels = math.MaxUint32

// BlockIndex references a basic block in the function arena
type BlockIndex int32

// NoBlock marks an absent block reference
const NoBlock BlockIndex = -1

// InsnIndex references an instruction in the function arena
type InsnIndex uint32

// AddressSpace of a memory access
type AddressSpace uint8

const (
	SpaceGlobal AddressSpace = iota
	SpaceLocal
	SpaceConstant
	SpacePrivate
)

var spaceNames = [...]string{"global", "local", "constant", "private"}

func (s AddressSpace) String() string { return spaceNames[s] }

// AddressSpaceByName resolves an address space from its printed name
func AddressSpaceByName(name string) (AddressSpace, bool) {
	for i, n := range spaceNames {
		if n == name {
			return AddressSpace(i), true
		}
	}
	return 0, false
}

// AtomicOp is the operation of an ATOMIC instruction
type AtomicOp uint8

const (
	AtomicAdd AtomicOp = iota
	AtomicSub
	AtomicAnd
	AtomicOr
	AtomicXor
	AtomicXchg
	AtomicMin
	AtomicMax
	AtomicUMin
	AtomicUMax
	AtomicInc
	AtomicDec
	AtomicCmpXchg
)

var atomicNames = [...]string{"add", "sub", "and", "or", "xor", "xchg", "min", "max", "umin", "umax", "inc", "dec", "cmpxchg"}

func (a AtomicOp) String() string { return atomicNames[a] }

// Operands returns the number of value sources besides the address
func (a AtomicOp) Operands() int {
	switch a {
	case AtomicInc, AtomicDec:
		return 0
	case AtomicCmpXchg:
		return 2
	}
	return 1
}

// AtomicOpByName resolves an atomic operation from its printed name
func AtomicOpByName(name string) (AtomicOp, bool) {
	for i, n := range atomicNames {
		if n == name {
			return AtomicOp(i), true
		}
	}
	return 0, false
}
