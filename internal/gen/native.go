package gen

import "fmt"

// Field locates a bit field inside the four dwords of an instruction
type Field struct {
	DWord uint8
	Shift uint8
	Bits  uint8
}

// Header, DW0
var (
	FieldOpcode           = Field{0, 0, 7}
	FieldAccessMode       = Field{0, 8, 1}
	FieldMaskControl      = Field{0, 9, 1}
	FieldDependency       = Field{0, 10, 2}
	FieldQuarterControl   = Field{0, 12, 2}
	FieldThreadControl    = Field{0, 14, 2}
	FieldPredicateControl = Field{0, 16, 4}
	FieldPredicateInverse = Field{0, 20, 1}
	FieldExecutionSize    = Field{0, 21, 3}
	FieldCondModOrSFID    = Field{0, 24, 4}
	FieldAccWrControl     = Field{0, 28, 1}
	FieldCompactControl   = Field{0, 29, 1}
	FieldDebugControl     = Field{0, 30, 1}
	FieldSaturate         = Field{0, 31, 1}
)

// Register files and destination, DW1
var (
	FieldDstFile        = Field{1, 0, 2}
	FieldDstType        = Field{1, 2, 3}
	FieldSrc0File       = Field{1, 5, 2}
	FieldSrc0Type       = Field{1, 7, 3}
	FieldSrc1File       = Field{1, 10, 2}
	FieldSrc1Type       = Field{1, 12, 3}
	FieldNibControl     = Field{1, 15, 1}
	FieldDstSubNr       = Field{1, 16, 5}
	FieldDstNr          = Field{1, 21, 8}
	FieldDstHStride     = Field{1, 29, 2}
	FieldDstAddressMode = Field{1, 31, 1}
)

// Source 0 and flag, DW2
var (
	FieldSrc0SubNr       = Field{2, 0, 5}
	FieldSrc0Nr          = Field{2, 5, 8}
	FieldSrc0Abs         = Field{2, 13, 1}
	FieldSrc0Negate      = Field{2, 14, 1}
	FieldSrc0AddressMode = Field{2, 15, 1}
	FieldSrc0HStride     = Field{2, 16, 2}
	FieldSrc0Width       = Field{2, 18, 3}
	FieldSrc0VStride     = Field{2, 21, 4}
	FieldFlagSubNr       = Field{2, 25, 1}
	FieldFlagNr          = Field{2, 26, 1}
)

// Source 1, DW3
var (
	FieldSrc1SubNr       = Field{3, 0, 5}
	FieldSrc1Nr          = Field{3, 5, 8}
	FieldSrc1Abs         = Field{3, 13, 1}
	FieldSrc1Negate      = Field{3, 14, 1}
	FieldSrc1AddressMode = Field{3, 15, 1}
	FieldSrc1HStride     = Field{3, 16, 2}
	FieldSrc1Width       = Field{3, 18, 3}
	FieldSrc1VStride     = Field{3, 21, 4}
	FieldImmediate       = Field{3, 0, 32}
)

// Message descriptors, DW3
var (
	FieldMsgBTI          = Field{3, 0, 8}
	FieldMsgRGBA         = Field{3, 8, 4}
	FieldUntypedSIMDMode = Field{3, 12, 2}
	FieldMsgType         = Field{3, 14, 4}
	FieldMsgCategory     = Field{3, 18, 1}
	FieldHeaderPresent   = Field{3, 19, 1}
	FieldResponseLength  = Field{3, 20, 5}
	FieldMsgLength       = Field{3, 25, 4}
	FieldEndOfThread     = Field{3, 31, 1}
	FieldByteSIMDMode    = Field{3, 8, 1}
	FieldByteDataSize    = Field{3, 11, 2}
	FieldSamplerIndex    = Field{3, 8, 4}
	FieldSamplerMsgType  = Field{3, 12, 5}
	FieldSamplerSIMDMode = Field{3, 17, 2}
	FieldSpawnerResource = Field{3, 4, 1}
)

func (f Field) mask() uint32 {
	if f.Bits >= 32 {
		return ^uint32(0)
	}
	return 1<<f.Bits - 1
}

// Instruction is one 128 bit native instruction
type Instruction [4]uint32

// Set writes v into field f, truncated to the field width
func (insn *Instruction) Set(f Field, v uint32) {
	m := f.mask()
	insn[f.DWord] = insn[f.DWord]&^(m<<f.Shift) | (v&m)<<f.Shift
}

// SetBool writes a one bit flag
func (insn *Instruction) SetBool(f Field, v bool) {
	if v {
		insn.Set(f, 1)
	} else {
		insn.Set(f, 0)
	}
}

// Get reads field f
func (insn *Instruction) Get(f Field) uint32 {
	return insn[f.DWord] >> f.Shift & f.mask()
}

// Opcode returns the opcode field
func (insn *Instruction) Opcode() uint32 { return insn.Get(FieldOpcode) }

func (insn Instruction) String() string {
	return fmt.Sprintf("%08x %08x %08x %08x", insn[0], insn[1], insn[2], insn[3])
}
