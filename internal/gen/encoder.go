package gen

import (
	"encoding/binary"

	"github.com/tliron/commonlog"

	"gbe/internal/errors"
)

var log = commonlog.GetLogger("gbe.gen")

// State is the emission state applied to every new instruction
type State struct {
	ExecWidth        uint32
	QuarterControl   uint32
	NibControl       uint32
	NoMask           bool
	Flag             uint32
	SubFlag          uint32
	Predicate        uint32
	InversePredicate bool
	AccWrEnable      bool
	Saturate         bool
}

// Encoder appends native instructions to an in-memory store
type Encoder struct {
	Curr  State
	stack []State
	store []Instruction
	simd  uint32
}

// NewEncoder creates an encoder for a kernel of the given SIMD width
func NewEncoder(simdWidth uint32) *Encoder {
	errors.Assert(simdWidth == 8 || simdWidth == 16, errors.ErrorExecutionWidth,
		"unsupported kernel SIMD width %d", simdWidth)
	return &Encoder{
		Curr: State{ExecWidth: simdWidth, QuarterControl: QuarterQ1, Predicate: PredicateNone},
		simd: simdWidth,
	}
}

// SIMDWidth returns the kernel width the encoder was created for
func (e *Encoder) SIMDWidth() uint32 { return e.simd }

// Push saves the current state
func (e *Encoder) Push() { e.stack = append(e.stack, e.Curr) }

// Pop restores the last pushed state
func (e *Encoder) Pop() {
	errors.Assert(len(e.stack) > 0, errors.ErrorExecutionWidth, "encoder state stack is empty")
	e.Curr = e.stack[len(e.stack)-1]
	e.stack = e.stack[:len(e.stack)-1]
}

// Len returns the number of emitted instructions
func (e *Encoder) Len() int { return len(e.store) }

// Instruction returns the i-th emitted instruction
func (e *Encoder) Instruction(i int) Instruction { return e.store[i] }

// Store returns a copy of every emitted instruction
func (e *Encoder) Store() []Instruction { return append([]Instruction(nil), e.store...) }

// Bytes serializes the store, 16 little endian bytes per instruction
func (e *Encoder) Bytes() []byte {
	out := make([]byte, 0, 16*len(e.store))
	for _, insn := range e.store {
		for _, dw := range insn {
			out = binary.LittleEndian.AppendUint32(out, dw)
		}
	}
	return out
}

// next appends a zeroed instruction. The pointer is valid until the next
// call.
func (e *Encoder) next(opcode uint32) *Instruction {
	e.store = append(e.store, Instruction{})
	insn := &e.store[len(e.store)-1]
	insn.Set(FieldOpcode, opcode)
	return insn
}

func encodeWidth(width uint32) uint32 {
	switch width {
	case 1:
		return Width1
	case 4:
		return Width4
	case 8:
		return Width8
	case 16:
		return Width16
	}
	errors.Fail(errors.ErrorExecutionWidth, "unsupported execution width %d", width)
	return 0
}

func (e *Encoder) setHeader(insn *Instruction) {
	insn.Set(FieldExecutionSize, encodeWidth(e.Curr.ExecWidth))
	insn.SetBool(FieldAccWrControl, e.Curr.AccWrEnable)
	insn.Set(FieldQuarterControl, e.Curr.QuarterControl)
	insn.Set(FieldNibControl, e.Curr.NibControl)
	insn.SetBool(FieldMaskControl, e.Curr.NoMask)
	insn.Set(FieldFlagNr, e.Curr.Flag)
	insn.Set(FieldFlagSubNr, e.Curr.SubFlag)
	if e.Curr.Predicate != PredicateNone {
		insn.Set(FieldPredicateControl, e.Curr.Predicate)
		insn.SetBool(FieldPredicateInverse, e.Curr.InversePredicate)
	}
	insn.SetBool(FieldSaturate, e.Curr.Saturate)
}

func checkRange(r Register) {
	errors.Assert(r.File == FileARF || r.File == FileIMM || r.Nr < 128, errors.ErrorRegisterRange,
		"register number %d out of range", r.Nr)
}

func (e *Encoder) setDst(insn *Instruction, dst Register) {
	checkRange(dst)
	insn.Set(FieldDstFile, dst.File)
	insn.Set(FieldDstType, dst.Type)
	insn.Set(FieldDstAddressMode, dst.AddressMode)
	insn.Set(FieldDstNr, dst.Nr)
	insn.Set(FieldDstSubNr, dst.SubNr)
	hstride := dst.HStride
	if hstride == HorizontalStride0 {
		hstride = HorizontalStride1
	}
	insn.Set(FieldDstHStride, hstride)
}

func (e *Encoder) setSrc0(insn *Instruction, src Register) {
	checkRange(src)
	insn.Set(FieldSrc0File, src.File)
	insn.Set(FieldSrc0Type, src.Type)
	insn.SetBool(FieldSrc0Abs, src.Absolute)
	insn.SetBool(FieldSrc0Negate, src.Negation)
	insn.Set(FieldSrc0AddressMode, src.AddressMode)
	if src.File == FileIMM {
		insn.Set(FieldImmediate, src.Value)
		// the hardware reads the immediate type from the src1 fields too
		insn.Set(FieldSrc1File, FileARF)
		insn.Set(FieldSrc1Type, src.Type)
		return
	}
	insn.Set(FieldSrc0SubNr, src.SubNr)
	insn.Set(FieldSrc0Nr, src.Nr)
	if src.Width == Width1 && insn.Get(FieldExecutionSize) == Width1 {
		insn.Set(FieldSrc0HStride, HorizontalStride0)
		insn.Set(FieldSrc0Width, Width1)
		insn.Set(FieldSrc0VStride, VerticalStride0)
	} else {
		insn.Set(FieldSrc0HStride, src.HStride)
		insn.Set(FieldSrc0Width, src.Width)
		insn.Set(FieldSrc0VStride, src.VStride)
	}
}

func (e *Encoder) setSrc1(insn *Instruction, src Register) {
	checkRange(src)
	errors.Assert(src.File != FileARF || src.Nr == ARFNull, errors.ErrorRegisterRange,
		"architecture register 0x%x cannot be a second source", src.Nr)
	errors.Assert(insn.Get(FieldSrc0File) != FileIMM, errors.ErrorIllegalTypes,
		"second source after an immediate first source")
	insn.Set(FieldSrc1File, src.File)
	insn.Set(FieldSrc1Type, src.Type)
	insn.SetBool(FieldSrc1Abs, src.Absolute)
	insn.SetBool(FieldSrc1Negate, src.Negation)
	if src.File == FileIMM {
		insn.Set(FieldImmediate, src.Value)
		return
	}
	errors.Assert(src.AddressMode == AddressDirect, errors.ErrorRegisterRange, "indirect second source")
	insn.Set(FieldSrc1SubNr, src.SubNr)
	insn.Set(FieldSrc1Nr, src.Nr)
	if src.Width == Width1 && insn.Get(FieldExecutionSize) == Width1 {
		insn.Set(FieldSrc1HStride, HorizontalStride0)
		insn.Set(FieldSrc1Width, Width1)
		insn.Set(FieldSrc1VStride, VerticalStride0)
	} else {
		insn.Set(FieldSrc1HStride, src.HStride)
		insn.Set(FieldSrc1Width, src.Width)
		insn.Set(FieldSrc1VStride, src.VStride)
	}
}

// Splitting. A 16 wide instruction touching byte vectors is issued as two
// 8 wide quarters unless every vector operand shares the destination
// stride.

func sameByteLayout(dst, src Register) bool {
	return (src.IsByteVector() && src.HStride == dst.HStride) || src.IsScalar()
}

func (e *Encoder) needToSplitAlu1(dst, src Register) bool {
	if e.Curr.ExecWidth != 16 || src.IsScalar() {
		return false
	}
	if dst.IsByteVector() && sameByteLayout(dst, src) {
		return false
	}
	return dst.IsByteVector() || src.IsByteVector()
}

func (e *Encoder) needToSplitAlu2(dst, src0, src1 Register) bool {
	if e.Curr.ExecWidth != 16 || (src0.IsScalar() && src1.IsScalar()) {
		return false
	}
	if dst.IsByteVector() && sameByteLayout(dst, src0) && sameByteLayout(dst, src1) {
		return false
	}
	return dst.IsByteVector() || src0.IsByteVector() || src1.IsByteVector()
}

func (e *Encoder) needToSplitCmp(dst, src0, src1 Register) bool {
	if e.Curr.ExecWidth != 16 {
		return false
	}
	if dst.IsByteVector() {
		return true
	}
	if src0.IsScalar() && src1.IsScalar() {
		return false
	}
	if src0.IsByteVector() || src1.IsByteVector() {
		return true
	}
	wide := func(t uint32) bool { return t == TypeD || t == TypeUD || t == TypeF }
	return wide(src0.Type) || wide(src1.Type)
}

// quarter emits one 8 wide half of a split instruction
func (e *Encoder) quarter(opcode, condition, q uint32, dst Register, srcs ...Register) {
	insn := e.next(opcode)
	e.setHeader(insn)
	insn.Set(FieldQuarterControl, q)
	insn.Set(FieldExecutionSize, Width8)
	if condition != ConditionNone {
		insn.Set(FieldCondModOrSFID, condition)
	}
	if opcode == OpcodeCMP && dst.IsNull() {
		insn.Set(FieldThreadControl, ThreadSwitch)
	}
	e.setDst(insn, Qn(dst, q))
	e.setSrc0(insn, Qn(srcs[0], q))
	if len(srcs) > 1 {
		e.setSrc1(insn, Qn(srcs[1], q))
	}
}

func (e *Encoder) alu1(opcode uint32, dst, src Register, condition uint32) {
	if e.needToSplitAlu1(dst, src) {
		log.Debugf("splitting opcode %d into two quarters", opcode)
		e.quarter(opcode, condition, QuarterQ1, dst, src)
		e.quarter(opcode, condition, QuarterQ2, dst, src)
		return
	}
	insn := e.next(opcode)
	if condition != ConditionNone {
		insn.Set(FieldCondModOrSFID, condition)
	}
	e.setHeader(insn)
	e.setDst(insn, dst)
	e.setSrc0(insn, src)
}

func (e *Encoder) alu2(opcode uint32, dst, src0, src1 Register, condition uint32) {
	if e.needToSplitAlu2(dst, src0, src1) {
		log.Debugf("splitting opcode %d into two quarters", opcode)
		e.quarter(opcode, condition, QuarterQ1, dst, src0, src1)
		e.quarter(opcode, condition, QuarterQ2, dst, src0, src1)
		return
	}
	insn := e.next(opcode)
	if condition != ConditionNone {
		insn.Set(FieldCondModOrSFID, condition)
	}
	e.setHeader(insn)
	e.setDst(insn, dst)
	e.setSrc0(insn, src0)
	e.setSrc1(insn, src1)
}

func isInteger(r Register) bool {
	if r.File == FileIMM {
		return r.Type != TypeF && r.Type != TypeVF
	}
	return r.Type != TypeF && r.Type != TypeDF
}

func isFloatLike(r Register) bool {
	return r.Type == TypeF || (r.File == FileIMM && r.Type == TypeVF)
}

func isDWordInt(r Register) bool { return r.Type == TypeD || r.Type == TypeUD }

func checkLogic(name string, regs ...Register) {
	for _, r := range regs {
		errors.Assert(isInteger(r), errors.ErrorIllegalTypes, "%s on a float operand %s", name, r)
	}
}

// MOV copies src into dst
func (e *Encoder) MOV(dst, src Register) { e.alu1(OpcodeMOV, dst, src, ConditionNone) }

// NOT inverts the bits of src
func (e *Encoder) NOT(dst, src Register) {
	checkLogic("NOT", dst, src)
	e.alu1(OpcodeNOT, dst, src, ConditionNone)
}

// RNDZ rounds toward zero
func (e *Encoder) RNDZ(dst, src Register) { e.alu1(OpcodeRNDZ, dst, src, ConditionNone) }

// RNDE rounds to nearest even
func (e *Encoder) RNDE(dst, src Register) { e.alu1(OpcodeRNDE, dst, src, ConditionNone) }

// RNDD rounds down
func (e *Encoder) RNDD(dst, src Register) { e.alu1(OpcodeRNDD, dst, src, ConditionNone) }

// RNDU rounds up
func (e *Encoder) RNDU(dst, src Register) { e.alu1(OpcodeRNDU, dst, src, ConditionNone) }

// FRC extracts the fractional part
func (e *Encoder) FRC(dst, src Register) { e.alu1(OpcodeFRC, dst, src, ConditionNone) }

// LZD counts leading zeros
func (e *Encoder) LZD(dst, src Register) {
	checkLogic("LZD", dst, src)
	e.alu1(OpcodeLZD, dst, src, ConditionNone)
}

// SEL picks src0 where the predicate holds, src1 elsewhere
func (e *Encoder) SEL(dst, src0, src1 Register) { e.alu2(OpcodeSEL, dst, src0, src1, ConditionNone) }

// SELCmp picks the operand satisfying condition, as in min and max
func (e *Encoder) SELCmp(condition uint32, dst, src0, src1 Register) {
	e.alu2(OpcodeSEL, dst, src0, src1, condition)
}

// AND is a bitwise and
func (e *Encoder) AND(dst, src0, src1 Register) {
	checkLogic("AND", dst, src0, src1)
	e.alu2(OpcodeAND, dst, src0, src1, ConditionNone)
}

// OR is a bitwise or
func (e *Encoder) OR(dst, src0, src1 Register) {
	checkLogic("OR", dst, src0, src1)
	e.alu2(OpcodeOR, dst, src0, src1, ConditionNone)
}

// XOR is a bitwise exclusive or
func (e *Encoder) XOR(dst, src0, src1 Register) {
	checkLogic("XOR", dst, src0, src1)
	e.alu2(OpcodeXOR, dst, src0, src1, ConditionNone)
}

// SHR shifts right, filling with zeros
func (e *Encoder) SHR(dst, src0, src1 Register) {
	checkLogic("SHR", dst, src0, src1)
	e.alu2(OpcodeSHR, dst, src0, src1, ConditionNone)
}

// SHL shifts left
func (e *Encoder) SHL(dst, src0, src1 Register) {
	checkLogic("SHL", dst, src0, src1)
	e.alu2(OpcodeSHL, dst, src0, src1, ConditionNone)
}

// ASR shifts right, replicating the sign bit
func (e *Encoder) ASR(dst, src0, src1 Register) {
	checkLogic("ASR", dst, src0, src1)
	e.alu2(OpcodeASR, dst, src0, src1, ConditionNone)
}

func checkFloatMix(src0, src1 Register) {
	if isFloatLike(src0) {
		errors.Assert(!isDWordInt(src1), errors.ErrorIllegalTypes, "float %s mixed with dword %s", src0, src1)
	}
	if isFloatLike(src1) {
		errors.Assert(!isDWordInt(src0), errors.ErrorIllegalTypes, "dword %s mixed with float %s", src0, src1)
	}
}

// ADD adds two sources. Floats cannot be mixed with dword integers.
func (e *Encoder) ADD(dst, src0, src1 Register) {
	checkFloatMix(src0, src1)
	e.alu2(OpcodeADD, dst, src0, src1, ConditionNone)
}

// MUL multiplies two sources. Dword integer sources cannot produce a
// float, and the accumulator is not a legal source.
func (e *Encoder) MUL(dst, src0, src1 Register) {
	if isDWordInt(src0) || isDWordInt(src1) {
		errors.Assert(dst.Type != TypeF, errors.ErrorIllegalTypes, "dword multiply into float %s", dst)
	}
	checkFloatMix(src0, src1)
	errors.Assert(!src0.IsAcc(), errors.ErrorAccumulatorOperand, "accumulator as first MUL source")
	errors.Assert(!src1.IsAcc(), errors.ErrorAccumulatorOperand, "accumulator as second MUL source")
	e.alu2(OpcodeMUL, dst, src0, src1, ConditionNone)
}

// MAC multiplies and accumulates into the accumulator
func (e *Encoder) MAC(dst, src0, src1 Register) { e.alu2(OpcodeMAC, dst, src0, src1, ConditionNone) }

// MACH returns the high half of a multiply accumulate
func (e *Encoder) MACH(dst, src0, src1 Register) {
	e.alu2(OpcodeMACH, dst, src0, src1, ConditionNone)
}

// CMP compares src0 and src1 into the flag, writing dst when not null
func (e *Encoder) CMP(condition uint32, src0, src1, dst Register) {
	if e.needToSplitCmp(dst, src0, src1) {
		log.Debugf("splitting CMP into two quarters")
		e.quarter(OpcodeCMP, condition, QuarterQ1, dst, src0, src1)
		e.quarter(OpcodeCMP, condition, QuarterQ2, dst, src0, src1)
		return
	}
	insn := e.next(OpcodeCMP)
	e.setHeader(insn)
	insn.Set(FieldCondModOrSFID, condition)
	if dst.IsNull() {
		insn.Set(FieldThreadControl, ThreadSwitch)
	}
	e.setDst(insn, dst)
	e.setSrc0(insn, src0)
	e.setSrc1(insn, src1)
}

// NOP emits an empty instruction
func (e *Encoder) NOP() { e.next(OpcodeNOP) }

// JMPI jumps by the immediate in src, patched later with PatchJMPI. A
// long jump reserves a NOP after it for the far form.
func (e *Encoder) JMPI(src Register, longJump bool) int {
	index := len(e.store)
	e.Push()
	e.Curr.ExecWidth = 1
	e.Curr.NoMask = true
	e.alu2(OpcodeJMPI, IP(), IP(), src, ConditionNone)
	e.Pop()
	if longJump {
		e.NOP()
	}
	return index
}

// PatchJMPI writes the jump distance, in instructions, of the JMPI at
// index. Distances beyond 16 bits turn the jump into an add of the byte
// distance to the instruction pointer, which needs the reserved NOP.
func (e *Encoder) PatchJMPI(index int, distance int32) {
	errors.Assert(index >= 0 && index < len(e.store), errors.ErrorPatchTarget,
		"patch target %d outside %d instructions", index, len(e.store))
	insn := &e.store[index]
	errors.Assert(insn.Opcode() == OpcodeJMPI, errors.ErrorPatchTarget,
		"instruction %d has opcode %d, not JMPI", index, insn.Opcode())
	if distance > -32769 && distance < 32768 {
		e.setSrc1(insn, ImmD(distance))
		return
	}
	errors.Assert(index+1 < len(e.store) && e.store[index+1].Opcode() == OpcodeNOP, errors.ErrorPatchTarget,
		"far jump at %d has no reserved slot", index)
	insn.Set(FieldOpcode, OpcodeADD)
	e.setSrc1(insn, ImmD(distance*16))
}

func (e *Encoder) mathTypes(function uint32, srcs ...Register) {
	integer := function == MathIntDivBoth || function == MathIntQuotient || function == MathIntRemainder
	for _, s := range srcs {
		if s.IsNull() {
			continue
		}
		if integer {
			errors.Assert(s.Type != TypeF, errors.ErrorIllegalTypes, "integer division of float %s", s)
		} else {
			errors.Assert(s.Type == TypeF, errors.ErrorIllegalTypes, "math function %d on non-float %s", function, s)
		}
	}
}

// MATH applies the extended math function to src0 and src1. Integer
// division only exists 8 wide and is split on 16 wide kernels.
func (e *Encoder) MATH(dst Register, function uint32, src0, src1 Register) {
	errors.Assert(dst.File == FileGRF && src0.File == FileGRF, errors.ErrorIllegalTypes, "math operands must be GRF")
	errors.Assert(src1.File == FileGRF || src1.IsNull(), errors.ErrorIllegalTypes, "math operands must be GRF")
	errors.Assert(dst.HStride == HorizontalStride1 || dst.HStride == HorizontalStride0, errors.ErrorIllegalTypes,
		"math destination must be packed")
	e.mathTypes(function, src0, src1)

	// integer division always runs 8 wide, twice at SIMD16
	if function == MathIntQuotient || function == MathIntRemainder {
		e.quarter(OpcodeMATH, function, QuarterQ1, dst, src0, src1)
		if e.Curr.ExecWidth == 16 {
			e.quarter(OpcodeMATH, function, QuarterQ2, dst, src0, src1)
		}
		return
	}
	insn := e.next(OpcodeMATH)
	e.setHeader(insn)
	insn.Set(FieldCondModOrSFID, function)
	e.setDst(insn, dst)
	e.setSrc0(insn, src0)
	e.setSrc1(insn, src1)
}

// MATH1 applies a single source math function
func (e *Encoder) MATH1(dst Register, function uint32, src Register) {
	e.MATH(dst, function, src, Retype(Null(), src.Type))
}
