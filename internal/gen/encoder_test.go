package gen

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbe/internal/errors"
)

func iceCode(t *testing.T, f func()) string {
	t.Helper()
	var err error
	func() {
		defer errors.Recover(&err)
		f()
	}()
	require.Error(t, err, "expected an internal compiler error")
	return errors.Code(err)
}

func TestMovSingleInstruction(t *testing.T) {
	e := NewEncoder(16)
	e.MOV(UD16(10, 0), UD16(20, 0))

	require.Equal(t, 1, e.Len())
	insn := e.Instruction(0)
	assert.Equal(t, uint32(OpcodeMOV), insn.Opcode())
	assert.Equal(t, uint32(Width16), insn.Get(FieldExecutionSize))
	assert.Equal(t, uint32(FileGRF), insn.Get(FieldDstFile))
	assert.Equal(t, uint32(10), insn.Get(FieldDstNr))
	assert.Equal(t, uint32(20), insn.Get(FieldSrc0Nr))
	assert.Equal(t, uint32(TypeUD), insn.Get(FieldSrc0Type))
}

func TestMovByteVectorSplits(t *testing.T) {
	e := NewEncoder(16)
	e.MOV(UB16(10, 0), UD16(20, 0))

	require.Equal(t, 2, e.Len())
	q1, q2 := e.Instruction(0), e.Instruction(1)
	for _, insn := range []Instruction{q1, q2} {
		assert.Equal(t, uint32(Width8), insn.Get(FieldExecutionSize))
	}
	assert.Equal(t, uint32(QuarterQ1), q1.Get(FieldQuarterControl))
	assert.Equal(t, uint32(QuarterQ2), q2.Get(FieldQuarterControl))

	// bytes advance 8, dwords a full register
	assert.Equal(t, uint32(10), q2.Get(FieldDstNr))
	assert.Equal(t, uint32(8), q2.Get(FieldDstSubNr))
	assert.Equal(t, uint32(21), q2.Get(FieldSrc0Nr))
	assert.Equal(t, uint32(0), q2.Get(FieldSrc0SubNr))
}

func TestScalarSourceDoesNotSplit(t *testing.T) {
	e := NewEncoder(16)
	e.MOV(UB16(10, 0), Vec1(3, 4, TypeUD))
	assert.Equal(t, 1, e.Len())

	e.MOV(UB16(10, 0), UB16(12, 0))
	assert.Equal(t, 2, e.Len(), "matching byte layouts stay whole")
}

func TestQn(t *testing.T) {
	assert.Equal(t, F16(5, 0), Qn(F16(5, 0), 0))
	q := Qn(F16(5, 0), 1)
	assert.Equal(t, uint32(6), q.Nr)
	assert.Equal(t, uint32(0), q.SubNr)

	q = Qn(UW16(5, 0), 1)
	assert.Equal(t, uint32(5), q.Nr)
	assert.Equal(t, uint32(16), q.SubNr)

	scalar := Vec1(7, 8, TypeF)
	assert.Equal(t, scalar, Qn(scalar, 1))
	assert.Equal(t, ImmD(3), Qn(ImmD(3), 1))
}

func TestImmediateSource(t *testing.T) {
	e := NewEncoder(8)
	e.MOV(UD8(4, 0), ImmUD(0xdeadbeef))

	insn := e.Instruction(0)
	assert.Equal(t, uint32(FileIMM), insn.Get(FieldSrc0File))
	assert.Equal(t, uint32(0xdeadbeef), insn.Get(FieldImmediate))
	assert.Equal(t, uint32(FileARF), insn.Get(FieldSrc1File))
	assert.Equal(t, uint32(TypeUD), insn.Get(FieldSrc1Type))
}

func TestStateStack(t *testing.T) {
	e := NewEncoder(16)
	e.Push()
	e.Curr.ExecWidth = 1
	e.Curr.NoMask = true
	e.Curr.Predicate = PredicateNormal
	e.Curr.InversePredicate = true
	e.MOV(Vec1(2, 0, TypeUD), Vec1(3, 0, TypeUD))
	e.Pop()
	e.MOV(UD16(2, 0), UD16(4, 0))

	first, second := e.Instruction(0), e.Instruction(1)
	assert.Equal(t, uint32(Width1), first.Get(FieldExecutionSize))
	assert.Equal(t, uint32(1), first.Get(FieldMaskControl))
	assert.Equal(t, uint32(PredicateNormal), first.Get(FieldPredicateControl))
	assert.Equal(t, uint32(1), first.Get(FieldPredicateInverse))
	assert.Equal(t, uint32(HorizontalStride0), first.Get(FieldSrc0HStride))

	assert.Equal(t, uint32(Width16), second.Get(FieldExecutionSize))
	assert.Equal(t, uint32(0), second.Get(FieldMaskControl))
	assert.Equal(t, uint32(PredicateNone), second.Get(FieldPredicateControl))
}

func TestArithmeticLegality(t *testing.T) {
	e := NewEncoder(8)

	assert.Equal(t, errors.ErrorIllegalTypes, iceCode(t, func() {
		e.ADD(F16(1, 0), F16(2, 0), UD8(3, 0))
	}))
	assert.Equal(t, errors.ErrorIllegalTypes, iceCode(t, func() {
		e.ADD(F16(1, 0), Vec8(3, 0, TypeD), ImmVF(0x30303030))
	}))
	assert.Equal(t, errors.ErrorIllegalTypes, iceCode(t, func() {
		e.MUL(F16(1, 0), UD8(2, 0), UD8(3, 0))
	}))
	assert.Equal(t, errors.ErrorAccumulatorOperand, iceCode(t, func() {
		e.MUL(F16(1, 0), Acc(), F16(3, 0))
	}))
	assert.Equal(t, errors.ErrorIllegalTypes, iceCode(t, func() {
		e.AND(F16(1, 0), F16(2, 0), F16(3, 0))
	}))

	e.ADD(F16(1, 0), F16(2, 0), ImmF(1.5))
	e.MUL(UD8(1, 0), UD8(2, 0), ImmUD(3))
	e.SHL(UD8(1, 0), UD8(2, 0), ImmUD(2))
	assert.Equal(t, 3, e.Len())
}

func TestRegisterRange(t *testing.T) {
	e := NewEncoder(8)
	assert.Equal(t, errors.ErrorRegisterRange, iceCode(t, func() {
		e.MOV(UD8(128, 0), UD8(1, 0))
	}))
	assert.Equal(t, errors.ErrorExecutionWidth, iceCode(t, func() {
		NewEncoder(4)
	}))
	assert.Equal(t, errors.ErrorExecutionWidth, iceCode(t, func() {
		e.Curr.ExecWidth = 32
		e.NOP()
		e.MOV(UD8(1, 0), UD8(2, 0))
	}))
}

func TestCompare(t *testing.T) {
	e := NewEncoder(8)
	e.CMP(ConditionL, F16(2, 0), F16(3, 0), Null())
	insn := e.Instruction(0)
	assert.Equal(t, uint32(OpcodeCMP), insn.Opcode())
	assert.Equal(t, uint32(ConditionL), insn.Get(FieldCondModOrSFID))
	assert.Equal(t, uint32(ThreadSwitch), insn.Get(FieldThreadControl))

	e = NewEncoder(16)
	e.CMP(ConditionEQ, Vec16(2, 0, TypeD), Vec16(4, 0, TypeD), Null())
	require.Equal(t, 2, e.Len())
	q1, q2 := e.Instruction(0), e.Instruction(1)
	assert.Equal(t, uint32(3), q2.Get(FieldSrc0Nr))
	assert.Equal(t, uint32(ConditionEQ), q2.Get(FieldCondModOrSFID))
	assert.Equal(t, uint32(ThreadSwitch), q1.Get(FieldThreadControl))
	assert.Equal(t, uint32(ThreadSwitch), q2.Get(FieldThreadControl))

	e = NewEncoder(16)
	e.CMP(ConditionEQ, Vec16(2, 0, TypeD), Vec16(4, 0, TypeD), Flag(0, 0))
	require.Equal(t, 2, e.Len())
	q1, q2 = e.Instruction(0), e.Instruction(1)
	assert.Equal(t, uint32(0), q1.Get(FieldThreadControl))
	assert.Equal(t, uint32(0), q2.Get(FieldThreadControl))

	e = NewEncoder(16)
	e.CMP(ConditionEQ, Vec1(2, 0, TypeD), Vec1(4, 0, TypeD), Null())
	assert.Equal(t, 1, e.Len())
}

func TestMath(t *testing.T) {
	e := NewEncoder(16)
	e.MATH(UD16(10, 0), MathIntQuotient, UD16(12, 0), UD16(14, 0))
	require.Equal(t, 2, e.Len())
	q2 := e.Instruction(1)
	assert.Equal(t, uint32(OpcodeMATH), q2.Opcode())
	assert.Equal(t, uint32(MathIntQuotient), q2.Get(FieldCondModOrSFID))
	assert.Equal(t, uint32(QuarterQ2), q2.Get(FieldQuarterControl))
	assert.Equal(t, uint32(11), q2.Get(FieldDstNr))

	e.MATH1(F16(20, 0), MathSqrt, F16(22, 0))
	assert.Equal(t, 3, e.Len())
	m1 := e.Instruction(2)
	assert.Equal(t, uint32(FileARF), m1.Get(FieldSrc1File))

	e = NewEncoder(16)
	e.Push()
	e.Curr.ExecWidth = 1
	e.MATH(Vec1(10, 0, TypeUD), MathIntRemainder, Vec1(12, 0, TypeUD), Vec1(14, 0, TypeUD))
	e.Pop()
	require.Equal(t, 1, e.Len())
	r := e.Instruction(0)
	assert.Equal(t, uint32(Width8), r.Get(FieldExecutionSize))
	assert.Equal(t, uint32(QuarterQ1), r.Get(FieldQuarterControl))

	assert.Equal(t, errors.ErrorIllegalTypes, iceCode(t, func() {
		e.MATH(F16(10, 0), MathIntRemainder, F16(12, 0), F16(14, 0))
	}))
	assert.Equal(t, errors.ErrorIllegalTypes, iceCode(t, func() {
		e.MATH1(UD16(10, 0), MathSin, UD16(12, 0))
	}))
}

func TestJumpPatching(t *testing.T) {
	e := NewEncoder(16)
	short := e.JMPI(ImmD(0), false)
	e.NOP()
	far := e.JMPI(ImmD(0), true)
	require.Equal(t, 4, e.Len())

	e.PatchJMPI(short, 2)
	insn := e.Instruction(short)
	assert.Equal(t, uint32(OpcodeJMPI), insn.Opcode())
	assert.Equal(t, uint32(2), insn.Get(FieldImmediate))
	assert.Equal(t, uint32(Width1), insn.Get(FieldExecutionSize))
	assert.Equal(t, uint32(ARFIP), insn.Get(FieldDstNr))

	e.PatchJMPI(far, 70000)
	insn = e.Instruction(far)
	assert.Equal(t, uint32(OpcodeADD), insn.Opcode())
	assert.Equal(t, uint32(70000*16), insn.Get(FieldImmediate))
	assert.Equal(t, uint32(Width16), e.Curr.ExecWidth)

	assert.Equal(t, errors.ErrorPatchTarget, iceCode(t, func() { e.PatchJMPI(1, 3) }))
	assert.Equal(t, errors.ErrorPatchTarget, iceCode(t, func() { e.PatchJMPI(9, 3) }))
	assert.Equal(t, errors.ErrorPatchTarget, iceCode(t, func() {
		last := e.JMPI(ImmD(0), false)
		e.PatchJMPI(last, -40000)
	}))
}

func TestUntypedMessages(t *testing.T) {
	e := NewEncoder(16)
	e.UntypedRead(UD16(30, 0), UD16(40, 0), 3, 2)
	read := e.Instruction(0)
	assert.Equal(t, uint32(OpcodeSEND), read.Opcode())
	assert.Equal(t, uint32(SFIDDataCache), read.Get(FieldCondModOrSFID))
	assert.Equal(t, uint32(2), read.Get(FieldMsgLength))
	assert.Equal(t, uint32(4), read.Get(FieldResponseLength))
	assert.Equal(t, uint32(ChannelA|ChannelB), read.Get(FieldMsgRGBA))
	assert.Equal(t, uint32(3), read.Get(FieldMsgBTI))
	assert.Equal(t, uint32(MsgUntypedRead), read.Get(FieldMsgType))
	assert.Equal(t, uint32(UntypedSIMD16), read.Get(FieldUntypedSIMDMode))
	assert.Equal(t, uint32(TypeUW), read.Get(FieldDstType))

	e = NewEncoder(8)
	e.UntypedWrite(UD8(50, 0), 1, 1)
	write := e.Instruction(0)
	assert.Equal(t, uint32(2), write.Get(FieldMsgLength))
	assert.Equal(t, uint32(0), write.Get(FieldResponseLength))
	assert.Equal(t, uint32(UntypedSIMD8), write.Get(FieldUntypedSIMDMode))
	assert.Equal(t, uint32(FileARF), write.Get(FieldDstFile))

	assert.Equal(t, errors.ErrorElementCount, iceCode(t, func() {
		e.UntypedRead(UD8(30, 0), UD8(40, 0), 1, 5)
	}))
	assert.Equal(t, errors.ErrorElementCount, iceCode(t, func() {
		e.UntypedWrite(UD8(30, 0), 1, 0)
	}))
}

func TestByteMessages(t *testing.T) {
	e := NewEncoder(16)
	e.ByteGather(UD16(30, 0), UD16(40, 0), 2, ByteSize2)
	e.ByteScatter(UD16(50, 0), 2, ByteSize1)

	gather, scatter := e.Instruction(0), e.Instruction(1)
	assert.Equal(t, uint32(MsgByteGather), gather.Get(FieldMsgType))
	assert.Equal(t, uint32(2), gather.Get(FieldResponseLength))
	assert.Equal(t, uint32(ByteSize2), gather.Get(FieldByteDataSize))
	assert.Equal(t, uint32(ByteSIMD16), gather.Get(FieldByteSIMDMode))
	assert.Equal(t, uint32(MsgByteScatter), scatter.Get(FieldMsgType))
	assert.Equal(t, uint32(4), scatter.Get(FieldMsgLength))
}

func TestSampleAndEOT(t *testing.T) {
	e := NewEncoder(16)
	e.Sample(F16(60, 0), F16(70, 0), 2, true, 4, 1, 0, false)
	assert.Equal(t, 0, e.Len())

	e.Sample(F16(60, 0), F16(70, 0), 2, true, 4, 1, 0xf, true)
	sample := e.Instruction(0)
	assert.Equal(t, uint32(SFIDSampler), sample.Get(FieldCondModOrSFID))
	assert.Equal(t, uint32(5), sample.Get(FieldMsgLength))
	assert.Equal(t, uint32(8), sample.Get(FieldResponseLength))
	assert.Equal(t, uint32(SamplerMsgLD), sample.Get(FieldSamplerMsgType))
	assert.Equal(t, uint32(1), sample.Get(FieldSamplerIndex))

	e.EOT(127)
	eot := e.Instruction(1)
	assert.Equal(t, uint32(1), eot.Get(FieldEndOfThread))
	assert.Equal(t, uint32(SFIDSpawner), eot.Get(FieldCondModOrSFID))
	assert.Equal(t, uint32(Width8), eot.Get(FieldExecutionSize))
	assert.Equal(t, uint32(1), eot.Get(FieldMsgLength))
	assert.Equal(t, uint32(127), eot.Get(FieldSrc0Nr))
}

func TestBytes(t *testing.T) {
	e := NewEncoder(8)
	e.MOV(UD8(1, 0), UD8(2, 0))
	e.NOP()

	raw := e.Bytes()
	require.Len(t, raw, 32)
	assert.Equal(t, e.Instruction(0)[0], binary.LittleEndian.Uint32(raw[0:4]))
	assert.Equal(t, e.Instruction(0)[3], binary.LittleEndian.Uint32(raw[12:16]))
	assert.Equal(t, uint32(OpcodeNOP), binary.LittleEndian.Uint32(raw[16:20]))
	assert.Len(t, e.Store(), 2)
}
