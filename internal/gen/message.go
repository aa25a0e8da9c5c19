package gen

import (
	"gbe/internal/errors"
)

// setMessageDescriptor fills the generic SEND descriptor
func (e *Encoder) setMessageDescriptor(insn *Instruction, sfid, msgLength, responseLength uint32, header, eot bool) {
	e.setSrc1(insn, ImmUD(0))
	insn.SetBool(FieldHeaderPresent, header)
	insn.Set(FieldResponseLength, responseLength)
	insn.Set(FieldMsgLength, msgLength)
	insn.SetBool(FieldEndOfThread, eot)
	insn.Set(FieldCondModOrSFID, sfid)
}

func (e *Encoder) messageWidth() uint32 {
	switch e.Curr.ExecWidth {
	case 8, 16:
		return e.Curr.ExecWidth
	}
	errors.Fail(errors.ErrorExecutionWidth, "messages need an 8 or 16 wide state, not %d", e.Curr.ExecWidth)
	return 0
}

func checkElements(elemNum uint32) {
	errors.Assert(elemNum >= 1 && elemNum <= 4, errors.ErrorElementCount,
		"untyped message with %d elements, want 1 to 4", elemNum)
}

func (e *Encoder) setUntypedRW(insn *Instruction, bti, elemNum, msgType, msgLength, responseLength uint32) {
	e.setMessageDescriptor(insn, SFIDDataCache, msgLength, responseLength, false, false)
	insn.Set(FieldMsgType, msgType)
	insn.Set(FieldMsgBTI, bti)
	insn.Set(FieldMsgRGBA, untypedRWMask[elemNum])
	if e.Curr.ExecWidth == 8 {
		insn.Set(FieldUntypedSIMDMode, UntypedSIMD8)
	} else {
		insn.Set(FieldUntypedSIMDMode, UntypedSIMD16)
	}
}

// UntypedRead reads elemNum dwords per lane from the surface bti at the
// addresses held in src
func (e *Encoder) UntypedRead(dst, src Register, bti, elemNum uint32) {
	checkElements(elemNum)
	width := e.messageWidth()
	msgLength, responseLength := uint32(1), elemNum
	if width == 16 {
		msgLength, responseLength = 2, 2*elemNum
	}
	insn := e.next(OpcodeSEND)
	e.setHeader(insn)
	e.setDst(insn, UW16(dst.Nr, 0))
	e.setSrc0(insn, UD8(src.Nr, 0))
	e.setUntypedRW(insn, bti, elemNum, MsgUntypedRead, msgLength, responseLength)
}

// UntypedWrite writes elemNum dwords per lane. msg holds the addresses
// followed by the values.
func (e *Encoder) UntypedWrite(msg Register, bti, elemNum uint32) {
	checkElements(elemNum)
	width := e.messageWidth()
	insn := e.next(OpcodeSEND)
	e.setHeader(insn)
	msgLength := 1 + elemNum
	if width == 8 {
		e.setDst(insn, Retype(Null(), TypeUD))
	} else {
		e.setDst(insn, Retype(Null(), TypeUW))
		msgLength *= 2
	}
	e.setSrc0(insn, UD8(msg.Nr, 0))
	e.setUntypedRW(insn, bti, elemNum, MsgUntypedWrite, msgLength, 0)
}

func (e *Encoder) setByteScatterGather(insn *Instruction, bti, elemSize, msgType, msgLength, responseLength uint32) {
	e.setMessageDescriptor(insn, SFIDDataCache, msgLength, responseLength, false, false)
	insn.Set(FieldMsgType, msgType)
	insn.Set(FieldMsgBTI, bti)
	insn.Set(FieldByteDataSize, elemSize)
	if e.Curr.ExecWidth == 8 {
		insn.Set(FieldByteSIMDMode, ByteSIMD8)
	} else {
		insn.Set(FieldByteSIMDMode, ByteSIMD16)
	}
}

// ByteGather reads one 1, 2 or 4 byte element per lane, elemSize being
// one of the ByteSize constants
func (e *Encoder) ByteGather(dst, src Register, bti, elemSize uint32) {
	width := e.messageWidth()
	length := width / 8
	insn := e.next(OpcodeSEND)
	e.setHeader(insn)
	e.setDst(insn, UW16(dst.Nr, 0))
	e.setSrc0(insn, UD8(src.Nr, 0))
	e.setByteScatterGather(insn, bti, elemSize, MsgByteGather, length, length)
}

// ByteScatter writes one element per lane from the address and value
// payload in msg
func (e *Encoder) ByteScatter(msg Register, bti, elemSize uint32) {
	width := e.messageWidth()
	insn := e.next(OpcodeSEND)
	e.setHeader(insn)
	if width == 8 {
		e.setDst(insn, Retype(Null(), TypeUD))
	} else {
		e.setDst(insn, Retype(Null(), TypeUW))
	}
	e.setSrc0(insn, UD8(msg.Nr, 0))
	e.setByteScatterGather(insn, bti, elemSize, MsgByteScatter, 2*width/8, 0)
}

// Sample issues a sampler message. msgLen counts payload registers per 8
// lanes. Nothing is emitted for an empty writemask.
func (e *Encoder) Sample(dst, msg Register, msgLen uint32, header bool, bti, sampler, writemask uint32, ld bool) {
	if writemask == 0 {
		return
	}
	width := e.messageWidth()
	msgType := uint32(SamplerMsgSample)
	if ld {
		msgType = SamplerMsgLD
	}
	msgLength := msgLen * width / 8
	if header {
		msgLength++
	}
	insn := e.next(OpcodeSEND)
	e.setHeader(insn)
	e.setDst(insn, dst)
	e.setSrc0(insn, msg)
	e.setMessageDescriptor(insn, SFIDSampler, msgLength, 4*width/8, header, false)
	insn.Set(FieldMsgBTI, bti)
	insn.Set(FieldSamplerIndex, sampler)
	insn.Set(FieldSamplerMsgType, msgType)
	if width == 16 {
		insn.Set(FieldSamplerSIMDMode, SamplerSIMD16)
	} else {
		insn.Set(FieldSamplerSIMDMode, SamplerSIMD8)
	}
}

// EOT ends the thread, sending register msg to the thread spawner
func (e *Encoder) EOT(msg uint32) {
	insn := e.next(OpcodeSEND)
	e.setDst(insn, Retype(Null(), TypeUD))
	e.setSrc0(insn, UD8(msg, 0))
	e.setMessageDescriptor(insn, SFIDSpawner, 1, 0, false, true)
	insn.Set(FieldExecutionSize, Width8)
	insn.Set(FieldSpawnerResource, 1)
}
