// Package gen encodes native Gen7 instructions.
package gen

// Opcodes
const (
	OpcodeMOV   = 1
	OpcodeSEL   = 2
	OpcodeNOT   = 4
	OpcodeAND   = 5
	OpcodeOR    = 6
	OpcodeXOR   = 7
	OpcodeSHR   = 8
	OpcodeSHL   = 9
	OpcodeASR   = 12
	OpcodeCMP   = 16
	OpcodeJMPI  = 32
	OpcodeIF    = 34
	OpcodeELSE  = 36
	OpcodeENDIF = 37
	OpcodeWHILE = 39
	OpcodeSEND  = 49
	OpcodeMATH  = 56
	OpcodeADD   = 64
	OpcodeMUL   = 65
	OpcodeFRC   = 67
	OpcodeRNDU  = 68
	OpcodeRNDD  = 69
	OpcodeRNDE  = 70
	OpcodeRNDZ  = 71
	OpcodeMAC   = 72
	OpcodeMACH  = 73
	OpcodeLZD   = 74
	OpcodeMAD   = 91
	OpcodeNOP   = 126
)

// Register types
const (
	TypeUD = 0
	TypeD  = 1
	TypeUW = 2
	TypeW  = 3
	TypeUB = 4
	TypeB  = 5
	TypeDF = 6
	TypeF  = 7

	// immediate only aliases
	TypeUV = 4
	TypeVF = 5
	TypeV  = 6
)

// Register files
const (
	FileARF = 0
	FileGRF = 1
	FileMRF = 2
	FileIMM = 3
)

// Architecture register numbers
const (
	ARFNull = 0x00
	ARFAcc  = 0x20
	ARFFlag = 0x30
	ARFIP   = 0xA0
)

// Encoded execution and region widths
const (
	Width1  = 0
	Width2  = 1
	Width4  = 2
	Width8  = 3
	Width16 = 4
)

// Encoded horizontal strides
const (
	HorizontalStride0 = 0
	HorizontalStride1 = 1
	HorizontalStride2 = 2
	HorizontalStride4 = 3
)

// Encoded vertical strides
const (
	VerticalStride0  = 0
	VerticalStride1  = 1
	VerticalStride2  = 2
	VerticalStride4  = 3
	VerticalStride8  = 4
	VerticalStride16 = 5
	VerticalStride32 = 6
)

// Header controls
const (
	QuarterQ1 = 0
	QuarterQ2 = 1

	MaskEnable  = 0
	MaskDisable = 1

	AlignOne = 0

	AddressDirect = 0

	ThreadNormal = 0
	ThreadSwitch = 2

	PredicateNone   = 0
	PredicateNormal = 1
)

// Conditional modifiers
const (
	ConditionNone = 0
	ConditionEQ   = 1
	ConditionNE   = 2
	ConditionG    = 3
	ConditionGE   = 4
	ConditionL    = 5
	ConditionLE   = 6
)

// Math functions, encoded in the condition modifier field
const (
	MathInv          = 1
	MathLog          = 2
	MathExp          = 3
	MathSqrt         = 4
	MathRsq          = 5
	MathSin          = 6
	MathCos          = 7
	MathFDiv         = 9
	MathPow          = 10
	MathIntDivBoth   = 11
	MathIntQuotient  = 12
	MathIntRemainder = 13
)

// Shared function ids of SEND
const (
	SFIDSampler   = 2
	SFIDSpawner   = 7
	SFIDDataCache = 10
)

// Data cache message types
const (
	MsgByteGather   = 4
	MsgUntypedRead  = 5
	MsgByteScatter  = 12
	MsgUntypedWrite = 13
)

// Message SIMD modes
const (
	UntypedSIMD16 = 1
	UntypedSIMD8  = 2

	ByteSIMD8  = 0
	ByteSIMD16 = 1

	SamplerSIMD8  = 1
	SamplerSIMD16 = 2
)

// Sampler message types
const (
	SamplerMsgSample = 0
	SamplerMsgLD     = 7
)

// Byte scattered element sizes
const (
	ByteSize1 = 0
	ByteSize2 = 1
	ByteSize4 = 2
)

// Untyped channel enables. A set bit disables the channel.
const (
	ChannelR = 1
	ChannelG = 2
	ChannelB = 4
	ChannelA = 8
)

// untypedRWMask selects the enabled channels for 1 to 4 elements
var untypedRWMask = [...]uint32{
	ChannelA | ChannelB | ChannelG | ChannelR,
	ChannelA | ChannelB | ChannelG,
	ChannelA | ChannelB,
	ChannelA,
	0,
}
