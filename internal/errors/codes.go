package errors

// Error codes for the gbe backend
// These codes identify a failure class across the builder, the encoder,
// the serializers and the textual IR reader.
//
// Error code ranges:
// E0001-E0099: Textual IR reader errors
// E1000-E1999: IR construction and lowering (internal compiler errors)
// E2000-E2999: Instruction encoder legality (internal compiler errors)
// E3000-E3999: Serialization integrity
// W0001-W0099: Warning codes

const (
	// Reader errors (E0001-E0099)

	// E0001: Syntax error in a textual IR file
	ErrorSyntax = "E0001"

	// E0002: Unknown opcode or modifier
	ErrorUnknownOpcode = "E0002"

	// E0003: Register used before its decl_reg
	ErrorUndeclaredRegister = "E0003"

	// E0004: Operand count or kind does not fit the opcode
	ErrorInvalidOperands = "E0004"

	// E0005: Unknown type, family or argument kind name
	ErrorUnknownType = "E0005"

	// E0006: A register number declared twice
	ErrorDuplicateRegister = "E0006"

	// E0007: Function rejected by the builder
	ErrorInvalidFunction = "E0007"

	// IR construction errors (E1000-E1999)

	// E1001: Builder used without an open function
	ErrorNoFunction = "E1001"

	// E1002: Register index outside the register file
	ErrorRegisterOutOfBounds = "E1002"

	// E1003: Label bound to two blocks
	ErrorLabelRebound = "E1003"

	// E1004: Register pushed twice
	ErrorRegisterPushedTwice = "E1004"

	// E1005: Label referenced or allocated but never defined
	ErrorUndefinedLabel = "E1005"

	// E1006: Instruction is not well formed
	ErrorMalformedInstruction = "E1006"

	// E1007: Block holding nothing but its label
	ErrorEmptyBlock = "E1007"

	// E1008: Too many labels in one function
	ErrorLabelLimit = "E1008"

	// E1009: Function name already registered in the unit
	ErrorDuplicateFunction = "E1009"

	// E1010: Branch shape the CFG builder cannot represent
	ErrorInvalidBranch = "E1010"

	// E1011: Label index outside the label table
	ErrorLabelOutOfBounds = "E1011"

	// E1012: Constant name already present in the constant set
	ErrorDuplicateConstant = "E1012"

	// E1013: Loop parent is not an earlier loop of the function
	ErrorLoopParent = "E1013"

	// Encoder errors (E2000-E2999)

	// E2001: Illegal operand type combination
	ErrorIllegalTypes = "E2001"

	// E2002: Accumulator used where the hardware forbids it
	ErrorAccumulatorOperand = "E2002"

	// E2003: GRF register number out of range
	ErrorRegisterRange = "E2003"

	// E2004: Unsupported execution width
	ErrorExecutionWidth = "E2004"

	// E2005: Patch target is not a jump
	ErrorPatchTarget = "E2005"

	// E2006: Message element count out of range
	ErrorElementCount = "E2006"

	// Serialization errors (E3000-E3999)

	// E3001: Constant blob framing or length mismatch
	ErrorCorruptBlob = "E3001"

	// Warning codes

	// W0001: Register declared but never referenced
	WarningUnusedRegister = "W0001"
)
