package ir

import "fmt"

// Opcode of an IR instruction
type Opcode uint8

const (
	OpLabel Opcode = iota
	OpBra
	OpRet
	OpIf
	OpElse
	OpEndif
	OpWhile
	OpMov
	OpNot
	OpCvt
	OpLoadi
	OpAdd
	OpAddSat
	OpSub
	OpMul
	OpMulHi
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpAsr
	OpEq
	OpNe
	OpLt
	OpLe
	OpGt
	OpGe
	OpSel
	OpMad
	OpHAdd
	OpRHAdd
	OpI64HAdd
	OpI64RHAdd
	OpLoad
	OpStore
	OpBlockRead
	OpAtomic
	OpSimdID
	OpSimdShuffle
	OpReadARF
	OpSqr
	OpRsq
	OpSin
	OpCos
	OpLog
	OpExp
	OpNop
	opcodeCount
)

// Class groups opcodes sharing one operand layout
type Class uint8

const (
	ClassLabel Class = iota
	ClassBranch
	ClassUnary
	ClassConvert
	ClassLoadImm
	ClassBinary
	ClassCompare
	ClassSelect
	ClassTernary
	ClassLoad
	ClassStore
	ClassBlockRead
	ClassAtomic
	ClassSimdID
	ClassReadARF
	ClassNop
)

var classNames = [...]string{
	"label", "branch", "unary", "convert", "load immediate", "binary", "compare",
	"select", "ternary", "load", "store", "block read", "atomic", "simd id",
	"read arf", "nop",
}

func (c Class) String() string {
	if int(c) < len(classNames) {
		return classNames[c]
	}
	return fmt.Sprintf("class(%d)", uint8(c))
}

var opcodeInfo = [opcodeCount]struct {
	name  string
	class Class
}{
	OpLabel:       {"LABEL", ClassLabel},
	OpBra:         {"BRA", ClassBranch},
	OpRet:         {"RET", ClassBranch},
	OpIf:          {"IF", ClassBranch},
	OpElse:        {"ELSE", ClassBranch},
	OpEndif:       {"ENDIF", ClassBranch},
	OpWhile:       {"WHILE", ClassBranch},
	OpMov:         {"MOV", ClassUnary},
	OpNot:         {"NOT", ClassUnary},
	OpCvt:         {"CVT", ClassConvert},
	OpLoadi:       {"LOADI", ClassLoadImm},
	OpAdd:         {"ADD", ClassBinary},
	OpAddSat:      {"ADDSAT", ClassBinary},
	OpSub:         {"SUB", ClassBinary},
	OpMul:         {"MUL", ClassBinary},
	OpMulHi:       {"MUL_HI", ClassBinary},
	OpDiv:         {"DIV", ClassBinary},
	OpRem:         {"REM", ClassBinary},
	OpAnd:         {"AND", ClassBinary},
	OpOr:          {"OR", ClassBinary},
	OpXor:         {"XOR", ClassBinary},
	OpShl:         {"SHL", ClassBinary},
	OpShr:         {"SHR", ClassBinary},
	OpAsr:         {"ASR", ClassBinary},
	OpEq:          {"EQ", ClassCompare},
	OpNe:          {"NE", ClassCompare},
	OpLt:          {"LT", ClassCompare},
	OpLe:          {"LE", ClassCompare},
	OpGt:          {"GT", ClassCompare},
	OpGe:          {"GE", ClassCompare},
	OpSel:         {"SEL", ClassSelect},
	OpMad:         {"MAD", ClassTernary},
	OpHAdd:        {"HADD", ClassBinary},
	OpRHAdd:       {"RHADD", ClassBinary},
	OpI64HAdd:     {"I64HADD", ClassBinary},
	OpI64RHAdd:    {"I64RHADD", ClassBinary},
	OpLoad:        {"LOAD", ClassLoad},
	OpStore:       {"STORE", ClassStore},
	OpBlockRead:   {"BLOCK_READ", ClassBlockRead},
	OpAtomic:      {"ATOMIC", ClassAtomic},
	OpSimdID:      {"SIMD_ID", ClassSimdID},
	OpSimdShuffle: {"SIMD_SHUFFLE", ClassBinary},
	OpReadARF:     {"READ_ARF", ClassReadARF},
	OpSqr:         {"SQR", ClassUnary},
	OpRsq:         {"RSQ", ClassUnary},
	OpSin:         {"SIN", ClassUnary},
	OpCos:         {"COS", ClassUnary},
	OpLog:         {"LOG", ClassUnary},
	OpExp:         {"EXP", ClassUnary},
	OpNop:         {"NOP", ClassNop},
}

func (op Opcode) String() string {
	if op < opcodeCount {
		return opcodeInfo[op].name
	}
	return fmt.Sprintf("opcode(%d)", uint8(op))
}

// Class returns the operand layout class of op
func (op Opcode) Class() Class { return opcodeInfo[op].class }

// OpcodeByName resolves an opcode from its printed name
func OpcodeByName(name string) (Opcode, bool) {
	for i := Opcode(0); i < opcodeCount; i++ {
		if opcodeInfo[i].name == name {
			return i, true
		}
	}
	return 0, false
}

// Opcodes lists every opcode in numbering order
func Opcodes() []Opcode {
	out := make([]Opcode, opcodeCount)
	for i := range out {
		out[i] = Opcode(i)
	}
	return out
}

// IsBranch reports the branch class: BRA, RET, IF, ELSE, ENDIF, WHILE
func (op Opcode) IsBranch() bool { return op.Class() == ClassBranch }

// IsTargetBranch reports branches that create a CFG edge to their label
func (op Opcode) IsTargetBranch() bool { return op == OpBra || op == OpIf || op == OpWhile }

// Instruction is one IR operation. Predicated branches carry the predicate
// as Src[0]. Memory operations keep the address in Src[0]; STORE values
// follow it.
type Instruction struct {
	Op      Opcode
	Type    Type
	SrcType Type
	Dst     []Register
	Src     []Register

	Label            LabelIndex
	Predicated       bool
	InversePredicate bool

	Imm     ImmediateIndex
	Space   AddressSpace
	BTI     uint8
	Aligned bool
	Atomic  AtomicOp
	ARF     uint32

	block BlockIndex
}

// Block returns the block holding the instruction, or NoBlock
func (insn *Instruction) Block() BlockIndex { return insn.block }

// IsBranch reports whether the instruction belongs to the branch class
func (insn *Instruction) IsBranch() bool { return insn.Op.IsBranch() }

func regs(r ...Register) []Register { return r }

// NewLabel starts a block named l
func NewLabel(l LabelIndex) Instruction {
	return Instruction{Op: OpLabel, Label: l, block: NoBlock}
}

// NewBranch jumps unconditionally to l
func NewBranch(l LabelIndex) Instruction {
	return Instruction{Op: OpBra, Label: l, block: NoBlock}
}

// NewBranchIf jumps to l when pred holds, or when it does not if inverse
func NewBranchIf(pred Register, l LabelIndex, inverse bool) Instruction {
	return Instruction{Op: OpBra, Label: l, Src: regs(pred), Predicated: true, InversePredicate: inverse, block: NoBlock}
}

// NewReturn leaves the function
func NewReturn() Instruction { return Instruction{Op: OpRet, block: NoBlock} }

// NewIf opens a structured region. Lanes failing pred continue at l.
func NewIf(pred Register, l LabelIndex) Instruction {
	return Instruction{Op: OpIf, Label: l, Src: regs(pred), Predicated: true, block: NoBlock}
}

// NewElse switches to the else arm of a structured region
func NewElse(l LabelIndex) Instruction { return Instruction{Op: OpElse, Label: l, block: NoBlock} }

// NewEndif closes a structured region
func NewEndif(l LabelIndex) Instruction { return Instruction{Op: OpEndif, Label: l, block: NoBlock} }

// NewWhile jumps back to l while pred holds
func NewWhile(pred Register, l LabelIndex) Instruction {
	return Instruction{Op: OpWhile, Label: l, Src: regs(pred), Predicated: true, block: NoBlock}
}

// NewUnary builds MOV, NOT and the math opcodes
func NewUnary(op Opcode, t Type, dst, src Register) Instruction {
	return Instruction{Op: op, Type: t, Dst: regs(dst), Src: regs(src), block: NoBlock}
}

// NewMov copies src into dst
func NewMov(t Type, dst, src Register) Instruction { return NewUnary(OpMov, t, dst, src) }

// NewConvert converts src of type from into dst of type to
func NewConvert(to, from Type, dst, src Register) Instruction {
	return Instruction{Op: OpCvt, Type: to, SrcType: from, Dst: regs(dst), Src: regs(src), block: NoBlock}
}

// NewLoadImm loads an immediate into dst
func NewLoadImm(t Type, dst Register, imm ImmediateIndex) Instruction {
	return Instruction{Op: OpLoadi, Type: t, Dst: regs(dst), Imm: imm, block: NoBlock}
}

// NewBinary builds the two source arithmetic and logic opcodes
func NewBinary(op Opcode, t Type, dst, a, b Register) Instruction {
	return Instruction{Op: op, Type: t, Dst: regs(dst), Src: regs(a, b), block: NoBlock}
}

// NewCompare writes a bool dst comparing a and b of type t
func NewCompare(op Opcode, t Type, dst, a, b Register) Instruction {
	return Instruction{Op: op, Type: t, Dst: regs(dst), Src: regs(a, b), block: NoBlock}
}

// NewSelect picks a when cond holds, b otherwise
func NewSelect(t Type, dst, cond, a, b Register) Instruction {
	return Instruction{Op: OpSel, Type: t, Dst: regs(dst), Src: regs(cond, a, b), block: NoBlock}
}

// NewMad computes a*b+c
func NewMad(t Type, dst, a, b, c Register) Instruction {
	return Instruction{Op: OpMad, Type: t, Dst: regs(dst), Src: regs(a, b, c), block: NoBlock}
}

// NewLoad reads len(values) elements at addr
func NewLoad(t Type, space AddressSpace, aligned bool, bti uint8, addr Register, values []Register) Instruction {
	return Instruction{Op: OpLoad, Type: t, Space: space, Aligned: aligned, BTI: bti,
		Dst: append([]Register(nil), values...), Src: regs(addr), block: NoBlock}
}

// NewStore writes values at addr
func NewStore(t Type, space AddressSpace, aligned bool, bti uint8, addr Register, values []Register) Instruction {
	return Instruction{Op: OpStore, Type: t, Space: space, Aligned: aligned, BTI: bti,
		Src: append(regs(addr), values...), block: NoBlock}
}

// NewBlockRead reads one element per lane for each value, starting at addr
func NewBlockRead(t Type, bti uint8, addr Register, values []Register) Instruction {
	return Instruction{Op: OpBlockRead, Type: t, Space: SpaceGlobal, BTI: bti,
		Dst: append([]Register(nil), values...), Src: regs(addr), block: NoBlock}
}

// NewAtomic applies op at addr and returns the old value in dst
func NewAtomic(op AtomicOp, t Type, space AddressSpace, bti uint8, dst, addr Register, values ...Register) Instruction {
	return Instruction{Op: OpAtomic, Atomic: op, Type: t, Space: space, BTI: bti,
		Dst: regs(dst), Src: append(regs(addr), values...), block: NoBlock}
}

// NewSimdID writes the lane index into dst
func NewSimdID(dst Register) Instruction {
	return Instruction{Op: OpSimdID, Type: TypeU32, Dst: regs(dst), block: NoBlock}
}

// NewReadARF copies architecture register arf into dst
func NewReadARF(t Type, dst Register, arf uint32) Instruction {
	return Instruction{Op: OpReadARF, Type: t, Dst: regs(dst), ARF: arf, block: NoBlock}
}

// NewNop does nothing
func NewNop() Instruction { return Instruction{Op: OpNop, block: NoBlock} }

func (insn *Instruction) malformed(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %s", insn.Op, fmt.Sprintf(format, args...))
}

func (insn *Instruction) operandCount(dst, src int) error {
	if len(insn.Dst) != dst || len(insn.Src) != src {
		return insn.malformed("expected %d destinations and %d sources, got %d and %d",
			dst, src, len(insn.Dst), len(insn.Src))
	}
	return nil
}

func (insn *Instruction) checkFamily(fn *Function, r Register, want Family) error {
	if got := fn.file.Get(r).Family; got != want {
		return insn.malformed("register %s is %s, expected %s", r, got, want)
	}
	return nil
}

// WellFormed checks operand counts, register bounds and families of insn
// against fn. It returns nil for a valid instruction.
func (insn *Instruction) WellFormed(fn *Function) error {
	if insn.Op >= opcodeCount {
		return insn.malformed("unknown opcode")
	}
	for _, r := range append(append([]Register(nil), insn.Dst...), insn.Src...) {
		if !fn.file.Contains(r) {
			return insn.malformed("register %s outside a file of %d registers", r, fn.file.Len())
		}
	}
	family := insn.Type.Family()
	switch insn.Op.Class() {
	case ClassLabel:
		if err := insn.operandCount(0, 0); err != nil {
			return err
		}
		if int(insn.Label) >= fn.LabelCount() {
			return insn.malformed("label %s outside a table of %d labels", insn.Label, fn.LabelCount())
		}
	case ClassBranch:
		if insn.Op == OpRet || !insn.Predicated {
			if err := insn.operandCount(0, 0); err != nil {
				return err
			}
		} else {
			if err := insn.operandCount(0, 1); err != nil {
				return err
			}
			if err := insn.checkFamily(fn, insn.Src[0], FamilyBool); err != nil {
				return err
			}
		}
		if (insn.Op == OpIf || insn.Op == OpWhile) && !insn.Predicated {
			return insn.malformed("structured branch without a predicate")
		}
		if insn.Op != OpRet && int(insn.Label) >= fn.LabelCount() {
			return insn.malformed("label %s outside a table of %d labels", insn.Label, fn.LabelCount())
		}
	case ClassUnary, ClassConvert:
		if err := insn.operandCount(1, 1); err != nil {
			return err
		}
		if err := insn.checkFamily(fn, insn.Dst[0], family); err != nil {
			return err
		}
		srcFamily := family
		if insn.Op == OpCvt {
			srcFamily = insn.SrcType.Family()
		}
		return insn.checkFamily(fn, insn.Src[0], srcFamily)
	case ClassLoadImm:
		if err := insn.operandCount(1, 0); err != nil {
			return err
		}
		if int(insn.Imm) >= len(fn.immediates) {
			return insn.malformed("immediate %d outside a table of %d", insn.Imm, len(fn.immediates))
		}
		if imm := fn.immediates[insn.Imm]; imm.Type != insn.Type {
			return insn.malformed("immediate of type %s loaded as %s", imm.Type, insn.Type)
		}
		return insn.checkFamily(fn, insn.Dst[0], family)
	case ClassBinary:
		if err := insn.operandCount(1, 2); err != nil {
			return err
		}
		srcs := insn.Src
		switch insn.Op {
		case OpSimdShuffle, OpShl, OpShr, OpAsr:
			// the lane index and shift amount may use any integer family
			srcs = srcs[:1]
		}
		for _, r := range append(regs(insn.Dst[0]), srcs...) {
			if err := insn.checkFamily(fn, r, family); err != nil {
				return err
			}
		}
	case ClassCompare:
		if err := insn.operandCount(1, 2); err != nil {
			return err
		}
		if err := insn.checkFamily(fn, insn.Dst[0], FamilyBool); err != nil {
			return err
		}
		for _, r := range insn.Src {
			if err := insn.checkFamily(fn, r, family); err != nil {
				return err
			}
		}
	case ClassSelect:
		if err := insn.operandCount(1, 3); err != nil {
			return err
		}
		if err := insn.checkFamily(fn, insn.Src[0], FamilyBool); err != nil {
			return err
		}
		for _, r := range regs(insn.Dst[0], insn.Src[1], insn.Src[2]) {
			if err := insn.checkFamily(fn, r, family); err != nil {
				return err
			}
		}
	case ClassTernary:
		if err := insn.operandCount(1, 3); err != nil {
			return err
		}
		for _, r := range append(regs(insn.Dst[0]), insn.Src...) {
			if err := insn.checkFamily(fn, r, family); err != nil {
				return err
			}
		}
	case ClassLoad, ClassBlockRead:
		if len(insn.Src) != 1 || len(insn.Dst) == 0 {
			return insn.malformed("expected one address and at least one value")
		}
		if err := insn.checkAddress(fn); err != nil {
			return err
		}
		for _, r := range insn.Dst {
			if err := insn.checkFamily(fn, r, family); err != nil {
				return err
			}
		}
	case ClassStore:
		if len(insn.Src) < 2 || len(insn.Dst) != 0 {
			return insn.malformed("expected one address and at least one value")
		}
		if err := insn.checkAddress(fn); err != nil {
			return err
		}
		for _, r := range insn.Src[1:] {
			if err := insn.checkFamily(fn, r, family); err != nil {
				return err
			}
		}
	case ClassAtomic:
		if err := insn.operandCount(1, 1+insn.Atomic.Operands()); err != nil {
			return err
		}
		if err := insn.checkAddress(fn); err != nil {
			return err
		}
		for _, r := range append(regs(insn.Dst[0]), insn.Src[1:]...) {
			if err := insn.checkFamily(fn, r, family); err != nil {
				return err
			}
		}
	case ClassSimdID, ClassReadARF:
		if err := insn.operandCount(1, 0); err != nil {
			return err
		}
		return insn.checkFamily(fn, insn.Dst[0], family)
	case ClassNop:
		return insn.operandCount(0, 0)
	}
	return nil
}

func (insn *Instruction) checkAddress(fn *Function) error {
	want := FamilyDWord
	if fn.unit != nil && fn.unit.PointerSize == Pointer64 && insn.Space != SpaceLocal {
		want = FamilyQWord
	}
	return insn.checkFamily(fn, insn.Src[0], want)
}
