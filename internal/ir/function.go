package ir

import (
	"fmt"
	"slices"

	"gbe/internal/errors"
)

// ArgType is the kind of a function argument
type ArgType uint8

const (
	ArgValue ArgType = iota
	ArgGlobalPointer
	ArgLocalPointer
	ArgConstantPointer
	ArgStructure
	ArgImage
	ArgSampler
	ArgPipe
)

var argTypeNames = [...]string{"value", "global", "local", "constant", "struct", "image", "sampler", "pipe"}

func (a ArgType) String() string { return argTypeNames[a] }

// ArgTypeByName resolves an argument kind from its printed name
func ArgTypeByName(name string) (ArgType, bool) {
	for i, n := range argTypeNames {
		if n == name {
			return ArgType(i), true
		}
	}
	return 0, false
}

// ArgMode records how an argument reaches the kernel
type ArgMode uint8

const (
	ArgModeUnresolved ArgMode = iota
	ArgModeConstantPush
	ArgModeMemoryGather
	ArgModeStackSpill
)

var argModeNames = [...]string{"unresolved", "push", "gather", "spill"}

func (m ArgMode) String() string { return argModeNames[m] }

// ArgInfo carries source level metadata of an argument
type ArgInfo struct {
	TypeName        string
	AccessQualifier string
	TypeQualifier   string
}

// FunctionArgument describes one input of a function
type FunctionArgument struct {
	Type  ArgType
	Reg   Register
	Name  string
	Size  uint32
	Align uint32
	BTI   uint8
	Info  ArgInfo

	Mode        ArgMode
	StackOffset uint32
}

// PushLocation is a byte offset inside an argument delivered by the runtime
type PushLocation struct {
	ArgIndex uint32
	Offset   uint32
}

func (l PushLocation) String() string { return fmt.Sprintf("@{%d,%d}", l.ArgIndex, l.Offset) }

// LoopExit is one edge leaving a loop
type LoopExit struct {
	From LabelIndex
	To   LabelIndex
}

// Loop describes a natural loop by the labels of its blocks
type Loop struct {
	Preheader LabelIndex
	Parent    int
	Blocks    []LabelIndex
	Exits     []LoopExit
}

// BasicBlock is a maximal straight-line run of instructions. The first one
// is always its LABEL.
type BasicBlock struct {
	index BlockIndex
	insns []InsnIndex

	Predecessors []BlockIndex
	Successors   []BlockIndex
	Prev, Next   BlockIndex

	// LiveOut seeds registers forced live at the block exit
	LiveOut        *RegisterSet
	UndefPhiRegs   *RegisterSet
	DefinedPhiRegs *RegisterSet

	NeedIf            bool
	NeedEndif         bool
	IsLoopExit        bool
	BelongToStructure bool
}

func newBasicBlock(index BlockIndex) *BasicBlock {
	return &BasicBlock{
		index:          index,
		Prev:           NoBlock,
		Next:           NoBlock,
		LiveOut:        NewRegisterSet(),
		UndefPhiRegs:   NewRegisterSet(),
		DefinedPhiRegs: NewRegisterSet(),
	}
}

// Index returns the position of the block in its function
func (bb *BasicBlock) Index() BlockIndex { return bb.index }

// Instructions returns the arena indices of the block instructions in order
func (bb *BasicBlock) Instructions() []InsnIndex { return bb.insns }

// Len returns the number of instructions
func (bb *BasicBlock) Len() int { return len(bb.insns) }

func addEdge(set []BlockIndex, b BlockIndex) []BlockIndex {
	i, found := slices.BinarySearch(set, b)
	if found {
		return set
	}
	return slices.Insert(set, i, b)
}

// Function owns its register file, immediates, instructions and blocks.
// Blocks and instructions refer to each other by arena index.
type Function struct {
	Name    string
	Profile Profile
	Args    []*FunctionArgument
	Outputs []Register
	Loops   []*Loop

	// StackSize is the private stack needed by spilled arguments
	StackSize uint32

	unit        *Unit
	file        RegisterFile
	immediates  []Immediate
	insns       []*Instruction
	blocks      []*BasicBlock
	labels      []BlockIndex
	pushMap     map[Register]PushLocation
	locationMap map[PushLocation]Register
	specials    map[string]Register
}

func newFunction(name string, unit *Unit, profile Profile) *Function {
	fn := &Function{
		Name:        name,
		Profile:     profile,
		unit:        unit,
		pushMap:     make(map[Register]PushLocation),
		locationMap: make(map[PushLocation]Register),
		specials:    make(map[string]Register),
	}
	fn.initProfile()
	return fn
}

// Unit returns the owning unit
func (fn *Function) Unit() *Unit { return fn.unit }

// RegisterFile returns the register table
func (fn *Function) RegisterFile() *RegisterFile { return &fn.file }

// Register returns the data of r
func (fn *Function) Register(r Register) RegisterData { return fn.file.Get(r) }

// RegisterCount returns the number of registers
func (fn *Function) RegisterCount() int { return fn.file.Len() }

// NewRegister allocates a register
func (fn *Function) NewRegister(family Family, uniform bool) Register {
	return fn.file.Append(family, uniform)
}

// NewImmediate interns imm and returns its index
func (fn *Function) NewImmediate(imm Immediate) ImmediateIndex {
	for i, old := range fn.immediates {
		if old == imm {
			return ImmediateIndex(i)
		}
	}
	fn.immediates = append(fn.immediates, imm)
	return ImmediateIndex(len(fn.immediates) - 1)
}

// Immediate returns the immediate at index i
func (fn *Function) Immediate(i ImmediateIndex) Immediate {
	errors.Assert(int(i) < len(fn.immediates), errors.ErrorMalformedInstruction,
		"immediate %d outside a table of %d", i, len(fn.immediates))
	return fn.immediates[i]
}

// NewLabel allocates an unbound label
func (fn *Function) NewLabel() LabelIndex {
	errors.Assert(uint64(len(fn.labels)) < MaxLabels, errors.ErrorLabelLimit,
		"function %s exceeds %d labels", fn.Name, uint64(MaxLabels))
	fn.labels = append(fn.labels, NoBlock)
	return LabelIndex(len(fn.labels) - 1)
}

// LabelCount returns the size of the label table
func (fn *Function) LabelCount() int { return len(fn.labels) }

// BlockOf returns the block bound to l, or nil when l is unbound
func (fn *Function) BlockOf(l LabelIndex) *BasicBlock {
	errors.Assert(int(l) < len(fn.labels), errors.ErrorLabelOutOfBounds,
		"label %s outside a table of %d labels", l, len(fn.labels))
	if b := fn.labels[l]; b != NoBlock {
		return fn.blocks[b]
	}
	return nil
}

func (fn *Function) bindLabel(l LabelIndex, bb *BasicBlock) {
	errors.Assert(int(l) < len(fn.labels), errors.ErrorLabelOutOfBounds,
		"label %s outside a table of %d labels", l, len(fn.labels))
	errors.Assert(fn.labels[l] == NoBlock, errors.ErrorLabelRebound,
		"label %s already starts block %d", l, fn.labels[l])
	fn.labels[l] = bb.index
}

// Blocks returns the blocks in layout order
func (fn *Function) Blocks() []*BasicBlock { return fn.blocks }

// Block returns the block at index b
func (fn *Function) Block(b BlockIndex) *BasicBlock { return fn.blocks[b] }

// BlockCount returns the number of blocks
func (fn *Function) BlockCount() int { return len(fn.blocks) }

// Insn returns the instruction at arena index i
func (fn *Function) Insn(i InsnIndex) *Instruction { return fn.insns[i] }

// InsnCount returns the number of instructions ever allocated
func (fn *Function) InsnCount() int { return len(fn.insns) }

// BlockLabel returns the label of bb
func (fn *Function) BlockLabel(bb *BasicBlock) LabelIndex {
	first := fn.insns[bb.insns[0]]
	errors.Assert(first.Op == OpLabel, errors.ErrorMalformedInstruction,
		"block %d does not start with a label", bb.index)
	return first.Label
}

// LastInsn returns the final instruction of bb, or nil for an empty block
func (fn *Function) LastInsn(bb *BasicBlock) *Instruction {
	if len(bb.insns) == 0 {
		return nil
	}
	return fn.insns[bb.insns[len(bb.insns)-1]]
}

// ForEachInsn visits every instruction of bb in order
func (fn *Function) ForEachInsn(bb *BasicBlock, visit func(*Instruction)) {
	for _, i := range bb.insns {
		visit(fn.insns[i])
	}
}

func (fn *Function) newBlock() *BasicBlock {
	bb := newBasicBlock(BlockIndex(len(fn.blocks)))
	fn.blocks = append(fn.blocks, bb)
	return bb
}

func (fn *Function) newInstruction(insn Instruction, bb *BasicBlock) *Instruction {
	p := new(Instruction)
	*p = insn
	p.Dst = slices.Clone(insn.Dst)
	p.Src = slices.Clone(insn.Src)
	p.block = bb.index
	fn.insns = append(fn.insns, p)
	bb.insns = append(bb.insns, InsnIndex(len(fn.insns)-1))
	return p
}

// replaceInsn swaps the instruction at position pos of bb for insns
func (fn *Function) replaceInsn(bb *BasicBlock, pos int, insns ...Instruction) {
	var ids []InsnIndex
	for _, insn := range insns {
		p := new(Instruction)
		*p = insn
		p.block = bb.index
		fn.insns = append(fn.insns, p)
		ids = append(ids, InsnIndex(len(fn.insns)-1))
	}
	fn.insns[bb.insns[pos]].block = NoBlock
	bb.insns = slices.Replace(bb.insns, pos, pos+1, ids...)
}

// Arg returns the argument whose register is r
func (fn *Function) Arg(r Register) (*FunctionArgument, int) {
	for i, arg := range fn.Args {
		if arg.Reg == r {
			return arg, i
		}
	}
	return nil, -1
}

// IsOutput reports whether r is returned by the function
func (fn *Function) IsOutput(r Register) bool { return slices.Contains(fn.Outputs, r) }

// AddPushed records that r holds the runtime constant at loc
func (fn *Function) AddPushed(r Register, loc PushLocation) {
	errors.Assert(fn.file.Contains(r), errors.ErrorRegisterOutOfBounds,
		"pushed register %s outside a file of %d registers", r, fn.file.Len())
	_, pushed := fn.pushMap[r]
	errors.Assert(!pushed, errors.ErrorRegisterPushedTwice, "register %s already pushed", r)
	_, taken := fn.locationMap[loc]
	errors.Assert(!taken, errors.ErrorRegisterPushedTwice, "location %s already pushed", loc)
	fn.pushMap[r] = loc
	fn.locationMap[loc] = r
}

// PushLocation returns where r is loaded from, if it is pushed
func (fn *Function) PushLocation(r Register) (PushLocation, bool) {
	loc, ok := fn.pushMap[r]
	return loc, ok
}

// PushedRegister returns the register holding loc, if any
func (fn *Function) PushedRegister(loc PushLocation) (Register, bool) {
	r, ok := fn.locationMap[loc]
	return r, ok
}

// PushedRegisters lists pushed registers in increasing order
func (fn *Function) PushedRegisters() []Register {
	out := make([]Register, 0, len(fn.pushMap))
	for r := range fn.pushMap {
		out = append(out, r)
	}
	slices.Sort(out)
	return out
}

// LoopDepth returns the length of the parent chain starting at the
// innermost loop containing the block named l. Inner loops are recorded
// after their parents, so the last loop listing l is the innermost.
func (fn *Function) LoopDepth(l LabelIndex) int {
	inner := -1
	for i := len(fn.Loops) - 1; i >= 0; i-- {
		if slices.Contains(fn.Loops[i].Blocks, l) {
			inner = i
			break
		}
	}
	depth := 0
	for i := inner; i != -1; i = fn.Loops[i].Parent {
		depth++
	}
	return depth
}

// IsEntryBlock reports whether bb is the first block
func (fn *Function) IsEntryBlock(bb *BasicBlock) bool { return bb.index == 0 }
