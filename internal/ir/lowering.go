package ir

import (
	"slices"

	"gbe/internal/errors"
)

// LoweringPass is one structural transformation run when a function is
// finished
type LoweringPass interface {
	Name() string
	Apply(fn *Function) bool // Returns true if changes were made
	Description() string
}

// LoweringPipeline runs passes in order
type LoweringPipeline struct {
	passes []LoweringPass
}

// NewLoweringPipeline creates the pipeline every function goes through
func NewLoweringPipeline() *LoweringPipeline {
	pipeline := &LoweringPipeline{}

	// the order is load bearing: argument lowering needs dense labels and
	// the CFG
	pipeline.AddPass(&ReturnLowering{})
	pipeline.AddPass(&EmptyBlockCheck{})
	pipeline.AddPass(&LabelSorting{})
	pipeline.AddPass(&CFGConstruction{})
	pipeline.AddPass(&ArgumentLowering{})

	return pipeline
}

// AddPass appends a pass
func (p *LoweringPipeline) AddPass(pass LoweringPass) {
	p.passes = append(p.passes, pass)
}

// Passes returns the passes in execution order
func (p *LoweringPipeline) Passes() []LoweringPass { return p.passes }

// Run applies every pass to fn
func (p *LoweringPipeline) Run(fn *Function) {
	for _, pass := range p.passes {
		changed := pass.Apply(fn)
		log.Debugf("%s on %s: changed=%t", pass.Name(), fn.Name, changed)
	}
}

// ReturnLowering gives the function a single return block
type ReturnLowering struct{}

func (rl *ReturnLowering) Name() string { return "Return Lowering" }

func (rl *ReturnLowering) Description() string {
	return "Appends one terminal return block and turns every other return into a jump to it"
}

func (rl *ReturnLowering) Apply(fn *Function) bool {
	label := fn.NewLabel()
	var rets []*Instruction
	for _, insn := range fn.insns {
		if insn.Op == OpRet && insn.block != NoBlock {
			rets = append(rets, insn)
		}
	}
	for _, ret := range rets {
		*ret = Instruction{Op: OpBra, Label: label, block: ret.block}
	}

	bb := fn.newBlock()
	fn.newInstruction(NewLabel(label), bb)
	fn.bindLabel(label, bb)
	fn.newInstruction(NewReturn(), bb)
	for _, r := range fn.Outputs {
		bb.LiveOut.Add(r)
	}
	return true
}

// EmptyBlockCheck rejects blocks holding only their label
type EmptyBlockCheck struct{}

func (ec *EmptyBlockCheck) Name() string { return "Empty Block Check" }

func (ec *EmptyBlockCheck) Description() string {
	return "Fails on blocks made of a lone LABEL"
}

func (ec *EmptyBlockCheck) Apply(fn *Function) bool {
	fn.CheckEmptyLabels()
	return false
}

// LabelSorting renumbers labels densely in layout order
type LabelSorting struct{}

func (ls *LabelSorting) Name() string { return "Label Sorting" }

func (ls *LabelSorting) Description() string {
	return "Renumbers labels in block order and patches branches and loops"
}

func (ls *LabelSorting) Apply(fn *Function) bool {
	fn.SortLabels()
	return true
}

// CFGConstruction links blocks to their predecessors and successors
type CFGConstruction struct{}

func (cc *CFGConstruction) Name() string { return "CFG Construction" }

func (cc *CFGConstruction) Description() string {
	return "Computes predecessor and successor sets from fall-through and branches"
}

func (cc *CFGConstruction) Apply(fn *Function) bool {
	fn.ComputeCFG()
	return true
}

// ArgumentLowering decides how each argument reaches the kernel. Structure
// arguments only read at constant offsets become pushed registers, those
// read at variable offsets are gathered from memory, and those written or
// escaping are spilled to the private stack.
type ArgumentLowering struct{}

func (al *ArgumentLowering) Name() string { return "Argument Lowering" }

func (al *ArgumentLowering) Description() string {
	return "Materializes arguments as pushed constants, memory gathers or stack spills"
}

func (al *ArgumentLowering) Apply(fn *Function) bool {
	changed := false
	for i, arg := range fn.Args {
		if arg.Type != ArgStructure {
			arg.Mode = ArgModeConstantPush
			continue
		}
		if al.lowerStructure(fn, uint32(i), arg) {
			changed = true
		}
		log.Debugf("argument %s of %s lowered as %s", arg.Name, fn.Name, arg.Mode)
	}
	return changed
}

type derivedAddress struct {
	offset int64
	known  bool
}

type argumentUses struct {
	direct   []*Instruction
	indirect bool
	written  bool
}

func (al *ArgumentLowering) lowerStructure(fn *Function, index uint32, arg *FunctionArgument) bool {
	derived := al.derive(fn, arg.Reg)
	uses := al.classify(fn, arg, derived)

	switch {
	case uses.written:
		arg.Mode = ArgModeStackSpill
		align := max(arg.Align, 4)
		arg.StackOffset = (fn.StackSize + align - 1) &^ (align - 1)
		fn.StackSize = arg.StackOffset + arg.Size
		return false
	case uses.indirect:
		arg.Mode = ArgModeMemoryGather
		return false
	}

	arg.Mode = ArgModeConstantPush
	for _, load := range uses.direct {
		base := derived[load.Src[0]].offset
		var movs []Instruction
		for k, dst := range load.Dst {
			loc := PushLocation{ArgIndex: index, Offset: uint32(base) + uint32(k)*load.Type.Size()}
			reg, ok := fn.PushedRegister(loc)
			if !ok {
				reg = fn.NewRegister(load.Type.Family(), true)
				fn.AddPushed(reg, loc)
			}
			movs = append(movs, NewMov(load.Type, dst, reg))
		}
		bb := fn.blocks[load.block]
		pos := slices.IndexFunc(bb.insns, func(i InsnIndex) bool { return fn.insns[i] == load })
		errors.Assert(pos >= 0, errors.ErrorMalformedInstruction, "load of %s lost its block", arg.Name)
		fn.replaceInsn(bb, pos, movs...)
	}
	return len(uses.direct) > 0
}

// derive finds registers computed from base by copies and constant offsets
func (al *ArgumentLowering) derive(fn *Function, base Register) map[Register]derivedAddress {
	defs := make(map[Register]int)
	constants := make(map[Register]int64)
	al.forEachLive(fn, func(insn *Instruction) {
		for _, d := range insn.Dst {
			defs[d]++
		}
	})
	al.forEachLive(fn, func(insn *Instruction) {
		if insn.Op == OpLoadi && defs[insn.Dst[0]] == 1 && !insn.Type.IsFloat() {
			constants[insn.Dst[0]] = int64(fn.immediates[insn.Imm].Bits)
		}
	})

	derived := map[Register]derivedAddress{base: {known: defs[base] == 0}}
	set := func(r Register, d derivedAddress) bool {
		if defs[r] > 1 {
			d.known = false
		}
		old, ok := derived[r]
		if ok && (!old.known || (old.known == d.known && old.offset == d.offset)) {
			return false
		}
		if ok {
			d.known = false
		}
		derived[r] = d
		return true
	}

	for changed := true; changed; {
		changed = false
		al.forEachLive(fn, func(insn *Instruction) {
			if len(insn.Dst) != 1 {
				return
			}
			switch insn.Op {
			case OpMov, OpCvt:
				if d, ok := derived[insn.Src[0]]; ok {
					changed = set(insn.Dst[0], d) || changed
				}
			case OpAdd, OpSub:
				a, aok := derived[insn.Src[0]]
				b, bok := derived[insn.Src[1]]
				switch {
				case aok && !bok:
					c, constant := constants[insn.Src[1]]
					if insn.Op == OpSub {
						c = -c
					}
					changed = set(insn.Dst[0], derivedAddress{offset: a.offset + c, known: a.known && constant}) || changed
				case bok && !aok && insn.Op == OpAdd:
					c, constant := constants[insn.Src[0]]
					changed = set(insn.Dst[0], derivedAddress{offset: b.offset + c, known: b.known && constant}) || changed
				case aok || bok:
					changed = set(insn.Dst[0], derivedAddress{}) || changed
				}
			}
		})
	}
	return derived
}

func (al *ArgumentLowering) classify(fn *Function, arg *FunctionArgument, derived map[Register]derivedAddress) argumentUses {
	var uses argumentUses
	al.forEachLive(fn, func(insn *Instruction) {
		if slices.Contains(insn.Dst, arg.Reg) {
			uses.written = true
		}
		for k, src := range insn.Src {
			d, ok := derived[src]
			if !ok {
				continue
			}
			switch {
			case k == 0 && insn.Op == OpLoad:
				end := d.offset + int64(len(insn.Dst))*int64(insn.Type.Size())
				if d.known && d.offset >= 0 && end <= int64(arg.Size) {
					uses.direct = append(uses.direct, insn)
				} else {
					uses.indirect = true
				}
			case k == 0 && insn.Op == OpBlockRead:
				uses.indirect = true
			case k == 0 && insn.WritesMemory():
				uses.written = true
			case insn.Op == OpMov || insn.Op == OpCvt || insn.Op == OpAdd || insn.Op == OpSub:
			default:
				uses.written = true
			}
		}
	})
	return uses
}

func (al *ArgumentLowering) forEachLive(fn *Function, visit func(*Instruction)) {
	for _, bb := range fn.blocks {
		fn.ForEachInsn(bb, visit)
	}
}
