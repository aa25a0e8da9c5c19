package ir

import (
	"github.com/tliron/commonlog"

	"gbe/internal/errors"
)

var log = commonlog.GetLogger("gbe.ir")

type labelState uint8

const (
	labelDefined labelState = 1 << iota
	labelPointed
)

type contextFrame struct {
	fn         *Function
	bb         *BasicBlock
	usedLabels []labelState
}

// Context builds functions of a unit instruction by instruction. A LABEL
// closes the open block and starts a new one, a branch closes the open
// block, and any other instruction appended with no open block first gets
// a fresh label. Nested StartFunction calls save and restore the state.
type Context struct {
	unit       *Unit
	fn         *Function
	bb         *BasicBlock
	usedLabels []labelState
	stack      []contextFrame
	pipeline   *LoweringPipeline
}

// NewContext creates a builder appending to unit
func NewContext(unit *Unit) *Context {
	return &Context{unit: unit, pipeline: NewLoweringPipeline()}
}

// Unit returns the unit being built
func (c *Context) Unit() *Unit { return c.unit }

// Function returns the function under construction, or nil
func (c *Context) Function() *Function { return c.fn }

func (c *Context) requireFunction() *Function {
	errors.Assert(c.fn != nil, errors.ErrorNoFunction, "no function currently defined")
	return c.fn
}

// StartFunction creates the named function and makes it current
func (c *Context) StartFunction(name string, profile Profile) *Function {
	fn, ok := c.unit.NewFunction(name, profile)
	errors.Assert(ok, errors.ErrorDuplicateFunction, "function %s already exists", name)
	c.stack = append(c.stack, contextFrame{fn: c.fn, bb: c.bb, usedLabels: c.usedLabels})
	c.fn = fn
	c.bb = nil
	c.usedLabels = nil
	return fn
}

// EndFunction validates and lowers the current function, then restores the
// enclosing one.
func (c *Context) EndFunction() *Function {
	fn := c.requireFunction()
	if len(fn.blocks) == 0 {
		c.Append(NewReturn())
	}
	c.EndBlock()
	for l, state := range c.usedLabels {
		if state&labelDefined != 0 {
			continue
		}
		if state&labelPointed != 0 {
			errors.Fail(errors.ErrorUndefinedLabel, "label $%d of %s is branched to but never defined", l, fn.Name)
		}
		errors.Fail(errors.ErrorUndefinedLabel, "label $%d of %s is never defined", l, fn.Name)
	}
	c.pipeline.Run(fn)
	log.Debugf("finished function %s: %d blocks, %d registers", fn.Name, len(fn.blocks), fn.file.Len())

	top := c.stack[len(c.stack)-1]
	c.stack = c.stack[:len(c.stack)-1]
	c.fn, c.bb, c.usedLabels = top.fn, top.bb, top.usedLabels
	return fn
}

// Reg allocates a register in the current function
func (c *Context) Reg(family Family, uniform bool) Register {
	return c.requireFunction().NewRegister(family, uniform)
}

// Label allocates a label in the current function
func (c *Context) Label() LabelIndex {
	l := c.requireFunction().NewLabel()
	c.usedLabels = append(c.usedLabels, 0)
	return l
}

// Tuple records a register group in the current function
func (c *Context) Tuple(regs ...Register) Tuple {
	return c.requireFunction().file.AppendTuple(regs...)
}

// NewImmediate interns an immediate in the current function
func (c *Context) NewImmediate(imm Immediate) ImmediateIndex {
	return c.requireFunction().NewImmediate(imm)
}

// Input declares an argument of the current function
func (c *Context) Input(arg FunctionArgument) *FunctionArgument {
	fn := c.requireFunction()
	errors.Assert(fn.file.Contains(arg.Reg), errors.ErrorRegisterOutOfBounds,
		"input %s uses %s outside a file of %d registers", arg.Name, arg.Reg, fn.file.Len())
	a := arg
	fn.Args = append(fn.Args, &a)
	return &a
}

// Output declares a returned register of the current function
func (c *Context) Output(r Register) {
	fn := c.requireFunction()
	errors.Assert(fn.file.Contains(r), errors.ErrorRegisterOutOfBounds,
		"output %s outside a file of %d registers", r, fn.file.Len())
	fn.Outputs = append(fn.Outputs, r)
}

// AppendPushedConstant records that r is loaded from loc by the runtime
func (c *Context) AppendPushedConstant(r Register, loc PushLocation) {
	c.requireFunction().AddPushed(r, loc)
}

// AddLoop declares a loop of the current function. parent is -1 or the
// index of an earlier loop.
func (c *Context) AddLoop(preheader LabelIndex, parent int, blocks []LabelIndex, exits []LoopExit) {
	fn := c.requireFunction()
	errors.Assert(parent >= -1 && parent < len(fn.Loops), errors.ErrorLoopParent,
		"loop parent %d outside the %d loops of %s", parent, len(fn.Loops), fn.Name)
	fn.Loops = append(fn.Loops, &Loop{Preheader: preheader, Parent: parent, Blocks: blocks, Exits: exits})
}

// StartBlock opens a new block without a label. Append opens labelled
// blocks on its own; this exists for callers emitting the LABEL next.
func (c *Context) StartBlock() {
	c.bb = c.requireFunction().newBlock()
}

// EndBlock closes the open block, if any
func (c *Context) EndBlock() { c.bb = nil }

// Append adds insn to the current function
func (c *Context) Append(insn Instruction) *Instruction {
	fn := c.requireFunction()
	if insn.Op == OpLabel {
		c.EndBlock()
		c.StartBlock()
		errors.Assert(int(insn.Label) < len(c.usedLabels), errors.ErrorLabelOutOfBounds,
			"label %s outside a table of %d labels", insn.Label, len(c.usedLabels))
		fn.bindLabel(insn.Label, c.bb)
		c.usedLabels[insn.Label] |= labelDefined
	} else if c.bb == nil {
		c.Append(NewLabel(c.Label()))
	}

	p := fn.newInstruction(insn, c.bb)
	if c.unit.Valid {
		if err := p.WellFormed(fn); err != nil {
			errors.Fail(errors.ErrorMalformedInstruction, "%s", err)
		}
	}

	if insn.Op.IsBranch() {
		if insn.Op.IsTargetBranch() {
			errors.Assert(int(insn.Label) < len(c.usedLabels), errors.ErrorLabelOutOfBounds,
				"branch to %s outside a table of %d labels", insn.Label, len(c.usedLabels))
			c.usedLabels[insn.Label] |= labelPointed
		}
		c.EndBlock()
	}
	return p
}

// Load appends a LOAD of n values held by tuple values
func (c *Context) Load(t Type, space AddressSpace, aligned bool, bti uint8, addr Register, values Tuple, n int) *Instruction {
	regs := c.requireFunction().file.TupleRegisters(values, n)
	return c.Append(NewLoad(t, space, aligned, bti, addr, regs))
}

// Store appends a STORE of n values held by tuple values
func (c *Context) Store(t Type, space AddressSpace, aligned bool, bti uint8, addr Register, values Tuple, n int) *Instruction {
	regs := c.requireFunction().file.TupleRegisters(values, n)
	return c.Append(NewStore(t, space, aligned, bti, addr, regs))
}
