package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbe/internal/errors"
)

// ============================================================================
// Block bookkeeping
// ============================================================================

func TestAppendWithoutBlockSynthesizesLabel(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	a := ctx.Reg(FamilyDWord, false)
	b := ctx.Reg(FamilyDWord, false)
	c := ctx.Reg(FamilyDWord, false)
	ctx.Append(NewBinary(OpAdd, TypeS32, c, a, b))
	fn := ctx.EndFunction()

	require.Equal(t, 2, fn.BlockCount())
	entry := fn.Block(0)
	assert.Equal(t, []Opcode{OpLabel, OpAdd}, opcodes(fn, entry))
	assert.Equal(t, LabelIndex(0), fn.BlockLabel(entry))
	assert.Equal(t, []BlockIndex{1}, entry.Successors)
	assert.Equal(t, []Opcode{OpLabel, OpRet}, opcodes(fn, fn.Block(1)))
}

func TestLabelAndBranchDelimitBlocks(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	head := ctx.Label()
	tail := ctx.Label()
	a := ctx.Reg(FamilyDWord, false)
	b := ctx.Reg(FamilyDWord, false)
	p := ctx.Reg(FamilyBool, false)

	ctx.Append(NewLabel(head))
	ctx.Append(NewCompare(OpLt, TypeS32, p, a, b))
	ctx.Append(NewBranchIf(p, tail, false))
	ctx.Append(NewBinary(OpAdd, TypeS32, a, a, b))
	ctx.Append(NewLabel(tail))
	ctx.Append(NewMov(TypeS32, b, a))
	fn := ctx.EndFunction()

	require.Equal(t, 4, fn.BlockCount())
	assert.Equal(t, []Opcode{OpLabel, OpLt, OpBra}, opcodes(fn, fn.Block(0)))
	assert.Equal(t, []Opcode{OpLabel, OpAdd}, opcodes(fn, fn.Block(1)))
	assert.Equal(t, []Opcode{OpLabel, OpMov}, opcodes(fn, fn.Block(2)))

	// labels are dense in layout order after lowering
	for i, bb := range fn.Blocks() {
		assert.Equal(t, LabelIndex(i), fn.BlockLabel(bb))
		assert.Same(t, bb, fn.BlockOf(LabelIndex(i)))
	}
	bra := fn.LastInsn(fn.Block(0))
	assert.Equal(t, LabelIndex(2), bra.Label)

	assert.Equal(t, []BlockIndex{1, 2}, fn.Block(0).Successors)
	assert.Equal(t, []BlockIndex{2}, fn.Block(1).Successors)
	assert.Equal(t, []BlockIndex{0, 1}, fn.Block(2).Predecessors)
	assert.Empty(t, fn.Block(3).Successors)
}

func TestEmptyFunctionGetsReturn(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("empty", ProfileGeneral)
	fn := ctx.EndFunction()

	require.Equal(t, 2, fn.BlockCount())
	assert.Equal(t, []Opcode{OpLabel, OpBra}, opcodes(fn, fn.Block(0)))
	assert.Equal(t, []Opcode{OpLabel, OpRet}, opcodes(fn, fn.Block(1)))
	assert.Equal(t, []BlockIndex{1}, fn.Block(0).Successors)
}

func TestInstructionsRecordTheirBlock(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	r := ctx.Reg(FamilyDWord, false)
	mov := ctx.Append(NewMov(TypeU32, r, r))
	fn := ctx.EndFunction()

	assert.Equal(t, BlockIndex(0), mov.Block())
	assert.Equal(t, 4, fn.InsnCount())
}

// ============================================================================
// Label validation
// ============================================================================

func TestLabelBoundTwiceFails(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	l := ctx.Label()
	ctx.Append(NewLabel(l))
	ctx.Append(NewNop())
	assert.Equal(t, errors.ErrorLabelRebound, iceCode(t, func() { ctx.Append(NewLabel(l)) }))
}

func TestPointedButUndefinedLabelFails(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	l := ctx.Label()
	ctx.Append(NewBranch(l))
	assert.Equal(t, errors.ErrorUndefinedLabel, iceCode(t, func() { ctx.EndFunction() }))
}

func TestStructuredBranchesMarkTheirTarget(t *testing.T) {
	for _, build := range []func(p Register, l LabelIndex) Instruction{
		func(p Register, l LabelIndex) Instruction { return NewIf(p, l) },
		func(p Register, l LabelIndex) Instruction { return NewWhile(p, l) },
	} {
		_, ctx := newTestContext()
		ctx.StartFunction("f", ProfileGeneral)
		p := ctx.Reg(FamilyBool, false)
		l := ctx.Label()
		ctx.Append(build(p, l))

		var err error
		func() {
			defer errors.Recover(&err)
			ctx.EndFunction()
		}()
		require.Error(t, err)
		assert.Equal(t, errors.ErrorUndefinedLabel, errors.Code(err))
		assert.Contains(t, err.Error(), "branched to")
	}
}

func TestAllocatedButUndefinedLabelFails(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	ctx.Label()
	ctx.Append(NewNop())
	assert.Equal(t, errors.ErrorUndefinedLabel, iceCode(t, func() { ctx.EndFunction() }))
}

func TestLabelOutOfBoundsFails(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	assert.Equal(t, errors.ErrorLabelOutOfBounds, iceCode(t, func() { ctx.Append(NewLabel(5)) }))
}

func TestEmptyBlockFails(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	first := ctx.Label()
	second := ctx.Label()
	ctx.Append(NewLabel(first))
	ctx.Append(NewLabel(second))
	ctx.Append(NewNop())
	assert.Equal(t, errors.ErrorEmptyBlock, iceCode(t, func() { ctx.EndFunction() }))
}

// ============================================================================
// Function lifecycle
// ============================================================================

func TestBuilderWithoutFunctionFails(t *testing.T) {
	_, ctx := newTestContext()
	assert.Equal(t, errors.ErrorNoFunction, iceCode(t, func() { ctx.Reg(FamilyDWord, false) }))
	assert.Equal(t, errors.ErrorNoFunction, iceCode(t, func() { ctx.Append(NewNop()) }))
	assert.Equal(t, errors.ErrorNoFunction, iceCode(t, func() { ctx.EndFunction() }))
}

func TestDuplicateFunctionFails(t *testing.T) {
	unit, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	ctx.EndFunction()
	assert.Equal(t, errors.ErrorDuplicateFunction, iceCode(t, func() { ctx.StartFunction("f", ProfileGeneral) }))
	assert.Len(t, unit.Functions(), 1)
}

func TestNestedFunctionsRestoreState(t *testing.T) {
	unit, ctx := newTestContext()
	outer := ctx.StartFunction("outer", ProfileGeneral)
	r := ctx.Reg(FamilyDWord, false)
	ctx.Append(NewMov(TypeU32, r, r))

	inner := ctx.StartFunction("inner", ProfileGeneral)
	assert.Same(t, inner, ctx.Function())
	ctx.Append(NewNop())
	ctx.EndFunction()

	assert.Same(t, outer, ctx.Function())
	ctx.Append(NewMov(TypeU32, r, r))
	ctx.EndFunction()

	assert.Nil(t, ctx.Function())
	assert.Equal(t, []Opcode{OpLabel, OpMov, OpMov}, opcodes(outer, outer.Block(0)))
	assert.Equal(t, []string{"outer", "inner"}, []string{unit.Functions()[0].Name, unit.Functions()[1].Name})
}

func TestMalformedInstructionFails(t *testing.T) {
	unit, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	w := ctx.Reg(FamilyWord, false)
	d := ctx.Reg(FamilyDWord, false)
	assert.Equal(t, errors.ErrorMalformedInstruction, iceCode(t, func() {
		ctx.Append(NewBinary(OpAdd, TypeS32, d, d, w))
	}))

	unit.Valid = false
	ctx.Append(NewBinary(OpAdd, TypeS32, d, d, w))
}

func TestPushedRegisterTwiceFails(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	r := ctx.Reg(FamilyDWord, true)
	s := ctx.Reg(FamilyDWord, true)
	ctx.AppendPushedConstant(r, PushLocation{ArgIndex: 0, Offset: 4})
	assert.Equal(t, errors.ErrorRegisterPushedTwice, iceCode(t, func() {
		ctx.AppendPushedConstant(r, PushLocation{ArgIndex: 0, Offset: 8})
	}))
	assert.Equal(t, errors.ErrorRegisterPushedTwice, iceCode(t, func() {
		ctx.AppendPushedConstant(s, PushLocation{ArgIndex: 0, Offset: 4})
	}))

	loc, ok := ctx.Function().PushLocation(r)
	require.True(t, ok)
	assert.Equal(t, uint32(4), loc.Offset)
}

func TestKernelProfileRegisters(t *testing.T) {
	_, ctx := newTestContext()
	fn := ctx.StartFunction("k", ProfileOCL)

	lid, ok := fn.SpecialRegister("lid0")
	require.True(t, ok)
	assert.False(t, fn.Register(lid).Uniform)
	group, ok := fn.SpecialRegister("groupid1")
	require.True(t, ok)
	assert.True(t, fn.Register(group).Uniform)
	assert.Equal(t, "groupid1", fn.SpecialName(group))

	r := ctx.Reg(FamilyDWord, false)
	assert.Equal(t, len(oclSpecialRegisters), int(r))
	assert.False(t, fn.IsSpecialRegister(r))
}

func TestTupleLoadStore(t *testing.T) {
	_, ctx := newTestContext()
	ctx.StartFunction("f", ProfileGeneral)
	addr := ctx.Reg(FamilyDWord, false)
	x := ctx.Reg(FamilyDWord, false)
	y := ctx.Reg(FamilyDWord, false)
	values := ctx.Tuple(x, y)

	load := ctx.Load(TypeU32, SpaceGlobal, true, 1, addr, values, 2)
	store := ctx.Store(TypeU32, SpaceGlobal, true, 1, addr, values, 2)
	ctx.EndFunction()

	assert.Equal(t, []Register{x, y}, load.Dst)
	assert.Equal(t, []Register{addr, x, y}, store.Src)
	assert.True(t, load.ReadsMemory())
	assert.True(t, store.WritesMemory())
	assert.False(t, load.IsPure())
}
