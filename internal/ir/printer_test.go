package ir

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildPrintable(t *testing.T) (*Unit, *Function) {
	t.Helper()
	unit, ctx := newTestContext()
	unit.NewConstant("lut", []byte{1, 2}, 2, 2)
	fn := ctx.StartFunction("scale", ProfileOCL)
	lid, _ := fn.SpecialRegister("lid0")
	buf := ctx.Reg(FamilyDWord, true)
	ctx.Input(FunctionArgument{Type: ArgGlobalPointer, Reg: buf, Name: "buf", Size: 4, Align: 4, BTI: 1})
	four := ctx.Reg(FamilyDWord, true)
	off := ctx.Reg(FamilyDWord, false)
	addr := ctx.Reg(FamilyDWord, false)
	v := ctx.Reg(FamilyDWord, false)
	p := ctx.Reg(FamilyBool, false)
	ctx.Output(v)

	ctx.Append(NewLoadImm(TypeU32, four, ctx.NewImmediate(NewIntImmediate(TypeU32, 4))))
	ctx.Append(NewBinary(OpMul, TypeU32, off, lid, four))
	ctx.Append(NewBinary(OpAdd, TypeU32, addr, buf, off))
	ctx.Append(NewLoad(TypeU32, SpaceGlobal, true, 1, addr, []Register{v}))
	ctx.Append(NewCompare(OpEq, TypeU32, p, v, four))
	skip := ctx.Label()
	ctx.Append(NewBranchIf(p, skip, true))
	ctx.Append(NewStore(TypeU32, SpaceGlobal, true, 1, addr, []Register{four}))
	ctx.Append(NewLabel(skip))
	ctx.Append(NewConvert(TypeFloat, TypeU32, v, v))
	return unit, ctx.EndFunction()
}

func TestPrintFunction(t *testing.T) {
	_, fn := buildPrintable(t)
	text := PrintFunction(fn)

	for _, line := range []string{
		".decl_function scale kernel",
		"  decl_reg %24 dword uniform",
		"  decl_reg %29 bool",
		"  decl_input.global %24 buf 4 4 1",
		"  decl_output %28",
		"  LABEL $0",
		"  LOADI.uint32 %25 4",
		"  MUL.uint32 %26 %lid0 %25",
		"  ADD.uint32 %27 %24 %26",
		"  LOAD.uint32.global.aligned {%28} %27 bti:1",
		"  EQ.uint32 %29 %28 %25",
		"  (!%29) BRA -> $2",
		"  STORE.uint32.global.aligned %27 {%25} bti:1",
		"  CVT.float.uint32 %28 %28",
		"  RET",
		".end_function",
	} {
		assert.Contains(t, text, line+"\n")
	}
	assert.NotContains(t, text, "decl_reg %0 ", "profile registers are implicit")
}

func TestPrintUnitIncludesConstants(t *testing.T) {
	unit, _ := buildPrintable(t)
	text := Print(unit)
	assert.True(t, strings.HasPrefix(text, ".constant lut 2 2 1 2\n"))
	assert.Contains(t, text, "\n.decl_function scale kernel\n")
}

func TestWriteCFG(t *testing.T) {
	_, fn := buildPrintable(t)
	var buf bytes.Buffer
	require.NoError(t, WriteCFG(&buf, fn))

	dot := buf.String()
	assert.True(t, strings.HasPrefix(dot, "digraph \"scale\" {\n"))
	assert.Contains(t, dot, "bb0 -> bb1;")
	assert.Contains(t, dot, "bb0 -> bb2;")
	assert.Contains(t, dot, "bb2 -> bb3;")
	assert.Contains(t, dot, "bb3 [label=\"$3 (2 insns)\"];")
}

func TestDumpCFG(t *testing.T) {
	_, fn := buildPrintable(t)
	dir := t.TempDir()
	path, err := DumpCFG(dir, fn)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "scale.dot"), path)

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "digraph")

	_, err = DumpCFG(filepath.Join(dir, "missing"), fn)
	assert.Error(t, err)
}
