package compiler

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbe/internal/config"
	"gbe/internal/errors"
	"gbe/internal/gen"
	"gbe/internal/ir"
)

const source = `.constant table 8 4 1 0 0 0 2 0 0 0

.decl_function sum kernel
  decl_reg %30 dword uniform
  decl_reg %31 dword
  decl_reg %32 dword
  decl_reg %33 bool
  decl_input.global %30 out 4 4 2
  LABEL $0
  LOADI.uint32 %31 0
  LABEL $1
  ADD.uint32 %31 %31 %lid0
  LT.uint32 %33 %31 %lsize0
  (%33) BRA -> $1
  ADD.uint32 %32 %30 %31
  STORE.uint32.global %32 {%31} bti:2
  RET
.end_function

.decl_function helper
  decl_reg %0 dword
  LOADI.uint32 %0 1
  decl_output %0
.end_function
`

func TestCompile(t *testing.T) {
	res, err := Compile(config.Default(), "sum.gir", source)
	require.NoError(t, err)
	require.False(t, res.HasErrors(), "%v", res.Diagnostics)

	assert.Len(t, res.Unit.Functions(), 2)
	require.Contains(t, res.Liveness, "sum")
	require.Contains(t, res.Liveness, "helper")

	// the loop block keeps the accumulator live around the back edge
	sum := res.Unit.Function("sum")
	acc := sum.Args[0].Reg + 1
	assert.True(t, res.Liveness["sum"].LiveOut(1).Contains(acc))

	assert.Contains(t, res.Epilogues, "sum")
	assert.NotContains(t, res.Epilogues, "helper", "only kernels end with EOT")
	assert.Len(t, res.Epilogues["sum"], 32)

	assert.NotEmpty(t, res.Constants)
	restored := ir.NewUnit(ir.Pointer32)
	n, err := restored.Constants().DeserializeFromBin(bytesReader(res.Constants))
	require.NoError(t, err)
	assert.Equal(t, len(res.Constants), n)
	assert.Equal(t, []byte{1, 0, 0, 0, 2, 0, 0, 0}, restored.Constants().Data())

	assert.Empty(t, res.IRDump)
	assert.Empty(t, res.LivenessDump)
	assert.Empty(t, res.CFGFiles)
}

func TestCompileDumps(t *testing.T) {
	cfg := config.Default()
	cfg.DumpIR = true
	cfg.DumpLiveness = true
	cfg.DumpCFGDir = filepath.Join(t.TempDir(), "cfg")

	res, err := Compile(cfg, "sum.gir", source)
	require.NoError(t, err)
	assert.Contains(t, res.IRDump, ".decl_function sum kernel")
	assert.Contains(t, res.LivenessDump, "liveness of sum")
	assert.Contains(t, res.LivenessDump, "liveness of helper")
	require.Len(t, res.CFGFiles, 2)
	for _, path := range res.CFGFiles {
		_, err := os.Stat(path)
		assert.NoError(t, err)
	}
}

func TestCompileKeepsGoodFunctions(t *testing.T) {
	res, err := Compile(config.Default(), "bad.gir", ".decl_function bad\n  MOV.uint32 %0 %0\n.end_function\n"+
		".decl_function good\n  RET\n.end_function\n")
	require.NoError(t, err)
	require.True(t, res.HasErrors())
	assert.Equal(t, errors.ErrorUndeclaredRegister, res.Diagnostics[0].Code)
	assert.Nil(t, res.Unit.Function("bad"))
	assert.Contains(t, res.Liveness, "good")
}

func TestCompileValidatesConfig(t *testing.T) {
	cfg := config.Default()
	cfg.SIMDWidth = 4
	_, err := Compile(cfg, "x.gir", "")
	assert.Error(t, err)
}

func TestStrictValidationOff(t *testing.T) {
	src := ".decl_function f\n  decl_reg %0 bool\n  decl_reg %1 dword\n  ADD.uint32 %1 %0 %1\n  decl_output %1\n.end_function\n"

	res, err := Compile(config.Default(), "f.gir", src)
	require.NoError(t, err)
	assert.True(t, res.HasErrors())

	cfg := config.Default()
	cfg.StrictValidation = false
	res, err = Compile(cfg, "f.gir", src)
	require.NoError(t, err)
	assert.False(t, res.HasErrors())
	assert.NotNil(t, res.Unit.Function("f"))
}

func TestEpilogue(t *testing.T) {
	for _, width := range []uint32{8, 16} {
		raw := Epilogue(width)
		require.Len(t, raw, 32)

		var mov, eot gen.Instruction
		for i := 0; i < 4; i++ {
			mov[i] = leUint32(raw[4*i:])
			eot[i] = leUint32(raw[16+4*i:])
		}
		assert.Equal(t, uint32(gen.OpcodeMOV), mov.Opcode())
		assert.Equal(t, uint32(gen.Width8), mov.Get(gen.FieldExecutionSize))
		assert.Equal(t, uint32(1), mov.Get(gen.FieldMaskControl))
		assert.Equal(t, uint32(EpilogueRegister), mov.Get(gen.FieldDstNr))
		assert.Equal(t, uint32(gen.OpcodeSEND), eot.Opcode())
		assert.Equal(t, uint32(1), eot.Get(gen.FieldEndOfThread))
		assert.Equal(t, uint32(EpilogueRegister), eot.Get(gen.FieldSrc0Nr))
	}
}
