package ir

import (
	"testing"

	"github.com/stretchr/testify/require"

	"gbe/internal/errors"
)

// iceCode runs f and returns the code of the internal compiler error it raises
func iceCode(t *testing.T, f func()) string {
	t.Helper()
	var err error
	func() {
		defer errors.Recover(&err)
		f()
	}()
	require.Error(t, err, "expected an internal compiler error")
	return errors.Code(err)
}

func newTestContext() (*Unit, *Context) {
	unit := NewUnit(Pointer32)
	return unit, NewContext(unit)
}

// opcodes lists the opcodes of bb in order
func opcodes(fn *Function, bb *BasicBlock) []Opcode {
	var ops []Opcode
	fn.ForEachInsn(bb, func(insn *Instruction) { ops = append(ops, insn.Op) })
	return ops
}
