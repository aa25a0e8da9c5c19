package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gbe/internal/errors"
)

func TestRegisterSet(t *testing.T) {
	s := NewRegisterSet(3, 70, 1)

	assert.True(t, s.Contains(70))
	assert.False(t, s.Contains(2))
	assert.False(t, s.Contains(1000))
	assert.Equal(t, 3, s.Len())
	assert.Equal(t, []Register{1, 3, 70}, s.Slice())

	assert.False(t, s.Add(3), "adding a member twice must not report a change")
	assert.True(t, s.Remove(3))
	assert.False(t, s.Remove(3))
	assert.Equal(t, "{%1 %70}", s.String())
}

func TestRegisterSetUnionAndEqual(t *testing.T) {
	a := NewRegisterSet(1, 2)
	b := NewRegisterSet(2, 130)

	assert.True(t, a.Union(b))
	assert.False(t, a.Union(b))
	assert.Equal(t, []Register{1, 2, 130}, a.Slice())

	c := a.Clone()
	assert.True(t, c.Equal(a))
	c.Remove(130)
	assert.False(t, c.Equal(a))
	assert.True(t, c.Equal(NewRegisterSet(2, 1)))
	assert.True(t, NewRegisterSet().Equal(&RegisterSet{words: []uint64{0, 0}}))
}

func TestRegisterFile(t *testing.T) {
	var rf RegisterFile
	r0 := rf.Append(FamilyDWord, false)
	r1 := rf.Append(FamilyBool, true)

	assert.Equal(t, Register(0), r0)
	assert.Equal(t, Register(1), r1)
	assert.Equal(t, 2, rf.Len())
	assert.Equal(t, RegisterData{Family: FamilyBool, Uniform: true}, rf.Get(r1))

	rf.SetUniform(r0)
	assert.True(t, rf.Get(r0).Uniform)

	tuple := rf.AppendTuple(r1, r0)
	assert.Equal(t, []Register{r1, r0}, rf.TupleRegisters(tuple, 2))
	assert.Equal(t, 1, rf.TupleLen())
}

func TestRegisterFileBounds(t *testing.T) {
	var rf RegisterFile
	rf.Append(FamilyWord, false)

	assert.Equal(t, errors.ErrorRegisterOutOfBounds, iceCode(t, func() { rf.Get(4) }))
	assert.Equal(t, errors.ErrorRegisterOutOfBounds, iceCode(t, func() { rf.AppendTuple(0, 9) }))
	tuple := rf.AppendTuple(0)
	assert.Equal(t, errors.ErrorRegisterOutOfBounds, iceCode(t, func() { rf.TupleRegisters(tuple, 2) }))
}

func TestNamesResolve(t *testing.T) {
	for i := range familyNames {
		f, ok := FamilyByName(Family(i).String())
		require.True(t, ok)
		assert.Equal(t, Family(i), f)
	}
	for i := range typeInfo {
		ty, ok := TypeByName(Type(i).String())
		require.True(t, ok)
		assert.Equal(t, Type(i), ty)
	}
	for i := Opcode(0); i < opcodeCount; i++ {
		op, ok := OpcodeByName(i.String())
		require.True(t, ok)
		assert.Equal(t, i, op)
	}
	_, ok := OpcodeByName("FROB")
	assert.False(t, ok)
}

func TestImmediateString(t *testing.T) {
	assert.Equal(t, "-3", NewIntImmediate(TypeS32, -3).String())
	assert.Equal(t, "255", NewIntImmediate(TypeU8, 255).String())
	assert.Equal(t, "-1", NewIntImmediate(TypeS8, 255).String())
	assert.Equal(t, "1.5", NewFloatImmediate(TypeFloat, 1.5).String())
	assert.Equal(t, "0.25", NewFloatImmediate(TypeDouble, 0.25).String())
	assert.Equal(t, "1", NewIntImmediate(TypeBool, 7).String())
}
