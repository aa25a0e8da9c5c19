package ir

import (
	"fmt"
	"math/bits"
	"strings"

	"gbe/internal/errors"
)

// Family is the storage class of a virtual register
type Family uint8

const (
	FamilyBool Family = iota
	FamilyByte
	FamilyWord
	FamilyDWord
	FamilyQWord
)

var familyNames = [...]string{"bool", "byte", "word", "dword", "qword"}

func (f Family) String() string {
	if int(f) < len(familyNames) {
		return familyNames[f]
	}
	return fmt.Sprintf("family(%d)", uint8(f))
}

// FamilyByName resolves a family from its printed name
func FamilyByName(name string) (Family, bool) {
	for i, n := range familyNames {
		if n == name {
			return Family(i), true
		}
	}
	return 0, false
}

// Register is an index into a function register file
type Register uint32

func (r Register) String() string { return fmt.Sprintf("%%%d", uint32(r)) }

// RegisterData describes one virtual register. Uniform means the value is
// identical across all active SIMD lanes; it can only go from false to true.
type RegisterData struct {
	Family  Family
	Uniform bool
}

// Tuple indexes a group of registers used as one vector operand
type Tuple uint32

// RegisterFile is the flat table of virtual registers of a function plus
// the append-only tuple side array.
type RegisterFile struct {
	regs   []RegisterData
	tuples []Register
	starts []uint32
}

// Append allocates a new register
func (rf *RegisterFile) Append(family Family, uniform bool) Register {
	rf.regs = append(rf.regs, RegisterData{Family: family, Uniform: uniform})
	return Register(len(rf.regs) - 1)
}

// AppendTuple records a register group and returns its index
func (rf *RegisterFile) AppendTuple(regs ...Register) Tuple {
	for _, r := range regs {
		errors.Assert(rf.Contains(r), errors.ErrorRegisterOutOfBounds,
			"tuple member %s outside a file of %d registers", r, len(rf.regs))
	}
	rf.starts = append(rf.starts, uint32(len(rf.tuples)))
	rf.tuples = append(rf.tuples, regs...)
	return Tuple(len(rf.starts) - 1)
}

// TupleRegisters returns n registers of tuple t
func (rf *RegisterFile) TupleRegisters(t Tuple, n int) []Register {
	errors.Assert(int(t) < len(rf.starts), errors.ErrorRegisterOutOfBounds, "tuple %d out of bounds", t)
	start := int(rf.starts[t])
	errors.Assert(start+n <= len(rf.tuples), errors.ErrorRegisterOutOfBounds,
		"tuple %d has fewer than %d registers", t, n)
	out := make([]Register, n)
	copy(out, rf.tuples[start:start+n])
	return out
}

// Len returns the number of registers
func (rf *RegisterFile) Len() int { return len(rf.regs) }

// TupleLen returns the number of tuples
func (rf *RegisterFile) TupleLen() int { return len(rf.starts) }

// Contains reports whether r indexes an allocated register
func (rf *RegisterFile) Contains(r Register) bool { return int(r) < len(rf.regs) }

// Get returns the data of register r
func (rf *RegisterFile) Get(r Register) RegisterData {
	errors.Assert(rf.Contains(r), errors.ErrorRegisterOutOfBounds,
		"register %s outside a file of %d registers", r, len(rf.regs))
	return rf.regs[r]
}

// SetUniform marks r as uniform. Uniformity is never revoked.
func (rf *RegisterFile) SetUniform(r Register) {
	errors.Assert(rf.Contains(r), errors.ErrorRegisterOutOfBounds,
		"register %s outside a file of %d registers", r, len(rf.regs))
	rf.regs[r].Uniform = true
}

// RegisterSet is a dense bit set of registers
type RegisterSet struct {
	words []uint64
}

// NewRegisterSet builds a set holding regs
func NewRegisterSet(regs ...Register) *RegisterSet {
	s := &RegisterSet{}
	for _, r := range regs {
		s.Add(r)
	}
	return s
}

// Add inserts r and reports whether the set changed
func (s *RegisterSet) Add(r Register) bool {
	w, b := int(r/64), uint(r%64)
	for len(s.words) <= w {
		s.words = append(s.words, 0)
	}
	if s.words[w]&(1<<b) != 0 {
		return false
	}
	s.words[w] |= 1 << b
	return true
}

// Remove deletes r and reports whether the set changed
func (s *RegisterSet) Remove(r Register) bool {
	w, b := int(r/64), uint(r%64)
	if w >= len(s.words) || s.words[w]&(1<<b) == 0 {
		return false
	}
	s.words[w] &^= 1 << b
	return true
}

// Contains reports membership of r
func (s *RegisterSet) Contains(r Register) bool {
	w, b := int(r/64), uint(r%64)
	return w < len(s.words) && s.words[w]&(1<<b) != 0
}

// Len returns the number of members
func (s *RegisterSet) Len() int {
	n := 0
	for _, w := range s.words {
		n += bits.OnesCount64(w)
	}
	return n
}

// Slice returns the members in increasing order
func (s *RegisterSet) Slice() []Register {
	out := make([]Register, 0, s.Len())
	for i, w := range s.words {
		for w != 0 {
			b := bits.TrailingZeros64(w)
			out = append(out, Register(i*64+b))
			w &^= 1 << uint(b)
		}
	}
	return out
}

// Clone returns an independent copy
func (s *RegisterSet) Clone() *RegisterSet {
	return &RegisterSet{words: append([]uint64(nil), s.words...)}
}

// Union adds every member of other and reports whether s changed
func (s *RegisterSet) Union(other *RegisterSet) bool {
	changed := false
	for len(s.words) < len(other.words) {
		s.words = append(s.words, 0)
	}
	for i, w := range other.words {
		if s.words[i]|w != s.words[i] {
			s.words[i] |= w
			changed = true
		}
	}
	return changed
}

// Equal reports whether both sets hold the same registers
func (s *RegisterSet) Equal(other *RegisterSet) bool {
	n := max(len(s.words), len(other.words))
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(s.words) {
			a = s.words[i]
		}
		if i < len(other.words) {
			b = other.words[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

func (s *RegisterSet) String() string {
	regs := s.Slice()
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = r.String()
	}
	return "{" + strings.Join(parts, " ") + "}"
}
