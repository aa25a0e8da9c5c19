package liveness

import "gbe/internal/ir"

// opcodes whose result may differ per lane even from uniform sources
var nonUniformOps = map[ir.Opcode]bool{
	ir.OpSimdID:      true,
	ir.OpBlockRead:   true,
	ir.OpAtomic:      true,
	ir.OpMulHi:       true,
	ir.OpHAdd:        true,
	ir.OpRHAdd:       true,
	ir.OpI64HAdd:     true,
	ir.OpI64RHAdd:    true,
	ir.OpReadARF:     true,
	ir.OpSimdShuffle: true,
	ir.OpAddSat:      true,
	ir.OpMad:         true,
}

type definition struct {
	insn *ir.Instruction
	bb   *ir.BasicBlock
}

// analyzeUniform promotes registers whose every definition computes a
// uniform value from uniform sources, until nothing changes. It returns the
// number of promoted registers.
func (l *Liveness) analyzeUniform() int {
	file := l.fn.RegisterFile()
	defs := make(map[ir.Register][]definition)
	var order []ir.Register
	for _, bb := range l.fn.Blocks() {
		l.fn.ForEachInsn(bb, func(insn *ir.Instruction) {
			for _, r := range insn.Dst {
				if _, seen := defs[r]; !seen {
					order = append(order, r)
				}
				defs[r] = append(defs[r], definition{insn: insn, bb: bb})
			}
		})
	}

	qualifies := func(r ir.Register, d definition) bool {
		if nonUniformOps[d.insn.Op] || len(d.insn.Dst) > 1 {
			return false
		}
		if d.bb.DefinedPhiRegs.Contains(r) {
			return false
		}
		for _, s := range d.insn.Src {
			if !file.Get(s).Uniform {
				return false
			}
		}
		return true
	}

	promoted := 0
	for changed := true; changed; {
		changed = false
		for _, r := range order {
			data := file.Get(r)
			if data.Uniform || data.Family == ir.FamilyQWord || l.extentRegs.Contains(r) {
				continue
			}
			uniform := true
			for _, d := range defs[r] {
				if !qualifies(r, d) {
					uniform = false
					break
				}
			}
			if uniform {
				file.SetUniform(r)
				promoted++
				changed = true
			}
		}
	}
	return promoted
}
