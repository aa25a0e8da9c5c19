package ir

import "gbe/internal/errors"

// ComputeCFG rebuilds predecessor, successor and layout links of every
// block. A block falls through to the next one unless it ends with an
// unpredicated jump or a return. ELSE and ENDIF always fall through.
func (fn *Function) ComputeCFG() {
	for i, bb := range fn.blocks {
		bb.Predecessors = bb.Predecessors[:0]
		bb.Successors = bb.Successors[:0]
		bb.Prev, bb.Next = NoBlock, NoBlock
		if i > 0 {
			bb.Prev = BlockIndex(i - 1)
		}
		if i+1 < len(fn.blocks) {
			bb.Next = BlockIndex(i + 1)
		}
	}

	var fallsThrough *BasicBlock
	for _, bb := range fn.blocks {
		if fallsThrough != nil {
			fn.link(fallsThrough, bb)
			fallsThrough = nil
		}
		last := fn.LastInsn(bb)
		if last == nil {
			continue
		}
		if !last.IsBranch() || last.Op == OpEndif || last.Op == OpElse {
			fallsThrough = bb
			continue
		}
		if last.Op == OpRet {
			continue
		}

		// at most two trailing jumps: a conditional one followed by its
		// unconditional companion
		handled := 0
		for k := len(bb.insns) - 1; k >= 0 && handled < 2; k-- {
			insn := fn.insns[bb.insns[k]]
			if !insn.Op.IsTargetBranch() {
				break
			}
			errors.Assert(handled == 0 || insn.Predicated, errors.ErrorInvalidBranch,
				"block %d ends with two unconditional jumps", bb.index)
			target := fn.BlockOf(insn.Label)
			errors.Assert(target != nil, errors.ErrorUndefinedLabel,
				"jump to unbound label %s in block %d", insn.Label, bb.index)
			fn.link(bb, target)
			if insn.Predicated {
				fallsThrough = bb
			}
			handled++
		}
	}
}

func (fn *Function) link(from, to *BasicBlock) {
	from.Successors = addEdge(from.Successors, to.index)
	to.Predecessors = addEdge(to.Predecessors, from.index)
}

// SortLabels renumbers labels densely in block order and patches every
// instruction and loop referring to them.
func (fn *Function) SortLabels() {
	remap := make(map[LabelIndex]LabelIndex, len(fn.blocks))
	next := LabelIndex(0)
	for _, bb := range fn.blocks {
		for _, i := range bb.insns {
			insn := fn.insns[i]
			if insn.Op != OpLabel {
				continue
			}
			remap[insn.Label] = next
			insn.Label = next
			next++
		}
	}
	for _, bb := range fn.blocks {
		for _, i := range bb.insns {
			insn := fn.insns[i]
			if insn.Op.IsBranch() && insn.Op != OpRet {
				l, ok := remap[insn.Label]
				errors.Assert(ok, errors.ErrorUndefinedLabel, "%s to unbound label %s", insn.Op, insn.Label)
				insn.Label = l
			}
		}
	}
	for _, loop := range fn.Loops {
		loop.Preheader = fn.remapLabel(remap, loop.Preheader)
		for i, l := range loop.Blocks {
			loop.Blocks[i] = fn.remapLabel(remap, l)
		}
		for i, e := range loop.Exits {
			loop.Exits[i] = LoopExit{From: fn.remapLabel(remap, e.From), To: fn.remapLabel(remap, e.To)}
		}
	}

	fn.labels = make([]BlockIndex, next)
	for i := range fn.labels {
		fn.labels[i] = NoBlock
	}
	for _, bb := range fn.blocks {
		fn.labels[fn.BlockLabel(bb)] = bb.index
	}
}

func (fn *Function) remapLabel(remap map[LabelIndex]LabelIndex, l LabelIndex) LabelIndex {
	n, ok := remap[l]
	errors.Assert(ok, errors.ErrorUndefinedLabel, "loop of %s refers to unbound label %s", fn.Name, l)
	return n
}

// CheckEmptyLabels fails when a block holds nothing but its label
func (fn *Function) CheckEmptyLabels() {
	for _, bb := range fn.blocks {
		errors.Assert(len(bb.insns) > 0, errors.ErrorEmptyBlock, "block %d of %s has no label", bb.index, fn.Name)
		if len(bb.insns) == 1 && fn.insns[bb.insns[0]].Op == OpLabel {
			errors.Fail(errors.ErrorEmptyBlock, "block %s of %s holds only its label",
				fn.insns[bb.insns[0]].Label, fn.Name)
		}
	}
}
