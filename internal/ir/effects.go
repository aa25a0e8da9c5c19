package ir

// Effects describe what an instruction does besides writing its
// destination registers

// MemoryEffectType classifies a memory access
type MemoryEffectType uint8

const (
	MemoryEffectRead MemoryEffectType = iota
	MemoryEffectWrite
)

// Effect is one side effect of an instruction
type Effect interface {
	isEffect()
}

// PureEffect marks instructions without side effects
type PureEffect struct{}

// MemoryEffect is a read or write through the address in Src[0]
type MemoryEffect struct {
	Type  MemoryEffectType
	Space AddressSpace
}

// ControlEffect marks instructions changing the flow of execution
type ControlEffect struct {
	Target LabelIndex
	Return bool
}

// LaneEffect marks values depending on lane position or other lanes
type LaneEffect struct{}

func (PureEffect) isEffect()    {}
func (MemoryEffect) isEffect()  {}
func (ControlEffect) isEffect() {}
func (LaneEffect) isEffect()    {}

// GetEffects returns the side effects of insn
func (insn *Instruction) GetEffects() []Effect {
	switch insn.Op.Class() {
	case ClassLoad, ClassBlockRead:
		return []Effect{MemoryEffect{Type: MemoryEffectRead, Space: insn.Space}}
	case ClassStore:
		return []Effect{MemoryEffect{Type: MemoryEffectWrite, Space: insn.Space}}
	case ClassAtomic:
		return []Effect{
			MemoryEffect{Type: MemoryEffectRead, Space: insn.Space},
			MemoryEffect{Type: MemoryEffectWrite, Space: insn.Space},
		}
	case ClassBranch:
		return []Effect{ControlEffect{Target: insn.Label, Return: insn.Op == OpRet}}
	case ClassSimdID, ClassReadARF:
		return []Effect{LaneEffect{}}
	}
	if insn.Op == OpSimdShuffle {
		return []Effect{LaneEffect{}}
	}
	return []Effect{PureEffect{}}
}

// WritesMemory reports whether insn stores through its address operand
func (insn *Instruction) WritesMemory() bool {
	for _, e := range insn.GetEffects() {
		if m, ok := e.(MemoryEffect); ok && m.Type == MemoryEffectWrite {
			return true
		}
	}
	return false
}

// ReadsMemory reports whether insn loads through its address operand
func (insn *Instruction) ReadsMemory() bool {
	for _, e := range insn.GetEffects() {
		if m, ok := e.(MemoryEffect); ok && m.Type == MemoryEffectRead {
			return true
		}
	}
	return false
}

// IsPure reports instructions whose only effect is their destination
func (insn *Instruction) IsPure() bool {
	effects := insn.GetEffects()
	_, pure := effects[0].(PureEffect)
	return len(effects) == 1 && pure
}
