package ir

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// Printer renders functions in the textual IR syntax
type Printer struct {
	indent int
	output strings.Builder
}

// NewPrinter creates a new IR printer
func NewPrinter() *Printer {
	return &Printer{indent: 0}
}

// Print returns the textual form of every constant and function of unit
func Print(unit *Unit) string {
	p := NewPrinter()
	p.printUnit(unit)
	return p.output.String()
}

// PrintFunction returns the textual form of fn
func PrintFunction(fn *Function) string {
	p := NewPrinter()
	p.printFunction(fn)
	return p.output.String()
}

// Helper methods

func (p *Printer) writeIndent() {
	for i := 0; i < p.indent; i++ {
		p.output.WriteString("  ")
	}
}

func (p *Printer) writeLine(format string, args ...interface{}) {
	p.writeIndent()
	p.output.WriteString(fmt.Sprintf(format, args...))
	p.output.WriteString("\n")
}

func (p *Printer) printUnit(unit *Unit) {
	cs := unit.Constants()
	for i := 0; i < cs.Len(); i++ {
		c := cs.Constant(i)
		var b strings.Builder
		fmt.Fprintf(&b, ".constant %s %d %d", c.Name, c.Size, c.Align)
		for _, v := range cs.Data()[c.Offset : c.Offset+c.Size] {
			fmt.Fprintf(&b, " %d", v)
		}
		p.writeLine("%s", b.String())
	}
	for i, fn := range unit.Functions() {
		if i > 0 || cs.Len() > 0 {
			p.writeLine("")
		}
		p.printFunction(fn)
	}
}

func (p *Printer) printFunction(fn *Function) {
	if fn.Profile == ProfileOCL {
		p.writeLine(".decl_function %s kernel", fn.Name)
	} else {
		p.writeLine(".decl_function %s", fn.Name)
	}
	p.indent++
	for r := 0; r < fn.file.Len(); r++ {
		reg := Register(r)
		if fn.IsSpecialRegister(reg) {
			continue
		}
		data := fn.file.Get(reg)
		if data.Uniform {
			p.writeLine("decl_reg %s %s uniform", reg, data.Family)
		} else {
			p.writeLine("decl_reg %s %s", reg, data.Family)
		}
	}
	for _, arg := range fn.Args {
		p.writeLine("decl_input.%s %s %s %d %d %d", arg.Type, fn.regName(arg.Reg), arg.Name, arg.Size, arg.Align, arg.BTI)
	}
	for _, r := range fn.Outputs {
		p.writeLine("decl_output %s", fn.regName(r))
	}
	for _, r := range fn.PushedRegisters() {
		loc := fn.pushMap[r]
		p.writeLine("decl_pushed %s %s", fn.regName(r), loc)
	}
	for _, loop := range fn.Loops {
		blocks := make([]string, len(loop.Blocks))
		for i, l := range loop.Blocks {
			blocks[i] = l.String()
		}
		exits := make([]string, 0, 2*len(loop.Exits))
		for _, e := range loop.Exits {
			exits = append(exits, e.From.String(), e.To.String())
		}
		p.writeLine("decl_loop %s %d { %s } { %s }", loop.Preheader, loop.Parent,
			strings.Join(blocks, " "), strings.Join(exits, " "))
	}
	p.writeLine("## %d blocks ##", len(fn.blocks))
	for _, bb := range fn.blocks {
		p.writeLine("## bb %d <- %s -> %s ##", bb.index, blockList(bb.Predecessors), blockList(bb.Successors))
		for _, i := range bb.insns {
			p.writeLine("%s", fn.FormatInsn(fn.insns[i]))
		}
	}
	p.indent--
	p.writeLine(".end_function")
}

func blockList(blocks []BlockIndex) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = fmt.Sprint(b)
	}
	return "{" + strings.Join(parts, " ") + "}"
}

func (fn *Function) regName(r Register) string {
	if name := fn.SpecialName(r); name != "" {
		return "%" + name
	}
	return r.String()
}

func (fn *Function) regList(regs []Register) string {
	parts := make([]string, len(regs))
	for i, r := range regs {
		parts[i] = fn.regName(r)
	}
	return strings.Join(parts, " ")
}

// FormatInsn renders one instruction of fn
func (fn *Function) FormatInsn(insn *Instruction) string {
	var b strings.Builder
	srcs := insn.Src
	if insn.Op.IsBranch() && insn.Predicated {
		bang := ""
		if insn.InversePredicate {
			bang = "!"
		}
		fmt.Fprintf(&b, "(%s%s) ", bang, fn.regName(insn.Src[0]))
		srcs = srcs[1:]
	}
	b.WriteString(insn.Op.String())

	switch insn.Op.Class() {
	case ClassLabel:
		fmt.Fprintf(&b, " %s", insn.Label)
	case ClassBranch:
		if insn.Op != OpRet {
			fmt.Fprintf(&b, " -> %s", insn.Label)
		}
	case ClassConvert:
		fmt.Fprintf(&b, ".%s.%s %s %s", insn.Type, insn.SrcType, fn.regList(insn.Dst), fn.regList(srcs))
	case ClassLoadImm:
		fmt.Fprintf(&b, ".%s %s %s", insn.Type, fn.regList(insn.Dst), fn.immediates[insn.Imm])
	case ClassLoad:
		fmt.Fprintf(&b, ".%s.%s%s {%s} %s bti:%d", insn.Type, insn.Space, alignedSuffix(insn),
			fn.regList(insn.Dst), fn.regName(srcs[0]), insn.BTI)
	case ClassStore:
		fmt.Fprintf(&b, ".%s.%s%s %s {%s} bti:%d", insn.Type, insn.Space, alignedSuffix(insn),
			fn.regName(srcs[0]), fn.regList(srcs[1:]), insn.BTI)
	case ClassBlockRead:
		fmt.Fprintf(&b, ".%s {%s} %s bti:%d", insn.Type, fn.regList(insn.Dst), fn.regName(srcs[0]), insn.BTI)
	case ClassAtomic:
		fmt.Fprintf(&b, ".%s.%s.%s %s %s bti:%d", insn.Atomic, insn.Type, insn.Space,
			fn.regList(insn.Dst), fn.regList(srcs), insn.BTI)
	case ClassSimdID:
		fmt.Fprintf(&b, " %s", fn.regList(insn.Dst))
	case ClassReadARF:
		fmt.Fprintf(&b, ".%s %s arf:%d", insn.Type, fn.regList(insn.Dst), insn.ARF)
	case ClassNop:
	default:
		fmt.Fprintf(&b, ".%s %s %s", insn.Type, fn.regList(insn.Dst), fn.regList(srcs))
	}
	return b.String()
}

func alignedSuffix(insn *Instruction) string {
	if insn.Aligned {
		return ".aligned"
	}
	return ""
}

// WriteCFG writes the control flow graph of fn in DOT syntax
func WriteCFG(w io.Writer, fn *Function) error {
	var b strings.Builder
	fmt.Fprintf(&b, "digraph %q {\n", fn.Name)
	b.WriteString("  node [shape=box];\n")
	for _, bb := range fn.blocks {
		label := "?"
		if bb.Len() > 0 && fn.insns[bb.insns[0]].Op == OpLabel {
			label = fn.BlockLabel(bb).String()
		}
		fmt.Fprintf(&b, "  bb%d [label=\"%s (%d insns)\"];\n", bb.index, label, bb.Len())
	}
	for _, bb := range fn.blocks {
		for _, s := range bb.Successors {
			fmt.Fprintf(&b, "  bb%d -> bb%d;\n", bb.index, s)
		}
	}
	b.WriteString("}\n")
	_, err := io.WriteString(w, b.String())
	return err
}

// DumpCFG writes the graph of fn to <dir>/<function>.dot
func DumpCFG(dir string, fn *Function) (string, error) {
	path := filepath.Join(dir, fn.Name+".dot")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("dump cfg of %s: %w", fn.Name, err)
	}
	defer f.Close()
	if err := WriteCFG(f, fn); err != nil {
		return "", fmt.Errorf("dump cfg of %s: %w", fn.Name, err)
	}
	return path, nil
}
