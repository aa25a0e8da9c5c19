package irtext

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/alecthomas/participle/v2/lexer"
	"github.com/tliron/commonlog"

	"gbe/internal/errors"
	"gbe/internal/ir"
)

var log = commonlog.GetLogger("gbe.irtext")

// Read lowers source into unit. A function with errors is left out of
// the unit and reported; the others are kept.
func Read(unit *ir.Unit, filename, source string) []errors.CompilerError {
	file, diags := Parse(filename, source)
	if file == nil {
		return diags
	}
	return Lower(unit, file)
}

// Lower builds the constants and functions of a parsed file into unit
func Lower(unit *ir.Unit, file *File) []errors.CompilerError {
	r := &reader{unit: unit}
	for _, entry := range file.Entries {
		switch {
		case entry.Constant != nil:
			r.constant(entry.Constant)
		case entry.Function != nil:
			r.function(entry.Function)
		}
	}
	return r.diags
}

type reader struct {
	unit  *ir.Unit
	diags []errors.CompilerError

	// state of the function being lowered
	ctx      *ir.Context
	fn       *ir.Function
	failed   bool
	regs     map[string]ir.Register
	decls    []*DeclReg
	used     map[string]bool
	labels   map[uint64]ir.LabelIndex
	labelPos map[uint64]lexer.Position
	defined  map[uint64]bool
}

func (r *reader) errorf(pos lexer.Position, code, format string, args ...interface{}) {
	r.diags = append(r.diags, errors.NewError(code, position(pos), format, args...))
	r.failed = true
}

func (r *reader) reset() {
	r.ctx = ir.NewContext(r.unit)
	r.fn = nil
	r.failed = false
	r.regs = make(map[string]ir.Register)
	r.decls = nil
	r.used = make(map[string]bool)
	r.labels = make(map[uint64]ir.LabelIndex)
	r.labelPos = make(map[uint64]lexer.Position)
	r.defined = make(map[uint64]bool)
}

func (r *reader) uint(pos lexer.Position, text string, bits int, what string) (uint64, bool) {
	v, err := strconv.ParseUint(text, 0, bits)
	if err != nil {
		r.errorf(pos, errors.ErrorInvalidOperands, "%s %q is not an unsigned %d bit integer", what, text, bits)
		return 0, false
	}
	return v, true
}

func (r *reader) constant(c *Constant) {
	r.failed = false
	size, ok1 := r.uint(c.Pos, c.Size, 32, "constant size")
	align, ok2 := r.uint(c.Pos, c.Align, 32, "constant alignment")
	if !ok1 || !ok2 {
		return
	}
	data := make([]byte, 0, len(c.Bytes))
	for _, b := range c.Bytes {
		v, ok := r.uint(c.Pos, b, 8, "constant byte")
		if !ok {
			return
		}
		data = append(data, byte(v))
	}

	var err error
	func() {
		defer errors.Recover(&err)
		r.unit.NewConstant(c.Name, data, uint32(size), uint32(align))
	}()
	if err != nil {
		r.errorf(c.Pos, errors.ErrorInvalidOperands, "constant %s rejected: %s", c.Name, err)
	}
}

func (r *reader) function(f *Function) {
	r.reset()
	profile := ir.ProfileGeneral
	if f.Kernel {
		profile = ir.ProfileOCL
	}

	var err error
	func() {
		defer errors.Recover(&err)
		r.fn = r.ctx.StartFunction(f.Name, profile)
		for _, s := range f.Statements {
			switch {
			case s.Decl != nil:
				r.decl(s.Decl)
			case s.Insn != nil:
				r.insn(s.Insn)
			}
		}
		r.checkLabels()
		if !r.failed {
			r.ctx.EndFunction()
		}
	}()
	if err != nil {
		r.diags = append(r.diags, errors.NewError(errors.ErrorInvalidFunction, position(f.Pos),
			"function %s rejected: %s", f.Name, err).WithLength(len(".decl_function")))
		r.failed = true
	}
	if r.failed {
		// a failed StartFunction leaves fn nil and the older function alone
		if r.fn != nil {
			r.unit.DeleteFunction(f.Name)
		}
		log.Debugf("dropped function %s", f.Name)
		return
	}
	r.warnUnused()
}

func (r *reader) checkLabels() {
	numbers := make([]uint64, 0, len(r.labels))
	for n := range r.labels {
		numbers = append(numbers, n)
	}
	sort.Slice(numbers, func(i, j int) bool { return numbers[i] < numbers[j] })
	for _, n := range numbers {
		if !r.defined[n] {
			r.diags = append(r.diags, errors.NewError(errors.ErrorInvalidFunction, position(r.labelPos[n]),
				"label $%d is never defined", n).WithHelp(fmt.Sprintf("add a LABEL $%d line", n)))
			r.failed = true
		}
	}
}

func (r *reader) warnUnused() {
	for _, d := range r.decls {
		name := strings.TrimPrefix(d.Reg, "%")
		if r.used[name] {
			continue
		}
		r.diags = append(r.diags, errors.NewWarning(errors.WarningUnusedRegister, position(d.Pos),
			"register %s is declared but never used", d.Reg).WithLength(len("decl_reg")))
	}
}

func (r *reader) register(pos lexer.Position, text string) (ir.Register, bool) {
	name := strings.TrimPrefix(text, "%")
	if reg, ok := r.regs[name]; ok {
		r.used[name] = true
		return reg, true
	}
	if reg, ok := r.fn.SpecialRegister(name); ok {
		return reg, true
	}
	r.diags = append(r.diags, errors.NewError(errors.ErrorUndeclaredRegister, position(pos),
		"register %s used before its decl_reg", text).WithLength(len(text)))
	r.failed = true
	return 0, false
}

func (r *reader) label(pos lexer.Position, text string) (ir.LabelIndex, uint64, bool) {
	n, ok := r.uint(pos, strings.TrimPrefix(text, "$"), 32, "label")
	if !ok {
		return 0, 0, false
	}
	l, seen := r.labels[n]
	if !seen {
		l = r.ctx.Label()
		r.labels[n] = l
		r.labelPos[n] = pos
	}
	return l, n, true
}

// Declarations

func (r *reader) decl(d *Decl) {
	switch {
	case d.Reg != nil:
		r.declReg(d.Reg)
	case d.Input != nil:
		r.declInput(d.Input)
	case d.Output != nil:
		if reg, ok := r.register(d.Output.Pos, d.Output.Reg); ok {
			r.ctx.Output(reg)
		}
	case d.Pushed != nil:
		r.declPushed(d.Pushed)
	case d.Loop != nil:
		r.declLoop(d.Loop)
	}
}

func (r *reader) declReg(d *DeclReg) {
	name := strings.TrimPrefix(d.Reg, "%")
	if _, exists := r.regs[name]; exists {
		r.errorf(d.Pos, errors.ErrorDuplicateRegister, "register %s declared twice", d.Reg)
		return
	}
	family, ok := ir.FamilyByName(d.Family)
	if !ok {
		r.errorf(d.Pos, errors.ErrorUnknownType, "unknown register family %q", d.Family)
		return
	}
	r.regs[name] = r.ctx.Reg(family, d.Uniform)
	r.decls = append(r.decls, d)
}

func (r *reader) declInput(d *DeclInput) {
	kind := strings.TrimPrefix(d.Kind, ".")
	argType, ok := ir.ArgTypeByName(kind)
	if !ok {
		r.errorf(d.Pos, errors.ErrorUnknownType, "unknown argument kind %q", kind)
		return
	}
	reg, ok := r.register(d.Pos, d.Reg)
	if !ok {
		return
	}
	arg := ir.FunctionArgument{Type: argType, Reg: reg, Name: d.Name}
	switch len(d.Attrs) {
	case 0:
	case 3:
		size, ok1 := r.uint(d.Pos, d.Attrs[0], 32, "argument size")
		align, ok2 := r.uint(d.Pos, d.Attrs[1], 32, "argument alignment")
		bti, ok3 := r.uint(d.Pos, d.Attrs[2], 8, "binding table index")
		if !ok1 || !ok2 || !ok3 {
			return
		}
		arg.Size, arg.Align, arg.BTI = uint32(size), uint32(align), uint8(bti)
	default:
		r.errorf(d.Pos, errors.ErrorInvalidOperands, "decl_input takes size, align and bti or nothing, got %d numbers", len(d.Attrs))
		return
	}
	r.ctx.Input(arg)
}

func (r *reader) declPushed(d *DeclPushed) {
	reg, ok := r.register(d.Pos, d.Reg)
	if !ok {
		return
	}
	arg, ok1 := r.uint(d.Pos, d.Arg, 32, "argument index")
	offset, ok2 := r.uint(d.Pos, d.Offset, 32, "argument offset")
	if !ok1 || !ok2 {
		return
	}
	r.ctx.AppendPushedConstant(reg, ir.PushLocation{ArgIndex: uint32(arg), Offset: uint32(offset)})
}

func (r *reader) declLoop(d *DeclLoop) {
	preheader, _, ok := r.label(d.Pos, d.Preheader)
	if !ok {
		return
	}
	parent, err := strconv.ParseInt(d.Parent, 0, 32)
	if err != nil {
		r.errorf(d.Pos, errors.ErrorInvalidOperands, "loop parent %q is not an integer", d.Parent)
		return
	}
	blocks := make([]ir.LabelIndex, 0, len(d.Blocks))
	for _, b := range d.Blocks {
		l, _, ok := r.label(d.Pos, b)
		if !ok {
			return
		}
		blocks = append(blocks, l)
	}
	if len(d.Exits)%2 != 0 {
		r.errorf(d.Pos, errors.ErrorInvalidOperands, "loop exits come in from/to pairs, got %d labels", len(d.Exits))
		return
	}
	exits := make([]ir.LoopExit, 0, len(d.Exits)/2)
	for i := 0; i < len(d.Exits); i += 2 {
		from, _, ok1 := r.label(d.Pos, d.Exits[i])
		to, _, ok2 := r.label(d.Pos, d.Exits[i+1])
		if !ok1 || !ok2 {
			return
		}
		exits = append(exits, ir.LoopExit{From: from, To: to})
	}
	r.ctx.AddLoop(preheader, int(parent), blocks, exits)
}

// Instructions

// modifierCounts lists the accepted number of .modifiers per class
var modifierCounts = map[ir.Class][]int{
	ir.ClassLabel:     {0},
	ir.ClassBranch:    {0},
	ir.ClassUnary:     {1},
	ir.ClassConvert:   {2},
	ir.ClassLoadImm:   {1},
	ir.ClassBinary:    {1},
	ir.ClassCompare:   {1},
	ir.ClassSelect:    {1},
	ir.ClassTernary:   {1},
	ir.ClassLoad:      {2, 3},
	ir.ClassStore:     {2, 3},
	ir.ClassBlockRead: {1},
	ir.ClassAtomic:    {3},
	ir.ClassSimdID:    {0},
	ir.ClassReadARF:   {1},
	ir.ClassNop:       {0},
}

func (r *reader) insn(in *Insn) {
	op, ok := ir.OpcodeByName(in.Opcode)
	if !ok {
		r.diags = append(r.diags, errors.NewError(errors.ErrorUnknownOpcode, position(in.Pos),
			"unknown opcode %s", in.Opcode).WithLength(len(in.Opcode)))
		r.failed = true
		return
	}
	mods := make([]string, len(in.Modifiers))
	for i, m := range in.Modifiers {
		mods[i] = strings.TrimPrefix(m, ".")
	}
	counts := modifierCounts[op.Class()]
	if !containsInt(counts, len(mods)) {
		r.errorf(in.Pos, errors.ErrorInvalidOperands, "%s takes %s modifiers, got %d", op, joinInts(counts), len(mods))
		return
	}
	if in.Predicate != nil && (!op.IsBranch() || op == ir.OpRet || op == ir.OpElse || op == ir.OpEndif) {
		r.errorf(in.Pos, errors.ErrorInvalidOperands, "%s cannot be predicated", op)
		return
	}

	o := &operands{r: r, in: in, ok: true}
	insn, ok := r.build(op, mods, o)
	if !ok || !o.finish() {
		return
	}
	r.ctx.Append(insn)
}

func (r *reader) typ(pos lexer.Position, name string) (ir.Type, bool) {
	t, ok := ir.TypeByName(name)
	if !ok {
		r.errorf(pos, errors.ErrorUnknownType, "unknown type %q", name)
	}
	return t, ok
}

func (r *reader) space(pos lexer.Position, name string) (ir.AddressSpace, bool) {
	s, ok := ir.AddressSpaceByName(name)
	if !ok {
		r.errorf(pos, errors.ErrorUnknownType, "unknown address space %q", name)
	}
	return s, ok
}

func (r *reader) memoryModifiers(in *Insn, mods []string) (ir.Type, ir.AddressSpace, bool, bool) {
	t, ok1 := r.typ(in.Pos, mods[0])
	space, ok2 := r.space(in.Pos, mods[1])
	aligned := false
	if len(mods) == 3 {
		if mods[2] != "aligned" {
			r.errorf(in.Pos, errors.ErrorUnknownOpcode, "unknown modifier .%s", mods[2])
			return 0, 0, false, false
		}
		aligned = true
	}
	return t, space, aligned, ok1 && ok2
}

func (r *reader) build(op ir.Opcode, mods []string, o *operands) (ir.Instruction, bool) {
	in := o.in
	switch op.Class() {
	case ir.ClassLabel:
		l, n, ok := o.label()
		if !ok {
			return ir.Instruction{}, false
		}
		if r.defined[n] {
			r.errorf(in.Pos, errors.ErrorInvalidOperands, "label $%d defined twice", n)
			return ir.Instruction{}, false
		}
		r.defined[n] = true
		return ir.NewLabel(l), true

	case ir.ClassBranch:
		return r.branch(op, o)

	case ir.ClassConvert:
		to, ok1 := r.typ(in.Pos, mods[0])
		from, ok2 := r.typ(in.Pos, mods[1])
		dst, src := o.reg(), o.reg()
		return ir.NewConvert(to, from, dst, src), ok1 && ok2

	case ir.ClassLoad, ir.ClassStore:
		t, space, aligned, ok := r.memoryModifiers(in, mods)
		if !ok {
			return ir.Instruction{}, false
		}
		if op == ir.OpLoad {
			values := o.group()
			addr := o.reg()
			return ir.NewLoad(t, space, aligned, o.bti(), addr, values), true
		}
		addr := o.reg()
		values := o.group()
		return ir.NewStore(t, space, aligned, o.bti(), addr, values), true

	case ir.ClassAtomic:
		atomic, ok := ir.AtomicOpByName(mods[0])
		if !ok {
			r.errorf(in.Pos, errors.ErrorUnknownOpcode, "unknown atomic operation %q", mods[0])
			return ir.Instruction{}, false
		}
		t, ok1 := r.typ(in.Pos, mods[1])
		space, ok2 := r.space(in.Pos, mods[2])
		dst, addr := o.reg(), o.reg()
		var values []ir.Register
		for o.peekRegister() {
			values = append(values, o.reg())
		}
		return ir.NewAtomic(atomic, t, space, o.bti(), dst, addr, values...), ok1 && ok2

	case ir.ClassSimdID:
		return ir.NewSimdID(o.reg()), true

	case ir.ClassNop:
		return ir.NewNop(), true
	}

	t, ok := r.typ(in.Pos, mods[0])
	if !ok {
		return ir.Instruction{}, false
	}
	switch op.Class() {
	case ir.ClassUnary:
		dst, src := o.reg(), o.reg()
		return ir.NewUnary(op, t, dst, src), true
	case ir.ClassLoadImm:
		dst := o.reg()
		imm, ok := o.immediate(t)
		if !ok {
			return ir.Instruction{}, false
		}
		return ir.NewLoadImm(t, dst, r.ctx.NewImmediate(imm)), true
	case ir.ClassBinary:
		dst, a, b := o.reg(), o.reg(), o.reg()
		return ir.NewBinary(op, t, dst, a, b), true
	case ir.ClassCompare:
		dst, a, b := o.reg(), o.reg(), o.reg()
		return ir.NewCompare(op, t, dst, a, b), true
	case ir.ClassSelect:
		dst, cond, a, b := o.reg(), o.reg(), o.reg(), o.reg()
		return ir.NewSelect(t, dst, cond, a, b), true
	case ir.ClassTernary:
		dst, a, b, c := o.reg(), o.reg(), o.reg(), o.reg()
		return ir.NewMad(t, dst, a, b, c), true
	case ir.ClassBlockRead:
		values := o.group()
		addr := o.reg()
		return ir.NewBlockRead(t, o.bti(), addr, values), true
	case ir.ClassReadARF:
		dst := o.reg()
		arf := o.attr("arf", 32)
		return ir.NewReadARF(t, dst, uint32(arf)), true
	}
	r.errorf(in.Pos, errors.ErrorUnknownOpcode, "%s cannot be written in text", op)
	return ir.Instruction{}, false
}

func (r *reader) branch(op ir.Opcode, o *operands) (ir.Instruction, bool) {
	in := o.in
	if op == ir.OpRet {
		return ir.NewReturn(), true
	}
	var pred ir.Register
	inverse := false
	if in.Predicate != nil {
		p, ok := r.register(in.Pos, in.Predicate.Reg)
		if !ok {
			return ir.Instruction{}, false
		}
		pred, inverse = p, in.Predicate.Inverse
	} else if op == ir.OpIf || op == ir.OpWhile {
		r.errorf(in.Pos, errors.ErrorInvalidOperands, "%s needs a predicate", op)
		return ir.Instruction{}, false
	}
	l, _, ok := o.label()
	if !ok {
		return ir.Instruction{}, false
	}

	var insn ir.Instruction
	switch op {
	case ir.OpBra:
		if in.Predicate == nil {
			return ir.NewBranch(l), true
		}
		return ir.NewBranchIf(pred, l, inverse), true
	case ir.OpIf:
		insn = ir.NewIf(pred, l)
	case ir.OpWhile:
		insn = ir.NewWhile(pred, l)
	case ir.OpElse:
		return ir.NewElse(l), true
	default:
		return ir.NewEndif(l), true
	}
	insn.InversePredicate = inverse
	return insn, true
}

// operands consumes the operands of one instruction in order. After the
// first mismatch every accessor returns zero values and reports nothing.
type operands struct {
	r    *reader
	in   *Insn
	next int
	ok   bool
}

func (o *operands) fail(pos lexer.Position, format string, args ...interface{}) {
	if o.ok {
		o.r.errorf(pos, errors.ErrorInvalidOperands, format, args...)
	}
	o.ok = false
}

func (o *operands) take(kind string) *Operand {
	if !o.ok {
		return nil
	}
	if o.next >= len(o.in.Operands) {
		o.fail(o.in.Pos, "%s is missing a %s operand", o.in.Opcode, kind)
		return nil
	}
	op := o.in.Operands[o.next]
	o.next++
	return op
}

func (o *operands) peekRegister() bool {
	return o.ok && o.next < len(o.in.Operands) && o.in.Operands[o.next].Register != nil
}

func (o *operands) reg() ir.Register {
	op := o.take("register")
	if op == nil {
		return 0
	}
	if op.Register == nil {
		o.fail(op.Pos, "expected a register")
		return 0
	}
	reg, ok := o.r.register(op.Pos, *op.Register)
	if !ok {
		o.ok = false
	}
	return reg
}

func (o *operands) group() []ir.Register {
	op := o.take("{register} group")
	if op == nil {
		return nil
	}
	if op.Group == nil {
		o.fail(op.Pos, "expected a {register} group")
		return nil
	}
	out := make([]ir.Register, 0, len(op.Group.Regs))
	for _, text := range op.Group.Regs {
		reg, ok := o.r.register(op.Pos, text)
		if !ok {
			o.ok = false
			return nil
		}
		out = append(out, reg)
	}
	return out
}

func (o *operands) label() (ir.LabelIndex, uint64, bool) {
	op := o.take("label")
	if op == nil {
		return 0, 0, false
	}
	text := op.Label
	if op.Target != nil {
		text = op.Target
	}
	if text == nil {
		o.fail(op.Pos, "expected a label")
		return 0, 0, false
	}
	l, n, ok := o.r.label(op.Pos, *text)
	if !ok {
		o.ok = false
	}
	return l, n, o.ok
}

func (o *operands) attr(key string, bits int) uint64 {
	op := o.take(key + ":")
	if op == nil {
		return 0
	}
	if op.Attr == nil || op.Attr.Key != key {
		o.fail(op.Pos, "expected %s:<number>", key)
		return 0
	}
	v, ok := o.r.uint(op.Pos, op.Attr.Value, bits, key)
	if !ok {
		o.ok = false
	}
	return v
}

func (o *operands) bti() uint8 { return uint8(o.attr("bti", 8)) }

func (o *operands) immediate(t ir.Type) (ir.Immediate, bool) {
	op := o.take("immediate")
	if op == nil {
		return ir.Immediate{}, false
	}
	if op.Number == nil {
		o.fail(op.Pos, "expected an immediate")
		return ir.Immediate{}, false
	}
	text := *op.Number
	if t == ir.TypeFloat || t == ir.TypeDouble {
		v, err := strconv.ParseFloat(text, 64)
		if err != nil && !isRangeError(err) {
			o.fail(op.Pos, "%q is not a %s", text, t)
			return ir.Immediate{}, false
		}
		return ir.NewFloatImmediate(t, v), true
	}
	if v, err := strconv.ParseInt(text, 0, 64); err == nil {
		return ir.NewIntImmediate(t, v), true
	}
	if v, err := strconv.ParseUint(text, 0, 64); err == nil && v > math.MaxInt64 {
		return ir.NewIntImmediate(t, int64(v)), true
	}
	o.fail(op.Pos, "%q is not a %s", text, t)
	return ir.Immediate{}, false
}

func (o *operands) finish() bool {
	if o.ok && o.next < len(o.in.Operands) {
		o.fail(o.in.Operands[o.next].Pos, "%s has %d extra operands", o.in.Opcode, len(o.in.Operands)-o.next)
	}
	return o.ok
}

func isRangeError(err error) bool {
	ne, ok := err.(*strconv.NumError)
	return ok && ne.Err == strconv.ErrRange
}

func containsInt(list []int, v int) bool {
	for _, x := range list {
		if x == v {
			return true
		}
	}
	return false
}

func joinInts(list []int) string {
	parts := make([]string, len(list))
	for i, v := range list {
		parts[i] = strconv.Itoa(v)
	}
	return strings.Join(parts, " or ")
}
