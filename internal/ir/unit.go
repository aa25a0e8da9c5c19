package ir

import "gbe/internal/errors"

// PointerSize is the width of global addresses in bits
type PointerSize uint8

const (
	Pointer32 PointerSize = 32
	Pointer64 PointerSize = 64
)

// Unit is one compilation unit: named functions plus the constant set
type Unit struct {
	PointerSize PointerSize
	// Valid enables well-formedness checks on every appended instruction
	Valid bool

	functions map[string]*Function
	order     []string
	constants ConstantSet
}

// NewUnit creates an empty unit
func NewUnit(pointerSize PointerSize) *Unit {
	return &Unit{
		PointerSize: pointerSize,
		Valid:       true,
		functions:   make(map[string]*Function),
	}
}

// NewFunction registers a new function. It returns false when the name is
// already taken.
func (u *Unit) NewFunction(name string, profile Profile) (*Function, bool) {
	if _, exists := u.functions[name]; exists {
		return nil, false
	}
	fn := newFunction(name, u, profile)
	u.functions[name] = fn
	u.order = append(u.order, name)
	return fn, true
}

// Function looks a function up by name
func (u *Unit) Function(name string) *Function { return u.functions[name] }

// Functions returns every function in creation order
func (u *Unit) Functions() []*Function {
	out := make([]*Function, 0, len(u.order))
	for _, name := range u.order {
		out = append(out, u.functions[name])
	}
	return out
}

// DeleteFunction drops a function, typically one whose construction failed
func (u *Unit) DeleteFunction(name string) {
	if _, ok := u.functions[name]; !ok {
		return
	}
	delete(u.functions, name)
	for i, n := range u.order {
		if n == name {
			u.order = append(u.order[:i], u.order[i+1:]...)
			break
		}
	}
}

// Constants returns the constant set of the unit
func (u *Unit) Constants() *ConstantSet { return &u.constants }

// NewConstant appends a named constant to the unit constant set
func (u *Unit) NewConstant(name string, data []byte, size, align uint32) Constant {
	_, exists := u.constants.Lookup(name)
	errors.Assert(!exists, errors.ErrorDuplicateConstant, "constant %s already defined", name)
	return u.constants.Append(name, data, size, align)
}
