package ir

// Profile selects the set of registers a function starts with
type Profile uint8

const (
	// ProfileGeneral functions start with an empty register file
	ProfileGeneral Profile = iota
	// ProfileOCL kernels start with the work-item special registers
	ProfileOCL
)

func (p Profile) String() string {
	if p == ProfileOCL {
		return "kernel"
	}
	return "general"
}

type specialRegister struct {
	name    string
	family  Family
	uniform bool
}

// lane ids differ per lane, everything else is shared by the thread
var oclSpecialRegisters = []specialRegister{
	{"lid0", FamilyDWord, false},
	{"lid1", FamilyDWord, false},
	{"lid2", FamilyDWord, false},
	{"groupid0", FamilyDWord, true},
	{"groupid1", FamilyDWord, true},
	{"groupid2", FamilyDWord, true},
	{"numgroup0", FamilyDWord, true},
	{"numgroup1", FamilyDWord, true},
	{"numgroup2", FamilyDWord, true},
	{"lsize0", FamilyDWord, true},
	{"lsize1", FamilyDWord, true},
	{"lsize2", FamilyDWord, true},
	{"gsize0", FamilyDWord, true},
	{"gsize1", FamilyDWord, true},
	{"gsize2", FamilyDWord, true},
	{"goffset0", FamilyDWord, true},
	{"goffset1", FamilyDWord, true},
	{"goffset2", FamilyDWord, true},
	{"workdim", FamilyDWord, true},
	{"stackptr", FamilyDWord, false},
	{"stackbuffer", FamilyDWord, true},
	{"zero", FamilyDWord, true},
	{"one", FamilyDWord, true},
	{"retVal", FamilyWord, false},
}

func (fn *Function) initProfile() {
	if fn.Profile != ProfileOCL {
		return
	}
	for _, sr := range oclSpecialRegisters {
		fn.specials[sr.name] = fn.file.Append(sr.family, sr.uniform)
	}
}

// SpecialRegister resolves a profile register by name
func (fn *Function) SpecialRegister(name string) (Register, bool) {
	r, ok := fn.specials[name]
	return r, ok
}

// SpecialName returns the profile name of r, or "" for ordinary registers
func (fn *Function) SpecialName(r Register) string {
	if fn.Profile != ProfileOCL || int(r) >= len(oclSpecialRegisters) {
		return ""
	}
	return oclSpecialRegisters[r].name
}

// IsSpecialRegister reports profile registers
func (fn *Function) IsSpecialRegister(r Register) bool { return fn.SpecialName(r) != "" }
