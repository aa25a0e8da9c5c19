// Package compiler drives a textual IR file through the backend core:
// reading, lowering, liveness, constant serialization and the kernel
// epilogue.
package compiler

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/tliron/commonlog"

	"gbe/internal/config"
	"gbe/internal/errors"
	"gbe/internal/gen"
	"gbe/internal/ir"
	"gbe/internal/irtext"
	"gbe/internal/liveness"
)

var log = commonlog.GetLogger("gbe.compiler")

// EpilogueRegister receives the thread payload copy sent with EOT
const EpilogueRegister = 127

// Result is everything a compilation produced
type Result struct {
	Unit     *ir.Unit
	Liveness map[string]*liveness.Liveness
	// Constants is the serialized constant set of the unit
	Constants []byte
	// Epilogues holds the encoded end of thread sequence of each kernel
	Epilogues   map[string][]byte
	Diagnostics []errors.CompilerError

	// Filled when the matching dump option is set
	IRDump       string
	LivenessDump string
	CFGFiles     []string
}

// HasErrors reports error-level diagnostics
func (r *Result) HasErrors() bool { return errors.HasErrors(r.Diagnostics) }

// CompileFile compiles the file at path
func CompileFile(cfg *config.Config, path string) (*Result, error) {
	source, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	return Compile(cfg, path, string(source))
}

// Compile reads source and runs every function it defines through the
// core. Reader problems come back as diagnostics; an internal compiler
// error aborts the compilation and is returned as err.
func Compile(cfg *config.Config, filename, source string) (result *Result, err error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	defer errors.Recover(&err)

	unit := ir.NewUnit(ir.PointerSize(cfg.PointerSize))
	unit.Valid = cfg.StrictValidation
	res := &Result{
		Unit:      unit,
		Liveness:  make(map[string]*liveness.Liveness),
		Epilogues: make(map[string][]byte),
	}
	res.Diagnostics = irtext.Read(unit, filename, source)

	opts := liveness.Options{LoopCarried: cfg.LoopCarriedLiveness}
	for _, fn := range unit.Functions() {
		lv := liveness.Compute(fn, opts)
		res.Liveness[fn.Name] = lv
		log.Debugf("liveness of %s converged after %d iterations", fn.Name, lv.Iterations())
		if fn.Profile == ir.ProfileOCL {
			res.Epilogues[fn.Name] = Epilogue(cfg.SIMDWidth)
		}
	}

	var blob bytes.Buffer
	if _, err := unit.Constants().SerializeToBin(&blob); err != nil {
		return nil, fmt.Errorf("serialize constants: %w", err)
	}
	res.Constants = blob.Bytes()

	if err := res.dump(cfg); err != nil {
		return nil, err
	}
	log.Infof("compiled %s: %d functions, %d constants, %d diagnostics",
		filename, len(unit.Functions()), unit.Constants().Len(), len(res.Diagnostics))
	return res, nil
}

func (r *Result) dump(cfg *config.Config) error {
	if cfg.DumpIR {
		r.IRDump = ir.Print(r.Unit)
	}
	if cfg.DumpLiveness {
		var b strings.Builder
		for _, fn := range r.Unit.Functions() {
			if err := r.Liveness[fn.Name].Print(&b); err != nil {
				return err
			}
		}
		r.LivenessDump = b.String()
	}
	if cfg.DumpCFGDir != "" {
		if err := os.MkdirAll(cfg.DumpCFGDir, 0o755); err != nil {
			return fmt.Errorf("create cfg dump directory: %w", err)
		}
		for _, fn := range r.Unit.Functions() {
			path, err := ir.DumpCFG(cfg.DumpCFGDir, fn)
			if err != nil {
				return err
			}
			r.CFGFiles = append(r.CFGFiles, path)
		}
	}
	return nil
}

// Epilogue encodes the end of a kernel thread: copy the thread payload in
// g0 to EpilogueRegister and send it to the spawner.
func Epilogue(simdWidth uint32) []byte {
	e := gen.NewEncoder(simdWidth)
	e.Push()
	e.Curr.ExecWidth = 8
	e.Curr.NoMask = true
	e.MOV(gen.UD8(EpilogueRegister, 0), gen.UD8(0, 0))
	e.Pop()
	e.EOT(EpilogueRegister)
	return e.Bytes()
}
