// Package liveness computes per-block live register sets and classifies
// registers whose value is the same on every SIMD lane.
package liveness

import (
	"fmt"
	"io"
	"strings"

	"github.com/tliron/commonlog"

	"gbe/internal/ir"
)

var log = commonlog.GetLogger("gbe.liveness")

// BlockInfo holds the sets of one block. UpwardUsed doubles as the live-in
// set once the analysis finished.
type BlockInfo struct {
	Block      *ir.BasicBlock
	UpwardUsed *ir.RegisterSet
	LiveOut    *ir.RegisterSet
	VarKill    *ir.RegisterSet
}

// LiveIn returns the registers live at block entry
func (bi *BlockInfo) LiveIn() *ir.RegisterSet { return bi.UpwardUsed }

// Options tune the analysis
type Options struct {
	// LoopCarried keeps values used after a loop live through the whole loop
	LoopCarried bool
}

// Liveness is the result of the analysis over one function
type Liveness struct {
	fn         *ir.Function
	infos      []*BlockInfo
	extentRegs *ir.RegisterSet
	iterations int
}

// Compute runs the analysis on fn. fn must have its CFG built. Uniform
// registers discovered on the way are marked in the register file of fn.
func Compute(fn *ir.Function, opts Options) *Liveness {
	l := &Liveness{fn: fn, extentRegs: ir.NewRegisterSet()}
	for _, bb := range fn.Blocks() {
		l.infos = append(l.infos, l.initBlock(bb))
	}
	l.computeLiveInOut()
	if opts.LoopCarried {
		l.computeExtraLiveInOut()
	}
	promoted := l.analyzeUniform()
	log.Debugf("liveness of %s: %d blocks, %d work items, %d extended, %d uniform promoted",
		fn.Name, len(l.infos), l.iterations, l.extentRegs.Len(), promoted)
	return l
}

// Function returns the analyzed function
func (l *Liveness) Function() *ir.Function { return l.fn }

// BlockInfo returns the sets of block b
func (l *Liveness) BlockInfo(b ir.BlockIndex) *BlockInfo { return l.infos[b] }

// LiveIn returns the registers live at entry of block b
func (l *Liveness) LiveIn(b ir.BlockIndex) *ir.RegisterSet { return l.infos[b].UpwardUsed }

// LiveOut returns the registers live at exit of block b
func (l *Liveness) LiveOut(b ir.BlockIndex) *ir.RegisterSet { return l.infos[b].LiveOut }

// ExtendedRegisters returns registers kept live across whole loops
func (l *Liveness) ExtendedRegisters() *ir.RegisterSet { return l.extentRegs }

// Iterations returns how many blocks the dataflow solver processed
func (l *Liveness) Iterations() int { return l.iterations }

func (l *Liveness) initBlock(bb *ir.BasicBlock) *BlockInfo {
	info := &BlockInfo{
		Block:      bb,
		UpwardUsed: ir.NewRegisterSet(),
		LiveOut:    bb.LiveOut.Clone(),
		VarKill:    ir.NewRegisterSet(),
	}
	l.fn.ForEachInsn(bb, func(insn *ir.Instruction) {
		for _, r := range insn.Src {
			if !info.VarKill.Contains(r) {
				info.UpwardUsed.Add(r)
			}
		}
		for _, r := range insn.Dst {
			info.VarKill.Add(r)
		}
	})
	return info
}

// workQueue is a FIFO of blocks holding each block at most once
type workQueue struct {
	items  []*BlockInfo
	queued map[*BlockInfo]bool
}

func (q *workQueue) push(info *BlockInfo) {
	if q.queued[info] {
		return
	}
	q.queued[info] = true
	q.items = append(q.items, info)
}

func (q *workQueue) pop() *BlockInfo {
	info := q.items[0]
	q.items = q.items[1:]
	delete(q.queued, info)
	return info
}

func (q *workQueue) empty() bool { return len(q.items) == 0 }

func (l *Liveness) computeLiveInOut() {
	unvisited := make(map[*BlockInfo]bool, len(l.infos))
	for _, info := range l.infos {
		unvisited[info] = true
	}
	queue := &workQueue{queued: make(map[*BlockInfo]bool)}

	for len(unvisited) > 0 {
		if queue.empty() {
			// seed from the end of the function, liveness flows backward
			for i := len(l.infos) - 1; i >= 0; i-- {
				if unvisited[l.infos[i]] {
					queue.push(l.infos[i])
				}
			}
		}
		for !queue.empty() {
			info := queue.pop()
			delete(unvisited, info)
			l.iterations++

			for _, r := range info.LiveOut.Slice() {
				if !info.VarKill.Contains(r) {
					info.UpwardUsed.Add(r)
				}
			}
			for _, p := range info.Block.Predecessors {
				prev := l.infos[p]
				changed := false
				for _, r := range info.UpwardUsed.Slice() {
					if prev.Block.UndefPhiRegs.Contains(r) {
						continue
					}
					if prev.LiveOut.Add(r) {
						changed = true
					}
				}
				if changed {
					queue.push(prev)
				}
			}
		}
	}
}

// computeExtraLiveInOut forces values consumed after a loop exit to stay
// live in every block of the loop, unless they were already live before
// the loop started.
func (l *Liveness) computeExtraLiveInOut() {
	for _, loop := range l.fn.Loops {
		preheader := l.infos[l.fn.BlockOf(loop.Preheader).Index()]
		for _, e := range loop.Exits {
			exiting := l.infos[l.fn.BlockOf(e.From).Index()]
			exit := l.infos[l.fn.BlockOf(e.To).Index()]

			var candidates []ir.Register
			if len(exit.Block.Predecessors) <= 1 {
				candidates = exit.UpwardUsed.Slice()
			} else {
				for _, r := range exit.UpwardUsed.Slice() {
					if exiting.LiveOut.Contains(r) {
						candidates = append(candidates, r)
					}
				}
			}
			var extend []ir.Register
			for _, r := range candidates {
				if !preheader.LiveOut.Contains(r) {
					extend = append(extend, r)
				}
			}
			if len(extend) == 0 {
				continue
			}
			for _, label := range loop.Blocks {
				info := l.infos[l.fn.BlockOf(label).Index()]
				for _, r := range extend {
					l.extentRegs.Add(r)
					info.UpwardUsed.Add(r)
					info.LiveOut.Add(r)
				}
			}
		}
	}
}

// RemoveRegs drops regs from every live-in and live-out set
func (l *Liveness) RemoveRegs(regs *ir.RegisterSet) {
	for _, info := range l.infos {
		for _, r := range regs.Slice() {
			info.LiveOut.Remove(r)
			info.UpwardUsed.Remove(r)
		}
	}
}

// ReplaceRegs renames registers in every set. A renamed register live at a
// block exit becomes phi-defined there, which keeps it non-uniform.
func (l *Liveness) ReplaceRegs(renames map[ir.Register]ir.Register) {
	for _, info := range l.infos {
		bb := info.Block
		for from, to := range renames {
			if info.LiveOut.Remove(from) {
				info.LiveOut.Add(to)
				bb.DefinedPhiRegs.Add(to)
			}
			if info.UpwardUsed.Remove(from) {
				info.UpwardUsed.Add(to)
			}
			if info.VarKill.Remove(from) {
				info.VarKill.Add(to)
			}
			if bb.UndefPhiRegs.Remove(from) {
				bb.UndefPhiRegs.Add(to)
			}
		}
	}
}

// Print writes the live sets of every block
func (l *Liveness) Print(w io.Writer) error {
	var b strings.Builder
	fmt.Fprintf(&b, "liveness of %s\n", l.fn.Name)
	for i, info := range l.infos {
		fmt.Fprintf(&b, "  bb %d\n", i)
		fmt.Fprintf(&b, "    in:   %s\n", info.UpwardUsed)
		fmt.Fprintf(&b, "    out:  %s\n", info.LiveOut)
		fmt.Fprintf(&b, "    kill: %s\n", info.VarKill)
	}
	if l.extentRegs.Len() > 0 {
		fmt.Fprintf(&b, "  loop carried: %s\n", l.extentRegs)
	}
	_, err := io.WriteString(w, b.String())
	return err
}

func (l *Liveness) String() string {
	var b strings.Builder
	_ = l.Print(&b)
	return b.String()
}
