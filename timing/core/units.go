package core

import (
	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/insts"
	"github.com/sarchlab/boomsim/timing/ooo"
)

// resolution is the outcome of a control-transfer instruction.
type resolution struct {
	pc         uint32
	op         insts.Op
	taken      bool
	target     uint32
	mispredict bool
	rasPointer int
	// signaled is set once the outcome has redirected fetch or confirmed
	// the prediction; the result may wait longer for the broadcast.
	signaled bool
}

// nextPC returns the resolved address of the following instruction.
func (r *resolution) nextPC() uint32 {
	if r.taken {
		return r.target
	}
	return r.pc + 4
}

// op is an executing instruction. Values are computed when it issues; the
// unit only delays the result.
type op struct {
	valid     bool
	tag       int
	pdst      ooo.PReg
	data      uint32
	remaining uint64

	isBranch bool
	branch   resolution
}

func (o *op) broadcast() ooo.Broadcast {
	return ooo.Broadcast{
		Valid:       true,
		Tag:         o.tag,
		PDst:        o.pdst,
		Data:        o.data,
		WriteEnable: o.pdst != 0,
	}
}

// unit is a functional unit: a pipeline of fixed depth, an optional
// non-pipelined iterative stage, and one output register waiting for the
// broadcast channel.
type unit struct {
	name  string
	depth uint64
	pipe  []op
	iter  op
	out   op
}

func newUnit(name string, depth uint64) *unit {
	if depth == 0 {
		depth = 1
	}
	return &unit{name: name, depth: depth}
}

// canPipeline reports whether a pipelined operation can enter this cycle.
func (u *unit) canPipeline() bool {
	return uint64(len(u.pipe)) < u.depth
}

// canIterate reports whether the iterative stage is free.
func (u *unit) canIterate() bool {
	return !u.iter.valid
}

func (u *unit) startPipelined(o op) {
	o.valid, o.remaining = true, u.depth
	u.pipe = append(u.pipe, o)
}

func (u *unit) startIterative(o op, cycles uint64) {
	o.valid, o.remaining = true, cycles
	u.iter = o
}

// advance moves every operation one cycle on. At most one finished
// operation enters the output register; the iterative stage goes first.
func (u *unit) advance() {
	if u.iter.valid && u.iter.remaining > 0 {
		u.iter.remaining--
	}
	for i := range u.pipe {
		if u.pipe[i].remaining > 0 {
			u.pipe[i].remaining--
		}
	}

	if u.out.valid {
		return
	}
	switch {
	case u.iter.valid && u.iter.remaining == 0:
		u.out, u.iter = u.iter, op{}
	case len(u.pipe) > 0 && u.pipe[0].remaining == 0:
		u.out = u.pipe[0]
		u.pipe = u.pipe[1:]
	}
}

// flush drops every killed operation, the output register included.
func (u *unit) flush(f ooo.Flush) int {
	n := 0
	kept := u.pipe[:0]
	for _, o := range u.pipe {
		if f.Kills(o.tag) {
			n++
			continue
		}
		kept = append(kept, o)
	}
	u.pipe = kept
	if u.iter.valid && f.Kills(u.iter.tag) {
		u.iter = op{}
		n++
	}
	if u.out.valid && f.Kills(u.out.tag) {
		u.out = op{}
		n++
	}
	return n
}

func (u *unit) idle() bool {
	return len(u.pipe) == 0 && !u.iter.valid && !u.out.valid
}

func (u *unit) reset() {
	u.pipe = u.pipe[:0]
	u.iter, u.out = op{}, op{}
}

// executeALU computes an integer result. ECALL passes a0 through as the
// exit code; EBREAK produces -1.
func executeALU(e *ooo.IssueEntry[ooo.ALUInfo], a, b uint32) uint32 {
	switch e.Info.Op {
	case insts.OpECALL:
		return a
	case insts.OpEBREAK:
		return 0xFFFFFFFF
	case insts.OpIllegal, insts.OpFENCE:
		return 0
	default:
		return emu.ALU(e.Info.Op, a, b, e.Info.PC)
	}
}

// executeBranch resolves a control transfer against its prediction. The
// result value is the link address.
func executeBranch(info *ooo.BranchInfo, a, b uint32) (uint32, resolution) {
	res := resolution{
		pc:         info.PC,
		op:         info.Op,
		taken:      emu.BranchTaken(info.Op, a, b),
		target:     emu.BranchTarget(info.Op, info.PC, a, info.Imm),
		rasPointer: info.RASPointer,
	}
	predicted := info.PC + 4
	if info.PredTaken {
		predicted = info.PredTarget
	}
	res.mispredict = predicted != res.nextPC()
	return info.PC + 4, res
}
