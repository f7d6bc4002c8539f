package core

import (
	"fmt"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/insts"
	"github.com/sarchlab/boomsim/timing/ooo"
)

// Tick executes one cycle.
//
// The cycle's inputs are resolved first: a mispredicted branch waiting in
// the branch unit's output register produces the flush signal, which is
// applied to every buffer and pipeline register before anything reads
// them, and the broadcast channel is then arbitrated among the surviving
// results. Every structure then updates itself from the state it had at
// the start of the cycle plus those two inputs:
//
//  1. issue selects from ready bits set in earlier cycles
//  2. commit retires the head if it was ready before this cycle
//  3. the broadcast writes the register file and wakes consumers
//  4. one rollback step walks the reorder buffer back
//  5. dispatch renames one instruction, unless a flush was raised
//  6. functional units, the load/store queue, fetch and memory advance
func (c *Core) Tick() {
	if c.halted {
		return
	}
	c.cycle++
	c.stats.Cycles++
	c.renamer.PRF.BeginCycle()

	flush := c.resolveBranch()
	if flush.Valid {
		c.applyFlush(flush)
	}

	b := c.arbitrate()

	c.issue()
	c.commit()
	c.applyBroadcast(b)

	if c.rob.State() == ooo.ROBRollingBack {
		c.stats.RollbackCycles++
		c.rob.RollbackStep()
	}

	if !flush.Valid {
		c.dispatch(b)
	}

	c.alu.advance()
	c.mulDiv.advance()
	c.branch.advance()
	c.lsq.Tick()
	c.fetch.Tick()
	c.mem.Tick(c.cycle)

	if c.halting && c.lsq.SQ.Empty() && c.mem.Idle() {
		c.mem.Flush()
		c.halted = true
	}
}

// resolveBranch acts on a branch outcome that has just reached the branch
// unit's output register: it trains the predictor and, on a
// misprediction, redirects fetch and starts the rollback. The returned
// flush keeps the branch and kills everything younger.
func (c *Core) resolveBranch() ooo.Flush {
	out := &c.branch.out
	if !out.valid || out.branch.signaled {
		return ooo.NoFlush
	}
	res := &out.branch
	res.signaled = true
	c.stats.Branches++
	if isTrained(res.op) {
		c.fetch.Predictor().Update(res.pc, res.taken, res.target)
	}
	if !res.mispredict {
		return ooo.NoFlush
	}

	c.stats.Mispredictions++
	f := c.rob.Flush(out.tag)
	c.rob.Mispredict(out.tag)
	c.fetch.Redirect(res.nextPC(), res.rasPointer)
	c.log.V(1).Info("Branch: Mispredict", "tag", out.tag, "pc", res.pc, "target", res.nextPC())
	return f
}

func (c *Core) applyFlush(f ooo.Flush) {
	c.aluIB.Flush(f)
	c.mulIB.Flush(f)
	c.brIB.Flush(f)
	c.alu.flush(f)
	c.mulDiv.flush(f)
	c.branch.flush(f)
	c.lsq.Flush(f)
}

// arbitrate grants the broadcast channel to one completed result and
// consumes it from its source.
func (c *Core) arbitrate() ooo.Broadcast {
	var (
		requests [numSources]bool
		offers   [numSources]ooo.Broadcast
	)
	for i, u := range []*unit{c.alu, c.mulDiv, c.branch} {
		if u.out.valid {
			requests[i], offers[i] = true, u.out.broadcast()
		}
	}
	offers[srcLoad], requests[srcLoad] = c.lsq.LoadBroadcast()
	offers[srcStore], requests[srcStore] = c.lsq.StoreBroadcast()

	winner := c.cdb.Arbitrate(requests[:])
	switch winner {
	case -1:
		return ooo.Broadcast{}
	case srcALU:
		c.alu.out = op{}
	case srcMulDiv:
		c.mulDiv.out = op{}
	case srcBranch:
		c.branch.out = op{}
	case srcLoad:
		c.lsq.GrantLoad()
	case srcStore:
		c.lsq.GrantStore()
	}
	return offers[winner]
}

// issue sends at most one ready entry from each issue buffer to its unit.
func (c *Core) issue() {
	prf := c.renamer.PRF

	if c.alu.canPipeline() {
		if e, ok := c.aluIB.Select(); ok {
			a := prf.Read(ooo.UnitALU, e.Src1)
			b := prf.Read(ooo.UnitALU, e.Src2)
			if e.UseImm {
				b = e.Imm
			}
			c.alu.startPipelined(op{tag: e.Tag, pdst: e.PDst, data: executeALU(&e, a, b)})
		}
	}

	e, ok := c.mulIB.SelectWhere(func(e *ooo.IssueEntry[ooo.MulDivInfo]) bool {
		if emu.IsDivide(e.Info.Op) {
			return c.mulDiv.canIterate()
		}
		return c.mulDiv.canPipeline()
	})
	if ok {
		a := prf.Read(ooo.UnitMulDiv, e.Src1)
		b := prf.Read(ooo.UnitMulDiv, e.Src2)
		o := op{tag: e.Tag, pdst: e.PDst, data: emu.MulDiv(e.Info.Op, a, b)}
		if emu.IsDivide(e.Info.Op) {
			signed := e.Info.Op == insts.OpDIV || e.Info.Op == insts.OpREM
			c.mulDiv.startIterative(o, c.latency.DivideLatency(a, signed))
		} else {
			c.mulDiv.startPipelined(o)
		}
	}

	if c.branch.canPipeline() {
		if e, ok := c.brIB.Select(); ok {
			a := prf.Read(ooo.UnitBranch, e.Src1)
			b := prf.Read(ooo.UnitBranch, e.Src2)
			link, res := executeBranch(&e.Info, a, b)
			c.branch.startPipelined(op{tag: e.Tag, pdst: e.PDst, data: link, isBranch: true, branch: res})
		}
	}
}

// commit retires the reorder-buffer head if it was ready before this
// cycle's broadcast.
func (c *Core) commit() {
	tag, e, ok := c.rob.Commit()
	if !ok {
		return
	}
	c.renamer.Commit(&e)
	if e.IsStore {
		c.lsq.Commit(tag)
	}
	c.stats.Instructions++
	c.lastCommit = c.cycle
	if c.traceCommits {
		c.trace = append(c.trace, e.PC)
	}
	c.log.V(1).Info("ROB: Commit", "tag", tag, "pc", e.PC, "rd", e.LogicalDst, "pdst", e.NewPDst)

	switch {
	case e.Illegal:
		c.err = fmt.Errorf("%w at pc 0x%08x", ErrIllegalInstruction, e.PC)
		c.exitCode = -1
		c.halt()
	case e.Halt:
		c.exitCode = int64(int32(e.Value))
		c.halt()
	}
}

// halt stops fetch; the core reports halted once committed stores drain.
func (c *Core) halt() {
	c.halting = true
	c.fetch.Stop()
}

func (c *Core) applyBroadcast(b ooo.Broadcast) {
	if !b.Valid {
		return
	}
	c.renamer.PRF.Write(b)
	c.rob.Broadcast(b)
	c.aluIB.Wakeup(b)
	c.mulIB.Wakeup(b)
	c.brIB.Wakeup(b)
	c.lsq.Broadcast(b)
}
