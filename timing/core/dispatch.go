package core

import (
	"github.com/sarchlab/boomsim/insts"
	"github.com/sarchlab/boomsim/timing/frontend"
	"github.com/sarchlab/boomsim/timing/ooo"
)

// dispatch renames the oldest fetched instruction and places it in the
// reorder buffer and its issue buffer or load/store queue. Every resource
// is checked before anything is allocated, so an instruction either
// dispatches completely or stays in the fetch queue.
func (c *Core) dispatch(b ooo.Broadcast) {
	if c.rob.State() != ooo.ROBNormal {
		c.stats.RollbackStalls++
		return
	}
	if c.halting {
		return
	}
	fi := c.fetch.Peek()
	if fi == nil {
		c.stats.FetchEmptyStalls++
		return
	}
	if !c.canDispatch(fi.Inst) {
		return
	}

	inst := fi.Inst
	n := c.renamer.Rename(inst.Rs1, inst.Rs2, inst.Rd)
	tag, _ := c.rob.Dispatch(ooo.ROBEntry{
		LogicalDst: inst.Rd,
		NewPDst:    n.NewPDst,
		StalePDst:  n.StalePDst,
		IsStore:    inst.IsStore,
		PC:         fi.PC,
		Halt:       inst.IsHalt(),
		Illegal:    inst.Op == insts.OpIllegal,
	})
	c.route(fi, tag, n, b)
	c.fetch.Pop()
}

func (c *Core) canDispatch(inst *insts.Instruction) bool {
	switch {
	case !c.rob.CanDispatch():
		c.stats.ROBFullStalls++
		return false
	case !c.renamer.CanRename(inst.Rd):
		c.stats.FreeListEmptyStalls++
		return false
	}

	var ok bool
	switch inst.FU {
	case insts.FUMulDiv:
		ok = c.mulIB.CanEnqueue()
	case insts.FUBranch:
		ok = c.brIB.CanEnqueue()
	case insts.FUMem:
		if inst.IsStore {
			ok = c.lsq.CanDispatchStore()
		} else {
			ok = c.lsq.CanDispatchLoad()
		}
		if !ok {
			c.stats.LSQFullStalls++
		}
		return ok
	default:
		ok = c.aluIB.CanEnqueue()
	}
	if !ok {
		c.stats.IssueBufferFullStalls++
	}
	return ok
}

// route writes the renamed instruction into the structure of its
// functional-unit class. Source readiness comes from the register file,
// which already reflects this cycle's broadcast.
func (c *Core) route(fi *frontend.FetchedInst, tag int, n ooo.Renaming, b ooo.Broadcast) {
	inst := fi.Inst
	prf := c.renamer.PRF

	switch inst.FU {
	case insts.FUMem:
		c.routeMem(inst, tag, n)
	case insts.FUMulDiv:
		c.mulIB.Enqueue(ooo.IssueEntry[ooo.MulDivInfo]{
			Tag: tag, PDst: n.NewPDst,
			Src1: n.Src1, Src2: n.Src2,
			Src1Ready: prf.IsReady(n.Src1), Src2Ready: prf.IsReady(n.Src2),
			Info: ooo.MulDivInfo{Op: inst.Op},
		}, b)
	case insts.FUBranch:
		c.brIB.Enqueue(ooo.IssueEntry[ooo.BranchInfo]{
			Tag: tag, PDst: n.NewPDst,
			Src1: n.Src1, Src2: n.Src2,
			Src1Ready: prf.IsReady(n.Src1), Src2Ready: prf.IsReady(n.Src2),
			Imm: uint32(inst.Imm), UseImm: inst.UseImm,
			Info: ooo.BranchInfo{
				Op:         inst.Op,
				PC:         fi.PC,
				PredTaken:  fi.PredTaken,
				PredTarget: fi.PredTarget,
				RASPointer: fi.RASPointer,
				Imm:        inst.Imm,
			},
		}, b)
	default:
		c.aluIB.Enqueue(ooo.IssueEntry[ooo.ALUInfo]{
			Tag: tag, PDst: n.NewPDst,
			Src1: n.Src1, Src2: n.Src2,
			Src1Ready: prf.IsReady(n.Src1), Src2Ready: prf.IsReady(n.Src2),
			Imm: uint32(inst.Imm), UseImm: inst.UseImm,
			Info: ooo.ALUInfo{Op: inst.Op, PC: fi.PC},
		}, b)
	}
}

// routeMem enqueues a load or store, capturing any operand that is already
// available through the queue's register-file ports.
func (c *Core) routeMem(inst *insts.Instruction, tag int, n ooo.Renaming) {
	prf := c.renamer.PRF
	capture := func(p ooo.PReg) (bool, uint32) {
		if !prf.IsReady(p) {
			return false, 0
		}
		return true, prf.Read(ooo.UnitLSQ, p)
	}

	addrReady, addrVal := capture(n.Src1)
	if inst.IsStore {
		dataReady, dataVal := capture(n.Src2)
		c.lsq.DispatchStore(ooo.StoreEntry{
			Tag:      tag,
			AddrPReg: n.Src1, AddrReady: addrReady, AddrVal: addrVal,
			DataPReg: n.Src2, DataReady: dataReady, DataVal: dataVal,
			Imm:      uint32(inst.Imm),
			Width:    int(inst.Width),
			Unsigned: inst.Unsigned,
		})
		return
	}
	c.lsq.DispatchLoad(ooo.LoadEntry{
		Tag:      tag,
		PDst:     n.NewPDst,
		AddrPReg: n.Src1, AddrReady: addrReady, AddrVal: addrVal,
		Imm:      uint32(inst.Imm),
		Width:    int(inst.Width),
		Unsigned: inst.Unsigned,
	})
}
