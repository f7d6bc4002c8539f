package frontend

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/insts"
)

// DefaultQueueDepth is the default number of fetched instructions buffered
// ahead of dispatch.
const DefaultQueueDepth = 4

// FetchedInst is one decoded instruction with its prediction.
type FetchedInst struct {
	Inst *insts.Instruction
	PC   uint32

	PredTaken  bool
	PredTarget uint32
	// RASPointer is the stack pointer after this instruction's own push
	// or pop; a redirect from this instruction restores it.
	RASPointer int
}

// NextPC returns the predicted address of the following instruction.
func (f *FetchedInst) NextPC() uint32 {
	if f.PredTaken {
		return f.PredTarget
	}
	return f.PC + 4
}

// FetchStats holds fetch statistics.
type FetchStats struct {
	Fetched   uint64
	Redirects uint64
	// QueueFullCycles counts cycles fetch stalled on a full queue.
	QueueFullCycles uint64
	RASHits         uint64
}

// Fetcher fetches and decodes one instruction per cycle along the
// predicted path. It stops after a halting or illegal instruction until
// it is redirected.
type Fetcher struct {
	memory  *emu.Memory
	decoder *insts.Decoder
	bp      *Predictor
	ras     *RAS
	queue   sim.Buffer

	pc      uint32
	stopped bool
	stats   FetchStats
}

// NewFetcher creates a fetcher reading instructions from memory.
func NewFetcher(memory *emu.Memory, depth int, config PredictorConfig) *Fetcher {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Fetcher{
		memory:  memory,
		decoder: insts.NewDecoder(),
		bp:      NewPredictor(config),
		ras:     NewRAS(config.RASDepth),
		queue:   sim.NewBuffer("Frontend.FetchQueue", depth),
	}
}

// Predictor returns the branch predictor, trained by the core at branch
// resolution.
func (f *Fetcher) Predictor() *Predictor { return f.bp }

// RAS returns the return-address stack.
func (f *Fetcher) RAS() *RAS { return f.ras }

// PC returns the next fetch address.
func (f *Fetcher) PC() uint32 { return f.pc }

// SetPC sets the next fetch address and restarts a stopped fetcher.
func (f *Fetcher) SetPC(pc uint32) {
	f.pc = pc
	f.stopped = false
}

// Stopped reports whether fetch is waiting for a redirect.
func (f *Fetcher) Stopped() bool { return f.stopped }

// Stats returns fetch statistics.
func (f *Fetcher) Stats() FetchStats { return f.stats }

// Peek returns the oldest fetched instruction, or nil.
func (f *Fetcher) Peek() *FetchedInst {
	if item := f.queue.Peek(); item != nil {
		return item.(*FetchedInst)
	}
	return nil
}

// Pop removes the oldest fetched instruction.
func (f *Fetcher) Pop() *FetchedInst {
	if item := f.queue.Pop(); item != nil {
		return item.(*FetchedInst)
	}
	return nil
}

// Len returns the number of queued instructions.
func (f *Fetcher) Len() int { return f.queue.Size() }

// Redirect discards the queued wrong-path instructions and restarts fetch
// at pc with the return-address stack pointer the resolving branch saw.
func (f *Fetcher) Redirect(pc uint32, rasPointer int) {
	f.queue.Clear()
	f.ras.Restore(rasPointer)
	f.pc = pc
	f.stopped = false
	f.stats.Redirects++
}

// Stop halts fetch, as a committed halt does.
func (f *Fetcher) Stop() {
	f.queue.Clear()
	f.stopped = true
}

// Tick fetches one instruction.
func (f *Fetcher) Tick() {
	if f.stopped {
		return
	}
	if !f.queue.CanPush() {
		f.stats.QueueFullCycles++
		return
	}

	inst := f.decoder.Decode(f.memory.Read32(f.pc))
	fi := &FetchedInst{Inst: inst, PC: f.pc}
	f.predict(fi)
	fi.RASPointer = f.ras.Pointer()

	f.queue.Push(fi)
	f.stats.Fetched++
	f.pc = fi.NextPC()

	if inst.Op == insts.OpIllegal || inst.IsHalt() {
		f.stopped = true
	}
}

func (f *Fetcher) predict(fi *FetchedInst) {
	inst := fi.Inst
	switch {
	case inst.IsConditional():
		pred := f.bp.Predict(fi.PC)
		fi.PredTaken = pred.Taken
		fi.PredTarget = fi.PC + uint32(inst.Imm)
	case inst.Op == insts.OpJAL:
		fi.PredTaken, fi.PredTarget = true, fi.PC+uint32(inst.Imm)
	case inst.Op == insts.OpJALR:
		if inst.IsReturn() {
			if addr, ok := f.ras.Pop(); ok {
				fi.PredTaken, fi.PredTarget = true, addr
				f.stats.RASHits++
				break
			}
		}
		if pred := f.bp.Predict(fi.PC); pred.TargetKnown {
			fi.PredTaken, fi.PredTarget = true, pred.Target
		}
	}

	if inst.IsCall() {
		f.ras.Push(fi.PC + 4)
	}
}

// Reset empties the queue and predictor state and restarts fetch at PC 0.
func (f *Fetcher) Reset() {
	f.queue.Clear()
	f.bp.Reset()
	f.ras.Reset()
	f.pc = 0
	f.stopped = false
	f.stats = FetchStats{}
}
