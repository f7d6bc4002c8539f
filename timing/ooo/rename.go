package ooo

// Renamer owns the renaming state: the speculative alias table, the
// committed alias table, the free list and the register file.
type Renamer struct {
	RAT  *RAT
	Arch *RAT
	Free *FreeList
	PRF  *PRF
}

// Renaming is the outcome of renaming one instruction.
type Renaming struct {
	Src1, Src2 PReg
	// NewPDst is the allocated destination, or p0 when the instruction
	// writes x0.
	NewPDst PReg
	// StalePDst is the mapping NewPDst replaced.
	StalePDst PReg
}

// NewRenamer creates renaming state for n physical registers.
func NewRenamer(n int) *Renamer {
	return &Renamer{
		RAT:  NewRAT(),
		Arch: NewRAT(),
		Free: NewFreeList(n),
		PRF:  NewPRF(n),
	}
}

// CanRename reports whether an instruction writing rd can be renamed now.
func (r *Renamer) CanRename(rd uint8) bool {
	return rd == 0 || r.Free.CanAllocate()
}

// Rename maps the sources through the alias table and, for a non-x0
// destination, allocates a new register and marks it busy. Callers check
// CanRename first; the source lookup happens before the destination is
// remapped so that "add x1, x1, x1" reads the previous producer.
func (r *Renamer) Rename(rs1, rs2, rd uint8) Renaming {
	out := Renaming{Src1: r.RAT.Lookup(rs1), Src2: r.RAT.Lookup(rs2)}
	if rd == 0 {
		return out
	}
	p, ok := r.Free.Allocate()
	if !ok {
		panic("ooo: rename without a free register")
	}
	out.NewPDst = p
	out.StalePDst = r.RAT.Lookup(rd)
	r.RAT.Set(rd, p)
	r.PRF.SetBusy(p)
	return out
}

// Commit retires an entry: the stale mapping is freed and the committed
// alias table follows the new one.
func (r *Renamer) Commit(e *ROBEntry) {
	if e.LogicalDst == 0 {
		return
	}
	r.Arch.Set(e.LogicalDst, e.NewPDst)
	r.Free.Release(e.StalePDst)
}

// OnRollback undoes the renaming of one rolled-back entry.
func (r *Renamer) OnRollback(rec RollbackRecord) {
	if rec.LogicalDst == 0 || rec.NewPDst == 0 {
		return
	}
	r.RAT.Set(rec.LogicalDst, rec.StalePDst)
	r.PRF.ClearBusy(rec.NewPDst)
	r.Free.Restore(rec.NewPDst)
}

// ArchValue returns the committed value of an architectural register.
func (r *Renamer) ArchValue(reg uint8) uint32 {
	return r.PRF.Peek(r.Arch.Lookup(reg))
}

// Reset restores the identity mapping with every register ready and zero.
func (r *Renamer) Reset() {
	r.RAT.Reset()
	r.Arch.Reset()
	r.Free.Reset()
	r.PRF.Reset()
}
