package ooo

import "fmt"

// PReg is a physical register id. p0 is hardwired to zero and always ready.
type PReg uint16

// ArchRegs is the number of architectural integer registers.
const ArchRegs = 32

// FreeList is the FIFO pool of unallocated physical registers.
type FreeList struct {
	q    *Queue[PReg]
	free []bool
}

// NewFreeList creates a free list for n physical registers. Registers
// p0..p31 start out mapped by the alias table; the rest are free.
func NewFreeList(n int) *FreeList {
	if n <= ArchRegs {
		panic(fmt.Sprintf("ooo: need more than %d physical registers, got %d", ArchRegs, n))
	}
	f := &FreeList{
		q:    NewQueue[PReg](n - ArchRegs),
		free: make([]bool, n),
	}
	f.Reset()
	return f
}

// Len returns the number of free registers.
func (f *FreeList) Len() int {
	return f.q.Len()
}

// CanAllocate reports whether a register is available.
func (f *FreeList) CanAllocate() bool {
	return !f.q.Empty()
}

// Allocate takes the oldest free register.
func (f *FreeList) Allocate() (PReg, bool) {
	if f.q.Empty() {
		return 0, false
	}
	p := f.q.PopHead()
	f.free[p] = false
	return p, true
}

// Release returns a register at the tail, as commit does with a stale
// mapping.
func (f *FreeList) Release(p PReg) {
	f.check(p)
	f.q.Push(p)
	f.free[p] = true
}

// Restore returns a register at the head. Rollback walks from the
// youngest allocation back, so restoring at the head recreates the order
// the registers were allocated in.
func (f *FreeList) Restore(p PReg) {
	f.check(p)
	f.q.PushHead(p)
	f.free[p] = true
}

func (f *FreeList) check(p PReg) {
	if p == 0 {
		panic("ooo: p0 released to the free list")
	}
	if f.free[p] {
		panic(fmt.Sprintf("ooo: p%d released twice", p))
	}
}

// Contains reports whether p is free.
func (f *FreeList) Contains(p PReg) bool {
	return int(p) < len(f.free) && f.free[p]
}

// Snapshot returns the free registers in allocation order.
func (f *FreeList) Snapshot() []PReg {
	out := make([]PReg, 0, f.q.Len())
	f.q.Each(func(_ Ptr, p *PReg) bool {
		out = append(out, *p)
		return true
	})
	return out
}

// Reset frees p32 and above.
func (f *FreeList) Reset() {
	f.q.Reset()
	clear(f.free)
	for p := ArchRegs; p < len(f.free); p++ {
		f.q.Push(PReg(p))
		f.free[p] = true
	}
}
