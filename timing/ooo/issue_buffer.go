package ooo

import (
	"fmt"
	"math/bits"
)

// MaxIssueBufferSize bounds buffers so that occupancy fits one bitmap word.
const MaxIssueBufferSize = 64

// IssueEntry is a reservation-station entry carrying a unit-specific
// payload.
type IssueEntry[T any] struct {
	Tag        int
	PDst       PReg
	Src1, Src2 PReg
	Src1Ready  bool
	Src2Ready  bool
	Imm        uint32
	UseImm     bool
	Info       T
}

// Ready reports whether both operands are available.
func (e *IssueEntry[T]) Ready() bool {
	return e.Src1Ready && e.Src2Ready
}

func (e *IssueEntry[T]) wake(b Broadcast) {
	if b.Writes(e.Src1) {
		e.Src1Ready = true
	}
	if b.Writes(e.Src2) {
		e.Src2Ready = true
	}
}

// IssueBuffer is an unordered reservation station. Occupancy and
// readiness are tracked in bitmaps; select picks the lowest ready slot,
// which is not program order.
type IssueBuffer[T any] struct {
	name    string
	entries []IssueEntry[T]
	valid   uint64
}

// NewIssueBuffer creates an empty buffer of n slots.
func NewIssueBuffer[T any](name string, n int) *IssueBuffer[T] {
	if n <= 0 || n > MaxIssueBufferSize {
		panic(fmt.Sprintf("ooo: issue buffer %s: size %d out of range", name, n))
	}
	return &IssueBuffer[T]{name: name, entries: make([]IssueEntry[T], n)}
}

// Name returns the buffer name.
func (b *IssueBuffer[T]) Name() string { return b.name }

// Len returns the number of occupied slots.
func (b *IssueBuffer[T]) Len() int { return bits.OnesCount64(b.valid) }

// Cap returns the number of slots.
func (b *IssueBuffer[T]) Cap() int { return len(b.entries) }

// CanEnqueue reports whether a slot is free.
func (b *IssueBuffer[T]) CanEnqueue() bool {
	return b.Len() < len(b.entries)
}

func (b *IssueBuffer[T]) freeMask() uint64 {
	all := uint64(1)<<len(b.entries) - 1
	if len(b.entries) == 64 {
		all = ^uint64(0)
	}
	return all &^ b.valid
}

// Enqueue stores e in the lowest free slot. The broadcast driven in the
// same cycle is matched against the new entry's sources so a producer
// completing while its consumer enqueues is not missed.
func (b *IssueBuffer[T]) Enqueue(e IssueEntry[T], bc Broadcast) int {
	free := b.freeMask()
	if free == 0 {
		panic(fmt.Sprintf("ooo: issue buffer %s full", b.name))
	}
	slot := bits.TrailingZeros64(free)
	e.wake(bc)
	b.entries[slot] = e
	b.valid |= 1 << slot
	return slot
}

// Wakeup matches the broadcast against every occupied entry.
func (b *IssueBuffer[T]) Wakeup(bc Broadcast) {
	if !bc.Valid || !bc.WriteEnable {
		return
	}
	for v := b.valid; v != 0; v &= v - 1 {
		b.entries[bits.TrailingZeros64(v)].wake(bc)
	}
}

func (b *IssueBuffer[T]) readyMask() uint64 {
	var m uint64
	for v := b.valid; v != 0; v &= v - 1 {
		slot := bits.TrailingZeros64(v)
		if b.entries[slot].Ready() {
			m |= 1 << slot
		}
	}
	return m
}

// HasReady reports whether Select would return an entry.
func (b *IssueBuffer[T]) HasReady() bool {
	return b.readyMask() != 0
}

// Select removes and returns the ready entry in the lowest slot.
func (b *IssueBuffer[T]) Select() (IssueEntry[T], bool) {
	return b.SelectWhere(nil)
}

// SelectWhere is Select restricted to entries the unit can take this
// cycle. A nil accept takes any ready entry.
func (b *IssueBuffer[T]) SelectWhere(accept func(e *IssueEntry[T]) bool) (IssueEntry[T], bool) {
	for m := b.readyMask(); m != 0; m &= m - 1 {
		slot := bits.TrailingZeros64(m)
		if accept != nil && !accept(&b.entries[slot]) {
			continue
		}
		e := b.entries[slot]
		b.entries[slot] = IssueEntry[T]{}
		b.valid &^= 1 << slot
		return e, true
	}
	return IssueEntry[T]{}, false
}

// Flush invalidates every entry the signal kills and returns how many.
func (b *IssueBuffer[T]) Flush(f Flush) int {
	if !f.Valid {
		return 0
	}
	n := 0
	for v := b.valid; v != 0; v &= v - 1 {
		slot := bits.TrailingZeros64(v)
		if f.Kills(b.entries[slot].Tag) {
			b.entries[slot] = IssueEntry[T]{}
			b.valid &^= 1 << slot
			n++
		}
	}
	return n
}

// Each calls fn for every occupied slot in slot order.
func (b *IssueBuffer[T]) Each(fn func(slot int, e *IssueEntry[T])) {
	for v := b.valid; v != 0; v &= v - 1 {
		slot := bits.TrailingZeros64(v)
		fn(slot, &b.entries[slot])
	}
}

// Reset empties the buffer.
func (b *IssueBuffer[T]) Reset() {
	clear(b.entries)
	b.valid = 0
}
