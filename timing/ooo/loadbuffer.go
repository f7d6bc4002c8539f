package ooo

import (
	"fmt"
	"math/bits"
)

// LoadEntry is one load in the load buffer.
type LoadEntry struct {
	Tag  int
	PDst PReg

	AddrPReg  PReg
	AddrReady bool
	AddrVal   uint32
	Imm       uint32

	// SQSnapshot is the store-queue tail when the load was dispatched;
	// stores in [SQ head, SQSnapshot) are older than the load.
	SQSnapshot Ptr

	Addr         uint32
	AddrComputed bool
	AddrResolved bool

	Sleeping bool
	WakeTag  int

	// Issued is set once the request is with memory; ReqID matches the
	// response.
	Issued bool
	ReqID  uint64

	Width    int
	Unsigned bool
}

// Checkable reports whether the load is a disambiguation candidate.
func (e *LoadEntry) Checkable() bool {
	return e.AddrResolved && !e.Sleeping && !e.Issued
}

// LoadBuffer is the unordered pool of in-flight loads.
type LoadBuffer struct {
	entries []LoadEntry
	valid   uint64
}

// NewLoadBuffer creates an empty load buffer of n slots.
func NewLoadBuffer(n int) *LoadBuffer {
	if n <= 0 || n > MaxIssueBufferSize {
		panic(fmt.Sprintf("ooo: load buffer size %d out of range", n))
	}
	return &LoadBuffer{entries: make([]LoadEntry, n)}
}

// Len returns the number of loads.
func (l *LoadBuffer) Len() int { return bits.OnesCount64(l.valid) }

// Full reports whether no slot is free.
func (l *LoadBuffer) Full() bool { return l.Len() == len(l.entries) }

// Push stores e in the lowest free slot.
func (l *LoadBuffer) Push(e LoadEntry) int {
	if l.Full() {
		panic("ooo: load buffer full")
	}
	slot := bits.TrailingZeros64(^l.valid)
	l.entries[slot] = e
	l.valid |= 1 << slot
	return slot
}

// Live reports whether slot holds a load.
func (l *LoadBuffer) Live(slot int) bool {
	return l.valid&(1<<slot) != 0
}

// At returns the load in slot.
func (l *LoadBuffer) At(slot int) *LoadEntry { return &l.entries[slot] }

// Remove frees slot.
func (l *LoadBuffer) Remove(slot int) {
	l.entries[slot] = LoadEntry{}
	l.valid &^= 1 << slot
}

// FindRequest returns the slot of the issued load waiting for id.
func (l *LoadBuffer) FindRequest(id uint64) (int, bool) {
	for v := l.valid; v != 0; v &= v - 1 {
		slot := bits.TrailingZeros64(v)
		if e := &l.entries[slot]; e.Issued && e.ReqID == id {
			return slot, true
		}
	}
	return 0, false
}

// Each calls fn for every load in slot order until fn returns false.
func (l *LoadBuffer) Each(fn func(slot int, e *LoadEntry) bool) {
	for v := l.valid; v != 0; v &= v - 1 {
		slot := bits.TrailingZeros64(v)
		if !fn(slot, &l.entries[slot]) {
			return
		}
	}
}

// Wake clears the sleeping state of every load waiting on tag.
func (l *LoadBuffer) Wake(tag int) int {
	n := 0
	l.Each(func(_ int, e *LoadEntry) bool {
		if e.Sleeping && e.WakeTag == tag {
			e.Sleeping = false
			n++
		}
		return true
	})
	return n
}

// Capture applies a broadcast to loads waiting on their base register.
func (l *LoadBuffer) Capture(b Broadcast) {
	if !b.Valid || !b.WriteEnable {
		return
	}
	l.Each(func(_ int, e *LoadEntry) bool {
		if !e.AddrReady && b.Writes(e.AddrPReg) {
			e.AddrReady, e.AddrVal = true, b.Data
		}
		return true
	})
}

// Flush drops every load the signal kills.
func (l *LoadBuffer) Flush(f Flush) int {
	if !f.Valid {
		return 0
	}
	n := 0
	for v := l.valid; v != 0; v &= v - 1 {
		slot := bits.TrailingZeros64(v)
		if f.Kills(l.entries[slot].Tag) {
			l.Remove(slot)
			n++
		}
	}
	return n
}

// Reset empties the buffer.
func (l *LoadBuffer) Reset() {
	clear(l.entries)
	l.valid = 0
}
