package ooo

import "fmt"

// Unit names the consumers that own static read ports on the register file.
type Unit uint8

// Register file read-port owners.
const (
	UnitALU Unit = iota
	UnitMulDiv
	UnitBranch
	UnitLSQ
	numUnits
)

// PortsPerUnit is the number of read ports statically assigned to a unit.
const PortsPerUnit = 2

func (u Unit) String() string {
	switch u {
	case UnitALU:
		return "alu"
	case UnitMulDiv:
		return "muldiv"
	case UnitBranch:
		return "branch"
	case UnitLSQ:
		return "lsq"
	default:
		return fmt.Sprintf("unit(%d)", uint8(u))
	}
}

// PRF is the physical register file: a value and a busy bit per register.
// It is written only through the single arbitrated broadcast.
type PRF struct {
	value []uint32
	busy  []bool

	// Per-cycle bookkeeping for invariant checks and port accounting.
	markedBusy []bool
	written    []bool
	reads      [numUnits]int
}

// NewPRF creates a register file of n registers, all ready and zero.
func NewPRF(n int) *PRF {
	return &PRF{
		value:      make([]uint32, n),
		busy:       make([]bool, n),
		markedBusy: make([]bool, n),
		written:    make([]bool, n),
	}
}

// Size returns the number of physical registers.
func (f *PRF) Size() int {
	return len(f.value)
}

// BeginCycle clears per-cycle port usage and the same-cycle hazard record.
func (f *PRF) BeginCycle() {
	clear(f.markedBusy)
	clear(f.written)
	f.reads = [numUnits]int{}
}

// Read returns the value of p through one of unit's read ports.
func (f *PRF) Read(unit Unit, p PReg) uint32 {
	if f.reads[unit] == PortsPerUnit {
		panic(fmt.Sprintf("ooo: %s read ports exhausted", unit))
	}
	f.reads[unit]++
	return f.value[p]
}

// Peek returns the value of p without using a port.
func (f *PRF) Peek(p PReg) uint32 {
	return f.value[p]
}

// IsReady reports whether p holds its final value.
func (f *PRF) IsReady(p PReg) bool {
	return !f.busy[p]
}

// SetBusy marks p as waiting for a producer. Marking a register busy in
// the cycle it is written is a scheduler bug.
func (f *PRF) SetBusy(p PReg) {
	if p == 0 {
		return
	}
	if f.written[p] {
		panic(fmt.Sprintf("ooo: p%d set busy and written in the same cycle", p))
	}
	f.busy[p] = true
	f.markedBusy[p] = true
}

// Write applies a broadcast: it stores the value and clears busy.
func (f *PRF) Write(b Broadcast) {
	if !b.Valid || !b.WriteEnable || b.PDst == 0 {
		return
	}
	if f.markedBusy[b.PDst] {
		panic(fmt.Sprintf("ooo: p%d set busy and written in the same cycle", b.PDst))
	}
	f.value[b.PDst] = b.Data
	f.busy[b.PDst] = false
	f.written[b.PDst] = true
}

// Poke sets a register value directly, for initial architectural state.
func (f *PRF) Poke(p PReg, v uint32) {
	if p != 0 {
		f.value[p] = v
	}
}

// ClearBusy drops a pending producer without writing, as rollback does.
func (f *PRF) ClearBusy(p PReg) {
	f.busy[p] = false
}

// Reset zeroes every register and clears busy.
func (f *PRF) Reset() {
	clear(f.value)
	clear(f.busy)
	f.BeginCycle()
}
