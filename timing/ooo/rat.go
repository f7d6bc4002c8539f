package ooo

// RAT is the register alias table mapping architectural registers to
// physical registers. x0 always maps to p0.
type RAT struct {
	table [ArchRegs]PReg
}

// NewRAT creates an alias table with the identity mapping rN -> pN.
func NewRAT() *RAT {
	r := &RAT{}
	r.Reset()
	return r
}

// Lookup returns the physical register currently mapped to reg.
func (r *RAT) Lookup(reg uint8) PReg {
	return r.table[reg&(ArchRegs-1)]
}

// Set maps reg to p. Writes to x0 are ignored.
func (r *RAT) Set(reg uint8, p PReg) {
	if reg == 0 {
		return
	}
	r.table[reg&(ArchRegs-1)] = p
}

// Snapshot returns a copy of the mapping.
func (r *RAT) Snapshot() [ArchRegs]PReg {
	return r.table
}

// Reset restores the identity mapping.
func (r *RAT) Reset() {
	for i := range r.table {
		r.table[i] = PReg(i)
	}
}
