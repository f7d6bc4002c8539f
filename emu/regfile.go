// Package emu provides functional RV32IM emulation. It is the golden
// reference model the out-of-order core is checked against, and it owns
// the flat memory both models run on.
package emu

// RegFile represents the RV32 integer register file.
type RegFile struct {
	// X holds x0-x31. X[0] is hard-wired to zero.
	X [32]uint32

	// PC is the program counter.
	PC uint32
}

// ReadReg reads a register value. x0 always reads as 0.
func (r *RegFile) ReadReg(reg uint8) uint32 {
	if reg == 0 || reg >= 32 {
		return 0
	}
	return r.X[reg]
}

// WriteReg writes a register value. Writes to x0 are discarded.
func (r *RegFile) WriteReg(reg uint8, value uint32) {
	if reg == 0 || reg >= 32 {
		return
	}
	r.X[reg] = value
}
