package ooo

import "github.com/sarchlab/boomsim/insts"

// ALUInfo is the issue payload of the integer unit.
type ALUInfo struct {
	Op insts.Op
	PC uint32
}

// MulDivInfo is the issue payload of the multiply/divide unit.
type MulDivInfo struct {
	Op insts.Op
}

// BranchInfo is the issue payload of the branch unit. RASPointer is the
// return-address stack pointer fetch saw, replayed unmodified on redirect.
type BranchInfo struct {
	Op         insts.Op
	PC         uint32
	PredTaken  bool
	PredTarget uint32
	RASPointer int
	// Imm is the branch offset; the entry's own immediate feeds the ALU
	// operand select of JALR.
	Imm int32
}
