package emu

import (
	"github.com/sarchlab/boomsim/insts"
)

// ALU computes integer and upper-immediate operations. b is the second
// operand after immediate selection; pc is only used by AUIPC.
func ALU(op insts.Op, a, b, pc uint32) uint32 {
	switch op {
	case insts.OpADD:
		return a + b
	case insts.OpSUB:
		return a - b
	case insts.OpSLL:
		return a << (b & 0x1F)
	case insts.OpSLT:
		if int32(a) < int32(b) {
			return 1
		}
		return 0
	case insts.OpSLTU:
		if a < b {
			return 1
		}
		return 0
	case insts.OpXOR:
		return a ^ b
	case insts.OpSRL:
		return a >> (b & 0x1F)
	case insts.OpSRA:
		return uint32(int32(a) >> (b & 0x1F))
	case insts.OpOR:
		return a | b
	case insts.OpAND:
		return a & b
	case insts.OpLUI:
		return b
	case insts.OpAUIPC:
		return pc + b
	default:
		return 0
	}
}

// MulDiv computes the M extension. Division by zero and signed overflow
// follow the RISC-V convention instead of trapping.
func MulDiv(op insts.Op, a, b uint32) uint32 {
	switch op {
	case insts.OpMUL:
		return uint32(int32(a) * int32(b))
	case insts.OpMULH:
		return uint32((int64(int32(a)) * int64(int32(b))) >> 32)
	case insts.OpMULHSU:
		return uint32((int64(int32(a)) * int64(b)) >> 32)
	case insts.OpMULHU:
		return uint32((uint64(a) * uint64(b)) >> 32)
	case insts.OpDIV:
		switch {
		case b == 0:
			return 0xFFFFFFFF
		case int32(a) == -0x80000000 && int32(b) == -1:
			return a
		default:
			return uint32(int32(a) / int32(b))
		}
	case insts.OpDIVU:
		if b == 0 {
			return 0xFFFFFFFF
		}
		return a / b
	case insts.OpREM:
		switch {
		case b == 0:
			return a
		case int32(a) == -0x80000000 && int32(b) == -1:
			return 0
		default:
			return uint32(int32(a) % int32(b))
		}
	case insts.OpREMU:
		if b == 0 {
			return a
		}
		return a % b
	default:
		return 0
	}
}

// IsDivide reports whether op runs on the iterative divider.
func IsDivide(op insts.Op) bool {
	return op == insts.OpDIV || op == insts.OpDIVU || op == insts.OpREM || op == insts.OpREMU
}

// BranchTaken evaluates a conditional branch. Jumps are always taken.
func BranchTaken(op insts.Op, a, b uint32) bool {
	switch op {
	case insts.OpBEQ:
		return a == b
	case insts.OpBNE:
		return a != b
	case insts.OpBLT:
		return int32(a) < int32(b)
	case insts.OpBGE:
		return int32(a) >= int32(b)
	case insts.OpBLTU:
		return a < b
	case insts.OpBGEU:
		return a >= b
	case insts.OpJAL, insts.OpJALR:
		return true
	default:
		return false
	}
}

// BranchTarget returns the taken target of a control-transfer instruction.
// JALR clears the lowest bit of the computed address.
func BranchTarget(op insts.Op, pc, a uint32, imm int32) uint32 {
	if op == insts.OpJALR {
		return (a + uint32(imm)) &^ 1
	}
	return pc + uint32(imm)
}

// Extend sign- or zero-extends the low width bytes of v.
func Extend(v uint32, width int, unsigned bool) uint32 {
	switch width {
	case 1:
		if unsigned {
			return v & 0xFF
		}
		return uint32(int32(int8(v)))
	case 2:
		if unsigned {
			return v & 0xFFFF
		}
		return uint32(int32(int16(v)))
	default:
		return v
	}
}
