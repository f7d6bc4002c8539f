// Package insts provides RV32IM instruction definitions and decoding.
package insts

import "fmt"

// Op represents a RISC-V operation subtype.
type Op uint8

// RV32IM operations.
const (
	OpIllegal Op = iota

	// Integer computation (ALU).
	OpADD
	OpSUB
	OpSLL
	OpSLT
	OpSLTU
	OpXOR
	OpSRL
	OpSRA
	OpOR
	OpAND
	OpLUI
	OpAUIPC
	OpFENCE
	OpECALL
	OpEBREAK

	// M extension (Mult/Div).
	OpMUL
	OpMULH
	OpMULHSU
	OpMULHU
	OpDIV
	OpDIVU
	OpREM
	OpREMU

	// Control transfer (Branch).
	OpBEQ
	OpBNE
	OpBLT
	OpBGE
	OpBLTU
	OpBGEU
	OpJAL
	OpJALR

	// Memory.
	OpLB
	OpLH
	OpLW
	OpLBU
	OpLHU
	OpSB
	OpSH
	OpSW
)

var opNames = map[Op]string{
	OpIllegal: "illegal",
	OpADD:     "add", OpSUB: "sub", OpSLL: "sll", OpSLT: "slt", OpSLTU: "sltu",
	OpXOR: "xor", OpSRL: "srl", OpSRA: "sra", OpOR: "or", OpAND: "and",
	OpLUI: "lui", OpAUIPC: "auipc", OpFENCE: "fence", OpECALL: "ecall", OpEBREAK: "ebreak",
	OpMUL: "mul", OpMULH: "mulh", OpMULHSU: "mulhsu", OpMULHU: "mulhu",
	OpDIV: "div", OpDIVU: "divu", OpREM: "rem", OpREMU: "remu",
	OpBEQ: "beq", OpBNE: "bne", OpBLT: "blt", OpBGE: "bge", OpBLTU: "bltu", OpBGEU: "bgeu",
	OpJAL: "jal", OpJALR: "jalr",
	OpLB: "lb", OpLH: "lh", OpLW: "lw", OpLBU: "lbu", OpLHU: "lhu",
	OpSB: "sb", OpSH: "sh", OpSW: "sw",
}

// String returns the assembler mnemonic of the operation.
func (o Op) String() string {
	if name, ok := opNames[o]; ok {
		return name
	}
	return fmt.Sprintf("op(%d)", uint8(o))
}

// FUType selects the functional-unit class an instruction is routed to.
type FUType uint8

// Functional-unit classes.
const (
	FUALU FUType = iota
	FUMulDiv
	FUBranch
	FUMem
)

func (f FUType) String() string {
	switch f {
	case FUALU:
		return "alu"
	case FUMulDiv:
		return "muldiv"
	case FUBranch:
		return "branch"
	case FUMem:
		return "mem"
	default:
		return fmt.Sprintf("fu(%d)", uint8(f))
	}
}

// Format represents an instruction encoding format.
type Format uint8

// Instruction formats.
const (
	FormatUnknown Format = iota
	FormatR
	FormatI
	FormatS
	FormatB
	FormatU
	FormatJ
)

// Width is the access size of a memory operation in bytes.
type Width uint8

// Memory access widths.
const (
	WidthByte Width = 1
	WidthHalf Width = 2
	WidthWord Width = 4
)

// Well-known architectural registers.
const (
	RegZero uint8 = 0
	RegRA   uint8 = 1
	RegSP   uint8 = 2
	RegT0   uint8 = 5
	RegA0   uint8 = 10
	RegA7   uint8 = 17
)

// Instruction is a decoded RV32IM instruction: the fixed micro-op record the
// core renames and dispatches. Registers an instruction does not use are x0,
// which renames to the always-ready physical register p0.
type Instruction struct {
	Op     Op
	FU     FUType
	Format Format

	Rd  uint8 // Destination register; 0 when nothing is written
	Rs1 uint8
	Rs2 uint8

	Imm    int32 // Sign-extended immediate
	UseImm bool  // Second ALU operand is Imm instead of Rs2

	IsLoad   bool
	IsStore  bool
	Width    Width
	Unsigned bool

	// Word is the raw 32-bit instruction word.
	Word uint32
}

// IsBranch returns true for conditional branches and jumps.
func (i *Instruction) IsBranch() bool {
	return i.FU == FUBranch
}

// IsConditional returns true for B-type conditional branches.
func (i *Instruction) IsConditional() bool {
	return i.Format == FormatB
}

// IsCall returns true for jumps that link into ra or t0.
func (i *Instruction) IsCall() bool {
	return (i.Op == OpJAL || i.Op == OpJALR) && (i.Rd == RegRA || i.Rd == RegT0)
}

// IsReturn returns true for the canonical function return (jalr x0, 0(ra)).
func (i *Instruction) IsReturn() bool {
	return i.Op == OpJALR && i.Rd == RegZero && (i.Rs1 == RegRA || i.Rs1 == RegT0)
}

// IsHalt returns true for instructions that stop the machine when committed.
func (i *Instruction) IsHalt() bool {
	return i.Op == OpECALL || i.Op == OpEBREAK
}

// Decoder decodes RISC-V machine code into instructions.
type Decoder struct{}

// NewDecoder creates a new RV32IM instruction decoder.
func NewDecoder() *Decoder {
	return &Decoder{}
}

// Decode decodes a 32-bit RISC-V instruction word. Words that are not valid
// RV32IM encodings decode to OpIllegal; the decoder never fails, because a
// wrong-path fetch may legitimately see garbage.
func (d *Decoder) Decode(word uint32) *Instruction {
	inst := &Instruction{Op: OpIllegal, FU: FUALU, Word: word}

	opcode := word & 0x7F
	funct3 := (word >> 12) & 0x7
	funct7 := (word >> 25) & 0x7F
	rd := uint8((word >> 7) & 0x1F)
	rs1 := uint8((word >> 15) & 0x1F)
	rs2 := uint8((word >> 20) & 0x1F)

	switch opcode {
	case 0x37: // LUI
		inst.Op, inst.Format = OpLUI, FormatU
		inst.Rd, inst.Imm, inst.UseImm = rd, immU(word), true
	case 0x17: // AUIPC
		inst.Op, inst.Format = OpAUIPC, FormatU
		inst.Rd, inst.Imm, inst.UseImm = rd, immU(word), true
	case 0x6F: // JAL
		inst.Op, inst.FU, inst.Format = OpJAL, FUBranch, FormatJ
		inst.Rd, inst.Imm = rd, immJ(word)
	case 0x67: // JALR
		if funct3 != 0 {
			return inst
		}
		inst.Op, inst.FU, inst.Format = OpJALR, FUBranch, FormatI
		inst.Rd, inst.Rs1, inst.Imm, inst.UseImm = rd, rs1, immI(word), true
	case 0x63:
		d.decodeBranch(word, funct3, rs1, rs2, inst)
	case 0x03:
		d.decodeLoad(word, funct3, rd, rs1, inst)
	case 0x23:
		d.decodeStore(word, funct3, rs1, rs2, inst)
	case 0x13:
		d.decodeOpImm(word, funct3, funct7, rd, rs1, inst)
	case 0x33:
		d.decodeOp(funct3, funct7, rd, rs1, rs2, inst)
	case 0x0F: // FENCE: a no-op on a single in-order memory port
		inst.Op, inst.Format = OpFENCE, FormatI
	case 0x73:
		d.decodeSystem(word, inst)
	}

	return inst
}

func (d *Decoder) decodeBranch(word, funct3 uint32, rs1, rs2 uint8, inst *Instruction) {
	ops := [8]Op{OpBEQ, OpBNE, OpIllegal, OpIllegal, OpBLT, OpBGE, OpBLTU, OpBGEU}
	if ops[funct3] == OpIllegal {
		return
	}
	inst.Op, inst.FU, inst.Format = ops[funct3], FUBranch, FormatB
	inst.Rs1, inst.Rs2, inst.Imm = rs1, rs2, immB(word)
}

func (d *Decoder) decodeLoad(word, funct3 uint32, rd, rs1 uint8, inst *Instruction) {
	switch funct3 {
	case 0:
		inst.Op, inst.Width = OpLB, WidthByte
	case 1:
		inst.Op, inst.Width = OpLH, WidthHalf
	case 2:
		inst.Op, inst.Width = OpLW, WidthWord
	case 4:
		inst.Op, inst.Width, inst.Unsigned = OpLBU, WidthByte, true
	case 5:
		inst.Op, inst.Width, inst.Unsigned = OpLHU, WidthHalf, true
	default:
		return
	}
	inst.FU, inst.Format, inst.IsLoad = FUMem, FormatI, true
	inst.Rd, inst.Rs1, inst.Imm, inst.UseImm = rd, rs1, immI(word), true
}

func (d *Decoder) decodeStore(word, funct3 uint32, rs1, rs2 uint8, inst *Instruction) {
	switch funct3 {
	case 0:
		inst.Op, inst.Width = OpSB, WidthByte
	case 1:
		inst.Op, inst.Width = OpSH, WidthHalf
	case 2:
		inst.Op, inst.Width = OpSW, WidthWord
	default:
		return
	}
	inst.FU, inst.Format, inst.IsStore = FUMem, FormatS, true
	inst.Rs1, inst.Rs2, inst.Imm, inst.UseImm = rs1, rs2, immS(word), true
}

func (d *Decoder) decodeOpImm(word, funct3, funct7 uint32, rd, rs1 uint8, inst *Instruction) {
	imm := immI(word)
	switch funct3 {
	case 0:
		inst.Op = OpADD
	case 1:
		if funct7 != 0 {
			return
		}
		inst.Op, imm = OpSLL, imm&0x1F
	case 2:
		inst.Op = OpSLT
	case 3:
		inst.Op = OpSLTU
	case 4:
		inst.Op = OpXOR
	case 5:
		switch funct7 {
		case 0x00:
			inst.Op = OpSRL
		case 0x20:
			inst.Op = OpSRA
		default:
			return
		}
		imm &= 0x1F
	case 6:
		inst.Op = OpOR
	case 7:
		inst.Op = OpAND
	}
	inst.Format = FormatI
	inst.Rd, inst.Rs1, inst.Imm, inst.UseImm = rd, rs1, imm, true
}

func (d *Decoder) decodeOp(funct3, funct7 uint32, rd, rs1, rs2 uint8, inst *Instruction) {
	switch funct7 {
	case 0x00:
		inst.Op = [8]Op{OpADD, OpSLL, OpSLT, OpSLTU, OpXOR, OpSRL, OpOR, OpAND}[funct3]
	case 0x20:
		switch funct3 {
		case 0:
			inst.Op = OpSUB
		case 5:
			inst.Op = OpSRA
		default:
			return
		}
	case 0x01:
		inst.Op = [8]Op{OpMUL, OpMULH, OpMULHSU, OpMULHU, OpDIV, OpDIVU, OpREM, OpREMU}[funct3]
		inst.FU = FUMulDiv
	default:
		return
	}
	inst.Format = FormatR
	inst.Rd, inst.Rs1, inst.Rs2 = rd, rs1, rs2
}

// decodeSystem handles ECALL and EBREAK. ECALL reads a0 (the exit code) and
// a7 (the call number) so that both are renamed like ordinary operands.
func (d *Decoder) decodeSystem(word uint32, inst *Instruction) {
	switch word {
	case 0x00000073:
		inst.Op, inst.Format = OpECALL, FormatI
		inst.Rs1, inst.Rs2 = RegA0, RegA7
	case 0x00100073:
		inst.Op, inst.Format = OpEBREAK, FormatI
	}
}

func immI(word uint32) int32 {
	return int32(word) >> 20
}

func immS(word uint32) int32 {
	return (int32(word)>>25)<<5 | int32((word>>7)&0x1F)
}

func immB(word uint32) int32 {
	imm := ((word >> 31) & 0x1) << 12
	imm |= ((word >> 7) & 0x1) << 11
	imm |= ((word >> 25) & 0x3F) << 5
	imm |= ((word >> 8) & 0xF) << 1
	return int32(imm<<19) >> 19
}

func immU(word uint32) int32 {
	return int32(word & 0xFFFFF000)
}

func immJ(word uint32) int32 {
	imm := ((word >> 31) & 0x1) << 20
	imm |= ((word >> 12) & 0xFF) << 12
	imm |= ((word >> 20) & 0x1) << 11
	imm |= ((word >> 21) & 0x3FF) << 1
	return int32(imm<<11) >> 11
}
