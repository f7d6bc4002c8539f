package insts

// Encoders for building RV32IM programs in tests and benchmarks. Register
// arguments are architectural register numbers; immediates are byte offsets
// or values as they appear in assembly.

// EncodeR encodes an R-type instruction.
func EncodeR(opcode, funct3, funct7 uint32, rd, rs1, rs2 uint8) uint32 {
	return funct7<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

// EncodeI encodes an I-type instruction.
func EncodeI(opcode, funct3 uint32, rd, rs1 uint8, imm int32) uint32 {
	return uint32(imm&0xFFF)<<20 | uint32(rs1)<<15 | funct3<<12 | uint32(rd)<<7 | opcode
}

// EncodeS encodes an S-type instruction.
func EncodeS(opcode, funct3 uint32, rs1, rs2 uint8, imm int32) uint32 {
	u := uint32(imm & 0xFFF)
	return (u>>5)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 | funct3<<12 | (u&0x1F)<<7 | opcode
}

// EncodeB encodes a B-type instruction with a byte offset.
func EncodeB(funct3 uint32, rs1, rs2 uint8, offset int32) uint32 {
	u := uint32(offset)
	return ((u>>12)&0x1)<<31 | ((u>>5)&0x3F)<<25 | uint32(rs2)<<20 | uint32(rs1)<<15 |
		funct3<<12 | ((u>>1)&0xF)<<8 | ((u>>11)&0x1)<<7 | 0x63
}

// EncodeU encodes a U-type instruction; imm holds the final upper-20-bit value.
func EncodeU(opcode uint32, rd uint8, imm uint32) uint32 {
	return imm&0xFFFFF000 | uint32(rd)<<7 | opcode
}

// EncodeJ encodes a JAL with a byte offset.
func EncodeJ(rd uint8, offset int32) uint32 {
	u := uint32(offset)
	return ((u>>20)&0x1)<<31 | ((u>>1)&0x3FF)<<21 | ((u>>11)&0x1)<<20 |
		((u>>12)&0xFF)<<12 | uint32(rd)<<7 | 0x6F
}

// ADDI encodes addi rd, rs1, imm.
func ADDI(rd, rs1 uint8, imm int32) uint32 { return EncodeI(0x13, 0, rd, rs1, imm) }

// ANDI encodes andi rd, rs1, imm.
func ANDI(rd, rs1 uint8, imm int32) uint32 { return EncodeI(0x13, 7, rd, rs1, imm) }

// SLLI encodes slli rd, rs1, shamt.
func SLLI(rd, rs1 uint8, shamt int32) uint32 { return EncodeI(0x13, 1, rd, rs1, shamt&0x1F) }

// SRAI encodes srai rd, rs1, shamt.
func SRAI(rd, rs1 uint8, shamt int32) uint32 {
	return EncodeI(0x13, 5, rd, rs1, 0x400|(shamt&0x1F))
}

// ADD encodes add rd, rs1, rs2.
func ADD(rd, rs1, rs2 uint8) uint32 { return EncodeR(0x33, 0, 0x00, rd, rs1, rs2) }

// SUB encodes sub rd, rs1, rs2.
func SUB(rd, rs1, rs2 uint8) uint32 { return EncodeR(0x33, 0, 0x20, rd, rs1, rs2) }

// XOR encodes xor rd, rs1, rs2.
func XOR(rd, rs1, rs2 uint8) uint32 { return EncodeR(0x33, 4, 0x00, rd, rs1, rs2) }

// SLT encodes slt rd, rs1, rs2.
func SLT(rd, rs1, rs2 uint8) uint32 { return EncodeR(0x33, 2, 0x00, rd, rs1, rs2) }

// MUL encodes mul rd, rs1, rs2.
func MUL(rd, rs1, rs2 uint8) uint32 { return EncodeR(0x33, 0, 0x01, rd, rs1, rs2) }

// DIV encodes div rd, rs1, rs2.
func DIV(rd, rs1, rs2 uint8) uint32 { return EncodeR(0x33, 4, 0x01, rd, rs1, rs2) }

// REMU encodes remu rd, rs1, rs2.
func REMU(rd, rs1, rs2 uint8) uint32 { return EncodeR(0x33, 7, 0x01, rd, rs1, rs2) }

// LUI encodes lui rd, imm (imm is the final value; its low 12 bits are dropped).
func LUI(rd uint8, imm uint32) uint32 { return EncodeU(0x37, rd, imm) }

// AUIPC encodes auipc rd, imm.
func AUIPC(rd uint8, imm uint32) uint32 { return EncodeU(0x17, rd, imm) }

// LB encodes lb rd, imm(rs1).
func LB(rd, rs1 uint8, imm int32) uint32 { return EncodeI(0x03, 0, rd, rs1, imm) }

// LH encodes lh rd, imm(rs1).
func LH(rd, rs1 uint8, imm int32) uint32 { return EncodeI(0x03, 1, rd, rs1, imm) }

// LW encodes lw rd, imm(rs1).
func LW(rd, rs1 uint8, imm int32) uint32 { return EncodeI(0x03, 2, rd, rs1, imm) }

// LBU encodes lbu rd, imm(rs1).
func LBU(rd, rs1 uint8, imm int32) uint32 { return EncodeI(0x03, 4, rd, rs1, imm) }

// LHU encodes lhu rd, imm(rs1).
func LHU(rd, rs1 uint8, imm int32) uint32 { return EncodeI(0x03, 5, rd, rs1, imm) }

// SB encodes sb rs2, imm(rs1).
func SB(rs2, rs1 uint8, imm int32) uint32 { return EncodeS(0x23, 0, rs1, rs2, imm) }

// SH encodes sh rs2, imm(rs1).
func SH(rs2, rs1 uint8, imm int32) uint32 { return EncodeS(0x23, 1, rs1, rs2, imm) }

// SW encodes sw rs2, imm(rs1).
func SW(rs2, rs1 uint8, imm int32) uint32 { return EncodeS(0x23, 2, rs1, rs2, imm) }

// BEQ encodes beq rs1, rs2, offset.
func BEQ(rs1, rs2 uint8, offset int32) uint32 { return EncodeB(0, rs1, rs2, offset) }

// BNE encodes bne rs1, rs2, offset.
func BNE(rs1, rs2 uint8, offset int32) uint32 { return EncodeB(1, rs1, rs2, offset) }

// BLT encodes blt rs1, rs2, offset.
func BLT(rs1, rs2 uint8, offset int32) uint32 { return EncodeB(4, rs1, rs2, offset) }

// BGE encodes bge rs1, rs2, offset.
func BGE(rs1, rs2 uint8, offset int32) uint32 { return EncodeB(5, rs1, rs2, offset) }

// JAL encodes jal rd, offset.
func JAL(rd uint8, offset int32) uint32 { return EncodeJ(rd, offset) }

// JALR encodes jalr rd, imm(rs1).
func JALR(rd, rs1 uint8, imm int32) uint32 { return EncodeI(0x67, 0, rd, rs1, imm) }

// ECALL encodes ecall.
func ECALL() uint32 { return 0x00000073 }

// EBREAK encodes ebreak.
func EBREAK() uint32 { return 0x00100073 }

// NOP encodes addi x0, x0, 0.
func NOP() uint32 { return ADDI(0, 0, 0) }

// Program flattens instruction words into a little-endian byte image.
func Program(words ...uint32) []byte {
	buf := make([]byte, 0, len(words)*4)
	for _, w := range words {
		buf = append(buf, byte(w), byte(w>>8), byte(w>>16), byte(w>>24))
	}
	return buf
}
