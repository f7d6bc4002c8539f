// Package insts provides RV32IM instruction definitions and decoding.
//
// This package implements decoding of RISC-V machine code into the fixed
// micro-op record consumed by the out-of-order core. It supports:
//   - RV32I integer computation (register and immediate forms, LUI, AUIPC)
//   - RV32I loads and stores (byte, halfword, word; signed and unsigned)
//   - RV32I control transfer: BEQ, BNE, BLT, BGE, BLTU, BGEU, JAL, JALR
//   - The M extension: MUL, MULH, MULHSU, MULHU, DIV, DIVU, REM, REMU
//   - ECALL, EBREAK and FENCE
//
// Usage:
//
//	decoder := insts.NewDecoder()
//	inst := decoder.Decode(0x02A00513) // ADDI a0, x0, 42
//	fmt.Printf("Op: %v, Rd: %d, Rs1: %d, Imm: %d\n", inst.Op, inst.Rd, inst.Rs1, inst.Imm)
package insts
