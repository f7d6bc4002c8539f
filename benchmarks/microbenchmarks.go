package benchmarks

import "github.com/sarchlab/boomsim/insts"

// DataBase is where the memory microbenchmarks keep their arrays.
const DataBase = 0x00020000

const (
	t0, t1, t2 = 5, 6, 7
	s0         = 8
	a0         = insts.RegA0
	ra         = insts.RegRA
	t3         = 28
)

// GetMicrobenchmarks returns the standard set of microbenchmarks. Each one
// stresses a single structure of the core.
func GetMicrobenchmarks() []Benchmark {
	return []Benchmark{
		arithmeticSequential(),
		dependencyChain(),
		memorySequential(),
		memoryStrided(),
		storeForwarding(),
		partialOverlap(),
		functionCalls(),
		branchAlternating(),
		mulDiv(),
		loopSimulation(),
	}
}

// GetCoreBenchmarks returns a minimal set for quick validation: a loop,
// a store-to-load copy and branch-heavy code.
func GetCoreBenchmarks() []Benchmark {
	return []Benchmark{
		loopSimulation(),
		storeForwarding(),
		branchAlternating(),
	}
}

func arithmeticSequential() Benchmark {
	words := make([]uint32, 0, 23)
	for round := 0; round < 4; round++ {
		for rd := uint8(t0); rd <= 9; rd++ {
			words = append(words, insts.ADDI(rd, rd, 1))
		}
	}
	words = append(words, insts.ADD(a0, t0, 9), insts.ECALL())

	return Benchmark{
		Name:         "arithmetic_sequential",
		Description:  "20 independent ADDIs over 5 registers - measures issue width",
		Program:      insts.Program(words...),
		ExpectedExit: 8,
	}
}

func dependencyChain() Benchmark {
	words := make([]uint32, 0, 21)
	for i := 0; i < 20; i++ {
		words = append(words, insts.ADDI(a0, a0, 1))
	}
	words = append(words, insts.ECALL())

	return Benchmark{
		Name:         "dependency_chain",
		Description:  "20 dependent ADDIs - measures wakeup-to-issue latency",
		Program:      insts.Program(words...),
		ExpectedExit: 20,
	}
}

func memorySequential() Benchmark {
	words := []uint32{insts.LUI(t0, DataBase)}
	for i := int32(0); i < 8; i++ {
		words = append(words, insts.ADDI(t1, 0, i+1), insts.SW(t1, t0, 4*i))
	}
	for i := int32(0); i < 8; i++ {
		words = append(words, insts.LW(t2, t0, 4*i), insts.ADD(a0, a0, t2))
	}
	words = append(words, insts.ECALL())

	return Benchmark{
		Name:         "memory_sequential",
		Description:  "8 stores then 8 loads to adjacent words - store queue forwarding",
		Program:      insts.Program(words...),
		ExpectedExit: 36,
	}
}

func memoryStrided() Benchmark {
	return Benchmark{
		Name:        "memory_strided",
		Description: "16 stores then 16 loads one cache block apart - L1D misses",
		Program: insts.Program(
			insts.LUI(t0, DataBase),
			insts.ADDI(t1, 0, 16),
			insts.SW(t1, t0, 0), // fill:
			insts.ADDI(t0, t0, 64),
			insts.ADDI(t1, t1, -1),
			insts.BNE(t1, 0, -12),
			insts.LUI(t0, DataBase),
			insts.ADDI(t1, 0, 16),
			insts.ADDI(a0, 0, 0),
			insts.LW(t2, t0, 0), // sum:
			insts.ADD(a0, a0, t2),
			insts.ADDI(t0, t0, 64),
			insts.ADDI(t1, t1, -1),
			insts.BNE(t1, 0, -16),
			insts.ECALL(),
		),
		ExpectedExit: 136,
	}
}

func storeForwarding() Benchmark {
	const n = 16
	return Benchmark{
		Name:        "store_forwarding",
		Description: "copy loop that reloads every stored word - store-to-load forwarding",
		Program: insts.Program(
			insts.LUI(t0, DataBase),
			insts.ADDI(t1, t0, 0x400),
			insts.ADDI(t2, 0, n),
			insts.SLLI(t3, t2, 1), // fill: src[i] = 3i
			insts.ADD(t3, t3, t2),
			insts.SW(t3, t0, 0),
			insts.ADDI(t0, t0, 4),
			insts.ADDI(t2, t2, -1),
			insts.BNE(t2, 0, -20),
			insts.LUI(t0, DataBase),
			insts.ADDI(t2, 0, n),
			insts.ADDI(a0, 0, 0),
			insts.LW(t3, t0, 0), // copy:
			insts.SW(t3, t1, 0),
			insts.LW(t3, t1, 0),
			insts.ADD(a0, a0, t3),
			insts.ADDI(t0, t0, 4),
			insts.ADDI(t1, t1, 4),
			insts.ADDI(t2, t2, -1),
			insts.BNE(t2, 0, -28),
			insts.ECALL(),
		),
		ExpectedExit: 3 * n * (n + 1) / 2,
	}
}

func partialOverlap() Benchmark {
	return Benchmark{
		Name:        "partial_overlap",
		Description: "sub-word stores read back by wider loads - sleeping loads",
		Program: insts.Program(
			insts.LUI(t0, DataBase),
			insts.ADDI(t1, 0, -1),
			insts.SW(t1, t0, 0),
			insts.ADDI(t1, 0, 0x12),
			insts.SB(t1, t0, 1),
			insts.LW(a0, t0, 0),
			insts.LHU(t1, t0, 2),
			insts.ADD(a0, a0, t1),
			insts.SH(a0, t0, 6),
			insts.LH(t1, t0, 6),
			insts.LBU(t2, t0, 7),
			insts.XOR(a0, t1, t2),
			insts.ECALL(),
		),
		ExpectedExit: 0x12EC,
	}
}

func functionCalls() Benchmark {
	return Benchmark{
		Name:        "function_calls",
		Description: "10 calls to a leaf function - return address stack",
		Program: insts.Program(
			insts.ADDI(a0, 0, 0),
			insts.ADDI(s0, 0, 10),
			insts.JAL(ra, 16), // loop: call leaf
			insts.ADDI(s0, s0, -1),
			insts.BNE(s0, 0, -8),
			insts.ECALL(),
			insts.ADDI(a0, a0, 3), // leaf:
			insts.JALR(0, ra, 0),
		),
		ExpectedExit: 30,
	}
}

func branchAlternating() Benchmark {
	return Benchmark{
		Name:        "branch_alternating",
		Description: "data-dependent branch that flips every iteration - misprediction recovery",
		Program: insts.Program(
			insts.ADDI(a0, 0, 0),
			insts.ADDI(t2, 0, 0),
			insts.ADDI(t0, 0, 40),
			insts.ANDI(t1, t0, 1), // loop:
			insts.BEQ(t1, 0, 12),
			insts.ADDI(t2, t2, 1),
			insts.JAL(0, 8),
			insts.ADD(a0, a0, t0), // even:
			insts.ADDI(t0, t0, -1),
			insts.BGE(t0, 0, -24),
			insts.SUB(a0, a0, t2),
			insts.ECALL(),
		),
		ExpectedExit: 400,
	}
}

func mulDiv() Benchmark {
	return Benchmark{
		Name:        "mul_div",
		Description: "multiplies and data-dependent divides - pipelined and iterative units",
		Program: insts.Program(
			insts.ADDI(t0, 0, -77),
			insts.ADDI(t1, 0, 5),
			insts.MUL(a0, t0, t1),
			insts.DIV(t2, t0, t1),
			insts.ADD(a0, a0, t2),
			insts.REMU(t2, t0, t1),
			insts.ADD(a0, a0, t2),
			insts.DIV(t2, t0, 0),
			insts.ADD(a0, a0, t2),
			insts.REMU(t2, t0, 0),
			insts.XOR(a0, a0, t2),
			insts.ECALL(),
		),
		ExpectedExit: 448,
	}
}

func loopSimulation() Benchmark {
	return Benchmark{
		Name:        "loop_simulation",
		Description: "sum 1..100 in a counted loop - loop-closing branch prediction",
		Program: insts.Program(
			insts.ADDI(a0, 0, 0),
			insts.ADDI(t0, 0, 100),
			insts.ADD(a0, a0, t0), // loop:
			insts.ADDI(t0, t0, -1),
			insts.BNE(t0, 0, -8),
			insts.ECALL(),
		),
		ExpectedExit: 5050,
	}
}
