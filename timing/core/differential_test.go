package core_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/insts"
	"github.com/sarchlab/boomsim/timing/core"
)

const dataBase = 0x00020000

// runBoth runs words on the functional emulator and on the core and checks
// that both retire the same instruction stream with the same final state,
// data memory included.
func runBoth(config *core.Config, words []uint32) *core.Core {
	program := insts.Program(words...)

	ref := emu.NewEmulator(emu.WithTrace(), emu.WithMaxInstructions(1000000))
	ref.LoadProgram(base, program)
	wantCode, err := ref.Run()
	Expect(err).NotTo(HaveOccurred())

	memory := emu.NewMemory()
	memory.LoadProgram(base, program)
	opts := []core.Option{core.WithCommitTrace(), core.WithMaxCycles(2000000)}
	if config != nil {
		opts = append(opts, core.WithConfig(config))
	}
	c := core.NewCore(memory, opts...)
	c.SetPC(base)

	code, err := c.Run()
	Expect(err).NotTo(HaveOccurred())
	Expect(code).To(Equal(wantCode))
	Expect(c.CommitTrace()).To(Equal(ref.Trace()))

	regs := c.ArchRegs()
	for r := 1; r < 32; r++ {
		Expect(regs[r]).To(Equal(ref.RegFile().X[r]), "x%d", r)
	}
	Expect(memory.Read(dataBase, 0x1000)).To(Equal(ref.Memory().Read(dataBase, 0x1000)))
	return c
}

// memcpyProgram copies n words forward and sums the copy.
func memcpyProgram(n int32) []uint32 {
	const (
		src, dst, i, v, sum = 5, 6, 7, 28, 10
	)
	return []uint32{
		insts.LUI(src, dataBase),
		insts.ADDI(dst, src, 0x400),
		insts.ADDI(i, 0, n),
		// fill: src[i] = i*3
		insts.SLLI(v, i, 1),
		insts.ADD(v, v, i),
		insts.SW(v, src, 0),
		insts.ADDI(src, src, 4),
		insts.ADDI(i, i, -1),
		insts.BNE(i, 0, -20),
		insts.LUI(src, dataBase),
		insts.ADDI(i, 0, n),
		insts.ADDI(sum, 0, 0),
		// copy and sum
		insts.LW(v, src, 0),
		insts.SW(v, dst, 0),
		insts.LW(v, dst, 0),
		insts.ADD(sum, sum, v),
		insts.ADDI(src, src, 4),
		insts.ADDI(dst, dst, 4),
		insts.ADDI(i, i, -1),
		insts.BNE(i, 0, -28),
		insts.ECALL(),
	}
}

// byteProgram mixes sub-word stores with wider loads that partially overlap.
func byteProgram() []uint32 {
	const p, x, y = 5, 6, 10
	return []uint32{
		insts.LUI(p, dataBase),
		insts.ADDI(x, 0, -1),
		insts.SW(x, p, 0),
		insts.ADDI(x, 0, 0x12),
		insts.SB(x, p, 1),
		insts.LW(y, p, 0),
		insts.LHU(x, p, 2),
		insts.ADD(y, y, x),
		insts.SH(y, p, 6),
		insts.LH(x, p, 6),
		insts.LBU(7, p, 7),
		insts.XOR(y, x, 7),
		insts.ECALL(),
	}
}

// lineCrossingProgram stores and loads words and halves that straddle the
// cache line boundary at dataBase+0x40.
func lineCrossingProgram(nops int) []uint32 {
	const p, x, y, z = 5, 6, 7, 28
	words := []uint32{
		insts.LUI(p, dataBase),
		insts.LUI(x, 0x11223000),
		insts.ADDI(x, x, 0x344),
		insts.SW(x, p, 0x3e),
	}
	for range nops {
		words = append(words, insts.NOP())
	}
	return append(words,
		insts.LW(a0, p, 0x3e),
		insts.LH(y, p, 0x3f),
		insts.ADD(a0, a0, y),
		insts.ADDI(x, 0, -0x55),
		insts.SH(x, p, 0x3f),
		insts.LHU(y, p, 0x3f),
		insts.ADD(a0, a0, y),
		insts.LW(z, p, 0x3e),
		insts.XOR(a0, a0, z),
		insts.ECALL(),
	)
}

// mulDivProgram exercises the M extension including divide-by-zero.
func mulDivProgram() []uint32 {
	const a, b, r = 5, 6, 10
	return []uint32{
		insts.ADDI(a, 0, -77),
		insts.ADDI(b, 0, 5),
		insts.MUL(r, a, b),
		insts.DIV(7, a, b),
		insts.ADD(r, r, 7),
		insts.REMU(7, a, b),
		insts.ADD(r, r, 7),
		insts.DIV(7, a, 0),
		insts.ADD(r, r, 7),
		insts.REMU(7, a, 0),
		insts.XOR(r, r, 7),
		insts.ECALL(),
	}
}

// callProgram calls a leaf function n times to exercise the return stack.
func callProgram(n int32) []uint32 {
	return []uint32{
		insts.ADDI(a0, 0, 0),
		insts.ADDI(t0, 0, n),
		insts.JAL(ra, 16), // call leaf
		insts.ADDI(t0, t0, -1),
		insts.BNE(t0, 0, -8),
		insts.ECALL(),
		// leaf:
		insts.ADDI(a0, a0, 3),
		insts.JALR(0, ra, 0),
	}
}

// branchyProgram takes a data-dependent branch that alternates direction.
func branchyProgram(n int32) []uint32 {
	const i, bit, odd = 5, 6, 7
	return []uint32{
		insts.ADDI(a0, 0, 0),
		insts.ADDI(odd, 0, 0),
		insts.ADDI(i, 0, n),
		// loop:
		insts.ANDI(bit, i, 1),
		insts.BEQ(bit, 0, 12),
		insts.ADDI(odd, odd, 1),
		insts.JAL(0, 8),
		insts.ADD(a0, a0, i),
		insts.ADDI(i, i, -1),
		insts.BGE(i, 0, -24),
		insts.SUB(a0, a0, odd),
		insts.ECALL(),
	}
}

var _ = Describe("Differential execution", func() {
	DescribeTable("matches the functional emulator",
		func(words []uint32) {
			runBoth(nil, words)
		},
		Entry("counted loop", loopProgram(50)),
		Entry("memcpy with forwarding", memcpyProgram(24)),
		Entry("sub-word memory accesses", byteProgram()),
		Entry("multiply and divide", mulDivProgram()),
		Entry("calls and returns", callProgram(12)),
		Entry("alternating branch", branchyProgram(40)),
		Entry("line-crossing accesses", lineCrossingProgram(8)),
		Entry("line-crossing accesses with forwarding", lineCrossingProgram(0)),
	)

	It("should keep both halves of a line-crossing store", func() {
		c := runBoth(nil, lineCrossingProgram(8))
		Expect(c.ArchReg(28)).To(Equal(uint32(0x11FFAB44)))
		Expect(c.ArchReg(a0)).To(Equal(uint32((0x11223344 + 0x2233 + 0xFFAB) ^ 0x11FFAB44)))
	})

	It("should mispredict the alternating branch", func() {
		c := runBoth(nil, branchyProgram(40))
		Expect(c.Stats().Mispredictions).To(BeNumerically(">", 0))
		Expect(c.PredictorStats().Mispredictions).To(BeNumerically(">", 0))
	})

	It("should use the return stack for returns", func() {
		c := runBoth(nil, callProgram(12))
		Expect(c.Frontend().Stats().RASHits).To(BeNumerically(">", 0))
	})

	It("should forward stores to loads in the copy loop", func() {
		c := runBoth(nil, memcpyProgram(24))
		Expect(c.Stats().Stores).To(Equal(uint64(48)))
		Expect(c.Stats().Loads).To(Equal(uint64(48)))
	})

	It("should stay correct on a minimal machine", func() {
		config := core.DefaultConfig()
		config.PhysRegs = 40
		config.ROBSize = 4
		config.IssueBufferSize = 2
		config.StoreQueueSize = 2
		config.LoadBufferSize = 2
		config.FetchQueueDepth = 1
		Expect(config.Validate()).To(Succeed())

		for _, words := range [][]uint32{
			loopProgram(10), memcpyProgram(8), byteProgram(),
			mulDivProgram(), callProgram(5), branchyProgram(9),
		} {
			runBoth(config, words)
		}
	})
})
