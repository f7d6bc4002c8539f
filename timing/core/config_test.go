package core_test

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/insts"
	"github.com/sarchlab/boomsim/timing/core"
)

var _ = Describe("Config", func() {
	It("should validate the default configuration", func() {
		Expect(core.DefaultConfig().Validate()).To(Succeed())
	})

	DescribeTable("should reject invalid sizes",
		func(mutate func(*core.Config), msg string) {
			config := core.DefaultConfig()
			mutate(config)
			err := config.Validate()
			Expect(err).To(HaveOccurred())
			Expect(err.Error()).To(ContainSubstring(msg))
		},
		Entry("too few physical registers", func(c *core.Config) { c.PhysRegs = 32 }, "phys_regs"),
		Entry("empty ROB", func(c *core.Config) { c.ROBSize = 0 }, "rob_size"),
		Entry("oversized issue buffer", func(c *core.Config) { c.IssueBufferSize = 65 }, "issue_buffer_size"),
		Entry("empty load buffer", func(c *core.Config) { c.LoadBufferSize = 0 }, "load_buffer_size"),
		Entry("empty store queue", func(c *core.Config) { c.StoreQueueSize = 0 }, "store_queue_size"),
		Entry("odd cache block", func(c *core.Config) { c.L1DBlockSize = 48 }, "l1d"),
		Entry("no MSHRs", func(c *core.Config) { c.MSHREntries = 0 }, "mshr_entries"),
		Entry("odd BHT", func(c *core.Config) { c.Predictor.BHTSize = 1000 }, "predictor"),
		Entry("zero ALU latency", func(c *core.Config) { c.Latency.ALULatency = 0 }, "latency"),
	)

	It("should clone independently", func() {
		config := core.DefaultConfig()
		clone := config.Clone()
		clone.ROBSize = 4
		clone.Latency.MultiplyLatency = 7
		Expect(config.ROBSize).To(Equal(32))
		Expect(config.Latency.MultiplyLatency).To(Equal(uint64(3)))
	})

	It("should load a partial YAML file over the defaults", func() {
		path := filepath.Join(GinkgoT().TempDir(), "core.yaml")
		Expect(os.WriteFile(path, []byte("rob_size: 16\nlatency:\n  multiply_latency: 5\n"), 0o644)).To(Succeed())

		config, err := core.LoadConfig(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(config.ROBSize).To(Equal(16))
		Expect(config.Latency.MultiplyLatency).To(Equal(uint64(5)))
		Expect(config.PhysRegs).To(Equal(64))
		Expect(config.Latency.ALULatency).To(Equal(uint64(1)))
	})

	It("should round-trip through a JSON file", func() {
		path := filepath.Join(GinkgoT().TempDir(), "core.json")
		config := core.DefaultConfig()
		config.PhysRegs = 96
		config.Predictor.RASDepth = 4
		Expect(config.SaveConfig(path)).To(Succeed())

		loaded, err := core.LoadConfig(path)

		Expect(err).NotTo(HaveOccurred())
		Expect(loaded).To(Equal(config))
	})

	It("should fail to load a missing file", func() {
		_, err := core.LoadConfig(filepath.Join(GinkgoT().TempDir(), "missing.json"))
		Expect(err).To(HaveOccurred())
	})

	It("should panic when building a core from an invalid configuration", func() {
		config := core.DefaultConfig()
		config.ROBSize = 0
		Expect(func() { core.NewCore(emu.NewMemory(), core.WithConfig(config)) }).To(Panic())
	})

	It("should slow down with a longer multiplier", func() {
		words := insts.Program(
			insts.ADDI(5, 0, 3),
			insts.MUL(5, 5, 5),
			insts.MUL(5, 5, 5),
			insts.MUL(insts.RegA0, 5, 5),
			insts.ECALL(),
		)
		run := func(mulLatency uint64) uint64 {
			config := core.DefaultConfig()
			config.Latency.MultiplyLatency = mulLatency
			memory := emu.NewMemory()
			memory.LoadProgram(base, words)
			c := core.NewCore(memory, core.WithConfig(config))
			c.SetPC(base)
			code, err := c.Run()
			Expect(err).NotTo(HaveOccurred())
			Expect(code).To(Equal(int64(6561)))
			return c.Cycle()
		}

		Expect(run(8)).To(BeNumerically(">", run(2)))
	})
})
