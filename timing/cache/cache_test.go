package cache_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/timing/cache"
)

var _ = Describe("Cache", func() {
	var (
		c       *cache.Cache
		memory  *emu.Memory
		backing *cache.MemoryBacking
	)

	BeforeEach(func() {
		memory = emu.NewMemory()
		backing = cache.NewMemoryBacking(memory)
		// Small cache for testing: 4KB, 4-way, 64B lines
		config := cache.Config{
			Size:          4 * 1024,
			Associativity: 4,
			BlockSize:     64,
			HitLatency:    1,
			MissLatency:   10,
			MSHREntries:   2,
		}
		c = cache.New(config, backing)
	})

	Describe("Read operations", func() {
		It("should miss on cold cache", func() {
			memory.Write32(0x1000, 0xDEADBEEF)

			result := c.Read(0x1000, 4, 0)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(10)))
			Expect(result.Data).To(Equal(uint64(0xDEADBEEF)))

			stats := c.Stats()
			Expect(stats.Reads).To(Equal(uint64(1)))
			Expect(stats.Misses).To(Equal(uint64(1)))
			Expect(stats.Hits).To(Equal(uint64(0)))
		})

		It("should hit once the fill has completed", func() {
			memory.Write32(0x1000, 0xCAFEBABE)

			c.Read(0x1000, 4, 0)
			c.Tick(10)

			result := c.Read(0x1000, 4, 10)
			Expect(result.Hit).To(BeTrue())
			Expect(result.Latency).To(Equal(uint64(1)))
			Expect(result.Data).To(Equal(uint64(0xCAFEBABE)))
			Expect(c.PendingFills()).To(Equal(0))
		})

		It("should wait for an in-flight fill of the same line", func() {
			memory.Write32(0x1004, 0x22222222)

			c.Read(0x1000, 4, 0)

			result := c.Read(0x1004, 4, 4)
			Expect(result.Hit).To(BeFalse())
			Expect(result.MSHRHit).To(BeTrue())
			Expect(result.Latency).To(Equal(uint64(6)))
			Expect(result.Data).To(Equal(uint64(0x22222222)))
			Expect(c.Stats().MSHRHits).To(Equal(uint64(1)))
		})
	})

	Describe("MSHR capacity", func() {
		It("should refuse a new miss when every MSHR entry is busy", func() {
			c.Read(0x1000, 4, 0)
			c.Read(0x2000, 4, 0)
			Expect(c.PendingFills()).To(Equal(2))

			Expect(c.CanAccept(0x3000)).To(BeFalse())
			Expect(c.CanAccept(0x1010)).To(BeTrue())

			c.Tick(10)
			Expect(c.CanAccept(0x3000)).To(BeTrue())
		})
	})

	Describe("Write operations", func() {
		It("should write-allocate on miss", func() {
			result := c.Write(0x2000, 4, 0x12345678, 0)
			Expect(result.Hit).To(BeFalse())

			c.Tick(20)
			read := c.Read(0x2000, 4, 20)
			Expect(read.Hit).To(BeTrue())
			Expect(read.Data).To(Equal(uint64(0x12345678)))
		})

		It("should merge partial writes into the line", func() {
			memory.Write32(0x2000, 0xAABBCCDD)

			c.Write(0x2001, 1, 0x11, 0)

			Expect(c.Read(0x2000, 4, 1).Data).To(Equal(uint64(0xAABB11DD)))
		})
	})

	Describe("Line-crossing accesses", func() {
		It("should read a word split across two lines", func() {
			memory.Write32(0x103E, 0x11223344)

			result := c.Read(0x103E, 4, 0)

			Expect(result.Data).To(Equal(uint64(0x11223344)))
			Expect(result.Latency).To(Equal(uint64(10)))
			Expect(c.Stats().Misses).To(Equal(uint64(2)))
			Expect(c.PendingFills()).To(Equal(2))
		})

		It("should write both halves and keep them after a flush", func() {
			c.Write(0x103E, 4, 0xAABBCCDD, 0)
			c.Tick(10)

			Expect(c.Read(0x103E, 4, 10).Data).To(Equal(uint64(0xAABBCCDD)))
			Expect(c.Read(0x1040, 2, 10).Data).To(Equal(uint64(0xAABB)))

			c.Flush()
			Expect(memory.Read32(0x103E)).To(Equal(uint32(0xAABBCCDD)))
			Expect(memory.Read16(0x103C)).To(Equal(uint16(0)))
		})

		It("should complete with the slower of the two lines", func() {
			c.Read(0x1000, 4, 0)
			c.Tick(10)

			result := c.Read(0x103F, 2, 10)

			Expect(result.Hit).To(BeFalse())
			Expect(result.Latency).To(Equal(uint64(10)))
		})

		It("should hit when both lines are present", func() {
			c.Read(0x1000, 4, 0)
			c.Read(0x1040, 4, 0)
			c.Tick(10)

			result := c.Read(0x103E, 4, 10)

			Expect(result.Hit).To(BeTrue())
			Expect(result.Latency).To(Equal(uint64(1)))
		})

		It("should refuse the access while either line needs an MSHR", func() {
			c.Read(0x2000, 4, 0)
			c.Read(0x1000, 4, 0)

			Expect(c.CanAcceptRange(0x1038, 4)).To(BeTrue())
			Expect(c.CanAcceptRange(0x103E, 4)).To(BeFalse())
		})
	})

	Describe("Eviction", func() {
		// 4KB / (4 ways * 64B) = 16 sets, so 0x400 apart maps to one set.
		fillSet := func() {
			c.Write(0x0000, 4, 0x11111111, 0)
			c.Write(0x0400, 4, 0x22222222, 0)
			c.Tick(10)
			c.Write(0x0800, 4, 0x33333333, 10)
			c.Write(0x0C00, 4, 0x44444444, 10)
			c.Tick(20)
		}

		It("should evict when a set is full", func() {
			fillSet()

			result := c.Write(0x1000, 4, 0x55555555, 20)
			Expect(result.Hit).To(BeFalse())
			Expect(result.Evicted).To(BeTrue())
			Expect(c.Stats().Evictions).To(Equal(uint64(1)))
		})

		It("should writeback dirty evicted blocks", func() {
			fillSet()

			// Make 0x0000 the LRU line.
			c.Read(0x0400, 4, 20)
			c.Read(0x0800, 4, 20)
			c.Read(0x0C00, 4, 20)

			c.Write(0x1000, 4, 0x55555555, 20)

			Expect(memory.Read32(0x0000)).To(Equal(uint32(0x11111111)))
			Expect(c.Stats().Writebacks).To(Equal(uint64(1)))
		})
	})

	Describe("Flush", func() {
		It("should write back all dirty blocks", func() {
			c.Write(0x0000, 4, 0x11111111, 0)
			c.Write(0x1000, 4, 0x22222222, 0)

			Expect(memory.Read32(0x0000)).To(Equal(uint32(0)))
			Expect(memory.Read32(0x1000)).To(Equal(uint32(0)))

			c.Flush()

			Expect(memory.Read32(0x0000)).To(Equal(uint32(0x11111111)))
			Expect(memory.Read32(0x1000)).To(Equal(uint32(0x22222222)))
			Expect(c.Stats().Writebacks).To(Equal(uint64(2)))
		})
	})

	Describe("Statistics", func() {
		It("should compute the hit rate", func() {
			c.Read(0x0000, 4, 0)
			c.Tick(10)
			c.Read(0x0000, 4, 10)

			Expect(c.Stats().HitRate()).To(Equal(0.5))

			c.Reset()
			Expect(c.Stats().HitRate()).To(Equal(0.0))
			Expect(c.PendingFills()).To(Equal(0))
		})
	})

	Describe("Default configuration", func() {
		It("should create the L1D config", func() {
			config := cache.DefaultL1DConfig()
			Expect(config.Size).To(Equal(4 * 1024))
			Expect(config.Associativity).To(Equal(4))
			Expect(config.BlockSize).To(Equal(64))
			Expect(config.MSHREntries).To(Equal(4))
		})
	})
})
