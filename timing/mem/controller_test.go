package mem_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/timing/cache"
	"github.com/sarchlab/boomsim/timing/mem"
)

var _ = Describe("Controller", func() {
	var (
		memory *emu.Memory
		ctrl   *mem.Controller
	)

	BeforeEach(func() {
		memory = emu.NewMemory()
		c := cache.New(cache.Config{
			Size:          1024,
			Associativity: 2,
			BlockSize:     64,
			HitLatency:    2,
			MissLatency:   5,
			MSHREntries:   1,
		}, cache.NewMemoryBacking(memory))
		ctrl = mem.NewController(2, c)
	})

	// runUntilResponse ticks from cycle start until a response is ready and
	// returns it with the cycle it became visible.
	runUntilResponse := func(start uint64) (*mem.Response, uint64) {
		for now := start; now < start+100; now++ {
			ctrl.Tick(now)
			if resp := ctrl.Pop(); resp != nil {
				return resp, now
			}
		}
		return nil, 0
	}

	It("should return load data after the miss latency", func() {
		memory.Write32(0x100, 0x80)

		Expect(ctrl.Send(&mem.Request{ID: 7, IsLoad: true, Addr: 0x100, Width: 1, Target: 3})).To(BeTrue())

		resp, at := runUntilResponse(0)
		Expect(resp).NotTo(BeNil())
		Expect(resp.ID).To(Equal(uint64(7)))
		Expect(resp.IsLoad).To(BeTrue())
		Expect(resp.Target).To(Equal(uint16(3)))
		Expect(resp.Data).To(Equal(uint32(0xFFFFFF80)))
		Expect(at).To(Equal(uint64(5)))
		Expect(ctrl.Idle()).To(BeTrue())
	})

	It("should zero-extend unsigned loads", func() {
		memory.Write32(0x100, 0x8080)
		ctrl.Send(&mem.Request{ID: 1, IsLoad: true, Addr: 0x100, Width: 2, Unsigned: true})

		resp, _ := runUntilResponse(0)
		Expect(resp.Data).To(Equal(uint32(0x8080)))
	})

	It("should apply writes at acceptance and acknowledge them", func() {
		ctrl.Send(&mem.Request{ID: 1, Addr: 0x200, Data: 0xAABBCCDD, Width: 4})
		ctrl.Send(&mem.Request{ID: 2, IsLoad: true, Addr: 0x200, Width: 4})

		ack, _ := runUntilResponse(0)
		Expect(ack.ID).To(Equal(uint64(1)))
		Expect(ack.IsLoad).To(BeFalse())

		load, _ := runUntilResponse(6)
		Expect(load.ID).To(Equal(uint64(2)))
		Expect(load.Data).To(Equal(uint32(0xAABBCCDD)))

		ctrl.Flush()
		Expect(memory.Read32(0x200)).To(Equal(uint32(0xAABBCCDD)))
	})

	It("should serve a load that crosses a line", func() {
		memory.Write32(0x13E, 0x11223344)

		Expect(ctrl.Send(&mem.Request{ID: 1, IsLoad: true, Addr: 0x13E, Width: 4})).To(BeTrue())

		resp, _ := runUntilResponse(0)
		Expect(resp).NotTo(BeNil())
		Expect(resp.Data).To(Equal(uint32(0x11223344)))
	})

	It("should keep responses in acceptance order", func() {
		memory.Write32(0x300, 1)
		ctrl.Send(&mem.Request{ID: 1, IsLoad: true, Addr: 0x300, Width: 4})
		ctrl.Tick(0)
		ctrl.Tick(1)
		// Same line: served from the fill in flight.
		ctrl.Send(&mem.Request{ID: 2, IsLoad: true, Addr: 0x304, Width: 4})

		var order []uint64
		for now := uint64(2); now < 20; now++ {
			ctrl.Tick(now)
			if resp := ctrl.Pop(); resp != nil {
				order = append(order, resp.ID)
			}
		}
		Expect(order).To(Equal([]uint64{1, 2}))
	})

	It("should apply backpressure when the queue is full", func() {
		Expect(ctrl.Send(&mem.Request{ID: 1, IsLoad: true, Addr: 0x0, Width: 4})).To(BeTrue())
		Expect(ctrl.Send(&mem.Request{ID: 2, IsLoad: true, Addr: 0x400, Width: 4})).To(BeTrue())
		Expect(ctrl.CanAccept()).To(BeFalse())
		Expect(ctrl.Send(&mem.Request{ID: 3, IsLoad: true, Addr: 0x800, Width: 4})).To(BeFalse())
	})

	It("should stall the head request while the MSHR is busy", func() {
		ctrl.Send(&mem.Request{ID: 1, IsLoad: true, Addr: 0x0, Width: 4})
		ctrl.Send(&mem.Request{ID: 2, IsLoad: true, Addr: 0x400, Width: 4})

		ctrl.Tick(0)
		ctrl.Tick(1)

		Expect(ctrl.Stats().BlockedCycles).To(Equal(uint64(1)))
		Expect(ctrl.Stats().Reads).To(Equal(uint64(1)))
	})

	It("should drop everything on reset", func() {
		ctrl.Send(&mem.Request{ID: 1, IsLoad: true, Addr: 0x0, Width: 4})
		ctrl.Tick(0)

		ctrl.Reset()

		Expect(ctrl.Idle()).To(BeTrue())
		Expect(ctrl.Stats()).To(Equal(mem.Statistics{}))
	})
})
