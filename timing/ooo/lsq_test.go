package ooo_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/boomsim/timing/mem"
	"github.com/sarchlab/boomsim/timing/ooo"
)

// fakePort records requests and replays queued responses.
type fakePort struct {
	requests  []*mem.Request
	responses []*mem.Response
	full      bool
}

func (p *fakePort) CanAccept() bool { return !p.full }

func (p *fakePort) Send(req *mem.Request) bool {
	p.requests = append(p.requests, req)
	return true
}

func (p *fakePort) Peek() *mem.Response {
	if len(p.responses) == 0 {
		return nil
	}
	return p.responses[0]
}

func (p *fakePort) Pop() *mem.Response {
	r := p.Peek()
	if r != nil {
		p.responses = p.responses[1:]
	}
	return r
}

var _ = Describe("LSQ", func() {
	var (
		port *fakePort
		lsq  *ooo.LSQ
	)

	BeforeEach(func() {
		port = &fakePort{}
		lsq = ooo.NewLSQ(4, 4, port)
	})

	tick := func(n int) {
		for i := 0; i < n; i++ {
			lsq.Tick()
		}
	}

	readyStore := func(tag int, addr, data uint32, width int) ooo.StoreEntry {
		return ooo.StoreEntry{
			Tag: tag, AddrReady: true, AddrVal: addr,
			DataReady: true, DataVal: data, Width: width,
		}
	}

	readyLoad := func(tag int, pdst ooo.PReg, addr uint32, width int, unsigned bool) ooo.LoadEntry {
		return ooo.LoadEntry{
			Tag: tag, PDst: pdst, AddrReady: true, AddrVal: addr,
			Width: width, Unsigned: unsigned,
		}
	}

	// grantStores lets every pending store notice win the channel.
	grantStores := func() {
		for {
			b, ok := lsq.StoreBroadcast()
			if !ok {
				return
			}
			lsq.GrantStore()
			lsq.Broadcast(b)
		}
	}

	It("should send a load with no older stores to memory", func() {
		lsq.DispatchLoad(readyLoad(0, 40, 0x100, 4, false))
		tick(3)
		Expect(port.requests).To(HaveLen(1))
		Expect(port.requests[0].IsLoad).To(BeTrue())
		Expect(port.requests[0].Addr).To(Equal(uint32(0x100)))
		Expect(port.requests[0].Target).To(Equal(uint16(40)))

		port.responses = append(port.responses, &mem.Response{
			ID: port.requests[0].ID, IsLoad: true, Data: 0x1234,
		})
		tick(1)
		b, ok := lsq.LoadBroadcast()
		Expect(ok).To(BeTrue())
		Expect(b.Tag).To(Equal(0))
		Expect(b.PDst).To(Equal(ooo.PReg(40)))
		Expect(b.Data).To(Equal(uint32(0x1234)))
		Expect(b.WriteEnable).To(BeTrue())

		lsq.GrantLoad()
		Expect(lsq.Empty()).To(BeTrue())
	})

	DescribeTable("forwarding from a ready older store",
		func(storeWidth int, loadAddr uint32, loadWidth int, unsigned bool, want uint32) {
			lsq.DispatchStore(readyStore(0, 0x100, 0x8899AABB, storeWidth))
			lsq.DispatchLoad(readyLoad(1, 41, loadAddr, loadWidth, unsigned))
			tick(4)

			b, ok := lsq.LoadBroadcast()
			Expect(ok).To(BeTrue())
			Expect(b.Data).To(Equal(want))
			Expect(port.requests).To(BeEmpty())
			Expect(lsq.Stats().ForwardedLoads).To(Equal(uint64(1)))
		},
		Entry("word from word", 4, uint32(0x100), 4, false, uint32(0x8899AABB)),
		Entry("signed byte", 4, uint32(0x101), 1, false, uint32(0xFFFFFFAA)),
		Entry("unsigned byte", 4, uint32(0x101), 1, true, uint32(0xAA)),
		Entry("signed upper half", 4, uint32(0x102), 2, false, uint32(0xFFFF8899)),
		Entry("byte from byte", 1, uint32(0x100), 1, true, uint32(0xBB)),
	)

	It("should forward from the youngest covering store", func() {
		lsq.DispatchStore(readyStore(0, 0x100, 0x11111111, 4))
		lsq.DispatchStore(readyStore(1, 0x100, 0x22222222, 4))
		lsq.DispatchLoad(readyLoad(2, 41, 0x100, 4, false))
		tick(5)

		b, ok := lsq.LoadBroadcast()
		Expect(ok).To(BeTrue())
		Expect(b.Data).To(Equal(uint32(0x22222222)))
	})

	It("should put a load to sleep behind a store without data and wake it on the store's broadcast", func() {
		st := readyStore(0, 0x100, 0, 4)
		st.DataReady, st.DataPReg = false, 45
		lsq.DispatchStore(st)
		lsq.DispatchLoad(readyLoad(1, 41, 0x100, 4, false))
		tick(4)

		slept := false
		lsq.LB.Each(func(_ int, e *ooo.LoadEntry) bool {
			slept = e.Sleeping && e.WakeTag == 0
			return true
		})
		Expect(slept).To(BeTrue())
		Expect(port.requests).To(BeEmpty())

		lsq.Broadcast(ooo.Broadcast{Valid: true, Tag: 7, PDst: 45, Data: 0xCAFE, WriteEnable: true})
		grantStores()
		lsq.LB.Each(func(_ int, e *ooo.LoadEntry) bool {
			Expect(e.Sleeping).To(BeFalse())
			return true
		})

		tick(1)
		b, ok := lsq.LoadBroadcast()
		Expect(ok).To(BeTrue())
		Expect(b.Data).To(Equal(uint32(0xCAFE)))
	})

	It("should wait for a partially overlapping store to drain", func() {
		lsq.DispatchStore(readyStore(0, 0x100, 0xAB, 1))
		lsq.DispatchLoad(readyLoad(1, 41, 0x100, 4, false))
		tick(4)
		Expect(lsq.Stats().SleptLoads).To(Equal(uint64(1)))

		// The broadcast wakes the load, but it cannot forward and sleeps again.
		grantStores()
		tick(1)
		Expect(lsq.Stats().SleptLoads).To(Equal(uint64(2)))

		lsq.Commit(0)
		tick(1)
		Expect(port.requests).To(HaveLen(1))
		Expect(port.requests[0].IsLoad).To(BeFalse())
		Expect(port.requests[0].Data).To(Equal(uint32(0xAB)))

		tick(1)
		Expect(port.requests).To(HaveLen(2))
		Expect(port.requests[1].IsLoad).To(BeTrue())
	})

	It("should not forward past a younger store with an unresolved address", func() {
		lsq.DispatchStore(readyStore(0, 0x100, 0x11, 4))
		blocker := readyStore(1, 0, 0x22, 4)
		blocker.AddrReady, blocker.AddrPReg = false, 46
		lsq.DispatchStore(blocker)
		lsq.DispatchLoad(readyLoad(2, 41, 0x100, 4, false))
		tick(5)

		_, ok := lsq.LoadBroadcast()
		Expect(ok).To(BeFalse())
		var wake int
		lsq.LB.Each(func(_ int, e *ooo.LoadEntry) bool {
			Expect(e.Sleeping).To(BeTrue())
			wake = e.WakeTag
			return true
		})
		Expect(wake).To(Equal(1))
	})

	It("should ignore stores dispatched after the load", func() {
		lsq.DispatchLoad(readyLoad(0, 41, 0x100, 4, false))
		late := readyStore(1, 0, 0, 4)
		late.AddrReady, late.AddrPReg = false, 46
		lsq.DispatchStore(late)
		tick(3)
		Expect(port.requests).To(HaveLen(1))
	})

	It("should only drain committed stores that have broadcast", func() {
		lsq.DispatchStore(readyStore(0, 0x200, 5, 4))
		tick(3)
		lsq.Commit(0)
		tick(1)
		Expect(port.requests).To(BeEmpty())

		grantStores()
		tick(1)
		Expect(port.requests).To(HaveLen(1))
		Expect(port.requests[0].Addr).To(Equal(uint32(0x200)))
		Expect(lsq.SQ.Empty()).To(BeTrue())
	})

	It("should drop responses of flushed loads", func() {
		lsq.DispatchLoad(readyLoad(3, 41, 0x100, 4, false))
		tick(3)
		Expect(port.requests).To(HaveLen(1))

		lsq.Flush(ooo.Flush{Valid: true, Tag: 2, Head: 0, Size: 8})
		port.responses = append(port.responses, &mem.Response{ID: port.requests[0].ID, IsLoad: true})
		tick(1)
		_, ok := lsq.LoadBroadcast()
		Expect(ok).To(BeFalse())
		Expect(lsq.Stats().DroppedResponses).To(Equal(uint64(1)))
	})

	It("should never flush committed stores", func() {
		lsq.DispatchStore(readyStore(5, 0x100, 1, 4))
		lsq.DispatchStore(readyStore(6, 0x104, 2, 4))
		lsq.Commit(5)
		lsq.Flush(ooo.Flush{Valid: true, Tag: 4, Head: 4, Size: 8})
		Expect(lsq.SQ.Len()).To(Equal(1))
	})

	It("should compute one address per cycle, stores first", func() {
		lsq.DispatchLoad(readyLoad(0, 41, 0x300, 4, false))
		lsq.DispatchStore(readyStore(1, 0x100, 0, 4))
		tick(1)
		Expect(lsq.SQ.At(lsq.SQ.Head()).AddrComputed).To(BeTrue())
		Expect(lsq.LB.At(0).AddrComputed).To(BeFalse())
		tick(1)
		Expect(lsq.SQ.At(lsq.SQ.Head()).AddrResolved).To(BeTrue())
		Expect(lsq.LB.At(0).AddrComputed).To(BeTrue())
		Expect(lsq.LB.At(0).AddrResolved).To(BeFalse())
	})
})
