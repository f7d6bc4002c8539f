package ooo

import (
	"github.com/go-logr/logr"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/timing/mem"
)

// MemoryPort is the request/response service the load/store queue talks to.
type MemoryPort interface {
	CanAccept() bool
	Send(req *mem.Request) bool
	Peek() *mem.Response
	Pop() *mem.Response
}

// LoadResult is the load unit's output register, waiting for the
// broadcast channel.
type LoadResult struct {
	Valid     bool
	Tag       int
	PDst      PReg
	Data      uint32
	Forwarded bool
}

// LSQStats holds load/store queue statistics.
type LSQStats struct {
	Loads            uint64
	Stores           uint64
	ForwardedLoads   uint64
	SleptLoads       uint64
	MemoryLoads      uint64
	DrainedStores    uint64
	DroppedResponses uint64
}

// Verdict is the outcome of checking a load against older stores.
type Verdict uint8

// Disambiguation verdicts.
const (
	VerdictMemory Verdict = iota
	VerdictForward
	VerdictConflict
)

func (v Verdict) String() string {
	switch v {
	case VerdictForward:
		return "forward"
	case VerdictConflict:
		return "conflict"
	default:
		return "memory"
	}
}

// Disambiguation is the result of Check.
type Disambiguation struct {
	Verdict Verdict
	// Store is the forwarding store for VerdictForward and the youngest
	// conflicting store for VerdictConflict.
	Store *StoreEntry
	// Data is the forwarded, extended value.
	Data uint32
}

// LSQ is the load/store queue: an ordered store queue, an unordered load
// buffer, one shared address adder and a single memory port.
type LSQ struct {
	SQ *StoreQueue
	LB *LoadBuffer

	mem     MemoryPort
	out     LoadResult
	nextReq uint64
	stats   LSQStats
	log     logr.Logger
}

// NewLSQ creates a load/store queue in front of port.
func NewLSQ(sqSize, lbSize int, port MemoryPort) *LSQ {
	return &LSQ{
		SQ:  NewStoreQueue(sqSize),
		LB:  NewLoadBuffer(lbSize),
		mem: port,
		log: logr.Discard(),
	}
}

// SetLogger sets the logger used for V(2) load and store events.
func (q *LSQ) SetLogger(l logr.Logger) {
	q.log = l
}

// Stats returns the statistics.
func (q *LSQ) Stats() LSQStats {
	return q.stats
}

// CanDispatchLoad reports whether the load buffer has room.
func (q *LSQ) CanDispatchLoad() bool { return !q.LB.Full() }

// CanDispatchStore reports whether the store queue has room.
func (q *LSQ) CanDispatchStore() bool { return !q.SQ.Full() }

// DispatchLoad enqueues a load, recording the store-queue tail as its
// disambiguation horizon.
func (q *LSQ) DispatchLoad(e LoadEntry) int {
	e.SQSnapshot = q.SQ.Tail()
	e.AddrComputed, e.AddrResolved = false, false
	e.Sleeping, e.Issued = false, false
	q.stats.Loads++
	return q.LB.Push(e)
}

// DispatchStore enqueues a store.
func (q *LSQ) DispatchStore(e StoreEntry) {
	e.AddrComputed, e.AddrResolved = false, false
	e.Broadcasted, e.Committed = false, false
	q.stats.Stores++
	q.SQ.Push(e)
}

// Flush drops killed loads, uncommitted killed stores and a killed result
// in the output register. Responses for dropped loads are discarded when
// they arrive.
func (q *LSQ) Flush(f Flush) {
	if !f.Valid {
		return
	}
	q.SQ.Flush(f)
	q.LB.Flush(f)
	if q.out.Valid && f.Kills(q.out.Tag) {
		q.out = LoadResult{}
	}
}

// LoadBroadcast returns the load result requesting the channel.
func (q *LSQ) LoadBroadcast() (Broadcast, bool) {
	if !q.out.Valid {
		return Broadcast{}, false
	}
	return Broadcast{
		Valid:       true,
		Tag:         q.out.Tag,
		PDst:        q.out.PDst,
		Data:        q.out.Data,
		WriteEnable: q.out.PDst != 0,
	}, true
}

// GrantLoad consumes the output register after its broadcast won.
func (q *LSQ) GrantLoad() {
	q.out = LoadResult{}
}

// StoreBroadcast returns the commit-ready notice of the oldest store that
// has both operands.
func (q *LSQ) StoreBroadcast() (Broadcast, bool) {
	e := q.SQ.NextBroadcast()
	if e == nil {
		return Broadcast{}, false
	}
	return Broadcast{Valid: true, Tag: e.Tag}, true
}

// GrantStore marks the announcing store as broadcast.
func (q *LSQ) GrantStore() {
	if e := q.SQ.NextBroadcast(); e != nil {
		e.Broadcasted = true
	}
}

// Commit marks the store with tag committed; it may now drain.
func (q *LSQ) Commit(tag int) {
	if !q.SQ.Commit(tag) {
		panic("ooo: committing a store that is not queued")
	}
}

// Broadcast lets waiting operands capture the value and wakes loads
// sleeping on the broadcasting store.
func (q *LSQ) Broadcast(b Broadcast) {
	if !b.Valid {
		return
	}
	q.SQ.Capture(b)
	q.LB.Capture(b)
	if n := q.LB.Wake(b.Tag); n > 0 {
		q.log.V(2).Info("LSQ: wake loads", "store", b.Tag, "count", n)
	}
}

// Empty reports whether no load or store is queued or in the output
// register.
func (q *LSQ) Empty() bool {
	return q.SQ.Empty() && q.LB.Len() == 0 && !q.out.Valid
}

// Tick advances the queue by one cycle: it takes a memory response, drains
// one committed store, checks one load, and then lets the shared adder
// compute one address. Addresses computed this cycle are not trusted by
// the check until the next one.
func (q *LSQ) Tick() {
	q.receive()
	sent := q.drain()
	q.checkLoad(sent)
	q.promote()
	q.computeAddress()
}

func (q *LSQ) receive() {
	for resp := q.mem.Peek(); resp != nil; resp = q.mem.Peek() {
		if !resp.IsLoad {
			q.mem.Pop()
			continue
		}
		slot, ok := q.LB.FindRequest(resp.ID)
		if !ok {
			q.mem.Pop()
			q.stats.DroppedResponses++
			continue
		}
		if q.out.Valid {
			return
		}
		q.mem.Pop()
		e := q.LB.At(slot)
		q.out = LoadResult{Valid: true, Tag: e.Tag, PDst: e.PDst, Data: resp.Data}
		q.LB.Remove(slot)
		return
	}
}

func (q *LSQ) drain() bool {
	if !q.SQ.HeadDrainable() || !q.mem.CanAccept() {
		return false
	}
	e := q.SQ.PopHead()
	q.nextReq++
	q.mem.Send(&mem.Request{
		ID:    q.nextReq,
		Addr:  e.Addr,
		Data:  e.DataVal,
		Width: e.Width,
	})
	q.stats.DrainedStores++
	q.log.V(2).Info("LSQ: store drained", "tag", e.Tag, "addr", e.Addr)
	if n := q.LB.Wake(e.Tag); n > 0 {
		q.log.V(2).Info("LSQ: wake loads", "store", e.Tag, "count", n)
	}
	return true
}

func (q *LSQ) checkLoad(portBusy bool) {
	slot := -1
	q.LB.Each(func(s int, e *LoadEntry) bool {
		if e.Checkable() {
			slot = s
			return false
		}
		return true
	})
	if slot < 0 {
		return
	}

	e := q.LB.At(slot)
	d := q.Check(e)
	switch d.Verdict {
	case VerdictForward:
		if q.out.Valid {
			return
		}
		q.out = LoadResult{Valid: true, Tag: e.Tag, PDst: e.PDst, Data: d.Data, Forwarded: true}
		q.LB.Remove(slot)
		q.stats.ForwardedLoads++
	case VerdictConflict:
		e.Sleeping, e.WakeTag = true, d.Store.Tag
		q.stats.SleptLoads++
		q.log.V(2).Info("LSQ: load sleeping", "tag", e.Tag, "store", d.Store.Tag)
	case VerdictMemory:
		if portBusy || !q.mem.CanAccept() {
			return
		}
		q.nextReq++
		e.Issued, e.ReqID = true, q.nextReq
		q.mem.Send(&mem.Request{
			ID:       e.ReqID,
			IsLoad:   true,
			Addr:     e.Addr,
			Width:    e.Width,
			Unsigned: e.Unsigned,
			Target:   uint16(e.PDst),
		})
		q.stats.MemoryLoads++
	}
}

// Check disambiguates a load against the stores older than it. A store
// conflicts when its bytes overlap the load's, or when its address is not
// yet resolved. The youngest conflicting store decides: the load forwards
// from it when it covers every byte of the load and has its data, and
// otherwise waits for it.
func (q *LSQ) Check(e *LoadEntry) Disambiguation {
	var youngest *StoreEntry
	ring := q.SQ.Ring()
	for p := q.SQ.Head(); p != e.SQSnapshot && q.SQ.q.Contains(p); p = ring.Next(p) {
		s := q.SQ.At(p)
		if !s.AddrResolved || overlaps(s.Addr, s.Width, e.Addr, e.Width) {
			youngest = s
		}
	}

	switch {
	case youngest == nil:
		return Disambiguation{Verdict: VerdictMemory}
	case youngest.AddrResolved && youngest.DataReady &&
		covers(youngest.Addr, youngest.Width, e.Addr, e.Width):
		shift := 8 * (e.Addr - youngest.Addr)
		data := emu.Extend(youngest.DataVal>>shift, e.Width, e.Unsigned)
		return Disambiguation{Verdict: VerdictForward, Store: youngest, Data: data}
	default:
		return Disambiguation{Verdict: VerdictConflict, Store: youngest}
	}
}

func overlaps(a uint32, aw int, b uint32, bw int) bool {
	as, bs := uint64(a), uint64(b)
	return as < bs+uint64(bw) && bs < as+uint64(aw)
}

// covers reports whether [a, a+aw) contains [b, b+bw).
func covers(a uint32, aw int, b uint32, bw int) bool {
	as, bs := uint64(a), uint64(b)
	return as <= bs && bs+uint64(bw) <= as+uint64(aw)
}

func (q *LSQ) promote() {
	q.SQ.Each(func(_ Ptr, s *StoreEntry) bool {
		if s.AddrComputed {
			s.AddrResolved = true
		}
		return true
	})
	q.LB.Each(func(_ int, l *LoadEntry) bool {
		if l.AddrComputed {
			l.AddrResolved = true
		}
		return true
	})
}

// computeAddress runs the shared adder for one entry: the oldest store
// waiting for it, else the lowest-slot load.
func (q *LSQ) computeAddress() {
	done := false
	q.SQ.Each(func(_ Ptr, s *StoreEntry) bool {
		if s.AddrReady && !s.AddrComputed {
			s.Addr, s.AddrComputed = s.AddrVal+s.Imm, true
			done = true
			return false
		}
		return true
	})
	if done {
		return
	}
	q.LB.Each(func(_ int, l *LoadEntry) bool {
		if l.AddrReady && !l.AddrComputed {
			l.Addr, l.AddrComputed = l.AddrVal+l.Imm, true
			return false
		}
		return true
	})
}

// Reset empties every queue and the output register.
func (q *LSQ) Reset() {
	q.SQ.Reset()
	q.LB.Reset()
	q.out = LoadResult{}
	q.nextReq = 0
	q.stats = LSQStats{}
}
