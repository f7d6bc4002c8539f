// Package mem provides the data-memory collaborator of the out-of-order
// core: a bounded request queue in front of the L1 data cache, returning
// responses in acceptance order once each access's latency has elapsed.
package mem

import (
	"github.com/sarchlab/akita/v4/sim"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/timing/cache"
)

// DefaultQueueDepth is the number of requests the controller buffers.
const DefaultQueueDepth = 16

// Request is a memory access issued by the load/store queue.
type Request struct {
	// ID identifies the request; responses carry it back.
	ID uint64
	// IsLoad distinguishes reads from writes.
	IsLoad bool
	Addr   uint32
	// Data holds the store value in its low Width bytes.
	Data     uint32
	Width    int
	Unsigned bool
	// Target is the physical register a load writes.
	Target uint16
}

// Response is the reply to a Request. Loads carry the extended data; stores
// receive an acknowledgement with IsLoad false.
type Response struct {
	ID     uint64
	IsLoad bool
	Addr   uint32
	Data   uint32
	Target uint16
}

type inflight struct {
	resp    *Response
	readyAt uint64
}

// Statistics holds memory controller statistics.
type Statistics struct {
	Reads  uint64
	Writes uint64
	// TotalLatency sums accept-to-response cycles over all requests.
	TotalLatency uint64
	// BlockedCycles counts cycles the head request waited for the cache.
	BlockedCycles uint64
}

// AverageLatency returns the mean accept-to-response latency.
func (s Statistics) AverageLatency() float64 {
	n := s.Reads + s.Writes
	if n == 0 {
		return 0
	}
	return float64(s.TotalLatency) / float64(n)
}

// Controller accepts one request per cycle from its queue, performs the
// access functionally against the cache at acceptance, and releases the
// response once the cache latency has elapsed. Responses never overtake
// each other.
type Controller struct {
	reqBuf   sim.Buffer
	respBuf  sim.Buffer
	pending  []inflight
	lastDone uint64

	cache *cache.Cache
	stats Statistics
}

// NewController creates a controller with a request queue of depth entries.
func NewController(depth int, c *cache.Cache) *Controller {
	if depth <= 0 {
		depth = DefaultQueueDepth
	}
	return &Controller{
		reqBuf:  sim.NewBuffer("DataMemory.ReqBuf", depth),
		respBuf: sim.NewBuffer("DataMemory.RespBuf", depth),
		cache:   c,
	}
}

// Cache returns the L1 data cache behind the controller.
func (m *Controller) Cache() *cache.Cache {
	return m.cache
}

// Stats returns controller statistics.
func (m *Controller) Stats() Statistics {
	return m.stats
}

// CanAccept reports whether Send would succeed this cycle.
func (m *Controller) CanAccept() bool {
	return m.reqBuf.CanPush()
}

// Send enqueues a request. It returns false when the queue is full.
func (m *Controller) Send(req *Request) bool {
	if !m.reqBuf.CanPush() {
		return false
	}
	m.reqBuf.Push(req)
	return true
}

// Peek returns the oldest ready response without removing it, or nil.
func (m *Controller) Peek() *Response {
	if item := m.respBuf.Peek(); item != nil {
		return item.(*Response)
	}
	return nil
}

// Pop removes and returns the oldest ready response, or nil.
func (m *Controller) Pop() *Response {
	if item := m.respBuf.Pop(); item != nil {
		return item.(*Response)
	}
	return nil
}

// Idle reports whether no request or response is anywhere in the controller.
func (m *Controller) Idle() bool {
	return m.reqBuf.Size() == 0 && len(m.pending) == 0 && m.respBuf.Size() == 0
}

// Tick advances the controller to cycle now: completed accesses move to the
// response queue, then the head request is accepted if the cache can take it.
func (m *Controller) Tick(now uint64) {
	m.cache.Tick(now)

	for len(m.pending) > 0 && m.pending[0].readyAt <= now && m.respBuf.CanPush() {
		m.respBuf.Push(m.pending[0].resp)
		m.pending = m.pending[1:]
	}

	item := m.reqBuf.Peek()
	if item == nil {
		return
	}
	req := item.(*Request)
	if !m.cache.CanAcceptRange(uint64(req.Addr), req.Width) {
		m.stats.BlockedCycles++
		return
	}
	m.reqBuf.Pop()
	m.accept(req, now)
}

func (m *Controller) accept(req *Request, now uint64) {
	resp := &Response{ID: req.ID, IsLoad: req.IsLoad, Addr: req.Addr, Target: req.Target}

	var result cache.AccessResult
	if req.IsLoad {
		m.stats.Reads++
		result = m.cache.Read(uint64(req.Addr), req.Width, now)
		resp.Data = emu.Extend(uint32(result.Data), req.Width, req.Unsigned)
	} else {
		m.stats.Writes++
		result = m.cache.Write(uint64(req.Addr), req.Width, uint64(req.Data), now)
	}

	readyAt := now + result.Latency
	if readyAt < m.lastDone {
		readyAt = m.lastDone
	}
	m.lastDone = readyAt
	m.stats.TotalLatency += readyAt - now

	m.pending = append(m.pending, inflight{resp: resp, readyAt: readyAt})
}

// Flush writes every dirty cache line back to memory.
func (m *Controller) Flush() {
	m.cache.Flush()
}

// Reset drops all queued work and clears the cache.
func (m *Controller) Reset() {
	m.reqBuf.Clear()
	m.respBuf.Clear()
	m.pending = nil
	m.lastDone = 0
	m.cache.Reset()
	m.stats = Statistics{}
}
