package ooo

import "fmt"

// ROBState is the global state of the reorder buffer.
type ROBState uint8

// Reorder buffer states.
const (
	ROBNormal ROBState = iota
	ROBRollingBack
)

func (s ROBState) String() string {
	if s == ROBRollingBack {
		return "rolling-back"
	}
	return "normal"
}

// ROBEntry is one in-flight instruction.
type ROBEntry struct {
	LogicalDst uint8
	NewPDst    PReg
	StalePDst  PReg
	IsStore    bool
	Ready      bool

	PC uint32
	// Value is the broadcast result, kept for halting instructions and
	// diagnostics.
	Value uint32
	// Halt marks ECALL and EBREAK; Illegal marks an undecodable word.
	Halt    bool
	Illegal bool
}

// RollbackRecord describes one entry popped from the tail during rollback.
type RollbackRecord struct {
	Tag        int
	LogicalDst uint8
	NewPDst    PReg
	StalePDst  PReg
	IsStore    bool
	PC         uint32
}

// RollbackListener consumes rollback records.
type RollbackListener interface {
	OnRollback(rec RollbackRecord)
}

// ROB is the reorder buffer. Tags are slot indices.
type ROB struct {
	q         *Queue[ROBEntry]
	state     ROBState
	target    Ptr
	listeners []RollbackListener
}

// NewROB creates an empty reorder buffer of n slots.
func NewROB(n int) *ROB {
	return &ROB{q: NewQueue[ROBEntry](n)}
}

// AddRollbackListener registers l to be told about every rolled-back entry.
func (r *ROB) AddRollbackListener(l RollbackListener) {
	r.listeners = append(r.listeners, l)
}

// Size returns the number of slots.
func (r *ROB) Size() int { return r.q.Cap() }

// Len returns the number of in-flight entries.
func (r *ROB) Len() int { return r.q.Len() }

// Empty reports whether no instruction is in flight.
func (r *ROB) Empty() bool { return r.q.Empty() }

// State returns the global state.
func (r *ROB) State() ROBState { return r.state }

// Head returns the tag of the oldest entry.
func (r *ROB) Head() int { return r.q.Ring().Index(r.q.Head()) }

// Tail returns the tag the next dispatched entry will get.
func (r *ROB) Tail() int { return r.q.Ring().Index(r.q.Tail()) }

// CanDispatch reports whether Dispatch would succeed.
func (r *ROB) CanDispatch() bool {
	return r.state == ROBNormal && !r.q.Full()
}

// Dispatch pushes e at the tail and returns its tag.
func (r *ROB) Dispatch(e ROBEntry) (int, bool) {
	if !r.CanDispatch() {
		return 0, false
	}
	e.Ready = false
	p := r.q.Push(e)
	return r.q.Ring().Index(p), true
}

// Live reports whether tag names an in-flight entry.
func (r *ROB) Live(tag int) bool {
	if r.q.Empty() {
		return false
	}
	return r.q.Contains(r.q.Ring().PtrAt(r.q.Head(), tag))
}

// Entry returns the in-flight entry with the given tag.
func (r *ROB) Entry(tag int) *ROBEntry {
	if !r.Live(tag) {
		return nil
	}
	return r.q.Slot(tag)
}

// Broadcast marks the entry named by the broadcast ready, in any state.
func (r *ROB) Broadcast(b Broadcast) {
	if !b.Valid {
		return
	}
	if e := r.Entry(b.Tag); e != nil {
		e.Ready = true
		e.Value = b.Data
	}
}

// HeadReady reports whether the head may commit this cycle.
func (r *ROB) HeadReady() bool {
	if r.q.Empty() {
		return false
	}
	if r.state == ROBRollingBack && r.q.Head() == r.target {
		return false
	}
	return r.q.At(r.q.Head()).Ready
}

// Peek returns the head entry, or nil.
func (r *ROB) Peek() *ROBEntry {
	if r.q.Empty() {
		return nil
	}
	return r.q.At(r.q.Head())
}

// Commit pops the head if it is ready. The caller releases the stale
// register.
func (r *ROB) Commit() (int, ROBEntry, bool) {
	if !r.HeadReady() {
		return 0, ROBEntry{}, false
	}
	tag := r.Head()
	return tag, r.q.PopHead(), true
}

// Mispredict starts a rollback that keeps tag and discards everything
// younger. While already rolling back, only a branch older than the
// current boundary moves it.
func (r *ROB) Mispredict(tag int) {
	if !r.Live(tag) {
		panic(fmt.Sprintf("ooo: misprediction for dead tag %d", tag))
	}
	ring := r.q.Ring()
	target := ring.Next(ring.PtrAt(r.q.Head(), tag))
	if r.state == ROBRollingBack && ring.Count(r.q.Head(), target) >= ring.Count(r.q.Head(), r.target) {
		return
	}
	r.state = ROBRollingBack
	r.target = target
}

// RollbackStep pops one entry from the tail and tells every listener.
// It returns false, and leaves the rolling-back state, once the tail has
// reached the boundary.
func (r *ROB) RollbackStep() (RollbackRecord, bool) {
	if r.state != ROBRollingBack {
		return RollbackRecord{}, false
	}
	if r.q.Tail() == r.target {
		r.state = ROBNormal
		return RollbackRecord{}, false
	}
	e := r.q.PopTail()
	rec := RollbackRecord{
		Tag:        r.Tail(),
		LogicalDst: e.LogicalDst,
		NewPDst:    e.NewPDst,
		StalePDst:  e.StalePDst,
		IsStore:    e.IsStore,
		PC:         e.PC,
	}
	for _, l := range r.listeners {
		l.OnRollback(rec)
	}
	return rec, true
}

// Each calls fn for every entry, oldest first.
func (r *ROB) Each(fn func(tag int, e *ROBEntry) bool) {
	r.q.Each(func(p Ptr, e *ROBEntry) bool {
		return fn(r.q.Ring().Index(p), e)
	})
}

// Flush returns the kill signal for a misprediction of tag.
func (r *ROB) Flush(tag int) Flush {
	return Flush{Valid: true, Tag: tag, Head: r.Head(), Size: r.Size()}
}

// Reset empties the buffer and returns to the normal state.
func (r *ROB) Reset() {
	r.q.Reset()
	r.state = ROBNormal
	r.target = 0
}
