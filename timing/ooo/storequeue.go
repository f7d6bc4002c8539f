package ooo

// StoreEntry is one store in the store queue. Operands are captured at
// dispatch or from a later broadcast.
type StoreEntry struct {
	Tag int

	AddrPReg  PReg
	AddrReady bool
	AddrVal   uint32

	DataPReg  PReg
	DataReady bool
	DataVal   uint32

	Imm uint32
	// Addr is valid once AddrComputed; disambiguation only trusts it once
	// AddrResolved, one cycle later.
	Addr         uint32
	AddrComputed bool
	AddrResolved bool

	Broadcasted bool
	Committed   bool

	Width    int
	Unsigned bool
}

// CanBroadcast reports whether the store can announce it is ready to commit.
func (e *StoreEntry) CanBroadcast() bool {
	return e.AddrResolved && e.DataReady && !e.Broadcasted
}

func (e *StoreEntry) capture(b Broadcast) {
	if !e.AddrReady && b.Writes(e.AddrPReg) {
		e.AddrReady, e.AddrVal = true, b.Data
	}
	if !e.DataReady && b.Writes(e.DataPReg) {
		e.DataReady, e.DataVal = true, b.Data
	}
}

// StoreQueue holds stores in program order.
type StoreQueue struct {
	q *Queue[StoreEntry]
}

// NewStoreQueue creates an empty store queue of n slots.
func NewStoreQueue(n int) *StoreQueue {
	return &StoreQueue{q: NewQueue[StoreEntry](n)}
}

// Len returns the number of stores.
func (s *StoreQueue) Len() int { return s.q.Len() }

// Empty reports whether no store is queued.
func (s *StoreQueue) Empty() bool { return s.q.Empty() }

// Full reports whether no slot is free.
func (s *StoreQueue) Full() bool { return s.q.Full() }

// Head returns the pointer to the oldest store.
func (s *StoreQueue) Head() Ptr { return s.q.Head() }

// Tail returns the pointer the next store will occupy. Loads record it
// to bound the stores they must check.
func (s *StoreQueue) Tail() Ptr { return s.q.Tail() }

// Push appends a store.
func (s *StoreQueue) Push(e StoreEntry) Ptr { return s.q.Push(e) }

// At returns the store at p.
func (s *StoreQueue) At(p Ptr) *StoreEntry { return s.q.At(p) }

// Ring returns the pointer arithmetic of the queue.
func (s *StoreQueue) Ring() Ring { return s.q.Ring() }

// Find returns the queued store with the given tag.
func (s *StoreQueue) Find(tag int) *StoreEntry {
	var found *StoreEntry
	s.q.Each(func(_ Ptr, e *StoreEntry) bool {
		if e.Tag == tag {
			found = e
			return false
		}
		return true
	})
	return found
}

// Commit marks the store with the given tag committed.
func (s *StoreQueue) Commit(tag int) bool {
	if e := s.Find(tag); e != nil {
		e.Committed = true
		return true
	}
	return false
}

// Capture applies a broadcast to every waiting operand.
func (s *StoreQueue) Capture(b Broadcast) {
	if !b.Valid || !b.WriteEnable {
		return
	}
	s.q.Each(func(_ Ptr, e *StoreEntry) bool {
		e.capture(b)
		return true
	})
}

// NextBroadcast returns the oldest store ready to announce itself.
func (s *StoreQueue) NextBroadcast() *StoreEntry {
	var found *StoreEntry
	s.q.Each(func(_ Ptr, e *StoreEntry) bool {
		if e.CanBroadcast() {
			found = e
			return false
		}
		return true
	})
	return found
}

// HeadDrainable reports whether the oldest store may go to memory.
func (s *StoreQueue) HeadDrainable() bool {
	if s.q.Empty() {
		return false
	}
	e := s.q.At(s.q.Head())
	return e.Committed && e.Broadcasted
}

// PopHead removes the oldest store.
func (s *StoreQueue) PopHead() StoreEntry { return s.q.PopHead() }

// Flush drops every uncommitted store the signal kills. Stores are in
// program order, so the killed ones form a suffix.
func (s *StoreQueue) Flush(f Flush) int {
	if !f.Valid {
		return 0
	}
	n := 0
	for !s.q.Empty() {
		tail := s.q.At(s.q.Ring().Prev(s.q.Tail()))
		if tail.Committed || !f.Kills(tail.Tag) {
			break
		}
		s.q.PopTail()
		n++
	}
	return n
}

// Each calls fn for every store, oldest first.
func (s *StoreQueue) Each(fn func(p Ptr, e *StoreEntry) bool) { s.q.Each(fn) }

// Reset empties the queue.
func (s *StoreQueue) Reset() { s.q.Reset() }
