// Package ooo provides the structures of the out-of-order core: register
// renaming (free list, alias table, physical register file), issue buffers,
// the reorder buffer with walk-back rollback, the load/store queue and the
// broadcast arbiter.
//
// Every structure follows the same tick discipline. Inputs for a cycle (the
// flush signal and the single arbitrated broadcast) are resolved first and
// handed to each structure, which then updates itself from its own state as
// it stood at the start of the cycle.
package ooo

// Ptr is a position in a ring of n slots. Pointers count modulo 2n so that
// a full ring (tail == head + n) is distinguishable from an empty one.
type Ptr uint32

// Ring does pointer arithmetic for a ring of fixed size.
type Ring struct {
	n uint32
}

// NewRing returns the arithmetic for a ring of n slots.
func NewRing(n int) Ring {
	if n <= 0 {
		panic("ooo: ring size must be positive")
	}
	return Ring{n: uint32(n)}
}

// Size returns the number of slots.
func (r Ring) Size() int {
	return int(r.n)
}

// Index returns the slot a pointer refers to.
func (r Ring) Index(p Ptr) int {
	return int(uint32(p) % r.n)
}

// Next returns the pointer after p.
func (r Ring) Next(p Ptr) Ptr {
	return Ptr((uint32(p) + 1) % (2 * r.n))
}

// Prev returns the pointer before p.
func (r Ring) Prev(p Ptr) Ptr {
	return Ptr((uint32(p) + 2*r.n - 1) % (2 * r.n))
}

// Count returns the number of occupied slots between head and tail.
func (r Ring) Count(head, tail Ptr) int {
	return int((uint32(tail) + 2*r.n - uint32(head)) % (2 * r.n))
}

// PtrAt returns the pointer, at or after head, whose slot is index.
func (r Ring) PtrAt(head Ptr, index int) Ptr {
	return Ptr((uint32(head) + uint32(r.Distance(r.Index(head), index))) % (2 * r.n))
}

// Distance returns how many slots lie from slot from forward to slot to.
func (r Ring) Distance(from, to int) int {
	return int((uint32(to) + r.n - uint32(from)) % r.n)
}

// IsYounger is the age comparator. In a reorder buffer of n slots whose
// oldest entry is at slot head, it reports whether tag lies strictly after
// flushTag. Tags in the circular range [head, flushTag] are kept, so the
// flushing instruction itself always survives.
func IsYounger(tag, flushTag, head, n int) bool {
	r := NewRing(n)
	return r.Distance(head, tag) > r.Distance(head, flushTag)
}

// Queue is a fixed-capacity FIFO ring that can also be popped and truncated
// at the tail.
type Queue[T any] struct {
	ring Ring
	buf  []T
	head Ptr
	tail Ptr
}

// NewQueue creates an empty queue of n slots.
func NewQueue[T any](n int) *Queue[T] {
	return &Queue[T]{ring: NewRing(n), buf: make([]T, n)}
}

// Ring returns the queue's pointer arithmetic.
func (q *Queue[T]) Ring() Ring { return q.ring }

// Head returns the pointer to the oldest entry.
func (q *Queue[T]) Head() Ptr { return q.head }

// Tail returns the pointer one past the youngest entry.
func (q *Queue[T]) Tail() Ptr { return q.tail }

// Len returns the number of entries.
func (q *Queue[T]) Len() int { return q.ring.Count(q.head, q.tail) }

// Cap returns the capacity.
func (q *Queue[T]) Cap() int { return q.ring.Size() }

// Empty reports whether the queue has no entries.
func (q *Queue[T]) Empty() bool { return q.head == q.tail }

// Full reports whether the queue has no free slot.
func (q *Queue[T]) Full() bool { return q.Len() == q.ring.Size() }

// Push appends v at the tail and returns the pointer it was stored at.
func (q *Queue[T]) Push(v T) Ptr {
	if q.Full() {
		panic("ooo: push to a full queue")
	}
	p := q.tail
	q.buf[q.ring.Index(p)] = v
	q.tail = q.ring.Next(p)
	return p
}

// PushHead inserts v in front of the oldest entry.
func (q *Queue[T]) PushHead(v T) Ptr {
	if q.Full() {
		panic("ooo: push to a full queue")
	}
	q.head = q.ring.Prev(q.head)
	q.buf[q.ring.Index(q.head)] = v
	return q.head
}

// PopHead removes and returns the oldest entry.
func (q *Queue[T]) PopHead() T {
	if q.Empty() {
		panic("ooo: pop from an empty queue")
	}
	var zero T
	i := q.ring.Index(q.head)
	v := q.buf[i]
	q.buf[i] = zero
	q.head = q.ring.Next(q.head)
	return v
}

// PopTail removes and returns the youngest entry.
func (q *Queue[T]) PopTail() T {
	if q.Empty() {
		panic("ooo: pop from an empty queue")
	}
	var zero T
	q.tail = q.ring.Prev(q.tail)
	i := q.ring.Index(q.tail)
	v := q.buf[i]
	q.buf[i] = zero
	return v
}

// Truncate drops every entry from p to the tail.
func (q *Queue[T]) Truncate(p Ptr) {
	for q.tail != p && !q.Empty() {
		q.PopTail()
	}
}

// At returns the entry stored at p. The pointer must be occupied.
func (q *Queue[T]) At(p Ptr) *T {
	return &q.buf[q.ring.Index(p)]
}

// Slot returns the entry stored in slot i.
func (q *Queue[T]) Slot(i int) *T {
	return &q.buf[i]
}

// Contains reports whether p points at an occupied slot.
func (q *Queue[T]) Contains(p Ptr) bool {
	return q.ring.Count(q.head, p) < q.Len()
}

// Each calls fn for every entry, oldest first, until fn returns false.
func (q *Queue[T]) Each(fn func(p Ptr, v *T) bool) {
	for p := q.head; p != q.tail; p = q.ring.Next(p) {
		if !fn(p, q.At(p)) {
			return
		}
	}
}

// Reset empties the queue.
func (q *Queue[T]) Reset() {
	clear(q.buf)
	q.head, q.tail = 0, 0
}
