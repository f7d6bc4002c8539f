package frontend

// RAS is a circular return-address stack. Its pointer counts pushes minus
// pops; restoring a saved pointer undoes wrong-path pushes and pops,
// though entries overwritten on the wrong path stay overwritten.
type RAS struct {
	stack []uint32
	sp    int
}

// NewRAS creates an empty stack of depth entries.
func NewRAS(depth int) *RAS {
	if depth <= 0 {
		depth = 16
	}
	return &RAS{stack: make([]uint32, depth)}
}

// Push records a return address.
func (r *RAS) Push(addr uint32) {
	r.sp++
	r.stack[r.sp%len(r.stack)] = addr
}

// Pop returns the most recent return address. It fails on an empty stack.
func (r *RAS) Pop() (uint32, bool) {
	if r.sp == 0 {
		return 0, false
	}
	addr := r.stack[r.sp%len(r.stack)]
	r.sp--
	return addr, true
}

// Pointer returns the current stack pointer.
func (r *RAS) Pointer() int {
	return r.sp
}

// Restore sets the stack pointer to a saved value.
func (r *RAS) Restore(sp int) {
	r.sp = sp
}

// Reset empties the stack.
func (r *RAS) Reset() {
	clear(r.stack)
	r.sp = 0
}
