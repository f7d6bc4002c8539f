package ooo

// Arbiter grants the broadcast channel to one requester per cycle in
// round-robin order, starting after the last winner.
type Arbiter struct {
	n    int
	last int

	// Conflicts counts cycles in which at least one request lost.
	Conflicts uint64
	Grants    uint64
}

// NewArbiter creates an arbiter over n requesters.
func NewArbiter(n int) *Arbiter {
	return &Arbiter{n: n, last: n - 1}
}

// Arbitrate returns the granted requester index, or -1 when none asked.
func (a *Arbiter) Arbitrate(requests []bool) int {
	winner, asked := -1, 0
	for i := 1; i <= a.n; i++ {
		idx := (a.last + i) % a.n
		if idx >= len(requests) || !requests[idx] {
			continue
		}
		asked++
		if winner < 0 {
			winner = idx
		}
	}
	if winner < 0 {
		return -1
	}
	a.last = winner
	a.Grants++
	if asked > 1 {
		a.Conflicts++
	}
	return winner
}

// Reset restarts the rotation at requester 0.
func (a *Arbiter) Reset() {
	a.last = a.n - 1
	a.Conflicts, a.Grants = 0, 0
}
