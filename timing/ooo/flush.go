package ooo

// Flush is the misprediction kill signal. It is resolved once per cycle
// and handed to every buffering structure, including pipeline registers
// inside the functional units, before any of them updates its state.
type Flush struct {
	Valid bool
	// Tag is the mispredicted branch's reorder-buffer tag. It is kept.
	Tag int
	// Head is the reorder-buffer head slot when the flush is asserted.
	Head int
	// Size is the number of reorder-buffer slots.
	Size int
}

// NoFlush is the idle flush signal.
var NoFlush = Flush{}

// Kills reports whether an instruction with the given tag must be
// discarded by this flush.
func (f Flush) Kills(tag int) bool {
	return f.Valid && IsYounger(tag, f.Tag, f.Head, f.Size)
}

// Broadcast is the single completion record the arbiter grants each cycle.
// It is never stored; consumers match on it while it is driven.
type Broadcast struct {
	Valid bool
	// Tag is the reorder-buffer tag of the completing instruction.
	Tag  int
	PDst PReg
	Data uint32
	// WriteEnable is false for store commit-ready notices, which carry no
	// register value.
	WriteEnable bool
}

// Writes reports whether the broadcast produces the value of p.
func (b Broadcast) Writes(p PReg) bool {
	return b.Valid && b.WriteEnable && p != 0 && b.PDst == p
}
