package cache

import (
	"github.com/sarchlab/boomsim/emu"
)

// MemoryBacking wraps emu.Memory as a BackingStore.
type MemoryBacking struct {
	memory *emu.Memory
}

// NewMemoryBacking creates a new MemoryBacking adapter.
func NewMemoryBacking(memory *emu.Memory) *MemoryBacking {
	return &MemoryBacking{memory: memory}
}

// Read fetches a line from the backing memory.
func (m *MemoryBacking) Read(addr uint64, size int) []byte {
	return m.memory.Read(uint32(addr), size)
}

// Write stores a line to the backing memory.
func (m *MemoryBacking) Write(addr uint64, data []byte) {
	m.memory.Write(uint32(addr), data)
}
