package emu

import (
	"fmt"

	"github.com/sarchlab/akita/v4/mem/mem"
)

// AddressSpaceSize is the size of the flat RV32 physical address space.
const AddressSpaceSize = uint64(1) << 32

// Memory is the flat little-endian RV32 address space. Pages are allocated
// on first touch by the underlying akita storage, so the full 4 GiB range is
// addressable without reserving it up front.
type Memory struct {
	storage *mem.Storage
}

// NewMemory creates an empty 4 GiB memory.
func NewMemory() *Memory {
	return &Memory{storage: mem.NewStorage(AddressSpaceSize)}
}

// Storage exposes the backing akita storage.
func (m *Memory) Storage() *mem.Storage {
	return m.storage
}

// Read copies size bytes starting at addr. Bytes beyond the end of the
// address space read as zero.
func (m *Memory) Read(addr uint32, size int) []byte {
	data := make([]byte, size)
	n := inRange(addr, size)
	if n == 0 {
		return data
	}
	chunk, err := m.storage.Read(uint64(addr), uint64(n))
	if err == nil {
		copy(data, chunk)
	}
	return data
}

// Write copies data to memory starting at addr. Bytes beyond the end of the
// address space are dropped.
func (m *Memory) Write(addr uint32, data []byte) {
	n := inRange(addr, len(data))
	if n == 0 {
		return
	}
	if err := m.storage.Write(uint64(addr), data[:n]); err != nil {
		panic(fmt.Sprintf("memory write at 0x%X: %v", addr, err))
	}
}

// inRange returns how many of size bytes at addr lie inside the address space.
func inRange(addr uint32, size int) int {
	left := AddressSpaceSize - uint64(addr)
	if uint64(size) > left {
		return int(left)
	}
	return size
}

// Read8 reads one byte.
func (m *Memory) Read8(addr uint32) uint8 {
	return m.Read(addr, 1)[0]
}

// Read16 reads a little-endian halfword.
func (m *Memory) Read16(addr uint32) uint16 {
	b := m.Read(addr, 2)
	return uint16(b[0]) | uint16(b[1])<<8
}

// Read32 reads a little-endian word.
func (m *Memory) Read32(addr uint32) uint32 {
	b := m.Read(addr, 4)
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

// Write8 writes one byte.
func (m *Memory) Write8(addr uint32, v uint8) {
	m.Write(addr, []byte{v})
}

// Write16 writes a little-endian halfword.
func (m *Memory) Write16(addr uint32, v uint16) {
	m.Write(addr, []byte{byte(v), byte(v >> 8)})
}

// Write32 writes a little-endian word.
func (m *Memory) Write32(addr uint32, v uint32) {
	m.Write(addr, []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)})
}

// LoadProgram copies a program image into memory at base.
func (m *Memory) LoadProgram(base uint32, program []byte) {
	m.Write(base, program)
}

// ReadSized reads a value of the given width (1, 2 or 4 bytes) and
// sign- or zero-extends it to 32 bits.
func (m *Memory) ReadSized(addr uint32, width int, unsigned bool) uint32 {
	switch width {
	case 1:
		return Extend(uint32(m.Read8(addr)), 1, unsigned)
	case 2:
		return Extend(uint32(m.Read16(addr)), 2, unsigned)
	default:
		return m.Read32(addr)
	}
}

// WriteSized writes the low width bytes of v.
func (m *Memory) WriteSized(addr uint32, width int, v uint32) {
	switch width {
	case 1:
		m.Write8(addr, uint8(v))
	case 2:
		m.Write16(addr, uint16(v))
	default:
		m.Write32(addr, v)
	}
}
