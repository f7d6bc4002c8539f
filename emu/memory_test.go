package emu_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/boomsim/emu"
)

var _ = Describe("Memory", func() {
	var memory *emu.Memory

	BeforeEach(func() {
		memory = emu.NewMemory()
	})

	It("should read zero from untouched memory", func() {
		Expect(memory.Read32(0x8000_0000)).To(Equal(uint32(0)))
	})

	It("should store words little-endian", func() {
		memory.Write32(0x1000, 0xDEADBEEF)

		Expect(memory.Read8(0x1000)).To(Equal(uint8(0xEF)))
		Expect(memory.Read8(0x1003)).To(Equal(uint8(0xDE)))
		Expect(memory.Read16(0x1002)).To(Equal(uint16(0xDEAD)))
		Expect(memory.Read32(0x1000)).To(Equal(uint32(0xDEADBEEF)))
	})

	It("should sign- and zero-extend sized reads", func() {
		memory.Write16(0x2000, 0x80FF)

		Expect(memory.ReadSized(0x2000, 1, false)).To(Equal(uint32(0xFFFFFFFF)))
		Expect(memory.ReadSized(0x2000, 1, true)).To(Equal(uint32(0xFF)))
		Expect(memory.ReadSized(0x2000, 2, false)).To(Equal(uint32(0xFFFF80FF)))
		Expect(memory.ReadSized(0x2000, 2, true)).To(Equal(uint32(0x80FF)))
	})

	It("should write only the low bytes of sized writes", func() {
		memory.Write32(0x3000, 0x11223344)
		memory.WriteSized(0x3001, 1, 0xAABBCCDD)

		Expect(memory.Read32(0x3000)).To(Equal(uint32(0x1122DD44)))
	})

	It("should tolerate accesses running past the top of the address space", func() {
		memory.Write32(0xFFFFFFFE, 0xAABBCCDD)

		Expect(memory.Read16(0xFFFFFFFE)).To(Equal(uint16(0xCCDD)))
		Expect(memory.Read32(0xFFFFFFFE)).To(Equal(uint32(0xCCDD)))
	})

	It("should load programs at a base address", func() {
		memory.LoadProgram(0x100, []byte{1, 2, 3, 4})
		Expect(memory.Read32(0x100)).To(Equal(uint32(0x04030201)))
	})
})
