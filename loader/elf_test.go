package loader_test

import (
	"encoding/binary"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/insts"
	"github.com/sarchlab/boomsim/loader"
)

const (
	pfX = 0x1
	pfW = 0x2
	pfR = 0x4

	emRISCV = 243
	em386   = 3
)

type testSegment struct {
	vaddr   uint32
	data    []byte
	memSize uint32
	flags   uint32
	ptype   uint32
}

var _ = Describe("ELF Loader", func() {
	var tempDir string

	BeforeEach(func() {
		var err error
		tempDir, err = os.MkdirTemp("", "elf-loader-test")
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		_ = os.RemoveAll(tempDir)
	})

	code := insts.Program(
		insts.ADDI(insts.RegA0, 0, 42),
		insts.ECALL(),
	)

	Describe("Load", func() {
		Context("with a valid RV32 ELF binary", func() {
			var elfPath string

			BeforeEach(func() {
				elfPath = filepath.Join(tempDir, "test.elf")
				createRV32ELF(elfPath, emRISCV, 0x10080, testSegment{
					vaddr: 0x10000, data: code, flags: pfR | pfX,
				})
			})

			It("should load without error", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog).NotTo(BeNil())
			})

			It("should extract the correct entry point", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.EntryPoint).To(Equal(uint32(0x10080)))
			})

			It("should load segment contents", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.Segments).To(HaveLen(1))
				Expect(prog.Segments[0].VirtAddr).To(Equal(uint32(0x10000)))
				Expect(prog.Segments[0].Data).To(Equal(code))
				Expect(prog.Segments[0].Flags & loader.SegmentFlagExecute).NotTo(BeZero())
			})

			It("should set up initial stack pointer", func() {
				prog, err := loader.Load(elfPath)
				Expect(err).NotTo(HaveOccurred())
				Expect(prog.InitialSP).To(Equal(uint32(loader.DefaultStackTop)))
			})
		})

		Context("with an invalid file", func() {
			It("should return error for non-existent file", func() {
				_, err := loader.Load("/nonexistent/path/to/file.elf")
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("failed to open"))
			})

			It("should return error for non-ELF file", func() {
				notElfPath := filepath.Join(tempDir, "not-elf.bin")
				Expect(os.WriteFile(notElfPath, []byte("not an elf file"), 0644)).To(Succeed())

				_, err := loader.Load(notElfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("ELF"))
			})

			It("should return error for empty file", func() {
				emptyPath := filepath.Join(tempDir, "empty.elf")
				Expect(os.WriteFile(emptyPath, []byte{}, 0644)).To(Succeed())

				_, err := loader.Load(emptyPath)
				Expect(err).To(HaveOccurred())
			})
		})

		Context("with a foreign ELF", func() {
			It("should reject a 32-bit x86 binary", func() {
				elfPath := filepath.Join(tempDir, "x86.elf")
				createRV32ELF(elfPath, em386, 0)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a RISC-V"))
			})

			It("should reject a 64-bit binary", func() {
				elfPath := filepath.Join(tempDir, "elf64.elf")
				createMinimal64BitELF(elfPath)

				_, err := loader.Load(elfPath)
				Expect(err).To(HaveOccurred())
				Expect(err.Error()).To(ContainSubstring("not a 32-bit"))
			})
		})
	})

	Describe("Multi-segment ELFs", func() {
		It("should load code, data and BSS", func() {
			elfPath := filepath.Join(tempDir, "multi.elf")
			dataBytes := []byte{0x01, 0x02, 0x03, 0x04}
			createRV32ELF(elfPath, emRISCV, 0x10000,
				testSegment{vaddr: 0x10000, data: code, flags: pfR | pfX},
				testSegment{vaddr: 0x20000, data: dataBytes, memSize: 1024, flags: pfR | pfW},
				testSegment{vaddr: 0x30000, ptype: 4},
			)

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(HaveLen(2))

			dataSeg := prog.Segments[1]
			Expect(dataSeg.VirtAddr).To(Equal(uint32(0x20000)))
			Expect(dataSeg.Data).To(Equal(dataBytes))
			Expect(dataSeg.MemSize).To(Equal(uint32(1024)))
			Expect(dataSeg.Flags & loader.SegmentFlagWrite).NotTo(BeZero())
			Expect(prog.Size()).To(Equal(uint64(len(code) + 1024)))
		})

		It("should copy segments into memory and clear BSS", func() {
			elfPath := filepath.Join(tempDir, "bss.elf")
			createRV32ELF(elfPath, emRISCV, 0x10000,
				testSegment{vaddr: 0x10000, data: code, flags: pfR | pfX},
				testSegment{vaddr: 0x20000, data: []byte{0xAA}, memSize: 8, flags: pfR | pfW},
			)
			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())

			memory := emu.NewMemory()
			memory.Write32(0x20004, 0xFFFFFFFF)
			prog.LoadInto(memory)

			Expect(memory.Read32(0x10000)).To(Equal(insts.ADDI(insts.RegA0, 0, 42)))
			Expect(memory.Read8(0x20000)).To(Equal(uint8(0xAA)))
			Expect(memory.Read32(0x20004)).To(Equal(uint32(0)))
		})
	})

	Describe("ELFs with no loadable segments", func() {
		It("should return an empty segment list", func() {
			elfPath := filepath.Join(tempDir, "no-load.elf")
			createRV32ELF(elfPath, emRISCV, 0x400000, testSegment{vaddr: 0x1000, ptype: 4})

			prog, err := loader.Load(elfPath)
			Expect(err).NotTo(HaveOccurred())
			Expect(prog.Segments).To(BeEmpty())
			Expect(prog.EntryPoint).To(Equal(uint32(0x400000)))
		})
	})
})

// createRV32ELF writes a little-endian ELF32 executable whose program
// headers describe segs, with segment data laid out after the headers.
func createRV32ELF(path string, machine uint16, entry uint32, segs ...testSegment) {
	const ehSize, phSize = 52, 32

	header := make([]byte, ehSize)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 1 // ELFCLASS32
	header[5] = 1 // little endian
	header[6] = 1 // version
	binary.LittleEndian.PutUint16(header[16:18], 2) // executable
	binary.LittleEndian.PutUint16(header[18:20], machine)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint32(header[24:28], entry)
	binary.LittleEndian.PutUint32(header[28:32], ehSize) // phoff
	binary.LittleEndian.PutUint16(header[40:42], ehSize)
	binary.LittleEndian.PutUint16(header[42:44], phSize)
	binary.LittleEndian.PutUint16(header[44:46], uint16(len(segs)))
	binary.LittleEndian.PutUint16(header[46:48], 40) // shentsize

	offset := uint32(ehSize + phSize*len(segs))
	var phdrs, body []byte
	for _, seg := range segs {
		ptype := seg.ptype
		if ptype == 0 {
			ptype = 1 // PT_LOAD
		}
		memSize := seg.memSize
		if memSize == 0 {
			memSize = uint32(len(seg.data))
		}

		ph := make([]byte, phSize)
		binary.LittleEndian.PutUint32(ph[0:4], ptype)
		binary.LittleEndian.PutUint32(ph[4:8], offset)
		binary.LittleEndian.PutUint32(ph[8:12], seg.vaddr)
		binary.LittleEndian.PutUint32(ph[12:16], seg.vaddr)
		binary.LittleEndian.PutUint32(ph[16:20], uint32(len(seg.data)))
		binary.LittleEndian.PutUint32(ph[20:24], memSize)
		binary.LittleEndian.PutUint32(ph[24:28], seg.flags)
		binary.LittleEndian.PutUint32(ph[28:32], 0x1000)

		phdrs = append(phdrs, ph...)
		body = append(body, seg.data...)
		offset += uint32(len(seg.data))
	}

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(header)
	_, _ = file.Write(phdrs)
	_, _ = file.Write(body)
}

// createMinimal64BitELF writes a header-only ELF64 RISC-V file.
func createMinimal64BitELF(path string) {
	header := make([]byte, 64)
	copy(header[0:4], []byte{0x7f, 'E', 'L', 'F'})
	header[4] = 2 // ELFCLASS64
	header[5] = 1
	header[6] = 1
	binary.LittleEndian.PutUint16(header[16:18], 2)
	binary.LittleEndian.PutUint16(header[18:20], emRISCV)
	binary.LittleEndian.PutUint32(header[20:24], 1)
	binary.LittleEndian.PutUint64(header[32:40], 64)
	binary.LittleEndian.PutUint16(header[52:54], 64)
	binary.LittleEndian.PutUint16(header[54:56], 56)

	file, _ := os.Create(path)
	defer func() { _ = file.Close() }()
	_, _ = file.Write(header)
}
