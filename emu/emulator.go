package emu

import (
	"errors"
	"fmt"

	"github.com/sarchlab/boomsim/insts"
)

// ErrIllegalInstruction is returned when the emulator fetches a word that
// does not decode to an RV32IM instruction.
var ErrIllegalInstruction = errors.New("illegal instruction")

// ErrInstructionLimit is returned when the instruction budget is exhausted.
var ErrInstructionLimit = errors.New("max instructions reached")

// StepResult represents the result of executing a single instruction.
type StepResult struct {
	// Exited is true if the program terminated (ECALL or EBREAK).
	Exited bool

	// ExitCode is the exit status if Exited is true.
	ExitCode int64

	// Err is set if an error occurred during execution.
	Err error
}

// Emulator executes RV32IM instructions functionally, one per step.
type Emulator struct {
	regFile *RegFile
	memory  *Memory
	decoder *insts.Decoder

	instructionCount uint64
	maxInstructions  uint64 // 0 means no limit

	traceEnabled bool
	trace        []uint32
}

// EmulatorOption is a functional option for configuring the Emulator.
type EmulatorOption func(*Emulator)

// WithMemory runs the emulator on an existing memory image.
func WithMemory(m *Memory) EmulatorOption {
	return func(e *Emulator) {
		e.memory = m
	}
}

// WithMaxInstructions sets the maximum number of instructions to execute.
// A value of 0 means no limit.
func WithMaxInstructions(max uint64) EmulatorOption {
	return func(e *Emulator) {
		e.maxInstructions = max
	}
}

// WithTrace records the PC of every retired instruction.
func WithTrace() EmulatorOption {
	return func(e *Emulator) {
		e.traceEnabled = true
	}
}

// NewEmulator creates a new RV32IM emulator.
func NewEmulator(opts ...EmulatorOption) *Emulator {
	e := &Emulator{
		regFile: &RegFile{},
		decoder: insts.NewDecoder(),
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.memory == nil {
		e.memory = NewMemory()
	}

	return e
}

// RegFile returns the emulator's register file.
func (e *Emulator) RegFile() *RegFile {
	return e.regFile
}

// Memory returns the emulator's memory.
func (e *Emulator) Memory() *Memory {
	return e.memory
}

// InstructionCount returns the number of instructions retired.
func (e *Emulator) InstructionCount() uint64 {
	return e.instructionCount
}

// Trace returns the PCs of retired instructions, oldest first. It is empty
// unless the emulator was created WithTrace.
func (e *Emulator) Trace() []uint32 {
	return e.trace
}

// LoadProgram copies a program image to entry and points the PC at it.
func (e *Emulator) LoadProgram(entry uint32, program []byte) {
	e.memory.LoadProgram(entry, program)
	e.regFile.PC = entry
}

// SetPC sets the program counter.
func (e *Emulator) SetPC(pc uint32) {
	e.regFile.PC = pc
}

// Step executes a single instruction.
func (e *Emulator) Step() StepResult {
	if e.maxInstructions > 0 && e.instructionCount >= e.maxInstructions {
		return StepResult{Err: ErrInstructionLimit}
	}

	pc := e.regFile.PC
	inst := e.decoder.Decode(e.memory.Read32(pc))
	if inst.Op == insts.OpIllegal {
		return StepResult{
			Err: fmt.Errorf("%w 0x%08X at PC=0x%X", ErrIllegalInstruction, inst.Word, pc),
		}
	}

	if e.traceEnabled {
		e.trace = append(e.trace, pc)
	}
	e.instructionCount++

	return e.execute(pc, inst)
}

// Run executes instructions until the program exits or an error occurs.
func (e *Emulator) Run() (int64, error) {
	for {
		result := e.Step()
		if result.Err != nil {
			return -1, result.Err
		}
		if result.Exited {
			return result.ExitCode, nil
		}
	}
}

func (e *Emulator) execute(pc uint32, inst *insts.Instruction) StepResult {
	rf := e.regFile
	a := rf.ReadReg(inst.Rs1)
	b := rf.ReadReg(inst.Rs2)
	if inst.UseImm {
		b = uint32(inst.Imm)
	}
	next := pc + 4

	switch {
	case inst.Op == insts.OpECALL:
		rf.PC = next
		return StepResult{Exited: true, ExitCode: int64(int32(a))}
	case inst.Op == insts.OpEBREAK:
		rf.PC = next
		return StepResult{Exited: true, ExitCode: -1}
	case inst.Op == insts.OpFENCE:
	case inst.IsLoad:
		addr := a + uint32(inst.Imm)
		rf.WriteReg(inst.Rd, e.memory.ReadSized(addr, int(inst.Width), inst.Unsigned))
	case inst.IsStore:
		addr := a + uint32(inst.Imm)
		e.memory.WriteSized(addr, int(inst.Width), rf.ReadReg(inst.Rs2))
	case inst.FU == insts.FUBranch:
		if BranchTaken(inst.Op, a, rf.ReadReg(inst.Rs2)) {
			next = BranchTarget(inst.Op, pc, a, inst.Imm)
		}
		if inst.Op == insts.OpJAL || inst.Op == insts.OpJALR {
			rf.WriteReg(inst.Rd, pc+4)
		}
	case inst.FU == insts.FUMulDiv:
		rf.WriteReg(inst.Rd, MulDiv(inst.Op, a, b))
	default:
		rf.WriteReg(inst.Rd, ALU(inst.Op, a, b, pc))
	}

	rf.PC = next
	return StepResult{}
}
