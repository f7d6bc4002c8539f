// Package latency provides functional-unit and memory timing for the
// out-of-order core.
//
// All values are configurable through TimingConfig, which loads from JSON
// or YAML.
package latency

import (
	"math/bits"

	"github.com/sarchlab/boomsim/insts"
)

// Table provides instruction latency lookups.
type Table struct {
	config *TimingConfig
}

// NewTable creates a new latency table with default timing values.
func NewTable() *Table {
	return &Table{
		config: DefaultTimingConfig(),
	}
}

// NewTableWithConfig creates a new latency table with custom timing configuration.
func NewTableWithConfig(config *TimingConfig) *Table {
	return &Table{
		config: config,
	}
}

// GetLatency returns the execution latency in cycles for the given
// instruction. Divides return the typical (maximum) latency; use
// DivideLatency for the operand-dependent value. Memory operations return
// the L1 hit latency.
func (t *Table) GetLatency(inst *insts.Instruction) uint64 {
	if inst == nil {
		return 1
	}

	switch inst.FU {
	case insts.FUALU:
		return t.config.ALULatency
	case insts.FUBranch:
		return t.config.BranchLatency
	case insts.FUMulDiv:
		switch inst.Op {
		case insts.OpDIV, insts.OpDIVU, insts.OpREM, insts.OpREMU:
			return t.config.DivideLatencyMax
		default:
			return t.config.MultiplyLatency
		}
	case insts.FUMem:
		return t.config.L1HitLatency
	default:
		return 1
	}
}

// DivideLatency returns the divider latency for a dividend. The divider
// skips leading zero bits, so latency grows with the dividend's magnitude
// from DivideLatencyMin to DivideLatencyMax.
func (t *Table) DivideLatency(dividend uint32, signed bool) uint64 {
	if signed && int32(dividend) < 0 {
		dividend = -dividend
	}
	span := t.config.DivideLatencyMax - t.config.DivideLatencyMin
	return t.config.DivideLatencyMin + span*uint64(bits.Len32(dividend))/32
}

// MissLatency returns the latency of an L1 miss.
func (t *Table) MissLatency() uint64 {
	return t.config.L1HitLatency + t.config.MemoryLatency
}

// IsMemoryOp returns true if the instruction accesses memory.
func (t *Table) IsMemoryOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsLoad || inst.IsStore
}

// IsBranchOp returns true if the instruction is a branch or jump.
func (t *Table) IsBranchOp(inst *insts.Instruction) bool {
	if inst == nil {
		return false
	}
	return inst.IsBranch()
}

// Config returns the current timing configuration.
func (t *Table) Config() *TimingConfig {
	return t.config
}
