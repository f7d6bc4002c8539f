// Package core provides the cycle-accurate out-of-order core model.
// It wires renaming, the issue buffers, the functional units, the reorder
// buffer and the load/store queue into one two-phase Tick.
package core

import (
	"errors"
	"fmt"

	"github.com/go-logr/logr"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/insts"
	"github.com/sarchlab/boomsim/timing/cache"
	"github.com/sarchlab/boomsim/timing/frontend"
	"github.com/sarchlab/boomsim/timing/latency"
	"github.com/sarchlab/boomsim/timing/mem"
	"github.com/sarchlab/boomsim/timing/ooo"
)

var (
	// ErrIllegalInstruction is returned when an undecodable instruction
	// reaches commit.
	ErrIllegalInstruction = errors.New("illegal instruction")
	// ErrCycleLimit is returned when Run exceeds its cycle budget.
	ErrCycleLimit = errors.New("cycle limit exceeded")
	// ErrDeadlock is returned when nothing commits for the watchdog period.
	ErrDeadlock = errors.New("no forward progress")
)

// Broadcast channel requesters, in arbitration order.
const (
	srcALU = iota
	srcMulDiv
	srcBranch
	srcLoad
	srcStore
	numSources
)

// Option is a functional option for configuring the Core.
type Option func(*Core)

// WithConfig sets the core configuration. The configuration must be valid.
func WithConfig(config *Config) Option {
	return func(c *Core) {
		c.config = config.Clone()
	}
}

// WithLogger sets the logger. Commits and mispredictions log at V(1),
// rollback steps and load/store queue events at V(2).
func WithLogger(log logr.Logger) Option {
	return func(c *Core) {
		c.log = log
	}
}

// WithMaxCycles bounds Run. Zero means no limit.
func WithMaxCycles(n uint64) Option {
	return func(c *Core) {
		c.maxCycles = n
	}
}

// WithCommitTrace records the PC of every committed instruction.
func WithCommitTrace() Option {
	return func(c *Core) {
		c.traceCommits = true
	}
}

// WithProgress makes Run call fn every interval cycles.
func WithProgress(interval uint64, fn func(cycle, instructions uint64)) Option {
	return func(c *Core) {
		c.progressEvery = interval
		c.progress = fn
	}
}

// Core represents a cycle-accurate out-of-order RV32IM core.
type Core struct {
	config       *Config
	log          logr.Logger
	maxCycles    uint64
	traceCommits bool

	progressEvery uint64
	progress      func(cycle, instructions uint64)

	memory  *emu.Memory
	latency *latency.Table
	mem     *mem.Controller
	fetch   *frontend.Fetcher

	renamer *ooo.Renamer
	rob     *ooo.ROB
	aluIB   *ooo.IssueBuffer[ooo.ALUInfo]
	mulIB   *ooo.IssueBuffer[ooo.MulDivInfo]
	brIB    *ooo.IssueBuffer[ooo.BranchInfo]
	lsq     *ooo.LSQ
	cdb     *ooo.Arbiter

	alu    *unit
	mulDiv *unit
	branch *unit

	cycle      uint64
	lastCommit uint64
	halting    bool
	halted     bool
	exitCode   int64
	err        error
	trace      []uint32
	stats      Stats
}

// NewCore creates a core that fetches from and stores to memory.
func NewCore(memory *emu.Memory, opts ...Option) *Core {
	c := &Core{
		config: DefaultConfig(),
		log:    logr.Discard(),
		memory: memory,
	}
	for _, opt := range opts {
		opt(c)
	}
	if err := c.config.Validate(); err != nil {
		panic(fmt.Sprintf("core: invalid config: %v", err))
	}

	cfg := c.config
	c.latency = latency.NewTableWithConfig(&cfg.Latency)
	dcache := cache.New(cfg.CacheConfig(), cache.NewMemoryBacking(memory))
	c.mem = mem.NewController(cfg.MemQueueDepth, dcache)
	c.fetch = frontend.NewFetcher(memory, cfg.FetchQueueDepth, cfg.Predictor)

	c.renamer = ooo.NewRenamer(cfg.PhysRegs)
	c.rob = ooo.NewROB(cfg.ROBSize)
	c.rob.AddRollbackListener(c.renamer)
	c.rob.AddRollbackListener(c)
	c.aluIB = ooo.NewIssueBuffer[ooo.ALUInfo]("ALU", cfg.IssueBufferSize)
	c.mulIB = ooo.NewIssueBuffer[ooo.MulDivInfo]("MulDiv", cfg.IssueBufferSize)
	c.brIB = ooo.NewIssueBuffer[ooo.BranchInfo]("Branch", cfg.IssueBufferSize)
	c.lsq = ooo.NewLSQ(cfg.StoreQueueSize, cfg.LoadBufferSize, c.mem)
	c.lsq.SetLogger(c.log)
	c.cdb = ooo.NewArbiter(numSources)

	c.alu = newUnit("ALU", cfg.Latency.ALULatency)
	c.mulDiv = newUnit("MulDiv", cfg.Latency.MultiplyLatency)
	c.branch = newUnit("Branch", cfg.Latency.BranchLatency)

	return c
}

// Config returns a copy of the core configuration.
func (c *Core) Config() *Config {
	return c.config.Clone()
}

// SetPC sets the address of the first instruction to fetch.
func (c *Core) SetPC(pc uint32) {
	c.fetch.SetPC(pc)
}

// SetReg sets the initial value of an architectural register. It must be
// called before the first Tick.
func (c *Core) SetReg(reg uint8, v uint32) {
	c.renamer.PRF.Poke(c.renamer.Arch.Lookup(reg), v)
}

// ArchReg returns the committed value of an architectural register.
func (c *Core) ArchReg(reg uint8) uint32 {
	return c.renamer.ArchValue(reg)
}

// ArchRegs returns the committed register file.
func (c *Core) ArchRegs() [32]uint32 {
	var regs [32]uint32
	for r := range regs {
		regs[r] = c.ArchReg(uint8(r))
	}
	return regs
}

// Renamer returns the renaming state.
func (c *Core) Renamer() *ooo.Renamer { return c.renamer }

// ROB returns the reorder buffer.
func (c *Core) ROB() *ooo.ROB { return c.rob }

// LSQ returns the load/store queue.
func (c *Core) LSQ() *ooo.LSQ { return c.lsq }

// Frontend returns the fetcher.
func (c *Core) Frontend() *frontend.Fetcher { return c.fetch }

// Memory returns the data-memory controller.
func (c *Core) Memory() *mem.Controller { return c.mem }

// Cycle returns the number of cycles simulated.
func (c *Core) Cycle() uint64 { return c.cycle }

// Halted returns true once a halting instruction has committed and all
// committed stores have reached memory.
func (c *Core) Halted() bool {
	return c.halted
}

// ExitCode returns the exit code if the core has halted: a0 for ECALL,
// -1 for EBREAK or an illegal instruction.
func (c *Core) ExitCode() int64 {
	return c.exitCode
}

// Err returns the error that stopped the core, if any.
func (c *Core) Err() error {
	return c.err
}

// CommitTrace returns the committed PCs when WithCommitTrace is set.
func (c *Core) CommitTrace() []uint32 {
	return c.trace
}

// Stats returns performance statistics for the core.
func (c *Core) Stats() Stats {
	s := c.stats
	lsq := c.lsq.Stats()
	s.Loads, s.Stores = lsq.Loads, lsq.Stores
	s.ForwardedLoads, s.SleptLoads = lsq.ForwardedLoads, lsq.SleptLoads
	s.CDBConflicts = c.cdb.Conflicts
	cs := c.mem.Cache().Stats()
	s.CacheHits, s.CacheMisses = cs.Hits, cs.Misses
	return s
}

// PredictorStats returns the branch predictor statistics.
func (c *Core) PredictorStats() frontend.PredictorStats {
	return c.fetch.Predictor().Stats()
}

// Run executes the core until it halts and returns the exit code.
func (c *Core) Run() (int64, error) {
	for !c.halted {
		if c.maxCycles > 0 && c.cycle >= c.maxCycles {
			return 0, fmt.Errorf("%w: %d cycles", ErrCycleLimit, c.maxCycles)
		}
		c.Tick()
		if c.progress != nil && c.progressEvery > 0 && c.cycle%c.progressEvery == 0 {
			c.progress(c.cycle, c.stats.Instructions)
		}
		if wd := c.config.WatchdogCycles; wd > 0 && !c.halting && c.cycle-c.lastCommit > wd {
			return 0, fmt.Errorf("%w: no commit since cycle %d (pc 0x%08x)",
				ErrDeadlock, c.lastCommit, c.headPC())
		}
	}
	return c.exitCode, c.err
}

// RunCycles executes the core for the specified number of cycles.
// Returns true if still running, false if halted.
func (c *Core) RunCycles(cycles uint64) bool {
	for i := uint64(0); i < cycles && !c.halted; i++ {
		c.Tick()
	}
	return !c.halted
}

func (c *Core) headPC() uint32 {
	if e := c.rob.Peek(); e != nil {
		return e.PC
	}
	return c.fetch.PC()
}

// OnRollback accounts for one rolled-back instruction.
func (c *Core) OnRollback(rec ooo.RollbackRecord) {
	c.stats.RolledBack++
	c.log.V(2).Info("ROB: Rollback", "tag", rec.Tag, "pc", rec.PC, "rd", rec.LogicalDst,
		"pdst", rec.NewPDst, "stale", rec.StalePDst)
}

// Reset clears all core state. Memory contents are kept.
func (c *Core) Reset() {
	c.fetch.Reset()
	c.mem.Reset()
	c.renamer.Reset()
	c.rob.Reset()
	c.aluIB.Reset()
	c.mulIB.Reset()
	c.brIB.Reset()
	c.lsq.Reset()
	c.cdb.Reset()
	c.alu.reset()
	c.mulDiv.reset()
	c.branch.reset()

	c.cycle, c.lastCommit = 0, 0
	c.halting, c.halted = false, false
	c.exitCode, c.err = 0, nil
	c.trace = nil
	c.stats = Stats{}
}

// isTrained reports whether the predictor learns from op.
func isTrained(op insts.Op) bool {
	return op != insts.OpJAL
}
