// Package benchmarks provides RISC-V microbenchmarks and a harness that
// runs them on the out-of-order core, optionally checking every run
// against the functional emulator.
package benchmarks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/timing/core"
)

// ProgramBase is the load address of every benchmark program.
const ProgramBase = 0x1000

// checkedBytes is the size of the data region compared by the golden check.
const checkedBytes = 0x1000

var (
	// ErrExitCode is returned when a benchmark exits with an unexpected code.
	ErrExitCode = errors.New("unexpected exit code")

	// ErrMismatch is returned when the core diverges from the emulator.
	ErrMismatch = errors.New("golden check mismatch")
)

// BenchmarkResult holds the timing results for a single benchmark run.
type BenchmarkResult struct {
	Name        string `json:"name"`
	Description string `json:"description"`

	SimulatedCycles     uint64  `json:"simulated_cycles"`
	InstructionsRetired uint64  `json:"instructions_retired"`
	CPI                 float64 `json:"cpi"`

	// DispatchStalls is the number of cycles rename could not dispatch.
	DispatchStalls uint64 `json:"dispatch_stalls"`
	RollbackCycles uint64 `json:"rollback_cycles"`
	RolledBack     uint64 `json:"rolled_back"`
	CDBConflicts   uint64 `json:"cdb_conflicts"`

	Loads          uint64 `json:"loads"`
	Stores         uint64 `json:"stores"`
	ForwardedLoads uint64 `json:"forwarded_loads"`
	SleptLoads     uint64 `json:"slept_loads"`

	DCacheHits   uint64 `json:"dcache_hits,omitempty"`
	DCacheMisses uint64 `json:"dcache_misses,omitempty"`

	Branches              uint64  `json:"branches"`
	BranchMispredictions  uint64  `json:"branch_mispredictions"`
	BranchAccuracyPercent float64 `json:"branch_accuracy_percent,omitempty"`

	ExitCode int64 `json:"exit_code"`

	// Checked is true when the run matched the functional emulator.
	Checked bool `json:"checked"`

	WallTime time.Duration `json:"wall_time_ns"`
}

// Benchmark defines a single benchmark program.
type Benchmark struct {
	Name        string
	Description string

	// Setup prepares memory before the program starts.
	Setup func(memory *emu.Memory)

	// Program is the RV32IM machine code, loaded at ProgramBase.
	Program []byte

	ExpectedExit int64
}

// HarnessConfig configures the benchmark harness.
type HarnessConfig struct {
	// Core is the core configuration every benchmark runs with.
	Core *core.Config

	// Check runs every benchmark on the functional emulator too and fails
	// the run on any divergence.
	Check bool

	// Parallelism bounds the number of benchmarks simulated at once.
	Parallelism int

	// MaxCycles bounds each simulation. Zero means no limit.
	MaxCycles uint64

	// Output is where to write results (default: os.Stdout).
	Output io.Writer
}

// DefaultConfig returns a default harness configuration.
func DefaultConfig() HarnessConfig {
	return HarnessConfig{
		Core:        core.DefaultConfig(),
		Check:       true,
		Parallelism: runtime.NumCPU(),
		MaxCycles:   10_000_000,
		Output:      os.Stdout,
	}
}

// Harness runs timing benchmarks and reports results.
type Harness struct {
	config     HarnessConfig
	benchmarks []Benchmark
}

// NewHarness creates a new benchmark harness.
func NewHarness(config HarnessConfig) *Harness {
	if config.Output == nil {
		config.Output = os.Stdout
	}
	if config.Core == nil {
		config.Core = core.DefaultConfig()
	}
	if config.Parallelism <= 0 {
		config.Parallelism = 1
	}
	return &Harness{
		config:     config,
		benchmarks: []Benchmark{},
	}
}

// AddBenchmark adds a benchmark to the harness.
func (h *Harness) AddBenchmark(b Benchmark) {
	h.benchmarks = append(h.benchmarks, b)
}

// AddBenchmarks adds multiple benchmarks to the harness.
func (h *Harness) AddBenchmarks(benchmarks []Benchmark) {
	h.benchmarks = append(h.benchmarks, benchmarks...)
}

// RunAll executes all benchmarks, in parallel up to the configured limit,
// and returns their results in the order they were added. The first
// failing benchmark cancels the ones not yet started.
func (h *Harness) RunAll(ctx context.Context) ([]BenchmarkResult, error) {
	results := make([]BenchmarkResult, len(h.benchmarks))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(h.config.Parallelism)
	for i, bench := range h.benchmarks {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			r, err := h.Run(bench)
			if err != nil {
				return fmt.Errorf("%s: %w", bench.Name, err)
			}
			results[i] = r
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// Run executes a single benchmark.
func (h *Harness) Run(bench Benchmark) (BenchmarkResult, error) {
	memory := emu.NewMemory()
	if bench.Setup != nil {
		bench.Setup(memory)
	}
	memory.LoadProgram(ProgramBase, bench.Program)

	opts := []core.Option{core.WithConfig(h.config.Core), core.WithMaxCycles(h.config.MaxCycles)}
	if h.config.Check {
		opts = append(opts, core.WithCommitTrace())
	}
	c := core.NewCore(memory, opts...)
	c.SetPC(ProgramBase)

	start := time.Now()
	exitCode, err := c.Run()
	wallTime := time.Since(start)
	if err != nil {
		return BenchmarkResult{}, err
	}

	stats := c.Stats()
	bp := c.PredictorStats()
	result := BenchmarkResult{
		Name:                  bench.Name,
		Description:           bench.Description,
		SimulatedCycles:       stats.Cycles,
		InstructionsRetired:   stats.Instructions,
		CPI:                   stats.CPI(),
		DispatchStalls:        stats.DispatchStalls(),
		RollbackCycles:        stats.RollbackCycles,
		RolledBack:            stats.RolledBack,
		CDBConflicts:          stats.CDBConflicts,
		Loads:                 stats.Loads,
		Stores:                stats.Stores,
		ForwardedLoads:        stats.ForwardedLoads,
		SleptLoads:            stats.SleptLoads,
		DCacheHits:            stats.CacheHits,
		DCacheMisses:          stats.CacheMisses,
		Branches:              stats.Branches,
		BranchMispredictions:  stats.Mispredictions,
		BranchAccuracyPercent: bp.Accuracy(),
		ExitCode:              exitCode,
		WallTime:              wallTime,
	}

	if exitCode != bench.ExpectedExit {
		return result, fmt.Errorf("%w: got %d, want %d", ErrExitCode, exitCode, bench.ExpectedExit)
	}

	if h.config.Check {
		if err := Check(bench, c, memory); err != nil {
			return result, err
		}
		result.Checked = true
	}

	return result, nil
}

// Check runs bench on the functional emulator and compares the exit code,
// the committed-PC trace, the architectural registers and the data region
// with those left by the halted core c on memory.
func Check(bench Benchmark, c *core.Core, memory *emu.Memory) error {
	refMemory := emu.NewMemory()
	if bench.Setup != nil {
		bench.Setup(refMemory)
	}
	ref := emu.NewEmulator(
		emu.WithMemory(refMemory),
		emu.WithTrace(),
		emu.WithMaxInstructions(100_000_000),
	)
	ref.LoadProgram(ProgramBase, bench.Program)

	want, err := ref.Run()
	if err != nil {
		return fmt.Errorf("emulator: %w", err)
	}

	if got := c.ExitCode(); got != want {
		return fmt.Errorf("%w: exit code %d, emulator %d", ErrMismatch, got, want)
	}
	if diff := cmp.Diff(ref.Trace(), c.CommitTrace()); diff != "" {
		return fmt.Errorf("%w: commit trace (-emulator +core):\n%s", ErrMismatch, diff)
	}
	if diff := cmp.Diff(ref.RegFile().X, c.ArchRegs()); diff != "" {
		return fmt.Errorf("%w: registers (-emulator +core):\n%s", ErrMismatch, diff)
	}
	if diff := cmp.Diff(refMemory.Read(DataBase, checkedBytes), memory.Read(DataBase, checkedBytes)); diff != "" {
		return fmt.Errorf("%w: data memory (-emulator +core):\n%s", ErrMismatch, diff)
	}
	return nil
}

// PrintResults outputs benchmark results in a human-readable format.
func (h *Harness) PrintResults(results []BenchmarkResult) {
	w := h.config.Output
	_, _ = fmt.Fprintln(w, "=== BOOMSim Timing Benchmark Results ===")
	_, _ = fmt.Fprintln(w, "")

	for _, r := range results {
		_, _ = fmt.Fprintf(w, "Benchmark: %s\n", r.Name)
		_, _ = fmt.Fprintf(w, "  Description: %s\n", r.Description)
		_, _ = fmt.Fprintf(w, "  Exit Code: %d\n", r.ExitCode)
		_, _ = fmt.Fprintln(w, "  --- Timing ---")
		_, _ = fmt.Fprintf(w, "  Simulated Cycles:     %d\n", r.SimulatedCycles)
		_, _ = fmt.Fprintf(w, "  Instructions Retired: %d\n", r.InstructionsRetired)
		_, _ = fmt.Fprintf(w, "  CPI:                  %.3f\n", r.CPI)
		_, _ = fmt.Fprintf(w, "  Dispatch Stalls:      %d\n", r.DispatchStalls)
		_, _ = fmt.Fprintf(w, "  CDB Conflicts:        %d\n", r.CDBConflicts)
		if r.RollbackCycles > 0 {
			_, _ = fmt.Fprintf(w, "  Rollback Cycles:      %d (%d rolled back)\n", r.RollbackCycles, r.RolledBack)
		}

		if r.Loads > 0 || r.Stores > 0 {
			_, _ = fmt.Fprintln(w, "  --- Load/Store Queue ---")
			_, _ = fmt.Fprintf(w, "  Loads / Stores:  %d / %d\n", r.Loads, r.Stores)
			_, _ = fmt.Fprintf(w, "  Forwarded Loads: %d\n", r.ForwardedLoads)
			_, _ = fmt.Fprintf(w, "  Slept Loads:     %d\n", r.SleptLoads)
		}

		if r.DCacheHits > 0 || r.DCacheMisses > 0 {
			_, _ = fmt.Fprintln(w, "  --- D-Cache ---")
			_, _ = fmt.Fprintf(w, "  Hits:   %d\n", r.DCacheHits)
			_, _ = fmt.Fprintf(w, "  Misses: %d\n", r.DCacheMisses)
		}

		if r.Branches > 0 {
			_, _ = fmt.Fprintln(w, "  --- Branch Predictor ---")
			_, _ = fmt.Fprintf(w, "  Branches:        %d\n", r.Branches)
			_, _ = fmt.Fprintf(w, "  Mispredictions:  %d\n", r.BranchMispredictions)
			_, _ = fmt.Fprintf(w, "  Accuracy:        %.1f%%\n", r.BranchAccuracyPercent)
		}

		if r.Checked {
			_, _ = fmt.Fprintln(w, "  Golden Check: passed")
		}
		_, _ = fmt.Fprintf(w, "  Wall Time: %v\n", r.WallTime)
		_, _ = fmt.Fprintln(w, "")
	}
}

// PrintCSV outputs benchmark results in CSV format for easy comparison.
func (h *Harness) PrintCSV(results []BenchmarkResult) {
	_, _ = fmt.Fprintln(h.config.Output,
		"name,cycles,instructions,cpi,dispatch_stalls,rollback_cycles,cdb_conflicts,loads,stores,forwarded_loads,slept_loads,dcache_hits,dcache_misses,branches,mispredictions,exit_code")

	for _, r := range results {
		_, _ = fmt.Fprintf(h.config.Output, "%s,%d,%d,%.3f,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d,%d\n",
			r.Name,
			r.SimulatedCycles,
			r.InstructionsRetired,
			r.CPI,
			r.DispatchStalls,
			r.RollbackCycles,
			r.CDBConflicts,
			r.Loads,
			r.Stores,
			r.ForwardedLoads,
			r.SleptLoads,
			r.DCacheHits,
			r.DCacheMisses,
			r.Branches,
			r.BranchMispredictions,
			r.ExitCode,
		)
	}
}

// BenchmarkReport is the complete JSON output format for benchmark results.
type BenchmarkReport struct {
	Metadata ReportMetadata    `json:"metadata"`
	Results  []BenchmarkResult `json:"results"`
	Summary  ReportSummary     `json:"summary"`
}

// ReportMetadata contains information about the benchmark run.
type ReportMetadata struct {
	Timestamp string       `json:"timestamp"`
	Config    *core.Config `json:"config"`
}

// ReportSummary contains aggregate statistics across all benchmarks.
type ReportSummary struct {
	TotalBenchmarks   int           `json:"total_benchmarks"`
	TotalCycles       uint64        `json:"total_cycles"`
	TotalInstructions uint64        `json:"total_instructions"`
	AverageCPI        float64       `json:"average_cpi"`
	TotalWallTime     time.Duration `json:"total_wall_time_ns"`
}

// Summarize aggregates results.
func Summarize(results []BenchmarkResult) ReportSummary {
	s := ReportSummary{TotalBenchmarks: len(results)}
	for _, r := range results {
		s.TotalCycles += r.SimulatedCycles
		s.TotalInstructions += r.InstructionsRetired
		s.TotalWallTime += r.WallTime
	}
	if s.TotalInstructions > 0 {
		s.AverageCPI = float64(s.TotalCycles) / float64(s.TotalInstructions)
	}
	return s
}

// PrintJSON outputs benchmark results in JSON format for automated comparison.
func (h *Harness) PrintJSON(results []BenchmarkResult) error {
	report := BenchmarkReport{
		Metadata: ReportMetadata{
			Timestamp: time.Now().UTC().Format(time.RFC3339),
			Config:    h.config.Core,
		},
		Results: results,
		Summary: Summarize(results),
	}

	encoder := json.NewEncoder(h.config.Output)
	encoder.SetIndent("", "  ")
	return encoder.Encode(report)
}
