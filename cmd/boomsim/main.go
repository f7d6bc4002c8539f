// Package main provides the entry point for BOOMSim.
// BOOMSim is a cycle-accurate out-of-order RV32IM core simulator.
package main

import (
	"bufio"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"runtime/pprof"

	"github.com/go-logr/logr"
	"github.com/go-logr/logr/funcr"
	"github.com/google/go-cmp/cmp"
	"github.com/rs/xid"
	"golang.org/x/term"

	"github.com/sarchlab/boomsim/emu"
	"github.com/sarchlab/boomsim/insts"
	"github.com/sarchlab/boomsim/loader"
	"github.com/sarchlab/boomsim/timing/core"
)

// progressInterval is how often progress is redrawn on a terminal.
const progressInterval = 100_000

// errCheck is returned when the core and the emulator disagree.
var errCheck = errors.New("golden check failed")

type options struct {
	configPath string
	verbosity  int
	tracePath  string
	check      bool
	emulate    bool
	maxCycles  uint64
	cpuProfile string
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the CLI and returns the process exit status.
func run(args []string, stdout, stderr io.Writer) int {
	opts, path, ok := parseFlags(args, stderr)
	if !ok {
		return 2
	}

	if opts.cpuProfile != "" {
		f, err := os.Create(opts.cpuProfile)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error creating CPU profile: %v\n", err)
			return 1
		}
		defer func() { _ = f.Close() }()
		if err := pprof.StartCPUProfile(f); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error starting CPU profile: %v\n", err)
			return 1
		}
		defer pprof.StopCPUProfile()
	}

	prog, err := loader.LoadFile(path)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error loading program: %v\n", err)
		return 1
	}

	log := newLogger(stderr, opts.verbosity)
	log.V(1).Info("Loaded program", "path", path, "entry", prog.EntryPoint,
		"segments", len(prog.Segments), "bytes", prog.Size())

	if opts.emulate {
		code, err := runEmulation(prog)
		if err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		return int(code)
	}

	code, err := runTiming(prog, path, opts, log, stdout, stderr)
	if err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return int(code)
}

func parseFlags(args []string, stderr io.Writer) (options, string, bool) {
	var opts options
	fs := flag.NewFlagSet("boomsim", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.StringVar(&opts.configPath, "config", "", "Path to core configuration file (JSON or YAML)")
	fs.IntVar(&opts.verbosity, "v", 0, "Log verbosity: 1 commits and redirects, 2 rollback and LSQ events")
	fs.StringVar(&opts.tracePath, "trace", "", "Write the committed-PC trace to this file")
	fs.BoolVar(&opts.check, "check", false, "Check the result against the functional emulator")
	fs.BoolVar(&opts.emulate, "emulate", false, "Run the functional emulator only")
	fs.Uint64Var(&opts.maxCycles, "max-cycles", 0, "Stop after this many cycles (0 disables)")
	fs.StringVar(&opts.cpuProfile, "cpuprofile", "", "Write a CPU profile to this file")
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, "Usage: boomsim [options] <program.elf|program.hex>\n")
		_, _ = fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return opts, "", false
	}
	if fs.NArg() < 1 {
		fs.Usage()
		return opts, "", false
	}
	return opts, fs.Arg(0), true
}

func newLogger(w io.Writer, verbosity int) logr.Logger {
	if verbosity <= 0 {
		return logr.Discard()
	}
	return funcr.New(func(prefix, args string) {
		_, _ = fmt.Fprintln(w, prefix, args)
	}, funcr.Options{Verbosity: verbosity})
}

// runEmulation runs the program on the functional emulator.
func runEmulation(prog *loader.Program) (int64, error) {
	e := newEmulator(prog, false)
	return e.Run()
}

func newEmulator(prog *loader.Program, trace bool) *emu.Emulator {
	memory := emu.NewMemory()
	prog.LoadInto(memory)

	opts := []emu.EmulatorOption{emu.WithMemory(memory)}
	if trace {
		opts = append(opts, emu.WithTrace())
	}
	e := emu.NewEmulator(opts...)
	e.SetPC(prog.EntryPoint)
	e.RegFile().WriteReg(insts.RegSP, prog.InitialSP)
	return e
}

// runTiming runs the program on the out-of-order core and prints the
// timing report.
func runTiming(
	prog *loader.Program,
	path string,
	opts options,
	log logr.Logger,
	stdout, stderr io.Writer,
) (int64, error) {
	config := core.DefaultConfig()
	if opts.configPath != "" {
		var err error
		config, err = core.LoadConfig(opts.configPath)
		if err != nil {
			return 0, fmt.Errorf("loading core config: %w", err)
		}
	}
	if err := config.Validate(); err != nil {
		return 0, fmt.Errorf("invalid core config: %w", err)
	}

	memory := emu.NewMemory()
	prog.LoadInto(memory)

	coreOpts := []core.Option{
		core.WithConfig(config),
		core.WithLogger(log),
		core.WithMaxCycles(opts.maxCycles),
	}
	if opts.check || opts.tracePath != "" {
		coreOpts = append(coreOpts, core.WithCommitTrace())
	}
	progress := isTerminal(stderr)
	if progress {
		coreOpts = append(coreOpts, core.WithProgress(progressInterval, func(cycle, n uint64) {
			_, _ = fmt.Fprintf(stderr, "\rcycle %d, %d instructions", cycle, n)
		}))
	}

	c := core.NewCore(memory, coreOpts...)
	c.SetPC(prog.EntryPoint)
	c.SetReg(insts.RegSP, prog.InitialSP)

	exitCode, runErr := c.Run()
	if progress && c.Cycle() >= progressInterval {
		_, _ = fmt.Fprintln(stderr)
	}

	runID := xid.New()
	_, _ = fmt.Fprintf(stdout, "\nRun: %s\n", runID)
	_, _ = fmt.Fprintf(stdout, "Program: %s\n", path)
	if runErr == nil {
		_, _ = fmt.Fprintf(stdout, "Exit code: %d\n", exitCode)
	}
	_, _ = fmt.Fprintln(stdout, c.Stats().Report())

	bp := c.PredictorStats()
	_, _ = fmt.Fprintf(stdout, "Branch Predictor:\n")
	_, _ = fmt.Fprintf(stdout, "  Accuracy:    %.1f%%\n", bp.Accuracy())
	_, _ = fmt.Fprintf(stdout, "  BTB Hits:    %.1f%%\n", bp.BTBHitRate())
	_, _ = fmt.Fprintf(stdout, "  RAS Hits:    %d\n", c.Frontend().Stats().RASHits)

	if opts.tracePath != "" {
		if err := writeTrace(opts.tracePath, c.CommitTrace()); err != nil {
			return 0, err
		}
	}

	if runErr != nil {
		return 0, runErr
	}

	if opts.check {
		if err := check(prog, c, memory); err != nil {
			return 0, err
		}
		_, _ = fmt.Fprintln(stdout, "Golden check: passed")
	}

	return exitCode, nil
}

// check reruns prog on the functional emulator and compares the exit
// code, the architectural registers, the committed-PC trace and the
// contents of every loaded segment. memory is the core's backing memory,
// already flushed when the core halted.
func check(prog *loader.Program, c *core.Core, memory *emu.Memory) error {
	e := newEmulator(prog, true)
	want, err := e.Run()
	if err != nil {
		return fmt.Errorf("%w: emulator: %v", errCheck, err)
	}

	if got := c.ExitCode(); got != want {
		return fmt.Errorf("%w: exit code %d, emulator %d", errCheck, got, want)
	}
	if diff := cmp.Diff(e.RegFile().X, c.ArchRegs()); diff != "" {
		return fmt.Errorf("%w: registers (-emulator +core):\n%s", errCheck, diff)
	}
	if diff := cmp.Diff(e.Trace(), c.CommitTrace()); diff != "" {
		return fmt.Errorf("%w: commit trace (-emulator +core):\n%s", errCheck, diff)
	}
	for _, seg := range prog.Segments {
		want := e.Memory().Read(seg.VirtAddr, int(seg.MemSize))
		if diff := cmp.Diff(want, memory.Read(seg.VirtAddr, int(seg.MemSize))); diff != "" {
			return fmt.Errorf("%w: segment at 0x%08x (-emulator +core):\n%s",
				errCheck, seg.VirtAddr, diff)
		}
	}
	return nil
}

func writeTrace(path string, pcs []uint32) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating trace file: %w", err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	for _, pc := range pcs {
		_, _ = fmt.Fprintf(w, "0x%08x\n", pc)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("writing trace file: %w", err)
	}
	return nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
