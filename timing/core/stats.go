package core

import "fmt"

// Stats holds performance statistics for the core.
type Stats struct {
	// Cycles is the total number of cycles simulated.
	Cycles uint64
	// Instructions is the number of instructions committed.
	Instructions uint64

	// Branches counts resolved control transfers.
	Branches uint64
	// Mispredictions counts resolved branches whose next PC differed from
	// the prediction. Each one flushes and rolls back.
	Mispredictions uint64
	// RollbackCycles counts cycles the reorder buffer spent walking back.
	RollbackCycles uint64
	// RolledBack counts instructions discarded by rollback.
	RolledBack uint64

	// Dispatch stall cycles by cause.
	FetchEmptyStalls      uint64
	ROBFullStalls         uint64
	FreeListEmptyStalls   uint64
	IssueBufferFullStalls uint64
	LSQFullStalls         uint64
	RollbackStalls        uint64

	// CDBConflicts counts cycles in which a completed result lost
	// arbitration.
	CDBConflicts uint64

	Loads          uint64
	Stores         uint64
	ForwardedLoads uint64
	SleptLoads     uint64
	CacheHits      uint64
	CacheMisses    uint64
}

// CPI returns the cycles per instruction.
func (s Stats) CPI() float64 {
	if s.Instructions == 0 {
		return 0
	}
	return float64(s.Cycles) / float64(s.Instructions)
}

// IPC returns the instructions per cycle.
func (s Stats) IPC() float64 {
	if s.Cycles == 0 {
		return 0
	}
	return float64(s.Instructions) / float64(s.Cycles)
}

// MispredictionRate returns the misprediction rate as a percentage.
func (s Stats) MispredictionRate() float64 {
	if s.Branches == 0 {
		return 0
	}
	return float64(s.Mispredictions) / float64(s.Branches) * 100
}

// DispatchStalls returns the total number of cycles dispatch was blocked.
func (s Stats) DispatchStalls() uint64 {
	return s.FetchEmptyStalls + s.ROBFullStalls + s.FreeListEmptyStalls +
		s.IssueBufferFullStalls + s.LSQFullStalls + s.RollbackStalls
}

// Report returns a formatted summary of the statistics.
func (s Stats) Report() string {
	return fmt.Sprintf(
		"Timing Report:\n"+
			"  Cycles:                    %d\n"+
			"  Instructions:              %d\n"+
			"  CPI:                       %.3f\n"+
			"  IPC:                       %.3f\n"+
			"  Branches:                  %d\n"+
			"  Mispredictions:            %d\n"+
			"  Misprediction Rate:        %.2f%%\n"+
			"  Rollback Cycles:           %d\n"+
			"  Rolled-back Instructions:  %d\n"+
			"  Dispatch Stalls:\n"+
			"    Fetch Empty:             %d\n"+
			"    ROB Full:                %d\n"+
			"    Free List Empty:         %d\n"+
			"    Issue Buffer Full:       %d\n"+
			"    LSQ Full:                %d\n"+
			"    Rollback:                %d\n"+
			"  CDB Conflicts:             %d\n"+
			"  Loads / Stores:            %d / %d\n"+
			"  Forwarded Loads:           %d\n"+
			"  Slept Loads:               %d\n"+
			"  L1D Hits / Misses:         %d / %d\n",
		s.Cycles,
		s.Instructions,
		s.CPI(),
		s.IPC(),
		s.Branches,
		s.Mispredictions, s.MispredictionRate(),
		s.RollbackCycles,
		s.RolledBack,
		s.FetchEmptyStalls,
		s.ROBFullStalls,
		s.FreeListEmptyStalls,
		s.IssueBufferFullStalls,
		s.LSQFullStalls,
		s.RollbackStalls,
		s.CDBConflicts,
		s.Loads, s.Stores,
		s.ForwardedLoads,
		s.SleptLoads,
		s.CacheHits, s.CacheMisses,
	)
}
