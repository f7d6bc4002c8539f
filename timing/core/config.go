package core

import (
	"fmt"

	"github.com/sarchlab/boomsim/timing/cache"
	"github.com/sarchlab/boomsim/timing/frontend"
	"github.com/sarchlab/boomsim/timing/latency"
	"github.com/sarchlab/boomsim/timing/ooo"
)

// Config holds the structure sizes of the core. Execution latencies live
// in Latency.
type Config struct {
	Latency latency.TimingConfig `json:"latency" yaml:"latency"`

	// PhysRegs is the number of physical registers, p0 included.
	PhysRegs int `json:"phys_regs" yaml:"phys_regs"`
	// ROBSize is the number of reorder-buffer slots.
	ROBSize int `json:"rob_size" yaml:"rob_size"`
	// IssueBufferSize is the number of slots in each of the ALU,
	// multiply/divide and branch issue buffers.
	IssueBufferSize int `json:"issue_buffer_size" yaml:"issue_buffer_size"`
	StoreQueueSize  int `json:"store_queue_size" yaml:"store_queue_size"`
	LoadBufferSize  int `json:"load_buffer_size" yaml:"load_buffer_size"`
	FetchQueueDepth int `json:"fetch_queue_depth" yaml:"fetch_queue_depth"`
	MemQueueDepth   int `json:"mem_queue_depth" yaml:"mem_queue_depth"`

	L1DSize          int `json:"l1d_size" yaml:"l1d_size"`
	L1DAssociativity int `json:"l1d_associativity" yaml:"l1d_associativity"`
	L1DBlockSize     int `json:"l1d_block_size" yaml:"l1d_block_size"`
	MSHREntries      int `json:"mshr_entries" yaml:"mshr_entries"`

	Predictor frontend.PredictorConfig `json:"predictor" yaml:"predictor"`

	// WatchdogCycles is how long Run tolerates no commit before giving up.
	// Zero disables the watchdog.
	WatchdogCycles uint64 `json:"watchdog_cycles" yaml:"watchdog_cycles"`
}

// DefaultConfig returns the default core configuration.
func DefaultConfig() *Config {
	l1d := cache.DefaultL1DConfig()
	return &Config{
		Latency:          *latency.DefaultTimingConfig(),
		PhysRegs:         64,
		ROBSize:          32,
		IssueBufferSize:  8,
		StoreQueueSize:   8,
		LoadBufferSize:   8,
		FetchQueueDepth:  frontend.DefaultQueueDepth,
		MemQueueDepth:    16,
		L1DSize:          l1d.Size,
		L1DAssociativity: l1d.Associativity,
		L1DBlockSize:     l1d.BlockSize,
		MSHREntries:      l1d.MSHREntries,
		Predictor:        frontend.DefaultPredictorConfig(),
		WatchdogCycles:   10000,
	}
}

// LoadConfig loads a Config from a JSON or YAML file. Fields absent from
// the file keep their default values.
func LoadConfig(path string) (*Config, error) {
	config := DefaultConfig()
	if err := latency.ReadConfigFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes the Config to a JSON or YAML file.
func (c *Config) SaveConfig(path string) error {
	return latency.WriteConfigFile(path, c)
}

// CacheConfig returns the L1 data cache configuration.
func (c *Config) CacheConfig() cache.Config {
	return cache.Config{
		Size:          c.L1DSize,
		Associativity: c.L1DAssociativity,
		BlockSize:     c.L1DBlockSize,
		HitLatency:    c.Latency.L1HitLatency,
		MissLatency:   c.Latency.L1HitLatency + c.Latency.MemoryLatency,
		MSHREntries:   c.MSHREntries,
	}
}

func isPow2(n int) bool {
	return n > 0 && n&(n-1) == 0
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if err := c.Latency.Validate(); err != nil {
		return fmt.Errorf("latency: %w", err)
	}
	if c.PhysRegs <= ooo.ArchRegs || c.PhysRegs > 1<<16 {
		return fmt.Errorf("phys_regs must be in (%d, 65536], got %d", ooo.ArchRegs, c.PhysRegs)
	}
	if c.ROBSize <= 0 {
		return fmt.Errorf("rob_size must be > 0")
	}
	if c.IssueBufferSize <= 0 || c.IssueBufferSize > ooo.MaxIssueBufferSize {
		return fmt.Errorf("issue_buffer_size must be in [1, %d], got %d",
			ooo.MaxIssueBufferSize, c.IssueBufferSize)
	}
	if c.LoadBufferSize <= 0 || c.LoadBufferSize > ooo.MaxIssueBufferSize {
		return fmt.Errorf("load_buffer_size must be in [1, %d], got %d",
			ooo.MaxIssueBufferSize, c.LoadBufferSize)
	}
	if c.StoreQueueSize <= 0 {
		return fmt.Errorf("store_queue_size must be > 0")
	}
	if c.FetchQueueDepth <= 0 || c.MemQueueDepth <= 0 {
		return fmt.Errorf("fetch_queue_depth and mem_queue_depth must be > 0")
	}
	if !isPow2(c.L1DBlockSize) || c.L1DAssociativity <= 0 ||
		c.L1DSize%(c.L1DAssociativity*c.L1DBlockSize) != 0 {
		return fmt.Errorf("l1d geometry %d/%d-way/%d is invalid",
			c.L1DSize, c.L1DAssociativity, c.L1DBlockSize)
	}
	if c.MSHREntries <= 0 {
		return fmt.Errorf("mshr_entries must be > 0")
	}
	if !isPow2(int(c.Predictor.BHTSize)) || !isPow2(int(c.Predictor.BTBSize)) {
		return fmt.Errorf("predictor table sizes must be powers of 2")
	}
	return nil
}

// Clone returns a deep copy of the Config.
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}
