package latency

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.yaml.in/yaml/v3"
)

// TimingConfig holds latency values for the functional units and the data
// memory path of the out-of-order core.
type TimingConfig struct {
	// ALULatency is the execution latency for integer ALU operations,
	// including LUI, AUIPC and ECALL. Default: 1 cycle.
	ALULatency uint64 `json:"alu_latency" yaml:"alu_latency"`

	// BranchLatency is the execution latency of the branch unit
	// (condition, target and link value). Default: 1 cycle.
	BranchLatency uint64 `json:"branch_latency" yaml:"branch_latency"`

	// MultiplyLatency is the depth of the pipelined multiplier.
	// Default: 3 cycles.
	MultiplyLatency uint64 `json:"multiply_latency" yaml:"multiply_latency"`

	// DivideLatencyMin is the divider latency for the smallest dividends.
	// Default: 4 cycles.
	DivideLatencyMin uint64 `json:"divide_latency_min" yaml:"divide_latency_min"`

	// DivideLatencyMax is the divider latency for full 32-bit dividends.
	// Default: 33 cycles (one iteration per quotient bit plus setup).
	DivideLatencyMax uint64 `json:"divide_latency_max" yaml:"divide_latency_max"`

	// L1HitLatency is the L1 data cache hit latency, for loads and store
	// write acknowledgements alike. Default: 2 cycles.
	L1HitLatency uint64 `json:"l1_hit_latency" yaml:"l1_hit_latency"`

	// MemoryLatency is the additional latency of an L1 miss served by main
	// memory. Default: 20 cycles.
	MemoryLatency uint64 `json:"memory_latency" yaml:"memory_latency"`
}

// DefaultTimingConfig returns a TimingConfig with the default values.
func DefaultTimingConfig() *TimingConfig {
	return &TimingConfig{
		ALULatency:       1,
		BranchLatency:    1,
		MultiplyLatency:  3,
		DivideLatencyMin: 4,
		DivideLatencyMax: 33,
		L1HitLatency:     2,
		MemoryLatency:    20,
	}
}

// LoadConfig loads a TimingConfig from a JSON or YAML file. Fields absent
// from the file keep their default values.
func LoadConfig(path string) (*TimingConfig, error) {
	config := DefaultTimingConfig()
	if err := ReadConfigFile(path, config); err != nil {
		return nil, err
	}
	return config, nil
}

// SaveConfig writes a TimingConfig to a JSON or YAML file.
func (c *TimingConfig) SaveConfig(path string) error {
	return WriteConfigFile(path, c)
}

// Validate checks that all latency values are valid (> 0).
func (c *TimingConfig) Validate() error {
	if c.ALULatency == 0 {
		return fmt.Errorf("alu_latency must be > 0")
	}
	if c.BranchLatency == 0 {
		return fmt.Errorf("branch_latency must be > 0")
	}
	if c.MultiplyLatency == 0 {
		return fmt.Errorf("multiply_latency must be > 0")
	}
	if c.DivideLatencyMin == 0 {
		return fmt.Errorf("divide_latency_min must be > 0")
	}
	if c.DivideLatencyMin > c.DivideLatencyMax {
		return fmt.Errorf("divide_latency_min must be <= divide_latency_max")
	}
	if c.L1HitLatency == 0 {
		return fmt.Errorf("l1_hit_latency must be > 0")
	}
	return nil
}

// Clone returns a deep copy of the TimingConfig.
func (c *TimingConfig) Clone() *TimingConfig {
	clone := *c
	return &clone
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}

// ReadConfigFile decodes a config file into v, using YAML for .yaml and
// .yml files and JSON otherwise.
func ReadConfigFile(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if isYAML(path) {
		err = yaml.Unmarshal(data, v)
	} else {
		err = json.Unmarshal(data, v)
	}
	if err != nil {
		return fmt.Errorf("failed to parse config %s: %w", path, err)
	}

	return nil
}

// WriteConfigFile encodes v to a config file in the format implied by the
// file extension.
func WriteConfigFile(path string, v any) error {
	var (
		data []byte
		err  error
	)
	if isYAML(path) {
		data, err = yaml.Marshal(v)
	} else {
		data, err = json.MarshalIndent(v, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to serialize config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}
