// Package main provides the entry point for BOOMSim.
// BOOMSim is a cycle-accurate out-of-order RV32IM core simulator built on
// Akita.
//
// For the full CLI, use: go run ./cmd/boomsim
package main

import (
	"fmt"
	"os"
)

func main() {
	fmt.Println("BOOMSim - Out-of-Order RV32IM Core Simulator")
	fmt.Println("Built on Akita simulation framework")
	fmt.Println("")
	fmt.Println("Usage: boomsim [options] <program.elf|program.hex>")
	fmt.Println("")
	fmt.Println("Options:")
	fmt.Println("  -config      Path to core configuration file (JSON or YAML)")
	fmt.Println("  -check       Check the result against the functional emulator")
	fmt.Println("  -emulate     Run the functional emulator only")
	fmt.Println("  -trace       Write the committed-PC trace to a file")
	fmt.Println("  -v           Log verbosity")
	fmt.Println("")
	fmt.Println("Run 'go run ./cmd/boomsim' for the full CLI.")
	fmt.Println("Run 'go run ./cmd/benchmark' for the microbenchmark harness.")

	if len(os.Args) > 1 {
		fmt.Println("\nNote: You provided arguments. Use 'go run ./cmd/boomsim' instead.")
	}
}
