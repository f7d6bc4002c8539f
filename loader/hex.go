package loader

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

// LoadHex reads a hex word image: one 32-bit little-endian word per line,
// loaded contiguously from address 0. Text after "//" is a comment and
// "@" address lines are ignored, so images written for a $readmemh-style
// memory model load unchanged.
func LoadHex(path string) (*Program, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open hex file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ParseHex(f)
}

// ParseHex parses a hex word image from r.
func ParseHex(r io.Reader) (*Program, error) {
	var data []byte
	scanner := bufio.NewScanner(r)
	lineNo := 0

	for scanner.Scan() {
		lineNo++
		line := scanner.Text()
		if i := strings.Index(line, "//"); i >= 0 {
			line = line[:i]
		}
		line = strings.TrimSpace(line)
		if line == "" || line[0] == '@' {
			continue
		}

		word, err := strconv.ParseUint(line, 16, 32)
		if err != nil {
			return nil, fmt.Errorf("hex line %d: %w", lineNo, err)
		}
		data = append(data, byte(word), byte(word>>8), byte(word>>16), byte(word>>24))
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read hex image: %w", err)
	}

	prog := &Program{InitialSP: DefaultStackTop}
	if len(data) > 0 {
		prog.Segments = []Segment{{
			Data:    data,
			MemSize: uint32(len(data)),
			Flags:   SegmentFlagRead | SegmentFlagWrite | SegmentFlagExecute,
		}}
	}
	return prog, nil
}

// LoadFile picks the ELF or hex loader by file extension.
func LoadFile(path string) (*Program, error) {
	switch {
	case strings.HasSuffix(path, ".hex"), strings.HasSuffix(path, ".mem"):
		return LoadHex(path)
	default:
		return Load(path)
	}
}
