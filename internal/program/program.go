// Package program represents a compiled demo part.
package program

import (
	"fmt"
	"slices"
	"strings"

	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrodemo/internal/loader"
)

// Offset defines the content of an offset in a segment that can represent data or code.
type Offset struct {
	Address     uint16
	OpcodeBytes []byte // data bytes or all opcode bytes that are part of the instruction

	Type OffsetType

	Label        string // name of label or routine entry
	Instruction  instruction.Instruction
	Comment      string
	LabelComment string
}

// HexCodeComment returns the opcode bytes as hex string.
func (o Offset) HexCodeComment() (string, error) {
	buf := &strings.Builder{}
	for i, b := range o.OpcodeBytes {
		if i > 0 {
			buf.WriteByte(' ')
		}
		if _, err := fmt.Fprintf(buf, "%02X", b); err != nil {
			return "", fmt.Errorf("writing hex byte: %w", err)
		}
	}
	return buf.String(), nil
}

// Segment is a contiguous block of code or data at a fixed address.
type Segment struct {
	Name    string
	Address uint16
	Asset   string // set for included assets
	Offsets []Offset
}

// Size returns the number of bytes of the segment.
func (s *Segment) Size() int {
	size := 0
	for _, offset := range s.Offsets {
		size += len(offset.OpcodeBytes)
	}
	return size
}

// End returns the first address after the segment.
func (s *Segment) End() int {
	return int(s.Address) + s.Size()
}

// Bytes returns the content of the segment.
func (s *Segment) Bytes() []byte {
	data := make([]byte, 0, s.Size())
	for _, offset := range s.Offsets {
		data = append(data, offset.OpcodeBytes...)
	}
	return data
}

// Handler describes a lowered interrupt handler of the program.
type Handler struct {
	Chain   string
	Slot    int
	Label   string
	Trigger uint16
	Ticks   int // times the handler fires before it arms its successor
	Cost    int
	Budget  int
}

// Program defines a compiled demo part.
type Program struct {
	Name     string
	Start    uint16
	Entry    string
	Segments []*Segment
	Handlers []Handler

	// keep constants and labels separated to let the chosen assembler
	// decide how to output them
	Constants map[string]uint16
	Labels    map[string]uint16

	Loads     [][]*loader.Request
	Snapshots []loader.Snapshot
}

// New creates a new empty program.
func New(name string, start uint16) *Program {
	return &Program{
		Name:      name,
		Start:     start,
		Constants: map[string]uint16{},
		Labels:    map[string]uint16{},
	}
}

// AddSegment adds a segment and keeps the segments sorted by address.
func (p *Program) AddSegment(segment *Segment) {
	p.Segments = append(p.Segments, segment)
	slices.SortStableFunc(p.Segments, func(a, b *Segment) int {
		return int(a.Address) - int(b.Address)
	})
}

// Image returns the load address and the bytes of all segments, gaps
// between segments are filled with zero bytes.
func (p *Program) Image() (uint16, []byte, error) {
	if len(p.Segments) == 0 {
		return p.Start, nil, nil
	}

	start := p.Segments[0].Address
	var image []byte
	for _, segment := range p.Segments {
		if segment.Size() == 0 {
			continue
		}
		if int(segment.Address) < int(start)+len(image) {
			return 0, nil, fmt.Errorf("segment '%s' at $%04x overlaps previous segment ending at $%04x",
				segment.Name, segment.Address, int(start)+len(image)-1)
		}
		gap := int(segment.Address) - int(start) - len(image)
		image = append(image, make([]byte, gap)...)
		image = append(image, segment.Bytes()...)
	}
	if int(start)+len(image) > 0x10000 {
		return 0, nil, fmt.Errorf("program ends after $ffff at $%05x", int(start)+len(image))
	}
	return start, image, nil
}

// PRG returns the program image as PRG file content, the image prefixed by
// its little endian load address.
func (p *Program) PRG() ([]byte, error) {
	start, image, err := p.Image()
	if err != nil {
		return nil, err
	}
	data := make([]byte, 0, len(image)+2)
	data = append(data, byte(start), byte(start>>8))
	data = append(data, image...)
	return data, nil
}
