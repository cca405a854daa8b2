package compiler

import "fmt"

// LayoutOverlapError is returned when two segments of a part occupy the
// same memory or a routine does not fit into the address space.
type LayoutOverlapError struct {
	Part       string
	Segment    string
	Start      uint16
	End        int // first address after the segment
	Other      string
	OtherStart uint16
	OtherEnd   int
}

func (e *LayoutOverlapError) Error() string {
	if e.Other == "" {
		return fmt.Sprintf("part '%s': segment '%s' at $%04x does not fit before $ffff", e.Part, e.Segment, e.Start)
	}
	return fmt.Sprintf("part '%s': segment '%s' at $%04x-$%04x overlaps '%s' at $%04x-$%04x",
		e.Part, e.Segment, e.Start, e.End-1, e.Other, e.OtherStart, e.OtherEnd-1)
}
