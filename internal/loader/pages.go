package loader

import (
	"fmt"
	"io"
	"strings"
)

// PageFlag describes how a 256 byte page is used.
type PageFlag byte

// Page flags, the values match the page flag table of the Spindle loader.
const (
	PageLoaded     PageFlag = 0x01
	PageUsed       PageFlag = 0x02
	PageZeroPage   PageFlag = 0x04 // set on the index of a used zero page byte
	PageInherit    PageFlag = 0x08
	PageMusic      PageFlag = 0x10
	PageCode       PageFlag = 0x20
)

const pageFlagsKnown = PageLoaded | PageUsed | PageZeroPage | PageInherit | PageMusic | PageCode

// PageTable contains the flags of all pages of the address space.
type PageTable [256]PageFlag

func (t *PageTable) mark(r Range) {
	if r.Length <= 0 {
		return
	}

	var flags PageFlag
	switch r.Kind {
	case LoadRange:
		flags = PageLoaded
	case MusicRange:
		flags = PageMusic | PageUsed
	case CodeRange:
		flags = PageCode | PageUsed
	default:
		flags = PageUsed
	}

	first := int(r.Start) >> 8
	last := (r.End() - 1) >> 8
	for page := first; page <= last; page++ {
		t[page] |= flags
	}

	// zero page bytes are tracked individually
	if r.Start < 0x100 && r.Kind != SystemRange {
		end := min(r.End(), 0x100)
		for address := int(r.Start); address < end; address++ {
			t[address] |= PageZeroPage
		}
	}
}

// Used returns whether any flag other than the zero page usage is set for
// the page.
func (t *PageTable) Used(page byte) bool {
	return t[page]&^PageZeroPage != 0
}

// Write outputs the table as 16 rows of hex flag values.
func (t *PageTable) Write(w io.Writer) error {
	var sb strings.Builder
	for row := range 16 {
		fmt.Fprintf(&sb, "%02x:", row<<4)
		for column := range 16 {
			fmt.Fprintf(&sb, " %02x", byte(t[row<<4|column]&pageFlagsKnown))
		}
		sb.WriteByte('\n')
	}
	_, err := io.WriteString(w, sb.String())
	return err
}
