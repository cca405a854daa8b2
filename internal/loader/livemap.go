package loader

import (
	"fmt"
	"slices"

	"github.com/retroenv/retrodemo/internal/c64"
)

// RangeKind describes why a memory range is live.
type RangeKind uint8

// Live range kinds.
const (
	ScreenRange RangeKind = iota
	BitmapRange
	CharsetRange
	MusicRange
	CodeRange
	SystemRange   // zero page and stack
	ReservedRange // I/O area
	LoadRange     // destination of a pending load
)

var rangeKindNames = map[RangeKind]string{
	ScreenRange:   "display screen",
	BitmapRange:   "display bitmap",
	CharsetRange:  "display charset",
	MusicRange:    "music",
	CodeRange:     "code",
	SystemRange:   "zero page and stack",
	ReservedRange: "reserved",
	LoadRange:     "pending load",
}

func (k RangeKind) String() string {
	if name, ok := rangeKindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("kind %d", k)
}

// IsDisplay returns whether the range is read by the VIC-II.
func (k RangeKind) IsDisplay() bool {
	return k == ScreenRange || k == BitmapRange || k == CharsetRange
}

// Range is a memory range that must not be overwritten by the loader.
type Range struct {
	Start  uint16
	Length int
	Kind   RangeKind
	Owner  string // asset, routine or window that owns the range
}

// End returns the first address after the range. It is an int as the range
// may end at $10000.
func (r Range) End() int {
	return int(r.Start) + r.Length
}

// Overlaps returns whether the range shares at least one byte with the given
// range.
func (r Range) Overlaps(start uint16, length int) bool {
	if r.Length <= 0 || length <= 0 {
		return false
	}
	return int(start) < r.End() && int(start)+length > int(r.Start)
}

func (r Range) String() string {
	return fmt.Sprintf("$%04x-$%04x", r.Start, r.End()-1)
}

// LiveMap is the set of memory ranges that are in use at one point of the
// timeline.
type LiveMap struct {
	ranges []Range
}

// NewLiveMap returns a live map containing the system areas that are always
// in use: zero page, stack and the I/O area.
func NewLiveMap() *LiveMap {
	return &LiveMap{
		ranges: []Range{
			{Start: 0x0000, Length: 0x200, Kind: SystemRange, Owner: "system"},
			{Start: 0xD000, Length: 0x1000, Kind: ReservedRange, Owner: "i/o"},
		},
	}
}

// Add marks a range as live. Empty ranges are ignored.
func (m *LiveMap) Add(r Range) {
	if r.Length <= 0 {
		return
	}
	m.ranges = append(m.ranges, r)
}

// SetDisplay replaces all display ranges with the given VIC-II windows.
func (m *LiveMap) SetDisplay(windows ...c64.Window) {
	m.ranges = slices.DeleteFunc(m.ranges, func(r Range) bool {
		return r.Kind.IsDisplay()
	})
	for _, w := range windows {
		m.Add(windowRange(w))
	}
}

// Conflict returns the first live range that overlaps the given range.
func (m *LiveMap) Conflict(start uint16, length int) (Range, bool) {
	for _, r := range m.Ranges() {
		if r.Overlaps(start, length) {
			return r, true
		}
	}
	return Range{}, false
}

// Ranges returns a copy of the live ranges sorted by address.
func (m *LiveMap) Ranges() []Range {
	ranges := slices.Clone(m.ranges)
	slices.SortStableFunc(ranges, func(a, b Range) int {
		return int(a.Start) - int(b.Start)
	})
	return ranges
}

// Clone returns an independent copy of the map.
func (m *LiveMap) Clone() *LiveMap {
	return &LiveMap{ranges: slices.Clone(m.ranges)}
}

// Pages returns the page flag table of the map.
func (m *LiveMap) Pages() PageTable {
	var table PageTable
	for _, r := range m.ranges {
		table.mark(r)
	}
	return table
}

func windowRange(w c64.Window) Range {
	kind := ScreenRange
	switch w.Kind {
	case c64.BitmapWindow:
		kind = BitmapRange
	case c64.CharsetWindow:
		kind = CharsetRange
	}
	return Range{Start: w.Start, Length: w.Length, Kind: kind, Owner: w.Kind.String()}
}
