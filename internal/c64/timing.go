package c64

import "fmt"

// System is a video standard.
type System string

// Supported video standards.
const (
	PAL  System = "pal"
	NTSC System = "ntsc"
)

const (
	firstBadLine   = 0x30
	lastBadLine    = 0xF7
	badLineSteal   = 40
	defaultYScroll = 3
)

// Timing describes the raster beam of a video standard.
type Timing struct {
	System          System
	Lines           uint16 // raster lines per frame
	CyclesPerLine   int
	FramesPerSecond int
}

// TimingFor returns the raster timing of the given system.
func TimingFor(system System) (Timing, error) {
	switch system {
	case PAL, "":
		return Timing{System: PAL, Lines: 312, CyclesPerLine: 63, FramesPerSecond: 50}, nil
	case NTSC:
		return Timing{System: NTSC, Lines: 263, CyclesPerLine: 65, FramesPerSecond: 60}, nil
	default:
		return Timing{}, fmt.Errorf("unsupported system '%s'", system)
	}
}

// MaxLine returns the highest raster line that can trigger an interrupt.
func (t Timing) MaxLine() uint16 {
	return t.Lines - 1
}

// CyclesPerFrame returns the number of CPU cycles of a full frame.
func (t Timing) CyclesPerFrame() int {
	return int(t.Lines) * t.CyclesPerLine
}

// LinesBetween returns the number of raster lines the beam travels from line
// from until it reaches line to. Equal lines span a full frame.
func (t Timing) LinesBetween(from, to uint16) int {
	n := (int(to) - int(from) + int(t.Lines)) % int(t.Lines)
	if n == 0 {
		return int(t.Lines)
	}
	return n
}

// Add returns the raster line that is delta lines after line, wrapping at the
// end of the frame.
func (t Timing) Add(line, delta uint16) uint16 {
	return uint16((int(line) + int(delta)) % int(t.Lines))
}

// AvailableCycles returns the CPU cycles between the raster lines from and to,
// minus the cycles stolen by the VIC-II on bad lines of an enabled display
// with the default vertical scroll.
func (t Timing) AvailableCycles(from, to uint16) int {
	lines := t.LinesBetween(from, to)
	cycles := lines * t.CyclesPerLine
	line := from
	for range lines {
		if IsBadLine(line) {
			cycles -= badLineSteal
		}
		line = t.Add(line, 1)
	}
	return cycles
}

// IsBadLine returns whether the VIC-II steals the CPU cycles of a raster line
// to fetch character pointers, assuming the default vertical scroll.
func IsBadLine(line uint16) bool {
	return line >= firstBadLine && line <= lastBadLine && line&7 == defaultYScroll
}

// FramesFromTimestamp converts a timeline timestamp into a frame number.
// Accepted formats are "MM:SS.FF", "MM:SS:FF" and "HH:MM:SS:FF".
func (t Timing) FramesFromTimestamp(stamp string) (int, error) {
	var fields []int
	current, digits := 0, 0
	for _, r := range stamp + ":" {
		switch {
		case r >= '0' && r <= '9':
			current = current*10 + int(r-'0')
			digits++
		case r == ':' || r == '.':
			if digits == 0 {
				return 0, fmt.Errorf("invalid timestamp '%s'", stamp)
			}
			fields = append(fields, current)
			current, digits = 0, 0
		default:
			return 0, fmt.Errorf("invalid character %q in timestamp '%s'", r, stamp)
		}
	}

	var hours, minutes, seconds, frames int
	switch len(fields) {
	case 3:
		minutes, seconds, frames = fields[0], fields[1], fields[2]
	case 4:
		hours, minutes, seconds, frames = fields[0], fields[1], fields[2], fields[3]
	default:
		return 0, fmt.Errorf("invalid timestamp '%s'", stamp)
	}
	if minutes > 59 || seconds > 59 || frames >= t.FramesPerSecond {
		return 0, fmt.Errorf("timestamp '%s' out of range", stamp)
	}
	return ((hours*60+minutes)*60+seconds)*t.FramesPerSecond + frames, nil
}
