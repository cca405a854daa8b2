package compiler

import (
	"fmt"

	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/log"
)

// maxShift limits how far a routine is moved to keep its timed branches
// within a page.
const maxShift = 0x100

// span is an occupied memory range.
type span struct {
	name  string
	start int
	end   int // exclusive
}

func (s span) overlaps(start, end int) bool {
	return start < s.end && s.start < end
}

// reserved returns the memory that code can never occupy.
func (pc *partCompiler) reserved() []span {
	spans := []span{
		{name: "system", start: 0x0000, end: 0x0200},
		{name: "i/o", start: 0xd000, end: 0xe000},
	}
	if pc.usesLoader() {
		r := pc.loaderRange()
		spans = append(spans, span{name: loaderSymbol, start: int(r.Start), end: int(r.Start) + r.Length})
	}
	return spans
}

// layout places the routines in order starting at the part start. Routines
// skip over the fixed assets and get moved forward until no timed branch
// crosses a page.
func (pc *partCompiler) layout() error {
	occupied := pc.reserved()
	for _, f := range pc.fixed {
		start := int(f.address)
		end := start + len(f.data)
		if end > 0x10000 {
			return &LayoutOverlapError{Part: pc.part.Name, Segment: f.name, Start: f.address, End: end}
		}
		for _, other := range occupied {
			if other.overlaps(start, end) {
				return pc.overlapError(f.name, start, end, other)
			}
		}
		occupied = append(occupied, span{name: f.name, start: start, end: end})
	}

	address := int(pc.part.Start)
	for i, r := range pc.routines {
		r.size = routineSize(r.instructions)
		start, err := pc.place(r, address, occupied, i == 0)
		if err != nil {
			return err
		}
		r.address = uint16(start)
		occupied = append(occupied, span{name: r.name, start: start, end: start + r.size})
		address = start + r.size

		pc.logger.Debug("Placed routine",
			log.String("part", pc.part.Name),
			log.String("routine", r.name),
			log.Hex("address", r.address),
			log.Int("size", r.size))
	}
	return nil
}

// place returns the first address at or after start where the routine fits.
// The entry routine has to be placed exactly at the start.
func (pc *partCompiler) place(r *routine, start int, occupied []span, exact bool) (int, error) {
	address := start
	shifted := 0
	for {
		end := address + r.size
		if end > 0x10000 {
			return 0, &LayoutOverlapError{Part: pc.part.Name, Segment: r.name, Start: uint16(start), End: end}
		}

		if other, ok := firstOverlap(occupied, address, end); ok {
			if exact {
				return 0, pc.overlapError(r.name, address, end, other)
			}
			address = other.end
			shifted = 0
			continue
		}

		if !crossesPage(r.instructions, uint16(address)) {
			return address, nil
		}
		if exact || shifted >= maxShift {
			return 0, fmt.Errorf("part '%s': timed branch of routine '%s' crosses a page at every address from $%04x",
				pc.part.Name, r.name, start)
		}
		address++
		shifted++
	}
}

func (pc *partCompiler) overlapError(name string, start, end int, other span) error {
	return &LayoutOverlapError{
		Part:       pc.part.Name,
		Segment:    name,
		Start:      uint16(start),
		End:        end,
		Other:      other.name,
		OtherStart: uint16(other.start),
		OtherEnd:   other.end,
	}
}

// defineLabels defines the addresses of all labels of the placed routines.
func (pc *partCompiler) defineLabels() error {
	for _, r := range pc.routines {
		for label, address := range routineLabels(r.instructions, r.address) {
			if err := pc.scope.Define(label, address); err != nil {
				return fmt.Errorf("defining label of routine '%s': %w", r.name, err)
			}
		}
	}
	return nil
}

func firstOverlap(occupied []span, start, end int) (span, bool) {
	for _, other := range occupied {
		if other.overlaps(start, end) {
			return other, true
		}
	}
	return span{}, false
}

func routineSize(ins []instruction.Instruction) int {
	size := 0
	for _, i := range ins {
		size += i.Size()
	}
	return size
}

// routineLabels returns the addresses of the labels of a routine placed at
// base.
func routineLabels(ins []instruction.Instruction, base uint16) map[string]uint16 {
	labels := map[string]uint16{}
	address := base
	for _, i := range ins {
		if label := i.Label(); label != "" {
			labels[label] = address
		}
		address += uint16(i.Size())
	}
	return labels
}

// crossesPage returns whether a timed branch of the routine placed at base
// jumps to a label of the routine on another page.
func crossesPage(ins []instruction.Instruction, base uint16) bool {
	labels := routineLabels(ins, base)
	address := base
	for _, i := range ins {
		if i.Timed() && i.Class() == instruction.Branch {
			if target, ok := labels[i.Operand().Symbol]; ok && instruction.PageCrossed(address+2, target) {
				return true
			}
		}
		address += uint16(i.Size())
	}
	return false
}
