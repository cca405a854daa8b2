package compiler

import (
	"fmt"
	"strings"

	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrogolib/log"
)

// encode resolves all symbols and returns the program of the part.
func (pc *partCompiler) encode() (*program.Program, error) {
	app := program.New(pc.part.Name, pc.part.Start)
	app.Entry = entryLabel(pc.part)
	app.Handlers = pc.handlers
	app.Loads = pc.coordinator.Groups()
	app.Snapshots = pc.coordinator.Snapshots()

	for _, f := range pc.fixed {
		app.AddSegment(fixedSegment(f))
		if f.label != "" {
			app.Labels[f.label] = f.address
		}
	}

	if err := pc.scope.Verify(); err != nil {
		return nil, fmt.Errorf("verifying symbols of part '%s': %w", pc.part.Name, err)
	}

	var symbolic []string
	for _, r := range pc.routines {
		segment, err := pc.encodeRoutine(r, app)
		if err != nil {
			return nil, err
		}
		app.AddSegment(segment)
		for _, ins := range r.instructions {
			if op := ins.Operand(); op.IsSymbolic() && !ins.IsMarker() {
				symbolic = append(symbolic, op.Symbol)
			}
		}
	}

	for _, name := range symbolic {
		if _, ok := app.Labels[name]; ok {
			continue
		}
		address, err := pc.scope.Resolve(name)
		if err != nil {
			return nil, fmt.Errorf("resolving constant: %w", err)
		}
		app.Constants[name] = address
	}

	if _, _, err := app.Image(); err != nil {
		return nil, fmt.Errorf("building image: %w", err)
	}

	if unused := pc.scope.Unused(); len(unused) > 0 {
		pc.logger.Debug("Unused part symbols",
			log.String("part", pc.part.Name),
			log.String("names", strings.Join(unused, ", ")))
	}
	pc.logger.Debug("Encoded part",
		log.String("part", pc.part.Name),
		log.Int("segments", len(app.Segments)),
		log.Int("labels", len(app.Labels)),
		log.Int("constants", len(app.Constants)))
	return app, nil
}

// encodeRoutine encodes the instructions of a placed routine.
func (pc *partCompiler) encodeRoutine(r *routine, app *program.Program) (*program.Segment, error) {
	segment := &program.Segment{
		Name:    r.name,
		Address: r.address,
	}

	address := r.address
	for i, ins := range r.instructions {
		offset := program.Offset{
			Address:     address,
			Label:       ins.Label(),
			Instruction: ins,
			Comment:     ins.Comment(),
		}
		if offset.Label != "" {
			app.Labels[offset.Label] = address
		}

		if !ins.IsMarker() {
			data, err := ins.Encode(address, pc.scope)
			if err != nil {
				return nil, fmt.Errorf("routine '%s' at $%04x: %w", r.name, address, err)
			}
			offset.OpcodeBytes = data
			offset.SetType(program.CodeOffset)
			if ins.Class() == instruction.RawBytes {
				offset.SetType(program.DataOffset)
			}
			if ins.Timed() {
				offset.SetType(program.TimedCode)
			}
		}
		if i == 0 {
			offset.SetType(r.kind)
		}

		segment.Offsets = append(segment.Offsets, offset)
		address += uint16(len(offset.OpcodeBytes))
	}
	return segment, nil
}

func fixedSegment(f *fixed) *program.Segment {
	segment := &program.Segment{
		Name:    f.name,
		Address: f.address,
		Asset:   f.asset,
		Offsets: make([]program.Offset, len(f.data)),
	}
	for i, b := range f.data {
		segment.Offsets[i] = program.Offset{
			Address:     f.address + uint16(i),
			OpcodeBytes: []byte{b},
			Type:        program.DataOffset,
		}
	}
	if len(segment.Offsets) > 0 {
		segment.Offsets[0].Label = f.label
	}
	return segment
}
