// Package writer implements common assembly file writing functionality.
package writer

import (
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

const dataBytesPerLine = 16

type lineWriterFunc func(line string, byteCount int) error

// FillFunc writes size zero bytes to fill a gap between two segments.
type FillFunc func(size int) error

// AssemblerWriter defines a shared interface used by the different assembler compatibility packages.
// Their constructors need to return this shared interface, having them return the actual type instead of
// the interface results in compiler errors for the constructor variable that they are assigned to.
type AssemblerWriter interface {
	Write() error
}

// ParamConfig configures how operands are forced to a specific address size.
// Assemblers pick the zero page form for small values, the emitted code
// however relies on the addressing mode that its cycle cost was computed for.
type ParamConfig struct {
	ZeroPagePrefix string // operand prefix like z:
	AbsolutePrefix string // operand prefix like a:
	ZeroPageSuffix string // mnemonic suffix like +1
	AbsoluteSuffix string // mnemonic suffix like +2
}

// Writer implements common assembly file writing functionality.
type Writer struct {
	app     *program.Program
	options Options
	writer  io.Writer
}

// Options of the writer.
type Options struct {
	ByteDirective  string // .byte for ca65, !byte for acme
	BareLabels     bool   // labels without a trailing colon
	OffsetComments bool
	Params         ParamConfig
}

// New creates a new writer.
func New(app *program.Program, writer io.Writer, options Options) *Writer {
	if options.ByteDirective == "" {
		options.ByteDirective = ".byte"
	}
	return &Writer{
		app:     app,
		options: options,
		writer:  writer,
	}
}

// ProcessSegments writes all segments of the program in address order.
// Gaps between segments are written using the fill function.
func (w Writer) ProcessSegments(fill FillFunc) error {
	address := -1
	for _, segment := range w.app.Segments {
		if address >= 0 && int(segment.Address) > address {
			if err := fill(int(segment.Address) - address); err != nil {
				return fmt.Errorf("filling gap before segment '%s': %w", segment.Name, err)
			}
		}

		if _, err := fmt.Fprintf(w.writer, "\n; %s\n", segmentTitle(segment)); err != nil {
			return fmt.Errorf("writing segment comment: %w", err)
		}
		if err := w.ProcessSegment(segment); err != nil {
			return fmt.Errorf("writing segment '%s': %w", segment.Name, err)
		}

		address = max(address, segment.End())
	}
	return nil
}

// ProcessSegment writes all offsets of a segment, including labels and their comments.
func (w Writer) ProcessSegment(segment *program.Segment) error {
	var previousLineWasCode bool

	for i := 0; i < len(segment.Offsets); i++ {
		offset := segment.Offsets[i]

		if err := w.writeLabel(i, offset); err != nil {
			return err
		}
		if len(offset.OpcodeBytes) == 0 {
			continue
		}

		isCode := !offset.IsType(program.DataOffset)
		// print an empty line in case of data after code and vice versa
		if i > 0 && offset.Label == "" && isCode != previousLineWasCode {
			if _, err := fmt.Fprintln(w.writer); err != nil {
				return fmt.Errorf("writing line: %w", err)
			}
		}
		previousLineWasCode = isCode

		if !isCode {
			count, err := w.bundleSegmentDataWrites(segment, i)
			if err != nil {
				return err
			}
			i += count - 1
			continue
		}

		if err := w.writeCodeLine(offset); err != nil {
			return fmt.Errorf("writing code line: %w", err)
		}
	}
	return nil
}

// BundleDataWrites bundles writes of data bytes to print dataBytesPerLine bytes per line.
func (w Writer) BundleDataWrites(data []byte, lineWriter lineWriterFunc) error {
	remaining := len(data)
	for i := 0; remaining > 0; {
		toWrite := min(remaining, dataBytesPerLine)

		buf := &strings.Builder{}
		if _, err := fmt.Fprintf(buf, "%s ", w.options.ByteDirective); err != nil {
			return fmt.Errorf("writing data prefix: %w", err)
		}

		for j := range toWrite {
			if _, err := fmt.Fprintf(buf, "$%02x, ", data[i+j]); err != nil {
				return fmt.Errorf("writing data byte: %w", err)
			}
		}

		line := "  " + strings.TrimRight(buf.String(), ", ")

		if lineWriter != nil {
			if err := lineWriter(line, toWrite); err != nil {
				return fmt.Errorf("writing data line using custom writer: %w", err)
			}
		} else {
			if _, err := fmt.Fprintf(w.writer, "%s\n", line); err != nil {
				return fmt.Errorf("writing data line: %w", err)
			}
		}

		i += toWrite
		remaining -= toWrite
	}

	return nil
}

// OutputAliasMap outputs an alias map, for constants or imported symbols.
func (w Writer) OutputAliasMap(aliases map[string]uint16) error {
	if len(aliases) == 0 {
		return nil
	}

	if _, err := fmt.Fprintln(w.writer); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}

	// sort the aliases by name before outputting to avoid random map order
	names := make([]string, 0, len(aliases))
	for constant := range aliases {
		names = append(names, constant)
	}
	slices.Sort(names)

	for _, constant := range names {
		address := aliases[constant]
		if _, err := fmt.Fprintf(w.writer, "%s = $%04X\n", constant, address); err != nil {
			return fmt.Errorf("writing alias: %w", err)
		}
	}
	return nil
}

// WriteCommentHeader writes the part name, load address and the interrupt
// handler budgets as comments to the output.
func (w Writer) WriteCommentHeader() error {
	start, image, err := w.app.Image()
	if err != nil {
		return fmt.Errorf("building image: %w", err)
	}

	if _, err := fmt.Fprintf(w.writer, "; Part: %s\n", w.app.Name); err != nil {
		return fmt.Errorf("writing part name: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "; Load address: $%04x, size: %d bytes\n", start, len(image)); err != nil {
		return fmt.Errorf("writing load address: %w", err)
	}
	if _, err := fmt.Fprintf(w.writer, "; Entry: %s\n", w.app.Entry); err != nil {
		return fmt.Errorf("writing entry: %w", err)
	}

	for _, handler := range w.app.Handlers {
		ticks := ""
		if handler.Ticks > 1 {
			ticks = fmt.Sprintf(" (%d ticks)", handler.Ticks)
		}
		if _, err := fmt.Fprintf(w.writer, "; IRQ %s/%d at line $%03x%s: %d of %d cycles\n",
			handler.Chain, handler.Slot, handler.Trigger, ticks, handler.Cost, handler.Budget); err != nil {
			return fmt.Errorf("writing handler: %w", err)
		}
	}

	if _, err := fmt.Fprintln(w.writer); err != nil {
		return fmt.Errorf("writing line: %w", err)
	}
	return nil
}

// FormatInstruction returns the instruction in assembler notation. Symbolic
// and small literal operands get forced to the emitted address size.
func (w Writer) FormatInstruction(ins instruction.Instruction) string {
	text := ins.String()
	if ins.Is(m6502.Jmp) || ins.Is(m6502.Jsr) {
		return text
	}

	op := ins.Operand()
	var suffix, prefix string
	switch ins.Addressing() {
	case m6502.AbsoluteAddressing, m6502.AbsoluteXAddressing, m6502.AbsoluteYAddressing:
		if !op.IsSymbolic() && op.Value > 0xff {
			return text
		}
		suffix, prefix = w.options.Params.AbsoluteSuffix, w.options.Params.AbsolutePrefix
	case m6502.ZeroPageAddressing, m6502.ZeroPageXAddressing, m6502.ZeroPageYAddressing:
		if !op.IsSymbolic() {
			return text
		}
		suffix, prefix = w.options.Params.ZeroPageSuffix, w.options.Params.ZeroPagePrefix
	default:
		return text
	}

	name := ins.Name()
	operand := strings.TrimPrefix(text, name+" ")
	return name + suffix + " " + prefix + operand
}

func (w Writer) writeLabel(index int, offset program.Offset) error {
	if offset.Label == "" {
		return nil
	}

	if index > 0 {
		if _, err := fmt.Fprintln(w.writer); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}

	label := offset.Label
	if !w.options.BareLabels {
		label += ":"
	}

	comment := offset.LabelComment
	if comment == "" {
		comment = entryComment(offset)
	}

	if comment == "" {
		if _, err := fmt.Fprintf(w.writer, "%s\n", label); err != nil {
			return fmt.Errorf("writing label: %w", err)
		}
	} else {
		if _, err := fmt.Fprintf(w.writer, "%-32s ; %s\n", label, comment); err != nil {
			return fmt.Errorf("writing label: %w", err)
		}
	}
	return nil
}

// entryComment describes the routine that starts at the offset.
func entryComment(offset program.Offset) string {
	switch {
	case offset.IsType(program.InterruptHandler):
		return "interrupt handler"
	case offset.IsType(program.CallDestination):
		return "call destination"
	default:
		return ""
	}
}

func (w Writer) writeCodeLine(offset program.Offset) error {
	code := w.FormatInstruction(offset.Instruction)
	comment, err := w.codeComment(offset)
	if err != nil {
		return err
	}

	if comment == "" {
		if _, err := fmt.Fprintf(w.writer, "  %s\n", code); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	} else {
		if _, err := fmt.Fprintf(w.writer, "  %-30s ; %s\n", code, comment); err != nil {
			return fmt.Errorf("writing line: %w", err)
		}
	}
	return nil
}

// codeComment returns the comment of a code line, timed instructions are
// marked.
func (w Writer) codeComment(offset program.Offset) (string, error) {
	var parts []string
	if w.options.OffsetComments {
		hex, err := offset.HexCodeComment()
		if err != nil {
			return "", fmt.Errorf("writing hex comment: %w", err)
		}
		parts = append(parts, fmt.Sprintf("$%04X  %s", offset.Address, hex))
	}
	if offset.IsType(program.TimedCode) {
		parts = append(parts, "timed")
	}
	if offset.Comment != "" {
		parts = append(parts, offset.Comment)
	}
	return strings.Join(parts, "  "), nil
}

func (w Writer) offsetComment(address uint16, comment string) string {
	if !w.options.OffsetComments {
		return comment
	}
	if comment == "" {
		return fmt.Sprintf("$%04X", address)
	}
	return fmt.Sprintf("$%04X  %s", address, comment)
}

// bundleSegmentDataWrites writes the data bytes starting at the given offset
// index as bundled lines and returns the number of processed offsets.
func (w Writer) bundleSegmentDataWrites(segment *program.Segment, startIndex int) (int, error) {
	data, count := segmentData(segment, startIndex)

	first := segment.Offsets[startIndex]
	address := first.Address
	comment := first.Comment
	lineWriter := func(line string, byteCount int) error {
		var err error

		lineComment := w.offsetComment(address, comment)
		if lineComment == "" {
			_, err = fmt.Fprintf(w.writer, "%s\n", line)
		} else {
			_, err = fmt.Fprintf(w.writer, "%-32s ; %s\n", line, lineComment)
		}
		if err != nil {
			return fmt.Errorf("writing data line: %w", err)
		}

		address += uint16(byteCount)
		comment = ""
		return nil
	}

	if err := w.BundleDataWrites(data, lineWriter); err != nil {
		return 0, fmt.Errorf("writing segment data: %w", err)
	}
	return count, nil
}

// segmentData returns the data bytes of the data offsets following the start
// index up to the next label or code offset.
func segmentData(segment *program.Segment, startIndex int) ([]byte, int) {
	var data []byte
	count := 0

	for i := startIndex; i < len(segment.Offsets); i++ {
		offset := segment.Offsets[i]
		if !offset.IsType(program.DataOffset) || len(offset.OpcodeBytes) == 0 {
			break
		}
		// stop at first label after start index
		if i > startIndex && offset.Label != "" {
			break
		}

		data = append(data, offset.OpcodeBytes...)
		count++
	}

	return data, count
}

func segmentTitle(segment *program.Segment) string {
	if segment.Asset != "" {
		return fmt.Sprintf("%s at $%04x from %s", segment.Name, segment.Address, segment.Asset)
	}
	return fmt.Sprintf("%s at $%04x", segment.Name, segment.Address)
}
