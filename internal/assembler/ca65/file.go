package ca65

import (
	"fmt"
	"io"

	"github.com/retroenv/retrodemo/internal/options"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrodemo/internal/writer"
)

var cpuSelector = `.setcpu "6502"`

var loadAddress = ".addr $%04x                      ; load address\n"

var fill = ".res %d, $00\n"

// FileWriter writes the assembly file content.
type FileWriter struct {
	app        *program.Program
	options    options.Listing
	mainWriter io.Writer
	writer     *writer.Writer
}

type segmentWrite struct {
	name string
}

type loadAddressWrite struct {
	address uint16
}

type customWrite func() error

type lineWrite string

// New creates a new file writer.
// nolint: ireturn
func New(app *program.Program, options options.Listing, mainWriter io.Writer) writer.AssemblerWriter {
	opts := writer.Options{
		ByteDirective:  ".byte",
		OffsetComments: options.OffsetComments,
		Params:         ParamConfig,
	}
	return FileWriter{
		app:        app,
		options:    options,
		mainWriter: mainWriter,
		writer:     writer.New(app, mainWriter, opts),
	}
}

// Write writes the assembly file content including header, constants, code and data.
func (f FileWriter) Write() error {
	start, _, err := f.app.Image()
	if err != nil {
		return fmt.Errorf("building image: %w", err)
	}

	var writes []any // nolint:prealloc

	if !f.options.CodeOnly {
		writes = append(writes, customWrite(f.writer.WriteCommentHeader))
	}
	writes = append(writes,
		lineWrite(cpuSelector),
		customWrite(f.writeConstants),
	)
	if !f.options.CodeOnly {
		writes = append(writes,
			segmentWrite{name: "LOADADDR"},
			loadAddressWrite{address: start},
		)
	}
	writes = append(writes,
		segmentWrite{name: "CODE"},
		customWrite(f.writeCode),
	)

	for _, write := range writes {
		switch t := write.(type) {
		case segmentWrite:
			if err := f.writeSegment(t.name); err != nil {
				return err
			}

		case loadAddressWrite:
			if _, err := fmt.Fprintf(f.mainWriter, loadAddress, t.address); err != nil {
				return fmt.Errorf("writing load address: %w", err)
			}

		case lineWrite:
			if _, err := fmt.Fprintln(f.mainWriter, t); err != nil {
				return fmt.Errorf("writing line: %w", err)
			}

		case customWrite:
			if err := t(); err != nil {
				return err
			}
		}
	}
	return nil
}

// writeSegment writes a segment header to the output.
func (f FileWriter) writeSegment(name string) error {
	if _, err := fmt.Fprintf(f.mainWriter, "\n.segment \"%s\"\n\n", name); err != nil {
		return fmt.Errorf("writing segment: %w", err)
	}
	return nil
}

// writeConstants writes constant aliases to the output.
func (f FileWriter) writeConstants() error {
	if err := f.writer.OutputAliasMap(f.app.Constants); err != nil {
		return fmt.Errorf("writing constants output alias map: %w", err)
	}
	return nil
}

// writeCode writes the code and data segments to the output.
func (f FileWriter) writeCode() error {
	err := f.writer.ProcessSegments(func(size int) error {
		if _, err := fmt.Fprintf(f.mainWriter, fill, size); err != nil {
			return fmt.Errorf("writing fill: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("writing segments: %w", err)
	}
	return nil
}
