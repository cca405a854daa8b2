package acme

import (
	"fmt"
	"io"

	"github.com/retroenv/retrodemo/internal/options"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrodemo/internal/writer"
)

var cpuSelector = "!cpu 6502"

var origin = "* = $%04x\n"

var fill = "  !fill %d, 0\n"

// FileWriter writes the assembly file content.
type FileWriter struct {
	app        *program.Program
	options    options.Listing
	mainWriter io.Writer
	writer     *writer.Writer
}

type originWrite struct {
	address uint16
}

type customWrite func() error

type lineWrite string

// New creates a new file writer.
// nolint: ireturn
func New(app *program.Program, options options.Listing, mainWriter io.Writer) writer.AssemblerWriter {
	opts := writer.Options{
		ByteDirective:  "!byte",
		BareLabels:     true,
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
		originWrite{address: start},
		customWrite(f.writeCode),
	)

	for _, write := range writes {
		switch t := write.(type) {
		case originWrite:
			if _, err := fmt.Fprintf(f.mainWriter, "\n"+origin, t.address); err != nil {
				return fmt.Errorf("writing origin: %w", err)
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
