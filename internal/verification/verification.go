// Package verification verifies that a written listing assembles to the
// compiled program.
package verification

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/retroenv/retrodemo/internal/assembler"
	"github.com/retroenv/retrodemo/internal/assembler/acme"
	"github.com/retroenv/retrodemo/internal/assembler/ca65"
	"github.com/retroenv/retrodemo/internal/options"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrogolib/log"
)

// VerifyOutput verifies that the listing file recreates the exact program.
func VerifyOutput(ctx context.Context, logger *log.Logger, opts options.Listing,
	listingFile string, app *program.Program) error {

	if listingFile == "" {
		return errors.New("can not verify console output")
	}

	expected, err := expectedOutput(opts, app)
	if err != nil {
		return err
	}

	outputFile, err := os.CreateTemp("", app.Name+".*.prg")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	_ = outputFile.Close()
	defer func() {
		_ = os.Remove(outputFile.Name())
	}()

	if err := assembleFile(ctx, opts, app, listingFile, outputFile.Name()); err != nil {
		return err
	}

	destination, err := os.ReadFile(outputFile.Name())
	if err != nil {
		return fmt.Errorf("reading destination file for comparison: %w", err)
	}

	if err := compareProgram(logger, opts, expected, destination); err != nil {
		return fmt.Errorf("comparing part '%s': %w", app.Name, err)
	}
	return nil
}

// expectedOutput returns the bytes that the assembler has to produce.
func expectedOutput(opts options.Listing, app *program.Program) ([]byte, error) {
	if opts.CodeOnly {
		_, image, err := app.Image()
		if err != nil {
			return nil, fmt.Errorf("building image: %w", err)
		}
		return image, nil
	}

	prg, err := app.PRG()
	if err != nil {
		return nil, fmt.Errorf("building prg: %w", err)
	}
	return prg, nil
}

func assembleFile(ctx context.Context, opts options.Listing, app *program.Program,
	listingFile, outputFile string) error {

	switch opts.Assembler {
	case assembler.Acme:
		if err := acme.AssembleUsingExternalApp(ctx, listingFile, outputFile, !opts.CodeOnly); err != nil {
			return fmt.Errorf("reassembling .prg file using acme failed: %w", err)
		}

	case assembler.Ca65:
		objectFile, err := os.CreateTemp("", app.Name+".*.o")
		if err != nil {
			return fmt.Errorf("creating temp file: %w", err)
		}
		_ = objectFile.Close()
		defer func() {
			_ = os.Remove(objectFile.Name())
		}()

		start, _, err := app.Image()
		if err != nil {
			return fmt.Errorf("building image: %w", err)
		}
		ca65Config := ca65.Config{
			Start:       start,
			LoadAddress: !opts.CodeOnly,
		}

		if err = ca65.AssembleUsingExternalApp(ctx, listingFile, objectFile.Name(), outputFile, ca65Config); err != nil {
			return fmt.Errorf("reassembling .prg file using ca65 failed: %w", err)
		}

	default:
		return fmt.Errorf("unsupported assembler '%s'", opts.Assembler)
	}

	return nil
}

func checkBufferEqual(logger *log.Logger, base int, input, output []byte) error {
	if len(input) != len(output) {
		return fmt.Errorf("mismatched lengths, %d != %d", len(input), len(output))
	}

	var diffs uint64
	for i := range input {
		if input[i] == output[i] {
			continue
		}

		diffs++
		if diffs < 10 {
			logger.Error("Address mismatch",
				log.Hex("address", base+i),
				log.Hex("expected", input[i]),
				log.Hex("got", output[i]))
		}
	}
	if diffs == 0 {
		return nil
	}
	return fmt.Errorf("%d address mismatches", diffs)
}

// compareProgram compares the load address and the image of the expected
// and the assembled output.
func compareProgram(logger *log.Logger, opts options.Listing, input, output []byte) error {
	if opts.CodeOnly {
		if err := checkBufferEqual(logger, 0, input, output); err != nil {
			return fmt.Errorf("image mismatch: %w", err)
		}
		return nil
	}

	if len(input) < 2 || len(output) < 2 {
		return fmt.Errorf("missing load address, expected %d bytes but got %d", len(input), len(output))
	}
	expected := int(input[0]) | int(input[1])<<8
	got := int(output[0]) | int(output[1])<<8
	if expected != got {
		return fmt.Errorf("load address mismatch, expected $%04x but got $%04x", expected, got)
	}

	if err := checkBufferEqual(logger, expected, input[2:], output[2:]); err != nil {
		return fmt.Errorf("image mismatch: %w", err)
	}
	return nil
}
