// Package fileprocessor handles file loading and processing operations
package fileprocessor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/retroenv/retrodemo/internal/options"
	"github.com/retroenv/retrodemo/internal/pipeline"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
	"golang.org/x/term"
)

var errTerminalOutput = errors.New("refusing to write binary output to a terminal")

// ProcessFile handles the complete file processing workflow
func ProcessFile(ctx context.Context, logger *log.Logger, opts options.Program, listingOptions options.Listing) error {
	p := pipeline.New(logger, afero.NewOsFs())

	programs, err := p.Execute(ctx, opts, listingOptions)
	if err != nil {
		return fmt.Errorf("processing production: %w", err)
	}

	if opts.Stdout {
		return WriteStdout(os.Stdout, programs)
	}
	return nil
}

// WriteStdout writes the PRG file of a single part production to the given
// file. Terminals are refused.
func WriteStdout(out *os.File, programs []*program.Program) error {
	if term.IsTerminal(int(out.Fd())) {
		return errTerminalOutput
	}
	if len(programs) != 1 {
		return fmt.Errorf("writing to stdout needs a production with a single part, got %d parts", len(programs))
	}

	prg, err := programs[0].PRG()
	if err != nil {
		return fmt.Errorf("building prg: %w", err)
	}
	if _, err := out.Write(prg); err != nil {
		return fmt.Errorf("writing prg: %w", err)
	}
	return nil
}

// PrintBanner prints application version information
func PrintBanner(logger *log.Logger, opts options.Program, version, commit, date string) {
	if opts.Quiet {
		return
	}

	versionString := version
	if commit != "" {
		if len(commit) > 7 {
			commit = commit[:7]
		}
		versionString += fmt.Sprintf(" (%s)", commit)
	}

	logger.Info("retrodemo", log.String("version", versionString))

	if date != "" && !strings.Contains(date, "unknown") {
		logger.Info("Build", log.String("date", date))
	}
}
