// Package pipeline orchestrates the compile workflow stages.
package pipeline

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrodemo/internal/assembler"
	"github.com/retroenv/retrodemo/internal/assembler/acme"
	"github.com/retroenv/retrodemo/internal/assembler/ca65"
	"github.com/retroenv/retrodemo/internal/asset"
	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/compiler"
	"github.com/retroenv/retrodemo/internal/loader"
	"github.com/retroenv/retrodemo/internal/options"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrodemo/internal/script"
	"github.com/retroenv/retrodemo/internal/timeline"
	"github.com/retroenv/retrodemo/internal/verification"
	"github.com/retroenv/retrodemo/internal/writer"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

// Output file extensions.
const (
	PRGExtension     = ".prg"
	ListingExtension = ".asm"
	ScriptExtension  = ".script"
	ReportExtension  = ".pages"
)

// ListingWriterConstructor creates an assembler specific listing writer.
type ListingWriterConstructor func(app *program.Program, options options.Listing, mainWriter io.Writer) writer.AssemblerWriter

// Pipeline orchestrates the complete compile workflow.
type Pipeline struct {
	logger *log.Logger
	fs     afero.Fs
}

// New creates a new compile pipeline that reads and writes files using the
// given file system.
func New(logger *log.Logger, fs afero.Fs) *Pipeline {
	return &Pipeline{
		logger: logger,
		fs:     fs,
	}
}

// Execute runs the production script and compiles and writes all parts.
func (p *Pipeline) Execute(ctx context.Context, opts options.Program, listingOpts options.Listing) ([]*program.Program, error) {
	timing, err := c64.TimingFor(c64.System(opts.System))
	if err != nil {
		return nil, fmt.Errorf("selecting timing: %w", err)
	}

	production, err := script.Run(ctx, p.logger, p.fs, opts.Input, timing)
	if err != nil {
		return nil, fmt.Errorf("running production script: %w", err)
	}

	return p.ExecuteWithProduction(ctx, production, opts, listingOpts)
}

// ExecuteWithProduction compiles and writes the parts of a production that
// was built in Go. This is useful for testing and programmatic usage.
func (p *Pipeline) ExecuteWithProduction(ctx context.Context, production *timeline.Production,
	opts options.Program, listingOpts options.Listing) ([]*program.Program, error) {

	p.printInfo(opts, production)

	assets := asset.New(p.fs, assetDirectory(opts))
	comp := compiler.New(p.logger, compilerOptions(opts), assets)
	programs, err := comp.Compile(ctx, production)
	if err != nil {
		return nil, fmt.Errorf("compiling: %w", err)
	}

	if opts.Stdout {
		return programs, nil
	}

	for _, app := range programs {
		if err := p.writeOutputs(ctx, app, opts, listingOpts); err != nil {
			return nil, fmt.Errorf("writing part '%s': %w", app.Name, err)
		}
	}
	return programs, nil
}

// writeOutputs writes the PRG file, listing, loader script and memory report
// of a compiled part.
func (p *Pipeline) writeOutputs(ctx context.Context, app *program.Program, opts options.Program,
	listingOpts options.Listing) error {

	directory := OutputDirectory(opts)
	if err := p.fs.MkdirAll(directory, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	prg, err := app.PRG()
	if err != nil {
		return fmt.Errorf("building prg: %w", err)
	}
	prgFile := OutputFilename(directory, app.Name, PRGExtension)
	if err := afero.WriteFile(p.fs, prgFile, prg, 0o644); err != nil {
		return fmt.Errorf("writing prg file: %w", err)
	}

	if !opts.NoListing {
		listingFile := OutputFilename(directory, app.Name, ListingExtension)
		if err := p.writeListing(app, listingOpts, listingFile); err != nil {
			return err
		}

		// Verify output (if requested)
		if opts.AssembleTest {
			if err := verification.VerifyOutput(ctx, p.logger, listingOpts, listingFile, app); err != nil {
				return fmt.Errorf("verification failed: %w", err)
			}
			p.logger.Info("Verification successful", log.String("part", app.Name))
		}
	}

	if !opts.NoLoadScript {
		if err := p.writeFile(OutputFilename(directory, app.Name, ScriptExtension), func(w io.Writer) error {
			return loader.WriteScript(w, []loader.Request{startupRequest(app, len(prg))}, app.Loads)
		}); err != nil {
			return fmt.Errorf("writing loader script: %w", err)
		}
	}

	if err := p.writeFile(OutputFilename(directory, app.Name, ReportExtension), func(w io.Writer) error {
		return WriteMemoryReport(w, app)
	}); err != nil {
		return fmt.Errorf("writing memory report: %w", err)
	}

	p.logger.Info("Wrote part",
		log.String("part", app.Name),
		log.String("file", prgFile),
		log.Int("size", len(prg)))
	return nil
}

func (p *Pipeline) writeListing(app *program.Program, listingOpts options.Listing, listingFile string) error {
	newWriter, err := initializeAssembler(listingOpts.Assembler)
	if err != nil {
		return fmt.Errorf("initializing assembler: %w", err)
	}

	if err := p.writeFile(listingFile, func(w io.Writer) error {
		return newWriter(app, listingOpts, w).Write()
	}); err != nil {
		return fmt.Errorf("writing listing: %w", err)
	}
	return nil
}

func (p *Pipeline) writeFile(name string, write func(w io.Writer) error) error {
	file, err := p.fs.Create(name)
	if err != nil {
		return fmt.Errorf("creating file '%s': %w", name, err)
	}
	if err := write(file); err != nil {
		_ = file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("closing file '%s': %w", name, err)
	}
	return nil
}

// initializeAssembler returns the listing writer constructor for the specified assembler.
func initializeAssembler(assemblerName string) (ListingWriterConstructor, error) {
	switch strings.ToLower(assemblerName) {
	case assembler.Acme:
		return acme.New, nil
	case assembler.Ca65:
		return ca65.New, nil
	default:
		return nil, fmt.Errorf("unsupported assembler '%s'", assemblerName)
	}
}

// printInfo prints information about the production being processed.
func (p *Pipeline) printInfo(opts options.Program, production *timeline.Production) {
	if opts.Quiet {
		return
	}

	p.logger.Info("Processing production",
		log.String("name", production.Name),
		log.Int("parts", len(production.Parts)),
		log.String("system", string(production.Timing.System)),
		log.String("assembler", opts.Assembler),
	)
}

// startupRequest returns the loader request that loads the PRG file of the
// part itself, skipping its load address.
func startupRequest(app *program.Program, prgSize int) loader.Request {
	start, _, _ := app.Image()
	return loader.Request{
		Destination: start,
		Asset:       app.Name + PRGExtension,
		Offset:      2,
		Length:      prgSize - 2,
	}
}

func compilerOptions(opts options.Program) compiler.Options {
	return compiler.Options{
		LoaderEntry:  uint16(opts.LoaderEntry),
		FrameCounter: uint16(opts.FrameCounter),
	}
}

// OutputDirectory returns the directory that output files are written to.
func OutputDirectory(opts options.Program) string {
	if opts.Output != "" {
		return opts.Output
	}
	return filepath.Dir(opts.Input)
}

func assetDirectory(opts options.Program) string {
	if opts.Assets != "" {
		return opts.Assets
	}
	return filepath.Dir(opts.Input)
}

// OutputFilename returns the name of an output file of a part.
func OutputFilename(directory, part, extension string) string {
	return filepath.Join(directory, part+extension)
}
