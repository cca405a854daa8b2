// Package compiler turns the parts of a production into programs. Every
// part is lowered through the emitter and the raster scheduler, laid out in
// memory, resolved and encoded. Parts compile concurrently.
package compiler

import (
	"context"
	"fmt"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrodemo/internal/symbols"
	"github.com/retroenv/retrodemo/internal/timeline"
	"github.com/retroenv/retrogolib/log"
	"golang.org/x/sync/errgroup"
)

// Default addresses used by the generated code.
const (
	DefaultLoaderEntry  = 0x0200 // resident page of the Spindle loader
	DefaultFrameCounter = 0x00fb

	loaderLength = 0x0200 // resident and buffer page from the loader entry
)

// Assets provides the content of assets.
type Assets interface {
	// Data returns the raw content of an asset.
	Data(name string) ([]byte, error)
	// Program returns the load address and the content of a PRG or SID
	// asset.
	Program(name string) (uint16, []byte, error)
}

// Options configures the compiler.
type Options struct {
	LoaderEntry  uint16
	FrameCounter uint16 // zero page address of the 16 bit frame counter
}

// Compiler compiles productions.
type Compiler struct {
	logger *log.Logger
	opts   Options
	assets Assets
}

// New returns a new compiler.
func New(logger *log.Logger, opts Options, assets Assets) *Compiler {
	if opts.LoaderEntry == 0 {
		opts.LoaderEntry = DefaultLoaderEntry
	}
	if opts.FrameCounter == 0 {
		opts.FrameCounter = DefaultFrameCounter
	}
	return &Compiler{
		logger: logger,
		opts:   opts,
		assets: assets,
	}
}

// Compile compiles all parts of the production and returns their programs
// in production order. Any error aborts the whole production.
func (c *Compiler) Compile(ctx context.Context, production *timeline.Production) ([]*program.Program, error) {
	global := symbols.NewGlobal()
	for _, part := range production.Parts {
		if err := global.DeclareGlobal(entryLabel(part), part.Start); err != nil {
			return nil, fmt.Errorf("defining entry of part '%s': %w", part.Name, err)
		}
	}

	parts := make([]*partCompiler, len(production.Parts))
	for i, part := range production.Parts {
		parts[i] = newPartCompiler(c.logger, c.opts, c.assets, production.Timing, part, global)
	}

	// lowering and layout only depend on the part itself
	group, groupCtx := errgroup.WithContext(ctx)
	for _, pc := range parts {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return fmt.Errorf("compiling part '%s': %w", pc.part.Name, err)
			}
			if err := pc.build(); err != nil {
				return fmt.Errorf("compiling part '%s': %w", pc.part.Name, err)
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	// exports have an address now and are visible to all parts
	for _, pc := range parts {
		if err := pc.export(); err != nil {
			return nil, fmt.Errorf("exporting symbols of part '%s': %w", pc.part.Name, err)
		}
	}

	programs := make([]*program.Program, len(parts))
	group, groupCtx = errgroup.WithContext(ctx)
	for i, pc := range parts {
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return fmt.Errorf("encoding part '%s': %w", pc.part.Name, err)
			}
			app, err := pc.encode()
			if err != nil {
				return fmt.Errorf("encoding part '%s': %w", pc.part.Name, err)
			}
			programs[i] = app
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	c.logger.Info("Compiled production",
		log.String("name", production.Name),
		log.Int("parts", len(programs)),
		log.String("system", string(production.Timing.System)))
	return programs, nil
}

// entryLabel returns the global label of the entry point of a part.
func entryLabel(part *timeline.Part) string {
	return labelPrefix(part.Name)
}

// labelPrefix converts a name into a valid symbol name.
func labelPrefix(name string) string {
	prefix := []byte(name)
	for i, c := range prefix {
		switch {
		case c == '_', c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		default:
			prefix[i] = '_'
		}
	}
	if len(prefix) == 0 || prefix[0] >= '0' && prefix[0] <= '9' {
		return "p_" + string(prefix)
	}
	return string(prefix)
}

func timingOrDefault(timing c64.Timing) c64.Timing {
	if timing.Lines != 0 {
		return timing
	}
	pal, _ := c64.TimingFor(c64.PAL)
	return pal
}
