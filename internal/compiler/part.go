package compiler

import (
	"fmt"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrodemo/internal/loader"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrodemo/internal/raster"
	"github.com/retroenv/retrodemo/internal/symbols"
	"github.com/retroenv/retrodemo/internal/timeline"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
	"github.com/retroenv/retrogolib/log"
)

// symbols that every part can reference
const (
	frameCounterSymbol = "frame_counter"
	loaderSymbol       = "loader"
	musicInitSymbol    = "music_init"
	musicPlaySymbol    = "music_play"
)

// routine is a block of code that is placed as a whole.
type routine struct {
	name         string
	kind         program.OffsetType
	instructions []instruction.Instruction
	address      uint16
	size         int

	cycles      int
	costUnknown bool
}

// fixed is an asset that is placed at a fixed address.
type fixed struct {
	name    string
	asset   string
	label   string
	address uint16
	data    []byte
	kind    loader.RangeKind
}

// partCompiler compiles a single part. Parts do not share mutable state
// except for the global scope that is only read while compiling.
type partCompiler struct {
	logger *log.Logger
	opts   Options
	assets Assets
	timing c64.Timing
	part   *timeline.Part

	prefix      string
	scope       *symbols.Scope
	labels      *emit.Labels
	coordinator *loader.Coordinator

	fixed       []*fixed
	routines    []*routine
	subroutines map[string]*timeline.Subroutine
	lowered     map[string]*routine
	lowering    map[string]bool

	chains   map[string]*raster.Chain
	exits    map[string][]*emit.State // handler exit states per chain
	handlers []program.Handler
}

func newPartCompiler(logger *log.Logger, opts Options, assets Assets, timing c64.Timing,
	part *timeline.Part, global *symbols.Scope) *partCompiler {

	prefix := labelPrefix(part.Name)
	return &partCompiler{
		logger:      logger,
		opts:        opts,
		assets:      assets,
		timing:      timingOrDefault(timing),
		part:        part,
		prefix:      prefix,
		scope:       symbols.NewScope(global),
		labels:      emit.NewLabels(prefix),
		coordinator: loader.New(logger),
		subroutines: map[string]*timeline.Subroutine{},
		lowered:     map[string]*routine{},
		lowering:    map[string]bool{},
		chains:      map[string]*raster.Chain{},
		exits:       map[string][]*emit.State{},
	}
}

// build lowers all streams of the part and places them in memory.
func (pc *partCompiler) build() error {
	if err := pc.defineSymbols(); err != nil {
		return err
	}
	if err := pc.loadFixed(); err != nil {
		return err
	}

	stub := &routine{
		name: entryLabel(pc.part),
		kind: program.CallDestination,
		instructions: []instruction.Instruction{
			instruction.Absolute(m6502.Jmp, instruction.Symbol(pc.initLabel())).WithLabel(entryLabel(pc.part)),
		},
	}

	for _, sub := range pc.part.Subroutines {
		pc.subroutines[sub.Name] = sub
	}
	var subroutines []*routine
	for _, sub := range pc.part.Subroutines {
		r, err := pc.lowerSubroutine(sub)
		if err != nil {
			return err
		}
		subroutines = append(subroutines, r)
	}

	var handlers []*routine
	var chains []*raster.Chain
	for _, decl := range pc.part.Chains {
		chain, err := pc.lowerChain(decl)
		if err != nil {
			return err
		}
		chains = append(chains, chain)
		for _, h := range chain.Handlers {
			handlers = append(handlers, &routine{
				name:         h.Label,
				kind:         program.InterruptHandler,
				instructions: h.Instructions,
				cycles:       h.Cost,
			})
			pc.handlers = append(pc.handlers, program.Handler{
				Chain:   chain.Name,
				Slot:    h.Slot,
				Label:   h.Label,
				Trigger: h.Trigger,
				Ticks:   len(h.Lines),
				Cost:    h.Cost,
				Budget:  h.Budget,
			})
		}
	}

	main, err := pc.lowerMain(chains)
	if err != nil {
		return err
	}

	pc.routines = append(pc.routines, stub, main)
	pc.routines = append(pc.routines, subroutines...)
	pc.routines = append(pc.routines, handlers...)
	pc.declareReferences()
	if err := pc.layout(); err != nil {
		return err
	}
	if err := pc.defineLabels(); err != nil {
		return err
	}

	ranges := make([]loader.Range, 0, len(pc.routines)+len(pc.fixed))
	for _, r := range pc.routines {
		ranges = append(ranges, loader.Range{Start: r.address, Length: r.size, Kind: loader.CodeRange, Owner: r.name})
	}
	for _, f := range pc.fixed {
		if f.kind == loader.MusicRange {
			continue // already live
		}
		ranges = append(ranges, loader.Range{Start: f.address, Length: len(f.data), Kind: f.kind, Owner: f.name})
	}
	if err := pc.coordinator.Verify(ranges...); err != nil {
		return fmt.Errorf("verifying loads: %w", err)
	}

	pc.logger.Debug("Built part",
		log.String("part", pc.part.Name),
		log.Int("routines", len(pc.routines)),
		log.Int("chains", len(chains)),
		log.Int("loads", len(pc.coordinator.Requests())))
	return nil
}

// defineSymbols defines the constants of the part.
func (pc *partCompiler) defineSymbols() error {
	for name, address := range pc.part.Symbols {
		if err := pc.scope.DeclareAt(name, address); err != nil {
			return fmt.Errorf("defining symbol: %w", err)
		}
	}
	if pc.part.UsesFrameCounter() {
		if err := pc.scope.Define(frameCounterSymbol, pc.opts.FrameCounter); err != nil {
			return fmt.Errorf("defining frame counter: %w", err)
		}
	}
	if pc.usesLoader() {
		if err := pc.scope.Define(loaderSymbol, pc.opts.LoaderEntry); err != nil {
			return fmt.Errorf("defining loader entry: %w", err)
		}
		pc.coordinator.MarkLive(pc.loaderRange())
	}
	if music := pc.part.Music; music != nil {
		if err := pc.scope.Define(musicInitSymbol, music.Init); err != nil {
			return fmt.Errorf("defining music init: %w", err)
		}
		if err := pc.scope.Define(musicPlaySymbol, music.Play); err != nil {
			return fmt.Errorf("defining music play: %w", err)
		}
	}
	return nil
}

// loadFixed reads the included assets and the music.
func (pc *partCompiler) loadFixed() error {
	for _, include := range pc.part.Includes {
		data, err := pc.assets.Data(include.Asset)
		if err != nil {
			return fmt.Errorf("including asset '%s': %w", include.Asset, err)
		}
		if include.Label != "" {
			if err := pc.scope.Define(include.Label, include.Address); err != nil {
				return fmt.Errorf("defining include label: %w", err)
			}
		}
		name := include.Label
		if name == "" {
			name = include.Asset
		}
		pc.fixed = append(pc.fixed, &fixed{
			name:    name,
			asset:   include.Asset,
			label:   include.Label,
			address: include.Address,
			data:    data,
			kind:    loader.CodeRange,
		})
	}

	if music := pc.part.Music; music != nil {
		address, data, err := pc.assets.Program(music.Asset)
		if err != nil {
			return fmt.Errorf("loading music '%s': %w", music.Asset, err)
		}
		if music.Address != 0 {
			address = music.Address
		}
		if err := pc.scope.Define(pc.prefix+"_music", address); err != nil {
			return fmt.Errorf("defining music label: %w", err)
		}
		pc.fixed = append(pc.fixed, &fixed{
			name:    "music",
			asset:   music.Asset,
			label:   pc.prefix + "_music",
			address: address,
			data:    data,
			kind:    loader.MusicRange,
		})
		pc.coordinator.MarkLive(loader.Range{Start: address, Length: len(data), Kind: loader.MusicRange, Owner: music.Asset})
	}
	return nil
}

// declareReferences declares every symbol that the lowered code references
// and that is not known yet. Labels get defined by the layout, exports of
// other parts by the global scope, everything else is reported when the part
// gets encoded.
func (pc *partCompiler) declareReferences() {
	for _, r := range pc.routines {
		for _, ins := range r.instructions {
			op := ins.Operand()
			if ins.IsMarker() || !op.IsSymbolic() || pc.scope.Has(op.Symbol) {
				continue
			}
			pc.scope.Declare(op.Symbol)
		}
	}
}

// export publishes the exported labels of the part in the global scope.
func (pc *partCompiler) export() error {
	for _, name := range pc.part.Exports {
		sym, ok := pc.scope.Lookup(name)
		if !ok || !sym.Defined || sym.Global {
			return fmt.Errorf("exported symbol '%s' is not defined by the part", name)
		}
		if err := pc.scope.DeclareGlobal(name, sym.Address); err != nil {
			return fmt.Errorf("exporting '%s': %w", name, err)
		}
	}
	return nil
}

// loaderRange returns the memory of the resident loader that starts at its
// entry.
func (pc *partCompiler) loaderRange() loader.Range {
	return loader.Range{
		Start:  pc.opts.LoaderEntry,
		Length: min(loaderLength, 0x10000-int(pc.opts.LoaderEntry)),
		Kind:   loader.ReservedRange,
		Owner:  loaderSymbol,
	}
}

func (pc *partCompiler) usesLoader() bool {
	for _, op := range pc.part.Background {
		switch op.(type) {
		case timeline.Load, timeline.Yield:
			return true
		}
	}
	return false
}

func (pc *partCompiler) initLabel() string {
	return pc.prefix + "_init"
}

func (pc *partCompiler) vectorAddress() uint16 {
	if pc.part.Vector == raster.KernalVector {
		return c64.KernalIRQVector
	}
	return c64.HardwareIRQVector
}

func (pc *partCompiler) emitOptions() emit.Options {
	opts := emit.Options{
		BankMethod:  pc.part.BankMethod,
		Vector:      pc.vectorAddress(),
		LoaderEntry: instruction.Symbol(loaderSymbol),
	}
	if pc.part.UsesFrameCounter() {
		opts.FrameCounter = frameCounterSymbol
	}
	return opts
}
