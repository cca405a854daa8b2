package compiler

import (
	"fmt"
	"slices"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrodemo/internal/raster"
	"github.com/retroenv/retrodemo/internal/timeline"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

// stream is an op sequence that is being lowered.
type stream struct {
	name string
	e    *emit.Emitter
	// exact streams need the cost of every call
	exact       bool
	costUnknown bool
}

func (pc *partCompiler) newStream(name string, exact bool) *stream {
	return &stream{
		name:  name,
		e:     emit.New(pc.emitOptions(), nil, pc.labels),
		exact: exact,
	}
}

// lowerSubroutine lowers a subroutine once, calls of other subroutines are
// lowered first to know their cost.
func (pc *partCompiler) lowerSubroutine(sub *timeline.Subroutine) (*routine, error) {
	if r, ok := pc.lowered[sub.Name]; ok {
		return r, nil
	}
	if pc.lowering[sub.Name] {
		return nil, fmt.Errorf("subroutine '%s' calls itself", sub.Name)
	}
	pc.lowering[sub.Name] = true
	defer delete(pc.lowering, sub.Name)

	s := pc.newStream(fmt.Sprintf("subroutine '%s'", sub.Name), false)
	for _, op := range sub.Ops {
		if err := pc.lowerOp(s, op); err != nil {
			return nil, err
		}
	}
	s.e.Emit(instruction.Implied(m6502.Rts))

	r := &routine{
		name:         sub.Name,
		kind:         program.CallDestination,
		instructions: append([]instruction.Instruction{instruction.Mark(sub.Name)}, s.e.Instructions()...),
		cycles:       s.e.Cycles(),
		costUnknown:  s.costUnknown,
	}
	if sub.Cycles > 0 {
		r.cycles = sub.Cycles
		r.costUnknown = false
	}
	pc.lowered[sub.Name] = r
	return r, nil
}

// callCycles returns the cost of a call including the return of the
// subroutine.
func (pc *partCompiler) callCycles(s *stream, target instruction.Operand, cycles int) (int, error) {
	if cycles > 0 {
		return cycles, nil
	}

	known := false
	if target.IsSymbolic() && target.Offset == 0 && target.Select == instruction.Full {
		if sub, ok := pc.subroutines[target.Symbol]; ok {
			if sub.Cycles > 0 {
				return sub.Cycles, nil
			}
			r, err := pc.lowerSubroutine(sub)
			if err != nil {
				return 0, err
			}
			cycles = r.cycles
			known = !r.costUnknown
		}
	}
	if !known {
		if s.exact {
			return 0, fmt.Errorf("call of '%s' has no known cycle cost", target)
		}
		s.costUnknown = true
	}
	return cycles, nil
}

// lowerChain lowers all handlers of a chain and finalizes the schedule.
func (pc *partCompiler) lowerChain(decl *timeline.Chain) (*raster.Chain, error) {
	opts := raster.Options{
		Name:   decl.Name,
		Prefix: pc.prefix + "_" + labelPrefix(decl.Name),
		Timing: pc.timing,
		Vector: pc.part.Vector,
		Labels: pc.labels,
	}
	if pc.part.UsesFrameCounter() {
		opts.FrameCounter = frameCounterSymbol
	}
	scheduler := raster.New(pc.logger, opts)

	var exits []*emit.State
	for _, h := range decl.Handlers {
		s := pc.newStream(fmt.Sprintf("chain '%s' slot %d", decl.Name, h.Slot), true)
		var interval *raster.Interval
		for _, op := range h.Ops {
			cwi, ok := op.(timeline.CallWithInterval)
			if !ok {
				if err := pc.lowerOp(s, op); err != nil {
					return nil, err
				}
				continue
			}
			if interval != nil {
				return nil, fmt.Errorf("%s: only one call with interval per handler", s.name)
			}
			cycles, err := pc.callCycles(s, cwi.Target, cwi.Cycles)
			if err != nil {
				return nil, fmt.Errorf("%s: %s: %w", s.name, cwi.Name(), err)
			}
			interval = &raster.Interval{Target: cwi.Target, Frames: cwi.Frames, Cycles: cycles}
		}

		cfg := raster.HandlerConfig{
			Slot:       h.Slot,
			Trigger:    h.Trigger,
			Next:       h.Next,
			ReArm:      h.ReArm,
			Timer:      h.Timer,
			ReArmDelta: h.ReArmDelta,
			Ticks:      h.Ticks,
			Stabilize:  h.Stabilize,
			Priority:   h.Priority,
			Body:       s.e.Instructions(),
			BodyCycles: s.e.Cycles(),
			Exit:       s.e.State(),
			Interval:   interval,
		}
		if err := scheduler.AddHandler(cfg); err != nil {
			return nil, err
		}
		exits = append(exits, s.e.State())
	}

	chain, err := scheduler.Finalize()
	if err != nil {
		return nil, err
	}
	pc.chains[decl.Name] = chain
	pc.exits[decl.Name] = exits
	return chain, nil
}

// lowerMain lowers the initialization and the background stream. The first
// chain is armed after the initialization.
func (pc *partCompiler) lowerMain(chains []*raster.Chain) (*routine, error) {
	s := pc.newStream("init", false)
	for _, op := range pc.part.Init {
		if err := pc.lowerOp(s, op); err != nil {
			return nil, err
		}
	}

	if music := pc.part.Music; music != nil {
		s.e.Emit(instruction.Immediate(m6502.Lda, instruction.Literal(uint16(music.Song))))
		s.e.CallSubroutine(instruction.Symbol(musicInitSymbol), 0)
	}
	if pc.part.UsesFrameCounter() {
		counter := instruction.Symbol(frameCounterSymbol)
		s.e.Emit(
			instruction.Immediate(m6502.Lda, instruction.Literal(0)),
			instruction.ZeroPage(m6502.Sta, counter),
			instruction.ZeroPage(m6502.Sta, counter.Plus(1)),
		)
		s.e.State().ForgetCPU()
	}

	var active *raster.Chain
	if len(chains) > 0 {
		active = chains[0]
		raster.Arm(s.e, active)
	}
	for _, chain := range chains {
		for _, h := range chain.Handlers {
			for _, reg := range emit.WrittenRegisters(h.Instructions) {
				s.e.State().Share(reg)
			}
		}
	}

	if err := pc.coordinator.SetDisplay(pc.displayWindows(s.e.State(), active)...); err != nil {
		return nil, fmt.Errorf("%s: %w", s.name, err)
	}
	pc.coordinator.Snapshot(0, "start")

	for i, op := range pc.part.Background {
		step := i + 1
		s.name = fmt.Sprintf("background step %d", step)
		if err := pc.lowerBackgroundOp(s, op, &active); err != nil {
			return nil, err
		}

		if err := pc.coordinator.SetDisplay(pc.displayWindows(s.e.State(), active)...); err != nil {
			return nil, fmt.Errorf("%s: %s: %w", s.name, op.Name(), err)
		}
		switch op.(type) {
		case timeline.Yield, timeline.SwitchChain:
			pc.coordinator.Snapshot(step, op.Name())
		}
	}

	if pc.part.Next != "" {
		s.e.JumpTo(instruction.Symbol(pc.part.Next))
	} else {
		end := pc.prefix + "_end"
		s.e.Emit(instruction.Absolute(m6502.Jmp, instruction.Symbol(end)).WithLabel(end))
	}

	return &routine{
		name:         pc.initLabel(),
		kind:         program.CallDestination,
		instructions: append([]instruction.Instruction{instruction.Mark(pc.initLabel())}, s.e.Instructions()...),
		cycles:       s.e.Cycles(),
		costUnknown:  s.costUnknown,
	}, nil
}

// lowerBackgroundOp lowers an op of the background stream and tracks the
// loads and the running chain.
func (pc *partCompiler) lowerBackgroundOp(s *stream, op timeline.Op, active **raster.Chain) error {
	var err error
	switch op := op.(type) {
	case timeline.Load:
		_, err = pc.coordinator.ScheduleChunk(op.Destination, op.Asset, op.Offset, op.Length, op.KeepLoading)

	case timeline.Yield:
		pc.coordinator.YieldPoint()
		s.e.LoaderCall()

	case timeline.WaitUntil:
		_, err = s.e.WaitFrames(op.Frame)

	case timeline.SwitchChain:
		chain, ok := pc.chains[op.Chain]
		if !ok {
			return fmt.Errorf("%s: %s: unknown chain '%s'", s.name, op.Name(), op.Chain)
		}
		s.e.SwitchChain(chain.Entry, chain.Trigger)
		*active = chain

	case timeline.Copy:
		if source, ok := pc.address(op.Source); ok {
			if err := pc.coordinator.CheckRead(source, op.Length); err != nil {
				return fmt.Errorf("%s: %s: %w", s.name, op.Name(), err)
			}
		}
		return pc.lowerOp(s, op)

	default:
		return pc.lowerOp(s, op)
	}
	if err != nil {
		return fmt.Errorf("%s: %s: %w", s.name, op.Name(), err)
	}
	return nil
}

// lowerOp lowers an op that is valid in every stream.
func (pc *partCompiler) lowerOp(s *stream, op timeline.Op) error {
	e := s.e
	var err error
	switch op := op.(type) {
	case timeline.SetBorderColor:
		e.SetBorderColor(op.Color)
	case timeline.SetBackgroundColor:
		e.SetBackgroundColor(op.Color)
	case timeline.SetBorderAndBackground:
		e.SetBorderAndBackground(op.Border, op.Background)
	case timeline.SetBank:
		e.SetBank(op.Bank, pc.part.BankMethod)
	case timeline.WriteD011:
		e.WriteD011(op.Value)
	case timeline.UpdateD011:
		e.UpdateD011(op.Set, op.Clear)
	case timeline.WriteD016:
		e.WriteD016(op.Value)
	case timeline.LoadD016:
		e.LoadD016From(op.ZeroPage)
	case timeline.SetVideoMode:
		_, err = e.SetVideoMode(op.Mode)
	case timeline.SetScreenAndBitmap:
		_, err = e.SetScreenAndBitmapBase(op.Screen, op.Bitmap)
	case timeline.SetScreenAndCharset:
		_, err = e.SetScreenAndCharsetBase(op.Screen, op.Charset)
	case timeline.Copy:
		_, err = e.CopyRegion(op.Source, op.Destination, op.Length)
	case timeline.Fill:
		_, err = e.FillRegion(op.Destination, op.Value, op.Length)
	case timeline.Delay:
		_, err = e.DelayExactCycles(op.Cycles)
	case timeline.Call:
		var cycles int
		cycles, err = pc.callCycles(s, op.Target, op.Cycles)
		if err == nil {
			e.CallSubroutine(op.Target, cycles)
		}
	case timeline.PlayMusic:
		if pc.part.Music == nil {
			return fmt.Errorf("%s: playing music without music", s.name)
		}
		e.CallSubroutine(instruction.Symbol(musicPlaySymbol), pc.part.Music.Cycles)
	case timeline.WriteByte:
		e.WriteByte(op.Address, op.Value)
	case timeline.Label:
		e.Label(op.Label)
	case timeline.Raw:
		e.RawBytes(op.Data, op.Cycles)
	case timeline.JumpTo:
		e.JumpTo(op.Target)
	default:
		return fmt.Errorf("%s: %s is not allowed here", s.name, op.Name())
	}
	if err != nil {
		return fmt.Errorf("%s: %s: %w", s.name, op.Name(), err)
	}
	return nil
}

// address returns the address of an operand if it is known before layout.
func (pc *partCompiler) address(op instruction.Operand) (uint16, bool) {
	if !op.IsSymbolic() {
		return op.Value, true
	}
	sym, ok := pc.scope.Lookup(op.Symbol)
	if !ok || !sym.Defined {
		return 0, false
	}
	return uint16(int(sym.Address) + op.Offset), true
}

// displayWindows returns the memory that the VIC-II displays while the
// chain is running. Handlers override the registers of the background.
func (pc *partCompiler) displayWindows(background *emit.State, active *raster.Chain) []c64.Window {
	if active == nil {
		return background.DisplayWindows()
	}
	var windows []c64.Window
	for _, exit := range pc.exits[active.Name] {
		for _, w := range exit.Overlay(background).DisplayWindows() {
			if !slices.Contains(windows, w) {
				windows = append(windows, w)
			}
		}
	}
	return windows
}
