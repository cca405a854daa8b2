package raster

import (
	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

// stabilizer timing
const (
	stabilizerSlide = 11 // nops until the second interrupt fires
	stabilizerLoop  = 8  // delay loop iterations until the end of the line
	correctionCost  = 4 + 4 + 3
	acknowledgeCost = 6 // asl $d019 of the second interrupt
)

func (s *Scheduler) vectorAddress() uint16 {
	if s.opts.Vector == KernalVector {
		return c64.KernalIRQVector
	}
	return c64.HardwareIRQVector
}

// lower generates the handler code: register save, acknowledge, optional
// stabilizer, body, interval callback, frame counter, re-arm of the
// successor and exit. A handler that hands off restores the registers and
// jumps to its successor instead.
func (s *Scheduler) lower(cfg, successor *HandlerConfig, entry, handoff bool) Handler {
	label := HandlerLabel(s.opts.Prefix, cfg.Slot)
	vector := s.vectorAddress()
	hardware := s.opts.Vector == HardwareVector
	lines := cfg.tickLines(s.opts.Timing.Lines)

	head := emit.New(emit.Options{}, nil, s.opts.Labels)
	head.Label(label)
	if hardware {
		head.Emit(
			instruction.Absolute(m6502.Sta, instruction.Symbol(label+"_ra").Plus(1)),
			instruction.Absolute(m6502.Stx, instruction.Symbol(label+"_rx").Plus(1)),
			instruction.Absolute(m6502.Sty, instruction.Symbol(label+"_ry").Plus(1)),
		)
	}
	if cfg.Stabilize {
		s.stabilizer(head, label, vector)
	} else {
		head.Emit(instruction.Absolute(m6502.Asl, instruction.Literal(c64.VICIRQStatus)))
	}

	exit := cfg.Exit
	if exit == nil {
		exit = emit.NewState()
	}
	tail := emit.New(emit.Options{}, exit.Clone(), s.opts.Labels)
	if cfg.Interval != nil {
		s.interval(tail, label, cfg.Interval)
	}

	reArm := cfg.reArmLine(s.opts.Timing.Lines, successor.Trigger)
	next := instruction.Symbol(HandlerLabel(s.opts.Prefix, successor.Slot))
	switchVector := successor.Slot != cfg.Slot || cfg.Stabilize
	var tables []instruction.Instruction
	switch {
	case handoff:
		if entry && s.opts.FrameCounter != "" {
			s.frameCounter(tail)
		}

	case len(lines) > 1:
		tables = s.ticks(tail, label, lines, successor.Trigger, entry, switchVector, next)

	default:
		if entry && s.opts.FrameCounter != "" {
			s.frameCounter(tail)
		}
		tail.WriteByte(instruction.Literal(c64.VICRaster), byte(reArm))
		if reArm > 0xff {
			tail.UpdateD011(c64.Control1RasterBit8, 0)
		} else {
			tail.UpdateD011(0, c64.Control1RasterBit8)
		}
		if switchVector {
			tail.Emit(s.vectorWrite(next)...)
		}
	}

	if hardware {
		tail.Emit(
			instruction.Immediate(m6502.Lda, instruction.Literal(0)).WithLabel(label+"_ra"),
			instruction.Immediate(m6502.Ldx, instruction.Literal(0)).WithLabel(label+"_rx"),
			instruction.Immediate(m6502.Ldy, instruction.Literal(0)).WithLabel(label+"_ry"),
		)
	}
	switch {
	case handoff:
		tail.Emit(instruction.Absolute(m6502.Jmp, next))
	case hardware:
		tail.Emit(instruction.Implied(m6502.Rti))
	default:
		tail.EmitCycles(3+KernalExitCycles, instruction.Absolute(m6502.Jmp, instruction.Literal(c64.KernalIRQExit)))
	}
	if cfg.Interval != nil {
		tail.Emit(instruction.Bytes(cfg.Interval.Frames).WithLabel(label + "_interval"))
	}
	tail.Emit(tables...)

	var cost int
	if cfg.Stabilize {
		// the body starts at a fixed cycle two lines after the trigger
		cost = s.opts.Timing.AvailableCycles(cfg.Trigger, cfg.Trigger+2) + correctionCost + acknowledgeCost
	} else {
		cost = InterruptLatency + head.Cycles()
		if !hardware {
			cost += KernalEntryCycles
		}
	}
	cost += cfg.BodyCycles + tail.Cycles()

	ins := make([]instruction.Instruction, 0, len(head.Instructions())+len(cfg.Body)+len(tail.Instructions()))
	ins = append(ins, head.Instructions()...)
	ins = append(ins, cfg.Body...)
	ins = append(ins, tail.Instructions()...)

	if len(lines) > 1 {
		reArm = lines[1]
	}
	return Handler{
		Slot:         cfg.Slot,
		Label:        label,
		Trigger:      cfg.Trigger,
		Next:         successor.Slot,
		ReArm:        reArm,
		Lines:        lines,
		Handoff:      handoff,
		Cost:         cost,
		Instructions: ins,
	}
}

func (s *Scheduler) vectorWrite(target instruction.Operand) []instruction.Instruction {
	vector := s.vectorAddress()
	return []instruction.Instruction{
		instruction.Immediate(m6502.Lda, target.Low()),
		instruction.Absolute(m6502.Sta, instruction.Literal(vector)),
		instruction.Immediate(m6502.Lda, target.High()),
		instruction.Absolute(m6502.Sta, instruction.Literal(vector+1)),
	}
}

// ticks emits the re-arm of a handler that fires several times in a row.
// A self modified index selects the next line from a table, the last tick
// arms the successor and counts the frame. It returns the line tables that
// have to be placed after the handler code.
func (s *Scheduler) ticks(e *emit.Emitter, label string, lines []uint16, successorTrigger uint16,
	entry, switchVector bool, next instruction.Operand) []instruction.Instruction {

	tick := label + "_tick"
	low := instruction.Symbol(label + "_lines")
	high := instruction.Symbol(label + "_bit8")
	keep := s.opts.Labels.Next("tick")

	lowBytes := make([]byte, len(lines))
	highBytes := make([]byte, len(lines))
	for i := range lines {
		line := successorTrigger
		if i+1 < len(lines) {
			line = lines[i+1]
		}
		lowBytes[i] = byte(line)
		if line > 0xff {
			highBytes[i] = c64.Control1RasterBit8
		}
	}

	arm := []instruction.Instruction{
		instruction.Immediate(m6502.Ldx, instruction.Literal(0)).WithLabel(tick),
		instruction.AbsoluteX(m6502.Lda, low),
		instruction.Absolute(m6502.Sta, instruction.Literal(c64.VICRaster)),
		instruction.Absolute(m6502.Lda, instruction.Literal(c64.VICControl1)),
		instruction.Immediate(m6502.And, instruction.Literal(0xff&^uint16(c64.Control1RasterBit8))),
		instruction.AbsoluteX(m6502.Ora, high),
		instruction.Absolute(m6502.Sta, instruction.Literal(c64.VICControl1)),
		instruction.Implied(m6502.Inx),
		instruction.Immediate(m6502.Cpx, instruction.Literal(uint16(len(lines)))),
		instruction.Relative(m6502.Bcc, keep),
		instruction.Immediate(m6502.Ldx, instruction.Literal(0)),
	}
	// both table reads may cross a page
	e.EmitCycles(instructionCycles(arm)+2, arm...)
	if switchVector {
		e.Emit(s.vectorWrite(next)...)
	}
	if entry && s.opts.FrameCounter != "" {
		s.frameCounter(e)
	}
	e.Emit(
		instruction.Mark(keep),
		instruction.Absolute(m6502.Stx, instruction.Symbol(tick).Plus(1)),
	)
	e.State().ForgetAll()

	return []instruction.Instruction{
		instruction.Bytes(lowBytes...).WithLabel(low.Symbol),
		instruction.Bytes(highBytes...).WithLabel(high.Symbol),
	}
}

func instructionCycles(ins []instruction.Instruction) int {
	cycles := 0
	for _, i := range ins {
		cycles += i.Cycles()
	}
	return cycles
}

// stabilizer emits the double interrupt sequence. The first interrupt arms
// a second one on the next line and waits in a nop slide, so the second one
// fires with at most one cycle of jitter that the final compare removes.
func (s *Scheduler) stabilizer(e *emit.Emitter, label string, vector uint16) {
	stable := instruction.Symbol(label + "_stable")
	loop := label + "_wait"
	sync := label + "_sync"

	e.Emit(
		instruction.Immediate(m6502.Lda, stable.Low()),
		instruction.Absolute(m6502.Sta, instruction.Literal(vector)),
		instruction.Immediate(m6502.Lda, stable.High()),
		instruction.Absolute(m6502.Sta, instruction.Literal(vector+1)),
		instruction.Absolute(m6502.Inc, instruction.Literal(c64.VICRaster)),
		instruction.Absolute(m6502.Asl, instruction.Literal(c64.VICIRQStatus)),
		instruction.Implied(m6502.Tsx),
		instruction.Implied(m6502.Cli),
	)
	for range stabilizerSlide {
		e.Emit(instruction.Implied(m6502.Nop))
	}
	e.Emit(
		instruction.Implied(m6502.Txs).WithLabel(label+"_stable"),
		instruction.Immediate(m6502.Ldx, instruction.Literal(stabilizerLoop)),
	)
	e.EmitCycles(5*stabilizerLoop-1,
		instruction.Implied(m6502.Dex).WithLabel(loop),
		instruction.Relative(m6502.Bne, loop).AsTimed(),
	)
	e.Emit(
		instruction.ZeroPage(m6502.Bit, instruction.Literal(0)),
		instruction.Absolute(m6502.Lda, instruction.Literal(c64.VICRaster)),
		instruction.Absolute(m6502.Cmp, instruction.Literal(c64.VICRaster)),
	)
	e.EmitCycles(3,
		instruction.Relative(m6502.Beq, sync).AsTimed(),
		instruction.Mark(sync),
	)
	// the second interrupt is still latched
	e.Emit(instruction.Absolute(m6502.Asl, instruction.Literal(c64.VICIRQStatus)))
}

// interval emits a countdown that calls the subroutine every n frames.
func (s *Scheduler) interval(e *emit.Emitter, label string, interval *Interval) {
	counter := instruction.Symbol(label + "_interval")
	skip := s.opts.Labels.Next("skip")
	e.EmitCycles(6+2+2+4+6+interval.Cycles,
		instruction.Absolute(m6502.Dec, counter),
		instruction.Relative(m6502.Bne, skip),
		instruction.Immediate(m6502.Lda, instruction.Literal(uint16(interval.Frames))),
		instruction.Absolute(m6502.Sta, counter),
		instruction.Absolute(m6502.Jsr, interval.Target),
		instruction.Mark(skip),
	)
	e.State().ForgetAll()
}

// frameCounter increments the 16 bit frame counter.
func (s *Scheduler) frameCounter(e *emit.Emitter) {
	counter := instruction.Symbol(s.opts.FrameCounter)
	skip := s.opts.Labels.Next("skip")
	e.EmitCycles(6+2+6,
		instruction.Absolute(m6502.Inc, counter),
		instruction.Relative(m6502.Bne, skip),
		instruction.Absolute(m6502.Inc, counter.Plus(1)),
		instruction.Mark(skip),
	)
}
