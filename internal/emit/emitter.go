// Package emit lowers semantic hardware operations into 6502 instructions.
// The emitter tracks the values written to the video and bank registers and
// skips writes that would not change anything.
package emit

import (
	"fmt"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

// Options configures an emitter.
type Options struct {
	BankMethod   c64.BankMethod
	Vector       uint16 // interrupt vector that SwitchChain updates
	FrameCounter string // symbol of the 16 bit frame counter used by WaitFrames
	LoaderEntry  instruction.Operand
}

// Emitter appends the instructions of semantic operations to a stream.
type Emitter struct {
	opts   Options
	state  *State
	labels *Labels

	instructions []instruction.Instruction
	cycles       int

	pendingLabel string
	volatile     bool
}

// New returns an emitter that starts with the given state. A nil state
// starts with all values unknown.
func New(opts Options, state *State, labels *Labels) *Emitter {
	if state == nil {
		state = NewState()
	}
	if labels == nil {
		labels = NewLabels("l")
	}
	return &Emitter{
		opts:   opts,
		state:  state,
		labels: labels,
	}
}

// State returns the current Bank/ModeState.
func (e *Emitter) State() *State {
	return e.state
}

// Instructions returns all emitted instructions.
func (e *Emitter) Instructions() []instruction.Instruction {
	if e.pendingLabel != "" {
		e.flushLabel()
	}
	return e.instructions
}

// Cycles returns the worst case cycle cost of all emitted instructions.
func (e *Emitter) Cycles() int {
	return e.cycles
}

// Labels returns the label generator.
func (e *Emitter) Labels() *Labels {
	return e.labels
}

// Emit appends instructions and adds their base cycle cost. The state is not
// updated, callers forget the registers that the instructions change.
func (e *Emitter) Emit(ins ...instruction.Instruction) []instruction.Instruction {
	return e.emitCycles(instructionCycles(ins), ins...)
}

// EmitCycles appends instructions with an explicit cycle cost, used for
// sequences containing branches.
func (e *Emitter) EmitCycles(cycles int, ins ...instruction.Instruction) []instruction.Instruction {
	return e.emitCycles(cycles, ins...)
}

// Label attaches a label to the next emitted instruction. The following
// operation is volatile: it is always emitted and the value it writes is
// considered unknown, as it can be patched at runtime.
func (e *Emitter) Label(name string) []instruction.Instruction {
	var result []instruction.Instruction
	if e.pendingLabel != "" {
		result = e.flushLabel()
	}
	e.pendingLabel = name
	e.volatile = true
	e.state.ForgetCPU()
	return result
}

// JumpTo emits an absolute jump.
func (e *Emitter) JumpTo(target instruction.Operand) []instruction.Instruction {
	defer e.endOperation()
	return e.Emit(instruction.Absolute(m6502.Jmp, target))
}

// CallSubroutine emits a subroutine call. The cycles of the subroutine
// including its return are added to the stream cost. All register
// knowledge is lost after the call.
func (e *Emitter) CallSubroutine(target instruction.Operand, cycles int) []instruction.Instruction {
	defer e.endOperation()
	ins := instruction.Absolute(m6502.Jsr, target)
	result := e.emitCycles(ins.Cycles()+cycles, ins)
	e.state.ForgetAll()
	return result
}

// LoaderCall emits a call of the loader entry point that transfers the next
// load group.
func (e *Emitter) LoaderCall() []instruction.Instruction {
	return e.CallSubroutine(e.opts.LoaderEntry, 0)
}

// RawBytes emits data bytes that are executed as code with the given cycle
// cost. All register knowledge is lost.
func (e *Emitter) RawBytes(data []byte, cycles int) []instruction.Instruction {
	defer e.endOperation()
	if len(data) == 0 {
		return nil
	}
	result := e.emitCycles(cycles, instruction.Bytes(data...))
	e.state.ForgetAll()
	return result
}

// WriteByte stores a value at an address. Writes to tracked registers are
// skipped when the register already holds the value.
func (e *Emitter) WriteByte(address instruction.Operand, value byte) []instruction.Instruction {
	defer e.endOperation()
	if !address.IsSymbolic() && address.Select == instruction.Full && IsTracked(address.Value) {
		result := e.writeRegister(address.Value, value)
		if address.Value == c64.CIA2PortA || address.Value == c64.CIA2DDRA {
			e.state.bank = cpuRegister{}
		}
		return result
	}

	var result []instruction.Instruction
	result = append(result, e.loadA(value)...)
	result = append(result, e.Emit(instruction.Absolute(m6502.Sta, address))...)
	return result
}

// SetBorderColor sets the border color.
func (e *Emitter) SetBorderColor(color c64.Color) []instruction.Instruction {
	defer e.endOperation()
	return e.writeRegister(c64.BorderColor, byte(color))
}

// SetBackgroundColor sets the background color.
func (e *Emitter) SetBackgroundColor(color c64.Color) []instruction.Instruction {
	defer e.endOperation()
	return e.writeRegister(c64.ScreenColor, byte(color))
}

// SetBorderAndBackground sets the border and background colors.
func (e *Emitter) SetBorderAndBackground(border, background c64.Color) []instruction.Instruction {
	defer e.endOperation()
	result := e.writeRegister(c64.BorderColor, byte(border))
	return append(result, e.writeRegister(c64.ScreenColor, byte(background))...)
}

// SetBank selects the VIC bank 0-3 using the given method.
func (e *Emitter) SetBank(bank byte, method c64.BankMethod) []instruction.Instruction {
	defer e.endOperation()
	return e.setBank(bank, method)
}

func (e *Emitter) setBank(bank byte, method c64.BankMethod) []instruction.Instruction {
	volatile := e.volatile
	register, value := c64.BankRegister(bank, method)
	result := e.writeRegister(register, value)
	if !volatile {
		e.state.setBank(bank)
	}
	return result
}

// WriteD011 writes control register 1.
func (e *Emitter) WriteD011(value byte) []instruction.Instruction {
	defer e.endOperation()
	return e.writeRegister(c64.VICControl1, value)
}

// UpdateD011 sets and clears bits of control register 1.
func (e *Emitter) UpdateD011(set, clear byte) []instruction.Instruction {
	defer e.endOperation()
	return e.updateRegister(c64.VICControl1, set, clear)
}

// WriteD016 writes control register 2.
func (e *Emitter) WriteD016(value byte) []instruction.Instruction {
	defer e.endOperation()
	return e.writeRegister(c64.VICControl2, value)
}

// LoadD016From copies a zero page value to control register 2, used for
// scroll values computed at runtime.
func (e *Emitter) LoadD016From(zeroPage byte) []instruction.Instruction {
	defer e.endOperation()
	result := e.Emit(
		instruction.ZeroPage(m6502.Lda, instruction.Literal(uint16(zeroPage))),
		instruction.Absolute(m6502.Sta, instruction.Literal(c64.VICControl2)),
	)
	e.state.a = cpuRegister{}
	e.state.Forget(c64.VICControl2)
	return result
}

// SetVideoMode switches the video mode and enables the display.
func (e *Emitter) SetVideoMode(mode VideoMode) ([]instruction.Instruction, error) {
	defer e.endOperation()
	def, ok := videoModes[mode]
	if !ok {
		return nil, fmt.Errorf("unsupported video mode %d", mode)
	}

	const mask1 = c64.Control1ECM | c64.Control1Bitmap
	result := e.updateRegister(c64.VICControl1, def.control1|c64.Control1Display, mask1&^def.control1)
	result = append(result, e.updateRegister(c64.VICControl2, def.control2, c64.Control2Multicolor&^def.control2)...)
	return result, nil
}

// SetScreenAndBitmapBase points the VIC-II to a screen and a bitmap and
// selects the bank that contains them.
func (e *Emitter) SetScreenAndBitmapBase(screen, bitmap uint16) ([]instruction.Instruction, error) {
	defer e.endOperation()
	value, bank, err := c64.ScreenAndBitmap(screen, bitmap)
	if err != nil {
		return nil, fmt.Errorf("setting screen and bitmap base: %w", err)
	}
	return e.setBankAndMemory(bank, value), nil
}

// SetScreenAndCharsetBase points the VIC-II to a screen and a character set
// and selects the bank that contains them.
func (e *Emitter) SetScreenAndCharsetBase(screen, charset uint16) ([]instruction.Instruction, error) {
	defer e.endOperation()
	value, bank, err := c64.ScreenAndCharset(screen, charset)
	if err != nil {
		return nil, fmt.Errorf("setting screen and charset base: %w", err)
	}
	return e.setBankAndMemory(bank, value), nil
}

func (e *Emitter) setBankAndMemory(bank, memory byte) []instruction.Instruction {
	result := e.setBank(bank, e.opts.BankMethod)
	return append(result, e.writeRegister(c64.VICMemory, memory)...)
}

// WaitFrames waits until the frame counter reached the given frame.
func (e *Emitter) WaitFrames(frame uint16) ([]instruction.Instruction, error) {
	defer e.endOperation()
	if e.opts.FrameCounter == "" {
		return nil, fmt.Errorf("waiting for frame %d: no frame counter configured", frame)
	}

	// The interrupt increments the counter between the two reads, so the
	// high byte is compared first and a carry into it only delays the exit.
	counter := instruction.Symbol(e.opts.FrameCounter)
	loop := e.labels.Next("wait")
	done := e.labels.Next("waited")
	result := e.Emit(
		instruction.Absolute(m6502.Lda, counter.Plus(1)).WithLabel(loop),
		instruction.Immediate(m6502.Cmp, instruction.Literal(frame>>8)),
		instruction.Relative(m6502.Bcc, loop),
		instruction.Relative(m6502.Bne, done),
		instruction.Absolute(m6502.Lda, counter),
		instruction.Immediate(m6502.Cmp, instruction.Literal(uint16(frame&0xff))),
		instruction.Relative(m6502.Bcc, loop),
		instruction.Mark(done),
	)
	e.state.ForgetCPU()
	return result, nil
}

// SwitchChain points the interrupt vector to the entry handler of another
// chain and arms its trigger line.
func (e *Emitter) SwitchChain(entry string, trigger uint16) []instruction.Instruction {
	defer e.endOperation()
	vector := instruction.Literal(e.opts.Vector)
	result := e.Emit(
		instruction.Implied(m6502.Sei),
		instruction.Immediate(m6502.Lda, instruction.Symbol(entry).Low()),
		instruction.Absolute(m6502.Sta, vector),
		instruction.Immediate(m6502.Lda, instruction.Symbol(entry).High()),
		instruction.Absolute(m6502.Sta, vector.Plus(1)),
		instruction.Immediate(m6502.Lda, instruction.Literal(trigger&0xff)),
		instruction.Absolute(m6502.Sta, instruction.Literal(c64.VICRaster)),
	)
	e.state.a = cpuRegister{value: byte(trigger), known: true}

	var set, clear byte
	if trigger > 0xff {
		set = c64.Control1RasterBit8
	} else {
		clear = c64.Control1RasterBit8
	}
	result = append(result, e.updateRegister(c64.VICControl1, set, clear)...)
	return append(result, e.Emit(instruction.Implied(m6502.Cli))...)
}

// writeRegister writes a full register value, skipping the write when the
// register is known to hold the value already.
func (e *Emitter) writeRegister(register uint16, value byte) []instruction.Instruction {
	if !e.volatile {
		if current, ok := e.state.Value(register); ok && current == value {
			return nil
		}
	}

	volatile := e.volatile
	result := e.loadA(value)
	result = append(result, e.Emit(instruction.Absolute(m6502.Sta, instruction.Literal(register)))...)
	if volatile {
		e.state.Forget(register)
	} else {
		e.state.Set(register, value)
	}
	return result
}

// updateRegister sets and clears register bits. A fully known register is
// written with an immediate value, otherwise the register is read, masked
// and written back.
func (e *Emitter) updateRegister(register uint16, set, clear byte) []instruction.Instruction {
	mask := set | clear
	if !e.volatile && e.state.KnownBits(register, mask, set) {
		return nil
	}
	if current, ok := e.state.Value(register); ok {
		return e.writeRegister(register, current&^clear|set)
	}

	volatile := e.volatile
	reg := instruction.Literal(register)
	result := e.Emit(instruction.Absolute(m6502.Lda, reg))
	if clear != 0 {
		result = append(result, e.Emit(instruction.Immediate(m6502.And, instruction.Literal(uint16(^clear))))...)
	}
	if set != 0 {
		result = append(result, e.Emit(instruction.Immediate(m6502.Ora, instruction.Literal(uint16(set))))...)
	}
	result = append(result, e.Emit(instruction.Absolute(m6502.Sta, reg))...)
	e.state.a = cpuRegister{}
	e.volatile = false

	if volatile {
		e.state.Forget(register)
		return result
	}
	if register == c64.VICControl1 {
		// reading returns bit 8 of the current raster line, not the compare value
		e.state.ForgetBits(register, c64.Control1RasterBit8)
	}
	e.state.SetBits(register, set, mask)
	return result
}

// loadA loads an immediate value into the accumulator unless it is known to
// hold it already.
func (e *Emitter) loadA(value byte) []instruction.Instruction {
	if !e.volatile {
		if current, ok := e.state.A(); ok && current == value {
			return nil
		}
	}
	result := e.Emit(instruction.Immediate(m6502.Lda, instruction.Literal(uint16(value))))
	if e.volatile {
		e.state.a = cpuRegister{}
	} else {
		e.state.a = cpuRegister{value: value, known: true}
	}
	e.volatile = false
	return result
}

func (e *Emitter) emitCycles(cycles int, ins ...instruction.Instruction) []instruction.Instruction {
	if len(ins) == 0 {
		return nil
	}
	if e.pendingLabel != "" {
		if ins[0].Label() != "" {
			e.flushLabel()
		} else {
			ins[0] = ins[0].WithLabel(e.pendingLabel)
			e.pendingLabel = ""
		}
	}
	e.instructions = append(e.instructions, ins...)
	e.cycles += cycles
	return ins
}

// endOperation resets the volatile flag after an operation. A pending label
// of an operation that emitted nothing is kept as a marker.
func (e *Emitter) endOperation() {
	e.volatile = false
	if e.pendingLabel != "" {
		e.flushLabel()
	}
}

func (e *Emitter) flushLabel() []instruction.Instruction {
	label := e.pendingLabel
	e.pendingLabel = ""
	ins := instruction.Mark(label)
	e.instructions = append(e.instructions, ins)
	return []instruction.Instruction{ins}
}

func instructionCycles(ins []instruction.Instruction) int {
	cycles := 0
	for _, i := range ins {
		cycles += i.Cycles()
	}
	return cycles
}
