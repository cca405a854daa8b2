package emit

import (
	"slices"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
	"github.com/retroenv/retrogolib/set"
)

// TrackedRegisters lists the hardware registers whose written values are
// tracked to skip redundant writes.
var TrackedRegisters = []uint16{
	c64.ProcessorPort,
	c64.VICControl1,
	c64.VICControl2,
	c64.VICMemory,
	c64.BorderColor,
	c64.ScreenColor,
	c64.CIA2PortA,
	c64.CIA2DDRA,
}

// bits is the tracked value of a register, known holds a mask of the bits
// whose value is known.
type bits struct {
	value byte
	known byte
}

type cpuRegister struct {
	value byte
	known bool
}

// State is the Bank/ModeState: the known values of the tracked hardware
// registers and of the CPU registers A, X and Y.
type State struct {
	registers map[uint16]bits
	a, x, y   cpuRegister
	bank      cpuRegister
	shared    set.Set[uint16] // written by concurrently running code
}

// NewState returns a state with all values unknown.
func NewState() *State {
	return &State{
		registers: make(map[uint16]bits, len(TrackedRegisters)),
		shared:    set.New[uint16](),
	}
}

// Clone returns an independent copy of the state.
func (s *State) Clone() *State {
	c := *s
	c.registers = make(map[uint16]bits, len(s.registers))
	for reg, b := range s.registers {
		c.registers[reg] = b
	}
	c.shared = set.New[uint16]()
	for _, reg := range TrackedRegisters {
		if s.shared.Contains(reg) {
			c.shared.Add(reg)
		}
	}
	return &c
}

// IsTracked returns whether writes to the address are tracked.
func IsTracked(address uint16) bool {
	for _, reg := range TrackedRegisters {
		if reg == address {
			return true
		}
	}
	return false
}

// Value returns the value of a register if all its bits are known.
func (s *State) Value(register uint16) (byte, bool) {
	b := s.registers[register]
	return b.value, b.known == 0xff
}

// Bits returns the register value and the mask of known bits.
func (s *State) Bits(register uint16) (byte, byte) {
	b := s.registers[register]
	return b.value & b.known, b.known
}

// KnownBits returns whether all bits of the mask are known to have the
// given value.
func (s *State) KnownBits(register uint16, mask, value byte) bool {
	b := s.registers[register]
	return b.known&mask == mask && b.value&mask == value&mask
}

// Set records a fully known register value.
func (s *State) Set(register uint16, value byte) {
	if s.shared.Contains(register) {
		return
	}
	s.registers[register] = bits{value: value, known: 0xff}
}

// SetBits records the value of the bits in mask.
func (s *State) SetBits(register uint16, value, mask byte) {
	if s.shared.Contains(register) {
		return
	}
	b := s.registers[register]
	b.value = b.value&^mask | value&mask
	b.known |= mask
	s.registers[register] = b
}

// ForgetBits marks the bits in mask as unknown.
func (s *State) ForgetBits(register uint16, mask byte) {
	b := s.registers[register]
	b.known &^= mask
	s.registers[register] = b
}

// Forget marks a register as unknown.
func (s *State) Forget(register uint16) {
	delete(s.registers, register)
	if register == c64.CIA2PortA || register == c64.CIA2DDRA {
		s.bank = cpuRegister{}
	}
}

// ForgetAll marks all hardware and CPU registers as unknown.
func (s *State) ForgetAll() {
	clear(s.registers)
	s.bank = cpuRegister{}
	s.ForgetCPU()
}

// ForgetCPU marks the CPU registers as unknown.
func (s *State) ForgetCPU() {
	s.a = cpuRegister{}
	s.x = cpuRegister{}
	s.y = cpuRegister{}
}

// A returns the accumulator value if it is known.
func (s *State) A() (byte, bool) {
	return s.a.value, s.a.known
}

// X returns the X register value if it is known.
func (s *State) X() (byte, bool) {
	return s.x.value, s.x.known
}

// Bank returns the selected VIC bank if it is known.
func (s *State) Bank() (byte, bool) {
	return s.bank.value, s.bank.known
}

func (s *State) setBank(bank byte) {
	if s.shared.Contains(c64.CIA2PortA) || s.shared.Contains(c64.CIA2DDRA) {
		return
	}
	s.bank = cpuRegister{value: bank & 3, known: true}
}

// Share marks a register as written by code that runs concurrently, like
// interrupt handlers. Its value stays unknown from now on.
func (s *State) Share(register uint16) {
	s.shared.Add(register)
	s.Forget(register)
}

// Overlay returns a copy of the state whose unknown register bits are taken
// from base.
func (s *State) Overlay(base *State) *State {
	c := s.Clone()
	for _, reg := range TrackedRegisters {
		b := c.registers[reg]
		o := base.registers[reg]
		c.registers[reg] = bits{
			value: b.value&b.known | o.value&o.known&^b.known,
			known: b.known | o.known,
		}
	}
	if !c.bank.known {
		c.bank = base.bank
	}
	return c
}

// WrittenRegisters returns the tracked registers that the instructions
// write to. Subroutine calls and raw bytes can write to any register.
func WrittenRegisters(ins []instruction.Instruction) []uint16 {
	var written []uint16
	for _, i := range ins {
		switch {
		case i.Class() == instruction.Call, i.Class() == instruction.RawBytes:
			return slices.Clone(TrackedRegisters)
		case !writesMemory(i):
			continue
		}
		op := i.Operand()
		if op.IsSymbolic() || !IsTracked(op.Value) || slices.Contains(written, op.Value) {
			continue
		}
		written = append(written, op.Value)
	}
	return written
}

func writesMemory(i instruction.Instruction) bool {
	switch i.Addressing() {
	case m6502.ZeroPageAddressing, m6502.AbsoluteAddressing:
	default:
		return false
	}
	if i.Class() == instruction.Store {
		return true
	}
	return i.Is(m6502.Inc) || i.Is(m6502.Dec) || i.Is(m6502.Asl) || i.Is(m6502.Lsr)
}

// DisplayWindows returns the memory ranges read by the VIC-II. Unknown
// register bits are assumed to hold the values set up by the KERNAL.
func (s *State) DisplayWindows() []c64.Window {
	bank, ok := s.Bank()
	if !ok {
		bank = c64.DefaultBank
	}
	control1 := s.valueOr(c64.VICControl1, c64.DefaultControl1)
	control2 := s.valueOr(c64.VICControl2, c64.DefaultControl2)
	memory := s.valueOr(c64.VICMemory, c64.DefaultMemory)
	return c64.DisplayWindows(bank, control1, control2, memory)
}

func (s *State) valueOr(register uint16, defaultValue byte) byte {
	b := s.registers[register]
	return b.value&b.known | defaultValue&^b.known
}

// VideoMode returns the video mode if the mode bits are known.
func (s *State) VideoMode() (VideoMode, bool) {
	c1, k1 := s.Bits(c64.VICControl1)
	c2, k2 := s.Bits(c64.VICControl2)
	const mask1 = c64.Control1ECM | c64.Control1Bitmap
	if k1&mask1 != mask1 || k2&c64.Control2Multicolor == 0 {
		return 0, false
	}
	for mode, def := range videoModes {
		if c1&mask1 == def.control1 && c2&c64.Control2Multicolor == def.control2 {
			return mode, true
		}
	}
	return 0, false
}
