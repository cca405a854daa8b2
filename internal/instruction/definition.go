package instruction

import (
	"fmt"

	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

// Class groups instructions by their effect on the program flow and memory.
type Class uint8

// Instruction classes.
const (
	Load Class = iota + 1
	Store
	Arithmetic // read-modify-write, compare and logic operations
	Branch
	Jump
	Call
	Return
	Implied
	RawBytes
)

func (c Class) String() string {
	switch c {
	case Load:
		return "load"
	case Store:
		return "store"
	case Arithmetic:
		return "arithmetic"
	case Branch:
		return "branch"
	case Jump:
		return "jump"
	case Call:
		return "call"
	case Return:
		return "return"
	case Implied:
		return "implied"
	case RawBytes:
		return "raw"
	default:
		return "unknown"
	}
}

// Definition describes the encoding and timing of an instruction in one
// addressing mode.
type Definition struct {
	Opcode        byte
	Cycles        int  // base cycles, branches not taken
	PageSensitive bool // one extra cycle when an indexed access crosses a page
	Class         Class
}

type definitionKey struct {
	ins  *m6502.Instruction
	mode m6502.AddressingMode
}

const (
	imp  = m6502.ImpliedAddressing
	acc  = m6502.AccumulatorAddressing
	imm  = m6502.ImmediateAddressing
	zp   = m6502.ZeroPageAddressing
	zpx  = m6502.ZeroPageXAddressing
	zpy  = m6502.ZeroPageYAddressing
	abs  = m6502.AbsoluteAddressing
	absx = m6502.AbsoluteXAddressing
	absy = m6502.AbsoluteYAddressing
	ind  = m6502.IndirectAddressing
	indx = m6502.IndirectXAddressing
	indy = m6502.IndirectYAddressing
	rel  = m6502.RelativeAddressing
)

type definitionEntry struct {
	ins  *m6502.Instruction
	mode m6502.AddressingMode
	def  Definition
}

// definitionTable lists the official opcodes used by the emitter.
var definitionTable = []definitionEntry{
	{m6502.Lda, imm, Definition{0xA9, 2, false, Load}},
	{m6502.Lda, zp, Definition{0xA5, 3, false, Load}},
	{m6502.Lda, zpx, Definition{0xB5, 4, false, Load}},
	{m6502.Lda, abs, Definition{0xAD, 4, false, Load}},
	{m6502.Lda, absx, Definition{0xBD, 4, true, Load}},
	{m6502.Lda, absy, Definition{0xB9, 4, true, Load}},
	{m6502.Lda, indx, Definition{0xA1, 6, false, Load}},
	{m6502.Lda, indy, Definition{0xB1, 5, true, Load}},
	{m6502.Ldx, imm, Definition{0xA2, 2, false, Load}},
	{m6502.Ldx, zp, Definition{0xA6, 3, false, Load}},
	{m6502.Ldx, zpy, Definition{0xB6, 4, false, Load}},
	{m6502.Ldx, abs, Definition{0xAE, 4, false, Load}},
	{m6502.Ldx, absy, Definition{0xBE, 4, true, Load}},
	{m6502.Ldy, imm, Definition{0xA0, 2, false, Load}},
	{m6502.Ldy, zp, Definition{0xA4, 3, false, Load}},
	{m6502.Ldy, zpx, Definition{0xB4, 4, false, Load}},
	{m6502.Ldy, abs, Definition{0xAC, 4, false, Load}},
	{m6502.Ldy, absx, Definition{0xBC, 4, true, Load}},

	{m6502.Sta, zp, Definition{0x85, 3, false, Store}},
	{m6502.Sta, zpx, Definition{0x95, 4, false, Store}},
	{m6502.Sta, abs, Definition{0x8D, 4, false, Store}},
	{m6502.Sta, absx, Definition{0x9D, 5, false, Store}},
	{m6502.Sta, absy, Definition{0x99, 5, false, Store}},
	{m6502.Sta, indx, Definition{0x81, 6, false, Store}},
	{m6502.Sta, indy, Definition{0x91, 6, false, Store}},
	{m6502.Stx, zp, Definition{0x86, 3, false, Store}},
	{m6502.Stx, zpy, Definition{0x96, 4, false, Store}},
	{m6502.Stx, abs, Definition{0x8E, 4, false, Store}},
	{m6502.Sty, zp, Definition{0x84, 3, false, Store}},
	{m6502.Sty, zpx, Definition{0x94, 4, false, Store}},
	{m6502.Sty, abs, Definition{0x8C, 4, false, Store}},

	{m6502.Inc, zp, Definition{0xE6, 5, false, Arithmetic}},
	{m6502.Inc, zpx, Definition{0xF6, 6, false, Arithmetic}},
	{m6502.Inc, abs, Definition{0xEE, 6, false, Arithmetic}},
	{m6502.Inc, absx, Definition{0xFE, 7, false, Arithmetic}},
	{m6502.Dec, zp, Definition{0xC6, 5, false, Arithmetic}},
	{m6502.Dec, zpx, Definition{0xD6, 6, false, Arithmetic}},
	{m6502.Dec, abs, Definition{0xCE, 6, false, Arithmetic}},
	{m6502.Dec, absx, Definition{0xDE, 7, false, Arithmetic}},
	{m6502.Asl, acc, Definition{0x0A, 2, false, Arithmetic}},
	{m6502.Asl, zp, Definition{0x06, 5, false, Arithmetic}},
	{m6502.Asl, abs, Definition{0x0E, 6, false, Arithmetic}},
	{m6502.Lsr, acc, Definition{0x4A, 2, false, Arithmetic}},
	{m6502.Lsr, zp, Definition{0x46, 5, false, Arithmetic}},
	{m6502.Lsr, abs, Definition{0x4E, 6, false, Arithmetic}},
	{m6502.And, imm, Definition{0x29, 2, false, Arithmetic}},
	{m6502.And, zp, Definition{0x25, 3, false, Arithmetic}},
	{m6502.And, abs, Definition{0x2D, 4, false, Arithmetic}},
	{m6502.Ora, imm, Definition{0x09, 2, false, Arithmetic}},
	{m6502.Ora, zp, Definition{0x05, 3, false, Arithmetic}},
	{m6502.Ora, abs, Definition{0x0D, 4, false, Arithmetic}},
	{m6502.Eor, imm, Definition{0x49, 2, false, Arithmetic}},
	{m6502.Adc, imm, Definition{0x69, 2, false, Arithmetic}},
	{m6502.Sbc, imm, Definition{0xE9, 2, false, Arithmetic}},
	{m6502.Cmp, imm, Definition{0xC9, 2, false, Arithmetic}},
	{m6502.Cmp, zp, Definition{0xC5, 3, false, Arithmetic}},
	{m6502.Cmp, abs, Definition{0xCD, 4, false, Arithmetic}},
	{m6502.Cmp, absx, Definition{0xDD, 4, true, Arithmetic}},
	{m6502.Cpx, imm, Definition{0xE0, 2, false, Arithmetic}},
	{m6502.Cpx, zp, Definition{0xE4, 3, false, Arithmetic}},
	{m6502.Cpx, abs, Definition{0xEC, 4, false, Arithmetic}},
	{m6502.Cpy, imm, Definition{0xC0, 2, false, Arithmetic}},
	{m6502.Cpy, zp, Definition{0xC4, 3, false, Arithmetic}},
	{m6502.Cpy, abs, Definition{0xCC, 4, false, Arithmetic}},
	{m6502.Bit, zp, Definition{0x24, 3, false, Arithmetic}},
	{m6502.Bit, abs, Definition{0x2C, 4, false, Arithmetic}},

	{m6502.Inx, imp, Definition{0xE8, 2, false, Implied}},
	{m6502.Iny, imp, Definition{0xC8, 2, false, Implied}},
	{m6502.Dex, imp, Definition{0xCA, 2, false, Implied}},
	{m6502.Dey, imp, Definition{0x88, 2, false, Implied}},
	{m6502.Tax, imp, Definition{0xAA, 2, false, Implied}},
	{m6502.Txa, imp, Definition{0x8A, 2, false, Implied}},
	{m6502.Tay, imp, Definition{0xA8, 2, false, Implied}},
	{m6502.Tya, imp, Definition{0x98, 2, false, Implied}},
	{m6502.Tsx, imp, Definition{0xBA, 2, false, Implied}},
	{m6502.Txs, imp, Definition{0x9A, 2, false, Implied}},
	{m6502.Nop, imp, Definition{0xEA, 2, false, Implied}},
	{m6502.Clc, imp, Definition{0x18, 2, false, Implied}},
	{m6502.Sec, imp, Definition{0x38, 2, false, Implied}},
	{m6502.Cli, imp, Definition{0x58, 2, false, Implied}},
	{m6502.Sei, imp, Definition{0x78, 2, false, Implied}},
	{m6502.Pha, imp, Definition{0x48, 3, false, Implied}},
	{m6502.Pla, imp, Definition{0x68, 4, false, Implied}},

	{m6502.Bne, rel, Definition{0xD0, 2, false, Branch}},
	{m6502.Beq, rel, Definition{0xF0, 2, false, Branch}},
	{m6502.Bcc, rel, Definition{0x90, 2, false, Branch}},
	{m6502.Bcs, rel, Definition{0xB0, 2, false, Branch}},
	{m6502.Bpl, rel, Definition{0x10, 2, false, Branch}},
	{m6502.Bmi, rel, Definition{0x30, 2, false, Branch}},

	{m6502.Jmp, abs, Definition{0x4C, 3, false, Jump}},
	{m6502.Jmp, ind, Definition{0x6C, 5, false, Jump}},
	{m6502.Jsr, abs, Definition{0x20, 6, false, Call}},
	{m6502.Rts, imp, Definition{0x60, 6, false, Return}},
	{m6502.Rti, imp, Definition{0x40, 6, false, Return}},
}

var definitions = buildDefinitions()

func buildDefinitions() map[definitionKey]Definition {
	m := make(map[definitionKey]Definition, len(definitionTable))
	for _, entry := range definitionTable {
		m[definitionKey{ins: entry.ins, mode: entry.mode}] = entry.def
	}
	return m
}

// Lookup returns the definition of an instruction in an addressing mode.
func Lookup(ins *m6502.Instruction, mode m6502.AddressingMode) (Definition, error) {
	def, ok := definitions[definitionKey{ins: ins, mode: mode}]
	if !ok {
		name := "<nil>"
		if ins != nil {
			name = ins.Name
		}
		return Definition{}, fmt.Errorf("unsupported addressing mode %d for instruction '%s'", mode, name)
	}
	return def, nil
}

// OperandSize returns the number of operand bytes that follow the opcode.
func OperandSize(mode m6502.AddressingMode) int {
	switch mode {
	case imp, acc:
		return 0
	case abs, absx, absy, ind:
		return 2
	default:
		return 1
	}
}

// BranchCycles returns the cycles of a relative branch.
func BranchCycles(taken, pageCrossed bool) int {
	switch {
	case !taken:
		return 2
	case pageCrossed:
		return 4
	default:
		return 3
	}
}

// PageCrossed returns whether two addresses are located in different pages.
func PageCrossed(a, b uint16) bool {
	return a&0xff00 != b&0xff00
}
