// Package instruction models the 6502 instructions emitted for a demo part.
// Instructions are immutable values; operands may reference symbols that are
// resolved when the instruction is encoded.
package instruction

import (
	"fmt"

	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

// Instruction is a single emitted instruction, a block of raw bytes or a
// label marker without content.
type Instruction struct {
	ins        *m6502.Instruction
	addressing m6502.AddressingMode
	def        Definition
	operand    Operand
	data       []byte
	label      string
	comment    string
	timed      bool
}

// New returns an instruction for the given addressing mode.
func New(ins *m6502.Instruction, addressing m6502.AddressingMode, operand Operand) (Instruction, error) {
	def, err := Lookup(ins, addressing)
	if err != nil {
		return Instruction{}, err
	}
	return Instruction{
		ins:        ins,
		addressing: addressing,
		def:        def,
		operand:    operand,
	}, nil
}

// mustNew is used by the constructors for fixed instruction and addressing
// combinations, an unsupported combination is a programming error.
func mustNew(ins *m6502.Instruction, addressing m6502.AddressingMode, operand Operand) Instruction {
	i, err := New(ins, addressing, operand)
	if err != nil {
		panic(err)
	}
	return i
}

// Implied returns an instruction without operand. Shift instructions use
// accumulator addressing.
func Implied(ins *m6502.Instruction) Instruction {
	if _, err := Lookup(ins, m6502.AccumulatorAddressing); err == nil {
		return mustNew(ins, m6502.AccumulatorAddressing, Operand{})
	}
	return mustNew(ins, m6502.ImpliedAddressing, Operand{})
}

// Immediate returns an instruction with an immediate operand.
func Immediate(ins *m6502.Instruction, operand Operand) Instruction {
	return mustNew(ins, m6502.ImmediateAddressing, operand)
}

// Absolute returns an instruction that accesses a 16 bit address. Literal
// addresses in the zero page use the shorter zero page form if the
// instruction supports it.
func Absolute(ins *m6502.Instruction, operand Operand) Instruction {
	if !operand.IsSymbolic() && operand.Select == Full && operand.Value < 0x100 {
		if _, err := Lookup(ins, m6502.ZeroPageAddressing); err == nil {
			return mustNew(ins, m6502.ZeroPageAddressing, operand)
		}
	}
	return mustNew(ins, m6502.AbsoluteAddressing, operand)
}

// AbsoluteX returns an instruction that accesses a 16 bit address indexed by X.
func AbsoluteX(ins *m6502.Instruction, operand Operand) Instruction {
	return mustNew(ins, m6502.AbsoluteXAddressing, operand)
}

// AbsoluteY returns an instruction that accesses a 16 bit address indexed by Y.
func AbsoluteY(ins *m6502.Instruction, operand Operand) Instruction {
	return mustNew(ins, m6502.AbsoluteYAddressing, operand)
}

// ZeroPage returns an instruction that accesses a zero page address.
func ZeroPage(ins *m6502.Instruction, operand Operand) Instruction {
	return mustNew(ins, m6502.ZeroPageAddressing, operand)
}

// ZeroPageX returns an instruction that accesses a zero page address indexed by X.
func ZeroPageX(ins *m6502.Instruction, operand Operand) Instruction {
	return mustNew(ins, m6502.ZeroPageXAddressing, operand)
}

// IndirectY returns an instruction that accesses memory through a zero page
// pointer indexed by Y.
func IndirectY(ins *m6502.Instruction, operand Operand) Instruction {
	return mustNew(ins, m6502.IndirectYAddressing, operand)
}

// Indirect returns an indirect jump through a vector.
func Indirect(operand Operand) Instruction {
	return mustNew(m6502.Jmp, m6502.IndirectAddressing, operand)
}

// Relative returns a branch to the target symbol.
func Relative(ins *m6502.Instruction, target string) Instruction {
	return mustNew(ins, m6502.RelativeAddressing, Symbol(target))
}

// Bytes returns a block of raw data bytes.
func Bytes(data ...byte) Instruction {
	return Instruction{data: append([]byte(nil), data...)}
}

// Mark returns an empty instruction that only carries a label.
func Mark(label string) Instruction {
	return Instruction{label: label}
}

// WithLabel returns a copy of the instruction with a label attached.
func (i Instruction) WithLabel(label string) Instruction {
	i.label = label
	return i
}

// WithComment returns a copy of the instruction with a listing comment.
func (i Instruction) WithComment(comment string) Instruction {
	i.comment = comment
	return i
}

// AsTimed returns a copy of the instruction that must not cross a page
// boundary when it is a branch, as the extra cycle would break exact timing.
func (i Instruction) AsTimed() Instruction {
	i.timed = true
	return i
}

// Name returns the mnemonic or an empty string for data and markers.
func (i Instruction) Name() string {
	if i.ins == nil {
		return ""
	}
	return i.ins.Name
}

// Is returns whether the instruction uses the given mnemonic.
func (i Instruction) Is(ins *m6502.Instruction) bool {
	return i.ins == ins
}

// Addressing returns the addressing mode.
func (i Instruction) Addressing() m6502.AddressingMode {
	return i.addressing
}

// Operand returns the operand of the instruction.
func (i Instruction) Operand() Operand {
	return i.operand
}

// Data returns the raw bytes of a data instruction.
func (i Instruction) Data() []byte {
	return i.data
}

// Label returns the attached label.
func (i Instruction) Label() string {
	return i.label
}

// Comment returns the attached listing comment.
func (i Instruction) Comment() string {
	return i.comment
}

// Timed returns whether the instruction is part of a cycle exact sequence.
func (i Instruction) Timed() bool {
	return i.timed
}

// IsMarker returns whether the instruction only carries a label.
func (i Instruction) IsMarker() bool {
	return i.ins == nil && len(i.data) == 0
}

// Class returns the instruction class.
func (i Instruction) Class() Class {
	if i.ins == nil {
		return RawBytes
	}
	return i.def.Class
}

// Opcode returns the opcode byte.
func (i Instruction) Opcode() byte {
	return i.def.Opcode
}

// Size returns the encoded size in bytes.
func (i Instruction) Size() int {
	if i.ins == nil {
		return len(i.data)
	}
	return 1 + OperandSize(i.addressing)
}

// Cycles returns the base cycle count. Branches are counted as not taken
// and indexed accesses without page crossing.
func (i Instruction) Cycles() int {
	if i.ins == nil {
		return 0
	}
	return i.def.Cycles
}

// PageSensitive returns whether an indexed access costs one more cycle when
// it crosses a page.
func (i Instruction) PageSensitive() bool {
	return i.def.PageSensitive
}

// Encode returns the machine code of the instruction located at pc.
func (i Instruction) Encode(pc uint16, resolver Resolver) ([]byte, error) {
	if i.ins == nil {
		return append([]byte(nil), i.data...), nil
	}

	size := OperandSize(i.addressing)
	if size == 0 {
		return []byte{i.def.Opcode}, nil
	}

	value, err := i.operand.Resolve(resolver)
	if err != nil {
		return nil, fmt.Errorf("encoding '%s': %w", i, err)
	}

	if i.addressing == m6502.RelativeAddressing {
		next := int(pc) + 2
		distance := int(value) - next
		if distance < -128 || distance > 127 {
			return nil, &BranchRangeError{Target: i.operand.String(), From: pc, To: value}
		}
		return []byte{i.def.Opcode, byte(int8(distance))}, nil
	}

	if size == 1 {
		if value > 0xff {
			return nil, &InvalidOperandError{
				Operand: i.operand.String(),
				Reason:  fmt.Sprintf("value $%04x does not fit into a byte for '%s'", value, i.Name()),
			}
		}
		return []byte{i.def.Opcode, byte(value)}, nil
	}
	return []byte{i.def.Opcode, byte(value), byte(value >> 8)}, nil
}

// BranchTarget returns whether the instruction is a branch and the absolute
// address it jumps to when taken.
func (i Instruction) BranchTarget(resolver Resolver) (uint16, bool, error) {
	if i.ins == nil || i.addressing != m6502.RelativeAddressing {
		return 0, false, nil
	}
	value, err := i.operand.Resolve(resolver)
	if err != nil {
		return 0, true, err
	}
	return value, true, nil
}

// String returns the instruction in assembler notation.
func (i Instruction) String() string {
	if i.ins == nil {
		if len(i.data) == 0 {
			return ""
		}
		return fmt.Sprintf(".byte %d bytes", len(i.data))
	}

	name := i.ins.Name
	op := i.operand.String()
	switch i.addressing {
	case m6502.ImpliedAddressing, m6502.AccumulatorAddressing:
		return name
	case m6502.ImmediateAddressing:
		return fmt.Sprintf("%s #%s", name, op)
	case m6502.AbsoluteXAddressing, m6502.ZeroPageXAddressing:
		return fmt.Sprintf("%s %s,x", name, op)
	case m6502.AbsoluteYAddressing, m6502.ZeroPageYAddressing:
		return fmt.Sprintf("%s %s,y", name, op)
	case m6502.IndirectAddressing:
		return fmt.Sprintf("%s (%s)", name, op)
	case m6502.IndirectXAddressing:
		return fmt.Sprintf("%s (%s,x)", name, op)
	case m6502.IndirectYAddressing:
		return fmt.Sprintf("%s (%s),y", name, op)
	default:
		return fmt.Sprintf("%s %s", name, op)
	}
}
