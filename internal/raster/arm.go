package raster

import (
	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

// memory configuration with RAM at $A000-$BFFF and $E000-$FFFF and I/O
// visible at $D000
const ramAndIO = 0x35

// Arm emits the static initialization of a chain: it disables the CIA
// interrupts, installs the vector of the entry handler, arms its trigger
// line and enables the raster interrupt.
func Arm(e *emit.Emitter, chain *Chain) []instruction.Instruction {
	vector := c64.HardwareIRQVector
	if chain.Vector == KernalVector {
		vector = c64.KernalIRQVector
	}

	result := e.Emit(instruction.Implied(m6502.Sei))
	result = append(result, e.WriteByte(instruction.Literal(c64.CIA1ICR), 0x7f)...)
	result = append(result, e.WriteByte(instruction.Literal(c64.CIA2ICR), 0x7f)...)
	result = append(result, e.Emit(
		instruction.Absolute(m6502.Lda, instruction.Literal(c64.CIA1ICR)),
		instruction.Absolute(m6502.Lda, instruction.Literal(c64.CIA2ICR)),
	)...)
	e.State().ForgetCPU()
	if chain.Vector == HardwareVector {
		result = append(result, e.WriteByte(instruction.Literal(c64.ProcessorPort), ramAndIO)...)
	}

	entry := instruction.Symbol(chain.Entry)
	result = append(result, e.Emit(
		instruction.Immediate(m6502.Lda, entry.Low()),
		instruction.Absolute(m6502.Sta, instruction.Literal(vector)),
		instruction.Immediate(m6502.Lda, entry.High()),
		instruction.Absolute(m6502.Sta, instruction.Literal(vector+1)),
	)...)
	e.State().ForgetCPU()
	result = append(result, e.WriteByte(instruction.Literal(c64.VICRaster), byte(chain.Trigger))...)
	if chain.Trigger > 0xff {
		result = append(result, e.UpdateD011(c64.Control1RasterBit8, 0)...)
	} else {
		result = append(result, e.UpdateD011(0, c64.Control1RasterBit8)...)
	}
	result = append(result, e.WriteByte(instruction.Literal(c64.VICIRQEnable), 0x01)...)
	result = append(result, e.Emit(
		instruction.Absolute(m6502.Asl, instruction.Literal(c64.VICIRQStatus)),
		instruction.Implied(m6502.Cli),
	)...)
	return result
}
