package emit

import (
	"strconv"

	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

const pageSize = 256

// CopyRegion copies length bytes from src to dst. A length of 0 emits
// nothing.
func (e *Emitter) CopyRegion(src, dst instruction.Operand, length int) ([]instruction.Instruction, error) {
	defer e.endOperation()
	if err := checkLength(length); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	pages, rest := length/pageSize, length%pageSize
	zeroPage := inZeroPage(src, length) && inZeroPage(dst, length)

	var result []instruction.Instruction
	if pages > 0 {
		result = append(result, e.loadX(0)...)
		loop := e.labels.Next("copy")
		var body []instruction.Instruction
		for page := range pages {
			offset := page * pageSize
			body = append(body,
				indexedX(m6502.Lda, src.Plus(offset), zeroPage),
				indexedX(m6502.Sta, dst.Plus(offset), zeroPage),
			)
		}
		body[0] = body[0].WithLabel(loop)
		body = append(body,
			instruction.Implied(m6502.Inx),
			instruction.Relative(m6502.Bne, loop).AsTimed(),
		)
		cycles := loopCycles(body, pageSize) + pages*pageCrossings(src, 0, pageSize, zeroPage)
		result = append(result, e.emitCycles(cycles, body...)...)
	}

	if rest > 0 {
		base := pages * pageSize
		result = append(result, e.loadX(byte(rest))...)
		loop := e.labels.Next("copy")
		body := []instruction.Instruction{
			indexedX(m6502.Lda, src.Plus(base-1), zeroPage).WithLabel(loop),
			indexedX(m6502.Sta, dst.Plus(base-1), zeroPage),
			instruction.Implied(m6502.Dex),
			instruction.Relative(m6502.Bne, loop).AsTimed(),
		}
		cycles := loopCycles(body, rest) + pageCrossings(src.Plus(base-1), 1, rest, zeroPage)
		result = append(result, e.emitCycles(cycles, body...)...)
	}

	e.state.a = cpuRegister{}
	e.state.x = cpuRegister{value: 0, known: true}
	e.forgetWritten(dst, length)
	return result, nil
}

// FillRegion writes value to length bytes starting at dst. A length of 0
// emits nothing.
func (e *Emitter) FillRegion(dst instruction.Operand, value byte, length int) ([]instruction.Instruction, error) {
	defer e.endOperation()
	if err := checkLength(length); err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, nil
	}

	pages, rest := length/pageSize, length%pageSize
	zeroPage := inZeroPage(dst, length)
	result := e.loadA(value)

	if pages > 0 {
		result = append(result, e.loadX(0)...)
		loop := e.labels.Next("fill")
		var body []instruction.Instruction
		for page := range pages {
			body = append(body, indexedX(m6502.Sta, dst.Plus(page*pageSize), zeroPage))
		}
		body[0] = body[0].WithLabel(loop)
		body = append(body,
			instruction.Implied(m6502.Inx),
			instruction.Relative(m6502.Bne, loop).AsTimed(),
		)
		result = append(result, e.emitCycles(loopCycles(body, pageSize), body...)...)
	}

	if rest > 0 {
		base := pages * pageSize
		result = append(result, e.loadX(byte(rest))...)
		loop := e.labels.Next("fill")
		body := []instruction.Instruction{
			indexedX(m6502.Sta, dst.Plus(base-1), zeroPage).WithLabel(loop),
			instruction.Implied(m6502.Dex),
			instruction.Relative(m6502.Bne, loop).AsTimed(),
		}
		result = append(result, e.emitCycles(loopCycles(body, rest), body...)...)
	}

	e.state.x = cpuRegister{value: 0, known: true}
	e.forgetWritten(dst, length)
	return result, nil
}

// loadX loads an immediate value into X unless it is known to hold it.
func (e *Emitter) loadX(value byte) []instruction.Instruction {
	if !e.volatile {
		if current, ok := e.state.X(); ok && current == value {
			return nil
		}
	}
	result := e.Emit(instruction.Immediate(m6502.Ldx, instruction.Literal(uint16(value))))
	e.volatile = false
	e.state.x = cpuRegister{value: value, known: true}
	return result
}

// forgetWritten marks tracked registers inside a written range as unknown.
func (e *Emitter) forgetWritten(dst instruction.Operand, length int) {
	if dst.IsSymbolic() {
		return
	}
	for _, register := range TrackedRegisters {
		offset := int(register - dst.Value) // wraps at 16 bits
		if offset < length {
			e.state.Forget(register)
		}
	}
}

// loopCycles returns the cycles of a loop body executed iterations times
// that ends with a branch that is taken for all but the last iteration.
// Page crossing penalties of indexed reads are not included.
func loopCycles(body []instruction.Instruction, iterations int) int {
	perIteration := instructionCycles(body)
	return perIteration*iterations + (iterations - 1)
}

// pageCrossings returns how many indexed reads from base+first to
// base+first+count-1 cross a page. Symbolic addresses are assumed to cross
// on every read.
func pageCrossings(base instruction.Operand, first, count int, zeroPage bool) int {
	if zeroPage {
		return 0
	}
	if base.IsSymbolic() {
		return count
	}
	low := int(base.Value & 0xff)
	crossings := 0
	for x := first; x < first+count; x++ {
		if low+x > 0xff {
			crossings++
		}
	}
	return crossings
}

func indexedX(ins *m6502.Instruction, address instruction.Operand, zeroPage bool) instruction.Instruction {
	if zeroPage {
		return instruction.ZeroPageX(ins, instruction.Literal(address.Value&0xff))
	}
	return instruction.AbsoluteX(ins, address)
}

// inZeroPage returns whether the whole range is located in the zero page.
func inZeroPage(address instruction.Operand, length int) bool {
	return !address.IsSymbolic() && address.Select == instruction.Full && int(address.Value)+length <= 0x100
}

func checkLength(length int) error {
	if length < 0 || length > 0xffff {
		return &instruction.InvalidOperandError{Operand: strconv.Itoa(length), Reason: "length out of range"}
	}
	return nil
}
