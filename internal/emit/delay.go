package emit

import (
	"strconv"

	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
)

const (
	// delays up to this count are padded with nop and bit instructions only
	delayLoopThreshold = 20
	maxDelayLoop       = 256
)

// DelayExactCycles emits instructions that take exactly n cycles. The X
// register is used as loop counter.
func (e *Emitter) DelayExactCycles(n int) ([]instruction.Instruction, error) {
	defer e.endOperation()
	switch {
	case n < 0:
		return nil, &instruction.InvalidOperandError{Operand: strconv.Itoa(n), Reason: "negative delay"}
	case n == 0:
		return nil, nil
	case n == 1:
		return nil, &UnachievableDelayError{Cycles: n}
	}

	var result []instruction.Instruction
	remaining := n
	for remaining > delayLoopThreshold {
		k := min((remaining-1)/5, maxDelayLoop)
		rest := remaining - (5*k + 1)
		if rest == 1 {
			k--
			rest += 5
		}
		result = append(result, e.delayLoop(k)...)
		remaining = rest
	}
	result = append(result, e.delayPad(remaining)...)
	return result, nil
}

// delayLoop emits a loop of k iterations that takes 5k+1 cycles.
func (e *Emitter) delayLoop(k int) []instruction.Instruction {
	loop := e.labels.Next("delay")
	result := e.emitCycles(5*k+1,
		instruction.Immediate(m6502.Ldx, instruction.Literal(uint16(k&0xff))),
		instruction.Implied(m6502.Dex).WithLabel(loop),
		instruction.Relative(m6502.Bne, loop).AsTimed(),
	)
	e.state.x = cpuRegister{value: 0, known: true}
	return result
}

// delayPad emits n cycles using 2 cycle nop and 3 cycle bit instructions,
// n must not be 1.
func (e *Emitter) delayPad(n int) []instruction.Instruction {
	var ins []instruction.Instruction
	if n%2 == 1 {
		ins = append(ins, instruction.ZeroPage(m6502.Bit, instruction.Literal(0)))
		n -= 3
	}
	for ; n > 0; n -= 2 {
		ins = append(ins, instruction.Implied(m6502.Nop))
	}
	return e.Emit(ins...)
}
