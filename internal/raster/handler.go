package raster

import (
	"fmt"

	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrodemo/internal/instruction"
)

// Vector selects the interrupt vector used by a chain.
type Vector uint8

const (
	// HardwareVector uses $FFFE with the ROMs banked out. Handlers save and
	// restore the CPU registers themselves.
	HardwareVector Vector = iota
	// KernalVector uses $0314 and exits through the KERNAL interrupt exit.
	KernalVector
)

// Cycle costs of the interrupt entry and exit.
const (
	// InterruptLatency is the IRQ entry sequence plus the worst case wait for
	// the running instruction to finish.
	InterruptLatency = 14
	// KernalEntryCycles is the KERNAL dispatch from $FF48 to the $0314 vector.
	KernalEntryCycles = 29
	// KernalExitCycles is the register restore and rti at $EA81.
	KernalExitCycles = 22
)

// Interval calls a subroutine every Frames executions of a handler.
type Interval struct {
	Target instruction.Operand
	Frames byte
	Cycles int // cycles of the subroutine including its return
}

// HandlerConfig declares an interrupt handler of a chain.
type HandlerConfig struct {
	Slot    int
	Trigger uint16
	// Next is the slot of the successor, 0 selects the next higher slot,
	// wrapping around to the lowest one.
	Next int
	// ReArm is the explicit line that the handler arms, nil uses the trigger
	// of the successor.
	ReArm *uint16
	// Timer computes the re-arm line as the trigger plus ReArmDelta lines.
	Timer      bool
	ReArmDelta uint16
	// Ticks is the number of times a timer handler fires in a row, each
	// ReArmDelta lines after the previous one. The last tick arms the
	// successor. 0 and 1 fire once.
	Ticks     int
	Stabilize bool
	// Priority orders handlers that share a trigger line. A handler hands
	// off directly to a successor on its own line with a lower priority.
	Priority int

	Body       []instruction.Instruction
	BodyCycles int
	// Exit is the emitter state after the body, nil means unknown.
	Exit *emit.State

	Interval *Interval
}

// Handler is a lowered handler in chain order.
type Handler struct {
	Slot         int
	Label        string
	Trigger      uint16
	Next         int
	ReArm        uint16
	Lines        []uint16 // lines of all ticks, starting with the trigger
	Handoff      bool     // runs the successor without re-arming
	Cost         int
	Budget       int
	Instructions []instruction.Instruction
}

// HandlerLabel returns the label of a handler entry point.
func HandlerLabel(prefix string, slot int) string {
	return fmt.Sprintf("%s_irq%d", prefix, slot)
}

func (h *HandlerConfig) ticks() int {
	return max(h.Ticks, 1)
}

// tickLines returns the lines of all ticks of the handler.
func (h *HandlerConfig) tickLines(lines uint16) []uint16 {
	result := make([]uint16, h.ticks())
	for i := range result {
		result[i] = uint16((int(h.Trigger) + i*int(h.ReArmDelta)) % int(lines))
	}
	return result
}

// reArmLine returns the line that the handler arms for its successor after
// its last tick.
func (h *HandlerConfig) reArmLine(lines uint16, successorTrigger uint16) uint16 {
	switch {
	case h.Timer:
		return uint16((int(h.Trigger) + h.ticks()*int(h.ReArmDelta)) % int(lines))
	case h.ReArm != nil:
		return *h.ReArm
	default:
		return successorTrigger
	}
}
