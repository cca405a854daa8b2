package raster

import (
	"fmt"
	"strings"
)

// InvalidTriggerError is returned for trigger or re-arm lines outside of the
// frame and for triggers that can not be stabilized.
type InvalidTriggerError struct {
	Chain  string
	Slot   int
	Line   int
	Max    int
	Reason string
}

func (e *InvalidTriggerError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("chain '%s' slot %d: invalid trigger line $%03x: %s", e.Chain, e.Slot, e.Line, e.Reason)
	}
	return fmt.Sprintf("chain '%s' slot %d: trigger line $%03x is outside of 0-$%03x", e.Chain, e.Slot, e.Line, e.Max)
}

// IncompleteChainError is returned when a handler does not re-arm an existing
// successor or when the handlers do not form a single cycle.
type IncompleteChainError struct {
	Chain  string
	Slot   int
	Reason string
}

func (e *IncompleteChainError) Error() string {
	return fmt.Sprintf("chain '%s' slot %d: incomplete chain: %s", e.Chain, e.Slot, e.Reason)
}

// DuplicateArmError is returned when a slot is armed by more than one handler
// or when handlers share a trigger line without distinct priorities.
type DuplicateArmError struct {
	Chain string
	Slot  int
	By    []int
	Line  int // shared trigger line, -1 for a slot with multiple predecessors
}

func (e *DuplicateArmError) Error() string {
	by := make([]string, len(e.By))
	for i, slot := range e.By {
		by[i] = fmt.Sprint(slot)
	}
	if e.Line >= 0 {
		return fmt.Sprintf("chain '%s' slot %d: line $%03x is also armed by slots %s without distinct priority",
			e.Chain, e.Slot, e.Line, strings.Join(by, ", "))
	}
	return fmt.Sprintf("chain '%s' slot %d: armed by slots %s", e.Chain, e.Slot, strings.Join(by, ", "))
}

// DeadlineExceededError is returned when a handler needs more cycles than
// available until the next trigger fires.
type DeadlineExceededError struct {
	Chain  string
	Slot   int
	Cost   int
	Budget int
}

func (e *DeadlineExceededError) Error() string {
	return fmt.Sprintf("chain '%s' slot %d: handler needs %d cycles but only %d are available before the next trigger",
		e.Chain, e.Slot, e.Cost, e.Budget)
}
