package instruction

import "fmt"

// InvalidOperandError is returned for operands that can not be parsed or do
// not fit the addressing mode.
type InvalidOperandError struct {
	Operand string
	Reason  string
}

func (e *InvalidOperandError) Error() string {
	return fmt.Sprintf("invalid operand '%s': %s", e.Operand, e.Reason)
}

// BranchRangeError is returned when a relative branch target is more than
// 128 bytes away from the branch.
type BranchRangeError struct {
	Target string
	From   uint16
	To     uint16
}

func (e *BranchRangeError) Error() string {
	return fmt.Sprintf("branch from $%04x to '%s' at $%04x is out of range", e.From, e.Target, e.To)
}
