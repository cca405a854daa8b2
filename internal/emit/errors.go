package emit

import "fmt"

// UnachievableDelayError is returned when a delay can not be built from the
// available instructions.
type UnachievableDelayError struct {
	Cycles int
}

func (e *UnachievableDelayError) Error() string {
	return fmt.Sprintf("delay of %d cycles can not be achieved, the minimum is 2 cycles", e.Cycles)
}
