package symbols

import "fmt"

// RedefinitionError is returned when a defined symbol is defined again with a
// different address.
type RedefinitionError struct {
	Name string
	Old  uint16
	New  uint16
}

func (e *RedefinitionError) Error() string {
	return fmt.Sprintf("symbol '%s' redefined from $%04x to $%04x", e.Name, e.Old, e.New)
}

// UnresolvedSymbolError is returned when a symbol is used without a defined
// address.
type UnresolvedSymbolError struct {
	Name string
}

func (e *UnresolvedSymbolError) Error() string {
	return fmt.Sprintf("symbol '%s' is not resolved", e.Name)
}
