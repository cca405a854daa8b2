package loader

import "fmt"

// MemoryHazardError is returned when a load would overwrite live memory or
// when memory is read before the load that fills it completed.
type MemoryHazardError struct {
	Asset    string
	Start    uint16
	Length   int
	Conflict Range
	Read     bool // a read of a pending destination
}

func (e *MemoryHazardError) Error() string {
	end := int(e.Start) + e.Length - 1
	if e.Read {
		return fmt.Sprintf("read of $%04x-$%04x before the load of '%s' to %s completed",
			e.Start, end, e.Conflict.Owner, e.Conflict)
	}
	return fmt.Sprintf("load of '%s' to $%04x-$%04x overlaps %s '%s' at %s",
		e.Asset, e.Start, end, e.Conflict.Kind, e.Conflict.Owner, e.Conflict)
}

// InvalidRequestError is returned for load requests that can not be placed
// in memory.
type InvalidRequestError struct {
	Asset  string
	Reason string
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("invalid load request for '%s': %s", e.Asset, e.Reason)
}
