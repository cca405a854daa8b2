// Package timeline contains the model of a production: the ordered demo
// parts with their background streams, interrupt chains and loads.
package timeline

import (
	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/raster"
)

// Production is an ordered list of parts sharing a video standard.
type Production struct {
	Name   string
	Timing c64.Timing
	Parts  []*Part
}

// Part returns the part with the given name.
func (p *Production) Part(name string) (*Part, bool) {
	for _, part := range p.Parts {
		if part.Name == name {
			return part, true
		}
	}
	return nil, false
}

// Part is a demo part: static initialization, a background stream running
// outside of interrupts and the interrupt chains that it switches between.
type Part struct {
	Name  string
	Start uint16 // load and entry address of the code

	Vector     raster.Vector
	BankMethod c64.BankMethod

	Includes    []Include
	Music       *Music
	Init        []Op
	Background  []Op
	Chains      []*Chain
	Subroutines []*Subroutine

	// Symbols are constants defined by the part, like zero page pointers.
	Symbols map[string]uint16
	// Exports are labels of the part that are visible to other parts.
	Exports []string
	// Next is the symbol that the background jumps to after its last op,
	// empty loops forever.
	Next string
}

// Chain returns the chain with the given name.
func (p *Part) Chain(name string) (*Chain, bool) {
	for _, chain := range p.Chains {
		if chain.Name == name {
			return chain, true
		}
	}
	return nil, false
}

// UsesFrameCounter returns whether the background waits on frames.
func (p *Part) UsesFrameCounter() bool {
	for _, op := range p.Background {
		if _, ok := op.(WaitUntil); ok {
			return true
		}
	}
	return false
}

// Include is an asset that is part of the program image of a part.
type Include struct {
	Address uint16
	Asset   string
	Label   string
}

// Music is a player that is called from the interrupt handlers.
type Music struct {
	Asset   string
	Address uint16 // load address, 0 uses the one of the asset
	Init    uint16
	Play    uint16
	Song    byte
	Cycles  int // worst case cycles of the play routine
}

// Chain is a named cyclic list of interrupt handlers. The first chain of a
// part is armed by the initialization.
type Chain struct {
	Name     string
	Handlers []*Handler
}

// Handler is an interrupt handler declaration.
type Handler struct {
	Slot       int
	Trigger    uint16
	Next       int
	ReArm      *uint16
	Timer      bool
	ReArmDelta uint16
	Ticks      int
	Stabilize  bool
	Priority   int
	Ops        []Op
}

// Subroutine is a routine that ends with rts.
type Subroutine struct {
	Name string
	Ops  []Op
	// Cycles overrides the computed cost of calls, used for subroutines
	// with loops.
	Cycles int
}
