// Package symbols provides the symbol tables that map label names to
// addresses. Every demo part compiles against its own scope, symbols that
// are shared between parts live in the global scope.
package symbols

import (
	"errors"
	"sort"
	"sync"

	"github.com/retroenv/retrogolib/set"
)

// Symbol is a named address. A symbol that is declared without address is a
// forward reference until it gets defined.
type Symbol struct {
	Name    string
	Address uint16
	Defined bool
	Global  bool
}

// Scope is a symbol table. Part scopes fall back to their global parent when
// resolving names. The global scope can be read concurrently by the parts
// that are compiled in parallel.
type Scope struct {
	mu      sync.RWMutex
	parent  *Scope
	global  bool
	symbols map[string]*Symbol
	used    set.Set[string]
}

// NewGlobal creates the global scope.
func NewGlobal() *Scope {
	return &Scope{
		global:  true,
		symbols: make(map[string]*Symbol),
		used:    set.New[string](),
	}
}

// NewScope creates a part scope that falls back to the global scope.
func NewScope(global *Scope) *Scope {
	return &Scope{
		parent:  global,
		symbols: make(map[string]*Symbol),
		used:    set.New[string](),
	}
}

// Global returns the parent scope or the scope itself for the global scope.
func (s *Scope) Global() *Scope {
	if s.parent == nil {
		return s
	}
	return s.parent
}

// Declare registers a forward reference. Declaring an existing symbol again
// keeps its address.
func (s *Scope) Declare(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.symbols[name]; ok {
		return
	}
	s.symbols[name] = &Symbol{Name: name, Global: s.global}
}

// DeclareAt registers a symbol with a known address.
func (s *Scope) DeclareAt(name string, address uint16) error {
	return s.Define(name, address)
}

// DeclareGlobal registers a symbol in the global scope.
func (s *Scope) DeclareGlobal(name string, address uint16) error {
	return s.Global().Define(name, address)
}

// Define fixes the address of a symbol. Defining a symbol again with the
// same address is allowed, a different address fails with a
// RedefinitionError.
func (s *Scope) Define(name string, address uint16) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sym, ok := s.symbols[name]
	if !ok {
		s.symbols[name] = &Symbol{Name: name, Address: address, Defined: true, Global: s.global}
		return nil
	}
	if sym.Defined && sym.Address != address {
		return &RedefinitionError{Name: name, Old: sym.Address, New: address}
	}
	sym.Address = address
	sym.Defined = true
	return nil
}

// Resolve returns the address of a defined symbol. A name that is declared
// but undefined in a part scope resolves through the global scope.
func (s *Scope) Resolve(name string) (uint16, error) {
	s.mu.Lock()
	sym, ok := s.symbols[name]
	if ok {
		s.used.Add(name)
	}
	s.mu.Unlock()

	if ok && sym.Defined {
		return sym.Address, nil
	}
	if s.parent != nil {
		return s.parent.Resolve(name)
	}
	return 0, &UnresolvedSymbolError{Name: name}
}

// Lookup returns the symbol without marking it as used.
func (s *Scope) Lookup(name string) (Symbol, bool) {
	s.mu.RLock()
	sym, ok := s.symbols[name]
	s.mu.RUnlock()

	if ok {
		return *sym, true
	}
	if s.parent != nil {
		return s.parent.Lookup(name)
	}
	return Symbol{}, false
}

// Has returns whether the name is declared in this scope or its parent.
func (s *Scope) Has(name string) bool {
	_, ok := s.Lookup(name)
	return ok
}

// Unresolved returns the sorted names of declared but undefined symbols of
// this scope.
func (s *Scope) Unresolved() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name, sym := range s.symbols {
		if !sym.Defined {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}

// Verify returns an UnresolvedSymbolError for every declared symbol of this
// scope that has no address in this scope or the global scope.
func (s *Scope) Verify() error {
	var errs []error
	for _, name := range s.Unresolved() {
		if s.parent != nil {
			if sym, ok := s.parent.Lookup(name); ok && sym.Defined {
				continue
			}
		}
		errs = append(errs, &UnresolvedSymbolError{Name: name})
	}
	return errors.Join(errs...)
}

// Unused returns the sorted names of defined symbols that were never
// resolved.
func (s *Scope) Unused() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var names []string
	for name, sym := range s.symbols {
		if sym.Defined && !s.used.Contains(name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names
}
