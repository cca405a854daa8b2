package symbols

import (
	"errors"
	"sync"
	"testing"

	"github.com/retroenv/retrogolib/assert"
)

//nolint:funlen // test functions can be long
func TestScope(t *testing.T) {
	t.Run("forward reference resolves after define", func(t *testing.T) {
		scope := NewScope(NewGlobal())
		scope.Declare("X")

		_, err := scope.Resolve("X")
		var unresolved *UnresolvedSymbolError
		assert.True(t, errors.As(err, &unresolved))
		assert.Equal(t, "X", unresolved.Name)

		assert.NoError(t, scope.Define("X", 0x2000))
		address, err := scope.Resolve("X")
		assert.NoError(t, err)
		assert.Equal(t, uint16(0x2000), address)
	})

	t.Run("redefinition with different address fails", func(t *testing.T) {
		scope := NewScope(NewGlobal())
		scope.Declare("X")
		assert.NoError(t, scope.Define("X", 0x2000))

		err := scope.Define("X", 0x3000)
		var redefined *RedefinitionError
		assert.True(t, errors.As(err, &redefined))
		assert.Equal(t, uint16(0x2000), redefined.Old)
		assert.Equal(t, uint16(0x3000), redefined.New)

		assert.NoError(t, scope.Define("X", 0x2000))
	})

	t.Run("unknown symbol is unresolved", func(t *testing.T) {
		scope := NewScope(NewGlobal())
		_, err := scope.Resolve("missing")
		assert.ErrorContains(t, err, "missing")
	})

	t.Run("verify reports undefined symbols", func(t *testing.T) {
		scope := NewScope(NewGlobal())
		scope.Declare("b")
		scope.Declare("a")
		assert.NoError(t, scope.DeclareAt("c", 0x1000))

		names := scope.Unresolved()
		assert.Len(t, names, 2)
		assert.Equal(t, "a", names[0])
		assert.Equal(t, "b", names[1])

		err := scope.Verify()
		assert.ErrorContains(t, err, "'a'")
		assert.ErrorContains(t, err, "'b'")

		assert.NoError(t, scope.Define("a", 1))
		assert.NoError(t, scope.Define("b", 2))
		assert.NoError(t, scope.Verify())
	})

	t.Run("global symbols are visible in parts", func(t *testing.T) {
		global := NewGlobal()
		part1 := NewScope(global)
		part2 := NewScope(global)

		assert.NoError(t, part1.DeclareGlobal("part2_start", 0x4000))
		address, err := part2.Resolve("part2_start")
		assert.NoError(t, err)
		assert.Equal(t, uint16(0x4000), address)

		sym, ok := part1.Lookup("part2_start")
		assert.True(t, ok)
		assert.True(t, sym.Global)
	})

	t.Run("part symbols are not shared", func(t *testing.T) {
		global := NewGlobal()
		part1 := NewScope(global)
		part2 := NewScope(global)

		assert.NoError(t, part1.DeclareAt("irq1", 0x0900))
		assert.False(t, part2.Has("irq1"))
		assert.NoError(t, part2.DeclareAt("irq1", 0x1900))

		address, err := part1.Resolve("irq1")
		assert.NoError(t, err)
		assert.Equal(t, uint16(0x0900), address)
	})

	t.Run("unused", func(t *testing.T) {
		scope := NewScope(NewGlobal())
		assert.NoError(t, scope.DeclareAt("b", 0x2000))
		assert.NoError(t, scope.DeclareAt("a", 0x1000))
		scope.Declare("pending")

		_, err := scope.Resolve("a")
		assert.NoError(t, err)
		unused := scope.Unused()
		assert.Len(t, unused, 1)
		assert.Equal(t, "b", unused[0])
	})

	t.Run("declared name resolves through the global scope", func(t *testing.T) {
		global := NewGlobal()
		part := NewScope(global)
		part.Declare("part2_start")
		assert.ErrorContains(t, part.Verify(), "'part2_start'")

		assert.NoError(t, global.Define("part2_start", 0x4000))
		assert.NoError(t, part.Verify())
		address, err := part.Resolve("part2_start")
		assert.NoError(t, err)
		assert.Equal(t, uint16(0x4000), address)
	})
}

func TestScopeConcurrentResolve(t *testing.T) {
	global := NewGlobal()
	assert.NoError(t, global.Define("shared", 0x0801))

	var wg sync.WaitGroup
	for range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			part := NewScope(global)
			for range 100 {
				address, err := part.Resolve("shared")
				if err != nil || address != 0x0801 {
					t.Errorf("unexpected resolve result $%04x: %v", address, err)
				}
			}
		}()
	}
	wg.Wait()
}
