package emit

import (
	"testing"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
	"github.com/retroenv/retrogolib/assert"
)

//nolint:funlen // test functions can be long
func TestCopyRegion(t *testing.T) {
	tests := []struct {
		name   string
		src    uint16
		dst    uint16
		length int
	}{
		{"bitmap", 0x2000, 0x6000, c64.BitmapSize},
		{"unaligned source", 0x20f0, 0x4000, 0x310},
		{"less than a page", 0x3010, 0x0400, 0x28},
		{"single page", 0x3000, 0x0400, 0x100},
		{"zero page", 0x0010, 0x0080, 0x20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newRecordingMemory()
			for i := range tt.length {
				mem.FlatMemory.StoreByte(tt.src+uint16(i), byte(i*7+1))
			}

			e := newTestEmitter()
			ins, err := e.CopyRegion(instruction.Literal(tt.src), instruction.Literal(tt.dst), tt.length)
			assert.NoError(t, err)

			code := assemble(t, 0x1000, ins, nil)
			cycles := execute(t, mem, 0x1000, code)
			assert.Equal(t, uint64(e.Cycles()), cycles)
			assert.Len(t, mem.writes, tt.length)

			for i := range tt.length {
				if mem.LoadByte(tt.dst+uint16(i)) != byte(i*7+1) {
					t.Fatalf("byte %d at $%04x not copied", i, tt.dst+uint16(i))
				}
			}
			x, ok := e.State().X()
			assert.True(t, ok)
			assert.Equal(t, byte(0), x)
		})
	}
}

func TestCopyRegionZeroPageAddressing(t *testing.T) {
	e := newTestEmitter()
	ins, err := e.CopyRegion(instruction.Literal(0x10), instruction.Literal(0x80), 0x20)
	assert.NoError(t, err)
	assert.Equal(t, m6502.ZeroPageXAddressing, ins[1].Addressing())

	e = newTestEmitter()
	ins, err = e.CopyRegion(instruction.Literal(0xf0), instruction.Literal(0x80), 0x20)
	assert.NoError(t, err)
	assert.Equal(t, m6502.AbsoluteXAddressing, ins[1].Addressing())
}

func TestCopyRegionSymbolic(t *testing.T) {
	e := newTestEmitter()
	ins, err := e.CopyRegion(instruction.Symbol("colors"), instruction.Literal(c64.ColorRAM), 0x100)
	assert.NoError(t, err)
	assert.Equal(t, "lda colors,x", ins[1].String())

	// every indexed read of an unknown address is counted with a page crossing
	assert.Equal(t, 2+256*(4+5+2+2)+255+256, e.Cycles())
}

func TestFillRegion(t *testing.T) {
	tests := []struct {
		name   string
		dst    uint16
		length int
	}{
		{"screen", 0x0400, 1000},
		{"color ram", c64.ColorRAM, c64.ColorSize},
		{"zero page", 0x00c0, 0x40},
		{"wrap around", 0xfff0, 0x20},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mem := newRecordingMemory()
			e := newTestEmitter()
			ins, err := e.FillRegion(instruction.Literal(tt.dst), 0x20, tt.length)
			assert.NoError(t, err)

			code := assemble(t, 0x1000, ins, nil)
			cycles := execute(t, mem, 0x1000, code)
			assert.Equal(t, uint64(e.Cycles()), cycles)
			assert.Len(t, mem.writes, tt.length)
			for i := range tt.length {
				if mem.LoadByte(tt.dst+uint16(i)) != 0x20 {
					t.Fatalf("byte %d at $%04x not filled", i, tt.dst+uint16(i))
				}
			}
		})
	}
}

func TestFillRegionEmpty(t *testing.T) {
	e := newTestEmitter()
	ins, err := e.FillRegion(instruction.Literal(0x0400), 0x20, 0)
	assert.NoError(t, err)
	assert.Len(t, ins, 0)
	assert.Len(t, e.Instructions(), 0)

	_, err = e.CopyRegion(instruction.Literal(0), instruction.Literal(0), 0x10000)
	assert.Error(t, err)
}

func TestFillRegionForgetsOverwrittenRegisters(t *testing.T) {
	e := newTestEmitter()
	e.SetBorderColor(c64.Blue)
	_, err := e.FillRegion(instruction.Literal(0xd000), 0, 0x40)
	assert.NoError(t, err)
	_, known := e.State().Value(c64.BorderColor)
	assert.False(t, known)
}
