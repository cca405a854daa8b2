package emit

import (
	"errors"
	"testing"

	"github.com/beevik/go6502/cpu"
	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrogolib/arch/cpu/m6502"
	"github.com/retroenv/retrogolib/assert"
)

func newTestEmitter() *Emitter {
	return New(Options{
		Vector:       c64.HardwareIRQVector,
		FrameCounter: "frame_counter",
		LoaderEntry:  instruction.Literal(0x0c90),
	}, nil, NewLabels("t"))
}

//nolint:funlen // test functions can be long
func TestRedundantWrites(t *testing.T) {
	t.Run("same color twice", func(t *testing.T) {
		e := newTestEmitter()
		first := e.SetBorderColor(c64.Blue)
		second := e.SetBorderColor(c64.Blue)
		assert.Len(t, first, 2)
		assert.Len(t, second, 0)
		assert.Len(t, e.Instructions(), 2)
		assert.Equal(t, 6, e.Cycles())
	})

	t.Run("accumulator reused", func(t *testing.T) {
		e := newTestEmitter()
		e.SetBorderAndBackground(c64.Black, c64.Black)
		ins := e.Instructions()
		assert.Len(t, ins, 3)
		assert.Equal(t, "lda #$00", ins[0].String())
		assert.Equal(t, "sta $d020", ins[1].String())
		assert.Equal(t, "sta $d021", ins[2].String())
	})

	t.Run("same bank twice", func(t *testing.T) {
		e := newTestEmitter()
		assert.Len(t, e.SetBank(1, c64.BankViaDDR), 2)
		assert.Len(t, e.SetBank(1, c64.BankViaDDR), 0)
		bank, ok := e.State().Bank()
		assert.True(t, ok)
		assert.Equal(t, byte(1), bank)
		value, ok := e.State().Value(c64.CIA2DDRA)
		assert.True(t, ok)
		assert.Equal(t, byte(0x3d), value)
	})

	t.Run("subroutine call forgets state", func(t *testing.T) {
		e := newTestEmitter()
		e.SetBorderColor(c64.Blue)
		e.CallSubroutine(instruction.Literal(0x1003), 40)
		assert.Len(t, e.SetBorderColor(c64.Blue), 2)
		assert.Equal(t, 6+6+40+6, e.Cycles())
	})

	t.Run("raw bytes forget state", func(t *testing.T) {
		e := newTestEmitter()
		e.WriteD016(0xd8)
		e.RawBytes([]byte{0xea}, 2)
		assert.Len(t, e.WriteD016(0xd8), 2)
	})

	t.Run("generic write to tracked register", func(t *testing.T) {
		e := newTestEmitter()
		e.SetBorderColor(c64.Red)
		assert.Len(t, e.WriteByte(instruction.Literal(c64.BorderColor), byte(c64.Red)), 0)
		assert.Len(t, e.WriteByte(instruction.Literal(0x2000), 5), 2)
		assert.Len(t, e.WriteByte(instruction.Literal(0x2000), 5), 1)
	})
}

func TestLabelMakesOperationVolatile(t *testing.T) {
	e := newTestEmitter()
	e.SetBorderColor(c64.Blue)

	e.Label("border")
	ins := e.SetBorderColor(c64.Blue)
	assert.Len(t, ins, 2)
	assert.Equal(t, "border", ins[0].Label())
	assert.True(t, ins[0].Is(m6502.Lda))

	_, known := e.State().Value(c64.BorderColor)
	assert.False(t, known)
	assert.Len(t, e.SetBorderColor(c64.Blue), 2)
}

func TestLabelBeforeEmptyOperation(t *testing.T) {
	e := newTestEmitter()
	e.Label("empty")
	ins, err := e.FillRegion(instruction.Literal(0x0400), 0, 0)
	assert.NoError(t, err)
	assert.Len(t, ins, 0)

	all := e.Instructions()
	assert.Len(t, all, 1)
	assert.True(t, all[0].IsMarker())
	assert.Equal(t, "empty", all[0].Label())
}

func TestUpdateD011(t *testing.T) {
	e := newTestEmitter()
	ins := e.UpdateD011(c64.Control1Display, c64.Control1Bitmap)
	assert.Len(t, ins, 4)
	assert.Equal(t, "lda $d011", ins[0].String())
	assert.Equal(t, "and #$df", ins[1].String())
	assert.Equal(t, "ora #$10", ins[2].String())
	assert.Equal(t, "sta $d011", ins[3].String())

	assert.True(t, e.State().KnownBits(c64.VICControl1, c64.Control1Display|c64.Control1Bitmap, c64.Control1Display))
	assert.Len(t, e.UpdateD011(c64.Control1Display, 0), 0)

	_, known := e.State().Bits(c64.VICControl1)
	assert.Equal(t, byte(0), known&c64.Control1RasterBit8)

	e.WriteD011(0x3b)
	ins = e.UpdateD011(c64.Control1RasterBit8, 0)
	assert.Len(t, ins, 2)
	assert.Equal(t, "lda #$bb", ins[0].String())
}

func TestSetVideoMode(t *testing.T) {
	e := newTestEmitter()
	e.WriteD011(0x1b)
	e.WriteD016(0xc8)

	ins, err := e.SetVideoMode(MulticolorBitmapMode)
	assert.NoError(t, err)
	assert.Len(t, ins, 4)
	assert.Equal(t, "lda #$3b", ins[0].String())
	assert.Equal(t, "lda #$d8", ins[2].String())

	mode, ok := e.State().VideoMode()
	assert.True(t, ok)
	assert.Equal(t, MulticolorBitmapMode, mode)

	ins, err = e.SetVideoMode(MulticolorBitmapMode)
	assert.NoError(t, err)
	assert.Len(t, ins, 0)

	_, err = e.SetVideoMode(VideoMode(99))
	assert.Error(t, err)
}

func TestScreenAndBitmapBase(t *testing.T) {
	e := newTestEmitter()
	_, err := e.SetVideoMode(MulticolorBitmapMode)
	assert.NoError(t, err)

	ins, err := e.SetScreenAndBitmapBase(0x5c00, 0x6000)
	assert.NoError(t, err)
	assert.Len(t, ins, 4)
	assert.Equal(t, "sta $dd00", ins[1].String())
	assert.Equal(t, "lda #$78", ins[2].String())

	windows := e.State().DisplayWindows()
	assert.Len(t, windows, 2)
	assert.Equal(t, uint16(0x5c00), windows[0].Start)
	assert.Equal(t, uint16(0x6000), windows[1].Start)
	assert.Equal(t, c64.BitmapSize, windows[1].Length)

	_, err = e.SetScreenAndBitmapBase(0x5c00, 0x8000)
	assert.Error(t, err)
}

func TestSwitchChain(t *testing.T) {
	e := newTestEmitter()
	ins := e.SwitchChain("part2_irq1", 0x100)
	assert.Equal(t, "sei", ins[0].String())
	assert.Equal(t, "lda #<part2_irq1", ins[1].String())
	assert.Equal(t, "sta $fffe", ins[2].String())
	assert.Equal(t, "sta $ffff", ins[4].String())
	assert.Equal(t, "cli", ins[len(ins)-1].String())
	assert.True(t, e.State().KnownBits(c64.VICControl1, c64.Control1RasterBit8, c64.Control1RasterBit8))
}

func TestWaitFrames(t *testing.T) {
	e := newTestEmitter()
	_, err := e.WaitFrames(250)
	assert.NoError(t, err)

	mem := newRecordingMemory()
	mem.StoreByte(0x0002, 250)
	code := assemble(t, 0x1000, e.Instructions(), mapResolver{"frame_counter": 0x0002})
	execute(t, mem, 0x1000, code)

	e = New(Options{}, nil, nil)
	_, err = e.WaitFrames(1)
	assert.Error(t, err)
}

func TestWaitFramesCounterCarry(t *testing.T) {
	e := newTestEmitter()
	_, err := e.WaitFrames(0x02c0)
	assert.NoError(t, err)

	mem := &tickingMemory{FlatMemory: cpu.NewFlatMemory(), address: 0x00fb, counter: 0x01ff}
	code := assemble(t, 0x1000, e.Instructions(), mapResolver{"frame_counter": 0x00fb})
	execute(t, mem, 0x1000, code)
	assert.True(t, mem.counter >= 0x02c0)
}

func TestLoaderCall(t *testing.T) {
	e := newTestEmitter()
	ins := e.LoaderCall()
	assert.Len(t, ins, 1)
	assert.Equal(t, "jsr $0c90", ins[0].String())
}

func TestDelayExactCycles(t *testing.T) {
	for _, n := range []int{2, 3, 4, 5, 7, 11, 20, 21, 22, 23, 26, 63, 100, 527, 1277, 1278, 3000} {
		e := newTestEmitter()
		ins, err := e.DelayExactCycles(n)
		assert.NoError(t, err)
		assert.Equal(t, n, e.Cycles(), "accounted cycles")

		code := assemble(t, 0x1000, ins, nil)
		cycles := execute(t, newRecordingMemory(), 0x1000, code)
		assert.Equal(t, uint64(n), cycles, "executed cycles")
	}

	e := newTestEmitter()
	ins, err := e.DelayExactCycles(0)
	assert.NoError(t, err)
	assert.Len(t, ins, 0)

	_, err = e.DelayExactCycles(1)
	var delayErr *UnachievableDelayError
	assert.True(t, errors.As(err, &delayErr))
	assert.Equal(t, 1, delayErr.Cycles)

	_, err = e.DelayExactCycles(-5)
	assert.Error(t, err)
}
