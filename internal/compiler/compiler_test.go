package compiler

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrodemo/internal/loader"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrodemo/internal/symbols"
	"github.com/retroenv/retrodemo/internal/timeline"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

type testAssets map[string][]byte

func (a testAssets) Data(name string) ([]byte, error) {
	data, ok := a[name]
	if !ok {
		return nil, fmt.Errorf("asset '%s' not found", name)
	}
	return data, nil
}

func (a testAssets) Program(name string) (uint16, []byte, error) {
	data, err := a.Data(name)
	if err != nil {
		return 0, nil, err
	}
	if len(data) < 2 {
		return 0, nil, fmt.Errorf("asset '%s' has no load address", name)
	}
	return uint16(data[0]) | uint16(data[1])<<8, data[2:], nil
}

func pal(t *testing.T) c64.Timing {
	t.Helper()
	timing, err := c64.TimingFor(c64.PAL)
	assert.NoError(t, err)
	return timing
}

func compile(t *testing.T, b *timeline.Builder, assets testAssets) ([]*program.Program, error) {
	t.Helper()
	production, err := b.Build()
	assert.NoError(t, err)
	c := New(log.NewTestLogger(t), Options{}, assets)
	return c.Compile(context.Background(), production)
}

func TestCompileSingleHandler(t *testing.T) {
	b := timeline.NewBuilder("demo", pal(t))
	part := b.Part("intro", 0x0801)
	part.Chain("main").Handler(1, 0x30).ReArm(0x30).SetBorderColor(c64.Blue)

	programs, err := compile(t, b, testAssets{})
	assert.NoError(t, err)
	assert.Len(t, programs, 1)

	app := programs[0]
	assert.Equal(t, "intro", app.Entry)
	assert.Equal(t, uint16(0x0801), app.Labels["intro"])
	assert.Equal(t, uint16(0x0804), app.Labels["intro_init"])
	assert.Len(t, app.Handlers, 1)
	assert.Equal(t, uint16(0x30), app.Handlers[0].Trigger)
	assert.True(t, app.Handlers[0].Cost <= app.Handlers[0].Budget)

	start, data, err := app.Image()
	assert.NoError(t, err)
	assert.Equal(t, uint16(0x0801), start)
	assert.Equal(t, []byte{0x4c, 0x04, 0x08}, data[:3])
	assert.True(t, app.Segments[len(app.Segments)-1].Offsets[0].IsType(program.InterruptHandler))
}

func TestCompileTwoHandlers(t *testing.T) {
	b := timeline.NewBuilder("demo", pal(t))
	part := b.Part("split", 0x0801)
	chain := part.Chain("main")
	chain.Handler(1, 0xdf).Next(2).ReArm(0xe8).SetBackgroundColor(c64.Black)
	chain.Handler(2, 0xe8).Next(1).ReArm(0xdf).SetBackgroundColor(c64.Blue)

	programs, err := compile(t, b, testAssets{})
	assert.NoError(t, err)

	handlers := programs[0].Handlers
	assert.Len(t, handlers, 2)
	for _, h := range handlers {
		assert.True(t, h.Cost <= h.Budget)
	}
	assert.Equal(t, uint16(0xdf), handlers[0].Trigger)
	assert.Equal(t, uint16(0xe8), handlers[1].Trigger)
}

func TestCompileDisplayHazard(t *testing.T) {
	b := timeline.NewBuilder("demo", pal(t))
	part := b.Part("picture", 0x0801)
	part.Background().
		SetBank(1).
		SetScreenAndBitmap(0x5c00, 0x6000).
		WriteD011(0x3b).
		Load(0x6000, "bitmap", 0x1f40, false)

	_, err := compile(t, b, testAssets{})
	var hazard *loader.MemoryHazardError
	assert.True(t, errors.As(err, &hazard))
	assert.Equal(t, "bitmap", hazard.Asset)
	assert.Equal(t, loader.BitmapRange, hazard.Conflict.Kind)
	assert.ErrorContains(t, err, "background step 4")
}

func TestCompileExportedSymbol(t *testing.T) {
	assets := testAssets{"scroller.bin": {0x60}}

	b := timeline.NewBuilder("demo", pal(t))
	b.Part("first", 0x0801).
		Include(0x9000, "scroller.bin", "scroll1x1").
		Export("scroll1x1")
	b.Part("second", 0x2000).Background().Call("scroll1x1")

	programs, err := compile(t, b, assets)
	assert.NoError(t, err)
	assert.Len(t, programs, 2)
	assert.Equal(t, uint16(0x9000), programs[0].Labels["scroll1x1"])
	assert.Equal(t, uint16(0x9000), programs[1].Constants["scroll1x1"])

	b = timeline.NewBuilder("demo", pal(t))
	b.Part("first", 0x0801).Include(0x9000, "scroller.bin", "scroll1x1")
	b.Part("second", 0x2000).Background().Call("scroll1x1")

	_, err = compile(t, b, assets)
	var unresolved *symbols.UnresolvedSymbolError
	assert.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "scroll1x1", unresolved.Name)
	assert.ErrorContains(t, err, "encoding part 'second'")
	assert.ErrorContains(t, err, "verifying symbols of part 'second'")
}

func TestCompileLoadsAndMusic(t *testing.T) {
	music := []byte{0x00, 0x10, 0x4c, 0x06, 0x10, 0x4c, 0x06, 0x10, 0x60}

	b := timeline.NewBuilder("demo", pal(t))
	part := b.Part("main", 0x0801).Music("music.sid", 0x1000, 0x1003, 900)
	part.Chain("main").Handler(1, 0xf8).PlayMusic()
	part.Background().
		WaitUntil("00:02.00").
		Load(0x4000, "picture", 0x100, true).
		Load(0x4100, "colors", 0x100, false).
		Yield()

	programs, err := compile(t, b, testAssets{"music.sid": music})
	assert.NoError(t, err)

	app := programs[0]
	assert.Equal(t, uint16(DefaultFrameCounter), app.Constants[frameCounterSymbol])
	assert.Equal(t, uint16(DefaultLoaderEntry), app.Constants[loaderSymbol])
	assert.Equal(t, uint16(0x1003), app.Constants[musicPlaySymbol])
	assert.Equal(t, uint16(0x1000), app.Labels["main_music"])

	assert.Len(t, app.Loads, 1)
	assert.Len(t, app.Loads[0], 2)
	assert.True(t, app.Loads[0][1].Complete)

	assert.Len(t, app.Snapshots, 2)
	assert.Equal(t, "start", app.Snapshots[0].Label)
	assert.Equal(t, "yield", app.Snapshots[1].Label)
	assert.Equal(t, 4, app.Snapshots[1].Step)
}

func TestCompileLoaderEntry(t *testing.T) {
	tests := []struct {
		name   string
		entry  uint16
		hazard bool
	}{
		{name: "default entry", entry: 0},
		{name: "relocated entry", entry: 0x0c00, hazard: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := timeline.NewBuilder("demo", pal(t))
			b.Part("main", 0x0801).Background().
				Load(0x0d00, "tune", 0x40, false).
				Yield()
			production, err := b.Build()
			assert.NoError(t, err)

			c := New(log.NewTestLogger(t), Options{LoaderEntry: tt.entry}, testAssets{})
			programs, err := c.Compile(context.Background(), production)
			if !tt.hazard {
				assert.NoError(t, err)
				assert.Equal(t, uint16(DefaultLoaderEntry), programs[0].Constants[loaderSymbol])
				return
			}

			var hazard *loader.MemoryHazardError
			assert.True(t, errors.As(err, &hazard))
			assert.Equal(t, loader.ReservedRange, hazard.Conflict.Kind)
			assert.Equal(t, loaderSymbol, hazard.Conflict.Owner)
			assert.Equal(t, tt.entry, hazard.Conflict.Start)
		})
	}
}

func TestCompileDisplayOfPendingLoad(t *testing.T) {
	b := timeline.NewBuilder("demo", pal(t))
	b.Part("main", 0x0801).Background().
		Load(0x6000, "bitmap", 0x1F40, false).
		SetBank(1).
		SetVideoMode(emit.BitmapMode).
		SetScreenAndBitmap(0x5c00, 0x6000).
		Yield()

	_, err := compile(t, b, testAssets{})
	var hazard *loader.MemoryHazardError
	assert.True(t, errors.As(err, &hazard))
	assert.Equal(t, "bitmap", hazard.Asset)
	assert.Equal(t, loader.BitmapRange, hazard.Conflict.Kind)
	assert.ErrorContains(t, err, "background step 4")
}

func TestCompileTimerTicks(t *testing.T) {
	b := timeline.NewBuilder("demo", pal(t))
	b.Part("main", 0x0801).Chain("ticks").Handler(1, 0x10).Timer(156).Ticks(2).SetBorderColor(c64.Red)

	programs, err := compile(t, b, testAssets{})
	assert.NoError(t, err)
	assert.Len(t, programs[0].Handlers, 1)
	assert.Equal(t, 2, programs[0].Handlers[0].Ticks)

	tables, ok := programs[0].Labels["main_ticks_irq1_lines"]
	assert.True(t, ok)
	assert.True(t, tables > 0x0801)
}

func TestCompileOrder(t *testing.T) {
	b := timeline.NewBuilder("demo", pal(t))
	names := []string{"one", "two", "three", "four"}
	for i, name := range names {
		b.Part(name, uint16(0x1000*(i+1))).Init().SetBorderColor(c64.Color(i))
	}

	programs, err := compile(t, b, testAssets{})
	assert.NoError(t, err)
	assert.Len(t, programs, len(names))
	for i, name := range names {
		assert.Equal(t, name, programs[i].Name)
		assert.Equal(t, uint16(0x1000*(i+1)), programs[i].Start)
	}
}

func TestCompileErrors(t *testing.T) {
	tests := []struct {
		name     string
		build    func(b *timeline.Builder)
		expected string
	}{
		{
			name: "unknown handler call cost",
			build: func(b *timeline.Builder) {
				b.Part("main", 0x0801).Chain("main").Handler(1, 0x30).Call("external")
			},
			expected: "call of 'external' has no known cycle cost",
		},
		{
			name: "recursive subroutine",
			build: func(b *timeline.Builder) {
				part := b.Part("main", 0x0801)
				part.Subroutine("a").Call("b")
				part.Subroutine("b").Call("a")
			},
			expected: "calls itself",
		},
		{
			name: "missing asset",
			build: func(b *timeline.Builder) {
				b.Part("main", 0x0801).Include(0x2000, "missing.bin", "missing")
			},
			expected: "asset 'missing.bin' not found",
		},
		{
			name: "unexported symbol",
			build: func(b *timeline.Builder) {
				b.Part("main", 0x0801).Export("nothing")
			},
			expected: "exported symbol 'nothing' is not defined by the part",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := timeline.NewBuilder("demo", pal(t))
			tt.build(b)
			_, err := compile(t, b, testAssets{})
			assert.ErrorContains(t, err, tt.expected)
		})
	}
}
