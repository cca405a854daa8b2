package pipeline

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/loader"
	"github.com/retroenv/retrodemo/internal/options"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrodemo/internal/timeline"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
)

const introScript = `
local part = demo.part{ name = "intro" }
part:include(0x2000, "logo.bin", "logo")
part:irq{ slot = 1, line = 0x30, rearm = 0x30 }:border(color.blue)
part:bg():wait("00:01.00"):load(0x4000, "pic.bin", 0x100):yield()
`

func testFs(t *testing.T) afero.Fs {
	t.Helper()
	fs := afero.NewMemMapFs()
	assert.NoError(t, afero.WriteFile(fs, "/demo/intro.lua", []byte(introScript), 0o644))
	assert.NoError(t, afero.WriteFile(fs, "/demo/logo.bin", []byte{1, 2, 3, 4}, 0o644))
	return fs
}

func readFile(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, name)
	assert.NoError(t, err)
	return string(data)
}

func TestExecute(t *testing.T) {
	fs := testFs(t)
	p := New(log.NewTestLogger(t), fs)

	opts := options.Program{
		Parameters: options.Parameters{Input: "/demo/intro.lua", Output: "/out"},
		Flags:      options.Flags{Assembler: "ca65", System: "pal"},
	}
	programs, err := p.Execute(context.Background(), opts, options.NewListing("ca65"))
	assert.NoError(t, err)
	assert.Len(t, programs, 1)

	prg, err := afero.ReadFile(fs, "/out/intro.prg")
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x08, 0x4c}, prg[:3])

	listing := readFile(t, fs, "/out/intro.asm")
	assert.Contains(t, listing, "; Part: intro")
	assert.Contains(t, listing, "\nintro:\n")
	assert.Contains(t, listing, "\nlogo:\n  .byte $01, $02, $03, $04")

	script := readFile(t, fs, "/out/intro.script")
	assert.Contains(t, script, `"intro.prg" $0801 $0002 $`)
	assert.Contains(t, script, `"pic.bin" $4000 $0000 $0100`)

	assert.Contains(t, script, fmt.Sprintf("\"intro.prg\" $0801 $0002 $%04x\n\n", len(prg)-2))
	assert.Equal(t, 1, strings.Count(script, "\n\n"))

	report := readFile(t, fs, "/out/intro.pages")
	assert.Contains(t, report, "; step 0: start")
	assert.Contains(t, report, "yield")
}

func TestExecuteOptions(t *testing.T) {
	fs := testFs(t)
	p := New(log.NewTestLogger(t), fs)

	opts := options.Program{
		Parameters:  options.Parameters{Input: "/demo/intro.lua"},
		Flags:       options.Flags{Assembler: "acme", System: "ntsc"},
		OutputFlags: options.OutputFlags{NoLoadScript: true},
	}
	_, err := p.Execute(context.Background(), opts, options.NewListing("acme"))
	assert.NoError(t, err)

	listing := readFile(t, fs, "/demo/intro.asm")
	assert.Contains(t, listing, "!cpu 6502")
	exists, err := afero.Exists(fs, "/demo/intro.script")
	assert.NoError(t, err)
	assert.False(t, exists)

	opts.Stdout = true
	opts.Output = "/stdout"
	programs, err := p.Execute(context.Background(), opts, options.NewListing("acme"))
	assert.NoError(t, err)
	assert.Len(t, programs, 1)
	exists, err = afero.Exists(fs, "/stdout/intro.prg")
	assert.NoError(t, err)
	assert.False(t, exists)
}

func TestExecuteErrors(t *testing.T) {
	fs := testFs(t)
	p := New(log.NewTestLogger(t), fs)

	opts := options.Program{
		Parameters: options.Parameters{Input: "/demo/missing.lua"},
		Flags:      options.Flags{Assembler: "ca65", System: "pal"},
	}
	_, err := p.Execute(context.Background(), opts, options.NewListing("ca65"))
	assert.ErrorContains(t, err, "running production script")

	opts.Input = "/demo/intro.lua"
	_, err = p.Execute(context.Background(), opts, options.NewListing("kickass"))
	assert.ErrorContains(t, err, "unsupported assembler 'kickass'")

	opts.System = "secam"
	_, err = p.Execute(context.Background(), opts, options.NewListing("ca65"))
	assert.ErrorContains(t, err, "selecting timing")
}

func TestExecuteWithProduction(t *testing.T) {
	timing, err := c64.TimingFor(c64.PAL)
	assert.NoError(t, err)

	b := timeline.NewBuilder("demo", timing)
	b.Part("one", 0x1000).Init().SetBorderColor(c64.Red)
	production, err := b.Build()
	assert.NoError(t, err)

	fs := afero.NewMemMapFs()
	p := New(log.NewTestLogger(t), fs)
	opts := options.Program{
		Parameters:  options.Parameters{Output: "/out"},
		Flags:       options.Flags{Assembler: "ca65", FrameCounter: 0x02},
		OutputFlags: options.OutputFlags{NoListing: true},
	}
	programs, err := p.ExecuteWithProduction(context.Background(), production, opts, options.NewListing("ca65"))
	assert.NoError(t, err)
	assert.Len(t, programs, 1)

	exists, err := afero.Exists(fs, "/out/one.asm")
	assert.NoError(t, err)
	assert.False(t, exists)
	exists, err = afero.Exists(fs, "/out/one.prg")
	assert.NoError(t, err)
	assert.True(t, exists)
}

func TestWriteMemoryReport(t *testing.T) {
	app := program.New("intro", 0x0801)
	app.Snapshots = []loader.Snapshot{{
		Step:   2,
		Label:  "yield",
		Ranges: []loader.Range{{Start: 0x0400, Length: 1000, Kind: loader.ScreenRange, Owner: "screen"}},
	}}

	buf := &bytes.Buffer{}
	assert.NoError(t, WriteMemoryReport(buf, app))
	out := buf.String()
	assert.Contains(t, out, "; Part: intro\n\n; step 2: yield\n")
	assert.Contains(t, out, ";   $0400-$07e7 display screen")
	assert.Contains(t, out, "f0: 00")
}
