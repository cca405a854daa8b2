package fileprocessor

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/retroenv/retrodemo/internal/options"
	"github.com/retroenv/retrodemo/internal/program"
	"github.com/retroenv/retrogolib/assert"
	"github.com/retroenv/retrogolib/log"
)

func testProgram() *program.Program {
	app := program.New("intro", 0x0801)
	app.AddSegment(&program.Segment{
		Name:    "intro",
		Address: 0x0801,
		Offsets: []program.Offset{{Address: 0x0801, OpcodeBytes: []byte{0x60}, Type: program.CodeOffset}},
	})
	return app
}

func TestProcessFile(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "intro.lua")
	source := `demo.part{ name = "intro" }:init():border(color.blue)`
	assert.NoError(t, os.WriteFile(input, []byte(source), 0o644))

	opts := options.Program{
		Parameters: options.Parameters{Input: input},
		Flags:      options.Flags{Assembler: "ca65", System: "pal", Quiet: true},
	}
	err := ProcessFile(context.Background(), log.NewTestLogger(t), opts, options.NewListing("ca65"))
	assert.NoError(t, err)

	prg, err := os.ReadFile(filepath.Join(dir, "intro.prg"))
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x08}, prg[:2])

	_, err = os.Stat(filepath.Join(dir, "intro.asm"))
	assert.NoError(t, err)
}

func TestWriteStdout(t *testing.T) {
	out, err := os.Create(filepath.Join(t.TempDir(), "out.prg"))
	assert.NoError(t, err)
	t.Cleanup(func() { _ = out.Close() })

	assert.NoError(t, WriteStdout(out, []*program.Program{testProgram()}))
	data, err := os.ReadFile(out.Name())
	assert.NoError(t, err)
	assert.Equal(t, []byte{0x01, 0x08, 0x60}, data)

	err = WriteStdout(out, []*program.Program{testProgram(), testProgram()})
	assert.ErrorContains(t, err, "got 2 parts")
}

func TestPrintBanner(t *testing.T) {
	logger := log.NewTestLogger(t)
	PrintBanner(logger, options.Program{}, "1.0.0", "0123456789abcdef", "2026-01-01")
	PrintBanner(logger, options.Program{Flags: options.Flags{Quiet: true}}, "dev", "", "")
}
