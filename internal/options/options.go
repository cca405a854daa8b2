// Package options contains the program options.
package options

import (
	"strings"
)

// Parameters contains file path options.
type Parameters struct {
	Input  string `flag:"i" usage:"production script (.lua)"`
	Output string `flag:"o" usage:"output directory (default: script directory)"`
	Assets string `flag:"assets" usage:"asset directory (default: script directory)"`
}

// Flags contains behavior options.
type Flags struct {
	Assembler    string `flag:"a" usage:"listing format: ca65, acme" default:"ca65"`
	System       string `flag:"s" usage:"video standard: pal, ntsc" default:"pal"`
	LoaderEntry  uint   `flag:"loader" usage:"entry address of the resident loader (default: $0200)"`
	FrameCounter uint   `flag:"framecounter" usage:"zero page address of the frame counter (default: $fb)"`
	AssembleTest bool   `flag:"verify" usage:"verify the listing by reassembling and comparing to the compiled PRG"`
	Debug        bool   `flag:"debug" usage:"enable debug logging"`
	Quiet        bool   `flag:"q" usage:"quiet mode"`
}

// OutputFlags contains output formatting options.
type OutputFlags struct {
	NoListing    bool `flag:"nolisting" usage:"do not write assembly listings"`
	NoOffsets    bool `flag:"nooffsets" usage:"omit addresses in listing comments"`
	NoLoadScript bool `flag:"noloadscript" usage:"do not write loader scripts"`
	Stdout       bool `flag:"stdout" usage:"write the PRG of a single part production to stdout"`
}

// Program options of the compiler.
type Program struct {
	Parameters
	Flags
	OutputFlags
}

// Listing defines options to control the assembly listing output.
type Listing struct {
	Assembler      string // what assembler to use
	CodeOnly       bool   // omit header comments and the load address
	OffsetComments bool
}

// NewListing returns a new listing options instance with default options.
func NewListing(assemblerName string) Listing {
	return Listing{
		Assembler:      strings.ToLower(assemblerName),
		OffsetComments: true,
	}
}
