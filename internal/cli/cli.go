// Package cli handles command line interface logic
package cli

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"slices"
	"strings"

	"github.com/retroenv/retrodemo/internal/assembler"
	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/options"
)

// ParseFlags parses command line flags and returns program and listing options
func ParseFlags() (options.Program, options.Listing, error) {
	flags := flag.NewFlagSet(os.Args[0], flag.ExitOnError)
	var opts options.Program
	readOptionFlags(flags, &opts)

	err := flags.Parse(os.Args[1:])
	args := flags.Args()
	if err != nil || (len(args) == 0 && opts.Input == "") {
		return opts, options.Listing{}, &UsageError{flags: flags}
	}

	if err := validateArgs(args); err != nil {
		return opts, options.Listing{}, err
	}

	if err := normalizeOptions(&opts); err != nil {
		return opts, options.Listing{}, err
	}

	if len(args) > 0 {
		opts.Input = args[0]
	}

	listingOptions := options.NewListing(opts.Assembler)
	listingOptions.OffsetComments = !opts.NoOffsets

	if err := validateOptionCombinations(opts); err != nil {
		return opts, listingOptions, err
	}
	return opts, listingOptions, nil
}

// UsageError represents an error that should show usage information
type UsageError struct {
	flags *flag.FlagSet
	msg   string
}

func (e *UsageError) Error() string {
	return e.msg
}

func (e *UsageError) ShowUsage() {
	fmt.Printf("usage: retrodemo [options] <production script>\n\n")
	e.flags.PrintDefaults()
	fmt.Println()
}

// validateArgs checks if arguments are in correct order
func validateArgs(args []string) error {
	for i, arg := range args {
		if i > 0 && arg[0] == '-' {
			return &UsageError{
				msg: fmt.Sprintf("Potential argument %s found after production script, please pass the script as last argument", arg),
			}
		}
	}
	return nil
}

// normalizeOptions normalizes and validates option values
func normalizeOptions(opts *options.Program) error {
	opts.Assembler = strings.ToLower(opts.Assembler)
	opts.System = strings.ToLower(opts.System)

	validAssemblers := assembler.Names()
	if !slices.Contains(validAssemblers, opts.Assembler) {
		return fmt.Errorf("unsupported assembler: %s. Valid options: %s",
			opts.Assembler, strings.Join(validAssemblers, ", "))
	}

	if _, err := c64.TimingFor(c64.System(opts.System)); err != nil {
		return fmt.Errorf("unsupported system: %w", err)
	}

	if opts.LoaderEntry > 0xffff {
		return fmt.Errorf("loader entry $%x is outside of the address space", opts.LoaderEntry)
	}
	// the frame counter uses 2 bytes
	if opts.FrameCounter > 0xfe {
		return fmt.Errorf("frame counter $%x is not in the zero page", opts.FrameCounter)
	}
	return nil
}

// validateOptionCombinations rejects options that can not be used together
func validateOptionCombinations(opts options.Program) error {
	if opts.AssembleTest && opts.NoListing {
		return errors.New("verification needs the listing, -verify can not be combined with -nolisting")
	}
	if opts.AssembleTest && opts.Stdout {
		return errors.New("can not verify console output, -verify can not be combined with -stdout")
	}
	return nil
}

func readOptionFlags(flags *flag.FlagSet, opts *options.Program) {
	flags.StringVar(&opts.Input, "i", "", "name of the production script")
	flags.StringVar(&opts.Output, "o", "", "output directory, the script directory is used if no directory is given")
	flags.StringVar(&opts.Assets, "assets", "", "asset directory, the script directory is used if no directory is given")
	flags.StringVar(&opts.Assembler, "a", "ca65", "Assembler compatibility of the generated listings (acme/ca65)")
	flags.StringVar(&opts.System, "s", "pal", "video standard to generate timing for (pal/ntsc)")
	flags.UintVar(&opts.LoaderEntry, "loader", 0, "entry address of the resident loader, $0200 is used if no address is given")
	flags.UintVar(&opts.FrameCounter, "framecounter", 0, "zero page address of the 16 bit frame counter, $fb is used if no address is given")
	flags.BoolVar(&opts.Debug, "debug", false, "enable debugging options for extended logging")
	flags.BoolVar(&opts.Quiet, "q", false, "perform operations quietly")
	flags.BoolVar(&opts.AssembleTest, "verify", false, "verify the generated listings by assembling them and check if they match the compiled parts")
	flags.BoolVar(&opts.NoListing, "nolisting", false, "do not write assembly listings")
	flags.BoolVar(&opts.NoOffsets, "nooffsets", false, "do not output addresses in listing comments")
	flags.BoolVar(&opts.NoLoadScript, "noloadscript", false, "do not write loader scripts")
	flags.BoolVar(&opts.Stdout, "stdout", false, "write the PRG of a single part production to stdout")
}
