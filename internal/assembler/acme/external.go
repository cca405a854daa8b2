// Package acme provides helpers to create acme assembler compatible asm output.
package acme

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

const assemblerName = "acme"

// AssembleUsingExternalApp calls the external assembler to generate a .prg
// file from the given asm file. Without a load address a plain memory image
// is written.
func AssembleUsingExternalApp(ctx context.Context, asmFile, outputFile string, loadAddress bool) error {
	if _, err := exec.LookPath(assemblerName); err != nil {
		return fmt.Errorf("%s is not installed", assemblerName)
	}

	format := "plain"
	if loadAddress {
		format = "cbm"
	}

	cmd := exec.CommandContext(ctx, assemblerName, "--format", format, "-o", outputFile, asmFile)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("assembling file: %s: %w", strings.TrimSpace(string(out)), err)
	}

	return nil
}
