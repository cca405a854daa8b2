package pipeline

import (
	"fmt"
	"io"

	"github.com/retroenv/retrodemo/internal/program"
)

// WriteMemoryReport writes the live memory of all recorded snapshots of a
// part, each as a list of ranges followed by its page flag table.
func WriteMemoryReport(w io.Writer, app *program.Program) error {
	if _, err := fmt.Fprintf(w, "; Part: %s\n", app.Name); err != nil {
		return fmt.Errorf("writing report header: %w", err)
	}

	for _, snapshot := range app.Snapshots {
		if _, err := fmt.Fprintf(w, "\n; step %d: %s\n", snapshot.Step, snapshot.Label); err != nil {
			return fmt.Errorf("writing snapshot header: %w", err)
		}
		for _, r := range snapshot.Ranges {
			if _, err := fmt.Fprintf(w, ";   %s %-20s %s\n", r, r.Kind, r.Owner); err != nil {
				return fmt.Errorf("writing range: %w", err)
			}
		}
		if err := snapshot.Pages.Write(w); err != nil {
			return fmt.Errorf("writing page table: %w", err)
		}
	}
	return nil
}
