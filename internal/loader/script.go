package loader

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
)

// WriteScript writes the requests in the script format of the Spindle disk
// packer. The startup entries form the first group that is loaded when the
// disk boots, every following group is loaded by one yield point. Groups are
// separated by blank lines.
func WriteScript(w io.Writer, startup []Request, groups [][]*Request) error {
	bw := bufio.NewWriter(w)

	var blocks [][]Request
	if len(startup) > 0 {
		blocks = append(blocks, startup)
	}
	for _, group := range groups {
		block := make([]Request, 0, len(group))
		for _, req := range group {
			block = append(block, *req)
		}
		blocks = append(blocks, block)
	}

	for i, block := range blocks {
		if i > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return fmt.Errorf("writing script: %w", err)
			}
		}
		for _, req := range block {
			if _, err := fmt.Fprintf(bw, "%s $%04x $%04x $%04x\n",
				strconv.Quote(req.Asset), req.Destination, req.Offset, req.Length); err != nil {
				return fmt.Errorf("writing script: %w", err)
			}
		}
	}

	if err := bw.Flush(); err != nil {
		return fmt.Errorf("writing script: %w", err)
	}
	return nil
}
