package ca65

import (
	"fmt"
	"strings"
)

const (
	memoryConfigStart = `
MEMORY {
`

	memoryLoadAddress = `    LOADADDR:    start = $%04X,  size = $0002,   type = ro, file = %%O;
`

	memoryMain = `    MAIN:        start = $%04X,  size = $%04X,   type = rw, file = %%O;
}
`

	segmentsConfigStart = `
SEGMENTS {
`

	segmentsLoadAddress = `    LOADADDR:    load = LOADADDR, type = ro;
`

	segmentsMain = `    CODE:        load = MAIN,     type = rw;
}
`
)

// GenerateLinkerConfig generates a ld65 linker config for a program that
// starts at the given address. With a load address the linked file is a
// PRG file, otherwise a plain memory image.
func GenerateLinkerConfig(start uint16, loadAddress bool) (string, error) {
	if loadAddress && start < 2 {
		return "", fmt.Errorf("program start $%04x leaves no room for the load address", start)
	}

	buf := &strings.Builder{}
	buf.WriteString(memoryConfigStart)
	if loadAddress {
		fmt.Fprintf(buf, memoryLoadAddress, start-2)
	}
	fmt.Fprintf(buf, memoryMain, start, 0x10000-int(start))

	buf.WriteString(segmentsConfigStart)
	if loadAddress {
		buf.WriteString(segmentsLoadAddress)
	}
	buf.WriteString(segmentsMain)
	return buf.String(), nil
}
