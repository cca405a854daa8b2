package ca65

import "github.com/retroenv/retrodemo/internal/writer"

// ParamConfig configures the instruction parameter string converter.
var ParamConfig = writer.ParamConfig{
	ZeroPagePrefix: "z:",
	AbsolutePrefix: "a:",
}
