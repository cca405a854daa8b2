package acme

import "github.com/retroenv/retrodemo/internal/writer"

// ParamConfig configures the instruction parameter string converter.
var ParamConfig = writer.ParamConfig{
	ZeroPageSuffix: "+1",
	AbsoluteSuffix: "+2",
}
