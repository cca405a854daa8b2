package timeline

import (
	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrodemo/internal/instruction"
)

// Op is a semantic operation of a stream. The compiler lowers every op
// through the emitter.
type Op interface {
	Name() string
}

// SetBorderColor sets the border color.
type SetBorderColor struct {
	Color c64.Color
}

// SetBackgroundColor sets the background color.
type SetBackgroundColor struct {
	Color c64.Color
}

// SetBorderAndBackground sets the border and background colors.
type SetBorderAndBackground struct {
	Border     c64.Color
	Background c64.Color
}

// SetBank selects the VIC bank, the method is configured per part.
type SetBank struct {
	Bank byte
}

// WriteD011 writes the full control register 1.
type WriteD011 struct {
	Value byte
}

// UpdateD011 sets and clears bits of control register 1.
type UpdateD011 struct {
	Set   byte
	Clear byte
}

// WriteD016 writes the full control register 2.
type WriteD016 struct {
	Value byte
}

// LoadD016 copies a zero page byte to control register 2.
type LoadD016 struct {
	ZeroPage byte
}

// SetVideoMode switches the video mode.
type SetVideoMode struct {
	Mode emit.VideoMode
}

// SetScreenAndBitmap points the VIC-II to a screen and a bitmap.
type SetScreenAndBitmap struct {
	Screen uint16
	Bitmap uint16
}

// SetScreenAndCharset points the VIC-II to a screen and a character set.
type SetScreenAndCharset struct {
	Screen  uint16
	Charset uint16
}

// Copy copies a memory region.
type Copy struct {
	Source      instruction.Operand
	Destination instruction.Operand
	Length      int
}

// Fill fills a memory region with a value.
type Fill struct {
	Destination instruction.Operand
	Value       byte
	Length      int
}

// Delay waits an exact number of cycles.
type Delay struct {
	Cycles int
}

// Call calls a subroutine with a known worst case cycle cost.
type Call struct {
	Target instruction.Operand
	Cycles int
}

// PlayMusic calls the play routine of the part's music.
type PlayMusic struct{}

// CallWithInterval calls a subroutine every Frames executions of the
// handler that contains it. It is only valid in interrupt handlers.
type CallWithInterval struct {
	Target instruction.Operand
	Frames byte
	Cycles int
}

// WriteByte writes a byte to an address.
type WriteByte struct {
	Address instruction.Operand
	Value   byte
}

// Label names the address of the following op.
type Label struct {
	Label string
}

// Raw inserts bytes with a known cycle cost.
type Raw struct {
	Data   []byte
	Cycles int
}

// WaitUntil waits until the frame counter of the part reaches a frame.
// It is only valid in the background stream.
type WaitUntil struct {
	Frame uint16
}

// SwitchChain makes another chain of the part the running one.
type SwitchChain struct {
	Chain string
}

// Load queues a load request. It is only valid in the background stream.
type Load struct {
	Destination uint16
	Asset       string
	Offset      int
	Length      int
	KeepLoading bool
}

// Yield hands control to the loader until the next group of loads is
// complete. It is only valid in the background stream.
type Yield struct{}

// JumpTo continues execution at an address.
type JumpTo struct {
	Target instruction.Operand
}

func (SetBorderColor) Name() string         { return "set_border_color" }
func (SetBackgroundColor) Name() string     { return "set_background_color" }
func (SetBorderAndBackground) Name() string { return "set_border_and_background" }
func (SetBank) Name() string                { return "set_bank" }
func (WriteD011) Name() string              { return "write_d011" }
func (UpdateD011) Name() string             { return "update_d011" }
func (WriteD016) Name() string              { return "write_d016" }
func (LoadD016) Name() string               { return "load_d016" }
func (SetVideoMode) Name() string           { return "set_video_mode" }
func (SetScreenAndBitmap) Name() string     { return "set_screen_and_bitmap" }
func (SetScreenAndCharset) Name() string    { return "set_screen_and_charset" }
func (Copy) Name() string                   { return "copy" }
func (Fill) Name() string                   { return "fill" }
func (Delay) Name() string                  { return "delay" }
func (Call) Name() string                   { return "call" }
func (PlayMusic) Name() string              { return "play_music" }
func (CallWithInterval) Name() string       { return "call_with_interval" }
func (WriteByte) Name() string              { return "write_byte" }
func (Label) Name() string                  { return "label" }
func (Raw) Name() string                    { return "raw" }
func (WaitUntil) Name() string              { return "wait_until" }
func (SwitchChain) Name() string            { return "switch_chain" }
func (Load) Name() string                   { return "load" }
func (Yield) Name() string                  { return "yield" }
func (JumpTo) Name() string                 { return "jump" }
