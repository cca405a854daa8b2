package timeline

import (
	"errors"
	"fmt"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrodemo/internal/instruction"
	"github.com/retroenv/retrodemo/internal/raster"
)

var errBuilt = errors.New("production was already built")

// Builder declares a production. Methods can be chained, the first error
// is kept and returned by Build.
type Builder struct {
	production *Production
	err        error
	built      bool
}

// NewBuilder returns a builder for a production using the given timing.
func NewBuilder(name string, timing c64.Timing) *Builder {
	return &Builder{
		production: &Production{Name: name, Timing: timing},
	}
}

// Err returns the first error recorded by the builder.
func (b *Builder) Err() error {
	return b.err
}

func (b *Builder) fail(err error) {
	if b.err == nil {
		b.err = err
	}
}

func (b *Builder) failf(format string, args ...any) {
	b.fail(fmt.Errorf(format, args...))
}

// writable records an error if the production was already built.
func (b *Builder) writable() bool {
	if b.built {
		b.fail(errBuilt)
		return false
	}
	return true
}

// Timing returns the video timing of the production.
func (b *Builder) Timing() c64.Timing {
	return b.production.Timing
}

// Part adds a part with code starting at the given address.
func (b *Builder) Part(name string, start uint16) *PartBuilder {
	part := &Part{Name: name, Start: start, Symbols: map[string]uint16{}}
	pb := &PartBuilder{b: b, part: part}
	if !b.writable() {
		return pb
	}
	if _, ok := b.production.Part(name); ok {
		b.failf("duplicate part '%s'", name)
		return pb
	}
	b.production.Parts = append(b.production.Parts, part)
	return pb
}

// Build validates the references between the declarations and returns the
// production.
func (b *Builder) Build() (*Production, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.production.Parts) == 0 {
		return nil, fmt.Errorf("production '%s' has no parts", b.production.Name)
	}
	for _, part := range b.production.Parts {
		if err := checkPart(part); err != nil {
			return nil, fmt.Errorf("part '%s': %w", part.Name, err)
		}
	}
	b.built = true
	return b.production, nil
}

type namedStream struct {
	name string
	ops  []Op
}

func checkPart(part *Part) error {
	streams := []namedStream{
		{"init", part.Init},
		{"background", part.Background},
	}
	for _, chain := range part.Chains {
		if len(chain.Handlers) == 0 {
			return fmt.Errorf("chain '%s' has no handlers", chain.Name)
		}
		for _, h := range chain.Handlers {
			streams = append(streams, namedStream{fmt.Sprintf("chain '%s' slot %d", chain.Name, h.Slot), h.Ops})
		}
	}
	for _, sub := range part.Subroutines {
		streams = append(streams, namedStream{"subroutine '" + sub.Name + "'", sub.Ops})
	}

	for _, stream := range streams {
		for _, op := range stream.ops {
			switch op := op.(type) {
			case PlayMusic:
				if part.Music == nil {
					return fmt.Errorf("%s: playing music without music", stream.name)
				}
			case SwitchChain:
				if _, ok := part.Chain(op.Chain); !ok {
					return fmt.Errorf("%s: unknown chain '%s'", stream.name, op.Chain)
				}
			}
		}
	}
	return nil
}

// PartBuilder declares a part.
type PartBuilder struct {
	b    *Builder
	part *Part
}

// Vector selects the interrupt vector of the part.
func (p *PartBuilder) Vector(vector raster.Vector) *PartBuilder {
	p.part.Vector = vector
	return p
}

// BankMethod selects how the VIC bank is switched.
func (p *PartBuilder) BankMethod(method c64.BankMethod) *PartBuilder {
	p.part.BankMethod = method
	return p
}

// Include places an asset at an address and names it with a label.
func (p *PartBuilder) Include(address uint16, asset, label string) *PartBuilder {
	if label != "" && !p.validName(label) {
		return p
	}
	p.part.Includes = append(p.part.Includes, Include{Address: address, Asset: asset, Label: label})
	return p
}

// Music sets the music of the part. The asset is placed at its own load
// address.
func (p *PartBuilder) Music(asset string, init, play uint16, cycles int) *PartBuilder {
	if cycles <= 0 {
		p.b.failf("part '%s': music cycles must be positive", p.part.Name)
		return p
	}
	p.part.Music = &Music{Asset: asset, Init: init, Play: play, Cycles: cycles}
	return p
}

// Song selects the tune that the music init routine is called with.
func (p *PartBuilder) Song(song byte) *PartBuilder {
	if p.part.Music == nil {
		p.b.failf("part '%s': song without music", p.part.Name)
		return p
	}
	p.part.Music.Song = song
	return p
}

// MusicAddress places the music at an address other than its load address.
func (p *PartBuilder) MusicAddress(address uint16) *PartBuilder {
	if p.part.Music == nil {
		p.b.failf("part '%s': music address without music", p.part.Name)
		return p
	}
	p.part.Music.Address = address
	return p
}

// Symbol defines a constant.
func (p *PartBuilder) Symbol(name string, value uint16) *PartBuilder {
	if p.validName(name) {
		p.part.Symbols[name] = value
	}
	return p
}

// Export makes labels of the part visible to other parts.
func (p *PartBuilder) Export(names ...string) *PartBuilder {
	for _, name := range names {
		if p.validName(name) {
			p.part.Exports = append(p.part.Exports, name)
		}
	}
	return p
}

// Next sets the symbol that the background jumps to when it is done.
func (p *PartBuilder) Next(symbol string) *PartBuilder {
	if p.validName(symbol) {
		p.part.Next = symbol
	}
	return p
}

// Init returns the stream that runs once before the first chain is armed.
func (p *PartBuilder) Init() *Stream {
	return &Stream{b: p.b, part: p.part, ops: &p.part.Init, kind: initStream, name: "init"}
}

// Background returns the stream that runs outside of interrupts.
func (p *PartBuilder) Background() *Stream {
	return &Stream{b: p.b, part: p.part, ops: &p.part.Background, kind: backgroundStream, name: "background"}
}

// Chain returns the chain with the given name, creating it if needed.
func (p *PartBuilder) Chain(name string) *ChainBuilder {
	chain, ok := p.part.Chain(name)
	if !ok {
		chain = &Chain{Name: name}
		if p.validName(name) && p.b.writable() {
			p.part.Chains = append(p.part.Chains, chain)
		}
	}
	return &ChainBuilder{p: p, chain: chain}
}

// Subroutine adds a subroutine and returns its stream.
func (p *PartBuilder) Subroutine(name string) *Stream {
	sub := &Subroutine{Name: name}
	s := &Stream{b: p.b, part: p.part, ops: &sub.Ops, kind: subroutineStream, name: "subroutine '" + name + "'"}
	if !p.validName(name) || !p.b.writable() {
		return s
	}
	for _, existing := range p.part.Subroutines {
		if existing.Name == name {
			p.b.failf("part '%s': duplicate subroutine '%s'", p.part.Name, name)
			return s
		}
	}
	p.part.Subroutines = append(p.part.Subroutines, sub)
	s.sub = sub
	return s
}

func (p *PartBuilder) validName(name string) bool {
	op, err := instruction.ParseOperand(name)
	if err != nil || !op.IsSymbolic() || op.Offset != 0 || op.Select != instruction.Full {
		p.b.failf("part '%s': invalid name '%s'", p.part.Name, name)
		return false
	}
	return true
}

// ChainBuilder declares the handlers of a chain.
type ChainBuilder struct {
	p     *PartBuilder
	chain *Chain
}

// Handler adds a handler for a slot that triggers at a raster line.
func (c *ChainBuilder) Handler(slot int, trigger uint16) *HandlerBuilder {
	h := &Handler{Slot: slot, Trigger: trigger}
	hb := &HandlerBuilder{
		Stream: Stream{
			b:    c.p.b,
			part: c.p.part,
			ops:  &h.Ops,
			kind: handlerStream,
			name: fmt.Sprintf("chain '%s' slot %d", c.chain.Name, slot),
		},
		handler: h,
	}
	if c.p.b.writable() {
		c.chain.Handlers = append(c.chain.Handlers, h)
	}
	return hb
}

// HandlerBuilder configures a handler and declares its body.
type HandlerBuilder struct {
	Stream
	handler *Handler
}

// Next sets the successor slot.
func (h *HandlerBuilder) Next(slot int) *HandlerBuilder {
	h.handler.Next = slot
	return h
}

// ReArm sets the line that the handler arms explicitly.
func (h *HandlerBuilder) ReArm(line uint16) *HandlerBuilder {
	h.handler.ReArm = &line
	return h
}

// Timer computes the re-arm line as the trigger plus delta lines.
func (h *HandlerBuilder) Timer(delta uint16) *HandlerBuilder {
	h.handler.Timer = true
	h.handler.ReArmDelta = delta
	return h
}

// Ticks fires a timer handler n times in a row, each timer delta lines
// after the previous one, before it arms its successor.
func (h *HandlerBuilder) Ticks(n int) *HandlerBuilder {
	h.handler.Ticks = n
	return h
}

// Stabilize starts the body at a fixed cycle of the raster line.
func (h *HandlerBuilder) Stabilize() *HandlerBuilder {
	h.handler.Stabilize = true
	return h
}

// Priority orders handlers sharing a trigger line.
func (h *HandlerBuilder) Priority(priority int) *HandlerBuilder {
	h.handler.Priority = priority
	return h
}

type streamKind uint8

const (
	initStream streamKind = iota
	backgroundStream
	handlerStream
	subroutineStream
)

// Stream appends ops to the init, background, handler or subroutine stream
// of a part.
type Stream struct {
	b    *Builder
	part *Part
	ops  *[]Op
	kind streamKind
	name string
	sub  *Subroutine
}

func (s *Stream) add(op Op) *Stream {
	if s.b.writable() {
		*s.ops = append(*s.ops, op)
	}
	return s
}

func (s *Stream) failf(op Op, format string, args ...any) *Stream {
	s.b.failf("part '%s' %s: %s: %s", s.part.Name, s.name, op.Name(), fmt.Sprintf(format, args...))
	return s
}

func (s *Stream) operand(op Op, value string) (instruction.Operand, bool) {
	operand, err := instruction.ParseOperand(value)
	if err != nil {
		s.failf(op, "%v", err)
		return instruction.Operand{}, false
	}
	return operand, true
}

func (s *Stream) only(op Op, kinds ...streamKind) bool {
	for _, kind := range kinds {
		if s.kind == kind {
			return true
		}
	}
	s.failf(op, "not allowed in the %s stream", s.name)
	return false
}

// Cycles sets the worst case cost that calls of the subroutine account
// for, instead of the computed one.
func (s *Stream) Cycles(cycles int) *Stream {
	if s.kind != subroutineStream {
		s.b.failf("part '%s' %s: cycles can only be set for subroutines", s.part.Name, s.name)
		return s
	}
	if s.sub != nil {
		s.sub.Cycles = cycles
	}
	return s
}

// SetBorderColor sets the border color.
func (s *Stream) SetBorderColor(color c64.Color) *Stream {
	return s.add(SetBorderColor{Color: color})
}

// SetBackgroundColor sets the background color.
func (s *Stream) SetBackgroundColor(color c64.Color) *Stream {
	return s.add(SetBackgroundColor{Color: color})
}

// SetBorderAndBackground sets the border and background colors.
func (s *Stream) SetBorderAndBackground(border, background c64.Color) *Stream {
	return s.add(SetBorderAndBackground{Border: border, Background: background})
}

// SetBank selects the VIC bank 0-3.
func (s *Stream) SetBank(bank byte) *Stream {
	op := SetBank{Bank: bank}
	if bank > 3 {
		return s.failf(op, "invalid bank %d", bank)
	}
	return s.add(op)
}

// WriteD011 writes control register 1.
func (s *Stream) WriteD011(value byte) *Stream {
	return s.add(WriteD011{Value: value})
}

// UpdateD011 sets and clears bits of control register 1.
func (s *Stream) UpdateD011(set, clear byte) *Stream {
	op := UpdateD011{Set: set, Clear: clear}
	if set&clear != 0 {
		return s.failf(op, "bits $%02x are set and cleared", set&clear)
	}
	return s.add(op)
}

// WriteD016 writes control register 2.
func (s *Stream) WriteD016(value byte) *Stream {
	return s.add(WriteD016{Value: value})
}

// LoadD016 copies a zero page byte to control register 2.
func (s *Stream) LoadD016(zeroPage byte) *Stream {
	return s.add(LoadD016{ZeroPage: zeroPage})
}

// SetVideoMode switches the video mode.
func (s *Stream) SetVideoMode(mode emit.VideoMode) *Stream {
	return s.add(SetVideoMode{Mode: mode})
}

// SetScreenAndBitmap points the VIC-II to a screen and a bitmap.
func (s *Stream) SetScreenAndBitmap(screen, bitmap uint16) *Stream {
	op := SetScreenAndBitmap{Screen: screen, Bitmap: bitmap}
	if _, _, err := c64.ScreenAndBitmap(screen, bitmap); err != nil {
		return s.failf(op, "%v", err)
	}
	return s.add(op)
}

// SetScreenAndCharset points the VIC-II to a screen and a character set.
func (s *Stream) SetScreenAndCharset(screen, charset uint16) *Stream {
	op := SetScreenAndCharset{Screen: screen, Charset: charset}
	if _, _, err := c64.ScreenAndCharset(screen, charset); err != nil {
		return s.failf(op, "%v", err)
	}
	return s.add(op)
}

// Copy copies length bytes from source to destination.
func (s *Stream) Copy(source, destination string, length int) *Stream {
	op := Copy{Length: length}
	var ok bool
	if op.Source, ok = s.operand(op, source); !ok {
		return s
	}
	if op.Destination, ok = s.operand(op, destination); !ok {
		return s
	}
	if length < 0 || length > 0xffff {
		return s.failf(op, "invalid length %d", length)
	}
	return s.add(op)
}

// Fill fills length bytes at destination with a value.
func (s *Stream) Fill(destination string, value byte, length int) *Stream {
	op := Fill{Value: value, Length: length}
	var ok bool
	if op.Destination, ok = s.operand(op, destination); !ok {
		return s
	}
	if length < 0 || length > 0xffff {
		return s.failf(op, "invalid length %d", length)
	}
	return s.add(op)
}

// Delay waits an exact number of cycles.
func (s *Stream) Delay(cycles int) *Stream {
	op := Delay{Cycles: cycles}
	if cycles == 1 || cycles < 0 {
		return s.failf(op, "%v", &emit.UnachievableDelayError{Cycles: cycles})
	}
	return s.add(op)
}

// Call calls a subroutine of the part, its cost is computed.
func (s *Stream) Call(target string) *Stream {
	return s.CallCycles(target, 0)
}

// CallCycles calls a subroutine with a known worst case cost.
func (s *Stream) CallCycles(target string, cycles int) *Stream {
	op := Call{Cycles: cycles}
	var ok bool
	if op.Target, ok = s.operand(op, target); !ok {
		return s
	}
	return s.add(op)
}

// PlayMusic calls the play routine of the music.
func (s *Stream) PlayMusic() *Stream {
	return s.add(PlayMusic{})
}

// CallWithInterval calls a subroutine every frames executions of the
// handler.
func (s *Stream) CallWithInterval(target string, frames byte) *Stream {
	op := CallWithInterval{Frames: frames}
	if !s.only(op, handlerStream) {
		return s
	}
	if frames == 0 {
		return s.failf(op, "interval of 0 frames")
	}
	var ok bool
	if op.Target, ok = s.operand(op, target); !ok {
		return s
	}
	return s.add(op)
}

// WriteByte writes a value to an address.
func (s *Stream) WriteByte(address string, value byte) *Stream {
	op := WriteByte{Value: value}
	var ok bool
	if op.Address, ok = s.operand(op, address); !ok {
		return s
	}
	return s.add(op)
}

// Label names the address of the next op.
func (s *Stream) Label(name string) *Stream {
	op := Label{Label: name}
	operand, ok := s.operand(op, name)
	if !ok {
		return s
	}
	if !operand.IsSymbolic() || operand.Offset != 0 || operand.Select != instruction.Full {
		return s.failf(op, "invalid label '%s'", name)
	}
	return s.add(op)
}

// Raw inserts bytes that take the given number of cycles.
func (s *Stream) Raw(cycles int, data ...byte) *Stream {
	return s.add(Raw{Data: data, Cycles: cycles})
}

// WaitUntil waits until a timestamp of the timeline, formatted as
// MM:SS.FF, MM:SS:FF or HH:MM:SS:FF.
func (s *Stream) WaitUntil(timestamp string) *Stream {
	op := WaitUntil{}
	if !s.only(op, backgroundStream) {
		return s
	}
	frame, err := s.b.production.Timing.FramesFromTimestamp(timestamp)
	if err != nil {
		return s.failf(op, "%v", err)
	}
	if frame > 0xffff {
		return s.failf(op, "timestamp '%s' is after the last countable frame", timestamp)
	}
	op.Frame = uint16(frame)
	return s.add(op)
}

// SwitchChain makes another chain of the part the running one.
func (s *Stream) SwitchChain(chain string) *Stream {
	return s.add(SwitchChain{Chain: chain})
}

// Load queues a load of the start of an asset.
func (s *Stream) Load(destination uint16, asset string, length int, keepLoading bool) *Stream {
	return s.LoadChunk(destination, asset, 0, length, keepLoading)
}

// LoadChunk queues a load of a part of an asset.
func (s *Stream) LoadChunk(destination uint16, asset string, offset, length int, keepLoading bool) *Stream {
	op := Load{Destination: destination, Asset: asset, Offset: offset, Length: length, KeepLoading: keepLoading}
	if !s.only(op, backgroundStream) {
		return s
	}
	return s.add(op)
}

// Yield hands control to the loader until the next load group completed.
func (s *Stream) Yield() *Stream {
	op := Yield{}
	if !s.only(op, backgroundStream) {
		return s
	}
	return s.add(op)
}

// JumpTo continues execution at an address.
func (s *Stream) JumpTo(target string) *Stream {
	op := JumpTo{}
	var ok bool
	if op.Target, ok = s.operand(op, target); !ok {
		return s
	}
	return s.add(op)
}
