package script

import (
	"fmt"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/emit"
	"github.com/retroenv/retrodemo/internal/timeline"
	lua "github.com/yuin/gopher-lua"
)

var partMethods = map[string]lua.LGFunction{
	"include": partFunc(func(L *lua.LState, p *timeline.PartBuilder) {
		p.Include(checkAddress(L, 2), L.CheckString(3), L.OptString(4, ""))
	}),
	"music":      partMusic,
	"symbol":     partFunc(func(L *lua.LState, p *timeline.PartBuilder) { p.Symbol(L.CheckString(2), checkAddress(L, 3)) }),
	"export":     partExport,
	"init":       partStream(func(p *timeline.PartBuilder) *timeline.Stream { return p.Init() }),
	"bg":         partStream(func(p *timeline.PartBuilder) *timeline.Stream { return p.Background() }),
	"irq":        partIRQ,
	"subroutine": partSubroutine,
	"load": partFunc(func(L *lua.LState, p *timeline.PartBuilder) {
		p.Background().Load(checkAddress(L, 2), L.CheckString(3), L.CheckInt(4), L.OptBool(5, false))
	}),
}

var streamMethods = map[string]lua.LGFunction{
	"border":     streamFunc(func(L *lua.LState, s *timeline.Stream) { s.SetBorderColor(checkColor(L, 2)) }),
	"background": streamFunc(func(L *lua.LState, s *timeline.Stream) { s.SetBackgroundColor(checkColor(L, 2)) }),
	"colors": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.SetBorderAndBackground(checkColor(L, 2), checkColor(L, 3))
	}),
	"bank":       streamFunc(func(L *lua.LState, s *timeline.Stream) { s.SetBank(checkByte(L, 2)) }),
	"d011":       streamFunc(func(L *lua.LState, s *timeline.Stream) { s.WriteD011(checkByte(L, 2)) }),
	"update_d011": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.UpdateD011(checkByte(L, 2), checkByte(L, 3))
	}),
	"d016":      streamFunc(func(L *lua.LState, s *timeline.Stream) { s.WriteD016(checkByte(L, 2)) }),
	"load_d016": streamFunc(func(L *lua.LState, s *timeline.Stream) { s.LoadD016(checkByte(L, 2)) }),
	"mode": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		mode, err := emit.ParseVideoMode(L.CheckString(2))
		if err != nil {
			L.ArgError(2, err.Error())
			return
		}
		s.SetVideoMode(mode)
	}),
	"screen_bitmap": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.SetScreenAndBitmap(checkAddress(L, 2), checkAddress(L, 3))
	}),
	"screen_charset": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.SetScreenAndCharset(checkAddress(L, 2), checkAddress(L, 3))
	}),
	"copy": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.Copy(checkOperand(L, 2), checkOperand(L, 3), L.CheckInt(4))
	}),
	"fill": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.Fill(checkOperand(L, 2), checkByte(L, 3), L.CheckInt(4))
	}),
	"delay": streamFunc(func(L *lua.LState, s *timeline.Stream) { s.Delay(L.CheckInt(2)) }),
	"call": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.CallCycles(checkOperand(L, 2), L.OptInt(3, 0))
	}),
	"play_music": streamFunc(func(_ *lua.LState, s *timeline.Stream) { s.PlayMusic() }),
	"call_every": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.CallWithInterval(checkOperand(L, 2), checkByte(L, 3))
	}),
	"write": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.WriteByte(checkOperand(L, 2), checkByte(L, 3))
	}),
	"label": streamFunc(func(L *lua.LState, s *timeline.Stream) { s.Label(L.CheckString(2)) }),
	"raw": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		cycles := L.CheckInt(2)
		var data []byte
		for i := 3; i <= L.GetTop(); i++ {
			data = append(data, checkByte(L, i))
		}
		s.Raw(cycles, data...)
	}),
	"wait":   streamFunc(func(L *lua.LState, s *timeline.Stream) { s.WaitUntil(L.CheckString(2)) }),
	"switch": streamFunc(func(L *lua.LState, s *timeline.Stream) { s.SwitchChain(L.CheckString(2)) }),
	"load": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.Load(checkAddress(L, 2), L.CheckString(3), L.CheckInt(4), L.OptBool(5, false))
	}),
	"load_chunk": streamFunc(func(L *lua.LState, s *timeline.Stream) {
		s.LoadChunk(checkAddress(L, 2), L.CheckString(3), L.CheckInt(4), L.CheckInt(5), L.OptBool(6, false))
	}),
	"yield": streamFunc(func(_ *lua.LState, s *timeline.Stream) { s.Yield() }),
	"jump":  streamFunc(func(L *lua.LState, s *timeline.Stream) { s.JumpTo(checkOperand(L, 2)) }),
}

// partMusic implements part:music{asset=, init=, play=, cycles=, song=, address=}.
func partMusic(L *lua.LState) int {
	p := checkPart(L)
	opts := L.CheckTable(2)
	asset := stringField(L, opts, "asset", "")
	if asset == "" {
		L.ArgError(2, "music needs an asset")
		return 0
	}
	p.Music(asset, addressField(L, opts, "init", 0), addressField(L, opts, "play", 0), intField(L, opts, "cycles", 0))
	if song := intField(L, opts, "song", 0); song != 0 {
		p.Song(byte(song))
	}
	if address := addressField(L, opts, "address", 0); address != 0 {
		p.MusicAddress(address)
	}
	L.Push(L.Get(1))
	return 1
}

func partExport(L *lua.LState) int {
	p := checkPart(L)
	for i := 2; i <= L.GetTop(); i++ {
		p.Export(L.CheckString(i))
	}
	L.Push(L.Get(1))
	return 1
}

// partIRQ implements part:irq{chain=, slot=, line=, next=, rearm=, timer=,
// ticks=, stabilize=, priority=} and returns the stream of the handler.
func partIRQ(L *lua.LState) int {
	p := checkPart(L)
	opts := L.CheckTable(2)
	slot := intField(L, opts, "slot", 0)
	line := lineField(L, opts, "line")
	if slot < 1 {
		L.ArgError(2, "irq needs a slot of at least 1")
		return 0
	}

	h := p.Chain(stringField(L, opts, "chain", "main")).Handler(slot, line)
	if next := intField(L, opts, "next", 0); next != 0 {
		h.Next(next)
	}
	if opts.RawGetString("rearm") != lua.LNil {
		h.ReArm(lineField(L, opts, "rearm"))
	}
	if opts.RawGetString("timer") != lua.LNil {
		h.Timer(lineField(L, opts, "timer"))
	}
	if ticks := intField(L, opts, "ticks", 0); ticks > 1 {
		h.Ticks(ticks)
	}
	if boolField(L, opts, "stabilize") {
		h.Stabilize()
	}
	if priority := intField(L, opts, "priority", 0); priority != 0 {
		h.Priority(priority)
	}

	L.Push(wrap(L, &h.Stream, streamTypeName))
	return 1
}

// partSubroutine implements part:subroutine(name, cycles).
func partSubroutine(L *lua.LState) int {
	p := checkPart(L)
	s := p.Subroutine(L.CheckString(2))
	if cycles := L.OptInt(3, 0); cycles > 0 {
		s.Cycles(cycles)
	}
	L.Push(wrap(L, s, streamTypeName))
	return 1
}

func partFunc(f func(L *lua.LState, p *timeline.PartBuilder)) lua.LGFunction {
	return func(L *lua.LState) int {
		f(L, checkPart(L))
		L.Push(L.Get(1))
		return 1
	}
}

func partStream(f func(p *timeline.PartBuilder) *timeline.Stream) lua.LGFunction {
	return func(L *lua.LState) int {
		L.Push(wrap(L, f(checkPart(L)), streamTypeName))
		return 1
	}
}

func streamFunc(f func(L *lua.LState, s *timeline.Stream)) lua.LGFunction {
	return func(L *lua.LState) int {
		f(L, checkStream(L))
		L.Push(L.Get(1))
		return 1
	}
}

func checkPart(L *lua.LState) *timeline.PartBuilder {
	if p, ok := L.CheckUserData(1).Value.(*timeline.PartBuilder); ok {
		return p
	}
	L.ArgError(1, "part expected")
	return nil
}

func checkStream(L *lua.LState) *timeline.Stream {
	if s, ok := L.CheckUserData(1).Value.(*timeline.Stream); ok {
		return s
	}
	L.ArgError(1, "stream expected")
	return nil
}

func checkByte(L *lua.LState, n int) byte {
	v := L.CheckInt(n)
	if v < 0 || v > 0xff {
		L.ArgError(n, fmt.Sprintf("value %d does not fit into a byte", v))
	}
	return byte(v)
}

func checkAddress(L *lua.LState, n int) uint16 {
	v := L.CheckInt(n)
	if v < 0 || v > 0xffff {
		L.ArgError(n, fmt.Sprintf("address %d is out of range", v))
	}
	return uint16(v)
}

// checkColor accepts a palette index or a color name.
func checkColor(L *lua.LState, n int) c64.Color {
	switch v := L.Get(n).(type) {
	case lua.LNumber:
		if v < 0 || v > 15 {
			L.ArgError(n, fmt.Sprintf("invalid color %d", int(v)))
		}
		return c64.Color(v)
	case lua.LString:
		color, err := c64.ParseColor(string(v))
		if err != nil {
			L.ArgError(n, err.Error())
		}
		return color
	default:
		L.ArgError(n, "color expected")
		return 0
	}
}

// checkOperand accepts an address or a symbol expression like "font+8".
func checkOperand(L *lua.LState, n int) string {
	if _, ok := L.Get(n).(lua.LNumber); ok {
		return fmt.Sprintf("$%04x", checkAddress(L, n))
	}
	return L.CheckString(n)
}

func stringField(L *lua.LState, tbl *lua.LTable, key, def string) string {
	v := tbl.RawGetString(key)
	if v == lua.LNil {
		return def
	}
	s, ok := v.(lua.LString)
	if !ok {
		L.RaiseError("field '%s' must be a string", key)
		return def
	}
	return string(s)
}

func intField(L *lua.LState, tbl *lua.LTable, key string, def int) int {
	v := tbl.RawGetString(key)
	if v == lua.LNil {
		return def
	}
	n, ok := v.(lua.LNumber)
	if !ok {
		L.RaiseError("field '%s' must be a number", key)
		return def
	}
	return int(n)
}

func addressField(L *lua.LState, tbl *lua.LTable, key string, def uint16) uint16 {
	v := intField(L, tbl, key, int(def))
	if v < 0 || v > 0xffff {
		L.RaiseError("field '%s': address %d is out of range", key, v)
	}
	return uint16(v)
}

func lineField(L *lua.LState, tbl *lua.LTable, key string) uint16 {
	v := intField(L, tbl, key, -1)
	if v < 0 || v > 0xffff {
		L.RaiseError("field '%s' needs a raster line", key)
	}
	return uint16(v)
}

func boolField(L *lua.LState, tbl *lua.LTable, key string) bool {
	v := tbl.RawGetString(key)
	if v == lua.LNil {
		return false
	}
	b, ok := v.(lua.LBool)
	if !ok {
		L.RaiseError("field '%s' must be a boolean", key)
		return false
	}
	return bool(b)
}
