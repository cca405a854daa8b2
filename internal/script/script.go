// Package script runs Lua production scripts. A script declares the parts
// of a production through the demo table, the declarations are forwarded to
// a timeline builder.
package script

import (
	"bytes"
	"context"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/retroenv/retrodemo/internal/c64"
	"github.com/retroenv/retrodemo/internal/raster"
	"github.com/retroenv/retrodemo/internal/timeline"
	"github.com/retroenv/retrogolib/log"
	"github.com/spf13/afero"
	lua "github.com/yuin/gopher-lua"
)

const (
	partTypeName   = "demo.part"
	streamTypeName = "demo.stream"
)

// Run executes the script at path and returns the declared production. The
// production is named after the script file.
func Run(ctx context.Context, logger *log.Logger, fs afero.Fs, path string, timing c64.Timing) (*timeline.Production, error) {
	source, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading script: %w", err)
	}
	name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return RunString(ctx, logger, name, string(source), timing)
}

// RunString executes a script and returns the declared production.
func RunString(ctx context.Context, logger *log.Logger, name, source string, timing c64.Timing) (*timeline.Production, error) {
	in := newInterpreter(ctx, logger, name, timing)
	defer in.L.Close()

	fn, err := in.L.Load(bytes.NewReader([]byte(source)), name)
	if err != nil {
		return nil, fmt.Errorf("loading script '%s': %w", name, err)
	}
	in.L.Push(fn)
	if err := in.L.PCall(0, lua.MultRet, nil); err != nil {
		return nil, fmt.Errorf("running script '%s': %w", name, err)
	}

	production, err := in.builder.Build()
	if err != nil {
		return nil, fmt.Errorf("building production '%s': %w", name, err)
	}
	logger.Debug("Script declared production",
		log.String("name", name),
		log.Int("parts", len(production.Parts)))
	return production, nil
}

type interpreter struct {
	logger  *log.Logger
	name    string
	L       *lua.LState
	builder *timeline.Builder
}

func newInterpreter(ctx context.Context, logger *log.Logger, name string, timing c64.Timing) *interpreter {
	L := lua.NewState(lua.Options{SkipOpenLibs: true})
	L.SetContext(ctx)
	for _, lib := range []struct {
		name string
		open lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	} {
		L.Push(L.NewFunction(lib.open))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}

	in := &interpreter{
		logger:  logger,
		name:    name,
		L:       L,
		builder: timeline.NewBuilder(name, timing),
	}
	in.register()
	return in
}

func (in *interpreter) register() {
	L := in.L

	demo := L.NewTable()
	L.SetField(demo, "part", L.NewFunction(in.newPart))
	L.SetField(demo, "log", L.NewFunction(in.log))
	L.SetField(demo, "frames", L.NewFunction(in.frames))
	L.SetGlobal("demo", demo)

	colors := L.NewTable()
	for i, name := range c64.ColorNames() {
		L.SetField(colors, name, lua.LNumber(i))
	}
	L.SetGlobal("color", colors)

	partType := L.NewTypeMetatable(partTypeName)
	L.SetField(partType, "__index", L.SetFuncs(L.NewTable(), partMethods))

	streamType := L.NewTypeMetatable(streamTypeName)
	L.SetField(streamType, "__index", L.SetFuncs(L.NewTable(), streamMethods))
}

// newPart implements demo.part{name=, start=, vector=, bank=, next=}.
func (in *interpreter) newPart(L *lua.LState) int {
	opts := L.CheckTable(1)
	name := stringField(L, opts, "name", "")
	if name == "" {
		L.ArgError(1, "part needs a name")
		return 0
	}
	start := addressField(L, opts, "start", 0x0801)

	part := in.builder.Part(name, start)
	switch vector := stringField(L, opts, "vector", "hardware"); vector {
	case "hardware":
	case "kernal":
		part.Vector(raster.KernalVector)
	default:
		L.ArgError(1, fmt.Sprintf("unknown vector '%s'", vector))
		return 0
	}
	switch method := stringField(L, opts, "bank", "porta"); method {
	case "porta":
	case "ddr":
		part.BankMethod(c64.BankViaDDR)
	default:
		L.ArgError(1, fmt.Sprintf("unknown bank method '%s'", method))
		return 0
	}
	if next := stringField(L, opts, "next", ""); next != "" {
		part.Next(next)
	}

	L.Push(wrap(L, part, partTypeName))
	return 1
}

// log implements demo.log(message).
func (in *interpreter) log(L *lua.LState) int {
	in.logger.Info(L.CheckString(1), log.String("script", in.name))
	return 0
}

// frames implements demo.frames(timestamp) for scripts that compute with
// frame numbers.
func (in *interpreter) frames(L *lua.LState) int {
	timing := in.builder.Timing()
	frames, err := timing.FramesFromTimestamp(L.CheckString(1))
	if err != nil {
		L.ArgError(1, err.Error())
		return 0
	}
	L.Push(lua.LNumber(frames))
	return 1
}

func wrap(L *lua.LState, value any, typeName string) *lua.LUserData {
	ud := L.NewUserData()
	ud.Value = value
	L.SetMetatable(ud, L.GetTypeMetatable(typeName))
	return ud
}
