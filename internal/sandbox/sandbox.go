// Package sandbox runs filter escape-hatch scripts in a resource-bounded Lua VM.
//
// Every call gets a fresh interpreter with only the base, string, table and
// math libraries and three bindings: output, exit_code and args. Nothing can
// reach the filesystem, processes or the network.
//
// The VM polls its context once per bytecode instruction and a budget context
// counts those polls. The pattern functions (find, match, gmatch and gsub)
// are replaced with a matcher that charges the same budget for every
// matching step, so backtracking counts against the instruction limit and
// stops on cancellation. Other library calls still count as one instruction.
package sandbox

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
)

// Defaults applied to zero Limits fields.
const (
	DefaultMaxInstructions = 1_000_000
	DefaultMaxMemory       = 32 << 20
)

// Limits bounds a single script call.
type Limits struct {
	MaxInstructions int64 `toml:"max_instructions"`
	MaxMemory       int64 `toml:"max_memory"`
}

// DefaultLimits returns the limits used when a caller sets none.
func DefaultLimits() Limits {
	return Limits{MaxInstructions: DefaultMaxInstructions, MaxMemory: DefaultMaxMemory}
}

func (l Limits) withDefaults() Limits {
	if l.MaxInstructions <= 0 {
		l.MaxInstructions = DefaultMaxInstructions
	}
	if l.MaxMemory <= 0 {
		l.MaxMemory = DefaultMaxMemory
	}
	return l
}

// Failure kinds. Use errors.Is on the error returned by Run.
var (
	ErrInstructionLimit = errors.New("instruction limit exceeded")
	ErrMemoryLimit      = errors.New("memory limit exceeded")
	ErrBadReturn        = errors.New("script must return a string or nil")
	ErrSyntax           = errors.New("syntax error")
	ErrRuntime          = errors.New("runtime error")
	ErrTimeout          = errors.New("timed out")
)

// Error is a script failure. Kind is one of the Err* sentinels.
type Error struct {
	Kind   error
	Detail string
}

func (e *Error) Error() string {
	if e.Detail == "" {
		return "lua script: " + e.Kind.Error()
	}
	return fmt.Sprintf("lua script: %s: %s", e.Kind, e.Detail)
}

func (e *Error) Unwrap() error { return e.Kind }

// Input holds the values exposed to the script.
type Input struct {
	Output   string
	ExitCode int
	Args     []string
}

// Run executes src. A returned string replaces the output (ok is true); a
// nil return leaves the output alone. Every other outcome is an *Error.
// Cancelling ctx stops the script at its next instruction.
func Run(ctx context.Context, src string, in Input, limits Limits) (out string, ok bool, err error) {
	if ctx == nil {
		ctx = context.Background()
	}
	limits = limits.withDefaults()

	L := lua.NewState(lua.Options{
		SkipOpenLibs:    true,
		CallStackSize:   200,
		RegistrySize:    1024 * 16,
		RegistryMaxSize: 1024 * 256,
	})
	defer L.Close()

	b := newBudget(ctx, limits)
	if err := openLibs(L, b); err != nil {
		return "", false, fmt.Errorf("open lua libraries: %w", err)
	}
	bind(L, in)

	fn, err := L.LoadString(src)
	if err != nil {
		return "", false, &Error{Kind: ErrSyntax, Detail: err.Error()}
	}

	L.SetContext(b)
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		return "", false, b.classify(err)
	}

	switch ret := L.Get(-1).(type) {
	case lua.LString:
		return string(ret), true, nil
	case *lua.LNilType:
		return "", false, nil
	default:
		return "", false, &Error{Kind: ErrBadReturn, Detail: "got " + ret.Type().String()}
	}
}

var removedBase = []string{
	"collectgarbage", "dofile", "load", "loadfile", "loadstring",
	"module", "print", "rawset", "require", "newproxy", "_printregs",
	"getfenv", "setfenv",
}

func openLibs(L *lua.LState, b *budget) error {
	libs := []struct {
		name string
		fn   lua.LGFunction
	}{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
	for _, lib := range libs {
		err := L.CallByParam(lua.P{Fn: L.NewFunction(lib.fn), NRet: 0, Protect: true}, lua.LString(lib.name))
		if err != nil {
			return err
		}
	}
	for _, name := range removedBase {
		L.SetGlobal(name, lua.LNil)
	}
	if str, ok := L.GetGlobal(lua.StringLibName).(*lua.LTable); ok {
		str.RawSetString("rep", L.NewFunction(b.rep))
		str.RawSetString("find", L.NewFunction(b.strFind))
		str.RawSetString("match", L.NewFunction(b.strMatch))
		str.RawSetString("gmatch", L.NewFunction(b.strGmatch))
		str.RawSetString("gsub", L.NewFunction(b.strGsub))
	}
	return nil
}

func bind(L *lua.LState, in Input) {
	L.SetGlobal("output", lua.LString(in.Output))
	L.SetGlobal("exit_code", lua.LNumber(in.ExitCode))

	args := L.NewTable()
	for _, a := range in.Args {
		args.Append(lua.LString(a))
	}
	mt := L.NewTable()
	mt.RawSetString("__newindex", L.NewFunction(func(L *lua.LState) int {
		L.RaiseError("args is read-only")
		return 0
	}))
	mt.RawSetString("__metatable", lua.LString("locked"))
	L.SetMetatable(args, mt)
	L.SetGlobal("args", args)
}

func (b *budget) rep(L *lua.LState) int {
	s := L.CheckString(1)
	n := L.CheckInt(2)
	if n <= 0 || s == "" {
		L.Push(lua.LString(""))
		return 1
	}
	if int64(len(s))*int64(n) > b.limits.MaxMemory {
		b.trip(ErrMemoryLimit)
		L.RaiseError("%s", ErrMemoryLimit.Error())
		return 0
	}
	L.Push(lua.LString(strings.Repeat(s, n)))
	return 1
}

func (b *budget) classify(err error) error {
	if b.err != nil {
		return &Error{Kind: b.err}
	}
	var apiErr *lua.ApiError
	if errors.As(err, &apiErr) {
		if apiErr.Type == lua.ApiErrorSyntax {
			return &Error{Kind: ErrSyntax, Detail: apiErr.Object.String()}
		}
		return &Error{Kind: ErrRuntime, Detail: apiErr.Object.String()}
	}
	return &Error{Kind: ErrRuntime, Detail: err.Error()}
}
