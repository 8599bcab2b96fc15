package trigger

import (
	"context"
	"errors"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// RunResult is the outcome of running a code block.
type RunResult struct {
	// Output holds one line per print call.
	Output    []string
	Result    string
	HasResult bool
	Err       error
}

// String lays the result out for display: printed lines, then the returned
// value or the error.
func (r RunResult) String() string {
	lines := append([]string(nil), r.Output...)
	switch {
	case r.Err != nil:
		lines = append(lines, "Error: "+r.Err.Error())
	case r.HasResult:
		lines = append(lines, "→ "+r.Result)
	case len(lines) == 0:
		lines = append(lines, "(no output)")
	}
	return strings.Join(lines, "\n")
}

// Run executes a standalone Lua chunk in the same restricted runtime and
// limits as rule actions. print output is captured instead of logged.
func (e *Engine) Run(ctx context.Context, host Host, code string) (res RunResult) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("%v", r)
		}
	}()

	L := e.newState(ctx)
	defer L.Close()

	e.bindHost(L, host, e.logger.Named("run"))
	L.SetGlobal("print", L.NewFunction(func(L *lua.LState) int {
		res.Output = append(res.Output, printArgs(L))
		return 0
	}))

	fn, err := L.LoadString(code)
	if err != nil {
		res.Err = errors.New(luaMessage(err))
		return res
	}
	L.Push(fn)
	if err := L.PCall(0, 1, nil); err != nil {
		res.Err = errors.New(luaMessage(err))
		return res
	}

	ret := L.Get(-1)
	L.Pop(1)
	if ret != lua.LNil {
		res.Result = ret.String()
		res.HasResult = true
	}
	e.logger.Debug("code block ran", zap.Int("output_lines", len(res.Output)))
	return res
}
