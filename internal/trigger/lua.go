package trigger

import (
	"context"
	"fmt"
	"strings"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"

	"github.com/ZaguanLabs/corelyn/internal/errors"
)

// Loaders and module lookup stay closed so an action cannot reach the disk.
var removedGlobals = []string{"dofile", "loadfile", "load", "loadstring", "require", "module"}

var openLibs = []struct {
	name string
	fn   lua.LGFunction
}{
	{lua.BaseLibName, lua.OpenBase},
	{lua.TabLibName, lua.OpenTable},
	{lua.StringLibName, lua.OpenString},
	{lua.MathLibName, lua.OpenMath},
}

func (e *Engine) newState(ctx context.Context) *lua.LState {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:    true,
		CallStackSize:   e.opts.CallStackSize,
		RegistryMaxSize: e.opts.RegistryMaxSize,
	})
	for _, lib := range openLibs {
		L.Push(L.NewFunction(lib.fn))
		L.Push(lua.LString(lib.name))
		L.Call(1, 0)
	}
	for _, name := range removedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	L.SetContext(ctx)
	return L
}

// runAction executes the rule's action with response and match bound both as
// chunk arguments and as globals. It reports the string form of the first
// return value, cut to 80 characters, when that value is not nil.
func (e *Engine) runAction(ctx context.Context, host Host, idx int, rule Rule, text string, captures []*string) (preview string, ok bool, err error) {
	ctx, cancel := context.WithTimeout(ctx, e.opts.Timeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = errors.NewActionError(idx+1, fmt.Sprint(r), nil)
		}
	}()

	L := e.newState(ctx)
	defer L.Close()

	match := L.NewTable()
	for i, c := range captures {
		if c != nil {
			match.RawSetInt(i, lua.LString(*c))
		}
	}
	response := lua.LString(text)
	L.SetGlobal("response", response)
	L.SetGlobal("match", match)
	e.bindHost(L, host, e.logger.With(zap.Int("rule", idx+1)))

	fn, err := L.LoadString("local response, match = ...; " + rule.Action)
	if err != nil {
		return "", false, errors.NewActionError(idx+1, luaMessage(err), err)
	}

	L.Push(fn)
	L.Push(response)
	L.Push(match)
	if err := L.PCall(2, 1, nil); err != nil {
		return "", false, errors.NewActionError(idx+1, luaMessage(err), err)
	}

	ret := L.Get(-1)
	L.Pop(1)
	if ret == lua.LNil {
		return "", false, nil
	}
	return truncate(ret.String(), previewLimit), true, nil
}

// bindHost exposes alert, notify and log. print goes to the log too, since the
// terminal belongs to the front end.
func (e *Engine) bindHost(L *lua.LState, host Host, log *zap.Logger) {
	logFn := L.NewFunction(func(L *lua.LState) int {
		log.Info("trigger action log", zap.String("message", printArgs(L)))
		return 0
	})

	L.SetGlobal("alert", L.NewFunction(func(L *lua.LState) int {
		text := L.ToStringMeta(L.Get(1)).String()
		if host != nil {
			if err := host.Alert(text); err != nil {
				L.RaiseError("alert: %v", err)
			}
		}
		return 0
	}))
	L.SetGlobal("notify", L.NewFunction(func(L *lua.LState) int {
		toast(host, Info, L.ToStringMeta(L.Get(1)).String())
		return 0
	}))
	L.SetGlobal("log", logFn)
	L.SetGlobal("print", logFn)
}

// printArgs joins the call's arguments the way Lua's print does.
func printArgs(L *lua.LState) string {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	return strings.Join(parts, "\t")
}

func luaMessage(err error) string {
	if apiErr, ok := err.(*lua.ApiError); ok && apiErr.Object != nil {
		return apiErr.Object.String()
	}
	return err.Error()
}
