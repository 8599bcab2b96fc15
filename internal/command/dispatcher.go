package command

import (
	"context"
	stderrors "errors"
	"fmt"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/ZaguanLabs/corelyn/internal/errors"
)

// Dispatcher runs invocations against a registry keyed by lower-case name.
// A failing command never affects the ones after it.
type Dispatcher struct {
	funcs  map[string]Func
	logger *zap.Logger
}

// NewDispatcher returns a Dispatcher with the built-in commands registered.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Dispatcher{
		funcs:  make(map[string]Func),
		logger: logger.Named("command"),
	}
	for name, fn := range builtins() {
		d.Register(name, fn)
	}
	return d
}

// Register adds or replaces a command.
func (d *Dispatcher) Register(name string, fn Func) {
	d.funcs[strings.ToLower(name)] = fn
}

// Names lists the registered commands in sorted order.
func (d *Dispatcher) Names() []string {
	names := make([]string, 0, len(d.funcs))
	for name := range d.funcs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Dispatch runs one invocation and always returns a Result.
func (d *Dispatcher) Dispatch(ctx context.Context, host Host, inv Invocation) Result {
	fn, ok := d.funcs[strings.ToLower(inv.Name)]
	if !ok {
		err := errors.NewUnknownCommandError(inv.Name)
		d.logger.Warn("unknown command", zap.String("command", inv.Name))
		return Result{Name: inv.Name, OK: false, Message: err.Error()}
	}

	msg, err := d.invoke(ctx, fn, host, inv)
	if err != nil {
		var r refusal
		if stderrors.As(err, &r) {
			d.logger.Warn("command refused", zap.String("command", inv.Name), zap.String("reason", string(r)))
			return Result{Name: inv.Name, OK: false, Message: string(r)}
		}
		cmdErr := errors.NewCommandError(inv.Name, err.Error(), err)
		d.logger.Warn("command failed", zap.String("command", inv.Name), zap.Error(err))
		return Result{Name: inv.Name, OK: false, Message: cmdErr.Error()}
	}

	d.logger.Debug("command executed",
		zap.String("command", inv.Name),
		zap.Strings("args", inv.Args),
		zap.Int("body_len", len(inv.Body)),
	)
	return Result{Name: inv.Name, OK: true, Message: msg}
}

func (d *Dispatcher) invoke(ctx context.Context, fn Func, host Host, inv Invocation) (msg string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn(ctx, host, inv)
}
