package napi

import (
	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
)

// Callback is a native function body. It runs inside its own Call.
type Callback func(call *Call, info *CallbackInfo) (heap.Value, error)

// CallbackInfo describes one invocation of a Callback.
type CallbackInfo struct {
	Data      any
	This      heap.Value
	NewTarget heap.Value
	Args      []heap.Value
}

// Arg returns argument i, or undefined when fewer were passed.
func (i *CallbackInfo) Arg(n int) heap.Value {
	if n < len(i.Args) {
		return i.Args[n]
	}
	return heap.Undefined()
}

// PropertyAttributes control how a property is installed.
type PropertyAttributes uint8

const (
	Writable PropertyAttributes = 1 << iota
	Enumerable
	Configurable
	// Static installs a class property on the constructor instead of the
	// prototype.
	Static

	DefaultMethod   = Writable | Configurable
	DefaultProperty = Writable | Enumerable | Configurable
)

// PropertyDescriptor is one property to install: a method, an accessor
// pair, or a data value.
type PropertyDescriptor struct {
	Data       any
	Method     Callback
	Getter     Callback
	Setter     Callback
	Value      heap.Value
	Name       string
	Attributes PropertyAttributes
}

func (a PropertyAttributes) flags(accessor bool) heap.PropertyFlags {
	var f heap.PropertyFlags
	if a&Writable != 0 && !accessor {
		f |= heap.Writable
	}
	if a&Enumerable != 0 {
		f |= heap.Enumerable
	}
	if a&Configurable != 0 {
		f |= heap.Configurable
	}
	return f
}

// NewFunction creates a function whose body runs cb inside a fresh Call.
func (e *Env) NewFunction(name string, cb Callback, data any) (*heap.Cell, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseClass, "environment")
	}
	if cb == nil {
		return nil, errors.InvalidArg(errors.PhaseClass, "callback is required")
	}
	return e.newFunction(name, cb, data), nil
}

func (e *Env) newFunction(name string, cb Callback, data any) *heap.Cell {
	return e.heap.NewFunction(e.realm, name, func(this heap.Value, args []heap.Value) (heap.Value, error) {
		call, err := e.Enter()
		if err != nil {
			return heap.Value{}, err
		}
		defer func() { _ = call.Exit() }()
		call.pin(this)
		call.pin(args...)
		return cb(call, &CallbackInfo{Data: data, This: this, Args: args})
	})
}

// DefineProperties installs props on obj.
func (e *Env) DefineProperties(obj heap.Value, props []PropertyDescriptor) error {
	c, err := objectCell(errors.PhaseClass, obj)
	if err != nil {
		return err
	}
	for _, p := range props {
		if err := e.defineProperty(c, p); err != nil {
			return err
		}
	}
	return nil
}

func (e *Env) defineProperty(c *heap.Cell, p PropertyDescriptor) error {
	if p.Name == "" {
		return errors.Expected(errors.PhaseClass, errors.StatusNameExpected, "empty name")
	}
	accessor := p.Getter != nil || p.Setter != nil
	if accessor && p.Method != nil {
		return errors.InvalidArg(errors.PhaseClass, "property "+p.Name+" is both a method and an accessor")
	}

	prop := heap.Property{Flags: p.Attributes.flags(accessor)}
	switch {
	case p.Method != nil:
		prop.Value = heap.CellValue(e.newFunction(p.Name, p.Method, p.Data))
	case accessor:
		if p.Getter != nil {
			prop.Getter = e.newFunction(p.Name, p.Getter, p.Data)
		}
		if p.Setter != nil {
			prop.Setter = e.newFunction(p.Name, p.Setter, p.Data)
		}
	default:
		prop.Value = p.Value
		if prop.Value.IsEmpty() {
			prop.Value = heap.Undefined()
		}
	}

	if err := e.heap.DefineProperty(c, p.Name, prop); err != nil {
		return errors.New(errors.PhaseClass, errors.KindInvalidArg).
			Status(errors.StatusInvalidArg).
			Cause(err).
			Detail("define property %q", p.Name).
			Build()
	}
	return nil
}
