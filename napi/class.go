package napi

import (
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/resource"
)

// Class is a native-defined constructor exported to managed code.
//
// The binding owns a runtime-owned, count-0 Reference to its own function.
// When the function becomes unreachable that reference's finalizer releases
// the binding and runs the class finalizer with the class data.
type Class struct {
	env         *Env
	fn          *heap.Cell
	prototype   *Prototype
	constructor Callback
	ref         *Reference
	data        any
	finalizer   Finalizer
	name        string
	handle      resource.Handle
	released    bool
}

// DefineClass creates a class. Properties flagged Static go on the
// constructor, the rest on the prototype.
func (e *Env) DefineClass(name string, ctor Callback, data any, props []PropertyDescriptor) (*Class, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseClass, "environment")
	}
	if ctor == nil {
		return nil, errors.Expected(errors.PhaseClass, errors.StatusFunctionExpected, "nil constructor")
	}

	c := &Class{env: e, constructor: ctor, data: data, name: name}
	c.fn = e.heap.NewFunction(e.realm, name, func(_ heap.Value, args []heap.Value) (heap.Value, error) {
		call, err := e.Enter()
		if err != nil {
			return heap.Value{}, err
		}
		defer func() { _ = call.Exit() }()
		return c.Construct(call, nil, args...)
	})
	cellDataOf(c.fn, true).class = c

	protoCell := e.heap.NewObject(e.realm, nil)
	c.prototype = &Prototype{
		class:     c,
		cell:      protoCell,
		structure: heap.NewStructure(e.realm, protoCell, &heap.ClassInfo{Name: name}),
	}

	if err := e.heap.DefineProperty(c.fn, "prototype", heap.Property{Value: heap.CellValue(protoCell), Flags: heap.Writable}); err != nil {
		return nil, errors.Wrap(errors.PhaseClass, errors.KindInvalidData, err, "install prototype")
	}
	if err := e.heap.DefineProperty(protoCell, "constructor", heap.Property{Value: heap.CellValue(c.fn), Flags: heap.Writable | heap.Configurable}); err != nil {
		return nil, errors.Wrap(errors.PhaseClass, errors.KindInvalidData, err, "install constructor")
	}

	for _, p := range props {
		target := protoCell
		if p.Attributes&Static != 0 {
			target = c.fn
		}
		if err := e.defineProperty(target, p); err != nil {
			return nil, err
		}
	}

	c.ref = newReference(e, heap.CellValue(c.fn), 0, OwnedByRuntime, Finalizer{Callback: c.release}, data)
	c.handle = e.handles.Insert(resource.KindClass, c)
	e.logger.Debug("class defined",
		zap.String("class", name),
		zap.Int("properties", len(props)),
		zap.Uint32("reference", uint32(c.ref.handle)))
	return c, nil
}

func (c *Class) release(env *Env, data, _ any) {
	c.released = true
	env.handles.Remove(c.handle)
	env.logger.Debug("class released", zap.String("class", c.name))
	fin := c.finalizer
	c.finalizer = Finalizer{}
	fin.Call(env, data)
}

// SetFinalizer sets the callback that runs with the class data once the
// class is released.
func (c *Class) SetFinalizer(fin FinalizeFunc, hint any) {
	c.finalizer = Finalizer{Callback: fin, Hint: hint}
}

// Value returns the constructor function.
func (c *Class) Value() heap.Value { return heap.CellValue(c.fn) }

func (c *Class) Name() string { return c.name }

func (c *Class) Handle() resource.Handle { return c.handle }

func (c *Class) Data() any { return c.data }

func (c *Class) Prototype() *Prototype { return c.prototype }

// Reference returns the binding's reference to its own constructor.
func (c *Class) Reference() *Reference { return c.ref }

// Released reports whether the binding has been finalized.
func (c *Class) Released() bool { return c.released }

// Construct creates an instance. A nil newTarget constructs the class
// itself; a derived constructor gets an instance laid out for its own
// prototype. The constructor callback may return a replacement object.
func (c *Class) Construct(call *Call, newTarget *heap.Cell, args ...heap.Value) (heap.Value, error) {
	if c.released {
		return heap.Value{}, errors.New(errors.PhaseClass, errors.KindClosed).
			Status(errors.StatusInvalidArg).
			Detail("class %s has been released", c.name).
			Build()
	}
	if newTarget == nil {
		newTarget = c.fn
	}
	this, err := c.prototype.Subclass(c.env.realm, newTarget)
	if err != nil {
		return heap.Value{}, err
	}
	call.pin(heap.CellValue(this), heap.CellValue(newTarget))
	call.pin(args...)

	ret, err := c.constructor(call, &CallbackInfo{
		Data:      c.data,
		This:      heap.CellValue(this),
		NewTarget: heap.CellValue(newTarget),
		Args:      args,
	})
	if err != nil {
		return heap.Value{}, err
	}
	if ret.IsObject() {
		return ret, nil
	}
	return heap.CellValue(this), nil
}

// IsInstance reports whether v was laid out by this class or a subclass.
func (c *Class) IsInstance(v heap.Value) bool {
	if !v.IsObject() {
		return false
	}
	s := v.Cell().Structure()
	return s != nil && s.ClassInfo() == c.prototype.structure.ClassInfo()
}

// ClassOf returns the binding behind a class constructor defined in this
// environment.
func (e *Env) ClassOf(v heap.Value) (*Class, error) {
	if v.Kind() != heap.KindFunction {
		return nil, errors.Expected(errors.PhaseClass, errors.StatusFunctionExpected, v.Kind().String())
	}
	d := cellDataOf(v.Cell(), false)
	if d == nil || d.class == nil || d.class.env != e {
		return nil, errors.InvalidArg(errors.PhaseClass, "function is not a class of this environment")
	}
	return d.class, nil
}

// Class looks up a live class binding by handle.
func (e *Env) Class(h resource.Handle) (*Class, error) {
	raw, ok := e.handles.GetKinded(h, resource.KindClass)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseClass, uint32(h), "class")
	}
	return raw.(*Class), nil
}
