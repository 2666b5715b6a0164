package napi

import (
	"testing"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
)

type point struct{ x, y float64 }

func definePoint(t *testing.T, env *Env) *Class {
	t.Helper()
	ctor := func(call *Call, info *CallbackInfo) (heap.Value, error) {
		p := &point{x: info.Arg(0).Number(), y: info.Arg(1).Number()}
		if _, err := call.Env().Wrap(info.This, p, nil, nil); err != nil {
			return heap.Value{}, err
		}
		return heap.Undefined(), nil
	}
	getX := func(call *Call, info *CallbackInfo) (heap.Value, error) {
		p, err := call.Env().Unwrap(info.This)
		if err != nil {
			return heap.Value{}, err
		}
		return heap.Number(p.(*point).x), nil
	}
	origin := func(call *Call, info *CallbackInfo) (heap.Value, error) {
		return heap.Number(0), nil
	}

	c, err := env.DefineClass("Point", ctor, "class-data", []PropertyDescriptor{
		{Name: "x", Getter: getX, Attributes: Enumerable | Configurable},
		{Name: "origin", Method: origin, Attributes: DefaultMethod | Static},
		{Name: "dims", Value: heap.Number(2), Attributes: Static},
	})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func TestClass_ConstructAndProperties(t *testing.T) {
	h, env := newTestEnv(t)
	c := definePoint(t, env)

	v, err := c.Value().Cell().Call(heap.Undefined(), heap.Number(3), heap.Number(4))
	if err != nil {
		t.Fatal(err)
	}
	if !c.IsInstance(v) {
		t.Fatal("constructed value is not an instance")
	}
	if v.Cell().Prototype() != c.Prototype().Value().Cell() {
		t.Error("instance prototype mismatch")
	}

	x, err := h.Get(v.Cell(), "x")
	if err != nil || x.Number() != 3 {
		t.Errorf("x = %v, %v", x, err)
	}

	fn := c.Value().Cell()
	if _, ok := fn.Own("origin"); !ok {
		t.Error("static method missing from constructor")
	}
	if _, ok := c.Prototype().Value().Cell().Own("origin"); ok {
		t.Error("static method installed on prototype")
	}
	if dims, _ := h.Get(fn, "dims"); dims.Number() != 2 {
		t.Errorf("dims = %v", dims)
	}
	if ctor, _ := h.Get(v.Cell(), "constructor"); ctor.Cell() != fn {
		t.Error("prototype.constructor should be the class")
	}

	got, err := env.ClassOf(c.Value())
	if err != nil || got != c {
		t.Errorf("ClassOf = %v, %v", got, err)
	}
	if _, err := env.ClassOf(heap.Number(1)); errors.StatusOf(err) != errors.StatusFunctionExpected {
		t.Errorf("ClassOf(number): %v", err)
	}
	if env.Current() != nil {
		t.Error("constructor call left a call active")
	}
}

func TestClass_ConstructorReturnOverride(t *testing.T) {
	h, env := newTestEnv(t)
	replacement := h.NewObject(env.Realm(), nil)
	keep := h.Retain(heap.CellValue(replacement))
	defer keep.Clear()

	c, err := env.DefineClass("Factory", func(*Call, *CallbackInfo) (heap.Value, error) {
		return heap.CellValue(replacement), nil
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	call, _ := env.Enter()
	defer call.Exit()
	v, err := c.Construct(call, nil)
	if err != nil {
		t.Fatal(err)
	}
	if v.Cell() != replacement {
		t.Error("object returned by the constructor should replace this")
	}
}

func TestClass_CollectDuringConstructor(t *testing.T) {
	h, env := newTestEnv(t)
	var thisDead, argDead bool
	c, err := env.DefineClass("Box", func(call *Call, info *CallbackInfo) (heap.Value, error) {
		h.Collect()
		thisDead = info.This.Cell().Dead()
		argDead = info.Arg(0).Cell().Dead()
		return heap.Undefined(), nil
	}, nil, nil)
	if err != nil {
		t.Fatal(err)
	}

	arg := h.NewObject(env.Realm(), nil)
	v, err := c.Value().Cell().Call(heap.Undefined(), heap.CellValue(arg))
	if err != nil {
		t.Fatal(err)
	}
	if thisDead || argDead {
		t.Fatalf("swept inside the constructor: this=%v arg=%v", thisDead, argDead)
	}
	if v.Cell().Dead() || c.Released() {
		t.Error("constructed instance or class swept before return")
	}
}

func TestFunction_CollectDuringCallback(t *testing.T) {
	h, env := newTestEnv(t)
	var dead []bool
	fn, err := env.NewFunction("touch", func(call *Call, info *CallbackInfo) (heap.Value, error) {
		h.Collect()
		dead = append(dead, info.This.Cell().Dead(), info.Arg(0).Cell().Dead())
		return heap.Undefined(), nil
	}, nil)
	if err != nil {
		t.Fatal(err)
	}

	this := h.NewObject(env.Realm(), nil)
	if _, err := fn.Call(heap.CellValue(this), heap.CellValue(h.NewString("arg"))); err != nil {
		t.Fatal(err)
	}
	if len(dead) != 2 || dead[0] || dead[1] {
		t.Fatalf("receiver/argument swept during the callback: %v", dead)
	}

	h.Collect()
	if !this.Dead() {
		t.Error("receiver should be released once the call exits")
	}
}

func TestClass_SubclassStructureCache(t *testing.T) {
	h, env := newTestEnv(t)
	c := definePoint(t, env)
	keep := h.Retain(c.Value())
	defer keep.Clear()

	derivedProto := h.NewObject(env.Realm(), c.Prototype().Value().Cell())
	derived := h.NewFunction(env.Realm(), "Derived", nil)
	if err := h.DefineProperty(derived, "prototype", heap.Property{Value: heap.CellValue(derivedProto), Flags: heap.DefaultFlags}); err != nil {
		t.Fatal(err)
	}
	keepDerived := h.Retain(heap.CellValue(derived))
	defer keepDerived.Clear()

	call, _ := env.Enter()
	defer call.Exit()

	a, err := c.Construct(call, derived, heap.Number(1), heap.Number(2))
	if err != nil {
		t.Fatal(err)
	}
	b, err := c.Construct(call, derived, heap.Number(5), heap.Number(6))
	if err != nil {
		t.Fatal(err)
	}

	sa, sb := a.Cell().Structure(), b.Cell().Structure()
	if sa != sb {
		t.Error("second construction should reuse the cached structure")
	}
	if sa.Prototype() != derivedProto {
		t.Error("derived instance should use new.target's prototype")
	}
	if sa.ClassInfo() != c.Prototype().Structure().ClassInfo() {
		t.Error("derived structure lost the class info")
	}
	if !c.IsInstance(a) {
		t.Error("derived instance should be an instance of the base class")
	}
	if x, _ := h.Get(b.Cell(), "x"); x.Number() != 5 {
		t.Errorf("inherited getter read %v", x)
	}

	// a cache entry from another realm is replaced
	other := h.NewRealm("other")
	derived.EnsureRareData().SetAllocationStructure(heap.DeriveStructure(other, derivedProto, c.Prototype().Structure()))
	d, err := c.Construct(call, derived)
	if err != nil {
		t.Fatal(err)
	}
	if s := d.Cell().Structure(); s.Realm() != env.Realm() || s == sa {
		t.Error("structure from a foreign realm must not be reused")
	}
}

func TestPrototype_SubclassRejectsNonFunction(t *testing.T) {
	h, env := newTestEnv(t)
	c := definePoint(t, env)

	if _, err := c.Prototype().Subclass(env.Realm(), h.NewObject(env.Realm(), nil)); errors.StatusOf(err) != errors.StatusFunctionExpected {
		t.Errorf("object new.target: %v", err)
	}
	if _, err := c.Prototype().Subclass(env.Realm(), nil); errors.StatusOf(err) != errors.StatusFunctionExpected {
		t.Errorf("nil new.target: %v", err)
	}
}

func TestClass_ReleasedOnCollection(t *testing.T) {
	h, env := newTestEnv(t)
	c := definePoint(t, env)

	var rec finalizeRecorder
	c.SetFinalizer(rec.fn, "hint")

	call, _ := env.Enter()
	inst, err := c.Construct(call, nil, heap.Number(1), heap.Number(1))
	if err != nil {
		t.Fatal(err)
	}
	keep := h.Retain(inst)
	if err := call.Exit(); err != nil {
		t.Fatal(err)
	}

	h.Collect()
	if c.Released() {
		t.Fatal("class released while an instance is alive")
	}

	keep.Clear()
	h.Collect()
	if !c.Released() {
		t.Fatal("class should be released once unreachable")
	}
	if len(rec.calls) != 1 || rec.calls[0].data != "class-data" || rec.calls[0].hint != "hint" {
		t.Fatalf("class finalizer calls: %+v", rec.calls)
	}
	if !c.Reference().Destroyed() {
		t.Error("class reference should be destroyed")
	}

	call, _ = env.Enter()
	defer call.Exit()
	if _, err := c.Construct(call, nil); err == nil {
		t.Error("constructing a released class should fail")
	}
}

func TestClass_DefineErrors(t *testing.T) {
	_, env := newTestEnv(t)
	noop := func(*Call, *CallbackInfo) (heap.Value, error) { return heap.Undefined(), nil }

	tests := []struct {
		name   string
		ctor   Callback
		props  []PropertyDescriptor
		status errors.Status
	}{
		{"nil constructor", nil, nil, errors.StatusFunctionExpected},
		{"empty name", noop, []PropertyDescriptor{{Method: noop}}, errors.StatusNameExpected},
		{"method and accessor", noop, []PropertyDescriptor{{Name: "m", Method: noop, Getter: noop}}, errors.StatusInvalidArg},
		{"redefine non-configurable", noop, []PropertyDescriptor{
			{Name: "k", Value: heap.Number(1)},
			{Name: "k", Value: heap.Number(2)},
		}, errors.StatusInvalidArg},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.DefineClass("C", tt.ctor, nil, tt.props)
			if errors.StatusOf(err) != tt.status {
				t.Errorf("status = %v (%v)", errors.StatusOf(err), err)
			}
		})
	}
}

func TestClass_HandleLifecycle(t *testing.T) {
	h, env := newTestEnv(t)
	c := definePoint(t, env)

	got, err := env.Class(c.Handle())
	if err != nil || got != c {
		t.Fatalf("Class(%d) = %v, %v", c.Handle(), got, err)
	}

	h.Collect()
	if !c.Released() {
		t.Fatal("unreferenced class should be released")
	}
	if _, err := env.Class(c.Handle()); err == nil {
		t.Error("released class handle still resolves")
	}
}
