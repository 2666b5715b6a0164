package host

import (
	"bytes"
	"context"

	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/napi"
	"github.com/wippyai/refbridge/resource"
)

// hostFunc defines one host module export.
type hostFunc struct {
	fn      api.GoModuleFunc
	name    string
	params  []api.ValueType
	results []api.ValueType
}

func i32s(n int) []api.ValueType {
	out := make([]api.ValueType, n)
	for i := range out {
		out[i] = api.ValueTypeI32
	}
	return out
}

func (b *Bridge) functions() []hostFunc {
	return []hostFunc{
		{name: "create_object", fn: b.createObject, params: i32s(1), results: i32s(2)},
		{name: "create_string_utf8", fn: b.createStringUTF8, params: i32s(3), results: i32s(2)},
		{name: "create_reference", fn: b.createReference, params: i32s(3), results: i32s(2)},
		{name: "delete_reference", fn: b.deleteReference, params: i32s(2), results: i32s(1)},
		{name: "reference_ref", fn: b.referenceRef, params: i32s(2), results: i32s(2)},
		{name: "reference_unref", fn: b.referenceUnref, params: i32s(2), results: i32s(2)},
		{name: "get_reference_value", fn: b.getReferenceValue, params: i32s(2), results: i32s(2)},
		{name: "open_handle_scope", fn: b.openScope(false), params: i32s(1), results: i32s(2)},
		{name: "close_handle_scope", fn: b.closeScope, params: i32s(2), results: i32s(1)},
		{name: "open_escapable_handle_scope", fn: b.openScope(true), params: i32s(1), results: i32s(2)},
		{name: "close_escapable_handle_scope", fn: b.closeScope, params: i32s(2), results: i32s(1)},
		{name: "escape_handle", fn: b.escapeHandle, params: i32s(3), results: i32s(2)},
		{name: "add_finalizer", fn: b.addFinalizer, params: i32s(5), results: i32s(2)},
		{name: "wrap", fn: b.wrap, params: i32s(5), results: i32s(2)},
		{name: "unwrap", fn: b.unwrap, params: i32s(2), results: i32s(2)},
		{name: "remove_wrap", fn: b.removeWrap, params: i32s(2), results: i32s(2)},
		{name: "set_instance_data", fn: b.setInstanceData, params: i32s(4), results: i32s(1)},
		{name: "get_instance_data", fn: b.getInstanceData, params: i32s(1), results: i32s(2)},
		{name: "get_global", fn: b.getGlobal, params: i32s(1), results: i32s(2)},
		{name: "typeof", fn: b.typeOf, params: i32s(2), results: i32s(2)},
		{name: "run_gc", fn: b.runGC, params: i32s(1), results: i32s(1)},
		{name: "get_last_error_info", fn: b.getLastErrorInfo, params: i32s(1), results: i32s(2)},
		{name: "get_last_error_message", fn: b.getLastErrorMessage, params: i32s(3), results: i32s(2)},
	}
}

// invalidEnv is what a call with an unknown env handle returns; there is
// no env to record it on.
const invalidEnv = uint64(errors.StatusInvalidArg)

// done records err as the last error and writes the status and, on
// success, the out value to the result slots.
func (a *Addon) done(stack []uint64, err error, out uint32) {
	stack[0] = uint64(a.env.Status(err))
	if len(stack) > 1 {
		if err != nil {
			out = 0
		}
		stack[1] = uint64(out)
	}
	if err != nil {
		a.logger.Debug("host call failed", zap.Error(err))
	}
}

func fail(stack []uint64) {
	stack[0] = invalidEnv
	if len(stack) > 1 {
		stack[1] = 0
	}
}

func arg(stack []uint64, i int) uint32 { return uint32(stack[i]) }

func handleArg(stack []uint64, i int) resource.Handle { return resource.Handle(uint32(stack[i])) }

func (b *Bridge) createObject(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	obj := b.heap.NewObject(b.realm, nil)
	a.done(stack, nil, uint32(a.env.Vend(heap.CellValue(obj))))
}

func (b *Bridge) createStringUTF8(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	ptr, n := arg(stack, 1), arg(stack, 2)
	s, err := a.readString(ptr, n)
	if err != nil {
		a.done(stack, err, 0)
		return
	}
	a.done(stack, nil, uint32(a.env.Vend(heap.CellValue(b.heap.NewString(s)))))
}

func (a *Addon) readString(ptr, n uint32) (string, error) {
	mem := a.memory()
	if mem == nil {
		return "", errors.NotFound(errors.PhaseHost, "export", memoryExport)
	}
	if n == autoLength {
		rest, ok := mem.Read(ptr, mem.Size()-ptr)
		if !ok {
			return "", outOfBounds(ptr, 0)
		}
		if i := bytes.IndexByte(rest, 0); i >= 0 {
			rest = rest[:i]
		}
		return string(rest), nil
	}
	buf, ok := mem.Read(ptr, n)
	if !ok {
		return "", outOfBounds(ptr, n)
	}
	return string(buf), nil
}

func outOfBounds(ptr, n uint32) error {
	return errors.New(errors.PhaseHost, errors.KindInvalidArg).
		Status(errors.StatusInvalidArg).
		Detail("memory range [%d, %d) out of bounds", ptr, uint64(ptr)+uint64(n)).
		Build()
}

func (b *Bridge) createReference(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	v, err := a.env.Resolve(handleArg(stack, 1))
	if err != nil {
		a.done(stack, err, 0)
		return
	}
	r, err := a.env.CreateReference(v, arg(stack, 2))
	if err != nil {
		a.done(stack, err, 0)
		return
	}
	a.done(stack, nil, uint32(r.Handle()))
}

func (b *Bridge) deleteReference(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	a.done(stack, a.env.DeleteReference(handleArg(stack, 1)), 0)
}

func (b *Bridge) referenceRef(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	n, err := a.env.ReferenceRef(handleArg(stack, 1))
	a.done(stack, err, n)
}

func (b *Bridge) referenceUnref(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	n, err := a.env.ReferenceUnref(handleArg(stack, 1))
	a.done(stack, err, n)
}

func (b *Bridge) getReferenceValue(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	v, err := a.env.ReferenceValue(handleArg(stack, 1))
	if err != nil || v.IsEmpty() {
		a.done(stack, err, 0)
		return
	}
	a.done(stack, nil, uint32(a.env.Vend(v)))
}

func (a *Addon) currentCall() (*napi.Call, error) {
	call := a.env.Current()
	if call == nil {
		return nil, errors.ScopeMismatch(0, "no native call is active")
	}
	return call, nil
}

func (b *Bridge) openScope(escapable bool) api.GoModuleFunc {
	return func(ctx context.Context, _ api.Module, stack []uint64) {
		a, ok := b.lookup(ctx, stack[0])
		if !ok {
			fail(stack)
			return
		}
		call, err := a.currentCall()
		if err != nil {
			a.done(stack, err, 0)
			return
		}
		var s *napi.HandleScope
		if escapable {
			s, err = call.OpenEscapableScope()
		} else {
			s, err = call.OpenScope()
		}
		if err != nil {
			a.done(stack, err, 0)
			return
		}
		a.done(stack, nil, uint32(s.Handle()))
	}
}

func (b *Bridge) closeScope(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	s, err := a.env.Scope(handleArg(stack, 1))
	if err != nil {
		a.done(stack, errors.ScopeMismatch(arg(stack, 1), "unknown handle scope"), 0)
		return
	}
	call, err := a.currentCall()
	if err == nil {
		err = call.CloseScope(s)
	}
	a.done(stack, err, 0)
}

func (b *Bridge) escapeHandle(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	s, err := a.env.Scope(handleArg(stack, 1))
	if err != nil {
		a.done(stack, errors.ScopeMismatch(arg(stack, 1), "unknown handle scope"), 0)
		return
	}
	h, err := s.Escape(handleArg(stack, 2))
	a.done(stack, err, uint32(h))
}

func (b *Bridge) addFinalizer(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	obj, err := a.env.Resolve(handleArg(stack, 1))
	if err != nil {
		a.done(stack, err, 0)
		return
	}
	r, err := a.env.AddFinalizer(obj, arg(stack, 2), a.finalizer(arg(stack, 3)), arg(stack, 4))
	if err != nil {
		a.done(stack, err, 0)
		return
	}
	a.done(stack, nil, uint32(r.Handle()))
}

func (b *Bridge) wrap(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	obj, err := a.env.Resolve(handleArg(stack, 1))
	if err != nil {
		a.done(stack, err, 0)
		return
	}
	r, err := a.env.Wrap(obj, arg(stack, 2), a.finalizer(arg(stack, 3)), arg(stack, 4))
	if err != nil {
		a.done(stack, err, 0)
		return
	}
	a.done(stack, nil, uint32(r.Handle()))
}

func (b *Bridge) unwrap(ctx context.Context, _ api.Module, stack []uint64) {
	b.unwrapWith(ctx, stack, func(env *napi.Env, v heap.Value) (any, error) { return env.Unwrap(v) })
}

func (b *Bridge) removeWrap(ctx context.Context, _ api.Module, stack []uint64) {
	b.unwrapWith(ctx, stack, func(env *napi.Env, v heap.Value) (any, error) { return env.RemoveWrap(v) })
}

func (b *Bridge) unwrapWith(ctx context.Context, stack []uint64, op func(*napi.Env, heap.Value) (any, error)) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	obj, err := a.env.Resolve(handleArg(stack, 1))
	if err != nil {
		a.done(stack, err, 0)
		return
	}
	data, err := op(a.env, obj)
	d, _ := data.(uint32)
	a.done(stack, err, d)
}

func (b *Bridge) setInstanceData(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	a.env.SetInstanceData(arg(stack, 1), a.finalizer(arg(stack, 2)), arg(stack, 3))
	a.done(stack, nil, 0)
}

func (b *Bridge) getInstanceData(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	d, _ := a.env.InstanceData().(uint32)
	a.done(stack, nil, d)
}

func (b *Bridge) getGlobal(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	a.done(stack, nil, uint32(a.env.Vend(heap.CellValue(b.realm.Global()))))
}

// ValueType is the typeof code returned to addons, in napi_valuetype order.
type ValueType uint32

const (
	TypeUndefined ValueType = iota
	TypeNull
	TypeBoolean
	TypeNumber
	TypeString
	TypeSymbol
	TypeObject
	TypeFunction
)

func valueType(k heap.Kind) (ValueType, bool) {
	switch k {
	case heap.KindUndefined:
		return TypeUndefined, true
	case heap.KindNull:
		return TypeNull, true
	case heap.KindBool:
		return TypeBoolean, true
	case heap.KindNumber:
		return TypeNumber, true
	case heap.KindString:
		return TypeString, true
	case heap.KindSymbol:
		return TypeSymbol, true
	case heap.KindObject:
		return TypeObject, true
	case heap.KindFunction:
		return TypeFunction, true
	}
	return 0, false
}

func (b *Bridge) typeOf(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	v, err := a.env.Resolve(handleArg(stack, 1))
	if err != nil {
		a.done(stack, err, 0)
		return
	}
	t, ok := valueType(v.Kind())
	if !ok {
		a.done(stack, errors.InvalidArg(errors.PhaseHost, "value has no type"), 0)
		return
	}
	a.done(stack, nil, uint32(t))
}

func (b *Bridge) runGC(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	b.Collect(ctx)
	a.done(stack, nil, 0)
}

// getLastErrorInfo reads the last error without replacing it.
func (b *Bridge) getLastErrorInfo(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	stack[0] = uint64(errors.StatusOK)
	stack[1] = uint64(uint32(a.env.LastErrorInfo().Code))
}

// getLastErrorMessage copies the last error message into guest memory,
// truncated to cap bytes, and returns its full length. It does not replace
// the last error.
func (b *Bridge) getLastErrorMessage(ctx context.Context, _ api.Module, stack []uint64) {
	a, ok := b.lookup(ctx, stack[0])
	if !ok {
		fail(stack)
		return
	}
	ptr, limit := arg(stack, 1), arg(stack, 2)
	msg := a.env.LastErrorInfo().Message

	out := []byte(msg)
	if uint32(len(out)) > limit {
		out = out[:limit]
	}
	if len(out) > 0 {
		mem := a.memory()
		if mem == nil || !mem.Write(ptr, out) {
			stack[0] = uint64(errors.StatusInvalidArg)
			stack[1] = 0
			return
		}
	}
	stack[0] = uint64(errors.StatusOK)
	stack[1] = uint64(len(msg))
}
