package napi

import (
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/resource"
)

// Module describes the loaded native module an Env belongs to.
type Module struct {
	Name     string
	Filename string
	Version  int32
}

// ExtendedErrorInfo is the last-error record of an Env. Message is empty
// when the code has no message.
type ExtendedErrorInfo struct {
	EngineReserved  any
	Message         string
	EngineErrorCode uint32
	Code            errors.Status
}

// Env is the state of one loaded native module instance: the realm it is
// bound to, its handle table, its instance data and its last error.
//
// An Env is not safe for concurrent use.
type Env struct {
	heap              *heap.Heap
	realm             *heap.Realm
	handles           *resource.Table
	owner             *weakOwner
	logger            *zap.Logger
	cfg               Config
	module            Module
	instanceData      any
	instanceFinalizer Finalizer
	lastError         ExtendedErrorInfo
	calls             []*Call
	loose             map[*heap.Cell]resource.Handle
	loosePrimitives   []resource.Handle
	removeRoots       func()
	hasInstanceData   bool
	cleaning          bool
	closed            bool
}

// NewEnv binds a new environment to realm.
func NewEnv(realm *heap.Realm, module Module, cfg *Config) *Env {
	e := &Env{
		heap:    realm.Heap(),
		realm:   realm,
		handles: resource.NewTable(),
		loose:   make(map[*heap.Cell]resource.Handle),
		module:  module,
		logger:  cfg.logger().With(zap.String("module", module.Name)),
	}
	if cfg != nil {
		e.cfg = *cfg
	}
	e.owner = &weakOwner{env: e}
	e.removeRoots = e.heap.AddRoots(e.handles)
	if e.cfg.TraceHandles {
		e.handles.Subscribe(&handleTracer{logger: e.logger})
	}
	return e
}

func (e *Env) Heap() *heap.Heap { return e.heap }

func (e *Env) Realm() *heap.Realm { return e.realm }

func (e *Env) Module() Module { return e.module }

// Handles exposes the handle table for inspection.
func (e *Env) Handles() *resource.Table { return e.handles }

func (e *Env) Closed() bool { return e.closed }

// SetLastError records status as the most recent result and returns it.
func (e *Env) SetLastError(status errors.Status) errors.Status {
	e.lastError.Code = status
	return status
}

// Status records the status of err as the last error and returns it.
func (e *Env) Status(err error) errors.Status {
	return e.SetLastError(errors.StatusOf(err))
}

// LastErrorInfo returns the last-error record. The message is looked up
// from the status table on every call.
func (e *Env) LastErrorInfo() ExtendedErrorInfo {
	msg, _ := errors.Message(e.lastError.Code)
	e.lastError.Message = msg
	return e.lastError
}

// SetInstanceData replaces the instance data slot. A previously set value is
// not finalized.
func (e *Env) SetInstanceData(data any, fin FinalizeFunc, hint any) {
	e.instanceData = data
	e.instanceFinalizer = Finalizer{Callback: fin, Hint: hint}
	e.hasInstanceData = true
}

func (e *Env) InstanceData() any { return e.instanceData }

// Enter starts a native invocation with a base handle scope open.
func (e *Env) Enter() (*Call, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseEnv, "environment")
	}
	e.releaseLoosePrimitives()
	c := &Call{env: e}
	if _, err := c.open(false); err != nil {
		return nil, err
	}
	e.calls = append(e.calls, c)
	return c, nil
}

// Current returns the innermost active Call, or nil. It is how the native
// boundary, which only passes the env, finds its scope.
func (e *Env) Current() *Call {
	if len(e.calls) == 0 {
		return nil
	}
	return e.calls[len(e.calls)-1]
}

func (e *Env) popCall(c *Call) bool {
	n := len(e.calls)
	if n > 0 && e.calls[n-1] == c {
		e.calls = e.calls[:n-1]
		return true
	}
	for i, o := range e.calls {
		if o == c {
			e.calls = append(e.calls[:i], e.calls[i+1:]...)
			break
		}
	}
	return false
}

// Vend hands v to native code through the current Call, or as a loose
// handle when no call is active. A loose handle does not keep v alive. A
// cell has at most one loose handle, released when the cell is collected;
// loose primitives are released when the next call enters.
func (e *Env) Vend(v heap.Value) resource.Handle {
	if c := e.Current(); c != nil && c.top != nil {
		return c.top.retain(v)
	}
	if c := v.Cell(); c != nil {
		if h, ok := e.loose[c]; ok {
			return h
		}
	}

	lv := &looseValue{env: e, value: v}
	lv.handle = e.handles.Insert(resource.KindLooseValue, lv)
	if lv.handle == 0 {
		return 0
	}
	if c := v.Cell(); c != nil {
		e.loose[c] = lv.handle
		lv.weak = e.heap.Watch(c, e.owner, lv)
	} else {
		e.loosePrimitives = append(e.loosePrimitives, lv.handle)
	}
	return lv.handle
}

func (e *Env) releaseLoosePrimitives() {
	for _, h := range e.loosePrimitives {
		e.handles.Remove(h)
	}
	e.loosePrimitives = e.loosePrimitives[:0]
}

// Resolve returns the value behind a value handle.
func (e *Env) Resolve(h resource.Handle) (heap.Value, error) {
	raw, ok := e.handles.GetKinded(h, resource.KindValue, resource.KindLooseValue)
	if !ok {
		return heap.Value{}, errors.InvalidHandle(errors.PhaseScope, uint32(h), "value")
	}
	var v heap.Value
	switch x := raw.(type) {
	case heap.Value:
		v = x
	case *looseValue:
		v = x.value
	}
	if v.IsCell() && v.Cell().Dead() {
		return heap.Value{}, errors.InvalidHandle(errors.PhaseScope, uint32(h), "value")
	}
	return v, nil
}

// CreateReference creates a user-owned reference with the given count.
func (e *Env) CreateReference(v heap.Value, count uint32) (*Reference, error) {
	return e.CreateReferenceWithFinalizer(v, count, nil, nil, nil)
}

// CreateReferenceWithFinalizer creates a user-owned reference whose
// finalizer runs once, when v is collected or the reference is deleted.
func (e *Env) CreateReferenceWithFinalizer(v heap.Value, count uint32, data any, fin FinalizeFunc, hint any) (*Reference, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseReference, "environment")
	}
	if v.IsEmpty() {
		return nil, errors.InvalidArg(errors.PhaseReference, "cannot reference the empty value")
	}
	r := newReference(e, v, count, OwnedByUser, Finalizer{Callback: fin, Hint: hint}, data)
	e.logger.Debug("reference created",
		zap.Uint32("handle", uint32(r.handle)),
		zap.Uint32("count", count),
		zap.Stringer("kind", v.Kind()))
	return r, nil
}

// Reference looks up a reference handle.
func (e *Env) Reference(h resource.Handle) (*Reference, error) {
	raw, ok := e.handles.GetKinded(h, resource.KindReference)
	if !ok {
		return nil, errors.InvalidHandle(errors.PhaseReference, uint32(h), "reference")
	}
	return raw.(*Reference), nil
}

// DeleteReference destroys a reference, running its finalizer if it has not
// run yet.
func (e *Env) DeleteReference(h resource.Handle) error {
	r, err := e.Reference(h)
	if err != nil {
		return err
	}
	e.logger.Debug("reference deleted",
		zap.Uint32("handle", uint32(h)),
		zap.Uint32("count", r.count),
		zap.Stringer("mode", r.mode))
	r.destroy()
	return nil
}

func (e *Env) ReferenceRef(h resource.Handle) (uint32, error) {
	r, err := e.Reference(h)
	if err != nil {
		return 0, err
	}
	return r.Ref()
}

func (e *Env) ReferenceUnref(h resource.Handle) (uint32, error) {
	r, err := e.Reference(h)
	if err != nil {
		return 0, err
	}
	return r.Unref()
}

// ReferenceValue returns the referenced value, empty once collected.
func (e *Env) ReferenceValue(h resource.Handle) (heap.Value, error) {
	r, err := e.Reference(h)
	if err != nil {
		return heap.Value{}, err
	}
	return r.Value(), nil
}

// Cleanup tears the environment down: every outstanding reference is
// destroyed (running pending finalizers), then the instance data finalizer
// runs if instance data was set. Only the first call has any effect.
func (e *Env) Cleanup() {
	if e.cleaning || e.closed {
		return
	}
	e.cleaning = true
	e.logger.Debug("environment cleanup",
		zap.Int("references", e.handles.Count(resource.KindReference)))

	for len(e.calls) > 0 {
		c := e.calls[len(e.calls)-1]
		if err := c.Exit(); err != nil {
			e.logger.Debug("call still active at cleanup", zap.Error(err))
		}
	}

	// finalizers may create references while this runs
	for hs := e.handles.Handles(resource.KindReference); len(hs) > 0; hs = e.handles.Handles(resource.KindReference) {
		for _, h := range hs {
			if r, err := e.Reference(h); err == nil {
				r.destroy()
			}
		}
	}

	if e.hasInstanceData {
		fin := e.instanceFinalizer
		e.instanceFinalizer = Finalizer{}
		fin.Call(e, e.instanceData)
	}

	e.removeRoots()
	e.handles.Close()
	e.closed = true
	e.cleaning = false
}

// looseValue is the table entry of a value vended outside any call.
type looseValue struct {
	env    *Env
	value  heap.Value
	weak   *heap.Weak
	handle resource.Handle
}

func (l *looseValue) Value() heap.Value { return l.value }

// Drop cancels the observation and forgets the cell's loose handle.
func (l *looseValue) Drop() {
	if w := l.weak; w != nil {
		l.weak = nil
		w.Clear()
	}
	if c := l.value.Cell(); c != nil && l.env.loose[c] == l.handle {
		delete(l.env.loose, c)
	}
}

// weakOwner routes heap notifications back into the environment.
type weakOwner struct {
	env *Env
}

func (o *weakOwner) Finalize(_ *heap.Weak, context any) {
	switch ctx := context.(type) {
	case *Reference:
		if ctx.env == o.env {
			ctx.collected()
		}
	case *looseValue:
		ctx.weak = nil
		// the handle may have been released and reissued since
		raw, ok := o.env.handles.GetKinded(ctx.handle, resource.KindLooseValue)
		if ok && raw == ctx {
			o.env.handles.Remove(ctx.handle)
		}
	}
}

type handleTracer struct {
	logger *zap.Logger
}

func (t *handleTracer) OnResourceEvent(ev resource.Event) {
	msg := "handle created"
	if ev.Type == resource.EventDropped {
		msg = "handle dropped"
	}
	t.logger.Debug(msg,
		zap.Uint32("handle", uint32(ev.Handle)),
		zap.Stringer("kind", ev.Kind))
}
