package napi

import (
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
	"github.com/wippyai/refbridge/resource"
)

// Ownership decides who destroys a Reference.
type Ownership uint8

const (
	// OwnedByUser references live until DeleteReference or env cleanup,
	// even after their value is collected.
	OwnedByUser Ownership = iota
	// OwnedByRuntime references are destroyed right after their finalizer
	// runs on collection (wraps, AddFinalizer, class bindings).
	OwnedByRuntime
)

type storageMode uint8

const (
	modeWeak storageMode = iota
	modeStrong
)

func (m storageMode) String() string {
	if m == modeStrong {
		return "strong"
	}
	return "weak"
}

// Reference is the refcounted handle native code holds on a managed value.
//
// The weak slot observes the value for the whole life of the reference so
// the finalizer can fire once the value is unreachable. While count > 0 a
// strong handle additionally keeps the value alive and is the authoritative
// storage.
type Reference struct {
	env       *Env
	global    *heap.Weak
	strong    *heap.Strong
	finalizer Finalizer
	data      any
	weak      WeakSlot
	handle    resource.Handle
	count     uint32
	mode      storageMode
	ownership Ownership
	finalized bool
	destroyed bool
}

func newReference(env *Env, v heap.Value, count uint32, ownership Ownership, fin Finalizer, data any) *Reference {
	r := &Reference{
		env:       env,
		global:    env.heap.Watch(env.realm.Global(), nil, nil),
		finalizer: fin,
		data:      data,
		count:     count,
		ownership: ownership,
	}
	r.weak.Set(env.heap, v, env.owner, r)
	if count > 0 {
		r.mode = modeStrong
		r.strong = env.heap.Retain(v)
	}
	r.handle = env.handles.Insert(resource.KindReference, r)
	return r
}

// Value returns the referenced value. In weak mode it is empty once the
// value has been collected.
func (r *Reference) Value() heap.Value {
	switch r.mode {
	case modeStrong:
		return r.strong.Get()
	case modeWeak:
		return r.weak.Get()
	}
	return heap.Value{}
}

// Ref increments the count. On 0 -> 1 the current weak value is promoted to
// strong storage; if it is already gone the reference holds the empty value
// strongly.
func (r *Reference) Ref() (uint32, error) {
	if r.destroyed {
		return 0, errors.InvalidHandle(errors.PhaseReference, uint32(r.handle), "reference")
	}
	r.count++
	if r.count == 1 {
		r.mode = modeStrong
		r.strong = r.env.heap.Retain(r.weak.Get())
	}
	return r.count, nil
}

// Unref decrements the count. On 1 -> 0 strong storage is dropped and the
// weak slot, still observing the value, becomes authoritative.
func (r *Reference) Unref() (uint32, error) {
	if r.destroyed {
		return 0, errors.InvalidHandle(errors.PhaseReference, uint32(r.handle), "reference")
	}
	if r.count == 0 {
		return 0, errors.RefCountUnderflow(uint32(r.handle))
	}
	r.count--
	if r.count == 0 {
		r.mode = modeWeak
		r.strong.Clear()
		r.strong = nil
	}
	return r.count, nil
}

func (r *Reference) Count() uint32 { return r.count }

func (r *Reference) Handle() resource.Handle { return r.handle }

func (r *Reference) Data() any { return r.data }

func (r *Reference) Env() *Env { return r.env }

func (r *Reference) Ownership() Ownership { return r.ownership }

// Realm returns the realm of the owning environment, or nil once the
// reference is destroyed.
func (r *Reference) Realm() *heap.Realm {
	if g := r.global.Get(); g != nil {
		return g.Realm()
	}
	return nil
}

// IsStrong reports whether strong storage is authoritative.
func (r *Reference) IsStrong() bool { return r.mode == modeStrong }

// Finalized reports whether the finalizer has already run.
func (r *Reference) Finalized() bool { return r.finalized }

func (r *Reference) Destroyed() bool { return r.destroyed }

// collected handles the heap's notification that the value was swept.
func (r *Reference) collected() {
	if r.destroyed || r.finalized {
		return
	}
	r.env.logger.Debug("reference value collected",
		zap.Uint32("handle", uint32(r.handle)),
		zap.Bool("runtime_owned", r.ownership == OwnedByRuntime))
	r.runFinalizer()
	if r.ownership == OwnedByRuntime {
		r.destroy()
	}
}

// destroy tears the reference down: strong storage first, then the weak
// slot, then the finalizer if it has not run yet.
func (r *Reference) destroy() {
	if r.destroyed {
		return
	}
	r.destroyed = true
	r.env.handles.Remove(r.handle)

	if r.strong != nil {
		r.strong.Clear()
		r.strong = nil
	}
	r.mode = modeWeak
	r.count = 0
	r.weak.Clear()
	r.global.Clear()

	r.runFinalizer()
}

func (r *Reference) runFinalizer() {
	if r.finalized {
		return
	}
	r.finalized = true
	fin := r.finalizer
	r.finalizer = Finalizer{}
	fin.Call(r.env, r.data)
}
