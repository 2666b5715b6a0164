package napi

import (
	"go.uber.org/zap"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
)

// cellData is what the bridge keeps in a cell's internal slot.
type cellData struct {
	class *Class
	wrap  *Reference
}

func cellDataOf(c *heap.Cell, create bool) *cellData {
	if d, ok := c.Internal().(*cellData); ok {
		return d
	}
	if !create || c.Internal() != nil {
		return nil
	}
	d := &cellData{}
	c.SetInternal(d)
	return d
}

func objectCell(phase errors.Phase, v heap.Value) (*heap.Cell, error) {
	if !v.IsObject() {
		return nil, errors.Expected(phase, errors.StatusObjectExpected, v.Kind().String())
	}
	return v.Cell(), nil
}

// AddFinalizer attaches a finalizer to obj without wrapping it. The
// returned reference is runtime-owned with count 0.
func (e *Env) AddFinalizer(obj heap.Value, data any, fin FinalizeFunc, hint any) (*Reference, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseWrap, "environment")
	}
	if _, err := objectCell(errors.PhaseWrap, obj); err != nil {
		return nil, err
	}
	if fin == nil {
		return nil, errors.InvalidArg(errors.PhaseWrap, "finalizer callback is required")
	}
	return newReference(e, obj, 0, OwnedByRuntime, Finalizer{Callback: fin, Hint: hint}, data), nil
}

// Wrap associates native data with obj. The finalizer runs when obj is
// collected or the environment is cleaned up. An object can be wrapped once.
func (e *Env) Wrap(obj heap.Value, data any, fin FinalizeFunc, hint any) (*Reference, error) {
	if e.closed {
		return nil, errors.Closed(errors.PhaseWrap, "environment")
	}
	c, err := objectCell(errors.PhaseWrap, obj)
	if err != nil {
		return nil, err
	}
	d := cellDataOf(c, true)
	if d == nil {
		return nil, errors.New(errors.PhaseWrap, errors.KindInvalidArg).
			Status(errors.StatusInvalidArg).
			Detail("object internal slot is owned by the host").
			Build()
	}
	if d.wrap != nil && !d.wrap.destroyed {
		return nil, errors.New(errors.PhaseWrap, errors.KindAlreadyWrapped).
			Status(errors.StatusInvalidArg).
			Handle(uint32(d.wrap.handle)).
			Build()
	}
	d.wrap = newReference(e, obj, 0, OwnedByRuntime, Finalizer{Callback: fin, Hint: hint}, data)
	e.logger.Debug("object wrapped",
		zap.Uint64("cell", c.ID()),
		zap.Uint32("reference", uint32(d.wrap.handle)))
	return d.wrap, nil
}

func (e *Env) wrapOf(obj heap.Value) (*cellData, error) {
	c, err := objectCell(errors.PhaseWrap, obj)
	if err != nil {
		return nil, err
	}
	d := cellDataOf(c, false)
	if d == nil || d.wrap == nil || d.wrap.destroyed || d.wrap.env != e {
		return nil, errors.New(errors.PhaseWrap, errors.KindNotWrapped).
			Status(errors.StatusInvalidArg).
			Build()
	}
	return d, nil
}

// Unwrap returns the native data wrapped into obj.
func (e *Env) Unwrap(obj heap.Value) (any, error) {
	d, err := e.wrapOf(obj)
	if err != nil {
		return nil, err
	}
	return d.wrap.data, nil
}

// RemoveWrap detaches and returns the native data without running the
// finalizer.
func (e *Env) RemoveWrap(obj heap.Value) (any, error) {
	d, err := e.wrapOf(obj)
	if err != nil {
		return nil, err
	}
	r := d.wrap
	d.wrap = nil
	r.finalizer = Finalizer{}
	r.destroy()
	return r.data, nil
}
