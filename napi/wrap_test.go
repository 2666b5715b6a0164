package napi

import (
	stderrors "errors"
	"testing"

	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
)

func TestWrap_UnwrapAndCollect(t *testing.T) {
	h, env := newTestEnv(t)
	obj := h.NewObject(env.Realm(), nil)
	native := &struct{ id int }{id: 9}

	var rec finalizeRecorder
	if _, err := env.Wrap(heap.CellValue(obj), native, rec.fn, "h"); err != nil {
		t.Fatal(err)
	}
	got, err := env.Unwrap(heap.CellValue(obj))
	if err != nil || got != native {
		t.Fatalf("Unwrap = %v, %v", got, err)
	}

	_, err = env.Wrap(heap.CellValue(obj), "other", nil, nil)
	if !stderrors.Is(err, &errors.Error{Phase: errors.PhaseWrap, Kind: errors.KindAlreadyWrapped}) {
		t.Fatalf("double wrap: %v", err)
	}

	h.Collect()
	if !obj.Dead() {
		t.Fatal("wrap must not keep the object alive")
	}
	if len(rec.calls) != 1 || rec.calls[0].data != native || rec.calls[0].hint != "h" {
		t.Fatalf("finalizer calls: %+v", rec.calls)
	}
}

func TestWrap_RemoveWrapSkipsFinalizer(t *testing.T) {
	h, env := newTestEnv(t)
	obj := heap.CellValue(h.NewObject(env.Realm(), nil))

	var rec finalizeRecorder
	r, _ := env.Wrap(obj, "native", rec.fn, nil)

	data, err := env.RemoveWrap(obj)
	if err != nil || data != "native" {
		t.Fatalf("RemoveWrap = %v, %v", data, err)
	}
	if !r.Destroyed() {
		t.Error("wrap reference should be destroyed")
	}
	if _, err := env.Unwrap(obj); !stderrors.Is(err, &errors.Error{Phase: errors.PhaseWrap, Kind: errors.KindNotWrapped}) {
		t.Errorf("Unwrap after remove: %v", err)
	}

	if _, err := env.Wrap(obj, "again", nil, nil); err != nil {
		t.Fatalf("rewrap after remove: %v", err)
	}
	env.Cleanup()
	if len(rec.calls) != 0 {
		t.Errorf("removed wrap finalizer fired: %+v", rec.calls)
	}
}

func TestWrap_Errors(t *testing.T) {
	h, env := newTestEnv(t)

	tests := []struct {
		name   string
		value  heap.Value
		status errors.Status
	}{
		{"number", heap.Number(1), errors.StatusObjectExpected},
		{"string", heap.CellValue(h.NewString("s")), errors.StatusObjectExpected},
		{"empty", heap.Value{}, errors.StatusObjectExpected},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := env.Wrap(tt.value, nil, nil, nil); errors.StatusOf(err) != tt.status {
				t.Errorf("Wrap status = %v", errors.StatusOf(err))
			}
			if _, err := env.Unwrap(tt.value); errors.StatusOf(err) != tt.status {
				t.Errorf("Unwrap status = %v", errors.StatusOf(err))
			}
		})
	}

	foreign := h.NewObject(env.Realm(), nil)
	foreign.SetInternal("host data")
	if _, err := env.Wrap(heap.CellValue(foreign), nil, nil, nil); errors.StatusOf(err) != errors.StatusInvalidArg {
		t.Errorf("foreign internal slot: %v", err)
	}
	if _, err := env.AddFinalizer(heap.CellValue(foreign), nil, nil, nil); errors.StatusOf(err) != errors.StatusInvalidArg {
		t.Errorf("AddFinalizer without callback: %v", err)
	}
}
