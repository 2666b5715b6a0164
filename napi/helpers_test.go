package napi

import (
	"testing"

	"github.com/wippyai/refbridge/heap"
)

func newTestEnv(t *testing.T) (*heap.Heap, *Env) {
	t.Helper()
	h := heap.New()
	realm := h.NewRealm("test")
	env := NewEnv(realm, Module{Name: t.Name()}, nil)
	t.Cleanup(env.Cleanup)
	return h, env
}

type finalizeRecord struct {
	data any
	hint any
}

type finalizeRecorder struct {
	calls []finalizeRecord
}

func (r *finalizeRecorder) fn(_ *Env, data, hint any) {
	r.calls = append(r.calls, finalizeRecord{data: data, hint: hint})
}
