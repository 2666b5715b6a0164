// Package heap is the managed object heap the reference bridge runs against.
//
// It models only what the bridge consumes from a garbage-collected runtime:
//
//	Value / Cell        - primitives are inline, heap-allocated values are cells
//	Realm               - a global context with a rooted global object
//	Strong              - unconditional retention until Clear
//	Weak + WeakOwner    - one notification when a watched cell is swept
//	RootSet             - external tables (handle scopes) contributing roots
//	Structure           - allocation layout (class info, realm, prototype)
//
// Collection is explicit and deterministic:
//
//	h := heap.New()
//	realm := h.NewRealm("main")
//	obj := h.NewObject(realm, nil)
//	w := h.Watch(obj, owner, ctx)
//	h.Collect() // obj unreachable: owner.Finalize(w, ctx) runs once
//
// The heap is not safe for concurrent use. All mutation, weak notification
// and finalization happen on the goroutine that calls into it.
package heap
