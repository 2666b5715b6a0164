// Package resource provides the opaque handle tables of the reference bridge.
//
// Native code never sees Go pointers or managed values directly. Every
// value, reference, scope and environment it holds is an integer Handle
// into a table owned by the host side.
//
// # Handle Table
//
// The Table maps handles to Go values, tagged with a Kind:
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	h := table.Insert(resource.KindReference, ref)
//
//	// Kind-checked retrieval
//	v, ok := table.GetKinded(h, resource.KindReference) // ok
//	v, ok = table.GetKinded(h, resource.KindScope)      // !ok
//
//	// Remove and get value
//	v, ok = table.Remove(h)
//
// Handle 0 is never issued. Freed handles are reused, so a stale handle may
// later resolve to a different entry; kind checks catch the common misuse.
//
// # Roots
//
// Entries of KindValue hold managed values vended inside an open handle
// scope. VisitRoots reports those values, so registering a table with the
// heap keeps them alive exactly as long as their entries exist:
//
//	remove := h.AddRoots(table)
//	defer remove()
//
// # Observers
//
// Observers receive Created and Dropped events:
//
//	table.Subscribe(observer)
//
// Values implementing Dropper are dropped when their entry is removed or the
// table is closed.
package resource
