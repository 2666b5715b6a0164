package resource

import (
	"sync"

	"github.com/wippyai/refbridge/heap"
)

// Table manages entries with kind information and observer support.
type Table struct {
	backend   *LocalBackend
	observers []Observer
	obsMu     sync.RWMutex
	closed    bool
	closeMu   sync.RWMutex
}

// NewTable creates a new table with a LocalBackend.
func NewTable() *Table {
	return &Table{
		backend: NewLocalBackend(),
	}
}

// Insert adds a value and returns its handle, or 0 once the table is closed.
func (t *Table) Insert(kind Kind, value any) Handle {
	t.closeMu.RLock()
	if t.closed {
		t.closeMu.RUnlock()
		return 0
	}
	t.closeMu.RUnlock()

	handle, err := t.backend.Create(kind, value)
	if err != nil {
		return 0
	}

	t.notify(Event{
		Type:   EventCreated,
		Handle: handle,
		Kind:   kind,
		Value:  value,
	})

	return handle
}

// Get retrieves a value by handle.
func (t *Table) Get(handle Handle) (any, bool) {
	return t.backend.Get(handle)
}

// Kind returns the kind of a live entry.
func (t *Table) Kind(handle Handle) (Kind, bool) {
	return t.backend.Kind(handle)
}

// GetKinded retrieves a value only if its entry has one of the given kinds.
func (t *Table) GetKinded(handle Handle, kinds ...Kind) (any, bool) {
	actual, ok := t.backend.Kind(handle)
	if !ok || !hasKind(kinds, actual) {
		return nil, false
	}
	return t.backend.Get(handle)
}

// Remove drops an entry and returns (value, true) if found.
func (t *Table) Remove(handle Handle) (any, bool) {
	kind, _ := t.backend.Kind(handle)
	value, ok := t.backend.Drop(handle)
	if !ok {
		return nil, false
	}

	if d, ok := value.(Dropper); ok {
		d.Drop()
	}

	t.notify(Event{
		Type:   EventDropped,
		Handle: handle,
		Kind:   kind,
		Value:  value,
	})

	return value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *Table) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *Table) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	for i, obs := range t.observers {
		if obs == o {
			t.observers = append(t.observers[:i], t.observers[i+1:]...)
			return
		}
	}
}

// Len returns the number of live entries.
func (t *Table) Len() int {
	return t.backend.Len()
}

// Count returns the number of live entries of the given kind.
func (t *Table) Count(kind Kind) int {
	n := 0
	t.backend.Each(func(_ Handle, k Kind, _ any) bool {
		if k == kind {
			n++
		}
		return true
	})
	return n
}

// Handles returns the live handles of the given kinds in handle order.
func (t *Table) Handles(kinds ...Kind) []Handle {
	var out []Handle
	t.backend.Each(func(h Handle, k Kind, _ any) bool {
		if len(kinds) == 0 || hasKind(kinds, k) {
			out = append(out, h)
		}
		return true
	})
	return out
}

// Each iterates over all live entries. fn must not modify the table.
func (t *Table) Each(fn func(Handle, Kind, any) bool) {
	t.backend.Each(fn)
}

// VisitRoots reports the managed values of KindValue entries. It makes a
// Table usable as a heap.RootSet.
func (t *Table) VisitRoots(visit func(heap.Value)) {
	t.backend.Each(func(_ Handle, k Kind, v any) bool {
		if k == KindValue {
			if hv, ok := v.(heap.Value); ok {
				visit(hv)
			}
		}
		return true
	})
}

// Clear drops all entries.
func (t *Table) Clear() {
	// Collect handles first to avoid holding lock during Remove
	for _, h := range t.Handles() {
		t.Remove(h)
	}
}

// Close releases all entries and stops accepting inserts.
func (t *Table) Close() error {
	t.closeMu.Lock()
	t.closed = true
	t.closeMu.Unlock()

	return t.backend.Close()
}

// Backend returns the underlying backend.
func (t *Table) Backend() *LocalBackend {
	return t.backend
}

func (t *Table) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}

func hasKind(kinds []Kind, k Kind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}

// Typed provides type-safe access to the entries of one kind.
type Typed[T any] struct {
	table *Table
	kind  Kind
}

// NewTyped creates a typed view over table for entries of kind.
func NewTyped[T any](table *Table, kind Kind) *Typed[T] {
	return &Typed[T]{table: table, kind: kind}
}

// Insert adds a value and returns its handle.
func (t *Typed[T]) Insert(value T) Handle {
	return t.table.Insert(t.kind, value)
}

// Get retrieves a value by handle.
func (t *Typed[T]) Get(handle Handle) (T, bool) {
	var zero T
	v, ok := t.table.GetKinded(handle, t.kind)
	if !ok {
		return zero, false
	}
	tv, ok := v.(T)
	return tv, ok
}

// Remove drops an entry and returns (value, true) if found.
func (t *Typed[T]) Remove(handle Handle) (T, bool) {
	var zero T
	if _, ok := t.Get(handle); !ok {
		return zero, false
	}
	v, ok := t.table.Remove(handle)
	if !ok {
		return zero, false
	}
	tv, _ := v.(T)
	return tv, true
}

// Len returns the number of live entries of this kind.
func (t *Typed[T]) Len() int {
	return t.table.Count(t.kind)
}

// Each iterates over all live entries of this kind. fn must not modify the
// table.
func (t *Typed[T]) Each(fn func(Handle, T) bool) {
	t.table.Each(func(h Handle, k Kind, v any) bool {
		if k != t.kind {
			return true
		}
		tv, ok := v.(T)
		if !ok {
			return true
		}
		return fn(h, tv)
	})
}
