package heap

import (
	"fmt"

	"go.uber.org/zap"
)

// Heap owns every cell and the roots that keep them alive.
type Heap struct {
	strongs  map[*Strong]struct{}
	weaks    map[*Cell][]*Weak
	rootSets map[uint64]RootSet
	cells    []*Cell
	realms   []*Realm
	nextID   uint64
	nextRoot uint64
	stats    Stats

	collecting bool
}

// Stats describes the most recent collection.
type Stats struct {
	Live     int
	Swept    int
	Notified int
	Cycles   int
}

func New() *Heap {
	return &Heap{
		strongs:  make(map[*Strong]struct{}),
		weaks:    make(map[*Cell][]*Weak),
		rootSets: make(map[uint64]RootSet),
	}
}

// Realm is a global context. Its global object and intrinsic prototypes
// are always reachable.
type Realm struct {
	heap          *Heap
	global        *Cell
	objectProto   *Cell
	functionProto *Cell
	name          string
}

func (h *Heap) NewRealm(name string) *Realm {
	r := &Realm{heap: h, name: name}
	r.objectProto = h.alloc(&Cell{kind: KindObject, realm: r})
	r.functionProto = h.alloc(&Cell{kind: KindObject, realm: r, proto: r.objectProto})
	r.global = h.alloc(&Cell{kind: KindObject, realm: r, proto: r.objectProto})
	h.realms = append(h.realms, r)
	return r
}

func (r *Realm) Heap() *Heap { return r.heap }

func (r *Realm) Name() string { return r.name }

func (r *Realm) Global() *Cell { return r.global }

func (r *Realm) ObjectPrototype() *Cell { return r.objectProto }

func (r *Realm) FunctionPrototype() *Cell { return r.functionProto }

func (h *Heap) alloc(c *Cell) *Cell {
	h.nextID++
	c.id = h.nextID
	h.cells = append(h.cells, c)
	return c
}

// NewObject allocates a plain object. A nil proto selects the realm's
// Object prototype.
func (h *Heap) NewObject(realm *Realm, proto *Cell) *Cell {
	if proto == nil {
		proto = realm.objectProto
	}
	return h.alloc(&Cell{kind: KindObject, realm: realm, proto: proto})
}

// NewObjectWithStructure allocates an object laid out by s.
func (h *Heap) NewObjectWithStructure(s *Structure) *Cell {
	return h.alloc(&Cell{kind: KindObject, realm: s.realm, proto: s.proto, structure: s})
}

func (h *Heap) NewString(s string) *Cell {
	return h.alloc(&Cell{kind: KindString, str: s})
}

func (h *Heap) NewSymbol(desc string) *Cell {
	return h.alloc(&Cell{kind: KindSymbol, str: desc})
}

func (h *Heap) NewFunction(realm *Realm, name string, fn NativeFunc) *Cell {
	return h.alloc(&Cell{kind: KindFunction, realm: realm, proto: realm.functionProto, str: name, fn: fn})
}

// DefineProperty installs or replaces an own property.
func (h *Heap) DefineProperty(c *Cell, name string, p Property) error {
	if c.kind != KindObject && c.kind != KindFunction {
		return fmt.Errorf("cannot define property %q on %s", name, c.kind)
	}
	if old, ok := c.props[name]; ok {
		if old.Flags&Configurable == 0 {
			return fmt.Errorf("property %q is not configurable", name)
		}
	} else {
		c.keys = append(c.keys, name)
	}
	if c.props == nil {
		c.props = make(map[string]*Property)
	}
	c.props[name] = &p
	return nil
}

// Get reads a property through the prototype chain, invoking getters.
func (h *Heap) Get(c *Cell, name string) (Value, error) {
	for cur := c; cur != nil; cur = cur.proto {
		p, ok := cur.props[name]
		if !ok {
			continue
		}
		if p.Getter != nil {
			return p.Getter.Call(CellValue(c))
		}
		if p.IsAccessor() {
			return Undefined(), nil
		}
		return p.Value, nil
	}
	return Undefined(), nil
}

// Len returns the number of live cells.
func (h *Heap) Len() int { return len(h.cells) }

// Stats returns the counters of the last collection.
func (h *Heap) Stats() Stats { return h.stats }

// Strong retains a value until cleared.
type Strong struct {
	heap  *Heap
	value Value
}

// Retain registers v as a root. Empty and primitive values are accepted;
// they simply have nothing to keep alive.
func (h *Heap) Retain(v Value) *Strong {
	s := &Strong{heap: h, value: v}
	h.strongs[s] = struct{}{}
	return s
}

func (s *Strong) Get() Value { return s.value }

// Clear releases the retention. Safe to call more than once.
func (s *Strong) Clear() {
	if s.heap == nil {
		return
	}
	delete(s.heap.strongs, s)
	s.heap = nil
	s.value = Value{}
}

// WeakOwner receives the notification for a swept cell.
type WeakOwner interface {
	Finalize(w *Weak, context any)
}

// WeakOwnerFunc adapts a function to WeakOwner.
type WeakOwnerFunc func(w *Weak, context any)

func (f WeakOwnerFunc) Finalize(w *Weak, context any) { f(w, context) }

// Weak observes a cell without keeping it alive.
type Weak struct {
	heap    *Heap
	target  *Cell
	owner   WeakOwner
	context any
}

// Watch starts observing c. The owner, if non-nil, is notified exactly once
// when c is swept, unless the observation is cleared first. Watching a nil
// or dead cell returns an observation that is already gone.
func (h *Heap) Watch(c *Cell, owner WeakOwner, context any) *Weak {
	w := &Weak{heap: h}
	if c == nil || c.dead {
		return w
	}
	w.target = c
	w.owner = owner
	w.context = context
	h.weaks[c] = append(h.weaks[c], w)
	return w
}

// Get returns the target, or nil once it is swept or the watch is cleared.
func (w *Weak) Get() *Cell { return w.target }

func (w *Weak) Value() Value { return CellValue(w.target) }

func (w *Weak) Alive() bool { return w.target != nil }

// Clear cancels the observation without notifying the owner.
func (w *Weak) Clear() {
	c := w.target
	w.target = nil
	w.owner = nil
	w.context = nil
	if c == nil || w.heap == nil {
		return
	}
	list := w.heap.weaks[c]
	for i, o := range list {
		if o == w {
			list = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(w.heap.weaks, c)
	} else {
		w.heap.weaks[c] = list
	}
}

// Observers returns the number of live weak observations of c.
func (h *Heap) Observers(c *Cell) int { return len(h.weaks[c]) }

// RootSet contributes roots to every collection.
type RootSet interface {
	VisitRoots(visit func(Value))
}

// RootSetFunc adapts a function to RootSet.
type RootSetFunc func(visit func(Value))

func (f RootSetFunc) VisitRoots(visit func(Value)) { f(visit) }

// AddRoots registers rs until the returned function is called.
func (h *Heap) AddRoots(rs RootSet) (remove func()) {
	h.nextRoot++
	id := h.nextRoot
	h.rootSets[id] = rs
	return func() { delete(h.rootSets, id) }
}

// Collect marks everything reachable from realms, strong handles and root
// sets, sweeps the rest, then delivers weak notifications. A Collect issued
// from inside a notification is ignored.
func (h *Heap) Collect() Stats {
	if h.collecting {
		return Stats{}
	}
	h.collecting = true
	defer func() { h.collecting = false }()

	for _, c := range h.cells {
		c.marked = false
	}

	var work []*Cell
	push := func(c *Cell) {
		if c != nil && !c.marked {
			c.marked = true
			work = append(work, c)
		}
	}
	pushValue := func(v Value) { push(v.cell) }
	pushStructure := func(s *Structure) {
		for ; s != nil; s = s.base {
			push(s.proto)
		}
	}

	for _, r := range h.realms {
		push(r.global)
		push(r.objectProto)
		push(r.functionProto)
	}
	for s := range h.strongs {
		pushValue(s.value)
	}
	for _, rs := range h.rootSets {
		rs.VisitRoots(pushValue)
	}

	for len(work) > 0 {
		c := work[len(work)-1]
		work = work[:len(work)-1]
		push(c.proto)
		pushStructure(c.structure)
		if c.rare != nil {
			pushStructure(c.rare.allocation)
		}
		for _, p := range c.props {
			pushValue(p.Value)
			push(p.Getter)
			push(p.Setter)
		}
	}

	live := h.cells[:0]
	var swept []*Cell
	for _, c := range h.cells {
		if c.marked {
			live = append(live, c)
			continue
		}
		c.dead = true
		c.props = nil
		c.keys = nil
		swept = append(swept, c)
	}
	for i := len(live); i < len(h.cells); i++ {
		h.cells[i] = nil
	}
	h.cells = live

	notified := 0
	for _, c := range swept {
		list := h.weaks[c]
		delete(h.weaks, c)
		for _, w := range list {
			if w.target != c {
				continue
			}
			owner, ctx := w.owner, w.context
			w.target = nil
			w.owner = nil
			w.context = nil
			if owner != nil {
				notified++
				owner.Finalize(w, ctx)
			}
		}
	}

	h.stats = Stats{
		Live:     len(h.cells),
		Swept:    len(swept),
		Notified: notified,
		Cycles:   h.stats.Cycles + 1,
	}
	Logger().Debug("heap collected",
		zap.Int("live", h.stats.Live),
		zap.Int("swept", h.stats.Swept),
		zap.Int("notified", h.stats.Notified))
	return h.stats
}
