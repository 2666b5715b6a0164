package heap

import (
	"testing"
)

type countingOwner struct {
	contexts []any
}

func (o *countingOwner) Finalize(_ *Weak, ctx any) {
	o.contexts = append(o.contexts, ctx)
}

func TestHeap_CollectSweepsUnreachable(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	base := h.Len()

	obj := h.NewObject(realm, nil)
	str := h.NewString("hello")
	if h.Len() != base+2 {
		t.Fatalf("expected %d cells, got %d", base+2, h.Len())
	}

	stats := h.Collect()
	if stats.Swept != 2 {
		t.Fatalf("expected 2 swept cells, got %d", stats.Swept)
	}
	if !obj.Dead() || !str.Dead() {
		t.Fatal("unreachable cells should be dead")
	}
	if realm.Global().Dead() {
		t.Fatal("realm global must survive collection")
	}
}

func TestHeap_StrongRetains(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	obj := h.NewObject(realm, nil)

	s := h.Retain(CellValue(obj))
	h.Collect()
	if obj.Dead() {
		t.Fatal("strongly retained cell was swept")
	}

	s.Clear()
	s.Clear()
	h.Collect()
	if !obj.Dead() {
		t.Fatal("cell should be swept after Strong.Clear")
	}
	if !s.Get().IsEmpty() {
		t.Fatal("cleared strong handle should read empty")
	}
}

func TestHeap_TracesProperties(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	child := h.NewObject(realm, nil)
	if err := h.DefineProperty(realm.Global(), "child", Property{Value: CellValue(child), Flags: DefaultFlags}); err != nil {
		t.Fatalf("DefineProperty failed: %v", err)
	}

	h.Collect()
	if child.Dead() {
		t.Fatal("cell reachable from the global object was swept")
	}

	v, err := h.Get(realm.Global(), "child")
	if err != nil {
		t.Fatalf("Get failed: %v", err)
	}
	if v.Cell() != child {
		t.Fatalf("expected child, got %v", v)
	}
}

func TestHeap_WeakNotifiesOnce(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	obj := h.NewObject(realm, nil)
	owner := &countingOwner{}

	w := h.Watch(obj, owner, "ctx")
	if h.Observers(obj) != 1 {
		t.Fatalf("expected 1 observer, got %d", h.Observers(obj))
	}
	if w.Get() != obj {
		t.Fatal("weak should report the live target")
	}

	stats := h.Collect()
	if stats.Notified != 1 {
		t.Fatalf("expected 1 notification, got %d", stats.Notified)
	}
	h.Collect()

	if len(owner.contexts) != 1 || owner.contexts[0] != "ctx" {
		t.Fatalf("expected exactly one notification with ctx, got %v", owner.contexts)
	}
	if w.Alive() {
		t.Fatal("weak should be gone after its target is swept")
	}
}

func TestHeap_ClearedWeakDoesNotNotify(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	obj := h.NewObject(realm, nil)
	owner := &countingOwner{}

	w := h.Watch(obj, owner, nil)
	w.Clear()
	w.Clear()
	if h.Observers(obj) != 0 {
		t.Fatal("Clear should deregister the observer")
	}

	h.Collect()
	if len(owner.contexts) != 0 {
		t.Fatal("cleared observation must not be notified")
	}
}

func TestHeap_WatchDeadCell(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	obj := h.NewObject(realm, nil)
	h.Collect()

	w := h.Watch(obj, &countingOwner{}, nil)
	if w.Alive() {
		t.Fatal("watching a dead cell should yield a gone observation")
	}
	if h.Watch(nil, nil, nil).Alive() {
		t.Fatal("watching nil should yield a gone observation")
	}
}

func TestHeap_RootSet(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	obj := h.NewObject(realm, nil)

	remove := h.AddRoots(RootSetFunc(func(visit func(Value)) {
		visit(CellValue(obj))
	}))
	h.Collect()
	if obj.Dead() {
		t.Fatal("root set member was swept")
	}

	remove()
	h.Collect()
	if !obj.Dead() {
		t.Fatal("cell should be swept after root set removal")
	}
}

func TestHeap_ReentrantCollectIgnored(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	obj := h.NewObject(realm, nil)

	var inner Stats
	h.Watch(obj, WeakOwnerFunc(func(*Weak, any) {
		inner = h.Collect()
	}), nil)

	h.Collect()
	if inner.Cycles != 0 {
		t.Fatal("collection started from a notification should be ignored")
	}
	if h.Stats().Cycles != 1 {
		t.Fatalf("expected 1 cycle, got %d", h.Stats().Cycles)
	}
}

func TestHeap_AllocationStructureKeepsPrototype(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	proto := h.NewObject(realm, nil)
	fn := h.NewFunction(realm, "Ctor", nil)
	if err := h.DefineProperty(realm.Global(), "Ctor", Property{Value: CellValue(fn), Flags: DefaultFlags}); err != nil {
		t.Fatal(err)
	}

	info := &ClassInfo{Name: "Thing"}
	s := DeriveStructure(realm, proto, NewStructure(realm, nil, info))
	fn.EnsureRareData().SetAllocationStructure(s)

	h.Collect()
	if proto.Dead() {
		t.Fatal("prototype referenced by a cached structure was swept")
	}
	if s.ClassInfo() != info {
		t.Fatal("derived structure should keep the base class info")
	}
}

func TestHeap_DefinePropertyNonConfigurable(t *testing.T) {
	h := New()
	realm := h.NewRealm("main")
	obj := h.NewObject(realm, nil)

	if err := h.DefineProperty(obj, "x", Property{Value: Number(1)}); err != nil {
		t.Fatal(err)
	}
	if err := h.DefineProperty(obj, "x", Property{Value: Number(2)}); err == nil {
		t.Fatal("redefining a non-configurable property should fail")
	}
	if err := h.DefineProperty(h.NewString("s"), "x", Property{}); err == nil {
		t.Fatal("defining a property on a string should fail")
	}
}

func TestValue_Basics(t *testing.T) {
	h := New()
	str := h.NewString("abc")

	tests := []struct {
		name   string
		v      Value
		kind   Kind
		isCell bool
	}{
		{"empty", Value{}, KindEmpty, false},
		{"undefined", Undefined(), KindUndefined, false},
		{"null", Null(), KindNull, false},
		{"bool", Bool(true), KindBool, false},
		{"number", Number(4.5), KindNumber, false},
		{"string", CellValue(str), KindString, true},
		{"nil cell", CellValue(nil), KindEmpty, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.v.Kind() != tt.kind {
				t.Errorf("expected kind %s, got %s", tt.kind, tt.v.Kind())
			}
			if tt.v.IsCell() != tt.isCell {
				t.Errorf("expected IsCell %v", tt.isCell)
			}
		})
	}

	if !Number(2).Equal(Number(2)) || Number(2).Equal(Number(3)) {
		t.Error("number equality is wrong")
	}
	if CellValue(str).Equal(CellValue(h.NewString("abc"))) {
		t.Error("distinct string cells should not be identical")
	}
	if got := CellValue(str).String(); got != `"abc"` {
		t.Errorf("unexpected string form %s", got)
	}
}
