package resource

import (
	"testing"

	"github.com/wippyai/refbridge/heap"
)

type testObserver struct {
	events []Event
}

func (o *testObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestTable_Basic(t *testing.T) {
	table := NewTable()

	h := table.Insert(KindReference, "test")
	if h == 0 {
		t.Fatal("Expected non-zero handle")
	}

	val, ok := table.Get(h)
	if !ok || val != "test" {
		t.Fatalf("Get returned %v, %v", val, ok)
	}

	if _, ok := table.GetKinded(h, KindReference); !ok {
		t.Fatal("GetKinded with correct kind failed")
	}
	if _, ok := table.GetKinded(h, KindScope, KindValue); ok {
		t.Fatal("GetKinded with wrong kind should fail")
	}

	val, ok = table.Remove(h)
	if !ok || val != "test" {
		t.Fatalf("Remove returned %v, %v", val, ok)
	}
	if _, ok := table.Remove(h); ok {
		t.Fatal("second Remove should fail")
	}
	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Remove")
	}
}

func TestTable_Observer(t *testing.T) {
	table := NewTable()
	obs := &testObserver{}
	table.Subscribe(obs)

	h := table.Insert(KindScope, "scope")
	if len(obs.events) != 1 || obs.events[0].Type != EventCreated {
		t.Fatalf("Expected EventCreated, got %+v", obs.events)
	}
	if obs.events[0].Handle != h || obs.events[0].Kind != KindScope {
		t.Fatal("Wrong handle or kind in event")
	}

	table.Remove(h)
	if len(obs.events) != 2 || obs.events[1].Type != EventDropped {
		t.Fatalf("Expected EventDropped, got %+v", obs.events)
	}
	if obs.events[1].Kind != KindScope {
		t.Fatal("Dropped event should carry the entry kind")
	}

	table.Unsubscribe(obs)
	table.Insert(KindScope, "other")
	if len(obs.events) != 2 {
		t.Fatal("Should not receive events after Unsubscribe")
	}
}

func TestTable_HandlesAndCount(t *testing.T) {
	table := NewTable()

	a := table.Insert(KindValue, heap.Number(1))
	b := table.Insert(KindReference, "r")
	c := table.Insert(KindValue, heap.Number(2))

	if got := table.Count(KindValue); got != 2 {
		t.Fatalf("Count(KindValue) = %d, want 2", got)
	}
	handles := table.Handles(KindValue)
	if len(handles) != 2 || handles[0] != a || handles[1] != c {
		t.Fatalf("Handles(KindValue) = %v", handles)
	}
	if all := table.Handles(); len(all) != 3 || all[1] != b {
		t.Fatalf("Handles() = %v", all)
	}
}

func TestTable_VisitRoots(t *testing.T) {
	h := heap.New()
	realm := h.NewRealm("main")
	scoped := h.NewObject(realm, nil)
	loose := h.NewObject(realm, nil)

	table := NewTable()
	table.Insert(KindValue, heap.CellValue(scoped))
	table.Insert(KindLooseValue, heap.CellValue(loose))
	table.Insert(KindValue, heap.Number(3))

	remove := h.AddRoots(table)
	defer remove()

	h.Collect()
	if scoped.Dead() {
		t.Fatal("KindValue entry should keep its cell alive")
	}
	if !loose.Dead() {
		t.Fatal("KindLooseValue entry must not act as a root")
	}
}

func TestTable_Clear(t *testing.T) {
	table := NewTable()

	table.Insert(KindValue, "a")
	table.Insert(KindValue, "b")
	table.Insert(KindScope, "c")

	if table.Len() != 3 {
		t.Fatal("Expected Len() == 3")
	}

	table.Clear()

	if table.Len() != 0 {
		t.Fatal("Expected Len() == 0 after Clear")
	}
}

func TestTable_Close(t *testing.T) {
	table := NewTable()

	table.Insert(KindValue, "a")
	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if h := table.Insert(KindValue, "c"); h != 0 {
		t.Fatal("Expected Insert to fail after Close")
	}
}

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestTable_DropperInterface(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	h := table.Insert(KindReference, d)
	table.Remove(h)

	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}
}

func TestTyped(t *testing.T) {
	table := NewTable()
	scopes := NewTyped[*dropCounter](table, KindScope)

	d := &dropCounter{}
	h := scopes.Insert(d)
	other := table.Insert(KindValue, "not a scope")

	got, ok := scopes.Get(h)
	if !ok || got != d {
		t.Fatal("Typed.Get failed")
	}
	if _, ok := scopes.Get(other); ok {
		t.Fatal("Typed.Get should reject entries of another kind")
	}
	if _, ok := scopes.Remove(other); ok {
		t.Fatal("Typed.Remove should reject entries of another kind")
	}
	if scopes.Len() != 1 {
		t.Fatalf("Typed.Len = %d, want 1", scopes.Len())
	}

	var seen []Handle
	scopes.Each(func(h Handle, _ *dropCounter) bool {
		seen = append(seen, h)
		return true
	})
	if len(seen) != 1 || seen[0] != h {
		t.Fatalf("Typed.Each visited %v", seen)
	}

	if _, ok := scopes.Remove(h); !ok || d.count != 1 {
		t.Fatal("Typed.Remove should drop the entry")
	}
}

func TestKind_String(t *testing.T) {
	if KindReference.String() != "reference" {
		t.Errorf("unexpected name %q", KindReference.String())
	}
	if Kind(200).String() != "kind(200)" {
		t.Errorf("unexpected name %q", Kind(200).String())
	}
}
