package napi

import (
	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
)

// Prototype is the instance template of a Class: the prototype object its
// instances inherit from and the base structure they are laid out with.
type Prototype struct {
	class     *Class
	cell      *heap.Cell
	structure *heap.Structure
}

// Value returns the prototype object.
func (p *Prototype) Value() heap.Value { return heap.CellValue(p.cell) }

// Structure returns the base instance structure.
func (p *Prototype) Structure() *heap.Structure { return p.structure }

func (p *Prototype) Class() *Class { return p.class }

// Subclass allocates an instance for newTarget. The layout is derived from
// the base structure and newTarget's "prototype" property, and cached on
// newTarget; the cache is reused while its class info and realm match.
func (p *Prototype) Subclass(realm *heap.Realm, newTarget *heap.Cell) (*heap.Cell, error) {
	if newTarget == nil || newTarget.Kind() != heap.KindFunction {
		got := "empty"
		if newTarget != nil {
			got = newTarget.Kind().String()
		}
		return nil, errors.Expected(errors.PhaseClass, errors.StatusFunctionExpected, got)
	}

	h := realm.Heap()
	protoVal, err := h.Get(newTarget, "prototype")
	if err != nil {
		return nil, errors.Wrap(errors.PhaseClass, errors.KindInvalidData, err, "read new.target prototype")
	}
	proto := p.cell
	if protoVal.IsObject() {
		proto = protoVal.Cell()
	}

	rare := newTarget.EnsureRareData()
	s := rare.AllocationStructure()
	if s == nil || s.ClassInfo() != p.structure.ClassInfo() || s.Realm() != realm {
		s = heap.DeriveStructure(realm, proto, p.structure)
		rare.SetAllocationStructure(s)
	}

	obj := h.NewObjectWithStructure(s)
	obj.SetInternal(&cellData{})
	return obj, nil
}
