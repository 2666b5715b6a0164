package napi

import (
	"github.com/wippyai/refbridge/errors"
	"github.com/wippyai/refbridge/heap"
)

type slotTag uint8

const (
	slotUnset slotTag = iota
	slotPrimitive
	slotCell
	slotString
)

// WeakSlot holds exactly one of: nothing, a primitive stored inline, or a
// weakly observed cell. Strings get their own arm so reads are typed
// without inspecting the cell.
//
// The zero WeakSlot is unset.
type WeakSlot struct {
	primitive heap.Value
	weak      *heap.Weak
	tag       slotTag
}

// SetPrimitive stores a non-cell value. No observer is registered. A cell
// is rejected and the slot is left unchanged.
func (s *WeakSlot) SetPrimitive(v heap.Value) error {
	if v.IsCell() {
		return errors.InvalidArg(errors.PhaseReference, "primitive slot given a "+v.Kind().String()+" cell")
	}
	s.setPrimitive(v)
	return nil
}

func (s *WeakSlot) setPrimitive(v heap.Value) {
	s.Clear()
	s.primitive = v
	s.tag = slotPrimitive
}

// SetCell observes c through owner, which is notified with context when c
// is swept.
func (s *WeakSlot) SetCell(h *heap.Heap, c *heap.Cell, owner heap.WeakOwner, context any) {
	s.Clear()
	s.weak = h.Watch(c, owner, context)
	s.tag = slotCell
}

// SetString is SetCell for string cells.
func (s *WeakSlot) SetString(h *heap.Heap, c *heap.Cell, owner heap.WeakOwner, context any) {
	s.Clear()
	s.weak = h.Watch(c, owner, context)
	s.tag = slotString
}

// Set picks the arm from v.
func (s *WeakSlot) Set(h *heap.Heap, v heap.Value, owner heap.WeakOwner, context any) {
	switch {
	case !v.IsCell():
		s.setPrimitive(v)
	case v.IsString():
		s.SetString(h, v.Cell(), owner, context)
	default:
		s.SetCell(h, v.Cell(), owner, context)
	}
}

// Get returns the stored value, or the empty value when unset or collected.
func (s *WeakSlot) Get() heap.Value {
	switch s.tag {
	case slotPrimitive:
		return s.primitive
	case slotCell, slotString:
		return s.weak.Value()
	default:
		return heap.Value{}
	}
}

// Clear returns the slot to unset. The tag is reset before the observation
// is cancelled so nothing reached from the cancellation sees a half-cleared
// slot. Clearing an unset slot is a no-op.
func (s *WeakSlot) Clear() {
	tag, w := s.tag, s.weak
	s.tag = slotUnset
	s.weak = nil
	s.primitive = heap.Value{}

	if (tag == slotCell || tag == slotString) && w != nil {
		w.Clear()
	}
}

func (s *WeakSlot) IsSet() bool { return s.tag != slotUnset }

// IsClear reports whether reading the slot yields nothing: it was never set,
// holds the empty value, or its cell is gone.
func (s *WeakSlot) IsClear() bool {
	switch s.tag {
	case slotPrimitive:
		return s.primitive.IsEmpty()
	case slotCell, slotString:
		return !s.weak.Alive()
	default:
		return true
	}
}

func (s *WeakSlot) IsPrimitive() bool { return s.tag == slotPrimitive }

func (s *WeakSlot) IsCell() bool { return s.tag == slotCell }

func (s *WeakSlot) IsString() bool { return s.tag == slotString }
