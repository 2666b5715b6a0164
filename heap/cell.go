package heap

import (
	"fmt"
)

// NativeFunc is the Go body of a function cell.
type NativeFunc func(this Value, args []Value) (Value, error)

// Cell is a heap-allocated value.
type Cell struct {
	props     map[string]*Property
	proto     *Cell
	structure *Structure
	internal  any
	rare      *RareData
	fn        NativeFunc
	realm     *Realm
	str       string
	keys      []string
	id        uint64
	kind      Kind
	marked    bool
	dead      bool
}

func (c *Cell) ID() uint64 { return c.id }

func (c *Cell) Kind() Kind { return c.kind }

// Dead reports whether the cell has been swept.
func (c *Cell) Dead() bool { return c.dead }

// Str returns the contents of a string cell, or the description of a symbol.
func (c *Cell) Str() string { return c.str }

func (c *Cell) Prototype() *Cell { return c.proto }

func (c *Cell) SetPrototype(p *Cell) { c.proto = p }

func (c *Cell) Structure() *Structure { return c.structure }

// Realm returns the realm the cell was allocated in. Strings and symbols
// are realm-independent and return nil.
func (c *Cell) Realm() *Realm { return c.realm }

// Internal returns the host slot. It is not traced by the collector.
func (c *Cell) Internal() any { return c.internal }

func (c *Cell) SetInternal(v any) { c.internal = v }

// Func returns the native body of a function cell.
func (c *Cell) Func() NativeFunc { return c.fn }

// Call invokes a function cell.
func (c *Cell) Call(this Value, args ...Value) (Value, error) {
	if c.kind != KindFunction || c.fn == nil {
		return Value{}, fmt.Errorf("cell #%d is not callable", c.id)
	}
	return c.fn(this, args)
}

// EnsureRareData returns the function's rare data, allocating it on first use.
func (c *Cell) EnsureRareData() *RareData {
	if c.rare == nil {
		c.rare = &RareData{}
	}
	return c.rare
}

// Keys returns own property names in definition order.
func (c *Cell) Keys() []string {
	return append([]string(nil), c.keys...)
}

// Own returns an own property descriptor.
func (c *Cell) Own(name string) (*Property, bool) {
	p, ok := c.props[name]
	return p, ok
}

func (c *Cell) String() string {
	switch c.kind {
	case KindString:
		return fmt.Sprintf("%q", c.str)
	case KindSymbol:
		return fmt.Sprintf("Symbol(%s)", c.str)
	case KindFunction:
		return fmt.Sprintf("[function %s #%d]", c.str, c.id)
	default:
		if c.structure != nil && c.structure.info != nil {
			return fmt.Sprintf("[object %s #%d]", c.structure.info.Name, c.id)
		}
		return fmt.Sprintf("[object #%d]", c.id)
	}
}

// PropertyFlags are the attribute bits of a property.
type PropertyFlags uint8

const (
	Writable PropertyFlags = 1 << iota
	Enumerable
	Configurable

	DefaultFlags = Writable | Enumerable | Configurable
)

// Property is either a data property (Value) or an accessor (Getter/Setter).
type Property struct {
	Value  Value
	Getter *Cell
	Setter *Cell
	Flags  PropertyFlags
}

func (p *Property) IsAccessor() bool { return p.Getter != nil || p.Setter != nil }

// RareData holds function state that most functions never need.
type RareData struct {
	allocation *Structure
}

// AllocationStructure is the cached layout for objects constructed with
// this function as new.target.
func (r *RareData) AllocationStructure() *Structure { return r.allocation }

func (r *RareData) SetAllocationStructure(s *Structure) { r.allocation = s }

// ClassInfo identifies the native class a structure's cells belong to.
type ClassInfo struct {
	Name string
}

// Structure is an allocation layout: class identity, realm and prototype.
type Structure struct {
	info  *ClassInfo
	realm *Realm
	proto *Cell
	base  *Structure
}

func NewStructure(realm *Realm, proto *Cell, info *ClassInfo) *Structure {
	return &Structure{info: info, realm: realm, proto: proto}
}

// DeriveStructure creates a layout with base's class info and a new
// realm and prototype.
func DeriveStructure(realm *Realm, proto *Cell, base *Structure) *Structure {
	return &Structure{info: base.info, realm: realm, proto: proto, base: base}
}

func (s *Structure) ClassInfo() *ClassInfo { return s.info }

func (s *Structure) Realm() *Realm { return s.realm }

func (s *Structure) Prototype() *Cell { return s.proto }

func (s *Structure) Base() *Structure { return s.base }
