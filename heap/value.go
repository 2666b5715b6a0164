package heap

import (
	"strconv"
)

// Kind identifies the type of a Value.
type Kind uint8

const (
	KindEmpty Kind = iota // no value, also the "collected" sentinel
	KindUndefined
	KindNull
	KindBool
	KindNumber
	KindString
	KindSymbol
	KindObject
	KindFunction
)

var kindNames = [...]string{
	KindEmpty:     "empty",
	KindUndefined: "undefined",
	KindNull:      "null",
	KindBool:      "boolean",
	KindNumber:    "number",
	KindString:    "string",
	KindSymbol:    "symbol",
	KindObject:    "object",
	KindFunction:  "function",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// IsCellKind reports whether values of this kind are heap-allocated.
func (k Kind) IsCellKind() bool {
	return k >= KindString
}

// Value is a managed value. Primitives are stored inline; strings, symbols,
// objects and functions reference a Cell. The zero Value is empty.
type Value struct {
	cell *Cell
	num  float64
	kind Kind
}

func Undefined() Value { return Value{kind: KindUndefined} }

func Null() Value { return Value{kind: KindNull} }

func Bool(b bool) Value {
	if b {
		return Value{kind: KindBool, num: 1}
	}
	return Value{kind: KindBool}
}

func Number(f float64) Value { return Value{kind: KindNumber, num: f} }

// CellValue wraps a cell. A nil cell yields the empty value.
func CellValue(c *Cell) Value {
	if c == nil {
		return Value{}
	}
	return Value{kind: c.kind, cell: c}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsEmpty() bool { return v.kind == KindEmpty }

// IsCell reports whether the value is heap-allocated and therefore
// participates in weak tracking.
func (v Value) IsCell() bool { return v.cell != nil }

func (v Value) IsString() bool { return v.kind == KindString }

func (v Value) IsObject() bool { return v.kind == KindObject || v.kind == KindFunction }

func (v Value) Cell() *Cell { return v.cell }

func (v Value) Bool() bool { return v.kind == KindBool && v.num != 0 }

func (v Value) Number() float64 { return v.num }

// Equal reports identity for cells and value equality for primitives.
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	if v.cell != nil || o.cell != nil {
		return v.cell == o.cell
	}
	return v.num == o.num
}

func (v Value) String() string {
	switch v.kind {
	case KindEmpty:
		return "<empty>"
	case KindUndefined:
		return "undefined"
	case KindNull:
		return "null"
	case KindBool:
		return strconv.FormatBool(v.Bool())
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return strconv.Quote(v.cell.str)
	default:
		return v.cell.String()
	}
}
