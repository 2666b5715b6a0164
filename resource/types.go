package resource

import (
	"strconv"
)

// Handle is an opaque reference to an entry in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Kind tags what an entry holds.
type Kind uint8

const (
	KindInvalid Kind = iota
	// KindValue is a managed value retained by an open handle scope.
	KindValue
	// KindLooseValue is a managed value vended with no scope open. It is
	// not a root.
	KindLooseValue
	KindReference
	KindScope
	KindEnv
	KindClass
)

var kindNames = [...]string{
	KindInvalid:    "invalid",
	KindValue:      "value",
	KindLooseValue: "loose-value",
	KindReference:  "reference",
	KindScope:      "scope",
	KindEnv:        "env",
	KindClass:      "class",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "kind(" + strconv.Itoa(int(k)) + ")"
}

// EventType identifies a lifecycle notification.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a handle lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Kind   Kind
	Type   EventType
}

// Observer receives notifications about handle lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Backend provides the underlying storage mechanism for entries.
type Backend interface {
	// Create stores a value and returns a handle.
	Create(kind Kind, value any) (Handle, error)

	// Get retrieves a value by handle.
	Get(handle Handle) (any, bool)

	// Kind returns the kind of a live entry.
	Kind(handle Handle) (Kind, bool)

	// Drop removes an entry and returns its value.
	Drop(handle Handle) (any, bool)

	// Close releases all entries held by the backend.
	Close() error
}

// Dropper is optionally implemented by values that need cleanup.
type Dropper interface {
	Drop()
}
